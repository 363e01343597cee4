// Package engine puts the device, the swapchain, the pipeline and the
// renderer together and drives the frame loop.
package engine

import (
	"image/color"
	"log/slog"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/commands"
	"github.com/NocaToca/Calico/config"
	"github.com/NocaToca/Calico/device"
	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/models"
	"github.com/NocaToca/Calico/pipeline"
	"github.com/NocaToca/Calico/render"
	"github.com/NocaToca/Calico/swapchain"
	"github.com/NocaToca/Calico/textures"
)

// Window is the window frames are presented to.
type Window interface {
	ShouldClose() bool
	PollEvents()
	WaitEvents()
	FramebufferSize() (int, int)
	Resized() bool
	ClearResized()
}

// Context is what the engine needs from the Vulkan instance. The engine does
// not own it.
type Context struct {
	Instance vk.Instance
	Surface  vk.Surface

	// Layers are enabled on the logical device for compatibility with older
	// implementations which still distinguish device layers.
	Layers []string
}

// Engine renders the configured model until the window is closed.
type Engine struct {
	cfg    config.Config
	window Window
	ctx    Context
	drv    gpu.Driver

	frames int
}

// New returns an engine for the given configuration. Nothing is created until
// Run is called.
func New(cfg config.Config, win Window, ctx Context, drv gpu.Driver) *Engine {
	return &Engine{
		cfg:    cfg,
		window: win,
		ctx:    ctx,
		drv:    drv,
	}
}

// Frames returns the number of frames drawn by Run.
func (e *Engine) Frames() int {
	return e.frames
}

// Run creates every GPU object, draws frames until the window should close
// and destroys everything again in the reverse order of creation.
func (e *Engine) Run() error {
	if err := e.cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	sources, err := e.cfg.LoadShaders()
	if err != nil {
		return err
	}
	mesh, err := e.loadMesh()
	if err != nil {
		return err
	}
	texture, err := e.loadTexture()
	if err != nil {
		return err
	}

	req := device.DefaultRequirements()
	candidate, err := device.Select(e.drv, e.ctx.Instance, e.ctx.Surface, req)
	if err != nil {
		return errors.Wrap(err, "pickPhysicalDevice")
	}

	dev, err := device.Create(e.drv, candidate, req, e.ctx.Layers)
	if err != nil {
		return errors.Wrap(err, "createLogicalDevice")
	}
	defer dev.Destroy()

	pool, err := commands.NewPool(dev)
	if err != nil {
		return errors.Wrap(err, "createCommandPool")
	}
	defer pool.Destroy()

	chain := swapchain.New(dev, pool, e.ctx.Surface, e.window)
	defer chain.Destroy()
	if err := chain.Create(); err != nil {
		return errors.Wrap(err, "createSwapChain")
	}

	builder := pipeline.NewBuilder(dev, sources, models.VertexLayout())
	pipe, err := builder.Build(chain.Format(), chain.DepthFormat())
	if err != nil {
		return errors.Wrap(err, "createGraphicsPipeline")
	}

	// The renderer replaces the pipeline when the swapchain formats change.
	current := func() *pipeline.Pipeline { return pipe }
	defer func() { current().Destroy() }()

	if err := chain.CreateFramebuffers(pipe.RenderPass()); err != nil {
		return errors.Wrap(err, "createFramebuffers")
	}

	renderer, err := render.New(render.Options{
		Device:         dev,
		Pool:           pool,
		Swapchain:      chain,
		Builder:        builder,
		Pipeline:       pipe,
		Window:         e.window,
		Mesh:           mesh,
		Texture:        texture,
		FramesInFlight: e.cfg.MaxFramesInFlight,
		Spin:           e.cfg.Spin,
	})
	if err != nil {
		return errors.Wrap(err, "createRenderer")
	}
	current = renderer.Pipeline
	defer renderer.Destroy()

	return e.mainLoop(dev, renderer)
}

func (e *Engine) mainLoop(dev *device.Device, renderer *render.Renderer) error {
	slog.Info("main loop", "frames_in_flight", renderer.FramesInFlight())

	for !e.window.ShouldClose() {
		e.window.PollEvents()

		if err := renderer.DrawFrame(); err != nil {
			return errors.Wrap(err, "error drawing a frame")
		}
		e.frames++
	}

	slog.Info("main loop finished", "frames", e.frames)
	return dev.WaitIdle()
}

func (e *Engine) loadMesh() (models.Mesh, error) {
	if e.cfg.Model == "" {
		return models.Quad(), nil
	}
	mesh, err := models.LoadOBJFile(e.cfg.Model)
	if err != nil {
		return models.Mesh{}, errors.Wrap(err, "loading model")
	}
	return mesh, nil
}

func (e *Engine) loadTexture() (*textures.Texture, error) {
	if e.cfg.Texture == "" {
		return textures.Checkerboard(
			256, 32,
			color.RGBA{R: 255, G: 255, B: 255, A: 255},
			color.RGBA{R: 64, G: 64, B: 64, A: 255},
		), nil
	}
	tex, err := textures.Load(e.cfg.Texture)
	if err != nil {
		return nil, errors.Wrap(err, "loading texture")
	}
	return tex, nil
}

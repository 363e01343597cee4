// Package render owns everything needed to draw frames: the per frame
// synchronization objects and command buffers, the geometry, the uniform
// buffers, the texture and the descriptor sets binding them to the pipeline.
package render

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/commands"
	"github.com/NocaToca/Calico/device"
	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/models"
	"github.com/NocaToca/Calico/pipeline"
	"github.com/NocaToca/Calico/swapchain"
	"github.com/NocaToca/Calico/textures"
)

// Window is the part of the window the renderer needs to react to resizing
// and minimizing.
type Window interface {
	FramebufferSize() (int, int)
	WaitEvents()
	Resized() bool
	ClearResized()
}

// Options are the collaborators and inputs of a Renderer. The renderer does
// not own any of the collaborators except for Pipeline, which it replaces when
// the swapchain formats change. The current pipeline is always available
// through Renderer.Pipeline.
type Options struct {
	Device    *device.Device
	Pool      *commands.Pool
	Swapchain *swapchain.Manager
	Builder   *pipeline.Builder
	Pipeline  *pipeline.Pipeline
	Window    Window

	Mesh    models.Mesh
	Texture *textures.Texture

	FramesInFlight int

	// Spin is the rotation speed of the model around the Z axis in radians
	// per second.
	Spin float32

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

type frameSync struct {
	imageAvailable vk.Semaphore
	renderFinished vk.Semaphore
	inFlight       vk.Fence
}

// Renderer draws the mesh with the texture applied once per DrawFrame.
type Renderer struct {
	drv       gpu.Driver
	dev       *device.Device
	pool      *commands.Pool
	swapchain *swapchain.Manager
	builder   *pipeline.Builder
	pipeline  *pipeline.Pipeline
	window    Window

	indexCount uint32
	spin       float32
	now        func() time.Time
	start      time.Time

	frames         []frameSync
	commandBuffers []vk.CommandBuffer
	current        int

	vertexBuffer   device.Buffer
	indexBuffer    device.Buffer
	uniformBuffers []device.Buffer

	texture     device.Image
	textureView vk.ImageView
	sampler     vk.Sampler

	descriptorPool vk.DescriptorPool
	descriptorSets []vk.DescriptorSet
}

// New creates the renderer and uploads the mesh and the texture to the GPU.
func New(opts Options) (*Renderer, error) {
	if opts.FramesInFlight <= 0 {
		return nil, gpu.Invalidf("%d frames in flight", opts.FramesInFlight)
	}
	if len(opts.Mesh.Vertices) == 0 || len(opts.Mesh.Indices) == 0 {
		return nil, gpu.Invalidf("empty mesh")
	}
	if opts.Texture == nil || opts.Texture.Size() == 0 {
		return nil, gpu.Invalidf("missing texture")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	r := &Renderer{
		drv:        opts.Device.Driver(),
		dev:        opts.Device,
		pool:       opts.Pool,
		swapchain:  opts.Swapchain,
		builder:    opts.Builder,
		pipeline:   opts.Pipeline,
		window:     opts.Window,
		indexCount: uint32(len(opts.Mesh.Indices)),
		spin:       opts.Spin,
		now:        now,
		start:      now(),
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"sync objects", func() error { return r.createSyncObjects(opts.FramesInFlight) }},
		{"command buffers", func() error { return r.createCommandBuffers(opts.FramesInFlight) }},
		{"vertex buffer", func() error { return r.createVertexBuffer(opts.Mesh.Vertices) }},
		{"index buffer", func() error { return r.createIndexBuffer(opts.Mesh.Indices) }},
		{"uniform buffers", func() error { return r.createUniformBuffers(opts.FramesInFlight) }},
		{"texture image", func() error { return r.createTextureImage(opts.Texture) }},
		{"texture sampler", r.createTextureSampler},
		{"descriptor pool", func() error { return r.createDescriptorPool(opts.FramesInFlight) }},
		{"descriptor sets", r.createDescriptorSets},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			r.Destroy()
			return nil, errors.Wrapf(err, "creating %s", step.name)
		}
	}

	slog.Debug("renderer created",
		"frames_in_flight", opts.FramesInFlight,
		"vertices", len(opts.Mesh.Vertices),
		"indices", len(opts.Mesh.Indices),
		"texture_width", opts.Texture.Width,
		"texture_height", opts.Texture.Height,
	)
	return r, nil
}

func (r *Renderer) createSyncObjects(count int) error {
	for i := 0; i < count; i++ {
		var (
			sync frameSync
			err  error
		)

		sync.imageAvailable, err = r.drv.CreateSemaphore(r.dev.Handle())
		if err != nil {
			return errors.Wrap(err, "failed to create image available semaphore")
		}
		r.frames = append(r.frames, sync)

		r.frames[i].renderFinished, err = r.drv.CreateSemaphore(r.dev.Handle())
		if err != nil {
			return errors.Wrap(err, "failed to create render finished semaphore")
		}

		r.frames[i].inFlight, err = r.drv.CreateFence(r.dev.Handle(), true)
		if err != nil {
			return errors.Wrap(err, "failed to create in flight fence")
		}
	}
	return nil
}

func (r *Renderer) createCommandBuffers(count int) error {
	buffers, err := r.pool.Allocate(count)
	if err != nil {
		return err
	}
	r.commandBuffers = buffers
	return nil
}

// CurrentFrame returns the index of the frame slot the next DrawFrame uses.
func (r *Renderer) CurrentFrame() int {
	return r.current
}

// FramesInFlight returns the number of frame slots.
func (r *Renderer) FramesInFlight() int {
	return len(r.frames)
}

// VertexBuffer returns the device local vertex buffer.
func (r *Renderer) VertexBuffer() device.Buffer {
	return r.vertexBuffer
}

// IndexBuffer returns the device local index buffer.
func (r *Renderer) IndexBuffer() device.Buffer {
	return r.indexBuffer
}

// TextureImage returns the sampled texture image.
func (r *Renderer) TextureImage() device.Image {
	return r.texture
}

// Pipeline returns the pipeline frames are currently drawn with.
func (r *Renderer) Pipeline() *pipeline.Pipeline {
	return r.pipeline
}

// Destroy waits for the device to become idle and releases everything the
// renderer created in the reverse order of creation. The pipeline is left to
// the caller.
func (r *Renderer) Destroy() {
	if r == nil {
		return
	}
	if err := r.dev.WaitIdle(); err != nil {
		slog.Warn("destroying renderer without idle device", "error", err)
	}

	handle := r.dev.Handle()

	if r.descriptorPool != vk.NullDescriptorPool {
		r.drv.DestroyDescriptorPool(handle, r.descriptorPool)
		r.descriptorPool = vk.NullDescriptorPool
	}
	r.descriptorSets = nil

	if r.sampler != vk.NullSampler {
		r.drv.DestroySampler(handle, r.sampler)
		r.sampler = vk.NullSampler
	}
	if r.textureView != vk.NullImageView {
		r.drv.DestroyImageView(handle, r.textureView)
		r.textureView = vk.NullImageView
	}
	r.dev.DestroyImage(r.texture)
	r.texture = device.Image{}

	for i := len(r.uniformBuffers) - 1; i >= 0; i-- {
		r.dev.DestroyBuffer(r.uniformBuffers[i])
	}
	r.uniformBuffers = nil

	r.dev.DestroyBuffer(r.indexBuffer)
	r.indexBuffer = device.Buffer{}
	r.dev.DestroyBuffer(r.vertexBuffer)
	r.vertexBuffer = device.Buffer{}

	r.pool.Free(r.commandBuffers)
	r.commandBuffers = nil

	for i := len(r.frames) - 1; i >= 0; i-- {
		sync := r.frames[i]
		if sync.inFlight != vk.NullFence {
			r.drv.DestroyFence(handle, sync.inFlight)
		}
		if sync.renderFinished != vk.NullSemaphore {
			r.drv.DestroySemaphore(handle, sync.renderFinished)
		}
		if sync.imageAvailable != vk.NullSemaphore {
			r.drv.DestroySemaphore(handle, sync.imageAvailable)
		}
	}
	r.frames = nil
}

package render_test

import (
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/commands"
	"github.com/NocaToca/Calico/device"
	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/gpu/gputest"
	"github.com/NocaToca/Calico/models"
	"github.com/NocaToca/Calico/pipeline"
	"github.com/NocaToca/Calico/render"
	"github.com/NocaToca/Calico/shaders"
	"github.com/NocaToca/Calico/swapchain"
	"github.com/NocaToca/Calico/textures"
	"github.com/NocaToca/Calico/unsafer"
)

type window struct {
	// sizes are returned by FramebufferSize. WaitEvents moves on to the next
	// one until only the last is left.
	sizes   [][2]int
	resized bool
	waits   int
}

func (w *window) FramebufferSize() (int, int) {
	return w.sizes[0][0], w.sizes[0][1]
}

func (w *window) WaitEvents() {
	w.waits++
	if len(w.sizes) > 1 {
		w.sizes = w.sizes[1:]
	}
}

func (w *window) Resized() bool {
	return w.resized
}

func (w *window) ClearResized() {
	w.resized = false
}

type fixture struct {
	fake      *gputest.Fake
	pd        *gputest.PhysicalDevice
	dev       *device.Device
	pool      *commands.Pool
	window    *window
	swapchain *swapchain.Manager
	opts      render.Options
}

func newFixture(t *testing.T, frames int) *fixture {
	t.Helper()

	f := &fixture{
		pd:     gputest.NewPhysicalDevice("gpu"),
		window: &window{sizes: [][2]int{{800, 600}}},
	}
	f.fake = gputest.New(f.pd)
	surface := gputest.Handle[vk.Surface](f.fake)

	c, err := device.Select(f.fake, gputest.Handle[vk.Instance](f.fake), surface, device.DefaultRequirements())
	require.NoError(t, err)
	f.dev, err = device.Create(f.fake, c, device.DefaultRequirements(), nil)
	require.NoError(t, err)
	f.pool, err = commands.NewPool(f.dev)
	require.NoError(t, err)

	f.swapchain = swapchain.New(f.dev, f.pool, surface, f.window)
	require.NoError(t, f.swapchain.Create())

	builder := pipeline.NewBuilder(f.dev, []shaders.Source{
		{Stage: shaders.StageVertex, Code: []byte{1, 2, 3, 4}},
		{Stage: shaders.StageFragment, Code: []byte{5, 6, 7, 8}},
	}, models.VertexLayout())
	pipe, err := builder.Build(f.swapchain.Format(), f.swapchain.DepthFormat())
	require.NoError(t, err)
	require.NoError(t, f.swapchain.CreateFramebuffers(pipe.RenderPass()))

	f.opts = render.Options{
		Device:         f.dev,
		Pool:           f.pool,
		Swapchain:      f.swapchain,
		Builder:        builder,
		Pipeline:       pipe,
		Window:         f.window,
		Mesh:           models.Quad(),
		Texture:        textures.Checkerboard(4, 2, color.RGBA{255, 255, 255, 255}, color.RGBA{0, 0, 0, 255}),
		FramesInFlight: frames,
	}
	return f
}

func (f *fixture) renderer(t *testing.T) *render.Renderer {
	t.Helper()

	r, err := render.New(f.opts)
	require.NoError(t, err)

	t.Cleanup(func() {
		r.Destroy()
		r.Pipeline().Destroy()
		f.swapchain.Destroy()
		f.pool.Destroy()
		f.dev.Destroy()
		assert.Empty(t, f.fake.Violations)
	})
	return r
}

// frameSubmits counts the submits which wait on an acquired image. Single use
// transfers and layout transitions never wait on a semaphore.
func (f *fixture) frameSubmits() int {
	n := 0
	for _, submit := range f.fake.Submits {
		if submit.WaitSemaphoreCount > 0 {
			n++
		}
	}
	return n
}

func (f *fixture) lastCommandBuffer(t *testing.T) vk.CommandBuffer {
	t.Helper()
	require.NotEmpty(t, f.fake.Submits)
	submit := f.fake.Submits[len(f.fake.Submits)-1]
	require.Len(t, submit.PCommandBuffers, 1)
	return submit.PCommandBuffers[0]
}

func TestNew(t *testing.T) {
	f := newFixture(t, 2)
	r := f.renderer(t)

	assert.Equal(t, 2, r.FramesInFlight())
	assert.Equal(t, 0, r.CurrentFrame())

	require.Len(t, f.fake.Samplers, 1)
	assert.Equal(t, vk.Bool32(vk.True), f.fake.Samplers[0].AnisotropyEnable)
	assert.Equal(t, float32(16), f.fake.Samplers[0].MaxAnisotropy)

	assert.Equal(t, f.opts.Texture.Pixels, f.fake.ImageContents(r.TextureImage().Handle))
	assert.Equal(t, 2, f.fake.Count("CreateFence"))
	assert.Equal(t, 4, f.fake.Count("CreateSemaphore"))
}

func TestNewInvalid(t *testing.T) {
	f := newFixture(t, 0)
	_, err := render.New(f.opts)
	assert.True(t, errors.Is(err, gpu.ErrInvalidUsage))

	f.opts.FramesInFlight = 2
	f.opts.Texture = nil
	_, err = render.New(f.opts)
	assert.True(t, errors.Is(err, gpu.ErrInvalidUsage))

	f.opts.Pipeline.Destroy()
	f.swapchain.Destroy()
	f.pool.Destroy()
	f.dev.Destroy()
	assert.Empty(t, f.fake.Violations)
}

func TestNewFailureReleasesEverything(t *testing.T) {
	f := newFixture(t, 2)
	f.fake.Fail["CreateDescriptorPool"] = vk.ErrorOutOfDeviceMemory

	_, err := render.New(f.opts)
	require.Error(t, err)
	assert.Equal(t, gpu.KindDeviceMemory, gpu.KindOf(err))

	f.opts.Pipeline.Destroy()
	f.swapchain.Destroy()
	f.pool.Destroy()
	f.dev.Destroy()
	assert.Empty(t, f.fake.Violations)
	assert.Empty(t, f.fake.Live())
}

func TestUploadRoundTrip(t *testing.T) {
	f := newFixture(t, 2)
	r := f.renderer(t)

	vertices, err := r.ReadBuffer(r.VertexBuffer())
	require.NoError(t, err)
	assert.Equal(t, unsafer.SliceToBytes(f.opts.Mesh.Vertices), vertices)

	indices, err := r.ReadBuffer(r.IndexBuffer())
	require.NoError(t, err)
	assert.Equal(t, unsafer.SliceToBytes(f.opts.Mesh.Indices), indices)
}

func TestFramesRoundRobin(t *testing.T) {
	for _, frames := range []int{1, 2, 3} {
		f := newFixture(t, frames)
		r := f.renderer(t)

		for i := 1; i <= 2*frames+1; i++ {
			require.NoError(t, r.DrawFrame())
			assert.Equal(t, i%frames, r.CurrentFrame())
		}
	}
}

func TestFenceWaitPrecedesResets(t *testing.T) {
	f := newFixture(t, 2)
	r := f.renderer(t)

	for i := 0; i < 6; i++ {
		require.NoError(t, r.DrawFrame())
	}

	var protocol []string
	for _, name := range f.fake.Names() {
		switch name {
		case "WaitForFences", "ResetFences", "ResetCommandBuffer":
			protocol = append(protocol, name)
		}
	}

	require.Len(t, protocol, 18)
	for i := 0; i < len(protocol); i += 3 {
		assert.Equal(t,
			[]string{"WaitForFences", "ResetFences", "ResetCommandBuffer"},
			protocol[i:i+3],
		)
	}
}

func TestRecordedCommands(t *testing.T) {
	f := newFixture(t, 2)
	r := f.renderer(t)

	require.NoError(t, r.DrawFrame())

	assert.Equal(t, []string{
		"BeginRenderPass",
		"BindPipeline",
		"SetViewport",
		"SetScissor",
		"BindVertexBuffers",
		"BindIndexBuffer",
		"BindDescriptorSets",
		"DrawIndexed(6)",
		"EndRenderPass",
	}, f.fake.Recorded(f.lastCommandBuffer(t)))

	require.NotEmpty(t, f.fake.Viewports)
	assert.Equal(t, float32(800), f.fake.Viewports[0].Width)
	assert.Equal(t, float32(600), f.fake.Viewports[0].Height)
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, f.fake.Scissors[0].Extent)

	submit := f.fake.Submits[len(f.fake.Submits)-1]
	assert.Equal(t,
		[]vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		submit.PWaitDstStageMask,
	)

	require.Len(t, f.fake.Presents, 1)
	assert.Equal(t, submit.PSignalSemaphores, f.fake.Presents[0].PWaitSemaphores)
}

func TestAcquireOutOfDate(t *testing.T) {
	f := newFixture(t, 2)
	r := f.renderer(t)

	f.fake.AcquireResults = []vk.Result{vk.ErrorOutOfDate}
	submits := f.frameSubmits()

	require.NoError(t, r.DrawFrame())

	assert.Equal(t, 0, r.CurrentFrame())
	assert.Equal(t, submits, f.frameSubmits())
	assert.Equal(t, 0, f.fake.Count("ResetFences"))
	assert.Equal(t, 0, f.fake.Count("ResetCommandBuffer"))
	assert.Equal(t, 0, f.fake.Count("QueuePresent"))
	assert.Equal(t, 2, f.fake.Count("CreateSwapchain"))
	assert.Equal(t, swapchain.StateActive, f.swapchain.State())

	// The slot is still usable.
	require.NoError(t, r.DrawFrame())
	assert.Equal(t, 1, r.CurrentFrame())
}

func TestAcquireFailure(t *testing.T) {
	f := newFixture(t, 2)
	r := f.renderer(t)

	f.fake.AcquireResults = []vk.Result{vk.ErrorDeviceLost}
	submits := f.fake.Count("QueueSubmit")
	err := r.DrawFrame()
	require.Error(t, err)

	var resErr *gpu.ResultError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, vk.ErrorDeviceLost, resErr.Result)
	assert.Equal(t, submits, f.fake.Count("QueueSubmit"))
	assert.Equal(t, 0, f.frameSubmits())
}

func TestPresentRecreates(t *testing.T) {
	tests := []struct {
		name    string
		result  vk.Result
		resized bool
	}{
		{"out of date", vk.ErrorOutOfDate, false},
		{"suboptimal", vk.Suboptimal, false},
		{"resized", vk.Success, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2)
			r := f.renderer(t)

			f.fake.PresentResults = []vk.Result{tt.result}
			f.window.resized = tt.resized

			require.NoError(t, r.DrawFrame())

			assert.Equal(t, 1, r.CurrentFrame())
			assert.Equal(t, 2, f.fake.Count("CreateSwapchain"))
			assert.False(t, f.window.resized)

			require.NoError(t, r.DrawFrame())
			assert.Equal(t, 2, f.fake.Count("CreateSwapchain"))
		})
	}
}

func TestPresentFailure(t *testing.T) {
	f := newFixture(t, 2)
	r := f.renderer(t)

	f.fake.PresentResults = []vk.Result{vk.ErrorSurfaceLost}
	err := r.DrawFrame()
	require.Error(t, err)
	assert.Equal(t, 0, r.CurrentFrame())
}

func TestRecreateWhileMinimized(t *testing.T) {
	f := newFixture(t, 2)
	r := f.renderer(t)

	f.window.sizes = [][2]int{{0, 0}, {0, 0}, {1024, 768}}
	require.NoError(t, r.Recreate())

	assert.Equal(t, 2, f.window.waits)
	assert.Equal(t, 2, f.fake.Count("CreateSwapchain"))
	assert.Equal(t, 1, f.fake.Count("CreateGraphicsPipeline"))
}

func TestRecreateWaitsForBothAxes(t *testing.T) {
	f := newFixture(t, 2)
	r := f.renderer(t)

	f.pd.Capabilities.CurrentExtent = vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}
	f.window.sizes = [][2]int{{0, 768}, {1024, 0}, {1024, 768}}
	require.NoError(t, r.Recreate())

	assert.Equal(t, 2, f.window.waits)
	assert.Equal(t, vk.Extent2D{Width: 1024, Height: 768}, f.fake.SwapchainInfos[1].ImageExtent)
}

func TestRecreateRebuildsPipelineOnFormatChange(t *testing.T) {
	f := newFixture(t, 2)
	r := f.renderer(t)
	old := r.Pipeline()

	f.pd.Formats = []vk.SurfaceFormat{
		{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	require.NoError(t, r.Recreate())

	assert.NotSame(t, old, r.Pipeline())
	assert.True(t, r.Pipeline().Compatible(vk.FormatB8g8r8a8Unorm, vk.FormatD32Sfloat))
	assert.Equal(t, 2, f.fake.Count("CreateGraphicsPipeline"))
	assert.Equal(t, 1, f.fake.Count("DestroyPipeline"))

	require.NoError(t, r.DrawFrame())
}

func TestUniformBufferSpins(t *testing.T) {
	f := newFixture(t, 2)

	now := time.Unix(0, 0)
	f.opts.Spin = 1
	f.opts.Now = func() time.Time { return now }
	r := f.renderer(t)

	writes := f.fake.Count("WriteMemory")
	now = now.Add(time.Second)
	require.NoError(t, r.DrawFrame())
	assert.Equal(t, writes+1, f.fake.Count("WriteMemory"))
}

func TestTransforms(t *testing.T) {
	still := render.Transforms(0, vk.Extent2D{Width: 800, Height: 600})
	turned := render.Transforms(1, vk.Extent2D{Width: 800, Height: 600})

	assert.Equal(t, float32(1), still.Model[0][0])
	assert.NotEqual(t, still.Model, turned.Model)
	assert.Equal(t, still.View, turned.View)
	assert.Less(t, still.Proj[1][1], float32(0))

	// A zero extent does not divide by zero.
	zero := render.Transforms(0, vk.Extent2D{})
	assert.Equal(t, still.Proj[1][1], zero.Proj[1][1])
}

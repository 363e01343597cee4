package swapchain

import (
	"log/slog"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/commands"
	"github.com/NocaToca/Calico/device"
	"github.com/NocaToca/Calico/gpu"
)

// State is where a Manager is in its lifecycle.
type State int

// A swapchain is Active while it can be presented to, Stale once presentation
// reported it out of date or suboptimal and Rebuilding while it is recreated.
const (
	StateActive State = iota
	StateStale
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateStale:
		return "stale"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// FramebufferSizer reports the size of the drawable area of a window in
// pixels.
type FramebufferSizer interface {
	FramebufferSize() (width, height int)
}

// Manager creates and recreates the swapchain of a surface.
type Manager struct {
	dev     *device.Device
	drv     gpu.Driver
	pool    *commands.Pool
	surface vk.Surface
	window  FramebufferSizer

	handle       vk.Swapchain
	format       vk.SurfaceFormat
	presentMode  vk.PresentMode
	extent       vk.Extent2D
	images       []vk.Image
	views        []vk.ImageView
	depth        device.Image
	depthView    vk.ImageView
	framebuffers []vk.Framebuffer
	state        State
}

// New returns a manager for surface. Nothing is created until Create is
// called. The pool is used to move the depth image into its layout.
func New(dev *device.Device, pool *commands.Pool, surface vk.Surface, window FramebufferSizer) *Manager {
	return &Manager{
		dev:       dev,
		drv:       dev.Driver(),
		pool:      pool,
		surface:   surface,
		window:    window,
		handle:    vk.NullSwapchain,
		depthView: vk.NullImageView,
	}
}

// Create makes the swapchain, a view for each of its images and the depth
// buffer.
func (m *Manager) Create() error {
	support, err := QuerySupport(m.drv, m.dev.Physical().Handle, m.surface)
	if err != nil {
		return err
	}
	if !support.Adequate() {
		return errors.New("surface has no formats or present modes")
	}

	surfaceFormat := ChooseFormat(support.Formats)
	presentMode := ChoosePresentMode(support.PresentModes)
	width, height := m.window.FramebufferSize()
	extent := ChooseExtent(support.Capabilities, width, height)

	createInfo := BuildCreateInfo(
		m.surface,
		support,
		m.dev.Families(),
		surfaceFormat,
		presentMode,
		extent,
	)

	swapChain, err := m.drv.CreateSwapchain(m.dev.Handle(), &createInfo)
	if err != nil {
		return errors.Wrap(err, "failed to create swap chain")
	}
	m.handle = swapChain

	m.images, err = m.drv.SwapchainImages(m.dev.Handle(), m.handle)
	if err != nil {
		return errors.Wrap(err, "failed to get swap chain images")
	}

	m.format = surfaceFormat
	m.presentMode = presentMode
	m.extent = extent

	if err := m.createImageViews(); err != nil {
		return errors.Wrap(err, "createImageViews")
	}
	if err := m.createDepthResources(); err != nil {
		return errors.Wrap(err, "createDepthResources")
	}

	m.state = StateActive
	slog.Debug("swapchain created",
		"width", extent.Width,
		"height", extent.Height,
		"images", len(m.images),
		"format", surfaceFormat.Format,
		"present_mode", presentMode,
	)
	return nil
}

func (m *Manager) createImageViews() error {
	for i, swapChainImage := range m.images {
		imageView, err := m.dev.CreateImageView(
			swapChainImage,
			m.format.Format,
			vk.ImageAspectFlags(vk.ImageAspectColorBit),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to create image view %d", i)
		}

		m.views = append(m.views, imageView)
	}

	return nil
}

func (m *Manager) createDepthResources() error {
	depthFormat, err := m.dev.FindDepthFormat()
	if err != nil {
		return errors.Wrap(err, "could not find suitable depth image format")
	}

	m.depth, err = m.dev.CreateImage(
		m.extent.Width,
		m.extent.Height,
		depthFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	)
	if err != nil {
		return errors.Wrap(err, "could not create depth image")
	}

	m.depthView, err = m.dev.CreateImageView(
		m.depth.Handle,
		depthFormat,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit),
	)
	if err != nil {
		return errors.Wrap(err, "could not create depth image view")
	}

	return m.pool.TransitionImageLayout(
		m.depth.Handle,
		depthFormat,
		vk.ImageLayoutUndefined,
		vk.ImageLayoutDepthStencilAttachmentOptimal,
	)
}

// CreateFramebuffers creates one framebuffer per swapchain image with the
// image view as attachment 0 and the depth view as attachment 1.
func (m *Manager) CreateFramebuffers(renderPass vk.RenderPass) error {
	m.destroyFramebuffers()
	m.framebuffers = make([]vk.Framebuffer, 0, len(m.views))

	for i, swapChainView := range m.views {
		attachments := []vk.ImageView{
			swapChainView,
			m.depthView,
		}

		frameBufferInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           m.extent.Width,
			Height:          m.extent.Height,
			Layers:          1,
		}

		frameBuffer, err := m.drv.CreateFramebuffer(m.dev.Handle(), &frameBufferInfo)
		if err != nil {
			return errors.Wrapf(err, "failed to create frame buffer %d", i)
		}

		m.framebuffers = append(m.framebuffers, frameBuffer)
	}

	return nil
}

func (m *Manager) destroyFramebuffers() {
	for _, frameBuffer := range m.framebuffers {
		m.drv.DestroyFramebuffer(m.dev.Handle(), frameBuffer)
	}
	m.framebuffers = nil
}

// MarkStale records that the swapchain no longer matches the surface.
func (m *Manager) MarkStale() {
	if m.state == StateActive {
		m.state = StateStale
	}
}

// Recreate waits for the device to become idle, destroys everything created
// by Create and CreateFramebuffers and creates the swapchain, views and depth
// buffer anew for the current surface. Framebuffers are not recreated. It
// reports whether the color or the depth format changed, in which case
// pipelines built for the old formats can no longer be used.
func (m *Manager) Recreate() (bool, error) {
	m.state = StateRebuilding

	if err := m.dev.WaitIdle(); err != nil {
		return false, err
	}

	oldColor, oldDepth := m.format.Format, m.depth.Format
	m.cleanup()

	if err := m.Create(); err != nil {
		return false, errors.Wrap(err, "recreating swap chain")
	}

	changed := m.format.Format != oldColor || m.depth.Format != oldDepth
	slog.Info("swapchain recreated",
		"width", m.extent.Width,
		"height", m.extent.Height,
		"format_changed", changed,
	)
	return changed, nil
}

// cleanup destroys resources in the reverse order of their creation.
func (m *Manager) cleanup() {
	m.destroyFramebuffers()

	if m.depthView != vk.NullImageView {
		m.drv.DestroyImageView(m.dev.Handle(), m.depthView)
		m.depthView = vk.NullImageView
	}

	m.dev.DestroyImage(m.depth)
	m.depth = device.Image{}

	for _, imageView := range m.views {
		m.drv.DestroyImageView(m.dev.Handle(), imageView)
	}
	m.views = nil

	if m.handle != vk.NullSwapchain {
		m.drv.DestroySwapchain(m.dev.Handle(), m.handle)
		m.handle = vk.NullSwapchain
	}
	m.images = nil
}

// Destroy releases everything owned by the manager.
func (m *Manager) Destroy() {
	if m == nil {
		return
	}
	m.cleanup()
}

// Handle returns the swapchain.
func (m *Manager) Handle() vk.Swapchain {
	return m.handle
}

// Extent returns the size of the swapchain images.
func (m *Manager) Extent() vk.Extent2D {
	return m.extent
}

// Format returns the format of the swapchain images.
func (m *Manager) Format() vk.Format {
	return m.format.Format
}

// PresentMode returns the present mode in use.
func (m *Manager) PresentMode() vk.PresentMode {
	return m.presentMode
}

// DepthFormat returns the format of the depth buffer.
func (m *Manager) DepthFormat() vk.Format {
	return m.depth.Format
}

// ImageCount returns how many images the swapchain has.
func (m *Manager) ImageCount() int {
	return len(m.images)
}

// Framebuffer returns the framebuffer of image i.
func (m *Manager) Framebuffer(i uint32) vk.Framebuffer {
	return m.framebuffers[i]
}

// State returns where the manager is in its lifecycle.
func (m *Manager) State() State {
	return m.state
}

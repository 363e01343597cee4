// Package window opens the GLFW window frames are presented to.
//
// All functions must be called from the main thread.
package window

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Window is a GLFW window without a client API context. It remembers
// framebuffer resizes until they are cleared.
type Window struct {
	handle  *glfw.Window
	resized bool
}

// New initializes GLFW and opens a resizable window.
func New(width, height int, title string) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "glfw.Init")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	handle, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "creating window")
	}

	w := &Window{handle: handle}
	handle.SetFramebufferSizeCallback(w.frameBufferResizeCallback)
	return w, nil
}

func (w *Window) frameBufferResizeCallback(
	_ *glfw.Window,
	width int,
	height int,
) {
	w.resized = true
}

// InitVulkan points the Vulkan bindings at the loader GLFW found. It must be
// called after New and before any other Vulkan call.
func InitVulkan() error {
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	return errors.Wrap(vk.Init(), "failed to init Vulkan Go")
}

// RequiredExtensions returns the instance extensions needed to present to the
// window.
func (w *Window) RequiredExtensions() []string {
	return w.handle.GetRequiredInstanceExtensions()
}

// CreateSurface creates a surface for the window.
func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surfacePtr, err := w.handle.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "cannot create surface within GLFW window")
	}
	return vk.SurfaceFromPointer(surfacePtr), nil
}

// ShouldClose reports whether the user asked to close the window.
func (w *Window) ShouldClose() bool {
	return w.handle.ShouldClose()
}

// PollEvents processes pending events without blocking.
func (w *Window) PollEvents() {
	glfw.PollEvents()
}

// WaitEvents blocks until at least one event arrives.
func (w *Window) WaitEvents() {
	glfw.WaitEvents()
}

// FramebufferSize returns the size of the framebuffer in pixels.
func (w *Window) FramebufferSize() (int, int) {
	return w.handle.GetFramebufferSize()
}

// Resized reports whether the framebuffer changed size since the last
// ClearResized.
func (w *Window) Resized() bool {
	return w.resized
}

// ClearResized forgets about past resizes.
func (w *Window) ClearResized() {
	w.resized = false
}

// Destroy closes the window and terminates GLFW.
func (w *Window) Destroy() {
	w.handle.Destroy()
	glfw.Terminate()
}

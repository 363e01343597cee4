// Package swapchain owns the swapchain, the views of its images, the depth
// buffer shared by every image and the framebuffers rendering into them.
package swapchain

import (
	"cmp"
	"math"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/queues"
)

// Support describes what a surface offers on a physical device.
type Support struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// Adequate returns true when there is at least one format and one present
// mode to choose from.
func (s Support) Adequate() bool {
	return len(s.Formats) > 0 && len(s.PresentModes) > 0
}

// QuerySupport asks the driver what surface supports on device.
func QuerySupport(drv gpu.PhysicalDevices, device vk.PhysicalDevice, surface vk.Surface) (Support, error) {
	var (
		details Support
		err     error
	)

	details.Capabilities, err = drv.SurfaceCapabilities(device, surface)
	if err != nil {
		return details, errors.Wrap(err, "querying surface capabilities")
	}

	details.Formats, err = drv.SurfaceFormats(device, surface)
	if err != nil {
		return details, errors.Wrap(err, "querying surface formats")
	}

	details.PresentModes, err = drv.SurfacePresentModes(device, surface)
	if err != nil {
		return details, errors.Wrap(err, "querying surface present modes")
	}

	return details, nil
}

// ChooseFormat prefers 8 bit BGRA sRGB and falls back to the first format
// offered. There must be at least one.
func ChooseFormat(availableFormats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == vk.FormatB8g8r8a8Srgb &&
			format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

// ChoosePresentMode prefers mailbox and falls back to FIFO which every device
// supports.
func ChoosePresentMode(available []vk.PresentMode) vk.PresentMode {
	for _, mode := range available {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}

	return vk.PresentModeFifo
}

// ChooseExtent returns the current extent of the surface. When the surface
// leaves the choice to the application the framebuffer size is used, clamped
// into the extents the surface supports.
func ChooseExtent(capabilities vk.SurfaceCapabilities, width, height int) vk.Extent2D {
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		return capabilities.CurrentExtent
	}

	actualExtent := vk.Extent2D{
		Width:  uint32(max(width, 0)),
		Height: uint32(max(height, 0)),
	}

	actualExtent.Width = clamp(
		actualExtent.Width,
		capabilities.MinImageExtent.Width,
		capabilities.MaxImageExtent.Width,
	)

	actualExtent.Height = clamp(
		actualExtent.Height,
		capabilities.MinImageExtent.Height,
		capabilities.MaxImageExtent.Height,
	)

	return actualExtent
}

func clamp[T cmp.Ordered](val, min, max T) T {
	if val < min {
		val = min
	}
	if val > max {
		val = max
	}
	return val
}

// ImageCount asks for one image more than the minimum so the application
// never has to wait for the driver to release one. A maximum of zero means
// there is no limit.
func ImageCount(capabilities vk.SurfaceCapabilities) uint32 {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 &&
		imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// BuildCreateInfo describes a swapchain for surface. Images are shared
// concurrently between the graphics and present families when they differ
// and owned exclusively otherwise.
func BuildCreateInfo(
	surface vk.Surface,
	support Support,
	families queues.FamilyIndices,
	surfaceFormat vk.SurfaceFormat,
	presentMode vk.PresentMode,
	extent vk.Extent2D,
) vk.SwapchainCreateInfo {
	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    ImageCount(support.Capabilities),
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageFormat:      surfaceFormat.Format,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	if !families.Shared() {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{
			families.Graphics.Get(),
			families.Present.Get(),
		}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
		createInfo.QueueFamilyIndexCount = 0
	}

	return createInfo
}

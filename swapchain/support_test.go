package swapchain_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/optional"
	"github.com/NocaToca/Calico/queues"
	"github.com/NocaToca/Calico/swapchain"
)

func TestChooseFormat(t *testing.T) {
	srgb := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	unorm := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	rgba := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	assert.Equal(t, srgb, swapchain.ChooseFormat([]vk.SurfaceFormat{unorm, srgb}))
	assert.Equal(t, rgba, swapchain.ChooseFormat([]vk.SurfaceFormat{rgba, unorm}))
}

func TestChoosePresentMode(t *testing.T) {
	assert.Equal(t, vk.PresentModeMailbox, swapchain.ChoosePresentMode(
		[]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeImmediate, vk.PresentModeMailbox},
	))
	assert.Equal(t, vk.PresentModeFifo, swapchain.ChoosePresentMode(
		[]vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo},
	))
	assert.Equal(t, vk.PresentModeFifo, swapchain.ChoosePresentMode(nil))
}

func TestImageCount(t *testing.T) {
	tests := []struct {
		min, max, want uint32
	}{
		{min: 2, max: 8, want: 3},
		{min: 2, max: 0, want: 3},
		{min: 3, max: 3, want: 3},
		{min: 1, max: 2, want: 2},
	}

	for _, test := range tests {
		caps := vk.SurfaceCapabilities{MinImageCount: test.min, MaxImageCount: test.max}
		got := swapchain.ImageCount(caps)
		assert.Equal(t, test.want, got, "min %d max %d", test.min, test.max)
		assert.GreaterOrEqual(t, got, test.min)
		if test.max > 0 {
			assert.LessOrEqual(t, got, test.max)
		}
	}
}

func TestChooseExtentCurrent(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: 800, Height: 600},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
	}
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, swapchain.ChooseExtent(caps, 1920, 1080))
}

func TestChooseExtentFromFramebuffer(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 100, Height: 100},
		MaxImageExtent: vk.Extent2D{Width: 1000, Height: 1000},
	}

	assert.Equal(t, vk.Extent2D{Width: 640, Height: 480}, swapchain.ChooseExtent(caps, 640, 480))
	assert.Equal(t, vk.Extent2D{Width: 100, Height: 1000}, swapchain.ChooseExtent(caps, 10, 5000))
	assert.Equal(t, vk.Extent2D{Width: 100, Height: 100}, swapchain.ChooseExtent(caps, -1, 0))
}

func TestChooseExtentAlwaysWithinLimits(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < 10000; i++ {
		minW, minH := rnd.Uint32()%4096, rnd.Uint32()%4096
		maxW, maxH := minW+rnd.Uint32()%4096, minH+rnd.Uint32()%4096

		caps := vk.SurfaceCapabilities{
			MinImageExtent: vk.Extent2D{Width: minW, Height: minH},
			MaxImageExtent: vk.Extent2D{Width: maxW, Height: maxH},
		}
		if rnd.Intn(2) == 0 {
			caps.CurrentExtent = vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}
		} else {
			caps.CurrentExtent = vk.Extent2D{
				Width:  minW + rnd.Uint32()%(maxW-minW+1),
				Height: minH + rnd.Uint32()%(maxH-minH+1),
			}
		}

		width := rnd.Intn(20000) - 1000
		height := rnd.Intn(20000) - 1000
		got := swapchain.ChooseExtent(caps, width, height)

		assert.GreaterOrEqual(t, got.Width, minW)
		assert.LessOrEqual(t, got.Width, maxW)
		assert.GreaterOrEqual(t, got.Height, minH)
		assert.LessOrEqual(t, got.Height, maxH)
	}
}

func TestBuildCreateInfoSharing(t *testing.T) {
	support := swapchain.Support{
		Capabilities: vk.SurfaceCapabilities{
			MinImageCount:    2,
			MaxImageCount:    3,
			CurrentTransform: vk.SurfaceTransformIdentityBit,
		},
	}
	format := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	extent := vk.Extent2D{Width: 800, Height: 600}

	t.Run("distinct families", func(t *testing.T) {
		families := queues.FamilyIndices{Graphics: optional.Of[uint32](0), Present: optional.Of[uint32](2)}

		info := swapchain.BuildCreateInfo(vk.NullSurface, support, families, format, vk.PresentModeFifo, extent)
		assert.Equal(t, vk.SharingModeConcurrent, info.ImageSharingMode)
		assert.Equal(t, uint32(2), info.QueueFamilyIndexCount)
		assert.Equal(t, []uint32{0, 2}, info.PQueueFamilyIndices)
	})

	t.Run("same family", func(t *testing.T) {
		families := queues.FamilyIndices{Graphics: optional.Of[uint32](1), Present: optional.Of[uint32](1)}

		info := swapchain.BuildCreateInfo(vk.NullSurface, support, families, format, vk.PresentModeFifo, extent)
		assert.Equal(t, vk.SharingModeExclusive, info.ImageSharingMode)
		assert.Equal(t, uint32(0), info.QueueFamilyIndexCount)
		assert.Empty(t, info.PQueueFamilyIndices)
	})

	families := queues.FamilyIndices{Graphics: optional.Of[uint32](0), Present: optional.Of[uint32](0)}
	info := swapchain.BuildCreateInfo(vk.NullSurface, support, families, format, vk.PresentModeMailbox, extent)
	assert.Equal(t, uint32(3), info.MinImageCount)
	assert.Equal(t, extent, info.ImageExtent)
	assert.Equal(t, vk.FormatB8g8r8a8Srgb, info.ImageFormat)
	assert.Equal(t, vk.PresentModeMailbox, info.PresentMode)
	assert.Equal(t, uint32(1), info.ImageArrayLayers)
}

package commands_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/commands"
	"github.com/NocaToca/Calico/device"
	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/gpu/gputest"
)

func newPool(t *testing.T, fake *gputest.Fake) (*device.Device, *commands.Pool) {
	t.Helper()

	c, err := device.Select(
		fake,
		gputest.Handle[vk.Instance](fake),
		gputest.Handle[vk.Surface](fake),
		device.DefaultRequirements(),
	)
	require.NoError(t, err)

	dev, err := device.Create(fake, c, device.DefaultRequirements(), nil)
	require.NoError(t, err)

	pool, err := commands.NewPool(dev)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Destroy()
		dev.Destroy()
		assert.Empty(t, fake.Violations)
	})
	return dev, pool
}

func TestSingleUse(t *testing.T) {
	fake := gputest.New(gputest.NewPhysicalDevice("gpu"))
	_, pool := newPool(t, fake)

	var recorded vk.CommandBuffer
	err := pool.SingleUse(func(cb vk.CommandBuffer) {
		recorded = cb
		fake.CmdDrawIndexed(cb, 3, 1)
	})
	require.NoError(t, err)

	assert.NotNil(t, recorded)
	assert.Equal(t, 1, fake.Count("QueueSubmit"))
	assert.Equal(t, 1, fake.Count("QueueWaitIdle"))
	assert.Equal(t, 1, fake.Count("FreeCommandBuffers"))

	names := fake.Names()
	assert.Equal(t, []string{
		"AllocateCommandBuffers",
		"BeginCommandBuffer",
		"EndCommandBuffer",
		"QueueSubmit",
		"QueueWaitIdle",
		"FreeCommandBuffers",
	}, names[len(names)-6:])
}

func TestSingleUseFreesOnFailure(t *testing.T) {
	fake := gputest.New(gputest.NewPhysicalDevice("gpu"))
	_, pool := newPool(t, fake)
	fake.Fail["QueueSubmit"] = vk.ErrorDeviceLost

	err := pool.SingleUse(func(cb vk.CommandBuffer) {})
	assert.Error(t, err)
	assert.Equal(t, 1, fake.Count("FreeCommandBuffers"))
}

func TestCopyBuffer(t *testing.T) {
	fake := gputest.New(gputest.NewPhysicalDevice("gpu"))
	dev, pool := newPool(t, fake)

	src, err := dev.CreateBuffer(
		4,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit),
	)
	require.NoError(t, err)
	defer dev.DestroyBuffer(src)

	dst, err := dev.CreateBuffer(
		4,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	)
	require.NoError(t, err)
	defer dev.DestroyBuffer(dst)

	require.NoError(t, dev.Write(src, []byte{9, 8, 7, 6}))
	require.NoError(t, pool.CopyBuffer(src.Handle, dst.Handle, 4))

	assert.Equal(t, []byte{9, 8, 7, 6}, fake.BufferContents(dst.Handle))
}

func TestTransitionImageLayout(t *testing.T) {
	tests := []struct {
		name      string
		format    vk.Format
		old, new  vk.ImageLayout
		aspect    vk.ImageAspectFlags
		dstAccess vk.AccessFlags
	}{
		{
			name:      "upload",
			format:    vk.FormatR8g8b8a8Srgb,
			old:       vk.ImageLayoutUndefined,
			new:       vk.ImageLayoutTransferDstOptimal,
			aspect:    vk.ImageAspectFlags(vk.ImageAspectColorBit),
			dstAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		},
		{
			name:      "sampling",
			format:    vk.FormatR8g8b8a8Srgb,
			old:       vk.ImageLayoutTransferDstOptimal,
			new:       vk.ImageLayoutShaderReadOnlyOptimal,
			aspect:    vk.ImageAspectFlags(vk.ImageAspectColorBit),
			dstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
		},
		{
			name:   "depth",
			format: vk.FormatD32Sfloat,
			old:    vk.ImageLayoutUndefined,
			new:    vk.ImageLayoutDepthStencilAttachmentOptimal,
			aspect: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			dstAccess: vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit) |
				vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		},
		{
			name:   "depth stencil",
			format: vk.FormatD24UnormS8Uint,
			old:    vk.ImageLayoutUndefined,
			new:    vk.ImageLayoutDepthStencilAttachmentOptimal,
			aspect: vk.ImageAspectFlags(vk.ImageAspectDepthBit) |
				vk.ImageAspectFlags(vk.ImageAspectStencilBit),
			dstAccess: vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit) |
				vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fake := gputest.New(gputest.NewPhysicalDevice("gpu"))
			_, pool := newPool(t, fake)
			image := gputest.Handle[vk.Image](fake)

			err := pool.TransitionImageLayout(image, test.format, test.old, test.new)
			require.NoError(t, err)

			require.Len(t, fake.Barriers, 1)
			barrier := fake.Barriers[0]
			assert.Equal(t, image, barrier.Image)
			assert.Equal(t, test.old, barrier.OldLayout)
			assert.Equal(t, test.new, barrier.NewLayout)
			assert.Equal(t, test.aspect, barrier.SubresourceRange.AspectMask)
			assert.Equal(t, test.dstAccess, barrier.DstAccessMask)
		})
	}
}

func TestTransitionImageLayoutUnsupported(t *testing.T) {
	fake := gputest.New(gputest.NewPhysicalDevice("gpu"))
	_, pool := newPool(t, fake)

	err := pool.TransitionImageLayout(
		gputest.Handle[vk.Image](fake),
		vk.FormatR8g8b8a8Srgb,
		vk.ImageLayoutShaderReadOnlyOptimal,
		vk.ImageLayoutTransferDstOptimal,
	)
	assert.True(t, errors.Is(err, gpu.ErrInvalidUsage))
	assert.Zero(t, fake.Count("AllocateCommandBuffers"))
}

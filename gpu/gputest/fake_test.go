package gputest_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/gpu/gputest"
)

var _ gpu.Driver = (*gputest.Fake)(nil)

func newDevice(t *testing.T, fake *gputest.Fake) vk.Device {
	t.Helper()

	pds, err := fake.EnumeratePhysicalDevices(gputest.Handle[vk.Instance](fake))
	require.NoError(t, err)
	require.NotEmpty(t, pds)

	dev, err := fake.CreateDevice(pds[0], &vk.DeviceCreateInfo{})
	require.NoError(t, err)
	return dev
}

func TestHandlesAreDistinct(t *testing.T) {
	fake := gputest.New(gputest.NewPhysicalDevice("a"))
	dev := newDevice(t, fake)

	first, err := fake.CreateFence(dev, true)
	require.NoError(t, err)
	second, err := fake.CreateFence(dev, true)
	require.NoError(t, err)

	assert.NotZero(t, gputest.ID(first))
	assert.NotEqual(t, gputest.ID(first), gputest.ID(second))
	assert.False(t, gputest.SameHandle(first, second))
	assert.True(t, gputest.SameHandle(first, first))
}

func TestWaitingOnUnsignaledFenceIsViolation(t *testing.T) {
	fake := gputest.New(gputest.NewPhysicalDevice("a"))
	dev := newDevice(t, fake)

	fence, err := fake.CreateFence(dev, false)
	require.NoError(t, err)

	err = fake.WaitForFences(dev, []vk.Fence{fence}, math.MaxUint64)
	assert.Error(t, err)
	assert.Len(t, fake.Violations, 1)
}

func TestSubmitCompletesOnFenceWait(t *testing.T) {
	fake := gputest.New(gputest.NewPhysicalDevice("a"))
	dev := newDevice(t, fake)
	queue := fake.DeviceQueue(dev, 0, 0)

	pool, err := fake.CreateCommandPool(dev, &vk.CommandPoolCreateInfo{})
	require.NoError(t, err)
	cbs, err := fake.AllocateCommandBuffers(dev, &vk.CommandBufferAllocateInfo{
		CommandPool:        pool,
		CommandBufferCount: 1,
	})
	require.NoError(t, err)
	fence, err := fake.CreateFence(dev, false)
	require.NoError(t, err)

	require.NoError(t, fake.BeginCommandBuffer(cbs[0], &vk.CommandBufferBeginInfo{}))
	fake.CmdDrawIndexed(cbs[0], 6, 1)
	require.NoError(t, fake.EndCommandBuffer(cbs[0]))
	require.NoError(t, fake.QueueSubmit(queue, []vk.SubmitInfo{{
		CommandBufferCount: 1,
		PCommandBuffers:    cbs,
	}}, fence))

	assert.False(t, fake.FenceSignaled(fence))
	require.NoError(t, fake.BeginCommandBuffer(cbs[0], &vk.CommandBufferBeginInfo{}))
	assert.Len(t, fake.Violations, 1, "re-recording in flight work")

	fake.Violations = nil
	require.NoError(t, fake.EndCommandBuffer(cbs[0]))
	require.NoError(t, fake.DeviceWaitIdle(dev))
	assert.True(t, fake.FenceSignaled(fence))
}

func TestCopyBufferRunsOnSubmit(t *testing.T) {
	fake := gputest.New(gputest.NewPhysicalDevice("a"))
	dev := newDevice(t, fake)
	queue := fake.DeviceQueue(dev, 0, 0)

	newBuffer := func(memoryType uint32) (vk.Buffer, vk.DeviceMemory) {
		buf, err := fake.CreateBuffer(dev, &vk.BufferCreateInfo{Size: 4})
		require.NoError(t, err)
		mem, err := fake.AllocateMemory(dev, &vk.MemoryAllocateInfo{
			AllocationSize:  4,
			MemoryTypeIndex: memoryType,
		})
		require.NoError(t, err)
		require.NoError(t, fake.BindBufferMemory(dev, buf, mem, 0))
		return buf, mem
	}
	src, srcMem := newBuffer(1)
	dst, _ := newBuffer(0)
	require.NoError(t, fake.WriteMemory(dev, srcMem, 0, []byte{1, 2, 3, 4}))

	pool, err := fake.CreateCommandPool(dev, &vk.CommandPoolCreateInfo{})
	require.NoError(t, err)
	cbs, err := fake.AllocateCommandBuffers(dev, &vk.CommandBufferAllocateInfo{
		CommandPool:        pool,
		CommandBufferCount: 1,
	})
	require.NoError(t, err)

	require.NoError(t, fake.BeginCommandBuffer(cbs[0], &vk.CommandBufferBeginInfo{}))
	fake.CmdCopyBuffer(cbs[0], src, dst, []vk.BufferCopy{{Size: 4}})
	require.NoError(t, fake.EndCommandBuffer(cbs[0]))
	assert.Equal(t, []string{"CopyBuffer"}, fake.Recorded(cbs[0]))

	require.NoError(t, fake.QueueSubmit(queue, []vk.SubmitInfo{{
		CommandBufferCount: 1,
		PCommandBuffers:    cbs,
	}}, vk.NullFence))
	require.NoError(t, fake.QueueWaitIdle(queue))

	assert.Equal(t, []byte{1, 2, 3, 4}, fake.BufferContents(dst))
	assert.Empty(t, fake.Violations)
}

func TestWritingDeviceLocalMemoryIsViolation(t *testing.T) {
	fake := gputest.New(gputest.NewPhysicalDevice("a"))
	dev := newDevice(t, fake)

	mem, err := fake.AllocateMemory(dev, &vk.MemoryAllocateInfo{AllocationSize: 4})
	require.NoError(t, err)

	assert.Error(t, fake.WriteMemory(dev, mem, 0, []byte{1, 2, 3, 4}))
	assert.NotEmpty(t, fake.Violations)
}

func TestFail(t *testing.T) {
	fake := gputest.New(gputest.NewPhysicalDevice("a"))
	fake.Fail["CreateDevice"] = vk.ErrorOutOfHostMemory

	pds, err := fake.EnumeratePhysicalDevices(gputest.Handle[vk.Instance](fake))
	require.NoError(t, err)

	_, err = fake.CreateDevice(pds[0], &vk.DeviceCreateInfo{})
	assert.Equal(t, gpu.KindHostMemory, gpu.KindOf(err))
}

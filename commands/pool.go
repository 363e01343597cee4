// Package commands allocates command buffers for the graphics queue and runs
// one-off transfer work on it.
package commands

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/device"
	"github.com/NocaToca/Calico/gpu"
)

// Pool is a command pool for the graphics queue family. Its buffers can be
// reset one by one.
type Pool struct {
	drv    gpu.Driver
	dev    vk.Device
	queue  vk.Queue
	handle vk.CommandPool
}

// NewPool creates a command pool for the graphics family of dev.
func NewPool(dev *device.Device) (*Pool, error) {
	poolInfo := vk.CommandPoolCreateInfo{
		SType: vk.StructureTypeCommandPoolCreateInfo,
		Flags: vk.CommandPoolCreateFlags(
			vk.CommandPoolCreateResetCommandBufferBit,
		),
		QueueFamilyIndex: dev.Families().Graphics.Get(),
	}

	handle, err := dev.Driver().CreateCommandPool(dev.Handle(), &poolInfo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create command pool")
	}

	return &Pool{
		drv:    dev.Driver(),
		dev:    dev.Handle(),
		queue:  dev.GraphicsQueue(),
		handle: handle,
	}, nil
}

// Handle returns the command pool.
func (p *Pool) Handle() vk.CommandPool {
	return p.handle
}

// Allocate returns count primary command buffers.
func (p *Pool) Allocate(count int) ([]vk.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		Level:              vk.CommandBufferLevelPrimary,
		CommandPool:        p.handle,
		CommandBufferCount: uint32(count),
	}

	buffers, err := p.drv.AllocateCommandBuffers(p.dev, &allocInfo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate command buffers")
	}
	return buffers, nil
}

// Free returns buffers to the pool.
func (p *Pool) Free(buffers []vk.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	p.drv.FreeCommandBuffers(p.dev, p.handle, buffers)
}

// SingleUse records commands with record into a transient command buffer,
// submits it to the graphics queue and waits for the queue to become idle.
// The buffer is freed before SingleUse returns.
func (p *Pool) SingleUse(record func(cb vk.CommandBuffer)) error {
	commandBuffers, err := p.Allocate(1)
	if err != nil {
		return err
	}
	defer p.Free(commandBuffers)
	commandBuffer := commandBuffers[0]

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := p.drv.BeginCommandBuffer(commandBuffer, &beginInfo); err != nil {
		return errors.Wrap(err, "failed to begin single use command buffer")
	}

	record(commandBuffer)

	if err := p.drv.EndCommandBuffer(commandBuffer); err != nil {
		return errors.Wrap(err, "failed to end single use command buffer")
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    commandBuffers,
	}
	if err := p.drv.QueueSubmit(p.queue, []vk.SubmitInfo{submitInfo}, vk.NullFence); err != nil {
		return errors.Wrap(err, "failed to submit to graphics queue")
	}

	return errors.Wrap(p.drv.QueueWaitIdle(p.queue), "failed to wait on graphics queue idle")
}

// CopyBuffer copies the first size bytes of src to dst.
func (p *Pool) CopyBuffer(src, dst vk.Buffer, size vk.DeviceSize) error {
	return p.SingleUse(func(cb vk.CommandBuffer) {
		p.drv.CmdCopyBuffer(cb, src, dst, []vk.BufferCopy{{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		}})
	})
}

// CopyBufferToImage copies tightly packed pixels from buffer to the color
// aspect of image which must be in the transfer destination layout.
func (p *Pool) CopyBufferToImage(buffer vk.Buffer, image vk.Image, width, height uint32) error {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,

		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},

		ImageOffset: vk.Offset3D{
			X: 0, Y: 0, Z: 0,
		},

		ImageExtent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
	}

	return p.SingleUse(func(cb vk.CommandBuffer) {
		p.drv.CmdCopyBufferToImage(
			cb,
			buffer,
			image,
			vk.ImageLayoutTransferDstOptimal,
			[]vk.BufferImageCopy{region},
		)
	})
}

// Destroy destroys the pool together with every buffer allocated from it.
func (p *Pool) Destroy() {
	if p == nil || p.handle == vk.NullCommandPool {
		return
	}
	p.drv.DestroyCommandPool(p.dev, p.handle)
	p.handle = vk.NullCommandPool
}

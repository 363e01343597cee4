package commands

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/device"
	"github.com/NocaToca/Calico/gpu"
)

// LayoutBarrier returns the barrier and the source and destination stages for
// moving image from oldLayout to newLayout. Only the transitions the engine
// performs are known: texture upload, texture sampling and depth attachment
// setup. Any other pair is invalid usage.
func LayoutBarrier(
	image vk.Image,
	format vk.Format,
	oldLayout vk.ImageLayout,
	newLayout vk.ImageLayout,
) (vk.ImageMemoryBarrier, vk.PipelineStageFlags, vk.PipelineStageFlags, error) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcAccessMask: 0,
		DstAccessMask: 0,
	}

	var (
		sourceStage      vk.PipelineStageFlags
		destinationStage vk.PipelineStageFlags
	)

	switch {
	case oldLayout == vk.ImageLayoutUndefined &&
		newLayout == vk.ImageLayoutTransferDstOptimal:

		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)

		sourceStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		destinationStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)

	case oldLayout == vk.ImageLayoutTransferDstOptimal &&
		newLayout == vk.ImageLayoutShaderReadOnlyOptimal:

		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)

		sourceStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		destinationStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)

	case oldLayout == vk.ImageLayoutUndefined &&
		newLayout == vk.ImageLayoutDepthStencilAttachmentOptimal:

		barrier.SubresourceRange.AspectMask = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		if device.HasStencilComponent(format) {
			barrier.SubresourceRange.AspectMask |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit) |
			vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)

		sourceStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		destinationStage = vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)

	default:
		return barrier, 0, 0, gpu.Invalidf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}

	return barrier, sourceStage, destinationStage, nil
}

// TransitionImageLayout moves image from oldLayout to newLayout with a
// pipeline barrier recorded into a single use command buffer.
func (p *Pool) TransitionImageLayout(
	image vk.Image,
	format vk.Format,
	oldLayout vk.ImageLayout,
	newLayout vk.ImageLayout,
) error {
	barrier, sourceStage, destinationStage, err := LayoutBarrier(image, format, oldLayout, newLayout)
	if err != nil {
		return err
	}

	return p.SingleUse(func(cb vk.CommandBuffer) {
		p.drv.CmdPipelineBarrier(cb, sourceStage, destinationStage, []vk.ImageMemoryBarrier{barrier})
	})
}

package render

import (
	"log/slog"
	"math"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/gpu"
)

// DrawFrame renders and presents one frame using the current frame slot.
//
// It waits until the GPU is done with the work previously submitted from the
// slot, acquires a swapchain image, records and submits the draw commands and
// queues the image for presentation. When the swapchain is out of date at
// acquisition the swapchain is recreated and nothing is drawn. Out of date or
// suboptimal presentation and window resizing recreate the swapchain after the
// frame has been presented.
func (r *Renderer) DrawFrame() error {
	frame := r.frames[r.current]
	handle := r.dev.Handle()

	fences := []vk.Fence{frame.inFlight}
	if err := r.drv.WaitForFences(handle, fences, math.MaxUint64); err != nil {
		return errors.Wrap(err, "waiting for in flight fence")
	}

	imageIndex, res := r.drv.AcquireNextImage(
		handle,
		r.swapchain.Handle(),
		math.MaxUint64,
		frame.imageAvailable,
	)
	switch res {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		r.swapchain.MarkStale()
		return r.Recreate()
	default:
		return errors.Wrap(gpu.Check(res), "failed to acquire swap chain image")
	}

	// Only reset the fence if we are submitting work.
	if err := r.drv.ResetFences(handle, fences); err != nil {
		return errors.Wrap(err, "resetting in flight fence")
	}

	commandBuffer := r.commandBuffers[r.current]
	if err := r.drv.ResetCommandBuffer(commandBuffer); err != nil {
		return errors.Wrap(err, "resetting command buffer")
	}

	if err := r.updateUniformBuffer(r.current); err != nil {
		return errors.Wrap(err, "updating uniform buffer")
	}

	if err := r.recordCommandBuffer(commandBuffer, imageIndex); err != nil {
		return errors.Wrap(err, "recording command buffer")
	}

	signalSemaphores := []vk.Semaphore{
		frame.renderFinished,
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{frame.imageAvailable},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer},
		PSignalSemaphores:    signalSemaphores,
		SignalSemaphoreCount: uint32(len(signalSemaphores)),
	}

	err := r.drv.QueueSubmit(r.dev.GraphicsQueue(), []vk.SubmitInfo{submitInfo}, frame.inFlight)
	if err != nil {
		return errors.Wrap(err, "queue submit error")
	}

	swapChains := []vk.Swapchain{
		r.swapchain.Handle(),
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(signalSemaphores)),
		PWaitSemaphores:    signalSemaphores,
		SwapchainCount:     uint32(len(swapChains)),
		PSwapchains:        swapChains,
		PImageIndices:      []uint32{imageIndex},
	}

	res = r.drv.QueuePresent(r.dev.PresentQueue(), &presentInfo)
	if res == vk.ErrorOutOfDate || res == vk.Suboptimal || r.window.Resized() {
		r.window.ClearResized()
		r.swapchain.MarkStale()
		if err := r.Recreate(); err != nil {
			return err
		}
	} else if res != vk.Success {
		return errors.Wrap(gpu.Check(res), "failed to present swap chain image")
	}

	r.current = (r.current + 1) % len(r.frames)
	return nil
}

func (r *Renderer) recordCommandBuffer(
	commandBuffer vk.CommandBuffer,
	imageIndex uint32,
) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: 0,
	}

	if err := r.drv.BeginCommandBuffer(commandBuffer, &beginInfo); err != nil {
		return errors.Wrap(err, "cannot add begin command to the buffer")
	}

	var clearValues [2]vk.ClearValue

	clearValues[0].SetColor([]float32{0, 0, 0, 1})
	clearValues[1].SetDepthStencil(1, 0)

	extent := r.swapchain.Extent()

	renderPassInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  r.pipeline.RenderPass(),
		Framebuffer: r.swapchain.Framebuffer(imageIndex),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{
				X: 0,
				Y: 0,
			},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues[:],
	}

	r.drv.CmdBeginRenderPass(commandBuffer, &renderPassInfo)
	r.drv.CmdBindPipeline(commandBuffer, r.pipeline.Handle())

	viewport := vk.Viewport{
		X: 0, Y: 0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	r.drv.CmdSetViewport(commandBuffer, []vk.Viewport{viewport})

	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}
	r.drv.CmdSetScissor(commandBuffer, []vk.Rect2D{scissor})

	r.drv.CmdBindVertexBuffers(
		commandBuffer,
		[]vk.Buffer{r.vertexBuffer.Handle},
		[]vk.DeviceSize{0},
	)
	r.drv.CmdBindIndexBuffer(commandBuffer, r.indexBuffer.Handle, 0, vk.IndexTypeUint16)

	r.drv.CmdBindDescriptorSets(
		commandBuffer,
		r.pipeline.Layout(),
		[]vk.DescriptorSet{r.descriptorSets[r.current]},
	)

	r.drv.CmdDrawIndexed(commandBuffer, r.indexCount, 1)
	r.drv.CmdEndRenderPass(commandBuffer)

	if err := r.drv.EndCommandBuffer(commandBuffer); err != nil {
		return errors.Wrap(err, "recording commands to buffer failed")
	}
	return nil
}

// Recreate rebuilds the swapchain for the current size of the window. While
// the framebuffer has no area it blocks waiting for window events. The
// pipeline is rebuilt when the swapchain formats have changed.
func (r *Renderer) Recreate() error {
	for {
		width, height := r.window.FramebufferSize()
		if width != 0 && height != 0 {
			break
		}

		r.window.WaitEvents()
	}

	changed, err := r.swapchain.Recreate()
	if err != nil {
		return err
	}

	colorFormat, depthFormat := r.swapchain.Format(), r.swapchain.DepthFormat()
	if changed || !r.pipeline.Compatible(colorFormat, depthFormat) {
		rebuilt, err := r.builder.Build(colorFormat, depthFormat)
		if err != nil {
			return errors.Wrap(err, "rebuilding pipeline")
		}
		r.pipeline.Destroy()
		r.pipeline = rebuilt

		slog.Info("pipeline rebuilt for new swapchain formats",
			"color_format", colorFormat,
			"depth_format", depthFormat,
		)
	}

	return errors.Wrap(
		r.swapchain.CreateFramebuffers(r.pipeline.RenderPass()),
		"recreating framebuffers",
	)
}

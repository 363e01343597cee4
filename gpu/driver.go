// Package gpu is the seam between the engine and the Vulkan API.
//
// Every Vulkan call the engine makes after the instance and the surface exist
// goes through a Driver. Production code uses NewDriver, which calls straight
// into github.com/vulkan-go/vulkan. Tests use the fake in package gputest which
// keeps track of what a real GPU would do with the calls.
package gpu

import (
	vk "github.com/vulkan-go/vulkan"
)

// Driver is the subset of the Vulkan API used by the engine. The methods follow
// the Vulkan functions of the same names. Query methods return dereferenced
// structures so callers never have to call Deref on them. Calls which return a
// vk.Result in Vulkan return an error created by Check instead, except for the
// presentation calls where the caller must tell vk.Suboptimal and
// vk.ErrorOutOfDate apart from real failures.
type Driver interface {
	PhysicalDevices
	Devices
	Presentation
	Resources
	Pipelines
	Commands
	Synchronization
}

// PhysicalDevices queries the GPUs present in the system.
type PhysicalDevices interface {
	EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error)
	PhysicalDeviceProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceProperties
	PhysicalDeviceFeatures(pd vk.PhysicalDevice) vk.PhysicalDeviceFeatures
	DeviceExtensions(pd vk.PhysicalDevice) ([]string, error)
	QueueFamilyProperties(pd vk.PhysicalDevice) []vk.QueueFamilyProperties
	SurfaceSupport(pd vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, error)
	SurfaceCapabilities(pd vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, error)
	SurfaceFormats(pd vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, error)
	SurfacePresentModes(pd vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, error)
	FormatProperties(pd vk.PhysicalDevice, format vk.Format) vk.FormatProperties
	MemoryProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties
}

// Devices creates logical devices and gives access to their queues.
type Devices interface {
	CreateDevice(pd vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, error)
	DestroyDevice(dev vk.Device)
	DeviceQueue(dev vk.Device, family, index uint32) vk.Queue
	DeviceWaitIdle(dev vk.Device) error
	QueueWaitIdle(queue vk.Queue) error
	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error
}

// Presentation manages swapchains and moves their images between the
// presentation engine and the application.
type Presentation interface {
	CreateSwapchain(dev vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, error)
	DestroySwapchain(dev vk.Device, swapchain vk.Swapchain)
	SwapchainImages(dev vk.Device, swapchain vk.Swapchain) ([]vk.Image, error)
	AcquireNextImage(
		dev vk.Device,
		swapchain vk.Swapchain,
		timeout uint64,
		semaphore vk.Semaphore,
	) (uint32, vk.Result)
	QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result
}

// Resources manages memory and the objects backed by it.
type Resources interface {
	AllocateMemory(dev vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error)
	FreeMemory(dev vk.Device, memory vk.DeviceMemory)
	WriteMemory(dev vk.Device, memory vk.DeviceMemory, offset vk.DeviceSize, data []byte) error
	ReadMemory(dev vk.Device, memory vk.DeviceMemory, offset, size vk.DeviceSize) ([]byte, error)

	CreateBuffer(dev vk.Device, info *vk.BufferCreateInfo) (vk.Buffer, error)
	DestroyBuffer(dev vk.Device, buffer vk.Buffer)
	BufferMemoryRequirements(dev vk.Device, buffer vk.Buffer) vk.MemoryRequirements
	BindBufferMemory(dev vk.Device, buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) error

	CreateImage(dev vk.Device, info *vk.ImageCreateInfo) (vk.Image, error)
	DestroyImage(dev vk.Device, image vk.Image)
	ImageMemoryRequirements(dev vk.Device, image vk.Image) vk.MemoryRequirements
	BindImageMemory(dev vk.Device, image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) error

	CreateImageView(dev vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(dev vk.Device, view vk.ImageView)

	CreateSampler(dev vk.Device, info *vk.SamplerCreateInfo) (vk.Sampler, error)
	DestroySampler(dev vk.Device, sampler vk.Sampler)

	CreateDescriptorPool(dev vk.Device, info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error)
	DestroyDescriptorPool(dev vk.Device, pool vk.DescriptorPool)
	AllocateDescriptorSets(dev vk.Device, info *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, error)
	UpdateDescriptorSets(dev vk.Device, writes []vk.WriteDescriptorSet)
}

// Pipelines builds everything a graphics pipeline is made of.
type Pipelines interface {
	CreateShaderModule(dev vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error)
	DestroyShaderModule(dev vk.Device, module vk.ShaderModule)

	CreateDescriptorSetLayout(
		dev vk.Device,
		info *vk.DescriptorSetLayoutCreateInfo,
	) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(dev vk.Device, layout vk.DescriptorSetLayout)

	CreatePipelineLayout(dev vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(dev vk.Device, layout vk.PipelineLayout)

	CreateRenderPass(dev vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, error)
	DestroyRenderPass(dev vk.Device, renderPass vk.RenderPass)

	CreateGraphicsPipeline(dev vk.Device, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error)
	DestroyPipeline(dev vk.Device, pipeline vk.Pipeline)

	CreateFramebuffer(dev vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(dev vk.Device, framebuffer vk.Framebuffer)
}

// Commands allocates command buffers and records commands into them.
type Commands interface {
	CreateCommandPool(dev vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, error)
	DestroyCommandPool(dev vk.Device, pool vk.CommandPool)
	AllocateCommandBuffers(dev vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, error)
	FreeCommandBuffers(dev vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer)

	ResetCommandBuffer(cb vk.CommandBuffer) error
	BeginCommandBuffer(cb vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error
	EndCommandBuffer(cb vk.CommandBuffer) error

	CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo)
	CmdEndRenderPass(cb vk.CommandBuffer)
	CmdBindPipeline(cb vk.CommandBuffer, pipeline vk.Pipeline)
	CmdSetViewport(cb vk.CommandBuffer, viewports []vk.Viewport)
	CmdSetScissor(cb vk.CommandBuffer, scissors []vk.Rect2D)
	CmdBindVertexBuffers(cb vk.CommandBuffer, buffers []vk.Buffer, offsets []vk.DeviceSize)
	CmdBindIndexBuffer(cb vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType)
	CmdBindDescriptorSets(cb vk.CommandBuffer, layout vk.PipelineLayout, sets []vk.DescriptorSet)
	CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount uint32)
	CmdCopyBuffer(cb vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy)
	CmdCopyBufferToImage(
		cb vk.CommandBuffer,
		src vk.Buffer,
		dst vk.Image,
		layout vk.ImageLayout,
		regions []vk.BufferImageCopy,
	)
	CmdPipelineBarrier(
		cb vk.CommandBuffer,
		srcStage, dstStage vk.PipelineStageFlags,
		barriers []vk.ImageMemoryBarrier,
	)
}

// Synchronization creates and waits on fences and semaphores.
type Synchronization interface {
	CreateSemaphore(dev vk.Device) (vk.Semaphore, error)
	DestroySemaphore(dev vk.Device, semaphore vk.Semaphore)
	CreateFence(dev vk.Device, signaled bool) (vk.Fence, error)
	DestroyFence(dev vk.Device, fence vk.Fence)
	WaitForFences(dev vk.Device, fences []vk.Fence, timeout uint64) error
	ResetFences(dev vk.Device, fences []vk.Fence) error
}

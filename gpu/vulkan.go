package gpu

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// NewDriver returns a Driver which calls into the Vulkan loader. vk.Init must
// have been called before any of its methods are used.
func NewDriver() Driver {
	return vulkanDriver{}
}

type vulkanDriver struct{}

func (vulkanDriver) EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := Check(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, errors.Wrap(err, "failed to get the number of physical devices")
	}
	if deviceCount == 0 {
		return nil, nil
	}

	devices := make([]vk.PhysicalDevice, deviceCount)
	if err := Check(vk.EnumeratePhysicalDevices(instance, &deviceCount, devices)); err != nil {
		return nil, errors.Wrap(err, "failed to enumerate the physical devices")
	}
	return devices[:deviceCount], nil
}

func (vulkanDriver) PhysicalDeviceProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &properties)
	properties.Deref()
	properties.Limits.Deref()
	return properties
}

func (vulkanDriver) PhysicalDeviceFeatures(pd vk.PhysicalDevice) vk.PhysicalDeviceFeatures {
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()
	return features
}

func (vulkanDriver) DeviceExtensions(pd vk.PhysicalDevice) ([]string, error) {
	var extensionsCount uint32
	res := vk.EnumerateDeviceExtensionProperties(pd, "", &extensionsCount, nil)
	if err := Check(res); err != nil {
		return nil, errors.Wrap(err, "enumerating device extension properties count")
	}

	available := make([]vk.ExtensionProperties, extensionsCount)
	res = vk.EnumerateDeviceExtensionProperties(pd, "", &extensionsCount, available)
	if err := Check(res); err != nil {
		return nil, errors.Wrap(err, "getting device extension properties")
	}

	names := make([]string, 0, extensionsCount)
	for _, extension := range available[:extensionsCount] {
		extension.Deref()
		names = append(names, vk.ToString(extension.ExtensionName[:]))
	}
	return names, nil
}

func (vulkanDriver) QueueFamilyProperties(pd vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, nil)

	families := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, families)
	for i := range families {
		families[i].Deref()
	}
	return families
}

func (vulkanDriver) SurfaceSupport(
	pd vk.PhysicalDevice,
	family uint32,
	surface vk.Surface,
) (bool, error) {
	var hasPresent vk.Bool32
	res := vk.GetPhysicalDeviceSurfaceSupport(pd, family, surface, &hasPresent)
	if err := Check(res); err != nil {
		return false, err
	}
	return hasPresent.B(), nil
}

func (vulkanDriver) SurfaceCapabilities(
	pd vk.PhysicalDevice,
	surface vk.Surface,
) (vk.SurfaceCapabilities, error) {
	var capabilities vk.SurfaceCapabilities
	res := vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &capabilities)
	if err := Check(res); err != nil {
		return capabilities, errors.Wrap(err, "failed to query device surface capabilities")
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()
	return capabilities, nil
}

func (vulkanDriver) SurfaceFormats(pd vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, error) {
	var formatCount uint32
	res := vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, nil)
	if err := Check(res); err != nil {
		return nil, errors.Wrap(err, "failed to query device surface formats")
	}
	if formatCount == 0 {
		return nil, nil
	}

	formats := make([]vk.SurfaceFormat, formatCount)
	res = vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, formats)
	if err := Check(res); err != nil {
		return nil, errors.Wrap(err, "failed to query device surface formats")
	}
	for i := range formats {
		formats[i].Deref()
	}
	return formats[:formatCount], nil
}

func (vulkanDriver) SurfacePresentModes(pd vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, error) {
	var presentModeCount uint32
	res := vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &presentModeCount, nil)
	if err := Check(res); err != nil {
		return nil, errors.Wrap(err, "failed to query device surface present modes")
	}
	if presentModeCount == 0 {
		return nil, nil
	}

	presentModes := make([]vk.PresentMode, presentModeCount)
	res = vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &presentModeCount, presentModes)
	if err := Check(res); err != nil {
		return nil, errors.Wrap(err, "failed to query device surface present modes")
	}
	return presentModes[:presentModeCount], nil
}

func (vulkanDriver) FormatProperties(pd vk.PhysicalDevice, format vk.Format) vk.FormatProperties {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(pd, format, &props)
	props.Deref()
	return props
}

func (vulkanDriver) MemoryProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &memProperties)
	memProperties.Deref()
	for i := uint32(0); i < memProperties.MemoryTypeCount; i++ {
		memProperties.MemoryTypes[i].Deref()
	}
	return memProperties
}

func (vulkanDriver) CreateDevice(pd vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, error) {
	var device vk.Device
	err := Check(vk.CreateDevice(pd, info, nil, &device))
	return device, err
}

func (vulkanDriver) DestroyDevice(dev vk.Device) {
	vk.DestroyDevice(dev, nil)
}

func (vulkanDriver) DeviceQueue(dev vk.Device, family, index uint32) vk.Queue {
	var queue vk.Queue
	vk.GetDeviceQueue(dev, family, index, &queue)
	return queue
}

func (vulkanDriver) DeviceWaitIdle(dev vk.Device) error {
	return Check(vk.DeviceWaitIdle(dev))
}

func (vulkanDriver) QueueWaitIdle(queue vk.Queue) error {
	return Check(vk.QueueWaitIdle(queue))
}

func (vulkanDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error {
	return Check(vk.QueueSubmit(queue, uint32(len(submits)), submits, fence))
}

func (vulkanDriver) CreateSwapchain(dev vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	var swapchain vk.Swapchain
	err := Check(vk.CreateSwapchain(dev, info, nil, &swapchain))
	return swapchain, err
}

func (vulkanDriver) DestroySwapchain(dev vk.Device, swapchain vk.Swapchain) {
	vk.DestroySwapchain(dev, swapchain, nil)
}

func (vulkanDriver) SwapchainImages(dev vk.Device, swapchain vk.Swapchain) ([]vk.Image, error) {
	var imagesCount uint32
	if err := Check(vk.GetSwapchainImages(dev, swapchain, &imagesCount, nil)); err != nil {
		return nil, err
	}

	images := make([]vk.Image, imagesCount)
	if err := Check(vk.GetSwapchainImages(dev, swapchain, &imagesCount, images)); err != nil {
		return nil, err
	}
	return images[:imagesCount], nil
}

func (vulkanDriver) AcquireNextImage(
	dev vk.Device,
	swapchain vk.Swapchain,
	timeout uint64,
	semaphore vk.Semaphore,
) (uint32, vk.Result) {
	var imageIndex uint32
	res := vk.AcquireNextImage(dev, swapchain, timeout, semaphore, vk.NullFence, &imageIndex)
	return imageIndex, res
}

func (vulkanDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, info)
}

func (vulkanDriver) AllocateMemory(dev vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	var memory vk.DeviceMemory
	err := Check(vk.AllocateMemory(dev, info, nil, &memory))
	return memory, err
}

func (vulkanDriver) FreeMemory(dev vk.Device, memory vk.DeviceMemory) {
	vk.FreeMemory(dev, memory, nil)
}

func (vulkanDriver) WriteMemory(
	dev vk.Device,
	memory vk.DeviceMemory,
	offset vk.DeviceSize,
	data []byte,
) error {
	var pData unsafe.Pointer
	res := vk.MapMemory(dev, memory, offset, vk.DeviceSize(len(data)), 0, &pData)
	if err := Check(res); err != nil {
		return errors.Wrap(err, "failed to map memory")
	}
	vk.Memcopy(pData, data)
	vk.UnmapMemory(dev, memory)
	return nil
}

func (vulkanDriver) ReadMemory(
	dev vk.Device,
	memory vk.DeviceMemory,
	offset, size vk.DeviceSize,
) ([]byte, error) {
	var pData unsafe.Pointer
	res := vk.MapMemory(dev, memory, offset, size, 0, &pData)
	if err := Check(res); err != nil {
		return nil, errors.Wrap(err, "failed to map memory")
	}
	defer vk.UnmapMemory(dev, memory)

	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(pData), size))
	return out, nil
}

func (vulkanDriver) CreateBuffer(dev vk.Device, info *vk.BufferCreateInfo) (vk.Buffer, error) {
	var buffer vk.Buffer
	err := Check(vk.CreateBuffer(dev, info, nil, &buffer))
	return buffer, err
}

func (vulkanDriver) DestroyBuffer(dev vk.Device, buffer vk.Buffer) {
	vk.DestroyBuffer(dev, buffer, nil)
}

func (vulkanDriver) BufferMemoryRequirements(dev vk.Device, buffer vk.Buffer) vk.MemoryRequirements {
	var memRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer, &memRequirements)
	memRequirements.Deref()
	return memRequirements
}

func (vulkanDriver) BindBufferMemory(
	dev vk.Device,
	buffer vk.Buffer,
	memory vk.DeviceMemory,
	offset vk.DeviceSize,
) error {
	return Check(vk.BindBufferMemory(dev, buffer, memory, offset))
}

func (vulkanDriver) CreateImage(dev vk.Device, info *vk.ImageCreateInfo) (vk.Image, error) {
	var image vk.Image
	err := Check(vk.CreateImage(dev, info, nil, &image))
	return image, err
}

func (vulkanDriver) DestroyImage(dev vk.Device, image vk.Image) {
	vk.DestroyImage(dev, image, nil)
}

func (vulkanDriver) ImageMemoryRequirements(dev vk.Device, image vk.Image) vk.MemoryRequirements {
	var memRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, image, &memRequirements)
	memRequirements.Deref()
	return memRequirements
}

func (vulkanDriver) BindImageMemory(
	dev vk.Device,
	image vk.Image,
	memory vk.DeviceMemory,
	offset vk.DeviceSize,
) error {
	return Check(vk.BindImageMemory(dev, image, memory, offset))
}

func (vulkanDriver) CreateImageView(dev vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var imageView vk.ImageView
	err := Check(vk.CreateImageView(dev, info, nil, &imageView))
	return imageView, err
}

func (vulkanDriver) DestroyImageView(dev vk.Device, view vk.ImageView) {
	vk.DestroyImageView(dev, view, nil)
}

func (vulkanDriver) CreateSampler(dev vk.Device, info *vk.SamplerCreateInfo) (vk.Sampler, error) {
	var sampler vk.Sampler
	err := Check(vk.CreateSampler(dev, info, nil, &sampler))
	return sampler, err
}

func (vulkanDriver) DestroySampler(dev vk.Device, sampler vk.Sampler) {
	vk.DestroySampler(dev, sampler, nil)
}

func (vulkanDriver) CreateDescriptorPool(
	dev vk.Device,
	info *vk.DescriptorPoolCreateInfo,
) (vk.DescriptorPool, error) {
	var descriptorPool vk.DescriptorPool
	err := Check(vk.CreateDescriptorPool(dev, info, nil, &descriptorPool))
	return descriptorPool, err
}

func (vulkanDriver) DestroyDescriptorPool(dev vk.Device, pool vk.DescriptorPool) {
	vk.DestroyDescriptorPool(dev, pool, nil)
}

func (vulkanDriver) AllocateDescriptorSets(
	dev vk.Device,
	info *vk.DescriptorSetAllocateInfo,
) ([]vk.DescriptorSet, error) {
	if info.DescriptorSetCount == 0 {
		return nil, nil
	}

	sets := make([]vk.DescriptorSet, info.DescriptorSetCount)
	if err := Check(vk.AllocateDescriptorSets(dev, info, &sets[0])); err != nil {
		return nil, err
	}
	return sets, nil
}

func (vulkanDriver) UpdateDescriptorSets(dev vk.Device, writes []vk.WriteDescriptorSet) {
	vk.UpdateDescriptorSets(dev, uint32(len(writes)), writes, 0, nil)
}

func (vulkanDriver) CreateShaderModule(
	dev vk.Device,
	info *vk.ShaderModuleCreateInfo,
) (vk.ShaderModule, error) {
	var shaderModule vk.ShaderModule
	err := Check(vk.CreateShaderModule(dev, info, nil, &shaderModule))
	return shaderModule, err
}

func (vulkanDriver) DestroyShaderModule(dev vk.Device, module vk.ShaderModule) {
	vk.DestroyShaderModule(dev, module, nil)
}

func (vulkanDriver) CreateDescriptorSetLayout(
	dev vk.Device,
	info *vk.DescriptorSetLayoutCreateInfo,
) (vk.DescriptorSetLayout, error) {
	var descriptorSetLayout vk.DescriptorSetLayout
	err := Check(vk.CreateDescriptorSetLayout(dev, info, nil, &descriptorSetLayout))
	return descriptorSetLayout, err
}

func (vulkanDriver) DestroyDescriptorSetLayout(dev vk.Device, layout vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(dev, layout, nil)
}

func (vulkanDriver) CreatePipelineLayout(
	dev vk.Device,
	info *vk.PipelineLayoutCreateInfo,
) (vk.PipelineLayout, error) {
	var pipelineLayout vk.PipelineLayout
	err := Check(vk.CreatePipelineLayout(dev, info, nil, &pipelineLayout))
	return pipelineLayout, err
}

func (vulkanDriver) DestroyPipelineLayout(dev vk.Device, layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(dev, layout, nil)
}

func (vulkanDriver) CreateRenderPass(dev vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var renderPass vk.RenderPass
	err := Check(vk.CreateRenderPass(dev, info, nil, &renderPass))
	return renderPass, err
}

func (vulkanDriver) DestroyRenderPass(dev vk.Device, renderPass vk.RenderPass) {
	vk.DestroyRenderPass(dev, renderPass, nil)
}

func (vulkanDriver) CreateGraphicsPipeline(
	dev vk.Device,
	info *vk.GraphicsPipelineCreateInfo,
) (vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(
		dev,
		vk.PipelineCache(vk.NullHandle),
		1,
		[]vk.GraphicsPipelineCreateInfo{*info},
		nil,
		pipelines,
	)
	return pipelines[0], Check(res)
}

func (vulkanDriver) DestroyPipeline(dev vk.Device, pipeline vk.Pipeline) {
	vk.DestroyPipeline(dev, pipeline, nil)
}

func (vulkanDriver) CreateFramebuffer(dev vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var frameBuffer vk.Framebuffer
	err := Check(vk.CreateFramebuffer(dev, info, nil, &frameBuffer))
	return frameBuffer, err
}

func (vulkanDriver) DestroyFramebuffer(dev vk.Device, framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(dev, framebuffer, nil)
}

func (vulkanDriver) CreateCommandPool(dev vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, error) {
	var commandPool vk.CommandPool
	err := Check(vk.CreateCommandPool(dev, info, nil, &commandPool))
	return commandPool, err
}

func (vulkanDriver) DestroyCommandPool(dev vk.Device, pool vk.CommandPool) {
	vk.DestroyCommandPool(dev, pool, nil)
}

func (vulkanDriver) AllocateCommandBuffers(
	dev vk.Device,
	info *vk.CommandBufferAllocateInfo,
) ([]vk.CommandBuffer, error) {
	commandBuffers := make([]vk.CommandBuffer, info.CommandBufferCount)
	if err := Check(vk.AllocateCommandBuffers(dev, info, commandBuffers)); err != nil {
		return nil, err
	}
	return commandBuffers, nil
}

func (vulkanDriver) FreeCommandBuffers(dev vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer) {
	vk.FreeCommandBuffers(dev, pool, uint32(len(buffers)), buffers)
}

func (vulkanDriver) ResetCommandBuffer(cb vk.CommandBuffer) error {
	return Check(vk.ResetCommandBuffer(cb, 0))
}

func (vulkanDriver) BeginCommandBuffer(cb vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error {
	return Check(vk.BeginCommandBuffer(cb, info))
}

func (vulkanDriver) EndCommandBuffer(cb vk.CommandBuffer) error {
	return Check(vk.EndCommandBuffer(cb))
}

func (vulkanDriver) CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(cb, info, vk.SubpassContentsInline)
}

func (vulkanDriver) CmdEndRenderPass(cb vk.CommandBuffer) {
	vk.CmdEndRenderPass(cb)
}

func (vulkanDriver) CmdBindPipeline(cb vk.CommandBuffer, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, pipeline)
}

func (vulkanDriver) CmdSetViewport(cb vk.CommandBuffer, viewports []vk.Viewport) {
	vk.CmdSetViewport(cb, 0, uint32(len(viewports)), viewports)
}

func (vulkanDriver) CmdSetScissor(cb vk.CommandBuffer, scissors []vk.Rect2D) {
	vk.CmdSetScissor(cb, 0, uint32(len(scissors)), scissors)
}

func (vulkanDriver) CmdBindVertexBuffers(cb vk.CommandBuffer, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	vk.CmdBindVertexBuffers(cb, 0, uint32(len(buffers)), buffers, offsets)
}

func (vulkanDriver) CmdBindIndexBuffer(
	cb vk.CommandBuffer,
	buffer vk.Buffer,
	offset vk.DeviceSize,
	indexType vk.IndexType,
) {
	vk.CmdBindIndexBuffer(cb, buffer, offset, indexType)
}

func (vulkanDriver) CmdBindDescriptorSets(
	cb vk.CommandBuffer,
	layout vk.PipelineLayout,
	sets []vk.DescriptorSet,
) {
	vk.CmdBindDescriptorSets(
		cb,
		vk.PipelineBindPointGraphics,
		layout,
		0,
		uint32(len(sets)),
		sets,
		0,
		nil,
	)
}

func (vulkanDriver) CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount uint32) {
	vk.CmdDrawIndexed(cb, indexCount, instanceCount, 0, 0, 0)
}

func (vulkanDriver) CmdCopyBuffer(cb vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	vk.CmdCopyBuffer(cb, src, dst, uint32(len(regions)), regions)
}

func (vulkanDriver) CmdCopyBufferToImage(
	cb vk.CommandBuffer,
	src vk.Buffer,
	dst vk.Image,
	layout vk.ImageLayout,
	regions []vk.BufferImageCopy,
) {
	vk.CmdCopyBufferToImage(cb, src, dst, layout, uint32(len(regions)), regions)
}

func (vulkanDriver) CmdPipelineBarrier(
	cb vk.CommandBuffer,
	srcStage, dstStage vk.PipelineStageFlags,
	barriers []vk.ImageMemoryBarrier,
) {
	vk.CmdPipelineBarrier(
		cb,
		srcStage, dstStage,
		0,
		0, nil,
		0, nil,
		uint32(len(barriers)), barriers,
	)
}

func (vulkanDriver) CreateSemaphore(dev vk.Device) (vk.Semaphore, error) {
	semaphoreInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var semaphore vk.Semaphore
	err := Check(vk.CreateSemaphore(dev, &semaphoreInfo, nil, &semaphore))
	return semaphore, err
}

func (vulkanDriver) DestroySemaphore(dev vk.Device, semaphore vk.Semaphore) {
	vk.DestroySemaphore(dev, semaphore, nil)
}

func (vulkanDriver) CreateFence(dev vk.Device, signaled bool) (vk.Fence, error) {
	fenceInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	err := Check(vk.CreateFence(dev, &fenceInfo, nil, &fence))
	return fence, err
}

func (vulkanDriver) DestroyFence(dev vk.Device, fence vk.Fence) {
	vk.DestroyFence(dev, fence, nil)
}

func (vulkanDriver) WaitForFences(dev vk.Device, fences []vk.Fence, timeout uint64) error {
	return Check(vk.WaitForFences(dev, uint32(len(fences)), fences, vk.True, timeout))
}

func (vulkanDriver) ResetFences(dev vk.Device, fences []vk.Fence) error {
	return Check(vk.ResetFences(dev, uint32(len(fences)), fences))
}

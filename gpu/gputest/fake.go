// Package gputest provides a fake gpu.Driver for tests.
//
// The fake hands out opaque handles, remembers the create infos it was given,
// keeps the contents of device memory and executes copy commands when command
// buffers are submitted. Submitted work completes when the fence it signals is
// waited on or when a queue or the device is waited to become idle, which is
// enough to catch a command buffer being re-recorded while still in flight.
// Everything which would be invalid usage of Vulkan is recorded in Violations
// instead of crashing the test.
package gputest

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/gpu"
)

// Handles start well above the zero page so the runtime never mistakes them
// for invalid pointers.
const handleBase = 0x100000

// Call is a single recorded driver call.
type Call struct {
	Name   string
	Handle uintptr
}

// Fake is an in-memory gpu.Driver.
type Fake struct {
	// Devices are reported by EnumeratePhysicalDevices in this order.
	Devices []*PhysicalDevice

	// AcquireResults are returned by consecutive AcquireNextImage calls. Once
	// exhausted every acquisition succeeds.
	AcquireResults []vk.Result

	// PresentResults are returned by consecutive QueuePresent calls. Once
	// exhausted every presentation succeeds.
	PresentResults []vk.Result

	// Fail makes the named driver method fail with the given result.
	Fail map[string]vk.Result

	// Calls is the log of every call made to the driver, in order.
	Calls []Call

	// Violations lists every misuse of the API noticed by the fake.
	Violations []string

	DeviceInfos    []vk.DeviceCreateInfo
	SwapchainInfos []vk.SwapchainCreateInfo
	RenderPasses   []vk.RenderPassCreateInfo
	Pipelines      []vk.GraphicsPipelineCreateInfo
	SetLayouts     []vk.DescriptorSetLayoutCreateInfo
	Samplers       []vk.SamplerCreateInfo
	Barriers       []vk.ImageMemoryBarrier
	BeginPasses    []vk.RenderPassBeginInfo
	Viewports      []vk.Viewport
	Scissors       []vk.Rect2D
	Submits        []vk.SubmitInfo
	Presents       []vk.PresentInfo

	next uintptr
	live map[uintptr]string

	physical     map[vk.PhysicalDevice]*PhysicalDevice
	queues       map[vk.Queue]uint32
	deviceQueues map[uint32]vk.Queue
	memories     map[vk.DeviceMemory]*memory
	buffers      map[vk.Buffer]*binding
	images       map[vk.Image]*imageObj
	swapchains   map[vk.Swapchain][]vk.Image
	fences       map[vk.Fence]*fence
	semaphores   map[vk.Semaphore]bool
	commands     map[vk.CommandBuffer]*commandBuffer
	idlePending  []*commandBuffer
	nextImage    uint32
}

// PhysicalDevice describes a synthetic GPU.
type PhysicalDevice struct {
	Name       string
	Type       vk.PhysicalDeviceType
	Features   vk.PhysicalDeviceFeatures
	Extensions []string

	// QueueFamilies are reported in order. PresentFamilies lists the indices
	// of the families which can present to any surface.
	QueueFamilies   []vk.QueueFamilyProperties
	PresentFamilies []uint32

	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode

	// OptimalTiling maps an image format to the features it supports with
	// optimal tiling.
	OptimalTiling map[vk.Format]vk.FormatFeatureFlags

	MaxSamplerAnisotropy float32

	handle vk.PhysicalDevice
}

// NewPhysicalDevice returns a discrete GPU which satisfies everything the
// engine asks for: a single queue family which does graphics and presentation,
// the swapchain extension, sampler anisotropy, BGRA sRGB surface format,
// mailbox presentation and every depth format.
func NewPhysicalDevice(name string) *PhysicalDevice {
	depthFeatures := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	sampledFeatures := vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit) |
		vk.FormatFeatureFlags(vk.FormatFeatureTransferDstBit)

	return &PhysicalDevice{
		Name: name,
		Type: vk.PhysicalDeviceTypeDiscreteGpu,
		Features: vk.PhysicalDeviceFeatures{
			SamplerAnisotropy: vk.True,
		},
		Extensions: []string{vk.KhrSwapchainExtensionName},
		QueueFamilies: []vk.QueueFamilyProperties{
			{
				QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit),
				QueueCount: 1,
			},
		},
		PresentFamilies: []uint32{0},
		Capabilities: vk.SurfaceCapabilities{
			MinImageCount:    2,
			MaxImageCount:    8,
			CurrentExtent:    vk.Extent2D{Width: 800, Height: 600},
			MinImageExtent:   vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:   vk.Extent2D{Width: 4096, Height: 4096},
			CurrentTransform: vk.SurfaceTransformIdentityBit,
		},
		Formats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		OptimalTiling: map[vk.Format]vk.FormatFeatureFlags{
			vk.FormatD32Sfloat:       depthFeatures,
			vk.FormatD32SfloatS8Uint: depthFeatures,
			vk.FormatD24UnormS8Uint:  depthFeatures,
			vk.FormatR8g8b8a8Srgb:    sampledFeatures,
		},
		MaxSamplerAnisotropy: 16,
	}
}

// SplitQueues moves presentation to a second queue family so that graphics
// and present indices differ.
func (p *PhysicalDevice) SplitQueues() *PhysicalDevice {
	p.QueueFamilies = []vk.QueueFamilyProperties{
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit), QueueCount: 1},
		{QueueFlags: vk.QueueFlags(vk.QueueTransferBit), QueueCount: 1},
	}
	p.PresentFamilies = []uint32{1}
	return p
}

// Handle returns the handle of the device as reported by the fake which
// owns it. It is nil until the fake has enumerated the device.
func (p *PhysicalDevice) Handle() vk.PhysicalDevice {
	return p.handle
}

type memory struct {
	typeIndex uint32
	data      []byte
}

type binding struct {
	size   vk.DeviceSize
	memory vk.DeviceMemory
	offset vk.DeviceSize
	bound  bool
}

type imageObj struct {
	binding
	info      vk.ImageCreateInfo
	swapchain bool
}

type fence struct {
	signaled bool
	pending  []*commandBuffer
}

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
	cbPending
)

type commandBuffer struct {
	state    cbState
	recorded []string
	work     []func()
}

// New returns a fake which reports the given physical devices.
func New(devices ...*PhysicalDevice) *Fake {
	return &Fake{
		Devices:      devices,
		Fail:         make(map[string]vk.Result),
		live:         make(map[uintptr]string),
		physical:     make(map[vk.PhysicalDevice]*PhysicalDevice),
		queues:       make(map[vk.Queue]uint32),
		deviceQueues: make(map[uint32]vk.Queue),
		memories:     make(map[vk.DeviceMemory]*memory),
		buffers:      make(map[vk.Buffer]*binding),
		images:       make(map[vk.Image]*imageObj),
		swapchains:   make(map[vk.Swapchain][]vk.Image),
		fences:       make(map[vk.Fence]*fence),
		semaphores:   make(map[vk.Semaphore]bool),
		commands:     make(map[vk.CommandBuffer]*commandBuffer),
	}
}

// Handle mints a handle of any Vulkan handle type which the fake does not
// track. Tests use it for instances and surfaces.
func Handle[H any](f *Fake) H {
	return mint[H](f, "external")
}

// ID returns the numeric value of a handle. Minted handles point at nothing,
// so compare them by ID or with SameHandle and never with deep equality.
func ID[H any](h H) uintptr {
	return *(*uintptr)(unsafe.Pointer(&h))
}

// SameHandle tells whether a and b are the same object.
func SameHandle[H any](a, b H) bool {
	return ID(a) == ID(b)
}

func mint[H any](f *Fake, kind string) H {
	f.next++
	id := uintptr(handleBase) + f.next*16
	f.live[id] = kind
	p := unsafe.Add(unsafe.Pointer(nil), id)
	return *(*H)(unsafe.Pointer(&p))
}

func (f *Fake) release(id uintptr, kind string) {
	if id == 0 {
		return
	}
	got, ok := f.live[id]
	if !ok {
		f.violate("destroying %s #%d which is not alive", kind, id)
		return
	}
	if got != kind {
		f.violate("destroying %s #%d as a %s", got, id, kind)
	}
	delete(f.live, id)
}

func (f *Fake) record(name string, id uintptr) {
	f.Calls = append(f.Calls, Call{Name: name, Handle: id})
}

func (f *Fake) violate(format string, args ...any) {
	f.Violations = append(f.Violations, fmt.Sprintf(format, args...))
}

func (f *Fake) failure(name string) error {
	if res, ok := f.Fail[name]; ok {
		return gpu.Check(res)
	}
	return nil
}

// Count returns how many times the named method was called.
func (f *Fake) Count(name string) int {
	var n int
	for _, call := range f.Calls {
		if call.Name == name {
			n++
		}
	}
	return n
}

// Names returns the names of all calls in order.
func (f *Fake) Names() []string {
	names := make([]string, 0, len(f.Calls))
	for _, call := range f.Calls {
		names = append(names, call.Name)
	}
	return names
}

// Live returns the kinds of every object created through the fake and not
// destroyed yet, not counting external handles and physical devices.
func (f *Fake) Live() []string {
	var kinds []string
	for _, kind := range f.live {
		switch kind {
		case "external", "physical device", "queue", "swapchain image",
			"command buffer", "descriptor set":
			continue
		}
		kinds = append(kinds, kind)
	}
	return kinds
}

// Recorded returns the names of the commands recorded into cb since it was
// last reset.
func (f *Fake) Recorded(cb vk.CommandBuffer) []string {
	if buf, ok := f.commands[cb]; ok {
		return append([]string(nil), buf.recorded...)
	}
	return nil
}

// QueueFamily returns the family a queue handle was retrieved for.
func (f *Fake) QueueFamily(queue vk.Queue) (uint32, bool) {
	family, ok := f.queues[queue]
	return family, ok
}

// BufferContents returns the bytes of the memory bound to buffer.
func (f *Fake) BufferContents(buffer vk.Buffer) []byte {
	b, ok := f.buffers[buffer]
	if !ok || !b.bound {
		return nil
	}
	mem := f.memories[b.memory]
	return append([]byte(nil), mem.data[b.offset:b.offset+b.size]...)
}

// FenceSignaled reports the state of a fence.
func (f *Fake) FenceSignaled(handle vk.Fence) bool {
	fc, ok := f.fences[handle]
	return ok && fc.signaled
}

func (f *Fake) EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	f.record("EnumeratePhysicalDevices", ID(instance))
	if err := f.failure("EnumeratePhysicalDevices"); err != nil {
		return nil, err
	}

	handles := make([]vk.PhysicalDevice, 0, len(f.Devices))
	for _, pd := range f.Devices {
		if pd.handle == nil {
			pd.handle = mint[vk.PhysicalDevice](f, "physical device")
			f.physical[pd.handle] = pd
		}
		handles = append(handles, pd.handle)
	}
	return handles, nil
}

func (f *Fake) device(pd vk.PhysicalDevice) *PhysicalDevice {
	dev, ok := f.physical[pd]
	if !ok {
		f.violate("unknown physical device #%d", ID(pd))
		return NewPhysicalDevice("unknown")
	}
	return dev
}

func (f *Fake) PhysicalDeviceProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	dev := f.device(pd)

	var props vk.PhysicalDeviceProperties
	props.DeviceType = dev.Type
	copy(props.DeviceName[:], dev.Name)
	props.Limits.MaxSamplerAnisotropy = dev.MaxSamplerAnisotropy
	return props
}

func (f *Fake) PhysicalDeviceFeatures(pd vk.PhysicalDevice) vk.PhysicalDeviceFeatures {
	return f.device(pd).Features
}

func (f *Fake) DeviceExtensions(pd vk.PhysicalDevice) ([]string, error) {
	if err := f.failure("DeviceExtensions"); err != nil {
		return nil, err
	}
	return append([]string(nil), f.device(pd).Extensions...), nil
}

func (f *Fake) QueueFamilyProperties(pd vk.PhysicalDevice) []vk.QueueFamilyProperties {
	return append([]vk.QueueFamilyProperties(nil), f.device(pd).QueueFamilies...)
}

func (f *Fake) SurfaceSupport(pd vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, error) {
	for _, present := range f.device(pd).PresentFamilies {
		if present == family {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fake) SurfaceCapabilities(pd vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, error) {
	f.record("SurfaceCapabilities", ID(surface))
	return f.device(pd).Capabilities, f.failure("SurfaceCapabilities")
}

func (f *Fake) SurfaceFormats(pd vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, error) {
	return append([]vk.SurfaceFormat(nil), f.device(pd).Formats...), nil
}

func (f *Fake) SurfacePresentModes(pd vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, error) {
	return append([]vk.PresentMode(nil), f.device(pd).PresentModes...), nil
}

func (f *Fake) FormatProperties(pd vk.PhysicalDevice, format vk.Format) vk.FormatProperties {
	return vk.FormatProperties{
		OptimalTilingFeatures: f.device(pd).OptimalTiling[format],
	}
}

// Memory type 0 is device local, memory type 1 is host visible and coherent.
func (f *Fake) MemoryProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = 2
	props.MemoryTypes[0].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	props.MemoryTypes[1].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) |
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	props.MemoryHeapCount = 1
	return props
}

func (f *Fake) CreateDevice(pd vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, error) {
	f.record("CreateDevice", ID(pd))
	if err := f.failure("CreateDevice"); err != nil {
		return nil, err
	}
	f.device(pd)
	f.DeviceInfos = append(f.DeviceInfos, *info)
	return mint[vk.Device](f, "device"), nil
}

func (f *Fake) DestroyDevice(dev vk.Device) {
	f.record("DestroyDevice", ID(dev))
	f.release(ID(dev), "device")
	if live := f.Live(); len(live) > 0 {
		f.violate("device destroyed while objects are alive: %v", live)
	}
}

func (f *Fake) DeviceQueue(dev vk.Device, family, index uint32) vk.Queue {
	f.record("DeviceQueue", uintptr(family))
	if queue, ok := f.deviceQueues[family]; ok {
		return queue
	}
	queue := mint[vk.Queue](f, "queue")
	f.queues[queue] = family
	f.deviceQueues[family] = queue
	return queue
}

func (f *Fake) DeviceWaitIdle(dev vk.Device) error {
	f.record("DeviceWaitIdle", ID(dev))
	f.completeAll()
	return nil
}

func (f *Fake) QueueWaitIdle(queue vk.Queue) error {
	f.record("QueueWaitIdle", ID(queue))
	f.completeAll()
	return nil
}

func (f *Fake) completeAll() {
	for _, fc := range f.fences {
		if len(fc.pending) > 0 {
			f.complete(fc)
		}
	}
	for _, cb := range f.idlePending {
		if cb.state == cbPending {
			cb.state = cbExecutable
		}
	}
	f.idlePending = nil
}

func (f *Fake) complete(fc *fence) {
	for _, cb := range fc.pending {
		if cb.state == cbPending {
			cb.state = cbExecutable
		}
	}
	fc.pending = nil
	fc.signaled = true
}

func (f *Fake) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, handle vk.Fence) error {
	f.record("QueueSubmit", ID(queue))
	if err := f.failure("QueueSubmit"); err != nil {
		return err
	}

	var fc *fence
	if ID(handle) != 0 {
		var ok bool
		if fc, ok = f.fences[handle]; !ok {
			f.violate("submit signals unknown fence #%d", ID(handle))
		} else if fc.signaled || len(fc.pending) > 0 {
			f.violate("submit signals fence #%d which is not reset", ID(handle))
		}
	}

	for _, submit := range submits {
		f.Submits = append(f.Submits, submit)

		for _, sem := range submit.PWaitSemaphores {
			if !f.semaphores[sem] {
				f.violate("submit waits on semaphore #%d which nothing signals", ID(sem))
			}
			f.semaphores[sem] = false
		}

		for _, handle := range submit.PCommandBuffers {
			cb, ok := f.commands[handle]
			if !ok {
				f.violate("submit of unknown command buffer #%d", ID(handle))
				continue
			}
			if cb.state != cbExecutable {
				f.violate("submit of command buffer #%d which is not executable", ID(handle))
			}
			for _, work := range cb.work {
				work()
			}
			cb.state = cbPending
			if fc != nil {
				fc.pending = append(fc.pending, cb)
			} else {
				f.idlePending = append(f.idlePending, cb)
			}
		}

		for _, sem := range submit.PSignalSemaphores {
			f.semaphores[sem] = true
		}
	}
	return nil
}

func (f *Fake) CreateSwapchain(dev vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	f.record("CreateSwapchain", ID(dev))
	if err := f.failure("CreateSwapchain"); err != nil {
		return nil, err
	}
	f.SwapchainInfos = append(f.SwapchainInfos, *info)

	swapchain := mint[vk.Swapchain](f, "swapchain")
	images := make([]vk.Image, info.MinImageCount)
	for i := range images {
		images[i] = mint[vk.Image](f, "swapchain image")
		f.images[images[i]] = &imageObj{swapchain: true}
	}
	f.swapchains[swapchain] = images
	return swapchain, nil
}

func (f *Fake) DestroySwapchain(dev vk.Device, swapchain vk.Swapchain) {
	f.record("DestroySwapchain", ID(swapchain))
	f.release(ID(swapchain), "swapchain")
	for _, image := range f.swapchains[swapchain] {
		delete(f.images, image)
		delete(f.live, ID(image))
	}
	delete(f.swapchains, swapchain)
}

func (f *Fake) SwapchainImages(dev vk.Device, swapchain vk.Swapchain) ([]vk.Image, error) {
	images, ok := f.swapchains[swapchain]
	if !ok {
		f.violate("images of unknown swapchain #%d", ID(swapchain))
	}
	return append([]vk.Image(nil), images...), nil
}

func (f *Fake) AcquireNextImage(
	dev vk.Device,
	swapchain vk.Swapchain,
	timeout uint64,
	semaphore vk.Semaphore,
) (uint32, vk.Result) {
	f.record("AcquireNextImage", ID(semaphore))

	res := vk.Success
	if len(f.AcquireResults) > 0 {
		res = f.AcquireResults[0]
		f.AcquireResults = f.AcquireResults[1:]
	}
	if res != vk.Success && res != vk.Suboptimal {
		return 0, res
	}

	images, ok := f.swapchains[swapchain]
	if !ok || len(images) == 0 {
		f.violate("acquire from unknown swapchain #%d", ID(swapchain))
		return 0, res
	}
	if f.semaphores[semaphore] {
		f.violate("acquire signals semaphore #%d which is already signaled", ID(semaphore))
	}
	f.semaphores[semaphore] = true

	index := f.nextImage % uint32(len(images))
	f.nextImage++
	return index, res
}

func (f *Fake) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	f.record("QueuePresent", ID(queue))
	f.Presents = append(f.Presents, *info)

	for _, sem := range info.PWaitSemaphores {
		if !f.semaphores[sem] {
			f.violate("present waits on semaphore #%d which nothing signals", ID(sem))
		}
		f.semaphores[sem] = false
	}

	if len(f.PresentResults) > 0 {
		res := f.PresentResults[0]
		f.PresentResults = f.PresentResults[1:]
		return res
	}
	return vk.Success
}

func (f *Fake) AllocateMemory(dev vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	f.record("AllocateMemory", uintptr(info.AllocationSize))
	if err := f.failure("AllocateMemory"); err != nil {
		return nil, err
	}
	mem := mint[vk.DeviceMemory](f, "memory")
	f.memories[mem] = &memory{
		typeIndex: info.MemoryTypeIndex,
		data:      make([]byte, info.AllocationSize),
	}
	return mem, nil
}

func (f *Fake) FreeMemory(dev vk.Device, mem vk.DeviceMemory) {
	f.record("FreeMemory", ID(mem))
	f.release(ID(mem), "memory")
	delete(f.memories, mem)
}

func (f *Fake) hostMemory(mem vk.DeviceMemory, offset, size vk.DeviceSize) *memory {
	m, ok := f.memories[mem]
	if !ok {
		f.violate("mapping unknown memory #%d", ID(mem))
		return nil
	}
	if m.typeIndex != 1 {
		f.violate("mapping memory #%d which is not host visible", ID(mem))
		return nil
	}
	if offset+size > vk.DeviceSize(len(m.data)) {
		f.violate("mapping memory #%d out of range", ID(mem))
		return nil
	}
	return m
}

func (f *Fake) WriteMemory(dev vk.Device, mem vk.DeviceMemory, offset vk.DeviceSize, data []byte) error {
	f.record("WriteMemory", ID(mem))
	m := f.hostMemory(mem, offset, vk.DeviceSize(len(data)))
	if m == nil {
		return gpu.Check(vk.ErrorMemoryMapFailed)
	}
	copy(m.data[offset:], data)
	return nil
}

func (f *Fake) ReadMemory(dev vk.Device, mem vk.DeviceMemory, offset, size vk.DeviceSize) ([]byte, error) {
	f.record("ReadMemory", ID(mem))
	m := f.hostMemory(mem, offset, size)
	if m == nil {
		return nil, gpu.Check(vk.ErrorMemoryMapFailed)
	}
	return append([]byte(nil), m.data[offset:offset+size]...), nil
}

func (f *Fake) CreateBuffer(dev vk.Device, info *vk.BufferCreateInfo) (vk.Buffer, error) {
	f.record("CreateBuffer", uintptr(info.Size))
	if err := f.failure("CreateBuffer"); err != nil {
		return nil, err
	}
	buffer := mint[vk.Buffer](f, "buffer")
	f.buffers[buffer] = &binding{size: info.Size}
	return buffer, nil
}

func (f *Fake) DestroyBuffer(dev vk.Device, buffer vk.Buffer) {
	f.record("DestroyBuffer", ID(buffer))
	f.release(ID(buffer), "buffer")
	delete(f.buffers, buffer)
}

func (f *Fake) BufferMemoryRequirements(dev vk.Device, buffer vk.Buffer) vk.MemoryRequirements {
	b, ok := f.buffers[buffer]
	if !ok {
		f.violate("memory requirements of unknown buffer #%d", ID(buffer))
		return vk.MemoryRequirements{}
	}
	return vk.MemoryRequirements{Size: b.size, Alignment: 4, MemoryTypeBits: 0b11}
}

func (f *Fake) BindBufferMemory(dev vk.Device, buffer vk.Buffer, mem vk.DeviceMemory, offset vk.DeviceSize) error {
	b, ok := f.buffers[buffer]
	if !ok {
		f.violate("binding unknown buffer #%d", ID(buffer))
		return nil
	}
	return f.bind(b, mem, offset)
}

func (f *Fake) bind(b *binding, mem vk.DeviceMemory, offset vk.DeviceSize) error {
	m, ok := f.memories[mem]
	if !ok {
		f.violate("binding to unknown memory #%d", ID(mem))
		return nil
	}
	if offset+b.size > vk.DeviceSize(len(m.data)) {
		f.violate("binding %d bytes at %d to memory of %d bytes", b.size, offset, len(m.data))
	}
	b.memory = mem
	b.offset = offset
	b.bound = true
	return nil
}

func (f *Fake) CreateImage(dev vk.Device, info *vk.ImageCreateInfo) (vk.Image, error) {
	f.record("CreateImage", uintptr(info.Format))
	if err := f.failure("CreateImage"); err != nil {
		return nil, err
	}
	image := mint[vk.Image](f, "image")
	size := vk.DeviceSize(info.Extent.Width) * vk.DeviceSize(info.Extent.Height) * 4
	f.images[image] = &imageObj{binding: binding{size: size}, info: *info}
	return image, nil
}

func (f *Fake) DestroyImage(dev vk.Device, image vk.Image) {
	f.record("DestroyImage", ID(image))
	f.release(ID(image), "image")
	delete(f.images, image)
}

func (f *Fake) ImageMemoryRequirements(dev vk.Device, image vk.Image) vk.MemoryRequirements {
	img, ok := f.images[image]
	if !ok {
		f.violate("memory requirements of unknown image #%d", ID(image))
		return vk.MemoryRequirements{}
	}
	return vk.MemoryRequirements{Size: img.size, Alignment: 4, MemoryTypeBits: 0b11}
}

func (f *Fake) BindImageMemory(dev vk.Device, image vk.Image, mem vk.DeviceMemory, offset vk.DeviceSize) error {
	img, ok := f.images[image]
	if !ok {
		f.violate("binding unknown image #%d", ID(image))
		return nil
	}
	return f.bind(&img.binding, mem, offset)
}

// ImageInfo returns the create info of an image made through the fake.
func (f *Fake) ImageInfo(image vk.Image) (vk.ImageCreateInfo, bool) {
	img, ok := f.images[image]
	if !ok || img.swapchain {
		return vk.ImageCreateInfo{}, false
	}
	return img.info, true
}

// ImageContents returns the bytes of the memory bound to image.
func (f *Fake) ImageContents(image vk.Image) []byte {
	img, ok := f.images[image]
	if !ok || !img.bound {
		return nil
	}
	mem := f.memories[img.memory]
	return append([]byte(nil), mem.data[img.offset:img.offset+img.size]...)
}

func (f *Fake) CreateImageView(dev vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	f.record("CreateImageView", ID(info.Image))
	if err := f.failure("CreateImageView"); err != nil {
		return nil, err
	}
	if _, ok := f.images[info.Image]; !ok {
		f.violate("view of unknown image #%d", ID(info.Image))
	}
	return mint[vk.ImageView](f, "image view"), nil
}

func (f *Fake) DestroyImageView(dev vk.Device, view vk.ImageView) {
	f.record("DestroyImageView", ID(view))
	f.release(ID(view), "image view")
}

func (f *Fake) CreateSampler(dev vk.Device, info *vk.SamplerCreateInfo) (vk.Sampler, error) {
	f.record("CreateSampler", 0)
	if err := f.failure("CreateSampler"); err != nil {
		return nil, err
	}
	f.Samplers = append(f.Samplers, *info)
	return mint[vk.Sampler](f, "sampler"), nil
}

func (f *Fake) DestroySampler(dev vk.Device, sampler vk.Sampler) {
	f.record("DestroySampler", ID(sampler))
	f.release(ID(sampler), "sampler")
}

func (f *Fake) CreateDescriptorPool(dev vk.Device, info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	f.record("CreateDescriptorPool", uintptr(info.MaxSets))
	if err := f.failure("CreateDescriptorPool"); err != nil {
		return nil, err
	}
	return mint[vk.DescriptorPool](f, "descriptor pool"), nil
}

func (f *Fake) DestroyDescriptorPool(dev vk.Device, pool vk.DescriptorPool) {
	f.record("DestroyDescriptorPool", ID(pool))
	f.release(ID(pool), "descriptor pool")
}

func (f *Fake) AllocateDescriptorSets(dev vk.Device, info *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, error) {
	f.record("AllocateDescriptorSets", uintptr(info.DescriptorSetCount))
	if err := f.failure("AllocateDescriptorSets"); err != nil {
		return nil, err
	}
	sets := make([]vk.DescriptorSet, info.DescriptorSetCount)
	for i := range sets {
		sets[i] = mint[vk.DescriptorSet](f, "descriptor set")
	}
	return sets, nil
}

func (f *Fake) UpdateDescriptorSets(dev vk.Device, writes []vk.WriteDescriptorSet) {
	f.record("UpdateDescriptorSets", uintptr(len(writes)))
}

func (f *Fake) CreateShaderModule(dev vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	f.record("CreateShaderModule", uintptr(info.CodeSize))
	if err := f.failure("CreateShaderModule"); err != nil {
		return nil, err
	}
	return mint[vk.ShaderModule](f, "shader module"), nil
}

func (f *Fake) DestroyShaderModule(dev vk.Device, module vk.ShaderModule) {
	f.record("DestroyShaderModule", ID(module))
	f.release(ID(module), "shader module")
}

func (f *Fake) CreateDescriptorSetLayout(
	dev vk.Device,
	info *vk.DescriptorSetLayoutCreateInfo,
) (vk.DescriptorSetLayout, error) {
	f.record("CreateDescriptorSetLayout", 0)
	if err := f.failure("CreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	f.SetLayouts = append(f.SetLayouts, *info)
	return mint[vk.DescriptorSetLayout](f, "descriptor set layout"), nil
}

func (f *Fake) DestroyDescriptorSetLayout(dev vk.Device, layout vk.DescriptorSetLayout) {
	f.record("DestroyDescriptorSetLayout", ID(layout))
	f.release(ID(layout), "descriptor set layout")
}

func (f *Fake) CreatePipelineLayout(dev vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	f.record("CreatePipelineLayout", 0)
	if err := f.failure("CreatePipelineLayout"); err != nil {
		return nil, err
	}
	return mint[vk.PipelineLayout](f, "pipeline layout"), nil
}

func (f *Fake) DestroyPipelineLayout(dev vk.Device, layout vk.PipelineLayout) {
	f.record("DestroyPipelineLayout", ID(layout))
	f.release(ID(layout), "pipeline layout")
}

func (f *Fake) CreateRenderPass(dev vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	f.record("CreateRenderPass", 0)
	if err := f.failure("CreateRenderPass"); err != nil {
		return nil, err
	}
	f.RenderPasses = append(f.RenderPasses, *info)
	return mint[vk.RenderPass](f, "render pass"), nil
}

func (f *Fake) DestroyRenderPass(dev vk.Device, renderPass vk.RenderPass) {
	f.record("DestroyRenderPass", ID(renderPass))
	f.release(ID(renderPass), "render pass")
}

func (f *Fake) CreateGraphicsPipeline(dev vk.Device, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	f.record("CreateGraphicsPipeline", 0)
	if err := f.failure("CreateGraphicsPipeline"); err != nil {
		return nil, err
	}
	f.Pipelines = append(f.Pipelines, *info)
	return mint[vk.Pipeline](f, "pipeline"), nil
}

func (f *Fake) DestroyPipeline(dev vk.Device, pipeline vk.Pipeline) {
	f.record("DestroyPipeline", ID(pipeline))
	f.release(ID(pipeline), "pipeline")
}

func (f *Fake) CreateFramebuffer(dev vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	f.record("CreateFramebuffer", ID(info.RenderPass))
	if err := f.failure("CreateFramebuffer"); err != nil {
		return nil, err
	}
	if _, ok := f.live[ID(info.RenderPass)]; !ok {
		f.violate("framebuffer for render pass #%d which is not alive", ID(info.RenderPass))
	}
	return mint[vk.Framebuffer](f, "framebuffer"), nil
}

func (f *Fake) DestroyFramebuffer(dev vk.Device, framebuffer vk.Framebuffer) {
	f.record("DestroyFramebuffer", ID(framebuffer))
	f.release(ID(framebuffer), "framebuffer")
}

func (f *Fake) CreateCommandPool(dev vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, error) {
	f.record("CreateCommandPool", uintptr(info.QueueFamilyIndex))
	if err := f.failure("CreateCommandPool"); err != nil {
		return nil, err
	}
	return mint[vk.CommandPool](f, "command pool"), nil
}

func (f *Fake) DestroyCommandPool(dev vk.Device, pool vk.CommandPool) {
	f.record("DestroyCommandPool", ID(pool))
	f.release(ID(pool), "command pool")
}

func (f *Fake) AllocateCommandBuffers(dev vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, error) {
	f.record("AllocateCommandBuffers", uintptr(info.CommandBufferCount))
	if err := f.failure("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	buffers := make([]vk.CommandBuffer, info.CommandBufferCount)
	for i := range buffers {
		buffers[i] = mint[vk.CommandBuffer](f, "command buffer")
		f.commands[buffers[i]] = &commandBuffer{}
	}
	return buffers, nil
}

func (f *Fake) FreeCommandBuffers(dev vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer) {
	f.record("FreeCommandBuffers", uintptr(len(buffers)))
	for _, handle := range buffers {
		if cb, ok := f.commands[handle]; ok && cb.state == cbPending {
			f.violate("freeing command buffer #%d while it is in flight", ID(handle))
		}
		f.release(ID(handle), "command buffer")
		delete(f.commands, handle)
	}
}

func (f *Fake) buffer(handle vk.CommandBuffer) *commandBuffer {
	cb, ok := f.commands[handle]
	if !ok {
		f.violate("unknown command buffer #%d", ID(handle))
		return &commandBuffer{}
	}
	return cb
}

func (f *Fake) ResetCommandBuffer(handle vk.CommandBuffer) error {
	f.record("ResetCommandBuffer", ID(handle))
	cb := f.buffer(handle)
	if cb.state == cbPending {
		f.violate("command buffer #%d reset while in flight", ID(handle))
	}
	cb.state = cbInitial
	cb.recorded = nil
	cb.work = nil
	return nil
}

func (f *Fake) BeginCommandBuffer(handle vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error {
	f.record("BeginCommandBuffer", ID(handle))
	cb := f.buffer(handle)
	switch cb.state {
	case cbPending:
		f.violate("command buffer #%d re-recorded while in flight", ID(handle))
	case cbRecording:
		f.violate("command buffer #%d begun twice", ID(handle))
	}
	cb.state = cbRecording
	cb.recorded = nil
	cb.work = nil
	return f.failure("BeginCommandBuffer")
}

func (f *Fake) EndCommandBuffer(handle vk.CommandBuffer) error {
	f.record("EndCommandBuffer", ID(handle))
	cb := f.buffer(handle)
	if cb.state != cbRecording {
		f.violate("ending command buffer #%d which is not recording", ID(handle))
	}
	cb.state = cbExecutable
	return f.failure("EndCommandBuffer")
}

func (f *Fake) cmd(handle vk.CommandBuffer, name string, work func()) {
	cb := f.buffer(handle)
	if cb.state != cbRecording {
		f.violate("%s recorded into command buffer #%d which is not recording", name, ID(handle))
	}
	cb.recorded = append(cb.recorded, name)
	if work != nil {
		cb.work = append(cb.work, work)
	}
}

func (f *Fake) CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	f.BeginPasses = append(f.BeginPasses, *info)
	f.cmd(cb, "BeginRenderPass", nil)
}

func (f *Fake) CmdEndRenderPass(cb vk.CommandBuffer) {
	f.cmd(cb, "EndRenderPass", nil)
}

func (f *Fake) CmdBindPipeline(cb vk.CommandBuffer, pipeline vk.Pipeline) {
	f.cmd(cb, "BindPipeline", nil)
}

func (f *Fake) CmdSetViewport(cb vk.CommandBuffer, viewports []vk.Viewport) {
	f.Viewports = append(f.Viewports, viewports...)
	f.cmd(cb, "SetViewport", nil)
}

func (f *Fake) CmdSetScissor(cb vk.CommandBuffer, scissors []vk.Rect2D) {
	f.Scissors = append(f.Scissors, scissors...)
	f.cmd(cb, "SetScissor", nil)
}

func (f *Fake) CmdBindVertexBuffers(cb vk.CommandBuffer, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	f.cmd(cb, "BindVertexBuffers", nil)
}

func (f *Fake) CmdBindIndexBuffer(cb vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	f.cmd(cb, "BindIndexBuffer", nil)
}

func (f *Fake) CmdBindDescriptorSets(cb vk.CommandBuffer, layout vk.PipelineLayout, sets []vk.DescriptorSet) {
	f.cmd(cb, "BindDescriptorSets", nil)
}

func (f *Fake) CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount uint32) {
	f.cmd(cb, fmt.Sprintf("DrawIndexed(%d)", indexCount), nil)
}

func (f *Fake) CmdCopyBuffer(cb vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	regions = append([]vk.BufferCopy(nil), regions...)
	f.cmd(cb, "CopyBuffer", func() {
		for _, region := range regions {
			f.copyRegion(f.buffers[src], f.buffers[dst], region.SrcOffset, region.DstOffset, region.Size)
		}
	})
}

func (f *Fake) CmdCopyBufferToImage(
	cb vk.CommandBuffer,
	src vk.Buffer,
	dst vk.Image,
	layout vk.ImageLayout,
	regions []vk.BufferImageCopy,
) {
	if layout != vk.ImageLayoutTransferDstOptimal {
		f.violate("copy to image #%d in layout %d", ID(dst), layout)
	}
	f.cmd(cb, "CopyBufferToImage", func() {
		img, ok := f.images[dst]
		if !ok {
			f.violate("copy to unknown image #%d", ID(dst))
			return
		}
		f.copyRegion(f.buffers[src], &img.binding, 0, 0, img.size)
	})
}

func (f *Fake) copyRegion(src, dst *binding, srcOffset, dstOffset, size vk.DeviceSize) {
	if src == nil || dst == nil || !src.bound || !dst.bound {
		f.violate("copy between unbound resources")
		return
	}
	from := f.memories[src.memory].data[src.offset+srcOffset:]
	to := f.memories[dst.memory].data[dst.offset+dstOffset:]
	copy(to[:size], from[:size])
}

func (f *Fake) CmdPipelineBarrier(
	cb vk.CommandBuffer,
	srcStage, dstStage vk.PipelineStageFlags,
	barriers []vk.ImageMemoryBarrier,
) {
	f.Barriers = append(f.Barriers, barriers...)
	f.cmd(cb, "PipelineBarrier", nil)
}

func (f *Fake) CreateSemaphore(dev vk.Device) (vk.Semaphore, error) {
	f.record("CreateSemaphore", 0)
	if err := f.failure("CreateSemaphore"); err != nil {
		return nil, err
	}
	sem := mint[vk.Semaphore](f, "semaphore")
	f.semaphores[sem] = false
	return sem, nil
}

func (f *Fake) DestroySemaphore(dev vk.Device, sem vk.Semaphore) {
	f.record("DestroySemaphore", ID(sem))
	f.release(ID(sem), "semaphore")
	delete(f.semaphores, sem)
}

func (f *Fake) CreateFence(dev vk.Device, signaled bool) (vk.Fence, error) {
	f.record("CreateFence", 0)
	if err := f.failure("CreateFence"); err != nil {
		return nil, err
	}
	handle := mint[vk.Fence](f, "fence")
	f.fences[handle] = &fence{signaled: signaled}
	return handle, nil
}

func (f *Fake) DestroyFence(dev vk.Device, handle vk.Fence) {
	f.record("DestroyFence", ID(handle))
	if fc, ok := f.fences[handle]; ok && len(fc.pending) > 0 {
		f.violate("fence #%d destroyed while work is in flight", ID(handle))
	}
	f.release(ID(handle), "fence")
	delete(f.fences, handle)
}

func (f *Fake) WaitForFences(dev vk.Device, fences []vk.Fence, timeout uint64) error {
	for _, handle := range fences {
		f.record("WaitForFences", ID(handle))

		fc, ok := f.fences[handle]
		if !ok {
			f.violate("waiting on unknown fence #%d", ID(handle))
			continue
		}
		if len(fc.pending) > 0 {
			f.complete(fc)
		}
		if !fc.signaled {
			f.violate("waiting on fence #%d which will never be signaled", ID(handle))
			return gpu.Check(vk.Timeout)
		}
	}
	return nil
}

func (f *Fake) ResetFences(dev vk.Device, fences []vk.Fence) error {
	for _, handle := range fences {
		f.record("ResetFences", ID(handle))

		fc, ok := f.fences[handle]
		if !ok {
			f.violate("resetting unknown fence #%d", ID(handle))
			continue
		}
		if len(fc.pending) > 0 {
			f.violate("fence #%d reset while work is in flight", ID(handle))
		}
		fc.signaled = false
	}
	return nil
}

// Package device picks a physical device and creates the logical device the
// rest of the engine works with.
package device

import (
	"log/slog"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/queues"
)

// Device is a logical device together with the physical device it was created
// from and its graphics and present queues.
type Device struct {
	drv      gpu.Driver
	physical Candidate
	handle   vk.Device
	families queues.FamilyIndices
	graphics vk.Queue
	present  vk.Queue
	memory   vk.PhysicalDeviceMemoryProperties
}

// Create makes a logical device for c with one queue for every distinct
// family, exactly the features in req enabled and the extensions of req
// turned on. Layers are enabled as well for the benefit of older drivers
// which still look at device layers.
func Create(drv gpu.Driver, c Candidate, req Requirements, layers []string) (*Device, error) {
	if !c.Families.IsComplete() {
		return nil, gpu.Invalidf(
			"creating device for %s which does not have all the queues required", c.Name(),
		)
	}

	queueCreateInfos := []vk.DeviceQueueCreateInfo{}
	for _, familyIndex := range c.Families.Unique() {
		queueCreateInfos = append(
			queueCreateInfos,
			vk.DeviceQueueCreateInfo{
				SType:            vk.StructureTypeDeviceQueueCreateInfo,
				QueueFamilyIndex: familyIndex,
				QueueCount:       1,
				PQueuePriorities: []float32{1.0},
			},
		)
	}

	var enabled vk.PhysicalDeviceFeatures
	for _, feature := range req.Features {
		if err := Enable(&enabled, feature); err != nil {
			return nil, err
		}
	}

	extensions := nullTerminated(req.Extensions)
	createInfo := vk.DeviceCreateInfo{
		SType:            vk.StructureTypeDeviceCreateInfo,
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{enabled},

		PQueueCreateInfos:    queueCreateInfos,
		QueueCreateInfoCount: uint32(len(queueCreateInfos)),

		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	if len(layers) > 0 {
		createInfo.PpEnabledLayerNames = nullTerminated(layers)
		createInfo.EnabledLayerCount = uint32(len(layers))
	}

	handle, err := drv.CreateDevice(c.Handle, &createInfo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logical device")
	}

	d := &Device{
		drv:      drv,
		physical: c,
		handle:   handle,
		families: c.Families,
		memory:   drv.MemoryProperties(c.Handle),
	}
	d.graphics = drv.DeviceQueue(handle, c.Families.Graphics.Get(), 0)
	d.present = drv.DeviceQueue(handle, c.Families.Present.Get(), 0)

	slog.Debug("logical device created",
		"device", c.Name(),
		"graphics_family", c.Families.Graphics.Get(),
		"present_family", c.Families.Present.Get(),
	)
	return d, nil
}

func nullTerminated(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if len(name) == 0 || name[len(name)-1] != 0 {
			name += "\x00"
		}
		out = append(out, name)
	}
	return out
}

// Driver returns the driver the device was created with.
func (d *Device) Driver() gpu.Driver {
	return d.drv
}

// Handle returns the logical device.
func (d *Device) Handle() vk.Device {
	return d.handle
}

// Physical returns the physical device the logical device was created for.
func (d *Device) Physical() Candidate {
	return d.physical
}

// Families returns the queue family indexes in use.
func (d *Device) Families() queues.FamilyIndices {
	return d.families
}

// GraphicsQueue returns the queue all command buffers are submitted to.
func (d *Device) GraphicsQueue() vk.Queue {
	return d.graphics
}

// PresentQueue returns the queue swapchain images are presented with.
func (d *Device) PresentQueue() vk.Queue {
	return d.present
}

// MaxSamplerAnisotropy returns the device limit for sampler anisotropy.
func (d *Device) MaxSamplerAnisotropy() float32 {
	return d.physical.Properties.Limits.MaxSamplerAnisotropy
}

// WaitIdle blocks until the device has finished all submitted work.
func (d *Device) WaitIdle() error {
	return errors.Wrap(d.drv.DeviceWaitIdle(d.handle), "waiting for device idle")
}

// Destroy destroys the logical device. Every object created from it must be
// gone by then.
func (d *Device) Destroy() {
	if d == nil || d.handle == vk.Device(vk.NullHandle) {
		return
	}
	d.drv.DestroyDevice(d.handle)
	d.handle = vk.Device(vk.NullHandle)
}

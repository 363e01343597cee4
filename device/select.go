package device

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/queues"
)

// Requirements is what a physical device must offer to be used by the engine.
type Requirements struct {
	// DeviceType is the only accepted type of device.
	DeviceType vk.PhysicalDeviceType

	// Features must all be supported and are enabled on the logical device.
	Features []Feature

	// Extensions are device extension names without the terminating NUL.
	Extensions []string
}

// DefaultRequirements asks for a discrete GPU with sampler anisotropy which
// can present to a surface.
func DefaultRequirements() Requirements {
	return Requirements{
		DeviceType: vk.PhysicalDeviceTypeDiscreteGpu,
		Features:   []Feature{FeatureSamplerAnisotropy},
		Extensions: []string{vk.KhrSwapchainExtensionName},
	}
}

// Candidate is everything known about a physical device when deciding
// whether to use it.
type Candidate struct {
	Handle     vk.PhysicalDevice
	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Extensions []string
	Families   queues.FamilyIndices

	// SurfaceFormats and PresentModes count what the device offers for the
	// surface. They are only queried when the device supports every
	// required extension.
	SurfaceFormats int
	PresentModes   int
}

// Name returns the device name reported by the driver.
func (c Candidate) Name() string {
	return vk.ToString(c.Properties.DeviceName[:])
}

// Inspect gathers the properties of device needed by IsSuitable.
func Inspect(
	drv gpu.PhysicalDevices,
	device vk.PhysicalDevice,
	surface vk.Surface,
	req Requirements,
) (Candidate, error) {
	c := Candidate{
		Handle:     device,
		Properties: drv.PhysicalDeviceProperties(device),
		Features:   drv.PhysicalDeviceFeatures(device),
		Families:   queues.Find(drv, device, surface),
	}

	extensions, err := drv.DeviceExtensions(device)
	if err != nil {
		return c, errors.Wrapf(err, "listing extensions of %s", c.Name())
	}
	c.Extensions = extensions

	if len(missingExtensions(extensions, req.Extensions)) > 0 {
		return c, nil
	}

	formats, err := drv.SurfaceFormats(device, surface)
	if err != nil {
		return c, errors.Wrapf(err, "querying surface formats of %s", c.Name())
	}
	modes, err := drv.SurfacePresentModes(device, surface)
	if err != nil {
		return c, errors.Wrapf(err, "querying present modes of %s", c.Name())
	}
	c.SurfaceFormats = len(formats)
	c.PresentModes = len(modes)

	return c, nil
}

func missingExtensions(available, required []string) []string {
	remaining := make(map[string]struct{}, len(required))
	for _, name := range required {
		remaining[name] = struct{}{}
	}
	for _, name := range available {
		delete(remaining, name)
	}

	missing := make([]string, 0, len(remaining))
	for _, name := range required {
		if _, ok := remaining[name]; ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Reject returns why c does not satisfy req or nil when it does. Requirements
// naming an unknown feature yield an error wrapping gpu.ErrInvalidUsage.
func Reject(c Candidate, req Requirements) error {
	if c.Properties.DeviceType != req.DeviceType {
		return errors.Errorf("device type %d is not %d", c.Properties.DeviceType, req.DeviceType)
	}

	for _, feature := range req.Features {
		ok, err := Supported(c.Features, feature)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("feature %s is not supported", feature)
		}
	}

	if missing := missingExtensions(c.Extensions, req.Extensions); len(missing) > 0 {
		return errors.Errorf("missing extensions %s", strings.Join(missing, ", "))
	}

	if !c.Families.IsComplete() {
		return errors.New("no queue families for both graphics and presentation")
	}

	if c.SurfaceFormats == 0 || c.PresentModes == 0 {
		return errors.New("surface has no formats or present modes")
	}

	return nil
}

// IsSuitable returns true when c satisfies req.
func IsSuitable(c Candidate, req Requirements) bool {
	return Reject(c, req) == nil
}

// Score rates a device for the debug log. It does not take part in the
// selection which always picks the first suitable device.
func Score(c Candidate, req Requirements) uint32 {
	var score uint32
	if c.Properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
		score += 1000
	} else {
		score++
	}
	if !IsSuitable(c, req) {
		score = 0
	}
	return score
}

// Select returns the first physical device, in enumeration order, which
// satisfies req.
func Select(
	drv gpu.PhysicalDevices,
	instance vk.Instance,
	surface vk.Surface,
	req Requirements,
) (Candidate, error) {
	devices, err := drv.EnumeratePhysicalDevices(instance)
	if err != nil {
		return Candidate{}, errors.Wrap(err, "enumerating physical devices")
	}
	if len(devices) == 0 {
		return Candidate{}, &gpu.NoSuitableDeviceError{}
	}

	rejected := make(map[string]string, len(devices))
	for i, device := range devices {
		c, err := Inspect(drv, device, surface, req)
		if err != nil {
			slog.Warn("skipping physical device", "index", i, "err", err)
			rejected[candidateKey(i, c)] = err.Error()
			continue
		}

		slog.Debug("available device", "name", c.Name(), "score", Score(c, req))

		err = Reject(c, req)
		if errors.Is(err, gpu.ErrInvalidUsage) {
			return Candidate{}, err
		}
		if err != nil {
			rejected[candidateKey(i, c)] = err.Error()
			continue
		}

		slog.Info("Found physical device", "name", c.Name())
		return c, nil
	}

	return Candidate{}, &gpu.NoSuitableDeviceError{Rejected: rejected}
}

func candidateKey(i int, c Candidate) string {
	return fmt.Sprintf("#%d %s", i, c.Name())
}

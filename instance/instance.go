// Package instance creates the Vulkan instance and the window surface.
package instance

import (
	"strings"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/gpu"
)

// ValidationLayers are enabled in debug mode.
var ValidationLayers = []string{
	"VK_LAYER_KHRONOS_validation",
}

// SurfaceSource is a window Vulkan can present to.
type SurfaceSource interface {
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

// Options describe the instance to create.
type Options struct {
	AppName string

	// Extensions are the instance extensions the window needs.
	Extensions []string

	// Debug enables ValidationLayers. They must be available.
	Debug bool
}

// Instance is a Vulkan instance together with the surface of the window.
type Instance struct {
	handle  vk.Instance
	surface vk.Surface
	layers  []string
}

// New creates the Vulkan instance.
func New(opts Options) (*Instance, error) {
	var layers []string
	if opts.Debug {
		available, err := availableLayers()
		if err != nil {
			return nil, err
		}
		if missing := MissingLayers(available, ValidationLayers); len(missing) > 0 {
			return nil, errors.Errorf(
				"validation layers requested but not available: %s",
				strings.Join(missing, ", "),
			)
		}
		layers = ValidationLayers
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   opts.AppName + "\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "Calico\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.ApiVersion10,
	}

	extensions := Terminate(opts.Extensions)
	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	if len(layers) > 0 {
		enabled := Terminate(layers)
		createInfo.EnabledLayerCount = uint32(len(enabled))
		createInfo.PpEnabledLayerNames = enabled
	}

	var instance vk.Instance
	if err := gpu.Check(vk.CreateInstance(&createInfo, nil, &instance)); err != nil {
		return nil, errors.Wrap(err, "failed to create Vulkan instance")
	}

	return &Instance{
		handle:  instance,
		surface: vk.NullSurface,
		layers:  layers,
	}, nil
}

func availableLayers() ([]string, error) {
	var count uint32
	if err := gpu.Check(vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, errors.Wrap(err, "counting instance layers")
	}
	availableLayers := make([]vk.LayerProperties, count)

	if err := gpu.Check(vk.EnumerateInstanceLayerProperties(&count, availableLayers)); err != nil {
		return nil, errors.Wrap(err, "listing instance layers")
	}

	names := make([]string, 0, count)
	for _, layer := range availableLayers {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// MissingLayers returns the layers of required which are not in available.
func MissingLayers(available, required []string) []string {
	have := make(map[string]struct{}, len(available))
	for _, name := range available {
		have[strings.TrimRight(name, "\x00")] = struct{}{}
	}

	var missing []string
	for _, name := range required {
		name = strings.TrimRight(name, "\x00")
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Terminate returns names with a NUL byte at the end of each, as Vulkan
// expects them.
func Terminate(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !strings.HasSuffix(name, "\x00") {
			name += "\x00"
		}
		out = append(out, name)
	}
	return out
}

// CreateSurface creates the surface of window. The instance owns it.
func (i *Instance) CreateSurface(window SurfaceSource) error {
	surface, err := window.CreateSurface(i.handle)
	if err != nil {
		return err
	}
	i.surface = surface
	return nil
}

// Handle returns the instance.
func (i *Instance) Handle() vk.Instance {
	return i.handle
}

// Surface returns the window surface or vk.NullSurface before CreateSurface.
func (i *Instance) Surface() vk.Surface {
	return i.surface
}

// Layers returns the enabled layers. Logical devices enable the same ones.
func (i *Instance) Layers() []string {
	return i.layers
}

// Destroy destroys the surface and the instance.
func (i *Instance) Destroy() {
	if i == nil {
		return
	}
	if i.surface != vk.NullSurface {
		vk.DestroySurface(i.handle, i.surface, nil)
		i.surface = vk.NullSurface
	}
	vk.DestroyInstance(i.handle, nil)
}

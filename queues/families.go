// Package queues finds the queue families the engine submits work to.
package queues

import (
	"log/slog"
	"sort"

	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/optional"
)

// FamilyIndices holds the indexes of Vulkan queue families needed by the engine.
type FamilyIndices struct {

	// Graphics is the index of the graphics queue family.
	Graphics optional.Optional[uint32]

	// Present is the index of the queue family used for presenting to the drawing
	// surface.
	Present optional.Optional[uint32]
}

// IsComplete returns true if all families have been set.
func (f FamilyIndices) IsComplete() bool {
	return f.Graphics.HasValue() && f.Present.HasValue()
}

// Shared returns true when graphics and presentation use the same family.
// It panics for incomplete indices.
func (f FamilyIndices) Shared() bool {
	return f.Graphics.Get() == f.Present.Get()
}

// Unique returns the distinct family indexes in increasing order. Unset
// families are left out.
func (f FamilyIndices) Unique() []uint32 {
	seen := make(map[uint32]struct{}, 2)
	for _, family := range []optional.Optional[uint32]{f.Graphics, f.Present} {
		if family.HasValue() {
			seen[family.Get()] = struct{}{}
		}
	}

	unique := make([]uint32, 0, len(seen))
	for index := range seen {
		unique = append(unique, index)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
	return unique
}

// Find walks the queue families of device in order and records the families
// which support graphics commands and presentation to surface. It stops as
// soon as both are found. A family whose surface support cannot be queried is
// treated as unable to present.
func Find(drv gpu.PhysicalDevices, device vk.PhysicalDevice, surface vk.Surface) FamilyIndices {
	indices := FamilyIndices{}

	for i, family := range drv.QueueFamilyProperties(device) {
		if family.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			indices.Graphics.Set(uint32(i))
		}

		hasPresent, err := drv.SurfaceSupport(device, uint32(i), surface)
		if err != nil {
			slog.Warn("querying surface support failed", "family", i, "err", err)
		} else if hasPresent {
			indices.Present.Set(uint32(i))
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices
}

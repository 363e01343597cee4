package render

import (
	"math"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	"github.com/xlab/linmath"

	"github.com/NocaToca/Calico/unsafer"
)

// UniformBufferObject is the layout of the uniform buffer at binding 0.
type UniformBufferObject struct {
	Model linmath.Mat4x4
	View  linmath.Mat4x4
	Proj  linmath.Mat4x4
}

var uniformBufferSize = vk.DeviceSize(unsafe.Sizeof(UniformBufferObject{}))

// Transforms returns the matrices for a model rotated by angle radians around
// the Z axis, seen from above at an angle, projected for the aspect ratio of
// extent.
func Transforms(angle float32, extent vk.Extent2D) UniformBufferObject {
	ubo := UniformBufferObject{}

	ubo.Model.Identity()
	ubo.Model.RotateZ(&ubo.Model, angle)
	ubo.View.LookAt(
		&linmath.Vec3{2, 2, 2},
		&linmath.Vec3{0, 0, 0},
		&linmath.Vec3{0, 0, 1},
	)

	aspectR := float32(1)
	if extent.Height != 0 {
		aspectR = float32(extent.Width) / float32(extent.Height)
	}
	ubo.Proj.Perspective(math.Pi/4, aspectR, 0.1, 10)

	// Vulkan's clip space Y axis points down.
	ubo.Proj[1][1] *= -1

	return ubo
}

func (r *Renderer) updateUniformBuffer(frame int) error {
	elapsed := r.now().Sub(r.start)
	ubo := Transforms(r.spin*float32(elapsed.Seconds()), r.swapchain.Extent())
	return r.dev.Write(r.uniformBuffers[frame], unsafer.StructToBytes(&ubo))
}

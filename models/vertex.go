// Package models holds the vertex format of the engine and the geometry it
// draws.
package models

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	"github.com/xlab/linmath"
)

// Vertex is a single vertex as laid out in the vertex buffer.
type Vertex struct {
	Pos      linmath.Vec3
	Color    linmath.Vec3
	TexCoord linmath.Vec2
}

// VertexSize returns the size of a Vertex in bytes.
func VertexSize() uint32 {
	return uint32(unsafe.Sizeof(Vertex{}))
}

// Layout describes how the vertex buffer is fed to the vertex shader.
type Layout struct {
	Binding    vk.VertexInputBindingDescription
	Attributes []vk.VertexInputAttributeDescription
}

// VertexLayout returns the layout of Vertex: position at location 0, color at
// location 1 and texture coordinates at location 2, all from binding 0.
func VertexLayout() Layout {
	return Layout{
		Binding: vk.VertexInputBindingDescription{
			Binding:   0,
			Stride:    VertexSize(),
			InputRate: vk.VertexInputRateVertex,
		},
		Attributes: []vk.VertexInputAttributeDescription{
			{
				Binding:  0,
				Location: 0,
				Format:   vk.FormatR32g32b32Sfloat,
				Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
			},
			{
				Binding:  0,
				Location: 1,
				Format:   vk.FormatR32g32b32Sfloat,
				Offset:   uint32(unsafe.Offsetof(Vertex{}.Color)),
			},
			{
				Binding:  0,
				Location: 2,
				Format:   vk.FormatR32g32Sfloat,
				Offset:   uint32(unsafe.Offsetof(Vertex{}.TexCoord)),
			},
		},
	}
}

// Mesh is indexed geometry ready to be uploaded.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint16
}

// Quad returns a unit square centered at the origin with a different color in
// every corner.
func Quad() Mesh {
	return Mesh{
		Vertices: []Vertex{
			{
				Pos:      linmath.Vec3{-0.5, -0.5, 0},
				Color:    linmath.Vec3{1, 0, 0},
				TexCoord: linmath.Vec2{1, 0},
			},
			{
				Pos:      linmath.Vec3{0.5, -0.5, 0},
				Color:    linmath.Vec3{0, 1, 0},
				TexCoord: linmath.Vec2{0, 0},
			},
			{
				Pos:      linmath.Vec3{0.5, 0.5, 0},
				Color:    linmath.Vec3{0, 0, 1},
				TexCoord: linmath.Vec2{0, 1},
			},
			{
				Pos:      linmath.Vec3{-0.5, 0.5, 0},
				Color:    linmath.Vec3{1, 1, 0},
				TexCoord: linmath.Vec2{1, 1},
			},
		},
		Indices: []uint16{
			0, 1, 2, 2, 3, 0,
		},
	}
}

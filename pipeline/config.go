package pipeline

import (
	vk "github.com/vulkan-go/vulkan"
)

// Config is the fixed function state of a graphics pipeline.
type Config struct {
	// DynamicStates are set while recording instead of being baked into the
	// pipeline.
	DynamicStates []vk.DynamicState

	Topology    vk.PrimitiveTopology
	PolygonMode vk.PolygonMode
	CullMode    vk.CullModeFlags
	FrontFace   vk.FrontFace
	LineWidth   float32
	Samples     vk.SampleCountFlagBits

	BlendEnable bool

	DepthTest      bool
	DepthWrite     bool
	DepthCompareOp vk.CompareOp
	StencilTest    bool
}

// DefaultConfig draws filled, back face culled, counter clockwise triangle
// lists without blending or multisampling. The nearest fragment wins the depth
// test. Viewport and scissor are dynamic.
func DefaultConfig() Config {
	return Config{
		DynamicStates: []vk.DynamicState{
			vk.DynamicStateViewport,
			vk.DynamicStateScissor,
		},
		Topology:       vk.PrimitiveTopologyTriangleList,
		PolygonMode:    vk.PolygonModeFill,
		CullMode:       vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:      vk.FrontFaceCounterClockwise,
		LineWidth:      1,
		Samples:        vk.SampleCount1Bit,
		BlendEnable:    false,
		DepthTest:      true,
		DepthWrite:     true,
		DepthCompareOp: vk.CompareOpLess,
		StencilTest:    false,
	}
}

func bool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

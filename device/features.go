package device

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/gpu"
)

// Feature is an optional capability of a physical device, one for each
// boolean of vk.PhysicalDeviceFeatures the engine knows how to ask for.
type Feature int

// Features which can be required from a device.
const (
	FeatureRobustBufferAccess Feature = iota
	FeatureFullDrawIndexUint32
	FeatureImageCubeArray
	FeatureIndependentBlend
	FeatureGeometryShader
	FeatureTessellationShader
	FeatureSampleRateShading
	FeatureDualSrcBlend
	FeatureLogicOp
	FeatureMultiDrawIndirect
	FeatureDrawIndirectFirstInstance
	FeatureDepthClamp
	FeatureDepthBiasClamp
	FeatureFillModeNonSolid
	FeatureDepthBounds
	FeatureWideLines
	FeatureLargePoints
	FeatureAlphaToOne
	FeatureMultiViewport
	FeatureSamplerAnisotropy
	FeatureTextureCompressionBC
	FeatureOcclusionQueryPrecise
	FeaturePipelineStatisticsQuery
	FeatureShaderFloat64
	FeatureShaderInt64
	FeatureShaderInt16
)

type featureField struct {
	name  string
	field func(*vk.PhysicalDeviceFeatures) *vk.Bool32
}

var features = map[Feature]featureField{
	FeatureRobustBufferAccess: {"robustBufferAccess",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.RobustBufferAccess }},
	FeatureFullDrawIndexUint32: {"fullDrawIndexUint32",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.FullDrawIndexUint32 }},
	FeatureImageCubeArray: {"imageCubeArray",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.ImageCubeArray }},
	FeatureIndependentBlend: {"independentBlend",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.IndependentBlend }},
	FeatureGeometryShader: {"geometryShader",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.GeometryShader }},
	FeatureTessellationShader: {"tessellationShader",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.TessellationShader }},
	FeatureSampleRateShading: {"sampleRateShading",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.SampleRateShading }},
	FeatureDualSrcBlend: {"dualSrcBlend",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.DualSrcBlend }},
	FeatureLogicOp: {"logicOp",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.LogicOp }},
	FeatureMultiDrawIndirect: {"multiDrawIndirect",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.MultiDrawIndirect }},
	FeatureDrawIndirectFirstInstance: {"drawIndirectFirstInstance",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.DrawIndirectFirstInstance }},
	FeatureDepthClamp: {"depthClamp",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.DepthClamp }},
	FeatureDepthBiasClamp: {"depthBiasClamp",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.DepthBiasClamp }},
	FeatureFillModeNonSolid: {"fillModeNonSolid",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.FillModeNonSolid }},
	FeatureDepthBounds: {"depthBounds",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.DepthBounds }},
	FeatureWideLines: {"wideLines",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.WideLines }},
	FeatureLargePoints: {"largePoints",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.LargePoints }},
	FeatureAlphaToOne: {"alphaToOne",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.AlphaToOne }},
	FeatureMultiViewport: {"multiViewport",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.MultiViewport }},
	FeatureSamplerAnisotropy: {"samplerAnisotropy",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.SamplerAnisotropy }},
	FeatureTextureCompressionBC: {"textureCompressionBC",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.TextureCompressionBC }},
	FeatureOcclusionQueryPrecise: {"occlusionQueryPrecise",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.OcclusionQueryPrecise }},
	FeaturePipelineStatisticsQuery: {"pipelineStatisticsQuery",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.PipelineStatisticsQuery }},
	FeatureShaderFloat64: {"shaderFloat64",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.ShaderFloat64 }},
	FeatureShaderInt64: {"shaderInt64",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.ShaderInt64 }},
	FeatureShaderInt16: {"shaderInt16",
		func(f *vk.PhysicalDeviceFeatures) *vk.Bool32 { return &f.ShaderInt16 }},
}

func (f Feature) String() string {
	if field, ok := features[f]; ok {
		return field.name
	}
	return "unknown feature"
}

func lookup(f Feature) (featureField, error) {
	field, ok := features[f]
	if !ok {
		return featureField{}, gpu.Invalidf("unknown device feature %d", int(f))
	}
	return field, nil
}

// Enable turns on f in set.
func Enable(set *vk.PhysicalDeviceFeatures, f Feature) error {
	field, err := lookup(f)
	if err != nil {
		return err
	}
	*field.field(set) = vk.True
	return nil
}

// Supported reports whether f is turned on in set.
func Supported(set vk.PhysicalDeviceFeatures, f Feature) (bool, error) {
	field, err := lookup(f)
	if err != nil {
		return false, err
	}
	return field.field(&set).B(), nil
}

package pipeline_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/device"
	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/gpu/gputest"
	"github.com/NocaToca/Calico/models"
	"github.com/NocaToca/Calico/pipeline"
	"github.com/NocaToca/Calico/shaders"
)

func stages() []shaders.Source {
	return []shaders.Source{
		{Path: "vert.spv", Stage: shaders.StageVertex, Code: []byte{0x03, 0x02, 0x23, 0x07, 0x00}},
		{Path: "frag.spv", Stage: shaders.StageFragment, Code: []byte{0x03, 0x02, 0x23, 0x07}},
	}
}

func newDevice(t *testing.T) (*gputest.Fake, *device.Device) {
	t.Helper()

	fake := gputest.New(gputest.NewPhysicalDevice("gpu"))
	surface := gputest.Handle[vk.Surface](fake)
	c, err := device.Select(fake, gputest.Handle[vk.Instance](fake), surface, device.DefaultRequirements())
	require.NoError(t, err)
	dev, err := device.Create(fake, c, device.DefaultRequirements(), nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		dev.Destroy()
		assert.Empty(t, fake.Violations)
	})
	return fake, dev
}

func TestBuild(t *testing.T) {
	fake, dev := newDevice(t)

	builder := pipeline.NewBuilder(dev, stages(), models.VertexLayout())
	p, err := builder.Build(vk.FormatB8g8r8a8Srgb, vk.FormatD32Sfloat)
	require.NoError(t, err)
	defer p.Destroy()

	assert.True(t, p.Compatible(vk.FormatB8g8r8a8Srgb, vk.FormatD32Sfloat))
	assert.False(t, p.Compatible(vk.FormatB8g8r8a8Unorm, vk.FormatD32Sfloat))
	assert.False(t, p.Compatible(vk.FormatB8g8r8a8Srgb, vk.FormatD24UnormS8Uint))

	// Shader modules do not outlive Build.
	assert.Equal(t, 2, fake.Count("CreateShaderModule"))
	assert.Equal(t, 2, fake.Count("DestroyShaderModule"))
	assert.ElementsMatch(t,
		[]string{"device", "descriptor set layout", "render pass", "pipeline layout", "pipeline"},
		fake.Live(),
	)

	require.Len(t, fake.RenderPasses, 1)
	rp := fake.RenderPasses[0]
	require.Len(t, rp.PAttachments, 2)
	assert.Equal(t, vk.FormatB8g8r8a8Srgb, rp.PAttachments[0].Format)
	assert.Equal(t, vk.ImageLayoutPresentSrc, rp.PAttachments[0].FinalLayout)
	assert.Equal(t, vk.AttachmentLoadOpClear, rp.PAttachments[0].LoadOp)
	assert.Equal(t, vk.FormatD32Sfloat, rp.PAttachments[1].Format)
	assert.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal, rp.PAttachments[1].FinalLayout)
	assert.Equal(t, vk.AttachmentStoreOpDontCare, rp.PAttachments[1].StoreOp)
	require.Len(t, rp.PDependencies, 1)
	assert.Equal(t, uint32(vk.SubpassExternal), rp.PDependencies[0].SrcSubpass)

	require.Len(t, fake.SetLayouts, 1)
	bindings := fake.SetLayouts[0].PBindings
	require.Len(t, bindings, 2)
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, bindings[0].DescriptorType)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageVertexBit), bindings[0].StageFlags)
	assert.Equal(t, vk.DescriptorTypeCombinedImageSampler, bindings[1].DescriptorType)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageFragmentBit), bindings[1].StageFlags)

	require.Len(t, fake.Pipelines, 1)
	info := fake.Pipelines[0]
	require.Len(t, info.PStages, 2)
	assert.Equal(t, vk.ShaderStageVertexBit, info.PStages[0].Stage)
	assert.Equal(t, vk.ShaderStageFragmentBit, info.PStages[1].Stage)
	assert.Equal(t, "main\x00", info.PStages[0].PName)
	assert.Equal(t,
		[]vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
		info.PDynamicState.PDynamicStates,
	)
	assert.Equal(t, vk.CompareOpLess, info.PDepthStencilState.DepthCompareOp)
	assert.Equal(t, vk.Bool32(vk.True), info.PDepthStencilState.DepthWriteEnable)
	assert.Equal(t, vk.Bool32(vk.False), info.PDepthStencilState.StencilTestEnable)
	assert.Equal(t, vk.FrontFaceCounterClockwise, info.PRasterizationState.FrontFace)
	assert.Equal(t, vk.CullModeFlags(vk.CullModeBackBit), info.PRasterizationState.CullMode)
	assert.Equal(t, vk.Bool32(vk.False), info.PColorBlendState.PAttachments[0].BlendEnable)
	assert.Equal(t, uint32(3), info.PVertexInputState.VertexAttributeDescriptionCount)
	assert.Equal(t, models.VertexSize(), info.PVertexInputState.PVertexBindingDescriptions[0].Stride)
}

func TestBuildConfig(t *testing.T) {
	fake, dev := newDevice(t)

	builder := pipeline.NewBuilder(dev, stages(), models.VertexLayout())
	builder.Config.CullMode = vk.CullModeFlags(vk.CullModeNone)
	builder.Config.BlendEnable = true

	p, err := builder.Build(vk.FormatB8g8r8a8Unorm, vk.FormatD24UnormS8Uint)
	require.NoError(t, err)
	defer p.Destroy()

	info := fake.Pipelines[0]
	assert.Equal(t, vk.CullModeFlags(vk.CullModeNone), info.PRasterizationState.CullMode)
	assert.Equal(t, vk.Bool32(vk.True), info.PColorBlendState.PAttachments[0].BlendEnable)

	// The builder's configuration is not shared with defaults.
	assert.Equal(t, vk.CullModeFlags(vk.CullModeBackBit), pipeline.DefaultConfig().CullMode)
}

func TestBuildFailures(t *testing.T) {
	tests := []struct {
		name   string
		method string
		result vk.Result
		step   string
		kind   gpu.Kind
	}{
		{"invalid shader", "CreateGraphicsPipeline", -1000012000, "graphics pipeline", gpu.KindInvalidShader},
		{"host memory", "CreateShaderModule", vk.ErrorOutOfHostMemory, "shader modules", gpu.KindHostMemory},
		{"device memory", "CreateRenderPass", vk.ErrorOutOfDeviceMemory, "render pass", gpu.KindDeviceMemory},
		{"layout", "CreatePipelineLayout", vk.ErrorOutOfHostMemory, "pipeline layout", gpu.KindHostMemory},
		{"descriptors", "CreateDescriptorSetLayout", vk.ErrorInitializationFailed, "descriptor set layout", gpu.KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, dev := newDevice(t)
			fake.Fail[tt.method] = tt.result

			p, err := pipeline.NewBuilder(dev, stages(), models.VertexLayout()).
				Build(vk.FormatB8g8r8a8Srgb, vk.FormatD32Sfloat)
			require.Error(t, err)
			assert.Nil(t, p)

			var pipeErr *gpu.PipelineCreationError
			require.True(t, errors.As(err, &pipeErr))
			assert.Equal(t, tt.step, pipeErr.Step)
			assert.Equal(t, tt.kind, pipeErr.Kind())

			// Whatever was created before the failure is gone.
			assert.Equal(t, []string{"device"}, fake.Live())
		})
	}
}

func TestBuildUnknownStage(t *testing.T) {
	fake, dev := newDevice(t)

	sources := stages()
	sources[1].Stage = shaders.Stage(42)

	_, err := pipeline.NewBuilder(dev, sources, models.VertexLayout()).
		Build(vk.FormatB8g8r8a8Srgb, vk.FormatD32Sfloat)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrInvalidUsage))
	assert.Equal(t, 0, fake.Count("CreateGraphicsPipeline"))
	assert.Equal(t, []string{"device"}, fake.Live())
}

func TestBuildWithoutStages(t *testing.T) {
	_, dev := newDevice(t)

	_, err := pipeline.NewBuilder(dev, nil, models.VertexLayout()).
		Build(vk.FormatB8g8r8a8Srgb, vk.FormatD32Sfloat)
	assert.True(t, errors.Is(err, gpu.ErrInvalidUsage))
}

func TestDestroyTwice(t *testing.T) {
	_, dev := newDevice(t)

	p, err := pipeline.NewBuilder(dev, stages(), models.VertexLayout()).
		Build(vk.FormatB8g8r8a8Srgb, vk.FormatD32Sfloat)
	require.NoError(t, err)

	p.Destroy()
	p.Destroy()
}

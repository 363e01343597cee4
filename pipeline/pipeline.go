// Package pipeline builds the render pass and the graphics pipeline drawing
// into it.
package pipeline

import (
	"log/slog"

	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/device"
	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/models"
	"github.com/NocaToca/Calico/shaders"
)

// Builder creates pipelines from a fixed set of shaders and vertex layout.
type Builder struct {
	Device *device.Device
	Stages []shaders.Source
	Vertex models.Layout

	// Config is copied by every Build.
	Config Config
}

// NewBuilder returns a builder using DefaultConfig.
func NewBuilder(dev *device.Device, stages []shaders.Source, vertex models.Layout) *Builder {
	return &Builder{
		Device: dev,
		Stages: stages,
		Vertex: vertex,
		Config: DefaultConfig(),
	}
}

// Pipeline is a graphics pipeline together with the render pass and layouts
// it was built for.
type Pipeline struct {
	drv gpu.Driver
	dev vk.Device

	renderPass          vk.RenderPass
	descriptorSetLayout vk.DescriptorSetLayout
	layout              vk.PipelineLayout
	handle              vk.Pipeline
	colorFormat         vk.Format
	depthFormat         vk.Format
}

func fail(step string, err error) error {
	return &gpu.PipelineCreationError{Step: step, Err: err}
}

// Build creates the descriptor set layout, the render pass for colorFormat
// and depthFormat attachments, the pipeline layout and the pipeline. Shader
// modules only live for the duration of the call. Every error is a
// *gpu.PipelineCreationError.
func (b *Builder) Build(colorFormat, depthFormat vk.Format) (*Pipeline, error) {
	if len(b.Stages) == 0 {
		return nil, fail("shader stages", gpu.Invalidf("no shader stages"))
	}

	config := b.Config
	p := &Pipeline{
		drv:         b.Device.Driver(),
		dev:         b.Device.Handle(),
		colorFormat: colorFormat,
		depthFormat: depthFormat,
	}

	if err := p.createDescriptorSetLayout(); err != nil {
		p.Destroy()
		return nil, fail("descriptor set layout", err)
	}
	if err := p.createRenderPass(); err != nil {
		p.Destroy()
		return nil, fail("render pass", err)
	}
	if err := p.createGraphicsPipeline(b.Stages, b.Vertex, config); err != nil {
		p.Destroy()
		return nil, err
	}

	slog.Debug("graphics pipeline built",
		"color_format", colorFormat,
		"depth_format", depthFormat,
		"stages", len(b.Stages),
	)
	return p, nil
}

func (p *Pipeline) createDescriptorSetLayout() error {
	uboLayoutBinding := vk.DescriptorSetLayoutBinding{
		Binding:            0,
		DescriptorType:     vk.DescriptorTypeUniformBuffer,
		DescriptorCount:    1,
		StageFlags:         vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		PImmutableSamplers: nil,
	}

	samplerLayoutBinding := vk.DescriptorSetLayoutBinding{
		Binding:            1,
		DescriptorCount:    1,
		DescriptorType:     vk.DescriptorTypeCombinedImageSampler,
		PImmutableSamplers: nil,
		StageFlags:         vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}

	bindings := []vk.DescriptorSetLayoutBinding{
		uboLayoutBinding,
		samplerLayoutBinding,
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	layout, err := p.drv.CreateDescriptorSetLayout(p.dev, &layoutInfo)
	if err != nil {
		return err
	}
	p.descriptorSetLayout = layout
	return nil
}

func (p *Pipeline) createRenderPass() error {
	colorAttachment := vk.AttachmentDescription{
		Format:         p.colorFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}

	depthAttachment := vk.AttachmentDescription{
		Format:         p.depthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	colorAttachmentRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}

	depthAttachmentRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorAttachmentRef},
		PDepthStencilAttachment: &depthAttachmentRef,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass: vk.SubpassExternal,
		DstSubpass: 0,
		SrcStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) |
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) |
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit) |
			vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
	}

	attachments := []vk.AttachmentDescription{
		colorAttachment,
		depthAttachment,
	}

	renderPassInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	renderPass, err := p.drv.CreateRenderPass(p.dev, &renderPassInfo)
	if err != nil {
		return err
	}
	p.renderPass = renderPass
	return nil
}

func (p *Pipeline) createShaderStages(
	stages []shaders.Source,
) ([]vk.PipelineShaderStageCreateInfo, []vk.ShaderModule, error) {
	var (
		infos   []vk.PipelineShaderStageCreateInfo
		modules []vk.ShaderModule
	)

	for _, src := range stages {
		stage, err := src.Stage.Flag()
		if err != nil {
			return nil, modules, err
		}

		words := src.Words()
		createInfo := vk.ShaderModuleCreateInfo{
			SType:    vk.StructureTypeShaderModuleCreateInfo,
			CodeSize: uint(len(words) * 4),
			PCode:    words,
		}

		module, err := p.drv.CreateShaderModule(p.dev, &createInfo)
		if err != nil {
			return nil, modules, err
		}
		modules = append(modules, module)

		infos = append(infos, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage,
			Module: module,
			PName:  "main\x00",
		})
	}

	return infos, modules, nil
}

func (p *Pipeline) createGraphicsPipeline(
	stages []shaders.Source,
	vertex models.Layout,
	config Config,
) error {
	shaderStages, modules, err := p.createShaderStages(stages)
	defer func() {
		for _, module := range modules {
			p.drv.DestroyShaderModule(p.dev, module)
		}
	}()
	if err != nil {
		return fail("shader modules", err)
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,

		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions:    []vk.VertexInputBindingDescription{vertex.Binding},

		VertexAttributeDescriptionCount: uint32(len(vertex.Attributes)),
		PVertexAttributeDescriptions:    vertex.Attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               config.Topology,
		PrimitiveRestartEnable: vk.False,
	}

	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(config.DynamicStates)),
		PDynamicStates:    config.DynamicStates,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             config.PolygonMode,
		LineWidth:               config.LineWidth,
		CullMode:                config.CullMode,
		FrontFace:               config.FrontFace,
		DepthBiasEnable:         vk.False,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  config.Samples,
		MinSampleShading:      1,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(
			vk.ColorComponentRBit |
				vk.ColorComponentGBit |
				vk.ColorComponentBBit |
				vk.ColorComponentABit,
		),
		BlendEnable:         bool32(config.BlendEnable),
		SrcColorBlendFactor: vk.BlendFactorOne,
		DstColorBlendFactor: vk.BlendFactorZero,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
	}

	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments: []vk.PipelineColorBlendAttachmentState{
			colorBlendAttachment,
		},
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       bool32(config.DepthTest),
		DepthWriteEnable:      bool32(config.DepthWrite),
		DepthCompareOp:        config.DepthCompareOp,
		DepthBoundsTestEnable: vk.False,
		MinDepthBounds:        0,
		MaxDepthBounds:        1,
		StencilTestEnable:     bool32(config.StencilTest),
	}

	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{p.descriptorSetLayout},
	}

	p.layout, err = p.drv.CreatePipelineLayout(p.dev, &pipelineLayoutInfo)
	if err != nil {
		return fail("pipeline layout", err)
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              p.layout,
		RenderPass:          p.renderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.Pipeline(vk.NullHandle),
		BasePipelineIndex:   -1,
	}

	p.handle, err = p.drv.CreateGraphicsPipeline(p.dev, &pipelineInfo)
	if err != nil {
		return fail("graphics pipeline", err)
	}
	return nil
}

// Compatible reports whether the pipeline was built for attachments of the
// given formats.
func (p *Pipeline) Compatible(colorFormat, depthFormat vk.Format) bool {
	return p.colorFormat == colorFormat && p.depthFormat == depthFormat
}

// Handle returns the graphics pipeline.
func (p *Pipeline) Handle() vk.Pipeline {
	return p.handle
}

// Layout returns the pipeline layout.
func (p *Pipeline) Layout() vk.PipelineLayout {
	return p.layout
}

// RenderPass returns the render pass the pipeline draws in.
func (p *Pipeline) RenderPass() vk.RenderPass {
	return p.renderPass
}

// DescriptorSetLayout returns the layout of the only descriptor set: the
// uniform buffer at binding 0 and the texture sampler at binding 1.
func (p *Pipeline) DescriptorSetLayout() vk.DescriptorSetLayout {
	return p.descriptorSetLayout
}

// Destroy destroys everything Build created.
func (p *Pipeline) Destroy() {
	if p == nil {
		return
	}
	if p.handle != vk.NullPipeline {
		p.drv.DestroyPipeline(p.dev, p.handle)
		p.handle = vk.NullPipeline
	}
	if p.layout != vk.NullPipelineLayout {
		p.drv.DestroyPipelineLayout(p.dev, p.layout)
		p.layout = vk.NullPipelineLayout
	}
	if p.renderPass != vk.NullRenderPass {
		p.drv.DestroyRenderPass(p.dev, p.renderPass)
		p.renderPass = vk.NullRenderPass
	}
	if p.descriptorSetLayout != vk.NullDescriptorSetLayout {
		p.drv.DestroyDescriptorSetLayout(p.dev, p.descriptorSetLayout)
		p.descriptorSetLayout = vk.NullDescriptorSetLayout
	}
}

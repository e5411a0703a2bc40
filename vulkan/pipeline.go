package vulkan

import (
	"slices"

	vk "github.com/goki/vulkan"

	"viewport-engine/core"
	"viewport-engine/rhi"
)

// Vertex input bindings.
const (
	vertexBinding   = 0
	instanceBinding = 1
	defaultsBinding = 2 // stride 0, feeds attributes a layout leaves out
)

const (
	locPosition = 0
	locNormal   = 1
	locColor    = 2
	locUV       = 3
	locInstance = 4 // four consecutive vec4 columns
)

// defaultsData backs the defaults binding: normal (0,0,1) at 0, colour
// (1,1,1,1) at 12, uv (0,0) at 28. The values match core.DecodeStandard.
var defaultsData = func() []byte {
	b := make([]byte, 36)
	putFloats(b, 0, 0, 0, 1)
	putFloats(b, 12, 1, 1, 1, 1)
	return b
}()

var defaultOffsets = map[uint32]uint32{locNormal: 0, locColor: 12, locUV: 28}
var defaultFormats = map[uint32]vk.Format{
	locNormal: vk.FormatR32g32b32Sfloat,
	locColor:  vk.FormatR32g32b32a32Sfloat,
	locUV:     vk.FormatR32g32Sfloat,
}

var semanticLocation = map[core.Semantic]uint32{
	core.SemanticPosition: locPosition,
	core.SemanticNormal:   locNormal,
	core.SemanticColor:    locColor,
	core.SemanticTexCoord: locUV,
}

// pushConstants mirrors the Push block: instanced, lineMode, depthBias.
const pushConstantSize = 12

func newRenderPass(g *gpu) (vk.RenderPass, error) {
	attachment := func(format vk.Format) vk.AttachmentDescription {
		return vk.AttachmentDescription{
			Format:         format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutTransferSrcOptimal,
		}
	}
	attachments := []vk.AttachmentDescription{
		attachment(colorFormat),
		attachment(idFormat),
		attachment(depthFormat),
	}
	colorRefs := []vk.AttachmentReference{
		{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal},
		{Attachment: 1, Layout: vk.ImageLayoutColorAttachmentOptimal},
	}
	depthRef := vk.AttachmentReference{Attachment: 2, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: &depthRef,
	}
	// Attachment writes must land before the readback copies.
	dep := vk.SubpassDependency{
		SrcSubpass: 0,
		DstSubpass: vk.SubpassExternal,
		SrcStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
			vk.PipelineStageLateFragmentTestsBit),
		DstStageMask: vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit |
			vk.AccessDepthStencilAttachmentWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessTransferReadBit),
	}
	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dep},
	}
	var pass vk.RenderPass
	err := check(vk.CreateRenderPass(g.device, &info, nil, &pass), "vkCreateRenderPass")
	return pass, err
}

func newPipelineLayout(g *gpu, set vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{set},
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
			Size:       pushConstantSize,
		}},
	}
	var layout vk.PipelineLayout
	err := check(vk.CreatePipelineLayout(g.device, &info, nil, &layout), "vkCreatePipelineLayout")
	return layout, err
}

// pipelineSlot is one cache entry. The state key picks the slot; the
// layout and topology it was built for decide whether it can be reused.
type pipelineSlot struct {
	handle   vk.Pipeline
	format   *core.VertexFormat
	topology rhi.Topology
}

// pipelines is a fixed arena of PipelineCacheSize slots indexed by
// rhi.PipelineState.Key. A draw whose layout or topology differs from the
// slot's rebuilds it; the replaced pipeline is retired until the frame's
// work has completed.
type pipelines struct {
	g       *gpu
	shaders *shaders
	pass    vk.RenderPass
	layout  vk.PipelineLayout
	slots   []pipelineSlot
	retire  func(vk.Pipeline)
	builds  int
}

func newPipelines(g *gpu, sh *shaders, pass vk.RenderPass, layout vk.PipelineLayout, size int, retire func(vk.Pipeline)) *pipelines {
	return &pipelines{
		g:       g,
		shaders: sh,
		pass:    pass,
		layout:  layout,
		slots:   make([]pipelineSlot, size),
		retire:  retire,
	}
}

func (p *pipelines) get(state rhi.PipelineState, format *core.VertexFormat, topo rhi.Topology) (vk.Pipeline, error) {
	idx := int(state.Key()) % len(p.slots)
	slot := &p.slots[idx]
	if slot.handle != vk.NullPipeline && slot.topology == topo && sameLayout(slot.format, format) {
		return slot.handle, nil
	}
	handle, err := p.build(state, format, topo)
	if err != nil {
		return vk.NullPipeline, err
	}
	if slot.handle != vk.NullPipeline {
		p.retire(slot.handle)
	}
	*slot = pipelineSlot{handle: handle, format: format, topology: topo}
	p.builds++
	return handle, nil
}

func sameLayout(a, b *core.VertexFormat) bool {
	if a.IsStandard() || b.IsStandard() {
		return a.IsStandard() && b.IsStandard()
	}
	return a.Stride == b.Stride && slices.Equal(a.Attributes, b.Attributes)
}

// vertexInput describes the mesh binding through layout, the per-instance
// matrix binding and the stride-0 defaults binding.
func vertexInput(layout *core.VertexFormat) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	if layout.IsStandard() {
		layout = core.StandardFormat()
	}
	bindings := []vk.VertexInputBindingDescription{
		{Binding: vertexBinding, Stride: uint32(layout.Stride), InputRate: vk.VertexInputRateVertex},
		{Binding: instanceBinding, Stride: 64, InputRate: vk.VertexInputRateInstance},
		{Binding: defaultsBinding, Stride: 0, InputRate: vk.VertexInputRateVertex},
	}

	var attrs []vk.VertexInputAttributeDescription
	bound := make(map[uint32]bool)
	for _, a := range layout.Attributes {
		loc, ok := semanticLocation[a.Semantic]
		if !ok || bound[loc] {
			continue
		}
		format, ok := attribFormat(a.Format)
		if !ok {
			continue
		}
		bound[loc] = true
		attrs = append(attrs, vk.VertexInputAttributeDescription{
			Location: loc, Binding: vertexBinding, Format: format, Offset: uint32(a.Offset),
		})
	}
	for _, loc := range []uint32{locNormal, locColor, locUV} {
		if !bound[loc] {
			attrs = append(attrs, vk.VertexInputAttributeDescription{
				Location: loc, Binding: defaultsBinding, Format: defaultFormats[loc], Offset: defaultOffsets[loc],
			})
		}
	}
	for i := range uint32(4) {
		attrs = append(attrs, vk.VertexInputAttributeDescription{
			Location: locInstance + i, Binding: instanceBinding, Format: vk.FormatR32g32b32a32Sfloat, Offset: i * 16,
		})
	}
	return bindings, attrs
}

func attribFormat(f core.AttribFormat) (vk.Format, bool) {
	switch f {
	case core.Float1:
		return vk.FormatR32Sfloat, true
	case core.Float2:
		return vk.FormatR32g32Sfloat, true
	case core.Float3:
		return vk.FormatR32g32b32Sfloat, true
	case core.Float4:
		return vk.FormatR32g32b32a32Sfloat, true
	case core.UByte4Norm:
		return vk.FormatR8g8b8a8Unorm, true
	}
	return vk.FormatUndefined, false
}

func blendAttachments(mode rhi.BlendMode) []vk.PipelineColorBlendAttachmentState {
	rgba := vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
		vk.ColorComponentBBit | vk.ColorComponentABit)
	color := vk.PipelineColorBlendAttachmentState{ColorWriteMask: rgba}
	id := vk.PipelineColorBlendAttachmentState{ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit)}

	switch mode {
	case rhi.BlendAlpha:
		color.BlendEnable = vk.True
		color.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		color.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		color.ColorBlendOp = vk.BlendOpAdd
		color.SrcAlphaBlendFactor = vk.BlendFactorOne
		color.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		color.AlphaBlendOp = vk.BlendOpAdd
		id.ColorWriteMask = 0
	case rhi.BlendAdditive:
		color.BlendEnable = vk.True
		color.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		color.DstColorBlendFactor = vk.BlendFactorOne
		color.ColorBlendOp = vk.BlendOpAdd
		color.SrcAlphaBlendFactor = vk.BlendFactorZero
		color.DstAlphaBlendFactor = vk.BlendFactorOne
		color.AlphaBlendOp = vk.BlendOpAdd
		id.ColorWriteMask = 0
	}
	return []vk.PipelineColorBlendAttachmentState{color, id}
}

func (p *pipelines) build(state rhi.PipelineState, format *core.VertexFormat, topo rhi.Topology) (vk.Pipeline, error) {
	bindings, attrs := vertexInput(format)
	vertexState := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}

	lines := topo == rhi.Lines
	assembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	if lines {
		assembly.Topology = vk.PrimitiveTopologyLineList
	}

	viewport := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1,
	}
	if state.Wireframe && p.g.wireframe {
		raster.PolygonMode = vk.PolygonModeLine
	}
	if state.CullBack && !lines && !state.Wireframe {
		raster.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}

	depth := vk.PipelineDepthStencilStateCreateInfo{
		SType:          vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: vk.CompareOpLess,
	}
	if state.DepthTest {
		depth.DepthTestEnable = vk.True
	}
	if state.DepthWrite() {
		depth.DepthWriteEnable = vk.True
	}

	blends := blendAttachments(state.Blend)
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blends)),
		PAttachments:    blends,
	}

	dynamics := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamics)),
		PDynamicStates:    dynamics,
	}

	stages := p.shaders.stages()
	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexState,
		PInputAssemblyState: &assembly,
		PViewportState:      &viewport,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depth,
		PColorBlendState:    &blend,
		PDynamicState:       &dynamic,
		Layout:              p.layout,
		RenderPass:          p.pass,
	}
	out := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(p.g.device, vk.PipelineCache(vk.NullHandle), 1,
		[]vk.GraphicsPipelineCreateInfo{info}, nil, out)
	if err := check(res, "vkCreateGraphicsPipelines"); err != nil {
		return vk.NullPipeline, err
	}
	return out[0], nil
}

func (p *pipelines) destroy() {
	for i := range p.slots {
		if p.slots[i].handle != vk.NullPipeline {
			vk.DestroyPipeline(p.g.device, p.slots[i].handle, nil)
		}
		p.slots[i] = pipelineSlot{}
	}
}

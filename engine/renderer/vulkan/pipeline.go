package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

// createRenderPass builds a single-subpass pass over the given color
// formats plus a depth attachment. presentable selects the final layout
// for swapchain passes.
func createRenderPass(d *Device, colorFormats []vk.Format, depthFormat vk.Format, presentable bool) (vk.RenderPass, error) {
	finalLayout := vk.ImageLayoutShaderReadOnlyOptimal
	if presentable {
		finalLayout = vk.ImageLayoutPresentSrc
	}

	attachments := make([]vk.AttachmentDescription, 0, len(colorFormats)+1)
	colorRefs := make([]vk.AttachmentReference, 0, len(colorFormats))
	for i, format := range colorFormats {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    finalLayout,
		})
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}

	attachments = append(attachments, vk.AttachmentDescription{
		Format:         depthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	})
	depthRef := vk.AttachmentReference{
		Attachment: uint32(len(colorFormats)),
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: &depthRef,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	renderPassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pass vk.RenderPass
	if res := vk.CreateRenderPass(d.logicalDevice, &renderPassCreateInfo, d.allocator, &pass); res != vk.Success {
		return vk.NullRenderPass, resultToError("create render pass", res)
	}
	return pass, nil
}

// renderTarget is an offscreen target: its own images, pass and
// framebuffer.
type renderTarget struct {
	device      *Device
	id          uint32
	width       uint32
	height      uint32
	colors      []device.TextureFormat
	depthFormat device.TextureFormat

	colorImages []*image
	depthImage  *image
	pass        vk.RenderPass
	fb          vk.Framebuffer
}

func (d *Device) CreateRenderTarget(width, height uint32, colorFormats []device.TextureFormat, depthFormat device.TextureFormat) (device.RenderTarget, error) {
	t := &renderTarget{
		device:      d,
		id:          d.targetID(),
		width:       width,
		height:      height,
		colors:      colorFormats,
		depthFormat: depthFormat,
	}

	vkColorFormats := make([]vk.Format, len(colorFormats))
	attachmentViews := make([]vk.ImageView, 0, len(colorFormats)+1)
	for i, format := range colorFormats {
		vkColorFormats[i] = vkFormat(format)
		img, err := newImage(d, width, height, 1, vkColorFormats[i],
			vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit|vk.ImageUsageSampledBit),
			vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return nil, err
		}
		t.colorImages = append(t.colorImages, img)
		attachmentViews = append(attachmentViews, img.view)
	}

	depthImage, err := newImage(d, width, height, 1, vkFormat(depthFormat),
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return nil, err
	}
	t.depthImage = depthImage
	attachmentViews = append(attachmentViews, depthImage.view)

	t.pass, err = createRenderPass(d, vkColorFormats, vkFormat(depthFormat), false)
	if err != nil {
		return nil, err
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      t.pass,
		AttachmentCount: uint32(len(attachmentViews)),
		PAttachments:    attachmentViews,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	if res := vk.CreateFramebuffer(d.logicalDevice, &framebufferCreateInfo, d.allocator, &t.fb); res != vk.Success {
		return nil, resultToError("create framebuffer", res)
	}
	return t, nil
}

func (t *renderTarget) ID() uint32                           { return t.id }
func (t *renderTarget) Width() uint32                        { return t.width }
func (t *renderTarget) Height() uint32                       { return t.height }
func (t *renderTarget) ColorFormats() []device.TextureFormat { return t.colors }
func (t *renderTarget) DepthFormat() device.TextureFormat    { return t.depthFormat }

func (t *renderTarget) Destroy() {
	vk.DestroyFramebuffer(t.device.logicalDevice, t.fb, t.device.allocator)
	vk.DestroyRenderPass(t.device.logicalDevice, t.pass, t.device.allocator)
	for _, img := range t.colorImages {
		img.destroy(t.device)
	}
	t.depthImage.destroy(t.device)
}

type pipeline struct {
	device *Device
	handle vk.Pipeline
}

func (d *Device) CreatePipeline(desc device.PipelineDesc) (device.Pipeline, error) {
	var pass vk.RenderPass
	switch t := desc.Target.(type) {
	case *swapchainTarget:
		pass = t.renderPass()
	case *renderTarget:
		pass = t.pass
	default:
		core.Assertf(false, "unknown render target type %T", desc.Target)
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: desc.VertexShader.(*shaderModule).handle,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: desc.PixelShader.(*shaderModule).handle,
			PName:  safeString("main"),
		},
	}

	var vertexBindings []vk.VertexInputBindingDescription
	var vertexAttributes []vk.VertexInputAttributeDescription
	for bi, layout := range desc.VertexBuffers {
		inputRate := vk.VertexInputRateVertex
		if layout.PerInstance {
			inputRate = vk.VertexInputRateInstance
		}
		vertexBindings = append(vertexBindings, vk.VertexInputBindingDescription{
			Binding:   uint32(bi),
			Stride:    layout.Stride,
			InputRate: inputRate,
		})
		for _, attr := range layout.Attributes {
			vertexAttributes = append(vertexAttributes, vk.VertexInputAttributeDescription{
				Location: attr.Location,
				Binding:  uint32(bi),
				Format:   vkAttributeFormat(attr.Type),
				Offset:   attr.Offset,
			})
		}
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(vertexBindings)),
		PVertexBindingDescriptions:      vertexBindings,
		VertexAttributeDescriptionCount: uint32(len(vertexAttributes)),
		PVertexAttributeDescriptions:    vertexAttributes,
	}

	topology := vk.PrimitiveTopologyTriangleList
	switch desc.State.PrimitiveType {
	case device.PrimitiveTriangleStrip:
		topology = vk.PrimitiveTopologyTriangleStrip
	case device.PrimitiveLines:
		topology = vk.PrimitiveTopologyLineList
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: topology,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	cullMode := vk.CullModeFlags(vk.CullModeNone)
	if desc.State.CullFaceEnabled {
		switch desc.State.CullFaceType {
		case device.CullFront:
			cullMode = vk.CullModeFlags(vk.CullModeFrontBit)
		case device.CullBack:
			cullMode = vk.CullModeFlags(vk.CullModeBackBit)
		}
	}
	frontFace := vk.FrontFaceCounterClockwise
	if desc.State.FaceWinding == device.WindingCW {
		frontFace = vk.FrontFaceClockwise
	}
	rasterization := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		LineWidth:   1.0,
		CullMode:    cullMode,
		FrontFace:   frontFace,
	}
	if desc.State.PolygonOffsetFactor != 0 || desc.State.PolygonOffsetUnits != 0 {
		rasterization.DepthBiasEnable = vk.True
		rasterization.DepthBiasSlopeFactor = desc.State.PolygonOffsetFactor
		rasterization.DepthBiasConstantFactor = desc.State.PolygonOffsetUnits
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:          vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: vkCompareOp(desc.State.DepthTestFunc),
		MinDepthBounds: 0,
		MaxDepthBounds: 1,
	}
	if desc.State.DepthTestEnabled {
		depthStencil.DepthTestEnable = vk.True
	}
	if desc.State.WriteDepth {
		depthStencil.DepthWriteEnable = vk.True
	}
	if desc.State.StencilEnabled {
		depthStencil.StencilTestEnable = vk.True
		depthStencil.Front = vk.StencilOpState{
			FailOp:      vkStencilOp(desc.State.StencilFront.OpFail),
			PassOp:      vkStencilOp(desc.State.StencilFront.OpPass),
			DepthFailOp: vkStencilOp(desc.State.StencilFront.OpDepthFail),
			CompareOp:   vkCompareOp(desc.State.StencilFront.Func),
			CompareMask: uint32(desc.State.StencilCompareMask),
			WriteMask:   uint32(desc.State.StencilWriteMask),
			Reference:   uint32(desc.State.StencilReference),
		}
		depthStencil.Back = vk.StencilOpState{
			FailOp:      vkStencilOp(desc.State.StencilBack.OpFail),
			PassOp:      vkStencilOp(desc.State.StencilBack.OpPass),
			DepthFailOp: vkStencilOp(desc.State.StencilBack.OpDepthFail),
			CompareOp:   vkCompareOp(desc.State.StencilBack.Func),
			CompareMask: uint32(desc.State.StencilCompareMask),
			WriteMask:   uint32(desc.State.StencilWriteMask),
			Reference:   uint32(desc.State.StencilReference),
		}
	}

	colorCount := len(desc.Target.ColorFormats())
	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, colorCount)
	for i := range blendAttachments {
		attachment := vk.PipelineColorBlendAttachmentState{
			ColorWriteMask: vk.ColorComponentFlags(desc.State.WriteColorMask),
		}
		if desc.State.BlendEnabled {
			attachment.BlendEnable = vk.True
			attachment.SrcColorBlendFactor = vkBlendFactor(desc.State.BlendSrcFactor)
			attachment.DstColorBlendFactor = vkBlendFactor(desc.State.BlendDstFactor)
			attachment.ColorBlendOp = vk.BlendOpAdd
			attachment.SrcAlphaBlendFactor = vkBlendFactor(desc.State.BlendSrcFactor)
			attachment.DstAlphaBlendFactor = vkBlendFactor(desc.State.BlendDstFactor)
			attachment.AlphaBlendOp = vk.BlendOpAdd
		}
		blendAttachments[i] = attachment
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterization,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamic,
		Layout:              desc.Layout.(*rootLayout).pipeline,
		RenderPass:          pass,
		Subpass:             0,
	}

	handles := make([]vk.Pipeline, 1)
	result := vk.CreateGraphicsPipelines(d.logicalDevice, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, d.allocator, handles)
	if result != vk.Success {
		return nil, resultToError("create graphics pipeline", result)
	}
	return &pipeline{device: d, handle: handles[0]}, nil
}

func (p *pipeline) Destroy() {
	vk.DestroyPipeline(p.device.logicalDevice, p.handle, p.device.allocator)
}

package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

type pendingConstant struct {
	pool   *constantPool
	offset uint32
}

// recorder implements device.Recorder over one primary command buffer.
// Root-parameter style bindings are accumulated and folded into a fresh
// descriptor set right before each draw.
type recorder struct {
	device *Device
	cmd    vk.CommandBuffer

	layout      *rootLayout
	texturePool *descriptorPool

	textureViews   []vk.ImageView
	samplerHandles []vk.Sampler

	pendingConstants map[uint32]pendingConstant
	pendingTextures  map[uint32]uint64
	pendingSamplers  map[uint32]uint64
	bindingsDirty    bool
}

func (d *Device) CreateRecorder() (device.Recorder, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.logicalDevice, &allocateInfo, buffers); res != vk.Success {
		return nil, resultToError("allocate command buffer", res)
	}
	return &recorder{device: d, cmd: buffers[0]}, nil
}

func (r *recorder) Reset() error {
	if res := vk.ResetCommandBuffer(r.cmd, 0); res != vk.Success {
		return resultToError("reset command buffer", res)
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if res := vk.BeginCommandBuffer(r.cmd, &beginInfo); res != vk.Success {
		return resultToError("begin command buffer", res)
	}

	r.layout = nil
	r.texturePool = nil
	r.textureViews = r.textureViews[:0]
	r.samplerHandles = r.samplerHandles[:0]
	r.pendingConstants = make(map[uint32]pendingConstant)
	r.pendingTextures = make(map[uint32]uint64)
	r.pendingSamplers = make(map[uint32]uint64)
	r.bindingsDirty = false
	return nil
}

func (r *recorder) Close() error {
	return checkResult("end command buffer", vk.EndCommandBuffer(r.cmd))
}

func (r *recorder) BeginPass(target device.RenderTarget, clearColor [4]float32, clearDepth float32, clearStencil uint8) {
	var pass vk.RenderPass
	var framebuffer vk.Framebuffer
	var colorCount int

	switch t := target.(type) {
	case *swapchainTarget:
		pass = t.renderPass()
		framebuffer = t.framebuffer()
		colorCount = 1
	case *renderTarget:
		pass = t.pass
		framebuffer = t.fb
		colorCount = len(t.colors)
	default:
		core.Assertf(false, "unknown render target type %T", target)
	}

	clearValues := make([]vk.ClearValue, 0, colorCount+1)
	for i := 0; i < colorCount; i++ {
		var cv vk.ClearValue
		cv.SetColor(clearColor[:])
		clearValues = append(clearValues, cv)
	}
	var depthClear vk.ClearValue
	depthClear.SetDepthStencil(clearDepth, uint32(clearStencil))
	clearValues = append(clearValues, depthClear)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: target.Width(), Height: target.Height()},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(r.cmd, &beginInfo, vk.SubpassContentsInline)
}

func (r *recorder) EndPass() {
	vk.CmdEndRenderPass(r.cmd)
}

func (r *recorder) SetPipeline(p device.Pipeline) {
	vk.CmdBindPipeline(r.cmd, vk.PipelineBindPointGraphics, p.(*pipeline).handle)
}

func (r *recorder) SetRootLayout(l device.RootLayout) {
	r.layout = l.(*rootLayout)
	r.bindingsDirty = true
}

func (r *recorder) SetViewport(vp device.Viewport) {
	viewport := vk.Viewport{
		X:        float32(vp.X),
		Y:        float32(vp.Y),
		Width:    float32(vp.Width),
		Height:   float32(vp.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	vk.CmdSetViewport(r.cmd, 0, 1, []vk.Viewport{viewport})

	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: vp.X, Y: vp.Y},
		Extent: vk.Extent2D{Width: vp.Width, Height: vp.Height},
	}
	vk.CmdSetScissor(r.cmd, 0, 1, []vk.Rect2D{scissor})
}

func (r *recorder) SetDescriptorHeaps(texturePool, samplerPool device.DescriptorPool) {
	// Heaps are rebound once per frame after its fence wait, which makes
	// this the safe point to recycle the pool's descriptor sets.
	r.texturePool = texturePool.(*descriptorPool)
	r.texturePool.reset()
	if sp, ok := samplerPool.(*descriptorPool); ok && sp != r.texturePool {
		sp.reset()
	}
}

func (r *recorder) SetRootConstantBuffer(slot uint32, pool device.ConstantPool, offset uint32) {
	r.pendingConstants[slot] = pendingConstant{pool: pool.(*constantPool), offset: offset}
	r.bindingsDirty = true
}

func (r *recorder) WriteTextureDescriptor(pool device.DescriptorPool, cursor uint32, t device.Texture) uint64 {
	r.textureViews = append(r.textureViews, t.(*texture).image.view)
	return uint64(len(r.textureViews) - 1)
}

func (r *recorder) WriteSamplerDescriptor(pool device.DescriptorPool, cursor uint32, s device.Sampler) uint64 {
	r.samplerHandles = append(r.samplerHandles, s.(*sampler).handle)
	return uint64(len(r.samplerHandles) - 1)
}

func (r *recorder) SetRootTextureTable(slot uint32, table uint64) {
	r.pendingTextures[slot] = table
	r.bindingsDirty = true
}

func (r *recorder) SetRootSamplerTable(slot uint32, table uint64) {
	r.pendingSamplers[slot] = table
	r.bindingsDirty = true
}

func (r *recorder) SetVertexBuffers(buffers []device.Buffer, strides []uint32) {
	handles := make([]vk.Buffer, len(buffers))
	offsets := make([]vk.DeviceSize, len(buffers))
	for i := range buffers {
		handles[i] = buffers[i].(*buffer).raw.handle
	}
	vk.CmdBindVertexBuffers(r.cmd, 0, uint32(len(handles)), handles, offsets)
}

func (r *recorder) SetIndexBuffer(b device.Buffer, is32bit bool) {
	indexType := vk.IndexTypeUint16
	if is32bit {
		indexType = vk.IndexTypeUint32
	}
	vk.CmdBindIndexBuffer(r.cmd, b.(*buffer).raw.handle, 0, indexType)
}

// flushBindings folds the accumulated root parameters into a descriptor
// set allocated from this frame's pool and binds it.
func (r *recorder) flushBindings() error {
	if !r.bindingsDirty || r.layout == nil {
		return nil
	}
	if r.texturePool == nil {
		return fmt.Errorf("vulkan: draw recorded before descriptor heaps were bound")
	}

	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     r.texturePool.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{r.layout.setLayout},
	}
	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(r.device.logicalDevice, &allocateInfo, &set); res != vk.Success {
		return resultToError("allocate descriptor set", res)
	}

	writes := make([]vk.WriteDescriptorSet, 0, len(r.pendingConstants)+len(r.pendingTextures))

	for i, ub := range r.layout.desc.UniformBuffers {
		pending, ok := r.pendingConstants[uint32(i)]
		if !ok {
			continue
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      ub.Binding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: pending.pool.raw.handle,
				Offset: vk.DeviceSize(pending.offset),
				Range:  vk.DeviceSize(ub.BlockSize),
			}},
		})
	}

	uniformBufferCount := uint32(len(r.layout.desc.UniformBuffers))
	for slot, table := range r.pendingTextures {
		unit := (slot - uniformBufferCount) / 2
		if unit >= uint32(len(r.layout.desc.Textures)) {
			continue
		}
		samplerTable, ok := r.pendingSamplers[slot+1]
		if !ok || int(table) >= len(r.textureViews) || int(samplerTable) >= len(r.samplerHandles) {
			continue
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      r.layout.desc.Textures[unit].Binding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo: []vk.DescriptorImageInfo{{
				Sampler:     r.samplerHandles[samplerTable],
				ImageView:   r.textureViews[table],
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}},
		})
	}

	if len(writes) > 0 {
		vk.UpdateDescriptorSets(r.device.logicalDevice, uint32(len(writes)), writes, 0, nil)
	}
	vk.CmdBindDescriptorSets(r.cmd, vk.PipelineBindPointGraphics, r.layout.pipeline, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	r.bindingsDirty = false
	return nil
}

func (r *recorder) Draw(vertexCount, firstVertex uint32) {
	if err := r.flushBindings(); err != nil {
		core.LogError("failed to flush draw bindings: %s", err)
		return
	}
	vk.CmdDraw(r.cmd, vertexCount, 1, firstVertex, 0)
}

func (r *recorder) DrawIndexed(indexCount, firstIndex uint32) {
	if err := r.flushBindings(); err != nil {
		core.LogError("failed to flush draw bindings: %s", err)
		return
	}
	vk.CmdDrawIndexed(r.cmd, indexCount, 1, firstIndex, 0, 0)
}

// Submit hands the recorded work to the graphics queue, gated on the
// swapchain's acquire semaphore and signaling value on the fence.
func (d *Device) Submit(r device.Recorder, f device.Fence, value uint64) error {
	rec := r.(*recorder)
	fn := f.(*fence)

	if err := fn.arm(value); err != nil {
		return err
	}

	sc := d.swapchain
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{sc.imageAvailable[sc.semaphoreIndex]},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{rec.cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{sc.renderComplete[sc.semaphoreIndex]},
	}
	if res := vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fn.handle); res != vk.Success {
		return resultToError("queue submit", res)
	}
	return nil
}

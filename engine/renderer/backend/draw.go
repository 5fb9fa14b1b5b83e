package backend

import (
	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

const maxTextureUnits = 16

// SetProgram binds the program for subsequent draws.
func (c *Context) SetProgram(p *Program) {
	c.currentProgram = p
	// Force a pipeline rebind, the root layout changed.
	c.currentPipeline = nil
}

// SetPipelineState replaces the fixed-function state. The matching
// pipeline is resolved lazily at the next draw.
func (c *Context) SetPipelineState(state device.PipelineState) {
	c.currentState = state
}

func (c *Context) PipelineState() *device.PipelineState {
	return &c.currentState
}

// SetTexture binds a texture to a texture unit.
func (c *Context) SetTexture(unit uint32, t *Texture) {
	core.Assertf(unit < maxTextureUnits, "texture unit %d out of range", unit)
	c.boundTextures[unit] = t
}

func (c *Context) SetVertexBuffer(b *Buffer, decl *VertexDeclaration) {
	c.boundVertexBuffer = b
	c.currentVertices = decl
}

func (c *Context) SetIndexBuffer(b *Buffer, is32bit bool) {
	c.boundIndexBuffer = b
	c.indexIs32bit = is32bit
}

// commitUniforms flushes the program's CPU shadow state into this frame's
// scratch buffer and binds the root parameters: one constant buffer view
// per uniform block in claim order, then a texture table and a sampler
// table per texture unit, interleaved after the constant buffers.
func (c *Context) commitUniforms(frame *frameSlot, p *Program) error {
	rec := frame.recorder

	for i, ub := range p.bindings.uniformBuffers {
		// A block untouched since its last upload this frame rebinds the
		// region it already lives in instead of burning a fresh one.
		if !ub.dirty && ub.regionFrame == c.frameCounter {
			rec.SetRootConstantBuffer(uint32(i), ub.region.Pool, ub.region.Offset)
			continue
		}
		region := frame.scratch.AllocateConstantRegion(ub.binding.BlockSize)
		copy(region.Memory, ub.data)
		rec.SetRootConstantBuffer(uint32(i), region.Pool, region.Offset)
		ub.dirty = false
		ub.region = region
		ub.regionFrame = c.frameCounter
	}

	textureCount := uint32(len(p.bindings.textures))
	if textureCount == 0 {
		return nil
	}

	texturePool, samplerPool, cursor, err := frame.scratch.AllocateDescriptors(textureCount)
	if err != nil {
		return err
	}

	uniformBufferCount := p.UniformBufferCount()
	for i := range p.bindings.textures {
		unit := p.textureUnits[i]
		core.Assertf(unit < maxTextureUnits, "texture resource %d routed to out-of-range unit %d", i, unit)
		texture := c.boundTextures[unit]
		core.Assertf(texture != nil, "draw samples texture unit %d but nothing is bound there", unit)

		sampler, err := c.samplerFor(texture.sampler)
		if err != nil {
			return err
		}

		slot := cursor + uint32(i)
		textureTable := rec.WriteTextureDescriptor(texturePool, slot, texture.resource)
		samplerTable := rec.WriteSamplerDescriptor(samplerPool, slot, sampler)

		rootSlot := uniformBufferCount + unit*2
		rec.SetRootTextureTable(rootSlot, textureTable)
		rec.SetRootSamplerTable(rootSlot+1, samplerTable)
	}
	return nil
}

// drawSetup binds everything a draw needs: the cached pipeline for the
// current state combination, the geometry and the committed uniforms.
func (c *Context) drawSetup() error {
	core.Assertf(c.inFrame, "draw outside a frame")
	core.Assertf(c.currentProgram != nil, "draw with no program bound")
	core.Assertf(c.boundVertexBuffer != nil, "draw with no vertex buffer bound")

	frame := c.frame()
	rec := frame.recorder

	pipeline, err := c.pipelineCache.GetOrCreate(&c.currentState, c.currentProgram, c.currentTarget, c.currentVertices)
	if err != nil {
		return err
	}
	if pipeline != c.currentPipeline {
		rec.SetRootLayout(c.currentProgram.layout)
		rec.SetPipeline(pipeline)
		c.currentPipeline = pipeline
	}

	rec.SetVertexBuffers([]device.Buffer{c.boundVertexBuffer.resource}, []uint32{c.currentVertices.Stride()})
	if c.boundIndexBuffer != nil {
		rec.SetIndexBuffer(c.boundIndexBuffer.resource, c.indexIs32bit)
	}

	return c.commitUniforms(frame, c.currentProgram)
}

func (c *Context) Draw(vertexCount, firstVertex uint32) error {
	if err := c.drawSetup(); err != nil {
		return err
	}
	c.frame().recorder.Draw(vertexCount, firstVertex)
	return nil
}

func (c *Context) DrawIndexed(indexCount, firstIndex uint32) error {
	core.Assertf(c.boundIndexBuffer != nil, "indexed draw with no index buffer bound")
	if err := c.drawSetup(); err != nil {
		return err
	}
	c.frame().recorder.DrawIndexed(indexCount, firstIndex)
	return nil
}

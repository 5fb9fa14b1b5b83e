package backend

import (
	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

// PipelineCache memoizes compiled pipelines keyed by a content hash of
// everything a pipeline is built from: the fixed-function state, the
// program's root layout identity, the render target and the vertex layout
// down to stride and step function.
type PipelineCache struct {
	device    device.Device
	pipelines map[uint64]device.Pipeline
}

func NewPipelineCache(dev device.Device) *PipelineCache {
	return &PipelineCache{
		device:    dev,
		pipelines: make(map[uint64]device.Pipeline),
	}
}

func pipelineKey(state *device.PipelineState, program *Program, target device.RenderTarget, decl *VertexDeclaration) uint64 {
	h := newStateHasher()
	h.writePipelineState(state)
	h.writeU64(program.layout.ID())
	h.writeU32(target.ID())
	for _, format := range target.ColorFormats() {
		h.writeU8(uint8(format))
	}
	h.writeU8(uint8(target.DepthFormat()))
	if decl != nil {
		h.writeU64(decl.hash)
	}
	return h.sum()
}

// GetOrCreate returns the cached pipeline for the given combination,
// compiling it on first use.
func (pc *PipelineCache) GetOrCreate(state *device.PipelineState, program *Program, target device.RenderTarget, decl *VertexDeclaration) (device.Pipeline, error) {
	key := pipelineKey(state, program, target, decl)
	if pipeline, ok := pc.pipelines[key]; ok {
		return pipeline, nil
	}

	desc := device.PipelineDesc{
		State:        *state,
		Layout:       program.layout,
		VertexShader: program.vertexModule,
		PixelShader:  program.pixelModule,
		Target:       target,
	}
	if decl != nil {
		layout, err := decl.bufferLayout(program)
		if err != nil {
			return nil, err
		}
		desc.VertexBuffers = []device.VertexBufferLayout{layout}
	}

	pipeline, err := pc.device.CreatePipeline(desc)
	if err != nil {
		core.LogError("failed to create pipeline for key %x", key)
		return nil, err
	}
	pc.pipelines[key] = pipeline
	core.LogDebug("pipeline cache miss, %d pipelines compiled", len(pc.pipelines))
	return pipeline, nil
}

// Len reports how many pipelines have been compiled.
func (pc *PipelineCache) Len() int {
	return len(pc.pipelines)
}

func (pc *PipelineCache) Destroy() {
	for _, pipeline := range pc.pipelines {
		pipeline.Destroy()
	}
	pc.pipelines = nil
}

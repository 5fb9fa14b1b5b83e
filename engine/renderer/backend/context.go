package backend

import (
	"fmt"

	"github.com/emberengine/ember/engine/config"
	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

// fenceValueFree marks a frame slot that has never been submitted. The
// first value ever signaled on a slot's fence is therefore 1.
const fenceValueFree uint64 = 0

// frameSlot is the per-frame-in-flight rotation unit: its own fence
// timeline, command recorder, scratch allocator and deferred-destroy list.
type frameSlot struct {
	fence              device.Fence
	fenceValue         uint64
	recorder           device.Recorder
	scratch            *ScratchBuffer
	resourcesToDestroy []*GPUResource
}

// Context owns the frame rotation and every cache that outlives a single
// frame. All methods must be called from the render goroutine.
type Context struct {
	device        device.Device
	cfg           config.RendererConfig
	frames        []frameSlot
	frameCounter  uint64
	currentFrame  uint32
	inFrame       bool
	currentTarget device.RenderTarget
	frameTarget   device.RenderTarget

	pipelineCache *PipelineCache
	samplerCache  map[device.SamplerDesc]device.Sampler

	currentProgram  *Program
	currentState    device.PipelineState
	currentPipeline device.Pipeline
	currentVertices *VertexDeclaration
	viewport        device.Viewport

	boundTextures     [maxTextureUnits]*Texture
	boundVertexBuffer *Buffer
	boundIndexBuffer  *Buffer
	indexIs32bit      bool
}

func NewContext(dev device.Device, cfg config.RendererConfig) (*Context, error) {
	c := &Context{
		device:        dev,
		cfg:           cfg,
		pipelineCache: NewPipelineCache(dev),
		samplerCache:  make(map[device.SamplerDesc]device.Sampler),
		currentState:  device.DefaultPipelineState(),
	}

	c.frames = make([]frameSlot, cfg.FramesInFlight)
	for i := range c.frames {
		fence, err := dev.CreateFence(fenceValueFree)
		if err != nil {
			core.LogError("failed to create fence for frame slot %d", i)
			return nil, err
		}
		recorder, err := dev.CreateRecorder()
		if err != nil {
			core.LogError("failed to create recorder for frame slot %d", i)
			return nil, err
		}
		scratch, err := NewScratchBuffer(dev, cfg.BlockStepSize, cfg.MaxBlockSize, cfg.DescriptorsPerPool)
		if err != nil {
			core.LogError("failed to create scratch buffer for frame slot %d", i)
			return nil, err
		}
		c.frames[i] = frameSlot{
			fence:      fence,
			fenceValue: fenceValueFree,
			recorder:   recorder,
			scratch:    scratch,
		}
	}

	core.LogInfo("renderer context created with %d frames in flight", cfg.FramesInFlight)
	return c, nil
}

func (c *Context) frame() *frameSlot {
	return &c.frames[c.currentFrame]
}

// DestroyResourceDeferred retires a raw device object into the current
// frame slot so the GPU finishes with it before it is freed.
func (c *Context) DestroyResourceDeferred(object destroyable) {
	r := newGPUResource(object)
	r.Retire(c.frame())
}

// Destroy drains all in-flight work and tears the context down. Every
// deferred-destroy list is flushed before any cache is released.
func (c *Context) Destroy() error {
	core.Assertf(!c.inFrame, "context destroyed inside a frame")

	if err := c.device.WaitIdle(); err != nil {
		return fmt.Errorf("renderer: wait for idle on shutdown: %w", err)
	}

	for i := range c.frames {
		flushResourcesToDestroy(&c.frames[i])
		c.frames[i].scratch.Destroy()
		c.frames[i].fence.Destroy()
	}
	c.frames = nil

	c.pipelineCache.Destroy()
	for _, sampler := range c.samplerCache {
		sampler.Destroy()
	}
	c.samplerCache = nil

	core.LogInfo("renderer context destroyed")
	return nil
}

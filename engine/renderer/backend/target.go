package backend

import (
	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

// NewRenderTarget creates an offscreen target. Each distinct target
// produces its own pipeline cache entries, the target identity is part of
// the pipeline key.
func (c *Context) NewRenderTarget(width, height uint32, colorFormats []device.TextureFormat, depthFormat device.TextureFormat) (device.RenderTarget, error) {
	target, err := c.device.CreateRenderTarget(width, height, colorFormats, depthFormat)
	if err != nil {
		core.LogError("failed to create %dx%d render target", width, height)
		return nil, err
	}
	return target, nil
}

// BeginRenderTarget ends the current pass and opens one on the given
// target. Passing nil returns to the swapchain target for this frame.
func (c *Context) BeginRenderTarget(target device.RenderTarget, clearColor [4]float32) {
	core.Assertf(c.inFrame, "BeginRenderTarget outside a frame")

	frame := c.frame()
	frame.recorder.EndPass()

	if target == nil {
		target = c.frameTarget
	}

	c.currentTarget = target
	c.currentPipeline = nil
	frame.recorder.BeginPass(target, clearColor, 1.0, 0)
	frame.recorder.SetViewport(device.Viewport{Width: target.Width(), Height: target.Height()})
}

// DestroyRenderTarget retires the target into the current frame slot.
func (c *Context) DestroyRenderTarget(target device.RenderTarget) {
	c.DestroyResourceDeferred(target)
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

// synchronizeFrame blocks until the GPU has finished the slot's previous
// use, then claims the next fence value for the frame about to record. A
// free slot has never been submitted and is claimed without waiting.
func (c *Context) synchronizeFrame(ctx context.Context, frame *frameSlot) error {
	if frame.fenceValue != fenceValueFree && frame.fence.CompletedValue() < frame.fenceValue {
		start := time.Now()
		if err := frame.fence.Wait(ctx, frame.fenceValue); err != nil {
			if errors.Is(err, device.ErrDeviceLost) || errors.Is(err, device.ErrTimeout) {
				return fmt.Errorf("renderer: fence wait for value %d: %w", frame.fenceValue, err)
			}
			return core.CheckDeviceErr(c.cfg.VerifyCalls, err)
		}
		core.MetricsFenceWait(float64(time.Since(start).Microseconds()) / 1000.0)
	}
	frame.fenceValue++
	return nil
}

// BeginFrame acquires the next frame slot, waits out the GPU if that slot
// is still in flight, recycles everything the slot owned and opens the
// main render pass on the acquired swapchain target.
func (c *Context) BeginFrame(ctx context.Context, clearColor [4]float32) error {
	core.Assertf(!c.inFrame, "BeginFrame called twice without EndFrame")

	_, target, err := c.device.AcquireNextFrame()
	if err != nil {
		core.LogError("failed to acquire next frame")
		return err
	}
	// The slot rotation is independent of the acquired backbuffer index,
	// the swapchain may hold more images than there are frames in flight.
	c.currentFrame = uint32(c.frameCounter % uint64(len(c.frames)))
	c.frameCounter++
	c.currentTarget = target
	c.frameTarget = target
	frame := c.frame()

	if err := c.synchronizeFrame(ctx, frame); err != nil {
		return err
	}

	// Safe now: the fence wait proved the GPU is done with this slot.
	flushResourcesToDestroy(frame)
	frame.scratch.Reset()

	if err := frame.recorder.Reset(); err != nil {
		return core.CheckDeviceErr(c.cfg.VerifyCalls, err)
	}

	texturePool, samplerPool := frame.scratch.DescriptorHeaps()
	frame.recorder.SetDescriptorHeaps(texturePool, samplerPool)

	c.viewport = device.Viewport{Width: target.Width(), Height: target.Height()}
	frame.recorder.BeginPass(target, clearColor, 1.0, 0)
	frame.recorder.SetViewport(c.viewport)

	c.currentPipeline = nil
	c.inFrame = true
	return nil
}

// EndFrame closes the pass, submits the recorded commands with the slot's
// claimed fence value and presents.
func (c *Context) EndFrame() error {
	core.Assertf(c.inFrame, "EndFrame called outside a frame")
	c.inFrame = false

	frame := c.frame()
	frame.recorder.EndPass()
	if err := frame.recorder.Close(); err != nil {
		return core.CheckDeviceErr(c.cfg.VerifyCalls, err)
	}

	if err := c.device.Submit(frame.recorder, frame.fence, frame.fenceValue); err != nil {
		core.LogError("failed to submit frame %d", c.currentFrame)
		return err
	}
	if err := c.device.Present(); err != nil {
		core.LogError("failed to present frame %d", c.currentFrame)
		return err
	}
	return nil
}

// SetViewport overrides the full-target viewport set by BeginFrame.
func (c *Context) SetViewport(vp device.Viewport) {
	core.Assertf(c.inFrame, "SetViewport called outside a frame")
	c.viewport = vp
	c.frame().recorder.SetViewport(vp)
}

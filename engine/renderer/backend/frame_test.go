package backend

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberengine/ember/engine/config"
	"github.com/emberengine/ember/engine/renderer/device"
)

func testRendererConfig() config.RendererConfig {
	return config.RendererConfig{
		FramesInFlight:     2,
		BlockStepSize:      256,
		MaxBlockSize:       2048,
		DescriptorsPerPool: 64,
	}
}

func newTestContext(t *testing.T) (*Context, *fakeDevice) {
	t.Helper()
	dev := newFakeDevice(2)
	c, err := NewContext(dev, testRendererConfig())
	require.NoError(t, err)
	return c, dev
}

func runFrame(t *testing.T, c *Context) {
	t.Helper()
	require.NoError(t, c.BeginFrame(context.Background(), [4]float32{0, 0, 0, 1}))
	require.NoError(t, c.EndFrame())
}

func TestFirstUseOfEachSlotDoesNotWait(t *testing.T) {
	c, dev := newTestContext(t)

	runFrame(t, c)
	runFrame(t, c)

	// Both slots were free, no fence was ever waited on.
	for _, f := range dev.fences {
		assert.Empty(t, f.waits)
	}
	require.Len(t, dev.submissions, 2)
	assert.Equal(t, uint64(1), dev.submissions[0].value)
	assert.Equal(t, uint64(1), dev.submissions[1].value)
}

func TestSlotReuseWaitsForItsFenceValue(t *testing.T) {
	c, dev := newTestContext(t)

	runFrame(t, c)
	runFrame(t, c)
	// Third frame reuses slot 0, whose fence has not reached value 1 yet.
	runFrame(t, c)

	fence0 := dev.fences[0]
	require.Len(t, fence0.waits, 1)
	assert.Equal(t, uint64(1), fence0.waits[0])
	assert.Empty(t, dev.fences[1].waits)

	// The reused slot claims and submits the next monotonic value.
	require.Len(t, dev.submissions, 3)
	assert.Equal(t, uint64(2), dev.submissions[2].value)
}

func TestSlotReuseSkipsWaitWhenFenceAlreadySignaled(t *testing.T) {
	c, dev := newTestContext(t)

	runFrame(t, c)
	runFrame(t, c)
	dev.fences[0].signal(1)
	runFrame(t, c)

	assert.Empty(t, dev.fences[0].waits)
}

func TestDeferredDestroyFlushesOnSlotReuse(t *testing.T) {
	c, _ := newTestContext(t)
	ctx := context.Background()

	require.NoError(t, c.BeginFrame(ctx, [4]float32{}))
	b, err := c.NewVertexBuffer(make([]byte, 64))
	require.NoError(t, err)
	fb := b.resource.(*fakeBuffer)

	c.DestroyBuffer(b)
	assert.False(t, fb.destroyed, "destroy must be deferred while the frame is recording")
	require.NoError(t, c.EndFrame())

	// The next frame uses the other slot, the buffer stays alive.
	runFrame(t, c)
	assert.False(t, fb.destroyed)

	// Reusing the retiring frame's slot waits its fence out and flushes.
	require.NoError(t, c.BeginFrame(ctx, [4]float32{}))
	assert.True(t, fb.destroyed)
	require.NoError(t, c.EndFrame())
}

func TestShutdownDrainsAllSlots(t *testing.T) {
	c, dev := newTestContext(t)
	ctx := context.Background()

	require.NoError(t, c.BeginFrame(ctx, [4]float32{}))
	b1, err := c.NewVertexBuffer(make([]byte, 16))
	require.NoError(t, err)
	fb1 := b1.resource.(*fakeBuffer)
	c.DestroyBuffer(b1)
	require.NoError(t, c.EndFrame())

	require.NoError(t, c.BeginFrame(ctx, [4]float32{}))
	b2, err := c.NewVertexBuffer(make([]byte, 16))
	require.NoError(t, err)
	fb2 := b2.resource.(*fakeBuffer)
	c.DestroyBuffer(b2)
	require.NoError(t, c.EndFrame())

	require.NoError(t, c.Destroy())

	assert.True(t, dev.waitedIdle, "shutdown must drain the GPU before freeing")
	assert.True(t, fb1.destroyed)
	assert.True(t, fb2.destroyed)
}

func TestGrowingBufferRetiresOldAllocation(t *testing.T) {
	c, _ := newTestContext(t)
	ctx := context.Background()

	require.NoError(t, c.BeginFrame(ctx, [4]float32{}))
	b, err := c.NewVertexBuffer(make([]byte, 16))
	require.NoError(t, err)
	old := b.resource.(*fakeBuffer)

	require.NoError(t, c.SetBufferData(b, make([]byte, 64)))
	assert.Equal(t, uint32(64), b.Size())
	assert.NotSame(t, old, b.resource.(*fakeBuffer))
	assert.False(t, old.destroyed, "old allocation must outlive the in-flight frame")

	// Shrinking rewrites in place.
	grown := b.resource.(*fakeBuffer)
	require.NoError(t, c.SetBufferData(b, make([]byte, 8)))
	assert.Same(t, grown, b.resource.(*fakeBuffer))
	require.NoError(t, c.EndFrame())
}

func TestFenceWaitDeviceLossSurfacesFromBeginFrame(t *testing.T) {
	c, dev := newTestContext(t)

	runFrame(t, c)
	runFrame(t, c)

	// Slot 0 comes back around with value 1 still unsignaled and the
	// device gone mid-wait.
	dev.fences[0].onWait = func(value uint64) error {
		return fmt.Errorf("wait for fence value %d: %w", value, device.ErrDeviceLost)
	}

	err := c.BeginFrame(context.Background(), [4]float32{})
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrDeviceLost)
	assert.NotErrorIs(t, err, device.ErrTimeout)
}

func TestFenceWaitTimeoutSurfacesFromBeginFrame(t *testing.T) {
	c, dev := newTestContext(t)

	runFrame(t, c)
	runFrame(t, c)

	dev.fences[0].onWait = func(value uint64) error {
		return fmt.Errorf("wait for fence value %d: %w", value, device.ErrTimeout)
	}

	err := c.BeginFrame(context.Background(), [4]float32{})
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrTimeout)
	assert.NotErrorIs(t, err, device.ErrDeviceLost)
}

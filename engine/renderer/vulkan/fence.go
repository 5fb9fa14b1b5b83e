package vulkan

import (
	"context"
	"fmt"
	"sync"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/renderer/device"
)

// fence emulates a monotonically increasing GPU timeline on top of a
// binary vulkan fence. At most one submission is in flight per fence,
// which the frame slot rotation guarantees, so a CPU-side counter plus
// the binary fence is enough to answer CompletedValue and Wait.
type fence struct {
	device *Device

	mu        sync.Mutex
	handle    vk.Fence
	completed uint64
	// pending is the value the in-flight submission will signal, zero
	// when nothing is in flight.
	pending uint64
}

func (d *Device) CreateFence(initial uint64) (device.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var handle vk.Fence
	if res := vk.CreateFence(d.logicalDevice, &fenceCreateInfo, d.allocator, &handle); res != vk.Success {
		return nil, resultToError("create fence", res)
	}
	return &fence{device: d, handle: handle, completed: initial}, nil
}

func (f *fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pending != 0 {
		if vk.GetFenceStatus(f.device.logicalDevice, f.handle) == vk.Success {
			f.retireLocked()
		}
	}
	return f.completed
}

func (f *fence) Wait(ctx context.Context, value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.completed >= value {
		return nil
	}
	if f.pending == 0 || f.pending < value {
		return fmt.Errorf("vulkan: wait for fence value %d that was never submitted", value)
	}

	// Wait in slices so a cancelled context is honored without a
	// device-side timeout mechanism.
	const slice = 100 * time.Millisecond
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("vulkan: fence wait cancelled: %w", device.ErrTimeout)
		}
		result := vk.WaitForFences(f.device.logicalDevice, 1, []vk.Fence{f.handle}, vk.True, uint64(slice.Nanoseconds()))
		switch result {
		case vk.Success:
			f.retireLocked()
			return nil
		case vk.Timeout:
			continue
		default:
			return resultToError("wait for fence", result)
		}
	}
}

// retireLocked folds the signaled submission into the counter and
// rearms the binary fence for the next submit.
func (f *fence) retireLocked() {
	vk.ResetFences(f.device.logicalDevice, 1, []vk.Fence{f.handle})
	f.completed = f.pending
	f.pending = 0
}

// arm registers the value the next submission will signal.
func (f *fence) arm(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pending != 0 {
		// The previous submission was never waited out. Drain it so the
		// binary fence is reusable.
		if res := vk.WaitForFences(f.device.logicalDevice, 1, []vk.Fence{f.handle}, vk.True, ^uint64(0)); res != vk.Success {
			return resultToError("drain in-flight fence", res)
		}
		f.retireLocked()
	}
	f.pending = value
	return nil
}

func (f *fence) Destroy() {
	if f.handle != vk.NullFence {
		vk.DestroyFence(f.device.logicalDevice, f.handle, f.device.allocator)
		f.handle = vk.NullFence
	}
}

package backend

import "github.com/emberengine/ember/engine/core"

// destroyable is anything the GPU may still be reading when the CPU lets
// go of it.
type destroyable interface {
	Destroy()
}

type resourceState uint8

const (
	resourceLive resourceState = iota
	resourceRetired
)

// GPUResource wraps a device object with its deferred-destruction state.
// A retired resource is dead to the caller but stays allocated until the
// frame that last referenced it has finished on the GPU.
type GPUResource struct {
	object destroyable
	state  resourceState
}

func newGPUResource(object destroyable) *GPUResource {
	return &GPUResource{object: object, state: resourceLive}
}

// Retire parks the resource on the given frame slot's destroy list. The
// actual Destroy happens when that slot is next synchronized.
func (r *GPUResource) Retire(frame *frameSlot) {
	core.Assertf(r.state == resourceLive, "resource retired twice")
	r.state = resourceRetired
	frame.resourcesToDestroy = append(frame.resourcesToDestroy, r)
}

// flushResourcesToDestroy destroys everything retired into this slot. Only
// safe after the slot's fence value has been waited on.
func flushResourcesToDestroy(frame *frameSlot) {
	for _, r := range frame.resourcesToDestroy {
		core.Assertf(r.state == resourceRetired, "live resource on destroy list")
		r.object.Destroy()
	}
	frame.resourcesToDestroy = frame.resourcesToDestroy[:0]
}

package device

import "errors"

var (
	// ErrDeviceLost means the GPU device was removed or reset. The context
	// cannot recover and must be torn down.
	ErrDeviceLost = errors.New("device: lost")
	// ErrTimeout means a fence wait did not complete within the deadline.
	ErrTimeout = errors.New("device: fence wait timed out")
	// ErrOutOfMemory means a device allocation failed.
	ErrOutOfMemory = errors.New("device: out of memory")
	// ErrOutOfDate means the presentation surface no longer matches the
	// swapchain, usually after a window resize. Recoverable by recreating
	// the size-dependent resources.
	ErrOutOfDate = errors.New("device: swapchain out of date")
)

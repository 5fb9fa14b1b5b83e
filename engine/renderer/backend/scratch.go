package backend

import (
	"fmt"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

// scratchPool is one size class of per-frame transient constant memory
// plus the descriptor cursors that ride along with it.
type scratchPool struct {
	memory           device.ConstantPool
	texturePool      device.DescriptorPool
	samplerPool      device.DescriptorPool
	blockSize        uint32
	memoryCursor     uint32
	descriptorCursor uint32
}

// ScratchBuffer hands out short-lived constant regions and descriptor
// slots for a single frame in flight. Allocations are bump-pointer only
// and the whole buffer is reset when its frame's fence is known signaled.
type ScratchBuffer struct {
	device        device.Device
	pools         []scratchPool
	blockStepSize uint32
	maxBlockSize  uint32
}

// ConstantRegion is a transient GPU-visible constant range. Valid only
// until the owning frame slot is reset.
type ConstantRegion struct {
	Memory []byte
	Pool   device.ConstantPool
	Offset uint32
}

func NewScratchBuffer(dev device.Device, blockStepSize, maxBlockSize, descriptorsPerPool uint32) (*ScratchBuffer, error) {
	core.Assertf(blockStepSize > 0, "scratch block step size must be non-zero")
	core.Assertf(maxBlockSize%blockStepSize == 0, "scratch max block size must be a multiple of the step size")

	s := &ScratchBuffer{
		device:        dev,
		blockStepSize: blockStepSize,
		maxBlockSize:  maxBlockSize,
	}

	poolCount := maxBlockSize / blockStepSize
	s.pools = make([]scratchPool, poolCount)
	for i := range s.pools {
		blockSize := blockStepSize * uint32(i+1)
		memory, err := dev.CreateConstantPool(blockSize * descriptorsPerPool)
		if err != nil {
			core.LogError("failed to create scratch constant pool %d", i)
			return nil, err
		}
		texturePool, err := dev.CreateDescriptorPool(descriptorsPerPool, false)
		if err != nil {
			core.LogError("failed to create scratch texture descriptor pool %d", i)
			return nil, err
		}
		samplerPool, err := dev.CreateDescriptorPool(descriptorsPerPool, true)
		if err != nil {
			core.LogError("failed to create scratch sampler descriptor pool %d", i)
			return nil, err
		}
		s.pools[i] = scratchPool{
			memory:      memory,
			texturePool: texturePool,
			samplerPool: samplerPool,
			blockSize:   blockSize,
		}
	}
	return s, nil
}

// AllocateConstantRegion bump-allocates size bytes from the size class that
// fits it. The cursor always advances by the full block size so every region
// in a pool starts block-aligned.
func (s *ScratchBuffer) AllocateConstantRegion(size uint32) ConstantRegion {
	core.Assertf(size > 0, "scratch allocation of zero bytes")
	core.Assertf(size < s.maxBlockSize, "scratch allocation of %d bytes exceeds the max block size %d", size, s.maxBlockSize)

	poolIndex := size / s.blockStepSize
	pool := &s.pools[poolIndex]

	mapped := pool.memory.Map()
	core.Assertf(pool.memoryCursor+size <= uint32(len(mapped)), "scratch pool %d exhausted", poolIndex)

	region := ConstantRegion{
		Memory: mapped[pool.memoryCursor : pool.memoryCursor+size],
		Pool:   pool.memory,
		Offset: pool.memoryCursor,
	}
	pool.memoryCursor += pool.blockSize
	return region
}

// AllocateDescriptors reserves count texture/sampler descriptor slots.
// Descriptors always come from pool zero so a frame binds a single pair of
// descriptor heaps regardless of which size classes its constants used.
func (s *ScratchBuffer) AllocateDescriptors(count uint32) (device.DescriptorPool, device.DescriptorPool, uint32, error) {
	pool := &s.pools[0]
	if pool.descriptorCursor+count > pool.texturePool.Capacity() {
		return nil, nil, 0, fmt.Errorf("scratch descriptor pool exhausted: %d used, %d requested, %d capacity",
			pool.descriptorCursor, count, pool.texturePool.Capacity())
	}
	cursor := pool.descriptorCursor
	pool.descriptorCursor += count
	return pool.texturePool, pool.samplerPool, cursor, nil
}

// DescriptorHeaps returns the heaps a frame binds before any draw.
func (s *ScratchBuffer) DescriptorHeaps() (device.DescriptorPool, device.DescriptorPool) {
	return s.pools[0].texturePool, s.pools[0].samplerPool
}

// Reset rewinds every pool cursor. Must only be called once the frame that
// consumed the regions has been waited on.
func (s *ScratchBuffer) Reset() {
	for i := range s.pools {
		s.pools[i].memoryCursor = 0
		s.pools[i].descriptorCursor = 0
	}
}

func (s *ScratchBuffer) Destroy() {
	for i := range s.pools {
		s.pools[i].memory.Destroy()
		s.pools[i].texturePool.Destroy()
		s.pools[i].samplerPool.Destroy()
	}
	s.pools = nil
}

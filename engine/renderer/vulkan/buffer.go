package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

type rawBuffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint32
}

func newRawBuffer(d *Device, size uint32, usage vk.BufferUsageFlags, memoryFlags uint32) (*rawBuffer, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(d.logicalDevice, &bufferCreateInfo, d.allocator, &handle); res != vk.Success {
		return nil, resultToError("create buffer", res)
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.logicalDevice, handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryIndex := d.findMemoryIndex(memoryRequirements.MemoryTypeBits, memoryFlags)
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.logicalDevice, &allocateInfo, d.allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(d.logicalDevice, handle, d.allocator)
		return nil, resultToError("allocate buffer memory", res)
	}
	if res := vk.BindBufferMemory(d.logicalDevice, handle, memory, 0); res != vk.Success {
		return nil, resultToError("bind buffer memory", res)
	}

	return &rawBuffer{handle: handle, memory: memory, size: size}, nil
}

func (b *rawBuffer) write(d *Device, data []byte, offset uint32) error {
	var ptr unsafe.Pointer
	if res := vk.MapMemory(d.logicalDevice, b.memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr); res != vk.Success {
		return resultToError("map buffer memory", res)
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(d.logicalDevice, b.memory)
	return nil
}

func (b *rawBuffer) destroy(d *Device) {
	if b.handle != vk.NullBuffer {
		vk.DestroyBuffer(d.logicalDevice, b.handle, d.allocator)
		b.handle = vk.NullBuffer
	}
	if b.memory != vk.NullDeviceMemory {
		vk.FreeMemory(d.logicalDevice, b.memory, d.allocator)
		b.memory = vk.NullDeviceMemory
	}
}

// buffer implements device.Buffer. Vertex and index buffers live in
// host-visible memory and are written directly, which keeps re-upload
// cheap for dynamic geometry.
type buffer struct {
	device *Device
	raw    *rawBuffer
	usage  device.BufferUsage
}

func (d *Device) CreateBuffer(size uint32, usage device.BufferUsage) (device.Buffer, error) {
	var vkUsage vk.BufferUsageFlags
	switch usage {
	case device.BufferVertex:
		vkUsage = vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	case device.BufferIndex:
		vkUsage = vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	case device.BufferUniform:
		vkUsage = vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}

	raw, err := newRawBuffer(d, size, vkUsage,
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		core.LogError("failed to create %d byte vulkan buffer", size)
		return nil, err
	}
	return &buffer{device: d, raw: raw, usage: usage}, nil
}

func (b *buffer) Size() uint32 { return b.raw.size }

func (b *buffer) Upload(data []byte, offset uint32) error {
	return b.raw.write(b.device, data, offset)
}

func (b *buffer) Destroy() {
	b.raw.destroy(b.device)
}

// constantPool is one persistently mapped uniform buffer the scratch
// allocator slices into per-frame regions.
type constantPool struct {
	device *Device
	raw    *rawBuffer
	mapped []byte
}

func (d *Device) CreateConstantPool(size uint32) (device.ConstantPool, error) {
	raw, err := newRawBuffer(d, size,
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		core.LogError("failed to create %d byte constant pool", size)
		return nil, err
	}

	var ptr unsafe.Pointer
	if res := vk.MapMemory(d.logicalDevice, raw.memory, 0, vk.DeviceSize(size), 0, &ptr); res != vk.Success {
		raw.destroy(d)
		return nil, resultToError("map constant pool", res)
	}

	mapped := unsafe.Slice((*byte)(ptr), size)
	return &constantPool{device: d, raw: raw, mapped: mapped}, nil
}

func (p *constantPool) Map() []byte  { return p.mapped }
func (p *constantPool) Size() uint32 { return p.raw.size }

func (p *constantPool) Destroy() {
	vk.UnmapMemory(p.device.logicalDevice, p.raw.memory)
	p.raw.destroy(p.device)
}

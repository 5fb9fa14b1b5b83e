package backend

import (
	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

// Buffer is a vertex or index buffer. Growing it swaps the device object
// out from under the handle, retiring the old one so in-flight frames
// keep a valid buffer.
type Buffer struct {
	resource device.Buffer
	usage    device.BufferUsage
	size     uint32
}

func (c *Context) NewBuffer(usage device.BufferUsage, data []byte) (*Buffer, error) {
	resource, err := c.device.CreateBuffer(uint32(len(data)), usage)
	if err != nil {
		core.LogError("failed to create buffer of %d bytes", len(data))
		return nil, err
	}
	if len(data) > 0 {
		if err := resource.Upload(data, 0); err != nil {
			resource.Destroy()
			core.LogError("failed to upload initial buffer data")
			return nil, err
		}
	}
	return &Buffer{resource: resource, usage: usage, size: uint32(len(data))}, nil
}

func (c *Context) NewVertexBuffer(data []byte) (*Buffer, error) {
	return c.NewBuffer(device.BufferVertex, data)
}

func (c *Context) NewIndexBuffer(data []byte) (*Buffer, error) {
	return c.NewBuffer(device.BufferIndex, data)
}

func (b *Buffer) Size() uint32 {
	return b.size
}

// SetBufferData replaces the buffer contents. Data larger than the
// current allocation retires the old device buffer and allocates a
// bigger one; smaller data reuses the allocation.
func (c *Context) SetBufferData(b *Buffer, data []byte) error {
	if uint32(len(data)) > b.size {
		replacement, err := c.device.CreateBuffer(uint32(len(data)), b.usage)
		if err != nil {
			core.LogError("failed to grow buffer from %d to %d bytes", b.size, len(data))
			return err
		}
		c.DestroyResourceDeferred(b.resource)
		b.resource = replacement
		b.size = uint32(len(data))
	}
	if err := b.resource.Upload(data, 0); err != nil {
		core.LogError("failed to upload %d bytes of buffer data", len(data))
		return core.CheckDeviceErr(c.cfg.VerifyCalls, err)
	}
	return nil
}

// DestroyBuffer retires the buffer into the current frame slot.
func (c *Context) DestroyBuffer(b *Buffer) {
	c.DestroyResourceDeferred(b.resource)
	b.resource = nil
	b.size = 0
}

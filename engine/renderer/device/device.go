package device

import "context"

// TextureFormat is the subset of formats the backend uploads and samples.
type TextureFormat uint8

const (
	FormatRGBA8 TextureFormat = iota
	FormatRGB8
	FormatR8
	FormatRG8
	FormatRGBA16F
	FormatRGBA32F
	FormatDepth32F
	FormatDepth24Stencil8
)

// BytesPerPixel returns the upload pitch of a color format, zero for
// depth/stencil formats which cannot be uploaded from the CPU.
func (f TextureFormat) BytesPerPixel() uint32 {
	switch f {
	case FormatR8:
		return 1
	case FormatRG8:
		return 2
	case FormatRGB8:
		return 3
	case FormatRGBA8:
		return 4
	case FormatRGBA16F:
		return 8
	case FormatRGBA32F:
		return 16
	}
	return 0
}

func (f TextureFormat) IsDepthStencil() bool {
	return f == FormatDepth32F || f == FormatDepth24Stencil8
}

type FilterMode uint8

const (
	FilterNearest FilterMode = iota
	FilterLinear
	FilterLinearMipmap
)

type WrapMode uint8

const (
	WrapRepeat WrapMode = iota
	WrapClampToEdge
	WrapMirroredRepeat
)

// SamplerDesc is the hashable description a sampler is deduplicated by.
type SamplerDesc struct {
	MinFilter     FilterMode
	MagFilter     FilterMode
	WrapU         WrapMode
	WrapV         WrapMode
	MaxAnisotropy uint8
}

type Viewport struct {
	X, Y          int32
	Width, Height uint32
}

// Fence is a monotonically increasing GPU timeline. CompletedValue reports
// the highest value the GPU has signaled; Wait blocks until it reaches value.
type Fence interface {
	CompletedValue() uint64
	Wait(ctx context.Context, value uint64) error
	Destroy()
}

// ConstantPool is one GPU-visible linear buffer of constant memory. Map
// exposes the whole persistently mapped range.
type ConstantPool interface {
	Map() []byte
	Size() uint32
	Destroy()
}

// DescriptorPool hands out texture/sampler descriptor slots.
type DescriptorPool interface {
	Capacity() uint32
	Destroy()
}

type Buffer interface {
	Size() uint32
	Upload(data []byte, offset uint32) error
	Destroy()
}

type Texture interface {
	Width() uint32
	Height() uint32
	Format() TextureFormat
	MipLevels() uint32
	Upload(mip uint32, data []byte) error
	Destroy()
}

type Sampler interface {
	Desc() SamplerDesc
	Destroy()
}

type ShaderModule interface {
	Stage() StageFlags
	Destroy()
}

// RootLayout is the compiled binding layout shared by every pipeline of one
// program. ID is stable for the lifetime of the layout and feeds the
// pipeline cache key.
type RootLayout interface {
	ID() uint64
	Destroy()
}

type Pipeline interface {
	Destroy()
}

type RenderTarget interface {
	ID() uint32
	Width() uint32
	Height() uint32
	ColorFormats() []TextureFormat
	DepthFormat() TextureFormat
	Destroy()
}

// RootLayoutDesc drives root layout creation: how many constant buffer
// views come first, then how many texture/sampler table pairs follow.
type RootLayoutDesc struct {
	UniformBuffers []ResourceBinding
	Textures       []ResourceBinding
	SamplerCount   uint32
}

type VertexAttribute struct {
	Location   uint32
	Offset     uint32
	Type       DataType
	Normalized bool
}

type VertexBufferLayout struct {
	Stride      uint32
	PerInstance bool
	Attributes  []VertexAttribute
}

// PipelineDesc is everything a concrete pipeline is compiled from.
type PipelineDesc struct {
	State         PipelineState
	Layout        RootLayout
	VertexShader  ShaderModule
	PixelShader   ShaderModule
	VertexBuffers []VertexBufferLayout
	Target        RenderTarget
}

// Recorder records GPU commands for one frame. Implementations are not
// safe for concurrent use.
type Recorder interface {
	Reset() error
	Close() error

	BeginPass(target RenderTarget, clearColor [4]float32, clearDepth float32, clearStencil uint8)
	EndPass()

	SetPipeline(p Pipeline)
	SetRootLayout(l RootLayout)
	SetViewport(vp Viewport)
	SetDescriptorHeaps(texturePool, samplerPool DescriptorPool)

	// SetRootConstantBuffer binds a GPU-visible constant region at a root
	// parameter slot.
	SetRootConstantBuffer(slot uint32, pool ConstantPool, offset uint32)
	// WriteTextureDescriptor writes a texture view into a descriptor pool
	// cursor and returns the table handle to bind.
	WriteTextureDescriptor(pool DescriptorPool, cursor uint32, t Texture) uint64
	WriteSamplerDescriptor(pool DescriptorPool, cursor uint32, s Sampler) uint64
	SetRootTextureTable(slot uint32, table uint64)
	SetRootSamplerTable(slot uint32, table uint64)

	SetVertexBuffers(buffers []Buffer, strides []uint32)
	SetIndexBuffer(buffer Buffer, is32bit bool)
	Draw(vertexCount, firstVertex uint32)
	DrawIndexed(indexCount, firstIndex uint32)
}

// Device is the narrow hardware seam the backend is written against. One
// production implementation exists; tests substitute an in-memory fake.
type Device interface {
	CreateFence(initial uint64) (Fence, error)
	CreateConstantPool(size uint32) (ConstantPool, error)
	CreateDescriptorPool(capacity uint32, samplers bool) (DescriptorPool, error)
	CreateRecorder() (Recorder, error)

	CreateBuffer(size uint32, usage BufferUsage) (Buffer, error)
	CreateTexture(width, height, mipLevels uint32, format TextureFormat) (Texture, error)
	CreateSampler(desc SamplerDesc) (Sampler, error)
	CreateShaderModule(stage StageFlags, code []byte) (ShaderModule, error)
	CreateRootLayout(desc RootLayoutDesc) (RootLayout, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	CreateRenderTarget(width, height uint32, colorFormats []TextureFormat, depthFormat TextureFormat) (RenderTarget, error)

	// Submit executes the recorder's commands and signals fence with value
	// when the GPU finishes them.
	Submit(r Recorder, fence Fence, value uint64) error
	// AcquireNextFrame returns the frame slot index to record into and the
	// swapchain render target for it.
	AcquireNextFrame() (uint32, RenderTarget, error)
	Present() error
	WaitIdle() error
	Destroy()
}

type BufferUsage uint8

const (
	BufferVertex BufferUsage = iota
	BufferIndex
	BufferUniform
)

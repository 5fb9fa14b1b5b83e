package backend

import (
	"context"
	"fmt"

	"github.com/emberengine/ember/engine/renderer/device"
)

// fakeDevice is an in-memory device.Device used to observe what the
// backend asks the hardware to do.
type fakeDevice struct {
	frameCount   uint32
	nextFrame    uint32
	targets      []*fakeRenderTarget
	fences       []*fakeFence
	submissions  []fakeSubmission
	pipelines    int
	rootLayouts  uint64
	targetIDs    uint32
	destroyed    []string
	waitedIdle   bool
	presentCount int
}

type fakeSubmission struct {
	fence device.Fence
	value uint64
}

func newFakeDevice(frameCount uint32) *fakeDevice {
	d := &fakeDevice{frameCount: frameCount}
	// One main target backed by the swapchain, like a real device: the
	// per-frame backbuffers share a single render target identity.
	main := &fakeRenderTarget{
		id:     d.nextTargetID(),
		width:  640,
		height: 480,
		colors: []device.TextureFormat{device.FormatRGBA8},
		depth:  device.FormatDepth32F,
	}
	for i := uint32(0); i < frameCount; i++ {
		d.targets = append(d.targets, main)
	}
	return d
}

func (d *fakeDevice) nextTargetID() uint32 {
	d.targetIDs++
	return d.targetIDs
}

func (d *fakeDevice) CreateFence(initial uint64) (device.Fence, error) {
	f := &fakeFence{completed: initial}
	d.fences = append(d.fences, f)
	return f, nil
}

func (d *fakeDevice) CreateConstantPool(size uint32) (device.ConstantPool, error) {
	return &fakeConstantPool{data: make([]byte, size), device: d}, nil
}

func (d *fakeDevice) CreateDescriptorPool(capacity uint32, samplers bool) (device.DescriptorPool, error) {
	return &fakeDescriptorPool{capacity: capacity, device: d}, nil
}

func (d *fakeDevice) CreateRecorder() (device.Recorder, error) {
	return &fakeRecorder{}, nil
}

func (d *fakeDevice) CreateBuffer(size uint32, usage device.BufferUsage) (device.Buffer, error) {
	return &fakeBuffer{size: size, device: d}, nil
}

func (d *fakeDevice) CreateTexture(width, height, mipLevels uint32, format device.TextureFormat) (device.Texture, error) {
	return &fakeTexture{width: width, height: height, mips: mipLevels, format: format, device: d}, nil
}

func (d *fakeDevice) CreateSampler(desc device.SamplerDesc) (device.Sampler, error) {
	return &fakeSampler{desc: desc, device: d}, nil
}

func (d *fakeDevice) CreateShaderModule(stage device.StageFlags, code []byte) (device.ShaderModule, error) {
	return &fakeShaderModule{stage: stage, device: d}, nil
}

func (d *fakeDevice) CreateRootLayout(desc device.RootLayoutDesc) (device.RootLayout, error) {
	d.rootLayouts++
	return &fakeRootLayout{id: d.rootLayouts, desc: desc, device: d}, nil
}

func (d *fakeDevice) CreatePipeline(desc device.PipelineDesc) (device.Pipeline, error) {
	d.pipelines++
	return &fakePipeline{desc: desc, device: d}, nil
}

func (d *fakeDevice) CreateRenderTarget(width, height uint32, colorFormats []device.TextureFormat, depthFormat device.TextureFormat) (device.RenderTarget, error) {
	return &fakeRenderTarget{
		id:     d.nextTargetID(),
		width:  width,
		height: height,
		colors: colorFormats,
		depth:  depthFormat,
		device: d,
	}, nil
}

func (d *fakeDevice) Submit(r device.Recorder, fence device.Fence, value uint64) error {
	d.submissions = append(d.submissions, fakeSubmission{fence: fence, value: value})
	return nil
}

func (d *fakeDevice) AcquireNextFrame() (uint32, device.RenderTarget, error) {
	index := d.nextFrame
	d.nextFrame = (d.nextFrame + 1) % d.frameCount
	return index, d.targets[index], nil
}

func (d *fakeDevice) Present() error {
	d.presentCount++
	return nil
}

func (d *fakeDevice) WaitIdle() error {
	d.waitedIdle = true
	return nil
}

func (d *fakeDevice) Destroy() {}

type fakeFence struct {
	completed uint64
	waits     []uint64
	// onWait, when set, runs before the wait resolves. Tests use it to
	// model the GPU signaling while the CPU is blocked.
	onWait func(value uint64) error
}

func (f *fakeFence) CompletedValue() uint64 { return f.completed }

func (f *fakeFence) Wait(ctx context.Context, value uint64) error {
	f.waits = append(f.waits, value)
	if f.onWait != nil {
		if err := f.onWait(value); err != nil {
			return err
		}
	}
	if f.completed < value {
		f.completed = value
	}
	return nil
}

func (f *fakeFence) signal(value uint64) {
	if value > f.completed {
		f.completed = value
	}
}

func (f *fakeFence) Destroy() {}

type fakeConstantPool struct {
	data      []byte
	device    *fakeDevice
	destroyed bool
}

func (p *fakeConstantPool) Map() []byte  { return p.data }
func (p *fakeConstantPool) Size() uint32 { return uint32(len(p.data)) }
func (p *fakeConstantPool) Destroy() {
	p.destroyed = true
	p.device.destroyed = append(p.device.destroyed, "constantPool")
}

type fakeDescriptorPool struct {
	capacity  uint32
	device    *fakeDevice
	destroyed bool
}

func (p *fakeDescriptorPool) Capacity() uint32 { return p.capacity }
func (p *fakeDescriptorPool) Destroy() {
	p.destroyed = true
	p.device.destroyed = append(p.device.destroyed, "descriptorPool")
}

type fakeBuffer struct {
	size      uint32
	uploads   int
	device    *fakeDevice
	destroyed bool
}

func (b *fakeBuffer) Size() uint32 { return b.size }
func (b *fakeBuffer) Upload(data []byte, offset uint32) error {
	b.uploads++
	return nil
}
func (b *fakeBuffer) Destroy() {
	b.destroyed = true
	b.device.destroyed = append(b.device.destroyed, "buffer")
}

type fakeTexture struct {
	width, height, mips uint32
	format              device.TextureFormat
	uploaded            [][]byte
	device              *fakeDevice
	destroyed           bool
}

func (t *fakeTexture) Width() uint32                { return t.width }
func (t *fakeTexture) Height() uint32               { return t.height }
func (t *fakeTexture) Format() device.TextureFormat { return t.format }
func (t *fakeTexture) MipLevels() uint32            { return t.mips }
func (t *fakeTexture) Upload(mip uint32, data []byte) error {
	t.uploaded = append(t.uploaded, append([]byte(nil), data...))
	return nil
}
func (t *fakeTexture) Destroy() {
	t.destroyed = true
	t.device.destroyed = append(t.device.destroyed, "texture")
}

type fakeSampler struct {
	desc      device.SamplerDesc
	device    *fakeDevice
	destroyed bool
}

func (s *fakeSampler) Desc() device.SamplerDesc { return s.desc }
func (s *fakeSampler) Destroy() {
	s.destroyed = true
	s.device.destroyed = append(s.device.destroyed, "sampler")
}

type fakeShaderModule struct {
	stage     device.StageFlags
	device    *fakeDevice
	destroyed bool
}

func (m *fakeShaderModule) Stage() device.StageFlags { return m.stage }
func (m *fakeShaderModule) Destroy() {
	m.destroyed = true
	m.device.destroyed = append(m.device.destroyed, "shaderModule")
}

type fakeRootLayout struct {
	id        uint64
	desc      device.RootLayoutDesc
	device    *fakeDevice
	destroyed bool
}

func (l *fakeRootLayout) ID() uint64 { return l.id }
func (l *fakeRootLayout) Destroy() {
	l.destroyed = true
	l.device.destroyed = append(l.device.destroyed, "rootLayout")
}

type fakePipeline struct {
	desc      device.PipelineDesc
	device    *fakeDevice
	destroyed bool
}

func (p *fakePipeline) Destroy() {
	p.destroyed = true
	p.device.destroyed = append(p.device.destroyed, "pipeline")
}

type fakeRenderTarget struct {
	id            uint32
	width, height uint32
	colors        []device.TextureFormat
	depth         device.TextureFormat
	device        *fakeDevice
	destroyed     bool
}

func (t *fakeRenderTarget) ID() uint32                           { return t.id }
func (t *fakeRenderTarget) Width() uint32                        { return t.width }
func (t *fakeRenderTarget) Height() uint32                       { return t.height }
func (t *fakeRenderTarget) ColorFormats() []device.TextureFormat { return t.colors }
func (t *fakeRenderTarget) DepthFormat() device.TextureFormat    { return t.depth }
func (t *fakeRenderTarget) Destroy() {
	t.destroyed = true
	if t.device != nil {
		t.device.destroyed = append(t.device.destroyed, "renderTarget")
	}
}

// fakeRecorder records every command as a readable trace plus structured
// views of the root bindings, which is what most tests assert on.
type fakeRecorder struct {
	trace         []string
	rootConstants map[uint32]uint32
	textureTables map[uint32]uint64
	samplerTables map[uint32]uint64
	closed        bool
}

func (r *fakeRecorder) Reset() error {
	r.trace = nil
	r.rootConstants = make(map[uint32]uint32)
	r.textureTables = make(map[uint32]uint64)
	r.samplerTables = make(map[uint32]uint64)
	r.closed = false
	return nil
}

func (r *fakeRecorder) Close() error {
	r.closed = true
	return nil
}

func (r *fakeRecorder) logf(format string, args ...interface{}) {
	r.trace = append(r.trace, fmt.Sprintf(format, args...))
}

func (r *fakeRecorder) BeginPass(target device.RenderTarget, clearColor [4]float32, clearDepth float32, clearStencil uint8) {
	r.logf("beginPass target=%d", target.ID())
}

func (r *fakeRecorder) EndPass() {
	r.logf("endPass")
}

func (r *fakeRecorder) SetPipeline(p device.Pipeline) {
	r.logf("setPipeline")
}

func (r *fakeRecorder) SetRootLayout(l device.RootLayout) {
	r.logf("setRootLayout id=%d", l.ID())
}

func (r *fakeRecorder) SetViewport(vp device.Viewport) {
	r.logf("setViewport %dx%d", vp.Width, vp.Height)
}

func (r *fakeRecorder) SetDescriptorHeaps(texturePool, samplerPool device.DescriptorPool) {
	r.logf("setDescriptorHeaps")
}

func (r *fakeRecorder) SetRootConstantBuffer(slot uint32, pool device.ConstantPool, offset uint32) {
	if r.rootConstants == nil {
		r.rootConstants = make(map[uint32]uint32)
	}
	r.rootConstants[slot] = offset
	r.logf("setRootConstantBuffer slot=%d offset=%d", slot, offset)
}

func (r *fakeRecorder) WriteTextureDescriptor(pool device.DescriptorPool, cursor uint32, t device.Texture) uint64 {
	return uint64(cursor)
}

func (r *fakeRecorder) WriteSamplerDescriptor(pool device.DescriptorPool, cursor uint32, s device.Sampler) uint64 {
	return uint64(cursor)
}

func (r *fakeRecorder) SetRootTextureTable(slot uint32, table uint64) {
	if r.textureTables == nil {
		r.textureTables = make(map[uint32]uint64)
	}
	r.textureTables[slot] = table
	r.logf("setRootTextureTable slot=%d", slot)
}

func (r *fakeRecorder) SetRootSamplerTable(slot uint32, table uint64) {
	if r.samplerTables == nil {
		r.samplerTables = make(map[uint32]uint64)
	}
	r.samplerTables[slot] = table
	r.logf("setRootSamplerTable slot=%d", slot)
}

func (r *fakeRecorder) SetVertexBuffers(buffers []device.Buffer, strides []uint32) {
	r.logf("setVertexBuffers count=%d stride=%d", len(buffers), strides[0])
}

func (r *fakeRecorder) SetIndexBuffer(buffer device.Buffer, is32bit bool) {
	r.logf("setIndexBuffer is32bit=%v", is32bit)
}

func (r *fakeRecorder) Draw(vertexCount, firstVertex uint32) {
	r.logf("draw count=%d first=%d", vertexCount, firstVertex)
}

func (r *fakeRecorder) DrawIndexed(indexCount, firstIndex uint32) {
	r.logf("drawIndexed count=%d first=%d", indexCount, firstIndex)
}

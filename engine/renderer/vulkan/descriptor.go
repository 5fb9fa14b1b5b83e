package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

// descriptorPool backs one frame slot's transient descriptor sets. It is
// reset wholesale when the frame's heaps are rebound.
type descriptorPool struct {
	device   *Device
	handle   vk.DescriptorPool
	capacity uint32
	samplers bool
}

func (d *Device) CreateDescriptorPool(capacity uint32, samplers bool) (device.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: capacity},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: capacity},
	}

	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       capacity,
	}
	var handle vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.logicalDevice, &poolCreateInfo, d.allocator, &handle); res != vk.Success {
		return nil, resultToError("create descriptor pool", res)
	}
	return &descriptorPool{device: d, handle: handle, capacity: capacity, samplers: samplers}, nil
}

func (p *descriptorPool) Capacity() uint32 { return p.capacity }

func (p *descriptorPool) reset() {
	vk.ResetDescriptorPool(p.device.logicalDevice, p.handle, 0)
}

func (p *descriptorPool) Destroy() {
	vk.DestroyDescriptorPool(p.device.logicalDevice, p.handle, p.device.allocator)
}

// rootLayout is the pipeline layout plus the reflection info needed to
// rebuild descriptor sets at draw time.
type rootLayout struct {
	device    *Device
	id        uint64
	desc      device.RootLayoutDesc
	setLayout vk.DescriptorSetLayout
	pipeline  vk.PipelineLayout
}

func (d *Device) CreateRootLayout(desc device.RootLayoutDesc) (device.RootLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, 0, len(desc.UniformBuffers)+len(desc.Textures))
	for _, ub := range desc.UniformBuffers {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         ub.Binding,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAllGraphics),
		})
	}
	for _, t := range desc.Textures {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         t.Binding,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		})
	}

	setLayoutCreateInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var setLayout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.logicalDevice, &setLayoutCreateInfo, d.allocator, &setLayout); res != vk.Success {
		return nil, resultToError("create descriptor set layout", res)
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}
	var pipelineLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.logicalDevice, &pipelineLayoutCreateInfo, d.allocator, &pipelineLayout); res != vk.Success {
		vk.DestroyDescriptorSetLayout(d.logicalDevice, setLayout, d.allocator)
		return nil, resultToError("create pipeline layout", res)
	}

	core.LogDebug("root layout created with %d uniform buffers and %d textures",
		len(desc.UniformBuffers), len(desc.Textures))
	return &rootLayout{
		device:    d,
		id:        d.layoutID(),
		desc:      desc,
		setLayout: setLayout,
		pipeline:  pipelineLayout,
	}, nil
}

func (l *rootLayout) ID() uint64 { return l.id }

func (l *rootLayout) Destroy() {
	vk.DestroyPipelineLayout(l.device.logicalDevice, l.pipeline, l.device.allocator)
	vk.DestroyDescriptorSetLayout(l.device.logicalDevice, l.setLayout, l.device.allocator)
}

// sliceUint32 reinterprets SPIR-V bytes as the word stream vulkan wants.
func sliceUint32(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
	}
	return words
}

type shaderModule struct {
	device *Device
	handle vk.ShaderModule
	stage  device.StageFlags
}

func (d *Device) CreateShaderModule(stage device.StageFlags, code []byte) (device.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    sliceUint32(code),
	}
	var handle vk.ShaderModule
	if res := vk.CreateShaderModule(d.logicalDevice, &createInfo, d.allocator, &handle); res != vk.Success {
		return nil, resultToError("create shader module", res)
	}
	return &shaderModule{device: d, handle: handle, stage: stage}, nil
}

func (m *shaderModule) Stage() device.StageFlags { return m.stage }

func (m *shaderModule) Destroy() {
	vk.DestroyShaderModule(m.device.logicalDevice, m.handle, m.device.allocator)
}

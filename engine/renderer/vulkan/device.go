package vulkan

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/device"
)

var end = "\x00"
var endChar byte = '\x00'

func safeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

// Device is the production implementation of device.Device over Vulkan.
type Device struct {
	instance       vk.Instance
	allocator      *vk.AllocationCallbacks
	surface        vk.Surface
	physicalDevice vk.PhysicalDevice
	logicalDevice  vk.Device

	graphicsQueueIndex uint32
	presentQueueIndex  uint32
	graphicsQueue      vk.Queue
	presentQueue       vk.Queue

	commandPool vk.CommandPool
	memory      vk.PhysicalDeviceMemoryProperties

	swapchain *swapchain
	vsync     bool

	nextLayoutID uint64
	nextTargetID uint32
}

// NewDevice brings up the instance, picks a queue-capable GPU and creates
// the logical device plus the swapchain for the given window.
func NewDevice(window *glfw.Window, appName string, width, height uint32, validation, vsync bool) (*Device, error) {
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize the vulkan loader")
		return nil, err
	}

	d := &Device{vsync: vsync}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(appName),
		PEngineName:        safeString("Ember Engine"),
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, window.GetRequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: safeStrings(requiredExtensions),
	}
	if runtime.GOOS == "darwin" {
		createInfo.Flags |= 1
	}

	layers := []string{}
	if validation {
		layers = append(layers, "VK_LAYER_KHRONOS_validation")
		core.LogInfo("Vulkan validation layers enabled")
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = safeStrings(layers)

	if res := vk.CreateInstance(&createInfo, d.allocator, &d.instance); res != vk.Success {
		return nil, resultToError("create instance", res)
	}
	if err := vk.InitInstance(d.instance); err != nil {
		core.LogError("failed to initialize instance procedures")
		return nil, err
	}

	surfacePtr, err := window.CreateWindowSurface(d.instance, nil)
	if err != nil {
		core.LogError("failed to create the window surface")
		return nil, err
	}
	d.surface = vk.SurfaceFromPointer(surfacePtr)

	if err := d.selectPhysicalDevice(); err != nil {
		return nil, err
	}
	if err := d.createLogicalDevice(); err != nil {
		return nil, err
	}

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.graphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(d.logicalDevice, &poolCreateInfo, d.allocator, &d.commandPool); res != vk.Success {
		return nil, resultToError("create command pool", res)
	}

	d.swapchain, err = newSwapchain(d, width, height, vsync)
	if err != nil {
		return nil, err
	}

	core.LogInfo("vulkan device created")
	return d, nil
}

func (d *Device) selectPhysicalDevice() error {
	var deviceCount uint32
	if res := vk.EnumeratePhysicalDevices(d.instance, &deviceCount, nil); res != vk.Success {
		return resultToError("enumerate physical devices", res)
	}
	if deviceCount == 0 {
		return fmt.Errorf("vulkan: no GPU with vulkan support found")
	}

	physicalDevices := make([]vk.PhysicalDevice, deviceCount)
	if res := vk.EnumeratePhysicalDevices(d.instance, &deviceCount, physicalDevices); res != vk.Success {
		return resultToError("enumerate physical devices", res)
	}

	for _, candidate := range physicalDevices {
		var queueFamilyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(candidate, &queueFamilyCount, nil)
		queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(candidate, &queueFamilyCount, queueFamilies)

		graphicsIndex := -1
		presentIndex := -1
		for i := range queueFamilies {
			queueFamilies[i].Deref()
			if graphicsIndex == -1 && queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
				graphicsIndex = i
			}
			var supportsPresent vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(candidate, uint32(i), d.surface, &supportsPresent)
			if presentIndex == -1 && supportsPresent == vk.True {
				presentIndex = i
			}
		}

		if graphicsIndex >= 0 && presentIndex >= 0 {
			d.physicalDevice = candidate
			d.graphicsQueueIndex = uint32(graphicsIndex)
			d.presentQueueIndex = uint32(presentIndex)
			vk.GetPhysicalDeviceMemoryProperties(candidate, &d.memory)
			d.memory.Deref()

			var properties vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(candidate, &properties)
			properties.Deref()
			core.LogInfo("selected GPU: %s", vk.ToString(properties.DeviceName[:]))
			return nil
		}
	}
	return fmt.Errorf("vulkan: no GPU with graphics and present queues found")
}

func (d *Device) createLogicalDevice() error {
	sharedQueue := d.graphicsQueueIndex == d.presentQueueIndex
	indices := []uint32{d.graphicsQueueIndex}
	if !sharedQueue {
		indices = append(indices, d.presentQueueIndex)
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	deviceFeatures.SamplerAnisotropy = vk.True

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if runtime.GOOS == "darwin" {
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: safeStrings(extensionNames),
	}

	var logicalDevice vk.Device
	if res := vk.CreateDevice(d.physicalDevice, &deviceCreateInfo, d.allocator, &logicalDevice); res != vk.Success {
		return resultToError("create logical device", res)
	}
	d.logicalDevice = logicalDevice

	vk.GetDeviceQueue(d.logicalDevice, d.graphicsQueueIndex, 0, &d.graphicsQueue)
	vk.GetDeviceQueue(d.logicalDevice, d.presentQueueIndex, 0, &d.presentQueue)
	return nil
}

func (d *Device) findMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		d.memory.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(d.memory.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("unable to find a suitable memory type")
	return -1
}

func (d *Device) layoutID() uint64 {
	d.nextLayoutID++
	return d.nextLayoutID
}

func (d *Device) targetID() uint32 {
	d.nextTargetID++
	return d.nextTargetID
}

func (d *Device) WaitIdle() error {
	return checkResult("wait idle", vk.DeviceWaitIdle(d.logicalDevice))
}

func (d *Device) Destroy() {
	if d.logicalDevice != nil {
		vk.DeviceWaitIdle(d.logicalDevice)
	}
	if d.swapchain != nil {
		d.swapchain.destroy(d)
		d.swapchain = nil
	}
	if d.commandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(d.logicalDevice, d.commandPool, d.allocator)
	}
	if d.logicalDevice != nil {
		vk.DestroyDevice(d.logicalDevice, d.allocator)
		d.logicalDevice = nil
	}
	if d.surface != vk.NullSurface {
		vk.DestroySurface(d.instance, d.surface, d.allocator)
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, d.allocator)
		d.instance = nil
	}
}

// compile-time interface check
var _ device.Device = (*Device)(nil)

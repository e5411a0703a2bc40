package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// gpu is the selected physical device, its logical device and the one
// graphics queue everything is submitted to.
type gpu struct {
	instance vk.Instance
	physical vk.PhysicalDevice
	device   vk.Device
	queue    vk.Queue
	family   uint32

	name       string
	deviceType vk.PhysicalDeviceType
	limits     vk.PhysicalDeviceLimits
	memory     vk.PhysicalDeviceMemoryProperties
	wireframe  bool // fillModeNonSolid
}

// pickPhysicalDevice takes the first device exposing a graphics queue
// family.
func pickPhysicalDevice(instance vk.Instance) (*gpu, error) {
	var n uint32
	if err := check(vk.EnumeratePhysicalDevices(instance, &n, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("no Vulkan-capable devices")
	}
	devices := make([]vk.PhysicalDevice, n)
	vk.EnumeratePhysicalDevices(instance, &n, devices)

	for _, pd := range devices {
		family, ok := graphicsFamily(pd)
		if !ok {
			continue
		}
		g := &gpu{instance: instance, physical: pd, family: family}

		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		props.Limits.Deref()
		g.name = gostr(props.DeviceName[:])
		g.deviceType = props.DeviceType
		g.limits = props.Limits

		vk.GetPhysicalDeviceMemoryProperties(pd, &g.memory)
		g.memory.Deref()
		return g, nil
	}
	return nil, fmt.Errorf("no device with a graphics queue")
}

func graphicsFamily(pd vk.PhysicalDevice) (uint32, bool) {
	var n uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &n, nil)
	families := make([]vk.QueueFamilyProperties, n)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &n, families)
	for i, f := range families {
		f.Deref()
		if f.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

// createLogicalDevice opens one graphics queue. Independent blending is
// required so blended draws can mask the id attachment; non-solid fill is
// used for wireframe when present.
func (g *gpu) createLogicalDevice() error {
	var supported vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(g.physical, &supported)
	supported.Deref()
	if supported.IndependentBlend != vk.True {
		return fmt.Errorf("%s lacks independentBlend", g.name)
	}

	enabled := vk.PhysicalDeviceFeatures{IndependentBlend: vk.True}
	if supported.FillModeNonSolid == vk.True {
		enabled.FillModeNonSolid = vk.True
		g.wireframe = true
	}

	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: g.family,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}
	info := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueInfo},
		PEnabledFeatures:     []vk.PhysicalDeviceFeatures{enabled},
	}

	var device vk.Device
	if err := check(vk.CreateDevice(g.physical, &info, nil, &device), "vkCreateDevice"); err != nil {
		return err
	}
	g.device = device

	var queue vk.Queue
	vk.GetDeviceQueue(device, g.family, 0, &queue)
	g.queue = queue
	return nil
}

func (g *gpu) deviceTypeName() string {
	switch g.deviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "other"
}

func (g *gpu) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlagBits) (uint32, error) {
	want := vk.MemoryPropertyFlags(props)
	for i := uint32(0); i < g.memory.MemoryTypeCount; i++ {
		t := g.memory.MemoryTypes[i]
		t.Deref()
		if typeBits&(1<<i) != 0 && t.PropertyFlags&want == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type with properties 0x%x", props)
}

func (g *gpu) waitIdle() {
	if g.device != nil {
		vk.DeviceWaitIdle(g.device)
	}
}

func (g *gpu) destroy() {
	if g.device != nil {
		vk.DestroyDevice(g.device, nil)
		g.device = nil
	}
	if g.instance != nil {
		vk.DestroyInstance(g.instance, nil)
		g.instance = nil
	}
}

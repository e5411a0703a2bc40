package vulkan

import (
	vk "github.com/goki/vulkan"

	"viewport-engine/core"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

type instanceConfig struct {
	appName          string
	engineName       string
	enableValidation bool
}

func defaultInstanceConfig() instanceConfig {
	return instanceConfig{
		appName:    "viewport",
		engineName: "viewport-engine",
	}
}

// newInstance creates an instance with no window-system extensions. The
// validation layer is enabled only when asked for and installed.
func newInstance(cfg instanceConfig) (vk.Instance, error) {
	if err := loadVulkan(); err != nil {
		return nil, err
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   cstr(cfg.appName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        cstr(cfg.engineName),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}
	info := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	if cfg.enableValidation {
		if hasValidationLayer() {
			info.EnabledLayerCount = 1
			info.PpEnabledLayerNames = []string{cstr(validationLayer)}
		} else {
			core.Logger().Warn("validation requested but layer not installed", "layer", validationLayer)
		}
	}

	var instance vk.Instance
	if err := check(vk.CreateInstance(&info, nil, &instance), "vkCreateInstance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}
	return instance, nil
}

func hasValidationLayer() bool {
	var n uint32
	if vk.EnumerateInstanceLayerProperties(&n, nil) != vk.Success || n == 0 {
		return false
	}
	layers := make([]vk.LayerProperties, n)
	vk.EnumerateInstanceLayerProperties(&n, layers)
	for _, l := range layers {
		l.Deref()
		if gostr(l.LayerName[:]) == validationLayer {
			return true
		}
	}
	return false
}

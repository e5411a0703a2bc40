package rhi

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory creates a device for one backend.
type Factory func(cfg DeviceConfig) (Device, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register makes a backend available by name. Backend packages call it
// from init, the way database/sql drivers do:
//
//	import _ "viewport-engine/vulkan"
//
// Register panics on a nil factory or a duplicate name.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("rhi: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("rhi: Register called twice for " + name)
	}
	factories[name] = factory
}

// Unregister removes a backend. Tests use it to restore the registry.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Open creates a device for the named backend. Aliases accepted by
// ParseBackend are resolved first.
func Open(name string, cfg DeviceConfig) (Device, error) {
	canonical := ParseBackend(name)

	registryMu.RLock()
	factory, ok := factories[canonical]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w %q (forgotten import?)", ErrUnknownBackend, name)
	}
	dev, err := factory(cfg.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s device: %w", canonical, err)
	}
	return dev, nil
}

// Backends returns the registered names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[ParseBackend(name)]
	return ok
}

// Canonical backend names.
const (
	Software = "software"
	OpenGL   = "opengl"
	Vulkan   = "vulkan"
)

// ParseBackend maps the names harnesses accept (including the
// VIEWPORT_BACKEND values cpu/opengl/vulkan) onto registry names.
// Unknown names are returned lower-cased and unchanged.
func ParseBackend(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "cpu", "sw", "soft", "software":
		return Software
	case "gl", "opengl", "ogl":
		return OpenGL
	case "vk", "vulkan":
		return Vulkan
	}
	return s
}

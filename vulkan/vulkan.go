// Package vulkan is the Vulkan backend. It renders offscreen into a
// render pass with sRGB colour, R32_UINT id and D32 depth attachments and
// copies all three to a host-visible buffer at the end of every frame.
//
// Import it for its side effect:
//
//	import _ "viewport-engine/vulkan"
package vulkan

import (
	"bytes"
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
)

var (
	loaderOnce sync.Once
	loaderErr  error
)

// loadVulkan resolves the loader library once per process.
func loadVulkan() error {
	loaderOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			loaderErr = fmt.Errorf("failed to load Vulkan library: %w", err)
			return
		}
		if err := vk.Init(); err != nil {
			loaderErr = fmt.Errorf("failed to initialize Vulkan loader: %w", err)
		}
	})
	return loaderErr
}

// check turns a non-success result into an error naming the call.
func check(res vk.Result, call string) error {
	if res == vk.Success {
		return nil
	}
	return fmt.Errorf("%s failed: %d", call, res)
}

// cstr terminates a string for the C side.
func cstr(s string) string { return s + "\x00" }

// gostr reads a fixed-size, NUL-terminated name.
func gostr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// undo collects cleanup steps while a multi-step construction runs and
// unwinds them in reverse if it fails.
type undo []func()

func (u *undo) push(f func()) { *u = append(*u, f) }

func (u undo) run() {
	for i := len(u) - 1; i >= 0; i-- {
		u[i]()
	}
}

package opengl

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	// glfw must stay on the thread that initialized it.
	runtime.LockOSThread()
}

var (
	glfwMu   sync.Mutex
	glfwRefs int
)

// context is a hidden 1x1 window that owns a 4.1 core context. All
// rendering goes to framebuffer objects; the window is never shown.
type context struct {
	window *glfw.Window
}

func newContext() (*context, error) {
	glfwMu.Lock()
	defer glfwMu.Unlock()

	if glfwRefs == 0 {
		if err := glfw.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
		}
	}

	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	win, err := glfw.CreateWindow(1, 1, "viewport", nil, nil)
	if err != nil {
		if glfwRefs == 0 {
			glfw.Terminate()
		}
		return nil, fmt.Errorf("failed to create hidden window: %w", err)
	}
	win.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		win.Destroy()
		if glfwRefs == 0 {
			glfw.Terminate()
		}
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	glfwRefs++
	return &context{window: win}, nil
}

// makeCurrent rebinds the context; several devices may share a thread.
func (c *context) makeCurrent() {
	if glfw.GetCurrentContext() != c.window {
		c.window.MakeContextCurrent()
	}
}

func (c *context) destroy() {
	glfwMu.Lock()
	defer glfwMu.Unlock()

	if c.window == nil {
		return
	}
	glfw.DetachCurrentContext()
	c.window.Destroy()
	c.window = nil
	glfwRefs--
	if glfwRefs == 0 {
		glfw.Terminate()
	}
}

// Mesa and ANGLE CPU rasterizers report themselves in GL_RENDERER.
var softwareRenderers = []string{"llvmpipe", "softpipe", "swrast", "swiftshader"}

func softwareRenderer(renderer string) bool {
	r := strings.ToLower(renderer)
	for _, name := range softwareRenderers {
		if strings.Contains(r, name) {
			return true
		}
	}
	return false
}

func glString(name uint32) string {
	if p := gl.GetString(name); p != nil {
		return gl.GoStr(p)
	}
	return ""
}

// Package rhi is the rendering hardware interface: the contract every
// backend (software, OpenGL, Vulkan) implements, and the registry the
// viewport opens backends through.
//
// All backends must produce the same logical result for the same frame:
// gamma-correct RGBA8 colour, a uint32 object ID per pixel and a
// normalized depth per pixel, readable on the host once EndFrame returns.
package rhi

import (
	"errors"

	"viewport-engine/core"
	"viewport-engine/math"
)

// Bounded arenas shared by every backend.
const (
	MaxLights            = 8
	PipelineKeyBits      = 6
	PipelineCacheSize    = 1 << PipelineKeyBits
	StagingBufferSize    = 4 << 20
	DefaultDrawsPerFrame = 4096

	// LineDepthBias pulls line and wireframe fragments toward the camera,
	// in clip-space z per unit w, so overlays drawn over their surface win
	// the depth test on every backend.
	LineDepthBias = 2e-4
)

var (
	ErrUnknownBackend = errors.New("rhi: unknown backend")
	ErrInvalidSize    = errors.New("rhi: invalid framebuffer size")
	ErrInvalidHandle  = errors.New("rhi: invalid handle")
	ErrBudgetExceeded = errors.New("rhi: per-frame budget exceeded")
	ErrDeviceLost     = errors.New("rhi: device lost")
	ErrNotInFrame     = errors.New("rhi: no frame in progress")
)

// Handles are owned by the device that created them. Zero is null.
type (
	Buffer      uint32
	Texture     uint32
	Framebuffer uint32
)

type BufferKind uint8

const (
	VertexBuffer BufferKind = iota
	IndexBuffer
)

type TextureFilter uint8

const (
	FilterNearest TextureFilter = iota
	FilterLinear
)

// TextureDesc describes an RGBA8 sRGB texture.
type TextureDesc struct {
	Width, Height int
	Filter        TextureFilter
}

type BlendMode uint8

const (
	BlendOpaque BlendMode = iota
	BlendAlpha
	BlendAdditive
)

func (b BlendMode) String() string {
	switch b {
	case BlendAlpha:
		return "alpha"
	case BlendAdditive:
		return "additive"
	default:
		return "opaque"
	}
}

type Topology uint8

const (
	Triangles Topology = iota
	Lines
)

type ShadingMode uint8

const (
	ShadeLit ShadingMode = iota
	ShadeUnlit
	ShadeNormals
)

// PipelineState is the fixed-function state a draw needs.
type PipelineState struct {
	Wireframe    bool
	DepthTest    bool
	CullBack     bool
	Blend        BlendMode
	CustomStride bool
}

// DefaultState is depth-tested, back-face culled, opaque.
func DefaultState() PipelineState {
	return PipelineState{DepthTest: true, CullBack: true}
}

// DepthWrite is derived: blended geometry tests depth but never writes it.
func (s PipelineState) DepthWrite() bool {
	return s.DepthTest && s.Blend == BlendOpaque
}

// Key packs the state into its 6-bit signature:
// bit0 wireframe, bit1 depth test, bit2 cull, bits3-4 blend, bit5 custom stride.
func (s PipelineState) Key() uint8 {
	var k uint8
	if s.Wireframe {
		k |= 1 << 0
	}
	if s.DepthTest {
		k |= 1 << 1
	}
	if s.CullBack {
		k |= 1 << 2
	}
	k |= uint8(s.Blend&0x3) << 3
	if s.CustomStride {
		k |= 1 << 5
	}
	return k
}

// StateFromKey is the inverse of Key.
func StateFromKey(k uint8) PipelineState {
	return PipelineState{
		Wireframe:    k&(1<<0) != 0,
		DepthTest:    k&(1<<1) != 0,
		CullBack:     k&(1<<2) != 0,
		Blend:        BlendMode((k >> 3) & 0x3),
		CustomStride: k&(1<<5) != 0,
	}
}

type Material struct {
	BaseColor core.Color
	Opacity   float32
	Texture   Texture
}

type LightType uint8

const (
	LightDirectional LightType = iota
	LightPoint
	LightSpot
)

// LightData is one active light as the shaders see it. Colour is linear.
type LightData struct {
	Type      LightType
	Position  math.Vec3
	Direction math.Vec3
	Color     core.Color
	Intensity float32
	Range     float32
	InnerCos  float32
	OuterCos  float32
}

// FrameParams are the per-frame uniforms shared by every draw.
type FrameParams struct {
	View      math.Mat4
	Proj      math.Mat4
	ViewProj  math.Mat4
	CameraPos math.Vec3
	Ambient   core.Color
	Lights    []LightData
	Near, Far float32
}

type ClearValues struct {
	Color core.Color
	Depth float32
	ID    uint32
}

// DrawCall is the single draw shape every backend accepts.
type DrawCall struct {
	VertexBuffer Buffer
	IndexBuffer  Buffer
	IndexCount   int
	VertexCount  int
	// Format is nil for the standard 48-byte layout.
	Format   *core.VertexFormat
	Topology Topology

	Model    math.Mat4
	ObjectID uint32
	Material Material
	State    PipelineState
	Shading  ShadingMode
}

// Caps reports backend limits.
type Caps struct {
	MaxDrawsPerFrame int
	UniformAlignment int
	MaxTextureSize   int
	DepthZeroToOne   bool

	// Renderer names the driver's device, empty for the software backend.
	Renderer string
	// Emulated is set when a GPU API runs on a CPU implementation such as
	// llvmpipe, lavapipe or SwiftShader.
	Emulated bool
}

// DeviceConfig carries the limits a viewport asks for. Zero fields take
// the package defaults; larger values are clamped down.
type DeviceConfig struct {
	DrawsPerFrame int
	PipelineCache int
	StagingSize   int
	Validation    bool
}

func (c DeviceConfig) Normalize() DeviceConfig {
	if c.DrawsPerFrame <= 0 || c.DrawsPerFrame > DefaultDrawsPerFrame {
		c.DrawsPerFrame = DefaultDrawsPerFrame
	}
	if c.PipelineCache <= 0 || c.PipelineCache > PipelineCacheSize {
		c.PipelineCache = PipelineCacheSize
	}
	if c.StagingSize <= 0 || c.StagingSize > StagingBufferSize {
		c.StagingSize = StagingBufferSize
	}
	return c
}

// Device is the backend contract. Methods are called from a single
// goroutine; implementations perform no internal locking.
type Device interface {
	Name() string
	Caps() Caps

	CreateBuffer(kind BufferKind, data []byte) (Buffer, error)
	UpdateBuffer(b Buffer, data []byte) error
	DestroyBuffer(b Buffer)

	CreateTexture(desc TextureDesc, pixels []byte) (Texture, error)
	DestroyTexture(t Texture)

	CreateFramebuffer(width, height int) (Framebuffer, error)
	// ResizeFramebuffer tears the attachments down and recreates them.
	ResizeFramebuffer(fb Framebuffer, width, height int) error
	DestroyFramebuffer(fb Framebuffer)

	BeginFrame(fb Framebuffer, clear ClearValues, frame FrameParams) error
	Draw(call DrawCall)
	DrawInstanced(call DrawCall, instances []math.Mat4)
	// EndFrame finishes all GPU work and refreshes the host-side copies of
	// the colour, ID and depth attachments.
	EndFrame() error

	// ReadColor returns RGBA8 sRGB rows, top row first. The slice is owned
	// by the device and valid until the next frame on fb.
	ReadColor(fb Framebuffer) (pixels []byte, width, height int)
	ReadID(fb Framebuffer, x, y int) (uint32, bool)
	ReadDepth(fb Framebuffer, x, y int) (float32, bool)
	// ReadDepthBuffer returns the whole normalized depth attachment.
	ReadDepthBuffer(fb Framebuffer) []float32

	Destroy()
}

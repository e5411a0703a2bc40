// Package viewport is the frame pipeline: it owns a scene, a camera and
// one RHI device, renders the scene through a fixed sequence of stages and
// answers picking and raycast queries against the last frame.
//
// A Viewport is used from one goroutine. Every method is safe to call on a
// nil *Viewport and then does nothing and returns zero values, so a failed
// New can be carried around without checks.
package viewport

import (
	"log/slog"
	stdmath "math"
	"time"

	"github.com/google/uuid"

	"viewport-engine/config"
	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/postfx"
	"viewport-engine/rhi"
	_ "viewport-engine/rhi/software"
	"viewport-engine/scene"
	"viewport-engine/spatial"
)

type ShadingMode = rhi.ShadingMode

type RenderMode uint8

const (
	RenderSolid RenderMode = iota
	RenderWireframe
	RenderSolidWireframe
)

// Overlays selects the built-in overlay passes.
type Overlays struct {
	Wireframe bool
	Normals   bool
	Bounds    bool
	Selection bool
	Grid      bool
}

// Settings are read at the start of every Render.
type Settings struct {
	ClearColor     core.Color
	Shading        ShadingMode
	Mode           RenderMode
	Overlays       Overlays
	FrustumCulling bool
	Post           postfx.Settings

	NormalLength float32
	GridSize     float32
	GridDivs     int
}

func DefaultSettings() Settings {
	return Settings{
		ClearColor:     core.Color{R: 0.1, G: 0.1, B: 0.12, A: 1},
		FrustumCulling: true,
		Overlays:       Overlays{Selection: true},
		Post:           postfx.Default(),
		NormalLength:   0.2,
		GridSize:       20,
		GridDivs:       20,
	}
}

// Stats describe the most recent Render only.
type Stats struct {
	Total     time.Duration
	Clear     time.Duration
	Transform time.Duration
	Rasterize time.Duration

	Triangles     int
	Pixels        int
	DrawCalls     int
	VisibleMeshes int
	CulledMeshes  int
	SkippedDraws  int
}

type options struct {
	log      *slog.Logger
	device   rhi.DeviceConfig
	cfg      *config.Config
	maxLight int
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithDeviceConfig lowers the backend's per-frame limits.
func WithDeviceConfig(c rhi.DeviceConfig) Option {
	return func(o *options) { o.device = c }
}

// WithConfig applies clear colour, ambient, camera, culling, overlay,
// post-processing and limit settings from a loaded configuration.
func WithConfig(c config.Config) Option {
	return func(o *options) {
		o.cfg = &c
		o.maxLight = c.Limits.MaxLights
		o.device = rhi.DeviceConfig{
			DrawsPerFrame: c.Limits.DrawsPerFrame,
			PipelineCache: c.Limits.PipelineCache,
			StagingSize:   c.Limits.StagingSizeBytes,
		}
	}
}

type Viewport struct {
	id      uuid.UUID
	backend string
	width   int
	height  int
	log     *slog.Logger

	device rhi.Device
	caps   rhi.Caps
	fb     rhi.Framebuffer

	Scene    *scene.Scene
	Camera   *scene.OrbitCamera
	Settings Settings

	gpu      []gpuMesh
	textures map[rhi.Texture]struct{}
	overlays overlaySlots
	lines    lineBatch
	gridKey  gridKey
	gridGeom scene.Geometry

	selected map[uint32]struct{}

	hooks      [stageCount][]hookEntry
	nextHook   HookID
	preFrame   func(*Viewport)
	postFrame  func(*Viewport)
	subsystems [phaseCount][]Subsystem

	stats    Stats
	frame    uint64
	rendered bool
	lastTick time.Time
	draws    int
	warned   bool

	// scratch reused between frames
	lightData   []rhi.LightData
	opaque      []drawItem
	transparent []drawItem
	upload      []byte
	color       []byte
	views       []spatial.MeshView
}

// New opens backend and creates a width×height framebuffer. It returns
// nil and logs an error when the size is invalid, the backend is unknown
// or the device cannot be created.
func New(width, height int, backend string, opts ...Option) *Viewport {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = core.Logger()
	}
	name := rhi.ParseBackend(backend)
	id := uuid.New()
	log := o.log.With("viewport", id.String(), "backend", name)

	if width <= 0 || height <= 0 {
		log.Error("failed to create viewport", "width", width, "height", height, "err", rhi.ErrInvalidSize)
		return nil
	}
	dev, err := rhi.Open(name, o.device)
	if err != nil {
		log.Error("failed to create viewport", "err", err)
		return nil
	}
	fb, err := dev.CreateFramebuffer(width, height)
	if err != nil {
		dev.Destroy()
		log.Error("failed to create viewport framebuffer", "width", width, "height", height, "err", err)
		return nil
	}

	v := &Viewport{
		id:       id,
		backend:  name,
		width:    width,
		height:   height,
		log:      log,
		device:   dev,
		caps:     dev.Caps(),
		fb:       fb,
		Scene:    scene.New(),
		Settings: DefaultSettings(),
		textures: make(map[rhi.Texture]struct{}),
		selected: make(map[uint32]struct{}),
	}
	v.Scene.SetLogger(log)
	v.Camera = scene.NewOrbitCamera(math.Vec3{}, 6, 0.6, 0.4, stdmath.Pi/4, float32(width)/float32(height))
	if o.cfg != nil {
		v.applyConfig(*o.cfg)
	}
	if o.maxLight > 0 {
		v.Scene.Lights.SetLimit(o.maxLight)
	}
	log.Info("viewport created", "width", width, "height", height)
	return v
}

func (v *Viewport) applyConfig(c config.Config) {
	v.Settings.ClearColor = core.Color{R: c.ClearColor[0], G: c.ClearColor[1], B: c.ClearColor[2], A: c.ClearColor[3]}
	v.Settings.FrustumCulling = c.Culling
	v.Settings.Overlays = Overlays(c.Overlay)
	v.Settings.Post = postfx.FromConfig(c.Post)
	v.Scene.Ambient = core.Color{R: c.Ambient[0], G: c.Ambient[1], B: c.Ambient[2], A: 1}

	cam := c.Camera
	target := math.Vec3FromArray(cam.Target)
	v.Camera = scene.NewOrbitCamera(target, cam.Distance, cam.Yaw, cam.Pitch, cam.FOV, float32(v.width)/float32(v.height))
	v.Camera.Near, v.Camera.Far = cam.Near, cam.Far
	v.Camera.SetSmoothing(cam.Smooth, 0, 0)
}

func (v *Viewport) ID() uuid.UUID {
	if v == nil {
		return uuid.Nil
	}
	return v.id
}

// Backend is the registry name of the device in use.
func (v *Viewport) Backend() string {
	if v == nil {
		return ""
	}
	return v.backend
}

func (v *Viewport) Size() (width, height int) {
	if v == nil {
		return 0, 0
	}
	return v.width, v.height
}

func (v *Viewport) Stats() Stats {
	if v == nil {
		return Stats{}
	}
	return v.stats
}

func (v *Viewport) Logger() *slog.Logger {
	if v == nil {
		return core.Logger()
	}
	return v.log
}

func (v *Viewport) alive() bool { return v != nil && v.device != nil }

// Resize recreates the framebuffer. Readbacks and snapshots taken before
// the call are invalid afterwards. Invalid sizes are logged and ignored.
func (v *Viewport) Resize(width, height int) {
	if !v.alive() {
		return
	}
	if width <= 0 || height <= 0 {
		v.log.Error("failed to resize viewport", "width", width, "height", height, "err", rhi.ErrInvalidSize)
		return
	}
	if err := v.device.ResizeFramebuffer(v.fb, width, height); err != nil {
		v.log.Error("failed to resize viewport", "width", width, "height", height, "err", err)
		return
	}
	v.width, v.height = width, height
	v.Camera.SetAspect(width, height)
	v.rendered = false
	v.color = v.color[:0]
	v.frame++
	v.log.Info("viewport resized", "width", width, "height", height)
}

// Destroy releases subsystems, GPU buffers, textures, the framebuffer and
// the device. The viewport is inert afterwards.
func (v *Viewport) Destroy() {
	if !v.alive() {
		return
	}
	for p := range v.subsystems {
		for _, s := range v.subsystems[p] {
			s.Destroy()
		}
		v.subsystems[p] = nil
	}
	for i := range v.gpu {
		v.gpu[i].release(v.device)
	}
	v.gpu = nil
	v.overlays.release(v.device)
	v.lines.release(v.device)
	for t := range v.textures {
		v.device.DestroyTexture(t)
	}
	clear(v.textures)
	v.device.DestroyFramebuffer(v.fb)
	v.device.Destroy()
	v.device = nil
	v.Scene.Clear()
	v.rendered = false
	v.frame++
	v.log.Info("viewport destroyed")
}

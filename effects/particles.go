// Package effects holds CPU particle emitters that render through a
// viewport as ordinary blended meshes.
package effects

import (
	"log/slog"
	stdmath "math"
	"math/rand/v2"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
	"viewport-engine/scene"
	"viewport-engine/viewport"
)

// Particle is one live particle.
type Particle struct {
	Position math.Vec3
	Velocity math.Vec3
	Life     float32 // seconds left
	MaxLife  float32
	Size     float32 // billboard half-size
	Color    core.Color
}

// Emitter spawns and integrates particles and, when attached to a
// viewport, rebuilds one camera-facing quad per particle each frame.
type Emitter struct {
	Position  math.Vec3
	Direction math.Vec3 // unit
	Spread    float32   // cone half-angle, radians

	Rate int // particles per second

	MinLife, MaxLife   float32
	MinSpeed, MaxSpeed float32
	MinSize, MaxSize   float32

	StartColor core.Color
	EndColor   core.Color
	Gravity    math.Vec3
	Blend      rhi.BlendMode

	// Active stops spawning when false; live particles age out.
	Active bool

	particles []Particle
	pool      int
	accum     float32
	rng       *rand.Rand

	view     *viewport.Viewport
	mesh     scene.MeshHandle
	vertices []core.Vertex
	indices  []uint32
	enabled  bool
	log      *slog.Logger
}

func newEmitter(maxParticles int, seed uint64) *Emitter {
	return &Emitter{
		Direction: math.Vec3{Y: 1},
		Active:    true,
		particles: make([]Particle, 0, max(maxParticles, 0)),
		pool:      max(maxParticles, 0),
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		enabled:   true,
		log:       core.Logger(),
	}
}

// NewFireEmitter returns a fast additive emitter. The same seed always
// produces the same particles.
func NewFireEmitter(maxParticles int, seed uint64) *Emitter {
	e := newEmitter(maxParticles, seed)
	e.Spread = 0.4
	e.Rate = 80
	e.MinLife, e.MaxLife = 0.6, 1.8
	e.MinSpeed, e.MaxSpeed = 2, 5
	e.MinSize, e.MaxSize = 0.06, 0.22
	e.StartColor = core.Color{R: 1, G: 0.7, B: 0.15, A: 1}
	e.EndColor = core.Color{R: 0.8, G: 0.05}
	e.Gravity = math.Vec3{Y: 0.3}
	e.Blend = rhi.BlendAdditive
	return e
}

// NewSmokeEmitter returns a slow alpha-blended emitter.
func NewSmokeEmitter(maxParticles int, seed uint64) *Emitter {
	e := newEmitter(maxParticles, seed)
	e.Spread = 0.5
	e.Rate = 20
	e.MinLife, e.MaxLife = 2, 4
	e.MinSpeed, e.MaxSpeed = 0.5, 1.5
	e.MinSize, e.MaxSize = 0.15, 0.5
	e.StartColor = core.Color{R: 0.3, G: 0.3, B: 0.3, A: 0.4}
	e.EndColor = core.Color{R: 0.6, G: 0.6, B: 0.6}
	e.Gravity = math.Vec3{Y: 0.1}
	e.Blend = rhi.BlendAlpha
	return e
}

// Attach creates the emitter's mesh in v and registers the emitter as a
// simulation subsystem, so every Render steps and redraws it. objectID
// makes the particles pickable; 0 leaves them out of picking.
func (e *Emitter) Attach(v *viewport.Viewport, objectID uint32) bool {
	if v == nil || e.view != nil {
		return false
	}
	h := v.AddMesh(nil, nil, objectID)
	if h.IsNil() {
		return false
	}
	m := v.Mesh(h)
	m.Blend = e.Blend
	m.DoubleSided = true
	m.Material.Unlit = true
	if !v.Register(viewport.PhaseSimulate, e) {
		v.RemoveMesh(h)
		return false
	}
	e.view, e.mesh = v, h
	e.log = v.Logger().With("component", "emitter", "mesh", h.String())
	return true
}

// Mesh is the handle of the billboard mesh, zero when detached.
func (e *Emitter) Mesh() scene.MeshHandle { return e.mesh }

func (e *Emitter) Enabled() bool { return e.enabled }

func (e *Emitter) SetEnabled(on bool) { e.enabled = on }

// Update steps the simulation and uploads the billboards for v's camera.
func (e *Emitter) Update(v *viewport.Viewport, dt float64) {
	e.Step(float32(dt))
	if v.Camera == nil {
		return
	}
	e.build(v.Camera.Right(), v.Camera.Forward())
	if m := v.Mesh(e.mesh); m != nil {
		m.Blend = e.Blend
	}
	if !v.UpdateGeometry(e.mesh, e.vertices, e.indices) {
		e.log.Warn("particle upload failed", "particles", len(e.particles))
	}
}

// Destroy removes the billboard mesh. The viewport calls it when it is
// destroyed.
func (e *Emitter) Destroy() {
	if e.view != nil {
		e.view.RemoveMesh(e.mesh)
	}
	e.view, e.mesh = nil, scene.MeshHandle{}
	e.particles = e.particles[:0]
}

// Detach unregisters and destroys the emitter's mesh, leaving the
// viewport running.
func (e *Emitter) Detach() {
	if e.view == nil {
		return
	}
	e.view.Unregister(e)
	e.Destroy()
}

// Step advances the simulation by dt seconds without touching any mesh.
func (e *Emitter) Step(dt float32) {
	if dt <= 0 {
		return
	}
	if e.Active {
		e.accum += float32(e.Rate) * dt
		for e.accum >= 1 && len(e.particles) < e.pool {
			e.spawn()
			e.accum--
		}
		if len(e.particles) == e.pool {
			e.accum = 0
		}
	}

	live := e.particles[:0]
	for _, p := range e.particles {
		p.Life -= dt
		if p.Life <= 0 {
			continue
		}
		p.Velocity = p.Velocity.Add(e.Gravity.Mul(dt))
		p.Position = p.Position.Add(p.Velocity.Mul(dt))

		age := 1 - p.Life/p.MaxLife
		p.Color = e.StartColor.Lerp(e.EndColor, age)
		p.Size = e.MinSize + (e.MaxSize-e.MinSize)*(1-age)
		live = append(live, p)
	}
	clear(e.particles[len(live):])
	e.particles = live
}

func (e *Emitter) Count() int { return len(e.particles) }

// Particles is a read-only view of the live particles, valid until the
// next Step.
func (e *Emitter) Particles() []Particle { return e.particles }

func (e *Emitter) spawn() {
	life := e.MinLife + e.rng.Float32()*(e.MaxLife-e.MinLife)
	speed := e.MinSpeed + e.rng.Float32()*(e.MaxSpeed-e.MinSpeed)
	e.particles = append(e.particles, Particle{
		Position: e.Position,
		Velocity: coneSample(e.Direction, e.Spread, e.rng).Mul(speed),
		Life:     life,
		MaxLife:  life,
		Size:     e.MaxSize,
		Color:    e.StartColor,
	})
}

var quadCorners = [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

var quadUVs = [4]math.Vec2{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}

// build writes four vertices and six indices per particle, facing the
// camera described by right and forward.
func (e *Emitter) build(right, forward math.Vec3) {
	up := right.Cross(forward).Normalize()
	normal := forward.Mul(-1)
	e.vertices = e.vertices[:0]
	e.indices = e.indices[:0]
	for i := range e.particles {
		p := &e.particles[i]
		base := uint32(len(e.vertices))
		for c, k := range quadCorners {
			off := right.Mul(k[0] * p.Size).Add(up.Mul(k[1] * p.Size))
			e.vertices = append(e.vertices, core.Vertex{
				Position: p.Position.Add(off),
				Normal:   normal,
				Color:    p.Color,
				UV:       quadUVs[c],
			})
		}
		e.indices = append(e.indices, base, base+1, base+2, base, base+2, base+3)
	}
}

// coneSample returns a unit vector uniformly distributed over the
// spherical cap of half-angle spread around axis.
func coneSample(axis math.Vec3, spread float32, rng *rand.Rand) math.Vec3 {
	phi := rng.Float64() * 2 * stdmath.Pi
	cosMin := stdmath.Cos(float64(spread))
	cosTheta := cosMin + rng.Float64()*(1-cosMin)
	sinTheta := stdmath.Sqrt(1 - cosTheta*cosTheta)

	ref := math.Vec3{Y: 1}
	if stdmath.Abs(float64(axis.Dot(ref))) > 0.99 {
		ref = math.Vec3{X: 1}
	}
	u := axis.Cross(ref).Normalize()
	w := u.Cross(axis).Normalize()

	return axis.Mul(float32(cosTheta)).
		Add(u.Mul(float32(sinTheta * stdmath.Cos(phi)))).
		Add(w.Mul(float32(sinTheta * stdmath.Sin(phi)))).
		Normalize()
}

package scene

import (
	stdmath "math"

	"github.com/charmbracelet/harmonica"

	"viewport-engine/math"
	"viewport-engine/spatial"
)

// Camera is a perspective look-at camera.
type Camera struct {
	Position math.Vec3
	Target   math.Vec3
	Up       math.Vec3
	FOV      float32 // vertical, radians
	Aspect   float32
	Near     float32
	Far      float32
}

func NewCamera(fov, aspect, near, far float32) Camera {
	return Camera{
		Position: math.Vec3{Z: 5},
		Up:       math.Vec3Up,
		FOV:      fov,
		Aspect:   aspect,
		Near:     near,
		Far:      far,
	}
}

// SetAspect ignores a zero height so a minimised window keeps the last
// aspect ratio.
func (c *Camera) SetAspect(width, height int) {
	if height > 0 {
		c.Aspect = float32(width) / float32(height)
	}
}

func (c *Camera) View() math.Mat4 {
	return math.Mat4LookAt(c.Position, c.Target, c.Up)
}

func (c *Camera) Projection() math.Mat4 {
	return math.Mat4Perspective(c.FOV, c.Aspect, c.Near, c.Far)
}

func (c *Camera) ViewProjection() math.Mat4 {
	return c.Projection().Mul(c.View())
}

func (c *Camera) Forward() math.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}

func (c *Camera) Right() math.Vec3 {
	return c.Forward().Cross(c.Up).Normalize()
}

// Orbit limits.
const (
	MaxPitch    = 1.5
	MinDistance = 0.1
)

type orbitState struct {
	yaw, pitch, distance float32
	target               math.Vec3
}

func (s *orbitState) clamp() {
	s.pitch = math.Clamp(s.pitch, -MaxPitch, MaxPitch)
	if s.distance < MinDistance {
		s.distance = MinDistance
	}
}

// OrbitCamera circles a target. Input moves the goal; Update moves the
// camera toward it, immediately or through critically damped springs when
// smoothing is on.
type OrbitCamera struct {
	Camera

	current orbitState
	goal    orbitState
	home    orbitState

	smooth    bool
	frequency float64
	damping   float64
	spring    harmonica.Spring
	springDT  float64
	vel       [6]float64
}

func NewOrbitCamera(target math.Vec3, distance, yaw, pitch, fov, aspect float32) *OrbitCamera {
	c := &OrbitCamera{
		Camera:    NewCamera(fov, aspect, 0.1, 1000),
		frequency: 8,
		damping:   1,
	}
	c.goal = orbitState{yaw: yaw, pitch: pitch, distance: distance, target: target}
	c.goal.clamp()
	c.home = c.goal
	c.current = c.goal
	c.apply()
	return c
}

// SetSmoothing turns spring smoothing on or off. frequency and damping
// are harmonica's angular frequency and damping ratio; zero keeps the
// current values.
func (c *OrbitCamera) SetSmoothing(on bool, frequency, damping float64) {
	c.smooth = on
	if frequency > 0 {
		c.frequency = frequency
	}
	if damping > 0 {
		c.damping = damping
	}
	c.springDT = 0
	c.vel = [6]float64{}
}

func (c *OrbitCamera) Yaw() float32          { return c.current.yaw }
func (c *OrbitCamera) Pitch() float32        { return c.current.pitch }
func (c *OrbitCamera) Distance() float32     { return c.current.distance }
func (c *OrbitCamera) GoalTarget() math.Vec3 { return c.goal.target }

func (c *OrbitCamera) Orbit(deltaYaw, deltaPitch float32) {
	c.goal.yaw += deltaYaw
	c.goal.pitch += deltaPitch
	c.goal.clamp()
	c.settle()
}

// Pan slides the target in the view plane. dx and dy are fractions of the
// orbit distance.
func (c *OrbitCamera) Pan(dx, dy float32) {
	right := c.Right()
	up := right.Cross(c.Forward()).Normalize()
	d := c.goal.distance
	c.goal.target = c.goal.target.Add(right.Mul(dx * d)).Add(up.Mul(dy * d))
	c.settle()
}

// Zoom changes the distance by delta, never below MinDistance.
func (c *OrbitCamera) Zoom(delta float32) {
	c.goal.distance += delta
	c.goal.clamp()
	c.settle()
}

// ZoomFactor scales the distance, so repeated scrolls feel uniform at any
// range.
func (c *OrbitCamera) ZoomFactor(f float32) {
	if f <= 0 {
		return
	}
	c.goal.distance *= f
	c.goal.clamp()
	c.settle()
}

// Move translates the target along the camera's forward, right and up
// axes.
func (c *OrbitCamera) Move(forward, right, up float32) {
	f := c.Forward()
	r := c.Right()
	u := r.Cross(f).Normalize()
	c.goal.target = c.goal.target.Add(f.Mul(forward)).Add(r.Mul(right)).Add(u.Mul(up))
	c.settle()
}

// Reset returns to the pose the camera was created with or last framed.
func (c *OrbitCamera) Reset() {
	c.goal = c.home
	c.settle()
}

// SetHome makes the current goal the pose Reset returns to.
func (c *OrbitCamera) SetHome() { c.home = c.goal }

// Frame aims at the box centre from a distance that fits its bounding
// sphere in the vertical field of view. Invalid boxes are ignored.
func (c *OrbitCamera) Frame(box spatial.AABB) {
	if !box.IsValid() {
		return
	}
	radius := box.Extents().Length()
	if radius < MinDistance {
		radius = MinDistance
	}
	half := float64(c.FOV) / 2
	if half <= 0 {
		half = stdmath.Pi / 8
	}
	c.goal.target = box.Center()
	c.goal.distance = float32(float64(radius) / stdmath.Sin(half))
	c.goal.clamp()
	c.home = c.goal
	c.settle()
}

// settle snaps to the goal when smoothing is off.
func (c *OrbitCamera) settle() {
	if c.smooth {
		return
	}
	c.current = c.goal
	c.apply()
}

// Update advances the springs by dt seconds. It returns true while the
// camera is still moving.
func (c *OrbitCamera) Update(dt float64) bool {
	if !c.smooth || dt <= 0 {
		c.settle()
		return false
	}
	if dt != c.springDT {
		c.spring = harmonica.NewSpring(dt, c.frequency, c.damping)
		c.springDT = dt
	}
	cur := c.current.vector()
	goal := c.goal.vector()
	moving := false
	for i := range cur {
		cur[i], c.vel[i] = c.spring.Update(cur[i], c.vel[i], goal[i])
		if stdmath.Abs(cur[i]-goal[i]) > 1e-4 || stdmath.Abs(c.vel[i]) > 1e-4 {
			moving = true
		}
	}
	if moving {
		c.current.setVector(cur)
	} else {
		c.current = c.goal
		c.vel = [6]float64{}
	}
	c.apply()
	return moving
}

func (s orbitState) vector() [6]float64 {
	return [6]float64{
		float64(s.yaw), float64(s.pitch), float64(s.distance),
		float64(s.target.X), float64(s.target.Y), float64(s.target.Z),
	}
}

func (s *orbitState) setVector(v [6]float64) {
	s.yaw, s.pitch, s.distance = float32(v[0]), float32(v[1]), float32(v[2])
	s.target = math.Vec3{X: float32(v[3]), Y: float32(v[4]), Z: float32(v[5])}
	s.clamp()
}

// apply places the camera on the sphere around the target.
func (c *OrbitCamera) apply() {
	cp := float32(stdmath.Cos(float64(c.current.pitch)))
	sp := float32(stdmath.Sin(float64(c.current.pitch)))
	cy := float32(stdmath.Cos(float64(c.current.yaw)))
	sy := float32(stdmath.Sin(float64(c.current.yaw)))

	d := c.current.distance
	offset := math.Vec3{X: d * cp * sy, Y: d * sp, Z: d * cp * cy}
	c.Target = c.current.target
	c.Position = c.current.target.Add(offset)
	c.Up = math.Vec3Up
}

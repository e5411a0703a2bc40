package effects

import (
	"fmt"
	stdmath "math"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/postfx"
	"viewport-engine/scene"
	"viewport-engine/viewport"
)

// SkyState is the lighting of one moment of the day.
type SkyState struct {
	Clear        core.Color
	Fog          core.Color
	FogDensity   float32
	Sun          core.Color
	SunIntensity float32
	SunDir       math.Vec3
	Ambient      core.Color
}

type skyKey struct {
	at float32
	SkyState
}

func rgb(r, g, b float32) core.Color { return core.Color{R: r, G: g, B: b, A: 1} }

// Keys are ordered by time and the last one blends back into the first.
var skyKeys = []skyKey{
	{0.00, SkyState{Clear: rgb(0.58, 0.75, 0.95), Fog: rgb(0.62, 0.78, 0.95), FogDensity: 0.011,
		Sun: rgb(1, 0.98, 0.92), SunIntensity: 1.2, Ambient: rgb(0.16, 0.18, 0.26)}},
	{0.22, SkyState{Clear: rgb(0.90, 0.52, 0.18), Fog: rgb(0.85, 0.55, 0.25), FogDensity: 0.018,
		Sun: rgb(1, 0.65, 0.25), SunIntensity: 0.9, Ambient: rgb(0.10, 0.12, 0.20)}},
	{0.30, SkyState{Clear: rgb(0.50, 0.22, 0.28), Fog: rgb(0.35, 0.18, 0.22), FogDensity: 0.02,
		Sun: rgb(0.70, 0.40, 0.55), SunIntensity: 0.25, Ambient: rgb(0.06, 0.07, 0.14)}},
	{0.50, SkyState{Clear: rgb(0.04, 0.04, 0.08), Fog: rgb(0.03, 0.03, 0.06), FogDensity: 0.01,
		Sun: rgb(0.40, 0.45, 0.65), SunIntensity: 0.12, Ambient: rgb(0.03, 0.04, 0.09)}},
	{0.70, SkyState{Clear: rgb(0.40, 0.18, 0.24), Fog: rgb(0.30, 0.15, 0.20), FogDensity: 0.02,
		Sun: rgb(0.75, 0.42, 0.60), SunIntensity: 0.2, Ambient: rgb(0.06, 0.07, 0.14)}},
	{0.78, SkyState{Clear: rgb(0.88, 0.45, 0.22), Fog: rgb(0.75, 0.40, 0.20), FogDensity: 0.015,
		Sun: rgb(1, 0.60, 0.28), SunIntensity: 0.7, Ambient: rgb(0.09, 0.10, 0.17)}},
}

func wrap01(t float32) float32 {
	t -= float32(stdmath.Floor(float64(t)))
	if t >= 1 {
		t = 0
	}
	return t
}

// SkyAt samples the day at t in [0,1): 0 is noon, 0.25 dusk, 0.5 midnight
// and 0.75 dawn. Values outside wrap.
func SkyAt(t float32) SkyState {
	t = wrap01(t)
	i := len(skyKeys) - 1
	for k := range skyKeys {
		if skyKeys[k].at > t {
			i = k - 1
			break
		}
	}
	if i < 0 {
		i = len(skyKeys) - 1
	}
	a, b := skyKeys[i], skyKeys[(i+1)%len(skyKeys)]

	span := b.at - a.at
	into := t - a.at
	if span <= 0 {
		span += 1
	}
	if into < 0 {
		into += 1
	}
	f := into / span

	// The sun turns once a day in the XY plane, overhead at noon.
	angle := float64(t) * 2 * stdmath.Pi
	return SkyState{
		Clear:        a.Clear.Lerp(b.Clear, f),
		Fog:          a.Fog.Lerp(b.Fog, f),
		FogDensity:   a.FogDensity + (b.FogDensity-a.FogDensity)*f,
		Sun:          a.Sun.Lerp(b.Sun, f),
		SunIntensity: a.SunIntensity + (b.SunIntensity-a.SunIntensity)*f,
		SunDir:       math.Vec3{X: float32(stdmath.Sin(angle)), Y: -float32(stdmath.Cos(angle)), Z: 0.35}.Normalize(),
		Ambient:      a.Ambient.Lerp(b.Ambient, f),
	}
}

// Sky is a subsystem that runs a day cycle on a viewport. It owns one
// directional light and drives the ambient term, the clear colour and
// exponential fog.
type Sky struct {
	Time   float32
	Period float32 // seconds per day
	Active bool    // advance Time every frame

	view    *viewport.Viewport
	sun     scene.LightHandle
	enabled bool
}

func NewSky() *Sky {
	return &Sky{Period: 120, Active: true, enabled: true}
}

// Attach adds the sun light to v and registers the sky. It fails when the
// sky is already attached or the light slots are full.
func (s *Sky) Attach(v *viewport.Viewport) bool {
	if v == nil || s.view != nil {
		return false
	}
	st := SkyAt(s.Time)
	h := v.AddLight(scene.DirectionalLight(st.SunDir, st.Sun, st.SunIntensity))
	if h.IsNil() {
		return false
	}
	if !v.Register(viewport.PhaseSimulate, s) {
		v.RemoveLight(h)
		return false
	}
	s.view, s.sun = v, h
	s.apply(v, st)
	return true
}

// Sun is the light the sky drives.
func (s *Sky) Sun() scene.LightHandle { return s.sun }

func (s *Sky) Enabled() bool { return s.enabled }

func (s *Sky) SetEnabled(on bool) { s.enabled = on }

func (s *Sky) Update(v *viewport.Viewport, dt float64) {
	s.Advance(float32(dt))
	s.apply(v, SkyAt(s.Time))
}

// Advance moves the clock by dt seconds when the sky is active.
func (s *Sky) Advance(dt float32) {
	if !s.Active || s.Period <= 0 || dt <= 0 {
		return
	}
	s.Time = wrap01(s.Time + dt/s.Period)
}

func (s *Sky) apply(v *viewport.Viewport, st SkyState) {
	v.UpdateLight(s.sun, scene.DirectionalLight(st.SunDir, st.Sun, st.SunIntensity))
	v.SetAmbient(st.Ambient)
	v.Settings.ClearColor = st.Clear
	fog := &v.Settings.Post.Fog
	fog.Color = st.Fog
	fog.Density = st.FogDensity
	fog.Mode = postfx.FogExp
}

func (s *Sky) Destroy() {
	if s.view != nil {
		s.view.RemoveLight(s.sun)
	}
	s.view, s.sun = nil, scene.LightHandle{}
}

// Detach unregisters the sky and removes its light.
func (s *Sky) Detach() {
	if s.view == nil {
		return
	}
	s.view.Unregister(s)
	s.Destroy()
}

// Clock formats Time as a 24 hour wall clock with noon at 0.
func (s *Sky) Clock() string {
	minutes := int(wrap01(s.Time+0.5) * 24 * 60)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

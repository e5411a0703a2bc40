package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/postfx"
	"viewport-engine/viewport"
)

func TestSkyAtHitsKeys(t *testing.T) {
	for _, k := range skyKeys {
		st := SkyAt(k.at)
		assert.InDelta(t, k.SunIntensity, st.SunIntensity, 1e-5)
		assert.InDelta(t, k.Clear.B, st.Clear.B, 1e-5)
	}
}

func TestSkyAtWraps(t *testing.T) {
	last := skyKeys[len(skyKeys)-1]
	mid := (last.at + 1) / 2
	st := SkyAt(mid)
	assert.InDelta(t, (last.SunIntensity+skyKeys[0].SunIntensity)/2, st.SunIntensity, 1e-4)

	for _, tt := range []struct{ in, same float32 }{{1.1, 0.1}, {-0.1, 0.9}} {
		a, b := SkyAt(tt.in), SkyAt(tt.same)
		assert.InDelta(t, b.SunIntensity, a.SunIntensity, 1e-4)
		assert.InDelta(t, b.SunDir.X, a.SunDir.X, 1e-4)
	}
}

func TestSunDirection(t *testing.T) {
	noon, midnight := SkyAt(0).SunDir, SkyAt(0.5).SunDir
	assert.Negative(t, noon.Y, "noon light points down")
	assert.Positive(t, midnight.Y)
	assert.InDelta(t, 1, noon.Length(), 1e-5)
}

func TestSkyAdvance(t *testing.T) {
	s := NewSky()
	s.Period = 10
	s.Advance(2.5)
	assert.InDelta(t, 0.25, s.Time, 1e-6)
	s.Advance(10)
	assert.InDelta(t, 0.25, s.Time, 1e-5, "a full period wraps")

	s.Active = false
	s.Advance(1)
	assert.InDelta(t, 0.25, s.Time, 1e-5)
}

func TestSkyClock(t *testing.T) {
	s := NewSky()
	assert.Equal(t, "12:00", s.Clock())
	s.Time = 0.5
	assert.Equal(t, "00:00", s.Clock())
	s.Time = 0.75
	assert.Equal(t, "06:00", s.Clock())
}

func TestAttachedSkyDrivesViewport(t *testing.T) {
	v := viewport.New(16, 16, "cpu")
	require.NotNil(t, v)
	t.Cleanup(v.Destroy)

	s := NewSky()
	s.Time = 0.5
	s.Active = false
	require.True(t, s.Attach(v))
	assert.False(t, s.Attach(v), "already attached")

	v.Render()
	want := SkyAt(0.5)
	assert.Equal(t, want.Clear, v.Settings.ClearColor)
	assert.Equal(t, want.Ambient, v.Scene.Ambient)
	assert.Equal(t, postfx.FogExp, v.Settings.Post.Fog.Mode)
	l, ok := v.Scene.Lights.Light(s.Sun())
	require.True(t, ok)
	assert.InDelta(t, want.SunIntensity, l.Intensity, 1e-6)

	sun := s.Sun()
	s.Detach()
	_, ok = v.Scene.Lights.Light(sun)
	assert.False(t, ok)
	assert.NotPanics(t, v.Render)
}

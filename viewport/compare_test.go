package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareRGBA(t *testing.T) {
	tests := []struct {
		name      string
		a, b      []byte
		tol       int
		wantRatio float64
		wantMax   int
	}{
		{"identical", []byte{1, 2, 3, 4, 5, 6, 7, 8}, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 0, 1, 0},
		{"within tolerance", []byte{10, 10, 10, 255}, []byte{11, 9, 10, 255}, 1, 1, 1},
		{"one pixel off", []byte{0, 0, 0, 255, 0, 0, 0, 255}, []byte{0, 0, 0, 255, 40, 0, 0, 255}, 1, 0.5, 40},
		{"size mismatch", []byte{0, 0, 0, 0}, []byte{0, 0, 0, 0, 0, 0, 0, 0}, 1, 0, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CompareRGBA(tt.a, tt.b, tt.tol)
			assert.InDelta(t, tt.wantRatio, d.Ratio(), 1e-9)
			assert.Equal(t, tt.wantMax, d.MaxDiff)
		})
	}
}

func TestImageDiffEquivalent(t *testing.T) {
	tests := []struct {
		name string
		d    ImageDiff
		want bool
	}{
		{"identical", ImageDiff{Pixels: 100, Within: 100}, true},
		{"ratio at the bound", ImageDiff{Pixels: 100, Within: 99, MaxDiff: MaxPixelDiff}, true},
		{"ratio below", ImageDiff{Pixels: 100, Within: 98, MaxDiff: 2}, false},
		{"one pixel far off", ImageDiff{Pixels: 1000, Within: 999, MaxDiff: MaxPixelDiff + 1}, false},
		{"empty", ImageDiff{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Equivalent())
		})
	}

	a := make([]byte, 4*200)
	b := append([]byte(nil), a...)
	b[0] = MaxPixelDiff + 10
	d := CompareRGBA(a, b, EquivalentTolerance)
	assert.InDelta(t, 0.995, d.Ratio(), 1e-9)
	assert.False(t, d.Equivalent(), "ratio passes but the outlier is unbounded")
}

func TestReferenceSceneIsDeterministic(t *testing.T) {
	render := func() []byte {
		v := New(48, 32, "cpu")
		require.NotNil(t, v)
		defer v.Destroy()
		BuildReferenceScene(v)
		v.Render()
		px, w, h := v.ReadColor()
		require.Equal(t, 48, w)
		require.Equal(t, 32, h)
		return append([]byte(nil), px...)
	}
	a, b := render(), render()
	d := CompareRGBA(a, b, 0)
	assert.Equal(t, 1.0, d.Ratio())

	v := New(48, 32, "cpu")
	require.NotNil(t, v)
	defer v.Destroy()
	BuildReferenceScene(v)
	v.Render()
	assert.True(t, v.Pick(24, 16).Hit, "cube covers the centre")
}

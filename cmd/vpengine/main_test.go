package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/config"
	"viewport-engine/internal/harness"
	vio "viewport-engine/io"
	"viewport-engine/viewport"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvBackend, "")
	t.Setenv(config.EnvLogLevel, "error")
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

const triangleOBJ = `o tri
v 0 0 0
v 1 0 0
v 0 1 0
vn 0 0 1
f 1//1 2//1 3//1
o quad
v 0 0 1
v 1 0 1
v 1 1 1
v 0 1 1
f 4 5 6 7
`

func writeOBJ(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.obj")
	require.NoError(t, os.WriteFile(path, []byte(triangleOBJ), 0o644))
	return path
}

func TestRenderWritesPNG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame.png")
	_, err := execute(t, "render", "--backend", "cpu", "--width", "64", "--height", "48", "--scale", "2", "--out", out)
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 128, 96), img.Bounds())
}

func TestRenderTimeOfDay(t *testing.T) {
	dir := t.TempDir()
	noon, night := filepath.Join(dir, "noon.png"), filepath.Join(dir, "night.png")
	for path, at := range map[string]string{noon: "0", night: "0.5"} {
		_, err := execute(t, "render", "--width", "16", "--height", "16", "--hud=false", "--time-of-day", at, "--out", path)
		require.NoError(t, err)
	}
	corner := func(path string) uint32 {
		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		img, err := png.Decode(f)
		require.NoError(t, err)
		_, _, b, _ := img.At(0, 0).RGBA()
		return b
	}
	assert.Greater(t, corner(noon), corner(night), "the noon sky is brighter")
}

func TestRenderModel(t *testing.T) {
	out := filepath.Join(t.TempDir(), "model.png")
	_, err := execute(t, "render", "--width", "32", "--height", "32", "--hud=false", "--out", out, writeOBJ(t))
	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.stl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err := execute(t, "render", "--width", "16", "--height", "16", "--out", filepath.Join(t.TempDir(), "x.png"), path)
	assert.ErrorIs(t, err, harness.ErrUnsupported)
}

func TestConvert(t *testing.T) {
	in := writeOBJ(t)
	out := filepath.Join(t.TempDir(), "model.vmesh")
	stdout, err := execute(t, "convert", "--object-id", "7", in, out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 triangles")

	f, err := vio.LoadVMesh(out)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, uint32(7), f.Header.ObjectID)
	assert.Len(t, f.Indices(), 9)
	assert.Equal(t, 7, f.VertexCount())
}

func TestConvertSplit(t *testing.T) {
	in := writeOBJ(t)
	dir := t.TempDir()
	_, err := execute(t, "convert", "--split", in, filepath.Join(dir, "part.vmesh"))
	require.NoError(t, err)

	for i, want := range []int{1, 2} {
		f, err := vio.LoadVMesh(filepath.Join(dir, fmt.Sprintf("part_%03d.vmesh", i)))
		require.NoError(t, err)
		assert.Len(t, f.Indices(), want*3)
		assert.Equal(t, uint32(1+i), f.Header.ObjectID)
		f.Close()
	}
}

func TestBackendsListsSoftware(t *testing.T) {
	stdout, err := execute(t, "backends")
	require.NoError(t, err)
	assert.Contains(t, stdout, "* software")
}

func TestInvalidSize(t *testing.T) {
	_, err := execute(t, "render", "--width", "0", "--out", filepath.Join(t.TempDir(), "x.png"))
	assert.Error(t, err)
}

func TestCompareVerdict(t *testing.T) {
	tests := []struct {
		name string
		d    viewport.ImageDiff
		want string
	}{
		{"match", viewport.ImageDiff{Pixels: 100, Within: 100, MaxDiff: 1}, "ok"},
		{"too few pixels agree", viewport.ImageDiff{Pixels: 100, Within: 90, MaxDiff: 3}, "MISMATCH"},
		{"bounded ratio, unbounded pixel", viewport.ImageDiff{Pixels: 100, Within: 99, MaxDiff: viewport.MaxPixelDiff + 1}, "OUTLIER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verdict(tt.d))
		})
	}
}

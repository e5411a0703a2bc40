package io

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/core"
	"viewport-engine/math"
)

const quadOBJ = `# quad
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
`

func TestParseOBJFanTriangulates(t *testing.T) {
	m, err := ParseOBJ(strings.NewReader(quadOBJ), "")
	require.NoError(t, err)
	require.Len(t, m.Parts, 1)

	g := m.Parts[0].Geometry
	assert.Len(t, g.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, g.Indices)
	assert.Equal(t, 2, m.TriangleCount())

	// v flips to a top-left origin
	assert.Equal(t, math.Vec2{X: 0, Y: 1}, g.Vertices[0].UV)
	assert.Equal(t, math.Vec2{X: 1, Y: 0}, g.Vertices[2].UV)

	// no vn lines, so smooth normals face the viewer
	for _, v := range g.Vertices {
		assert.InDelta(t, 1, v.Normal.Z, 1e-5)
	}
	assert.Equal(t, objDefaultColor, m.Parts[0].BaseColor)
}

func TestParseOBJNegativeIndicesAndSharing(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 0 1 0
vn 0 0 1
f -3//-1 -2//-1 -1//-1
f 1//1 3//1 2//1
`
	m, err := ParseOBJ(strings.NewReader(src), "")
	require.NoError(t, err)
	g := m.Parts[0].Geometry
	// "-3//-1" and "1//1" are different strings so they are not shared
	assert.Len(t, g.Indices, 6)
	assert.Equal(t, math.Vec3{}, g.Vertices[g.Indices[0]].Position)
	assert.Equal(t, math.Vec3{X: 1}, g.Vertices[g.Indices[1]].Position)
	assert.Equal(t, math.Vec3{Z: 1}, g.Vertices[0].Normal)
}

func TestParseOBJObjectsAndVertexColors(t *testing.T) {
	src := `
v 0 0 0 1 0 0
v 1 0 0 1 0 0
v 0 1 0 1 0 0
o first
f 1 2 3
o second
f 3 2 1
`
	m, err := ParseOBJ(strings.NewReader(src), "")
	require.NoError(t, err)
	require.Len(t, m.Parts, 2)
	assert.Equal(t, "first", m.Parts[0].Name)
	assert.Equal(t, "second", m.Parts[1].Name)
	assertColor(t, core.ColorRed, m.Parts[0].Geometry.Vertices[0].Color)
}

func TestParseOBJErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"index out of range", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n", "line 4"},
		{"short face", "v 0 0 0\nv 1 0 0\nf 1 2\n", "face needs 3"},
		{"bad number", "v 0 x 0\n", "bad position"},
		{"no faces", "v 0 0 0\n", "no faces"},
		{"zero index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(tt.src), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseMTL(t *testing.T) {
	mtls, err := ParseMTL(strings.NewReader(`
newmtl red
Kd 1 0 0
d 0.5
map_Kd -s 1 1 1 red.png
newmtl glass
Tr 0.75
`))
	require.NoError(t, err)
	require.Len(t, mtls, 2)
	assertColor(t, core.Color{R: 1, A: 1}, mtls["red"].Diffuse)
	assert.InDelta(t, 0.5, mtls["red"].Opacity, 1e-6)
	assert.Equal(t, "red.png", mtls["red"].DiffuseTx)
	assert.InDelta(t, 0.25, mtls["glass"].Opacity, 1e-6)
	assert.Equal(t, objDefaultColor, mtls["glass"].Diffuse)
}

func assertColor(t *testing.T, want, got core.Color) {
	t.Helper()
	assert.InDelta(t, want.R, got.R, 1e-4, "r")
	assert.InDelta(t, want.G, got.G, 1e-4, "g")
	assert.InDelta(t, want.B, got.B, 1e-4, "b")
	assert.InDelta(t, want.A, got.A, 1e-4, "a")
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := range 2 {
		for x := range 2 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestLoadOBJWithMaterialLibrary(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "red.png"), color.RGBA{R: 255, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mats.mtl"), []byte(`
newmtl painted
Kd 1 1 1
map_Kd red.png
newmtl plain
Kd 0 1 0
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.obj"), []byte(`
mtllib mats.mtl
v 0 0 0
v 1 0 0
v 0 1 0
usemtl painted
f 1 2 3
usemtl plain
f 3 2 1
`), 0o644))

	m, err := LoadOBJ(filepath.Join(dir, "scene.obj"))
	require.NoError(t, err)
	assert.Equal(t, "scene.obj", m.Name)
	require.Len(t, m.Parts, 2)
	assert.NotNil(t, m.Parts[0].Image)
	assert.Nil(t, m.Parts[1].Image)
	assertColor(t, core.Color{G: 1, A: 1}, m.Parts[1].BaseColor)
}

func TestLoadOBJMissingLibraryIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.obj")
	require.NoError(t, os.WriteFile(path, []byte("mtllib gone.mtl\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), 0o644))
	m, err := LoadOBJ(path)
	require.NoError(t, err)
	assert.Len(t, m.Parts, 1)

	_, err = LoadOBJ(filepath.Join(dir, "missing.obj"))
	assert.Error(t, err)
}

func TestWriteOBJRoundTrip(t *testing.T) {
	m, err := ParseOBJ(strings.NewReader(quadOBJ), "")
	require.NoError(t, err)
	m.Parts[0].Transform = math.Mat4Translation(math.Vec3{X: 5})

	var buf bytes.Buffer
	require.NoError(t, WriteOBJ(&buf, m))
	back, err := ParseOBJ(&buf, "")
	require.NoError(t, err)
	require.Len(t, back.Parts, 1)

	g := back.Parts[0].Geometry
	assert.Equal(t, m.Parts[0].Geometry.Indices, g.Indices)
	assert.InDelta(t, 4, g.Vertices[0].Position.X, 1e-5)
	assert.Equal(t, m.Parts[0].Geometry.Vertices[2].UV, g.Vertices[2].UV)
	assert.Equal(t, m.Bounds(), back.Bounds())
}

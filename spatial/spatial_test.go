package spatial

import (
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/core"
	"viewport-engine/math"
)

func vec(x, y, z float32) math.Vec3 { return math.Vec3{X: x, Y: y, Z: z} }

func assertVec(t *testing.T, want, got math.Vec3, msgAndArgs ...any) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-4, msgAndArgs...)
	assert.InDelta(t, want.Y, got.Y, 1e-4, msgAndArgs...)
	assert.InDelta(t, want.Z, got.Z, 1e-4, msgAndArgs...)
}

// unitCube is a 2x2x2 cube centred on the origin, counter-clockwise.
func unitCube() ([]core.Vertex, []uint32) {
	faces := []struct{ n, u, v math.Vec3 }{
		{vec(0, 0, 1), vec(1, 0, 0), vec(0, 1, 0)},
		{vec(0, 0, -1), vec(-1, 0, 0), vec(0, 1, 0)},
		{vec(1, 0, 0), vec(0, 0, -1), vec(0, 1, 0)},
		{vec(-1, 0, 0), vec(0, 0, 1), vec(0, 1, 0)},
		{vec(0, 1, 0), vec(1, 0, 0), vec(0, 0, -1)},
		{vec(0, -1, 0), vec(1, 0, 0), vec(0, 0, 1)},
	}
	var verts []core.Vertex
	var idx []uint32
	for _, f := range faces {
		base := uint32(len(verts))
		for _, c := range [][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := f.n.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1]))
			verts = append(verts, core.Vertex{Position: p, Normal: f.n, Color: core.ColorWhite})
		}
		idx = append(idx, base, base+1, base+2, base, base+2, base+3)
	}
	return verts, idx
}

func cubeView(id uint32, world math.Mat4, mesh int) MeshView {
	verts, idx := unitCube()
	return MeshView{
		ObjectID:    id,
		Mesh:        mesh,
		Instance:    -1,
		World:       world,
		Bounds:      AABB{Min: vec(-1, -1, -1), Max: vec(1, 1, 1)}.Transform(world),
		Vertices:    verts,
		VertexCount: len(verts),
		Indices:     idx,
	}
}

func TestAABBCenterExtents(t *testing.T) {
	b := AABBFromPoints([]math.Vec3{vec(-1, 2, 3), vec(4, -2, 5), vec(0, 0, 4)})
	require.True(t, b.IsValid())
	assert.Equal(t, b.Max, b.Center().Add(b.Extents()))
	assert.Equal(t, b.Min, b.Center().Sub(b.Extents()))
	assert.False(t, EmptyAABB().IsValid())
	assert.Equal(t, b, EmptyAABB().Union(b))
}

func TestAABBUnionContainsTransformed(t *testing.T) {
	local := AABB{Min: vec(-1, -1, -1), Max: vec(1, 1, 1)}
	positions := []math.Vec3{vec(0, 0, 0), vec(5, 1, -3), vec(-2, 8, 1), vec(10, -10, 10)}

	union := EmptyAABB()
	var boxes []AABB
	for i, p := range positions {
		world := math.Mat4TRS(p, vec(0.3*float32(i), 0.7, 0), vec(1, 2, 0.5))
		box := local.Transform(world)
		boxes = append(boxes, box)
		union = union.Union(box)
	}
	for i, b := range boxes {
		assert.True(t, union.ContainsAABB(b), "box %d", i)
	}
}

func TestAABBTransformRotated(t *testing.T) {
	local := AABB{Min: vec(-1, -1, -1), Max: vec(1, 1, 1)}
	got := local.Transform(math.Mat4RotationY(stdmath.Pi / 4))
	r2 := float32(stdmath.Sqrt2)
	assertVec(t, vec(r2, 1, r2), got.Extents())
	assertVec(t, vec(0, 0, 0), got.Center())
}

func testCamera() (view, proj math.Mat4) {
	view = math.Mat4LookAt(vec(0, 0, 5), vec(0, 0, 0), math.Vec3Up)
	proj = math.Mat4Perspective(1.0, 1, 0.1, 100)
	return view, proj
}

func TestFrustumClassify(t *testing.T) {
	view, proj := testCamera()
	f := FrustumFromMatrix(proj.Mul(view))

	tests := []struct {
		name string
		box  AABB
		want Classification
	}{
		{"centre", AABBFromCenter(vec(0, 0, 0), vec(0.5, 0.5, 0.5)), Inside},
		{"far right", AABBFromCenter(vec(100, 0, 0), vec(1, 1, 1)), Outside},
		{"behind camera", AABBFromCenter(vec(0, 0, 10), vec(1, 1, 1)), Outside},
		{"beyond far", AABBFromCenter(vec(0, 0, -200), vec(1, 1, 1)), Outside},
		{"straddles near", AABBFromCenter(vec(0, 0, 5), vec(0.5, 0.5, 0.5)), Intersect},
		{"straddles left", AABBFromCenter(vec(-2.7, 0, 0), vec(0.5, 0.5, 0.5)), Intersect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.ClassifyAABB(tt.box)
			assert.Equal(t, tt.want, got, "got %s", got)
			assert.Equal(t, got, f.ClassifyAABB(tt.box), "classification must be deterministic")

			if got == Outside {
				// some plane has every corner on its outside
				rejected := false
				for _, p := range f.Planes {
					all := true
					for _, c := range tt.box.Corners() {
						if p.Distance(c) >= 0 {
							all = false
							break
						}
					}
					rejected = rejected || all
				}
				assert.True(t, rejected)
			}
		})
	}
}

func TestFrustumContainsPoint(t *testing.T) {
	view, proj := testCamera()
	f := FrustumFromMatrix(proj.Mul(view))
	assert.True(t, f.ContainsPoint(vec(0, 0, 0)))
	assert.False(t, f.ContainsPoint(vec(0, 0, 6)))
}

func TestRayAABB(t *testing.T) {
	box := AABB{Min: vec(-1, -1, -1), Max: vec(1, 1, 1)}

	tests := []struct {
		name      string
		ray       Ray
		hit       bool
		near, far float32
	}{
		{"head on", NewRay(vec(0, 0, 5), vec(0, 0, -1)), true, 4, 6},
		{"miss", NewRay(vec(3, 0, 5), vec(0, 0, -1)), false, 0, 0},
		{"from inside", NewRay(vec(0, 0, 0), vec(1, 0, 0)), true, -1, 1},
		{"pointing away", NewRay(vec(0, 0, 5), vec(0, 0, 1)), false, 0, 0},
		{"grazing parallel outside", NewRay(vec(0, 2, 5), vec(0, 0, -1)), false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			near, far, hit := RayAABB(tt.ray, box)
			require.Equal(t, tt.hit, hit)
			if hit {
				assert.InDelta(t, tt.near, near, 1e-5)
				assert.InDelta(t, tt.far, far, 1e-5)
			}
		})
	}
}

func TestRayTriangle(t *testing.T) {
	v0, v1, v2 := vec(0, 0, 0), vec(1, 0, 0), vec(0, 1, 0)

	tt, u, v, hit := RayTriangle(NewRay(vec(0.25, 0.25, 1), vec(0, 0, -1)), v0, v1, v2)
	require.True(t, hit)
	assert.InDelta(t, 1, tt, 1e-6)
	assert.InDelta(t, 0.25, u, 1e-6)
	assert.InDelta(t, 0.25, v, 1e-6)

	// back face is hit too
	_, _, _, hit = RayTriangle(NewRay(vec(0.25, 0.25, -1), vec(0, 0, 1)), v0, v1, v2)
	assert.True(t, hit)

	_, _, _, hit = RayTriangle(NewRay(vec(0.25, 0.25, 1), vec(1, 0, 0)), v0, v1, v2)
	assert.False(t, hit, "parallel")

	_, _, _, hit = RayTriangle(NewRay(vec(0.25, 0.25, 1), vec(0, 0, 1)), v0, v1, v2)
	assert.False(t, hit, "behind origin")

	_, _, _, hit = RayTriangle(NewRay(vec(0.9, 0.9, 1), vec(0, 0, -1)), v0, v1, v2)
	assert.False(t, hit, "outside edge")
}

func TestScreenToRayAndBack(t *testing.T) {
	view, proj := testCamera()

	r, ok := ScreenToRay(50, 50, 100, 100, view, proj)
	require.True(t, ok)
	assertVec(t, vec(0, 0, -1), r.Dir)
	assert.InDelta(t, 4.9, r.Origin.Z, 1e-3)

	x, y, ok := WorldToScreen(vec(0, 0, 0), 100, 100, view, proj)
	require.True(t, ok)
	assert.InDelta(t, 50, x, 1e-3)
	assert.InDelta(t, 50, y, 1e-3)

	// a point above the centre lands in the upper half of the image
	_, y, ok = WorldToScreen(vec(0, 1, 0), 100, 100, view, proj)
	require.True(t, ok)
	assert.Less(t, y, float32(50))

	_, _, ok = WorldToScreen(vec(0, 0, 10), 100, 100, view, proj)
	assert.False(t, ok)

	_, ok = ScreenToRay(0, 0, 0, 100, view, proj)
	assert.False(t, ok)
}

func TestRaycastClosestHit(t *testing.T) {
	snap := NewSnapshot([]MeshView{
		cubeView(1, math.Mat4Translation(vec(0, 0, -5)), 0),
		cubeView(2, math.Mat4Translation(vec(0, 0, 0)), 1),
		cubeView(0, math.Mat4Translation(vec(0, 0, 3)), 2), // unpickable, nearest
		cubeView(3, math.Mat4Translation(vec(10, 0, 0)), 3),
	}, 1, nil)

	hit := Raycast(snap, NewRay(vec(0.2, 0.1, 10), vec(0, 0, -1)))
	require.True(t, hit.Hit)
	assert.Equal(t, uint32(2), hit.ObjectID)
	assert.InDelta(t, 9, hit.Distance, 1e-5)
	assertVec(t, vec(0.2, 0.1, 1), hit.Position)
	assertVec(t, vec(0, 0, 1), hit.Normal)
	assert.Equal(t, 1, hit.Mesh)
	assert.True(t, hit.TriangleIndex == 0 || hit.TriangleIndex == 1, "front face triangle")

	miss := Raycast(snap, NewRay(vec(5, 5, 10), vec(0, 0, -1)))
	assert.False(t, miss.Hit)
}

func TestRaycastScaledMeshNormal(t *testing.T) {
	world := math.Mat4TRS(vec(0, 0, 0), vec(0, 0, 0), vec(1, 4, 1))
	snap := NewSnapshot([]MeshView{cubeView(9, world, 0)}, 1, nil)

	hit := Raycast(snap, NewRay(vec(0, 10, 0), vec(0, -1, 0)))
	require.True(t, hit.Hit)
	assert.InDelta(t, 6, hit.Distance, 1e-5)
	assertVec(t, vec(0, 1, 0), hit.Normal)
}

func TestSnapshotIteration(t *testing.T) {
	var token uint64 = 7
	snap := NewSnapshot([]MeshView{
		cubeView(1, math.Mat4Identity(), 0),
		cubeView(2, math.Mat4Translation(vec(3, 0, 0)), 1),
	}, token, func() uint64 { return token })

	count := func() int {
		n := 0
		for range snap.Triangles() {
			n++
		}
		return n
	}
	assert.Equal(t, 24, count())
	assert.Equal(t, 24, count(), "restartable")

	meshes := 0
	for m := range snap.Meshes() {
		meshes++
		if m.ObjectID == 1 {
			break
		}
	}
	assert.Equal(t, 1, meshes, "early break stops iteration")

	for tri := range snap.Triangles() {
		if tri.ObjectID == 2 {
			assert.GreaterOrEqual(t, tri.Positions[0].X, float32(2))
			break
		}
	}

	bounds := snap.Bounds()
	assertVec(t, vec(-1, -1, -1), bounds.Min)
	assertVec(t, vec(4, 1, 1), bounds.Max)

	assert.True(t, snap.Valid())
	token++
	assert.False(t, snap.Valid())
}

func TestSnapshotCustomFormat(t *testing.T) {
	format := &core.VertexFormat{
		Stride: 16,
		Attributes: []core.VertexAttribute{
			{Semantic: core.SemanticPosition, Format: core.Float3, Offset: 0},
			{Semantic: core.SemanticHeat, Format: core.Float1, Offset: 12},
		},
	}
	require.NoError(t, format.Validate())

	verts := []core.Vertex{
		{Position: vec(0, 0, 0)},
		{Position: vec(1, 0, 0)},
		{Position: vec(0, 1, 0)},
	}
	std := core.EncodeVertices(verts)
	raw := make([]byte, 3*16)
	for i := range verts {
		copy(raw[i*16:i*16+12], std[i*core.VertexSize:i*core.VertexSize+12])
	}

	snap := NewSnapshot([]MeshView{{
		ObjectID:    4,
		Instance:    -1,
		World:       math.Mat4Identity(),
		Bounds:      AABB{Min: vec(0, 0, 0), Max: vec(1, 1, 0)},
		Raw:         raw,
		Format:      format,
		VertexCount: 3,
		Indices:     []uint32{0, 1, 2},
	}}, 0, nil)

	hit := Raycast(snap, NewRay(vec(0.2, 0.2, 1), vec(0, 0, -1)))
	require.True(t, hit.Hit)
	assert.Equal(t, uint32(4), hit.ObjectID)
	assertVec(t, vec(0, 0, 1), hit.Normal, "missing normals default to +Z")
}

func BenchmarkFrustumClassify(b *testing.B) {
	view, proj := testCamera()
	f := FrustumFromMatrix(proj.Mul(view))
	box := AABBFromCenter(vec(0.5, 0.2, -1), vec(1, 1, 1))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.ClassifyAABB(box)
	}
}

func BenchmarkRaycast(b *testing.B) {
	var views []MeshView
	for i := 0; i < 64; i++ {
		views = append(views, cubeView(uint32(i+1), math.Mat4Translation(vec(float32(i%8)*3, float32(i/8)*3, 0)), i))
	}
	snap := NewSnapshot(views, 0, nil)
	r := NewRay(vec(9, 9, 20), vec(0, 0, -1))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Raycast(snap, r)
	}
}

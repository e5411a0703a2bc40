package spatial

import (
	"iter"

	"viewport-engine/core"
	"viewport-engine/math"
)

// MeshView is a borrowed view of one mesh (or one instance of an
// instanced batch). Its slices alias engine storage and are only valid
// until the next Render, Resize or Destroy on the owning viewport.
type MeshView struct {
	ObjectID uint32
	// Mesh is the position of the mesh in the snapshot; every instance of
	// a batch shares it. Instance is -1 for plain meshes.
	Mesh     int
	Instance int
	World    math.Mat4
	Bounds   AABB

	// Vertices holds standard-layout geometry. For custom formats it is
	// nil and Raw/Format describe the data instead.
	Vertices    []core.Vertex
	Raw         []byte
	Format      *core.VertexFormat
	VertexCount int
	Indices     []uint32
}

// Vertex returns local-space vertex i in the standard layout.
func (m *MeshView) Vertex(i int) core.Vertex {
	if m.Vertices != nil {
		return m.Vertices[i]
	}
	return m.Format.DecodeVertex(m.Raw, i)
}

func (m *MeshView) Position(i int) math.Vec3 {
	if m.Vertices != nil {
		return m.Vertices[i].Position
	}
	return m.Format.Position(m.Raw, i)
}

func (m *MeshView) TriangleCount() int { return len(m.Indices) / 3 }

// Triangle is one world-space triangle with per-corner data ready for
// barycentric interpolation.
type Triangle struct {
	ObjectID  uint32
	Mesh      int
	Instance  int
	Index     int
	Positions [3]math.Vec3
	Normals   [3]math.Vec3
	Colors    [3]core.Color
	UVs       [3]math.Vec2
}

// Interpolate returns the normalized world normal and the colour at
// barycentric (u, v).
func (t *Triangle) Interpolate(u, v float32) (math.Vec3, core.Color) {
	w := 1 - u - v
	n := t.Normals[0].Mul(w).Add(t.Normals[1].Mul(u)).Add(t.Normals[2].Mul(v)).Normalize()
	c := core.Color{
		R: t.Colors[0].R*w + t.Colors[1].R*u + t.Colors[2].R*v,
		G: t.Colors[0].G*w + t.Colors[1].G*u + t.Colors[2].G*v,
		B: t.Colors[0].B*w + t.Colors[1].B*u + t.Colors[2].B*v,
		A: t.Colors[0].A*w + t.Colors[1].A*u + t.Colors[2].A*v,
	}
	return n, c
}

// Snapshot is a point-in-time view of scene geometry tied to a frame
// token. Iterating is lazy and restartable; nothing is copied until a
// triangle is produced.
type Snapshot struct {
	meshes  []MeshView
	token   uint64
	current func() uint64
}

// NewSnapshot wraps views taken at frame token. current reports the
// owner's token now; nil means the snapshot never expires.
func NewSnapshot(meshes []MeshView, token uint64, current func() uint64) Snapshot {
	return Snapshot{meshes: meshes, token: token, current: current}
}

// Valid reports whether the owner has not rendered, resized or been
// destroyed since the snapshot was taken. It is advisory only.
func (s Snapshot) Valid() bool {
	return s.current == nil || s.current() == s.token
}

func (s Snapshot) Token() uint64 { return s.token }

func (s Snapshot) Len() int { return len(s.meshes) }

func (s Snapshot) Meshes() iter.Seq[MeshView] {
	return func(yield func(MeshView) bool) {
		for i := range s.meshes {
			if !yield(s.meshes[i]) {
				return
			}
		}
	}
}

func (s Snapshot) Triangles() iter.Seq[Triangle] {
	return func(yield func(Triangle) bool) {
		for i := range s.meshes {
			if !meshTriangles(&s.meshes[i], yield) {
				return
			}
		}
	}
}

// Bounds is the union of all mesh bounds.
func (s Snapshot) Bounds() AABB {
	box := EmptyAABB()
	for i := range s.meshes {
		box = box.Union(s.meshes[i].Bounds)
	}
	return box
}

func meshTriangles(m *MeshView, yield func(Triangle) bool) bool {
	normalMat := m.World.NormalMatrix()
	for t := 0; t < m.TriangleCount(); t++ {
		tri, ok := m.triangle(t, normalMat)
		if !ok {
			continue
		}
		if !yield(tri) {
			return false
		}
	}
	return true
}

// triangle builds world-space triangle t. Triangles referencing
// vertices past VertexCount are reported as missing.
func (m *MeshView) triangle(t int, normalMat math.Mat4) (Triangle, bool) {
	tri := Triangle{ObjectID: m.ObjectID, Mesh: m.Mesh, Instance: m.Instance, Index: t}
	for k := 0; k < 3; k++ {
		idx := int(m.Indices[t*3+k])
		if idx >= m.VertexCount {
			return Triangle{}, false
		}
		v := m.Vertex(idx)
		tri.Positions[k] = m.World.TransformPoint(v.Position)
		tri.Normals[k] = normalMat.TransformDirection(v.Normal).Normalize()
		tri.Colors[k] = v.Color
		tri.UVs[k] = v.UV
	}
	return tri, true
}

// worldPositions returns the corners of triangle t without decoding the
// other channels.
func (m *MeshView) worldPositions(t int) (a, b, c math.Vec3, ok bool) {
	i0, i1, i2 := int(m.Indices[t*3]), int(m.Indices[t*3+1]), int(m.Indices[t*3+2])
	if i0 >= m.VertexCount || i1 >= m.VertexCount || i2 >= m.VertexCount {
		return a, b, c, false
	}
	return m.World.TransformPoint(m.Position(i0)),
		m.World.TransformPoint(m.Position(i1)),
		m.World.TransformPoint(m.Position(i2)), true
}

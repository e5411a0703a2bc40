package scene

import (
	"errors"
	"fmt"
	"slices"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
	"viewport-engine/spatial"
)

var (
	ErrIndexCount = errors.New("index count is not a multiple of 3")
	ErrIndexRange = errors.New("index out of vertex range")
	ErrShortData  = errors.New("vertex data shorter than vertex count")
)

// MeshHandle refers to a mesh slot. A handle goes stale when its mesh is
// removed; stale and zero handles resolve to nothing.
type MeshHandle struct {
	index      uint32
	generation uint32
}

func (h MeshHandle) IsNil() bool { return h.generation == 0 }

// Index is the slot index, stable for the life of the mesh.
func (h MeshHandle) Index() int { return int(h.index) }

func (h MeshHandle) String() string {
	if h.IsNil() {
		return "mesh(nil)"
	}
	return fmt.Sprintf("mesh(%d.%d)", h.index, h.generation)
}

// Material is the surface description a mesh draws with.
type Material struct {
	BaseColor core.Color
	Texture   rhi.Texture
	Unlit     bool
}

func DefaultMaterial() Material {
	return Material{BaseColor: core.ColorWhite}
}

// Mesh is engine-owned geometry plus its placement in the hierarchy.
// Geometry changes go through Scene so bounds and revisions stay
// consistent.
type Mesh struct {
	ObjectID  uint32
	Material  Material
	Opacity   float32
	Blend     rhi.BlendMode
	Visible   bool
	Wireframe bool
	// DoubleSided disables back-face culling.
	DoubleSided bool

	vertices    []core.Vertex
	raw         []byte
	format      *core.VertexFormat
	vertexCount int
	indices     []uint32
	localBounds spatial.AABB

	transform   core.Transform
	explicit    math.Mat4
	useExplicit bool
	parent      MeshHandle
	world       math.Mat4

	instances []math.Mat4

	revision         uint64
	instanceRevision uint64
}

func newMesh(objectID uint32) *Mesh {
	return &Mesh{
		ObjectID:  objectID,
		Material:  DefaultMaterial(),
		Opacity:   1,
		Visible:   true,
		transform: core.NewTransform(),
		world:     math.Mat4Identity(),
	}
}

// Vertices is the standard-layout vertex data, nil for custom formats.
// The slice is engine storage: read it, do not keep it.
func (m *Mesh) Vertices() []core.Vertex { return m.vertices }

// Raw returns the interleaved vertex bytes of a custom-format mesh.
func (m *Mesh) Raw() []byte { return m.raw }

// Format is nil for the standard layout.
func (m *Mesh) Format() *core.VertexFormat { return m.format }

func (m *Mesh) VertexCount() int          { return m.vertexCount }
func (m *Mesh) Indices() []uint32         { return m.indices }
func (m *Mesh) TriangleCount() int        { return len(m.indices) / 3 }
func (m *Mesh) LocalBounds() spatial.AABB { return m.localBounds }

// VertexCapacity and IndexCapacity report the storage reserved for
// in-place geometry updates.
func (m *Mesh) VertexCapacity() int {
	if m.format != nil {
		return cap(m.raw) / m.format.Stride
	}
	return cap(m.vertices)
}

func (m *Mesh) IndexCapacity() int { return cap(m.indices) }

// Revision changes whenever geometry changes; backends re-upload on a
// mismatch.
func (m *Mesh) Revision() uint64 { return m.revision }

// InstanceRevision changes whenever instance transforms change.
func (m *Mesh) InstanceRevision() uint64 { return m.instanceRevision }

func (m *Mesh) Parent() MeshHandle { return m.parent }

func (m *Mesh) IsInstanced() bool { return m.instances != nil }

// Instances are per-instance transforms applied after the mesh's world
// transform.
func (m *Mesh) Instances() []math.Mat4 { return m.instances }

func (m *Mesh) Position() math.Vec3 { return m.transform.Position }
func (m *Mesh) Rotation() math.Vec3 { return m.transform.Rotation }
func (m *Mesh) Scale() math.Vec3    { return m.transform.Scale }

func (m *Mesh) SetPosition(p math.Vec3) {
	m.transform.Position = p
	m.useExplicit = false
}

// SetRotation takes Euler angles in radians.
func (m *Mesh) SetRotation(r math.Vec3) {
	m.transform.Rotation = r
	m.useExplicit = false
}

func (m *Mesh) SetScale(s math.Vec3) {
	m.transform.Scale = s
	m.useExplicit = false
}

// SetTransform overrides TRS with an explicit local matrix until one of
// the TRS setters is called again.
func (m *Mesh) SetTransform(local math.Mat4) {
	m.explicit = local
	m.useExplicit = true
}

func (m *Mesh) Local() math.Mat4 {
	if m.useExplicit {
		return m.explicit
	}
	return m.transform.Matrix()
}

// World is the transform computed by the last ResolveTransforms.
func (m *Mesh) World() math.Mat4 { return m.world }

// WorldBounds refits the local bounds under the world transform, over
// every instance for instanced meshes.
func (m *Mesh) WorldBounds() spatial.AABB {
	if !m.localBounds.IsValid() {
		return m.localBounds
	}
	if m.instances == nil {
		return m.localBounds.Transform(m.world)
	}
	box := spatial.EmptyAABB()
	for _, inst := range m.instances {
		box = box.Union(m.localBounds.Transform(m.world.Mul(inst)))
	}
	return box
}

// State derives the fixed-function state for drawing the mesh.
func (m *Mesh) State() rhi.PipelineState {
	return rhi.PipelineState{
		Wireframe:    m.Wireframe,
		DepthTest:    true,
		CullBack:     !m.DoubleSided,
		Blend:        m.Blend,
		CustomStride: m.format != nil,
	}
}

// Transparent reports whether the mesh belongs to the blended pass.
func (m *Mesh) Transparent() bool {
	return m.Blend != rhi.BlendOpaque
}

func validateIndices(indices []uint32, vertexCount int) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("%w: %d", ErrIndexCount, len(indices))
	}
	for i, idx := range indices {
		if int(idx) >= vertexCount {
			return fmt.Errorf("%w: indices[%d] = %d, vertex count %d", ErrIndexRange, i, idx, vertexCount)
		}
	}
	return nil
}

// grow returns the capacity used when need exceeds have: have doubled
// until it fits.
func grow(have, need int) int {
	if have <= 0 {
		have = 1
	}
	for have < need {
		have *= 2
	}
	return have
}

func (m *Mesh) setVertices(vertices []core.Vertex) {
	if len(vertices) <= cap(m.vertices) {
		m.vertices = m.vertices[:len(vertices)]
	} else {
		m.vertices = make([]core.Vertex, len(vertices), grow(cap(m.vertices), len(vertices)))
	}
	copy(m.vertices, vertices)
	m.vertexCount = len(vertices)

	m.localBounds = spatial.EmptyAABB()
	for i := range m.vertices {
		m.localBounds = m.localBounds.Expand(m.vertices[i].Position)
	}
}

func (m *Mesh) setRaw(raw []byte, vertexCount int) {
	n := vertexCount * m.format.Stride
	if n <= cap(m.raw) {
		m.raw = m.raw[:n]
	} else {
		m.raw = make([]byte, n, grow(cap(m.raw)/m.format.Stride, vertexCount)*m.format.Stride)
	}
	copy(m.raw, raw[:n])
	m.vertexCount = vertexCount

	m.localBounds = spatial.EmptyAABB()
	for i := 0; i < vertexCount; i++ {
		m.localBounds = m.localBounds.Expand(m.format.Position(m.raw, i))
	}
}

func (m *Mesh) setIndices(indices []uint32) {
	if len(indices) <= cap(m.indices) {
		m.indices = m.indices[:len(indices)]
	} else {
		m.indices = make([]uint32, len(indices), grow(cap(m.indices), len(indices)))
	}
	copy(m.indices, indices)
}

func (m *Mesh) setInstances(transforms []math.Mat4) {
	m.instances = append(m.instances[:0], transforms...)
	if m.instances == nil {
		m.instances = []math.Mat4{}
	}
	m.instanceRevision++
}

// View builds a borrowed spatial view. Instanced meshes produce one view
// per instance.
func (m *Mesh) View(meshIndex int, dst []spatial.MeshView) []spatial.MeshView {
	view := spatial.MeshView{
		ObjectID:    m.ObjectID,
		Mesh:        meshIndex,
		Instance:    -1,
		World:       m.world,
		Vertices:    m.vertices,
		Raw:         m.raw,
		Format:      m.format,
		VertexCount: m.vertexCount,
		Indices:     m.indices,
	}
	if m.instances == nil {
		view.Bounds = m.localBounds.Transform(m.world)
		return append(dst, view)
	}
	for i, inst := range m.instances {
		v := view
		v.Instance = i
		v.World = m.world.Mul(inst)
		v.Bounds = m.localBounds.Transform(v.World)
		dst = append(dst, v)
	}
	return dst
}

func cloneFormat(f *core.VertexFormat) *core.VertexFormat {
	return &core.VertexFormat{Stride: f.Stride, Attributes: slices.Clone(f.Attributes)}
}

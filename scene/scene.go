// Package scene holds the meshes, lights and camera a viewport renders.
package scene

import (
	"fmt"
	"iter"
	"log/slog"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/spatial"
)

type slot struct {
	mesh       *Mesh
	generation uint32
}

// Scene owns meshes in an arena of generation-checked slots, plus the
// light slots and ambient colour.
type Scene struct {
	slots []slot
	free  []uint32
	count int

	Lights  LightSlots
	Ambient core.Color

	// scratch for ResolveTransforms
	state []resolveState

	log *slog.Logger
}

func New() *Scene {
	s := &Scene{
		Ambient: core.Color{R: 0.1, G: 0.1, B: 0.1, A: 1},
		log:     core.Logger(),
	}
	s.Lights.log = s.log
	return s
}

// SetLogger replaces the logger used for capacity warnings.
func (s *Scene) SetLogger(l *slog.Logger) {
	s.log = l
	s.Lights.log = l
}

func (s *Scene) insert(m *Mesh) MeshHandle {
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		s.slots = append(s.slots, slot{})
		idx = uint32(len(s.slots) - 1)
	}
	sl := &s.slots[idx]
	sl.generation++
	if sl.generation == 0 {
		sl.generation = 1
	}
	sl.mesh = m
	s.count++
	return MeshHandle{index: idx, generation: sl.generation}
}

// AddMesh copies standard-layout geometry into a new mesh. The caller
// may reuse both slices once it returns.
func (s *Scene) AddMesh(vertices []core.Vertex, indices []uint32, objectID uint32) (MeshHandle, error) {
	if err := validateIndices(indices, len(vertices)); err != nil {
		return MeshHandle{}, fmt.Errorf("failed to add mesh: %w", err)
	}
	m := newMesh(objectID)
	m.vertices = make([]core.Vertex, 0, len(vertices))
	m.indices = make([]uint32, 0, len(indices))
	m.setVertices(vertices)
	m.setIndices(indices)
	return s.insert(m), nil
}

// AddMeshEx adds a mesh whose vertices use a custom interleaved format.
// raw must hold at least vertexCount*format.Stride bytes.
func (s *Scene) AddMeshEx(raw []byte, vertexCount int, format *core.VertexFormat, indices []uint32, objectID uint32) (MeshHandle, error) {
	if format == nil || format.IsStandard() {
		if len(raw) < vertexCount*core.VertexSize {
			return MeshHandle{}, fmt.Errorf("failed to add mesh: %w", ErrShortData)
		}
		return s.AddMesh(core.DecodeStandard(raw, vertexCount, core.StandardFormat()), indices, objectID)
	}
	if err := format.Validate(); err != nil {
		return MeshHandle{}, fmt.Errorf("failed to add mesh: %w", err)
	}
	if vertexCount < 0 || len(raw) < vertexCount*format.Stride {
		return MeshHandle{}, fmt.Errorf("failed to add mesh: %w", ErrShortData)
	}
	if err := validateIndices(indices, vertexCount); err != nil {
		return MeshHandle{}, fmt.Errorf("failed to add mesh: %w", err)
	}

	m := newMesh(objectID)
	m.format = cloneFormat(format)
	m.raw = make([]byte, 0, vertexCount*format.Stride)
	m.indices = make([]uint32, 0, len(indices))
	m.setRaw(raw, vertexCount)
	m.setIndices(indices)
	return s.insert(m), nil
}

// AddInstanced adds one mesh drawn once per transform.
func (s *Scene) AddInstanced(vertices []core.Vertex, indices []uint32, transforms []math.Mat4, objectID uint32) (MeshHandle, error) {
	h, err := s.AddMesh(vertices, indices, objectID)
	if err != nil {
		return h, err
	}
	s.Mesh(h).setInstances(transforms)
	return h, nil
}

// Mesh resolves a handle. Stale or zero handles give nil.
func (s *Scene) Mesh(h MeshHandle) *Mesh {
	if h.generation == 0 || int(h.index) >= len(s.slots) {
		return nil
	}
	sl := &s.slots[h.index]
	if sl.generation != h.generation || sl.mesh == nil {
		return nil
	}
	return sl.mesh
}

// RemoveMesh frees the slot. Children of the removed mesh become roots.
func (s *Scene) RemoveMesh(h MeshHandle) bool {
	if s.Mesh(h) == nil {
		return false
	}
	s.slots[h.index].mesh = nil
	s.free = append(s.free, h.index)
	s.count--
	return true
}

func (s *Scene) Len() int { return s.count }

// All yields live meshes in slot order.
func (s *Scene) All() iter.Seq2[MeshHandle, *Mesh] {
	return func(yield func(MeshHandle, *Mesh) bool) {
		for i := range s.slots {
			sl := &s.slots[i]
			if sl.mesh == nil {
				continue
			}
			if !yield(MeshHandle{index: uint32(i), generation: sl.generation}, sl.mesh) {
				return
			}
		}
	}
}

// Clear removes every mesh and light.
func (s *Scene) Clear() {
	for i := range s.slots {
		if s.slots[i].mesh != nil {
			s.slots[i].mesh = nil
			s.free = append(s.free, uint32(i))
		}
	}
	s.count = 0
	s.Lights.Clear()
}

// UpdateGeometry replaces a mesh's vertices and indices in place. Storage
// is reused when it fits and grows by doubling when it does not.
func (s *Scene) UpdateGeometry(h MeshHandle, vertices []core.Vertex, indices []uint32) error {
	m := s.Mesh(h)
	if m == nil {
		return fmt.Errorf("failed to update %s: stale handle", h)
	}
	if m.format != nil {
		return fmt.Errorf("failed to update %s: mesh uses a custom vertex format", h)
	}
	if err := validateIndices(indices, len(vertices)); err != nil {
		return fmt.Errorf("failed to update %s: %w", h, err)
	}
	m.setVertices(vertices)
	m.setIndices(indices)
	m.revision++
	return nil
}

// UpdateGeometryEx is UpdateGeometry for custom-format meshes.
func (s *Scene) UpdateGeometryEx(h MeshHandle, raw []byte, vertexCount int, indices []uint32) error {
	m := s.Mesh(h)
	if m == nil {
		return fmt.Errorf("failed to update %s: stale handle", h)
	}
	if m.format == nil {
		return fmt.Errorf("failed to update %s: mesh uses the standard layout", h)
	}
	if vertexCount < 0 || len(raw) < vertexCount*m.format.Stride {
		return fmt.Errorf("failed to update %s: %w", h, ErrShortData)
	}
	if err := validateIndices(indices, vertexCount); err != nil {
		return fmt.Errorf("failed to update %s: %w", h, err)
	}
	m.setRaw(raw, vertexCount)
	m.setIndices(indices)
	m.revision++
	return nil
}

func (s *Scene) SetInstanceTransforms(h MeshHandle, transforms []math.Mat4) bool {
	m := s.Mesh(h)
	if m == nil {
		return false
	}
	m.setInstances(transforms)
	return true
}

// SetParent attaches child under parent. Attaching a mesh to itself or to
// one of its own descendants is refused.
func (s *Scene) SetParent(child, parent MeshHandle) bool {
	c := s.Mesh(child)
	if c == nil || s.Mesh(parent) == nil || child == parent {
		return false
	}
	for p := parent; !p.IsNil(); {
		if p == child {
			return false
		}
		pm := s.Mesh(p)
		if pm == nil {
			break
		}
		p = pm.parent
	}
	c.parent = parent
	return true
}

func (s *Scene) ClearParent(child MeshHandle) bool {
	c := s.Mesh(child)
	if c == nil {
		return false
	}
	c.parent = MeshHandle{}
	return true
}

type resolveState uint8

const (
	unresolved resolveState = iota
	resolving
	resolved
)

// ResolveTransforms computes every world transform as
// world(parent) × local. The first pass runs in slot order and handles
// every mesh whose parent is already resolved; the second pass walks up
// the remaining chains. Meshes whose parent is gone are treated as roots.
func (s *Scene) ResolveTransforms() {
	if cap(s.state) < len(s.slots) {
		s.state = make([]resolveState, len(s.slots))
	}
	s.state = s.state[:len(s.slots)]
	clear(s.state)

	pending := false
	for i := range s.slots {
		m := s.slots[i].mesh
		if m == nil {
			continue
		}
		parent := s.Mesh(m.parent)
		switch {
		case parent == nil:
			m.world = m.Local()
			s.state[i] = resolved
		case s.state[m.parent.index] == resolved:
			m.world = parent.world.Mul(m.Local())
			s.state[i] = resolved
		default:
			pending = true
		}
	}
	if !pending {
		return
	}
	for i := range s.slots {
		if s.slots[i].mesh != nil && s.state[i] != resolved {
			s.resolve(uint32(i))
		}
	}
}

func (s *Scene) resolve(idx uint32) math.Mat4 {
	m := s.slots[idx].mesh
	switch s.state[idx] {
	case resolved:
		return m.world
	case resolving:
		// cycle: break it here
		m.world = m.Local()
		return m.world
	}
	s.state[idx] = resolving
	if s.Mesh(m.parent) == nil {
		m.world = m.Local()
	} else {
		m.world = s.resolve(m.parent.index).Mul(m.Local())
	}
	s.state[idx] = resolved
	return m.world
}

// Bounds is the union of the world bounds of visible meshes, as of the
// last ResolveTransforms.
func (s *Scene) Bounds() spatial.AABB {
	box := spatial.EmptyAABB()
	for _, m := range s.All() {
		if m.Visible {
			box = box.Union(m.WorldBounds())
		}
	}
	return box
}

// Views appends a spatial view of every visible mesh.
func (s *Scene) Views(dst []spatial.MeshView) []spatial.MeshView {
	for h, m := range s.All() {
		if m.Visible {
			dst = m.View(h.Index(), dst)
		}
	}
	return dst
}

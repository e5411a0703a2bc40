package spatial

import (
	"viewport-engine/core"
	"viewport-engine/math"
)

// RayHit is the closest surface a CPU raycast found.
type RayHit struct {
	Hit           bool
	ObjectID      uint32
	Distance      float32
	Position      math.Vec3
	Normal        math.Vec3
	Color         core.Color
	U, V          float32
	TriangleIndex int
	Mesh          int
	Instance      int
}

// PickResult is an ID/depth buffer read at one pixel of the last frame.
// Depth is the normalized window depth in [0,1].
type PickResult struct {
	Hit      bool
	ObjectID uint32
	Depth    float32
}

// Raycast finds the closest positive-distance hit. Meshes whose bounds
// the ray misses, or that lie beyond the best hit so far, are skipped
// before any triangle is tested. Object id 0 is unpickable.
func Raycast(s Snapshot, r Ray) RayHit {
	var best RayHit
	bestT := float32(maxDistance)

	for i := range s.meshes {
		m := &s.meshes[i]
		if m.ObjectID == 0 {
			continue
		}
		tNear, _, ok := RayAABB(r, m.Bounds)
		if !ok || tNear > bestT {
			continue
		}

		narrow(m, r, func(tri *Triangle, t, u, v float32) {
			if t >= bestT {
				return
			}
			bestT = t
			n, c := tri.Interpolate(u, v)
			best = RayHit{
				Hit:           true,
				ObjectID:      m.ObjectID,
				Distance:      t,
				Position:      r.At(t),
				Normal:        n,
				Color:         c,
				U:             u,
				V:             v,
				TriangleIndex: tri.Index,
				Mesh:          m.Mesh,
				Instance:      m.Instance,
			}
		})
	}
	return best
}

const maxDistance = 3.4e38

func narrow(m *MeshView, r Ray, hit func(tri *Triangle, t, u, v float32)) {
	var normalMat math.Mat4
	haveNormalMat := false
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c, ok := m.worldPositions(i)
		if !ok {
			continue
		}
		t, u, v, ok := RayTriangle(r, a, b, c)
		if !ok {
			continue
		}
		if !haveNormalMat {
			normalMat = m.World.NormalMatrix()
			haveNormalMat = true
		}
		tri, _ := m.triangle(i, normalMat)
		hit(&tri, t, u, v)
	}
}

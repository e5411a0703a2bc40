// Package io loads meshes from OBJ, glTF and the engine's binary .vmesh
// format and hands them to a viewport.
package io

import (
	"image"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
	"viewport-engine/scene"
	"viewport-engine/spatial"
	"viewport-engine/viewport"
)

// Part is one drawable piece of a loaded model.
type Part struct {
	Name      string
	Geometry  scene.Geometry
	Transform math.Mat4
	BaseColor core.Color
	Opacity   float32
	// Image is the base colour texture, nil when untextured.
	Image image.Image
}

// Model is the CPU-side result of a loader.
type Model struct {
	Name  string
	Parts []Part
}

// Bounds is the union of every part's bounds after its transform.
func (m *Model) Bounds() spatial.AABB {
	box := spatial.EmptyAABB()
	for _, p := range m.Parts {
		pts := make([]math.Vec3, len(p.Geometry.Vertices))
		for i, v := range p.Geometry.Vertices {
			pts[i] = p.Transform.TransformPoint(v.Position)
		}
		box = box.Union(spatial.AABBFromPoints(pts))
	}
	return box
}

// TriangleCount sums the parts.
func (m *Model) TriangleCount() int {
	n := 0
	for _, p := range m.Parts {
		n += len(p.Geometry.Indices) / 3
	}
	return n
}

// Merged bakes every part's transform into one geometry.
func (m *Model) Merged() scene.Geometry {
	var g scene.Geometry
	for _, p := range m.Parts {
		g.Append(p.Geometry.Transform(p.Transform))
	}
	return g
}

// AddTo creates one mesh per part in v. Parts are numbered from
// firstObjectID upwards; 0 keeps every part unpickable. Parts that fail to
// upload are logged by the viewport and left out of the result.
func (m *Model) AddTo(v *viewport.Viewport, firstObjectID uint32) []scene.MeshHandle {
	handles := make([]scene.MeshHandle, 0, len(m.Parts))
	textures := make(map[image.Image]rhi.Texture)
	for i, p := range m.Parts {
		id := firstObjectID
		if id != 0 {
			id += uint32(i)
		}
		h := v.AddGeometry(p.Geometry, id)
		if h.IsNil() {
			continue
		}
		v.SetTransform(h, p.Transform)
		mat := scene.DefaultMaterial()
		mat.BaseColor = p.BaseColor
		if p.Image != nil {
			tex, ok := textures[p.Image]
			if !ok {
				tex = v.CreateTexture(p.Image, rhi.FilterLinear)
				textures[p.Image] = tex
			}
			mat.Texture = tex
		}
		v.SetMaterial(h, mat)
		if p.Opacity > 0 && p.Opacity < 1 {
			v.SetOpacity(h, p.Opacity)
		}
		handles = append(handles, h)
	}
	return handles
}

func newPart(name string) Part {
	return Part{
		Name:      name,
		Transform: math.Mat4Identity(),
		BaseColor: core.ColorWhite,
		Opacity:   1,
	}
}

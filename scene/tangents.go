package scene

import (
	"viewport-engine/core"
	"viewport-engine/math"
)

// TangentFormat is the standard layout followed by a float4 tangent whose
// w holds the bitangent sign.
func TangentFormat() *core.VertexFormat {
	f := core.StandardFormat()
	f.Attributes = append(f.Attributes, core.VertexAttribute{
		Semantic: core.SemanticTangent,
		Format:   core.Float4,
		Offset:   core.VertexSize,
	})
	f.Stride = core.VertexSize + 16
	return f
}

// Tangents computes per-vertex tangent frames from the UVs. Triangles
// with a degenerate UV area contribute nothing; vertices left without a
// tangent get an arbitrary one perpendicular to the normal.
func Tangents(g Geometry) []math.Vec4 {
	tan := make([]math.Vec3, len(g.Vertices))
	bit := make([]math.Vec3, len(g.Vertices))

	for i := 0; i+2 < len(g.Indices); i += 3 {
		i0, i1, i2 := g.Indices[i], g.Indices[i+1], g.Indices[i+2]
		v0, v1, v2 := g.Vertices[i0], g.Vertices[i1], g.Vertices[i2]

		e1 := v1.Position.Sub(v0.Position)
		e2 := v2.Position.Sub(v0.Position)
		du1, dv1 := v1.UV.X-v0.UV.X, v1.UV.Y-v0.UV.Y
		du2, dv2 := v2.UV.X-v0.UV.X, v2.UV.Y-v0.UV.Y

		det := du1*dv2 - du2*dv1
		if det == 0 {
			continue
		}
		r := 1 / det
		t := e1.Mul(dv2 * r).Sub(e2.Mul(dv1 * r))
		b := e2.Mul(du1 * r).Sub(e1.Mul(du2 * r))
		for _, idx := range [3]uint32{i0, i1, i2} {
			tan[idx] = tan[idx].Add(t)
			bit[idx] = bit[idx].Add(b)
		}
	}

	out := make([]math.Vec4, len(g.Vertices))
	for i, v := range g.Vertices {
		n := v.Normal
		// Gram-Schmidt
		t := tan[i].Sub(n.Mul(n.Dot(tan[i])))
		if t.LengthSqr() < 1e-8 {
			if n.X > -0.9 && n.X < 0.9 {
				t = math.Vec3Right.Sub(n.Mul(n.X))
			} else {
				t = math.Vec3Up.Sub(n.Mul(n.Y))
			}
		}
		t = t.Normalize()
		w := float32(1)
		if n.Cross(t).Dot(bit[i]) < 0 {
			w = -1
		}
		out[i] = t.ToVec4(w)
	}
	return out
}

// EncodeWithTangents interleaves g and its tangents in TangentFormat.
func EncodeWithTangents(g Geometry) ([]byte, *core.VertexFormat) {
	f := TangentFormat()
	tangents := Tangents(g)
	std := core.EncodeVertices(g.Vertices)
	raw := make([]byte, len(g.Vertices)*f.Stride)
	tangent := f.Attributes[len(f.Attributes)-1]
	for i, t := range tangents {
		copy(raw[i*f.Stride:], std[i*core.VertexSize:(i+1)*core.VertexSize])
		f.WriteAttribute(raw, i, tangent, [4]float32{t.X, t.Y, t.Z, t.W})
	}
	return raw, f
}

package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	stdmath "math"

	"viewport-engine/math"
)

type Semantic uint8

const (
	SemanticPosition Semantic = iota
	SemanticNormal
	SemanticColor
	SemanticTexCoord
	SemanticTangent
	SemanticHeat
	SemanticBoneWeights
	SemanticBoneIndices
	SemanticCustom
)

func (s Semantic) String() string {
	switch s {
	case SemanticPosition:
		return "position"
	case SemanticNormal:
		return "normal"
	case SemanticColor:
		return "color"
	case SemanticTexCoord:
		return "texcoord"
	case SemanticTangent:
		return "tangent"
	case SemanticHeat:
		return "heat"
	case SemanticBoneWeights:
		return "bone_weights"
	case SemanticBoneIndices:
		return "bone_indices"
	default:
		return "custom"
	}
}

type AttribFormat uint8

const (
	Float1 AttribFormat = iota
	Float2
	Float3
	Float4
	UByte4Norm
	UInt4
)

// Size returns the attribute's byte size.
func (f AttribFormat) Size() int {
	switch f {
	case Float1:
		return 4
	case Float2:
		return 8
	case Float3:
		return 12
	case Float4:
		return 16
	case UByte4Norm:
		return 4
	case UInt4:
		return 16
	}
	return 0
}

// Components returns the number of scalar components.
func (f AttribFormat) Components() int {
	switch f {
	case Float1:
		return 1
	case Float2:
		return 2
	case Float3:
		return 3
	default:
		return 4
	}
}

type VertexAttribute struct {
	Semantic Semantic
	Format   AttribFormat
	Offset   int
}

// VertexFormat describes an interleaved vertex layout.
type VertexFormat struct {
	Stride     int
	Attributes []VertexAttribute
}

var (
	ErrNoPosition        = errors.New("vertex format has no position attribute")
	ErrDuplicatePosition = errors.New("vertex format has more than one position attribute")
)

// StandardFormat describes Vertex.
func StandardFormat() *VertexFormat {
	return &VertexFormat{
		Stride: VertexSize,
		Attributes: []VertexAttribute{
			{SemanticPosition, Float3, OffsetPosition},
			{SemanticNormal, Float3, OffsetNormal},
			{SemanticColor, Float4, OffsetColor},
			{SemanticTexCoord, Float2, OffsetUV},
		},
	}
}

// IsStandard reports whether f is nil or byte-compatible with Vertex.
func (f *VertexFormat) IsStandard() bool {
	if f == nil {
		return true
	}
	std := StandardFormat()
	if f.Stride != std.Stride || len(f.Attributes) != len(std.Attributes) {
		return false
	}
	for i, a := range f.Attributes {
		if a != std.Attributes[i] {
			return false
		}
	}
	return true
}

func (f *VertexFormat) Validate() error {
	if f.Stride <= 0 {
		return fmt.Errorf("invalid vertex stride %d", f.Stride)
	}
	positions := 0
	for _, a := range f.Attributes {
		if a.Semantic == SemanticPosition {
			positions++
			if a.Format != Float3 {
				return fmt.Errorf("position attribute must be float3, got format %d", a.Format)
			}
		}
		if a.Offset < 0 || a.Offset+a.Format.Size() > f.Stride {
			return fmt.Errorf("attribute %s at offset %d overflows stride %d", a.Semantic, a.Offset, f.Stride)
		}
	}
	switch {
	case positions == 0:
		return ErrNoPosition
	case positions > 1:
		return ErrDuplicatePosition
	}
	return nil
}

// Find returns the first attribute with the given semantic.
func (f *VertexFormat) Find(s Semantic) (VertexAttribute, bool) {
	for _, a := range f.Attributes {
		if a.Semantic == s {
			return a, true
		}
	}
	return VertexAttribute{}, false
}

// ReadAttribute reads attribute a of vertex i as up to four floats.
func (f *VertexFormat) ReadAttribute(raw []byte, i int, a VertexAttribute) [4]float32 {
	var out [4]float32
	base := i*f.Stride + a.Offset
	switch a.Format {
	case UByte4Norm:
		for c := 0; c < 4; c++ {
			out[c] = float32(raw[base+c]) / 255
		}
	case UInt4:
		for c := 0; c < 4; c++ {
			out[c] = float32(binary.LittleEndian.Uint32(raw[base+c*4:]))
		}
	default:
		for c := 0; c < a.Format.Components(); c++ {
			out[c] = stdmath.Float32frombits(binary.LittleEndian.Uint32(raw[base+c*4:]))
		}
	}
	return out
}

// WriteAttribute is the inverse of ReadAttribute. UByte4Norm values are
// clamped to [0,1].
func (f *VertexFormat) WriteAttribute(raw []byte, i int, a VertexAttribute, v [4]float32) {
	base := i*f.Stride + a.Offset
	switch a.Format {
	case UByte4Norm:
		for c := 0; c < 4; c++ {
			raw[base+c] = uint8(math.Clamp(v[c], 0, 1)*255 + 0.5)
		}
	case UInt4:
		for c := 0; c < 4; c++ {
			binary.LittleEndian.PutUint32(raw[base+c*4:], uint32(v[c]))
		}
	default:
		putFloats(raw[base:], v[:a.Format.Components()]...)
	}
}

// Position reads the position of vertex i.
func (f *VertexFormat) Position(raw []byte, i int) math.Vec3 {
	a, _ := f.Find(SemanticPosition)
	p := f.ReadAttribute(raw, i, a)
	return math.Vec3{X: p[0], Y: p[1], Z: p[2]}
}

// DecodeStandard converts vertexCount vertices of raw data into the
// standard layout. Missing channels default to normal +Z, white and uv 0.
func DecodeStandard(raw []byte, vertexCount int, f *VertexFormat) []Vertex {
	out := make([]Vertex, vertexCount)
	for i := range out {
		out[i] = f.DecodeVertex(raw, i)
	}
	return out
}

// DecodeVertex reads vertex i into the standard layout.
func (f *VertexFormat) DecodeVertex(raw []byte, i int) Vertex {
	v := Vertex{Normal: math.Vec3Front, Color: ColorWhite}
	for _, a := range f.Attributes {
		switch a.Semantic {
		case SemanticPosition:
			p := f.ReadAttribute(raw, i, a)
			v.Position = math.Vec3{X: p[0], Y: p[1], Z: p[2]}
		case SemanticNormal:
			n := f.ReadAttribute(raw, i, a)
			v.Normal = math.Vec3{X: n[0], Y: n[1], Z: n[2]}
		case SemanticColor:
			c := f.ReadAttribute(raw, i, a)
			v.Color = Color{c[0], c[1], c[2], 1}
			if a.Format.Components() == 4 {
				v.Color.A = c[3]
			}
		case SemanticTexCoord:
			t := f.ReadAttribute(raw, i, a)
			v.UV = math.Vec2{X: t[0], Y: t[1]}
		}
	}
	return v
}

// EncodeVertices serialises standard vertices into their 48-byte layout.
func EncodeVertices(vertices []Vertex) []byte {
	return AppendVertices(nil, vertices)
}

// AppendVertices is EncodeVertices into dst's spare capacity.
func AppendVertices(dst []byte, vertices []Vertex) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, len(vertices)*VertexSize)...)
	for i, v := range vertices {
		b := dst[n+i*VertexSize:]
		putFloats(b[OffsetPosition:], v.Position.X, v.Position.Y, v.Position.Z)
		putFloats(b[OffsetNormal:], v.Normal.X, v.Normal.Y, v.Normal.Z)
		putFloats(b[OffsetColor:], v.Color.R, v.Color.G, v.Color.B, v.Color.A)
		putFloats(b[OffsetUV:], v.UV.X, v.UV.Y)
	}
	return dst
}

func putFloats(b []byte, fs ...float32) {
	for i, f := range fs {
		binary.LittleEndian.PutUint32(b[i*4:], stdmath.Float32bits(f))
	}
}

// EncodeIndices serialises indices as little-endian uint32.
func EncodeIndices(indices []uint32) []byte {
	return AppendIndices(nil, indices)
}

func AppendIndices(dst []byte, indices []uint32) []byte {
	for _, idx := range indices {
		dst = binary.LittleEndian.AppendUint32(dst, idx)
	}
	return dst
}

package io

import (
	"encoding/binary"
	"errors"
	"fmt"
	stdio "io"
	stdmath "math"
	"unsafe"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/scene"
	"viewport-engine/spatial"
	"viewport-engine/viewport"
)

// Binary mesh layout, little-endian:
//
//	0   magic "VMSH"
//	4   version u32
//	8   flags u32
//	12  vertex count u32
//	16  index count u32
//	20  vertex stride u32
//	24  attribute count u32
//	28  vertex block offset u64
//	36  index block offset u64
//	44  bounds min xyz, max xyz (6 f32)
//	68  object id u32
//	72  4 attribute descriptors of 8 bytes {semantic u8, format u8, pad u16, offset u32}
//	104 reserved to 128
//
// The vertex block follows the header and the u32 index block follows the
// vertices, both 4-byte aligned.
const (
	VMeshHeaderSize = 128
	VMeshVersion    = 1
	VMeshMaxAttribs = 4

	vmeshMagic = "VMSH"
	attrBase   = 72
	attrSize   = 8
)

// FlagStandard marks a vertex block in the 48-byte Vertex layout.
const FlagStandard uint32 = 1

var (
	ErrNotVMesh       = errors.New("not a vmesh file")
	ErrVMeshVersion   = errors.New("unsupported vmesh version")
	ErrVMeshTruncated = errors.New("vmesh file truncated")
	ErrTooManyAttribs = errors.New("vertex format has more than 4 attributes")
)

// VMeshHeader is the decoded fixed header.
type VMeshHeader struct {
	Version      uint32
	Flags        uint32
	VertexCount  uint32
	IndexCount   uint32
	Stride       uint32
	VertexOffset uint64
	IndexOffset  uint64
	Bounds       spatial.AABB
	ObjectID     uint32
	Format       *core.VertexFormat
}

// WriteVMesh encodes a mesh. A nil or standard format writes the 48-byte
// Vertex layout. raw must hold vertexCount*format.Stride bytes.
func WriteVMesh(w stdio.Writer, raw []byte, vertexCount int, format *core.VertexFormat, indices []uint32, objectID uint32) error {
	if format == nil {
		format = core.StandardFormat()
	}
	if err := format.Validate(); err != nil {
		return fmt.Errorf("failed to write vmesh: %w", err)
	}
	if len(format.Attributes) > VMeshMaxAttribs {
		return fmt.Errorf("failed to write vmesh: %w", ErrTooManyAttribs)
	}
	if vertexCount < 0 || len(raw) < vertexCount*format.Stride {
		return fmt.Errorf("failed to write vmesh: %w", scene.ErrShortData)
	}
	for _, i := range indices {
		if int(i) >= vertexCount {
			return fmt.Errorf("failed to write vmesh: %w", scene.ErrIndexRange)
		}
	}

	vbytes := vertexCount * format.Stride
	voff := uint64(VMeshHeaderSize)
	ioff := align4(voff + uint64(vbytes))

	box := spatial.EmptyAABB()
	for i := range vertexCount {
		box = box.Expand(format.Position(raw, i))
	}

	h := make([]byte, VMeshHeaderSize)
	copy(h, vmeshMagic)
	le := binary.LittleEndian
	le.PutUint32(h[4:], VMeshVersion)
	var flags uint32
	if format.IsStandard() {
		flags |= FlagStandard
	}
	le.PutUint32(h[8:], flags)
	le.PutUint32(h[12:], uint32(vertexCount))
	le.PutUint32(h[16:], uint32(len(indices)))
	le.PutUint32(h[20:], uint32(format.Stride))
	le.PutUint32(h[24:], uint32(len(format.Attributes)))
	le.PutUint64(h[28:], voff)
	le.PutUint64(h[36:], ioff)
	for i, f := range [6]float32{box.Min.X, box.Min.Y, box.Min.Z, box.Max.X, box.Max.Y, box.Max.Z} {
		le.PutUint32(h[44+i*4:], stdmath.Float32bits(f))
	}
	le.PutUint32(h[68:], objectID)
	for i, a := range format.Attributes {
		d := h[attrBase+i*attrSize:]
		d[0], d[1] = byte(a.Semantic), byte(a.Format)
		le.PutUint32(d[4:], uint32(a.Offset))
	}

	if _, err := w.Write(h); err != nil {
		return fmt.Errorf("failed to write vmesh header: %w", err)
	}
	if _, err := w.Write(raw[:vbytes]); err != nil {
		return fmt.Errorf("failed to write vertices: %w", err)
	}
	if pad := ioff - voff - uint64(vbytes); pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("failed to write vertices: %w", err)
		}
	}
	if _, err := w.Write(core.EncodeIndices(indices)); err != nil {
		return fmt.Errorf("failed to write indices: %w", err)
	}
	return nil
}

// WriteGeometry writes standard-layout geometry.
func WriteGeometry(w stdio.Writer, g scene.Geometry, objectID uint32) error {
	return WriteVMesh(w, core.EncodeVertices(g.Vertices), len(g.Vertices), nil, g.Indices, objectID)
}

func align4(n uint64) uint64 { return (n + 3) &^ 3 }

// ParseVMeshHeader validates and decodes the header at the start of data.
func ParseVMeshHeader(data []byte) (VMeshHeader, error) {
	var h VMeshHeader
	if len(data) < VMeshHeaderSize || string(data[:4]) != vmeshMagic {
		return h, ErrNotVMesh
	}
	le := binary.LittleEndian
	h.Version = le.Uint32(data[4:])
	if h.Version != VMeshVersion {
		return h, fmt.Errorf("%w: %d", ErrVMeshVersion, h.Version)
	}
	h.Flags = le.Uint32(data[8:])
	h.VertexCount = le.Uint32(data[12:])
	h.IndexCount = le.Uint32(data[16:])
	h.Stride = le.Uint32(data[20:])
	attribs := le.Uint32(data[24:])
	h.VertexOffset = le.Uint64(data[28:])
	h.IndexOffset = le.Uint64(data[36:])
	var f [6]float32
	for i := range f {
		f[i] = stdmath.Float32frombits(le.Uint32(data[44+i*4:]))
	}
	h.Bounds = spatial.AABB{Min: math.Vec3{X: f[0], Y: f[1], Z: f[2]}, Max: math.Vec3{X: f[3], Y: f[4], Z: f[5]}}
	h.ObjectID = le.Uint32(data[68:])

	if attribs == 0 || attribs > VMeshMaxAttribs {
		return h, fmt.Errorf("%w: %d attributes", ErrNotVMesh, attribs)
	}
	h.Format = &core.VertexFormat{Stride: int(h.Stride)}
	for i := range int(attribs) {
		d := data[attrBase+i*attrSize:]
		h.Format.Attributes = append(h.Format.Attributes, core.VertexAttribute{
			Semantic: core.Semantic(d[0]),
			Format:   core.AttribFormat(d[1]),
			Offset:   int(le.Uint32(d[4:])),
		})
	}
	if err := h.Format.Validate(); err != nil {
		return h, fmt.Errorf("%w: %w", ErrNotVMesh, err)
	}

	vend := h.VertexOffset + uint64(h.VertexCount)*uint64(h.Stride)
	iend := h.IndexOffset + uint64(h.IndexCount)*4
	if h.VertexOffset < VMeshHeaderSize || h.IndexOffset < vend || h.IndexOffset%4 != 0 || iend > uint64(len(data)) {
		return h, ErrVMeshTruncated
	}
	return h, nil
}

// MeshFile is an open .vmesh file. Its vertex and index views alias the
// file mapping and stay valid until Close.
type MeshFile struct {
	Header VMeshHeader
	data   []byte
	unmap  func() error
}

// LoadVMesh maps path read-only where the platform allows and reads it
// whole elsewhere.
func LoadVMesh(path string) (*MeshFile, error) {
	data, unmap, err := mapFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vmesh: %w", err)
	}
	h, err := ParseVMeshHeader(data)
	if err != nil {
		unmap()
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return &MeshFile{Header: h, data: data, unmap: unmap}, nil
}

// ReadVMesh decodes a vmesh already in memory. The result aliases data.
func ReadVMesh(data []byte) (*MeshFile, error) {
	h, err := ParseVMeshHeader(data)
	if err != nil {
		return nil, err
	}
	return &MeshFile{Header: h, data: data, unmap: func() error { return nil }}, nil
}

func (f *MeshFile) Close() error {
	if f.data == nil {
		return nil
	}
	f.data = nil
	return f.unmap()
}

func (f *MeshFile) VertexCount() int { return int(f.Header.VertexCount) }

func (f *MeshFile) Format() *core.VertexFormat { return f.Header.Format }

// Raw is the interleaved vertex block.
func (f *MeshFile) Raw() []byte {
	if f.data == nil {
		return nil
	}
	n := uint64(f.Header.VertexCount) * uint64(f.Header.Stride)
	return f.data[f.Header.VertexOffset : f.Header.VertexOffset+n]
}

// Indices views the index block without copying on little-endian hosts
// with an aligned mapping; otherwise it decodes a copy.
func (f *MeshFile) Indices() []uint32 {
	if f.data == nil || f.Header.IndexCount == 0 {
		return nil
	}
	b := f.data[f.Header.IndexOffset : f.Header.IndexOffset+uint64(f.Header.IndexCount)*4]
	if nativeLittle && uintptr(unsafe.Pointer(&b[0]))%4 == 0 {
		return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), f.Header.IndexCount)
	}
	out := make([]uint32, f.Header.IndexCount)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

// Vertices views a standard-layout vertex block as []core.Vertex, the
// same way Indices does. Other layouts are decoded into a new slice.
func (f *MeshFile) Vertices() []core.Vertex {
	raw := f.Raw()
	if len(raw) == 0 {
		return nil
	}
	n := int(f.Header.VertexCount)
	if f.Header.Flags&FlagStandard != 0 && nativeLittle && uintptr(unsafe.Pointer(&raw[0]))%4 == 0 {
		return unsafe.Slice((*core.Vertex)(unsafe.Pointer(&raw[0])), n)
	}
	return core.DecodeStandard(raw, n, f.Header.Format)
}

// AddTo uploads the mesh to v under its stored object ID. The scene
// copies the data, so the file may be closed afterwards.
func (f *MeshFile) AddTo(v *viewport.Viewport) scene.MeshHandle {
	if f.data == nil {
		return scene.MeshHandle{}
	}
	if f.Header.Flags&FlagStandard != 0 {
		return v.AddMesh(f.Vertices(), f.Indices(), f.Header.ObjectID)
	}
	return v.AddMeshEx(f.Raw(), f.VertexCount(), f.Header.Format, f.Indices(), f.Header.ObjectID)
}

var nativeLittle = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

package rhi

import (
	"encoding/binary"
	stdmath "math"

	"viewport-engine/math"
)

// std140 block sizes shared by the GPU backends.
//
//	layout(std140) uniform Frame {
//	    mat4  viewProj;
//	    vec4  cameraPos;
//	    vec4  ambient;
//	    ivec4 counts;        // x = lightCount, y = depthZeroToOne
//	    Light lights[8];     // int kind; vec4 position, direction, color, params
//	};
//	layout(std140) uniform Draw {
//	    mat4  model;
//	    mat4  normalMat;
//	    vec4  baseColor;
//	    uvec4 misc;          // x = objectID, y = shadingMode, z = hasTexture
//	};
const (
	lightStride       = 80
	FrameUniformSize  = 64 + 16 + 16 + 16 + MaxLights*lightStride
	DrawUniformSize   = 64 + 64 + 16 + 16
	frameLightsOffset = 112
)

// PackFrameUniforms writes the Frame block into dst, which must be at
// least FrameUniformSize bytes.
func PackFrameUniforms(dst []byte, f *FrameParams, depthZeroToOne bool) {
	clear(dst[:FrameUniformSize])
	putMat(dst[0:], f.ViewProj)
	putVec4(dst[64:], f.CameraPos.X, f.CameraPos.Y, f.CameraPos.Z, 1)
	putVec4(dst[80:], f.Ambient.R, f.Ambient.G, f.Ambient.B, f.Ambient.A)

	n := min(len(f.Lights), MaxLights)
	binary.LittleEndian.PutUint32(dst[96:], uint32(n))
	if depthZeroToOne {
		binary.LittleEndian.PutUint32(dst[100:], 1)
	}
	for i := 0; i < n; i++ {
		l := &f.Lights[i]
		b := dst[frameLightsOffset+i*lightStride:]
		binary.LittleEndian.PutUint32(b[0:], uint32(l.Type))
		putVec4(b[16:], l.Position.X, l.Position.Y, l.Position.Z, 1)
		putVec4(b[32:], l.Direction.X, l.Direction.Y, l.Direction.Z, 0)
		putVec4(b[48:], l.Color.R, l.Color.G, l.Color.B, 1)
		putVec4(b[64:], l.Intensity, l.Range, l.InnerCos, l.OuterCos)
	}
}

// PackDrawUniforms writes the Draw block for a call into dst.
func PackDrawUniforms(dst []byte, c *DrawCall) {
	putMat(dst[0:], c.Model)
	putMat(dst[64:], c.Model.NormalMatrix())
	base := c.Material.BaseColor
	opacity := c.Material.Opacity
	if opacity <= 0 {
		opacity = 1
	}
	putVec4(dst[128:], base.R, base.G, base.B, base.A*opacity)
	binary.LittleEndian.PutUint32(dst[144:], c.ObjectID)
	binary.LittleEndian.PutUint32(dst[148:], uint32(c.Shading))
	var hasTexture uint32
	if c.Material.Texture != 0 {
		hasTexture = 1
	}
	binary.LittleEndian.PutUint32(dst[152:], hasTexture)
	binary.LittleEndian.PutUint32(dst[156:], 0)
}

func putMat(dst []byte, m math.Mat4) {
	f := m.Flatten()
	for i, v := range f {
		binary.LittleEndian.PutUint32(dst[i*4:], stdmath.Float32bits(v))
	}
}

func putVec4(dst []byte, x, y, z, w float32) {
	binary.LittleEndian.PutUint32(dst[0:], stdmath.Float32bits(x))
	binary.LittleEndian.PutUint32(dst[4:], stdmath.Float32bits(y))
	binary.LittleEndian.PutUint32(dst[8:], stdmath.Float32bits(z))
	binary.LittleEndian.PutUint32(dst[12:], stdmath.Float32bits(w))
}

// AlignUp rounds n up to a multiple of align (a power of two or any
// positive value).
func AlignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

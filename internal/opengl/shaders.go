package opengl

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"

	"viewport-engine/rhi"
)

// Attribute locations shared by every VAO.
const (
	locPosition = 0
	locNormal   = 1
	locColor    = 2
	locUV       = 3
	locInstance = 4 // mat4, 4 slots
)

// Uniform block bindings.
const (
	frameBinding = 0
	drawBinding  = 1
)

const blocksGLSL = `
struct Light {
    int  kind;
    vec4 position;
    vec4 direction;
    vec4 color;
    vec4 params; // intensity, range, innerCos, outerCos
};

layout(std140) uniform Frame {
    mat4  viewProj;
    vec4  cameraPos;
    vec4  ambient;
    ivec4 counts;
    Light lights[8];
};

layout(std140) uniform Draw {
    mat4  model;
    mat4  normalMat;
    vec4  baseColor;
    uvec4 misc;
};
`

const vertexSrc = `#version 410 core
` + blocksGLSL + `
layout(location = 0) in vec3 aPosition;
layout(location = 1) in vec3 aNormal;
layout(location = 2) in vec4 aColor;
layout(location = 3) in vec2 aUV;
layout(location = 4) in mat4 aInstance;

uniform int   instanced;
uniform float depthBias;

out vec3 vWorld;
out vec3 vNormal;
out vec4 vColor;
out vec2 vUV;

void main() {
    vec3 n;
    mat4 m = model;
    if (instanced != 0) {
        m = model * aInstance;
        n = transpose(inverse(mat3(m))) * aNormal;
    } else {
        n = mat3(normalMat) * aNormal;
    }
    vec4 world = m * vec4(aPosition, 1.0);
    vWorld = world.xyz;
    vNormal = n;
    vColor = aColor;
    vUV = aUV;
    gl_Position = viewProj * world;
    gl_Position.z -= depthBias * gl_Position.w;
}
`

const fragmentSrc = `#version 410 core
` + blocksGLSL + `
#define lightCount counts.x
#define shadingMode int(misc.y)

in vec3 vWorld;
in vec3 vNormal;
in vec4 vColor;
in vec2 vUV;

uniform sampler2D baseTex;
uniform int lineMode;

layout(location = 0) out vec4 outColor;
layout(location = 1) out uint outID;
` + rhi.LightingGLSL + `
void main() {
    vec4 base = vColor * baseColor;
    if (misc.z != 0u && lineMode == 0) {
        base *= texture(baseTex, vUV);
    }
    outColor = shade(base, vNormal, vWorld);
    outID = misc.x;
}
`

// program is the single shader program with its uniform locations.
type program struct {
	id        uint32
	instanced int32
	depthBias int32
	lineMode  int32
}

func newProgram() (*program, error) {
	vert, err := compileShader(vertexSrc, gl.VERTEX_SHADER)
	if err != nil {
		return nil, fmt.Errorf("vertex: %w", err)
	}
	defer gl.DeleteShader(vert)
	frag, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		return nil, fmt.Errorf("fragment: %w", err)
	}
	defer gl.DeleteShader(frag)

	id := gl.CreateProgram()
	gl.AttachShader(id, vert)
	gl.AttachShader(id, frag)
	gl.BindFragDataLocation(id, 0, gl.Str("outColor\x00"))
	gl.BindFragDataLocation(id, 1, gl.Str("outID\x00"))
	gl.LinkProgram(id)

	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(id, gl.INFO_LOG_LENGTH, &n)
		msg := strings.Repeat("\x00", int(n+1))
		gl.GetProgramInfoLog(id, n, nil, gl.Str(msg))
		gl.DeleteProgram(id)
		return nil, fmt.Errorf("link failed: %s", strings.TrimRight(msg, "\x00"))
	}

	gl.UniformBlockBinding(id, gl.GetUniformBlockIndex(id, gl.Str("Frame\x00")), frameBinding)
	gl.UniformBlockBinding(id, gl.GetUniformBlockIndex(id, gl.Str("Draw\x00")), drawBinding)

	p := &program{
		id:        id,
		instanced: gl.GetUniformLocation(id, gl.Str("instanced\x00")),
		depthBias: gl.GetUniformLocation(id, gl.Str("depthBias\x00")),
		lineMode:  gl.GetUniformLocation(id, gl.Str("lineMode\x00")),
	}
	gl.UseProgram(id)
	gl.Uniform1i(gl.GetUniformLocation(id, gl.Str("baseTex\x00")), 0)
	return p, nil
}

func compileShader(src string, kind uint32) (uint32, error) {
	shader := gl.CreateShader(kind)
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &n)
		msg := strings.Repeat("\x00", int(n+1))
		gl.GetShaderInfoLog(shader, n, nil, gl.Str(msg))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %s", strings.TrimRight(msg, "\x00"))
	}
	return shader, nil
}

func (p *program) destroy() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}

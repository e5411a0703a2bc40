package vulkan

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	vk "github.com/goki/vulkan"

	"viewport-engine/rhi"
)

const blocksGLSL = `
struct Light {
    int  kind;
    vec4 position;
    vec4 direction;
    vec4 color;
    vec4 params; // intensity, range, innerCos, outerCos
};

layout(set = 0, binding = 0, std140) uniform Frame {
    mat4  viewProj;
    vec4  cameraPos;
    vec4  ambient;
    ivec4 counts;
    Light lights[8];
};

layout(set = 0, binding = 1, std140) uniform Draw {
    mat4  model;
    mat4  normalMat;
    vec4  baseColor;
    uvec4 misc;
};

layout(push_constant) uniform Push {
    int   instanced;
    int   lineMode;
    float depthBias;
} pc;
`

const vertexSrc = `#version 450
` + blocksGLSL + `
layout(location = 0) in vec3 aPosition;
layout(location = 1) in vec3 aNormal;
layout(location = 2) in vec4 aColor;
layout(location = 3) in vec2 aUV;
layout(location = 4) in mat4 aInstance;

layout(location = 0) out vec3 vWorld;
layout(location = 1) out vec3 vNormal;
layout(location = 2) out vec4 vColor;
layout(location = 3) out vec2 vUV;

void main() {
    vec3 n;
    mat4 m = model;
    if (pc.instanced != 0) {
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

    vec4 clip = viewProj * world;
    clip.z -= pc.depthBias * clip.w;
    // y points down in framebuffer space; depth range is [0,1]
    clip.y = -clip.y;
    if (counts.y != 0) {
        clip.z = (clip.z + clip.w) * 0.5;
    }
    gl_Position = clip;
}
`

const fragmentSrc = `#version 450
` + blocksGLSL + `
#define lightCount counts.x
#define shadingMode int(misc.y)

layout(location = 0) in vec3 vWorld;
layout(location = 1) in vec3 vNormal;
layout(location = 2) in vec4 vColor;
layout(location = 3) in vec2 vUV;

layout(set = 0, binding = 2) uniform sampler2D baseTex;

layout(location = 0) out vec4 outColor;
layout(location = 1) out uint outID;
` + rhi.LightingGLSL + `
void main() {
    vec4 base = vColor * baseColor;
    if (misc.z != 0u && pc.lineMode == 0) {
        base *= texture(baseTex, vUV);
    }
    outColor = shade(base, vNormal, vWorld);
    outID = misc.x;
}
`

// CompileGLSL turns GLSL into SPIR-V with glslc, or glslangValidator
// when glslc is not on PATH. stage is "vert" or "frag".
func CompileGLSL(source, stage string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "vpshader")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "shader."+stage)
	out := filepath.Join(dir, "shader.spv")
	if err := os.WriteFile(src, []byte(source), 0o644); err != nil {
		return nil, err
	}

	var cmd *exec.Cmd
	if _, err := exec.LookPath("glslc"); err == nil {
		cmd = exec.Command("glslc", "-O", "-o", out, src)
	} else if _, err := exec.LookPath("glslangValidator"); err == nil {
		cmd = exec.Command("glslangValidator", "-V", "-o", out, src)
	} else {
		return nil, fmt.Errorf("no shader compiler found (glslc or glslangValidator)")
	}
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s shader compilation failed: %w\n%s", stage, err, stderr.String())
	}

	spv, err := os.ReadFile(out)
	if err != nil {
		return nil, err
	}
	if len(spv) == 0 || len(spv)%4 != 0 {
		return nil, fmt.Errorf("%s shader: malformed SPIR-V (%d bytes)", stage, len(spv))
	}
	return spv, nil
}

func newShaderModule(g *gpu, spv []byte) (vk.ShaderModule, error) {
	words := make([]uint32, len(spv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spv[i*4:])
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(spv)),
		PCode:    words,
	}
	var m vk.ShaderModule
	if err := check(vk.CreateShaderModule(g.device, &info, nil, &m), "vkCreateShaderModule"); err != nil {
		return m, err
	}
	return m, nil
}

// shaders holds the compiled vertex and fragment modules.
type shaders struct {
	vert, frag vk.ShaderModule
}

func newShaders(g *gpu, log *slog.Logger) (*shaders, error) {
	code := make([][]byte, len(ShaderStages))
	for i, st := range ShaderStages {
		spv, embedded, err := loadSPIRV(spirvFS, st, CompileGLSL)
		if err != nil {
			return nil, err
		}
		if !embedded {
			log.Warn("embedded SPIR-V missing or stale, compiled at runtime", "shader", st.Name)
		}
		code[i] = spv
	}
	var err error
	s := &shaders{}
	if s.vert, err = newShaderModule(g, code[0]); err != nil {
		return nil, err
	}
	if s.frag, err = newShaderModule(g, code[1]); err != nil {
		vk.DestroyShaderModule(g.device, s.vert, nil)
		return nil, err
	}
	return s, nil
}

func (s *shaders) stages() []vk.PipelineShaderStageCreateInfo {
	return []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: s.vert,
			PName:  cstr("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: s.frag,
			PName:  cstr("main"),
		},
	}
}

func (s *shaders) destroy(g *gpu) {
	vk.DestroyShaderModule(g.device, s.vert, nil)
	vk.DestroyShaderModule(g.device, s.frag, nil)
}

package rhi

import (
	"viewport-engine/core"
	"viewport-engine/math"
)

// Shade evaluates the engine's lighting model for one surface point. The
// GPU backends run LightingGLSL, which is the same arithmetic.
func Shade(mode ShadingMode, base core.Color, n, p math.Vec3, frame *FrameParams) core.Color {
	switch mode {
	case ShadeUnlit:
		return base
	case ShadeNormals:
		n = n.Normalize()
		return core.Color{R: n.X*0.5 + 0.5, G: n.Y*0.5 + 0.5, B: n.Z*0.5 + 0.5, A: base.A}
	}

	n = n.Normalize()
	r := base.R * frame.Ambient.R
	g := base.G * frame.Ambient.G
	b := base.B * frame.Ambient.B

	for i := range frame.Lights {
		l := &frame.Lights[i]
		var dir math.Vec3
		atten := float32(1)

		switch l.Type {
		case LightDirectional:
			dir = l.Direction.Negate().Normalize()
		default:
			toLight := l.Position.Sub(p)
			d := toLight.Length()
			if d <= 0 {
				continue
			}
			dir = toLight.Mul(1 / d)
			atten = rangeAttenuation(d, l.Range)
			if l.Type == LightSpot {
				atten *= smoothstep(l.OuterCos, l.InnerCos, dir.Negate().Dot(l.Direction.Normalize()))
			}
		}

		ndl := n.Dot(dir)
		if ndl <= 0 || atten <= 0 {
			continue
		}
		k := ndl * atten * l.Intensity
		r += base.R * l.Color.R * k
		g += base.G * l.Color.G * k
		b += base.B * l.Color.B * k
	}
	return core.Color{R: r, G: g, B: b, A: base.A}
}

func rangeAttenuation(d, rng float32) float32 {
	if rng <= 0 {
		return 1
	}
	x := math.Clamp(1-(d/rng)*(d/rng), 0, 1)
	return x * x
}

func smoothstep(e0, e1, x float32) float32 {
	if e1 == e0 {
		if x >= e1 {
			return 1
		}
		return 0
	}
	t := math.Clamp((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}

// LightingGLSL is shared by the OpenGL and Vulkan fragment shaders. The
// including shader declares the Light struct array `lights`, `lightCount`,
// `ambient` and `shadingMode` before this block.
const LightingGLSL = `
float rangeAttenuation(float d, float rng) {
    if (rng <= 0.0) return 1.0;
    float x = clamp(1.0 - (d / rng) * (d / rng), 0.0, 1.0);
    return x * x;
}

float spotFactor(float e0, float e1, float x) {
    if (e1 == e0) return x >= e1 ? 1.0 : 0.0;
    float t = clamp((x - e0) / (e1 - e0), 0.0, 1.0);
    return t * t * (3.0 - 2.0 * t);
}

vec4 shade(vec4 base, vec3 n, vec3 p) {
    if (shadingMode == 1) return base;
    n = normalize(n);
    if (shadingMode == 2) return vec4(n * 0.5 + 0.5, base.a);

    vec3 c = base.rgb * ambient.rgb;
    for (int i = 0; i < lightCount; i++) {
        vec3 dir;
        float atten = 1.0;
        if (lights[i].kind == 0) {
            dir = normalize(-lights[i].direction.xyz);
        } else {
            vec3 toLight = lights[i].position.xyz - p;
            float d = length(toLight);
            if (d <= 0.0) continue;
            dir = toLight / d;
            atten = rangeAttenuation(d, lights[i].params.y);
            if (lights[i].kind == 2) {
                atten *= spotFactor(lights[i].params.w, lights[i].params.z, dot(-dir, normalize(lights[i].direction.xyz)));
            }
        }
        float ndl = dot(n, dir);
        if (ndl <= 0.0 || atten <= 0.0) continue;
        c += base.rgb * lights[i].color.rgb * (ndl * atten * lights[i].params.x);
    }
    return vec4(c, base.a);
}
`

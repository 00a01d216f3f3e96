package plan

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/shadergraph/expr"
	"github.com/gogpu/shadergraph/resolve"
	"github.com/gogpu/shadergraph/scene"
)

type effectInput struct {
	name    string
	texture string
	sampler expr.SamplerKind
}

// effectPass is a fullscreen pass sampling one or more textures.
type effectPass struct {
	id     string
	kind   PassKind
	nodes  []string
	inputs []effectInput
	target string
	body   string
	blend  *gputypes.BlendState
}

// Gaussian weights of a 9-tap kernel: center, then each side.
var gaussian = [...]float64{0.227027, 0.1945946, 0.1216216, 0.054054, 0.016216}

const luma = "vec3<f32>(0.2126, 0.7152, 0.0722)"

func (b *builder) effect(e effectPass) error {
	bindings := make([]TextureBinding, len(e.inputs))
	for i, in := range e.inputs {
		sampler := Sampler(in.sampler)
		if err := b.plan.DeclareSampler(sampler); err != nil {
			return err
		}
		bindings[i] = TextureBinding{
			Binding:    uint32(firstTextureBinding + 2*i),
			TextureVar: "t_" + in.name,
			SamplerVar: "s_" + in.name,
			Texture:    in.texture,
			Sampler:    sampler.Name,
		}
	}
	return b.addPass(Pass{
		ID:            e.id,
		Kind:          e.kind,
		Nodes:         e.nodes,
		Target:        e.target,
		Shader:        module(expr.FlipSource+"\n", bindings, fmt.Sprintf(fullscreenVertex, identity), fragmentMain(e.body)),
		Bindings:      bindings,
		Blend:         e.blend,
		VertexCount:   3,
		InstanceCount: 1,
	})
}

func sample(name, uv string) string {
	return fmt.Sprintf("textureSample(t_%s, s_%s, %s(%s))", name, name, expr.FlipHelper, uv)
}

func blitBody(name string) string {
	return "\treturn " + sample(name, "in.uv") + ";"
}

const srgbBody = `	let c = textureSample(t_src, s_src, flip_uv(in.uv));
	let rgb = clamp(c.rgb, vec3<f32>(0.0), vec3<f32>(1.0));
	let lo = rgb * 12.92;
	let hi = 1.055 * pow(rgb, vec3<f32>(1.0 / 2.4)) - 0.055;
	return vec4<f32>(select(hi, lo, rgb <= vec3<f32>(0.0031308)), c.a);`

// blit copies its texture input into its domain.
func (b *builder) blit(n *scene.Node, rt *resolve.Route) error {
	src, err := b.texture(n)
	if err != nil {
		return err
	}
	blend, err := BlendOf(n, "premultiplied")
	if err != nil {
		return err
	}
	return b.effect(effectPass{
		id:     "blit:" + n.ID,
		kind:   PassBlit,
		nodes:  []string{n.ID},
		inputs: []effectInput{{name: "src", texture: src, sampler: expr.SamplerOf(n)}},
		target: rt.Domain.TextureName,
		body:   blitBody("src"),
		blend:  blend,
	})
}

// intermediate declares a scratch texture for a multi-pass effect.
func (b *builder) intermediate(n *scene.Node, name string, rt *resolve.Route, div int) (string, error) {
	format, ok := ParseFormat(rt.Domain.Format)
	if !ok {
		return "", &expr.UnsupportedParamError{NodeID: n.ID, Param: "format", Value: rt.Domain.Format}
	}
	err := b.plan.DeclareTexture(TextureDecl{
		Name:   name,
		NodeID: n.ID,
		Width:  max((rt.Domain.Width+div-1)/div, 1),
		Height: max((rt.Domain.Height+div-1)/div, 1),
		Format: format,
	})
	return name, err
}

// blurBody samples src along dir with the 9-tap gaussian, spreading the
// taps over radius texels.
func blurBody(dir, radius string) string {
	var sb strings.Builder
	sb.WriteString("\tlet texel = 1.0 / vec2<f32>(textureDimensions(t_src));\n")
	fmt.Fprintf(&sb, "\tlet dt = %s * texel * max(%s, 0.0) / 4.0;\n", dir, radius)
	fmt.Fprintf(&sb, "\tvar c = %s * %g;\n", sample("src", "in.uv"), gaussian[0])
	for i := 1; i < len(gaussian); i++ {
		fmt.Fprintf(&sb, "\tc += %s * %g;\n", sample("src", fmt.Sprintf("in.uv + dt * %d.0", i)), gaussian[i])
		fmt.Fprintf(&sb, "\tc += %s * %g;\n", sample("src", fmt.Sprintf("in.uv - dt * %d.0", i)), gaussian[i])
	}
	sb.WriteString("\treturn c;")
	return sb.String()
}

// blur runs iterations of separable gaussian passes through two scratch
// textures, then blends the result into its domain.
func (b *builder) blur(n *scene.Node, rt *resolve.Route) error {
	src, err := b.texture(n)
	if err != nil {
		return err
	}
	blend, err := BlendOf(n, "premultiplied")
	if err != nil {
		return err
	}
	radius := n.FloatOr("radius", 4)
	iterations := max(n.IntOr("iterations", 2), 1)
	downscale := max(n.IntOr("downscale", 1), 1)
	r := b.s.ParamExpr(n.ID, "radius", []float64{radius}, expr.Float).Code

	res := b.p.ResourceNames[n.ID]
	ta, err := b.intermediate(n, res+"_blur_a", rt, downscale)
	if err != nil {
		return err
	}
	tb, err := b.intermediate(n, res+"_blur_b", rt, downscale)
	if err != nil {
		return err
	}

	in := src
	for i := range iterations {
		if err := b.effect(effectPass{
			id:     fmt.Sprintf("blur:%s:h%d", n.ID, i),
			kind:   PassBlur,
			nodes:  []string{n.ID},
			inputs: []effectInput{{name: "src", texture: in, sampler: expr.DefaultSampler}},
			target: ta,
			body:   blurBody("vec2<f32>(1.0, 0.0)", r),
		}); err != nil {
			return err
		}
		if err := b.effect(effectPass{
			id:     fmt.Sprintf("blur:%s:v%d", n.ID, i),
			kind:   PassBlur,
			nodes:  []string{n.ID},
			inputs: []effectInput{{name: "src", texture: ta, sampler: expr.DefaultSampler}},
			target: tb,
			body:   blurBody("vec2<f32>(0.0, 1.0)", r),
		}); err != nil {
			return err
		}
		in = tb
	}
	return b.effect(effectPass{
		id:     fmt.Sprintf("blur:%s:out", n.ID),
		kind:   PassBlur,
		nodes:  []string{n.ID},
		inputs: []effectInput{{name: "src", texture: tb, sampler: expr.DefaultSampler}},
		target: rt.Domain.TextureName,
		body:   blitBody("src"),
		blend:  blend,
	})
}

// bloom extracts bright texels, blurs them through a half-size pyramid
// and adds the result back over its source.
func (b *builder) bloom(n *scene.Node, rt *resolve.Route) error {
	src, err := b.texture(n)
	if err != nil {
		return err
	}
	blend, err := BlendOf(n, "replace")
	if err != nil {
		return err
	}
	levels := min(max(n.IntOr("levels", 4), 1), 8)
	threshold := b.s.ParamExpr(n.ID, "threshold", []float64{n.FloatOr("threshold", 0.8)}, expr.Float).Code
	intensity := b.s.ParamExpr(n.ID, "intensity", []float64{n.FloatOr("intensity", 1)}, expr.Float).Code

	res := b.p.ResourceNames[n.ID]
	pyramid := make([]string, levels)
	for i := range pyramid {
		if pyramid[i], err = b.intermediate(n, fmt.Sprintf("%s_bloom_%d", res, i), rt, 1<<(i+1)); err != nil {
			return err
		}
	}

	extract := fmt.Sprintf(`	let c = %s;
	let w = smoothstep(%s, %s + 0.1, dot(c.rgb, %s));
	return c * w;`, sample("src", "in.uv"), threshold, threshold, luma)
	if err := b.effect(effectPass{
		id:     fmt.Sprintf("bloom:%s:extract", n.ID),
		kind:   PassBloom,
		nodes:  []string{n.ID},
		inputs: []effectInput{{name: "src", texture: src, sampler: expr.DefaultSampler}},
		target: pyramid[0],
		body:   extract,
	}); err != nil {
		return err
	}

	down := fmt.Sprintf(`	let o = 0.5 / vec2<f32>(textureDimensions(t_src));
	let c = %s + %s + %s + %s;
	return c * 0.25;`,
		sample("src", "in.uv + vec2<f32>(-o.x, -o.y)"),
		sample("src", "in.uv + vec2<f32>(o.x, -o.y)"),
		sample("src", "in.uv + vec2<f32>(-o.x, o.y)"),
		sample("src", "in.uv + vec2<f32>(o.x, o.y)"))
	for i := 1; i < levels; i++ {
		if err := b.effect(effectPass{
			id:     fmt.Sprintf("bloom:%s:down%d", n.ID, i),
			kind:   PassBloom,
			nodes:  []string{n.ID},
			inputs: []effectInput{{name: "src", texture: pyramid[i-1], sampler: expr.DefaultSampler}},
			target: pyramid[i],
			body:   down,
		}); err != nil {
			return err
		}
	}

	additive := *blendPresets["additive"]
	for i := levels - 1; i > 0; i-- {
		if err := b.effect(effectPass{
			id:     fmt.Sprintf("bloom:%s:up%d", n.ID, i),
			kind:   PassBloom,
			nodes:  []string{n.ID},
			inputs: []effectInput{{name: "src", texture: pyramid[i], sampler: expr.DefaultSampler}},
			target: pyramid[i-1],
			body:   blitBody("src"),
			blend:  &additive,
		}); err != nil {
			return err
		}
	}

	combine := fmt.Sprintf("\treturn %s + %s * %s;", sample("src", "in.uv"), sample("bloom", "in.uv"), intensity)
	return b.effect(effectPass{
		id:    fmt.Sprintf("bloom:%s:combine", n.ID),
		kind:  PassBloom,
		nodes: []string{n.ID},
		inputs: []effectInput{
			{name: "src", texture: src, sampler: expr.DefaultSampler},
			{name: "bloom", texture: pyramid[0], sampler: expr.DefaultSampler},
		},
		target: rt.Domain.TextureName,
		body:   combine,
		blend:  blend,
	})
}

package plan

import (
	"fmt"
	"strings"

	"github.com/gogpu/shadergraph/expr"
	"github.com/gogpu/shadergraph/prepare"
	"github.com/gogpu/shadergraph/resolve"
	"github.com/gogpu/shadergraph/scene"
)

// firstTextureBinding is the binding of the first texture; the frame
// uniform and params buffer occupy 0 and 1.
const firstTextureBinding = 2

const vertexOut = `struct VertexOut {
	@builtin(position) position: vec4<f32>,
	@location(0) uv: vec2<f32>,
	@location(1) @interpolate(flat) instance: u32,
}
`

// fullscreenVertex draws one oversized triangle covering clip space.
const fullscreenVertex = `@vertex
fn vs_main(@builtin(vertex_index) vi: u32, @builtin(instance_index) ii: u32) -> VertexOut {
	let p = vec2<f32>(f32((vi << 1u) & 2u), f32(vi & 2u)) * 2.0 - 1.0;
	var out: VertexOut;
	out.position = %s * vec4<f32>(p, 0.0, 1.0);
	out.uv = (p + 1.0) * 0.5;
	out.instance = ii;
	return out;
}
`

// geometryVertex places pixel-space vertices, y up from the domain
// center, and optional per-instance offsets.
const geometryVertex = `struct VertexIn {
	@location(0) pos_uv: vec4<f32>,
%s}

@vertex
fn vs_main(in: VertexIn, @builtin(instance_index) ii: u32) -> VertexOut {
	let world = %s * vec4<f32>(in.pos_uv.xy%s, 0.0, 1.0);
	var out: VertexOut;
	out.position = vec4<f32>(world.xy * 2.0 / frame.resolution, world.z, world.w);
	out.uv = in.pos_uv.zw;
	out.instance = ii;
	return out;
}
`

const identity = "mat4x4<f32>(1.0, 0.0, 0.0, 0.0, 0.0, 1.0, 0.0, 0.0, 0.0, 0.0, 1.0, 0.0, 0.0, 0.0, 0.0, 1.0)"

// module assembles a render module from its parts.
func module(helpers string, bindings []TextureBinding, vertex, fragment string) string {
	var b strings.Builder
	b.WriteString(expr.Globals)
	b.WriteByte('\n')
	for _, bind := range bindings {
		fmt.Fprintf(&b, "@group(0) @binding(%d) var %s: texture_2d<f32>;\n", bind.Binding, bind.TextureVar)
		fmt.Fprintf(&b, "@group(0) @binding(%d) var %s: sampler;\n", bind.Binding+1, bind.SamplerVar)
	}
	if len(bindings) > 0 {
		b.WriteByte('\n')
	}
	if helpers != "" {
		b.WriteString(helpers)
	}
	b.WriteString(vertexOut)
	b.WriteByte('\n')
	b.WriteString(vertex)
	b.WriteByte('\n')
	b.WriteString(fragment)
	return b.String()
}

func fragmentMain(body string) string {
	return fmt.Sprintf("@fragment\nfn fs_main(in: VertexOut) -> @location(0) vec4<f32> {\n%s\n}\n", body)
}

// clearShader is empty: clear passes only run their load op.
func clearShader() string { return "" }

// renderPass emits the pass of a RenderPass node: its color expression
// evaluated over its geometry, or over the whole domain.
func (b *builder) renderPass(n *scene.Node, rt *resolve.Route) error {
	color, ok, err := b.s.Input(n, "color")
	if err != nil {
		return err
	}
	if ok {
		if color, err = b.s.As(n, "color", color, expr.Vec4); err != nil {
			return err
		}
	} else {
		color = &expr.Expr{Code: "vec4<f32>(1.0)", Type: expr.Vec4}
	}

	transform, err := b.transform(n)
	if err != nil {
		return err
	}
	blend, err := BlendOf(n, "alpha")
	if err != nil {
		return err
	}

	bindings, err := b.bindings(color.Textures)
	if err != nil {
		return err
	}

	ps := Pass{
		ID:            "draw:" + n.ID,
		Kind:          PassDraw,
		Nodes:         []string{n.ID},
		Target:        rt.Domain.TextureName,
		Bindings:      bindings,
		Blend:         blend,
		Animated:      color.Animated || transform.Animated,
		VertexCount:   3,
		InstanceCount: 1,
	}

	var vertex string
	g := rt.Geometry
	if g.Fullscreen() {
		vertex = fmt.Sprintf(fullscreenVertex, transform.Code)
	} else {
		res := b.p.ResourceNames[g.SourceID]
		ps.VertexBuffer = res + "_vertices"
		ps.VertexCount = uint32(len(g.Vertices) / 4)
		if err := b.plan.DeclareBuffer(BufferDecl{Name: ps.VertexBuffer, Kind: BufferVertex, Data: FloatBytes(g.Vertices), Stride: 16}); err != nil {
			return err
		}
		offsetField, offset := "", ""
		if len(g.Instances) > 0 {
			ps.InstanceBuffer = res + "_instances"
			ps.InstanceCount = uint32(g.InstanceCount())
			if err := b.plan.DeclareBuffer(BufferDecl{Name: ps.InstanceBuffer, Kind: BufferInstance, Data: FloatBytes(g.Instances), Stride: 8}); err != nil {
				return err
			}
			offsetField, offset = "\t@location(1) offset: vec2<f32>,\n", " + in.offset"
		}
		vertex = fmt.Sprintf(geometryVertex, offsetField, transform.Code, offset)
	}

	ps.Shader = module(b.s.HelperSource(color.Helpers), bindings, vertex, fragmentMain("\treturn "+color.Code+";"))
	return b.addPass(ps)
}

// transform returns the vertex transform of a RenderPass. It runs in the
// vertex stage, so it may not read fragment inputs or textures.
func (b *builder) transform(n *scene.Node) (*expr.Expr, error) {
	t, ok, err := b.s.Input(n, "transform")
	if err != nil {
		return nil, err
	}
	if !ok {
		vals, has := n.Floats("transform")
		if !has {
			return &expr.Expr{Code: identity, Type: expr.Mat4}, nil
		}
		if len(vals) != 16 {
			return nil, &expr.UnsupportedParamError{NodeID: n.ID, Param: "transform", Value: vals}
		}
		return b.s.ParamExpr(n.ID, "transform", vals, expr.Mat4), nil
	}
	if t, err = b.s.As(n, "transform", t, expr.Mat4); err != nil {
		return nil, err
	}
	if t.Varying || len(t.Textures) > 0 {
		return nil, &expr.UnsupportedParamError{NodeID: n.ID, Param: "transform", Value: "per-fragment value"}
	}
	return t, nil
}

// bindings declares the textures and samplers behind the binding keys an
// expression samples.
func (b *builder) bindings(keys []string) ([]TextureBinding, error) {
	out := make([]TextureBinding, 0, len(keys))
	for i, key := range keys {
		sb, ok := b.s.Binding(key)
		if !ok {
			continue
		}
		tex, err := b.sourceTexture(sb.Source)
		if err != nil {
			return nil, err
		}
		sampler := Sampler(sb.Sampler)
		if err := b.plan.DeclareSampler(sampler); err != nil {
			return nil, err
		}
		out = append(out, TextureBinding{
			Binding:    uint32(firstTextureBinding + 2*i),
			TextureVar: sb.TextureVar(),
			SamplerVar: sb.SamplerVar(),
			Texture:    tex,
			Sampler:    sampler.Name,
		})
	}
	return out, nil
}

// sourceTexture returns the texture name of a sampled node, declaring
// uploaded textures on first use.
func (b *builder) sourceTexture(id string) (string, error) {
	if d, ok := b.r.Textures[id]; ok {
		return d.TextureName, nil
	}
	n, ok := b.p.Nodes[id]
	if !ok {
		return "", &expr.MissingInputError{NodeID: id, Port: "texture"}
	}
	switch n.Type {
	case prepare.TypeImageTexture:
		return b.image(n)
	case prepare.TypeText:
		return b.text(n)
	}
	return "", &expr.UnsupportedParamError{NodeID: id, Param: "texture source", Value: n.Type}
}

// texture compiles the texture input of an effect node to a texture name.
func (b *builder) texture(n *scene.Node) (string, error) {
	e, err := b.s.Require(n, "texture")
	if err != nil {
		return "", err
	}
	if e.Type != expr.Texture {
		return "", &expr.TypeMismatchError{NodeID: n.ID, Port: "texture", Expected: expr.Texture.String(), Got: e.Type}
	}
	return b.sourceTexture(e.Source)
}

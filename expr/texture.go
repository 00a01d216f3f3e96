package expr

import (
	"fmt"

	"github.com/gogpu/shadergraph/prepare"
	"github.com/gogpu/shadergraph/scene"
)

// SamplerKind is the address and filter mode of a texture binding.
type SamplerKind struct {
	AddressU string
	AddressV string
	Filter   string
}

// DefaultSampler clamps and filters linearly.
var DefaultSampler = SamplerKind{AddressU: "clamp", AddressV: "clamp", Filter: "linear"}

// String returns a key such as "clamp-repeat-nearest".
func (k SamplerKind) String() string {
	return k.AddressU + "-" + k.AddressV + "-" + k.Filter
}

// SamplerOf reads the addressModeU, addressModeV and filter params of n.
func SamplerOf(n *scene.Node) SamplerKind {
	return SamplerKind{
		AddressU: n.StringOr("addressModeU", DefaultSampler.AddressU),
		AddressV: n.StringOr("addressModeV", DefaultSampler.AddressV),
		Filter:   n.StringOr("filter", DefaultSampler.Filter),
	}
}

// FlipHelper converts a bottom-left texture coordinate to the top-left
// origin of texture memory.
const FlipHelper = "flip_uv"

// FlipSource is the WGSL source of the FlipHelper function.
const FlipSource = `fn flip_uv(uv: vec2<f32>) -> vec2<f32> {
	return vec2<f32>(uv.x, 1.0 - uv.y);
}
`

func init() {
	Register(prepare.TypeImageTexture, compileTextureSource)
	Register(prepare.TypeText, compileTextureSource)
	Register(prepare.TypeRenderTexture, compileTarget)
	Register(prepare.TypeScreen, compileTarget)
	Register("SampleTexture", compileSampleTexture)
}

// TextureOf returns a Texture expression naming source.
func TextureOf(source string) *Expr {
	return &Expr{Type: Texture, Source: source}
}

// sample emits a flipped textureSample of source bound under key. Image
// rows and render targets are both stored top row first.
func (s *Session) sample(n *scene.Node, key, source string, sampler SamplerKind) (*Expr, error) {
	uv := &Expr{Code: "in.uv", Type: Vec2, Varying: true}
	if in, ok, err := s.Input(n, "uv"); err != nil {
		return nil, err
	} else if ok {
		if uv, err = s.As(n, "uv", in, Vec2); err != nil {
			return nil, err
		}
	}
	b := s.Bind(key, source, sampler)
	s.AddHelper(FlipHelper, FlipSource)

	e := derive(fmt.Sprintf("textureSample(%s, %s, %s(%s))", b.TextureVar(), b.SamplerVar(), FlipHelper, uv.Code), Vec4, uv)
	e.Varying = true
	e.Textures = appendUnique(e.Textures, key)
	e.Helpers = appendUnique(e.Helpers, FlipHelper)
	return e, nil
}

func compileTextureSource(s *Session, n *scene.Node, port string) (*Expr, error) {
	switch port {
	case "texture":
		return TextureOf(n.ID), nil
	case "color":
		return s.sample(n, n.ID, n.ID, SamplerOf(n))
	}
	return nil, unknownPort(n, port)
}

func compileTarget(_ *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "texture" {
		return nil, unknownPort(n, port)
	}
	return TextureOf(n.ID), nil
}

func compileSampleTexture(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "color" {
		return nil, unknownPort(n, port)
	}
	tex, err := s.Require(n, "texture")
	if err != nil {
		return nil, err
	}
	if tex.Type != Texture {
		return nil, &TypeMismatchError{NodeID: n.ID, Port: "texture", Expected: Texture.String(), Got: tex.Type}
	}
	return s.sample(n, n.ID, tex.Source, SamplerOf(n))
}

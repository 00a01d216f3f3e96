package plan

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/shadergraph/expr"
	"github.com/gogpu/shadergraph/scene"
)

func component(src, dst gputypes.BlendFactor) gputypes.BlendComponent {
	return gputypes.BlendComponent{SrcFactor: src, DstFactor: dst, Operation: gputypes.BlendOperationAdd}
}

// Blend presets by name. A nil state replaces the destination.
var blendPresets = map[string]*gputypes.BlendState{
	"alpha": {
		Color: component(gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha),
		Alpha: component(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
	},
	"premultiplied": {
		Color: component(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
		Alpha: component(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
	},
	"additive": {
		Color: component(gputypes.BlendFactorOne, gputypes.BlendFactorOne),
		Alpha: component(gputypes.BlendFactorOne, gputypes.BlendFactorOne),
	},
	"multiply": {
		Color: component(gputypes.BlendFactorDst, gputypes.BlendFactorOneMinusSrcAlpha),
		Alpha: component(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
	},
	"screen": {
		Color: component(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrc),
		Alpha: component(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
	},
	"replace": nil,
	"opaque":  nil,
	"off":     nil,
	"none":    nil,
}

var blendFactors = map[string]gputypes.BlendFactor{
	"zero":                gputypes.BlendFactorZero,
	"one":                 gputypes.BlendFactorOne,
	"src":                 gputypes.BlendFactorSrc,
	"one-minus-src":       gputypes.BlendFactorOneMinusSrc,
	"src-alpha":           gputypes.BlendFactorSrcAlpha,
	"one-minus-src-alpha": gputypes.BlendFactorOneMinusSrcAlpha,
	"dst":                 gputypes.BlendFactorDst,
	"one-minus-dst":       gputypes.BlendFactorOneMinusDst,
	"dst-alpha":           gputypes.BlendFactorDstAlpha,
	"one-minus-dst-alpha": gputypes.BlendFactorOneMinusDstAlpha,
	"src-alpha-saturated": gputypes.BlendFactorSrcAlphaSaturated,
	"constant":            gputypes.BlendFactorConstant,
	"one-minus-constant":  gputypes.BlendFactorOneMinusConstant,
}

var blendOperations = map[string]gputypes.BlendOperation{
	"add":              gputypes.BlendOperationAdd,
	"subtract":         gputypes.BlendOperationSubtract,
	"reverse-subtract": gputypes.BlendOperationReverseSubtract,
	"min":              gputypes.BlendOperationMin,
	"max":              gputypes.BlendOperationMax,
}

// BlendOf returns the blend state of n: its blend preset (def when unset)
// with any per-factor overrides applied. Replace presets ignore overrides.
func BlendOf(n *scene.Node, def string) (*gputypes.BlendState, error) {
	name := n.StringOr("blend", def)
	preset, ok := blendPresets[name]
	if !ok {
		return nil, &expr.UnsupportedParamError{NodeID: n.ID, Param: "blend", Value: name}
	}
	if preset == nil {
		return nil, nil
	}
	st := *preset

	factors := []struct {
		param string
		dst   *gputypes.BlendFactor
	}{
		{"blendSrcFactor", &st.Color.SrcFactor},
		{"blendDstFactor", &st.Color.DstFactor},
		{"blendSrcAlphaFactor", &st.Alpha.SrcFactor},
		{"blendDstAlphaFactor", &st.Alpha.DstFactor},
	}
	for _, f := range factors {
		v, ok := n.String(f.param)
		if !ok {
			continue
		}
		factor, ok := blendFactors[v]
		if !ok {
			return nil, &expr.UnsupportedParamError{NodeID: n.ID, Param: f.param, Value: v}
		}
		*f.dst = factor
	}

	ops := []struct {
		param string
		dst   *gputypes.BlendOperation
	}{
		{"blendOperation", &st.Color.Operation},
		{"blendAlphaOperation", &st.Alpha.Operation},
	}
	for _, o := range ops {
		v, ok := n.String(o.param)
		if !ok {
			continue
		}
		op, ok := blendOperations[v]
		if !ok {
			return nil, &expr.UnsupportedParamError{NodeID: n.ID, Param: o.param, Value: v}
		}
		*o.dst = op
	}
	return &st, nil
}

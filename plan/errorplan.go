package plan

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/shadergraph/prepare"
)

// ErrorColor is the color of the diagnostic pipeline.
var ErrorColor = gputypes.Color{R: 1, G: 0, B: 1, A: 1}

// ErrorPlan returns a single fullscreen pass filling a w by h scene
// texture with c. Non-positive sizes fall back to the default resolution.
func ErrorPlan(w, h int, c gputypes.Color) *Plan {
	if w <= 0 || h <= 0 {
		w, h = prepare.DefaultWidth, prepare.DefaultHeight
	}
	fill := fmt.Sprintf("\treturn vec4<f32>(%s, %s, %s, %s);", wgslFloat(c.R), wgslFloat(c.G), wgslFloat(c.B), wgslFloat(c.A))
	params := make([]float32, 4)
	return &Plan{
		Textures: []TextureDecl{{
			Name:       prepare.SceneTexture,
			Width:      w,
			Height:     h,
			Format:     gputypes.TextureFormatRGBA8Unorm,
			ClearColor: c,
		}},
		Buffers: []BufferDecl{{Name: ParamsBuffer, Kind: BufferParams, Data: FloatBytes(params), Stride: 16}},
		Passes: []Pass{{
			ID:            string(PassError),
			Kind:          PassError,
			Target:        prepare.SceneTexture,
			Width:         w,
			Height:        h,
			Format:        gputypes.TextureFormatRGBA8Unorm,
			Shader:        module("", nil, fmt.Sprintf(fullscreenVertex, identity), fragmentMain(fill)),
			Load:          gputypes.LoadOpClear,
			Clear:         c,
			VertexCount:   3,
			InstanceCount: 1,
		}},
		Params:         params,
		SceneTexture:   prepare.SceneTexture,
		PresentTexture: prepare.SceneTexture,
		Width:          w,
		Height:         h,
	}
}

// wgslFloat formats f as a WGSL float literal.
func wgslFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	for _, r := range s {
		if r == '.' || r == 'e' {
			return s
		}
	}
	return s + ".0"
}

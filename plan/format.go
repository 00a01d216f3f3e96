package plan

import (
	"github.com/gogpu/gputypes"
	"honnef.co/go/safeish"

	"github.com/gogpu/shadergraph/expr"
)

var formats = map[string]gputypes.TextureFormat{
	"rgba8unorm":      gputypes.TextureFormatRGBA8Unorm,
	"rgba8unorm-srgb": gputypes.TextureFormatRGBA8UnormSrgb,
	"bgra8unorm":      gputypes.TextureFormatBGRA8Unorm,
	"rgba16float":     gputypes.TextureFormatRGBA16Float,
	"rgba32float":     gputypes.TextureFormatRGBA32Float,
}

// ParseFormat maps a scene format name to a texture format.
func ParseFormat(name string) (gputypes.TextureFormat, bool) {
	f, ok := formats[name]
	return f, ok
}

// FormatName returns the scene name of f, or "" if f has none.
func FormatName(f gputypes.TextureFormat) string {
	for name, v := range formats {
		if v == f {
			return name
		}
	}
	return ""
}

// IsFloatFormat reports whether name is a floating-point format.
func IsFloatFormat(name string) bool {
	return name == "rgba16float" || name == "rgba32float"
}

// BytesPerPixel returns the texel size of f.
func BytesPerPixel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	}
	return 4
}

var addressModes = map[string]gputypes.AddressMode{
	"clamp":  gputypes.AddressModeClampToEdge,
	"repeat": gputypes.AddressModeRepeat,
	"mirror": gputypes.AddressModeMirrorRepeat,
}

// Sampler converts a sampler kind to its declaration. Unknown modes fall
// back to clamp and linear.
func Sampler(k expr.SamplerKind) SamplerDecl {
	d := SamplerDecl{
		Name:     "sampler_" + k.AddressU + "_" + k.AddressV + "_" + k.Filter,
		AddressU: gputypes.AddressModeClampToEdge,
		AddressV: gputypes.AddressModeClampToEdge,
		Filter:   gputypes.FilterModeLinear,
	}
	if m, ok := addressModes[k.AddressU]; ok {
		d.AddressU = m
	}
	if m, ok := addressModes[k.AddressV]; ok {
		d.AddressV = m
	}
	if k.Filter == "nearest" {
		d.Filter = gputypes.FilterModeNearest
	}
	return d
}

// FloatBytes returns the bytes of v in host order. GPU buffers are little
// endian on every supported platform.
func FloatBytes(v []float32) []byte {
	return append([]byte(nil), safeish.SliceCast[[]byte](v)...)
}

// Package shaderspace turns a render plan into GPU resource descriptors.
//
// Assemble maps each plan declaration one-to-one onto a gputypes
// descriptor and computes a pipeline signature: a hash over everything
// that shapes the GPU pipelines (shader text, formats, sizes, bindings,
// blend and load state) but not over buffer contents or constant values.
// Two scenes that differ only in constants have equal signatures, so a
// running executor can keep its pipelines and only rewrite buffers.
package shaderspace

import (
	"log/slog"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/shadergraph/internal/logging"
	"github.com/gogpu/shadergraph/plan"
)

var logger logging.Cell

// SetLogger sets the logger for the shaderspace package. nil restores
// silence.
func SetLogger(l *slog.Logger) { logger.Store(l) }

// FrameUniformSize is the size of the per-pass frame uniform: time f32,
// count u32, resolution vec2<f32>.
const FrameUniformSize = 16

// TextureSpec describes a texture to create.
type TextureSpec struct {
	Name       string
	Descriptor gputypes.TextureDescriptor

	// Upload names the pixel buffer the texture is filled from.
	Upload      string
	BytesPerRow uint32
}

// BufferSpec describes a buffer and its initial contents.
type BufferSpec struct {
	Name   string
	Kind   plan.BufferKind
	Usage  gputypes.BufferUsage
	Data   []byte
	Stride uint32
}

// SamplerSpec describes a sampler.
type SamplerSpec struct {
	Name       string
	Descriptor gputypes.SamplerDescriptor
}

// PassSpec describes one render pass and the pipeline it draws with.
type PassSpec struct {
	ID   string
	Kind plan.PassKind

	Shader        string
	VertexEntry   string
	FragmentEntry string

	Target string
	Width  int
	Height int
	Color  gputypes.ColorTargetState
	Load   gputypes.LoadOp
	Clear  gputypes.Color

	Bindings []plan.TextureBinding

	VertexBuffer   string
	InstanceBuffer string
	VertexLayouts  []gputypes.VertexBufferLayout
	VertexCount    uint32
	InstanceCount  uint32

	Animated bool
}

// Draws reports whether the pass issues a draw call. Passes that do not
// only run their load op.
func (p *PassSpec) Draws() bool { return p.VertexCount > 0 && p.Shader != "" }

// Space is the assembled, backend-ready form of a plan.
type Space struct {
	Textures []TextureSpec
	Buffers  []BufferSpec
	Samplers []SamplerSpec
	Passes   []PassSpec

	Params []float32

	SceneTexture   string
	PresentTexture string
	Width          int
	Height         int
	Animated       bool

	Signature uint64
}

// Buffer returns a buffer spec by name.
func (s *Space) Buffer(name string) (*BufferSpec, bool) {
	for i := range s.Buffers {
		if s.Buffers[i].Name == name {
			return &s.Buffers[i], true
		}
	}
	return nil, false
}

// Assemble converts p into a Space. p is not modified.
func Assemble(p *plan.Plan) *Space {
	s := &Space{
		Params:         p.Params,
		SceneTexture:   p.SceneTexture,
		PresentTexture: p.PresentTexture,
		Width:          p.Width,
		Height:         p.Height,
		Animated:       p.Animated,
	}

	uploads := make(map[string]bool)
	for _, t := range p.Textures {
		if t.Upload != "" {
			uploads[t.Name] = true
		}
	}
	sampled := make(map[string]bool)
	for _, ps := range p.Passes {
		for _, b := range ps.Bindings {
			sampled[b.Texture] = true
		}
	}

	for _, t := range p.Textures {
		usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc
		if uploads[t.Name] {
			usage |= gputypes.TextureUsageCopyDst
		} else {
			usage |= gputypes.TextureUsageRenderAttachment
		}
		s.Textures = append(s.Textures, TextureSpec{
			Name: t.Name,
			Descriptor: gputypes.TextureDescriptor{
				Label:         t.Name,
				Size:          gputypes.Extent3D{Width: uint32(t.Width), Height: uint32(t.Height), DepthOrArrayLayers: 1},
				MipLevelCount: 1,
				SampleCount:   1,
				Dimension:     gputypes.TextureDimension2D,
				Format:        t.Format,
				Usage:         usage,
			},
			Upload:      t.Upload,
			BytesPerRow: uint32(t.Width * plan.BytesPerPixel(t.Format)),
		})
	}

	for _, b := range p.Buffers {
		s.Buffers = append(s.Buffers, BufferSpec{
			Name:   b.Name,
			Kind:   b.Kind,
			Usage:  bufferUsage(b.Kind),
			Data:   b.Data,
			Stride: b.Stride,
		})
	}

	for _, sm := range p.Samplers {
		s.Samplers = append(s.Samplers, SamplerSpec{
			Name: sm.Name,
			Descriptor: gputypes.SamplerDescriptor{
				Label:         sm.Name,
				AddressModeU:  sm.AddressU,
				AddressModeV:  sm.AddressV,
				AddressModeW:  gputypes.AddressModeClampToEdge,
				MagFilter:     sm.Filter,
				MinFilter:     sm.Filter,
				MipmapFilter:  gputypes.MipmapFilterModeNearest,
				LodMaxClamp:   32,
				MaxAnisotropy: 1,
			},
		})
	}

	for _, ps := range p.Passes {
		spec := PassSpec{
			ID:            ps.ID,
			Kind:          ps.Kind,
			Shader:        ps.Shader,
			VertexEntry:   plan.VertexEntry,
			FragmentEntry: plan.FragmentEntry,
			Target:        ps.Target,
			Width:         ps.Width,
			Height:        ps.Height,
			Color: gputypes.ColorTargetState{
				Format:    ps.Format,
				Blend:     ps.Blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			},
			Load:           ps.Load,
			Clear:          ps.Clear,
			Bindings:       ps.Bindings,
			VertexBuffer:   ps.VertexBuffer,
			InstanceBuffer: ps.InstanceBuffer,
			VertexCount:    ps.VertexCount,
			InstanceCount:  ps.InstanceCount,
			Animated:       ps.Animated,
		}
		if ps.VertexBuffer != "" {
			spec.VertexLayouts = append(spec.VertexLayouts, gputypes.VertexBufferLayout{
				ArrayStride: 16,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes:  []gputypes.VertexAttribute{{Format: gputypes.VertexFormatFloat32x4, ShaderLocation: 0}},
			})
		}
		if ps.InstanceBuffer != "" {
			spec.VertexLayouts = append(spec.VertexLayouts, gputypes.VertexBufferLayout{
				ArrayStride: 8,
				StepMode:    gputypes.VertexStepModeInstance,
				Attributes:  []gputypes.VertexAttribute{{Format: gputypes.VertexFormatFloat32x2, ShaderLocation: 1}},
			})
		}
		s.Passes = append(s.Passes, spec)
	}

	s.Signature = Signature(s)
	logger.Load().Debug("shaderspace: assembled",
		"textures", len(s.Textures),
		"buffers", len(s.Buffers),
		"passes", len(s.Passes),
		"sampled", len(sampled),
		"signature", s.Signature)
	return s
}

func bufferUsage(k plan.BufferKind) gputypes.BufferUsage {
	switch k {
	case plan.BufferVertex, plan.BufferInstance:
		return gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst
	case plan.BufferParams:
		return gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	case plan.BufferPixels:
		return gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	}
	return gputypes.BufferUsageCopyDst
}

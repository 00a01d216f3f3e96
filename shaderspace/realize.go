package shaderspace

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shadergraph/plan"
)

// ErrShaderCompile is matched by *ShaderError.
var ErrShaderCompile = errors.New("shaderspace: shader compilation failed")

// ShaderError reports a pass whose WGSL naga rejected.
type ShaderError struct {
	PassID string
	Err    error
}

func (e *ShaderError) Error() string {
	return fmt.Sprintf("shaderspace: pass %q: %v", e.PassID, e.Err)
}

// Is reports ErrShaderCompile equivalence.
func (e *ShaderError) Is(target error) bool { return target == ErrShaderCompile }

func (e *ShaderError) Unwrap() error { return e.Err }

// RealizeOptions controls Realize.
type RealizeOptions struct {
	// SPIRV compiles each shader with naga and hands the backend SPIR-V
	// instead of WGSL source.
	SPIRV bool
}

// Resources holds the GPU objects created for a Space.
type Resources struct {
	device hal.Device
	space  *Space

	Textures map[string]hal.Texture
	Buffers  map[string]hal.Buffer
	Samplers map[string]hal.Sampler
	Shaders  map[string]hal.ShaderModule

	// Frames holds one frame uniform buffer per drawing pass.
	Frames map[string]hal.Buffer
}

// Realize creates every texture, buffer, sampler and shader module s
// declares, uploads pixel buffers into their textures and writes
// initial buffer contents. On error everything created so far is
// destroyed.
func Realize(device hal.Device, queue hal.Queue, s *Space, opts RealizeOptions) (_ *Resources, err error) {
	r := &Resources{
		device:   device,
		space:    s,
		Textures: make(map[string]hal.Texture, len(s.Textures)),
		Buffers:  make(map[string]hal.Buffer, len(s.Buffers)),
		Samplers: make(map[string]hal.Sampler, len(s.Samplers)),
		Shaders:  make(map[string]hal.ShaderModule),
		Frames:   make(map[string]hal.Buffer),
	}
	defer func() {
		if err != nil {
			r.Destroy()
		}
	}()

	for i := range s.Buffers {
		b := &s.Buffers[i]
		if b.Kind == plan.BufferPixels {
			continue
		}
		buf, err := createBuffer(device, queue, b.Name, b.Usage, b.Data)
		if err != nil {
			return nil, err
		}
		r.Buffers[b.Name] = buf
	}

	for i := range s.Textures {
		t := &s.Textures[i]
		d := &t.Descriptor
		tex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         d.Label,
			Size:          hal.Extent3D{Width: d.Size.Width, Height: d.Size.Height, DepthOrArrayLayers: d.Size.DepthOrArrayLayers},
			MipLevelCount: d.MipLevelCount,
			SampleCount:   d.SampleCount,
			Dimension:     d.Dimension,
			Format:        d.Format,
			Usage:         d.Usage,
		})
		if err != nil {
			return nil, fmt.Errorf("shaderspace: texture %q: %w", t.Name, err)
		}
		r.Textures[t.Name] = tex
		if t.Upload == "" {
			continue
		}
		src, ok := s.Buffer(t.Upload)
		if !ok {
			return nil, fmt.Errorf("shaderspace: texture %q: missing upload buffer %q", t.Name, t.Upload)
		}
		err = queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: tex, Aspect: gputypes.TextureAspectAll},
			src.Data,
			&hal.ImageDataLayout{BytesPerRow: t.BytesPerRow, RowsPerImage: d.Size.Height},
			&hal.Extent3D{Width: d.Size.Width, Height: d.Size.Height, DepthOrArrayLayers: 1},
		)
		if err != nil {
			return nil, fmt.Errorf("shaderspace: upload %q: %w", t.Name, err)
		}
	}

	for i := range s.Samplers {
		sm := &s.Samplers[i]
		d := &sm.Descriptor
		mip := gputypes.FilterModeNearest
		if d.MipmapFilter == gputypes.MipmapFilterModeLinear {
			mip = gputypes.FilterModeLinear
		}
		smp, err := device.CreateSampler(&hal.SamplerDescriptor{
			Label:        d.Label,
			AddressModeU: d.AddressModeU,
			AddressModeV: d.AddressModeV,
			AddressModeW: d.AddressModeW,
			MagFilter:    d.MagFilter,
			MinFilter:    d.MinFilter,
			MipmapFilter: mip,
			LodMinClamp:  d.LodMinClamp,
			LodMaxClamp:  d.LodMaxClamp,
			Anisotropy:   max(d.MaxAnisotropy, 1),
		})
		if err != nil {
			return nil, fmt.Errorf("shaderspace: sampler %q: %w", sm.Name, err)
		}
		r.Samplers[sm.Name] = smp
	}

	for i := range s.Passes {
		p := &s.Passes[i]
		if !p.Draws() {
			continue
		}
		source := hal.ShaderSource{WGSL: p.Shader}
		if opts.SPIRV {
			words, err := CompileSPIRV(p.Shader)
			if err != nil {
				return nil, &ShaderError{PassID: p.ID, Err: err}
			}
			source = hal.ShaderSource{SPIRV: words}
		}
		mod, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: p.ID, Source: source})
		if err != nil {
			return nil, &ShaderError{PassID: p.ID, Err: err}
		}
		r.Shaders[p.ID] = mod

		frame, err := createBuffer(device, queue, p.ID+":frame",
			gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst, FrameUniform(p, 0, 0))
		if err != nil {
			return nil, err
		}
		r.Frames[p.ID] = frame
	}

	logger.Load().Debug("shaderspace: realized",
		"textures", len(r.Textures),
		"buffers", len(r.Buffers),
		"samplers", len(r.Samplers),
		"shaders", len(r.Shaders))
	return r, nil
}

func createBuffer(device hal.Device, queue hal.Queue, name string, usage gputypes.BufferUsage, data []byte) (hal.Buffer, error) {
	// Uniform and storage bindings need a non-zero, 4-byte aligned size.
	size := max(uint64(len(data)+3)&^3, 16)
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{Label: name, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("shaderspace: buffer %q: %w", name, err)
	}
	if len(data) > 0 {
		if err := queue.WriteBuffer(buf, 0, data); err != nil {
			device.DestroyBuffer(buf)
			return nil, fmt.Errorf("shaderspace: write %q: %w", name, err)
		}
	}
	return buf, nil
}

// UpdateParams rewrites the params buffer. It is the only write a
// constant edit needs when the signature is unchanged.
func (r *Resources) UpdateParams(queue hal.Queue, params []float32) error {
	buf, ok := r.Buffers[plan.ParamsBuffer]
	if !ok {
		return fmt.Errorf("shaderspace: no params buffer")
	}
	return queue.WriteBuffer(buf, 0, plan.FloatBytes(params))
}

// UpdateFrame writes the frame uniform of every drawing pass.
func (r *Resources) UpdateFrame(queue hal.Queue, time float32, count uint32) error {
	for i := range r.space.Passes {
		p := &r.space.Passes[i]
		buf, ok := r.Frames[p.ID]
		if !ok {
			continue
		}
		if err := queue.WriteBuffer(buf, 0, FrameUniform(p, time, count)); err != nil {
			return fmt.Errorf("shaderspace: frame %q: %w", p.ID, err)
		}
	}
	return nil
}

// Destroy releases every GPU object. It is safe to call more than once.
func (r *Resources) Destroy() {
	if r.device == nil {
		return
	}
	for _, m := range r.Shaders {
		r.device.DestroyShaderModule(m)
	}
	for _, s := range r.Samplers {
		r.device.DestroySampler(s)
	}
	for _, b := range r.Frames {
		r.device.DestroyBuffer(b)
	}
	for _, b := range r.Buffers {
		r.device.DestroyBuffer(b)
	}
	for _, t := range r.Textures {
		r.device.DestroyTexture(t)
	}
	clear(r.Shaders)
	clear(r.Samplers)
	clear(r.Frames)
	clear(r.Buffers)
	clear(r.Textures)
	r.device = nil
}

// CompileSPIRV compiles WGSL to SPIR-V words with naga.
func CompileSPIRV(wgsl string) ([]uint32, error) {
	spirv, err := naga.Compile(wgsl)
	if err != nil {
		return nil, err
	}
	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = uint32(spirv[i*4]) |
			uint32(spirv[i*4+1])<<8 |
			uint32(spirv[i*4+2])<<16 |
			uint32(spirv[i*4+3])<<24
	}
	return words, nil
}

// ExportSPIRV compiles every drawing pass of s and returns the SPIR-V
// binaries keyed by pass ID.
func ExportSPIRV(s *Space) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for i := range s.Passes {
		p := &s.Passes[i]
		if !p.Draws() {
			continue
		}
		spirv, err := naga.Compile(p.Shader)
		if err != nil {
			return nil, &ShaderError{PassID: p.ID, Err: err}
		}
		out[p.ID] = spirv
	}
	return out, nil
}

package shaderspace

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"

	"github.com/gogpu/gputypes"
)

// Signature hashes the pipeline-shaping parts of s. Buffer data, params
// values, clear colors and draw counts are left out.
func Signature(s *Space) uint64 {
	h := fnv.New64a()

	hashWriteUint32(h, uint32(len(s.Textures)))
	for i := range s.Textures {
		t := &s.Textures[i]
		hashWriteString(h, t.Name)
		hashWriteUint32(h, t.Descriptor.Size.Width)
		hashWriteUint32(h, t.Descriptor.Size.Height)
		hashWriteUint32(h, uint32(t.Descriptor.Format))
		hashWriteUint32(h, uint32(t.Descriptor.Usage))
		hashWriteString(h, t.Upload)
	}

	hashWriteUint32(h, uint32(len(s.Buffers)))
	for i := range s.Buffers {
		b := &s.Buffers[i]
		hashWriteString(h, b.Name)
		hashWriteUint32(h, uint32(b.Kind))
		hashWriteUint32(h, b.Stride)
	}

	hashWriteUint32(h, uint32(len(s.Samplers)))
	for i := range s.Samplers {
		d := &s.Samplers[i].Descriptor
		hashWriteString(h, s.Samplers[i].Name)
		hashWriteUint32(h, uint32(d.AddressModeU))
		hashWriteUint32(h, uint32(d.AddressModeV))
		hashWriteUint32(h, uint32(d.MagFilter))
		hashWriteUint32(h, uint32(d.MinFilter))
	}

	hashWriteUint32(h, uint32(len(s.Passes)))
	for i := range s.Passes {
		hashPass(h, &s.Passes[i])
	}

	hashWriteString(h, s.SceneTexture)
	hashWriteString(h, s.PresentTexture)
	return h.Sum64()
}

func hashPass(h hash.Hash64, p *PassSpec) {
	hashWriteString(h, p.ID)
	hashWriteString(h, string(p.Kind))
	hashWriteString(h, p.Shader)
	hashWriteString(h, p.VertexEntry)
	hashWriteString(h, p.FragmentEntry)
	hashWriteString(h, p.Target)
	hashWriteUint32(h, uint32(p.Color.Format))
	hashWriteUint32(h, uint32(p.Color.WriteMask))
	hashBlend(h, p.Color.Blend)
	hashWriteUint32(h, uint32(p.Load))

	hashWriteUint32(h, uint32(len(p.Bindings)))
	for _, b := range p.Bindings {
		hashWriteUint32(h, b.Binding)
		hashWriteString(h, b.TextureVar)
		hashWriteString(h, b.SamplerVar)
		hashWriteString(h, b.Texture)
		hashWriteString(h, b.Sampler)
	}

	hashWriteString(h, p.VertexBuffer)
	hashWriteString(h, p.InstanceBuffer)
	hashWriteBool(h, p.VertexCount > 0)
	hashWriteBool(h, p.Animated)
}

func hashBlend(h hash.Hash64, b *gputypes.BlendState) {
	hashWriteBool(h, b != nil)
	if b == nil {
		return
	}
	for _, c := range [2]gputypes.BlendComponent{b.Color, b.Alpha} {
		hashWriteUint32(h, uint32(c.SrcFactor))
		hashWriteUint32(h, uint32(c.DstFactor))
		hashWriteUint32(h, uint32(c.Operation))
	}
}

// FrameUniform encodes the per-pass frame uniform for pass p.
func FrameUniform(p *PassSpec, time float32, count uint32) []byte {
	buf := make([]byte, FrameUniformSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(time))
	binary.LittleEndian.PutUint32(buf[4:], count)
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Width)))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(float32(p.Height)))
	return buf
}

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

//nolint:gosec // G115: names and shader sources are far below 4 GiB
func hashWriteString(h hash.Hash64, s string) {
	hashWriteUint32(h, uint32(len(s)))
	_, _ = h.Write([]byte(s))
}

func hashWriteBool(h hash.Hash64, v bool) {
	if v {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}

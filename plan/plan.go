// Package plan builds a backend-agnostic render plan from a prepared and
// resolved scene: texture, buffer and sampler declarations plus an ordered
// list of render passes with their WGSL source, bindings, blend state and
// load behavior.
//
// Passes are emitted in the prepared topological order. Draw passes that
// inherit their target from a composition are emitted by that composition
// in layer order. A composition fed by a layer rendering into a different
// texture receives one compose blit per (source, destination) pair.
package plan

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/shadergraph/expr"
	"github.com/gogpu/shadergraph/internal/logging"
	"github.com/gogpu/shadergraph/prepare"
	"github.com/gogpu/shadergraph/resolve"
	"github.com/gogpu/shadergraph/scene"
)

var logger logging.Cell

// SetLogger sets the logger for the plan package. nil restores silence.
func SetLogger(l *slog.Logger) { logger.Store(l) }

// Shader entry points of every generated module.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

// Fixed resource names.
const (
	ParamsBuffer   = "params"
	PresentTexture = "present"
)

// ErrResourceConflict is matched by *ResourceConflictError.
var ErrResourceConflict = errors.New("plan: resource conflict")

// ResourceConflictError reports a resource declared twice with different
// parameters, or a pass sampling the texture it renders into.
type ResourceConflictError struct {
	Kind   string
	Name   string
	Reason string
}

func (e *ResourceConflictError) Error() string {
	return fmt.Sprintf("plan: %s %q: %s", e.Kind, e.Name, e.Reason)
}

// Is reports ErrResourceConflict equivalence.
func (e *ResourceConflictError) Is(target error) bool { return target == ErrResourceConflict }

// BufferKind is the role of a buffer.
type BufferKind int

const (
	BufferVertex BufferKind = iota + 1
	BufferInstance
	BufferPixels
	BufferParams
)

func (k BufferKind) String() string {
	switch k {
	case BufferVertex:
		return "vertex"
	case BufferInstance:
		return "instance"
	case BufferPixels:
		return "pixels"
	case BufferParams:
		return "params"
	}
	return fmt.Sprintf("BufferKind(%d)", int(k))
}

// PassKind classifies a pass.
type PassKind string

const (
	PassDraw    PassKind = "draw"
	PassBlit    PassKind = "blit"
	PassBlur    PassKind = "blur"
	PassBloom   PassKind = "bloom"
	PassCompose PassKind = "compose"
	PassClear   PassKind = "clear"
	PassPresent PassKind = "present"
	PassError   PassKind = "error"
)

// TextureDecl declares a texture.
type TextureDecl struct {
	Name   string
	NodeID string
	Width  int
	Height int
	Format gputypes.TextureFormat

	// Upload names the pixel buffer the texture is filled from. Render
	// targets have none.
	Upload string

	// ClearColor is loaded by the first pass writing the texture.
	ClearColor gputypes.Color
}

// BufferDecl declares a buffer and its contents.
type BufferDecl struct {
	Name string
	Kind BufferKind
	Data []byte

	// Stride is the element size of vertex and instance buffers and the
	// row pitch of pixel buffers.
	Stride uint32
}

// SamplerDecl declares a sampler.
type SamplerDecl struct {
	Name     string
	AddressU gputypes.AddressMode
	AddressV gputypes.AddressMode
	Filter   gputypes.FilterMode
}

// TextureBinding binds a texture and sampler pair to a pass shader. The
// sampler occupies Binding+1.
type TextureBinding struct {
	Binding    uint32
	TextureVar string
	SamplerVar string
	Texture    string
	Sampler    string
}

// Pass is one render pass drawing into Target.
type Pass struct {
	// ID is derived from the participating node ids, e.g. "draw:rp" or
	// "compose:inner->outer".
	ID    string
	Kind  PassKind
	Nodes []string

	Target string
	Width  int
	Height int
	Format gputypes.TextureFormat

	Shader   string
	Bindings []TextureBinding

	// Blend is nil for replace.
	Blend *gputypes.BlendState
	Load  gputypes.LoadOp
	Clear gputypes.Color

	// VertexBuffer is empty for a fullscreen triangle. A pass with no
	// vertices only runs its load op.
	VertexBuffer   string
	InstanceBuffer string
	VertexCount    uint32
	InstanceCount  uint32

	// Animated is set when the shader reads frame.time.
	Animated bool
}

// Plan is the fully resolved set of resources and passes of a scene.
type Plan struct {
	Textures []TextureDecl
	Buffers  []BufferDecl
	Samplers []SamplerDecl
	Passes   []Pass

	// Params holds the constant slots read through the params buffer.
	Params []float32

	SceneTexture   string
	PresentTexture string
	Width          int
	Height         int
	Animated       bool
}

// Texture returns a declared texture.
func (p *Plan) Texture(name string) (*TextureDecl, bool) {
	i := slices.IndexFunc(p.Textures, func(t TextureDecl) bool { return t.Name == name })
	if i < 0 {
		return nil, false
	}
	return &p.Textures[i], true
}

// Buffer returns a declared buffer.
func (p *Plan) Buffer(name string) (*BufferDecl, bool) {
	i := slices.IndexFunc(p.Buffers, func(b BufferDecl) bool { return b.Name == name })
	if i < 0 {
		return nil, false
	}
	return &p.Buffers[i], true
}

// Pass returns the pass with the given id.
func (p *Plan) Pass(id string) (*Pass, bool) {
	i := slices.IndexFunc(p.Passes, func(ps Pass) bool { return ps.ID == id })
	if i < 0 {
		return nil, false
	}
	return &p.Passes[i], true
}

// DeclareTexture adds t. Declaring an identical texture again is a no-op.
func (p *Plan) DeclareTexture(t TextureDecl) error {
	if old, ok := p.Texture(t.Name); ok {
		if old.Width != t.Width || old.Height != t.Height || old.Format != t.Format || old.Upload != t.Upload {
			return &ResourceConflictError{Kind: "texture", Name: t.Name,
				Reason: fmt.Sprintf("redeclared as %dx%d (was %dx%d)", t.Width, t.Height, old.Width, old.Height)}
		}
		return nil
	}
	p.Textures = append(p.Textures, t)
	return nil
}

// DeclareBuffer adds b. Declaring an identical buffer again is a no-op.
func (p *Plan) DeclareBuffer(b BufferDecl) error {
	if old, ok := p.Buffer(b.Name); ok {
		if old.Kind != b.Kind || old.Stride != b.Stride || !slices.Equal(old.Data, b.Data) {
			return &ResourceConflictError{Kind: "buffer", Name: b.Name, Reason: "redeclared with different contents"}
		}
		return nil
	}
	p.Buffers = append(p.Buffers, b)
	return nil
}

// DeclareSampler adds s. Declaring an identical sampler again is a no-op.
func (p *Plan) DeclareSampler(s SamplerDecl) error {
	i := slices.IndexFunc(p.Samplers, func(o SamplerDecl) bool { return o.Name == s.Name })
	if i >= 0 {
		if p.Samplers[i] != s {
			return &ResourceConflictError{Kind: "sampler", Name: s.Name, Reason: "redeclared with different modes"}
		}
		return nil
	}
	p.Samplers = append(p.Samplers, s)
	return nil
}

// Assets resolves asset ids to encoded image bytes. *scene.Archive
// implements it.
type Assets interface {
	Asset(id string) ([]byte, bool)
}

// Options configure Build.
type Options struct {
	// Assets resolves ImageTexture assetId params.
	Assets Assets

	// BaseDir resolves relative ImageTexture path params. Empty disables
	// reading files.
	BaseDir string

	// Registry overrides the expression compilers.
	Registry *expr.Registry
}

type builder struct {
	p    *prepare.Prepared
	r    *resolve.Result
	s    *expr.Session
	opts Options
	log  *slog.Logger
	plan *Plan

	written map[string]bool
	drawn   map[string]bool
	blits   map[[2]string]bool
}

// Build plans the passes of p as routed by r.
func Build(p *prepare.Prepared, r *resolve.Result, opts Options) (*Plan, error) {
	reg := opts.Registry
	if reg == nil {
		reg = expr.DefaultRegistry()
	}
	b := &builder{
		p:    p,
		r:    r,
		s:    expr.NewSessionWithRegistry(p, reg),
		opts: opts,
		log:  logger.Load(),
		plan: &Plan{
			SceneTexture:   p.OutputTexture,
			PresentTexture: p.OutputTexture,
			Width:          p.Width,
			Height:         p.Height,
		},
		written: make(map[string]bool),
		drawn:   make(map[string]bool),
		blits:   make(map[[2]string]bool),
	}

	for _, id := range p.Order {
		if d, ok := r.Textures[id]; ok {
			if err := b.declareTarget(p.Nodes[id], d); err != nil {
				return nil, err
			}
		}
	}

	for _, id := range p.Order {
		n := p.Nodes[id]
		var err error
		switch {
		case n.Type == prepare.TypeComposite:
			if !b.nested(n) {
				err = b.composite(n)
			}
		case resolve.IsDraw(n.Type):
			if rt, ok := r.Route(id); ok && rt.Explicit {
				err = b.draw(n)
			}
		case resolve.IsTarget(n.Type):
			err = b.clearUnwritten(n)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := b.present(); err != nil {
		return nil, err
	}
	if err := b.declareParams(); err != nil {
		return nil, err
	}

	b.log.Debug("plan: built",
		"passes", len(b.plan.Passes),
		"textures", len(b.plan.Textures),
		"buffers", len(b.plan.Buffers),
		"samplers", len(b.plan.Samplers),
		"animated", b.plan.Animated)
	return b.plan, nil
}

func (b *builder) declareTarget(n *scene.Node, d resolve.Domain) error {
	format, ok := ParseFormat(d.Format)
	if !ok {
		return &expr.UnsupportedParamError{NodeID: n.ID, Param: "format", Value: d.Format}
	}
	clear := gputypes.Color{}
	if n.Type == prepare.TypeScreen {
		clear.A = 1
	}
	if v, ok := n.Floats("clearColor"); ok && len(v) >= 3 {
		clear = gputypes.Color{R: v[0], G: v[1], B: v[2], A: 1}
		if len(v) >= 4 {
			clear.A = v[3]
		}
	}
	return b.plan.DeclareTexture(TextureDecl{
		Name:       d.TextureName,
		NodeID:     n.ID,
		Width:      d.Width,
		Height:     d.Height,
		Format:     format,
		ClearColor: clear,
	})
}

// load returns the load op of the next pass writing texture: clear on the
// first write, load afterwards.
func (b *builder) load(texture string) (gputypes.LoadOp, gputypes.Color) {
	if b.written[texture] {
		return gputypes.LoadOpLoad, gputypes.Color{}
	}
	b.written[texture] = true
	if t, ok := b.plan.Texture(texture); ok {
		return gputypes.LoadOpClear, t.ClearColor
	}
	return gputypes.LoadOpClear, gputypes.Color{}
}

// addPass completes ps against its target declaration and appends it.
func (b *builder) addPass(ps Pass) error {
	t, ok := b.plan.Texture(ps.Target)
	if !ok {
		return &ResourceConflictError{Kind: "texture", Name: ps.Target, Reason: "pass " + ps.ID + " targets an undeclared texture"}
	}
	for _, bind := range ps.Bindings {
		if bind.Texture == ps.Target {
			return &ResourceConflictError{Kind: "texture", Name: ps.Target, Reason: "pass " + ps.ID + " samples the texture it renders into"}
		}
	}
	ps.Width, ps.Height, ps.Format = t.Width, t.Height, t.Format
	ps.Load, ps.Clear = b.load(ps.Target)
	b.plan.Animated = b.plan.Animated || ps.Animated
	b.plan.Passes = append(b.plan.Passes, ps)
	b.log.Debug("plan: pass", "id", ps.ID, "target", ps.Target, "load", ps.Load, "bindings", len(ps.Bindings))
	return nil
}

// draw emits the passes of a draw node once.
func (b *builder) draw(n *scene.Node) error {
	if b.drawn[n.ID] {
		return nil
	}
	b.drawn[n.ID] = true
	rt, ok := b.r.Route(n.ID)
	if !ok {
		return &resolve.UnresolvedTargetError{NodeID: n.ID, Reason: "no route"}
	}
	switch n.Type {
	case prepare.TypeRenderPass:
		return b.renderPass(n, rt)
	case prepare.TypeBlit:
		return b.blit(n, rt)
	case prepare.TypeBlur:
		return b.blur(n, rt)
	case prepare.TypeBloom:
		return b.bloom(n, rt)
	}
	return &expr.UnsupportedParamError{NodeID: n.ID, Param: "pass type", Value: n.Type}
}

// nested reports whether n is a layer of a composition drawing into the
// same texture. Such compositions are drawn in place by their parent.
func (b *builder) nested(n *scene.Node) bool {
	rt, ok := b.r.Route(n.ID)
	if !ok {
		return false
	}
	for _, parent := range b.p.LayerOf[n.ID] {
		if pr, ok := b.r.Route(parent); ok && pr.Domain.TextureNodeID == rt.Domain.TextureNodeID {
			return true
		}
	}
	return false
}

// composite draws the layers of a composition in order. Layers rendering
// into another texture are composed with a blit.
func (b *builder) composite(n *scene.Node) error {
	if b.drawn[n.ID] {
		return nil
	}
	b.drawn[n.ID] = true
	rt, ok := b.r.Route(n.ID)
	if !ok {
		return &resolve.UnresolvedTargetError{NodeID: n.ID, Reason: "no route"}
	}
	for _, l := range rt.Layers {
		ln, ok := b.p.Nodes[l.NodeID]
		if !ok {
			continue
		}
		lr, ok := b.r.Route(l.NodeID)
		if !ok {
			continue
		}
		if lr.Domain.TextureNodeID == rt.Domain.TextureNodeID {
			var err error
			switch {
			case ln.Type == prepare.TypeComposite:
				err = b.composite(ln)
			case resolve.IsDraw(ln.Type) && !lr.Explicit:
				err = b.draw(ln)
			}
			if err != nil {
				return err
			}
			continue
		}
		if err := b.compose(ln.ID, lr.Domain, n, rt.Domain); err != nil {
			return err
		}
	}
	return nil
}

// compose blits the texture of src into dst once per pair.
func (b *builder) compose(srcID string, src resolve.Domain, dst *scene.Node, to resolve.Domain) error {
	key := [2]string{srcID, to.TextureNodeID}
	if b.blits[key] {
		b.log.Debug("plan: compose blit deduplicated", "from", srcID, "to", dst.ID)
		return nil
	}
	b.blits[key] = true

	blend, err := BlendOf(dst, "premultiplied")
	if err != nil {
		return err
	}
	return b.effect(effectPass{
		id:     fmt.Sprintf("compose:%s->%s", srcID, dst.ID),
		kind:   PassCompose,
		nodes:  []string{srcID, dst.ID},
		inputs: []effectInput{{name: "src", texture: src.TextureName, sampler: expr.DefaultSampler}},
		target: to.TextureName,
		body:   blitBody("src"),
		blend:  blend,
	})
}

// clearUnwritten clears a target no pass has drawn into yet, so readers
// and the output see its clear color.
func (b *builder) clearUnwritten(n *scene.Node) error {
	d := b.r.Textures[n.ID]
	if b.written[d.TextureName] {
		return nil
	}
	return b.addPass(Pass{
		ID:     "clear:" + n.ID,
		Kind:   PassClear,
		Nodes:  []string{n.ID},
		Target: d.TextureName,
		Shader: clearShader(),
	})
}

// present adds an sRGB encoding pass when the output is a float texture
// declared for sRGB display.
func (b *builder) present() error {
	if b.p.Encoding != "srgb" || !IsFloatFormat(b.p.Format) {
		return nil
	}
	if err := b.plan.DeclareTexture(TextureDecl{
		Name:   PresentTexture,
		NodeID: b.p.OutputNodeID,
		Width:  b.p.Width,
		Height: b.p.Height,
		Format: gputypes.TextureFormatRGBA8Unorm,
	}); err != nil {
		return err
	}
	b.plan.PresentTexture = PresentTexture
	return b.effect(effectPass{
		id:     "present:" + b.p.OutputNodeID,
		kind:   PassPresent,
		nodes:  []string{b.p.OutputNodeID},
		inputs: []effectInput{{name: "src", texture: b.p.OutputTexture, sampler: expr.DefaultSampler}},
		target: PresentTexture,
		body:   srgbBody,
	})
}

// declareParams packs the constant slots, at least one vec4.
func (b *builder) declareParams() error {
	params := b.s.Params()
	if len(params) < 4 {
		params = append(params, make([]float32, 4-len(params))...)
	}
	b.plan.Params = params
	return b.plan.DeclareBuffer(BufferDecl{
		Name:   ParamsBuffer,
		Kind:   BufferParams,
		Data:   FloatBytes(params),
		Stride: 16,
	})
}

// Package expr compiles node outputs into typed WGSL expressions.
//
// A Session compiles on demand: Compile(node, port) dispatches on the node
// type through the registry, recursively compiling upstream outputs
// through the same memoized entry point. Constant parameters become slots
// of a shared params storage buffer, so editing a constant changes buffer
// contents but never shader code.
//
// Expressions are evaluated in the fragment stage. They may read the
// fragment inputs in.uv and in.instance, the per-pass frame uniform and
// the params buffer:
//
//	struct Frame { time: f32, count: u32, resolution: vec2<f32> }
//	@group(0) @binding(0) var<uniform> frame: Frame;
//	@group(0) @binding(1) var<storage, read> params: array<vec4<f32>>;
package expr

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/gogpu/shadergraph/internal/graph"
	"github.com/gogpu/shadergraph/internal/logging"
	"github.com/gogpu/shadergraph/prepare"
	"github.com/gogpu/shadergraph/scene"
)

var logger logging.Cell

// SetLogger sets the logger for the expr package. nil restores silence.
func SetLogger(l *slog.Logger) { logger.Store(l) }

// Expr is a compiled expression.
type Expr struct {
	Code string
	Type ValueType

	// Animated is set when the value depends on the frame clock.
	Animated bool

	// Varying is set when the code reads fragment inputs.
	Varying bool

	// Instanced is set when the code reads the instance index.
	Instanced bool

	// Textures lists the binding keys the code samples.
	Textures []string

	// Helpers lists the helper functions the code calls.
	Helpers []string

	// Source is the texture node a Texture expression refers to.
	Source string
}

// derive builds an expression of the given type whose dependencies are the
// union of those of inputs.
func derive(code string, t ValueType, inputs ...*Expr) *Expr {
	e := &Expr{Code: code, Type: t}
	for _, in := range inputs {
		if in == nil {
			continue
		}
		e.Animated = e.Animated || in.Animated
		e.Varying = e.Varying || in.Varying
		e.Instanced = e.Instanced || in.Instanced
		e.Textures = appendUnique(e.Textures, in.Textures...)
		e.Helpers = appendUnique(e.Helpers, in.Helpers...)
	}
	return e
}

func appendUnique(list []string, items ...string) []string {
	for _, it := range items {
		if !slices.Contains(list, it) {
			list = append(list, it)
		}
	}
	return list
}

// Key identifies a compiled node output.
type Key struct {
	NodeID string
	PortID string
}

// Binding is a texture sampled by an expression.
type Binding struct {
	// Key is the id of the sampling node.
	Key string

	// Name is the identifier suffix of the t_ and s_ shader variables.
	Name string

	// Source is the id of the texture node sampled.
	Source string

	Sampler SamplerKind
}

// TextureVar returns the shader name of the bound texture.
func (b *Binding) TextureVar() string { return "t_" + b.Name }

// SamplerVar returns the shader name of the bound sampler.
func (b *Binding) SamplerVar() string { return "s_" + b.Name }

type slotKey struct {
	nodeID string
	param  string
}

// Session is one compile attempt's expression state. It is not safe for
// concurrent use.
type Session struct {
	p        *prepare.Prepared
	registry *Registry
	log      *slog.Logger

	memo   map[Key]*Expr
	active map[Key]bool

	bindings     map[string]*Binding
	bindingOrder []string

	helpers     map[string]string
	helperOrder []string

	params []float32
	slots  map[slotKey]int
}

// NewSession starts a compile attempt over p using the default registry.
func NewSession(p *prepare.Prepared) *Session {
	return NewSessionWithRegistry(p, DefaultRegistry())
}

// NewSessionWithRegistry starts a compile attempt with a custom registry.
func NewSessionWithRegistry(p *prepare.Prepared, r *Registry) *Session {
	return &Session{
		p:        p,
		registry: r,
		log:      logger.Load(),
		memo:     make(map[Key]*Expr),
		active:   make(map[Key]bool),
		bindings: make(map[string]*Binding),
		helpers:  make(map[string]string),
		slots:    make(map[slotKey]int),
	}
}

// Prepared returns the scene the session compiles.
func (s *Session) Prepared() *prepare.Prepared { return s.p }

// Compile returns the expression of a node output. Repeated calls with the
// same node and port return the same *Expr.
func (s *Session) Compile(nodeID, port string) (*Expr, error) {
	k := Key{nodeID, port}
	if e, ok := s.memo[k]; ok {
		return e, nil
	}
	if s.active[k] {
		return nil, &graph.CycleError{Remaining: []string{nodeID}}
	}
	n, ok := s.p.Nodes[nodeID]
	if !ok {
		return nil, &MissingInputError{NodeID: nodeID, Port: port}
	}
	fn, ok := s.registry.Lookup(n.Type)
	if !ok {
		return nil, &UnsupportedParamError{NodeID: nodeID, Param: "node type", Value: n.Type}
	}

	s.active[k] = true
	e, err := fn(s, n, port)
	delete(s.active, k)
	if err != nil {
		return nil, err
	}
	s.memo[k] = e
	return e, nil
}

// Input compiles the output wired into the first of ports that has a
// connection. ok is false when none is connected.
func (s *Session) Input(n *scene.Node, ports ...string) (e *Expr, ok bool, err error) {
	c, found := s.p.Inputs.Find(n.ID, ports...)
	if !found {
		return nil, false, nil
	}
	e, err = s.Compile(c.From.NodeID, c.From.PortID)
	return e, true, err
}

// Require compiles a mandatory input. ports are accepted aliases; the
// first names the input in errors.
func (s *Session) Require(n *scene.Node, ports ...string) (*Expr, error) {
	e, ok, err := s.Input(n, ports...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &MissingInputError{NodeID: n.ID, Port: ports[0]}
	}
	return e, nil
}

// RequireType compiles a mandatory input and converts it to want.
func (s *Session) RequireType(n *scene.Node, want ValueType, ports ...string) (*Expr, error) {
	e, err := s.Require(n, ports...)
	if err != nil {
		return nil, err
	}
	return s.As(n, ports[0], e, want)
}

// As converts e to want, or fails with a type mismatch naming n and port.
func (s *Session) As(n *scene.Node, port string, e *Expr, want ValueType) (*Expr, error) {
	if e.Type == want {
		return e, nil
	}
	code, ok := Convert(e.Code, e.Type, want)
	if !ok {
		return nil, &TypeMismatchError{NodeID: n.ID, Port: port, Expected: want.String(), Got: e.Type}
	}
	return derive(code, want, e), nil
}

// ignoreExtra logs connections on ports a node does not read.
func (s *Session) ignoreExtra(n *scene.Node, accepted ...[]string) {
	for _, c := range s.p.Inputs.Unused(n.ID, accepted...) {
		s.log.Debug("expr: ignoring connection on unused port",
			"node", n.ID, "type", n.Type, "port", c.To.PortID, "connection", c.ID)
	}
}

// Slot stores a constant parameter in the params buffer and returns the
// index of its first vec4 slot. Values beyond four components take
// consecutive slots.
func (s *Session) Slot(nodeID, param string, values []float64) int {
	k := slotKey{nodeID, param}
	if i, ok := s.slots[k]; ok {
		return i
	}
	i := len(s.params) / 4
	n := max((len(values)+3)/4, 1)
	buf := make([]float32, n*4)
	for j, v := range values {
		buf[j] = float32(v)
	}
	s.params = append(s.params, buf...)
	s.slots[k] = i
	return i
}

// Params returns the params buffer contents, four floats per slot.
func (s *Session) Params() []float32 { return s.params }

// ParamExpr returns an expression reading a constant parameter of type t
// from the params buffer.
func (s *Session) ParamExpr(nodeID, param string, values []float64, t ValueType) *Expr {
	i := s.Slot(nodeID, param, values)
	var code string
	switch t {
	case Float:
		code = fmt.Sprintf("params[%d].x", i)
	case Int:
		code = fmt.Sprintf("i32(params[%d].x)", i)
	case Uint:
		code = fmt.Sprintf("u32(params[%d].x)", i)
	case Bool:
		code = fmt.Sprintf("(params[%d].x != 0.0)", i)
	case Vec2:
		code = fmt.Sprintf("params[%d].xy", i)
	case Vec3:
		code = fmt.Sprintf("params[%d].xyz", i)
	case Vec4:
		code = fmt.Sprintf("params[%d]", i)
	case Mat4:
		code = fmt.Sprintf("mat4x4<f32>(params[%d], params[%d], params[%d], params[%d])", i, i+1, i+2, i+3)
	}
	return &Expr{Code: code, Type: t}
}

// Bind registers a texture binding for a sampling node.
func (s *Session) Bind(key, source string, sampler SamplerKind) *Binding {
	if b, ok := s.bindings[key]; ok {
		return b
	}
	b := &Binding{Key: key, Name: s.p.ResourceNames[key], Source: source, Sampler: sampler}
	s.bindings[key] = b
	s.bindingOrder = append(s.bindingOrder, key)
	return b
}

// Binding returns a registered texture binding.
func (s *Session) Binding(key string) (*Binding, bool) {
	b, ok := s.bindings[key]
	return b, ok
}

// Bindings returns every registered binding in registration order.
func (s *Session) Bindings() []*Binding {
	out := make([]*Binding, len(s.bindingOrder))
	for i, k := range s.bindingOrder {
		out[i] = s.bindings[k]
	}
	return out
}

// AddHelper registers a WGSL helper function under name.
func (s *Session) AddHelper(name, src string) {
	if _, ok := s.helpers[name]; ok {
		return
	}
	s.helpers[name] = src
	s.helperOrder = append(s.helperOrder, name)
}

// Helper returns the source of a helper function.
func (s *Session) Helper(name string) (string, bool) {
	src, ok := s.helpers[name]
	return src, ok
}

// HelperSource returns the concatenated sources of the named helpers in
// registration order.
func (s *Session) HelperSource(names []string) string {
	var b strings.Builder
	for _, name := range s.helperOrder {
		if slices.Contains(names, name) {
			b.WriteString(s.helpers[name])
			b.WriteByte('\n')
		}
	}
	return b.String()
}

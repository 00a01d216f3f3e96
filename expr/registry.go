package expr

import (
	"sort"
	"sync"

	"github.com/gogpu/shadergraph/scene"
)

// CompilerFunc compiles one output port of a node.
type CompilerFunc func(s *Session, n *scene.Node, port string) (*Expr, error)

// Registry maps node type names to compilers. It is safe for concurrent
// use.
type Registry struct {
	mu        sync.RWMutex
	compilers map[string]CompilerFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{compilers: make(map[string]CompilerFunc)}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry holding the built-in compilers.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds a compiler to the default registry.
// It panics if fn is nil or typ is already registered.
func Register(typ string, fn CompilerFunc) { defaultRegistry.Register(typ, fn) }

// Lookup returns the compiler for typ from the default registry.
func Lookup(typ string) (CompilerFunc, bool) { return defaultRegistry.Lookup(typ) }

// Types returns the sorted type names of the default registry.
func Types() []string { return defaultRegistry.Types() }

// Register adds a compiler for typ.
// It panics if fn is nil or typ is already registered.
func (r *Registry) Register(typ string, fn CompilerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fn == nil {
		panic("expr: Register compiler is nil")
	}
	if _, dup := r.compilers[typ]; dup {
		panic("expr: Register called twice for " + typ)
	}
	r.compilers[typ] = fn
}

// Unregister removes the compiler for typ. It is a no-op if typ is not
// registered.
func (r *Registry) Unregister(typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.compilers, typ)
}

// Lookup returns the compiler for typ.
func (r *Registry) Lookup(typ string) (CompilerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.compilers[typ]
	return fn, ok
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.compilers))
	for name := range r.compilers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy of r that can be extended independently.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := NewRegistry()
	for k, v := range r.compilers {
		out.compilers[k] = v
	}
	return out
}

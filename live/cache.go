// Package live holds the mutable mirror of a remotely edited scene.
//
// A Cache absorbs full replacements and incremental deltas and
// materializes them back into a Scene for recompilation. Slot hands the
// newest materialized scene to the render loop and Cell keeps the last
// scene that compiled.
package live

import (
	"container/list"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/gogpu/shadergraph/internal/logging"
	"github.com/gogpu/shadergraph/scene"
)

var logger logging.Cell

// SetLogger sets the logger for the live package. nil restores silence.
func SetLogger(l *slog.Logger) { logger.Store(l) }

// State is the cache lifecycle state.
type State int

const (
	// Empty means no scene has been received.
	Empty State = iota
	// Cached means the cache mirrors a scene.
	Cached
)

func (s State) String() string {
	if s == Cached {
		return "cached"
	}
	return "empty"
}

// ordered is an insertion-ordered map. Overwriting a key keeps its
// position; removing and re-adding moves it to the end.
type ordered[T any] struct {
	index map[string]*list.Element
	order *list.List
}

type entry[T any] struct {
	id    string
	value T
}

func newOrdered[T any]() ordered[T] {
	return ordered[T]{index: make(map[string]*list.Element), order: list.New()}
}

func (o *ordered[T]) put(id string, v T) {
	if el, ok := o.index[id]; ok {
		el.Value.(*entry[T]).value = v
		return
	}
	o.index[id] = o.order.PushBack(&entry[T]{id: id, value: v})
}

func (o *ordered[T]) remove(id string) bool {
	el, ok := o.index[id]
	if !ok {
		return false
	}
	o.order.Remove(el)
	delete(o.index, id)
	return true
}

func (o *ordered[T]) has(id string) bool {
	_, ok := o.index[id]
	return ok
}

func (o *ordered[T]) len() int { return len(o.index) }

func (o *ordered[T]) values() []T {
	out := make([]T, 0, o.order.Len())
	for el := o.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry[T]).value)
	}
	return out
}

// Stats counts cache activity.
type Stats struct {
	Replacements uint64
	Deltas       uint64
	Pruned       uint64
}

// Cache mirrors the authoritative scene of one edit session. It is safe
// for concurrent use.
type Cache struct {
	mu    sync.Mutex
	state State

	version  string
	metadata scene.Metadata
	nodes    ordered[scene.Node]
	conns    ordered[scene.Connection]
	outputs  map[string]string
	groups   []scene.Group
	assets   map[string]scene.Asset

	replacements atomic.Uint64
	deltas       atomic.Uint64
	pruned       atomic.Uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		nodes: newOrdered[scene.Node](),
		conns: newOrdered[scene.Connection](),
	}
}

// State returns the lifecycle state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Replace discards the cache and rebuilds it from s.
func (c *Cache) Replace(s *scene.Scene) {
	s = s.Clone()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.version = s.Version
	c.metadata = s.Metadata
	c.nodes = newOrdered[scene.Node]()
	for _, n := range s.Nodes {
		c.nodes.put(n.ID, n)
	}
	c.conns = newOrdered[scene.Connection]()
	for _, conn := range s.Connections {
		c.conns.put(conn.ID, conn)
	}
	c.outputs = s.Outputs
	c.groups = s.Groups
	c.assets = s.Assets
	c.state = Cached
	c.replacements.Add(1)

	logger.Load().Debug("live: replaced", "nodes", c.nodes.len(), "connections", c.conns.len())
}

// ApplyDelta applies d in the fixed order: node removals, node additions
// and updates, connection removals, connection additions and updates,
// then output replacement when d carries outputs. Removals run before
// additions, so an id removed and added in one delta ends up present.
func (c *Cache) ApplyDelta(d *scene.Delta) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range d.Nodes.Removed {
		c.nodes.remove(id)
	}
	for _, n := range d.Nodes.Added {
		c.nodes.put(n.ID, n.Clone())
	}
	for _, n := range d.Nodes.Updated {
		c.nodes.put(n.ID, n.Clone())
	}

	for _, id := range d.Connections.Removed {
		c.conns.remove(id)
	}
	for _, conn := range d.Connections.Added {
		c.conns.put(conn.ID, conn)
	}
	for _, conn := range d.Connections.Updated {
		c.conns.put(conn.ID, conn)
	}

	if d.Outputs != nil {
		c.outputs = maps.Clone(*d.Outputs)
	}
	if d.Version != "" {
		c.version = d.Version
	}
	c.state = Cached
	c.deltas.Add(1)

	logger.Load().Debug("live: delta applied",
		"nodes", c.nodes.len(),
		"connections", c.conns.len(),
		"outputs_replaced", d.Outputs != nil)
}

// PruneInvalidConnections removes every connection whose endpoint node is
// absent and returns how many were removed.
func (c *Cache) PruneInvalidConnections() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dangling []string
	for el := c.conns.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[scene.Connection])
		if !c.nodes.has(e.value.From.NodeID) || !c.nodes.has(e.value.To.NodeID) {
			dangling = append(dangling, e.id)
		}
	}
	for _, id := range dangling {
		c.conns.remove(id)
	}
	if len(dangling) > 0 {
		c.pruned.Add(uint64(len(dangling)))
		logger.Load().Debug("live: pruned dangling connections", "ids", dangling)
	}
	return len(dangling)
}

// Materialize returns a Scene holding the current contents. Nodes and
// connections keep their insertion order. The result shares nothing with
// the cache.
func (c *Cache) Materialize() *scene.Scene {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &scene.Scene{
		Version:     c.version,
		Metadata:    c.metadata,
		Nodes:       c.nodes.values(),
		Connections: c.conns.values(),
		Outputs:     c.outputs,
		Groups:      c.groups,
		Assets:      c.assets,
	}
	return s.Clone()
}

// Stats returns activity counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Replacements: c.replacements.Load(),
		Deltas:       c.deltas.Load(),
		Pruned:       c.pruned.Load(),
	}
}

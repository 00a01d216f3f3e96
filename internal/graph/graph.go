// Package graph implements structural analysis of scene graphs:
// topological ordering with cycle detection, upstream reachability
// and removal of nodes that take no part in any connection or output.
//
// Edges follow connections: a connection from A to B means B depends on A,
// so A is ordered before B.
package graph

import (
	"container/heap"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/shadergraph/scene"
)

// ErrCycleDetected is matched by every *CycleError.
var ErrCycleDetected = errors.New("graph: cycle detected")

// CycleError reports the nodes that could not be ordered because they are
// on, or downstream of, a cycle.
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	const limit = 8
	ids := e.Remaining
	suffix := ""
	if len(ids) > limit {
		ids = ids[:limit]
		suffix = ", ..."
	}
	return fmt.Sprintf("graph: cycle detected among %d nodes [%s%s]", len(e.Remaining), strings.Join(ids, ", "), suffix)
}

// Is reports ErrCycleDetected equivalence.
func (e *CycleError) Is(target error) bool { return target == ErrCycleDetected }

// TopologicalOrder returns every node id such that for each connection the
// source node precedes the destination node.
//
// Among nodes that become ready at the same time, scene order wins, so the
// result is reproducible for a given input. Connections whose endpoints are
// not in the node set are ignored.
func TopologicalOrder(s *scene.Scene) ([]string, error) {
	n := len(s.Nodes)
	pos := make(map[string]int, n)
	for i, node := range s.Nodes {
		pos[node.ID] = i
	}

	indeg := make([]int, n)
	adj := make([][]int, n)
	for _, c := range s.Connections {
		from, ok1 := pos[c.From.NodeID]
		to, ok2 := pos[c.To.NodeID]
		if !ok1 || !ok2 {
			continue
		}
		adj[from] = append(adj[from], to)
		indeg[to]++
	}

	// The ready set is kept sorted by scene position; a min-heap keyed on
	// position keeps emission order independent of connection order.
	ready := &intHeap{}
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready.a = append(ready.a, i)
		}
	}
	heap.Init(ready)

	order := make([]string, 0, n)
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, s.Nodes[i].ID)
		for _, j := range adj[i] {
			indeg[j]--
			if indeg[j] == 0 {
				heap.Push(ready, j)
			}
		}
	}

	if len(order) < n {
		var remaining []string
		for i := 0; i < n; i++ {
			if indeg[i] > 0 {
				remaining = append(remaining, s.Nodes[i].ID)
			}
		}
		return nil, &CycleError{Remaining: remaining}
	}
	return order, nil
}

// UpstreamReachable returns every ancestor of start: all nodes from which a
// chain of connections leads to start. start itself is included only when
// it lies on a cycle.
func UpstreamReachable(s *scene.Scene, start string) map[string]bool {
	rev := make(map[string][]string)
	for _, c := range s.Connections {
		rev[c.To.NodeID] = append(rev[c.To.NodeID], c.From.NodeID)
	}

	seen := make(map[string]bool)
	queue := append([]string(nil), rev[start]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		queue = append(queue, rev[id]...)
	}
	return seen
}

// DownstreamReachable returns every descendant of start.
func DownstreamReachable(s *scene.Scene, start string) map[string]bool {
	fwd := make(map[string][]string)
	for _, c := range s.Connections {
		fwd[c.From.NodeID] = append(fwd[c.From.NodeID], c.To.NodeID)
	}

	seen := make(map[string]bool)
	queue := append([]string(nil), fwd[start]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		queue = append(queue, fwd[id]...)
	}
	return seen
}

// TreeShake returns a copy of s keeping only nodes that appear as a
// connection endpoint or as an output map value. Connections and outputs
// are carried over unchanged.
func TreeShake(s *scene.Scene) *scene.Scene {
	keep := make(map[string]bool, len(s.Nodes))
	for _, c := range s.Connections {
		keep[c.From.NodeID] = true
		keep[c.To.NodeID] = true
	}
	for _, id := range s.Outputs {
		keep[id] = true
	}

	out := *s
	out.Nodes = make([]scene.Node, 0, len(keep))
	for _, n := range s.Nodes {
		if keep[n.ID] {
			out.Nodes = append(out.Nodes, n)
		}
	}
	return &out
}

// intHeap adapts a slice of scene positions to container/heap.
type intHeap struct{ a []int }

func (h *intHeap) Len() int           { return len(h.a) }
func (h *intHeap) Less(i, j int) bool { return h.a[i] < h.a[j] }
func (h *intHeap) Swap(i, j int)      { h.a[i], h.a[j] = h.a[j], h.a[i] }
func (h *intHeap) Push(x any)         { h.a = append(h.a, x.(int)) }

func (h *intHeap) Pop() any {
	last := len(h.a) - 1
	v := h.a[last]
	h.a = h.a[:last]
	return v
}

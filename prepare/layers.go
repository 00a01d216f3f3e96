package prepare

import (
	"sort"
	"strings"

	"github.com/gogpu/shadergraph/scene"
)

// DynamicPrefix marks the dynamic layer ports of a composition node.
const DynamicPrefix = "dynamic_"

// Layer is one input of a composition node.
type Layer struct {
	NodeID   string
	FromPort string
	PortID   string
}

// OrderLayers returns the layers of a composition node in draw order. The
// layer on the "pass" port comes first. Dynamic layers follow, ordered by
// the position of their port in the node's declared inputs; undeclared
// ports come last in lexical order. Connection order never matters.
func OrderLayers(s *scene.Scene, comp *scene.Node) []Layer {
	var static []Layer
	type dyn struct {
		Layer
		index int
	}
	var dynamic []dyn
	for _, c := range s.Connections {
		if c.To.NodeID != comp.ID {
			continue
		}
		l := Layer{NodeID: c.From.NodeID, FromPort: c.From.PortID, PortID: c.To.PortID}
		switch {
		case c.To.PortID == "pass":
			static = append(static, l)
		case strings.HasPrefix(c.To.PortID, DynamicPrefix):
			dynamic = append(dynamic, dyn{Layer: l, index: comp.InputIndex(c.To.PortID)})
		}
	}
	sort.SliceStable(dynamic, func(i, j int) bool {
		a, b := dynamic[i], dynamic[j]
		switch {
		case a.index >= 0 && b.index >= 0:
			if a.index != b.index {
				return a.index < b.index
			}
		case a.index >= 0:
			return true
		case b.index >= 0:
			return false
		}
		return a.PortID < b.PortID
	})
	out := static
	for _, d := range dynamic {
		out = append(out, d.Layer)
	}
	return out
}

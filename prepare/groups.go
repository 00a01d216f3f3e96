package prepare

import (
	"fmt"

	"github.com/gogpu/shadergraph/scene"
)

// GroupSeparator joins an instance id and an inner node id.
const GroupSeparator = "/"

// ExpandGroups replaces every Group instance node with a concrete copy of
// its group's nodes and connections. Inner ids are prefixed with the
// instance id; connections on instance ports are rewired through the
// group's input and output port maps. Nested groups expand up to maxDepth
// levels. It returns the number of instances expanded.
func ExpandGroups(s *scene.Scene, maxDepth int) (int, error) {
	if len(s.Groups) == 0 {
		for _, n := range s.Nodes {
			if n.Type == TypeGroup {
				return 0, &RewriteError{Pass: "groups", NodeID: n.ID, Err: fmt.Errorf("group %q is not defined", n.StringOr("groupId", ""))}
			}
		}
		return 0, nil
	}
	groups := make(map[string]*scene.Group, len(s.Groups))
	for i := range s.Groups {
		groups[s.Groups[i].ID] = &s.Groups[i]
	}

	total := 0
	for depth := 0; ; depth++ {
		expanded := 0
		var nodes []scene.Node
		for _, n := range s.Nodes {
			if n.Type != TypeGroup {
				nodes = append(nodes, n)
				continue
			}
			if depth >= maxDepth {
				return total, &RewriteError{Pass: "groups", NodeID: n.ID, Err: fmt.Errorf("group nesting exceeds %d levels", maxDepth)}
			}
			gid := n.StringOr("groupId", "")
			g, ok := groups[gid]
			if !ok {
				return total, &RewriteError{Pass: "groups", NodeID: n.ID, Err: fmt.Errorf("group %q is not defined", gid)}
			}
			inner, err := instantiate(s, n.ID, g)
			if err != nil {
				return total, err
			}
			nodes = append(nodes, inner...)
			expanded++
		}
		if expanded == 0 {
			return total, nil
		}
		s.Nodes = nodes
		total += expanded
	}
}

// instantiate copies g's contents under instance id inst and rewires the
// scene's connections and outputs that reference inst.
func instantiate(s *scene.Scene, inst string, g *scene.Group) ([]scene.Node, error) {
	prefix := inst + GroupSeparator
	nodes := make([]scene.Node, len(g.Nodes))
	for i, n := range g.Nodes {
		c := n.Clone()
		c.ID = prefix + n.ID
		nodes[i] = c
	}

	var conns []scene.Connection
	for _, c := range s.Connections {
		switch {
		case c.To.NodeID == inst:
			targets := groupPorts(g.Inputs, c.To.PortID)
			if len(targets) == 0 {
				return nil, &RewriteError{Pass: "groups", NodeID: inst, Err: fmt.Errorf("group %q has no input port %q", g.ID, c.To.PortID)}
			}
			for i, gp := range targets {
				nc := c
				if i > 0 {
					nc.ID = fmt.Sprintf("%s#%d", c.ID, i)
				}
				nc.To = scene.Endpoint{NodeID: prefix + gp.NodeID, PortID: gp.PortID}
				conns = append(conns, nc)
			}
		case c.From.NodeID == inst:
			sources := groupPorts(g.Outputs, c.From.PortID)
			if len(sources) == 0 {
				return nil, &RewriteError{Pass: "groups", NodeID: inst, Err: fmt.Errorf("group %q has no output port %q", g.ID, c.From.PortID)}
			}
			nc := c
			nc.From = scene.Endpoint{NodeID: prefix + sources[0].NodeID, PortID: sources[0].PortID}
			conns = append(conns, nc)
		default:
			conns = append(conns, c)
		}
	}
	for _, c := range g.Connections {
		nc := c
		nc.ID = prefix + c.ID
		nc.From.NodeID = prefix + c.From.NodeID
		nc.To.NodeID = prefix + c.To.NodeID
		conns = append(conns, nc)
	}
	s.Connections = conns

	for name, id := range s.Outputs {
		if id != inst {
			continue
		}
		if len(g.Outputs) == 0 {
			return nil, &RewriteError{Pass: "groups", NodeID: inst, Err: fmt.Errorf("output %q names group %q which has no outputs", name, g.ID)}
		}
		s.Outputs[name] = prefix + g.Outputs[0].NodeID
	}
	return nodes, nil
}

func groupPorts(ports []scene.GroupPort, id string) []scene.GroupPort {
	var out []scene.GroupPort
	for _, p := range ports {
		if p.ID == id {
			out = append(out, p)
		}
	}
	return out
}

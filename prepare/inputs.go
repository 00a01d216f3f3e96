package prepare

import "github.com/gogpu/shadergraph/scene"

// Accepted port names for the inputs of unary and binary math nodes.
var (
	UnaryInput  = []string{"x", "value", "in"}
	BinaryLeft  = []string{"a", "left", "x"}
	BinaryRight = []string{"b", "right", "y"}
)

// Inputs indexes connections by destination node id.
type Inputs map[string][]scene.Connection

// IndexInputs builds the input index of s.
func IndexInputs(s *scene.Scene) Inputs {
	in := make(Inputs, len(s.Nodes))
	for _, c := range s.Connections {
		in[c.To.NodeID] = append(in[c.To.NodeID], c)
	}
	return in
}

// Find returns the connection landing on nodeID at the first of ports that
// has one.
func (in Inputs) Find(nodeID string, ports ...string) (scene.Connection, bool) {
	conns := in[nodeID]
	for _, p := range ports {
		for _, c := range conns {
			if c.To.PortID == p {
				return c, true
			}
		}
	}
	return scene.Connection{}, false
}

// Unused returns the connections landing on nodeID at ports not in
// accepted.
func (in Inputs) Unused(nodeID string, accepted ...[]string) []scene.Connection {
	var out []scene.Connection
	for _, c := range in[nodeID] {
		found := false
		for _, group := range accepted {
			for _, p := range group {
				if c.To.PortID == p {
					found = true
				}
			}
		}
		if !found {
			out = append(out, c)
		}
	}
	return out
}

package scene

import (
	"encoding/json"
	"maps"
	"slices"
)

// Scene is a user-authored node graph: nodes, typed ports, connections,
// named outputs, reusable groups and an asset manifest.
//
// A Scene is plain data. The compile pipeline never mutates a Scene it
// receives; rewrites are applied to a Clone.
type Scene struct {
	Version     string            `json:"version"`
	Metadata    Metadata          `json:"metadata"`
	Nodes       []Node            `json:"nodes"`
	Connections []Connection      `json:"connections"`
	Outputs     map[string]string `json:"outputs,omitempty"`
	Groups      []Group           `json:"groups,omitempty"`
	Assets      map[string]Asset  `json:"assets,omitempty"`
}

// Metadata describes the scene document.
type Metadata struct {
	Name     string `json:"name"`
	Created  string `json:"created,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// Node is a single graph vertex.
type Node struct {
	// ID is unique within a scene.
	ID string `json:"id"`

	// Type selects the node kind (RenderPass, Composite, Float, ...).
	Type string `json:"type"`

	// Params maps parameter names to JSON-typed values
	// (float64, string, bool, []any, map[string]any).
	Params map[string]any `json:"params,omitempty"`

	// Inputs lists declared input ports. Their order drives dynamic
	// layer ordering on composition nodes.
	Inputs []Port `json:"inputs,omitempty"`

	// Outputs lists declared output ports. A non-empty Type overrides
	// the node-type schema.
	Outputs []Port `json:"outputs,omitempty"`
}

// Port is a declared node port.
type Port struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// Endpoint addresses a port on a node.
type Endpoint struct {
	NodeID string `json:"nodeId"`
	PortID string `json:"portId"`
}

// Connection wires an output port to an input port.
// Evaluation dependency runs from To back to From.
type Connection struct {
	ID   string   `json:"id"`
	From Endpoint `json:"from"`
	To   Endpoint `json:"to"`
}

// Asset is an entry of the asset manifest.
type Asset struct {
	Path         string `json:"path"`
	MimeType     string `json:"mimeType"`
	OriginalName string `json:"originalName,omitempty"`
}

// Group is a reusable subgraph instantiated by nodes of type "Group".
type Group struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Inputs      []GroupPort  `json:"inputs,omitempty"`
	Outputs     []GroupPort  `json:"outputs,omitempty"`
}

// GroupPort maps a port of a group instance onto a port of an inner node.
type GroupPort struct {
	ID     string `json:"id"`
	NodeID string `json:"nodeId"`
	PortID string `json:"portId"`
}

// NodeByID returns the node with the given id.
func (s *Scene) NodeByID(id string) (*Node, bool) {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i], true
		}
	}
	return nil, false
}

// Index returns a map from node id to node. Pointers alias s.Nodes.
func (s *Scene) Index() map[string]*Node {
	idx := make(map[string]*Node, len(s.Nodes))
	for i := range s.Nodes {
		idx[s.Nodes[i].ID] = &s.Nodes[i]
	}
	return idx
}

// HasNode reports whether a node with the given id exists.
func (s *Scene) HasNode(id string) bool {
	_, ok := s.NodeByID(id)
	return ok
}

// IncomingTo returns connections landing on nodeID, in scene order.
func (s *Scene) IncomingTo(nodeID string) []Connection {
	var out []Connection
	for _, c := range s.Connections {
		if c.To.NodeID == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// OutgoingFrom returns connections leaving nodeID, in scene order.
func (s *Scene) OutgoingFrom(nodeID string) []Connection {
	var out []Connection
	for _, c := range s.Connections {
		if c.From.NodeID == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// InputConnection returns the first connection landing on the given input port.
func (s *Scene) InputConnection(nodeID, portID string) (Connection, bool) {
	for _, c := range s.Connections {
		if c.To.NodeID == nodeID && c.To.PortID == portID {
			return c, true
		}
	}
	return Connection{}, false
}

// Clone returns a deep copy of the scene.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	out := &Scene{
		Version:     s.Version,
		Metadata:    s.Metadata,
		Nodes:       make([]Node, len(s.Nodes)),
		Connections: slices.Clone(s.Connections),
		Outputs:     maps.Clone(s.Outputs),
		Assets:      maps.Clone(s.Assets),
	}
	for i := range s.Nodes {
		out.Nodes[i] = s.Nodes[i].Clone()
	}
	if s.Groups != nil {
		out.Groups = make([]Group, len(s.Groups))
		for i, g := range s.Groups {
			ng := g
			ng.Nodes = make([]Node, len(g.Nodes))
			for j := range g.Nodes {
				ng.Nodes[j] = g.Nodes[j].Clone()
			}
			ng.Connections = slices.Clone(g.Connections)
			ng.Inputs = slices.Clone(g.Inputs)
			ng.Outputs = slices.Clone(g.Outputs)
			out.Groups[i] = ng
		}
	}
	return out
}

// Clone returns a deep copy of the node, including nested parameter values.
func (n Node) Clone() Node {
	out := n
	if n.Params != nil {
		out.Params = make(map[string]any, len(n.Params))
		for k, v := range n.Params {
			out.Params[k] = cloneValue(v)
		}
	}
	out.Inputs = slices.Clone(n.Inputs)
	out.Outputs = slices.Clone(n.Outputs)
	return out
}

// InputIndex returns the position of portID in the declared input list, or -1.
func (n *Node) InputIndex(portID string) int {
	for i, p := range n.Inputs {
		if p.ID == portID {
			return i
		}
	}
	return -1
}

// DeclaredOutput returns the declared output port with the given id.
func (n *Node) DeclaredOutput(portID string) (Port, bool) {
	for _, p := range n.Outputs {
		if p.ID == portID {
			return p, true
		}
	}
	return Port{}, false
}

// DeclaredInput returns the declared input port with the given id.
func (n *Node) DeclaredInput(portID string) (Port, bool) {
	for _, p := range n.Inputs {
		if p.ID == portID {
			return p, true
		}
	}
	return Port{}, false
}

// Marshal encodes the scene as indented JSON.
func (s *Scene) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

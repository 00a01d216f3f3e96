package scene

import "fmt"

// Builder provides a fluent API for constructing scenes in code.
//
// Example:
//
//	s := scene.NewBuilder("demo").
//	    Node("screen", "Screen", scene.Params{"width": 640.0, "height": 480.0}).
//	    Node("color", "Color", scene.Params{"value": []any{1.0, 0.0, 0.0, 1.0}}).
//	    Node("pass", "RenderPass", nil).
//	    Connect("color", "color", "pass", "color").
//	    Connect("pass", "pass", "screen", "pass").
//	    Output("main", "screen").
//	    Build()
type Builder struct {
	scene *Scene
	seq   int
}

// Params is shorthand for a node parameter map.
type Params = map[string]any

// NewBuilder creates a builder for an empty scene with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{scene: &Scene{
		Version:  "1",
		Metadata: Metadata{Name: name},
		Outputs:  map[string]string{},
	}}
}

// Node appends a node.
func (b *Builder) Node(id, typ string, params Params) *Builder {
	b.scene.Nodes = append(b.scene.Nodes, Node{ID: id, Type: typ, Params: params})
	return b
}

// NodeWithPorts appends a node with declared ports.
func (b *Builder) NodeWithPorts(id, typ string, params Params, inputs, outputs []Port) *Builder {
	b.scene.Nodes = append(b.scene.Nodes, Node{ID: id, Type: typ, Params: params, Inputs: inputs, Outputs: outputs})
	return b
}

// Connect appends a connection with a generated id.
func (b *Builder) Connect(fromNode, fromPort, toNode, toPort string) *Builder {
	b.seq++
	return b.ConnectID(fmt.Sprintf("c%d", b.seq), fromNode, fromPort, toNode, toPort)
}

// ConnectID appends a connection with an explicit id.
func (b *Builder) ConnectID(id, fromNode, fromPort, toNode, toPort string) *Builder {
	b.scene.Connections = append(b.scene.Connections, Connection{
		ID:   id,
		From: Endpoint{NodeID: fromNode, PortID: fromPort},
		To:   Endpoint{NodeID: toNode, PortID: toPort},
	})
	return b
}

// Output names an output node.
func (b *Builder) Output(name, nodeID string) *Builder {
	b.scene.Outputs[name] = nodeID
	return b
}

// Asset adds an asset manifest entry.
func (b *Builder) Asset(id, path, mime string) *Builder {
	if b.scene.Assets == nil {
		b.scene.Assets = make(map[string]Asset)
	}
	b.scene.Assets[id] = Asset{Path: path, MimeType: mime, OriginalName: path}
	return b
}

// Group adds a group definition.
func (b *Builder) Group(g Group) *Builder {
	b.scene.Groups = append(b.scene.Groups, g)
	return b
}

// Build returns the constructed scene. The builder must not be reused.
func (b *Builder) Build() *Scene {
	return b.scene
}

// Package resolve assigns every draw pass and composition node of a
// prepared scene the coordinate domain it renders into, and its geometry.
//
// A node's domain is found by walking forward from its pass output. A
// texture target (Screen or RenderTexture) wired directly to the output
// wins; otherwise the node inherits the domain of the composition that
// consumes it. A node that reaches no target is an error.
package resolve

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/gogpu/shadergraph/internal/logging"
	"github.com/gogpu/shadergraph/prepare"
	"github.com/gogpu/shadergraph/scene"
)

var logger logging.Cell

// SetLogger sets the logger for the resolve package. nil restores silence.
func SetLogger(l *slog.Logger) { logger.Store(l) }

// ErrUnresolvedTarget is matched by *UnresolvedTargetError.
var ErrUnresolvedTarget = errors.New("resolve: unresolved target")

// UnresolvedTargetError reports a draw or composition node without a
// single target texture.
type UnresolvedTargetError struct {
	NodeID string
	Reason string
}

func (e *UnresolvedTargetError) Error() string {
	return fmt.Sprintf("resolve: node %q has no target texture: %s", e.NodeID, e.Reason)
}

// Is reports ErrUnresolvedTarget equivalence.
func (e *UnresolvedTargetError) Is(target error) bool { return target == ErrUnresolvedTarget }

// Domain is the texture a node renders into and its pixel size.
type Domain struct {
	TextureNodeID string
	TextureName   string
	Width         int
	Height        int
	Format        string
}

// Geometry is the shape a draw node rasterizes. A Geometry without
// vertices is a fullscreen quad.
type Geometry struct {
	SourceID  string
	Vertices  []float32
	Instances []float32
	CenterX   float32
	CenterY   float32
	Width     float32
	Height    float32
}

// Fullscreen reports whether g covers the whole domain.
func (g Geometry) Fullscreen() bool { return len(g.Vertices) == 0 }

// InstanceCount returns the number of instances, at least one.
func (g Geometry) InstanceCount() int {
	if n := len(g.Instances) / 2; n > 0 {
		return n
	}
	return 1
}

// Route is the resolved placement of one draw or composition node.
type Route struct {
	NodeID   string
	Type     string
	Domain   Domain
	Geometry Geometry

	// Explicit is set when a texture target is wired directly to the node.
	Explicit bool

	// Layers lists the inputs of a composition node in draw order.
	Layers []prepare.Layer
}

// ConsumerEdge records a composition node feeding another.
type ConsumerEdge struct {
	From string
	To   string
}

// Result holds the routes of a prepared scene.
type Result struct {
	// Routes maps draw and composition node ids to their placement.
	Routes map[string]*Route

	// Order lists routed nodes in topological order.
	Order []string

	// Textures maps target node ids to their domain.
	Textures map[string]Domain

	ConsumerEdges []ConsumerEdge
}

// Route returns the route of a node.
func (r *Result) Route(id string) (*Route, bool) {
	rt, ok := r.Routes[id]
	return rt, ok
}

// IsDraw reports whether typ is a draw pass kind.
func IsDraw(typ string) bool {
	switch typ {
	case prepare.TypeRenderPass, prepare.TypeBlit, prepare.TypeBlur, prepare.TypeBloom:
		return true
	}
	return false
}

// IsTarget reports whether typ is a texture target kind.
func IsTarget(typ string) bool {
	return typ == prepare.TypeScreen || typ == prepare.TypeRenderTexture
}

// Resolve computes the routes of p.
func Resolve(p *prepare.Prepared) (*Result, error) {
	log := logger.Load()
	r := &Result{
		Routes:   make(map[string]*Route),
		Textures: make(map[string]Domain),
	}
	for _, id := range p.Order {
		n := p.Nodes[id]
		if IsTarget(n.Type) {
			r.Textures[id] = targetDomain(p, n)
		}
	}

	outgoing := make(map[string][]scene.Connection)
	for _, c := range p.Scene.Connections {
		outgoing[c.From.NodeID] = append(outgoing[c.From.NodeID], c)
	}

	// Consumers come later in topological order, so walking it backwards
	// resolves every composition before the nodes feeding it.
	for i := len(p.Order) - 1; i >= 0; i-- {
		n := p.Nodes[p.Order[i]]
		if !IsDraw(n.Type) && n.Type != prepare.TypeComposite {
			continue
		}
		rt, err := r.route(p, n, outgoing[n.ID])
		if err != nil {
			return nil, err
		}
		r.Routes[n.ID] = rt
	}
	for _, id := range p.Order {
		if _, ok := r.Routes[id]; ok {
			r.Order = append(r.Order, id)
		}
	}

	for _, id := range p.CompositeOrder {
		for _, c := range outgoing[id] {
			if to, ok := p.Nodes[c.To.NodeID]; ok && to.Type == prepare.TypeComposite {
				r.ConsumerEdges = append(r.ConsumerEdges, ConsumerEdge{From: id, To: to.ID})
			}
		}
	}

	log.Debug("resolve: done", "routes", len(r.Routes), "textures", len(r.Textures), "consumer_edges", len(r.ConsumerEdges))
	return r, nil
}

func (r *Result) route(p *prepare.Prepared, n *scene.Node, out []scene.Connection) (*Route, error) {
	rt := &Route{NodeID: n.ID, Type: n.Type}
	if n.Type == prepare.TypeComposite {
		rt.Layers = p.Layers[n.ID]
	}

	var explicit, parents []string
	for _, c := range out {
		if c.From.PortID != "pass" {
			continue
		}
		to, ok := p.Nodes[c.To.NodeID]
		if !ok {
			continue
		}
		switch {
		case IsTarget(to.Type):
			if !slices.Contains(explicit, to.ID) {
				explicit = append(explicit, to.ID)
			}
		case to.Type == prepare.TypeComposite:
			if parent, ok := r.Routes[to.ID]; ok && !slices.Contains(parents, parent.Domain.TextureNodeID) {
				parents = append(parents, parent.Domain.TextureNodeID)
			}
		}
	}

	switch {
	case len(explicit) > 1:
		return nil, &UnresolvedTargetError{NodeID: n.ID, Reason: fmt.Sprintf("wired to %d targets %v", len(explicit), explicit)}
	case len(explicit) == 1:
		rt.Domain = r.Textures[explicit[0]]
		rt.Explicit = true
	case len(parents) == 0:
		return nil, &UnresolvedTargetError{NodeID: n.ID, Reason: "pass output reaches no Screen, RenderTexture or Composite"}
	case len(parents) > 1:
		return nil, &UnresolvedTargetError{NodeID: n.ID, Reason: fmt.Sprintf("feeds compositions with different targets %v", parents)}
	default:
		rt.Domain = r.Textures[parents[0]]
	}

	g, err := geometry(p, n)
	if err != nil {
		return nil, err
	}
	rt.Geometry = g
	return rt, nil
}

// geometry returns the baked geometry wired into a RenderPass, or a
// fullscreen quad.
func geometry(p *prepare.Prepared, n *scene.Node) (Geometry, error) {
	if n.Type != prepare.TypeRenderPass {
		return Geometry{}, nil
	}
	c, ok := p.Inputs.Find(n.ID, "geometry")
	if !ok {
		return Geometry{}, nil
	}
	verts, ok := p.Baked[prepare.BakeKey{NodeID: c.From.NodeID, PortID: c.From.PortID, Kind: prepare.KindVertices}]
	if !ok {
		return Geometry{}, &UnresolvedTargetError{NodeID: n.ID, Reason: fmt.Sprintf("geometry source %q was not baked", c.From.NodeID)}
	}
	g := Geometry{SourceID: c.From.NodeID, Vertices: verts.Vertices}
	if inst, ok := p.Baked[prepare.BakeKey{NodeID: c.From.NodeID, PortID: c.From.PortID, Kind: prepare.KindInstances}]; ok {
		g.Instances = inst.Instances
	}
	minX, minY, maxX, maxY := verts.Bounds()
	g.CenterX, g.CenterY = (minX+maxX)/2, (minY+maxY)/2
	g.Width, g.Height = maxX-minX, maxY-minY
	return g, nil
}

// targetDomain returns the domain of a Screen or RenderTexture node. A
// RenderTexture without an explicit size is sized relative to the output.
func targetDomain(p *prepare.Prepared, n *scene.Node) Domain {
	d := Domain{
		TextureNodeID: n.ID,
		TextureName:   p.ResourceNames[n.ID],
		Format:        n.StringOr("format", "rgba8unorm"),
	}
	if n.ID == p.OutputNodeID || n.Type == prepare.TypeScreen {
		d.Width, d.Height = p.Width, p.Height
		return d
	}
	scale := n.FloatOr("scale", 1)
	d.Width = n.IntOr("width", 0)
	if d.Width <= 0 {
		d.Width = max(int(math.Round(float64(p.Width)*scale)), 1)
	}
	d.Height = n.IntOr("height", 0)
	if d.Height <= 0 {
		d.Height = max(int(math.Round(float64(p.Height)*scale)), 1)
	}
	return d
}

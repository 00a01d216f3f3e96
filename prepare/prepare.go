// Package prepare applies the structural rewrites that turn a validated
// scene into a Prepared scene: group expansion, image-file inlining,
// implicit pass wrapping and constant baking, followed by tree-shaking,
// topological ordering and output resolution.
//
// A Prepared scene is created once per compile attempt and is not modified
// afterwards.
package prepare

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/gogpu/shadergraph/internal/graph"
	"github.com/gogpu/shadergraph/scene"
	"github.com/gogpu/shadergraph/schema"
)

// Default scene resolution used when the output node declares none.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// SceneTexture is the resource name of the output node's texture.
const SceneTexture = "scene"

// Node types with fixed roles in the pipeline.
const (
	TypeScreen        = "Screen"
	TypeRenderTexture = "RenderTexture"
	TypeRenderPass    = "RenderPass"
	TypeBlit          = "Blit"
	TypeBlur          = "Blur"
	TypeBloom         = "Bloom"
	TypeComposite     = "Composite"
	TypeGroup         = "Group"
	TypeImageFile     = "ImageFile"
	TypeImageTexture  = "ImageTexture"
	TypeText          = "Text"
)

var (
	// ErrNoOutput is returned when no Screen output node can be found.
	ErrNoOutput = errors.New("prepare: scene has no Screen output node")

	// ErrInvalidResolution is matched by *ResolutionError.
	ErrInvalidResolution = errors.New("prepare: invalid output resolution")
)

// ResolutionError reports a missing or non-positive output size. Width and
// Height carry the default size the error pipeline is rendered at.
type ResolutionError struct {
	NodeID string
	Field  string
	Width  int
	Height int
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("prepare: node %q: %s must be a positive integer (falling back to %dx%d)", e.NodeID, e.Field, e.Width, e.Height)
}

// Is reports ErrInvalidResolution equivalence.
func (e *ResolutionError) Is(target error) bool { return target == ErrInvalidResolution }

// RewriteError reports a failed rewrite pass.
type RewriteError struct {
	Pass   string
	NodeID string
	Err    error
}

func (e *RewriteError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("prepare: %s: %v", e.Pass, e.Err)
	}
	return fmt.Sprintf("prepare: %s: node %q: %v", e.Pass, e.NodeID, e.Err)
}

func (e *RewriteError) Unwrap() error { return e.Err }

// Stats counts rewrites per pass.
type Stats struct {
	GroupsExpanded int
	ImagesInlined  int
	PassesWrapped  int
	ValuesBaked    int
	NodesShaken    int
}

// Options tune preparation.
type Options struct {
	// DefaultWidth and DefaultHeight override the fallback resolution.
	DefaultWidth  int
	DefaultHeight int

	// MaxGroupDepth bounds nested group expansion. Zero means 8.
	MaxGroupDepth int
}

// Prepared is a scene after structural rewrites, with derived indices.
type Prepared struct {
	Scene  *scene.Scene
	Schema *schema.Schema

	// Nodes indexes Scene.Nodes by id.
	Nodes map[string]*scene.Node

	// Inputs indexes Scene.Connections by destination node.
	Inputs Inputs

	// ResourceNames maps node ids to unique identifier-safe names.
	ResourceNames map[string]string

	// Order is the topological order of Scene.Nodes.
	Order []string

	// CompositeOrder lists composition nodes in draw order.
	CompositeOrder []string

	// Layers maps each composition node to its ordered layers.
	Layers map[string][]Layer

	// LayerOf maps a layer node to the composition nodes it feeds.
	LayerOf map[string][]string

	OutputNodeID  string
	OutputTexture string
	Width         int
	Height        int
	Format        string
	Encoding      string

	Baked map[BakeKey]*Baked
	Stats Stats
}

// Prepare rewrites a validated scene. sc is not modified.
func Prepare(sc *scene.Scene, sch *schema.Schema, opts Options) (*Prepared, error) {
	if opts.DefaultWidth <= 0 {
		opts.DefaultWidth = DefaultWidth
	}
	if opts.DefaultHeight <= 0 {
		opts.DefaultHeight = DefaultHeight
	}
	if opts.MaxGroupDepth <= 0 {
		opts.MaxGroupDepth = 8
	}
	log := logger.Load()

	s := sc.Clone()
	p := &Prepared{Schema: sch}

	n, err := ExpandGroups(s, opts.MaxGroupDepth)
	if err != nil {
		return nil, err
	}
	p.Stats.GroupsExpanded = n
	if n > 0 {
		if err := sch.CheckConnections(s); err != nil {
			return nil, err
		}
	}
	log.Debug("prepare: groups expanded", "count", n)

	if p.Stats.ImagesInlined, err = InlineImageFiles(s, sch); err != nil {
		return nil, err
	}
	log.Debug("prepare: image files inlined", "count", p.Stats.ImagesInlined)

	if p.Stats.PassesWrapped, err = AutoWrap(s, sch); err != nil {
		return nil, err
	}
	log.Debug("prepare: implicit passes inserted", "count", p.Stats.PassesWrapped)

	before := len(s.Nodes)
	s = graph.TreeShake(s)
	p.Stats.NodesShaken = before - len(s.Nodes)

	order, err := graph.TopologicalOrder(s)
	if err != nil {
		return nil, err
	}
	p.Scene = s
	p.Order = order
	p.Nodes = s.Index()
	p.Inputs = IndexInputs(s)

	if p.Baked, err = BakeConstants(s, order); err != nil {
		return nil, err
	}
	p.Stats.ValuesBaked = len(p.Baked)
	log.Debug("prepare: constants baked", "count", p.Stats.ValuesBaked)

	if err := p.resolveOutput(opts); err != nil {
		return nil, err
	}
	p.ResourceNames = resourceNames(s, p.OutputNodeID)

	p.Layers = make(map[string][]Layer)
	p.LayerOf = make(map[string][]string)
	for _, id := range order {
		node := p.Nodes[id]
		if node.Type != TypeComposite {
			continue
		}
		p.CompositeOrder = append(p.CompositeOrder, id)
		layers := OrderLayers(s, node)
		p.Layers[id] = layers
		for _, l := range layers {
			p.LayerOf[l.NodeID] = append(p.LayerOf[l.NodeID], id)
		}
	}

	log.Debug("prepare: done",
		"nodes", len(s.Nodes),
		"connections", len(s.Connections),
		"composites", len(p.CompositeOrder),
		"width", p.Width,
		"height", p.Height)
	return p, nil
}

// Node returns a node by id.
func (p *Prepared) Node(id string) (*scene.Node, bool) {
	n, ok := p.Nodes[id]
	return n, ok
}

// Category returns the schema category of a node.
func (p *Prepared) Category(id string) string {
	n, ok := p.Nodes[id]
	if !ok {
		return ""
	}
	return p.Schema.Category(n.Type)
}

func (p *Prepared) resolveOutput(opts Options) error {
	s := p.Scene
	var id string
	if v, ok := s.Outputs["main"]; ok {
		id = v
	} else if len(s.Outputs) > 0 {
		names := make([]string, 0, len(s.Outputs))
		for name := range s.Outputs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if n, ok := p.Nodes[s.Outputs[name]]; ok && n.Type == TypeScreen {
				id = n.ID
				break
			}
		}
	}
	if id == "" {
		for _, n := range s.Nodes {
			if n.Type == TypeScreen {
				id = n.ID
				break
			}
		}
	}
	out, ok := p.Nodes[id]
	if !ok || out.Type != TypeScreen {
		return ErrNoOutput
	}

	p.OutputNodeID = id
	p.OutputTexture = SceneTexture
	p.Format = out.StringOr("format", "rgba8unorm")
	p.Encoding = out.StringOr("encoding", "linear")

	for _, field := range []string{"width", "height"} {
		if v, ok := out.Float(field); ok && v <= 0 {
			return &ResolutionError{NodeID: id, Field: field, Width: opts.DefaultWidth, Height: opts.DefaultHeight}
		}
	}
	p.Width = out.IntOr("width", opts.DefaultWidth)
	p.Height = out.IntOr("height", opts.DefaultHeight)
	return nil
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// resourceNames assigns every node a unique, identifier-safe name.
func resourceNames(s *scene.Scene, outputID string) map[string]string {
	names := make(map[string]string, len(s.Nodes))
	used := map[string]bool{SceneTexture: true}
	for _, n := range s.Nodes {
		if n.ID == outputID {
			names[n.ID] = SceneTexture
			continue
		}
		base := nonIdent.ReplaceAllString(n.ID, "_")
		if base == "" || (base[0] >= '0' && base[0] <= '9') {
			base = "n" + base
		}
		name := base
		for i := 2; used[name]; i++ {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		used[name] = true
		names[n.ID] = name
	}
	return names
}

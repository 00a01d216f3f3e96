package resolve

import (
	"errors"
	"testing"

	"github.com/gogpu/shadergraph/prepare"
	"github.com/gogpu/shadergraph/scene"
	"github.com/gogpu/shadergraph/schema"
)

func mustPrepare(t *testing.T, s *scene.Scene) *prepare.Prepared {
	t.Helper()
	sch := schema.Builtin()
	v, err := sch.Validate(s)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	p, err := prepare.Prepare(v, sch, prepare.Options{})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return p
}

func TestResolveUnresolvedTarget(t *testing.T) {
	s := scene.NewBuilder("orphan").
		Node("screen", "Screen", nil).
		Node("col", "Color", nil).
		Node("ok", "RenderPass", nil).
		Node("lost", "RenderPass", nil).
		Connect("col", "color", "ok", "color").
		Connect("col", "color", "lost", "color").
		Connect("ok", "pass", "screen", "pass").
		Build()
	_, err := Resolve(mustPrepare(t, s))
	if !errors.Is(err, ErrUnresolvedTarget) {
		t.Fatalf("Resolve() error = %v, want ErrUnresolvedTarget", err)
	}
	var ue *UnresolvedTargetError
	if !errors.As(err, &ue) || ue.NodeID != "lost" {
		t.Errorf("error = %v, want node lost", err)
	}
}

func TestResolveInheritsCompositeDomain(t *testing.T) {
	s := scene.NewBuilder("inherit").
		Node("screen", "Screen", scene.Params{"width": 800.0, "height": 600.0}).
		Node("comp", "Composite", nil).
		Node("col", "Color", nil).
		Node("rp", "RenderPass", nil).
		Connect("col", "color", "rp", "color").
		Connect("rp", "pass", "comp", "pass").
		Connect("comp", "pass", "screen", "pass").
		Build()
	r, err := Resolve(mustPrepare(t, s))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	rp, _ := r.Route("rp")
	comp, _ := r.Route("comp")
	if rp.Explicit {
		t.Error("rp should inherit its domain")
	}
	if !comp.Explicit {
		t.Error("comp targets the screen explicitly")
	}
	want := Domain{TextureNodeID: "screen", TextureName: "scene", Width: 800, Height: 600, Format: "rgba8unorm"}
	if rp.Domain != want || comp.Domain != want {
		t.Errorf("domains = %+v / %+v, want %+v", rp.Domain, comp.Domain, want)
	}
	if len(comp.Layers) != 1 || comp.Layers[0].NodeID != "rp" {
		t.Errorf("comp layers = %+v", comp.Layers)
	}
	if !rp.Geometry.Fullscreen() {
		t.Error("rp without geometry should be fullscreen")
	}
	if len(r.Order) != 2 || r.Order[0] != "rp" || r.Order[1] != "comp" {
		t.Errorf("Order = %v, want [rp comp]", r.Order)
	}
}

func TestResolveRenderTextureSize(t *testing.T) {
	s := scene.NewBuilder("rt").
		Node("screen", "Screen", nil).
		Node("half", "RenderTexture", scene.Params{"scale": 0.5}).
		Node("fixed", "RenderTexture", scene.Params{"width": 64.0, "height": 32.0, "format": "rgba16float"}).
		Node("col", "Color", nil).
		Node("a", "RenderPass", nil).
		Node("b", "RenderPass", nil).
		Node("blit", "Blit", nil).
		Connect("col", "color", "a", "color").
		Connect("col", "color", "b", "color").
		Connect("a", "pass", "half", "pass").
		Connect("b", "pass", "fixed", "pass").
		Connect("half", "texture", "blit", "texture").
		Connect("blit", "pass", "screen", "pass").
		Build()
	r, err := Resolve(mustPrepare(t, s))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	half := r.Textures["half"]
	if half.Width != 640 || half.Height != 360 {
		t.Errorf("half = %dx%d, want 640x360", half.Width, half.Height)
	}
	fixed := r.Textures["fixed"]
	if fixed.Width != 64 || fixed.Height != 32 || fixed.Format != "rgba16float" {
		t.Errorf("fixed = %+v", fixed)
	}
	a, _ := r.Route("a")
	if a.Domain.TextureNodeID != "half" {
		t.Errorf("a renders into %q, want half", a.Domain.TextureNodeID)
	}
}

func TestResolveMultipleTargets(t *testing.T) {
	s := scene.NewBuilder("two").
		Node("screen", "Screen", nil).
		Node("rt", "RenderTexture", nil).
		Node("col", "Color", nil).
		Node("rp", "RenderPass", nil).
		Connect("col", "color", "rp", "color").
		Connect("rp", "pass", "screen", "pass").
		Connect("rp", "pass", "rt", "pass").
		Build()
	_, err := Resolve(mustPrepare(t, s))
	var ue *UnresolvedTargetError
	if !errors.As(err, &ue) || ue.NodeID != "rp" {
		t.Errorf("Resolve() error = %v, want UnresolvedTargetError on rp", err)
	}
}

func TestResolveConsumerEdges(t *testing.T) {
	s := scene.NewBuilder("edges").
		Node("screen", "Screen", nil).
		Node("rt", "RenderTexture", nil).
		Node("inner", "Composite", nil).
		Node("outer", "Composite", nil).
		Node("col", "Color", nil).
		Node("rp", "RenderPass", nil).
		Connect("col", "color", "rp", "color").
		Connect("rp", "pass", "inner", "pass").
		Connect("inner", "pass", "rt", "pass").
		Connect("inner", "pass", "outer", "dynamic_0").
		Connect("outer", "pass", "screen", "pass").
		Build()
	r, err := Resolve(mustPrepare(t, s))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(r.ConsumerEdges) != 1 || r.ConsumerEdges[0] != (ConsumerEdge{From: "inner", To: "outer"}) {
		t.Errorf("ConsumerEdges = %+v", r.ConsumerEdges)
	}
	inner, _ := r.Route("inner")
	if inner.Domain.TextureNodeID != "rt" || !inner.Explicit {
		t.Errorf("inner domain = %+v, want explicit rt", inner.Domain)
	}
}

func TestResolveGeometry(t *testing.T) {
	s := scene.NewBuilder("geo").
		Node("screen", "Screen", nil).
		Node("rect", "Rect", scene.Params{"width": 40.0, "height": 20.0, "center": []any{100.0, 50.0}}).
		Node("grid", "Instances", scene.Params{"count": 3.0, "columns": 3.0, "spacing": []any{50.0, 0.0}}).
		Node("rp", "RenderPass", nil).
		Connect("rect", "geometry", "grid", "geometry").
		Connect("grid", "geometry", "rp", "geometry").
		Connect("rp", "pass", "screen", "pass").
		Build()
	r, err := Resolve(mustPrepare(t, s))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	rp, _ := r.Route("rp")
	g := rp.Geometry
	if g.Fullscreen() {
		t.Fatal("geometry should not be fullscreen")
	}
	if g.SourceID != "grid" || g.CenterX != 100 || g.CenterY != 50 || g.Width != 40 || g.Height != 20 {
		t.Errorf("geometry = %+v", g)
	}
	if g.InstanceCount() != 3 {
		t.Errorf("InstanceCount() = %d, want 3", g.InstanceCount())
	}
}

package prepare

import (
	"errors"
	"image/color"
	"reflect"
	"testing"

	"github.com/gogpu/shadergraph/scene"
	"github.com/gogpu/shadergraph/schema"
)

func mustPrepare(t *testing.T, s *scene.Scene) *Prepared {
	t.Helper()
	sch := schema.Builtin()
	v, err := sch.Validate(s)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	p, err := Prepare(v, sch, Options{})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return p
}

func simpleScene(screen scene.Params) *scene.Scene {
	return scene.NewBuilder("simple").
		Node("screen", "Screen", screen).
		Node("col", "Color", scene.Params{"value": []any{1.0, 0.0, 0.0, 1.0}}).
		Node("rp", "RenderPass", nil).
		Node("orphan", "Float", nil).
		Connect("col", "color", "rp", "color").
		Connect("rp", "pass", "screen", "pass").
		Output("main", "screen").
		Build()
}

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func TestPrepareSimple(t *testing.T) {
	p := mustPrepare(t, simpleScene(scene.Params{"width": 640.0, "height": 480.0}))

	if p.Width != 640 || p.Height != 480 {
		t.Errorf("resolution = %dx%d, want 640x480", p.Width, p.Height)
	}
	if p.OutputNodeID != "screen" || p.OutputTexture != SceneTexture {
		t.Errorf("output = %q/%q, want screen/%q", p.OutputNodeID, p.OutputTexture, SceneTexture)
	}
	if p.ResourceNames["screen"] != SceneTexture {
		t.Errorf("ResourceNames[screen] = %q, want %q", p.ResourceNames["screen"], SceneTexture)
	}
	if _, ok := p.Node("orphan"); ok {
		t.Error("unlinked node survived tree-shaking")
	}
	if p.Stats.NodesShaken != 1 {
		t.Errorf("NodesShaken = %d, want 1", p.Stats.NodesShaken)
	}
	if !(indexOf(p.Order, "col") < indexOf(p.Order, "rp") && indexOf(p.Order, "rp") < indexOf(p.Order, "screen")) {
		t.Errorf("Order = %v, want col before rp before screen", p.Order)
	}
	if p.Format != "rgba8unorm" || p.Encoding != "linear" {
		t.Errorf("format/encoding = %s/%s", p.Format, p.Encoding)
	}
}

func TestPrepareDefaultResolution(t *testing.T) {
	p := mustPrepare(t, simpleScene(nil))
	if p.Width != DefaultWidth || p.Height != DefaultHeight {
		t.Errorf("resolution = %dx%d, want %dx%d", p.Width, p.Height, DefaultWidth, DefaultHeight)
	}
}

func TestPrepareInvalidResolution(t *testing.T) {
	sch := schema.Builtin()
	v, err := sch.Validate(simpleScene(scene.Params{"width": 0.0, "height": 480.0}))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	_, err = Prepare(v, sch, Options{DefaultWidth: 320, DefaultHeight: 200})
	if !errors.Is(err, ErrInvalidResolution) {
		t.Fatalf("Prepare() error = %v, want ErrInvalidResolution", err)
	}
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("error %T is not *ResolutionError", err)
	}
	if re.Field != "width" || re.Width != 320 || re.Height != 200 {
		t.Errorf("ResolutionError = %+v", re)
	}
}

func TestPrepareNoOutput(t *testing.T) {
	s := scene.NewBuilder("none").
		Node("a", "Float", nil).
		Node("b", "Sin", nil).
		Connect("a", "value", "b", "x").
		Build()
	sch := schema.Builtin()
	v, err := sch.Validate(s)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Prepare(v, sch, Options{}); !errors.Is(err, ErrNoOutput) {
		t.Errorf("Prepare() error = %v, want ErrNoOutput", err)
	}
}

func TestPrepareDoesNotMutateInput(t *testing.T) {
	s := simpleScene(nil)
	before := len(s.Nodes)
	mustPrepare(t, s)
	if len(s.Nodes) != before {
		t.Errorf("input scene changed: %d nodes, want %d", len(s.Nodes), before)
	}
}

func TestOrderLayersDeterministic(t *testing.T) {
	ports := []scene.Port{{ID: "pass"}, {ID: "dynamic_0"}, {ID: "dynamic_1"}, {ID: "dynamic_2"}}
	s := scene.NewBuilder("layers").
		NodeWithPorts("comp", "Composite", nil, ports, nil).
		Node("d2", "RenderPass", nil).
		Node("d1", "RenderPass", nil).
		Node("d0", "RenderPass", nil).
		Node("st", "RenderPass", nil).
		Connect("d2", "pass", "comp", "dynamic_2").
		Connect("d1", "pass", "comp", "dynamic_1").
		Connect("d0", "pass", "comp", "dynamic_0").
		Connect("st", "pass", "comp", "pass").
		Build()
	comp, _ := s.NodeByID("comp")

	var got []string
	for _, l := range OrderLayers(s, comp) {
		got = append(got, l.NodeID)
	}
	want := []string{"st", "d0", "d1", "d2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OrderLayers() = %v, want %v", got, want)
	}
}

func TestOrderLayersUndeclaredLexical(t *testing.T) {
	ports := []scene.Port{{ID: "pass"}, {ID: "dynamic_b"}}
	s := scene.NewBuilder("layers").
		NodeWithPorts("comp", "Composite", nil, ports, nil).
		Node("z", "RenderPass", nil).
		Node("a", "RenderPass", nil).
		Node("b", "RenderPass", nil).
		Connect("z", "pass", "comp", "dynamic_z").
		Connect("a", "pass", "comp", "dynamic_a").
		Connect("b", "pass", "comp", "dynamic_b").
		Build()
	comp, _ := s.NodeByID("comp")

	var got []string
	for _, l := range OrderLayers(s, comp) {
		got = append(got, l.PortID)
	}
	want := []string{"dynamic_b", "dynamic_a", "dynamic_z"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OrderLayers() = %v, want %v", got, want)
	}
}

func TestAutoWrap(t *testing.T) {
	s := scene.NewBuilder("wrap").
		Node("screen", "Screen", nil).
		Node("comp", "Composite", nil).
		Node("col", "Color", nil).
		Node("img", "ImageTexture", scene.Params{"assetId": "a1"}).
		Connect("col", "color", "comp", "pass").
		Connect("img", "texture", "comp", "dynamic_0").
		Connect("comp", "pass", "screen", "pass").
		Build()
	p := mustPrepare(t, s)

	if p.Stats.PassesWrapped != 2 {
		t.Fatalf("PassesWrapped = %d, want 2", p.Stats.PassesWrapped)
	}
	rp, ok := p.Node("col~wrap~comp.pass")
	if !ok || rp.Type != TypeRenderPass {
		t.Fatalf("RenderPass wrapper missing: %+v", rp)
	}
	if _, ok := p.Inputs.Find(rp.ID, "color"); !ok {
		t.Error("wrapper has no color input")
	}
	if got := rp.StringOr("blend", ""); got != "alpha" {
		t.Errorf("wrapper blend = %q, want schema default alpha", got)
	}
	blit, ok := p.Node("img~wrap~comp.dynamic_0")
	if !ok || blit.Type != TypeBlit {
		t.Fatalf("Blit wrapper missing: %+v", blit)
	}
	layers := p.Layers["comp"]
	if len(layers) != 2 || layers[0].NodeID != rp.ID || layers[1].NodeID != blit.ID {
		t.Errorf("Layers[comp] = %+v", layers)
	}
}

func TestInlineImageFiles(t *testing.T) {
	s := scene.NewBuilder("img").
		Node("file", "ImageFile", scene.Params{"assetId": "a1", "path": "img/a.png"}).
		Node("tex", "ImageTexture", scene.Params{"path": "keep.png"}).
		Connect("file", "image", "tex", "image").
		Build()
	n, err := InlineImageFiles(s, schema.Builtin())
	if err != nil {
		t.Fatalf("InlineImageFiles() error = %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	tex, _ := s.NodeByID("tex")
	if got := tex.StringOr("assetId", ""); got != "a1" {
		t.Errorf("assetId = %q, want a1", got)
	}
	if got := tex.StringOr("path", ""); got != "keep.png" {
		t.Errorf("path = %q, want keep.png", got)
	}
	if k, v := ImageSource(tex); k != "assetId" || v != "a1" {
		t.Errorf("ImageSource() = %s=%s", k, v)
	}
}

func TestInlineImageFilesRejectsNonImage(t *testing.T) {
	s := scene.NewBuilder("img").
		Node("f", "Float", nil).
		Node("tex", "ImageTexture", nil).
		Connect("f", "value", "tex", "image").
		Build()
	_, err := InlineImageFiles(s, schema.Builtin())
	var re *RewriteError
	if !errors.As(err, &re) || re.NodeID != "tex" {
		t.Errorf("InlineImageFiles() error = %v, want RewriteError on tex", err)
	}
}

func TestExpandGroups(t *testing.T) {
	g := scene.Group{
		ID: "tint",
		Nodes: []scene.Node{
			{ID: "c", Type: "Color"},
			{ID: "m", Type: "Multiply"},
		},
		Connections: []scene.Connection{
			{ID: "i1", From: scene.Endpoint{NodeID: "c", PortID: "color"}, To: scene.Endpoint{NodeID: "m", PortID: "a"}},
		},
		Inputs:  []scene.GroupPort{{ID: "in", NodeID: "m", PortID: "b"}},
		Outputs: []scene.GroupPort{{ID: "out", NodeID: "m", PortID: "value"}},
	}
	s := scene.NewBuilder("groups").
		Node("screen", "Screen", nil).
		Node("src", "Color", nil).
		Node("g1", "Group", scene.Params{"groupId": "tint"}).
		Node("rp", "RenderPass", nil).
		Connect("src", "color", "g1", "in").
		Connect("g1", "out", "rp", "color").
		Connect("rp", "pass", "screen", "pass").
		Group(g).
		Build()
	p := mustPrepare(t, s)

	if p.Stats.GroupsExpanded != 1 {
		t.Errorf("GroupsExpanded = %d, want 1", p.Stats.GroupsExpanded)
	}
	for _, id := range []string{"g1/c", "g1/m"} {
		if _, ok := p.Node(id); !ok {
			t.Errorf("node %q missing after expansion", id)
		}
	}
	if _, ok := p.Node("g1"); ok {
		t.Error("group instance node survived expansion")
	}
	c, ok := p.Inputs.Find("rp", "color")
	if !ok || c.From.NodeID != "g1/m" || c.From.PortID != "value" {
		t.Errorf("rp.color fed by %+v, want g1/m.value", c.From)
	}
	c, ok = p.Inputs.Find("g1/m", "b")
	if !ok || c.From.NodeID != "src" {
		t.Errorf("g1/m.b fed by %+v, want src", c.From)
	}
	if _, ok := p.Inputs.Find("g1/m", "a"); !ok {
		t.Error("inner connection not instantiated")
	}
}

func TestExpandGroupsErrors(t *testing.T) {
	t.Run("undefined", func(t *testing.T) {
		s := scene.NewBuilder("g").Node("g1", "Group", scene.Params{"groupId": "nope"}).Build()
		if _, err := ExpandGroups(s, 8); err == nil {
			t.Error("ExpandGroups() error = nil, want undefined group error")
		}
	})
	t.Run("recursive", func(t *testing.T) {
		s := scene.NewBuilder("g").
			Node("g1", "Group", scene.Params{"groupId": "loop"}).
			Group(scene.Group{ID: "loop", Nodes: []scene.Node{{ID: "inner", Type: "Group", Params: map[string]any{"groupId": "loop"}}}}).
			Build()
		_, err := ExpandGroups(s, 4)
		var re *RewriteError
		if !errors.As(err, &re) {
			t.Fatalf("ExpandGroups() error = %v, want RewriteError", err)
		}
	})
}

func TestBakeGeometry(t *testing.T) {
	s := scene.NewBuilder("geo").
		Node("screen", "Screen", nil).
		Node("w", "Float", scene.Params{"value": 150.0}).
		Node("extra", "Float", scene.Params{"value": 50.0}).
		Node("sum", "Add", nil).
		Node("rect", "Rect", scene.Params{"height": 100.0, "center": []any{10.0, 0.0}}).
		Node("grid", "Instances", scene.Params{"count": 4.0, "columns": 2.0, "spacing": []any{10.0, 10.0}}).
		Node("rp", "RenderPass", nil).
		Connect("w", "value", "sum", "a").
		Connect("extra", "value", "sum", "b").
		Connect("sum", "value", "rect", "width").
		Connect("rect", "geometry", "grid", "geometry").
		Connect("grid", "geometry", "rp", "geometry").
		Connect("rp", "pass", "screen", "pass").
		Build()
	p := mustPrepare(t, s)

	sum, ok := p.Baked[BakeKey{"sum", "value", KindValue}]
	if !ok || !reflect.DeepEqual(sum.Values, []float64{200}) {
		t.Fatalf("sum baked = %+v, want [200]", sum)
	}
	rect := p.Baked[BakeKey{"rect", "geometry", KindVertices}]
	if rect == nil {
		t.Fatal("rect vertices not baked")
	}
	minX, minY, maxX, maxY := rect.Bounds()
	if minX != -90 || minY != -50 || maxX != 110 || maxY != 50 {
		t.Errorf("rect bounds = (%v,%v)-(%v,%v), want (-90,-50)-(110,50)", minX, minY, maxX, maxY)
	}
	if len(rect.Vertices) != 6*4 {
		t.Errorf("rect vertex floats = %d, want 24", len(rect.Vertices))
	}
	inst := p.Baked[BakeKey{"grid", "geometry", KindInstances}]
	want := []float32{-5, 5, 5, 5, -5, -5, 5, -5}
	if inst == nil || !reflect.DeepEqual(inst.Instances, want) {
		t.Errorf("grid instances = %+v, want %v", inst, want)
	}
	if inst.InstanceCount() != 4 {
		t.Errorf("InstanceCount() = %d, want 4", inst.InstanceCount())
	}
}

func TestBakeRejectsAnimatedGeometry(t *testing.T) {
	s := scene.NewBuilder("geo").
		Node("time", "Time", nil).
		Node("rect", "Rect", nil).
		Connect("time", "time", "rect", "width").
		Build()
	_, err := BakeConstants(s, []string{"time", "rect"})
	var re *RewriteError
	if !errors.As(err, &re) || re.NodeID != "rect" {
		t.Errorf("BakeConstants() error = %v, want RewriteError on rect", err)
	}
}

func TestBakeTransform(t *testing.T) {
	s := scene.NewBuilder("geo").
		Node("rect", "Rect", scene.Params{"width": 2.0, "height": 2.0}).
		Node("xf", "Transform2D", scene.Params{"translate": []any{100.0, 0.0}, "scale": []any{10.0, 5.0}}).
		Connect("rect", "geometry", "xf", "geometry").
		Build()
	baked, err := BakeConstants(s, []string{"rect", "xf"})
	if err != nil {
		t.Fatal(err)
	}
	g := baked[BakeKey{"xf", "geometry", KindVertices}]
	minX, minY, maxX, maxY := g.Bounds()
	if minX != 90 || maxX != 110 || minY != -5 || maxY != 5 {
		t.Errorf("bounds = (%v,%v)-(%v,%v), want (90,-5)-(110,5)", minX, minY, maxX, maxY)
	}
	if g.Width != 20 || g.Height != 10 {
		t.Errorf("size = %dx%d, want 20x10", g.Width, g.Height)
	}
}

func TestGridOffsets(t *testing.T) {
	tests := []struct {
		count, cols int
		want        []float32
	}{
		{1, 1, []float32{0, 0}},
		{3, 3, []float32{-10, 0, 0, 0, 10, 0}},
		{2, 5, []float32{-5, 0, 5, 0}},
	}
	for _, tt := range tests {
		got := GridOffsets(tt.count, tt.cols, 10, 10)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("GridOffsets(%d, %d) = %v, want %v", tt.count, tt.cols, got, tt.want)
		}
	}
}

func TestRasterizeText(t *testing.T) {
	img := RasterizeText("Hi", color.RGBA{255, 255, 255, 255}, 2)
	if got := img.Bounds().Dx(); got != 28 {
		t.Errorf("width = %d, want 28", got)
	}
	if got := img.Bounds().Dy(); got != 26 {
		t.Errorf("height = %d, want 26", got)
	}
	lit := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			lit++
		}
	}
	if lit == 0 {
		t.Error("no glyph pixels drawn")
	}

	empty := RasterizeText("", color.RGBA{}, 1)
	if empty.Bounds().Dx() != 1 || empty.Bounds().Dy() != 1 {
		t.Errorf("empty text bounds = %v, want 1x1", empty.Bounds())
	}
}

func TestResourceNames(t *testing.T) {
	s := scene.NewBuilder("names").
		Node("out", "Screen", nil).
		Node("my pass", "RenderPass", nil).
		Node("my-pass", "RenderPass", nil).
		Node("1st", "RenderPass", nil).
		Build()
	names := resourceNames(s, "out")
	want := map[string]string{"out": "scene", "my pass": "my_pass", "my-pass": "my_pass_2", "1st": "n1st"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("resourceNames() = %v, want %v", names, want)
	}
}

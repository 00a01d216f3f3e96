package expr

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/shadergraph/prepare"
	"github.com/gogpu/shadergraph/scene"
	"github.com/gogpu/shadergraph/schema"
)

// prepared adds a Screen output to b and prepares the scene.
func prepared(t *testing.T, b *scene.Builder) *prepare.Prepared {
	t.Helper()
	s := b.Node("screen", "Screen", nil).Output("main", "screen").Build()
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

func TestCompileMemoized(t *testing.T) {
	p := prepared(t, scene.NewBuilder("memo").
		Node("col", "Color", scene.Params{"value": []any{1.0, 0.5, 0.0, 1.0}}).
		Node("rp", "RenderPass", nil).
		Connect("col", "color", "rp", "color").
		Connect("rp", "pass", "screen", "pass"))

	s := NewSession(p)
	e1, err := s.Compile("col", "color")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	e2, err := s.Compile("col", "color")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if e1 != e2 {
		t.Error("second Compile returned a different *Expr")
	}
	if e1.Code != "params[0]" || e1.Type != Vec4 {
		t.Errorf("got %q (%v), want params[0] (vec4)", e1.Code, e1.Type)
	}
	want := []float32{1, 0.5, 0, 1}
	got := s.Params()
	if len(got) != len(want) {
		t.Fatalf("Params() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Params()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConstantEditKeepsCode(t *testing.T) {
	build := func(v float64) *prepare.Prepared {
		return prepared(t, scene.NewBuilder("edit").
			Node("f", "Float", scene.Params{"value": v}).
			Node("sin", "Sin", nil).
			Connect("f", "value", "sin", "x"))
	}
	var codes []string
	for _, v := range []float64{1, 2} {
		e, err := NewSession(build(v)).Compile("sin", "value")
		if err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
		codes = append(codes, e.Code)
	}
	if codes[0] != codes[1] {
		t.Errorf("code changed with a constant edit: %q vs %q", codes[0], codes[1])
	}
	if codes[0] != "sin(params[0].x)" {
		t.Errorf("got %q, want sin(params[0].x)", codes[0])
	}
}

func TestUnaryAliases(t *testing.T) {
	for _, port := range prepare.UnaryInput {
		t.Run(port, func(t *testing.T) {
			p := prepared(t, scene.NewBuilder("alias").
				Node("f", "Float", nil).
				Node("n", "Negate", nil).
				Connect("f", "value", "n", port))
			e, err := NewSession(p).Compile("n", "value")
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if e.Code != "(-params[0].x)" {
				t.Errorf("got %q, want (-params[0].x)", e.Code)
			}
		})
	}
}

func TestBinaryBroadcast(t *testing.T) {
	p := prepared(t, scene.NewBuilder("bin").
		Node("v", "Vec2", scene.Params{"value": []any{1.0, 2.0}}).
		Node("f", "Float", scene.Params{"value": 3.0}).
		Node("add", "Add", nil).
		Connect("v", "value", "add", "a").
		Connect("f", "value", "add", "b"))

	e, err := NewSession(p).Compile("add", "value")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if want := "(params[0].xy + vec2<f32>(params[1].x))"; e.Code != want {
		t.Errorf("got %q, want %q", e.Code, want)
	}
	if e.Type != Vec2 {
		t.Errorf("type = %v, want vec2", e.Type)
	}
}

func TestAnimatedFlag(t *testing.T) {
	p := prepared(t, scene.NewBuilder("anim").
		Node("time", "Time", nil).
		Node("f", "Float", nil).
		Node("mul", "Multiply", nil).
		Node("cos", "Cos", nil).
		Connect("time", "time", "mul", "a").
		Connect("f", "value", "mul", "b").
		Connect("f", "value", "cos", "x"))

	s := NewSession(p)
	mul, err := s.Compile("mul", "value")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !mul.Animated {
		t.Error("Multiply over Time is not animated")
	}
	cos, err := s.Compile("cos", "value")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if cos.Animated {
		t.Error("Cos over a constant is animated")
	}
}

func TestTypeMismatch(t *testing.T) {
	p := prepared(t, scene.NewBuilder("dot").
		Node("a", "Float", nil).
		Node("b", "Float", nil).
		Node("dot", "Dot", nil).
		Connect("a", "value", "dot", "a").
		Connect("b", "value", "dot", "b"))

	_, err := NewSession(p).Compile("dot", "value")
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("got %v, want ErrTypeMismatch", err)
	}
	var tm *TypeMismatchError
	if !errors.As(err, &tm) || tm.NodeID != "dot" || tm.Got != Float {
		t.Errorf("got %+v, want node dot got float", tm)
	}
}

func TestMissingInput(t *testing.T) {
	p := prepared(t, scene.NewBuilder("missing").
		Node("a", "Float", nil).
		Node("add", "Add", nil).
		Connect("a", "value", "add", "a"))

	_, err := NewSession(p).Compile("add", "value")
	var mi *MissingInputError
	if !errors.As(err, &mi) {
		t.Fatalf("got %v, want *MissingInputError", err)
	}
	if mi.NodeID != "add" || mi.Port != "b" {
		t.Errorf("got %s.%s, want add.b", mi.NodeID, mi.Port)
	}
	if !errors.Is(err, ErrMissingInput) {
		t.Error("errors.Is(err, ErrMissingInput) = false")
	}
}

func TestSelectAndCompare(t *testing.T) {
	p := prepared(t, scene.NewBuilder("logic").
		Node("x", "Float", nil).
		Node("y", "Int", nil).
		Node("cmp", "Compare", scene.Params{"op": ">="}).
		Node("sel", "Select", nil).
		Connect("x", "value", "cmp", "a").
		Connect("y", "value", "cmp", "b").
		Connect("cmp", "value", "sel", "cond").
		Connect("x", "value", "sel", "a").
		Connect("x", "value", "sel", "b"))

	e, err := NewSession(p).Compile("sel", "value")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := "select(params[0].x, params[0].x, (params[0].x >= f32(i32(params[1].x))))"
	if e.Code != want {
		t.Errorf("got %q, want %q", e.Code, want)
	}
}

func TestSplitOutOfRange(t *testing.T) {
	p := prepared(t, scene.NewBuilder("split").
		Node("v", "Vec2", nil).
		Node("sp", "Split", nil).
		Node("o", "OneMinus", nil).
		Connect("v", "value", "sp", "value").
		Connect("sp", "z", "o", "x"))

	s := NewSession(p)
	if e, err := s.Compile("sp", "y"); err != nil || e.Code != "params[0].xy.y" {
		t.Errorf("Compile(sp, y) = %v, %v; want params[0].xy.y", e, err)
	}
	if _, err := s.Compile("sp", "z"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Compile(sp, z) error = %v, want ErrTypeMismatch", err)
	}
}

func TestTextureBindings(t *testing.T) {
	p := prepared(t, scene.NewBuilder("tex").
		Node("img", "ImageTexture", scene.Params{"addressModeU": "repeat"}).
		Node("rt", "RenderTexture", nil).
		Node("st", "SampleTexture", scene.Params{"filter": "nearest"}).
		Node("add", "Add", nil).
		Connect("rt", "texture", "st", "texture").
		Connect("img", "color", "add", "a").
		Connect("st", "color", "add", "b"))

	s := NewSession(p)
	e, err := s.Compile("add", "value")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(e.Textures) != 2 || e.Textures[0] != "img" || e.Textures[1] != "st" {
		t.Errorf("Textures = %v, want [img st]", e.Textures)
	}
	if !strings.Contains(e.Code, "textureSample(t_img, s_img, flip_uv(in.uv))") {
		t.Errorf("code %q does not sample img with a flipped uv", e.Code)
	}
	if strings.Count(e.Code, FlipHelper) != 2 {
		t.Errorf("code %q flips %d times, want once per sample", e.Code, strings.Count(e.Code, FlipHelper))
	}

	bs := s.Bindings()
	if len(bs) != 2 {
		t.Fatalf("len(Bindings()) = %d, want 2", len(bs))
	}
	if bs[0].Source != "img" || bs[0].Sampler.String() != "repeat-clamp-linear" {
		t.Errorf("binding 0 = %+v", bs[0])
	}
	if bs[1].Key != "st" || bs[1].Source != "rt" || bs[1].Sampler.String() != "clamp-clamp-nearest" {
		t.Errorf("binding 1 = %+v", bs[1])
	}
	if _, ok := s.Helper(FlipHelper); !ok {
		t.Error("flip helper not registered")
	}
}

func TestSnippetTranslationFailure(t *testing.T) {
	p := prepared(t, scene.NewBuilder("snippet").
		NodeWithPorts("ex", "Expression", scene.Params{"source": "this is not wgsl"}, nil, nil).
		Node("o", "OneMinus", nil).
		Connect("ex", "value", "o", "x"))

	_, err := NewSession(p).Compile("ex", "value")
	if !errors.Is(err, ErrTranslation) {
		t.Fatalf("got %v, want ErrTranslation", err)
	}
	var te *TranslationError
	if !errors.As(err, &te) {
		t.Fatalf("got %T, want *TranslationError", err)
	}
	if len(te.Stages) != 3 {
		t.Errorf("len(Stages) = %d, want 3", len(te.Stages))
	}
	if te.Stages[0].Stage != StageFragment || !strings.Contains(te.Source, "fs_main") {
		t.Errorf("first attempt = %s, source %q", te.Stages[0].Stage, te.Source)
	}
}

func TestSnippetModuleBoolInputs(t *testing.T) {
	args := []snippetArg{{"flag", Bool}, {"k", Float}}
	helper := snippetHelper("expr_x", "select(0.0, k, flag)", args, Float)
	if !strings.Contains(helper, "fn expr_x(flag: bool, k: f32) -> f32") ||
		!strings.Contains(helper, "return select(0.0, k, flag);") {
		t.Errorf("helper = %q", helper)
	}

	frag := snippetModule(StageFragment, "expr_x", helper, args, Float)
	for _, want := range []string{
		"@location(0) @interpolate(flat) flag: i32",
		"@location(1) k: f32",
		"expr_x((in.flag != 0), in.k)",
		"return vec4<f32>(r);",
	} {
		if !strings.Contains(frag, want) {
			t.Errorf("fragment module lacks %q:\n%s", want, frag)
		}
	}

	vert := snippetModule(StageVertex, "expr_x", helper, args, Float)
	if strings.Contains(vert, "@interpolate") || !strings.Contains(vert, "@builtin(position) vec4<f32>") {
		t.Errorf("vertex module:\n%s", vert)
	}

	comp := snippetModule(StageCompute, "expr_x", helper, args, Float)
	if !strings.Contains(comp, "var<private> in_flag: bool;") || !strings.Contains(comp, "@compute @workgroup_size(1)") {
		t.Errorf("compute module:\n%s", comp)
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry().Clone()
	r.Register("Double", func(s *Session, n *scene.Node, port string) (*Expr, error) {
		x, err := s.RequireType(n, Float, "x")
		if err != nil {
			return nil, err
		}
		return derive("("+x.Code+" * 2.0)", Float, x), nil
	})
	if _, ok := Lookup("Double"); ok {
		t.Error("Clone registration leaked into the default registry")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("duplicate Register did not panic")
			}
		}()
		r.Register("Sin", compileUnary)
	}()

	r.Unregister("Sin")
	if _, ok := r.Lookup("Sin"); ok {
		t.Error("Sin still registered after Unregister")
	}
	if _, ok := Lookup("Sin"); !ok {
		t.Error("Unregister on a clone removed the default Sin")
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		code     string
		from, to ValueType
		want     string
		ok       bool
	}{
		{"x", Float, Float, "x", true},
		{"x", Int, Float, "f32(x)", true},
		{"b", Bool, Float, "select(0.0, 1.0, b)", true},
		{"x", Float, Vec3, "vec3<f32>(x)", true},
		{"i", Int, Vec2, "vec2<f32>(f32(i))", true},
		{"v", Vec3, Vec4, "vec4<f32>(v, 1.0)", true},
		{"v", Vec4, Vec3, "(v).xyz", true},
		{"v", Vec2, Float, "", false},
		{"m", Mat4, Vec4, "", false},
	}
	for _, tt := range tests {
		got, ok := Convert(tt.code, tt.from, tt.to)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Convert(%q, %v, %v) = %q, %v; want %q, %v", tt.code, tt.from, tt.to, got, ok, tt.want, tt.ok)
		}
	}
}

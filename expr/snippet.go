package expr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/shadergraph/scene"
)

// Shader stages a snippet is tried against, in order.
const (
	StageFragment = "fragment"
	StageVertex   = "vertex"
	StageCompute  = "compute"
)

var snippetStages = []string{StageFragment, StageVertex, StageCompute}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Globals declares the frame uniform and the params buffer shared by every
// generated module.
const Globals = `struct Frame {
	time: f32,
	count: u32,
	resolution: vec2<f32>,
}

@group(0) @binding(0) var<uniform> frame: Frame;
@group(0) @binding(1) var<storage, read> params: array<vec4<f32>>;
`

type snippetArg struct {
	name string
	typ  ValueType
}

func init() {
	Register("Expression", compileSnippet)
}

// compileSnippet compiles an Expression node: a user-written WGSL function
// body over the node's declared input ports.
func compileSnippet(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "value" {
		return nil, unknownPort(n, port)
	}
	src, ok := n.String("source")
	if !ok || strings.TrimSpace(src) == "" {
		return nil, &UnsupportedParamError{NodeID: n.ID, Param: "source", Value: n.Params["source"]}
	}
	typeName := n.StringOr("type", "float")
	result, ok := ParseType(typeName)
	if !ok || !(result.IsScalar() || result.IsVector()) {
		return nil, &UnsupportedParamError{NodeID: n.ID, Param: "type", Value: typeName}
	}

	args := make([]snippetArg, 0, len(n.Inputs))
	inputs := make([]*Expr, 0, len(n.Inputs))
	for _, p := range n.Inputs {
		if !identRe.MatchString(p.ID) {
			return nil, &UnsupportedParamError{NodeID: n.ID, Param: "input port", Value: p.ID}
		}
		t := Float
		if p.Type != "" {
			if t, ok = ParseType(p.Type); !ok || !(t.IsScalar() || t.IsVector()) {
				return nil, &UnsupportedParamError{NodeID: n.ID, Param: "input type", Value: p.Type}
			}
		}
		e, err := s.RequireType(n, t, p.ID)
		if err != nil {
			return nil, err
		}
		args = append(args, snippetArg{name: p.ID, typ: t})
		inputs = append(inputs, e)
	}

	name := "expr_" + s.p.ResourceNames[n.ID]
	helper := snippetHelper(name, src, args, result)
	if err := s.translate(n.ID, name, helper, args, result); err != nil {
		return nil, err
	}
	s.AddHelper(name, helper)

	codes := make([]string, len(inputs))
	for i, e := range inputs {
		codes[i] = e.Code
	}
	e := derive(fmt.Sprintf("%s(%s)", name, strings.Join(codes, ", ")), result, inputs...)
	e.Helpers = appendUnique(e.Helpers, name)
	return e, nil
}

// snippetHelper wraps a snippet in a function. A snippet without a return
// statement is a single expression.
func snippetHelper(name, src string, args []snippetArg, result ValueType) string {
	params := make([]string, len(args))
	for i, a := range args {
		params[i] = a.name + ": " + a.typ.WGSL()
	}
	body := strings.TrimSpace(src)
	if !strings.Contains(body, "return") {
		body = "return " + strings.TrimSuffix(body, ";") + ";"
	}
	return fmt.Sprintf("fn %s(%s) -> %s {\n\t%s\n}\n", name, strings.Join(params, ", "), result.WGSL(), body)
}

// translate checks the helper against each stage in turn and succeeds on
// the first stage the module compiles for.
func (s *Session) translate(nodeID, name, helper string, args []snippetArg, result ValueType) error {
	terr := &TranslationError{NodeID: nodeID}
	for _, stage := range snippetStages {
		src := snippetModule(stage, name, helper, args, result)
		if terr.Source == "" {
			terr.Source = src
		}
		err := CheckWGSL(src)
		if err == nil {
			if len(terr.Stages) > 0 {
				s.log.Debug("expr: snippet accepted on fallback stage", "node", nodeID, "stage", stage)
			}
			return nil
		}
		s.log.Debug("expr: snippet rejected", "node", nodeID, "stage", stage, "error", err)
		terr.Stages = append(terr.Stages, StageError{Stage: stage, Err: err})
	}
	return terr
}

// CheckWGSL parses, lowers and compiles a WGSL module to SPIR-V.
func CheckWGSL(src string) error {
	ast, err := naga.Parse(src)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	module, err := naga.Lower(ast)
	if err != nil {
		return fmt.Errorf("lower: %w", err)
	}
	if _, err := spirv.NewBackend(spirv.DefaultOptions()).Compile(module); err != nil {
		return fmt.Errorf("spirv: %w", err)
	}
	return nil
}

// snippetModule builds a module whose entry point feeds the helper from
// stage inputs. Bools cannot cross stage boundaries, so they travel as
// flat i32 and are compared back to bool.
func snippetModule(stage, name, helper string, args []snippetArg, result ValueType) string {
	var b strings.Builder
	b.WriteString(Globals)
	b.WriteByte('\n')
	b.WriteString(helper)
	b.WriteByte('\n')

	call := make([]string, len(args))
	if stage == StageCompute {
		for i, a := range args {
			fmt.Fprintf(&b, "var<private> in_%s: %s;\n", a.name, a.typ.WGSL())
			call[i] = "in_" + a.name
		}
		fmt.Fprintf(&b, "var<private> out_value: %s;\n\n", result.WGSL())
		fmt.Fprintf(&b, "@compute @workgroup_size(1)\nfn cs_main() {\n\tout_value = %s(%s);\n}\n", name, strings.Join(call, ", "))
		return b.String()
	}

	param := ""
	if len(args) > 0 {
		b.WriteString("struct SnippetIn {\n")
		for i, a := range args {
			t := a.typ
			if t == Bool {
				t = Int
			}
			interp := ""
			if stage == StageFragment && (t == Int || t == Uint) {
				interp = " @interpolate(flat)"
			}
			fmt.Fprintf(&b, "\t@location(%d)%s %s: %s,\n", i, interp, a.name, t.WGSL())
			call[i] = "in." + a.name
			if a.typ == Bool {
				call[i] = fmt.Sprintf("(in.%s != 0)", a.name)
			}
		}
		b.WriteString("}\n\n")
		param = "in: SnippetIn"
	}

	out := toVec4("r", result)
	if stage == StageFragment {
		fmt.Fprintf(&b, "@fragment\nfn fs_main(%s) -> @location(0) vec4<f32> {\n", param)
	} else {
		fmt.Fprintf(&b, "@vertex\nfn vs_main(%s) -> @builtin(position) vec4<f32> {\n", param)
	}
	fmt.Fprintf(&b, "\tlet r = %s(%s);\n\treturn %s;\n}\n", name, strings.Join(call, ", "), out)
	return b.String()
}

// toVec4 converts code of type t to a vec4<f32>.
func toVec4(code string, t ValueType) string {
	if t == Bool {
		code, _ = Convert(code, Bool, Float)
		t = Float
	}
	out, ok := Convert(code, t, Vec4)
	if !ok {
		return "vec4<f32>(0.0)"
	}
	return out
}

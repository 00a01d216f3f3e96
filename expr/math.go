package expr

import (
	"fmt"

	"github.com/gogpu/shadergraph/prepare"
	"github.com/gogpu/shadergraph/scene"
)

// unaryOps maps unary node types to a WGSL format with one %s operand.
var unaryOps = map[string]string{
	"Sin":      "sin(%s)",
	"Cos":      "cos(%s)",
	"Tan":      "tan(%s)",
	"Abs":      "abs(%s)",
	"Floor":    "floor(%s)",
	"Ceil":     "ceil(%s)",
	"Fract":    "fract(%s)",
	"Sqrt":     "sqrt(%s)",
	"Exp":      "exp(%s)",
	"Log":      "log(%s)",
	"Negate":   "(-%s)",
	"OneMinus": "(1.0 - %s)",
	"Length":   "length(%s)",
}

// binaryOps maps binary node types to a WGSL format with two operands.
var binaryOps = map[string]string{
	"Add":      "(%s + %s)",
	"Subtract": "(%s - %s)",
	"Multiply": "(%s * %s)",
	"Divide":   "(%s / %s)",
	"Mod":      "(%s %% %s)",
	"Min":      "min(%s, %s)",
	"Max":      "max(%s, %s)",
	"Pow":      "pow(%s, %s)",
	"Step":     "step(%s, %s)",
	"Atan2":    "atan2(%s, %s)",
	"Dot":      "dot(%s, %s)",
	"Distance": "distance(%s, %s)",
}

// intOps keep integer operands integral.
var intOps = map[string]bool{
	"Abs": true, "Negate": true,
	"Add": true, "Subtract": true, "Multiply": true, "Divide": true, "Mod": true, "Min": true, "Max": true,
}

func init() {
	for typ := range unaryOps {
		Register(typ, compileUnary)
	}
	Register("Saturate", compileUnary)
	Register("Normalize", compileUnary)
	for typ := range binaryOps {
		Register(typ, compileBinary)
	}
	Register("Mix", compileMix)
	Register("Clamp", compileClamp)
	Register("Smoothstep", compileSmoothstep)
}

// floating promotes integer and bool scalars to Float.
func (s *Session) floating(n *scene.Node, port string, e *Expr) (*Expr, error) {
	switch {
	case e.Type == Float || e.Type.IsVector():
		return e, nil
	case e.Type.IsScalar():
		return s.As(n, port, e, Float)
	}
	return nil, &TypeMismatchError{NodeID: n.ID, Port: port, Expected: "float or vector", Got: e.Type}
}

func compileUnary(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "value" {
		return nil, unknownPort(n, port)
	}
	s.ignoreExtra(n, prepare.UnaryInput)
	x, err := s.Require(n, prepare.UnaryInput...)
	if err != nil {
		return nil, err
	}
	in := prepare.UnaryInput[0]
	if !(intOps[n.Type] && (x.Type == Int)) {
		if x, err = s.floating(n, in, x); err != nil {
			return nil, err
		}
	}
	switch n.Type {
	case "Length":
		return derive(fmt.Sprintf("length(%s)", x.Code), Float, x), nil
	case "Normalize":
		if !x.Type.IsVector() {
			return nil, &TypeMismatchError{NodeID: n.ID, Port: in, Expected: "vector", Got: x.Type}
		}
		return derive(fmt.Sprintf("normalize(%s)", x.Code), x.Type, x), nil
	case "Saturate":
		lo, _ := Convert("0.0", Float, x.Type)
		hi, _ := Convert("1.0", Float, x.Type)
		return derive(fmt.Sprintf("clamp(%s, %s, %s)", x.Code, lo, hi), x.Type, x), nil
	}
	return derive(fmt.Sprintf(unaryOps[n.Type], x.Code), x.Type, x), nil
}

func compileBinary(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "value" {
		return nil, unknownPort(n, port)
	}
	s.ignoreExtra(n, prepare.BinaryLeft, prepare.BinaryRight)
	a, err := s.Require(n, prepare.BinaryLeft...)
	if err != nil {
		return nil, err
	}
	b, err := s.Require(n, prepare.BinaryRight...)
	if err != nil {
		return nil, err
	}
	if n.Type == "Multiply" && a.Type == Mat4 {
		switch b.Type {
		case Mat4:
			return derive(fmt.Sprintf("(%s * %s)", a.Code, b.Code), Mat4, a, b), nil
		case Vec4, Vec3, Float:
			if b, err = s.As(n, "b", b, Vec4); err != nil {
				return nil, err
			}
			return derive(fmt.Sprintf("(%s * %s)", a.Code, b.Code), Vec4, a, b), nil
		}
	}

	t, ok := Unify(a.Type, b.Type)
	if !ok {
		return nil, &TypeMismatchError{NodeID: n.ID, Port: "b", Expected: a.Type.String(), Got: b.Type}
	}
	if (t == Int || t == Uint) && !intOps[n.Type] {
		t = Float
	}
	if t == Uint && n.Type == "Subtract" {
		t = Int
	}
	if n.Type == "Dot" && !t.IsVector() {
		return nil, &TypeMismatchError{NodeID: n.ID, Port: "a", Expected: "vector", Got: t}
	}
	if a, err = s.As(n, "a", a, t); err != nil {
		return nil, err
	}
	if b, err = s.As(n, "b", b, t); err != nil {
		return nil, err
	}
	rt := t
	if n.Type == "Dot" || n.Type == "Distance" {
		rt = Float
	}
	return derive(fmt.Sprintf(binaryOps[n.Type], a.Code, b.Code), rt, a, b), nil
}

// unifyFloat converts all operands to their common float type.
func (s *Session) unifyFloat(n *scene.Node, ports []string, in []*Expr) (ValueType, error) {
	t := Float
	for i, e := range in {
		u, ok := Unify(t, e.Type)
		if !ok {
			return Invalid, &TypeMismatchError{NodeID: n.ID, Port: ports[i], Expected: t.String(), Got: e.Type}
		}
		if u == Int || u == Uint {
			u = Float
		}
		t = u
	}
	for i, e := range in {
		c, err := s.As(n, ports[i], e, t)
		if err != nil {
			return Invalid, err
		}
		in[i] = c
	}
	return t, nil
}

func compileMix(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "value" {
		return nil, unknownPort(n, port)
	}
	a, err := s.Require(n, "a")
	if err != nil {
		return nil, err
	}
	b, err := s.Require(n, "b")
	if err != nil {
		return nil, err
	}
	tt, err := s.Require(n, "t")
	if err != nil {
		return nil, err
	}
	ops := []*Expr{a, b}
	typ, err := s.unifyFloat(n, []string{"a", "b"}, ops)
	if err != nil {
		return nil, err
	}
	want := Float
	if tt.Type == typ {
		want = typ
	}
	if tt, err = s.As(n, "t", tt, want); err != nil {
		return nil, err
	}
	return derive(fmt.Sprintf("mix(%s, %s, %s)", ops[0].Code, ops[1].Code, tt.Code), typ, ops[0], ops[1], tt), nil
}

func compileClamp(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "value" {
		return nil, unknownPort(n, port)
	}
	s.ignoreExtra(n, prepare.UnaryInput, []string{"min", "max"})
	x, err := s.Require(n, prepare.UnaryInput...)
	if err != nil {
		return nil, err
	}
	bound := func(name string, def float64) (*Expr, error) {
		e, ok, err := s.Input(n, name)
		if err != nil || ok {
			return e, err
		}
		return s.ParamExpr(n.ID, name, []float64{n.FloatOr(name, def)}, Float), nil
	}
	lo, err := bound("min", 0)
	if err != nil {
		return nil, err
	}
	hi, err := bound("max", 1)
	if err != nil {
		return nil, err
	}
	ops := []*Expr{x, lo, hi}
	t, err := s.unifyFloat(n, []string{"x", "min", "max"}, ops)
	if err != nil {
		return nil, err
	}
	return derive(fmt.Sprintf("clamp(%s, %s, %s)", ops[0].Code, ops[1].Code, ops[2].Code), t, ops...), nil
}

func compileSmoothstep(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "value" {
		return nil, unknownPort(n, port)
	}
	names := []string{"edge0", "edge1", "x"}
	ops := make([]*Expr, len(names))
	for i, name := range names {
		e, err := s.Require(n, name)
		if err != nil {
			return nil, err
		}
		ops[i] = e
	}
	t, err := s.unifyFloat(n, names, ops)
	if err != nil {
		return nil, err
	}
	return derive(fmt.Sprintf("smoothstep(%s, %s, %s)", ops[0].Code, ops[1].Code, ops[2].Code), t, ops...), nil
}

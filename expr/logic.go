package expr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/shadergraph/scene"
)

var components = []string{"x", "y", "z", "w"}

var compareOps = []string{"<", "<=", ">", ">=", "==", "!="}

func init() {
	Register("Compare", compileCompare)
	Register("Select", compileSelect)
	Register("And", logicBinary("&&"))
	Register("Or", logicBinary("||"))
	Register("Not", compileNot)
	Register("Split", compileSplit)
	Register("Combine", compileCombine)
}

func compileCompare(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "value" {
		return nil, unknownPort(n, port)
	}
	op := n.StringOr("op", "<")
	if !slices.Contains(compareOps, op) {
		return nil, &UnsupportedParamError{NodeID: n.ID, Param: "op", Value: op}
	}
	a, err := s.Require(n, "a")
	if err != nil {
		return nil, err
	}
	b, err := s.Require(n, "b")
	if err != nil {
		return nil, err
	}
	if !a.Type.IsScalar() {
		return nil, &TypeMismatchError{NodeID: n.ID, Port: "a", Expected: "scalar", Got: a.Type}
	}
	if !b.Type.IsScalar() {
		return nil, &TypeMismatchError{NodeID: n.ID, Port: "b", Expected: "scalar", Got: b.Type}
	}
	t, ok := Unify(a.Type, b.Type)
	if !ok {
		t = a.Type
	}
	if t == Bool && op != "==" && op != "!=" {
		t = Float
	}
	if a, err = s.As(n, "a", a, t); err != nil {
		return nil, err
	}
	if b, err = s.As(n, "b", b, t); err != nil {
		return nil, err
	}
	return derive(fmt.Sprintf("(%s %s %s)", a.Code, op, b.Code), Bool, a, b), nil
}

func compileSelect(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "value" {
		return nil, unknownPort(n, port)
	}
	cond, err := s.RequireType(n, Bool, "cond")
	if err != nil {
		return nil, err
	}
	a, err := s.Require(n, "a")
	if err != nil {
		return nil, err
	}
	b, err := s.Require(n, "b")
	if err != nil {
		return nil, err
	}
	t, ok := Unify(a.Type, b.Type)
	if a.Type == b.Type && a.Type != Texture {
		t, ok = a.Type, true
	}
	if !ok {
		return nil, &TypeMismatchError{NodeID: n.ID, Port: "b", Expected: a.Type.String(), Got: b.Type}
	}
	if a, err = s.As(n, "a", a, t); err != nil {
		return nil, err
	}
	if b, err = s.As(n, "b", b, t); err != nil {
		return nil, err
	}
	// select(f, t, cond) yields t when cond holds.
	return derive(fmt.Sprintf("select(%s, %s, %s)", b.Code, a.Code, cond.Code), t, cond, a, b), nil
}

func logicBinary(op string) CompilerFunc {
	return func(s *Session, n *scene.Node, port string) (*Expr, error) {
		if port != "value" {
			return nil, unknownPort(n, port)
		}
		a, err := s.RequireType(n, Bool, "a")
		if err != nil {
			return nil, err
		}
		b, err := s.RequireType(n, Bool, "b")
		if err != nil {
			return nil, err
		}
		return derive(fmt.Sprintf("(%s %s %s)", a.Code, op, b.Code), Bool, a, b), nil
	}
}

func compileNot(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "value" {
		return nil, unknownPort(n, port)
	}
	x, err := s.RequireType(n, Bool, "x")
	if err != nil {
		return nil, err
	}
	return derive(fmt.Sprintf("(!%s)", x.Code), Bool, x), nil
}

func compileSplit(s *Session, n *scene.Node, port string) (*Expr, error) {
	idx := slices.Index(components, port)
	if idx < 0 {
		return nil, unknownPort(n, port)
	}
	v, err := s.Require(n, "value")
	if err != nil {
		return nil, err
	}
	switch {
	case v.Type.IsScalar():
		return s.As(n, "value", v, Float)
	case !v.Type.IsVector():
		return nil, &TypeMismatchError{NodeID: n.ID, Port: "value", Expected: "vector", Got: v.Type}
	case idx >= v.Type.Components():
		return nil, &TypeMismatchError{NodeID: n.ID, Port: "value", Expected: VecType(idx + 1).String(), Got: v.Type}
	}
	return derive(fmt.Sprintf("%s.%s", v.Code, port), Float, v), nil
}

func compileCombine(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "value" {
		return nil, unknownPort(n, port)
	}
	size := min(max(n.IntOr("size", 4), 2), 4)
	args := make([]string, size)
	var inputs []*Expr
	for i, c := range components[:size] {
		e, ok, err := s.Input(n, c)
		if err != nil {
			return nil, err
		}
		if !ok {
			args[i] = "0.0"
			continue
		}
		if e, err = s.As(n, c, e, Float); err != nil {
			return nil, err
		}
		args[i] = e.Code
		inputs = append(inputs, e)
	}
	t := VecType(size)
	return derive(fmt.Sprintf("%s(%s)", t.WGSL(), strings.Join(args, ", ")), t, inputs...), nil
}

package expr

import (
	"fmt"
	"strings"

	"github.com/gogpu/shadergraph/scene"
)

func init() {
	Register("Float", scalarConstant(Float))
	Register("Int", scalarConstant(Int))
	Register("Bool", scalarConstant(Bool))
	Register("Vec2", vectorConstant(Vec2))
	Register("Vec3", vectorConstant(Vec3))
	Register("Vec4", vectorConstant(Vec4))
	Register("Color", compileColor)
	Register("Mat4", compileMat4)
	Register("Time", compileTime)
	Register("UV", compileUV)
	Register("Resolution", compileResolution)
	Register("InstanceIndex", compileInstanceIndex)
}

func unknownPort(n *scene.Node, port string) error {
	return &UnsupportedParamError{NodeID: n.ID, Param: "output port", Value: port}
}

func scalarConstant(t ValueType) CompilerFunc {
	return func(s *Session, n *scene.Node, port string) (*Expr, error) {
		if port != "value" {
			return nil, unknownPort(n, port)
		}
		var v float64
		switch raw := n.Params["value"].(type) {
		case bool:
			if raw {
				v = 1
			}
		case nil:
		default:
			f, ok := n.Float("value")
			if !ok {
				return nil, &UnsupportedParamError{NodeID: n.ID, Param: "value", Value: raw}
			}
			v = f
		}
		return s.ParamExpr(n.ID, "value", []float64{v}, t), nil
	}
}

func vectorConstant(t ValueType) CompilerFunc {
	size := t.Components()
	return func(s *Session, n *scene.Node, port string) (*Expr, error) {
		if port != "value" {
			return nil, unknownPort(n, port)
		}
		vals, err := floatsParam(n, "value", size)
		if err != nil {
			return nil, err
		}
		base := s.ParamExpr(n.ID, "value", vals, t)

		comps := make([]string, size)
		var inputs []*Expr
		overridden := false
		for i, c := range []string{"x", "y", "z", "w"}[:size] {
			in, ok, err := s.Input(n, c)
			if err != nil {
				return nil, err
			}
			if !ok {
				comps[i] = fmt.Sprintf("%s.%s", base.Code, c)
				continue
			}
			in, err = s.As(n, c, in, Float)
			if err != nil {
				return nil, err
			}
			comps[i] = in.Code
			inputs = append(inputs, in)
			overridden = true
		}
		if !overridden {
			return base, nil
		}
		return derive(fmt.Sprintf("%s(%s)", t.WGSL(), strings.Join(comps, ", ")), t, inputs...), nil
	}
}

func floatsParam(n *scene.Node, key string, size int) ([]float64, error) {
	v, ok := n.Floats(key)
	if !ok {
		if !n.HasParam(key) {
			return make([]float64, size), nil
		}
		return nil, &UnsupportedParamError{NodeID: n.ID, Param: key, Value: n.Params[key]}
	}
	if len(v) != size {
		return nil, &UnsupportedParamError{NodeID: n.ID, Param: key, Value: n.Params[key]}
	}
	return v, nil
}

func compileColor(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "color" {
		return nil, unknownPort(n, port)
	}
	v, ok := n.Floats("value")
	switch {
	case !ok:
		v = []float64{1, 1, 1, 1}
	case len(v) == 3:
		v = append(v, 1)
	case len(v) != 4:
		return nil, &UnsupportedParamError{NodeID: n.ID, Param: "value", Value: n.Params["value"]}
	}
	return s.ParamExpr(n.ID, "value", v, Vec4), nil
}

func compileMat4(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "value" {
		return nil, unknownPort(n, port)
	}
	v, err := floatsParam(n, "value", 16)
	if err != nil {
		return nil, err
	}
	return s.ParamExpr(n.ID, "value", v, Mat4), nil
}

func compileTime(s *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "time" {
		return nil, unknownPort(n, port)
	}
	speed := s.ParamExpr(n.ID, "speed", []float64{n.FloatOr("speed", 1)}, Float)
	e := derive(fmt.Sprintf("(frame.time * %s)", speed.Code), Float)
	e.Animated = true
	return e, nil
}

func compileUV(_ *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "uv" {
		return nil, unknownPort(n, port)
	}
	return &Expr{Code: "in.uv", Type: Vec2, Varying: true}, nil
}

func compileResolution(_ *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "resolution" {
		return nil, unknownPort(n, port)
	}
	return &Expr{Code: "frame.resolution", Type: Vec2}, nil
}

func compileInstanceIndex(_ *Session, n *scene.Node, port string) (*Expr, error) {
	if port != "index" {
		return nil, unknownPort(n, port)
	}
	return &Expr{Code: "in.instance", Type: Uint, Varying: true, Instanced: true}, nil
}

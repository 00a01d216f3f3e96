package scene

import "strconv"

// Float returns a numeric parameter. JSON numbers decode as float64;
// numeric strings are accepted as well.
func (n *Node) Float(key string) (float64, bool) {
	return toFloat(n.Params[key])
}

// FloatOr returns a numeric parameter or def when absent or not numeric.
func (n *Node) FloatOr(key string, def float64) float64 {
	if v, ok := n.Float(key); ok {
		return v
	}
	return def
}

// IntOr returns an integral parameter or def.
func (n *Node) IntOr(key string, def int) int {
	if v, ok := n.Float(key); ok {
		return int(v)
	}
	return def
}

// String returns a string parameter.
func (n *Node) String(key string) (string, bool) {
	s, ok := n.Params[key].(string)
	return s, ok
}

// StringOr returns a non-empty string parameter or def.
func (n *Node) StringOr(key, def string) string {
	if s, ok := n.String(key); ok && s != "" {
		return s
	}
	return def
}

// Bool returns a boolean parameter.
func (n *Node) Bool(key string) (bool, bool) {
	switch v := n.Params[key].(type) {
	case bool:
		return v, true
	case float64:
		return v != 0, true
	}
	return false, false
}

// Floats returns a numeric array parameter.
// A scalar is returned as a one-element slice.
func (n *Node) Floats(key string) ([]float64, bool) {
	return ToFloats(n.Params[key])
}

// SetParam sets a parameter, allocating the map if needed.
func (n *Node) SetParam(key string, v any) {
	if n.Params == nil {
		n.Params = make(map[string]any)
	}
	n.Params[key] = v
}

// HasParam reports whether a parameter is present and non-nil.
func (n *Node) HasParam(key string) bool {
	v, ok := n.Params[key]
	return ok && v != nil
}

// ToFloats converts a JSON value into a float slice.
func ToFloats(v any) ([]float64, bool) {
	switch t := v.(type) {
	case []any:
		out := make([]float64, len(t))
		for i, e := range t {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	case []float64:
		return t, true
	case map[string]any:
		// {x, y, z, w} or {r, g, b, a} objects.
		var out []float64
		for _, keys := range [][2]string{{"x", "r"}, {"y", "g"}, {"z", "b"}, {"w", "a"}} {
			e, ok := t[keys[0]]
			if !ok {
				e, ok = t[keys[1]]
			}
			if !ok {
				break
			}
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, len(out) > 0
	}
	if f, ok := toFloat(v); ok {
		return []float64{f}, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

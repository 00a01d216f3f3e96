package expr

import "fmt"

// ValueType is the type of a compiled expression.
type ValueType int

const (
	Invalid ValueType = iota
	Float
	Int
	Uint
	Bool
	Vec2
	Vec3
	Vec4
	Mat4
	Texture
)

var typeNames = [...]string{
	Invalid: "invalid",
	Float:   "float",
	Int:     "int",
	Uint:    "uint",
	Bool:    "bool",
	Vec2:    "vec2",
	Vec3:    "vec3",
	Vec4:    "vec4",
	Mat4:    "mat4",
	Texture: "texture",
}

var wgslNames = [...]string{
	Float:   "f32",
	Int:     "i32",
	Uint:    "u32",
	Bool:    "bool",
	Vec2:    "vec2<f32>",
	Vec3:    "vec3<f32>",
	Vec4:    "vec4<f32>",
	Mat4:    "mat4x4<f32>",
	Texture: "texture_2d<f32>",
}

func (t ValueType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
	return typeNames[t]
}

// WGSL returns the WGSL spelling of t.
func (t ValueType) WGSL() string {
	if t <= Invalid || int(t) >= len(wgslNames) {
		return ""
	}
	return wgslNames[t]
}

// ParseType maps a schema port type name to a ValueType.
func ParseType(name string) (ValueType, bool) {
	for i, n := range typeNames {
		if n == name && i != int(Invalid) {
			return ValueType(i), true
		}
	}
	return Invalid, false
}

// Components returns the number of scalar components of t, or 0 for
// non-numeric types.
func (t ValueType) Components() int {
	switch t {
	case Float, Int, Uint, Bool:
		return 1
	case Vec2:
		return 2
	case Vec3:
		return 3
	case Vec4:
		return 4
	case Mat4:
		return 16
	}
	return 0
}

// IsScalar reports whether t is a scalar type.
func (t ValueType) IsScalar() bool { return t >= Float && t <= Bool }

// IsNumeric reports whether t is a number or float vector.
func (t ValueType) IsNumeric() bool {
	return t == Float || t == Int || t == Uint || t.IsVector()
}

// IsVector reports whether t is a float vector.
func (t ValueType) IsVector() bool { return t >= Vec2 && t <= Vec4 }

// VecType returns the float vector type with n components; n == 1 yields
// Float.
func VecType(n int) ValueType {
	switch n {
	case 1:
		return Float
	case 2:
		return Vec2
	case 3:
		return Vec3
	case 4:
		return Vec4
	}
	return Invalid
}

// Unify returns the common type of two numeric operands: scalars widen to
// the other operand's vector type and integer scalars meet floats as
// floats. Vectors of different sizes do not unify.
func Unify(a, b ValueType) (ValueType, bool) {
	switch {
	case a == b:
		return a, a.IsNumeric()
	case a.IsVector() && b.IsScalar() && b != Bool:
		return a, true
	case b.IsVector() && a.IsScalar() && a != Bool:
		return b, true
	case a.IsNumeric() && b.IsNumeric() && a.IsScalar() && b.IsScalar():
		return Float, true
	}
	return Invalid, false
}

// Convert returns WGSL code converting an expression of type from to type
// to. Numeric scalars convert freely, bools convert to numbers, scalars
// splat to vectors, vectors widen with zero components (alpha one for
// vec4) and vec4 narrows to vec3.
func Convert(code string, from, to ValueType) (string, bool) {
	if from == to {
		return code, true
	}
	switch {
	case to.IsScalar() && to != Bool && from == Bool:
		one := map[ValueType]string{Float: "1.0", Int: "1", Uint: "1u"}[to]
		zero := map[ValueType]string{Float: "0.0", Int: "0", Uint: "0u"}[to]
		return fmt.Sprintf("select(%s, %s, %s)", zero, one, code), true
	case to.IsScalar() && to != Bool && from.IsScalar():
		return fmt.Sprintf("%s(%s)", to.WGSL(), code), true
	case to.IsVector() && from.IsScalar():
		if from != Float {
			c, _ := Convert(code, from, Float)
			code = c
		}
		return fmt.Sprintf("%s(%s)", to.WGSL(), code), true
	case to == Vec3 && from == Vec2:
		return fmt.Sprintf("vec3<f32>(%s, 0.0)", code), true
	case to == Vec4 && from == Vec2:
		return fmt.Sprintf("vec4<f32>(%s, 0.0, 1.0)", code), true
	case to == Vec4 && from == Vec3:
		return fmt.Sprintf("vec4<f32>(%s, 1.0)", code), true
	case to == Vec3 && from == Vec4:
		return fmt.Sprintf("(%s).xyz", code), true
	}
	return "", false
}

// zero returns the WGSL zero value of t.
func zero(t ValueType) string {
	switch t {
	case Float:
		return "0.0"
	case Int:
		return "0"
	case Uint:
		return "0u"
	case Bool:
		return "false"
	case Vec2, Vec3, Vec4, Mat4:
		return t.WGSL() + "()"
	}
	return ""
}

// Package schema loads node-type schemas and validates scenes against them.
//
// A schema is an HCL document declaring, per node type, the allowed
// parameters with their types, ranges and defaults, the typed input and
// output ports, and a port-type compatibility matrix. The built-in schema
// is embedded; Load and Parse read user-supplied schemas.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

//go:embed nodetypes.hcl
var builtinSource []byte

// Port types.
const (
	TypeFloat    = "float"
	TypeInt      = "int"
	TypeUint     = "uint"
	TypeBool     = "bool"
	TypeVec2     = "vec2"
	TypeVec3     = "vec3"
	TypeVec4     = "vec4"
	TypeMat4     = "mat4"
	TypeTexture  = "texture"
	TypeImage    = "image"
	TypeGeometry = "geometry"
	TypePass     = "pass"
	TypeAny      = "any"
)

// Parameter types beyond the port types.
const (
	ParamString = "string"
	ParamColor  = "color"
	ParamEnum   = "enum"
)

// Node categories used by later stages.
const (
	CategoryTarget    = "target"
	CategoryPass      = "pass"
	CategoryComposite = "composite"
	CategoryGeometry  = "geometry"
	CategoryImage     = "image"
	CategoryTexture   = "texture"
	CategoryConstant  = "constant"
	CategoryGroup     = "group"
)

// Schema is a compiled node-type schema.
type Schema struct {
	types        map[string]*NodeType
	compat       map[string]map[string]bool
	ignoreParams map[string]bool
}

// NodeType describes one node kind.
type NodeType struct {
	Name     string
	Category string

	// OpenInputs allows connections on ports the schema does not declare.
	OpenInputs bool

	// DeclaredPorts takes port types from the node's own declarations.
	DeclaredPorts bool

	Params  map[string]*Param
	Inputs  []PortDef
	Outputs []PortDef
}

// Param describes one parameter.
type Param struct {
	Name     string
	Type     string
	Min      *float64
	Max      *float64
	Length   int
	Values   []string
	Required bool

	// Default is the JSON-typed default value, nil when there is none.
	Default any
}

// PortDef describes one port.
type PortDef struct {
	Name string
	Type string

	// Prefix makes the port match every id starting with Name.
	Prefix bool
}

type fileConfig struct {
	IgnoreParams []string         `hcl:"ignore_params,optional"`
	Compat       []compatConfig   `hcl:"compat,block"`
	Nodes        []nodeTypeConfig `hcl:"node,block"`
}

type compatConfig struct {
	To   string   `hcl:"to,label"`
	From []string `hcl:"from"`
}

type nodeTypeConfig struct {
	Name          string        `hcl:"name,label"`
	Category      string        `hcl:"category,optional"`
	OpenInputs    bool          `hcl:"open_inputs,optional"`
	DeclaredPorts bool          `hcl:"declared_ports,optional"`
	Params        []paramConfig `hcl:"param,block"`
	Inputs        []portConfig  `hcl:"input,block"`
	Outputs       []portConfig  `hcl:"output,block"`
}

type paramConfig struct {
	Name     string         `hcl:"name,label"`
	Type     string         `hcl:"type"`
	Default  hcl.Expression `hcl:"default,optional"`
	Min      *float64       `hcl:"min,optional"`
	Max      *float64       `hcl:"max,optional"`
	Length   *int           `hcl:"length,optional"`
	Values   []string       `hcl:"values,optional"`
	Required bool           `hcl:"required,optional"`
}

type portConfig struct {
	Name   string `hcl:"name,label"`
	Type   string `hcl:"type"`
	Prefix bool   `hcl:"prefix,optional"`
}

var builtin = sync.OnceValue(func() *Schema {
	s, err := Parse(builtinSource, "nodetypes.hcl")
	if err != nil {
		panic(fmt.Sprintf("schema: builtin schema is invalid: %v", err))
	}
	return s
})

// Builtin returns the embedded node-type schema. The result is shared and
// must not be modified.
func Builtin() *Schema {
	return builtin()
}

// Load reads a schema file.
func Load(path string) (*Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return Parse(src, path)
}

// Parse decodes an HCL schema document.
func Parse(src []byte, filename string) (*Schema, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("schema: failed to parse %s: %s", filename, diags.Error())
	}

	var cfg fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("schema: failed to decode %s: %s", filename, diags.Error())
	}

	s := &Schema{
		types:        make(map[string]*NodeType, len(cfg.Nodes)),
		compat:       make(map[string]map[string]bool, len(cfg.Compat)),
		ignoreParams: make(map[string]bool, len(cfg.IgnoreParams)),
	}
	for _, p := range cfg.IgnoreParams {
		s.ignoreParams[p] = true
	}
	for _, c := range cfg.Compat {
		set := make(map[string]bool, len(c.From))
		for _, f := range c.From {
			set[f] = true
		}
		s.compat[c.To] = set
	}
	for _, nc := range cfg.Nodes {
		if _, dup := s.types[nc.Name]; dup {
			return nil, fmt.Errorf("schema: %s: node type %q declared twice", filename, nc.Name)
		}
		nt, err := buildNodeType(nc)
		if err != nil {
			return nil, fmt.Errorf("schema: %s: %w", filename, err)
		}
		s.types[nt.Name] = nt
	}
	return s, nil
}

func buildNodeType(nc nodeTypeConfig) (*NodeType, error) {
	nt := &NodeType{
		Name:          nc.Name,
		Category:      nc.Category,
		OpenInputs:    nc.OpenInputs,
		DeclaredPorts: nc.DeclaredPorts,
		Params:        make(map[string]*Param, len(nc.Params)),
	}
	for _, pc := range nc.Params {
		p := &Param{
			Name:     pc.Name,
			Type:     pc.Type,
			Min:      pc.Min,
			Max:      pc.Max,
			Values:   pc.Values,
			Required: pc.Required,
		}
		if pc.Length != nil {
			p.Length = *pc.Length
		} else {
			p.Length = defaultLength(pc.Type)
		}
		def, err := defaultValue(pc.Default)
		if err != nil {
			return nil, fmt.Errorf("node %q param %q default: %w", nc.Name, pc.Name, err)
		}
		p.Default = def
		nt.Params[p.Name] = p
	}
	for _, ic := range nc.Inputs {
		nt.Inputs = append(nt.Inputs, PortDef(ic))
	}
	for _, oc := range nc.Outputs {
		nt.Outputs = append(nt.Outputs, PortDef(oc))
	}
	return nt, nil
}

// defaultValue converts an HCL default expression to a JSON-typed value
// matching what scene documents decode to.
func defaultValue(expr hcl.Expression) (any, error) {
	if expr == nil {
		return nil, nil
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}
	if v.IsNull() {
		return nil, nil
	}
	buf, err := ctyjson.SimpleJSONValue{Value: v}.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func defaultLength(typ string) int {
	switch typ {
	case TypeVec2:
		return 2
	case TypeVec3:
		return 3
	case TypeVec4:
		return 4
	case TypeMat4:
		return 16
	}
	return 0
}

// NodeType returns the definition of a node type.
func (s *Schema) NodeType(name string) (*NodeType, bool) {
	nt, ok := s.types[name]
	return nt, ok
}

// Types returns all node type names, sorted.
func (s *Schema) Types() []string {
	names := make([]string, 0, len(s.types))
	for n := range s.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Compatible reports whether an output of type from may feed an input of
// type to.
func (s *Schema) Compatible(from, to string) bool {
	if from == to {
		return true
	}
	return s.compat[to][from]
}

// Category returns the category of a node type, or "".
func (s *Schema) Category(typ string) string {
	if nt, ok := s.types[typ]; ok {
		return nt.Category
	}
	return ""
}

// Input returns the port definition matching an input port id.
func (nt *NodeType) Input(id string) (PortDef, bool) {
	return matchPort(nt.Inputs, id)
}

// Output returns the port definition matching an output port id.
func (nt *NodeType) Output(id string) (PortDef, bool) {
	return matchPort(nt.Outputs, id)
}

// ParamNames returns the parameter names, sorted.
func (nt *NodeType) ParamNames() []string {
	names := make([]string, 0, len(nt.Params))
	for n := range nt.Params {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func matchPort(ports []PortDef, id string) (PortDef, bool) {
	for _, p := range ports {
		if !p.Prefix && p.Name == id {
			return p, true
		}
	}
	for _, p := range ports {
		if p.Prefix && strings.HasPrefix(id, p.Name) {
			return p, true
		}
	}
	return PortDef{}, false
}

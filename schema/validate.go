package schema

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/shadergraph/scene"
)

// Validate checks every node and connection of sc, including nodes and
// connections inside group definitions, and returns a normalized copy with
// schema defaults merged into each node's parameters. sc is not modified.
func (s *Schema) Validate(sc *scene.Scene) (*scene.Scene, error) {
	out := sc.Clone()
	for i := range out.Nodes {
		if err := s.normalizeNode(&out.Nodes[i]); err != nil {
			return nil, err
		}
	}
	for gi := range out.Groups {
		g := &out.Groups[gi]
		for i := range g.Nodes {
			if err := s.normalizeNode(&g.Nodes[i]); err != nil {
				return nil, err
			}
		}
		if err := s.checkConnections(g.Nodes, g.Connections); err != nil {
			return nil, err
		}
	}
	if err := s.checkConnections(out.Nodes, out.Connections); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckConnections type-checks every connection of sc whose endpoints exist.
func (s *Schema) CheckConnections(sc *scene.Scene) error {
	return s.checkConnections(sc.Nodes, sc.Connections)
}

// Normalize validates the parameters of a single node and merges defaults
// in place. Rewrites that synthesize nodes use it.
func (s *Schema) Normalize(n *scene.Node) error {
	return s.normalizeNode(n)
}

func (s *Schema) checkConnections(nodes []scene.Node, conns []scene.Connection) error {
	idx := make(map[string]*scene.Node, len(nodes))
	for i := range nodes {
		idx[nodes[i].ID] = &nodes[i]
	}
	for _, c := range conns {
		from, ok1 := idx[c.From.NodeID]
		to, ok2 := idx[c.To.NodeID]
		if !ok1 || !ok2 {
			// Endpoint presence is a structural concern of the scene parser
			// and the live cache.
			continue
		}
		if err := s.CheckConnection(from, to, c); err != nil {
			return err
		}
	}
	return nil
}

// CheckConnection validates a single connection between two nodes.
func (s *Schema) CheckConnection(from, to *scene.Node, c scene.Connection) error {
	fromType, ok := s.OutputType(from, c.From.PortID)
	if !ok {
		return &ValidationError{
			Kind:         KindUnknownPort,
			NodeID:       from.ID,
			ConnectionID: c.ID,
			Field:        "output " + c.From.PortID,
			Expected:     "an output port of " + from.Type,
		}
	}
	toType, ok := s.InputType(to, c.To.PortID)
	if !ok {
		return &ValidationError{
			Kind:         KindUnknownPort,
			NodeID:       to.ID,
			ConnectionID: c.ID,
			Field:        "input " + c.To.PortID,
			Expected:     "an input port of " + to.Type,
		}
	}
	if !s.Compatible(fromType, toType) {
		return &ValidationError{
			Kind:         KindTypeMismatch,
			ConnectionID: c.ID,
			From:         c.From.NodeID + "." + c.From.PortID,
			To:           c.To.NodeID + "." + c.To.PortID,
			Expected:     toType,
			Got:          fromType,
		}
	}
	return nil
}

// OutputType returns the port type of an output of n. A declared port type
// refines a schema type of "any".
func (s *Schema) OutputType(n *scene.Node, port string) (string, bool) {
	nt, ok := s.types[n.Type]
	if !ok {
		return "", false
	}
	if nt.Category == CategoryGroup {
		return TypeAny, true
	}
	declared, hasDecl := n.DeclaredOutput(port)
	if def, ok := nt.Output(port); ok {
		if def.Type == TypeAny && hasDecl && declared.Type != "" {
			return declared.Type, true
		}
		return def.Type, true
	}
	if nt.DeclaredPorts && hasDecl {
		return orAny(declared.Type), true
	}
	return "", false
}

// InputType returns the port type of an input of n. Nodes with open inputs
// accept any port id.
func (s *Schema) InputType(n *scene.Node, port string) (string, bool) {
	nt, ok := s.types[n.Type]
	if !ok {
		return "", false
	}
	if nt.DeclaredPorts {
		if declared, ok := n.DeclaredInput(port); ok {
			return orAny(declared.Type), true
		}
	}
	if def, ok := nt.Input(port); ok {
		return def.Type, true
	}
	if nt.OpenInputs {
		return TypeAny, true
	}
	return "", false
}

func orAny(t string) string {
	if t == "" {
		return TypeAny
	}
	return t
}

func (s *Schema) normalizeNode(n *scene.Node) error {
	nt, ok := s.types[n.Type]
	if !ok {
		return &ValidationError{Kind: KindUnknownType, NodeID: n.ID, Field: "type", Got: n.Type}
	}
	keys := make([]string, 0, len(n.Params))
	for key := range n.Params {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		v := n.Params[key]
		p, ok := nt.Params[key]
		if !ok {
			if s.ignoreParams[key] {
				continue
			}
			return &ValidationError{Kind: KindUnknownParam, NodeID: n.ID, Field: key, Expected: "one of " + strings.Join(nt.ParamNames(), ", ")}
		}
		if v == nil {
			delete(n.Params, key)
			continue
		}
		nv, err := checkParam(n.ID, p, v)
		if err != nil {
			return err
		}
		n.Params[key] = nv
	}
	for _, name := range nt.ParamNames() {
		p := nt.Params[name]
		if n.HasParam(name) {
			continue
		}
		if p.Required {
			return &ValidationError{Kind: KindMissingParam, NodeID: n.ID, Field: name, Expected: p.Type}
		}
		if p.Default != nil {
			n.SetParam(name, cloneDefault(p.Default))
		}
	}
	return nil
}

func checkParam(nodeID string, p *Param, v any) (any, error) {
	typeErr := func() error {
		return &ValidationError{Kind: KindParamType, NodeID: nodeID, Field: p.Name, Expected: p.Type, Got: jsonKind(v)}
	}
	switch p.Type {
	case TypeFloat, TypeInt, TypeUint:
		f, ok := v.(float64)
		if !ok {
			return nil, typeErr()
		}
		if p.Type != TypeFloat && f != math.Trunc(f) {
			return nil, typeErr()
		}
		if p.Type == TypeUint && f < 0 {
			return nil, &ValidationError{Kind: KindParamRange, NodeID: nodeID, Field: p.Name, Expected: ">= 0", Got: formatNum(f)}
		}
		if p.Min != nil && f < *p.Min {
			return nil, &ValidationError{Kind: KindParamRange, NodeID: nodeID, Field: p.Name, Expected: ">= " + formatNum(*p.Min), Got: formatNum(f)}
		}
		if p.Max != nil && f > *p.Max {
			return nil, &ValidationError{Kind: KindParamRange, NodeID: nodeID, Field: p.Name, Expected: "<= " + formatNum(*p.Max), Got: formatNum(f)}
		}
		return f, nil
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return nil, typeErr()
		}
		return v, nil
	case ParamString:
		if _, ok := v.(string); !ok {
			return nil, typeErr()
		}
		return v, nil
	case ParamEnum:
		str, ok := v.(string)
		if !ok {
			return nil, typeErr()
		}
		for _, allowed := range p.Values {
			if str == allowed {
				return v, nil
			}
		}
		return nil, &ValidationError{Kind: KindParamRange, NodeID: nodeID, Field: p.Name, Expected: "one of " + strings.Join(p.Values, ", "), Got: str}
	case ParamColor:
		if str, ok := v.(string); ok {
			c, err := parseHexColor(str)
			if err != nil {
				return nil, &ValidationError{Kind: KindParamType, NodeID: nodeID, Field: p.Name, Expected: "#rrggbb or #rrggbbaa", Got: str}
			}
			return c, nil
		}
		arr, ok := v.([]any)
		if !ok {
			return nil, typeErr()
		}
		if len(arr) != 3 && len(arr) != 4 {
			return nil, &ValidationError{Kind: KindParamLength, NodeID: nodeID, Field: p.Name, Expected: "3 or 4 elements", Got: strconv.Itoa(len(arr))}
		}
		if err := checkNumbers(nodeID, p, arr); err != nil {
			return nil, err
		}
		if len(arr) == 3 {
			arr = append(arr, 1.0)
		}
		return arr, nil
	case TypeVec2, TypeVec3, TypeVec4, TypeMat4:
		arr, ok := v.([]any)
		if !ok {
			return nil, typeErr()
		}
		if p.Length > 0 && len(arr) != p.Length {
			return nil, &ValidationError{Kind: KindParamLength, NodeID: nodeID, Field: p.Name, Expected: fmt.Sprintf("%d elements", p.Length), Got: strconv.Itoa(len(arr))}
		}
		if err := checkNumbers(nodeID, p, arr); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return v, nil
}

func checkNumbers(nodeID string, p *Param, arr []any) error {
	for i, e := range arr {
		if _, ok := e.(float64); !ok {
			return &ValidationError{
				Kind:     KindParamType,
				NodeID:   nodeID,
				Field:    fmt.Sprintf("%s[%d]", p.Name, i),
				Expected: "number",
				Got:      jsonKind(e),
			}
		}
	}
	return nil
}

func parseHexColor(s string) ([]any, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return nil, fmt.Errorf("bad length %d", len(s))
	}
	u, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, err
	}
	if len(s) == 6 {
		u = u<<8 | 0xff
	}
	return []any{
		float64(u>>24&0xff) / 255,
		float64(u>>16&0xff) / 255,
		float64(u>>8&0xff) / 255,
		float64(u&0xff) / 255,
	}, nil
}

func cloneDefault(v any) any {
	if arr, ok := v.([]any); ok {
		return append([]any(nil), arr...)
	}
	return v
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

package scene

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrSceneParse is matched by every *ParseError.
var ErrSceneParse = errors.New("scene: parse error")

// ParseError reports a malformed scene document or archive.
type ParseError struct {
	// Source names the document (file name, archive entry) when known.
	Source string
	// Field is the offending element, such as "nodes[3].id".
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	msg := "scene: "
	if e.Source != "" {
		msg += e.Source + ": "
	}
	if e.Field != "" {
		msg += e.Field + ": "
	}
	if e.Err != nil {
		msg += e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is reports ErrSceneParse equivalence.
func (e *ParseError) Is(target error) bool { return target == ErrSceneParse }

// Parse decodes a scene document and rejects structural defects:
// empty or duplicate node ids and connections whose endpoints are missing.
func Parse(data []byte) (*Scene, error) {
	s, err := ParseUnchecked(data)
	if err != nil {
		return nil, err
	}
	if err := s.CheckStructure(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseUnchecked decodes a scene document without structural checks.
// The live-update path uses it and prunes dangling connections instead.
func ParseUnchecked(data []byte) (*Scene, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var s Scene
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return nil, &ParseError{Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Err: errors.New("trailing data after scene object")}
	}
	return &s, nil
}

// ParseFile reads and parses a scene file.
func ParseFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	s, err := Parse(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) && pe.Source == "" {
			pe.Source = path
		}
		return nil, err
	}
	return s, nil
}

// CheckStructure verifies node id uniqueness and connection endpoints.
func (s *Scene) CheckStructure() error {
	seen := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.ID == "" {
			return &ParseError{Field: fmt.Sprintf("nodes[%d].id", i), Err: errors.New("empty node id")}
		}
		if n.Type == "" {
			return &ParseError{Field: fmt.Sprintf("nodes[%d].type", i), Err: fmt.Errorf("node %q has no type", n.ID)}
		}
		if seen[n.ID] {
			return &ParseError{Field: fmt.Sprintf("nodes[%d].id", i), Err: fmt.Errorf("duplicate node id %q", n.ID)}
		}
		seen[n.ID] = true
	}
	for i, c := range s.Connections {
		if !seen[c.From.NodeID] {
			return &ParseError{
				Field: fmt.Sprintf("connections[%d].from", i),
				Err:   fmt.Errorf("connection %q references missing node %q", c.ID, c.From.NodeID),
			}
		}
		if !seen[c.To.NodeID] {
			return &ParseError{
				Field: fmt.Sprintf("connections[%d].to", i),
				Err:   fmt.Errorf("connection %q references missing node %q", c.ID, c.To.NodeID),
			}
		}
	}
	for name, id := range s.Outputs {
		if !seen[id] {
			return &ParseError{
				Field: "outputs." + name,
				Err:   fmt.Errorf("output references missing node %q", id),
			}
		}
	}
	return nil
}

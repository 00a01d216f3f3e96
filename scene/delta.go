package scene

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Live-update message types.
const (
	MessageScene = "scene"
	MessageDelta = "delta"
)

// Delta is an incremental edit of a cached scene.
//
// Application order is fixed: node removals, node additions and updates,
// connection removals, connection additions and updates, then output
// replacement when Outputs is non-nil.
type Delta struct {
	Version     string          `json:"version,omitempty"`
	Nodes       NodeDelta       `json:"nodes"`
	Connections ConnectionDelta `json:"connections"`

	// Outputs, when present, fully replaces the output map.
	Outputs *map[string]string `json:"outputs,omitempty"`
}

// NodeDelta lists node edits.
type NodeDelta struct {
	Added   []Node   `json:"added,omitempty"`
	Updated []Node   `json:"updated,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// ConnectionDelta lists connection edits.
type ConnectionDelta struct {
	Added   []Connection `json:"added,omitempty"`
	Updated []Connection `json:"updated,omitempty"`
	Removed []string     `json:"removed,omitempty"`
}

// Empty reports whether the delta carries no edits.
func (d *Delta) Empty() bool {
	return len(d.Nodes.Added) == 0 && len(d.Nodes.Updated) == 0 && len(d.Nodes.Removed) == 0 &&
		len(d.Connections.Added) == 0 && len(d.Connections.Updated) == 0 && len(d.Connections.Removed) == 0 &&
		d.Outputs == nil
}

// Message is a live-update payload: a full scene or a delta.
type Message struct {
	Type  string `json:"type"`
	Scene *Scene `json:"scene,omitempty"`
	Delta *Delta `json:"delta,omitempty"`
}

// ParseMessage decodes a live-update message.
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ParseError{Source: "message", Err: err}
	}
	switch m.Type {
	case MessageScene:
		if m.Scene == nil {
			return nil, &ParseError{Source: "message", Field: "scene", Err: errors.New("missing scene")}
		}
	case MessageDelta:
		if m.Delta == nil {
			return nil, &ParseError{Source: "message", Field: "delta", Err: errors.New("missing delta")}
		}
	default:
		return nil, &ParseError{Source: "message", Field: "type", Err: fmt.Errorf("unknown message type %q", m.Type)}
	}
	return &m, nil
}

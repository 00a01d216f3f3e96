package scene

import (
	"errors"
	"testing"
)

func TestParseMessage(t *testing.T) {
	m, err := ParseMessage([]byte(`{"type": "delta", "delta": {
		"nodes": {"removed": ["a"], "added": [{"id": "a", "type": "Float"}]},
		"connections": {},
		"outputs": {"main": "a"}
	}}`))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if m.Type != MessageDelta {
		t.Fatalf("Type = %q, want %q", m.Type, MessageDelta)
	}
	if m.Delta.Outputs == nil || (*m.Delta.Outputs)["main"] != "a" {
		t.Errorf("Outputs = %v, want main=a", m.Delta.Outputs)
	}
	if m.Delta.Empty() {
		t.Error("Empty() = true, want false")
	}
}

func TestParseMessageOutputsAbsent(t *testing.T) {
	m, err := ParseMessage([]byte(`{"type": "delta", "delta": {"nodes": {"removed": ["x"]}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if m.Delta.Outputs != nil {
		t.Errorf("Outputs = %v, want nil when absent", m.Delta.Outputs)
	}
}

func TestParseMessageErrors(t *testing.T) {
	for _, doc := range []string{
		`{"type": "scene"}`,
		`{"type": "delta"}`,
		`{"type": "bogus"}`,
		`not json`,
	} {
		if _, err := ParseMessage([]byte(doc)); !errors.Is(err, ErrSceneParse) {
			t.Errorf("ParseMessage(%s) error = %v, want ErrSceneParse", doc, err)
		}
	}
}

func TestEmptyDelta(t *testing.T) {
	var d Delta
	if !d.Empty() {
		t.Error("zero Delta.Empty() = false, want true")
	}
}

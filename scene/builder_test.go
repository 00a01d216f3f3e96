package scene

import (
	"errors"
	"testing"
)

func TestBuilder(t *testing.T) {
	s := NewBuilder("demo").
		Node("screen", "Screen", Params{"width": 640.0}).
		Node("col", "Color", nil).
		NodeWithPorts("rp", "RenderPass", nil, []Port{{ID: "color"}}, []Port{{ID: "pass", Type: "pass"}}).
		Connect("col", "color", "rp", "color").
		ConnectID("last", "rp", "pass", "screen", "pass").
		Output("main", "screen").
		Asset("logo", "img/logo.png", "image/png").
		Group(Group{ID: "g"}).
		Build()

	if s.Version != "1" || s.Metadata.Name != "demo" {
		t.Errorf("header = %q %q, want 1 demo", s.Version, s.Metadata.Name)
	}
	if len(s.Nodes) != 3 || len(s.Connections) != 2 {
		t.Fatalf("got %d nodes %d connections, want 3 and 2", len(s.Nodes), len(s.Connections))
	}
	if got := s.Connections[0].ID; got != "c1" {
		t.Errorf("generated id = %q, want c1", got)
	}
	if got := s.Connections[1].ID; got != "last" {
		t.Errorf("explicit id = %q, want last", got)
	}
	if s.Outputs["main"] != "screen" {
		t.Errorf("outputs = %v", s.Outputs)
	}
	if a := s.Assets["logo"]; a.Path != "img/logo.png" || a.MimeType != "image/png" {
		t.Errorf("asset = %+v", a)
	}
	if rp, _ := s.NodeByID("rp"); len(rp.Outputs) != 1 || rp.Outputs[0].Type != "pass" {
		t.Errorf("declared outputs = %+v", rp.Outputs)
	}
	if err := s.CheckStructure(); err != nil {
		t.Errorf("CheckStructure() = %v", err)
	}
}

func TestBuilderDanglingFailsStructure(t *testing.T) {
	s := NewBuilder("bad").
		Node("a", "Float", nil).
		Connect("a", "value", "missing", "x").
		Build()
	if err := s.CheckStructure(); !errors.Is(err, ErrSceneParse) {
		t.Errorf("CheckStructure() = %v, want ErrSceneParse", err)
	}
}

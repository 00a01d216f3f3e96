package shadergraph

import (
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/shadergraph/plan"
	"github.com/gogpu/shadergraph/scene"
)

func sceneMsg(s *scene.Scene) *scene.Message {
	return &scene.Message{Type: scene.MessageScene, Scene: s}
}

func deltaMsg(d *scene.Delta) *scene.Message {
	return &scene.Message{Type: scene.MessageDelta, Delta: d}
}

func mustStep(t *testing.T, d *Driver) Outcome {
	t.Helper()
	out, ok := d.Step()
	if !ok {
		t.Fatal("Step() found nothing queued")
	}
	return out
}

func TestDriverStepEmpty(t *testing.T) {
	d := NewDriver(NewCompiler())
	if _, ok := d.Step(); ok {
		t.Error("Step() on an idle driver reported work")
	}
	if d.Active() != nil {
		t.Error("Active() before any step is not nil")
	}
}

func TestDriverAdoptsScene(t *testing.T) {
	d := NewDriver(NewCompiler())
	if err := d.Submit(sceneMsg(simpleScene(1))); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	out := mustStep(t, d)
	if out.Err != nil || out.Source != SourceFresh {
		t.Fatalf("outcome = %v %v, want fresh without error", out.Source, out.Err)
	}
	if !out.Rebuild {
		t.Error("first result did not request a pipeline build")
	}
	if d.Active() != out.Active {
		t.Error("Active() differs from the step outcome")
	}
	if good, ok := d.LastGood(); !ok || good != out.Active {
		t.Error("LastGood() not updated")
	}
}

func TestDriverErrorPipeline(t *testing.T) {
	d := NewDriver(NewCompiler())
	if err := d.SubmitScene(cyclicScene()); err != nil {
		t.Fatal(err)
	}
	out := mustStep(t, d)
	if !errors.Is(out.Err, ErrCycleDetected) {
		t.Fatalf("Err = %v, want ErrCycleDetected", out.Err)
	}
	if out.Source != SourceErrorPipeline {
		t.Fatalf("Source = %v, want error-pipeline", out.Source)
	}
	if out.Active == nil || out.Active.Plan.Passes[0].Kind != plan.PassError {
		t.Fatal("error pipeline not active")
	}
	if _, ok := d.LastGood(); ok {
		t.Error("failed scene stored as last good")
	}
}

func TestDriverKeepsLastGood(t *testing.T) {
	d := NewDriver(NewCompiler())
	_ = d.SubmitScene(simpleScene(1))
	good := mustStep(t, d).Active

	_ = d.SubmitScene(cyclicScene())
	out := mustStep(t, d)
	if out.Err == nil {
		t.Fatal("cyclic scene compiled")
	}
	if out.Source != SourceLastGood || out.Active != good {
		t.Errorf("outcome = %v %p, want last-good %p", out.Source, out.Active, good)
	}
	if out.Rebuild {
		t.Error("falling back to the same result requested a rebuild")
	}
}

func TestDriverRebuildOnlyOnSignatureChange(t *testing.T) {
	d := NewDriver(NewCompiler())
	_ = d.SubmitScene(simpleScene(1))
	mustStep(t, d)

	_ = d.Submit(deltaMsg(&scene.Delta{Nodes: scene.NodeDelta{Updated: []scene.Node{{
		ID: "col", Type: "Color", Params: map[string]any{"value": []any{0.0, 1.0, 0.0, 1.0}},
	}}}}))
	out := mustStep(t, d)
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if out.Rebuild {
		t.Error("constant edit requested a pipeline rebuild")
	}

	_ = d.Submit(deltaMsg(&scene.Delta{Nodes: scene.NodeDelta{Updated: []scene.Node{{
		ID: "rp", Type: "RenderPass", Params: map[string]any{"blend": "additive"},
	}}}}))
	out = mustStep(t, d)
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if !out.Rebuild {
		t.Error("blend change did not request a pipeline rebuild")
	}
}

func TestDriverLatestWins(t *testing.T) {
	d := NewDriver(NewCompiler())
	_ = d.SubmitScene(cyclicScene())
	_ = d.SubmitScene(simpleScene(0.25))
	_ = d.SubmitScene(simpleScene(0.75))

	out := mustStep(t, d)
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if got := out.Active.Plan.Params[0]; got != 0.75 {
		t.Errorf("params[0] = %v, want 0.75 from the newest scene", got)
	}
	if _, ok := d.Step(); ok {
		t.Error("superseded scenes were queued")
	}
	if got := d.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestDriverDeltaPrunesDangling(t *testing.T) {
	d := NewDriver(NewCompiler())
	s := simpleScene(1)
	s.Nodes = append(s.Nodes, scene.Node{ID: "extra", Type: "Float"})
	_ = d.SubmitScene(s)
	mustStep(t, d)

	// Removing col leaves col->rp dangling; the pruned scene compiles with
	// the RenderPass default color.
	_ = d.Submit(deltaMsg(&scene.Delta{Nodes: scene.NodeDelta{Removed: []string{"col"}}}))
	out := mustStep(t, d)
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if n := len(d.Cache().Materialize().Connections); n != 1 {
		t.Errorf("connections = %d, want 1", n)
	}
}

func TestDriverDeltaRemoveThenAdd(t *testing.T) {
	d := NewDriver(NewCompiler())
	_ = d.SubmitScene(simpleScene(1))
	mustStep(t, d)

	_ = d.Submit(deltaMsg(&scene.Delta{
		Nodes: scene.NodeDelta{
			Removed: []string{"col"},
			Added:   []scene.Node{{ID: "col", Type: "Color", Params: map[string]any{"value": []any{0.5, 0.5, 0.5, 1.0}}}},
		},
	}))
	out := mustStep(t, d)
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if got := out.Active.Plan.Params[0]; got != 0.5 {
		t.Errorf("params[0] = %v, want 0.5", got)
	}
}

func TestDriverSubmitUnknown(t *testing.T) {
	d := NewDriver(NewCompiler())
	if err := d.Submit(&scene.Message{Type: "bogus"}); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Submit() error = %v, want ErrUnknownMessage", err)
	}
	if err := d.Submit(&scene.Message{Type: scene.MessageDelta}); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Submit(delta without body) error = %v, want ErrUnknownMessage", err)
	}
}

func TestDriverConcurrentSubmit(t *testing.T) {
	d := NewDriver(NewCompiler())
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.SubmitScene(simpleScene(float64(i) / 8))
		}()
	}
	wg.Wait()

	out := mustStep(t, d)
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if got := d.Dropped(); got != 7 {
		t.Errorf("Dropped() = %d, want 7", got)
	}
}

func TestSourceString(t *testing.T) {
	tests := []struct {
		s    Source
		want string
	}{
		{SourceFresh, "fresh"},
		{SourceLastGood, "last-good"},
		{SourceErrorPipeline, "error-pipeline"},
		{Source(9), "Source(9)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCompile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCompile(2*time.Millisecond, 3, "")
	m.ObserveCompile(time.Millisecond, 0, "cycle_detected")
	m.ObserveCompile(time.Millisecond, 0, "cycle_detected")

	if got := testutil.ToFloat64(m.compiles.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok compiles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.compiles.WithLabelValues("cycle_detected")); got != 2 {
		t.Errorf("cycle compiles = %v, want 2", got)
	}

	want := `
# HELP shadergraph_plan_passes Render passes per successfully compiled plan.
# TYPE shadergraph_plan_passes histogram
shadergraph_plan_passes_bucket{le="1"} 0
shadergraph_plan_passes_bucket{le="2"} 0
shadergraph_plan_passes_bucket{le="4"} 1
shadergraph_plan_passes_bucket{le="8"} 1
shadergraph_plan_passes_bucket{le="16"} 1
shadergraph_plan_passes_bucket{le="32"} 1
shadergraph_plan_passes_bucket{le="64"} 1
shadergraph_plan_passes_bucket{le="+Inf"} 1
shadergraph_plan_passes_sum 3
shadergraph_plan_passes_count 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "shadergraph_plan_passes"); err != nil {
		t.Error(err)
	}
}

func TestSetSuperseded(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetSuperseded(3)
	m.SetSuperseded(2)
	m.SetSuperseded(5)
	if got := testutil.ToFloat64(m.dropped); got != 5 {
		t.Errorf("superseded = %v, want 5", got)
	}
}

func TestSetSupersededConcurrent(t *testing.T) {
	m := New(prometheus.NewRegistry())
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.SetSuperseded(uint64(i + 1))
		}()
	}
	wg.Wait()
	if got := testutil.ToFloat64(m.dropped); got != 50 {
		t.Errorf("superseded = %v, want 50", got)
	}
}

func TestMessagesAndSessions(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveMessage("scene")
	m.ObserveMessage("delta")
	m.ObserveMessage("delta")
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.ObserveRebuild()

	if got := testutil.ToFloat64(m.messages.WithLabelValues("delta")); got != 2 {
		t.Errorf("delta messages = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.sessions); got != 1 {
		t.Errorf("sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rebuilds); got != 1 {
		t.Errorf("rebuilds = %v, want 1", got)
	}
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("second New on one registry did not panic")
		}
	}()
	New(reg)
}

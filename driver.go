package shadergraph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/shadergraph/live"
	"github.com/gogpu/shadergraph/scene"
)

// ErrUnknownMessage is returned by Submit for messages that are neither a
// scene nor a delta.
var ErrUnknownMessage = errors.New("shadergraph: unknown live message")

// Source tells where the active result of a Step came from.
type Source int

const (
	// SourceFresh means the newly submitted scene compiled.
	SourceFresh Source = iota
	// SourceLastGood means the new scene failed and the last good result
	// stays active.
	SourceLastGood
	// SourceErrorPipeline means the new scene failed and nothing has
	// compiled yet.
	SourceErrorPipeline
)

func (s Source) String() string {
	switch s {
	case SourceFresh:
		return "fresh"
	case SourceLastGood:
		return "last-good"
	case SourceErrorPipeline:
		return "error-pipeline"
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// Outcome is the result of one Step.
type Outcome struct {
	// Active is what the render loop should draw.
	Active *Result
	Source Source

	// Err is the compile error of the submitted scene, if any.
	Err error

	// Rebuild reports that Active's signature differs from the previous
	// active result, so GPU pipelines must be recreated. When false only
	// buffer contents changed.
	Rebuild bool
}

// Driver keeps a live-edited scene compiled. Submit may be called from
// any goroutine; Step belongs to the render loop. Only Step writes the
// last-known-good result.
type Driver struct {
	compiler *Compiler

	submitMu sync.Mutex
	cache    *live.Cache
	pending  *live.Slot[*scene.Scene]

	good   live.Cell[*Result]
	active live.Cell[*Result]
}

// NewDriver returns a driver compiling with c.
func NewDriver(c *Compiler) *Driver {
	return &Driver{
		compiler: c,
		cache:    live.NewCache(),
		pending:  live.NewSlot[*scene.Scene](),
	}
}

// Submit applies a live message to the scene cache, prunes dangling
// connections and queues the materialized scene for the next Step. A
// newer Submit supersedes a queued scene that has not been stepped yet.
func (d *Driver) Submit(msg *scene.Message) error {
	d.submitMu.Lock()
	defer d.submitMu.Unlock()

	switch {
	case msg.Type == scene.MessageScene && msg.Scene != nil:
		d.cache.Replace(msg.Scene)
	case msg.Type == scene.MessageDelta && msg.Delta != nil:
		d.cache.ApplyDelta(msg.Delta)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	if n := d.cache.PruneInvalidConnections(); n > 0 {
		logger.Load().Debug("shadergraph: pruned connections", "count", n)
	}
	d.pending.Offer(d.cache.Materialize())
	return nil
}

// SubmitScene queues a full scene.
func (d *Driver) SubmitScene(s *scene.Scene) error {
	return d.Submit(&scene.Message{Type: scene.MessageScene, Scene: s})
}

// Pending is signaled when a scene is queued.
func (d *Driver) Pending() <-chan struct{} { return d.pending.C() }

// Dropped returns how many queued scenes were superseded before a Step
// picked them up.
func (d *Driver) Dropped() uint64 { return d.pending.Dropped() }

// Cache exposes the scene cache, for inspection.
func (d *Driver) Cache() *live.Cache { return d.cache }

// Step compiles the queued scene, if any. It reports false when nothing
// was queued. A scene that fails to compile is reported in Outcome.Err and
// never adopted: the last good result stays active, or the error pipeline
// when there is none.
func (d *Driver) Step() (Outcome, bool) {
	s, ok := d.pending.Poll()
	if !ok {
		return Outcome{}, false
	}
	return d.compile(s), true
}

func (d *Driver) compile(s *scene.Scene) Outcome {
	log := logger.Load()
	prev, _ := d.active.Load()

	res, err := d.compiler.Compile(s)
	out := Outcome{Active: res, Source: SourceFresh, Err: err}
	if err != nil {
		if good, ok := d.good.Load(); ok {
			out.Active, out.Source = good, SourceLastGood
			log.Warn("shadergraph: scene rejected, keeping last good", "error", err)
		} else {
			out.Active, out.Source = d.compiler.ErrorResult(err), SourceErrorPipeline
			log.Error("shadergraph: scene rejected, showing error pipeline", "error", err)
		}
	} else {
		d.good.Store(res)
		log.Info("shadergraph: scene adopted", "scene", s.Metadata.Name, "passes", len(res.Plan.Passes))
	}

	out.Rebuild = prev == nil || prev.Signature != out.Active.Signature
	d.active.Store(out.Active)
	return out
}

// Active returns the result the render loop should draw, or nil before the
// first Step.
func (d *Driver) Active() *Result {
	r, _ := d.active.Load()
	return r
}

// LastGood returns the most recent successfully compiled result.
func (d *Driver) LastGood() (*Result, bool) {
	return d.good.Load()
}

package livesrv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/shadergraph"
	"github.com/gogpu/shadergraph/live"
	"github.com/gogpu/shadergraph/scene"
)

// DefaultDebounce is the quiet period after the last file event before a
// reload.
const DefaultDebounce = 150 * time.Millisecond

// AssetStore serves the assets of the most recently loaded archive. It
// satisfies plan.Assets and is safe for concurrent use.
type AssetStore struct {
	cur live.Cell[*scene.Archive]
}

// Set replaces the current archive. nil clears it.
func (a *AssetStore) Set(ar *scene.Archive) { a.cur.Store(ar) }

// Asset returns an asset of the current archive.
func (a *AssetStore) Asset(id string) ([]byte, bool) {
	ar, ok := a.cur.Load()
	if !ok || ar == nil {
		return nil, false
	}
	return ar.Asset(id)
}

// Load reads a scene file or, for .zip paths, a scene archive. The scene is
// parsed without structural checks; the driver prunes what dangles.
func Load(path string) (*scene.Scene, *scene.Archive, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		ar, err := scene.LoadArchive(path)
		if err != nil {
			return nil, nil, err
		}
		return ar.Scene, ar, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &scene.ParseError{Source: path, Err: err}
	}
	s, err := scene.ParseUnchecked(data)
	if err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}

// WatcherOptions configure a Watcher.
type WatcherOptions struct {
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// Assets receives the archive of every .zip reload.
	Assets *AssetStore

	// OnLoad is called after every load attempt with its error.
	OnLoad func(error)

	Logger *slog.Logger
}

// Watcher reloads one scene file into a driver whenever it changes.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a temporary file over the original are seen.
type Watcher struct {
	path   string
	driver *shadergraph.Driver
	opts   WatcherOptions
	log    *slog.Logger
	fs     *fsnotify.Watcher
}

// NewWatcher prepares a watcher for path. Run starts it.
func NewWatcher(path string, d *shadergraph.Driver, opts WatcherOptions) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("livesrv: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = shadergraph.Logger()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("livesrv: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("livesrv: watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, driver: d, opts: opts, log: log, fs: fw}, nil
}

// Run loads the file once, then reloads it after each burst of changes
// until ctx is done. Load failures are logged and reported to OnLoad; the
// watcher keeps running.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	w.reload()

	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			w.log.Debug("livesrv: file event", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.opts.Debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("livesrv: watch error", "error", err)
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	err := w.load()
	if err != nil {
		w.log.Warn("livesrv: reload failed", "path", w.path, "error", err)
	} else {
		w.log.Info("livesrv: reloaded", "path", w.path)
	}
	if w.opts.OnLoad != nil {
		w.opts.OnLoad(err)
	}
}

func (w *Watcher) load() error {
	s, ar, err := Load(w.path)
	if err != nil {
		return err
	}
	if ar != nil && w.opts.Assets != nil {
		w.opts.Assets.Set(ar)
	}
	return w.driver.SubmitScene(s)
}

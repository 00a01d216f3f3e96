// Package logging holds the package-level logger cells shared by the
// shadergraph packages. Every cell starts out silent; the root package's
// SetLogger fans a logger out to each of them.
package logging

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled returns false so callers skip
// attribute formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var nop = slog.New(nopHandler{})

// Nop returns the shared silent logger.
func Nop() *slog.Logger { return nop }

// IsNop reports whether l discards everything.
func IsNop(l *slog.Logger) bool {
	_, ok := l.Handler().(nopHandler)
	return ok
}

// Cell stores a logger for concurrent use. The zero value is silent.
type Cell struct {
	p atomic.Pointer[slog.Logger]
}

// Load returns the stored logger, or the silent logger if none was stored.
func (c *Cell) Load() *slog.Logger {
	if l := c.p.Load(); l != nil {
		return l
	}
	return nop
}

// Store replaces the logger. nil restores silence.
func (c *Cell) Store(l *slog.Logger) {
	if l == nil {
		l = nop
	}
	c.p.Store(l)
}

// New builds a text or JSON handler logger at the given level, as selected
// by configuration ("text" or "json"; anything else falls back to text).
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a configuration level name to a slog level.
func ParseLevel(name string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return l
}

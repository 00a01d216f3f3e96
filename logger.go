package shadergraph

import (
	"log/slog"

	"github.com/gogpu/shadergraph/export"
	"github.com/gogpu/shadergraph/expr"
	"github.com/gogpu/shadergraph/internal/logging"
	"github.com/gogpu/shadergraph/live"
	"github.com/gogpu/shadergraph/plan"
	"github.com/gogpu/shadergraph/prepare"
	"github.com/gogpu/shadergraph/resolve"
	"github.com/gogpu/shadergraph/shaderspace"
)

var logger logging.Cell

// SetLogger configures the logger for shadergraph and all its
// sub-packages. By default nothing is logged. Pass nil to restore
// silence.
//
// Log levels used by shadergraph:
//   - [slog.LevelDebug]: compile stages, plan and cache sizes
//   - [slog.LevelInfo]: scene adoption, exports
//   - [slog.LevelWarn]: fallbacks (placeholder images, last-known-good)
//   - [slog.LevelError]: rejected scenes
//
// SetLogger is safe for concurrent use.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	prepare.SetLogger(l)
	resolve.SetLogger(l)
	expr.SetLogger(l)
	plan.SetLogger(l)
	shaderspace.SetLogger(l)
	live.SetLogger(l)
	export.SetLogger(l)
}

// Logger returns the current root logger.
func Logger() *slog.Logger {
	return logger.Load()
}

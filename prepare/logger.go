package prepare

import (
	"log/slog"

	"github.com/gogpu/shadergraph/internal/logging"
)

var logger logging.Cell

// SetLogger sets the logger for the prepare package. nil restores silence.
func SetLogger(l *slog.Logger) { logger.Store(l) }

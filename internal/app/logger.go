package app

import (
	"io"
	"log/slog"

	"github.com/specialistvlad/pacforge/internal/config"
)

// newLogger builds the application's own slog.Logger from the configured
// level and format. It never touches the global default logger.
func newLogger(levelName, format string, outW io.Writer) *slog.Logger {
	// Config validation has already rejected unknown names.
	level, _ := config.ParseLogLevel(levelName)
	opts := &slog.HandlerOptions{Level: level}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}

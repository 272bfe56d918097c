package progress

import (
	"context"
	"log/slog"

	"github.com/specialistvlad/pacforge/internal/ctxlog"
)

// LogSink writes events to the context logger.
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, ev Event) {
	logger := ctxlog.FromContext(ctx)
	level := slog.LevelInfo
	switch ev.State {
	case "failed":
		level = slog.LevelError
	case "pruned", "aborted":
		level = slog.LevelWarn
	}
	attrs := []any{"run", ev.RunID, "batch", ev.Batch, "label", ev.Label, "state", ev.State}
	if ev.Error != "" {
		attrs = append(attrs, "error", ev.Error)
	}
	logger.Log(ctx, level, "Batch transition.", attrs...)
}

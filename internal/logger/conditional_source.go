package logger

import (
	"context"
	"log/slog"
	"runtime"
)

type conditionalSourceHandler struct {
	handler          slog.Handler
	showSourceLevels map[slog.Level]bool
}

// NewConditionalSourceHandler wraps handler so that the source location is attached only
// for the given levels. The wrapped handler should be built with AddSource: false.
func NewConditionalSourceHandler(handler slog.Handler, showSourceForLevels ...slog.Level) slog.Handler {
	levels := make(map[slog.Level]bool, len(showSourceForLevels))
	for _, level := range showSourceForLevels {
		levels[level] = true
	}
	return &conditionalSourceHandler{handler: handler, showSourceLevels: levels}
}

func (h *conditionalSourceHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.showSourceLevels[r.Level] && r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		r.AddAttrs(slog.Any(slog.SourceKey, &slog.Source{
			Function: f.Function,
			File:     f.File,
			Line:     f.Line,
		}))
	}
	return h.handler.Handle(ctx, r)
}

func (h *conditionalSourceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &conditionalSourceHandler{handler: h.handler.WithAttrs(attrs), showSourceLevels: h.showSourceLevels}
}

func (h *conditionalSourceHandler) WithGroup(name string) slog.Handler {
	return &conditionalSourceHandler{handler: h.handler.WithGroup(name), showSourceLevels: h.showSourceLevels}
}

func (h *conditionalSourceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

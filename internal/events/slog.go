package events

import (
	"context"
	"log/slog"
)

// SlogSink writes events to a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

// NewSlogSink wraps the given logger; nil means slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{Logger: logger}
}

func (s *SlogSink) Record(ctx context.Context, e Event) {
	attrs := make([]slog.Attr, 0, 8)

	if e.Method != "" {
		attrs = append(attrs,
			slog.String("method", e.Method),
			slog.String("url", e.URL),
			slog.Int("status", e.Status),
		)
	}
	if e.Took > 0 {
		attrs = append(attrs, slog.Duration("took", e.Took))
	}
	if e.Worker != "" {
		attrs = append(attrs, slog.String("worker", e.Worker))
	}
	for k, v := range e.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}

	level := slog.LevelDebug
	if e.Err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.Any("error", e.Err))
	}

	s.Logger.LogAttrs(ctx, level, e.Name, attrs...)
}

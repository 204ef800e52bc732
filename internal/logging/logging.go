// Package logging configures the process-wide structured logger.
package logging

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs a tinted slog handler as the default logger and
// redirects the standard log package to it, so output from dependencies
// lands in the same stream.
func Setup(level slog.Level) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		}),
	))

	log.SetOutput(slogWriter{})
	log.SetFlags(0)
}

type slogWriter struct{}

func (slogWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	slog.Info(msg)
	return len(p), nil
}

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/gofrs/flock"
)

// FileSink appends events as JSON lines to a log file shared by all
// worker processes of a run. Appends are serialized through an advisory
// file lock, so lines from concurrent workers never interleave.
type FileSink struct {
	path   string
	lock   *flock.Flock
	worker string
}

// NewFileSink writes to path, guarded by an advisory lock at lockPath.
// The worker id is stamped on every record.
func NewFileSink(path, lockPath, worker string) *FileSink {
	return &FileSink{
		path:   path,
		lock:   flock.New(lockPath),
		worker: worker,
	}
}

func (s *FileSink) Record(ctx context.Context, e Event) {
	record := map[string]any{
		"time":   e.Time.Format("2006-01-02T15:04:05.999999"),
		"worker": s.worker,
		"event":  e.Name,
	}

	if e.Method != "" {
		record["method"] = e.Method
		record["url"] = e.URL
		record["status"] = e.Status
	}
	if e.Took > 0 {
		record["took"] = e.Took.Seconds()
	}
	if e.Err != nil {
		record["error"] = e.Err.Error()
	}
	for k, v := range e.Fields {
		record[k] = v
	}

	line, err := json.Marshal(record)
	if err != nil {
		slog.Warn("failed to marshal event record", "event", e.Name, "error", err)
		return
	}

	if err := s.append(line); err != nil {
		slog.Warn("failed to append event record", "event", e.Name, "error", err)
	}
}

func (s *FileSink) append(line []byte) error {
	if err := s.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}

	return nil
}

package trader

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventStore records accepted commands for audit.
type EventStore interface {
	Append(evt EventEnvelope) error
	Close() error
}

// EventReader reads accepted commands back for audit, oldest first. A
// non-positive limit means DefaultEventPage.
type EventReader interface {
	LoadEvents(ctx context.Context, since time.Time, limit int) ([]EventEnvelope, error)
}

const DefaultEventPage = 1000

// FileEventStore appends one JSON document per line. Each Append is flushed
// before it returns.
type FileEventStore struct {
	mu   sync.Mutex
	path string
	file *os.File
	enc  *json.Encoder
}

var _ EventReader = (*FileEventStore)(nil)

func NewFileEventStore(path string) (*FileEventStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("event file dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event file: %w", err)
	}
	return &FileEventStore{path: path, file: f, enc: json.NewEncoder(f)}, nil
}

func (s *FileEventStore) Append(evt EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return os.ErrClosed
	}
	// Encode writes the trailing newline in the same call.
	if err := s.enc.Encode(evt); err != nil {
		return fmt.Errorf("append event %s: %w", evt.ID, err)
	}
	return nil
}

func (s *FileEventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

var errPageFull = errors.New("event page full")

// LoadEvents replays the file and keeps events created after since. It reads
// a separate handle, so it is safe alongside Append.
func (s *FileEventStore) LoadEvents(ctx context.Context, since time.Time, limit int) ([]EventEnvelope, error) {
	if limit <= 0 {
		limit = DefaultEventPage
	}
	var out []EventEnvelope
	err := ReplayEventFile(s.path, func(evt EventEnvelope) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !since.IsZero() && !evt.CreatedAt.After(since) {
			return nil
		}
		out = append(out, evt)
		if len(out) >= limit {
			return errPageFull
		}
		return nil
	})
	if err != nil && !errors.Is(err, errPageFull) {
		return nil, err
	}
	return out, nil
}

// ReplayEventFile calls fn for every event in path, oldest first. A torn last
// line (the process died mid-write) is skipped; corruption elsewhere is an
// error.
func ReplayEventFile(path string, fn func(EventEnvelope) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for line := 1; ; line++ {
		raw, readErr := r.ReadBytes('\n')
		if len(raw) > 0 {
			var evt EventEnvelope
			if err := json.Unmarshal(raw, &evt); err != nil {
				if errors.Is(readErr, io.EOF) {
					return nil
				}
				return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
			}
			if err := fn(evt); err != nil {
				return err
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

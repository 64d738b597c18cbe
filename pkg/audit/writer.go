package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// WriterSink emits audit entries as JSON lines, chained like Chain but
// with no in-memory retention. Suitable for piping into a log shipper.
type WriterSink struct {
	mu       sync.Mutex
	w        io.Writer
	lastHash string
}

// NewWriterSink creates a sink writing to w; nil falls back to stdout.
func NewWriterSink(w io.Writer) *WriterSink {
	if w == nil {
		w = os.Stdout
	}
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(ctx context.Context, e Entry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	e.PreviousHash = s.lastHash
	hash, err := EntryHash(e)
	if err != nil {
		return err
	}
	e.Hash = hash

	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	// AUDIT: prefix keeps entries grep-able in mixed log streams.
	if _, err := s.w.Write(append([]byte("AUDIT: "), append(raw, '\n')...)); err != nil {
		return err
	}
	s.lastHash = e.Hash
	return nil
}

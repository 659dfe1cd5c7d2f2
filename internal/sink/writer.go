package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aaronlmathis/vsflux/internal/lineproto"
	"github.com/aaronlmathis/vsflux/internal/pipeline"
)

// WriterSink writes record payloads to an io.Writer, one after another
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewWriterSink creates a sink writing to w
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// NewFileSink opens path for appending. An empty path writes to stdout.
func NewFileSink(path string) (*WriterSink, error) {
	if path == "" {
		return NewWriterSink(os.Stdout), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	return &WriterSink{w: f, closer: f}, nil
}

// Write writes one record
func (s *WriterSink) Write(ctx context.Context, record lineproto.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.w, record.Payload); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close closes the underlying file, if any
func (s *WriterSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Tee hands every record to the primary sink, then to each observer.
// Only the primary can fail the write; observers are best effort.
type Tee struct {
	primary   pipeline.Sink
	observers []Observer
}

// Observer receives a copy of every record the primary accepted
type Observer interface {
	Publish(record lineproto.Record)
}

// NewTee creates a tee around primary
func NewTee(primary pipeline.Sink, observers ...Observer) *Tee {
	return &Tee{primary: primary, observers: observers}
}

// Write writes to the primary and publishes to observers on success
func (t *Tee) Write(ctx context.Context, record lineproto.Record) error {
	if err := t.primary.Write(ctx, record); err != nil {
		return err
	}
	for _, o := range t.observers {
		o.Publish(record)
	}
	return nil
}

package output

import (
	"fmt"
	"io"
	"sync"
)

// Sink receives the values a running script produces and the rendered
// failure report when a pass dies. Implementations must be safe for use
// from the worker goroutine.
type Sink interface {
	// Write renders one or more produced values.
	Write(values ...interface{})

	// Error renders a script failure. The supervisor itself never
	// crashes on a script failure; this is the only place users see it.
	Error(err error)
}

// WriterSink renders values and failures to an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink that writes to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Write implements the Sink interface.
func (s *WriterSink) Write(values ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, values...)
}

// Error implements the Sink interface.
func (s *WriterSink) Error(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "error: %v\n", err)
}

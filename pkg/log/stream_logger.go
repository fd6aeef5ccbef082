package log

import (
	"io"
	"os"
	"sync"
)

// StreamLogger writes protocol events as a CBOR stream to an io.Writer.
// It is safe for concurrent use.
type StreamLogger struct {
	mu      sync.Mutex
	w       io.Writer
	encoder interface{ Encode(any) error }
	closed  bool
}

// NewStreamLogger creates a StreamLogger over w.
func NewStreamLogger(w io.Writer) *StreamLogger {
	return &StreamLogger{w: w, encoder: NewEncoder(w)}
}

// Log appends the event to the stream. Encoding errors are dropped;
// logging must not disrupt the session.
func (l *StreamLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	_ = l.encoder.Encode(event)
}

// Close stops the logger and closes the underlying writer if it is an
// io.Closer. Safe to call multiple times; later Log calls are ignored.
func (l *StreamLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if c, ok := l.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ Logger = (*StreamLogger)(nil)

// FileLogger appends protocol events to a capture file in CBOR format.
type FileLogger struct {
	*StreamLogger
}

// NewFileLogger opens (or creates) the capture file at path and appends
// events to it.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{StreamLogger: NewStreamLogger(f)}, nil
}

var _ Logger = (*FileLogger)(nil)

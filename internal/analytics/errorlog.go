package analytics

import (
	"sync"
	"time"

	"github.com/leadwireai/leadwire/internal/faults"
)

// DefaultErrorLogSize bounds the diagnostics error ring.
const DefaultErrorLogSize = 50

// LoggedError is one captured failure.
type LoggedError struct {
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Kind    string    `json:"kind,omitempty"`
	Message string    `json:"message"`
}

// ErrorLog is a fixed-size ring of recent failures. Safe for concurrent
// use; the oldest entry is overwritten once the ring is full.
type ErrorLog struct {
	mu   sync.Mutex
	buf  []LoggedError
	next int
	full bool
}

// NewErrorLog creates a ring holding up to size entries.
func NewErrorLog(size int) *ErrorLog {
	if size < 1 {
		size = DefaultErrorLogSize
	}
	return &ErrorLog{buf: make([]LoggedError, size)}
}

// Capture records a failure with its taxonomy kind when classified.
func (l *ErrorLog) Capture(source string, err error) {
	if err == nil {
		return
	}
	entry := LoggedError{
		Time:    time.Now().UTC(),
		Source:  source,
		Kind:    string(faults.KindOf(err)),
		Message: err.Error(),
	}
	l.mu.Lock()
	l.buf[l.next] = entry
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()
}

// Recent returns captured failures newest first.
func (l *ErrorLog) Recent() []LoggedError {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := l.next
	if l.full {
		count = len(l.buf)
	}
	out := make([]LoggedError, 0, count)
	for i := 0; i < count; i++ {
		idx := (l.next - 1 - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

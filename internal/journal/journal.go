package journal

import (
	"context"
	"time"
)

// Entry is one command that reached the backend, whatever the verdict.
type Entry struct {
	Command  string // add_bot|stop_bot|stop_all
	Target   string // symbol, "dynamic x3", bot id or "all"
	Accepted bool
	Message  string
	Error    string // transport failure text, empty otherwise
	At       time.Time
}

// Recorder stores entries. Implementations must not block callers for long;
// failures are logged by the caller, never surfaced to the operator.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Reader lists recorded entries, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Nop drops everything.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error          { return nil }
func (Nop) Recent(context.Context, int) ([]Entry, error) { return nil, nil }

// Package activity maintains the per-document activity log: an append-only
// record of user-visible lifecycle events.
package activity

import (
	"context"
	"sync"
	"time"

	"paperbase.org/internal/ids"
	"paperbase.org/internal/obs"
)

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID attaches a request id to the context so activity entries can
// be correlated back to the API call that caused them.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id attached to the context, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Entry is one activity log record.
type Entry struct {
	ID             string
	OrganizationID string
	DocumentID     string
	Event          string
	UserID         string
	RequestID      string
	Extra          map[string]any
	CreatedAt      time.Time
}

// Sink persists activity entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// Log records activity entries: every entry is emitted as a structured log
// line, and persisted through the sink when one is configured.
type Log struct {
	sink Sink
	now  func() time.Time
}

// LogOption configures Log behavior.
type LogOption func(*Log)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) LogOption {
	return func(l *Log) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLog constructs an activity log. A nil sink is valid: entries are then
// only emitted as log lines.
func NewLog(sink Sink, opts ...LogOption) *Log {
	l := &Log{sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordActivity appends one entry.
func (l *Log) RecordActivity(ctx context.Context, organizationID, documentID, event, actorID string, extra map[string]any) error {
	e := Entry{
		ID:             ids.New(),
		OrganizationID: organizationID,
		DocumentID:     documentID,
		Event:          event,
		UserID:         actorID,
		RequestID:      RequestID(ctx),
		Extra:          extra,
		CreatedAt:      l.now().UTC(),
	}

	line := map[string]any{
		"level":           "info",
		"msg":             "activity",
		"activity_id":     e.ID,
		"organization_id": e.OrganizationID,
		"document_id":     e.DocumentID,
		"event":           e.Event,
	}
	if e.UserID != "" {
		line["user_id"] = e.UserID
	}
	if e.RequestID != "" {
		line["request_id"] = e.RequestID
	}
	obs.Log(line)

	if l.sink == nil {
		return nil
	}
	return l.sink.Append(ctx, e)
}

// MemorySink keeps entries in memory. Used by tests and DSN-less runs.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

var _ Sink = (*MemorySink)(nil)

func (m *MemorySink) Append(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns the recorded entries for a document, oldest first.
func (m *MemorySink) Entries(documentID string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Entry
	for _, e := range m.entries {
		if e.DocumentID == documentID {
			res = append(res, e)
		}
	}
	return res
}

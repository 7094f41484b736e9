package activity

import (
	"context"
	"testing"
	"time"
)

func TestRecordActivityPersistsEntry(t *testing.T) {
	sink := &MemorySink{}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLog(sink, WithClock(func() time.Time { return at }))

	ctx := WithRequestID(context.Background(), "req_1")
	if err := l.RecordActivity(ctx, "org_1", "doc_1", "deleted", "usr_1", nil); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}

	entries := sink.Entries("doc_1")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID == "" {
		t.Fatal("expected an entry id")
	}
	if e.OrganizationID != "org_1" || e.Event != "deleted" || e.UserID != "usr_1" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.RequestID != "req_1" {
		t.Fatalf("expected request id propagated, got %q", e.RequestID)
	}
	if !e.CreatedAt.Equal(at) {
		t.Fatalf("expected created at %v, got %v", at, e.CreatedAt)
	}
}

func TestRecordActivityWithoutSink(t *testing.T) {
	l := NewLog(nil)
	if err := l.RecordActivity(context.Background(), "org_1", "doc_1", "created", "", nil); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
}

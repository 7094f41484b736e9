package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := New()

	// Must return immediately and not panic.
	b.Publish(context.Background(), "document.trashed", map[string]any{"documentId": "doc_1"})
	b.Drain()
}

func TestDuplicateRegistrationFails(t *testing.T) {
	b := New()

	require.NoError(t, b.Subscribe("document.trashed", "markIndexDeleted", func(ctx context.Context, evt Event) error {
		return nil
	}))

	err := b.Subscribe("document.trashed", "markIndexDeleted", func(ctx context.Context, evt Event) error {
		return nil
	})
	require.Error(t, err)

	var dup *DuplicateHandlerError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "document.trashed", dup.Event)
	assert.Equal(t, "markIndexDeleted", dup.Handler)

	// Same handler name on a different event is fine.
	require.NoError(t, b.Subscribe("document.restored", "markIndexDeleted", func(ctx context.Context, evt Event) error {
		return nil
	}))
}

func TestFailingHandlerDoesNotBlockSiblings(t *testing.T) {
	b := New()

	var succeeded atomic.Bool
	var panicked atomic.Bool

	b.MustSubscribe("document.trashed", "failing", func(ctx context.Context, evt Event) error {
		return errors.New("index unavailable")
	})
	b.MustSubscribe("document.trashed", "panicking", func(ctx context.Context, evt Event) error {
		panicked.Store(true)
		panic("boom")
	})
	b.MustSubscribe("document.trashed", "succeeding", func(ctx context.Context, evt Event) error {
		succeeded.Store(true)
		return nil
	})

	b.Publish(context.Background(), "document.trashed", nil)
	b.Drain()

	assert.True(t, succeeded.Load(), "sibling handler did not run")
	assert.True(t, panicked.Load())
}

func TestPublishReturnsBeforeHandlersComplete(t *testing.T) {
	b := New()

	release := make(chan struct{})
	done := make(chan struct{})
	b.MustSubscribe("document.created", "slow", func(ctx context.Context, evt Event) error {
		<-release
		close(done)
		return nil
	})

	start := time.Now()
	b.Publish(context.Background(), "document.created", nil)
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("publish blocked on handler: %v", elapsed)
	}

	close(release)
	b.Drain()
	<-done
}

func TestEnvelopeDefaultsAndOverrides(t *testing.T) {
	b := New()

	var mu sync.Mutex
	var seen []Event
	b.MustSubscribe("document.updated", "capture", func(ctx context.Context, evt Event) error {
		mu.Lock()
		seen = append(seen, evt)
		mu.Unlock()
		return nil
	})

	emitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.Publish(context.Background(), "document.updated", "payload-a")
	b.Publish(context.Background(), "document.updated", "payload-b", WithEventID("evt_custom"), WithEmittedAt(emitted))
	b.Drain()

	require.Len(t, seen, 2)
	byPayload := map[any]Event{}
	for _, evt := range seen {
		byPayload[evt.Payload] = evt
	}

	a := byPayload["payload-a"]
	assert.Equal(t, "document.updated", a.Name)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.EmittedAt.IsZero())

	custom := byPayload["payload-b"]
	assert.Equal(t, "evt_custom", custom.ID)
	assert.Equal(t, emitted, custom.EmittedAt)
}

func TestHandlersRunConcurrently(t *testing.T) {
	b := New()

	const n = 4
	var entered atomic.Int32
	release := make(chan struct{})

	for _, name := range []string{"h1", "h2", "h3", "h4"} {
		b.MustSubscribe("organization.purged", name, func(ctx context.Context, evt Event) error {
			entered.Add(1)
			<-release
			return nil
		})
	}

	b.Publish(context.Background(), "organization.purged", nil)

	deadline := time.After(2 * time.Second)
	for entered.Load() < n {
		select {
		case <-deadline:
			t.Fatalf("handlers did not run concurrently: %d of %d entered", entered.Load(), n)
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(release)
	b.Drain()
}

func TestNestedPublishIsCoveredByDrain(t *testing.T) {
	b := New()

	var inner atomic.Bool
	b.MustSubscribe("document.trashed", "cascade", func(ctx context.Context, evt Event) error {
		b.Publish(ctx, "activity.recorded", nil)
		return nil
	})
	b.MustSubscribe("activity.recorded", "inner", func(ctx context.Context, evt Event) error {
		inner.Store(true)
		return nil
	})

	b.Publish(context.Background(), "document.trashed", nil)
	b.Drain()

	assert.True(t, inner.Load(), "nested publish was not dispatched")
}

func TestDispatchSurvivesPublisherCancellation(t *testing.T) {
	b := New()

	var handlerErr atomic.Value
	done := make(chan struct{})
	b.MustSubscribe("document.deleted", "checkCtx", func(ctx context.Context, evt Event) error {
		defer close(done)
		handlerErr.Store(ctx.Err() == nil)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Publish(ctx, "document.deleted", nil)
	b.Drain()
	<-done

	assert.Equal(t, true, handlerErr.Load(), "handler context inherited publisher cancellation")
}

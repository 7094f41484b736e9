// Package bus implements the in-process domain event bus: a local fan-out
// registry mapping event names to ordered lists of named handlers.
//
// Delivery is deliberately best-effort: one dispatch attempt per publish, no
// retry, no durability, no ordering guarantee between handlers. A failing
// handler never affects its siblings or the publisher.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"paperbase.org/internal/ids"
	"paperbase.org/internal/obs"
)

// Event is the envelope handed to every handler of a publish.
type Event struct {
	Name      string
	ID        string
	EmittedAt time.Time
	Payload   any
}

// Handler processes one event. Returned errors are logged and counted, never
// retried or surfaced to the publisher.
type Handler func(ctx context.Context, evt Event) error

// DuplicateHandlerError reports a repeated (event, handler) registration.
// Registration collisions are programmer errors and must fail fast rather
// than silently overwrite.
type DuplicateHandlerError struct {
	Event   string
	Handler string
}

func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("bus: handler %q already subscribed to event %q", e.Handler, e.Event)
}

type registration struct {
	name string
	fn   Handler
}

// Bus is an in-process publish/subscribe registry. Construct one instance at
// wiring time and pass it explicitly; the registry is effectively read-only
// after startup.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]registration

	wg sync.WaitGroup

	// handlerTimeout bounds a single handler invocation when set. Zero means
	// handlers run unbounded.
	handlerTimeout time.Duration
}

// Option configures Bus behavior.
type Option func(*Bus)

// WithHandlerTimeout bounds each handler invocation. Unset, handlers run
// until they return.
func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.handlerTimeout = d
		}
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{handlers: make(map[string][]registration)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a named handler for an event. The (event, handler)
// pair must be unique; a duplicate returns *DuplicateHandlerError.
func (b *Bus) Subscribe(event, handler string, fn Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, reg := range b.handlers[event] {
		if reg.name == handler {
			return &DuplicateHandlerError{Event: event, Handler: handler}
		}
	}
	b.handlers[event] = append(b.handlers[event], registration{name: handler, fn: fn})
	return nil
}

// MustSubscribe is Subscribe for startup wiring, where a duplicate
// registration is fatal.
func (b *Bus) MustSubscribe(event, handler string, fn Handler) {
	if err := b.Subscribe(event, handler, fn); err != nil {
		panic(err)
	}
}

// PublishOption overrides envelope defaults.
type PublishOption func(*Event)

// WithEventID supplies an explicit event id (log correlation across
// publishes); the default is a fresh uuid.
func WithEventID(id string) PublishOption {
	return func(evt *Event) {
		if id != "" {
			evt.ID = id
		}
	}
}

// WithEmittedAt overrides the envelope timestamp.
func WithEmittedAt(t time.Time) PublishOption {
	return func(evt *Event) {
		if !t.IsZero() {
			evt.EmittedAt = t
		}
	}
}

// Publish fans the event out to every handler subscribed to its name and
// returns without waiting for any of them. Zero subscribers is a normal
// outcome. Handler failures are logged with full correlation context and
// never propagate to the caller.
func (b *Bus) Publish(ctx context.Context, event string, payload any, opts ...PublishOption) {
	evt := Event{
		Name:      event,
		ID:        ids.NewEventID(),
		EmittedAt: time.Now().UTC(),
		Payload:   payload,
	}
	for _, opt := range opts {
		opt(&evt)
	}

	b.mu.RLock()
	regs := b.handlers[event]
	b.mu.RUnlock()

	if len(regs) == 0 {
		obs.Debug("event has no subscribers", map[string]any{
			"event":    event,
			"event_id": evt.ID,
		})
		return
	}

	obs.EventPublished(event)

	// Handlers must keep running after the triggering request finishes, so
	// the dispatch context drops the publisher's cancellation but keeps its
	// values.
	base := context.WithoutCancel(ctx)

	b.wg.Add(len(regs))
	for _, reg := range regs {
		go b.dispatch(base, reg, evt)
	}
}

func (b *Bus) dispatch(ctx context.Context, reg registration, evt Event) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			obs.HandlerFailed(evt.Name, reg.name)
			obs.Error("event handler panicked", fmt.Errorf("%v", r), map[string]any{
				"event":    evt.Name,
				"event_id": evt.ID,
				"handler":  reg.name,
			})
		}
	}()

	if b.handlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.handlerTimeout)
		defer cancel()
	}

	if err := reg.fn(ctx, evt); err != nil {
		obs.HandlerFailed(evt.Name, reg.name)
		obs.Error("event handler failed", err, map[string]any{
			"event":    evt.Name,
			"event_id": evt.ID,
			"handler":  reg.name,
		})
	}
}

// Drain blocks until every outstanding dispatch has finished, including
// events published from inside other handlers. Intended for tests and for
// process shutdown.
func (b *Bus) Drain() {
	b.wg.Wait()
}

// Package webhook delivers outbound event notifications to customer
// endpoints. Deliveries are best-effort HTTP POSTs signed with a short-lived
// HS256 token derived from the endpoint's shared secret.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"paperbase.org/internal/obs"
)

// Endpoint is a registered webhook target.
type Endpoint struct {
	URL    string
	Secret string
}

// Source resolves the endpoints subscribed to an event for an organization.
type Source interface {
	ListEndpoints(ctx context.Context, organizationID, event string) ([]Endpoint, error)
}

// Dispatcher implements webhook fan-out over HTTP.
type Dispatcher struct {
	source Source
	client *http.Client
	issuer string
	now    func() time.Time
}

// DispatcherOption configures Dispatcher behavior.
type DispatcherOption func(*Dispatcher)

// WithTimeout bounds a single delivery.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(w *Dispatcher) {
		if d > 0 {
			w.client.Timeout = d
		}
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) DispatcherOption {
	return func(w *Dispatcher) {
		if issuer != "" {
			w.issuer = issuer
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) DispatcherOption {
	return func(w *Dispatcher) {
		if fn != nil {
			w.now = fn
		}
	}
}

// NewDispatcher constructs a dispatcher over the given endpoint source.
func NewDispatcher(source Source, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		source: source,
		client: &http.Client{Timeout: 10 * time.Second},
		issuer: "paperbase",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// delivery is the JSON body posted to endpoints.
type delivery struct {
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"createdAt"`
	Payload   any       `json:"payload"`
}

// TriggerWebhooks posts the payload to every endpoint subscribed to the
// event. Per-endpoint failures are logged and do not stop delivery to the
// remaining endpoints; an error is returned only when endpoint resolution
// itself fails.
func (d *Dispatcher) TriggerWebhooks(ctx context.Context, organizationID, event string, payload any) error {
	endpoints, err := d.source.ListEndpoints(ctx, organizationID, event)
	if err != nil {
		return fmt.Errorf("webhook: list endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		return nil
	}

	body, err := json.Marshal(delivery{
		Event:     event,
		CreatedAt: d.now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal delivery: %w", err)
	}

	for _, ep := range endpoints {
		if err := d.deliver(ctx, ep, event, body); err != nil {
			obs.Error("webhook delivery failed", err, map[string]any{
				"organization_id": organizationID,
				"event":           event,
				"url":             ep.URL,
			})
		}
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, ep Endpoint, event string, body []byte) error {
	token, err := d.sign(ep.Secret, event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Paperbase-Event", event)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: endpoint returned %s", resp.Status)
	}
	return nil
}

// sign produces a short-lived HS256 token the receiver can verify with the
// endpoint's shared secret.
func (d *Dispatcher) sign(secret, event string) (string, error) {
	now := d.now()
	claims := jwt.RegisteredClaims{
		Issuer:    d.issuer,
		Subject:   event,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("webhook: sign token: %w", err)
	}
	return signed, nil
}

// StaticSource is a fixed endpoint table, keyed by organization id. Used by
// tests and DSN-less runs.
type StaticSource map[string][]Endpoint

var _ Source = (StaticSource)(nil)

// ListEndpoints returns the organization's endpoints regardless of event.
func (s StaticSource) ListEndpoints(ctx context.Context, organizationID, event string) ([]Endpoint, error) {
	return s[organizationID], nil
}

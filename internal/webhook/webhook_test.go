package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type captured struct {
	body        []byte
	authorized  string
	eventHeader string
	contentType string
}

func captureServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{
			body:        body,
			authorized:  r.Header.Get("Authorization"),
			eventHeader: r.Header.Get("X-Paperbase-Event"),
			contentType: r.Header.Get("Content-Type"),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestTriggerWebhooksDeliversSignedPayload(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusOK)

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	d := NewDispatcher(StaticSource{
		"org_1": {{URL: srv.URL, Secret: "s3cret"}},
	}, WithClock(func() time.Time { return now }))

	err := d.TriggerWebhooks(context.Background(), "org_1", "document:deleted", map[string]string{
		"documentId": "doc_1",
	})
	if err != nil {
		t.Fatalf("TriggerWebhooks: %v", err)
	}

	if len(*reqs) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(*reqs))
	}
	req := (*reqs)[0]
	if req.contentType != "application/json" || req.eventHeader != "document:deleted" {
		t.Fatalf("unexpected headers: %+v", req)
	}

	var body struct {
		Event   string            `json:"event"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(req.body, &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Event != "document:deleted" || body.Payload["documentId"] != "doc_1" {
		t.Fatalf("unexpected body: %+v", body)
	}

	// The bearer token verifies against the endpoint secret.
	raw := strings.TrimPrefix(req.authorized, "Bearer ")
	claims := jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return []byte("s3cret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil || !tok.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.Issuer != "paperbase" || claims.Subject != "document:deleted" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTriggerWebhooksSurvivesEndpointFailure(t *testing.T) {
	bad, _ := captureServer(t, http.StatusInternalServerError)
	good, goodReqs := captureServer(t, http.StatusOK)

	d := NewDispatcher(StaticSource{
		"org_1": {
			{URL: bad.URL, Secret: "a"},
			{URL: good.URL, Secret: "b"},
		},
	})

	if err := d.TriggerWebhooks(context.Background(), "org_1", "document:created", nil); err != nil {
		t.Fatalf("TriggerWebhooks: %v", err)
	}
	if len(*goodReqs) != 1 {
		t.Fatalf("expected the healthy endpoint reached, got %d deliveries", len(*goodReqs))
	}
}

func TestTriggerWebhooksWithNoEndpoints(t *testing.T) {
	d := NewDispatcher(StaticSource{})
	if err := d.TriggerWebhooks(context.Background(), "org_1", "document:created", nil); err != nil {
		t.Fatalf("expected noop, got %v", err)
	}
}

package org_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"paperbase.org/internal/bus"
	"paperbase.org/internal/document"
	"paperbase.org/internal/org"
	"paperbase.org/internal/store/memory"
)

// flakyBlobs implements storage.Storage with per-key failure injection.
type flakyBlobs struct {
	mu      sync.Mutex
	deleted []string
	fail    map[string]bool
}

func (f *flakyBlobs) DeleteFile(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[key] {
		return errors.New("storage unavailable")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func seedDocuments(t *testing.T, mem *memory.Store, orgID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		doc := document.Document{
			ID:             fmt.Sprintf("doc_%03d", i),
			OrganizationID: orgID,
			Name:           fmt.Sprintf("f%d.txt", i),
			StorageKey:     fmt.Sprintf("sk_%03d", i),
		}
		if err := mem.Documents().Insert(context.Background(), &doc); err != nil {
			t.Fatalf("insert document: %v", err)
		}
	}
}

func softDeletedOrg(t *testing.T, mem *memory.Store, orgID string, purgeAt time.Time) {
	t.Helper()
	at := purgeAt.Add(-7 * 24 * time.Hour)
	if err := mem.Organizations().Insert(context.Background(), &org.Organization{
		ID: orgID, Name: orgID, CreatedAt: at, UpdatedAt: at,
	}); err != nil {
		t.Fatalf("insert organization: %v", err)
	}
	if err := mem.Organizations().SoftDelete(context.Background(), orgID, "usr_1", at, purgeAt); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
}

func TestPurgeOrganizationCountsPartialFailures(t *testing.T) {
	mem := memory.New()
	blobs := &flakyBlobs{fail: map[string]bool{"sk_001": true, "sk_003": true}}
	b := bus.New()

	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	softDeletedOrg(t, mem, "org_1", now.Add(-time.Hour))
	seedDocuments(t, mem, "org_1", 5)

	var (
		mu      sync.Mutex
		payload org.PurgedPayload
	)
	b.MustSubscribe(org.EventPurged, "recordEvent", func(ctx context.Context, evt bus.Event) error {
		mu.Lock()
		defer mu.Unlock()
		payload = evt.Payload.(org.PurgedPayload)
		return nil
	})

	p := org.NewPurger(mem.Organizations(), blobs, b)
	res, err := p.PurgeOrganization(context.Background(), "org_1")
	if err != nil {
		t.Fatalf("PurgeOrganization: %v", err)
	}
	if res.Deleted != 3 || res.Failed != 2 {
		t.Fatalf("expected 3 deleted / 2 failed, got %+v", res)
	}

	// The organization row goes regardless of per-document failures.
	if _, err := mem.Organizations().Find(context.Background(), "org_1"); !errors.Is(err, org.ErrOrganizationNotFound) {
		t.Fatalf("expected organization removed, got %v", err)
	}
	if _, err := mem.Documents().Find(context.Background(), "doc_000"); !errors.Is(err, document.ErrDocumentNotFound) {
		t.Fatalf("expected document rows cascaded, got %v", err)
	}

	b.Drain()
	mu.Lock()
	defer mu.Unlock()
	if payload.DocumentsDeleted != 3 || payload.DocumentsFailed != 2 {
		t.Fatalf("unexpected purged payload: %+v", payload)
	}
}

func TestPurgeOrganizationPagesThroughLargeTenants(t *testing.T) {
	mem := memory.New()
	blobs := &flakyBlobs{fail: make(map[string]bool)}
	b := bus.New()

	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	softDeletedOrg(t, mem, "org_1", now.Add(-time.Hour))
	seedDocuments(t, mem, "org_1", 25)

	p := org.NewPurger(mem.Organizations(), blobs, b, org.WithBatchSize(10))
	res, err := p.PurgeOrganization(context.Background(), "org_1")
	if err != nil {
		t.Fatalf("PurgeOrganization: %v", err)
	}
	if res.Deleted != 25 || res.Failed != 0 {
		t.Fatalf("expected all 25 blobs deleted, got %+v", res)
	}
	blobs.mu.Lock()
	defer blobs.mu.Unlock()
	if len(blobs.deleted) != 25 {
		t.Fatalf("expected 25 storage deletions, got %d", len(blobs.deleted))
	}
	b.Drain()
}

func TestPurgeOrganizationWithNoDocuments(t *testing.T) {
	mem := memory.New()
	b := bus.New()
	softDeletedOrg(t, mem, "org_1", time.Now().UTC())

	p := org.NewPurger(mem.Organizations(), &flakyBlobs{}, b)
	res, err := p.PurgeOrganization(context.Background(), "org_1")
	if err != nil {
		t.Fatalf("PurgeOrganization: %v", err)
	}
	if res.Deleted != 0 || res.Failed != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if _, err := mem.Organizations().Find(context.Background(), "org_1"); !errors.Is(err, org.ErrOrganizationNotFound) {
		t.Fatalf("expected organization removed, got %v", err)
	}
	b.Drain()
}

// failingPageStore injects a paging failure for one organization.
type failingPageStore struct {
	org.Store
	failOrg string
}

func (s failingPageStore) DocumentPage(ctx context.Context, orgID, afterID string, limit int) ([]org.DocumentRef, error) {
	if orgID == s.failOrg {
		return nil, errors.New("db connection lost")
	}
	return s.Store.DocumentPage(ctx, orgID, afterID, limit)
}

func TestPurgeExpiredContinuesPastFailingOrganizations(t *testing.T) {
	mem := memory.New()
	b := bus.New()
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	softDeletedOrg(t, mem, "org_a", now.Add(-time.Hour))
	softDeletedOrg(t, mem, "org_b", now.Add(-time.Hour))
	seedDocuments(t, mem, "org_b", 2)

	store := failingPageStore{Store: mem.Organizations(), failOrg: "org_a"}
	p := org.NewPurger(store, &flakyBlobs{}, b, org.WithPurgeClock(func() time.Time { return now }))

	res, err := p.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if res.Purged != 1 || res.Total != 2 {
		t.Fatalf("expected 1 of 2 purged, got %+v", res)
	}

	// The failing organization stays queued for the next sweep.
	if _, err := mem.Organizations().Find(context.Background(), "org_a"); err != nil {
		t.Fatalf("expected org_a intact: %v", err)
	}
	if _, err := mem.Organizations().Find(context.Background(), "org_b"); !errors.Is(err, org.ErrOrganizationNotFound) {
		t.Fatalf("expected org_b removed, got %v", err)
	}
	b.Drain()
}

func TestPurgeExpiredSkipsPendingOrganizations(t *testing.T) {
	mem := memory.New()
	b := bus.New()
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	softDeletedOrg(t, mem, "org_due", now.Add(-time.Minute))
	softDeletedOrg(t, mem, "org_pending", now.Add(48*time.Hour))

	p := org.NewPurger(mem.Organizations(), &flakyBlobs{}, b, org.WithPurgeClock(func() time.Time { return now }))
	res, err := p.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if res.Purged != 1 || res.Total != 1 {
		t.Fatalf("expected only the due organization, got %+v", res)
	}
	if _, err := mem.Organizations().Find(context.Background(), "org_pending"); err != nil {
		t.Fatalf("expected pending organization intact: %v", err)
	}
	b.Drain()
}

func TestPurgeRateLimiterIsHonored(t *testing.T) {
	mem := memory.New()
	b := bus.New()
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	softDeletedOrg(t, mem, "org_1", now.Add(-time.Hour))
	seedDocuments(t, mem, "org_1", 3)

	// A generous limit must not change outcomes, only pacing.
	p := org.NewPurger(mem.Organizations(), &flakyBlobs{}, b, org.WithDeleteRate(1000))
	res, err := p.PurgeOrganization(context.Background(), "org_1")
	if err != nil {
		t.Fatalf("PurgeOrganization: %v", err)
	}
	if res.Deleted != 3 {
		t.Fatalf("expected 3 deletions, got %+v", res)
	}
	b.Drain()
}

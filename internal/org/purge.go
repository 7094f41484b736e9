package org

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"paperbase.org/internal/bus"
	"paperbase.org/internal/obs"
	"paperbase.org/internal/storage"
)

const defaultPurgeBatchSize = 100

// IndexDeleter is the slice of the search index the purge engine needs.
type IndexDeleter interface {
	DeleteDocument(ctx context.Context, documentID string) error
}

// Purger permanently removes a soft-deleted organization: every document's
// storage object, then the organization row itself (dependent membership and
// invitation rows are already gone; document rows cascade).
type Purger struct {
	store     Store
	blobs     storage.Storage
	index     IndexDeleter
	bus       *bus.Bus
	batchSize int
	limiter   *rate.Limiter
	now       func() time.Time
}

// PurgerOption configures Purger behavior.
type PurgerOption func(*Purger)

// WithBatchSize overrides the document page size.
func WithBatchSize(n int) PurgerOption {
	return func(p *Purger) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithIndex enables best-effort index cleanup during purge.
func WithIndex(idx IndexDeleter) PurgerOption {
	return func(p *Purger) {
		p.index = idx
	}
}

// WithDeleteRate bounds storage deletions per second. Zero leaves the purge
// unthrottled.
func WithDeleteRate(perSecond int) PurgerOption {
	return func(p *Purger) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		}
	}
}

// WithPurgeClock overrides the time source (useful for tests).
func WithPurgeClock(fn func() time.Time) PurgerOption {
	return func(p *Purger) {
		if fn != nil {
			p.now = fn
		}
	}
}

// NewPurger constructs the purge engine.
func NewPurger(store Store, blobs storage.Storage, b *bus.Bus, opts ...PurgerOption) *Purger {
	p := &Purger{
		store:     store,
		blobs:     blobs,
		bus:       b,
		batchSize: defaultPurgeBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PurgeResult accumulates per-document outcomes of one purge run.
type PurgeResult struct {
	Deleted int
	Failed  int
}

// PurgeOrganization pages through the organization's documents in fixed-size
// batches and best-effort deletes each storage object, then hard-deletes the
// organization row. Per-document failures are counted and logged but never
// abort the purge; the row removal happens even if every blob deletion
// failed. A database error while paging aborts with the row intact, leaving
// the organization for the next sweep.
func (p *Purger) PurgeOrganization(ctx context.Context, organizationID string) (PurgeResult, error) {
	var res PurgeResult

	after := ""
	for {
		page, err := p.store.DocumentPage(ctx, organizationID, after, p.batchSize)
		if err != nil {
			return res, fmt.Errorf("org: page documents for purge: %w", err)
		}
		for _, ref := range page {
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					return res, err
				}
			}
			if err := p.blobs.DeleteFile(ctx, ref.StorageKey); err != nil {
				res.Failed++
				obs.Error("purge storage delete failed", err, map[string]any{
					"organization_id": organizationID,
					"document_id":     ref.ID,
					"storage_key":     ref.StorageKey,
				})
			} else {
				res.Deleted++
			}
			if p.index != nil {
				if err := p.index.DeleteDocument(ctx, ref.ID); err != nil {
					obs.Error("purge index delete failed", err, map[string]any{
						"organization_id": organizationID,
						"document_id":     ref.ID,
					})
				}
			}
		}
		if len(page) < p.batchSize {
			break
		}
		after = page[len(page)-1].ID
	}

	if err := p.store.Delete(ctx, organizationID); err != nil {
		return res, fmt.Errorf("org: delete organization row: %w", err)
	}

	obs.PurgeOutcome(res.Deleted, res.Failed)
	obs.OrganizationPurged()
	obs.Log(map[string]any{
		"level":           "info",
		"msg":             "organization purged",
		"organization_id": organizationID,
		"deleted":         res.Deleted,
		"failed":          res.Failed,
	})

	p.bus.Publish(ctx, EventPurged, PurgedPayload{
		OrganizationID:   organizationID,
		DocumentsDeleted: res.Deleted,
		DocumentsFailed:  res.Failed,
	})
	return res, nil
}

// SweepResult summarizes one batch purge sweep.
type SweepResult struct {
	Purged int
	Total  int
}

// PurgeExpired purges every organization whose scheduled purge time has
// elapsed. Each organization is purged independently: an unexpected failure
// on one is logged and the sweep continues, leaving that organization for
// the next run. Purged counts confirmed successes only.
func (p *Purger) PurgeExpired(ctx context.Context) (SweepResult, error) {
	start := p.now()

	expired, err := p.store.ListExpired(ctx, start.UTC())
	if err != nil {
		return SweepResult{}, fmt.Errorf("org: list expired: %w", err)
	}

	res := SweepResult{Total: len(expired)}
	for _, id := range expired {
		if _, err := p.PurgeOrganization(ctx, id); err != nil {
			obs.Error("organization purge failed", err, map[string]any{
				"organization_id": id,
			})
			continue
		}
		res.Purged++
	}

	obs.ObserveSweep("organizations", time.Since(start))
	obs.Log(map[string]any{
		"level":  "info",
		"msg":    "organization purge sweep finished",
		"purged": res.Purged,
		"total":  res.Total,
	})
	return res, nil
}

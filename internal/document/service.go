package document

import (
	"context"
	"fmt"
	"time"

	"paperbase.org/internal/bus"
	"paperbase.org/internal/ids"
	"paperbase.org/internal/obs"
	"paperbase.org/internal/storage"
)

const (
	defaultRetention      = 30 * 24 * time.Hour
	defaultSweepBatchSize = 100
)

// Service implements the document lifecycle state machine:
// active <-> trashed -> hard-deleted.
type Service struct {
	store      Store
	blobs      storage.Storage
	bus        *bus.Bus
	now        func() time.Time
	retain     time.Duration
	sweepBatch int
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithRetention overrides the trash retention window.
func WithRetention(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.retain = d
		}
	}
}

// WithSweepBatchSize overrides the sweep page size.
func WithSweepBatchSize(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.sweepBatch = n
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the document lifecycle service.
func NewService(store Store, blobs storage.Storage, b *bus.Bus, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		blobs:      blobs,
		bus:        b,
		now:        time.Now,
		retain:     defaultRetention,
		sweepBatch: defaultSweepBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers an uploaded document and publishes document.created with
// the full snapshot.
func (s *Service) Create(ctx context.Context, p CreateParams) (Document, error) {
	now := s.now().UTC()
	doc := Document{
		ID:              ids.New(),
		OrganizationID:  p.OrganizationID,
		Name:            p.Name,
		ContentType:     p.ContentType,
		Size:            p.Size,
		StorageKey:      ids.New(),
		EncryptionKeyID: p.EncryptionKeyID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Insert(ctx, &doc); err != nil {
		return Document{}, err
	}
	s.bus.Publish(ctx, EventCreated, doc)
	return doc, nil
}

// Update applies a partial change set and publishes document.updated
// carrying only the changed fields.
func (s *Service) Update(ctx context.Context, documentID string, ch Changes) (Document, error) {
	doc, err := s.store.Find(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if ch.Empty() {
		return *doc, nil
	}
	now := s.now().UTC()
	if err := s.store.Update(ctx, documentID, ch, now); err != nil {
		return Document{}, err
	}
	doc.apply(ch, now)
	s.bus.Publish(ctx, EventUpdated, UpdatedPayload{
		DocumentID:     doc.ID,
		OrganizationID: doc.OrganizationID,
		Changes:        ch,
	})
	return *doc, nil
}

func (d *Document) apply(ch Changes, at time.Time) {
	if ch.Name != nil {
		d.Name = *ch.Name
	}
	if ch.ContentType != nil {
		d.ContentType = *ch.ContentType
	}
	if ch.Size != nil {
		d.Size = *ch.Size
	}
	if ch.EncryptionKeyID != nil {
		d.EncryptionKeyID = *ch.EncryptionKeyID
	}
	d.UpdatedAt = at
}

// Trash soft-deletes an active document. Trashing an already-trashed
// document fails its precondition.
func (s *Service) Trash(ctx context.Context, documentID, organizationID, actorID string) error {
	doc, err := s.find(ctx, documentID, organizationID)
	if err != nil {
		return err
	}
	if doc.IsDeleted {
		return ErrDocumentAlreadyDeleted
	}
	if err := s.store.MarkTrashed(ctx, documentID, actorID, s.now().UTC()); err != nil {
		return err
	}
	s.bus.Publish(ctx, EventTrashed, TrashedPayload{
		DocumentID:     documentID,
		OrganizationID: organizationID,
		TrashedBy:      actorID,
	})
	return nil
}

// Restore brings a trashed document back to active.
func (s *Service) Restore(ctx context.Context, documentID, organizationID, actorID string) error {
	doc, err := s.find(ctx, documentID, organizationID)
	if err != nil {
		return err
	}
	if !doc.IsDeleted {
		return ErrDocumentNotDeleted
	}
	if err := s.store.ClearTrashed(ctx, documentID, s.now().UTC()); err != nil {
		return err
	}
	s.bus.Publish(ctx, EventRestored, RestoredPayload{
		DocumentID:     documentID,
		OrganizationID: organizationID,
		RestoredBy:     actorID,
	})
	return nil
}

// HardDelete permanently removes the row and its storage object. A failed
// blob deletion is logged and does not keep the row alive: an orphaned blob
// is acceptable, an undeletable row is not.
func (s *Service) HardDelete(ctx context.Context, documentID string) error {
	doc, err := s.store.Find(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.blobs.DeleteFile(ctx, doc.StorageKey); err != nil {
		obs.Error("storage delete failed during hard delete", err, map[string]any{
			"document_id": doc.ID,
			"storage_key": doc.StorageKey,
		})
	}
	if err := s.store.Delete(ctx, documentID); err != nil {
		return err
	}
	s.bus.Publish(ctx, EventDeleted, DeletedPayload{
		DocumentID:     doc.ID,
		OrganizationID: doc.OrganizationID,
		StorageKey:     doc.StorageKey,
	})
	return nil
}

// SweepResult summarizes one retention sweep run.
type SweepResult struct {
	Deleted int
	Failed  int
}

// DeleteExpired hard-deletes every document that has been in the trash
// longer than the retention window. The sweep queries database state fresh
// each run, so re-running after a partial failure neither re-deletes nor
// double-counts; documents that fail this run stay eligible for the next.
func (s *Service) DeleteExpired(ctx context.Context) (SweepResult, error) {
	start := s.now()
	cutoff := start.UTC().Add(-s.retain)
	var res SweepResult

	after := ""
	for {
		page, err := s.store.ListExpiredTrashed(ctx, cutoff, after, s.sweepBatch)
		if err != nil {
			return res, fmt.Errorf("document: list expired: %w", err)
		}
		for _, doc := range page {
			if err := s.HardDelete(ctx, doc.ID); err != nil {
				res.Failed++
				obs.Error("expired document delete failed", err, map[string]any{
					"document_id":     doc.ID,
					"organization_id": doc.OrganizationID,
				})
				continue
			}
			res.Deleted++
		}
		if len(page) < s.sweepBatch {
			break
		}
		after = page[len(page)-1].ID
	}

	obs.ObserveSweep("documents", time.Since(start))
	obs.Log(map[string]any{
		"level":   "info",
		"msg":     "document retention sweep finished",
		"deleted": res.Deleted,
		"failed":  res.Failed,
	})
	return res, nil
}

func (s *Service) find(ctx context.Context, documentID, organizationID string) (*Document, error) {
	doc, err := s.store.Find(ctx, documentID)
	if err != nil {
		return nil, err
	}
	// Tenancy check: documents are only addressable inside their own
	// organization.
	if doc.OrganizationID != organizationID {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

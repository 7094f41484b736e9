package org

import (
	"context"
	"time"

	"paperbase.org/internal/bus"
)

const defaultPurgeDelay = 7 * 24 * time.Hour

// SubscriptionBlocked reports whether the organization's billing
// subscription is in a state that blocks deletion. Billing owns that
// classification; the lifecycle core only consumes the predicate.
type SubscriptionBlocked func(ctx context.Context, organizationID string) (bool, error)

// Service implements the organization lifecycle state machine:
// active -> soft-deleted -> purged, with restore before the purge deadline.
type Service struct {
	store      Store
	bus        *bus.Bus
	blocked    SubscriptionBlocked
	purgeDelay time.Duration
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithPurgeDelay overrides the grace window before purge.
func WithPurgeDelay(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.purgeDelay = d
		}
	}
}

// WithSubscriptionCheck injects the billing predicate. Without it deletion
// is never blocked.
func WithSubscriptionCheck(fn SubscriptionBlocked) ServiceOption {
	return func(s *Service) {
		s.blocked = fn
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

// NewService constructs the organization lifecycle service.
func NewService(store Store, b *bus.Bus, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		bus:        b,
		purgeDelay: defaultPurgeDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SoftDelete moves an organization to the soft-deleted state. Memberships
// and pending invitations are removed in the same transaction as the state
// flip: no member may still be visible after this call returns. Documents
// are untouched until purge.
func (s *Service) SoftDelete(ctx context.Context, organizationID, actorID string) error {
	o, err := s.store.Find(ctx, organizationID)
	if err != nil {
		return err
	}
	if o.Deleted() {
		return ErrOrganizationNotFound
	}

	sole, err := s.store.IsSoleOwner(ctx, organizationID, actorID)
	if err != nil {
		return err
	}
	if !sole {
		return ErrNotSoleOwner
	}

	if s.blocked != nil {
		blocked, err := s.blocked(ctx, organizationID)
		if err != nil {
			return err
		}
		if blocked {
			return ErrSubscriptionBlocksDeletion
		}
	}

	now := s.now().UTC()
	purgeAt := now.Add(s.purgeDelay)
	if err := s.store.SoftDelete(ctx, organizationID, actorID, now, purgeAt); err != nil {
		return err
	}

	s.bus.Publish(ctx, EventSoftDeleted, SoftDeletedPayload{
		OrganizationID:   organizationID,
		DeletedBy:        actorID,
		ScheduledPurgeAt: purgeAt,
	})
	return nil
}

// Restore reverses a soft-deletion. Only the actor who deleted the
// organization may restore it, and only before the purge deadline; past the
// deadline the organization is presented as gone.
func (s *Service) Restore(ctx context.Context, organizationID, actorID string) error {
	o, err := s.store.Find(ctx, organizationID)
	if err != nil {
		return err
	}
	if !o.Deleted() {
		return ErrOrganizationNotDeleted
	}
	if o.ScheduledPurgeAt == nil || !s.now().UTC().Before(*o.ScheduledPurgeAt) {
		return ErrOrganizationNotFound
	}
	if o.DeletedBy != actorID {
		return ErrOnlyPreviousOwnerCanRestore
	}

	if err := s.store.Restore(ctx, organizationID, actorID, s.now().UTC()); err != nil {
		return err
	}

	s.bus.Publish(ctx, EventRestored, RestoredPayload{
		OrganizationID: organizationID,
		RestoredBy:     actorID,
	})
	return nil
}

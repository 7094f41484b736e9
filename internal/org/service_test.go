package org_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"paperbase.org/internal/bus"
	"paperbase.org/internal/org"
	"paperbase.org/internal/store/memory"
)

func seedOrganization(t *testing.T, mem *memory.Store, orgID, ownerID string, at time.Time) {
	t.Helper()
	if err := mem.Organizations().Insert(context.Background(), &org.Organization{
		ID: orgID, Name: "acme", CreatedAt: at, UpdatedAt: at,
	}); err != nil {
		t.Fatalf("insert organization: %v", err)
	}
	mem.AddMembership(org.Membership{
		OrganizationID: orgID, UserID: ownerID, Role: org.RoleOwner, CreatedAt: at,
	})
}

func TestSoftDeleteRemovesMembersAndSchedulesPurge(t *testing.T) {
	mem := memory.New()
	b := bus.New()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	seedOrganization(t, mem, "org_1", "usr_1", now.Add(-time.Hour))
	mem.AddInvitation(org.Invitation{ID: "inv_1", OrganizationID: "org_1", Email: "a@b.c", Role: "member"})

	var (
		mu      sync.Mutex
		payload org.SoftDeletedPayload
	)
	b.MustSubscribe(org.EventSoftDeleted, "recordEvent", func(ctx context.Context, evt bus.Event) error {
		mu.Lock()
		defer mu.Unlock()
		payload = evt.Payload.(org.SoftDeletedPayload)
		return nil
	})

	svc := org.NewService(mem.Organizations(), b,
		org.WithPurgeDelay(7*24*time.Hour),
		org.WithClock(func() time.Time { return now }),
	)

	if err := svc.SoftDelete(context.Background(), "org_1", "usr_1"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	o, err := mem.Organizations().Find(context.Background(), "org_1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !o.Deleted() || o.DeletedBy != "usr_1" {
		t.Fatalf("expected soft-deleted by usr_1, got %+v", o)
	}
	wantPurge := now.Add(7 * 24 * time.Hour)
	if o.ScheduledPurgeAt == nil || !o.ScheduledPurgeAt.Equal(wantPurge) {
		t.Fatalf("expected purge at %v, got %v", wantPurge, o.ScheduledPurgeAt)
	}
	if got := len(mem.Memberships("org_1")); got != 0 {
		t.Fatalf("expected memberships removed, got %d", got)
	}
	if got := len(mem.Invitations("org_1")); got != 0 {
		t.Fatalf("expected invitations removed, got %d", got)
	}

	b.Drain()
	mu.Lock()
	defer mu.Unlock()
	if payload.OrganizationID != "org_1" || !payload.ScheduledPurgeAt.Equal(wantPurge) {
		t.Fatalf("unexpected event payload: %+v", payload)
	}
}

func TestSoftDeleteRequiresSoleOwner(t *testing.T) {
	mem := memory.New()
	b := bus.New()
	now := time.Now().UTC()
	seedOrganization(t, mem, "org_1", "usr_1", now)
	mem.AddMembership(org.Membership{OrganizationID: "org_1", UserID: "usr_2", Role: org.RoleOwner})

	svc := org.NewService(mem.Organizations(), b)
	if err := svc.SoftDelete(context.Background(), "org_1", "usr_1"); !errors.Is(err, org.ErrNotSoleOwner) {
		t.Fatalf("expected ErrNotSoleOwner, got %v", err)
	}
}

func TestSoftDeleteBlockedBySubscription(t *testing.T) {
	mem := memory.New()
	b := bus.New()
	seedOrganization(t, mem, "org_1", "usr_1", time.Now().UTC())

	svc := org.NewService(mem.Organizations(), b,
		org.WithSubscriptionCheck(func(ctx context.Context, organizationID string) (bool, error) {
			return true, nil
		}),
	)
	if err := svc.SoftDelete(context.Background(), "org_1", "usr_1"); !errors.Is(err, org.ErrSubscriptionBlocksDeletion) {
		t.Fatalf("expected ErrSubscriptionBlocksDeletion, got %v", err)
	}
}

func TestSoftDeleteTwicePresentsTheOrganizationAsGone(t *testing.T) {
	mem := memory.New()
	b := bus.New()
	seedOrganization(t, mem, "org_1", "usr_1", time.Now().UTC())

	svc := org.NewService(mem.Organizations(), b)
	if err := svc.SoftDelete(context.Background(), "org_1", "usr_1"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if err := svc.SoftDelete(context.Background(), "org_1", "usr_1"); !errors.Is(err, org.ErrOrganizationNotFound) {
		t.Fatalf("expected ErrOrganizationNotFound, got %v", err)
	}
	b.Drain()
}

func TestRestoreReinstatesThePreviousOwner(t *testing.T) {
	mem := memory.New()
	b := bus.New()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	seedOrganization(t, mem, "org_1", "usr_1", now.Add(-time.Hour))

	clock := now
	svc := org.NewService(mem.Organizations(), b,
		org.WithPurgeDelay(7*24*time.Hour),
		org.WithClock(func() time.Time { return clock }),
	)

	if err := svc.SoftDelete(context.Background(), "org_1", "usr_1"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	clock = now.Add(24 * time.Hour)
	if err := svc.Restore(context.Background(), "org_1", "usr_1"); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	o, err := mem.Organizations().Find(context.Background(), "org_1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if o.Deleted() || o.ScheduledPurgeAt != nil {
		t.Fatalf("expected active organization, got %+v", o)
	}
	members := mem.Memberships("org_1")
	if len(members) != 1 || members[0].UserID != "usr_1" || members[0].Role != org.RoleOwner {
		t.Fatalf("expected owner membership restored, got %+v", members)
	}
	b.Drain()
}

func TestRestoreByAnotherUser(t *testing.T) {
	mem := memory.New()
	b := bus.New()
	seedOrganization(t, mem, "org_1", "usr_1", time.Now().UTC())

	svc := org.NewService(mem.Organizations(), b)
	if err := svc.SoftDelete(context.Background(), "org_1", "usr_1"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if err := svc.Restore(context.Background(), "org_1", "usr_2"); !errors.Is(err, org.ErrOnlyPreviousOwnerCanRestore) {
		t.Fatalf("expected ErrOnlyPreviousOwnerCanRestore, got %v", err)
	}
	b.Drain()
}

func TestRestorePastPurgeDeadline(t *testing.T) {
	mem := memory.New()
	b := bus.New()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	seedOrganization(t, mem, "org_1", "usr_1", now.Add(-time.Hour))

	clock := now
	svc := org.NewService(mem.Organizations(), b,
		org.WithPurgeDelay(7*24*time.Hour),
		org.WithClock(func() time.Time { return clock }),
	)
	if err := svc.SoftDelete(context.Background(), "org_1", "usr_1"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	clock = now.Add(8 * 24 * time.Hour)
	if err := svc.Restore(context.Background(), "org_1", "usr_1"); !errors.Is(err, org.ErrOrganizationNotFound) {
		t.Fatalf("expected ErrOrganizationNotFound past deadline, got %v", err)
	}
	b.Drain()
}

func TestRestoreActiveOrganization(t *testing.T) {
	mem := memory.New()
	b := bus.New()
	seedOrganization(t, mem, "org_1", "usr_1", time.Now().UTC())

	svc := org.NewService(mem.Organizations(), b)
	if err := svc.Restore(context.Background(), "org_1", "usr_1"); !errors.Is(err, org.ErrOrganizationNotDeleted) {
		t.Fatalf("expected ErrOrganizationNotDeleted, got %v", err)
	}
}

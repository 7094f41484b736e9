package org

import (
	"context"
	"time"
)

// Domain events published by the organization lifecycle.
const (
	EventSoftDeleted = "organization.soft_deleted"
	EventRestored    = "organization.restored"
	EventPurged      = "organization.purged"
)

// Organization is a tenant. Soft-deletion stamps DeletedAt/DeletedBy and
// schedules the purge; memberships and invitations are removed at the moment
// of soft-deletion, never later.
type Organization struct {
	ID               string
	Name             string
	DeletedAt        *time.Time
	DeletedBy        string
	ScheduledPurgeAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Deleted reports whether the organization is currently soft-deleted.
func (o *Organization) Deleted() bool {
	return o.DeletedAt != nil
}

// Membership relates a user to an organization with a role.
type Membership struct {
	OrganizationID string
	UserID         string
	Role           string
	CreatedAt      time.Time
}

const RoleOwner = "owner"

// Invitation is a pending invite to join an organization.
type Invitation struct {
	ID             string
	OrganizationID string
	Email          string
	Role           string
	CreatedAt      time.Time
}

// DocumentRef is the slice of a document the purge engine needs.
type DocumentRef struct {
	ID         string
	StorageKey string
}

// Event payloads.

type SoftDeletedPayload struct {
	OrganizationID   string    `json:"organizationId"`
	DeletedBy        string    `json:"deletedBy"`
	ScheduledPurgeAt time.Time `json:"scheduledPurgeAt"`
}

type RestoredPayload struct {
	OrganizationID string `json:"organizationId"`
	RestoredBy     string `json:"restoredBy"`
}

type PurgedPayload struct {
	OrganizationID   string `json:"organizationId"`
	DocumentsDeleted int    `json:"documentsDeleted"`
	DocumentsFailed  int    `json:"documentsFailed"`
}

// Store describes the persistence operations the organization lifecycle and
// the purge engine need.
type Store interface {
	Insert(ctx context.Context, o *Organization) error
	Find(ctx context.Context, id string) (*Organization, error)

	// IsSoleOwner reports whether userID is the one and only owner.
	IsSoleOwner(ctx context.Context, orgID, userID string) (bool, error)

	// SoftDelete removes all memberships and pending invitations and stamps
	// the deletion metadata, all in one transaction.
	SoftDelete(ctx context.Context, orgID, actorID string, at, purgeAt time.Time) error

	// Restore clears the deletion metadata and re-adds the restoring actor
	// as owner, in one transaction.
	Restore(ctx context.Context, orgID, ownerID string, at time.Time) error

	// Delete hard-deletes the organization row; dependent rows go with it
	// via cascading deletes.
	Delete(ctx context.Context, orgID string) error

	// ListExpired returns ids of organizations whose scheduled purge time
	// has elapsed.
	ListExpired(ctx context.Context, now time.Time) ([]string, error)

	// DocumentPage pages the organization's documents by ascending id.
	DocumentPage(ctx context.Context, orgID, afterID string, limit int) ([]DocumentRef, error)
}

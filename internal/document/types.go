package document

import (
	"context"
	"time"
)

// Domain events published by the document lifecycle. One name per
// <resource>.<action> transition.
const (
	EventCreated  = "document.created"
	EventUpdated  = "document.updated"
	EventTrashed  = "document.trashed"
	EventRestored = "document.restored"
	EventDeleted  = "document.deleted"
)

// Document is a stored file belonging to an organization. A document is
// either active (IsDeleted false, no deletion metadata) or trashed
// (IsDeleted true, DeletedAt/DeletedBy set); hard-delete removes the row.
type Document struct {
	ID              string
	OrganizationID  string
	Name            string
	ContentType     string
	Size            int64
	StorageKey      string
	EncryptionKeyID string
	IsDeleted       bool
	DeletedAt       *time.Time
	DeletedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Changes carries only the fields being modified. Nil pointers mean
// "unchanged", so consumers can apply deltas instead of full-object diffs.
type Changes struct {
	Name            *string `json:"name,omitempty"`
	ContentType     *string `json:"contentType,omitempty"`
	Size            *int64  `json:"size,omitempty"`
	EncryptionKeyID *string `json:"encryptionKeyId,omitempty"`
}

// Empty reports whether no field is set.
func (c Changes) Empty() bool {
	return c.Name == nil && c.ContentType == nil && c.Size == nil && c.EncryptionKeyID == nil
}

// CreateParams describes an upload.
type CreateParams struct {
	OrganizationID  string
	Name            string
	ContentType     string
	Size            int64
	EncryptionKeyID string
	UploadedBy      string
}

// Event payloads. document.created carries the full snapshot; the others
// carry identifiers (and, for updates, the delta).

type TrashedPayload struct {
	DocumentID     string `json:"documentId"`
	OrganizationID string `json:"organizationId"`
	TrashedBy      string `json:"trashedBy"`
}

type RestoredPayload struct {
	DocumentID     string `json:"documentId"`
	OrganizationID string `json:"organizationId"`
	RestoredBy     string `json:"restoredBy"`
}

type UpdatedPayload struct {
	DocumentID     string  `json:"documentId"`
	OrganizationID string  `json:"organizationId"`
	Changes        Changes `json:"changes"`
}

type DeletedPayload struct {
	DocumentID     string `json:"documentId"`
	OrganizationID string `json:"organizationId"`
	StorageKey     string `json:"storageKey"`
}

// Store describes the persistence operations the document lifecycle needs.
type Store interface {
	Insert(ctx context.Context, doc *Document) error
	Find(ctx context.Context, id string) (*Document, error)
	Update(ctx context.Context, id string, ch Changes, at time.Time) error
	MarkTrashed(ctx context.Context, id, actorID string, at time.Time) error
	ClearTrashed(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error

	// ListExpiredTrashed pages, by ascending id, documents trashed before
	// cutoff. afterID restarts the scan past a cursor within one sweep run.
	ListExpiredTrashed(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]Document, error)
}

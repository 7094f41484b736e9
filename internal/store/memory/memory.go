// Package memory provides in-process implementations of the document and
// organization stores. Used by tests, the smoke binary, and DSN-less demo
// runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"paperbase.org/internal/document"
	"paperbase.org/internal/org"
)

// Store holds all in-memory state; the typed sub-stores share it.
type Store struct {
	mu      sync.RWMutex
	docs    map[string]*document.Document
	orgs    map[string]*org.Organization
	members map[string][]org.Membership
	invites map[string][]org.Invitation
}

// New creates an empty store.
func New() *Store {
	return &Store{
		docs:    make(map[string]*document.Document),
		orgs:    make(map[string]*org.Organization),
		members: make(map[string][]org.Membership),
		invites: make(map[string][]org.Invitation),
	}
}

// Documents returns the document store view.
func (s *Store) Documents() *DocumentStore { return &DocumentStore{s: s} }

// Organizations returns the organization store view.
func (s *Store) Organizations() *OrganizationStore { return &OrganizationStore{s: s} }

// DocumentStore implements document.Store.
type DocumentStore struct {
	s *Store
}

var _ document.Store = (*DocumentStore)(nil)

func (d *DocumentStore) Insert(ctx context.Context, doc *document.Document) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	cp := *doc
	d.s.docs[doc.ID] = &cp
	return nil
}

func (d *DocumentStore) Find(ctx context.Context, id string) (*document.Document, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	doc, ok := d.s.docs[id]
	if !ok {
		return nil, document.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (d *DocumentStore) Update(ctx context.Context, id string, ch document.Changes, at time.Time) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	doc, ok := d.s.docs[id]
	if !ok {
		return document.ErrDocumentNotFound
	}
	if ch.Name != nil {
		doc.Name = *ch.Name
	}
	if ch.ContentType != nil {
		doc.ContentType = *ch.ContentType
	}
	if ch.Size != nil {
		doc.Size = *ch.Size
	}
	if ch.EncryptionKeyID != nil {
		doc.EncryptionKeyID = *ch.EncryptionKeyID
	}
	doc.UpdatedAt = at
	return nil
}

func (d *DocumentStore) MarkTrashed(ctx context.Context, id, actorID string, at time.Time) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	doc, ok := d.s.docs[id]
	if !ok {
		return document.ErrDocumentNotFound
	}
	doc.IsDeleted = true
	doc.DeletedAt = &at
	doc.DeletedBy = actorID
	doc.UpdatedAt = at
	return nil
}

func (d *DocumentStore) ClearTrashed(ctx context.Context, id string, at time.Time) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	doc, ok := d.s.docs[id]
	if !ok {
		return document.ErrDocumentNotFound
	}
	doc.IsDeleted = false
	doc.DeletedAt = nil
	doc.DeletedBy = ""
	doc.UpdatedAt = at
	return nil
}

func (d *DocumentStore) Delete(ctx context.Context, id string) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if _, ok := d.s.docs[id]; !ok {
		return document.ErrDocumentNotFound
	}
	delete(d.s.docs, id)
	return nil
}

func (d *DocumentStore) ListExpiredTrashed(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]document.Document, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	var res []document.Document
	for _, doc := range d.s.docs {
		if !doc.IsDeleted || doc.DeletedAt == nil || !doc.DeletedAt.Before(cutoff) {
			continue
		}
		if afterID != "" && doc.ID <= afterID {
			continue
		}
		res = append(res, *doc)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// OrganizationStore implements org.Store.
type OrganizationStore struct {
	s *Store
}

var _ org.Store = (*OrganizationStore)(nil)

func (o *OrganizationStore) Insert(ctx context.Context, organization *org.Organization) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	cp := *organization
	o.s.orgs[organization.ID] = &cp
	return nil
}

func (o *OrganizationStore) Find(ctx context.Context, id string) (*org.Organization, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	found, ok := o.s.orgs[id]
	if !ok {
		return nil, org.ErrOrganizationNotFound
	}
	cp := *found
	return &cp, nil
}

func (o *OrganizationStore) IsSoleOwner(ctx context.Context, orgID, userID string) (bool, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	var owners []org.Membership
	for _, m := range o.s.members[orgID] {
		if m.Role == org.RoleOwner {
			owners = append(owners, m)
		}
	}
	return len(owners) == 1 && owners[0].UserID == userID, nil
}

func (o *OrganizationStore) SoftDelete(ctx context.Context, orgID, actorID string, at, purgeAt time.Time) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	found, ok := o.s.orgs[orgID]
	if !ok {
		return org.ErrOrganizationNotFound
	}
	delete(o.s.members, orgID)
	delete(o.s.invites, orgID)
	found.DeletedAt = &at
	found.DeletedBy = actorID
	found.ScheduledPurgeAt = &purgeAt
	found.UpdatedAt = at
	return nil
}

func (o *OrganizationStore) Restore(ctx context.Context, orgID, ownerID string, at time.Time) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	found, ok := o.s.orgs[orgID]
	if !ok {
		return org.ErrOrganizationNotFound
	}
	found.DeletedAt = nil
	found.DeletedBy = ""
	found.ScheduledPurgeAt = nil
	found.UpdatedAt = at
	o.s.members[orgID] = []org.Membership{{
		OrganizationID: orgID,
		UserID:         ownerID,
		Role:           org.RoleOwner,
		CreatedAt:      at,
	}}
	return nil
}

func (o *OrganizationStore) Delete(ctx context.Context, orgID string) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if _, ok := o.s.orgs[orgID]; !ok {
		return org.ErrOrganizationNotFound
	}
	delete(o.s.orgs, orgID)
	delete(o.s.members, orgID)
	delete(o.s.invites, orgID)
	// Cascade: document rows belong to the organization.
	for id, doc := range o.s.docs {
		if doc.OrganizationID == orgID {
			delete(o.s.docs, id)
		}
	}
	return nil
}

func (o *OrganizationStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	var ids []string
	for id, found := range o.s.orgs {
		if found.ScheduledPurgeAt != nil && !now.Before(*found.ScheduledPurgeAt) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (o *OrganizationStore) DocumentPage(ctx context.Context, orgID, afterID string, limit int) ([]org.DocumentRef, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	var refs []org.DocumentRef
	for _, doc := range o.s.docs {
		if doc.OrganizationID != orgID {
			continue
		}
		if afterID != "" && doc.ID <= afterID {
			continue
		}
		refs = append(refs, org.DocumentRef{ID: doc.ID, StorageKey: doc.StorageKey})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

// --- helpers for tests and the smoke binary ---

// AddMembership records a membership.
func (s *Store) AddMembership(m org.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.OrganizationID] = append(s.members[m.OrganizationID], m)
}

// AddInvitation records a pending invitation.
func (s *Store) AddInvitation(inv org.Invitation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[inv.OrganizationID] = append(s.invites[inv.OrganizationID], inv)
}

// Memberships returns the memberships of an organization.
func (s *Store) Memberships(orgID string) []org.Membership {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]org.Membership(nil), s.members[orgID]...)
}

// Invitations returns the pending invitations of an organization.
func (s *Store) Invitations(orgID string) []org.Invitation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]org.Invitation(nil), s.invites[orgID]...)
}

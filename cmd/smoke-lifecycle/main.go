// smoke-lifecycle drives the full document and organization lifecycle
// against in-memory stores and fails loudly on any broken invariant.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"paperbase.org/internal/activity"
	"paperbase.org/internal/bus"
	"paperbase.org/internal/consumer"
	"paperbase.org/internal/document"
	"paperbase.org/internal/ids"
	"paperbase.org/internal/org"
	"paperbase.org/internal/search"
	"paperbase.org/internal/storage"
	"paperbase.org/internal/store/memory"
)

func main() {
	ctx := context.Background()

	mem := memory.New()
	blobs, err := storage.NewFilesystem("data/smoke-blobs")
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	b := bus.New()
	idx := search.New()
	sink := &activity.MemorySink{}
	if err := consumer.RegisterSearchIndex(b, idx); err != nil {
		log.Fatalf("wire index: %v", err)
	}
	if err := consumer.RegisterActivityLog(b, activity.NewLog(sink)); err != nil {
		log.Fatalf("wire activity: %v", err)
	}

	docs := document.NewService(mem.Documents(), blobs, b)
	orgs := org.NewService(mem.Organizations(), b, org.WithPurgeDelay(time.Hour))
	purger := org.NewPurger(mem.Organizations(), blobs, b, org.WithIndex(idx))

	// Tenant with a sole owner.
	orgID := ids.New()
	owner := ids.New()
	now := time.Now().UTC()
	if err := mem.Organizations().Insert(ctx, &org.Organization{
		ID: orgID, Name: "smoke", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		log.Fatalf("insert org: %v", err)
	}
	mem.AddMembership(org.Membership{OrganizationID: orgID, UserID: owner, Role: org.RoleOwner, CreatedAt: now})

	// Document: create, trash, restore.
	doc, err := docs.Create(ctx, document.CreateParams{
		OrganizationID: orgID,
		Name:           "smoke.txt",
		ContentType:    "text/plain",
		Size:           9,
		UploadedBy:     owner,
	})
	if err != nil {
		log.Fatalf("create document: %v", err)
	}
	if err := docs.Trash(ctx, doc.ID, orgID, owner); err != nil {
		log.Fatalf("trash: %v", err)
	}
	if err := docs.Trash(ctx, doc.ID, orgID, owner); err != document.ErrDocumentAlreadyDeleted {
		log.Fatalf("expected ErrDocumentAlreadyDeleted, got %v", err)
	}
	if err := docs.Restore(ctx, doc.ID, orgID, owner); err != nil {
		log.Fatalf("restore: %v", err)
	}
	b.Drain()

	if entry, ok := idx.Lookup(doc.ID); !ok || entry["isDeleted"] != false {
		log.Fatalf("index out of step: %v", entry)
	}
	if entries := sink.Entries(doc.ID); len(entries) != 3 {
		log.Fatalf("expected 3 activity entries, got %d", len(entries))
	}

	// Organization: soft-delete, restore, soft-delete again, purge.
	if err := orgs.SoftDelete(ctx, orgID, owner); err != nil {
		log.Fatalf("soft delete: %v", err)
	}
	if got := len(mem.Memberships(orgID)); got != 0 {
		log.Fatalf("expected memberships gone, got %d", got)
	}
	if err := orgs.Restore(ctx, orgID, owner); err != nil {
		log.Fatalf("restore org: %v", err)
	}
	if err := orgs.SoftDelete(ctx, orgID, owner); err != nil {
		log.Fatalf("second soft delete: %v", err)
	}

	res, err := purger.PurgeOrganization(ctx, orgID)
	if err != nil {
		log.Fatalf("purge: %v", err)
	}
	if res.Deleted != 1 || res.Failed != 0 {
		log.Fatalf("unexpected purge outcome: %+v", res)
	}
	if _, err := mem.Organizations().Find(ctx, orgID); err != org.ErrOrganizationNotFound {
		log.Fatalf("expected organization gone, got %v", err)
	}
	if _, err := mem.Documents().Find(ctx, doc.ID); err != document.ErrDocumentNotFound {
		log.Fatalf("expected document rows gone, got %v", err)
	}
	b.Drain()

	fmt.Printf("✅ lifecycle smoke test passed: org=%s doc=%s\n", orgID, doc.ID)
}

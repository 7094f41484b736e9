// Package consumer wires domain events to their side effects: search index
// maintenance, the activity log, outbound webhooks, and product analytics.
// Every handler is registered under a stable name so duplicate wiring fails
// at startup.
package consumer

import (
	"context"
	"fmt"

	"paperbase.org/internal/bus"
	"paperbase.org/internal/document"
	"paperbase.org/internal/org"
)

// SearchIndex is the slice of the search backend the consumers need.
type SearchIndex interface {
	IndexDocument(ctx context.Context, doc document.Document) error
	UpdateDocument(ctx context.Context, documentID string, fields map[string]any) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// ActivityRecorder appends entries to the per-document activity log.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, organizationID, documentID, event, actorID string, extra map[string]any) error
}

// Webhooks delivers outbound notifications to customer endpoints.
type Webhooks interface {
	TriggerWebhooks(ctx context.Context, organizationID, event string, payload any) error
}

// Analytics captures product usage events.
type Analytics interface {
	CaptureUserEvent(ctx context.Context, userID, event string, properties map[string]any) error
}

func payloadError(evt bus.Event) error {
	return fmt.Errorf("consumer: unexpected payload %T for event %q", evt.Payload, evt.Name)
}

// RegisterSearchIndex keeps the search index in step with document lifecycle
// events. Trashed documents stay indexed but flagged, so trash views remain
// searchable; only hard deletion removes the index entry.
func RegisterSearchIndex(b *bus.Bus, idx SearchIndex) error {
	if err := b.Subscribe(document.EventCreated, "indexDocument", func(ctx context.Context, evt bus.Event) error {
		doc, ok := evt.Payload.(document.Document)
		if !ok {
			return payloadError(evt)
		}
		return idx.IndexDocument(ctx, doc)
	}); err != nil {
		return err
	}

	if err := b.Subscribe(document.EventUpdated, "applyIndexDelta", func(ctx context.Context, evt bus.Event) error {
		p, ok := evt.Payload.(document.UpdatedPayload)
		if !ok {
			return payloadError(evt)
		}
		fields := make(map[string]any)
		if p.Changes.Name != nil {
			fields["name"] = *p.Changes.Name
		}
		if p.Changes.ContentType != nil {
			fields["contentType"] = *p.Changes.ContentType
		}
		if p.Changes.Size != nil {
			fields["size"] = *p.Changes.Size
		}
		if p.Changes.EncryptionKeyID != nil {
			fields["encryptionKeyId"] = *p.Changes.EncryptionKeyID
		}
		if len(fields) == 0 {
			return nil
		}
		return idx.UpdateDocument(ctx, p.DocumentID, fields)
	}); err != nil {
		return err
	}

	if err := b.Subscribe(document.EventTrashed, "markIndexDeleted", func(ctx context.Context, evt bus.Event) error {
		p, ok := evt.Payload.(document.TrashedPayload)
		if !ok {
			return payloadError(evt)
		}
		return idx.UpdateDocument(ctx, p.DocumentID, map[string]any{
			"isDeleted": true,
			"deletedBy": p.TrashedBy,
		})
	}); err != nil {
		return err
	}

	if err := b.Subscribe(document.EventRestored, "markIndexRestored", func(ctx context.Context, evt bus.Event) error {
		p, ok := evt.Payload.(document.RestoredPayload)
		if !ok {
			return payloadError(evt)
		}
		return idx.UpdateDocument(ctx, p.DocumentID, map[string]any{
			"isDeleted": false,
		})
	}); err != nil {
		return err
	}

	return b.Subscribe(document.EventDeleted, "removeFromIndex", func(ctx context.Context, evt bus.Event) error {
		p, ok := evt.Payload.(document.DeletedPayload)
		if !ok {
			return payloadError(evt)
		}
		return idx.DeleteDocument(ctx, p.DocumentID)
	})
}

// RegisterActivityLog records user-visible document history. Trashing is
// recorded as "deleted": the activity log speaks the product's vocabulary,
// not the storage layer's.
func RegisterActivityLog(b *bus.Bus, rec ActivityRecorder) error {
	if err := b.Subscribe(document.EventCreated, "appendActivityLog", func(ctx context.Context, evt bus.Event) error {
		doc, ok := evt.Payload.(document.Document)
		if !ok {
			return payloadError(evt)
		}
		return rec.RecordActivity(ctx, doc.OrganizationID, doc.ID, "created", "", map[string]any{
			"name": doc.Name,
		})
	}); err != nil {
		return err
	}

	if err := b.Subscribe(document.EventUpdated, "appendActivityLog", func(ctx context.Context, evt bus.Event) error {
		p, ok := evt.Payload.(document.UpdatedPayload)
		if !ok {
			return payloadError(evt)
		}
		return rec.RecordActivity(ctx, p.OrganizationID, p.DocumentID, "updated", "", map[string]any{
			"changes": p.Changes,
		})
	}); err != nil {
		return err
	}

	if err := b.Subscribe(document.EventTrashed, "appendActivityLog", func(ctx context.Context, evt bus.Event) error {
		p, ok := evt.Payload.(document.TrashedPayload)
		if !ok {
			return payloadError(evt)
		}
		return rec.RecordActivity(ctx, p.OrganizationID, p.DocumentID, "deleted", p.TrashedBy, nil)
	}); err != nil {
		return err
	}

	return b.Subscribe(document.EventRestored, "appendActivityLog", func(ctx context.Context, evt bus.Event) error {
		p, ok := evt.Payload.(document.RestoredPayload)
		if !ok {
			return payloadError(evt)
		}
		return rec.RecordActivity(ctx, p.OrganizationID, p.DocumentID, "restored", p.RestoredBy, nil)
	})
}

// webhookEvents maps internal event names to the public names endpoints
// subscribe to.
var webhookEvents = map[string]string{
	document.EventCreated:  "document:created",
	document.EventUpdated:  "document:updated",
	document.EventTrashed:  "document:deleted",
	document.EventRestored: "document:restored",
}

// RegisterWebhooks forwards document lifecycle events to subscribed customer
// endpoints under their public names.
func RegisterWebhooks(b *bus.Bus, wh Webhooks) error {
	handler := func(ctx context.Context, evt bus.Event) error {
		public := webhookEvents[evt.Name]

		var organizationID string
		switch p := evt.Payload.(type) {
		case document.Document:
			organizationID = p.OrganizationID
		case document.UpdatedPayload:
			organizationID = p.OrganizationID
		case document.TrashedPayload:
			organizationID = p.OrganizationID
		case document.RestoredPayload:
			organizationID = p.OrganizationID
		default:
			return payloadError(evt)
		}
		return wh.TriggerWebhooks(ctx, organizationID, public, evt.Payload)
	}

	for internal := range webhookEvents {
		if err := b.Subscribe(internal, "dispatchWebhooks", handler); err != nil {
			return err
		}
	}
	return nil
}

// RegisterAnalytics captures lifecycle events that have an acting user.
func RegisterAnalytics(b *bus.Bus, an Analytics) error {
	if err := b.Subscribe(document.EventTrashed, "captureAnalytics", func(ctx context.Context, evt bus.Event) error {
		p, ok := evt.Payload.(document.TrashedPayload)
		if !ok {
			return payloadError(evt)
		}
		return an.CaptureUserEvent(ctx, p.TrashedBy, "document_deleted", map[string]any{
			"documentId":     p.DocumentID,
			"organizationId": p.OrganizationID,
		})
	}); err != nil {
		return err
	}

	if err := b.Subscribe(document.EventRestored, "captureAnalytics", func(ctx context.Context, evt bus.Event) error {
		p, ok := evt.Payload.(document.RestoredPayload)
		if !ok {
			return payloadError(evt)
		}
		return an.CaptureUserEvent(ctx, p.RestoredBy, "document_restored", map[string]any{
			"documentId":     p.DocumentID,
			"organizationId": p.OrganizationID,
		})
	}); err != nil {
		return err
	}

	if err := b.Subscribe(org.EventSoftDeleted, "captureAnalytics", func(ctx context.Context, evt bus.Event) error {
		p, ok := evt.Payload.(org.SoftDeletedPayload)
		if !ok {
			return payloadError(evt)
		}
		return an.CaptureUserEvent(ctx, p.DeletedBy, "organization_deleted", map[string]any{
			"organizationId":   p.OrganizationID,
			"scheduledPurgeAt": p.ScheduledPurgeAt,
		})
	}); err != nil {
		return err
	}

	return b.Subscribe(org.EventRestored, "captureAnalytics", func(ctx context.Context, evt bus.Event) error {
		p, ok := evt.Payload.(org.RestoredPayload)
		if !ok {
			return payloadError(evt)
		}
		return an.CaptureUserEvent(ctx, p.RestoredBy, "organization_restored", map[string]any{
			"organizationId": p.OrganizationID,
		})
	})
}

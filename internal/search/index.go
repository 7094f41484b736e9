// Package search provides the in-process document index. It implements the
// consumer-side index contract; an external search backend can replace it
// without touching the event wiring.
package search

import (
	"context"
	"strings"
	"sync"

	"paperbase.org/internal/document"
)

// Index is a concurrency-safe in-memory document index.
type Index struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
}

// New creates an empty index.
func New() *Index {
	return &Index{docs: make(map[string]map[string]any)}
}

// IndexDocument stores the searchable fields of a document.
func (i *Index) IndexDocument(ctx context.Context, doc document.Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.docs[doc.ID] = map[string]any{
		"organizationId": doc.OrganizationID,
		"name":           doc.Name,
		"contentType":    doc.ContentType,
		"size":           doc.Size,
		"isDeleted":      doc.IsDeleted,
	}
	return nil
}

// UpdateDocument applies a partial field update. Unknown documents are
// indexed from the delta alone; the index tolerates out-of-order events.
func (i *Index) UpdateDocument(ctx context.Context, documentID string, fields map[string]any) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.docs[documentID]
	if !ok {
		entry = make(map[string]any)
		i.docs[documentID] = entry
	}
	for k, v := range fields {
		entry[k] = v
	}
	return nil
}

// DeleteDocument removes the index entry. Unknown ids are a no-op.
func (i *Index) DeleteDocument(ctx context.Context, documentID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.docs, documentID)
	return nil
}

// Lookup returns the indexed fields of a document.
func (i *Index) Lookup(documentID string) (map[string]any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	entry, ok := i.docs[documentID]
	if !ok {
		return nil, false
	}
	cp := make(map[string]any, len(entry))
	for k, v := range entry {
		cp[k] = v
	}
	return cp, true
}

// Search returns ids of active documents whose name contains the query,
// case-insensitively.
func (i *Index) Search(query string) []string {
	q := strings.ToLower(query)
	i.mu.RLock()
	defer i.mu.RUnlock()
	var ids []string
	for id, entry := range i.docs {
		if deleted, _ := entry["isDeleted"].(bool); deleted {
			continue
		}
		name, _ := entry["name"].(string)
		if strings.Contains(strings.ToLower(name), q) {
			ids = append(ids, id)
		}
	}
	return ids
}

package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"paperbase.org/internal/document"
)

// DocumentStore implements document.Store.
type DocumentStore struct {
	db *sql.DB
}

var _ document.Store = (*DocumentStore)(nil)

const documentColumns = `id, organization_id, name, content_type, size, storage_key, encryption_key_id, is_deleted, deleted_at, deleted_by, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*document.Document, error) {
	var (
		doc       document.Document
		deletedAt sql.NullTime
		deletedBy sql.NullString
	)
	err := row.Scan(
		&doc.ID, &doc.OrganizationID, &doc.Name, &doc.ContentType, &doc.Size,
		&doc.StorageKey, &doc.EncryptionKeyID, &doc.IsDeleted,
		&deletedAt, &deletedBy, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		doc.DeletedAt = &t
	}
	if deletedBy.Valid {
		doc.DeletedBy = deletedBy.String
	}
	return &doc, nil
}

func (d *DocumentStore) Insert(ctx context.Context, doc *document.Document) error {
	_, err := d.db.ExecContext(ctx, `
		insert into documents(id, organization_id, name, content_type, size, storage_key, encryption_key_id, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, doc.ID, doc.OrganizationID, doc.Name, doc.ContentType, doc.Size, doc.StorageKey, doc.EncryptionKeyID, doc.CreatedAt, doc.UpdatedAt)
	return err
}

func (d *DocumentStore) Find(ctx context.Context, id string) (*document.Document, error) {
	row := d.db.QueryRowContext(ctx, `select `+documentColumns+` from documents where id=$1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, document.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *DocumentStore) Update(ctx context.Context, id string, ch document.Changes, at time.Time) error {
	sets := []string{"updated_at = $1"}
	args := []any{at}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if ch.Name != nil {
		add("name", *ch.Name)
	}
	if ch.ContentType != nil {
		add("content_type", *ch.ContentType)
	}
	if ch.Size != nil {
		add("size", *ch.Size)
	}
	if ch.EncryptionKeyID != nil {
		add("encryption_key_id", *ch.EncryptionKeyID)
	}
	args = append(args, id)

	res, err := d.db.ExecContext(ctx,
		fmt.Sprintf(`update documents set %s where id = $%d`, strings.Join(sets, ", "), len(args)),
		args...)
	if err != nil {
		return err
	}
	return requireRow(res, document.ErrDocumentNotFound)
}

func (d *DocumentStore) MarkTrashed(ctx context.Context, id, actorID string, at time.Time) error {
	res, err := d.db.ExecContext(ctx, `
		update documents
		set is_deleted = true, deleted_at = $2, deleted_by = $3, updated_at = $2
		where id = $1
	`, id, at, actorID)
	if err != nil {
		return err
	}
	return requireRow(res, document.ErrDocumentNotFound)
}

func (d *DocumentStore) ClearTrashed(ctx context.Context, id string, at time.Time) error {
	res, err := d.db.ExecContext(ctx, `
		update documents
		set is_deleted = false, deleted_at = null, deleted_by = null, updated_at = $2
		where id = $1
	`, id, at)
	if err != nil {
		return err
	}
	return requireRow(res, document.ErrDocumentNotFound)
}

func (d *DocumentStore) Delete(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `delete from documents where id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, document.ErrDocumentNotFound)
}

func (d *DocumentStore) ListExpiredTrashed(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]document.Document, error) {
	rows, err := d.db.QueryContext(ctx, `
		select `+documentColumns+`
		from documents
		where is_deleted and deleted_at < $1 and id > $2
		order by id asc
		limit $3
	`, cutoff, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *doc)
	}
	return res, rows.Err()
}

// requireRow maps a zero-row mutation to the domain's not-found error.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"paperbase.org/internal/org"
)

// OrganizationStore implements org.Store.
type OrganizationStore struct {
	db *sql.DB
}

var _ org.Store = (*OrganizationStore)(nil)

const organizationColumns = `id, name, deleted_at, deleted_by, scheduled_purge_at, created_at, updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (*org.Organization, error) {
	var (
		o         org.Organization
		deletedAt sql.NullTime
		deletedBy sql.NullString
		purgeAt   sql.NullTime
	)
	err := row.Scan(&o.ID, &o.Name, &deletedAt, &deletedBy, &purgeAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		o.DeletedAt = &t
	}
	if deletedBy.Valid {
		o.DeletedBy = deletedBy.String
	}
	if purgeAt.Valid {
		t := purgeAt.Time
		o.ScheduledPurgeAt = &t
	}
	return &o, nil
}

func (s *OrganizationStore) Insert(ctx context.Context, organization *org.Organization) error {
	_, err := s.db.ExecContext(ctx, `
		insert into organizations(id, name, created_at, updated_at)
		values ($1,$2,$3,$4)
	`, organization.ID, organization.Name, organization.CreatedAt, organization.UpdatedAt)
	return err
}

func (s *OrganizationStore) Find(ctx context.Context, id string) (*org.Organization, error) {
	row := s.db.QueryRowContext(ctx, `select `+organizationColumns+` from organizations where id=$1`, id)
	o, err := scanOrganization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, org.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrganizationStore) IsSoleOwner(ctx context.Context, orgID, userID string) (bool, error) {
	var owners, mine int
	err := s.db.QueryRowContext(ctx, `
		select count(*), count(*) filter (where user_id = $2)
		from organization_members
		where organization_id = $1 and role = 'owner'
	`, orgID, userID).Scan(&owners, &mine)
	if err != nil {
		return false, err
	}
	return owners == 1 && mine == 1, nil
}

// SoftDelete stamps the organization and drops its memberships and pending
// invitations in one transaction.
func (s *OrganizationStore) SoftDelete(ctx context.Context, orgID, actorID string, at, purgeAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update organizations
		set deleted_at = $2, deleted_by = $3, scheduled_purge_at = $4, updated_at = $2
		where id = $1 and deleted_at is null
	`, orgID, at, actorID, purgeAt)
	if err != nil {
		return err
	}
	if err := requireRow(res, org.ErrOrganizationNotFound); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from organization_members where organization_id = $1`, orgID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from organization_invitations where organization_id = $1`, orgID); err != nil {
		return err
	}
	return tx.Commit()
}

// Restore clears the deletion stamps and re-creates the previous owner's
// membership in one transaction.
func (s *OrganizationStore) Restore(ctx context.Context, orgID, ownerID string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update organizations
		set deleted_at = null, deleted_by = null, scheduled_purge_at = null, updated_at = $2
		where id = $1 and deleted_at is not null
	`, orgID, at)
	if err != nil {
		return err
	}
	if err := requireRow(res, org.ErrOrganizationNotFound); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into organization_members(organization_id, user_id, role, created_at)
		values ($1,$2,'owner',$3)
	`, orgID, ownerID, at); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *OrganizationStore) Delete(ctx context.Context, orgID string) error {
	res, err := s.db.ExecContext(ctx, `delete from organizations where id = $1`, orgID)
	if err != nil {
		return err
	}
	return requireRow(res, org.ErrOrganizationNotFound)
}

func (s *OrganizationStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id from organizations
		where scheduled_purge_at is not null and scheduled_purge_at <= $1
		order by id asc
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *OrganizationStore) DocumentPage(ctx context.Context, orgID, afterID string, limit int) ([]org.DocumentRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, storage_key from documents
		where organization_id = $1 and id > $2
		order by id asc
		limit $3
	`, orgID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []org.DocumentRef
	for rows.Next() {
		var ref org.DocumentRef
		if err := rows.Scan(&ref.ID, &ref.StorageKey); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

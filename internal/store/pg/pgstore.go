// Package pg persists documents, organizations, and webhook endpoints in
// PostgreSQL via database/sql over the pgx stdlib driver.
package pg

import (
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store owns the connection pool; typed sub-stores share it.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing pool (tests use sqlmock here).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Documents returns the document store view.
func (s *Store) Documents() *DocumentStore { return &DocumentStore{db: s.db} }

// Organizations returns the organization store view.
func (s *Store) Organizations() *OrganizationStore { return &OrganizationStore{db: s.db} }

// Webhooks returns the webhook endpoint store view.
func (s *Store) Webhooks() *WebhookStore { return &WebhookStore{db: s.db} }

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// SQLReplicas is a replica catalog stored in Postgres:
//
//	rc_lfn(lfn TEXT, pfn TEXT, site TEXT)
//
// The first matching row (by id) wins.
type SQLReplicas struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

const lookupReplicaSQL = `SELECT pfn FROM rc_lfn WHERE lfn = $1 AND site = $2 ORDER BY id LIMIT 1`

// NewPostgresReplicas opens the catalog behind dsn through the pgx driver
// and creates its table on a fresh database.
func NewPostgresReplicas(ctx context.Context, dsn string) (*SQLReplicas, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open replica catalog: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping replica catalog: %w", err)
	}
	rc, err := OpenSQLReplicas(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return rc, nil
}

// OpenSQLReplicas wraps db and makes sure the catalog table exists.
func OpenSQLReplicas(ctx context.Context, db *sql.DB) (*SQLReplicas, error) {
	rc := NewSQLReplicas(db)
	if err := rc.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("replica catalog schema: %w", err)
	}
	return rc, nil
}

// NewSQLReplicas wraps an already opened database. The table is created on
// the first Register; use OpenSQLReplicas to create it upfront.
func NewSQLReplicas(db *sql.DB) *SQLReplicas {
	return &SQLReplicas{db: db}
}

// EnsureSchema creates the catalog table if it does not exist yet.
func (s *SQLReplicas) EnsureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS rc_lfn (
  id SERIAL PRIMARY KEY,
  lfn TEXT NOT NULL,
  pfn TEXT NOT NULL,
  site TEXT NOT NULL DEFAULT 'local'
);
CREATE INDEX IF NOT EXISTS idx_rc_lfn_lfn_site ON rc_lfn (lfn, site);
`)
	})
	return s.schemaErr
}

// Register inserts a record.
func (s *SQLReplicas) Register(ctx context.Context, r Replica) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO rc_lfn (lfn, pfn, site) VALUES ($1, $2, $3)`, r.LFN, r.PFN, r.Site)
	if err != nil {
		return fmt.Errorf("register %s: %w", r.LFN, err)
	}
	return nil
}

// Lookup implements Replicas.
func (s *SQLReplicas) Lookup(ctx context.Context, site, lfn string) (string, bool, error) {
	var pfn string
	err := s.db.QueryRowContext(ctx, lookupReplicaSQL, lfn, site).Scan(&pfn)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup %s at %s: %w", lfn, site, err)
	}
	return pfn, true, nil
}

// Close releases the database handle.
func (s *SQLReplicas) Close() error {
	return s.db.Close()
}

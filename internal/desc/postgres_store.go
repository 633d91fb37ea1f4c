package desc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps records in a shared table. Every Put is committed
// immediately, so Flush has nothing left to do.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("desc: postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("desc: ping postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS file_descriptions (
  name TEXT PRIMARY KEY,
  description TEXT NOT NULL DEFAULT '',
  reference_annotation TEXT NOT NULL DEFAULT '',
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Get(ctx context.Context, name string) (Record, bool, error) {
	var rec Record
	err := s.db.QueryRowContext(ctx, `SELECT description, reference_annotation
FROM file_descriptions WHERE name = $1`, name).Scan(&rec.Description, &rec.ReferenceAnnotation)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, name string, rec Record) error {
	if name == "" {
		return fmt.Errorf("desc: name is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO file_descriptions (name, description, reference_annotation)
VALUES ($1,$2,$3)
ON CONFLICT (name)
DO UPDATE SET description=EXCLUDED.description,
  reference_annotation=EXCLUDED.reference_annotation,
  updated_at=NOW()`,
		name, rec.Description, rec.ReferenceAnnotation)
	return err
}

func (s *PostgresStore) Flush(context.Context) error { return nil }

func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_descriptions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("desc: count descriptions: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/habitat?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return newPostgresFromDB(db), nil
}

func newPostgresFromDB(db *sql.DB) Store {
	return &postgresStore{baseStore{db: db}}
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS habitat_state (
		key TEXT PRIMARY KEY,
		value JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`)
	return err
}

func (s *postgresStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.db == nil {
		return nil, ErrNotFound
	}
	return s.load(ctx, `SELECT value::text FROM habitat_state WHERE key = $1`, key)
}

// Save stores the value as TEXT cast to JSONB, so a payload that is not valid
// JSON is rejected by the database rather than persisted.
func (s *postgresStore) Save(ctx context.Context, key string, value []byte) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO habitat_state (key, value, updated_at) VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key,
		string(value),
		nowUTC(),
	)
	return err
}

func (s *postgresStore) Delete(ctx context.Context, key string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM habitat_state WHERE key = $1`, key)
	return err
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	createCacheTable = `
CREATE TABLE IF NOT EXISTS adaptive_view_cache (
	key        TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`
	createCacheIndex = `CREATE INDEX IF NOT EXISTS adaptive_view_cache_expires_at_idx ON adaptive_view_cache (expires_at)`

	selectEntry = `SELECT payload FROM adaptive_view_cache WHERE key = $1 AND expires_at > NOW()`

	upsertEntry = `
INSERT INTO adaptive_view_cache (key, payload, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`

	sweepExpired  = `DELETE FROM adaptive_view_cache WHERE expires_at <= NOW()`
	deleteEntry   = `DELETE FROM adaptive_view_cache WHERE key = $1`
	deletePattern = `DELETE FROM adaptive_view_cache WHERE key LIKE $1 ESCAPE '\'`
)

// PostgresStore keeps entries in the adaptive_view_cache table. Expired rows
// are ignored on read and swept on write.
type PostgresStore struct {
	db  DB
	now func() time.Time
}

// NewPostgresStore creates the table if needed.
func NewPostgresStore(ctx context.Context, db DB) (*PostgresStore, error) {
	for _, stmt := range []string{createCacheTable, createCacheIndex} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to prepare cache table: %w", err)
		}
	}
	return &PostgresStore{db: db, now: time.Now}, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, selectEntry, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return payload, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if _, err := s.db.Exec(ctx, sweepExpired); err != nil {
		return fmt.Errorf("postgres sweep: %w", err)
	}
	if _, err := s.db.Exec(ctx, upsertEntry, key, value, s.now().Add(ttl)); err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, deleteEntry, key); err != nil {
		return fmt.Errorf("postgres delete %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	tag, err := s.db.Exec(ctx, deletePattern, likePattern(pattern))
	if err != nil {
		return 0, fmt.Errorf("postgres delete pattern %s: %w", pattern, err)
	}
	return int(tag.RowsAffected()), nil
}

// likePattern turns an unquoted '*' into '%' and escapes everything LIKE would
// otherwise treat as special.
func likePattern(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '\\' && i+1 < len(pattern):
			i++
			ch = pattern[i]
		case ch == '*':
			b.WriteByte('%')
			continue
		}
		if ch == '\\' || ch == '%' || ch == '_' {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	return b.String()
}

package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranscripts = `
CREATE TABLE IF NOT EXISTS transcripts (
    id           BIGSERIAL    PRIMARY KEY,
    seq          BIGINT       NOT NULL,
    text         TEXT         NOT NULL,
    duration_ns  BIGINT       NOT NULL DEFAULT 0,
    engine       TEXT         NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcripts_created_at
    ON transcripts (created_at);
`

// PostgresStore archives transcripts in a PostgreSQL table. All operations
// are safe for concurrent use; the store holds a single [pgxpool.Pool].
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore establishes a connection pool to the database at dsn and
// ensures the transcripts table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlTranscripts); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Append inserts one transcript row.
func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcripts (seq, text, duration_ns, engine, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		int64(e.Seq), e.Text, e.AudioDuration.Nanoseconds(), e.Engine, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("history: insert transcript: %w", err)
	}
	return nil
}

// Recent returns up to limit transcripts, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT seq, text, duration_ns, engine, created_at
		 FROM transcripts
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query transcripts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e     Entry
			seq   int64
			durNs int64
		)
		if err := rows.Scan(&seq, &e.Text, &durNs, &e.Engine, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan transcript: %w", err)
		}
		e.Seq = uint64(seq)
		e.AudioDuration = time.Duration(durNs)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate transcripts: %w", err)
	}
	return out, nil
}

// Close releases all pool connections.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var _ Store = (*PostgresStore)(nil)

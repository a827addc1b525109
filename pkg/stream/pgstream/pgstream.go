// Package pgstream implements the networked Stream backend on PostgreSQL,
// using native uuid and timestamptz columns.
package pgstream

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"colas/pkg/colaserr"
	"colas/pkg/metrics"
	"colas/pkg/stream"
)

// Stream is the PostgreSQL-backed networked Stream.
type Stream struct {
	db *sql.DB
}

// Open connects to the PostgreSQL DSN.
func Open(dsn string) (*Stream, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, colaserr.Storage("pgstream.Open", err)
	}
	return &Stream{db: db}, nil
}

// OpenWithDB adapts an already-open pool, e.g. one shared with the
// networked Queue against the same DSN.
func OpenWithDB(db *sql.DB) *Stream { return &Stream{db: db} }

var _ stream.Stream = (*Stream)(nil)

func (s *Stream) Init(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			task_id UUID PRIMARY KEY,
			payload BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, table)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return colaserr.Storage("pgstream.Init", err)
		}
	}
	return nil
}

func (s *Stream) Store(ctx context.Context, table string, id uuid.UUID, payload []byte) error {
	stmt := fmt.Sprintf(`INSERT INTO %q (task_id, payload, created_at) VALUES ($1, $2, $3)`, table)
	if _, err := s.db.ExecContext(ctx, stmt, id.String(), payload, time.Now().UTC()); err != nil {
		return colaserr.Storage("pgstream.Store", err)
	}
	metrics.StreamStores.WithLabelValues(table).Inc()
	return nil
}

func (s *Stream) Retrieve(ctx context.Context, table string, ids []uuid.UUID) (map[uuid.UUID][]byte, error) {
	out := make(map[uuid.UUID][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	strs := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
		args[i] = strs[i]
	}
	placeholders := ""
	for i := range args {
		if i > 0 {
			placeholders += ","
		}
		placeholders += fmt.Sprintf("$%d", i+1)
	}
	stmt := fmt.Sprintf(`SELECT task_id, payload FROM %q WHERE task_id IN (%s)`, table, placeholders)
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, colaserr.Storage("pgstream.Retrieve", err)
	}
	defer rows.Close()
	for rows.Next() {
		var idStr string
		var payload []byte
		if err := rows.Scan(&idStr, &payload); err != nil {
			return nil, colaserr.Storage("pgstream.Retrieve", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, colaserr.Codec("pgstream.Retrieve", err)
		}
		out[id] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, colaserr.Storage("pgstream.Retrieve", err)
	}
	return out, nil
}

func (s *Stream) Wait(ctx context.Context, table string, id uuid.UUID, pollingInterval time.Duration) ([]byte, error) {
	return stream.Wait(ctx, s, table, id, pollingInterval)
}

func (s *Stream) Clean(ctx context.Context, table string, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	stmt := fmt.Sprintf(`DELETE FROM %q WHERE created_at < $1`, table)
	res, err := s.db.ExecContext(ctx, stmt, cutoff)
	if err != nil {
		return 0, colaserr.Storage("pgstream.Clean", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, colaserr.Storage("pgstream.Clean", err)
	}
	return n, nil
}

func (s *Stream) Close() error {
	if err := s.db.Close(); err != nil {
		return colaserr.Storage("pgstream.Close", err)
	}
	return nil
}

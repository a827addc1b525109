// Package sqlitestream implements the embedded Stream backend on SQLite.
// Timestamps are stored as RFC3339Nano text in UTC, whose lexicographic
// order equals chronological order, so Clean's cutoff comparison is a plain
// string comparison.
package sqlitestream

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/google/uuid"

	"colas/pkg/colaserr"
	"colas/pkg/metrics"
	"colas/pkg/stream"
)

// Stream is the SQLite-backed embedded Stream.
type Stream struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite file at path.
func Open(path string) (*Stream, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, colaserr.Storage("sqlitestream.Open", err)
	}
	db.SetMaxOpenConns(1)
	return &Stream{db: db}, nil
}

// OpenWithDB adapts an already-open handle, e.g. one shared with the
// embedded Queue against the same file.
func OpenWithDB(db *sql.DB) *Stream { return &Stream{db: db} }

var _ stream.Stream = (*Stream)(nil)

func (s *Stream) Init(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			task_id BLOB PRIMARY KEY,
			payload BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`, table)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return colaserr.Storage("sqlitestream.Init", err)
		}
	}
	return nil
}

func (s *Stream) Store(ctx context.Context, table string, id uuid.UUID, payload []byte) error {
	idBytes, err := id.MarshalBinary()
	if err != nil {
		return colaserr.Codec("sqlitestream.Store", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	stmt := fmt.Sprintf(`INSERT INTO %q (task_id, payload, created_at) VALUES (?, ?, ?)`, table)
	if _, err := s.db.ExecContext(ctx, stmt, idBytes, payload, now); err != nil {
		return colaserr.Storage("sqlitestream.Store", err)
	}
	metrics.StreamStores.WithLabelValues(table).Inc()
	return nil
}

func (s *Stream) Retrieve(ctx context.Context, table string, ids []uuid.UUID) (map[uuid.UUID][]byte, error) {
	out := make(map[uuid.UUID][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		b, err := id.MarshalBinary()
		if err != nil {
			return nil, colaserr.Codec("sqlitestream.Retrieve", err)
		}
		placeholders[i] = "?"
		args[i] = b
	}
	stmt := fmt.Sprintf(`SELECT task_id, payload FROM %q WHERE task_id IN (%s)`, table, joinPlaceholders(placeholders))
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, colaserr.Storage("sqlitestream.Retrieve", err)
	}
	defer rows.Close()
	for rows.Next() {
		var idBytes, payload []byte
		if err := rows.Scan(&idBytes, &payload); err != nil {
			return nil, colaserr.Storage("sqlitestream.Retrieve", err)
		}
		var id uuid.UUID
		if err := id.UnmarshalBinary(idBytes); err != nil {
			return nil, colaserr.Codec("sqlitestream.Retrieve", err)
		}
		out[id] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, colaserr.Storage("sqlitestream.Retrieve", err)
	}
	return out, nil
}

func (s *Stream) Wait(ctx context.Context, table string, id uuid.UUID, pollingInterval time.Duration) ([]byte, error) {
	return stream.Wait(ctx, s, table, id, pollingInterval)
}

func (s *Stream) Clean(ctx context.Context, table string, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl).Format(time.RFC3339Nano)
	stmt := fmt.Sprintf(`DELETE FROM %q WHERE created_at < ?`, table)
	res, err := s.db.ExecContext(ctx, stmt, cutoff)
	if err != nil {
		return 0, colaserr.Storage("sqlitestream.Clean", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, colaserr.Storage("sqlitestream.Clean", err)
	}
	return n, nil
}

func (s *Stream) Close() error {
	if err := s.db.Close(); err != nil {
		return colaserr.Storage("sqlitestream.Close", err)
	}
	return nil
}

func joinPlaceholders(ph []string) string {
	out := ph[0]
	for _, p := range ph[1:] {
		out += "," + p
	}
	return out
}

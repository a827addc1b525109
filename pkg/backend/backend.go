// Package backend parses a data source name and constructs the matching
// Queue and Stream so they share one connection pool (networked) or one
// database file (embedded).
package backend

import (
	"database/sql"
	"net/url"
	"strings"

	"colas/pkg/colaserr"
	"colas/pkg/queue"
	"colas/pkg/queue/pgqueue"
	"colas/pkg/queue/sqlitequeue"
	"colas/pkg/stream"
	"colas/pkg/stream/pgstream"
	"colas/pkg/stream/sqlitestream"
)

// Pair bundles a Queue and Stream constructed against the same data source.
type Pair struct {
	Queue  queue.Queue
	Stream stream.Stream
}

// Close closes both the Queue and the Stream, returning the first error
// encountered (if any) after attempting both.
func (p Pair) Close() error {
	err1 := p.Queue.Close()
	err2 := p.Stream.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Connect parses dsn and constructs the matching Queue/Stream pair.
//
//	sqlite://<path>                   embedded single-file backend
//	postgres://... | postgresql://...  networked client-server backend
//
// Any other scheme is a ConfigError.
func Connect(dsn string) (Pair, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Pair{}, colaserr.Config("backend.Connect", "unsupported DSN: "+err.Error())
	}

	switch strings.ToLower(u.Scheme) {
	case "sqlite":
		path := dsnPath(u, dsn)
		q, err := sqlitequeue.Open(path)
		if err != nil {
			return Pair{}, err
		}
		st, err := sqlitestream.Open(path)
		if err != nil {
			_ = q.Close()
			return Pair{}, err
		}
		return Pair{Queue: q, Stream: st}, nil

	case "postgres", "postgresql":
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return Pair{}, colaserr.Storage("backend.Connect", err)
		}
		return Pair{
			Queue:  pgqueue.OpenWithPool(db),
			Stream: pgstream.OpenWithDB(db),
		}, nil

	default:
		return Pair{}, colaserr.Config("backend.Connect", "unsupported DSN: "+dsn)
	}
}

// dsnPath extracts the filesystem path for a sqlite:// DSN, accepting both
// absolute (sqlite:///a/b.db -> /a/b.db) and relative (sqlite://./a.db ->
// ./a.db, sqlite://a.db -> a.db) forms.
func dsnPath(u *url.URL, raw string) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	path := u.Host + u.Path
	if path == "" {
		// sqlite:// with nothing else: fall back to verbatim suffix.
		return strings.TrimPrefix(raw, "sqlite://")
	}
	return path
}

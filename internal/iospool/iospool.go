// Package iospool keeps envelopes that could not be delivered to another
// tier in a local SQLite file, and replays them later.
package iospool

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/warno/warno/pkg/protocol"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGo)
)

const schema = `
CREATE TABLE IF NOT EXISTS spool (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  event_code INTEGER NOT NULL,
  event_name TEXT NOT NULL DEFAULT '',
  envelope BLOB NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT NOT NULL DEFAULT ''
)`

// Entry is a spooled envelope. An entry with EventName set holds a plugin
// event whose attribute was not resolved to an event code yet. Its
// Envelope has code 0 and the event data.
type Entry struct {
	ID        int64
	EventCode int
	EventName string
	Envelope  *protocol.Envelope
	Reason    string
	CreatedAt time.Time
	Attempts  int
	LastError string
}

// Summary describes the content of the spool.
type Summary struct {
	Count  int
	Oldest time.Time
	Codes  map[int]int
}

// FlushResult counts the outcome of a flush.
type FlushResult struct {
	Sent     int
	Failed   int
	Skipped  int
	Rejected int
}

// Translator turns a pending plugin event into an envelope.
type Translator func(ctx context.Context, name string, data json.RawMessage) (*protocol.Envelope, error)

// FlushOptions tune Flush.
type FlushOptions struct {
	// Jobs is the number of concurrent requests. With more than one job
	// entries may arrive out of order.
	Jobs int

	// Progress is called after each entry when not nil.
	Progress func()

	// Translate resolves pending plugin events. Without it pending events
	// are skipped.
	Translate Translator
}

// Spool is a store-and-forward outbox. It implements store.Spooler and is
// safe for concurrent use.
type Spool struct {
	path string
	db   *sql.DB
}

// Open opens or creates the spool file at path.
func Open(path string) (*Spool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, OpenError(path, err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, OpenError(path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, OpenError(path, err)
	}
	return &Spool{path: path, db: db}, nil
}

// Path returns the location of the spool file.
func (s *Spool) Path() string {
	return s.path
}

// Close closes the spool file.
func (s *Spool) Close() error {
	return s.db.Close()
}

// Put saves env with the reason it was not delivered.
func (s *Spool) Put(ctx context.Context, env *protocol.Envelope, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spool (event_code, envelope, reason, created_at)
		 VALUES (?, ?, ?, ?)`,
		env.EventCode, env.Bytes(), reason, time.Now().UnixMilli())
	if err != nil {
		return WriteError(s.path, err)
	}
	slog.Debug("Spooled envelope", "event_code", env.EventCode, "reason", reason)
	return nil
}

// PutEvent saves a plugin event that has no event code yet.
func (s *Spool) PutEvent(
	ctx context.Context,
	name string,
	data json.RawMessage,
	reason string,
) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spool (event_code, event_name, envelope, reason, created_at)
		 VALUES (0, ?, ?, ?, ?)`,
		name, []byte(data), reason, time.Now().UnixMilli())
	if err != nil {
		return WriteError(s.path, err)
	}
	slog.Debug("Spooled pending event", "event", name, "reason", reason)
	return nil
}

// List returns up to limit oldest entries. A limit of zero lists all.
// Entries that cannot be decoded are dropped.
func (s *Spool) List(ctx context.Context, limit int) ([]Entry, error) {
	q := `SELECT id, event_code, event_name, envelope, reason, created_at,
		attempts, last_error
		FROM spool ORDER BY id`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, ReadError(s.path, err)
	}
	defer rows.Close()

	var res []Entry
	var corrupted []int64
	for rows.Next() {
		var e Entry
		var raw []byte
		var created int64
		err = rows.Scan(&e.ID, &e.EventCode, &e.EventName, &raw, &e.Reason,
			&created, &e.Attempts, &e.LastError)
		if err != nil {
			return nil, ReadError(s.path, err)
		}
		if e.Envelope, err = decode(e, raw); err != nil {
			slog.Warn("Spooled envelope is corrupted", "id", e.ID, "error", err)
			corrupted = append(corrupted, e.ID)
			continue
		}
		e.CreatedAt = time.UnixMilli(created)
		res = append(res, e)
	}
	if err = rows.Err(); err != nil {
		return nil, ReadError(s.path, err)
	}
	rows.Close()

	for _, id := range corrupted {
		if err = s.delete(ctx, id); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func decode(e Entry, raw []byte) (*protocol.Envelope, error) {
	if e.EventName == "" {
		return protocol.Decode(raw)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("pending event %s has invalid data", e.EventName)
	}
	return &protocol.Envelope{Data: raw}, nil
}

// Summary returns the number of entries, the age of the oldest one and
// counts per event code.
func (s *Spool) Summary(ctx context.Context) (Summary, error) {
	res := Summary{Codes: make(map[int]int)}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_code, count(*), min(created_at) FROM spool GROUP BY event_code`)
	if err != nil {
		return res, ReadError(s.path, err)
	}
	defer rows.Close()

	var oldest int64
	for rows.Next() {
		var code, count int
		var created int64
		if err = rows.Scan(&code, &count, &created); err != nil {
			return res, ReadError(s.path, err)
		}
		res.Codes[code] = count
		res.Count += count
		if oldest == 0 || created < oldest {
			oldest = created
		}
	}
	if err = rows.Err(); err != nil {
		return res, ReadError(s.path, err)
	}
	if oldest > 0 {
		res.Oldest = time.UnixMilli(oldest)
	}
	return res, nil
}

// Flush sends spooled envelopes. With a single job they go oldest first.
// Delivered entries are removed, and so are entries the receiver rejects,
// since sending them again cannot succeed. Other failures stay with their
// attempt counter increased.
func (s *Spool) Flush(
	ctx context.Context,
	sender protocol.Sender,
	opts FlushOptions,
) (FlushResult, error) {
	var res FlushResult
	entries, err := s.List(ctx, 0)
	if err != nil {
		return res, err
	}

	var sent, failed, skipped, rejected atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Jobs, 1))
	for _, e := range entries {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			defer func() {
				if opts.Progress != nil {
					opts.Progress()
				}
			}()

			env := e.Envelope
			if e.EventName != "" {
				if opts.Translate == nil {
					skipped.Add(1)
					return nil
				}
				var err error
				if env, err = opts.Translate(gCtx, e.EventName, e.Envelope.Data); err != nil {
					if protocol.IsRejected(err) {
						rejected.Add(1)
						return s.reject(gCtx, e, err)
					}
					failed.Add(1)
					return s.failed(gCtx, e.ID, err)
				}
			}

			if _, err := sender.Send(gCtx, env); err != nil {
				if protocol.IsRejected(err) {
					rejected.Add(1)
					return s.reject(gCtx, e, err)
				}
				failed.Add(1)
				return s.failed(gCtx, e.ID, err)
			}
			sent.Add(1)
			return s.delete(gCtx, e.ID)
		})
	}
	err = g.Wait()

	res.Sent = int(sent.Load())
	res.Failed = int(failed.Load())
	res.Skipped = int(skipped.Load())
	res.Rejected = int(rejected.Load())
	if res.Sent > 0 || res.Failed > 0 || res.Rejected > 0 {
		slog.Info("Flushed spool",
			"path", s.path, "sent", res.Sent, "failed", res.Failed,
			"skipped", res.Skipped, "rejected", res.Rejected)
	}
	return res, err
}

func (s *Spool) delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM spool WHERE id = ?`, id); err != nil {
		return WriteError(s.path, err)
	}
	return nil
}

// reject removes an entry that can never be delivered.
func (s *Spool) reject(ctx context.Context, e Entry, cause error) error {
	slog.Error("Spooled envelope is rejected and dropped",
		"path", s.path, "id", e.ID, "event_code", e.EventCode,
		"event", e.EventName, "attempts", e.Attempts, "error", cause)
	return s.delete(ctx, e.ID)
}

func (s *Spool) failed(ctx context.Context, id int64, cause error) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE spool SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		cause.Error(), id)
	if err != nil {
		return WriteError(s.path, fmt.Errorf("entry %d: %w", id, err))
	}
	return nil
}

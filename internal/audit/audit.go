// Package audit persists a record of every command the shell dispatches —
// topic, payload, the ad-hoc response suffix it was given, and when it was
// sent — queryable later by the introspection server. This is a
// supplemented feature (original_source's shell.py never logged dispatch
// history anywhere durable), added because a federated command shell with
// ad-hoc response channels is otherwise impossible to debug after the fact.
//
// Storage follows the teacher's server/dao/sqlite pattern: a single
// modernc.org/sqlite-backed table, opened once, with CREATE TABLE IF NOT
// EXISTS run at construction time.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
)

// Entry is one dispatched command.
type Entry struct {
	ID         uuid.UUID
	Topic      string
	Payload    string
	Suffix     string
	Dispatched time.Time
}

// Store records and queries dispatch history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at file and
// ensures its schema exists.
func Open(file string) (*Store, error) {
	db, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, wrapDBError(err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	stmt := `CREATE TABLE IF NOT EXISTS dispatches (
		id TEXT NOT NULL PRIMARY KEY,
		topic TEXT NOT NULL,
		payload TEXT NOT NULL,
		suffix TEXT NOT NULL,
		dispatched INTEGER NOT NULL
	);`
	if _, err := s.db.Exec(stmt); err != nil {
		return wrapDBError(err)
	}
	return nil
}

// Record inserts a new dispatch entry and returns it with its generated ID
// and timestamp filled in.
func (s *Store) Record(ctx context.Context, topic, payload, suffix string) (Entry, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Entry{}, fmt.Errorf("generate dispatch id: %w", err)
	}
	now := time.Now()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dispatches (id, topic, payload, suffix, dispatched) VALUES (?, ?, ?, ?, ?)`,
		id.String(), topic, payload, suffix, now.Unix(),
	)
	if err != nil {
		return Entry{}, wrapDBError(err)
	}

	return Entry{ID: id, Topic: topic, Payload: payload, Suffix: suffix, Dispatched: now}, nil
}

// Recent returns the most recently dispatched entries, newest first, capped
// at limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, payload, suffix, dispatched FROM dispatches ORDER BY dispatched DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var id string
		var dispatched int64
		if err := rows.Scan(&id, &e.Topic, &e.Payload, &e.Suffix, &dispatched); err != nil {
			return nil, wrapDBError(err)
		}
		e.ID, err = uuid.Parse(id)
		if err != nil {
			return out, fmt.Errorf("stored dispatch id %q is invalid: %w", id, err)
		}
		e.Dispatched = time.Unix(dispatched, 0)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return out, wrapDBError(err)
	}
	return out, nil
}

// ByTopic returns recent entries whose topic matches exactly, newest first.
func (s *Store) ByTopic(ctx context.Context, topic string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, payload, suffix, dispatched FROM dispatches WHERE topic = ? ORDER BY dispatched DESC LIMIT ?`,
		topic, limit,
	)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var id string
		var dispatched int64
		if err := rows.Scan(&id, &e.Topic, &e.Payload, &e.Suffix, &dispatched); err != nil {
			return nil, wrapDBError(err)
		}
		e.ID, err = uuid.Parse(id)
		if err != nil {
			return out, fmt.Errorf("stored dispatch id %q is invalid: %w", id, err)
		}
		e.Dispatched = time.Unix(dispatched, 0)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return out, wrapDBError(err)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var ErrNotFound = errors.New("no such dispatch record")

func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	sqliteErr := &sqlite.Error{}
	if errors.As(err, &sqliteErr) {
		return fmt.Errorf("%s", sqlite.ErrorCodeString[sqliteErr.Code()])
	} else if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

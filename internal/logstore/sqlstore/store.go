// Package sqlstore implements the LogStore over database/sql. The sqlite and
// postgres backends share it and differ only in placeholder dialect and the
// driver they open.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"skrining/internal/domain"
	"skrining/internal/logstore"
	"skrining/pkg/platform/sentinel"
	"skrining/pkg/platform/tx"
)

// Dialect selects bind parameter syntax.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

const DefaultTable = "submission_logs"

var (
	_ logstore.Store      = (*Store)(nil)
	_ logstore.Transactor = (*Store)(nil)
)

// Store persists one row per NIK. Timestamps are stored as unix nanoseconds
// so both dialects order them identically.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

// New wraps an open database. An empty table falls back to DefaultTable.
func New(db *sql.DB, dialect Dialect, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, dialect: dialect, table: pq.QuoteIdentifier(table)}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn prefers a transaction carried on ctx.
func (s *Store) conn(ctx context.Context) queryer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// InTx runs fn in one transaction; store calls made with fn's ctx join it.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

// EnsureSchema creates the table and its timestamp index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			registered BOOLEAN NOT NULL DEFAULT FALSE,
			ts BIGINT NOT NULL,
			attempt INTEGER NOT NULL DEFAULT 0,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS ` + s.indexName() + ` ON ` + s.table + ` (ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure log schema: %w", err)
		}
	}
	return nil
}

func (s *Store) indexName() string {
	raw := strings.Trim(s.table, `"`)
	return pq.QuoteIdentifier(raw + "_ts_idx")
}

func (s *Store) args(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = s.dialect.placeholder(i + 1)
	}
	return strings.Join(ph, ", ")
}

func (s *Store) AddLog(ctx context.Context, entry domain.LogEntry) error {
	var payload sql.NullString
	if entry.Payload != nil {
		raw, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("encode log payload: %w", err)
		}
		payload = sql.NullString{String: string(raw), Valid: true}
	}
	query := `
		INSERT INTO ` + s.table + ` (id, status, reason, message, registered, ts, attempt, payload)
		VALUES (` + s.args(8) + `)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			message = excluded.message,
			registered = excluded.registered,
			ts = excluded.ts,
			attempt = excluded.attempt,
			payload = excluded.payload
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		entry.ID,
		string(entry.Status),
		entry.Reason,
		entry.Message,
		entry.Registered,
		entry.Timestamp.UnixNano(),
		entry.Attempt,
		payload,
	)
	if err != nil {
		return fmt.Errorf("add log %s: %w", entry.ID, err)
	}
	return nil
}

const columns = `id, status, reason, message, registered, ts, attempt, payload`

func (s *Store) GetLogByID(ctx context.Context, id string) (*domain.LogEntry, error) {
	query := `SELECT ` + columns + ` FROM ` + s.table + ` WHERE id = ` + s.dialect.placeholder(1)
	entry, err := scanEntry(s.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get log %s: %w", id, err)
	}
	return entry, nil
}

func (s *Store) GetLogs(ctx context.Context, pred logstore.Predicate) ([]domain.LogEntry, error) {
	query := `SELECT ` + columns + ` FROM ` + s.table + ` ORDER BY ts, id`
	rows, err := s.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var out []domain.LogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		if pred == nil || pred(*entry) {
			out = append(out, *entry)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return out, nil
}

func (s *Store) RemoveLog(ctx context.Context, id string) (bool, error) {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id = `+s.dialect.placeholder(1), id)
	if err != nil {
		return false, fmt.Errorf("remove log %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove log %s: %w", id, err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*domain.LogEntry, error) {
	var (
		entry   domain.LogEntry
		status  string
		ts      int64
		payload sql.NullString
	)
	if err := row.Scan(&entry.ID, &status, &entry.Reason, &entry.Message, &entry.Registered, &ts, &entry.Attempt, &payload); err != nil {
		return nil, err
	}
	st, err := domain.ParseLogStatus(status)
	if err != nil {
		return nil, err
	}
	entry.Status = st
	entry.Timestamp = time.Unix(0, ts).UTC()
	if payload.Valid && payload.String != "" {
		var p domain.NormalizedEntity
		if err := json.Unmarshal([]byte(payload.String), &p); err != nil {
			return nil, fmt.Errorf("decode log payload: %w", err)
		}
		entry.Payload = &p
	}
	return &entry, nil
}

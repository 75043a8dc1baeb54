// Package logstore defines the outcome log contract. The latest entry per
// NIK is authoritative for dedup; writes are last-write-wins.
//
// Entries are never expired by any backend. Retention is an operator
// decision (see the "logs rm" command).
package logstore

import (
	"context"
	"slices"
	"strings"
	"time"

	"skrining/internal/domain"
)

// Store is implemented by every backend.
type Store interface {
	AddLog(ctx context.Context, entry domain.LogEntry) error
	// GetLogByID returns sentinel.ErrNotFound when no entry exists.
	GetLogByID(ctx context.Context, id string) (*domain.LogEntry, error)
	// GetLogs returns entries matching pred ordered by timestamp. A nil
	// predicate matches everything.
	GetLogs(ctx context.Context, pred Predicate) ([]domain.LogEntry, error)
	RemoveLog(ctx context.Context, id string) (bool, error)
}

// Transactor is implemented by stores that can group several calls into one
// atomic unit. Calls made with the ctx passed to fn join the unit.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InTx runs fn atomically when store is a Transactor and plainly otherwise.
func InTx(ctx context.Context, store Store, fn func(ctx context.Context) error) error {
	if t, ok := store.(Transactor); ok {
		return t.InTx(ctx, fn)
	}
	return fn(ctx)
}

// Predicate filters entries.
type Predicate func(domain.LogEntry) bool

// ByStatus matches any of the given statuses.
func ByStatus(statuses ...domain.LogStatus) Predicate {
	return func(e domain.LogEntry) bool {
		return slices.Contains(statuses, e.Status)
	}
}

// NotStatus matches entries whose status is none of the given ones.
func NotStatus(statuses ...domain.LogStatus) Predicate {
	return func(e domain.LogEntry) bool {
		return !slices.Contains(statuses, e.Status)
	}
}

// Since matches entries written at or after t.
func Since(t time.Time) Predicate {
	return func(e domain.LogEntry) bool {
		return !e.Timestamp.Before(t)
	}
}

// All combines predicates with logical AND. Nil predicates are skipped.
func All(preds ...Predicate) Predicate {
	return func(e domain.LogEntry) bool {
		for _, p := range preds {
			if p != nil && !p(e) {
				return false
			}
		}
		return true
	}
}

// Filter applies pred and sorts by timestamp, oldest first. Backends that
// cannot filter natively use it on their full scan.
func Filter(entries []domain.LogEntry, pred Predicate) []domain.LogEntry {
	out := make([]domain.LogEntry, 0, len(entries))
	for _, e := range entries {
		if pred == nil || pred(e) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.LogEntry) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// Query is the filter surface shared by the CLI and the status server.
type Query struct {
	Statuses []domain.LogStatus
	Since    time.Time
}

// ParseStatuses parses a comma-separated status list. Empty input matches
// every status.
func ParseStatuses(s string) ([]domain.LogStatus, error) {
	var out []domain.LogStatus
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		st, err := domain.ParseLogStatus(strings.ToLower(part))
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Predicate returns the predicate the query describes.
func (q Query) Predicate() Predicate {
	var preds []Predicate
	if len(q.Statuses) > 0 {
		preds = append(preds, ByStatus(q.Statuses...))
	}
	if !q.Since.IsZero() {
		preds = append(preds, Since(q.Since))
	}
	return All(preds...)
}

// Package memory is the reference LogStore: a map guarded by a RWMutex.
// Entries live for the life of the process.
package memory

import (
	"context"
	"sync"

	"skrining/internal/domain"
	"skrining/internal/logstore"
	"skrining/pkg/platform/sentinel"
)

var _ logstore.Store = (*InMemoryStore)(nil)

// InMemoryStore keeps the latest entry per ID.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.LogEntry
}

func New() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]domain.LogEntry)}
}

func (s *InMemoryStore) AddLog(_ context.Context, entry domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
	return nil
}

func (s *InMemoryStore) GetLogByID(_ context.Context, id string) (*domain.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &entry, nil
}

func (s *InMemoryStore) GetLogs(_ context.Context, pred logstore.Predicate) ([]domain.LogEntry, error) {
	s.mu.RLock()
	all := make([]domain.LogEntry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	s.mu.RUnlock()
	return logstore.Filter(all, pred), nil
}

func (s *InMemoryStore) RemoveLog(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false, nil
	}
	delete(s.entries, id)
	return true, nil
}

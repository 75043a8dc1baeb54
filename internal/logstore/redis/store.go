// Package redis keeps log entries in a shared Redis so several operator
// machines see the same dedup state. Each entry is a JSON string under
// {prefix}:id; a sorted set scored by timestamp indexes them. The braces are
// a cluster hash tag, so every key of one store lives in the same slot and
// the multi-key commands below work against Redis Cluster.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"skrining/internal/domain"
	"skrining/internal/logstore"
	"skrining/pkg/platform/sentinel"
)

const DefaultPrefix = "skrining:log:"

var _ logstore.Store = (*Store)(nil)

type Store struct {
	client redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: hashTagged(prefix)}
}

// hashTagged wraps prefix in a hash tag unless it already carries one.
func hashTagged(prefix string) string {
	if strings.Contains(prefix, "{") {
		return prefix
	}
	return "{" + strings.TrimSuffix(prefix, ":") + "}:"
}

// KeyPrefix is the prefix every key of this store starts with.
func (s *Store) KeyPrefix() string { return s.prefix }

func (s *Store) key(id string) string { return s.prefix + id }

func (s *Store) indexKey() string { return s.prefix + "_index" }

func (s *Store) AddLog(ctx context.Context, entry domain.LogEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode log %s: %w", entry.ID, err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(entry.ID), raw, 0)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(entry.Timestamp.UnixNano()), Member: entry.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("add log %s: %w", entry.ID, err)
	}
	return nil
}

func (s *Store) GetLogByID(ctx context.Context, id string) (*domain.LogEntry, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get log %s: %w", id, err)
	}
	var entry domain.LogEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode log %s: %w", id, err)
	}
	return &entry, nil
}

func (s *Store) GetLogs(ctx context.Context, pred logstore.Predicate) ([]domain.LogEntry, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list log index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load logs: %w", err)
	}
	entries := make([]domain.LogEntry, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// index entry without a value: removed concurrently
			continue
		}
		var entry domain.LogEntry
		if err := json.Unmarshal([]byte(str), &entry); err != nil {
			return nil, fmt.Errorf("decode log %s: %w", ids[i], err)
		}
		entries = append(entries, entry)
	}
	return logstore.Filter(entries, pred), nil
}

func (s *Store) RemoveLog(ctx context.Context, id string) (bool, error) {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.key(id))
		p.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("remove log %s: %w", id, err)
	}
	return del.Val() > 0, nil
}

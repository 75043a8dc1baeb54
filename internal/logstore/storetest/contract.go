// Package storetest holds the behavioural contract every LogStore backend
// must satisfy.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skrining/internal/domain"
	"skrining/internal/logstore"
	"skrining/pkg/platform/sentinel"
)

var base = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

func entry(id string, status domain.LogStatus, offset time.Duration) domain.LogEntry {
	return domain.LogEntry{
		ID:         id,
		Status:     status,
		Reason:     "r-" + id,
		Message:    "m-" + id,
		Registered: status == domain.LogStatusSuccess,
		Timestamp:  base.Add(offset),
		Attempt:    1,
	}
}

// Run executes the contract against a fresh store per subtest.
func Run(t *testing.T, newStore func(t *testing.T) logstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing id is ErrNotFound", func(t *testing.T) {
		s := newStore(t)
		got, err := s.GetLogByID(ctx, "3578102009820006")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.Nil(t, got)
	})

	t.Run("add then get round trips fields and payload", func(t *testing.T) {
		s := newStore(t)
		e := entry("3578102009820006", domain.LogStatusSuccess, 0)
		e.Payload = &domain.NormalizedEntity{
			NIK:        e.ID,
			Name:       "BUDI SANTOSO",
			Sex:        domain.SexMale,
			Age:        42,
			Occupation: "Wiraswasta",
			Address:    domain.Address{Province: "JAWA TIMUR", Regency: "KOTA SURABAYA"},
			HeightCM:   168,
			WeightKG:   65,
		}
		require.NoError(t, s.AddLog(ctx, e))

		got, err := s.GetLogByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e.Status, got.Status)
		assert.Equal(t, e.Reason, got.Reason)
		assert.Equal(t, e.Message, got.Message)
		assert.True(t, got.Registered)
		assert.True(t, e.Timestamp.Equal(got.Timestamp))
		assert.Equal(t, 1, got.Attempt)
		require.NotNil(t, got.Payload)
		assert.Equal(t, "BUDI SANTOSO", got.Payload.Name)
		assert.Equal(t, "KOTA SURABAYA", got.Payload.Address.Regency)
		assert.True(t, got.IsSuccess())
	})

	t.Run("latest write wins", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.AddLog(ctx, entry("A", domain.LogStatusError, 0)))
		require.NoError(t, s.AddLog(ctx, entry("A", domain.LogStatusSuccess, time.Minute)))

		got, err := s.GetLogByID(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, domain.LogStatusSuccess, got.Status)

		all, err := s.GetLogs(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("GetLogs orders by timestamp and filters", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.AddLog(ctx, entry("C", domain.LogStatusInvalid, 3*time.Minute)))
		require.NoError(t, s.AddLog(ctx, entry("A", domain.LogStatusSuccess, time.Minute)))
		require.NoError(t, s.AddLog(ctx, entry("B", domain.LogStatusError, 2*time.Minute)))

		all, err := s.GetLogs(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, ids(all))

		failed, err := s.GetLogs(ctx, logstore.NotStatus(domain.LogStatusSuccess))
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C"}, ids(failed))

		recent, err := s.GetLogs(ctx, logstore.All(logstore.Since(base.Add(2*time.Minute)), logstore.ByStatus(domain.LogStatusInvalid)))
		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, ids(recent))
	})

	t.Run("remove reports presence", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.AddLog(ctx, entry("A", domain.LogStatusLocked, 0)))

		removed, err := s.RemoveLog(ctx, "A")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = s.RemoveLog(ctx, "A")
		require.NoError(t, err)
		assert.False(t, removed)

		_, err = s.GetLogByID(ctx, "A")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
		all, err := s.GetLogs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func ids(entries []domain.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

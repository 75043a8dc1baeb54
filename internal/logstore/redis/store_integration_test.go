//go:build integration

package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"skrining/internal/logstore"
	"skrining/internal/logstore/storetest"
	"skrining/pkg/testutil/containers"
)

func TestRedisStoreContract(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	storetest.Run(t, func(t *testing.T) logstore.Store {
		s := New(rc.Client, "")
		require.NoError(t, rc.DeletePrefix(context.Background(), s.KeyPrefix()))
		return s
	})
}

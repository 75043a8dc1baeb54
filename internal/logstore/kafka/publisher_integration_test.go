//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"skrining/internal/domain"
	"skrining/internal/logstore/memory"
	"skrining/pkg/testutil/containers"
)

func TestPublisherDeliversToBroker(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "skrining.outcomes.test"
	producer, err := NewClient([]string{rp.Broker}, topic)
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, EnsureTopic(ctx, producer, topic))

	pub := NewPublisher(memory.New(), producer, topic)
	require.NoError(t, pub.AddLog(ctx, domain.LogEntry{ID: "3578102009820006", Status: domain.LogStatusSuccess}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	var keys []string
	fetches.EachRecord(func(r *kgo.Record) { keys = append(keys, string(r.Key)) })
	require.Contains(t, keys, "3578102009820006")
}

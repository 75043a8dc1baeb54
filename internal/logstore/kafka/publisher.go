// Package kafka decorates a LogStore so every recorded outcome is also
// published to a topic for downstream report builders. The wrapped store
// stays authoritative: a failed publish is logged, never returned.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"skrining/internal/domain"
	"skrining/internal/logstore"
)

// Producer is the subset of *kgo.Client used for publishing.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Publisher struct {
	logstore.Store
	producer Producer
	topic    string
	logger   *slog.Logger
}

type Option func(*Publisher)

func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPublisher(store logstore.Store, producer Producer, topic string, opts ...Option) *Publisher {
	p := &Publisher{Store: store, producer: producer, topic: topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddLog writes through to the wrapped store, then publishes the entry keyed
// by NIK so consumers see per-NIK ordering.
func (p *Publisher) AddLog(ctx context.Context, entry domain.LogEntry) error {
	if err := p.Store.AddLog(ctx, entry); err != nil {
		return err
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		p.logger.WarnContext(ctx, "encode log for publish", "id", entry.ID, "error", err)
		return nil
	}
	rec := &kgo.Record{Topic: p.topic, Key: []byte(entry.ID), Value: raw}
	if err := p.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		p.logger.WarnContext(ctx, "publish log entry failed", "id", entry.ID, "topic", p.topic, "error", err)
	}
	return nil
}

// InTx delegates to the wrapped store so callers keep its atomicity.
func (p *Publisher) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return logstore.InTx(ctx, p.Store, fn)
}

// NewClient builds a producer client for the given brokers.
func NewClient(brokers []string, topic string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return cl, nil
}

// EnsureTopic creates the topic with one partition if it does not exist.
func EnsureTopic(ctx context.Context, cl *kgo.Client, topic string) error {
	resp, err := kadm.NewClient(cl).CreateTopics(ctx, 1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

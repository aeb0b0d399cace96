package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"reunite/internal/replication/outbox"
	"reunite/pkg/platform/sentinel"
)

const (
	defaultPollTimeout    = 2 * time.Second
	defaultPublishTimeout = 15 * time.Second
	defaultMaxRecords     = 500

	headerOrigin = "origin_hospital_id"
)

// Kafka is a Hub over a single topic. Each node consumes with its own
// consumer group so it reads the whole log.
type Kafka struct {
	client         *kgo.Client
	pollTimeout    time.Duration
	publishTimeout time.Duration
	maxRecords     int
	logger         *slog.Logger
}

type KafkaOption func(*Kafka)

func WithPollTimeout(d time.Duration) KafkaOption {
	return func(k *Kafka) {
		if d > 0 {
			k.pollTimeout = d
		}
	}
}

// WithPublishTimeout bounds how long Publish waits for broker acks.
func WithPublishTimeout(d time.Duration) KafkaOption {
	return func(k *Kafka) {
		if d > 0 {
			k.publishTimeout = d
		}
	}
}

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(k *Kafka) {
		k.logger = logger
	}
}

// NewKafka wraps a client built by platform/kafka.NewClient.
func NewKafka(client *kgo.Client, opts ...KafkaOption) *Kafka {
	k := &Kafka{
		client:         client,
		pollTimeout:    defaultPollTimeout,
		publishTimeout: defaultPublishTimeout,
		maxRecords:     defaultMaxRecords,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.logger == nil {
		k.logger = slog.Default()
	}
	return k
}

func (k *Kafka) Publish(ctx context.Context, entries []*outbox.Entry) error {
	records := make([]*kgo.Record, 0, len(entries))
	for _, e := range entries {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode outbox entry %s: %w", e.ID, err)
		}
		records = append(records, &kgo.Record{
			Key:     []byte(string(e.EntityType) + "/" + e.EntityID),
			Value:   value,
			Headers: []kgo.RecordHeader{{Key: headerOrigin, Value: []byte(e.Origin)}},
		})
	}
	produceCtx, cancel := context.WithTimeout(ctx, k.publishTimeout)
	defer cancel()

	// An unreachable broker surfaces as a deadline error, which the sync
	// worker treats like any other hub outage.
	if err := k.client.ProduceSync(produceCtx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d entries: %w: %w", len(records), sentinel.ErrUnavailable, err)
	}
	return nil
}

func (k *Kafka) Poll(ctx context.Context) ([]*outbox.Entry, error) {
	pollCtx, cancel := context.WithTimeout(ctx, k.pollTimeout)
	defer cancel()

	fetches := k.client.PollRecords(pollCtx, k.maxRecords)
	if fetches.IsClientClosed() {
		return nil, fmt.Errorf("kafka client closed: %w", sentinel.ErrUnavailable)
	}
	for _, fe := range fetches.Errors() {
		if errors.Is(fe.Err, context.DeadlineExceeded) || errors.Is(fe.Err, context.Canceled) {
			continue
		}
		return nil, fmt.Errorf("fetch %s[%d]: %w: %w", fe.Topic, fe.Partition, sentinel.ErrUnavailable, fe.Err)
	}

	var entries []*outbox.Entry
	fetches.EachRecord(func(r *kgo.Record) {
		var e outbox.Entry
		if err := json.Unmarshal(r.Value, &e); err != nil {
			k.logger.WarnContext(ctx, "hub_record_undecodable",
				"partition", r.Partition,
				"offset", r.Offset,
				"error", err,
			)
			return
		}
		entries = append(entries, &e)
	})
	return entries, nil
}

func (k *Kafka) Commit(ctx context.Context) error {
	if err := k.client.CommitUncommittedOffsets(ctx); err != nil {
		return fmt.Errorf("commit offsets: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

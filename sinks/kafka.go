package sinks

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
)

type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	// TopicPrefix is prepended to the index name to form the topic.
	TopicPrefix string `koanf:"topic_prefix"`
}

// KafkaSink produces one record per document keyed by its id. On a compacted
// topic the latest record per key is the current document.
type KafkaSink struct {
	client      *kgo.Client
	topicPrefix string
	logger      zerolog.Logger
}

func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	l := logger.GetLogger("sink.kafka")
	l.Trace().Strs("bootstrap_servers", cfg.Brokers).Msg("connecting to kafka cluster as a sink...")

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaSink{client: client, topicPrefix: cfg.TopicPrefix, logger: l}, nil
}

func (k *KafkaSink) Name() string { return TypeKafka }

func (k *KafkaSink) BulkUpsert(ctx context.Context, index string, docs []models.Document) error {
	records, err := k.records(index, docs)
	if err != nil {
		return err
	}

	results := k.client.ProduceSync(ctx, records...)
	if err := results.FirstErr(); err != nil {
		if isKafkaTransient(err) {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return fmt.Errorf("produce to %s: %w", k.topic(index), err)
	}
	return nil
}

func (k *KafkaSink) Close(ctx context.Context) error {
	if err := k.client.Flush(ctx); err != nil {
		k.logger.Err(err).Msg("flush before close failed")
	}
	k.client.Close()
	return nil
}

func (k *KafkaSink) topic(index string) string {
	return k.topicPrefix + index
}

func (k *KafkaSink) records(index string, docs []models.Document) ([]*kgo.Record, error) {
	records := make([]*kgo.Record, 0, len(docs))
	for _, doc := range docs {
		value, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode document %s: %w", doc.DocumentID(), err)
		}
		records = append(records, &kgo.Record{
			Topic: k.topic(index),
			Key:   []byte(doc.DocumentID()),
			Value: value,
		})
	}
	return records, nil
}

func isKafkaTransient(err error) bool {
	var netErr net.Error
	return kerr.IsRetriable(err) ||
		errors.Is(err, kgo.ErrRecordTimeout) ||
		errors.Is(err, kgo.ErrRecordRetries) ||
		errors.As(err, &netErr)
}

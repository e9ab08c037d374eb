// Package sinks writes transformed documents to their destination. Every
// sink upserts by document id, so replaying a batch is harmless.
package sinks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/retry"
)

var (
	// ErrUnavailable wraps failures to reach the sink. Only these are retried.
	ErrUnavailable = errors.New("sink unavailable")

	// ErrUnknownSink is returned by New for an unsupported sink type.
	ErrUnknownSink = errors.New("unknown sink type")
)

// Sink upserts documents into a named collection (an index, a topic...).
type Sink interface {
	Name() string
	BulkUpsert(ctx context.Context, index string, docs []models.Document) error
	Close(ctx context.Context) error
}

const (
	TypeElasticsearch = "elasticsearch"
	TypeMongoDB       = "mongodb"
	TypeKafka         = "kafka"
	TypeFile          = "file"
)

type Config struct {
	Type    string              `koanf:"type" validate:"oneof=elasticsearch mongodb kafka file"`
	Elastic ElasticConfig       `koanf:"elastic"`
	Mongo   MongoConfig         `koanf:"mongo"`
	Kafka   KafkaConfig         `koanf:"kafka"`
	File    FileConfig          `koanf:"file"`
	Breaker retry.BreakerConfig `koanf:"breaker"`
}

func DefaultConfig() Config {
	return Config{
		Type:    TypeElasticsearch,
		Elastic: ElasticConfig{Scheme: "http", Host: "127.0.0.1", Port: 9200},
		Mongo:   MongoConfig{URI: "mongodb://127.0.0.1:27017", Database: "movies"},
		Kafka:   KafkaConfig{Brokers: []string{"127.0.0.1:9092"}},
		File:    FileConfig{Dir: "out"},
		Breaker: retry.DefaultBreakerConfig(),
	}
}

// New connects the configured sink.
func New(ctx context.Context, cfg Config) (Sink, error) {
	switch cfg.Type {
	case TypeElasticsearch:
		return NewElasticSink(cfg.Elastic)
	case TypeMongoDB:
		return NewMongoSink(ctx, cfg.Mongo)
	case TypeKafka:
		return NewKafkaSink(cfg.Kafka)
	case TypeFile:
		return NewFileSink(cfg.File)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, cfg.Type)
	}
}

// IsTransient reports whether a failed upsert may succeed if retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || retry.IsOpen(err)
}

// ItemError is one document the sink refused.
type ItemError struct {
	ID     string
	Status int
	Reason string
}

// BulkError is returned when the sink accepted the request but rejected
// some of its documents. It is not retried.
type BulkError struct {
	Index  string
	Failed []ItemError
}

func (e *BulkError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d documents rejected by %s", len(e.Failed), e.Index)
	for i, f := range e.Failed {
		if i == 3 {
			fmt.Fprintf(&b, " (and %d more)", len(e.Failed)-i)
			break
		}
		fmt.Fprintf(&b, "; %s: %d %s", f.ID, f.Status, f.Reason)
	}
	return b.String()
}

package sinks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
)

type ElasticConfig struct {
	// Addresses wins over Scheme/Host/Port when set.
	Addresses []string `koanf:"addresses"`
	Scheme    string   `koanf:"scheme" validate:"omitempty,oneof=http https"`
	Host      string   `koanf:"host"`
	Port      int      `koanf:"port"`
	Username  string   `koanf:"username"`
	Password  string   `koanf:"password"`
	APIKey    string   `koanf:"api_key"`
	CloudID   string   `koanf:"cloud_id"`
}

func (c ElasticConfig) addresses() []string {
	if len(c.Addresses) > 0 || c.CloudID != "" {
		return c.Addresses
	}
	scheme := c.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return []string{scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))}
}

// ElasticSink indexes documents with the bulk API, one "index" action per
// document so an existing document with the same id is replaced.
type ElasticSink struct {
	client *elasticsearch.Client
	logger zerolog.Logger
}

func NewElasticSink(cfg ElasticConfig) (*ElasticSink, error) {
	return newElasticSink(elasticsearch.Config{
		Addresses: cfg.addresses(),
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		CloudID:   cfg.CloudID,
		// retries belong to the loader
		DisableRetry: true,
	})
}

func newElasticSink(cfg elasticsearch.Config) (*ElasticSink, error) {
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	l := logger.GetLogger("sink.elasticsearch")
	l.Trace().Strs("addresses", cfg.Addresses).Msg("elasticsearch client created")
	return &ElasticSink{client: client, logger: l}, nil
}

func (e *ElasticSink) Name() string { return TypeElasticsearch }

type bulkMeta struct {
	Index bulkTarget `json:"index"`
}

type bulkTarget struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkResponse struct {
	Errors bool                         `json:"errors"`
	Items  []map[string]bulkItemOutcome `json:"items"`
}

type bulkItemOutcome struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

func (e *ElasticSink) BulkUpsert(ctx context.Context, index string, docs []models.Document) error {
	body, err := bulkBody(index, docs)
	if err != nil {
		return err
	}

	res, err := e.client.Bulk(bytes.NewReader(body),
		e.client.Bulk.WithContext(ctx),
		e.client.Bulk.WithIndex(index),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: bulk request: %s %s", ErrUnavailable, res.Status(), msg)
		}
		return fmt.Errorf("bulk request rejected: %s %s", res.Status(), msg)
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !br.Errors {
		return nil
	}

	bulkErr := &BulkError{Index: index}
	for _, item := range br.Items {
		for _, outcome := range item {
			if outcome.Error == nil {
				continue
			}
			bulkErr.Failed = append(bulkErr.Failed, ItemError{
				ID:     outcome.ID,
				Status: outcome.Status,
				Reason: outcome.Error.Type + ": " + outcome.Error.Reason,
			})
		}
	}
	return bulkErr
}

func (e *ElasticSink) Close(ctx context.Context) error {
	e.logger.Trace().Msg("closing elasticsearch sink")
	return nil
}

// bulkBody renders the NDJSON body of a bulk request.
func bulkBody(index string, docs []models.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		if err := enc.Encode(bulkMeta{Index: bulkTarget{Index: index, ID: doc.DocumentID()}}); err != nil {
			return nil, fmt.Errorf("encode bulk action for %s: %w", doc.DocumentID(), err)
		}
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode document %s: %w", doc.DocumentID(), err)
		}
	}
	return buf.Bytes(), nil
}

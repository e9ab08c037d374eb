package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
)

type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

// MongoSink replaces documents by _id, one collection per index name.
type MongoSink struct {
	client *mongo.Client
	db     *mongo.Database
	logger zerolog.Logger
}

func NewMongoSink(ctx context.Context, cfg MongoConfig) (*MongoSink, error) {
	l := logger.GetLogger("sink.mongodb")
	l.Trace().Str("database", cfg.Database).Msg("connecting to mongodb...")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	return &MongoSink{client: client, db: client.Database(cfg.Database), logger: l}, nil
}

func (m *MongoSink) Name() string { return TypeMongoDB }

func (m *MongoSink) BulkUpsert(ctx context.Context, index string, docs []models.Document) error {
	writes, err := replaceModels(docs)
	if err != nil {
		return err
	}

	_, err = m.db.Collection(index).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
		bulkErr := &BulkError{Index: index}
		for _, we := range bwe.WriteErrors {
			bulkErr.Failed = append(bulkErr.Failed, ItemError{
				ID:     docs[we.Index].DocumentID(),
				Status: we.Code,
				Reason: we.Message,
			})
		}
		return bulkErr
	}
	return fmt.Errorf("bulk write to %s: %w", index, err)
}

func (m *MongoSink) Close(ctx context.Context) error {
	m.logger.Trace().Msg("disconnecting from mongodb")
	return m.client.Disconnect(ctx)
}

func replaceModels(docs []models.Document) ([]mongo.WriteModel, error) {
	writes := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		body, err := toBSON(doc)
		if err != nil {
			return nil, err
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: doc.DocumentID()}}).
			SetReplacement(body).
			SetUpsert(true))
	}
	return writes, nil
}

// toBSON goes through JSON so the stored shape matches the search index.
func toBSON(doc models.Document) (bson.D, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", doc.DocumentID(), err)
	}
	var body bson.D
	if err := bson.UnmarshalExtJSON(data, false, &body); err != nil {
		return nil, fmt.Errorf("convert document %s: %w", doc.DocumentID(), err)
	}
	return append(bson.D{{Key: "_id", Value: doc.DocumentID()}}, body...), nil
}

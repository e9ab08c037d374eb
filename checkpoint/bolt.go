package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
)

// BoltStorage keeps checkpoints in one bbolt bucket named after the namespace.
type BoltStorage struct {
	db     *bolt.DB
	bucket []byte
	logger zerolog.Logger
}

func OpenBoltStorage(path, namespace string) (*BoltStorage, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt at %q: %w", path, err)
	}
	l := logger.GetLogger("checkpoint.bolt")
	l.Debug().Str("file_path", path).Msg("opened bolt checkpoint store")
	return &BoltStorage{db: db, bucket: []byte(namespace), logger: l}, nil
}

func (b *BoltStorage) Retrieve(ctx context.Context) (Set, error) {
	set := Set{}
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			set[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve checkpoints from bolt: %w", err)
	}
	return set, nil
}

func (b *BoltStorage) Persist(ctx context.Context, set Set) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(b.bucket)
		if err != nil {
			return err
		}
		for k, v := range set {
			if err := bucket.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist checkpoints to bolt: %w", err)
	}
	b.logger.Trace().Int("keys", len(set)).Msg("checkpoint persisted")
	return nil
}

func (b *BoltStorage) Close() error {
	return b.db.Close()
}

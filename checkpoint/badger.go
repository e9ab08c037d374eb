package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
)

// BadgerStorage keeps checkpoints in an embedded badger database.
type BadgerStorage struct {
	db        *badger.DB
	namespace string
	logger    zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// OpenBadgerStorage opens a file backed database at dir. An empty dir opens
// an in memory database.
func OpenBadgerStorage(dir, namespace string) (*BadgerStorage, error) {
	l := logger.GetLogger("checkpoint.badger")

	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{l})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	l.Debug().Str("dir", dir).Msg("opened badger checkpoint store")

	return &BadgerStorage{db: db, namespace: namespace, logger: l}, nil
}

func (b *BadgerStorage) Retrieve(ctx context.Context) (Set, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrStoreClosed
	}

	set := Set{}
	prefix := []byte(b.namespace)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			set[strings.TrimPrefix(string(item.Key()), b.namespace)] = string(val)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve checkpoints from badger: %w", err)
	}
	return set, nil
}

func (b *BadgerStorage) Persist(ctx context.Context, set Set) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStoreClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for k, v := range set {
			if err := txn.Set([]byte(b.namespace+k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist checkpoints to badger: %w", err)
	}
	b.logger.Trace().Int("keys", len(set)).Msg("checkpoint persisted")
	return nil
}

func (b *BadgerStorage) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{}) {
	b.l.Error().Msgf(strings.TrimSpace(f), v...)
}

func (b badgerLogger) Warningf(f string, v ...interface{}) {
	b.l.Warn().Msgf(strings.TrimSpace(f), v...)
}

func (b badgerLogger) Infof(f string, v ...interface{}) {
	b.l.Debug().Msgf(strings.TrimSpace(f), v...)
}

func (b badgerLogger) Debugf(f string, v ...interface{}) {
	b.l.Trace().Msgf(strings.TrimSpace(f), v...)
}

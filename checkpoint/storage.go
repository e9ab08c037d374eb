// Package checkpoint persists the flat set of watermarks the ETL streams have
// reached. Every backend stores the whole set and hands it back on startup.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/retry"
)

var (
	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown checkpoint backend")

	// ErrStoreClosed is returned by a storage used after Close.
	ErrStoreClosed = errors.New("checkpoint store closed")
)

// Set maps a checkpoint key such as "film_work" onto its serialized watermark.
type Set map[string]string

// Clone returns a copy that shares nothing with s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Storage is the durable home of a Set.
type Storage interface {
	// Retrieve returns the persisted set. An empty store yields an empty,
	// non nil set and no error.
	Retrieve(ctx context.Context) (Set, error)
	// Persist writes every key of set.
	Persist(ctx context.Context, set Set) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendEtcd   = "etcd"
	BackendBadger = "badger"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

type Config struct {
	Backend string `koanf:"backend" validate:"oneof=file redis etcd badger bolt memory"`
	// Namespace prefixes keys in shared stores so that Retrieve only sees
	// keys this service wrote.
	Namespace string `koanf:"namespace" validate:"required"`

	File   FileConfig   `koanf:"file"`
	Redis  RedisConfig  `koanf:"redis"`
	Etcd   EtcdConfig   `koanf:"etcd"`
	Badger BadgerConfig `koanf:"badger"`
	Bolt   BoltConfig   `koanf:"bolt"`
}

type FileConfig struct {
	Path string `koanf:"path"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type EtcdConfig struct {
	Endpoints      []string      `koanf:"endpoints"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	DialTimeout    time.Duration `koanf:"dial_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type BadgerConfig struct {
	Dir string `koanf:"dir"`
}

type BoltConfig struct {
	Path string `koanf:"path"`
}

func DefaultConfig() Config {
	return Config{
		Backend:   BackendFile,
		Namespace: "postgres_to_es:",
		File:      FileConfig{Path: "state.json"},
		Redis:     RedisConfig{Addr: "127.0.0.1:6379"},
		Etcd: EtcdConfig{
			Endpoints:      []string{"127.0.0.1:2379"},
			DialTimeout:    5 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Badger: BadgerConfig{Dir: "state.badger"},
		Bolt:   BoltConfig{Path: "state.bolt"},
	}
}

// New opens the configured backend. Remote backends retry transient errors
// with a policy built from rc.
func New(ctx context.Context, cfg Config, rc retry.Config) (Storage, error) {
	switch cfg.Backend {
	case BackendFile:
		return NewFileStorage(cfg.File.Path), nil
	case BackendRedis:
		return NewRedisStorage(cfg.Redis, cfg.Namespace, rc), nil
	case BackendEtcd:
		return NewEtcdStorage(ctx, cfg.Etcd, cfg.Namespace, rc)
	case BackendBadger:
		return OpenBadgerStorage(cfg.Badger.Dir, cfg.Namespace)
	case BackendBolt:
		return OpenBoltStorage(cfg.Bolt.Path, cfg.Namespace)
	case BackendMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

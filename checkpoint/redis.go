package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/retry"
)

const scanBatch = 100

// RedisStorage writes one string key per checkpoint entry under namespace.
type RedisStorage struct {
	client    redis.UniversalClient
	namespace string
	policy    retry.Policy
	logger    zerolog.Logger
}

func NewRedisStorage(cfg RedisConfig, namespace string, rc retry.Config) *RedisStorage {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisStorage(client, namespace, rc)
}

func newRedisStorage(client redis.UniversalClient, namespace string, rc retry.Config) *RedisStorage {
	return &RedisStorage{
		client:    client,
		namespace: namespace,
		policy:    retry.Bounded("checkpoint.redis", rc, isRedisTransient),
		logger:    logger.GetLogger("checkpoint.redis"),
	}
}

func (r *RedisStorage) Retrieve(ctx context.Context) (Set, error) {
	var set Set
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		keys, err := r.keys(ctx)
		if err != nil {
			return err
		}
		set = make(Set, len(keys))
		if len(keys) == 0 {
			return nil
		}

		values, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				// deleted between SCAN and MGET
				continue
			}
			set[strings.TrimPrefix(keys[i], r.namespace)] = s
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve checkpoints from redis: %w", err)
	}
	return set, nil
}

func (r *RedisStorage) Persist(ctx context.Context, set Set) error {
	if len(set) == 0 {
		return nil
	}
	pairs := make([]any, 0, 2*len(set))
	for k, v := range set {
		pairs = append(pairs, r.namespace+k, v)
	}

	err := r.policy.Do(ctx, func(ctx context.Context) error {
		return r.client.MSet(ctx, pairs...).Err()
	})
	if err != nil {
		return fmt.Errorf("persist checkpoints to redis: %w", err)
	}
	r.logger.Trace().Int("keys", len(set)).Msg("checkpoint persisted")
	return nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

func (r *RedisStorage) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, escapeGlob(r.namespace)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// isRedisTransient treats everything except server replies and a closed
// client as a connectivity problem.
func isRedisTransient(err error) bool {
	if errors.Is(err, redis.ErrClosed) {
		return false
	}
	var reply redis.Error
	if errors.As(err, &reply) && !errors.Is(err, redis.Nil) {
		return strings.HasPrefix(reply.Error(), "LOADING") || strings.HasPrefix(reply.Error(), "TRYAGAIN")
	}
	return true
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

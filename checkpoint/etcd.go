package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/retry"
)

// EtcdStorage keeps every checkpoint under the namespace prefix and writes a
// whole set in one transaction.
type EtcdStorage struct {
	kv        clientv3.KV
	closer    func() error
	namespace string
	timeout   time.Duration
	policy    retry.Policy
	logger    zerolog.Logger
}

func NewEtcdStorage(ctx context.Context, cfg EtcdConfig, namespace string, rc retry.Config) (*EtcdStorage, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
		Context:     ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}
	s := newEtcdStorage(client.KV, namespace, cfg.RequestTimeout, rc)
	s.closer = client.Close
	return s, nil
}

func newEtcdStorage(kv clientv3.KV, namespace string, timeout time.Duration, rc retry.Config) *EtcdStorage {
	return &EtcdStorage{
		kv:        kv,
		closer:    func() error { return nil },
		namespace: namespace,
		timeout:   timeout,
		policy:    retry.Bounded("checkpoint.etcd", rc, isEtcdTransient),
		logger:    logger.GetLogger("checkpoint.etcd"),
	}
}

func (e *EtcdStorage) Retrieve(ctx context.Context) (Set, error) {
	var set Set
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := e.requestContext(ctx)
		defer cancel()

		resp, err := e.kv.Get(ctx, e.namespace, clientv3.WithPrefix())
		if err != nil {
			return err
		}
		set = make(Set, len(resp.Kvs))
		for _, kv := range resp.Kvs {
			set[strings.TrimPrefix(string(kv.Key), e.namespace)] = string(kv.Value)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve checkpoints from etcd: %w", err)
	}
	return set, nil
}

func (e *EtcdStorage) Persist(ctx context.Context, set Set) error {
	if len(set) == 0 {
		return nil
	}
	ops := make([]clientv3.Op, 0, len(set))
	for k, v := range set {
		ops = append(ops, clientv3.OpPut(e.namespace+k, v))
	}

	err := e.policy.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := e.requestContext(ctx)
		defer cancel()
		_, err := e.kv.Txn(ctx).Then(ops...).Commit()
		return err
	})
	if err != nil {
		return fmt.Errorf("persist checkpoints to etcd: %w", err)
	}
	e.logger.Trace().Int("keys", len(set)).Msg("checkpoint persisted")
	return nil
}

func (e *EtcdStorage) Close() error {
	return e.closer()
}

func (e *EtcdStorage) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

func isEtcdTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}

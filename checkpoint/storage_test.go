package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/retry"
)

const testNamespace = "postgres_to_es:"

func testRetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxElapsed = 500 * time.Millisecond
	return cfg
}

// fakeKV implements the part of clientv3.KV the etcd storage uses.
type fakeKV struct {
	clientv3.KV

	mu       sync.Mutex
	data     map[string]string
	failures int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}}
}

func (f *fakeKV) Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, status.Error(codes.Unavailable, "etcdserver: no leader")
	}
	resp := &clientv3.GetResponse{}
	for k, v := range f.data {
		if strings.HasPrefix(k, key) {
			resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(v)})
		}
	}
	return resp, nil
}

func (f *fakeKV) Txn(ctx context.Context) clientv3.Txn {
	return &fakeTxn{kv: f}
}

type fakeTxn struct {
	kv  *fakeKV
	ops []clientv3.Op
}

func (t *fakeTxn) If(cs ...clientv3.Cmp) clientv3.Txn { return t }

func (t *fakeTxn) Then(ops ...clientv3.Op) clientv3.Txn {
	t.ops = append(t.ops, ops...)
	return t
}

func (t *fakeTxn) Else(ops ...clientv3.Op) clientv3.Txn { return t }

func (t *fakeTxn) Commit() (*clientv3.TxnResponse, error) {
	t.kv.mu.Lock()
	defer t.kv.mu.Unlock()
	if t.kv.failures > 0 {
		t.kv.failures--
		return nil, status.Error(codes.Unavailable, "etcdserver: request timed out")
	}
	for _, op := range t.ops {
		if op.IsPut() {
			t.kv.data[string(op.KeyBytes())] = string(op.ValueBytes())
		}
	}
	return &clientv3.TxnResponse{Succeeded: true}, nil
}

func setupTestStorages(t *testing.T) map[string]Storage {
	t.Helper()
	dir := t.TempDir()

	badgerStore, err := OpenBadgerStorage("", testNamespace)
	require.NoError(t, err)

	boltStore, err := OpenBoltStorage(filepath.Join(dir, "state.bolt"), testNamespace)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisStore := newRedisStorage(redis.NewClient(&redis.Options{Addr: mr.Addr()}), testNamespace, testRetryConfig())

	stores := map[string]Storage{
		BackendFile:   NewFileStorage(filepath.Join(dir, "nested", "state.json")),
		BackendMemory: NewMemoryStorage(),
		BackendBadger: badgerStore,
		BackendBolt:   boltStore,
		BackendRedis:  redisStore,
		BackendEtcd:   newEtcdStorage(newFakeKV(), testNamespace, time.Second, testRetryConfig()),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStorage_Contract(t *testing.T) {
	ctx := context.Background()

	for name, store := range setupTestStorages(t) {
		t.Run(name, func(t *testing.T) {
			empty, err := store.Retrieve(ctx)
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)

			first := Set{"film_work": "2021-06-16T20:14:09.221855Z", "genre": "2021-06-16T20:14:10Z"}
			require.NoError(t, store.Persist(ctx, first))

			got, err := store.Retrieve(ctx)
			require.NoError(t, err)
			assert.Equal(t, first, got)

			second := first.Clone()
			second["film_work"] = "2021-06-17T00:00:00Z"
			second["person"] = "2021-06-17T00:00:01Z"
			require.NoError(t, store.Persist(ctx, second))

			got, err = store.Retrieve(ctx)
			require.NoError(t, err)
			assert.Equal(t, second, got)
		})
	}
}

func TestFileStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		content *string
		want    Set
		wantErr bool
	}{
		{name: "missing file", want: Set{}},
		{name: "empty file", content: strPtr("  \n"), want: Set{}},
		{name: "legacy python file", content: strPtr(`{"film_work": "2021-06-16 20:14:09.221855+00:00"}`), want: Set{"film_work": "2021-06-16 20:14:09.221855+00:00"}},
		{name: "corrupt file", content: strPtr("{film_work"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".json")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0o644))
			}

			got, err := NewFileStorage(path).Retrieve(ctx)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileStorage_PersistLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStorage(filepath.Join(dir, "state.json"))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Persist(context.Background(), Set{"genre": time.Unix(int64(i), 0).UTC().Format(time.RFC3339)}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestRedisStorage_IgnoresForeignKeys(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("session:42", "x"))
	require.NoError(t, mr.Set("film_work", "not ours"))

	store := newRedisStorage(redis.NewClient(&redis.Options{Addr: mr.Addr()}), testNamespace, testRetryConfig())
	defer store.Close()

	require.NoError(t, store.Persist(ctx, Set{"film_work": "2021-06-16T20:14:09Z"}))

	got, err := store.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, Set{"film_work": "2021-06-16T20:14:09Z"}, got)

	v, err := mr.Get(testNamespace + "film_work")
	require.NoError(t, err)
	assert.Equal(t, "2021-06-16T20:14:09Z", v)
}

func TestRedisStorage_GivesUpWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	store := newRedisStorage(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), testNamespace, testRetryConfig())
	defer store.Close()
	mr.Close()

	start := time.Now()
	err := store.Persist(context.Background(), Set{"genre": "2021-06-16T20:14:09Z"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEtcdStorage_RetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	store := newEtcdStorage(kv, testNamespace, time.Second, testRetryConfig())

	kv.failures = 1
	require.NoError(t, store.Persist(ctx, Set{"person": "2021-06-16T20:14:09Z"}))
	assert.Equal(t, "2021-06-16T20:14:09Z", kv.data[testNamespace+"person"])

	kv.failures = 2
	got, err := store.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, Set{"person": "2021-06-16T20:14:09Z"}, got)
}

func TestIsEtcdTransient(t *testing.T) {
	assert.True(t, isEtcdTransient(status.Error(codes.Unavailable, "no leader")))
	assert.True(t, isEtcdTransient(context.DeadlineExceeded))
	assert.False(t, isEtcdTransient(status.Error(codes.PermissionDenied, "denied")))
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "zookeeper"}, retry.DefaultConfig())
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func strPtr(s string) *string { return &s }

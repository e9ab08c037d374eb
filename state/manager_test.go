package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mikhail349/new-admin-panel-sprint-3/checkpoint"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Retrieve(ctx context.Context) (checkpoint.Set, error) {
	args := m.Called(ctx)
	set, _ := args.Get(0).(checkpoint.Set)
	return set, args.Error(1)
}

func (m *MockStorage) Persist(ctx context.Context, set checkpoint.Set) error {
	args := m.Called(ctx, set)
	return args.Error(0)
}

func (m *MockStorage) Close() error {
	return m.Called().Error(0)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		stored  checkpoint.Set
		err     error
		wantGet map[string]models.Watermark
		wantErr bool
	}{
		{
			name:    "empty store",
			stored:  nil,
			wantGet: map[string]models.Watermark{"film_work": ""},
		},
		{
			name:    "existing checkpoints",
			stored:  checkpoint.Set{"genre": "2021-06-16T20:14:09Z"},
			wantGet: map[string]models.Watermark{"genre": "2021-06-16T20:14:09Z", "person": ""},
		},
		{
			name:    "store unavailable",
			err:     errors.New("connection refused"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := new(MockStorage)
			storage.On("Retrieve", ctx).Return(tt.stored, tt.err).Once()

			m, err := Load(ctx, storage)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for k, want := range tt.wantGet {
				assert.Equal(t, want, m.Get(k))
			}
			storage.AssertExpectations(t)
		})
	}
}

func TestManager_SetPersistsFullSet(t *testing.T) {
	ctx := context.Background()
	storage := new(MockStorage)
	storage.On("Retrieve", ctx).Return(checkpoint.Set{"genre": "2021-06-16T20:14:09Z"}, nil).Once()
	storage.On("Persist", ctx, checkpoint.Set{
		"genre":     "2021-06-16T20:14:09Z",
		"film_work": "2021-06-17T00:00:00Z",
	}).Return(nil).Once()

	m, err := Load(ctx, storage)
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "film_work", "2021-06-17T00:00:00Z"))
	assert.Equal(t, models.Watermark("2021-06-17T00:00:00Z"), m.Get("film_work"))

	// reads are served from memory
	m.Get("genre")
	m.Get("film_work")
	storage.AssertNumberOfCalls(t, "Retrieve", 1)
	storage.AssertExpectations(t)
}

func TestManager_SetReportsPersistFailure(t *testing.T) {
	ctx := context.Background()
	storage := new(MockStorage)
	storage.On("Retrieve", ctx).Return(checkpoint.Set{}, nil)
	storage.On("Persist", ctx, mock.Anything).Return(errors.New("disk full"))

	m, err := Load(ctx, storage)
	require.NoError(t, err)

	err = m.Set(ctx, "person", "2021-06-17T00:00:00Z")
	assert.ErrorContains(t, err, "disk full")
}

func TestManager_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	m, err := Load(ctx, checkpoint.NewMemoryStorage())
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, "genre", "2021-06-16T20:14:09Z"))

	snap := m.Snapshot()
	snap["genre"] = "tampered"
	assert.Equal(t, models.Watermark("2021-06-16T20:14:09Z"), m.Get("genre"))
}

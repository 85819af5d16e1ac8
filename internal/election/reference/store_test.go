package reference

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"electa/internal/election/models"
	"electa/internal/platform/config"
	id "electa/pkg/domain"
	"electa/pkg/platform/sentinel"
)

const deployed id.Address = "0x00000000000000000000000000000000000000aa"

// exerciseStore runs the contract every backend must satisfy.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("empty store reads as the null reference", func(t *testing.T) {
		ref, err := store.Get(ctx)
		require.NoError(t, err)
		assert.False(t, ref.HasElection())
		assert.Equal(t, int64(0), ref.Version)
	})

	t.Run("swap bumps the version", func(t *testing.T) {
		next := models.Reference{Address: deployed, UpdatedAt: now}
		saved, err := store.CompareAndSwap(ctx, 0, next)
		require.NoError(t, err)
		assert.Equal(t, int64(1), saved.Version)

		ref, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, deployed, ref.Address)
		assert.Equal(t, int64(1), ref.Version)
	})

	t.Run("stale version conflicts and leaves the value", func(t *testing.T) {
		_, err := store.CompareAndSwap(ctx, 0, models.NullReference())
		require.ErrorIs(t, err, sentinel.ErrConflict)

		ref, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, deployed, ref.Address)
	})

	t.Run("transition marker round trips", func(t *testing.T) {
		ref, err := store.Get(ctx)
		require.NoError(t, err)
		_, err = store.CompareAndSwap(ctx, ref.Version, ref.WithTransition(models.TransitionEnd, now))
		require.NoError(t, err)

		ref, err = store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.TransitionEnd, ref.Transition)
		require.NotNil(t, ref.TransitionAt)
		assert.True(t, now.Equal(*ref.TransitionAt))
	})

	t.Run("concurrent swaps on one version have a single winner", func(t *testing.T) {
		ref, err := store.Get(ctx)
		require.NoError(t, err)

		const writers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.CompareAndSwap(ctx, ref.Version, ref.Released(now)); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "electa.db")
	store, err := OpenBoltStore(path)
	require.NoError(t, err)
	exerciseStore(t, store)
	require.NoError(t, store.Close())

	t.Run("survives reopening", func(t *testing.T) {
		reopened, err := OpenBoltStore(path)
		require.NoError(t, err)
		defer reopened.Close()

		ref, err := reopened.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, deployed, ref.Address)
		assert.Equal(t, int64(3), ref.Version)
	})
}

func TestOpen(t *testing.T) {
	t.Run("memory by default", func(t *testing.T) {
		store, closeFn, err := Open(config.ElectionConfig{}, nil)
		require.NoError(t, err)
		require.NoError(t, closeFn())
		require.IsType(t, &InMemoryStore{}, store)
	})

	t.Run("bolt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ref.db")
		store, closeFn, err := Open(config.ElectionConfig{ReferenceBackend: config.ReferenceBackendBolt, BoltPath: path}, nil)
		require.NoError(t, err)
		defer func() { require.NoError(t, closeFn()) }()
		require.IsType(t, &BoltStore{}, store)
	})

	t.Run("redis without a client", func(t *testing.T) {
		_, _, err := Open(config.ElectionConfig{ReferenceBackend: config.ReferenceBackendRedis}, nil)
		require.Error(t, err)
	})
}

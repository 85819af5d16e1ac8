package reference

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"electa/internal/election/models"
	"electa/pkg/platform/sentinel"
)

// RedisStore keeps the reference under one key and uses WATCH/MULTI for
// compare-and-swap, so every replica sees the same transition marker.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context) (models.Reference, error) {
	b, err := s.client.Get(ctx, storageKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NullReference(), nil
	}
	if err != nil {
		return models.Reference{}, fmt.Errorf("get reference: %w", err)
	}
	return decode(b)
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, expected int64, next models.Reference) (models.Reference, error) {
	next.Version = expected + 1
	payload, err := encode(next)
	if err != nil {
		return models.Reference{}, err
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, storageKey).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		current, err := decode(b)
		if err != nil {
			return err
		}
		if current.Version != expected {
			return fmt.Errorf("reference version %d, expected %d: %w", current.Version, expected, sentinel.ErrConflict)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, storageKey, payload, 0)
			return nil
		})
		return err
	}, storageKey)

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, redis.TxFailedErr):
		// Another writer touched the key between WATCH and EXEC.
		return models.Reference{}, fmt.Errorf("reference changed concurrently: %w", sentinel.ErrConflict)
	case errors.Is(err, sentinel.ErrConflict):
		return models.Reference{}, err
	default:
		return models.Reference{}, fmt.Errorf("swap reference: %w", err)
	}
}

package reference

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"electa/internal/platform/config"
)

// Open builds the Store selected by ELECTION_REFERENCE_BACKEND. The returned
// close func is never nil.
func Open(cfg config.ElectionConfig, client *redis.Client) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.ReferenceBackend {
	case config.ReferenceBackendRedis:
		if client == nil {
			return nil, noop, fmt.Errorf("reference backend %q requires REDIS_URL", cfg.ReferenceBackend)
		}
		return NewRedisStore(client), noop, nil
	case config.ReferenceBackendBolt:
		store, err := OpenBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case config.ReferenceBackendMemory, "":
		return NewInMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown reference backend %q", cfg.ReferenceBackend)
	}
}

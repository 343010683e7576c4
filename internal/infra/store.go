package infra

import (
	"fmt"

	"dutyfreepos/internal/config"
	"dutyfreepos/internal/repository"
)

// OpenStore opens the durable local store selected by STORE_DRIVER.
// The terminal cannot run without it: queue and device identity live there.
func OpenStore(cfg *config.Config) (repository.KVStore, error) {
	switch cfg.StoreDriver {
	case "", "badger":
		return NewBadgerStore(cfg.StorePath)
	case "sqlite":
		return NewSQLiteStore(cfg.StorePath)
	case "redis":
		rdb, err := NewRedis(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(rdb, ""), nil
	case "memory":
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.StoreDriver)
	}
}

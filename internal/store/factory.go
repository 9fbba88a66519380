package store

import (
	"fmt"

	"github.com/devrev/viewcounter/internal/config"
	"go.uber.org/zap"
)

// New builds the counter store selected by cfg.Backend.
func New(cfg config.StoreConfig, redisCfg config.RedisConfig, logger *zap.Logger) (CounterStore, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory counter store; counts are lost on restart")
		return NewMemoryCounterStore(logger), nil
	case config.BackendRedis, "":
		return NewRedisCounterStore(redisCfg, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

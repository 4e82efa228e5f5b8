package cache

import (
	"sync"

	"github.com/polycast/relay/internal/logger"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

var (
	globalCache *ristretto.Cache
	once        sync.Once
)

func Init() {
	once.Do(func() {
		c, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e6,
			MaxCost:     1 << 24,
			BufferItems: 64,
		})
		if err != nil {
			logger.SFatal("cache.Init: err", zap.Error(err))
			return
		}
		globalCache = c
	})
}

func Cache() *ristretto.Cache {
	return globalCache
}

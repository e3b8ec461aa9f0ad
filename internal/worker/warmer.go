package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"serial-service/internal/cache"
	"serial-service/internal/store"
	"serial-service/internal/util"
)

// CacheWarmer polls the workbook's modification time and rebuilds the read
// index when another machine has touched the file. Without it the first
// request after an outside edit pays the full rescan.
type CacheWarmer struct {
	store    *store.Store
	cache    *cache.Cache
	interval time.Duration
	logger   *zap.Logger

	lastSeen time.Time
}

// NewCacheWarmer creates a new cache warmer.
func NewCacheWarmer(st *store.Store, c *cache.Cache, interval time.Duration) *CacheWarmer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &CacheWarmer{
		store:    st,
		cache:    c,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs the polling loop until the context is cancelled.
func (w *CacheWarmer) Start(ctx context.Context) error {
	w.logger.Info("starting cache warmer", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping cache warmer")
			return nil
		case <-ticker.C:
			w.warm(ctx)
		}
	}
}

func (w *CacheWarmer) warm(ctx context.Context) {
	mtime, err := w.store.ModTime()
	if err != nil {
		w.logger.Warn("cache warmer could not stat workbook", zap.Error(err))
		return
	}
	if mtime.Equal(w.lastSeen) {
		return
	}

	// the cache notices the mtime change itself; reading the state here
	// just front-loads the rebuild off the request path
	if _, err := w.cache.SequenceState(ctx); err != nil {
		w.logger.Warn("cache warm failed", zap.Error(err))
		return
	}
	w.lastSeen = mtime
	w.logger.Debug("cache warmed", zap.Time("workbook_mtime", mtime))
}

// Package cache is the read-through index over the order workbook, keyed by
// the file's last-modified time. A stale entry serving pre-write maxima
// would mint duplicate item indexes, the one failure this layer exists to
// prevent, so every write path must call Invalidate before returning.
package cache

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"serial-service/config"
	"serial-service/internal/apperrors"
	"serial-service/internal/models"
	"serial-service/internal/serial"
	"serial-service/internal/store"
	"serial-service/internal/textnorm"
	"serial-service/internal/util"
)

// Entry is the derived index: sequence state plus rows bucketed by order
// number, stamped with the workbook mtime it was built from. It is also
// persisted to a side file so a fresh process start can reuse it without
// rescanning an unchanged workbook.
type Entry struct {
	SourceModTime time.Time                           `json:"source_mod_time"`
	State         models.SequenceState                `json:"state"`
	Orders        map[string][]models.OrderItemRecord `json:"orders"`
}

type Cache struct {
	store  *store.Store
	path   string
	logger *zap.Logger

	mu    sync.Mutex
	entry *Entry
}

func New(st *store.Store, cfg config.CacheConfig) *Cache {
	return &Cache{
		store:  st,
		path:   cfg.Path,
		logger: util.GetLogger(),
	}
}

// SequenceState returns the current maxima, rebuilding the index first if
// the workbook changed since it was built.
func (c *Cache) SequenceState(ctx context.Context) (models.SequenceState, error) {
	e, err := c.current(ctx)
	if err != nil {
		return models.SequenceState{}, err
	}
	return e.State, nil
}

// Order returns the rows of one order in storage order. A missing order is
// an empty result; NotFound is the caller's decision.
func (c *Cache) Order(ctx context.Context, orderNo string) ([]models.OrderItemRecord, error) {
	e, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	return e.Orders[textnorm.Normalize(orderNo)], nil
}

// Invalidate drops the in-memory entry and the side file. The write path
// calls this immediately after every successful batch, before returning to
// the caller.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
	_ = os.Remove(c.path)
}

func (c *Cache) current(ctx context.Context) (*Entry, error) {
	mtime, err := c.store.ModTime()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry != nil && c.entry.SourceModTime.Equal(mtime) {
		util.CacheHitsTotal.Inc()
		return c.entry, nil
	}

	if e, err := c.loadSideFile(mtime); err != nil {
		// A corrupt side file is a cache miss, never a caller-visible error.
		c.logger.Warn("cache side file unreadable, rebuilding", zap.String("path", c.path), zap.Error(err))
	} else if e != nil {
		util.CacheHitsTotal.Inc()
		c.entry = e
		return e, nil
	}

	e, err := c.rebuild(ctx, mtime)
	if err != nil {
		return nil, err
	}
	c.entry = e
	return e, nil
}

// loadSideFile returns the persisted entry when it exists and matches the
// given mtime; (nil, nil) is a plain miss.
func (c *Cache) loadSideFile(mtime time.Time) (*Entry, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, nil
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, &apperrors.CorruptCacheError{Path: c.path, Err: err}
	}
	if !e.SourceModTime.Equal(mtime) {
		return nil, nil
	}
	if e.Orders == nil {
		e.Orders = map[string][]models.OrderItemRecord{}
	}
	return &e, nil
}

func (c *Cache) rebuild(ctx context.Context, mtime time.Time) (*Entry, error) {
	start := time.Now()

	records, err := c.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	e := &Entry{
		SourceModTime: mtime,
		State:         serial.Scan(records),
		Orders:        make(map[string][]models.OrderItemRecord),
	}
	for _, rec := range records {
		key := textnorm.Normalize(rec.OrderNo)
		e.Orders[key] = append(e.Orders[key], rec)
	}

	if data, err := json.Marshal(e); err == nil {
		if err := os.WriteFile(c.path, data, 0o644); err != nil {
			c.logger.Warn("cache side file not written", zap.String("path", c.path), zap.Error(err))
		}
	}

	util.CacheRebuildsTotal.Inc()
	util.CacheRebuildLatency.Observe(time.Since(start).Seconds())
	c.logger.Info("cache rebuilt",
		zap.Int("rows", len(records)),
		zap.Int("orders", len(e.Orders)),
		zap.Time("source_mod_time", mtime))
	return e, nil
}

package rscript

import (
	"container/list"
	"context"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
	"github.com/couchcryptid/bloom-forecast-service/internal/observability"
)

// CachedPredictor wraps a Predictor with an in-memory LRU cache keyed by
// forecast ID. Entries remember the modification time of the network file
// they were computed from, so refitting a network in place invalidates them.
type CachedPredictor struct {
	inner   domain.Predictor
	cache   *resultCache
	metrics *observability.Metrics
}

// NewCachedPredictor creates a cache decorator holding up to maxEntries results.
func NewCachedPredictor(inner domain.Predictor, maxEntries int, metrics *observability.Metrics) *CachedPredictor {
	return &CachedPredictor{
		inner:   inner,
		cache:   newResultCache(maxEntries),
		metrics: metrics,
	}
}

// Predict returns a cached result for an identical request or calls through.
func (c *CachedPredictor) Predict(ctx context.Context, req domain.PredictionRequest) ([]domain.NodePrediction, error) {
	key := domain.ForecastID(req)
	fitted := modelStamp(req.ModelPath)
	if rows, ok := c.cache.get(key, fitted); ok {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return slices.Clone(rows), nil
	}
	c.metrics.CacheLookups.WithLabelValues("miss").Inc()

	rows, err := c.inner.Predict(ctx, req)
	if err != nil {
		return nil, err
	}
	// Empty results are not cached so a fixed model file is picked up on retry.
	if len(rows) > 0 {
		c.cache.put(key, fitted, slices.Clone(rows))
	}
	return rows, nil
}

// Ping forwards to the wrapped predictor when it supports health checks.
func (c *CachedPredictor) Ping(ctx context.Context) error {
	if p, ok := c.inner.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// modelStamp returns the modification time of the network file, or the zero
// time when it cannot be read (the engine call reports that case).
func modelStamp(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// resultCache is a thread-safe LRU of engine results. The front of order is
// the most recently used forecast.
type resultCache struct {
	maxEntries int
	mu         sync.Mutex
	byID       map[string]*list.Element
	order      *list.List
}

type cachedResult struct {
	forecastID string
	fitted     time.Time // network file mtime when the rows were computed
	rows       []domain.NodePrediction
}

func newResultCache(maxEntries int) *resultCache {
	return &resultCache{
		maxEntries: maxEntries,
		byID:       make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (c *resultCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// get returns the rows for forecastID if they were computed from a network
// file with the given mtime. Stale entries are dropped.
func (c *resultCache) get(forecastID string, fitted time.Time) ([]domain.NodePrediction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byID[forecastID]
	if !ok {
		return nil, false
	}
	r := el.Value.(*cachedResult)
	if !r.fitted.Equal(fitted) {
		c.remove(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return r.rows, true
}

func (c *resultCache) put(forecastID string, fitted time.Time, rows []domain.NodePrediction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries <= 0 {
		return
	}
	if el, ok := c.byID[forecastID]; ok {
		el.Value = &cachedResult{forecastID: forecastID, fitted: fitted, rows: rows}
		c.order.MoveToFront(el)
		return
	}

	c.byID[forecastID] = c.order.PushFront(&cachedResult{forecastID: forecastID, fitted: fitted, rows: rows})
	for c.order.Len() > c.maxEntries {
		c.remove(c.order.Back())
	}
}

func (c *resultCache) remove(el *list.Element) {
	delete(c.byID, el.Value.(*cachedResult).forecastID)
	c.order.Remove(el)
}

package mapbox

import (
	"container/list"
	"context"
	"strings"
	"sync"

	"github.com/couchcryptid/epi-data-etl/internal/domain"
	"github.com/couchcryptid/epi-data-etl/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU of matched results.
// Queries differing only in case or spacing share an entry.
type CachedGeocoder struct {
	inner domain.Geocoder
	cache *resultCache
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner: inner,
		cache: newResultCache(maxEntries, metrics),
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	if result, ok := c.cache.lookup(query); ok {
		return result, nil
	}

	result, err := c.inner.ForwardGeocode(ctx, query)
	if err != nil {
		return result, err
	}
	// A miss is not stored; the provider may know the place on a later run.
	if result.Found() {
		c.cache.store(query, result)
	}
	return result, nil
}

// cacheKey folds case and collapses whitespace.
func cacheKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

type cachedResult struct {
	key    string
	result domain.GeocodingResult
}

// resultCache is a bounded, mutex-guarded LRU. The front of recent is the most
// recently used entry. Every lookup is counted as a hit or a miss.
type resultCache struct {
	mu      sync.Mutex
	limit   int
	recent  *list.List
	byKey   map[string]*list.Element
	metrics *observability.Metrics
}

func newResultCache(limit int, metrics *observability.Metrics) *resultCache {
	return &resultCache{
		limit:   max(limit, 1),
		recent:  list.New(),
		byKey:   make(map[string]*list.Element),
		metrics: metrics,
	}
}

func (c *resultCache) lookup(query string) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byKey[cacheKey(query)]
	if !ok {
		c.metrics.GeocodeCache.WithLabelValues("miss").Inc()
		return domain.GeocodingResult{}, false
	}
	c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
	c.recent.MoveToFront(el)
	return el.Value.(*cachedResult).result, true
}

func (c *resultCache) store(query string, result domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query)
	if el, ok := c.byKey[key]; ok {
		el.Value.(*cachedResult).result = result
		c.recent.MoveToFront(el)
		return
	}
	c.byKey[key] = c.recent.PushFront(&cachedResult{key: key, result: result})

	for c.recent.Len() > c.limit {
		oldest := c.recent.Back()
		c.recent.Remove(oldest)
		delete(c.byKey, oldest.Value.(*cachedResult).key)
	}
}

func (c *resultCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recent.Len()
}

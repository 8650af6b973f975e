// Package aggregate owns the run-scoped location cache: it deduplicates
// locations by key, records the children created against each key and writes
// the completed parent/child graph to a sink once all records are processed.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/epi-data-etl/internal/domain"
)

// ErrFlushed is returned when the cache is used after Flush or Close.
var ErrFlushed = errors.New("location cache already flushed")

// Sink persists items. Implementations assign identifiers to new items.
type Sink interface {
	NewIdentifier(className string) string
	Store(ctx context.Context, item domain.Item) error
}

// Cache is created once per run and discarded after Flush. It is not safe for
// concurrent use; runs are single-threaded.
type Cache struct {
	locations map[string]*domain.Location
	children  map[string][]string
	order     []string
	flushed   bool
}

// New creates an empty cache for one run.
func New() *Cache {
	return &Cache{
		locations: make(map[string]*domain.Location),
		children:  make(map[string][]string),
	}
}

// GetOrCreate returns the cached location for key, calling build only when the
// key has not been seen before in this run.
func (c *Cache) GetOrCreate(key string, build func() *domain.Location) (*domain.Location, error) {
	if c.flushed {
		return nil, ErrFlushed
	}
	if loc, ok := c.locations[key]; ok {
		return loc, nil
	}
	loc := build()
	loc.Key = key
	c.locations[key] = loc
	c.order = append(c.order, key)
	return loc, nil
}

// RecordChild appends a child identifier to the list kept for key.
// The list preserves creation order.
func (c *Cache) RecordChild(key, childID string) error {
	if c.flushed {
		return ErrFlushed
	}
	c.children[key] = append(c.children[key], childID)
	return nil
}

// Flush attaches each location's children under collection and stores the
// locations in first-seen order. It must be called once, after the last record.
// A sink failure aborts the flush; locations stored before it are not rolled back.
func (c *Cache) Flush(ctx context.Context, sink Sink, collection string) (int, error) {
	if c.flushed {
		return 0, ErrFlushed
	}
	c.flushed = true

	for i, key := range c.order {
		loc := c.locations[key]
		if err := sink.Store(ctx, loc.Item(collection, c.children[key])); err != nil {
			return i, fmt.Errorf("store location %s: %w", key, err)
		}
	}
	return len(c.order), nil
}

// Close releases the cached graph. The cache cannot be used afterwards.
func (c *Cache) Close() {
	c.flushed = true
	c.locations = nil
	c.children = nil
	c.order = nil
}

// Len returns the number of distinct locations seen so far.
func (c *Cache) Len() int { return len(c.order) }

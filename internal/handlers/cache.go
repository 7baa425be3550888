package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/handsomefox/tv-discover/internal/tmdb"
)

const optionsTTL = 24 * time.Hour

// listCache holds one upstream list for optionsTTL. Entries belong to the
// upstream client that loaded them, and a load that straddles a reset is not
// stored. The zero value is empty.
type listCache[T any] struct {
	mu      sync.RWMutex
	items   []T
	owner   Upstream
	fetched time.Time
	gen     uint64
}

type (
	genreCache    = listCache[tmdb.Genre]
	languageCache = listCache[tmdb.Language]
)

func (c *listCache[T]) get(ctx context.Context, owner Upstream, now time.Time, load func(context.Context) ([]T, error)) ([]T, error) {
	c.mu.RLock()
	if c.items != nil && c.owner == owner && now.Sub(c.fetched) < optionsTTL {
		items := c.items
		c.mu.RUnlock()
		return items, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	items, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}

	c.mu.Lock()
	if c.gen == gen {
		c.items = items
		c.owner = owner
		c.fetched = now
	}
	c.mu.Unlock()
	return items, nil
}

func (c *listCache[T]) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.items = nil
	c.owner = nil
	c.fetched = time.Time{}
}

// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/wneessen/geotrail/internal/geo"
)

// coordPrecision is the precision used to quantize coordinates (0.001 degrees ≈ 110 m)
const coordPrecision = 1e-3

type cacheKey struct {
	Provider string
	LatQ     int32
	LonQ     int32
}

type cacheEntry struct {
	Place  Place
	Expiry time.Time
}

// Cache wraps a Geocoder and keeps its results for positions in the same ~110 m cell. Places
// that were not found are kept for the shorter ttlMiss.
type Cache struct {
	coder   Geocoder
	ttlHit  time.Duration
	ttlMiss time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	cache map[cacheKey]cacheEntry
}

func NewCache(coder Geocoder, ttlHit, ttlMiss time.Duration) *Cache {
	return &Cache{
		coder:   coder,
		ttlHit:  ttlHit,
		ttlMiss: ttlMiss,
		now:     time.Now,
		cache:   make(map[cacheKey]cacheEntry),
	}
}

func (c *Cache) Name() string {
	return "geocoder cache using " + c.coder.Name()
}

func (c *Cache) Reverse(ctx context.Context, pos geo.GeoPoint) (Place, error) {
	key := newKey(c.coder.Name(), pos)

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.Expiry) {
		place := entry.Place
		place.CacheHit = true
		return place, nil
	}

	place, err := c.coder.Reverse(ctx, pos)
	if err != nil {
		return place, err
	}

	ttl := c.ttlHit
	if !place.Found {
		ttl = c.ttlMiss
	}
	if ttl <= 0 {
		return place, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{
		Place:  place,
		Expiry: c.now().Add(ttl),
	}
	c.evictExpired()

	return place, nil
}

// evictExpired drops all expired entries. The caller must hold the write lock.
func (c *Cache) evictExpired() {
	now := c.now()
	for key, entry := range c.cache {
		if !now.Before(entry.Expiry) {
			delete(c.cache, key)
		}
	}
}

func quantizeCoord(val float64) int32 {
	return int32(math.Round(val / coordPrecision))
}

func newKey(provider string, pos geo.GeoPoint) cacheKey {
	return cacheKey{
		Provider: provider,
		LatQ:     quantizeCoord(pos.Lat),
		LonQ:     quantizeCoord(pos.Lon),
	}
}

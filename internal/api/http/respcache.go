package http

import (
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// ResponseCache holds rendered response payloads keyed by request parameters,
// each entry valid for a fixed ttl.
type ResponseCache struct {
	cache *lru.Cache
	ttl   time.Duration
}

type responseCacheEntry struct {
	created     time.Time
	payload     []byte
	lastChanged time.Time
}

// NewResponseCache creates new ResponseCache instance.
func NewResponseCache(size int, ttl time.Duration) (*ResponseCache, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be greater than 0")
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache for responses: %w", err)
	}

	return &ResponseCache{
		cache: c,
		ttl:   ttl,
	}, nil
}

// Get returns a cached payload and the organization's last-change timestamp
// recorded with it.
func (c *ResponseCache) Get(org string, perPage int, page int) ([]byte, time.Time, bool) {
	v, ok := c.cache.Get(c.key(org, perPage, page))
	if !ok {
		return nil, time.Time{}, false
	}
	entry := v.(responseCacheEntry)
	if !entry.created.Add(c.ttl).After(time.Now()) {
		return nil, time.Time{}, false
	}

	return entry.payload, entry.lastChanged, true
}

// Set stores a payload with the organization's last-change timestamp.
func (c *ResponseCache) Set(org string, perPage int, page int, payload []byte, lastChanged time.Time) {
	c.cache.Add(c.key(org, perPage, page), responseCacheEntry{
		created:     time.Now(),
		payload:     payload,
		lastChanged: lastChanged,
	})
}

func (c *ResponseCache) key(org string, perPage int, page int) string {
	return fmt.Sprintf("%s&per_page=%d&page=%d", org, perPage, page)
}

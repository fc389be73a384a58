package ground

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoises a Grounder. Concurrent requests for the same text share one
// upstream call. Failures are not cached.
type Cache struct {
	next Grounder

	mu    sync.RWMutex
	terms map[string][]Term
	group singleflight.Group
}

func NewCache(next Grounder) *Cache {
	return &Cache{next: next, terms: make(map[string][]Term)}
}

func (c *Cache) Ground(ctx context.Context, text string) ([]Term, error) {
	key := strings.TrimSpace(text)

	c.mu.RLock()
	if cached, ok := c.terms[key]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		if cached, ok := c.terms[key]; ok {
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()

		terms, err := c.next.Ground(ctx, key)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.terms[key] = terms
		c.mu.Unlock()
		return terms, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Term), nil
}

// Len returns the number of cached texts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.terms)
}

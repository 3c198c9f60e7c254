package conflict

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/BalansCollective/weavemesh-git/internal/models"
)

// resultCache holds detection results per canonical repository path and
// evicts the least recently used entry when full.
type resultCache struct {
	lru *lru.Cache[string, []models.Conflict]
}

func newResultCache(size int) *resultCache {
	if size < 1 {
		size = 1
	}
	// New only fails for a non-positive size.
	c, _ := lru.New[string, []models.Conflict](size)
	return &resultCache{lru: c}
}

func (c *resultCache) get(key string) ([]models.Conflict, bool) { return c.lru.Get(key) }

func (c *resultCache) put(key string, conflicts []models.Conflict) bool {
	return c.lru.Add(key, conflicts)
}

func (c *resultCache) remove(key string) { c.lru.Remove(key) }

func (c *resultCache) contains(key string) bool { return c.lru.Contains(key) }

func (c *resultCache) len() int { return c.lru.Len() }

// each visits every entry without touching recency.
func (c *resultCache) each(fn func(key string, conflicts []models.Conflict)) {
	for _, k := range c.lru.Keys() {
		if v, ok := c.lru.Peek(k); ok {
			fn(k, v)
		}
	}
}

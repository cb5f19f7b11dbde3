package web

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"gistblog/internal/metrics"
)

// lruCache memoises expensive renders. Keys embed the content hash, so entries
// never need invalidation; stale ones simply age out.
type lruCache[V any] struct {
	name  string
	items *lru.Cache[string, V]
	group singleflight.Group
}

func newLRUCache[V any](name string, size int) (*lruCache[V], error) {
	items, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("create %s cache: %w", name, err)
	}
	return &lruCache[V]{name: name, items: items}, nil
}

// getOrCreate returns the cached value for key, calling create at most once per
// key across concurrent callers when it is missing.
func (c *lruCache[V]) getOrCreate(key string, create func() (V, error)) (V, error) {
	if v, ok := c.items.Get(key); ok {
		metrics.RecordCacheLookup(c.name, true)
		return v, nil
	}
	metrics.RecordCacheLookup(c.name, false)

	res, err, _ := c.group.Do(key, func() (any, error) {
		v, err := create()
		if err != nil {
			return nil, err
		}
		c.items.Add(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

func (c *lruCache[V]) len() int {
	return c.items.Len()
}

package cache

import (
	"strings"
	"sync"
	"time"
)

// Map provides a type-safe in-memory key-value store with optional expiry
type Map[K comparable, V any] struct {
	data   map[K]*item[V]
	ttl    time.Duration
	now    func() time.Time
	pruned time.Time
	sync.RWMutex
}

type item[V any] struct {
	value   *V
	expires time.Time
}

// NewMap creates a new type-safe cache instance; ttl <= 0 keeps entries until deleted
func NewMap[K comparable, V any](ttl time.Duration) *Map[K, V] {
	return &Map[K, V]{
		data: make(map[K]*item[V]),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get retrieves a live value by key, with existence check
func (c *Map[K, V]) Get(key K) (*V, bool) {
	c.RLock()
	defer c.RUnlock()
	v, ok := c.data[key]
	if !ok || c.expired(v) {
		return nil, false
	}
	return v.value, true
}

// Set stores a value with the given key; expired entries are swept at most once per ttl
func (c *Map[K, V]) Set(key K, value *V) {
	c.Lock()
	defer c.Unlock()
	entry := &item[V]{value: value}
	if c.ttl > 0 {
		now := c.now()
		if now.Sub(c.pruned) >= c.ttl {
			c.prune()
			c.pruned = now
		}
		entry.expires = now.Add(c.ttl)
	}
	c.data[key] = entry
}

// Delete removes a key-value pair
func (c *Map[K, V]) Delete(key K) {
	c.Lock()
	defer c.Unlock()
	delete(c.data, key)
}

func (c *Map[K, V]) prune() {
	for k, v := range c.data {
		if c.expired(v) {
			delete(c.data, k)
		}
	}
}

func (c *Map[K, V]) expired(v *item[V]) bool {
	return !v.expires.IsZero() && !c.now().Before(v.expires)
}

// DeletePrefix removes every string key equal to prefix or nested under prefix + "/"
func DeletePrefix[V any](c *Map[string, V], prefix string) {
	c.Lock()
	defer c.Unlock()
	for k := range c.data {
		if k == prefix || strings.HasPrefix(k, prefix+"/") || prefix == "/" {
			delete(c.data, k)
		}
	}
}

package mcache

import (
	"container/list"
	"fmt"
	"sync"
)

// lru is an LRU cache for column metadata
type lru[V any] struct {
	config     *LRUConfig
	lock       sync.Mutex
	entries    map[uint64]*list.Element
	recentList *list.List // back is oldest, front is newest
	hits       uint64
	misses     uint64
}

type cachedEntry[V any] struct {
	key   uint64
	value V
}

// LRUConfig configures an LRU Cache
type LRUConfig struct {
	Size int
}

// NewLRU produces an LRU Cache
func NewLRU[V any](config *LRUConfig) (Cache[V], error) {
	if config == nil || config.Size < 1 {
		return nil, fmt.Errorf("LRUConfig.Size must be at least 1")
	}
	return &lru[V]{
		config:     config,
		entries:    make(map[uint64]*list.Element),
		recentList: list.New(),
	}, nil
}

func (c *lru[V]) Add(key uint64, value V) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if e, ok := c.entries[key]; ok {
		e.Value.(*cachedEntry[V]).value = value
		c.recentList.MoveToFront(e)
		return
	}
	c.entries[key] = c.recentList.PushFront(&cachedEntry[V]{key: key, value: value})
	for c.recentList.Len() > c.config.Size {
		oldest := c.recentList.Back()
		c.recentList.Remove(oldest)
		delete(c.entries, oldest.Value.(*cachedEntry[V]).key)
	}
}

func (c *lru[V]) Get(key uint64) (value V, ok bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return value, false
	}
	c.hits++
	c.recentList.MoveToFront(e)
	return e.Value.(*cachedEntry[V]).value, true
}

func (c *lru[V]) Remove(key uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if e, ok := c.entries[key]; ok {
		c.recentList.Remove(e)
		delete(c.entries, key)
	}
}

func (c *lru[V]) Purge() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.entries = make(map[uint64]*list.Element)
	c.recentList.Init()
}

func (c *lru[V]) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.recentList.Len()
}

func (c *lru[V]) Stats() (hits, misses uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.hits, c.misses
}

package cache

import (
	lru "github.com/hashicorp/golang-lru"
)

// LRU a LRU cache extends golang-lru.
type LRU struct {
	*lru.Cache

	// Stats tracks hit/miss counts across every Get against this cache.
	Stats Stats
}

// NewLRU create a LRU cache instance.
func NewLRU(maxSize int) *LRU {
	if maxSize < 16 {
		maxSize = 16
	}
	cache, _ := lru.New(maxSize)
	return &LRU{Cache: cache}
}

// Get looks up key, recording the outcome in Stats.
func (l *LRU) Get(key interface{}) (interface{}, bool) {
	v, ok := l.Cache.Get(key)
	if ok {
		l.Stats.Hit()
	} else {
		l.Stats.Miss()
	}
	return v, ok
}

// Loader defines loader to load value.
type Loader func(key interface{}) (interface{}, error)

// GetOrLoad first try to get from cache, do load if missed.
func (l *LRU) GetOrLoad(key interface{}, loader Loader) (interface{}, error) {
	if v, ok := l.Get(key); ok {
		return v, nil
	}
	v, err := loader(key)
	if err != nil {
		return nil, err
	}

	l.Add(key, v)
	return v, nil
}

package imports

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// SharedCache caches parsed (pre-interpolation) fragment trees across
// builds that share an import tree. Loads for the same canonical key are
// deduplicated with singleflight, so concurrent builds hitting the same
// fragment read and parse it once.
//
// Interpolated and merged trees are deliberately not shared: environment
// state and resolution stacks are per-build.
type SharedCache struct {
	group singleflight.Group

	mu    sync.RWMutex
	frags map[string]map[string]any
}

// NewSharedCache creates an empty shared fragment cache.
func NewSharedCache() *SharedCache {
	return &SharedCache{frags: make(map[string]map[string]any)}
}

// getOrLoad returns the cached tree for key, loading it with load on a
// miss. The returned tree is shared; callers must copy before mutating.
func (c *SharedCache) getOrLoad(key string, load func() (map[string]any, error)) (map[string]any, error) {
	c.mu.RLock()
	tree, ok := c.frags[key]
	c.mu.RUnlock()
	if ok {
		return tree, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		tree, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.frags[key] = tree
		c.mu.Unlock()
		return tree, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// Invalidate drops a fragment from the cache.
func (c *SharedCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.frags, key)
}

// Len returns the number of cached fragments.
func (c *SharedCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.frags)
}

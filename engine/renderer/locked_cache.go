package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/resource_cache"
)

// lockedCache is the view of a renderer cache handed out by the cache accessors. Every call takes the
// renderer's mutex, so changes made through it are serialized with frame rendering and resource creation.
type lockedCache[T any] struct {
	mu    *sync.Mutex
	cache resource_cache.ResourceCache[T]
}

var _ resource_cache.ResourceCache[any] = &lockedCache[any]{}

func (c *lockedCache[T]) Get(name string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Get(name)
}

func (c *lockedCache[T]) Set(name string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Set(name, value)
}

// GetOrCreate holds the renderer lock while create runs; create must not call back into the renderer.
func (c *lockedCache[T]) GetOrCreate(name string, create func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.GetOrCreate(name, create)
}

func (c *lockedCache[T]) Delete(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Delete(name)
}

func (c *lockedCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

func (c *lockedCache[T]) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Names()
}

func (c *lockedCache[T]) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Release()
}

package resource_cache

import (
	"reflect"
	"slices"
)

// Releaser is implemented by GPU-resident resources that must free their device-side objects when dropped.
type Releaser interface {
	Release()
}

// resourceCache is the implementation of the ResourceCache interface.
type resourceCache[T any] struct {
	entries  map[string]T
	teardown func(name string, value T)
}

// ResourceCache owns GPU-resident resources keyed by a stable name. At most one instance exists per name:
// Set replaces rather than merges, and the replaced instance is torn down before Set returns.
// There is no eviction. The cache is not safe for concurrent use; it must have a single logical owner.
type ResourceCache[T any] interface {
	// Get retrieves the cached instance for name. It has no side effects.
	//
	// Parameters:
	//   - name: the unique name of the resource
	//
	// Returns:
	//   - T: the cached instance, or the zero value if absent
	//   - bool: true if an instance is cached under name
	Get(name string) (T, bool)

	// Set inserts or replaces the instance for name, taking ownership of value.
	// A previously cached instance is torn down first unless it is the same instance as value.
	//
	// Parameters:
	//   - name: the unique name of the resource
	//   - value: the instance to cache
	Set(name string, value T)

	// GetOrCreate returns the cached instance for name, constructing and caching it on a miss.
	// A construction error leaves the cache untouched.
	//
	// Parameters:
	//   - name: the unique name of the resource
	//   - create: the constructor invoked only when name is absent
	//
	// Returns:
	//   - T: the cached instance
	//   - error: the constructor's error, if it was invoked and failed
	GetOrCreate(name string, create func() (T, error)) (T, error)

	// Delete removes the instance cached under name and tears it down.
	//
	// Parameters:
	//   - name: the unique name of the resource
	//
	// Returns:
	//   - bool: true if an instance was cached under name
	Delete(name string) bool

	// Len returns the number of cached instances.
	Len() int

	// Names returns the cached names in sorted order.
	Names() []string

	// Release tears down every cached instance and empties the cache.
	// It is called when the owning device shuts down.
	Release()
}

var _ ResourceCache[Releaser] = &resourceCache[Releaser]{}

// NewResourceCache creates an empty ResourceCache. Instances implementing Releaser are released on
// replacement unless a custom teardown is supplied with WithTeardown.
//
// Parameters:
//   - options: variadic list of ResourceCacheBuilderOption functions to configure the cache
//
// Returns:
//   - ResourceCache[T]: the new cache
func NewResourceCache[T any](options ...ResourceCacheBuilderOption[T]) ResourceCache[T] {
	c := &resourceCache[T]{
		entries:  make(map[string]T),
		teardown: releaseTeardown[T],
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *resourceCache[T]) Get(name string) (T, bool) {
	v, ok := c.entries[name]
	return v, ok
}

func (c *resourceCache[T]) Set(name string, value T) {
	if old, ok := c.entries[name]; ok && !sameInstance(old, value) {
		c.teardown(name, old)
	}
	c.entries[name] = value
}

func (c *resourceCache[T]) GetOrCreate(name string, create func() (T, error)) (T, error) {
	if v, ok := c.entries[name]; ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(name, v)
	return c.entries[name], nil
}

func (c *resourceCache[T]) Delete(name string) bool {
	v, ok := c.entries[name]
	if !ok {
		return false
	}
	delete(c.entries, name)
	c.teardown(name, v)
	return true
}

func (c *resourceCache[T]) Len() int {
	return len(c.entries)
}

func (c *resourceCache[T]) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *resourceCache[T]) Release() {
	for _, name := range c.Names() {
		c.teardown(name, c.entries[name])
	}
	clear(c.entries)
}

// releaseTeardown is the default teardown, calling Release on values that implement Releaser.
func releaseTeardown[T any](_ string, value T) {
	if r, ok := any(value).(Releaser); ok {
		r.Release()
	}
}

// sameInstance reports whether a and b are the identical instance. Values of non-comparable
// dynamic types are never considered identical.
func sameInstance[T any](a, b T) bool {
	av, bv := any(a), any(b)
	if av == nil || bv == nil {
		return av == nil && bv == nil
	}
	if reflect.TypeOf(av) != reflect.TypeOf(bv) || !reflect.TypeOf(av).Comparable() {
		return false
	}
	return av == bv
}

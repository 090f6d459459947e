package resource_cache

// ResourceCacheBuilderOption is a functional option applied to a ResourceCache during construction via NewResourceCache.
type ResourceCacheBuilderOption[T any] func(*resourceCache[T])

// WithTeardown replaces the default Release-based teardown with a custom function.
// The function runs for an instance when it is replaced by Set or when the cache is released.
//
// Parameters:
//   - teardown: the function receiving the name and the instance being dropped
//
// Returns:
//   - ResourceCacheBuilderOption[T]: a function that applies the teardown option to a cache
func WithTeardown[T any](teardown func(name string, value T)) ResourceCacheBuilderOption[T] {
	return func(c *resourceCache[T]) {
		if teardown == nil {
			teardown = func(string, T) {}
		}
		c.teardown = teardown
	}
}

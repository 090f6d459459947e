package texture

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/cogentcore/webgpu/wgpu"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SamplerDevice is the subset of *wgpu.Device needed to create samplers.
type SamplerDevice interface {
	CreateSampler(descriptor *wgpu.SamplerDescriptor) (*wgpu.Sampler, error)
}

var _ SamplerDevice = &wgpu.Device{}

// DefaultSamplerCacheSize is the number of distinct samplers kept alive when no size is configured.
const DefaultSamplerCacheSize = 16

// SamplerCache creates samplers once per distinct configuration and keeps the most recently used ones.
// Samplers returned by Get are owned by the cache and must not be released by the caller.
type SamplerCache struct {
	device SamplerDevice
	cache  *lru.Cache[wgpu.SamplerDescriptor, *wgpu.Sampler]
}

// NewSamplerCache creates a SamplerCache holding at most size samplers. Evicted samplers are released.
//
// Parameters:
//   - device: creates the samplers
//   - size: the capacity, DefaultSamplerCacheSize when not positive
//
// Returns:
//   - *SamplerCache: the cache
//   - error: an error if the underlying LRU cannot be created
func NewSamplerCache(device SamplerDevice, size int) (*SamplerCache, error) {
	if size <= 0 {
		size = DefaultSamplerCacheSize
	}
	cache, err := lru.NewWithEvict[wgpu.SamplerDescriptor, *wgpu.Sampler](size, releaseSamplerOnEvict)
	if err != nil {
		return nil, fmt.Errorf("create sampler cache: %w", err)
	}
	return &SamplerCache{device: device, cache: cache}, nil
}

// Get returns a sampler for the staging configuration, creating it on first use.
//
// Parameters:
//   - data: the sampler configuration; unset fields take the common.SamplerStagingData defaults
//
// Returns:
//   - *wgpu.Sampler: the cached sampler
//   - error: the wrapped device error
func (c *SamplerCache) Get(data common.SamplerStagingData) (*wgpu.Sampler, error) {
	desc := data.Descriptor("Cached Sampler")
	if s, ok := c.cache.Get(desc); ok {
		return s, nil
	}
	s, err := c.device.CreateSampler(&desc)
	if err != nil {
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	c.cache.Add(desc, s)
	return s, nil
}

// Len returns the number of cached samplers.
func (c *SamplerCache) Len() int {
	return c.cache.Len()
}

// Release releases every cached sampler.
func (c *SamplerCache) Release() {
	c.cache.Purge()
}

func releaseSamplerOnEvict(_ wgpu.SamplerDescriptor, s *wgpu.Sampler) {
	if s != nil {
		s.Release()
	}
}

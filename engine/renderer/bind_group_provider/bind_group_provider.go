package bind_group_provider

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
)

// Device is the subset of *wgpu.Device needed to create bind groups.
type Device interface {
	CreateBindGroup(descriptor *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error)
}

var _ Device = &wgpu.Device{}

var (
	// ErrNoLayout is returned when building a provider that was not given a bind group layout.
	ErrNoLayout = errors.New("bind group provider has no layout")

	// ErrNoEntries is returned when building a provider without any resources.
	ErrNoEntries = errors.New("bind group provider has no resources")
)

// bufferBinding is a buffer range bound at one binding index.
type bufferBinding struct {
	buffer *wgpu.Buffer
	offset uint64
	size   uint64
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	layout *wgpu.BindGroupLayout

	// The following resources are borrowed: the provider binds them but never releases them.

	buffers      map[int]bufferBinding
	textureViews map[int]*wgpu.TextureView
	samplers     map[int]*wgpu.Sampler

	// bindGroup is owned by the provider and released with it.
	bindGroup *wgpu.BindGroup
}

// BindGroupProvider collects the GPU resources bound at each binding index of one bind group layout and
// builds the bind group from them. The provider owns the bind group it builds. Buffers, texture views and
// samplers are borrowed and must outlive the bind group.
//
// Usage pattern:
//  1. Obtain the layout from the pipeline the bind group will be used with
//  2. Create a provider with the layout and one option per binding
//  3. Call Build once with the device
//  4. Pass BindGroup() to the draw commands that need it
//  5. Release the provider after the last frame that draws with it
type BindGroupProvider interface {
	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroupLayout returns the layout the bind group is built against.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// Entries returns the bind group entries sorted by binding index.
	//
	// Returns:
	//   - []wgpu.BindGroupEntry: one entry per configured binding
	Entries() []wgpu.BindGroupEntry

	// Build creates the bind group on the device. Building again replaces and releases the previous bind group.
	//
	// Parameters:
	//   - device: the device that creates the bind group
	//
	// Returns:
	//   - *wgpu.BindGroup: the built bind group
	//   - error: ErrNoLayout, ErrNoEntries, a duplicate binding error or the wrapped device error
	Build(device Device) (*wgpu.BindGroup, error)

	// BindGroup returns the built bind group, or nil before Build succeeds.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// Buffer returns the buffer bound at binding, or nil if none.
	Buffer(binding int) *wgpu.Buffer

	// TextureView returns the texture view bound at binding, or nil if none.
	TextureView(binding int) *wgpu.TextureView

	// Sampler returns the sampler bound at binding, or nil if none.
	Sampler(binding int) *wgpu.Sampler

	// Release releases the bind group. Borrowed resources are left alone.
	Release()
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a provider for a bind group with the given layout.
//
// Parameters:
//   - label: the debug label of the bind group
//   - layout: the layout the bind group must match, usually Pipeline.BindGroupLayout(group)
//   - options: one option per bound resource
//
// Returns:
//   - BindGroupProvider: the unbuilt provider
func NewBindGroupProvider(label string, layout *wgpu.BindGroupLayout, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		layout:       layout,
		buffers:      make(map[int]bufferBinding),
		textureViews: make(map[int]*wgpu.TextureView),
		samplers:     make(map[int]*wgpu.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.layout
}

func (p *bindGroupProvider) Entries() []wgpu.BindGroupEntry {
	entries := make([]wgpu.BindGroupEntry, 0, len(p.buffers)+len(p.textureViews)+len(p.samplers))
	for binding, b := range p.buffers {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(binding),
			Buffer:  b.buffer,
			Offset:  b.offset,
			Size:    b.size,
		})
	}
	for binding, view := range p.textureViews {
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(binding), TextureView: view})
	}
	for binding, sampler := range p.samplers {
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(binding), Sampler: sampler})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Binding < entries[j].Binding
	})
	return entries
}

func (p *bindGroupProvider) Build(device Device) (*wgpu.BindGroup, error) {
	if p.layout == nil {
		return nil, fmt.Errorf("%s: %w", p.label, ErrNoLayout)
	}
	entries := p.Entries()
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", p.label, ErrNoEntries)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Binding == entries[i-1].Binding {
			return nil, fmt.Errorf("%s: binding %d has more than one resource", p.label, entries[i].Binding)
		}
	}

	bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.label,
		Layout:  p.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %s: %w", p.label, err)
	}
	p.Release()
	p.bindGroup = bg
	return bg, nil
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding].buffer
}

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) Sampler(binding int) *wgpu.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) Release() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
}

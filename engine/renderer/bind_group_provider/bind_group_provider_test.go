package bind_group_provider

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	qt "github.com/frankban/quicktest"
)

type fakeDevice struct {
	descriptors []*wgpu.BindGroupDescriptor
	err         error
}

func (d *fakeDevice) CreateBindGroup(desc *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	d.descriptors = append(d.descriptors, desc)
	return nil, d.err
}

func TestBuildSortsEntries(t *testing.T) {
	c := qt.New(t)
	layout := &wgpu.BindGroupLayout{}
	view := &wgpu.TextureView{}
	sampler := &wgpu.Sampler{}
	buf := &wgpu.Buffer{}

	p := NewBindGroupProvider("grid", layout,
		WithSampler(1, sampler),
		WithBuffer(2, buf, 0, 64),
		WithTextureView(0, view),
	)
	device := &fakeDevice{}

	_, err := p.Build(device)
	c.Assert(err, qt.IsNil)
	c.Assert(device.descriptors, qt.HasLen, 1)

	desc := device.descriptors[0]
	c.Assert(desc.Label, qt.Equals, "grid")
	c.Assert(desc.Layout, qt.Equals, layout)
	c.Assert(desc.Entries, qt.HasLen, 3)
	c.Assert(desc.Entries[0].TextureView, qt.Equals, view)
	c.Assert(desc.Entries[1].Sampler, qt.Equals, sampler)
	c.Assert(desc.Entries[2].Buffer, qt.Equals, buf)
	c.Assert(desc.Entries[2].Size, qt.Equals, uint64(64))

	c.Assert(p.TextureView(0), qt.Equals, view)
	c.Assert(p.Sampler(1), qt.Equals, sampler)
	c.Assert(p.Buffer(2), qt.Equals, buf)
	c.Assert(p.Buffer(7), qt.IsNil)
	p.Release()
}

func TestWithLayoutEntries(t *testing.T) {
	c := qt.New(t)
	view := &wgpu.TextureView{}
	sampler := &wgpu.Sampler{}
	desc := wgpu.BindGroupLayoutDescriptor{Entries: []wgpu.BindGroupLayoutEntry{
		{Binding: 0, Texture: wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat}},
		{Binding: 1, Sampler: wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}},
		{Binding: 2, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}},
	}}

	p := NewBindGroupProvider("auto", &wgpu.BindGroupLayout{}, WithLayoutEntries(desc, view, sampler))
	entries := p.Entries()
	c.Assert(entries, qt.HasLen, 2)
	c.Assert(entries[0].TextureView, qt.Equals, view)
	c.Assert(entries[1].Sampler, qt.Equals, sampler)
}

func TestBuildErrors(t *testing.T) {
	c := qt.New(t)
	device := &fakeDevice{}

	_, err := NewBindGroupProvider("no-layout", nil, WithTextureView(0, &wgpu.TextureView{})).Build(device)
	c.Assert(err, qt.ErrorIs, ErrNoLayout)

	_, err = NewBindGroupProvider("empty", &wgpu.BindGroupLayout{}).Build(device)
	c.Assert(err, qt.ErrorIs, ErrNoEntries)

	_, err = NewBindGroupProvider("dup", &wgpu.BindGroupLayout{},
		WithTextureView(0, &wgpu.TextureView{}),
		WithSampler(0, &wgpu.Sampler{}),
	).Build(device)
	c.Assert(err, qt.ErrorMatches, "dup: binding 0 has more than one resource")
	c.Assert(device.descriptors, qt.HasLen, 0)

	boom := errors.New("layout mismatch")
	p := NewBindGroupProvider("rejected", &wgpu.BindGroupLayout{}, WithTextureView(0, &wgpu.TextureView{}))
	_, err = p.Build(&fakeDevice{err: boom})
	c.Assert(err, qt.ErrorIs, boom)
	c.Assert(p.BindGroup(), qt.IsNil)
}

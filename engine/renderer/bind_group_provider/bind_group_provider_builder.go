package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBuffer binds a range of a buffer at a binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to bind
//   - offset: the byte offset of the bound range
//   - size: the byte size of the bound range, wgpu.WholeSize for the rest of the buffer
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf *wgpu.Buffer, offset, size uint64) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = bufferBinding{buffer: buf, offset: offset, size: size}
	}
}

// WithTextureView binds a texture view at a binding index.
//
// Parameters:
//   - binding: the binding index for this texture view
//   - view: the view to bind
//
// Returns:
//   - BindGroupProviderOption: a function that sets the texture view for the specified binding
func WithTextureView(binding int, view *wgpu.TextureView) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.textureViews[binding] = view
	}
}

// WithSampler binds a sampler at a binding index.
//
// Parameters:
//   - binding: the binding index for this sampler
//   - sampler: the sampler to bind
//
// Returns:
//   - BindGroupProviderOption: a function that sets the sampler for the specified binding
func WithSampler(binding int, sampler *wgpu.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.samplers[binding] = sampler
	}
}

// WithLayoutEntries binds a texture view and a sampler to every texture and sampler entry of a layout
// descriptor. Buffer entries are left for WithBuffer.
//
// Parameters:
//   - desc: the layout descriptor parsed from the shader
//   - view: the view bound to each texture entry
//   - sampler: the sampler bound to each sampler entry
//
// Returns:
//   - BindGroupProviderOption: a function that sets the matching bindings
func WithLayoutEntries(desc wgpu.BindGroupLayoutDescriptor, view *wgpu.TextureView, sampler *wgpu.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		for _, e := range desc.Entries {
			switch {
			case e.Texture.SampleType != 0:
				p.textureViews[int(e.Binding)] = view
			case e.Sampler.Type != 0:
				p.samplers[int(e.Binding)] = sampler
			}
		}
	}
}

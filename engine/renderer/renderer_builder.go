package renderer

import (
	log "github.com/sirupsen/logrus"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithLogger sets the logger the renderer reports frame outcomes and resource creation to.
// The default is the logrus standard logger.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(logger log.FieldLogger) RendererBuilderOption {
	return func(r *renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBackend injects an already initialized backend instead of creating a WebGPU device.
//
// Parameters:
//   - backend: the backend to render with; the renderer takes ownership of it
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackend(backend RendererBackend) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = backend
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithShaderValidation toggles running shaders through naga when they are loaded. Enabled by default.
//
// Parameters:
//   - validate: false to skip validation and rely on the device alone
//
// Returns:
//   - RendererBuilderOption: a function that applies the validation option to a renderer
func WithShaderValidation(validate bool) RendererBuilderOption {
	return func(r *renderer) {
		r.shaderValidation = validate
	}
}

// WithTextureWorkers sets how many image files LoadTextures decodes at once. Defaults to one per CPU.
//
// Parameters:
//   - n: the number of decode workers
//
// Returns:
//   - RendererBuilderOption: a function that applies the worker count to a renderer
func WithTextureWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.textureWorkers = n
	}
}

// WithSamplerCacheSize sets how many distinct samplers are kept alive.
//
// Parameters:
//   - size: the sampler cache capacity
//
// Returns:
//   - RendererBuilderOption: a function that applies the sampler cache size to a renderer
func WithSamplerCacheSize(size int) RendererBuilderOption {
	return func(r *renderer) {
		r.samplerCacheSize = size
	}
}

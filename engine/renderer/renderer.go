package renderer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/draw_command"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/resource_cache"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/texture"
	"github.com/cogentcore/webgpu/wgpu"
	log "github.com/sirupsen/logrus"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu     *sync.Mutex
	logger log.FieldLogger

	shaderCache    resource_cache.ResourceCache[shader.Shader]
	pipelineCache  resource_cache.ResourceCache[pipeline.Pipeline]
	textureCache   resource_cache.ResourceCache[texture.Texture]
	bindGroupCache resource_cache.ResourceCache[bind_group_provider.BindGroupProvider]
	samplers       *texture.SamplerCache
	loader         texture.Loader

	// bindGroupPipelines maps a cached bind group to the pipeline whose layout it was built against.
	bindGroupPipelines map[string]string

	// queue holds the draw commands of the next frame in insertion order.
	queue []draw_command.DrawCommand

	backendType RendererBackendType
	backend     RendererBackend
	released    bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	shaderValidation     bool
	textureWorkers       int
	samplerCacheSize     int
}

// Renderer defines the interface for the rendering system.
//
// The Renderer is the single owner of the GPU device and of every resource created on it. It keeps one
// cache each for shaders, pipelines, textures and bind groups, plus a sampler cache. Producers create
// resources through the cache idiom (get, construct on a miss, set), build draw commands and enqueue them;
// RenderFrame then replays the queue against the pipeline cache and submits one command buffer per frame.
//
// Every method is serialized by the renderer's mutex, and so is every call on the caches returned by the
// accessors. Replacing or deleting a pipeline also drops the bind groups CreateTextureBindGroup built
// against its layouts.
type Renderer interface {
	// Shaders returns the shader cache.
	Shaders() resource_cache.ResourceCache[shader.Shader]

	// Pipelines returns the pipeline cache that draw commands are resolved against. Replacing or deleting a
	// pipeline through it releases the bind groups built against the old pipeline's layouts.
	Pipelines() resource_cache.ResourceCache[pipeline.Pipeline]

	// Textures returns the texture cache.
	Textures() resource_cache.ResourceCache[texture.Texture]

	// BindGroups returns the bind group cache.
	BindGroups() resource_cache.ResourceCache[bind_group_provider.BindGroupProvider]

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Backend returns the GPU backend, which doubles as the device for constructing draw commands and bind groups.
	Backend() RendererBackend

	// LoadShader compiles the WGSL file at path and caches the result under key. A shader already cached
	// under key is returned without reading the file again.
	//
	// Parameters:
	//   - key: the cache key
	//   - stage: the stage the shader's entry point must belong to
	//   - path: the WGSL source file
	//
	// Returns:
	//   - shader.Shader: the cached shader
	//   - error: the compile error, wrapping shader.ErrCompile
	LoadShader(key string, stage shader.ShaderStage, path string) (shader.Shader, error)

	// CreatePipeline builds a render pipeline from two cached shaders and caches it under key. The color
	// target defaults to the surface format. A pipeline already cached under key is returned as is.
	//
	// Parameters:
	//   - key: the cache key, which is also the name draw commands refer to
	//   - vertexKey: the key of the cached vertex shader
	//   - fragmentKey: the key of the cached fragment shader
	//   - opts: pipeline options applied after the surface format default
	//
	// Returns:
	//   - pipeline.Pipeline: the cached pipeline
	//   - error: an error if a shader is missing, the stages are incompatible or the device rejects the pipeline
	CreatePipeline(key, vertexKey, fragmentKey string, opts ...pipeline.PipelineBuilderOption) (pipeline.Pipeline, error)

	// LoadTexture decodes the image at path, uploads it and caches the texture under key.
	// A texture already cached under key is returned without reading the file again.
	//
	// Parameters:
	//   - key: the cache key
	//   - path: the image file
	//
	// Returns:
	//   - texture.Texture: the cached texture
	//   - error: the decode or upload error
	LoadTexture(key, path string) (texture.Texture, error)

	// LoadTextures loads a batch of textures. Files not yet cached are decoded in parallel on the texture
	// loader's worker pool and uploaded one by one.
	//
	// Parameters:
	//   - paths: image files keyed by cache key
	//
	// Returns:
	//   - map[string]texture.Texture: every texture that is cached after the call
	//   - error: all decode and upload failures joined, or nil
	LoadTextures(paths map[string]string) (map[string]texture.Texture, error)

	// Sampler returns the shared sampler for a sampler configuration. The sampler is owned by the renderer.
	//
	// Parameters:
	//   - data: the sampler configuration
	//
	// Returns:
	//   - *wgpu.Sampler: the sampler
	//   - error: the device error
	Sampler(data common.SamplerStagingData) (*wgpu.Sampler, error)

	// CreateTextureBindGroup builds a bind group for one group of a cached pipeline, binding a cached texture
	// to every texture entry and a shared sampler to every sampler entry, and caches it under key.
	//
	// Parameters:
	//   - key: the cache key of the bind group
	//   - pipelineKey: the cached pipeline whose layout the bind group is built against
	//   - group: the @group index
	//   - textureKey: the cached texture to bind
	//   - samplerData: the sampler configuration
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the cached provider, whose BindGroup goes into draw commands
	//   - error: an error if a resource is missing or the device rejects the bind group
	CreateTextureBindGroup(key, pipelineKey string, group int, textureKey string, samplerData common.SamplerStagingData) (bind_group_provider.BindGroupProvider, error)

	// EnqueueDrawCommand appends a draw command to the queue of the next frame. The renderer takes
	// ownership of the command's buffers.
	//
	// Parameters:
	//   - cmd: the draw command
	EnqueueDrawCommand(cmd draw_command.DrawCommand)

	// QueueLen returns the number of draw commands waiting for the next frame.
	QueueLen() int

	// RenderFrame renders one frame: it acquires the next swap chain image, opens a render pass cleared to
	// state.ClearColor(), records every queued draw command in insertion order, ends the pass and submits.
	//
	// If acquisition fails the error wraps ErrFrameTimeout and the queue is left untouched. Once an image
	// is acquired the queue is always cleared. A command naming an unknown pipeline aborts the frame before
	// submission with an error wrapping ErrPipelineNotFound. On success the clear color and frame counter
	// of state advance.
	//
	// Parameters:
	//   - state: the frame state, which must be idle
	//
	// Returns:
	//   - error: nil once the frame has been submitted
	RenderFrame(state *FrameState) error

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// Release drops the queue, releases every cached resource and then the device.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer drawing into the given surface. Unless a backend is injected with
// WithBackend, it blocks until the platform hands out a GPU adapter and device.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - surface: the window to draw into, usually a window.Window
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new Renderer with its surface configured
//   - error: an error if no adapter or device could be acquired
func NewRenderer(backendType RendererBackendType, surface Surface, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:                 &sync.Mutex{},
		logger:             log.StandardLogger(),
		shaderCache:        resource_cache.NewResourceCache[shader.Shader](),
		textureCache:       resource_cache.NewResourceCache[texture.Texture](),
		bindGroupPipelines: make(map[string]string),
		backendType:        backendType,
		shaderValidation:   true,
		samplerCacheSize:   texture.DefaultSamplerCacheSize,
	}
	r.pipelineCache = resource_cache.NewResourceCache(resource_cache.WithTeardown(r.teardownPipeline))
	r.bindGroupCache = resource_cache.NewResourceCache(resource_cache.WithTeardown(r.teardownBindGroup))

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	if r.backend == nil {
		if surface == nil {
			return nil, errors.New("renderer needs a surface")
		}
		switch backendType {
		case BackendTypeWGPU:
			fallthrough
		default:
			b, err := newWGPURendererBackend(surface.SurfaceDescriptor(), r.forceFallbackAdapter)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize GPU: %w", err)
			}
			r.backend = b
		}
	}

	samplers, err := texture.NewSamplerCache(r.backend, r.samplerCacheSize)
	if err != nil {
		r.backend.Release()
		return nil, err
	}
	r.samplers = samplers

	loaderOptions := []texture.LoaderBuilderOption{}
	if r.textureWorkers > 0 {
		loaderOptions = append(loaderOptions, texture.WithWorkers(r.textureWorkers))
	}
	r.loader = texture.NewLoader(loaderOptions...)

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if surface != nil {
		r.backend.ConfigureSurface(surface.Width(), surface.Height())
	}

	r.logger.WithFields(log.Fields{
		"surface_format": r.backend.SurfaceFormat(),
		"fallback":       r.forceFallbackAdapter,
	}).Info("renderer initialized")
	return r, nil
}

func (r *renderer) Shaders() resource_cache.ResourceCache[shader.Shader] {
	return &lockedCache[shader.Shader]{mu: r.mu, cache: r.shaderCache}
}

func (r *renderer) Pipelines() resource_cache.ResourceCache[pipeline.Pipeline] {
	return &lockedCache[pipeline.Pipeline]{mu: r.mu, cache: r.pipelineCache}
}

func (r *renderer) Textures() resource_cache.ResourceCache[texture.Texture] {
	return &lockedCache[texture.Texture]{mu: r.mu, cache: r.textureCache}
}

func (r *renderer) BindGroups() resource_cache.ResourceCache[bind_group_provider.BindGroupProvider] {
	return &lockedCache[bind_group_provider.BindGroupProvider]{mu: r.mu, cache: r.bindGroupCache}
}

// teardownPipeline runs with the renderer lock held when a pipeline leaves the cache. Bind groups built
// against its layouts go first, since the layouts are released with the pipeline.
func (r *renderer) teardownPipeline(key string, p pipeline.Pipeline) {
	for bindGroupKey, pipelineKey := range r.bindGroupPipelines {
		if pipelineKey == key {
			r.bindGroupCache.Delete(bindGroupKey)
		}
	}
	if p != nil {
		p.Release()
	}
	r.logger.WithField("pipeline", key).Debug("pipeline released")
}

func (r *renderer) teardownBindGroup(key string, p bind_group_provider.BindGroupProvider) {
	delete(r.bindGroupPipelines, key)
	if p != nil {
		p.Release()
	}
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, _ := r.pipelineCache.Get(key)
	return p
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

func (r *renderer) LoadShader(key string, stage shader.ShaderStage, path string) (shader.Shader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrRendererReleased
	}

	return r.shaderCache.GetOrCreate(key, func() (shader.Shader, error) {
		s, err := shader.Compile(key, stage, path, shader.WithValidation(r.shaderValidation))
		if err != nil {
			return nil, err
		}
		r.logger.WithFields(log.Fields{"shader": key, "stage": stage.String(), "path": path}).Debug("shader compiled")
		return s, nil
	})
}

func (r *renderer) CreatePipeline(key, vertexKey, fragmentKey string, opts ...pipeline.PipelineBuilderOption) (pipeline.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrRendererReleased
	}

	return r.pipelineCache.GetOrCreate(key, func() (pipeline.Pipeline, error) {
		vertex, ok := r.shaderCache.Get(vertexKey)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: vertex shader %s is not loaded", key, vertexKey)
		}
		fragment, ok := r.shaderCache.Get(fragmentKey)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: fragment shader %s is not loaded", key, fragmentKey)
		}

		options := append([]pipeline.PipelineBuilderOption{pipeline.WithColorFormat(r.backend.SurfaceFormat())}, opts...)
		p, err := pipeline.NewRenderPipeline(r.backend, key, vertex, fragment, options...)
		if err != nil {
			return nil, err
		}
		r.logger.WithFields(log.Fields{"pipeline": key, "vertex": vertexKey, "fragment": fragmentKey}).Info("pipeline created")
		return p, nil
	})
}

func (r *renderer) LoadTexture(key, path string) (texture.Texture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrRendererReleased
	}

	return r.textureCache.GetOrCreate(key, func() (texture.Texture, error) {
		data, err := r.loader.Load(path)
		if err != nil {
			return nil, err
		}
		return r.uploadTexture(key, data)
	})
}

func (r *renderer) LoadTextures(paths map[string]string) (map[string]texture.Texture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrRendererReleased
	}

	missing := make(map[string]string, len(paths))
	for key, path := range paths {
		if _, ok := r.textureCache.Get(key); !ok {
			missing[key] = path
		}
	}

	var errs []error
	if len(missing) > 0 {
		decoded, err := r.loader.LoadAll(missing)
		if err != nil {
			errs = append(errs, err)
		}
		keys := make([]string, 0, len(decoded))
		for key := range decoded {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			t, err := r.uploadTexture(key, decoded[key])
			if err != nil {
				errs = append(errs, err)
				continue
			}
			r.textureCache.Set(key, t)
		}
	}

	loaded := make(map[string]texture.Texture, len(paths))
	for key := range paths {
		if t, ok := r.textureCache.Get(key); ok {
			loaded[key] = t
		}
	}
	return loaded, errors.Join(errs...)
}

// uploadTexture uploads decoded pixels. Callers hold mu.
func (r *renderer) uploadTexture(key string, data common.TextureStagingData) (texture.Texture, error) {
	t, err := texture.New(r.backend, key, data)
	if err != nil {
		return nil, err
	}
	r.logger.WithFields(log.Fields{"texture": key, "width": data.Width, "height": data.Height}).Debug("texture uploaded")
	return t, nil
}

func (r *renderer) Sampler(data common.SamplerStagingData) (*wgpu.Sampler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrRendererReleased
	}
	return r.samplers.Get(data)
}

func (r *renderer) CreateTextureBindGroup(key, pipelineKey string, group int, textureKey string, samplerData common.SamplerStagingData) (bind_group_provider.BindGroupProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrRendererReleased
	}

	return r.bindGroupCache.GetOrCreate(key, func() (bind_group_provider.BindGroupProvider, error) {
		p, ok := r.pipelineCache.Get(pipelineKey)
		if !ok {
			return nil, fmt.Errorf("bind group %s: %w: %s", key, ErrPipelineNotFound, pipelineKey)
		}
		tex, ok := r.textureCache.Get(textureKey)
		if !ok {
			return nil, fmt.Errorf("bind group %s: texture %s is not loaded", key, textureKey)
		}
		sampler, err := r.samplers.Get(samplerData)
		if err != nil {
			return nil, fmt.Errorf("bind group %s: %w", key, err)
		}

		options := make([]bind_group_provider.BindGroupProviderOption, 0, 2)
		for _, stage := range []shader.ShaderStage{shader.ShaderStageVertex, shader.ShaderStageFragment} {
			if desc, ok := p.Shader(stage).BindGroupLayoutDescriptors()[group]; ok {
				options = append(options, bind_group_provider.WithLayoutEntries(desc, tex.View(), sampler))
			}
		}

		provider := bind_group_provider.NewBindGroupProvider(key, p.BindGroupLayout(group), options...)
		if _, err := provider.Build(r.backend); err != nil {
			return nil, err
		}
		r.bindGroupPipelines[key] = pipelineKey
		return provider, nil
	})
}

func (r *renderer) EnqueueDrawCommand(cmd draw_command.DrawCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		cmd.Release()
		return
	}
	r.queue = append(r.queue, cmd)
}

func (r *renderer) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *renderer) RenderFrame(state *FrameState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrRendererReleased
	}
	if state == nil {
		return errors.New("render frame: nil frame state")
	}
	if state.Phase != PhaseIdle {
		return fmt.Errorf("%w: frame %d is %s", ErrFrameInProgress, state.Frame, state.Phase)
	}

	if err := r.backend.AcquireFrame(); err != nil {
		if errors.Is(err, ErrFrameNotPresented) {
			r.logger.WithField("frame", state.Frame).WithError(err).Error("frame not acquired")
			return fmt.Errorf("acquire frame %d: %w", state.Frame, err)
		}
		r.logger.WithFields(log.Fields{"frame": state.Frame, "queued": len(r.queue)}).WithError(err).Warn("dropped frame")
		return fmt.Errorf("%w: %w", ErrFrameTimeout, err)
	}
	state.Phase = PhaseAcquired

	// The queue is consumed once an image is held, whatever happens next.
	draws := len(r.queue)
	defer r.clearQueue()

	if err := r.encodeFrame(state); err != nil {
		r.backend.AbandonFrame()
		r.logger.WithFields(log.Fields{"frame": state.Frame, "phase": state.Phase.String()}).WithError(err).Error("frame abandoned")
		state.Phase = PhaseIdle
		return err
	}
	state.Phase = PhaseSubmitted

	r.logger.WithFields(log.Fields{"frame": state.Frame, "draws": draws}).Debug("frame submitted")
	state.advance()
	return nil
}

// encodeFrame runs the frame from the open pass through submission. Callers hold mu.
func (r *renderer) encodeFrame(state *FrameState) error {
	if err := r.backend.BeginPass(state.ClearColor().WGPU()); err != nil {
		return fmt.Errorf("begin render pass: %w", err)
	}
	state.Phase = PhasePassOpen

	for i := range r.queue {
		cmd := &r.queue[i]
		p, ok := r.pipelineCache.Get(cmd.PipelineName)
		if !ok {
			return fmt.Errorf("draw command %d: %w: %s", i, ErrPipelineNotFound, cmd.PipelineName)
		}
		if err := r.backend.Draw(p, cmd); err != nil {
			return fmt.Errorf("draw command %d (%s): %w", i, cmd.PipelineName, err)
		}
	}

	if err := r.backend.EndPass(); err != nil {
		return fmt.Errorf("end render pass: %w", err)
	}
	state.Phase = PhaseClosed

	if err := r.backend.Submit(); err != nil {
		return fmt.Errorf("submit frame: %w", err)
	}
	return nil
}

// clearQueue releases the buffers of every queued command and empties the queue. Callers hold mu.
func (r *renderer) clearQueue() {
	for i := range r.queue {
		r.queue[i].Release()
	}
	clear(r.queue)
	r.queue = r.queue[:0]
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.backend.ConfigureSurface(width, height)
	r.logger.WithFields(log.Fields{"width": width, "height": height}).Debug("surface resized")
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true

	r.clearQueue()
	r.bindGroupCache.Release()
	r.pipelineCache.Release()
	r.textureCache.Release()
	r.shaderCache.Release()
	r.samplers.Release()
	r.loader.Close()
	r.backend.Release()
	r.logger.Info("renderer released")
}

// CreateDrawCommand uploads geometry with the renderer's device and returns the draw command for it.
// It does not enqueue the command.
//
// Parameters:
//   - r: the renderer whose device creates the buffers
//   - pipelineName: the key of the pipeline in the renderer's pipeline cache
//   - vertices: the vertex data
//   - indices: the index data
//   - bindGroup: the bind group bound at group 0, or nil
//
// Returns:
//   - draw_command.DrawCommand: the command
//   - error: the construction error
func CreateDrawCommand[V any, I draw_command.Index](r Renderer, pipelineName string, vertices []V, indices []I, bindGroup *wgpu.BindGroup) (draw_command.DrawCommand, error) {
	return draw_command.NewDrawCommand(r.Backend(), pipelineName, vertices, indices, bindGroup)
}

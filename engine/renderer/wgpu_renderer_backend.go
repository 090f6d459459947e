package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/draw_command"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/texture"
	"github.com/cogentcore/webgpu/wgpu"
)

var errNoFrame = errors.New("no frame has been acquired")

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	alphaMode     wgpu.CompositeAlphaMode

	presentMode wgpu.PresentMode // defaults to PresentModeFifo (VSync)

	// Frame state, held between AcquireFrame and Submit or AbandonFrame
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
}

type wgpuRendererBackend interface {
	pipeline.Device
	draw_command.Device
	bind_group_provider.Device
	texture.SamplerDevice
	texture.Uploader

	// SurfaceFormat returns the texture format the surface was configured with. Pipelines drawing to the
	// surface must use it as their color target format.
	//
	// Returns:
	//   - wgpu.TextureFormat: the surface format
	SurfaceFormat() wgpu.TextureFormat

	// ConfigureSurface is a wrapper for boilerplate logic required when calling ConfigureSurface on a surface.
	// This is required when the surface size changes, such as when the window is resized.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// It takes effect on the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// AcquireFrame acquires the next swap chain image and creates a view of it. Nothing else is created,
	// so a failure leaves no frame state behind.
	//
	// Returns:
	//   - error: ErrFrameNotPresented if the previous image is still held, or the error of a failed acquisition
	AcquireFrame() error

	// BeginPass creates the command encoder and begins the single render pass targeting the acquired image.
	// The color target is cleared to clear and stored; there is no depth or stencil attachment.
	//
	// Parameters:
	//   - clear: the clear value in linear space
	//
	// Returns:
	//   - error: an error if no frame is held or the encoder could not be created
	BeginPass(clear wgpu.Color) error

	// Draw binds the pipeline and the command's buffers and bind group, then records one indexed draw.
	//
	// Parameters:
	//   - p: the resolved pipeline of the command
	//   - cmd: the draw command to record
	//
	// Returns:
	//   - error: an error if no render pass is open
	Draw(p pipeline.Pipeline, cmd *draw_command.DrawCommand) error

	// EndPass ends the render pass and releases it. No more draws can be recorded afterwards.
	//
	// Returns:
	//   - error: an error if the pass could not be ended
	EndPass() error

	// Submit finishes the command buffer, submits it to the queue without waiting for the GPU and presents
	// the acquired image. The frame state is released whether or not it succeeds.
	//
	// Returns:
	//   - error: an error if the command buffer could not be finished
	Submit() error

	// AbandonFrame drops the current frame without submitting or presenting it. It is a no-op when no
	// frame is held.
	AbandonFrame()

	// Release frees the device, adapter, surface and instance.
	Release()
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend creates the instance and surface, then blocks until the adapter and device
// requests complete.
func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) (*wgpuRendererBackendImpl, error) {
	if surfaceDescriptor == nil {
		return nil, errors.New("no surface descriptor, is the window open?")
	}
	runtime.LockOSThread()
	b := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	b.device = device
	b.queue = device.GetQueue()

	capabilities := b.surface.GetCapabilities(adapter)
	b.surfaceFormat = preferredSurfaceFormat(capabilities.Formats)
	b.alphaMode = wgpu.CompositeAlphaModeAuto
	if len(capabilities.AlphaModes) > 0 {
		b.alphaMode = capabilities.AlphaModes[0]
	}

	return b, nil
}

// preferredSurfaceFormat picks BGRA8UnormSrgb when the surface supports it, then any sRGB format, then
// whatever the surface lists first.
func preferredSurfaceFormat(formats []wgpu.TextureFormat) wgpu.TextureFormat {
	for _, f := range formats {
		if f == wgpu.TextureFormatBGRA8UnormSrgb {
			return f
		}
	}
	for _, f := range formats {
		if f == wgpu.TextureFormatRGBA8UnormSrgb {
			return f
		}
	}
	if len(formats) > 0 {
		return formats[0]
	}
	return wgpu.TextureFormatBGRA8UnormSrgb
}

func (b *wgpuRendererBackendImpl) CreateShaderModule(descriptor *wgpu.ShaderModuleDescriptor) (*wgpu.ShaderModule, error) {
	return b.device.CreateShaderModule(descriptor)
}

func (b *wgpuRendererBackendImpl) CreateBindGroupLayout(descriptor *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error) {
	return b.device.CreateBindGroupLayout(descriptor)
}

func (b *wgpuRendererBackendImpl) CreatePipelineLayout(descriptor *wgpu.PipelineLayoutDescriptor) (*wgpu.PipelineLayout, error) {
	return b.device.CreatePipelineLayout(descriptor)
}

func (b *wgpuRendererBackendImpl) CreateRenderPipeline(descriptor *wgpu.RenderPipelineDescriptor) (*wgpu.RenderPipeline, error) {
	return b.device.CreateRenderPipeline(descriptor)
}

func (b *wgpuRendererBackendImpl) CreateBufferInit(descriptor *wgpu.BufferInitDescriptor) (*wgpu.Buffer, error) {
	return b.device.CreateBufferInit(descriptor)
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(descriptor *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	return b.device.CreateBindGroup(descriptor)
}

func (b *wgpuRendererBackendImpl) CreateSampler(descriptor *wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	return b.device.CreateSampler(descriptor)
}

func (b *wgpuRendererBackendImpl) UploadTexture(label string, stagingData common.TextureStagingData) (*wgpu.Texture, *wgpu.TextureView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := wgpu.Extent3D{
		Width:              stagingData.Width,
		Height:             stagingData.Height,
		DepthOrArrayLayers: 1,
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label + " Texture",
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          size,
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, nil, err
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		stagingData.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  stagingData.Width * 4,
			RowsPerImage: stagingData.Height,
		},
		&size,
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, err
	}
	return tex, view, nil
}

func (b *wgpuRendererBackendImpl) SurfaceFormat() wgpu.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaceFormat
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A minimized window reports zero size, which the surface rejects.
	if width <= 0 || height <= 0 {
		return
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   b.alphaMode,
	})
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	case PresentModeVSync:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuRendererBackendImpl) AcquireFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Acquiring twice without presenting is a validation error in wgpu-native.
	if b.frameSurface != nil {
		return ErrFrameNotPresented
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *wgpuRendererBackendImpl) BeginPass(clear wgpu.Color) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameView == nil {
		return errNoFrame
	}

	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{
		Label: "Frame Encoder",
	})
	if err != nil {
		return err
	}

	b.frameEncoder = encoder
	b.framePass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Frame Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       b.frameView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clear,
			},
		},
	})
	return nil
}

func (b *wgpuRendererBackendImpl) Draw(p pipeline.Pipeline, cmd *draw_command.DrawCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return errors.New("no render pass is open")
	}

	b.framePass.SetPipeline(p.RenderPipeline())
	if cmd.BindGroup != nil {
		b.framePass.SetBindGroup(0, cmd.BindGroup, nil)
	}
	b.framePass.SetVertexBuffer(0, cmd.VertexBuffer, 0, wgpu.WholeSize)
	b.framePass.SetIndexBuffer(cmd.IndexBuffer, cmd.IndexFormat, 0, wgpu.WholeSize)
	b.framePass.DrawIndexed(cmd.IndexCount, 1, 0, 0, 0)
	return nil
}

func (b *wgpuRendererBackendImpl) EndPass() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return errors.New("no render pass is open")
	}
	err := b.framePass.End()
	b.framePass.Release()
	b.framePass = nil
	return err
}

func (b *wgpuRendererBackendImpl) Submit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return errNoFrame
	}
	defer b.releaseFrame()

	commandBuffer, err := b.frameEncoder.Finish(&wgpu.CommandBufferDescriptor{
		Label: "Frame Commands",
	})
	if err != nil {
		return err
	}
	defer commandBuffer.Release()

	b.queue.Submit(commandBuffer)
	b.surface.Present()
	return nil
}

func (b *wgpuRendererBackendImpl) AbandonFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass != nil {
		_ = b.framePass.End()
	}
	b.releaseFrame()
}

// releaseFrame drops every per-frame object. Callers hold mu.
func (b *wgpuRendererBackendImpl) releaseFrame() {
	if b.framePass != nil {
		b.framePass.Release()
		b.framePass = nil
	}
	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseFrame()
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

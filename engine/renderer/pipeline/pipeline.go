package pipeline

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Device is the subset of *wgpu.Device a pipeline needs to create its GPU objects.
type Device interface {
	CreateShaderModule(descriptor *wgpu.ShaderModuleDescriptor) (*wgpu.ShaderModule, error)
	CreateBindGroupLayout(descriptor *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error)
	CreatePipelineLayout(descriptor *wgpu.PipelineLayoutDescriptor) (*wgpu.PipelineLayout, error)
	CreateRenderPipeline(descriptor *wgpu.RenderPipelineDescriptor) (*wgpu.RenderPipeline, error)
}

var _ Device = &wgpu.Device{}

// AlphaBlending is the conventional straight-alpha blend state, for use with WithBlendState.
var AlphaBlending = &wgpu.BlendState{
	Color: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorSrcAlpha,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
	Alpha: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
}

// pipeline is the implementation of the Pipeline interface.
// It owns every GPU object created for the render pipeline and releases them together.
type pipeline struct {
	// key is the unique identifier for this pipeline, used for caching and draw command lookups
	key   string
	label string

	vertexShader, fragmentShader shader.Shader

	vertexModule, fragmentModule *wgpu.ShaderModule
	bindGroupLayouts             []*wgpu.BindGroupLayout
	pipelineLayout               *wgpu.PipelineLayout
	renderPipeline               *wgpu.RenderPipeline

	// The following properties configure the pipeline during creation and are set with the builder options.

	colorFormat wgpu.TextureFormat
	cullMode    wgpu.CullMode
	topology    wgpu.PrimitiveTopology
	frontFace   wgpu.FrontFace
	writeMask   wgpu.ColorWriteMask
	blendState  *wgpu.BlendState
}

// Pipeline defines the interface for a built GPU render pipeline: a compiled vertex and fragment shader
// pair, the vertex input layout and the bind group layouts callers need to build compatible bind groups.
// A Pipeline is immutable once constructed.
type Pipeline interface {
	// Key returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	Key() string

	// RenderPipeline returns the underlying WebGPU render pipeline to bind during a render pass.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the render pipeline handle
	RenderPipeline() *wgpu.RenderPipeline

	// BindGroupLayout retrieves the layout of a bind group declared by either shader stage.
	//
	// Parameters:
	//   - group: the @group index
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout, or nil if neither stage declares the group
	BindGroupLayout(group int) *wgpu.BindGroupLayout

	// BindGroupLayouts returns every bind group layout indexed by group. Unused indices below the highest
	// declared group are nil.
	//
	// Returns:
	//   - []*wgpu.BindGroupLayout: the layouts in group order
	BindGroupLayouts() []*wgpu.BindGroupLayout

	// VertexLayouts returns the vertex buffer layouts the pipeline was created with.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the vertex buffer layouts of the vertex stage
	VertexLayouts() []wgpu.VertexBufferLayout

	// Shader retrieves the shader compiled for the specified stage.
	//
	// Parameters:
	//   - stage: the stage of the shader to retrieve
	//
	// Returns:
	//   - shader.Shader: the shader for the stage, or nil for an unknown stage
	Shader(stage shader.ShaderStage) shader.Shader

	// ColorFormat returns the format of the single color target the pipeline renders to.
	//
	// Returns:
	//   - wgpu.TextureFormat: the color target format
	ColorFormat() wgpu.TextureFormat

	// Release frees every GPU object owned by the pipeline. It is safe to call more than once.
	Release()
}

var _ Pipeline = &pipeline{}

// NewRenderPipeline builds a render pipeline from a vertex and fragment shader pair. The stage interfaces
// are checked before any GPU object is created. If the device rejects any object, everything created
// up to that point is released and no Pipeline is returned.
//
// Parameters:
//   - device: the device used to create the GPU objects
//   - key: the unique key for this pipeline
//   - vertex: the vertex stage shader
//   - fragment: the fragment stage shader
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: the constructed pipeline
//   - error: an error wrapping ErrIncompatibleStages, or the device error
func NewRenderPipeline(device Device, key string, vertex, fragment shader.Shader, opts ...PipelineBuilderOption) (Pipeline, error) {
	if err := ValidateStageInterface(vertex, fragment); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", key, err)
	}

	p := &pipeline{
		key:            key,
		label:          key,
		vertexShader:   vertex,
		fragmentShader: fragment,
		colorFormat:    wgpu.TextureFormatBGRA8UnormSrgb,
		cullMode:       wgpu.CullModeNone,
		topology:       wgpu.PrimitiveTopologyTriangleList,
		frontFace:      wgpu.FrontFaceCCW,
		writeMask:      wgpu.ColorWriteMaskAll,
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.create(device); err != nil {
		p.Release()
		return nil, fmt.Errorf("pipeline %s: %w", key, err)
	}
	return p, nil
}

func (p *pipeline) Key() string {
	return p.key
}

func (p *pipeline) RenderPipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) BindGroupLayout(group int) *wgpu.BindGroupLayout {
	if group < 0 || group >= len(p.bindGroupLayouts) {
		return nil
	}
	return p.bindGroupLayouts[group]
}

func (p *pipeline) BindGroupLayouts() []*wgpu.BindGroupLayout {
	return p.bindGroupLayouts
}

func (p *pipeline) VertexLayouts() []wgpu.VertexBufferLayout {
	return p.vertexShader.VertexLayouts()
}

func (p *pipeline) Shader(stage shader.ShaderStage) shader.Shader {
	switch stage {
	case shader.ShaderStageVertex:
		return p.vertexShader
	case shader.ShaderStageFragment:
		return p.fragmentShader
	default:
		return nil
	}
}

func (p *pipeline) ColorFormat() wgpu.TextureFormat {
	return p.colorFormat
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
		p.pipelineLayout = nil
	}
	for i, layout := range p.bindGroupLayouts {
		if layout != nil {
			layout.Release()
			p.bindGroupLayouts[i] = nil
		}
	}
	p.bindGroupLayouts = nil
	if p.fragmentModule != nil {
		p.fragmentModule.Release()
		p.fragmentModule = nil
	}
	if p.vertexModule != nil {
		p.vertexModule.Release()
		p.vertexModule = nil
	}
}

// create builds the shader modules, bind group layouts, pipeline layout and render pipeline in order,
// recording each object on p as soon as it exists so a failure can release the partial set.
func (p *pipeline) create(device Device) error {
	var err error
	p.vertexModule, err = device.CreateShaderModule(p.vertexShader.ModuleDescriptor())
	if err != nil {
		return fmt.Errorf("creating vertex module %s: %w", p.vertexShader.Key(), err)
	}
	p.fragmentModule, err = device.CreateShaderModule(p.fragmentShader.ModuleDescriptor())
	if err != nil {
		return fmt.Errorf("creating fragment module %s: %w", p.fragmentShader.Key(), err)
	}

	merged := mergeBindGroupLayouts(p.vertexShader.BindGroupLayoutDescriptors(), p.fragmentShader.BindGroupLayoutDescriptors())
	groups := make([]int, 0, len(merged))
	maxGroup := -1
	for g := range merged {
		groups = append(groups, g)
		maxGroup = max(maxGroup, g)
	}
	sort.Ints(groups)
	p.bindGroupLayouts = make([]*wgpu.BindGroupLayout, maxGroup+1)
	for _, g := range groups {
		desc := merged[g]
		desc.Label = fmt.Sprintf("%s group %d", p.label, g)
		layout, layoutErr := device.CreateBindGroupLayout(&desc)
		if layoutErr != nil {
			return fmt.Errorf("creating bind group layout for group %d: %w", g, layoutErr)
		}
		p.bindGroupLayouts[g] = layout
	}

	p.pipelineLayout, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.label,
		BindGroupLayouts: p.bindGroupLayouts,
	})
	if err != nil {
		return fmt.Errorf("creating pipeline layout: %w", err)
	}

	p.renderPipeline, err = device.CreateRenderPipeline(p.descriptor())
	if err != nil {
		return fmt.Errorf("creating render pipeline: %w", err)
	}
	return nil
}

// descriptor assembles the render pipeline descriptor: one color target, no depth/stencil, single sample.
func (p *pipeline) descriptor() *wgpu.RenderPipelineDescriptor {
	target := wgpu.ColorTargetState{
		Format:    p.colorFormat,
		WriteMask: p.writeMask,
		Blend:     p.blendState,
	}
	return &wgpu.RenderPipelineDescriptor{
		Label:  p.label + " Render Pipeline",
		Layout: p.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     p.vertexModule,
			EntryPoint: p.vertexShader.EntryPoint(),
			Buffers:    p.vertexShader.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.fragmentModule,
			EntryPoint: p.fragmentShader.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.topology,
			FrontFace: p.frontFace,
			CullMode:  p.cullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
}

// mergeBindGroupLayouts combines the per-stage bind group descriptors into one descriptor per group.
// A binding declared by both stages keeps one entry with the visibility flags OR-ed together.
func mergeBindGroupLayouts(vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor, len(vertexLayouts)+len(fragmentLayouts))
	entriesByGroup := make(map[int]map[uint32]wgpu.BindGroupLayoutEntry)
	for _, layouts := range []map[int]wgpu.BindGroupLayoutDescriptor{vertexLayouts, fragmentLayouts} {
		for g, desc := range layouts {
			if entriesByGroup[g] == nil {
				entriesByGroup[g] = make(map[uint32]wgpu.BindGroupLayoutEntry)
			}
			for _, e := range desc.Entries {
				if existing, ok := entriesByGroup[g][e.Binding]; ok {
					existing.Visibility |= e.Visibility
					e = existing
				}
				entriesByGroup[g][e.Binding] = e
			}
		}
	}

	for g, entryMap := range entriesByGroup {
		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
		for _, e := range entryMap {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		merged[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return merged
}

package pipeline

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	qt "github.com/frankban/quicktest"
)

const vertexSource = `
struct VertexOutput {
    @builtin(position) clip: vec4<f32>,
    @location(0) uv: vec2<f32>,
    @location(1) shade: f32,
};

@group(0) @binding(2) var<uniform> transform: mat4x4<f32>;

@vertex
fn vs_main(@location(0) position: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.clip = transform * vec4<f32>(position, 0.0, 1.0);
    out.uv = position;
    out.shade = 1.0;
    return out;
}
`

const fragmentSource = `
@group(0) @binding(0) var grid: texture_2d<f32>;
@group(0) @binding(1) var grid_sampler: sampler;
@group(0) @binding(2) var<uniform> transform: mat4x4<f32>;

@fragment
fn fs_main(@location(0) uv: vec2f) -> @location(0) vec4<f32> {
    return textureSample(grid, grid_sampler, uv);
}
`

// fakeDevice records creation calls and fails the call named by failOn.
type fakeDevice struct {
	calls    []string
	failOn   string
	layouts  []wgpu.BindGroupLayoutDescriptor
	pipeline *wgpu.RenderPipelineDescriptor
}

var errRejected = errors.New("device rejected descriptor")

func (d *fakeDevice) record(call string) error {
	d.calls = append(d.calls, call)
	if call == d.failOn {
		return errRejected
	}
	return nil
}

func (d *fakeDevice) CreateShaderModule(desc *wgpu.ShaderModuleDescriptor) (*wgpu.ShaderModule, error) {
	return nil, d.record("module:" + desc.Label)
}

func (d *fakeDevice) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error) {
	d.layouts = append(d.layouts, *desc)
	return nil, d.record("bind_group_layout")
}

func (d *fakeDevice) CreatePipelineLayout(*wgpu.PipelineLayoutDescriptor) (*wgpu.PipelineLayout, error) {
	return nil, d.record("pipeline_layout")
}

func (d *fakeDevice) CreateRenderPipeline(desc *wgpu.RenderPipelineDescriptor) (*wgpu.RenderPipeline, error) {
	d.pipeline = desc
	return nil, d.record("render_pipeline")
}

func mustParse(c *qt.C, key string, stage shader.ShaderStage, src string) shader.Shader {
	s, err := shader.Parse(key, stage, src, shader.WithValidation(false))
	c.Assert(err, qt.IsNil)
	return s
}

func TestNewRenderPipeline(t *testing.T) {
	c := qt.New(t)
	vs := mustParse(c, "shader.vert", shader.ShaderStageVertex, vertexSource)
	fs := mustParse(c, "shader.frag", shader.ShaderStageFragment, fragmentSource)
	device := &fakeDevice{}

	p, err := NewRenderPipeline(device, "example", vs, fs)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Key(), qt.Equals, "example")
	c.Assert(p.Shader(shader.ShaderStageVertex), qt.Equals, vs)
	c.Assert(p.Shader(shader.ShaderStageFragment), qt.Equals, fs)
	c.Assert(p.Shader(shader.ShaderStage(9)), qt.IsNil)
	c.Assert(p.ColorFormat(), qt.Equals, wgpu.TextureFormatBGRA8UnormSrgb)
	c.Assert(p.BindGroupLayouts(), qt.HasLen, 1)
	c.Assert(p.BindGroupLayout(3), qt.IsNil)
	c.Assert(p.VertexLayouts(), qt.HasLen, 1)

	c.Assert(device.calls, qt.DeepEquals, []string{
		"module:shader.vert",
		"module:shader.frag",
		"bind_group_layout",
		"pipeline_layout",
		"render_pipeline",
	})

	entries := device.layouts[0].Entries
	c.Assert(entries, qt.HasLen, 3)
	c.Assert(entries[0].Visibility, qt.Equals, wgpu.ShaderStageFragment)
	c.Assert(entries[2].Binding, qt.Equals, uint32(2))
	c.Assert(entries[2].Visibility, qt.Equals, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment)

	desc := device.pipeline
	c.Assert(desc.Vertex.EntryPoint, qt.Equals, "vs_main")
	c.Assert(desc.Vertex.Buffers, qt.HasLen, 1)
	c.Assert(desc.Fragment.EntryPoint, qt.Equals, "fs_main")
	c.Assert(desc.Fragment.Targets, qt.HasLen, 1)
	c.Assert(desc.Fragment.Targets[0].Format, qt.Equals, wgpu.TextureFormatBGRA8UnormSrgb)
	c.Assert(desc.Fragment.Targets[0].Blend, qt.IsNil)
	c.Assert(desc.DepthStencil, qt.IsNil)
	c.Assert(desc.Multisample.Count, qt.Equals, uint32(1))
	c.Assert(desc.Primitive.Topology, qt.Equals, wgpu.PrimitiveTopologyTriangleList)

	p.Release()
	p.Release()
}

func TestNewRenderPipelineOptions(t *testing.T) {
	c := qt.New(t)
	vs := mustParse(c, "v", shader.ShaderStageVertex, vertexSource)
	fs := mustParse(c, "f", shader.ShaderStageFragment, fragmentSource)
	device := &fakeDevice{}

	p, err := NewRenderPipeline(device, "opts", vs, fs,
		WithColorFormat(wgpu.TextureFormatRGBA8Unorm),
		WithBlendState(AlphaBlending),
		WithCullMode(wgpu.CullModeBack),
		WithFrontFace(wgpu.FrontFaceCW),
		WithTopology(wgpu.PrimitiveTopologyLineList),
		WithWriteMask(wgpu.ColorWriteMaskRed),
		WithLabel("debug-name"),
	)
	c.Assert(err, qt.IsNil)
	c.Assert(p.ColorFormat(), qt.Equals, wgpu.TextureFormatRGBA8Unorm)

	desc := device.pipeline
	c.Assert(desc.Label, qt.Equals, "debug-name Render Pipeline")
	c.Assert(desc.Fragment.Targets[0].Format, qt.Equals, wgpu.TextureFormatRGBA8Unorm)
	c.Assert(desc.Fragment.Targets[0].Blend, qt.Equals, AlphaBlending)
	c.Assert(desc.Fragment.Targets[0].WriteMask, qt.Equals, wgpu.ColorWriteMaskRed)
	c.Assert(desc.Primitive.CullMode, qt.Equals, wgpu.CullModeBack)
	c.Assert(desc.Primitive.FrontFace, qt.Equals, wgpu.FrontFaceCW)
	c.Assert(desc.Primitive.Topology, qt.Equals, wgpu.PrimitiveTopologyLineList)
}

func TestNewRenderPipelineDeviceRejection(t *testing.T) {
	for _, failOn := range []string{"module:v", "module:f", "bind_group_layout", "pipeline_layout", "render_pipeline"} {
		t.Run(failOn, func(t *testing.T) {
			c := qt.New(t)
			vs := mustParse(c, "v", shader.ShaderStageVertex, vertexSource)
			fs := mustParse(c, "f", shader.ShaderStageFragment, fragmentSource)
			device := &fakeDevice{failOn: failOn}

			p, err := NewRenderPipeline(device, "rejected", vs, fs)
			c.Assert(p, qt.IsNil)
			c.Assert(err, qt.ErrorIs, errRejected)
			c.Assert(err, qt.ErrorMatches, "pipeline rejected: .*")
			// Creation stops at the first rejected object.
			c.Assert(device.calls[len(device.calls)-1], qt.Equals, failOn)
		})
	}
}

func TestNewRenderPipelineIncompatibleStages(t *testing.T) {
	c := qt.New(t)
	device := &fakeDevice{}
	vs := mustParse(c, "v", shader.ShaderStageVertex, `
@vertex
fn vs_main(@location(0) position: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position, 0.0, 1.0);
}
`)
	fs := mustParse(c, "f", shader.ShaderStageFragment, fragmentSource)

	p, err := NewRenderPipeline(device, "broken", vs, fs)
	c.Assert(p, qt.IsNil)
	c.Assert(err, qt.ErrorIs, ErrIncompatibleStages)
	c.Assert(device.calls, qt.HasLen, 0)
}

func TestValidateStageInterface(t *testing.T) {
	c := qt.New(t)
	vs := mustParse(c, "v", shader.ShaderStageVertex, vertexSource)
	fs := mustParse(c, "f", shader.ShaderStageFragment, fragmentSource)
	mismatched := mustParse(c, "f2", shader.ShaderStageFragment, `
@fragment
fn fs_main(@location(1) shade: vec4<f32>) -> @location(0) vec4<f32> {
    return shade;
}
`)

	c.Assert(ValidateStageInterface(vs, fs), qt.IsNil)
	c.Assert(ValidateStageInterface(fs, fs), qt.ErrorIs, ErrIncompatibleStages)
	c.Assert(ValidateStageInterface(vs, vs), qt.ErrorIs, ErrIncompatibleStages)
	c.Assert(ValidateStageInterface(nil, fs), qt.ErrorIs, ErrIncompatibleStages)

	err := ValidateStageInterface(vs, mismatched)
	c.Assert(err, qt.ErrorIs, ErrIncompatibleStages)
	c.Assert(err, qt.ErrorMatches, `.*@location\(1\) is f32 in v but vec4<f32> in f2`)
}

func TestMergeBindGroupLayouts(t *testing.T) {
	c := qt.New(t)
	vertex := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 1, Visibility: wgpu.ShaderStageVertex}}},
		2: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 0, Visibility: wgpu.ShaderStageVertex}}},
	}
	fragment := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 1, Visibility: wgpu.ShaderStageFragment},
			{Binding: 0, Visibility: wgpu.ShaderStageFragment},
		}},
	}

	merged := mergeBindGroupLayouts(vertex, fragment)
	c.Assert(merged, qt.HasLen, 2)
	c.Assert(merged[0].Entries, qt.DeepEquals, []wgpu.BindGroupLayoutEntry{
		{Binding: 0, Visibility: wgpu.ShaderStageFragment},
		{Binding: 1, Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment},
	})
	c.Assert(merged[2].Entries, qt.HasLen, 1)
}

package shader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	qt "github.com/frankban/quicktest"
)

const texturedVertex = `
struct VertexInput {
    @location(0) position: vec2<f32>,
    @builtin(vertex_index) index: u32,
};

struct VertexOutput {
    @builtin(position) clip: vec4<f32>,
    @location(0) uv: vec2f,
};

// @fragment fn not_this_one() {}
@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.clip = vec4<f32>(in.position, 0.0, 1.0);
    out.uv = in.position + vec2<f32>(0.5, 0.5);
    return out;
}
`

const texturedFragment = `
struct VertexOutput {
    @builtin(position) clip: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@group(0) @binding(0) var grid: texture_2d<f32>;
@group(0) @binding(1) var grid_sampler: sampler;
@group(1) @binding(0) var<uniform> tint: vec4<f32>;
@group(1) @binding(1) var<storage, read> weights: array<f32>;

/* block comment with @vertex fn fake() inside /* nested */ */
@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(grid, grid_sampler, in.uv) * tint;
}
`

func TestParseVertexInterface(t *testing.T) {
	c := qt.New(t)

	s, err := Parse("shader.vert", ShaderStageVertex, texturedVertex, WithValidation(false))
	c.Assert(err, qt.IsNil)
	c.Assert(s.Key(), qt.Equals, "shader.vert")
	c.Assert(s.Stage(), qt.Equals, ShaderStageVertex)
	c.Assert(s.EntryPoint(), qt.Equals, "vs_main")
	c.Assert(s.Inputs(), qt.DeepEquals, []StageVariable{{Location: 0, Name: "position", Type: "vec2<f32>"}})
	c.Assert(s.Outputs(), qt.DeepEquals, []StageVariable{{Location: 0, Name: "uv", Type: "vec2<f32>"}})
	c.Assert(s.SPIRV(), qt.IsNil)

	layouts := s.VertexLayouts()
	c.Assert(layouts, qt.HasLen, 1)
	c.Assert(layouts[0].ArrayStride, qt.Equals, uint64(8))
	c.Assert(layouts[0].StepMode, qt.Equals, wgpu.VertexStepModeVertex)
	c.Assert(layouts[0].Attributes, qt.DeepEquals, []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
	})
}

func TestParseFragmentBindGroups(t *testing.T) {
	c := qt.New(t)

	s, err := Parse("shader.frag", ShaderStageFragment, texturedFragment, WithValidation(false))
	c.Assert(err, qt.IsNil)
	c.Assert(s.EntryPoint(), qt.Equals, "fs_main")
	c.Assert(s.Inputs(), qt.DeepEquals, []StageVariable{{Location: 0, Name: "uv", Type: "vec2<f32>"}})
	c.Assert(s.Outputs(), qt.DeepEquals, []StageVariable{{Location: 0, Name: "_ret", Type: "vec4<f32>"}})
	c.Assert(s.VertexLayouts(), qt.IsNil)

	groups := s.BindGroupLayoutDescriptors()
	c.Assert(groups, qt.HasLen, 2)

	g0 := groups[0].Entries
	c.Assert(g0, qt.HasLen, 2)
	c.Assert(g0[0].Binding, qt.Equals, uint32(0))
	c.Assert(g0[0].Visibility, qt.Equals, wgpu.ShaderStageFragment)
	c.Assert(g0[0].Texture.SampleType, qt.Equals, wgpu.TextureSampleTypeFloat)
	c.Assert(g0[0].Texture.ViewDimension, qt.Equals, wgpu.TextureViewDimension2D)
	c.Assert(g0[1].Sampler.Type, qt.Equals, wgpu.SamplerBindingTypeFiltering)

	g1 := groups[1].Entries
	c.Assert(g1, qt.HasLen, 2)
	c.Assert(g1[0].Buffer.Type, qt.Equals, wgpu.BufferBindingTypeUniform)
	c.Assert(g1[1].Buffer.Type, qt.Equals, wgpu.BufferBindingTypeReadOnlyStorage)
}

func TestParseMultipleParametersAndLocations(t *testing.T) {
	c := qt.New(t)
	src := `
@vertex
fn main(@location(1) color: vec4<f32>, @builtin(instance_index) i: u32, @location(0) pos: vec3f) -> @builtin(position) vec4<f32> {
    return vec4<f32>(pos, 1.0) * color;
}
`
	s, err := Parse("multi", ShaderStageVertex, src, WithValidation(false))
	c.Assert(err, qt.IsNil)
	c.Assert(s.Inputs(), qt.DeepEquals, []StageVariable{
		{Location: 0, Name: "pos", Type: "vec3<f32>"},
		{Location: 1, Name: "color", Type: "vec4<f32>"},
	})
	c.Assert(s.Outputs(), qt.HasLen, 0)

	// Buffer layout follows declaration order, not location order.
	attrs := s.VertexLayouts()[0].Attributes
	c.Assert(attrs, qt.HasLen, 2)
	c.Assert(attrs[0].ShaderLocation, qt.Equals, uint32(1))
	c.Assert(attrs[0].Offset, qt.Equals, uint64(0))
	c.Assert(attrs[1].ShaderLocation, qt.Equals, uint32(0))
	c.Assert(attrs[1].Offset, qt.Equals, uint64(16))
	c.Assert(s.VertexLayouts()[0].ArrayStride, qt.Equals, uint64(28))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		stage  ShaderStage
		source string
	}{
		{"empty key", "", ShaderStageVertex, texturedVertex},
		{"wrong stage", "s", ShaderStageFragment, texturedVertex},
		{"unknown stage", "s", ShaderStage(7), texturedVertex},
		{"duplicate location", "s", ShaderStageVertex, `@vertex fn m(@location(0) a: f32, @location(0) b: f32) -> @builtin(position) vec4<f32> { return vec4<f32>(a); }`},
		{"unsupported vertex type", "s", ShaderStageVertex, `@vertex fn m(@location(0) a: mat4x4<f32>) -> @builtin(position) vec4<f32> { return a[0]; }`},
		{"unterminated", "s", ShaderStageVertex, `@vertex fn m(@location(0) a: f32`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			_, err := Parse(tt.key, tt.stage, tt.source, WithValidation(false))
			c.Assert(err, qt.ErrorIs, ErrCompile)
		})
	}
}

func TestParseValidatesWithNaga(t *testing.T) {
	c := qt.New(t)

	src := `
@vertex
fn vs_main(@location(0) position: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position, 0.0, 1.0);
}
`
	s, err := Parse("valid", ShaderStageVertex, src)
	c.Assert(err, qt.IsNil)
	c.Assert(len(s.SPIRV()) > 0, qt.IsTrue)

	_, err = Parse("broken", ShaderStageVertex, "@vertex fn vs_main( -> {")
	c.Assert(err, qt.ErrorIs, ErrCompile)
	c.Assert(err, qt.ErrorMatches, `(?s).*broken.*`)
}

func TestCompileFromFile(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "shader.frag.wgsl")
	c.Assert(os.WriteFile(path, []byte(texturedFragment), 0o644), qt.IsNil)

	s, err := Compile("frag", ShaderStageFragment, path, WithValidation(false))
	c.Assert(err, qt.IsNil)
	c.Assert(s.Path(), qt.Equals, path)
	c.Assert(s.Source(), qt.Equals, texturedFragment)

	desc := s.ModuleDescriptor()
	c.Assert(desc.Label, qt.Equals, "frag")
	c.Assert(desc.WGSLDescriptor.Code, qt.Equals, texturedFragment)

	_, err = Compile("missing", ShaderStageFragment, filepath.Join(c.TempDir(), "nope.wgsl"))
	c.Assert(err, qt.ErrorIs, ErrCompile)
	c.Assert(err, qt.ErrorIs, os.ErrNotExist)
}

func TestNormalizeType(t *testing.T) {
	c := qt.New(t)
	c.Assert(normalizeType(" vec4f "), qt.Equals, "vec4<f32>")
	c.Assert(normalizeType("vec2u"), qt.Equals, "vec2<u32>")
	c.Assert(normalizeType("vec3< i32 >"), qt.Equals, "vec3<i32>")
	c.Assert(normalizeType("f32"), qt.Equals, "f32")
}

func TestSplitAtTopLevelCommas(t *testing.T) {
	c := qt.New(t)
	parts := splitAtTopLevelCommas("@location(0) a: vec2<f32>, b: array<f32, 4>, @builtin(position) p: vec4<f32>")
	c.Assert(parts, qt.HasLen, 3)
}

func TestStripComments(t *testing.T) {
	c := qt.New(t)
	got := stripComments("a /* x /* y */ z */ b // c\nd")
	c.Assert(got, qt.Equals, "a  b \nd\n")
}

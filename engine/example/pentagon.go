// Package example holds a producer that draws a textured pentagon, used by the demo and as a reference for
// building resources through the renderer caches.
package example

import (
	"fmt"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/draw_command"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/texture"
	"github.com/cogentcore/webgpu/wgpu"
)

// Cache keys of the resources the pentagon draws with. Shader and texture keys are paths relative to the
// asset directory.
const (
	VertexShaderKey   = "shaders/shader.vert.wgsl"
	FragmentShaderKey = "shaders/shader.frag.wgsl"
	TextureKey        = "textures/grid.png"
	PipelineKey       = "example"
	BindGroupKey      = "example/grid"
)

// Vertex is a 2D position in clip space. The shader derives texture coordinates from it.
type Vertex struct {
	X, Y float32
}

// Vertices outline a regular pentagon centered on the origin.
var Vertices = []Vertex{
	{-0.0868241, 0.49240386},
	{-0.49513406, 0.06958647},
	{-0.21918549, -0.44939706},
	{0.35966998, -0.3473291},
	{0.44147372, 0.2347359},
}

// Indices fan three triangles out of vertex 4.
var Indices = []uint16{
	0, 1, 4,
	1, 2, 4,
	2, 3, 4,
}

// Resources is the part of renderer.Renderer the pentagon needs to build and queue its draw.
type Resources interface {
	LoadShader(key string, stage shader.ShaderStage, path string) (shader.Shader, error)
	CreatePipeline(key, vertexKey, fragmentKey string, opts ...pipeline.PipelineBuilderOption) (pipeline.Pipeline, error)
	LoadTexture(key, path string) (texture.Texture, error)
	CreateTextureBindGroup(key, pipelineKey string, group int, textureKey string, samplerData common.SamplerStagingData) (bind_group_provider.BindGroupProvider, error)
	EnqueueDrawCommand(cmd draw_command.DrawCommand)
}

var _ Resources = renderer.Renderer(nil)

// Pentagon produces one draw command per call to Produce.
type Pentagon struct {
	resources Resources
	device    draw_command.Device
	assetDir  string
	sampler   common.SamplerStagingData
	produced  uint64
}

// NewPentagon creates the producer. Nothing is loaded until the first Produce.
//
// Parameters:
//   - r: the renderer the pentagon is drawn with
//   - assetDir: the directory holding the shaders/ and textures/ folders
//
// Returns:
//   - *Pentagon: the producer
func NewPentagon(r renderer.Renderer, assetDir string) *Pentagon {
	return newPentagon(r, r.Backend(), assetDir)
}

func newPentagon(resources Resources, device draw_command.Device, assetDir string) *Pentagon {
	return &Pentagon{
		resources: resources,
		device:    device,
		assetDir:  assetDir,
		sampler: common.SamplerStagingData{
			AddressModeU: wgpu.AddressModeClampToEdge,
			AddressModeV: wgpu.AddressModeClampToEdge,
			MagFilter:    wgpu.FilterModeLinear,
			MinFilter:    wgpu.FilterModeLinear,
		},
	}
}

// Produce makes sure the shaders, pipeline, texture and bind group are cached, then enqueues the draw.
// Every resource lookup goes through the cache, so resources are built on the first call only.
//
// Returns:
//   - error: the first resource or upload error
func (p *Pentagon) Produce() error {
	if _, err := p.resources.LoadShader(VertexShaderKey, shader.ShaderStageVertex, p.asset(VertexShaderKey)); err != nil {
		return err
	}
	if _, err := p.resources.LoadShader(FragmentShaderKey, shader.ShaderStageFragment, p.asset(FragmentShaderKey)); err != nil {
		return err
	}
	if _, err := p.resources.CreatePipeline(PipelineKey, VertexShaderKey, FragmentShaderKey); err != nil {
		return err
	}
	if _, err := p.resources.LoadTexture(TextureKey, p.asset(TextureKey)); err != nil {
		return err
	}
	bindGroup, err := p.resources.CreateTextureBindGroup(BindGroupKey, PipelineKey, 0, TextureKey, p.sampler)
	if err != nil {
		return err
	}

	cmd, err := draw_command.NewDrawCommand(p.device, PipelineKey, Vertices, Indices, bindGroup.BindGroup())
	if err != nil {
		return fmt.Errorf("pentagon draw %d: %w", p.produced, err)
	}
	p.resources.EnqueueDrawCommand(cmd)
	p.produced++
	return nil
}

// Produced returns the number of draw commands enqueued so far.
func (p *Pentagon) Produced() uint64 {
	return p.produced
}

func (p *Pentagon) asset(key string) string {
	return filepath.Join(p.assetDir, filepath.FromSlash(key))
}

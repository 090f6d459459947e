package example

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/draw_command"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/texture"
	"github.com/cogentcore/webgpu/wgpu"
	qt "github.com/frankban/quicktest"
)

// fakeResources caches keys the way the renderer does and records how often each resource was built.
type fakeResources struct {
	built    map[string]int
	paths    map[string]string
	failKey  string
	queue    []draw_command.DrawCommand
	samplers []common.SamplerStagingData
}

var errBuild = errors.New("build failed")

func newFakeResources() *fakeResources {
	return &fakeResources{built: make(map[string]int), paths: make(map[string]string)}
}

func (f *fakeResources) getOrBuild(key, path string) error {
	if _, ok := f.built[key]; ok {
		return nil
	}
	if key == f.failKey {
		return errBuild
	}
	f.built[key]++
	f.paths[key] = path
	return nil
}

func (f *fakeResources) LoadShader(key string, _ shader.ShaderStage, path string) (shader.Shader, error) {
	return nil, f.getOrBuild(key, path)
}

func (f *fakeResources) CreatePipeline(key, vertexKey, fragmentKey string, _ ...pipeline.PipelineBuilderOption) (pipeline.Pipeline, error) {
	return nil, f.getOrBuild(key, vertexKey+"+"+fragmentKey)
}

func (f *fakeResources) LoadTexture(key, path string) (texture.Texture, error) {
	return nil, f.getOrBuild(key, path)
}

func (f *fakeResources) CreateTextureBindGroup(key, pipelineKey string, _ int, textureKey string, samplerData common.SamplerStagingData) (bind_group_provider.BindGroupProvider, error) {
	f.samplers = append(f.samplers, samplerData)
	if err := f.getOrBuild(key, pipelineKey+"+"+textureKey); err != nil {
		return nil, err
	}
	return bind_group_provider.NewBindGroupProvider(key, nil), nil
}

func (f *fakeResources) EnqueueDrawCommand(cmd draw_command.DrawCommand) {
	f.queue = append(f.queue, cmd)
}

type fakeDevice struct {
	buffers []wgpu.BufferInitDescriptor
	err     error
}

func (d *fakeDevice) CreateBufferInit(desc *wgpu.BufferInitDescriptor) (*wgpu.Buffer, error) {
	d.buffers = append(d.buffers, *desc)
	return nil, d.err
}

func TestPentagonBuildsResourcesOnce(t *testing.T) {
	c := qt.New(t)
	res := newFakeResources()
	device := &fakeDevice{}
	p := newPentagon(res, device, "assets")

	for range 3 {
		c.Assert(p.Produce(), qt.IsNil)
	}

	c.Assert(p.Produced(), qt.Equals, uint64(3))
	c.Assert(res.queue, qt.HasLen, 3)
	c.Assert(res.built, qt.DeepEquals, map[string]int{
		VertexShaderKey:   1,
		FragmentShaderKey: 1,
		PipelineKey:       1,
		TextureKey:        1,
		BindGroupKey:      1,
	})
	c.Assert(res.paths[TextureKey], qt.Equals, filepath.Join("assets", "textures", "grid.png"))
	c.Assert(res.paths[PipelineKey], qt.Equals, VertexShaderKey+"+"+FragmentShaderKey)
	c.Assert(res.samplers[0].AddressModeU, qt.Equals, wgpu.AddressModeClampToEdge)
	c.Assert(res.samplers[0].MagFilter, qt.Equals, wgpu.FilterModeLinear)

	cmd := res.queue[0]
	c.Assert(cmd.PipelineName, qt.Equals, PipelineKey)
	c.Assert(cmd.IndexCount, qt.Equals, uint32(9))
	c.Assert(cmd.IndexFormat, qt.Equals, wgpu.IndexFormatUint16)

	// One vertex and one index buffer per produced command.
	c.Assert(device.buffers, qt.HasLen, 6)
	c.Assert(device.buffers[0].Contents, qt.HasLen, 5*8)
	c.Assert(device.buffers[1].Contents, qt.HasLen, 20)
}

func TestPentagonStopsAtFirstMissingResource(t *testing.T) {
	for _, key := range []string{VertexShaderKey, FragmentShaderKey, PipelineKey, TextureKey, BindGroupKey} {
		t.Run(key, func(t *testing.T) {
			c := qt.New(t)
			res := newFakeResources()
			res.failKey = key
			p := newPentagon(res, &fakeDevice{}, "assets")

			c.Assert(p.Produce(), qt.ErrorIs, errBuild)
			c.Assert(res.queue, qt.HasLen, 0)
			c.Assert(p.Produced(), qt.Equals, uint64(0))
		})
	}
}

func TestPentagonUploadFailure(t *testing.T) {
	c := qt.New(t)
	res := newFakeResources()
	failure := errors.New("out of memory")
	p := newPentagon(res, &fakeDevice{err: failure}, "assets")

	err := p.Produce()
	c.Assert(err, qt.ErrorIs, failure)
	c.Assert(err, qt.ErrorMatches, "pentagon draw 0: .*")
	c.Assert(res.queue, qt.HasLen, 0)
}

func TestPentagonAssets(t *testing.T) {
	c := qt.New(t)
	assets := filepath.Join("..", "..", "examples", "pentagon", "assets")

	vs, err := shader.Compile(VertexShaderKey, shader.ShaderStageVertex, filepath.Join(assets, VertexShaderKey), shader.WithValidation(false))
	c.Assert(err, qt.IsNil)
	fs, err := shader.Compile(FragmentShaderKey, shader.ShaderStageFragment, filepath.Join(assets, FragmentShaderKey), shader.WithValidation(false))
	c.Assert(err, qt.IsNil)
	c.Assert(pipeline.ValidateStageInterface(vs, fs), qt.IsNil)

	// The vertex layout must match Vertex.
	c.Assert(vs.VertexLayouts()[0].ArrayStride, qt.Equals, uint64(8))
	c.Assert(fs.BindGroupLayoutDescriptors()[0].Entries, qt.HasLen, 2)

	img, err := common.DecodeImageFile(filepath.Join(assets, TextureKey))
	c.Assert(err, qt.IsNil)
	c.Assert(img.Validate(), qt.IsNil)
}

func TestPentagonGeometry(t *testing.T) {
	c := qt.New(t)
	c.Assert(Vertices, qt.HasLen, 5)
	c.Assert(len(Indices)%3, qt.Equals, 0)
	for _, i := range Indices {
		c.Assert(int(i) < len(Vertices), qt.IsTrue)
	}
}

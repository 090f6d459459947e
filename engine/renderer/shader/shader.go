package shader

import (
	"errors"
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderStage identifies the programmable pipeline stage a shader module is compiled for.
type ShaderStage int

const (
	// ShaderStageVertex is a module containing a @vertex entry point.
	ShaderStageVertex ShaderStage = iota

	// ShaderStageFragment is a module containing a @fragment entry point.
	ShaderStageFragment
)

// String returns the WGSL attribute name of the stage.
func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderStage(%d)", int(s))
	}
}

// Visibility returns the wgpu stage flag used for bind group layout entries declared by this stage.
func (s ShaderStage) Visibility() wgpu.ShaderStage {
	switch s {
	case ShaderStageVertex:
		return wgpu.ShaderStageVertex
	case ShaderStageFragment:
		return wgpu.ShaderStageFragment
	default:
		return wgpu.ShaderStageNone
	}
}

// ErrCompile is wrapped by every error returned for invalid shader source.
var ErrCompile = errors.New("shader compilation failed")

// shader is the implementation of the Shader interface.
// It holds the CPU-side result of compiling one WGSL module: the source, its stage interface and the layouts
// a pipeline needs. Device objects are created from it by the pipeline that consumes it.
type shader struct {
	key                        string
	path                       string
	source                     string
	stage                      ShaderStage
	entryPoint                 string
	inputs                     []StageVariable
	outputs                    []StageVariable
	vertexLayouts              []wgpu.VertexBufferLayout
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	spirv                      []byte

	validate bool
	debug    bool
}

// Shader defines the interface for a compiled WGSL shader module. It exposes the shader's unique key,
// source, entry point, stage interface, vertex buffer layouts and bind group layout descriptors needed for
// pipeline creation and bind group wiring. A Shader is immutable once compiled.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Path retrieves the file the shader was compiled from.
	//
	// Returns:
	//   - string: the source path, or an empty string for shaders parsed from memory
	Path() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// Stage returns the pipeline stage this shader was compiled for.
	//
	// Returns:
	//   - ShaderStage: ShaderStageVertex or ShaderStageFragment
	Stage() ShaderStage

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the name of the function carrying the stage attribute (e.g. "vs_main")
	EntryPoint() string

	// Inputs returns the user-defined @location inputs of the entry point, sorted by location.
	// Struct parameters are expanded into their members and builtins are excluded.
	//
	// Returns:
	//   - []StageVariable: the stage inputs
	Inputs() []StageVariable

	// Outputs returns the user-defined @location outputs of the entry point, sorted by location.
	//
	// Returns:
	//   - []StageVariable: the stage outputs
	Outputs() []StageVariable

	// VertexLayouts returns the vertex buffer layouts derived from a vertex entry point's inputs.
	// Inputs are interleaved in a single buffer in declaration order. Fragment shaders return nil.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the vertex buffer layouts
	VertexLayouts() []wgpu.VertexBufferLayout

	// BindGroupLayoutDescriptors retrieves the bind group layout descriptors parsed from the source,
	// keyed by group index, with the stage's visibility on every entry.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// SPIRV returns the SPIR-V binary produced during validation.
	//
	// Returns:
	//   - []byte: the SPIR-V words as bytes, or nil when validation was disabled
	SPIRV() []byte

	// ModuleDescriptor builds the descriptor used to create the device-side shader module.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: a WGSL module descriptor labeled with the shader key
	ModuleDescriptor() *wgpu.ShaderModuleDescriptor
}

var _ Shader = &shader{}

// Compile reads a WGSL file and compiles it for the given stage. The source is validated by the naga
// front-end before its interface is extracted, so invalid source never produces a Shader.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - stage: the stage whose entry point the module must contain
//   - path: the file path to read WGSL source from
//   - options: variadic list of ShaderBuilderOption functions
//
// Returns:
//   - Shader: the compiled shader
//   - error: an error wrapping ErrCompile when the file cannot be read or the source is invalid
func Compile(key string, stage ShaderStage, path string, options ...ShaderBuilderOption) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrCompile, path, err)
	}
	s, err := newShader(key, stage, string(data), options...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.path = path
	return s, nil
}

// Parse compiles WGSL source held in memory. It behaves like Compile without the file read.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - stage: the stage whose entry point the module must contain
//   - source: the WGSL source
//   - options: variadic list of ShaderBuilderOption functions
//
// Returns:
//   - Shader: the compiled shader
//   - error: an error wrapping ErrCompile if the source is invalid
func Parse(key string, stage ShaderStage, source string, options ...ShaderBuilderOption) (Shader, error) {
	return newShader(key, stage, source, options...)
}

func newShader(key string, stage ShaderStage, source string, options ...ShaderBuilderOption) (*shader, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: shader key must not be empty", ErrCompile)
	}
	if stage != ShaderStageVertex && stage != ShaderStageFragment {
		return nil, fmt.Errorf("%w: unsupported stage %s", ErrCompile, stage)
	}
	s := &shader{
		key:      key,
		source:   source,
		stage:    stage,
		validate: true,
	}
	for _, opt := range options {
		opt(s)
	}

	if s.validate {
		spirv, err := compileSPIRV(source, s.debug)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCompile, key, err)
		}
		s.spirv = spirv
	}
	if err := s.parse(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCompile, key, err)
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Path() string {
	return s.path
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) Stage() ShaderStage {
	return s.stage
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) Inputs() []StageVariable {
	return s.inputs
}

func (s *shader) Outputs() []StageVariable {
	return s.outputs
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) SPIRV() []byte {
	return s.spirv
}

func (s *shader) ModuleDescriptor() *wgpu.ShaderModuleDescriptor {
	return &wgpu.ShaderModuleDescriptor{
		Label: s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.source,
		},
	}
}

// parse extracts the entry point, stage interface and layouts from the source.
// Vertex shaders additionally get their vertex buffer layout built from the entry point inputs.
func (s *shader) parse() error {
	clean := stripComments(s.source)
	fn, err := parseEntryFunction(clean, s.stage)
	if err != nil {
		return err
	}
	s.entryPoint = fn.name

	inputs, outputs, err := parseStageInterface(fn, parseStructBlocks(clean))
	if err != nil {
		return err
	}
	if s.stage == ShaderStageVertex {
		s.vertexLayouts, err = buildVertexBufferLayout(inputs)
		if err != nil {
			return err
		}
	}
	s.inputs = sortByLocation(inputs)
	s.outputs = sortByLocation(outputs)
	s.bindGroupLayoutDescriptors = parseBindGroupLayouts(clean, s.stage.Visibility())
	return nil
}

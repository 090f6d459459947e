package shader

import "github.com/cogentcore/webgpu/wgpu"

// vertexFormatInfo holds the wgpu vertex format and its byte size for offset calculation
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// sampledTextureInfo holds the view dimension and multisampled flag for a sampled texture type
type sampledTextureInfo struct {
	viewDimension wgpu.TextureViewDimension
	multisampled  bool
}

// parsedField is a single struct member or function parameter with its attributes resolved.
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct is a WGSL struct block extracted during parsing.
type parsedStruct struct {
	name   string
	fields []parsedField
}

// entryFunction is the signature of a stage entry point: its name, raw parameter list and raw return type.
type entryFunction struct {
	name       string
	params     string
	returnType string
}

// StageVariable is one user-defined value crossing a shader stage boundary, identified by its @location.
type StageVariable struct {
	// Location is the @location index of the variable.
	Location int
	// Name is the member or parameter name in the shader source.
	Name string
	// Type is the normalized WGSL type, with shorthand aliases expanded (vec4f becomes vec4<f32>).
	Type string
}

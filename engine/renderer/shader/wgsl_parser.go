package shader

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslVertexFormatMap maps normalized WGSL type names to their wgpu vertex format and byte size
var wgslVertexFormatMap = map[string]vertexFormatInfo{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"i32":       {wgpu.VertexFormatSint32, 4},
	"vec2<i32>": {wgpu.VertexFormatSint32x2, 8},
	"vec3<i32>": {wgpu.VertexFormatSint32x3, 12},
	"vec4<i32>": {wgpu.VertexFormatSint32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"vec2<u32>": {wgpu.VertexFormatUint32x2, 8},
	"vec3<u32>": {wgpu.VertexFormatUint32x3, 12},
	"vec4<u32>": {wgpu.VertexFormatUint32x4, 16},
	"vec2<f16>": {wgpu.VertexFormatFloat16x2, 4},
	"vec4<f16>": {wgpu.VertexFormatFloat16x4, 8},
}

// wgslSampledTextureMap maps WGSL sampled texture base names to their view dimension and multisampled flag
var wgslSampledTextureMap = map[string]sampledTextureInfo{
	"texture_1d":              {wgpu.TextureViewDimension1D, false},
	"texture_2d":              {wgpu.TextureViewDimension2D, false},
	"texture_2d_array":        {wgpu.TextureViewDimension2DArray, false},
	"texture_3d":              {wgpu.TextureViewDimension3D, false},
	"texture_cube":            {wgpu.TextureViewDimensionCube, false},
	"texture_cube_array":      {wgpu.TextureViewDimensionCubeArray, false},
	"texture_multisampled_2d": {wgpu.TextureViewDimension2D, true},
	"texture_depth_2d":        {wgpu.TextureViewDimension2D, false},
	"texture_depth_cube":      {wgpu.TextureViewDimensionCube, false},
}

// wgslSampleTypeMap maps WGSL scalar type parameters to their wgpu texture sample type
var wgslSampleTypeMap = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\s*\(\s*(\d+)\s*\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\s*\(\s*\w+\s*\)`)

	// attributeRegex matches any attribute, with or without arguments
	attributeRegex = regexp.MustCompile(`@\w+(?:\s*\([^)]*\))?`)

	// entryRegex finds the function declaration following a stage attribute, e.g. "@vertex fn vs_main("
	entryRegexes = map[ShaderStage]*regexp.Regexp{
		ShaderStageVertex:   regexp.MustCompile(`@vertex\b(?:\s*@\w+(?:\s*\([^)]*\))?)*\s*fn\s+(\w+)\s*\(`),
		ShaderStageFragment: regexp.MustCompile(`@fragment\b(?:\s*@\w+(?:\s*\([^)]*\))?)*\s*fn\s+(\w+)\s*\(`),
	}

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> globals: Globals;
	// or handle types: @group(0) @binding(1) var grid: texture_2d<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	// vectorAliasRegex matches predeclared vector shorthands like vec3f or vec2u
	vectorAliasRegex = regexp.MustCompile(`^vec([234])([fiuh])$`)
)

// vectorAliasScalars maps the shorthand suffix of a vector alias to its scalar type
var vectorAliasScalars = map[string]string{
	"f": "f32",
	"i": "i32",
	"u": "u32",
	"h": "f16",
}

// parseEntryFunction locates the entry point for stage and splits its signature.
//
// Parameters:
//   - source: WGSL source with comments stripped
//   - stage: the stage whose entry point to find
//
// Returns:
//   - entryFunction: the entry point name, raw parameters and raw return type
//   - error: an error if no entry point exists for the stage or its signature is malformed
func parseEntryFunction(source string, stage ShaderStage) (entryFunction, error) {
	re, ok := entryRegexes[stage]
	if !ok {
		return entryFunction{}, fmt.Errorf("unsupported shader stage %s", stage)
	}
	loc := re.FindStringSubmatchIndex(source)
	if loc == nil {
		return entryFunction{}, fmt.Errorf("no @%s entry point found", stage)
	}
	name := source[loc[2]:loc[3]]

	// loc[1] sits just past the opening parenthesis of the parameter list.
	depth := 1
	end := -1
	for i := loc[1]; i < len(source) && end < 0; i++ {
		switch source[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
			}
		}
	}
	if end < 0 {
		return entryFunction{}, fmt.Errorf("unterminated parameter list for entry point %s", name)
	}

	fn := entryFunction{name: name, params: source[loc[1]:end]}
	rest := source[end+1:]
	body := strings.IndexByte(rest, '{')
	if body < 0 {
		return entryFunction{}, fmt.Errorf("missing body for entry point %s", name)
	}
	if ret, ok := strings.CutPrefix(strings.TrimSpace(rest[:body]), "->"); ok {
		fn.returnType = strings.TrimSpace(ret)
	}
	return fn, nil
}

// parseStageInterface resolves the user-defined @location inputs and outputs of an entry point.
// Struct-typed parameters and return types are expanded into their members. Builtins are excluded.
//
// Parameters:
//   - fn: the entry point signature
//   - structs: all structs declared in the source, keyed by name
//
// Returns:
//   - []StageVariable: the inputs sorted by location
//   - []StageVariable: the outputs sorted by location
//   - error: an error if a location is declared twice on the same side
func parseStageInterface(fn entryFunction, structs map[string]parsedStruct) ([]StageVariable, []StageVariable, error) {
	var inputs []StageVariable
	for _, param := range splitAtTopLevelCommas(fn.params) {
		if strings.TrimSpace(param) == "" {
			continue
		}
		field, ok := parseField(param)
		if !ok {
			return nil, nil, fmt.Errorf("malformed parameter %q in entry point %s", strings.TrimSpace(param), fn.name)
		}
		inputs = append(inputs, expandField(field, structs)...)
	}

	var outputs []StageVariable
	if fn.returnType != "" {
		field, ok := parseField("_ret: " + fn.returnType)
		if !ok {
			return nil, nil, fmt.Errorf("malformed return type %q in entry point %s", fn.returnType, fn.name)
		}
		outputs = expandField(field, structs)
	}

	if err := checkUniqueLocations(inputs); err != nil {
		return nil, nil, fmt.Errorf("entry point %s inputs: %w", fn.name, err)
	}
	if err := checkUniqueLocations(outputs); err != nil {
		return nil, nil, fmt.Errorf("entry point %s outputs: %w", fn.name, err)
	}
	return inputs, outputs, nil
}

// expandField turns a parameter or return value into stage variables, expanding struct types.
func expandField(field parsedField, structs map[string]parsedStruct) []StageVariable {
	if field.isBuiltin {
		return nil
	}
	if field.location >= 0 {
		return []StageVariable{{Location: field.location, Name: field.name, Type: field.typeName}}
	}
	ps, ok := structs[field.typeName]
	if !ok {
		return nil
	}
	vars := make([]StageVariable, 0, len(ps.fields))
	for _, f := range ps.fields {
		if f.isBuiltin || f.location < 0 {
			continue
		}
		vars = append(vars, StageVariable{Location: f.location, Name: f.name, Type: f.typeName})
	}
	return vars
}

// buildVertexBufferLayout packs the vertex stage inputs into a single interleaved buffer layout,
// in declaration order with tightly packed offsets.
//
// Parameters:
//   - inputs: the vertex stage inputs in declaration order
//
// Returns:
//   - []wgpu.VertexBufferLayout: one layout, or nil when the stage takes no vertex inputs
//   - error: an error if an input type has no vertex format
func buildVertexBufferLayout(inputs []StageVariable) ([]wgpu.VertexBufferLayout, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	attrs := make([]wgpu.VertexAttribute, 0, len(inputs))
	var offset uint64
	for _, in := range inputs {
		info, ok := wgslVertexFormatMap[in.Type]
		if !ok {
			return nil, fmt.Errorf("vertex input %s has unsupported type %s", in.Name, in.Type)
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         info.format,
			Offset:         offset,
			ShaderLocation: uint32(in.Location),
		})
		offset += info.size
	}
	return []wgpu.VertexBufferLayout{{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}}, nil
}

// parseBindGroupLayouts extracts all @group(N) @binding(M) declarations and returns them as layout
// descriptors keyed by group index, with entries sorted by binding.
//
// Parameters:
//   - source: WGSL source with comments stripped
//   - visibility: the shader stage visibility applied to every entry
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: layout descriptors keyed by group index
func parseBindGroupLayouts(source string, visibility wgpu.ShaderStage) map[int]wgpu.BindGroupLayoutDescriptor {
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	for _, match := range bindGroupDeclRegex.FindAllStringSubmatch(source, -1) {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		entry := classifyResource(uint32(binding), visibility, strings.TrimSpace(match[3]), strings.TrimSpace(match[5]))
		groups[group] = append(groups[group], entry)
	}

	result := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		result[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return result
}

// parseStructBlocks finds all struct blocks in the source and parses their members.
//
// Parameters:
//   - source: WGSL source with comments stripped
//
// Returns:
//   - map[string]parsedStruct: the structs keyed by name
func parseStructBlocks(source string) map[string]parsedStruct {
	structs := make(map[string]parsedStruct)
	for _, match := range structBlockRegex.FindAllStringSubmatch(source, -1) {
		ps := parsedStruct{name: match[1]}
		for _, member := range splitAtTopLevelCommas(match[2]) {
			if strings.TrimSpace(member) == "" {
				continue
			}
			if f, ok := parseField(member); ok {
				ps.fields = append(ps.fields, f)
			}
		}
		structs[ps.name] = ps
	}
	return structs
}

// parseField parses "attrs name: type" into a field. Fields without @location get location -1.
func parseField(decl string) (parsedField, bool) {
	f := parsedField{location: -1}
	if m := locationRegex.FindStringSubmatch(decl); m != nil {
		f.location, _ = strconv.Atoi(m[1])
	}
	f.isBuiltin = builtinRegex.MatchString(decl)

	name, typeName, ok := strings.Cut(attributeRegex.ReplaceAllString(decl, " "), ":")
	if !ok {
		return parsedField{}, false
	}
	f.name = strings.TrimSpace(name)
	f.typeName = normalizeType(typeName)
	if f.name == "" || f.typeName == "" {
		return parsedField{}, false
	}
	return f, true
}

// normalizeType removes whitespace and expands vector shorthands so equivalent spellings compare equal.
func normalizeType(typeName string) string {
	t := strings.Join(strings.Fields(typeName), "")
	if m := vectorAliasRegex.FindStringSubmatch(t); m != nil {
		return "vec" + m[1] + "<" + vectorAliasScalars[m[2]] + ">"
	}
	return t
}

// checkUniqueLocations rejects interfaces that bind the same location twice.
func checkUniqueLocations(vars []StageVariable) error {
	seen := make(map[int]string, len(vars))
	for _, v := range vars {
		if prev, ok := seen[v.Location]; ok {
			return fmt.Errorf("@location(%d) used by both %s and %s", v.Location, prev, v.Name)
		}
		seen[v.Location] = v.Name
	}
	return nil
}

// sortByLocation returns a copy of vars ordered by location.
func sortByLocation(vars []StageVariable) []StageVariable {
	sorted := append([]StageVariable(nil), vars...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Location < sorted[j].Location
	})
	return sorted
}

package shader

// ShaderBuilderOption is a functional option for configuring shader compilation.
type ShaderBuilderOption func(*shader)

// WithValidation enables or disables the naga validation pass. Validation is on by default;
// disabling it skips SPIR-V generation and leaves source errors to the device.
//
// Parameters:
//   - enabled: whether the source is validated before its interface is extracted
//
// Returns:
//   - ShaderBuilderOption: a function that applies the validation setting to a shader
func WithValidation(enabled bool) ShaderBuilderOption {
	return func(s *shader) {
		s.validate = enabled
	}
}

// WithDebugInfo embeds debug information in the generated SPIR-V.
//
// Parameters:
//   - enabled: whether debug info is emitted
//
// Returns:
//   - ShaderBuilderOption: a function that applies the debug setting to a shader
func WithDebugInfo(enabled bool) ShaderBuilderOption {
	return func(s *shader) {
		s.debug = enabled
	}
}

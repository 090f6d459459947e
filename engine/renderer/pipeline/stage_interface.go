package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader"
)

// ErrIncompatibleStages is wrapped by errors for shader pairs that cannot form a render pipeline.
var ErrIncompatibleStages = errors.New("incompatible shader stages")

// ValidateStageInterface checks that a vertex and fragment shader can be linked. Every fragment input
// must be written by the vertex stage at the same @location with the same type. Vertex outputs the
// fragment stage does not read are allowed.
//
// Parameters:
//   - vertex: the shader for the vertex stage
//   - fragment: the shader for the fragment stage
//
// Returns:
//   - error: an error wrapping ErrIncompatibleStages naming the first mismatch, or nil
func ValidateStageInterface(vertex, fragment shader.Shader) error {
	if vertex == nil || fragment == nil {
		return fmt.Errorf("%w: both vertex and fragment shaders are required", ErrIncompatibleStages)
	}
	if vertex.Stage() != shader.ShaderStageVertex {
		return fmt.Errorf("%w: %s is a %s shader, want vertex", ErrIncompatibleStages, vertex.Key(), vertex.Stage())
	}
	if fragment.Stage() != shader.ShaderStageFragment {
		return fmt.Errorf("%w: %s is a %s shader, want fragment", ErrIncompatibleStages, fragment.Key(), fragment.Stage())
	}

	produced := make(map[int]shader.StageVariable, len(vertex.Outputs()))
	for _, out := range vertex.Outputs() {
		produced[out.Location] = out
	}
	for _, in := range fragment.Inputs() {
		out, ok := produced[in.Location]
		if !ok {
			return fmt.Errorf("%w: fragment input %s at @location(%d) is not written by %s",
				ErrIncompatibleStages, in.Name, in.Location, vertex.Key())
		}
		if out.Type != in.Type {
			return fmt.Errorf("%w: @location(%d) is %s in %s but %s in %s",
				ErrIncompatibleStages, in.Location, out.Type, vertex.Key(), in.Type, fragment.Key())
		}
	}
	return nil
}

package shader

import (
	"github.com/gogpu/naga"
)

// compileSPIRV runs the WGSL source through naga's parse, lower and validate passes and returns
// the generated SPIR-V.
func compileSPIRV(source string, debug bool) ([]byte, error) {
	opts := naga.DefaultOptions()
	opts.Debug = debug
	opts.Validate = true
	return naga.CompileWithOptions(source, opts)
}

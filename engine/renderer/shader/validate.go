package shader

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// ErrInvalidSource is returned when WGSL source fails to compile.
var ErrInvalidSource = errors.New("invalid shader source")

// Validate compiles the shader's expanded source on the CPU so syntax and type errors surface
// before a GPU pipeline is created from it.
//
// Parameters:
//   - s: the shader to validate
//
// Returns:
//   - error: nil when the source compiles, otherwise an error wrapping ErrInvalidSource
func Validate(s Shader) error {
	if _, err := naga.Compile(s.Source()); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSource, s.Key(), err)
	}
	return nil
}

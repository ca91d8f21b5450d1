package pipeline

import (
	"encoding/binary"
	"math"
)

// KernelContext is what a CPUKernel sees while the software backend evaluates one draw.
type KernelContext interface {
	// Load reads texel (x, y) of input i with coordinates clamped to the input's edges.
	// A missing input reads as zero.
	Load(i, x, y int) [4]float32

	// SampleCube samples cube input i along dir. A non-cube input reads as zero.
	SampleCube(i int, dir [3]float32) [4]float32

	// InputSize returns the size of input i, or 0, 0 if it does not exist.
	InputSize(i int) (w, h int)

	// Uniform returns the i-th little-endian float32 of the uniform block, or 0 past its end.
	Uniform(i int) float32

	// Width and Height are the bound target's dimensions.
	Width() int
	Height() int

	// Viewport returns the active viewport rectangle in target texels.
	Viewport() (x, y, w, h int)
}

// CPUKernel computes the output color of target texel (x, y).
type CPUKernel func(ctx KernelContext, x, y int) [4]float32

// UniformAt decodes the i-th little-endian float32 in b. It is the shared helper behind
// KernelContext.Uniform implementations.
func UniformAt(b []byte, i int) float32 {
	off := i * 4
	if i < 0 || off+4 > len(b) {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

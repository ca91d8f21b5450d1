package common

import "math"

// MaxTextureSide is the largest state texture side. It matches the default WebGPU
// maxTextureDimension2D limit, and MaxTextureSide² particles still fit a uint32 instance count.
const MaxTextureSide = 8192

// ParticleCount returns the total number of particles stored in a square state texture.
//
// Parameters:
//   - side: the state texture side length (numParticles)
//
// Returns:
//   - int: side * side
func ParticleCount(side int) int {
	return side * side
}

// IndexToTexel maps a linear particle index to its texel coordinate in a square state texture.
// The mapping is row-major: x = i mod side, y = i div side.
//
// Parameters:
//   - i: the particle index in [0, side*side)
//   - side: the state texture side length
//
// Returns:
//   - x, y: the texel coordinate holding particle i
func IndexToTexel(i, side int) (x, y int) {
	return i % side, i / side
}

// TexelToIndex maps a texel coordinate back to its linear particle index.
//
// Parameters:
//   - x, y: the texel coordinate
//   - side: the state texture side length
//
// Returns:
//   - int: the particle index stored at (x, y)
func TexelToIndex(x, y, side int) int {
	return y*side + x
}

// Hash32 is the PCG-style integer hash shared by the CPU and WGSL seed kernels so both backends
// produce the same procedural particle layout.
func Hash32(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

// HashUnit maps Hash32 onto [0, 1].
func HashUnit(v uint32) float32 {
	return float32(float64(Hash32(v)) / math.MaxUint32)
}

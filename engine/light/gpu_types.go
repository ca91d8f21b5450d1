package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPULightUniformSource is the canonical WGSL definition of the LightUniform struct.
// Matches GPULightUniform layout exactly (112 bytes).
//
//go:embed assets/light_uniform.wgsl
var GPULightUniformSource string

// GPULightUniform is the GPU-aligned representation of the shadow-casting light.
// Matches the WGSL LightUniform struct layout exactly (see GPULightUniformSource).
type GPULightUniform struct {
	ShadowMatrix [16]float32 // offset  0: light projection × view
	Position     [3]float32  // offset 64: world-space position
	Intensity    float32     // offset 76: scalar multiplier
	Color        [3]float32  // offset 80: RGB color
	Bias         float32     // offset 92: constant depth bias
	CastsShadows uint32      // offset 96: 1 when the shadow capture is valid
	_pad         [3]uint32   // offset 100: padding to 112 bytes
}

// Size returns the size of the GPULightUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (112)
func (g *GPULightUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULightUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 112-byte buffer ready for GPU upload
func (g *GPULightUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.ShadowMatrix[i]))
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.Position[i]))
		binary.LittleEndian.PutUint32(buf[80+i*4:], math.Float32bits(g.Color[i]))
	}
	binary.LittleEndian.PutUint32(buf[76:], math.Float32bits(g.Intensity))
	binary.LittleEndian.PutUint32(buf[92:], math.Float32bits(g.Bias))
	binary.LittleEndian.PutUint32(buf[96:], g.CastsShadows)
	return buf
}

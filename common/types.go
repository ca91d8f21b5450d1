// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
// Environment map faces are staged this way before the cube texture is created.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels. This is required to correctly create the GPU texture and interpret the pixel data.
	Width uint32
	// Height is the height of the texture in pixels. This is required to correctly create the GPU texture and interpret the pixel data.
	Height uint32
}

// Texel returns the RGBA value at (x, y) normalized to [0, 1].
//
// Parameters:
//   - x, y: the pixel coordinate, clamped to the image bounds
//
// Returns:
//   - [4]float32: the normalized texel value, or zero if the staging data is empty
func (t TextureStagingData) Texel(x, y int) [4]float32 {
	if t.Width == 0 || t.Height == 0 || len(t.Pixels) < int(t.Width*t.Height*4) {
		return [4]float32{}
	}
	x = min(max(x, 0), int(t.Width)-1)
	y = min(max(y, 0), int(t.Height)-1)
	off := (y*int(t.Width) + x) * 4
	return [4]float32{
		float32(t.Pixels[off]) / 255,
		float32(t.Pixels[off+1]) / 255,
		float32(t.Pixels[off+2]) / 255,
		float32(t.Pixels[off+3]) / 255,
	}
}

// Color is a linear RGBA clear color.
type Color struct {
	R, G, B, A float64
}

// Array returns the color as a float32 RGBA tuple.
func (c Color) Array() [4]float32 {
	return [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
}

var (
	// ColorTransparent clears to fully transparent black.
	ColorTransparent = Color{}
	// ColorBlack clears to opaque black; velocity targets are cleared to this before every step.
	ColorBlack = Color{A: 1}
	// ColorWhite clears to opaque white; the shadow capture starts from the far plane.
	ColorWhite = Color{R: 1, G: 1, B: 1, A: 1}
)

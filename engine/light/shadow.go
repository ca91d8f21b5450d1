package light

import "math"

// DefaultShadowMapSize is the width and height in texels of the shadow capture target.
const DefaultShadowMapSize = 1024

// DefaultShadowFov is the vertical field of view of the light camera in radians.
const DefaultShadowFov float32 = math.Pi / 2

// DefaultShadowNear is the near plane of the light camera.
const DefaultShadowNear float32 = 0.5

// DefaultShadowFar is the far plane of the light camera.
const DefaultShadowFar float32 = 400.0

// DefaultShadowBias is the constant depth bias applied to shadow comparisons.
const DefaultShadowBias float32 = 0.001

// DefaultLightPosition is where NewLight places a light unless WithPosition says otherwise.
var DefaultLightPosition = [3]float32{0.5, 10, 1}

// ShadowSettings configures the light camera and the shadow capture target.
type ShadowSettings struct {
	MapSize int
	Fov     float32
	Near    float32
	Far     float32
	Bias    float32
}

// DefaultShadowSettings returns the settings used by NewLight.
//
// Returns:
//   - ShadowSettings: a 1024² map seen through a 90 degree camera spanning 0.5 to 400
func DefaultShadowSettings() ShadowSettings {
	return ShadowSettings{
		MapSize: DefaultShadowMapSize,
		Fov:     DefaultShadowFov,
		Near:    DefaultShadowNear,
		Far:     DefaultShadowFar,
		Bias:    DefaultShadowBias,
	}
}

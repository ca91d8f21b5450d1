package light

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-particles/engine/camera"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no meaningful position, only direction.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	LightTypePoint

	// LightTypeSpot represents a light that emits in a cone from a position toward a target.
	// The particle field is lit by a single spot light whose cone is the shadow frustum.
	LightTypeSpot
)

func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	default:
		return "unknown"
	}
}

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	mu *sync.Mutex

	lightType    LightType
	position     [3]float32
	target       [3]float32
	color        [3]float32
	intensity    float32
	enabled      bool
	castsShadows bool

	shadow ShadowSettings
	cam    camera.Camera
}

// Light is a scene light that can optionally act as a shadow caster. A shadow-casting light owns
// a perspective camera placed at its position and aimed at its target; the shadow capture stage
// renders particle depth through that camera and the main pass projects world positions with
// ShadowMatrix to look the depth up.
type Light interface {
	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type (directional, point, or spot)
	Type() LightType

	// Position returns the world-space position of the light.
	//
	// Returns:
	//   - [3]float32: position as (x, y, z)
	Position() [3]float32

	// Target returns the world-space point the light is aimed at.
	Target() [3]float32

	// Direction returns the normalized direction from Position to Target.
	//
	// Returns:
	//   - [3]float32: normalized direction as (x, y, z)
	Direction() [3]float32

	// Color returns the RGB color of the light.
	Color() [3]float32

	// Intensity returns the scalar intensity multiplier for the light.
	Intensity() float32

	// Enabled returns whether this light is active for rendering.
	Enabled() bool

	// CastsShadows returns whether the shadow capture stage should render this light's depth.
	//
	// Returns:
	//   - bool: true if the light casts shadows
	CastsShadows() bool

	// Shadow returns the light's shadow settings.
	Shadow() ShadowSettings

	// Camera returns the camera the shadow capture stage renders through.
	Camera() camera.Camera

	// ShadowMatrix returns projection × view of the light camera (column-major).
	//
	// Returns:
	//   - [16]float32: the light's view-projection matrix
	ShadowMatrix() [16]float32

	// Uniform packs the light into its GPU layout.
	Uniform() GPULightUniform

	// SetPosition moves the light and re-aims its camera.
	//
	// Parameters:
	//   - x, y, z: position components
	SetPosition(x, y, z float32)

	// SetTarget re-aims the light and its camera.
	//
	// Parameters:
	//   - x, y, z: target components
	SetTarget(x, y, z float32)

	SetColor(r, g, b float32)
	SetIntensity(intensity float32)
	SetEnabled(enabled bool)
	SetCastsShadows(castsShadows bool)
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the specified type with the default shadow settings and
// any provided options applied. The light is positioned at (0.5, 10, 1) looking at the origin.
//
// Parameters:
//   - lightType: the kind of light to create (directional, point, or spot)
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		mu:        &sync.Mutex{},
		lightType: lightType,
		position:  DefaultLightPosition,
		target:    [3]float32{0, 0, 0},
		color:     [3]float32{1, 1, 1},
		intensity: 1.0,
		enabled:   true,
		shadow:    DefaultShadowSettings(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.cam = camera.NewCamera(
		camera.WithPerspective(l.shadow.Fov, 1, l.shadow.Near, l.shadow.Far),
		camera.WithLookAt(l.position, l.target),
	)
	return l
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

func (l *lightImpl) Target() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target
}

func (l *lightImpl) Direction() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return normalize3(
		l.target[0]-l.position[0],
		l.target[1]-l.position[1],
		l.target[2]-l.position[2],
	)
}

func (l *lightImpl) Color() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intensity
}

func (l *lightImpl) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

func (l *lightImpl) CastsShadows() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.castsShadows
}

func (l *lightImpl) Shadow() ShadowSettings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shadow
}

func (l *lightImpl) Camera() camera.Camera {
	return l.cam
}

func (l *lightImpl) ShadowMatrix() [16]float32 {
	return l.cam.ViewProjectionMatrix()
}

func (l *lightImpl) Uniform() GPULightUniform {
	l.mu.Lock()
	defer l.mu.Unlock()
	var casts uint32
	if l.castsShadows && l.enabled {
		casts = 1
	}
	return GPULightUniform{
		ShadowMatrix: l.cam.ViewProjectionMatrix(),
		Position:     l.position,
		Intensity:    l.intensity,
		Color:        l.color,
		Bias:         l.shadow.Bias,
		CastsShadows: casts,
	}
}

func (l *lightImpl) SetPosition(x, y, z float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = [3]float32{x, y, z}
	l.cam.LookAt(l.position, l.target)
}

func (l *lightImpl) SetTarget(x, y, z float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target = [3]float32{x, y, z}
	l.cam.LookAt(l.position, l.target)
}

func (l *lightImpl) SetColor(r, g, b float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = [3]float32{r, g, b}
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intensity = intensity
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

func (l *lightImpl) SetCastsShadows(castsShadows bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.castsShadows = castsShadows
}

// normalize3 normalizes a 3-component vector. Returns a zero vector if the input
// has zero length.
func normalize3(x, y, z float32) [3]float32 {
	length := float32(math.Sqrt(float64(x*x + y*y + z*z)))
	if length == 0 {
		return [3]float32{0, 0, 0}
	}
	inv := 1.0 / length
	return [3]float32{x * inv, y * inv, z * inv}
}

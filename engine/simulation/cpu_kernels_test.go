package simulation

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/camera"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContext serves constant per-input texels and a fixed uniform block.
type fakeContext struct {
	inputs   [][4]float32
	cube     [4]float32
	uniforms []byte
	w, h     int
}

var _ pipeline.KernelContext = fakeContext{}

func (c fakeContext) Load(i, _, _ int) [4]float32 {
	if i < 0 || i >= len(c.inputs) {
		return [4]float32{}
	}
	return c.inputs[i]
}

func (c fakeContext) SampleCube(int, [3]float32) [4]float32 { return c.cube }
func (c fakeContext) InputSize(int) (int, int)               { return 1, 1 }
func (c fakeContext) Uniform(i int) float32                  { return pipeline.UniformAt(c.uniforms, i) }
func (c fakeContext) Width() int                             { return c.w }
func (c fakeContext) Height() int                            { return c.h }
func (c fakeContext) Viewport() (int, int, int, int)         { return 0, 0, c.w, c.h }

func TestCPUInitStaysInsideSeedRadius(t *testing.T) {
	const side = 8
	ctx := fakeContext{uniforms: InitUniforms{Side: side, Mode: SeedModePosition, Seed: 3, Radius: 2}.Bytes()}
	for y := range side {
		for x := range side {
			p := cpuInit(ctx, x, y)
			r := math.Sqrt(float64(p[0]*p[0] + p[1]*p[1] + p[2]*p[2]))
			assert.LessOrEqual(t, r, 2.0+1e-5)
			assert.Equal(t, float32(1), p[3])
		}
	}
	assert.NotEqual(t, cpuInit(ctx, 0, 0), cpuInit(ctx, 1, 0))
}

func TestCPUInitAuxiliaryInUnitRange(t *testing.T) {
	ctx := fakeContext{uniforms: InitUniforms{Side: 4, Mode: SeedModeAuxiliary, Seed: 9}.Bytes()}
	for y := range 4 {
		for x := range 4 {
			a := cpuInit(ctx, x, y)
			for _, v := range a[:3] {
				assert.GreaterOrEqual(t, v, float32(0))
				assert.Less(t, v, float32(1))
			}
		}
	}
}

func TestCPUVelocityClampsSpeed(t *testing.T) {
	params := DefaultStepParams()
	params.MaxSpeed = 0.5
	ctx := fakeContext{
		inputs:   [][4]float32{{10, 0, 0, 1}, {3, 1, -2, 1}, {0.5, 0.5, 0.5, 1}},
		uniforms: StepUniforms{Side: 1, Params: params}.Bytes(),
	}
	v := cpuVelocity(ctx, 0, 0)
	speed := math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2]))
	assert.InDelta(t, 0.5, speed, 1e-5)
}

func TestCPUVelocityAtRestAtOrigin(t *testing.T) {
	ctx := fakeContext{
		inputs:   [][4]float32{{0, 0, 0, 1}, {0, 0, 0, 1}, {0.2, 0.3, 0.4, 1}},
		uniforms: StepUniforms{Side: 1, Params: DefaultStepParams()}.Bytes(),
	}
	assert.Equal(t, [4]float32{0, 0, 0, 1}, cpuVelocity(ctx, 0, 0))
}

func TestCPUIntegrate(t *testing.T) {
	params := DefaultStepParams()
	params.Dt = 0.5
	ctx := fakeContext{
		inputs:   [][4]float32{{1, 2, 3, 1}, {2, -2, 4, 1}},
		uniforms: StepUniforms{Side: 1, Params: params}.Bytes(),
	}
	assert.Equal(t, [4]float32{2, 1, 5, 1}, cpuIntegrate(ctx, 0, 0))
}

func TestCPUEnvironmentRayCast(t *testing.T) {
	cam := camera.NewCamera(
		camera.WithPerspective(math.Pi/2, 1, 0.1, 100),
		camera.WithController(camera.NewSphereController(1.5)),
	)
	cam.Update()
	ctx := fakeContext{
		cube:     [4]float32{0.2, 0.4, 0.6, 0.5},
		uniforms: EnvironmentUniforms{Camera: cam.Uniform(), SphereRadius: 1}.Bytes(),
		w:        16,
		h:        16,
	}
	assert.Equal(t, [4]float32{0.2, 0.4, 0.6, 1}, cpuEnvironment(ctx, 8, 8))
	assert.Equal(t, [4]float32{}, cpuEnvironment(ctx, 0, 0))
}

func TestHitSphere(t *testing.T) {
	n, ok := hitSphere([3]float32{0, 0, 3}, [3]float32{0, 0, -1}, 1)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{0, 0, 1}, n[:], 1e-6)

	_, ok = hitSphere([3]float32{0, 0, 3}, [3]float32{0, 1, 0}, 1)
	assert.False(t, ok)

	// The sphere behind the ray origin is not hit.
	_, ok = hitSphere([3]float32{0, 0, 3}, [3]float32{0, 0, 1}, 1)
	assert.False(t, ok)
}

func TestReflect(t *testing.T) {
	r := reflect3(common.Normalize3([3]float32{1, -1, 0}), [3]float32{0, 1, 0})
	assert.InDeltaSlice(t, []float32{0.70710677, 0.70710677, 0}, r[:], 1e-6)
}

func TestNDCMapsCornersToUnitSquare(t *testing.T) {
	tl := ndc(0, 0, 2, 2)
	br := ndc(1, 1, 2, 2)
	assert.Equal(t, [2]float32{-0.5, 0.5}, tl)
	assert.Equal(t, [2]float32{0.5, -0.5}, br)
}

func TestCPUShadowClearsToFarWithoutParticles(t *testing.T) {
	ctx := fakeContext{
		inputs:   [][4]float32{{0, 0, 50, 1}, {0, 0, 50, 1}},
		uniforms: ShadowUniforms{Side: 1, PointSize: 0.1}.Bytes(),
		w:        4,
		h:        4,
	}
	// A zero light matrix projects nothing in front of the light.
	assert.Equal(t, [4]float32{1, 1, 1, 1}, cpuShadow(ctx, 1, 1))
}

package light

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLightDefaults(t *testing.T) {
	l := NewLight(LightTypeSpot)
	assert.Equal(t, [3]float32{0.5, 10, 1}, l.Position())
	assert.Equal(t, [3]float32{0, 0, 0}, l.Target())
	assert.False(t, l.CastsShadows())
	assert.Equal(t, DefaultShadowMapSize, l.Shadow().MapSize)
	assert.InDelta(t, 0.5, l.Camera().Near(), 1e-6)
	assert.InDelta(t, 400, l.Camera().Far(), 1e-6)
}

func TestShadowMatrixIsProjectionTimesView(t *testing.T) {
	l := NewLight(LightTypeSpot)
	view := l.Camera().ViewMatrix()
	proj := l.Camera().ProjectionMatrix()
	var want [16]float32
	common.Mul4(want[:], proj[:], view[:])
	assert.Equal(t, want, l.ShadowMatrix())

	// The target projects to the center of the shadow map.
	m := l.ShadowMatrix()
	clip := common.TransformVec4(m[:], [4]float32{0, 0, 0, 1})
	require.Greater(t, clip[3], float32(0))
	assert.InDelta(t, 0, clip[0]/clip[3], 1e-4)
	assert.InDelta(t, 0, clip[1]/clip[3], 1e-4)
}

func TestSetPositionReaimsCamera(t *testing.T) {
	l := NewLight(LightTypeSpot)
	before := l.ShadowMatrix()
	l.SetPosition(3, 5, 3)
	assert.NotEqual(t, before, l.ShadowMatrix())
	x, y, z := l.Camera().Position()
	assert.Equal(t, [3]float32{3, 5, 3}, [3]float32{x, y, z})

	d := l.Direction()
	assert.InDelta(t, 1, common.Dot3(d, d), 1e-5)
}

func TestWithShadowSettingsKeepsDefaultsForZeroFields(t *testing.T) {
	l := NewLight(LightTypeSpot, WithShadowSettings(ShadowSettings{MapSize: 512}))
	s := l.Shadow()
	assert.Equal(t, 512, s.MapSize)
	assert.Equal(t, DefaultShadowFar, s.Far)
}

func TestUniformMarshal(t *testing.T) {
	l := NewLight(LightTypeSpot, WithCastsShadows(true), WithIntensity(2))
	u := l.Uniform()
	assert.Equal(t, uint32(1), u.CastsShadows)
	buf := u.Marshal()
	require.Len(t, buf, 112)
	assert.Equal(t, common.SliceToBytes([]float32{2}), buf[76:80])
}

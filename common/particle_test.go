package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexTexelRoundTrip(t *testing.T) {
	for _, side := range []int{1, 2, 3, 16, 64} {
		seen := make(map[[2]int]bool, ParticleCount(side))
		for i := 0; i < ParticleCount(side); i++ {
			x, y := IndexToTexel(i, side)
			require.True(t, x >= 0 && x < side && y >= 0 && y < side, "texel out of range for side %d", side)
			assert.False(t, seen[[2]int{x, y}], "texel (%d,%d) mapped twice", x, y)
			seen[[2]int{x, y}] = true
			assert.Equal(t, i, TexelToIndex(x, y, side))
		}
	}
}

func TestIndexToTexelRowMajor(t *testing.T) {
	x, y := IndexToTexel(3, 2)
	assert.Equal(t, 1, x)
	assert.Equal(t, 1, y)

	x, y = IndexToTexel(2, 2)
	assert.Equal(t, 0, x)
	assert.Equal(t, 1, y)
}

func TestHashUnitRange(t *testing.T) {
	for i := uint32(0); i < 1000; i++ {
		v := HashUnit(i)
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
	assert.Equal(t, Hash32(42), Hash32(42))
	assert.NotEqual(t, Hash32(1), Hash32(2))
}

func TestTransformVec4Identity(t *testing.T) {
	m := make([]float32, 16)
	Identity(m)
	v := [4]float32{1, 2, 3, 1}
	assert.Equal(t, v, TransformVec4(m, v))
}

func TestTextureStagingDataTexelClamps(t *testing.T) {
	data := TextureStagingData{Pixels: []byte{255, 0, 0, 255, 0, 255, 0, 255}, Width: 2, Height: 1}
	assert.Equal(t, [4]float32{1, 0, 0, 1}, data.Texel(-5, 0))
	assert.Equal(t, [4]float32{0, 1, 0, 1}, data.Texel(9, 3))
	assert.Equal(t, [4]float32{}, TextureStagingData{}.Texel(0, 0))
}

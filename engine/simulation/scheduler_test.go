package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerRejectsZero(t *testing.T) {
	_, err := NewScheduler(0)
	assert.ErrorIs(t, err, ErrInvalidSkipCount)
	_, err = NewScheduler(-3)
	assert.ErrorIs(t, err, ErrInvalidSkipCount)
}

func TestSchedulerFiresOncePerKTicks(t *testing.T) {
	for _, k := range []int{1, 2, 4, 7} {
		s, err := NewScheduler(k)
		require.NoError(t, err)
		fired := 0
		for i := 0; i < k; i++ {
			if s.Tick() {
				fired++
			}
		}
		assert.Equal(t, 1, fired, "k=%d", k)
		assert.Equal(t, 0, s.Counter(), "k=%d", k)
		assert.Equal(t, uint64(1), s.Steps(), "k=%d", k)
		assert.Equal(t, StepReady, s.State(), "k=%d", k)
	}
}

func TestSchedulerProgress(t *testing.T) {
	s, err := NewScheduler(4)
	require.NoError(t, err)
	assert.Equal(t, float32(0), s.Progress())
	assert.Equal(t, Accumulating, s.State())

	var got []float32
	for range 8 {
		s.Tick()
		got = append(got, s.Progress())
	}
	assert.Equal(t, []float32{0.25, 0.5, 0.75, 0, 0.25, 0.5, 0.75, 0}, got)
	for _, p := range got {
		assert.GreaterOrEqual(t, p, float32(0))
		assert.Less(t, p, float32(1))
	}
	assert.Equal(t, uint64(2), s.Steps())
}

func TestSchedulerSkipCountOneStepsEveryFrame(t *testing.T) {
	s, err := NewScheduler(1)
	require.NoError(t, err)
	for range 5 {
		assert.True(t, s.Tick())
		assert.Equal(t, float32(0), s.Progress())
	}
	assert.Equal(t, 1, s.SkipCount())
	assert.Equal(t, "step_ready", s.State().String())
}

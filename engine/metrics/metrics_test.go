package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	m.FramesTotal.Inc()
	m.FramesTotal.Inc()
	m.StepsTotal.Inc()
	m.StepFailures.WithLabelValues("kernel_failed").Inc()
	m.Interpolation.Set(0.25)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepFailures.WithLabelValues("kernel_failed")))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.Interpolation))

	count, err := testutil.GatherAndCount(reg, "particles_frames_total", "particles_steps_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestNopIsIndependent(t *testing.T) {
	a := Nop()
	b := Nop()
	a.FramesTotal.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.FramesTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FramesTotal))
}

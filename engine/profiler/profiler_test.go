package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-particles/engine/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTickPublishesAfterInterval(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.Nop()
	p := NewProfiler(zap.New(core), m)

	clock := time.Unix(100, 0)
	p.now = func() time.Time { return clock }
	p.lastTime = clock

	for i := 0; i < 29; i++ {
		clock = clock.Add(10 * time.Millisecond)
		assert.False(t, p.Tick())
	}
	clock = clock.Add(710 * time.Millisecond)
	assert.True(t, p.Tick())

	assert.Equal(t, 1, logs.FilterMessage("frame stats").Len())
	assert.InDelta(t, 30.0, testutil.ToFloat64(m.FPS), 0.001)
	assert.Equal(t, 0, p.frameCount)
}

func TestNilLoggerAndMetrics(t *testing.T) {
	p := NewProfiler(nil, nil)
	p.lastTime = time.Now().Add(-2 * time.Second)
	assert.True(t, p.Tick())
}

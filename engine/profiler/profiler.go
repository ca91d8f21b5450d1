package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-particles/engine/metrics"
	"go.uber.org/zap"
)

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Stats are logged and published as gauges at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Stats is one profiler sample.
type Stats struct {
	FPS         float64
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64
}

// NewProfiler creates a new Profiler with a one second update interval.
//
// Parameters:
//   - logger: the logger stats are written to; nil disables logging
//   - m: the collectors stats are published to; nil disables publishing
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(logger *zap.Logger, m *metrics.Metrics) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		logger:         logger.Named("profiler"),
		metrics:        m,
		now:            time.Now,
	}
}

// Tick should be called once per frame to track frame timing.
// Publishes statistics when the update interval has elapsed.
//
// Returns:
//   - bool: true if stats were published this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	stats := p.sample(elapsed)
	p.logger.Info("frame stats",
		zap.Float64("fps", stats.FPS),
		zap.Float64("heap_mb", stats.HeapMB),
		zap.Float64("alloc_rate_mb_s", stats.AllocRateMB),
		zap.Uint32("gc", stats.GCCount),
		zap.Uint64("gc_last_pause_us", stats.LastPauseUs),
		zap.Uint64("gc_max_pause_us", stats.MaxPauseUs),
		zap.Float64("sys_mb", stats.SysMB),
	)
	if p.metrics != nil {
		p.metrics.FPS.Set(stats.FPS)
		p.metrics.HeapBytes.Set(float64(p.memStats.Alloc))
		p.metrics.GCCount.Set(float64(stats.GCCount))
	}

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = stats.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

func (p *Profiler) sample(elapsed time.Duration) Stats {
	runtime.ReadMemStats(&p.memStats)
	s := Stats{
		FPS:     float64(p.frameCount) / elapsed.Seconds(),
		HeapMB:  float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:   float64(p.memStats.Sys) / 1024 / 1024,
		GCCount: p.memStats.NumGC,
	}
	s.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses.
	if s.GCCount > 0 {
		s.LastPauseUs = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if s.GCCount-startIdx > 256 {
			startIdx = s.GCCount - 256
		}
		for i := startIdx; i < s.GCCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > s.MaxPauseUs {
				s.MaxPauseUs = pause
			}
		}
	}
	return s
}

// Package metrics exposes the prometheus collectors recorded by the simulation and the engine loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "particles"

// Metrics groups the collectors for one running simulation.
type Metrics struct {
	// FramesTotal counts displayed frames.
	FramesTotal prometheus.Counter
	// StepsTotal counts committed simulation steps.
	StepsTotal prometheus.Counter
	// StepFailures counts failed simulation steps by reason.
	StepFailures *prometheus.CounterVec
	// Interpolation mirrors the scheduler progress p in [0, 1).
	Interpolation prometheus.Gauge
	// FrameDuration observes the wall time of one Render call.
	FrameDuration prometheus.Histogram
	// PassDuration observes the wall time of each named render stage.
	PassDuration *prometheus.HistogramVec
	// KernelReloads counts hot reload attempts by kernel and result.
	KernelReloads *prometheus.CounterVec

	// FPS, HeapBytes and GCCount are set by the profiler.
	FPS       prometheus.Gauge
	HeapBytes prometheus.Gauge
	GCCount   prometheus.Gauge
}

// New registers a fresh set of collectors on reg.
//
// Parameters:
//   - reg: the registerer to attach collectors to; nil falls back to prometheus.DefaultRegisterer
//
// Returns:
//   - *Metrics: the registered collectors
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		FramesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total number of displayed frames",
		}),
		StepsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of committed simulation steps",
		}),
		StepFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Total number of failed simulation steps by reason",
		}, []string{"reason"}),
		Interpolation: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interpolation",
			Help:      "Fraction of the current simulation interval already displayed",
		}),
		FrameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Time spent in one frame of the render pipeline",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .016, .025, .05, .1, .25},
		}),
		PassDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Time spent in each render stage",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"stage"}),
		KernelReloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kernel_reloads_total",
			Help:      "Total number of kernel hot reloads by kernel and result",
		}, []string{"kernel", "result"}),
		FPS: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fps",
			Help:      "Frames per second over the last profiler interval",
		}),
		HeapBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heap_bytes",
			Help:      "Bytes of allocated heap objects",
		}),
		GCCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gc_count",
			Help:      "Number of completed GC cycles",
		}),
	}
}

// Nop returns collectors attached to a private registry, for callers that do not export metrics.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

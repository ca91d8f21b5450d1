package simulation

import (
	"github.com/Carmen-Shannon/oxy-particles/engine/metrics"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SimulationBuilderOption is a functional option used to configure a Simulation during construction.
type SimulationBuilderOption func(*Simulation)

// WithLogger sets the logger. The simulation logs under the "simulation" name.
//
// Parameters:
//   - logger: the parent logger
//
// Returns:
//   - SimulationBuilderOption: a function that sets the logger
func WithLogger(logger *zap.Logger) SimulationBuilderOption {
	return func(s *Simulation) {
		if logger != nil {
			s.logger = logger.Named("simulation")
		}
	}
}

// WithMetrics sets the collectors frames, steps and failures are recorded on.
func WithMetrics(m *metrics.Metrics) SimulationBuilderOption {
	return func(s *Simulation) {
		s.metrics = m
	}
}

// WithTracerProvider sets the provider spans are started from. The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) SimulationBuilderOption {
	return func(s *Simulation) {
		s.tracerProvider = tp
	}
}

// WithKernels overrides kernel roles. Nil roles keep the built-in pipeline kernels.
//
// Parameters:
//   - k: the kernels to use
//
// Returns:
//   - SimulationBuilderOption: a function that sets the kernels
func WithKernels(k Kernels) SimulationBuilderOption {
	return func(s *Simulation) {
		s.kernels = k
	}
}

// WithStepParams sets the force rule and particle size.
func WithStepParams(p StepParams) SimulationBuilderOption {
	return func(s *Simulation) {
		s.params = p
	}
}

// WithShaderSource overrides where kernel sources are read from. By default the configured
// shaders directory is consulted before the embedded sources.
func WithShaderSource(src ShaderSource) SimulationBuilderOption {
	return func(s *Simulation) {
		s.shaders = src
	}
}

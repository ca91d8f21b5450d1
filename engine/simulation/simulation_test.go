package simulation

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/config"
	"github.com/Carmen-Shannon/oxy-particles/engine/metrics"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const frameDt = float32(1) / 60

func newTestSimulation(t *testing.T, cfg config.Config, opts ...SimulationBuilderOption) *Simulation {
	t.Helper()
	r := newTestRenderer(t)
	opts = append([]SimulationBuilderOption{
		WithLogger(zaptest.NewLogger(t)),
		WithKernels(Kernels{
			Init:     PipelineKernel{Key: keyIndexInit},
			Velocity: PipelineKernel{Key: keyCountVel},
		}),
		WithStepParams(testParams()),
	}, opts...)
	s, err := New(r, cfg, testEnvironment(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Release() })
	return s
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	r := newTestRenderer(t)
	cfg := testConfig()
	cfg.SkipCount = 0
	cfg.NumParticles = -1

	s, err := New(r, cfg, testEnvironment(t))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, config.ErrInvalid)
	// Nothing is registered or allocated for an invalid configuration.
	assert.Nil(t, r.Pipeline(KeyInit))
}

func TestNewPanicsWithoutRenderer(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = New(nil, testConfig(), testEnvironment(t))
	})
}

func TestNewSeedsState(t *testing.T) {
	s := newTestSimulation(t, testConfig())
	require.True(t, s.State().Seeded())
	assert.Equal(t, 4, s.State().Count())
	assert.Equal(t, []float32{0, 1, 2, 3}, readX(t, s.State().Position.Current()))
	assert.Equal(t, []float32{0, 1, 2, 3}, readX(t, s.State().Position.Target()))
	assert.NotNil(t, s.Pipeline().Environment())
	assert.Nil(t, s.Pipeline().Shadow())
}

func TestRenderStepsEveryKFrames(t *testing.T) {
	s := newTestSimulation(t, testConfig())

	var progress []float32
	for frame := 1; frame <= 8; frame++ {
		require.NoError(t, s.Render(frameDt))
		progress = append(progress, s.Scheduler().Progress())

		switch frame {
		case 3:
			assert.Equal(t, uint64(0), s.State().Generation())
		case 4:
			require.Equal(t, uint64(1), s.State().Generation())
			// current is one step ahead; target holds the seeded state.
			assert.Equal(t, []float32{1, 2, 3, 4}, readX(t, s.State().Position.Current()))
			assert.Equal(t, []float32{0, 1, 2, 3}, readX(t, s.State().Position.Target()))
			assert.Equal(t, []float32{1, 1, 1, 1}, readX(t, s.State().Velocity.Current()))
		case 8:
			require.Equal(t, uint64(2), s.State().Generation())
			assert.Equal(t, []float32{3, 4, 5, 6}, readX(t, s.State().Position.Current()))
			assert.Equal(t, []float32{1, 2, 3, 4}, readX(t, s.State().Position.Target()))
		}
	}
	assert.Equal(t, []float32{0.25, 0.5, 0.75, 0, 0.25, 0.5, 0.75, 0}, progress)
	assert.Equal(t, uint64(2), s.Scheduler().Steps())
	assert.Equal(t, uint64(8), s.Pipeline().Environment().Generation())
}

func TestRenderWithSkipCountOne(t *testing.T) {
	cfg := testConfig()
	cfg.SkipCount = 1
	s := newTestSimulation(t, cfg)
	for frame := 1; frame <= 3; frame++ {
		require.NoError(t, s.Render(frameDt))
		assert.Equal(t, uint64(frame), s.State().Generation())
		assert.Equal(t, float32(0), s.Scheduler().Progress())
	}
}

func TestFailedStepKeepsCommittedStateAndRenders(t *testing.T) {
	fail := false
	velocity := KernelFunc{ID: "test/flaky", Fn: func(pass renderer.RenderPass, inputs []renderer.Texture, u []byte) error {
		if fail {
			return errors.New("velocity diverged")
		}
		return PipelineKernel{Key: keyCountVel}.Run(pass, inputs, u)
	}}
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New(prometheus.NewRegistry())
	s := newTestSimulation(t, testConfig(),
		WithLogger(zap.New(core)),
		WithMetrics(m),
		WithKernels(Kernels{Init: PipelineKernel{Key: keyIndexInit}, Velocity: velocity}),
	)

	for range 4 {
		require.NoError(t, s.Render(frameDt))
	}
	require.Equal(t, uint64(1), s.State().Generation())
	posBefore := read(t, s.State().Position.Current())
	velBefore := read(t, s.State().Velocity.Current())
	auxBefore := read(t, s.State().Auxiliary.Current())

	fail = true
	for range 3 {
		require.NoError(t, s.Render(frameDt))
	}
	err := s.Render(frameDt)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKernelFailed)

	assert.Equal(t, uint64(1), s.State().Generation())
	assert.Equal(t, posBefore, read(t, s.State().Position.Current()))
	assert.Equal(t, velBefore, read(t, s.State().Velocity.Current()))
	assert.Equal(t, auxBefore, read(t, s.State().Auxiliary.Current()))
	// The frame was still rendered from the last committed state.
	assert.Equal(t, uint64(8), s.Pipeline().Environment().Generation())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.StepFailures.WithLabelValues("kernel_failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StepsTotal))
	assert.Equal(t, float64(8), testutil.ToFloat64(m.FramesTotal))

	failed := logs.FilterMessage("simulation step failed, keeping last committed state").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zap.ErrorLevel, failed[0].Level)
	assert.Equal(t, uint64(1), failed[0].ContextMap()["generation"])

	fail = false
	for range 4 {
		require.NoError(t, s.Render(frameDt))
	}
	assert.Equal(t, uint64(2), s.State().Generation())
	assert.Equal(t, []float32{2, 2, 2, 2}, readX(t, s.State().Velocity.Current()))
}

func TestFailedFrameDrawStillPresents(t *testing.T) {
	fail := true
	inset := KernelFunc{ID: "test/inset", Fn: func(pass renderer.RenderPass, inputs []renderer.Texture, u []byte) error {
		if fail {
			return errors.New("inset dropped")
		}
		return PipelineKernel{Key: KeyInset}.Run(pass, inputs, u)
	}}
	core, logs := observer.New(zap.DebugLevel)
	s := newTestSimulation(t, testConfig(),
		WithLogger(zap.New(core)),
		WithKernels(Kernels{
			Init:     PipelineKernel{Key: keyIndexInit},
			Velocity: PipelineKernel{Key: keyCountVel},
			Inset:    inset,
		}),
	)

	err := s.Render(frameDt)
	assert.ErrorIs(t, err, ErrKernelFailed)
	assert.NotErrorIs(t, err, renderer.ErrFrameNotPresented)

	fail = false
	for range 3 {
		require.NoError(t, s.Render(frameDt))
	}
	// Frame errors are reported to the caller and left to the engine to log.
	assert.Zero(t, logs.FilterMessage("render failed").Len())
}

func TestResizeWaitsForRender(t *testing.T) {
	s := newTestSimulation(t, testConfig())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 8 {
			assert.NoError(t, s.Render(frameDt))
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 8 {
			s.Resize(16+i, 8)
		}
	}()
	wg.Wait()

	assert.InDelta(t, float32(23)/8, s.Camera().Aspect(), 1e-6)
	require.NoError(t, s.Render(frameDt))
	w, h := s.r.Size()
	assert.Equal(t, []int{23, 8}, []int{w, h})

	require.NoError(t, s.Release())
	s.Resize(40, 10)
	assert.InDelta(t, float32(23)/8, s.Camera().Aspect(), 1e-6)
}

func TestRenderSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	s := newTestSimulation(t, testConfig(), WithTracerProvider(tp))

	for range 4 {
		require.NoError(t, s.Render(frameDt))
	}
	spans := sr.Ended()
	require.GreaterOrEqual(t, len(spans), 5)
	last := spans[len(spans)-5:]
	var names []string
	for _, sp := range last {
		names = append(names, sp.Name())
	}
	assert.Equal(t, []string{
		"simulation.step",
		"render." + StageEnvironment,
		"render." + StageMain,
		"render." + StageInset,
		"simulation.frame",
	}, names)

	frame := last[4].SpanContext().SpanID()
	for _, sp := range last[:4] {
		assert.Equal(t, frame, sp.Parent().SpanID(), sp.Name())
	}

	// Frames without a step carry no step span.
	require.NoError(t, s.Render(frameDt))
	spans = sr.Ended()
	assert.Equal(t, "render."+StageEnvironment, spans[len(spans)-4].Name())
}

func TestRenderWithShadowStage(t *testing.T) {
	cfg := testConfig()
	cfg.Shadow.Enabled = true
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	s := newTestSimulation(t, cfg, WithTracerProvider(tp))
	require.NotNil(t, s.Pipeline().Shadow())
	assert.True(t, s.Light().CastsShadows())

	require.NoError(t, s.Render(frameDt))
	var names []string
	for _, sp := range sr.Ended() {
		names = append(names, sp.Name())
	}
	assert.Equal(t, []string{
		"render." + StageEnvironment,
		"render." + StageShadow,
		"render." + StageMain,
		"render." + StageInset,
		"simulation.frame",
	}, names)

	depth := read(t, s.Pipeline().Shadow())
	for _, d := range depth {
		assert.LessOrEqual(t, d, float32(1))
	}
}

func TestEnvironmentCaptureHitsSphere(t *testing.T) {
	s := newTestSimulation(t, testConfig())
	require.NoError(t, s.Render(frameDt))

	env := s.Pipeline().Environment()
	data := read(t, env)
	w := env.Width()
	alpha := func(x, y int) float32 { return data[(y*w+x)*4+3] }
	assert.Equal(t, float32(1), alpha(w/2, w/2), "center ray hits the sphere")
	assert.Equal(t, float32(0), alpha(0, 0), "corner ray misses the sphere")
}

func TestPauseSuspendsStepping(t *testing.T) {
	s := newTestSimulation(t, testConfig())
	s.KeyDown(common.KeyP)
	s.KeyUp(common.KeyP)
	require.True(t, s.Paused())

	for range 8 {
		require.NoError(t, s.Render(frameDt))
	}
	assert.Equal(t, uint64(0), s.State().Generation())
	assert.Equal(t, uint64(8), s.Pipeline().Environment().Generation())

	s.KeyDown(common.KeyP)
	require.False(t, s.Paused())
	for range 4 {
		require.NoError(t, s.Render(frameDt))
	}
	assert.Equal(t, uint64(1), s.State().Generation())
}

func TestHeldKeysOrbitMainCamera(t *testing.T) {
	s := newTestSimulation(t, testConfig())
	ctrl := s.Camera().Controller()
	require.NotNil(t, ctrl)
	azimuth := ctrl.Azimuth()

	s.KeyDown(common.KeyLeft)
	s.Tick(frameDt)
	s.Tick(frameDt)
	assert.NotEqual(t, azimuth, ctrl.Azimuth())

	s.KeyUp(common.KeyLeft)
	moved := ctrl.Azimuth()
	s.Tick(frameDt)
	assert.Equal(t, moved, ctrl.Azimuth())
}

func TestSphereCameraFollowsMainRotation(t *testing.T) {
	s := newTestSimulation(t, testConfig())
	s.Drag(40, -25)
	require.NoError(t, s.Render(frameDt))

	main, sphere := s.Camera().Controller(), s.SphereCamera().Controller()
	assert.InDelta(t, main.Azimuth(), sphere.Azimuth(), 1e-5)
	assert.InDelta(t, main.Elevation(), sphere.Elevation(), 1e-5)

	x, y, z := s.SphereCamera().Position()
	dist := math.Sqrt(float64(x*x + y*y + z*z))
	assert.InDelta(t, 1.5, dist, 1e-4)

	// Zoom moves the main orbit only.
	radius := main.Radius()
	s.Scroll(3)
	assert.NotEqual(t, radius, main.Radius())
	assert.InDelta(t, 1.5, sphere.Radius(), 1e-6)
}

func TestResizeKeepsAspect(t *testing.T) {
	s := newTestSimulation(t, testConfig())
	s.Resize(32, 16)
	assert.InDelta(t, 2, s.Camera().Aspect(), 1e-6)
	s.Resize(0, 10)
	assert.InDelta(t, 2, s.Camera().Aspect(), 1e-6)
	require.NoError(t, s.Render(frameDt))
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := newTestSimulation(t, testConfig())
	require.NoError(t, s.Release())
	require.NoError(t, s.Release())
	assert.ErrorIs(t, s.Render(frameDt), ErrReleased)
}

func TestReloadKernelsRecordsOutcome(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := newTestSimulation(t, testConfig(), WithMetrics(m))

	require.NoError(t, s.ReloadKernels([]string{"/tmp/shaders/velocity.wgsl", "/tmp/shaders/README.md"}))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.KernelReloads.WithLabelValues(KeyVelocity, "ok")))
	require.NoError(t, s.Render(frameDt))
}

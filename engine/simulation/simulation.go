// Package simulation runs a texture-encoded particle system. Per-particle position, velocity and
// auxiliary state live in double-buffered render targets that advance every K displayed frames,
// while the render pipeline interpolates between the two most recent states.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/assets"
	"github.com/Carmen-Shannon/oxy-particles/engine/camera"
	"github.com/Carmen-Shannon/oxy-particles/engine/config"
	"github.com/Carmen-Shannon/oxy-particles/engine/light"
	"github.com/Carmen-Shannon/oxy-particles/engine/metrics"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const tracerName = "github.com/Carmen-Shannon/oxy-particles/engine/simulation"

// environmentSphereRadius is the radius of the ray-cast sphere seen by the sphere camera.
const environmentSphereRadius = 1

// Simulation owns every buffer, camera and kernel of one particle system and drives it one
// displayed frame at a time: scheduler tick, an optional step, then the render pipeline.
type Simulation struct {
	mu *sync.Mutex

	r       renderer.Renderer
	cfg     config.Config
	params  StepParams
	kernels Kernels
	shaders ShaderSource

	logger         *zap.Logger
	metrics        *metrics.Metrics
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer

	state     *State
	scheduler *Scheduler
	pipeline  *RenderPipeline

	mainCam   camera.Camera
	sphereCam camera.Camera
	light     light.Light

	radiance   renderer.Texture
	irradiance renderer.Texture

	keys     map[uint32]bool
	elapsed  float32
	paused   bool
	released bool
}

// New validates cfg, registers the kernel pipelines, uploads the environment maps, allocates
// every buffer and seeds the state. Nothing is allocated when cfg is invalid.
//
// Parameters:
//   - r: the renderer every pass runs on
//   - cfg: the engine configuration
//   - env: the decoded radiance and irradiance cube faces
//   - opts: functional options
//
// Returns:
//   - *Simulation: the seeded simulation
//   - error: a config.ErrInvalid, ErrResourceAllocation or ErrKernelFailed error
func New(r renderer.Renderer, cfg config.Config, env assets.Environment, opts ...SimulationBuilderOption) (*Simulation, error) {
	if r == nil {
		panic("simulation: nil renderer")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}

	s := &Simulation{
		mu:      &sync.Mutex{},
		r:       r,
		cfg:     cfg,
		params:  DefaultStepParams(),
		shaders: ShaderSource{Dir: cfg.ShadersDir, Validate: cfg.ValidateShaders},
		logger:  zap.NewNop(),
		keys:    make(map[uint32]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop()
	}
	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}
	s.tracer = s.tracerProvider.Tracer(tracerName)
	s.kernels = s.kernels.merge(DefaultKernels(cfg.NumParticles))

	if err := s.init(env); err != nil {
		return nil, multierr.Append(err, s.releaseResources())
	}
	s.logger.Info("simulation ready",
		zap.Int("side", cfg.NumParticles),
		zap.Int("particles", s.state.Count()),
		zap.Int("skip_count", cfg.SkipCount),
		zap.Bool("shadow", cfg.Shadow.Enabled),
	)
	return s, nil
}

func (s *Simulation) init(env assets.Environment) error {
	pls, err := s.shaders.Pipelines()
	if err != nil {
		return fmt.Errorf("build kernels: %w", err)
	}
	if err := s.r.RegisterPipelines(pls...); err != nil {
		return fmt.Errorf("%w: %w", ErrKernelFailed, err)
	}

	if s.radiance, err = s.r.CreateCubeTexture("radiance", env.Radiance); err != nil {
		return fmt.Errorf("%w: %w", ErrResourceAllocation, err)
	}
	if s.irradiance, err = s.r.CreateCubeTexture("irradiance", env.Irradiance); err != nil {
		return fmt.Errorf("%w: %w", ErrResourceAllocation, err)
	}

	s.initCameras()

	if s.scheduler, err = NewScheduler(s.cfg.SkipCount); err != nil {
		return err
	}
	if s.state, err = NewState(s.r, s.cfg.NumParticles); err != nil {
		return err
	}
	s.pipeline, err = NewRenderPipeline(s.r, RenderSettings{
		CaptureSize:   s.cfg.Environment.CaptureSize,
		InsetSize:     s.cfg.Environment.InsetSize,
		ShadowEnabled: s.cfg.Shadow.Enabled,
		ShadowSize:    s.cfg.Shadow.MapSize,
	}, s.tracer, s.metrics)
	if err != nil {
		return err
	}
	return Seed(s.state, s.kernels, s.params, s.cfg.Seed)
}

func (s *Simulation) initCameras() {
	c := s.cfg.Camera
	w, h := s.r.Size()
	s.mainCam = camera.NewCamera(
		camera.WithPerspective(c.Fov, aspect(w, h), c.Near, c.Far),
		camera.WithController(camera.NewCameraController(
			camera.WithRadius(c.Radius),
			camera.WithAzimuth(c.RotationY),
			camera.WithElevation(c.RotationX),
		)),
	)
	s.sphereCam = camera.NewCamera(
		camera.WithPerspective(c.Fov, 1, c.Near, c.Far),
		camera.WithController(camera.NewSphereController(s.cfg.Environment.SphereRadius)),
	)
	lp := s.cfg.Shadow.LightPosition
	s.light = light.NewLight(light.LightTypeSpot,
		light.WithPosition(lp[0], lp[1], lp[2]),
		light.WithCastsShadows(s.cfg.Shadow.Enabled),
		light.WithShadowSettings(light.ShadowSettings{MapSize: s.cfg.Shadow.MapSize}),
	)
}

// Render runs one displayed frame: tick the scheduler, step when it fires, then render. A failed
// step is logged, counted and returned after the frame has still been rendered from the last
// committed state.
//
// Parameters:
//   - dt: seconds since the previous frame
//
// Returns:
//   - error: ErrReleased, the step error, or the render error
func (s *Simulation) Render(dt float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	start := time.Now()
	ctx, span := s.tracer.Start(context.Background(), "simulation.frame")
	defer span.End()

	s.syncCameras()

	var stepErr error
	if !s.paused && s.scheduler.Tick() {
		stepErr = s.step(ctx)
	}
	p := s.scheduler.Progress()
	s.metrics.Interpolation.Set(float64(p))

	renderErr := s.pipeline.Render(ctx, Frame{
		State:        s.state,
		Kernels:      s.kernels,
		P:            p,
		Main:         s.mainCam,
		Sphere:       s.sphereCam,
		Light:        s.light,
		Radiance:     s.radiance,
		Irradiance:   s.irradiance,
		SphereRadius: environmentSphereRadius,
		PointSize:    s.params.PointSize,
	})
	s.metrics.FramesTotal.Inc()
	s.metrics.FrameDuration.Observe(time.Since(start).Seconds())
	err := multierr.Combine(stepErr, renderErr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// step advances the simulation inside a "simulation.step" span.
func (s *Simulation) step(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "simulation.step",
		trace.WithAttributes(attribute.Int64("generation", int64(s.state.Generation()))))
	defer span.End()

	s.elapsed += s.params.Dt
	u := StepUniforms{Side: float32(s.state.Side()), Time: s.elapsed, Params: s.params}
	if err := Step(s.state, s.kernels, u.Bytes()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.StepFailures.WithLabelValues(failureReason(err)).Inc()
		s.logger.Error("simulation step failed, keeping last committed state",
			zap.Uint64("generation", s.state.Generation()),
			zap.Error(err),
		)
		return err
	}
	s.metrics.StepsTotal.Inc()
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNotSeeded):
		return "not_seeded"
	case errors.Is(err, renderer.ErrPipelineNotFound):
		return "pipeline_not_found"
	case errors.Is(err, ErrKernelFailed):
		return "kernel_failed"
	default:
		return "other"
	}
}

// syncCameras copies the main orbit's rotation onto the sphere camera and refreshes both.
func (s *Simulation) syncCameras() {
	if sc, mc := s.sphereCam.Controller(), s.mainCam.Controller(); sc != nil && mc != nil {
		sc.FollowRotation(mc)
	}
	s.mainCam.Update()
	s.sphereCam.Update()
}

// Resize resizes the frame surface and keeps the main camera aspect in sync. It waits for an
// in-flight Render so the surface is never reconfigured under an open frame pass.
func (s *Simulation) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.r.Resize(width, height)
	s.mainCam.SetAspect(aspect(width, height))
}

// ReloadKernels rebuilds the pipelines whose shader files changed and swaps them into the
// renderer. A kernel that fails to rebuild keeps its previous pipeline.
//
// Parameters:
//   - paths: the changed shader file paths
//
// Returns:
//   - error: the combined rebuild errors
func (s *Simulation) ReloadKernels(paths []string) error {
	var errs error
	for _, key := range KeysForPaths(paths) {
		err := s.reloadKernel(key)
		result := "ok"
		if err != nil {
			result = "error"
			errs = multierr.Append(errs, err)
			s.logger.Warn("kernel reload failed", zap.String("kernel", key), zap.Error(err))
		} else {
			s.logger.Info("kernel reloaded", zap.String("kernel", key))
		}
		s.metrics.KernelReloads.WithLabelValues(key, result).Inc()
	}
	return errs
}

func (s *Simulation) reloadKernel(key string) error {
	p, err := s.shaders.Pipeline(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.ReloadPipeline(p)
}

// KeyDown records a held key.
func (s *Simulation) KeyDown(keyCode uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[keyCode] = true
	if keyCode == common.KeyP {
		s.paused = !s.paused
		s.logger.Info("simulation pause toggled", zap.Bool("paused", s.paused))
	}
}

// KeyUp releases a held key.
func (s *Simulation) KeyUp(keyCode uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[keyCode] = false
}

// Tick applies held keys to the main orbit: arrows orbit, W/S pan forward, A/D pan right and Q/E
// pan up.
func (s *Simulation) Tick(_ float32) {
	s.mu.Lock()
	held := make(map[uint32]bool, len(s.keys))
	for k, v := range s.keys {
		held[k] = v
	}
	s.mu.Unlock()
	ctrl := s.mainCam.Controller()
	if ctrl == nil {
		return
	}

	if held[common.KeyLeft] {
		ctrl.OrbitLeft()
	}
	if held[common.KeyRight] {
		ctrl.OrbitRight()
	}
	if held[common.KeyUp] {
		ctrl.OrbitUp()
	}
	if held[common.KeyDown] {
		ctrl.OrbitDown()
	}
	if held[common.KeyW] {
		ctrl.PanForward(1)
	}
	if held[common.KeyS] {
		ctrl.PanForward(-1)
	}
	if held[common.KeyD] {
		ctrl.PanRight(1)
	}
	if held[common.KeyA] {
		ctrl.PanRight(-1)
	}
	if held[common.KeyE] {
		ctrl.PanUp(1)
	}
	if held[common.KeyQ] {
		ctrl.PanUp(-1)
	}
}

// Drag rotates the main orbit by a pointer delta in pixels.
func (s *Simulation) Drag(dx, dy float32) {
	if ctrl := s.mainCam.Controller(); ctrl != nil {
		ctrl.Drag(dx, dy)
	}
}

// Scroll zooms the main orbit.
func (s *Simulation) Scroll(delta float32) {
	if ctrl := s.mainCam.Controller(); ctrl != nil {
		ctrl.Zoom(delta)
	}
}

// Paused reports whether stepping is suspended. Rendering continues while paused.
func (s *Simulation) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// State returns the simulation state.
func (s *Simulation) State() *State { return s.state }

// Scheduler returns the step scheduler.
func (s *Simulation) Scheduler() *Scheduler { return s.scheduler }

// Pipeline returns the render pipeline.
func (s *Simulation) Pipeline() *RenderPipeline { return s.pipeline }

// Camera returns the main camera.
func (s *Simulation) Camera() camera.Camera { return s.mainCam }

// SphereCamera returns the environment capture camera.
func (s *Simulation) SphereCamera() camera.Camera { return s.sphereCam }

// Light returns the shadow-casting light.
func (s *Simulation) Light() light.Light { return s.light }

// Release frees every buffer the simulation allocated. Later calls are no-ops.
func (s *Simulation) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	err := s.releaseResources()
	s.logger.Info("simulation released", zap.Error(err))
	return err
}

func (s *Simulation) releaseResources() error {
	var err error
	if s.pipeline != nil {
		err = multierr.Append(err, s.pipeline.Release())
	}
	if s.state != nil {
		err = multierr.Append(err, s.state.Release())
	}
	return err
}

func aspect(w, h int) float32 {
	if w <= 0 || h <= 0 {
		return 1
	}
	return float32(w) / float32(h)
}

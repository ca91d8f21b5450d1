package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/camera"
	"github.com/Carmen-Shannon/oxy-particles/engine/light"
	"github.com/Carmen-Shannon/oxy-particles/engine/metrics"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

// Render stage names, used as span suffixes and as the stage label of the pass duration metric.
const (
	StageEnvironment = "environment"
	StageShadow      = "shadow"
	StageMain        = "main"
	StageInset       = "inset"
)

// RenderSettings sizes the per-frame buffers of a RenderPipeline.
type RenderSettings struct {
	// CaptureSize is the side of the environment capture buffer.
	CaptureSize int
	// InsetSize is the side of the diagnostic inset viewport; 0 disables the inset.
	InsetSize int
	// ShadowEnabled allocates the shadow buffer and runs the shadow stage.
	ShadowEnabled bool
	// ShadowSize is the side of the shadow buffer.
	ShadowSize int
}

// Frame is everything one pass of the render pipeline reads.
type Frame struct {
	State   *State
	Kernels Kernels
	// P is the interpolation factor between target (older) and current position.
	P float32

	Main   camera.Camera
	Sphere camera.Camera
	Light  light.Light

	Radiance   renderer.Texture
	Irradiance renderer.Texture

	SphereRadius float32
	PointSize    float32
}

// RenderPipeline runs the environment, shadow, main and inset stages in order. Every stage only
// samples textures returned by stages that have already been unbound.
type RenderPipeline struct {
	r        renderer.Renderer
	settings RenderSettings

	env    *StateBuffer
	shadow *StateBuffer

	tracer  trace.Tracer
	metrics *metrics.Metrics
}

// NewRenderPipeline allocates the environment capture buffer and, when enabled, the shadow buffer.
//
// Parameters:
//   - r: the renderer that owns the targets
//   - settings: buffer sizes
//   - tracer: spans one child per stage
//   - m: receives stage durations
//
// Returns:
//   - *RenderPipeline: the pipeline
//   - error: ErrResourceAllocation wrapping the renderer error
func NewRenderPipeline(r renderer.Renderer, settings RenderSettings, tracer trace.Tracer, m *metrics.Metrics) (*RenderPipeline, error) {
	rp := &RenderPipeline{r: r, settings: settings, tracer: tracer, metrics: m}
	env, err := newBuffer(r, "environment", settings.CaptureSize, settings.CaptureSize, pipeline.TargetFormatColor)
	if err != nil {
		return nil, err
	}
	rp.env = env
	if settings.ShadowEnabled {
		if rp.shadow, err = newBuffer(r, "shadow", settings.ShadowSize, settings.ShadowSize, pipeline.TargetFormatState); err != nil {
			return nil, multierr.Append(err, rp.Release())
		}
	}
	return rp, nil
}

// Environment returns the environment capture buffer.
func (rp *RenderPipeline) Environment() *StateBuffer { return rp.env }

// Shadow returns the shadow buffer, or nil when the shadow stage is disabled.
func (rp *RenderPipeline) Shadow() *StateBuffer { return rp.shadow }

// Render runs every stage for one displayed frame and presents it.
//
// Parameters:
//   - ctx: carries the parent span
//   - f: the frame inputs
//
// Returns:
//   - error: the first failing stage's error; a begun frame pass is ended and presented regardless
func (rp *RenderPipeline) Render(ctx context.Context, f Frame) error {
	cur, err := f.State.Position.Current().Texture()
	if err != nil {
		return err
	}
	tgt, err := f.State.Position.Target().Texture()
	if err != nil {
		return err
	}
	aux, err := f.State.Auxiliary.Current().Texture()
	if err != nil {
		return err
	}

	var envTex renderer.Texture
	if err := rp.stage(ctx, StageEnvironment, func() error {
		envTex, err = runPass(rp.env, &common.ColorTransparent, f.Kernels.Environment,
			[]renderer.Texture{f.Radiance}, rp.environmentUniforms(f))
		return err
	}); err != nil {
		return err
	}

	// The auxiliary texture stands in for the shadow map when the stage is disabled.
	shadowTex := aux
	if rp.shadow != nil && f.Light != nil {
		if err := rp.stage(ctx, StageShadow, func() error {
			shadowTex, err = runPass(rp.shadow, &common.ColorWhite, f.Kernels.Shadow,
				[]renderer.Texture{tgt, cur}, ShadowUniforms{
					LightMatrix: f.Light.ShadowMatrix(),
					P:           f.P,
					Side:        float32(f.State.Side()),
					PointSize:   f.PointSize,
				}.Bytes())
			return err
		}); err != nil {
			return err
		}
	}

	pass, err := rp.r.BeginFrame(&common.ColorTransparent)
	if err != nil {
		return fmt.Errorf("begin frame: %w", err)
	}
	drawErr := rp.stage(ctx, StageMain, func() error {
		w, h := rp.r.Size()
		if err := pass.SetViewport(0, 0, w, h); err != nil {
			return err
		}
		return runFrame(pass, f.Kernels.Particles,
			[]renderer.Texture{tgt, cur, aux, envTex, f.Radiance, f.Irradiance, shadowTex},
			rp.particleUniforms(f))
	})
	if drawErr == nil && rp.settings.InsetSize > 0 {
		drawErr = rp.stage(ctx, StageInset, func() error {
			w, h := rp.r.Size()
			size := min(rp.settings.InsetSize, w, h)
			if err := pass.SetViewport(0, h-size, size, size); err != nil {
				return err
			}
			return runFrame(pass, f.Kernels.Inset, []renderer.Texture{envTex}, nil)
		})
	}
	if _, endErr := pass.End(); endErr != nil {
		drawErr = multierr.Append(drawErr, fmt.Errorf("end frame: %w", endErr))
	}
	// A frame that began is always presented so the surface image is released for the next one.
	if err := rp.r.Present(); err != nil {
		drawErr = multierr.Append(drawErr, fmt.Errorf("present: %w", err))
	}
	return drawErr
}

// Release frees the per-frame buffers.
func (rp *RenderPipeline) Release() error {
	var err error
	if rp.env != nil {
		err = multierr.Append(err, rp.env.Release())
	}
	if rp.shadow != nil {
		err = multierr.Append(err, rp.shadow.Release())
	}
	return err
}

func (rp *RenderPipeline) environmentUniforms(f Frame) []byte {
	return EnvironmentUniforms{Camera: f.Sphere.Uniform(), SphereRadius: f.SphereRadius}.Bytes()
}

func (rp *RenderPipeline) particleUniforms(f Frame) []byte {
	u := ParticleUniforms{
		Camera:    f.Main.Uniform(),
		P:         f.P,
		Side:      float32(f.State.Side()),
		PointSize: f.PointSize,
	}
	if rp.shadow != nil && f.Light != nil {
		u.ShadowMatrix = f.Light.ShadowMatrix()
		u.ShadowEnabled = true
	}
	return u.Bytes()
}

// stage runs fn inside a "render.<name>" span and records its duration.
func (rp *RenderPipeline) stage(ctx context.Context, name string, fn func() error) error {
	_, span := rp.tracer.Start(ctx, "render."+name, trace.WithAttributes(attribute.String("stage", name)))
	defer span.End()

	start := time.Now()
	err := fn()
	rp.metrics.PassDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}

// runFrame draws k into the open frame pass.
func runFrame(pass renderer.RenderPass, k Kernel, inputs []renderer.Texture, uniforms []byte) error {
	if k == nil {
		return fmt.Errorf("%w: frame: no kernel", ErrKernelFailed)
	}
	if err := k.Run(pass, inputs, uniforms); err != nil {
		return fmt.Errorf("%w: %s into frame: %w", ErrKernelFailed, k.Name(), err)
	}
	return nil
}

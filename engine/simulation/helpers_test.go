package simulation

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/assets"
	"github.com/Carmen-Shannon/oxy-particles/engine/config"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/stretchr/testify/require"
)

const (
	keyIndexInit = "test/index"
	keyCountVel  = "test/count"
)

// indexKernel writes the particle index into x.
func indexKernel(ctx pipeline.KernelContext, x, y int) [4]float32 {
	side := max(int(ctx.Uniform(0)), 1)
	return [4]float32{float32(common.TexelToIndex(x, y, side)), 0, 0, 1}
}

// countKernel adds one to the x velocity, so velocity.x counts committed steps.
func countKernel(ctx pipeline.KernelContext, x, y int) [4]float32 {
	v := ctx.Load(0, x, y)
	return [4]float32{v[0] + 1, 0, 0, 1}
}

func testPipelines() []pipeline.Pipeline {
	return []pipeline.Pipeline{
		pipeline.NewPipeline(keyIndexInit, pipeline.WithCPUKernel(indexKernel)),
		pipeline.NewPipeline(keyCountVel, pipeline.WithCPUKernel(countKernel)),
	}
}

// newTestRenderer returns a software renderer with the test pipelines registered.
func newTestRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, nil,
		renderer.WithSurfaceSize(16, 16),
		renderer.WithWorkers(2),
		renderer.WithPipelines(testPipelines()...),
	)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

// newKernelRenderer also registers the built-in kernels.
func newKernelRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r := newTestRenderer(t)
	pls, err := ShaderSource{}.Pipelines()
	require.NoError(t, err)
	require.NoError(t, r.RegisterPipelines(pls...))
	return r
}

// testKernels seeds position with its index and counts steps in velocity.
func testKernels(side int) Kernels {
	return Kernels{
		Init:     PipelineKernel{Key: keyIndexInit},
		Velocity: PipelineKernel{Key: keyCountVel},
	}.merge(DefaultKernels(side))
}

func testParams() StepParams {
	p := DefaultStepParams()
	p.Dt = 1
	return p
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Backend = config.BackendSoftware
	cfg.NumParticles = 2
	cfg.SkipCount = 4
	cfg.Environment.CaptureSize = 8
	cfg.Environment.InsetSize = 4
	cfg.Environment.FaceSize = 4
	cfg.Shadow.MapSize = 8
	return cfg
}

func testEnvironment(t *testing.T) assets.Environment {
	t.Helper()
	env, err := assets.LoadEnvironment(context.Background(), assets.NewProceduralProvider(4), 4)
	require.NoError(t, err)
	return env
}

// readX returns the x component of every particle in b, by particle index.
func readX(t *testing.T, b *StateBuffer) []float32 {
	t.Helper()
	data, err := b.Read()
	require.NoError(t, err)
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = data[i*4]
	}
	return out
}

func read(t *testing.T, b *StateBuffer) []float32 {
	t.Helper()
	data, err := b.Read()
	require.NoError(t, err)
	return data
}

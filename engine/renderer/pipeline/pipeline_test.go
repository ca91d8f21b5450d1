package pipeline

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("k")
	assert.Equal(t, "k", p.PipelineKey())
	assert.Equal(t, TargetFormatState, p.TargetFormat())
	assert.False(t, p.BlendEnabled())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Nil(t, p.Pipeline())
	assert.Nil(t, p.CPUKernel())
	assert.Nil(t, p.Shader(shader.ShaderTypeVertex))
}

func TestWithTargetFormatDisablesDepthOffscreen(t *testing.T) {
	state := NewPipeline("s", WithTargetFormat(TargetFormatState))
	assert.False(t, state.DepthTestEnabled())
	assert.False(t, state.DepthWriteEnabled())

	surface := NewPipeline("m", WithTargetFormat(TargetFormatSurface), WithBlendEnabled(true), WithDepthWriteEnabled(false))
	assert.True(t, surface.DepthTestEnabled())
	assert.False(t, surface.DepthWriteEnabled())
	assert.True(t, surface.BlendEnabled())
	assert.Equal(t, "surface", surface.TargetFormat().String())
}

func TestWithCPUKernel(t *testing.T) {
	p := NewPipeline("c", WithCPUKernel(func(ctx KernelContext, x, y int) [4]float32 {
		return [4]float32{float32(x), float32(y), 0, 1}
	}))
	assert.Equal(t, [4]float32{2, 3, 0, 1}, p.CPUKernel()(nil, 2, 3))
}

func TestUniformAt(t *testing.T) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(-2))
	assert.Equal(t, float32(1.5), UniformAt(b, 0))
	assert.Equal(t, float32(-2), UniformAt(b, 1))
	assert.Equal(t, float32(0), UniformAt(b, 2))
	assert.Equal(t, float32(0), UniformAt(b, -1))
}

func TestReleaseWithoutGPUObjects(t *testing.T) {
	p := NewPipeline("r")
	assert.NotPanics(t, p.Release)
}

package simulation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedPipelines(t *testing.T) {
	pls, err := ShaderSource{}.Pipelines()
	require.NoError(t, err)
	require.Len(t, pls, len(kernelSpecs))

	byKey := make(map[string]pipeline.Pipeline, len(pls))
	for _, p := range pls {
		byKey[p.PipelineKey()] = p
	}
	for _, key := range []string{KeyInit, KeyCopy, KeyVelocity, KeyIntegrate, KeyEnvironment, KeyShadow, KeyParticles, KeyInset} {
		p, ok := byKey[key]
		require.True(t, ok, key)
		assert.NotNil(t, p.CPUKernel(), key)
		assert.Equal(t, "vs_main", p.Shader(shader.ShaderTypeVertex).EntryPoint(), key)
		assert.Equal(t, "fs_main", p.Shader(shader.ShaderTypeFragment).EntryPoint(), key)
	}
	assert.Equal(t, pipeline.TargetFormatState, byKey[KeyVelocity].TargetFormat())
	assert.Equal(t, pipeline.TargetFormatColor, byKey[KeyEnvironment].TargetFormat())
	assert.Equal(t, pipeline.TargetFormatSurface, byKey[KeyParticles].TargetFormat())
	assert.True(t, byKey[KeyParticles].BlendEnabled())
	assert.False(t, byKey[KeyInset].DepthTestEnabled())
}

func TestCameraKernelsIncludeCameraUniform(t *testing.T) {
	p, err := ShaderSource{}.Pipeline(KeyEnvironment)
	require.NoError(t, err)
	assert.Contains(t, p.Shader(shader.ShaderTypeVertex).Source(), "struct CameraUniform")

	p, err = ShaderSource{}.Pipeline(KeyCopy)
	require.NoError(t, err)
	assert.NotContains(t, p.Shader(shader.ShaderTypeVertex).Source(), "struct CameraUniform")
}

func TestPipelineUnknownKey(t *testing.T) {
	_, err := ShaderSource{}.Pipeline("particles/nope")
	assert.ErrorIs(t, err, ErrUnknownKernel)
}

func TestShaderDirOverridesEmbedded(t *testing.T) {
	dir := t.TempDir()
	src := "// override\n@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }\n" +
		"@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "copy.wgsl"), []byte(src), 0o644))

	s := ShaderSource{Dir: dir}
	p, err := s.Pipeline(KeyCopy)
	require.NoError(t, err)
	assert.Contains(t, p.Shader(shader.ShaderTypeVertex).Source(), "// override")

	// Files missing from the directory fall back to the embedded copy.
	p, err = s.Pipeline(KeyIntegrate)
	require.NoError(t, err)
	assert.NotContains(t, p.Shader(shader.ShaderTypeVertex).Source(), "// override")
}

func TestKeysForPaths(t *testing.T) {
	keys := KeysForPaths([]string{
		"shaders/velocity.wgsl",
		"/abs/shaders/particles.wgsl",
		"shaders/velocity.wgsl",
		"shaders/notes.txt",
	})
	assert.Equal(t, []string{KeyVelocity, KeyParticles}, keys)
	assert.Empty(t, KeysForPaths(nil))
}

func TestDefaultKernelsInstancePerParticle(t *testing.T) {
	k := DefaultKernels(3)
	assert.Equal(t, PipelineKernel{Key: KeyParticles, VertexCount: 6, InstanceCount: 9}, k.Particles)
	assert.Equal(t, PipelineKernel{Key: KeyShadow, VertexCount: 6, InstanceCount: 9}, k.Shadow)

	merged := Kernels{Velocity: PipelineKernel{Key: "custom"}}.merge(k)
	assert.Equal(t, PipelineKernel{Key: "custom"}, merged.Velocity)
	assert.Equal(t, k.Integrate, merged.Integrate)
}

func TestDefaultKernelsRejectsOverflowingSide(t *testing.T) {
	largest := DefaultKernels(common.MaxTextureSide)
	assert.Equal(t, uint32(common.MaxTextureSide*common.MaxTextureSide), largest.Particles.(PipelineKernel).InstanceCount)
	assert.Panics(t, func() { DefaultKernels(1 << 16) })
	assert.Panics(t, func() { DefaultKernels(-1) })
}

package shader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testKernelSource = `
//@oxy:include hash
//@oxy:include fullscreen

struct Params {
    time: f32,
    delta: f32,
    side: f32,
    _pad: f32,
    matrix: mat4x4<f32>,
}

@group(0) @binding(2) var<uniform> params: Params;
@group(0) @binding(0) var positions: texture_2d<f32>;
@group(0) @binding(1) var env: texture_cube<f32>;
@group(0) @binding(3) var env_sampler: sampler;

/* @group(0) @binding(9) var ignored: texture_2d<f32>; */

@vertex
fn vs_main(@builtin(vertex_index) vi: u32) -> FullscreenOutput {
    return fullscreen_triangle(vi);
}

@fragment
fn fs_main(in: FullscreenOutput) -> @location(0) vec4<f32> {
    // a comment with @group(1) @binding(0) var nope: sampler;
    return textureLoad(positions, vec2<i32>(in.position.xy), 0) * hash_unit(1u);
}
`

func TestNewShaderParsesStage(t *testing.T) {
	vs, err := NewShader("kernel", ShaderTypeVertex, testKernelSource)
	require.NoError(t, err)
	fs, err := NewShader("kernel", ShaderTypeFragment, testKernelSource)
	require.NoError(t, err)

	assert.Equal(t, "vs_main", vs.EntryPoint())
	assert.Equal(t, "fs_main", fs.EntryPoint())
	assert.Equal(t, []AnnotationArg{AnnotationArgHash, AnnotationArgFullscreen}, vs.Includes())
	assert.Contains(t, vs.Source(), "fn pcg_hash")
	assert.NotContains(t, vs.Source(), "@oxy:")
	assert.Equal(t, "kernel", vs.Module().Label)
}

func TestBindGroupLayoutsSortedAndClassified(t *testing.T) {
	s, err := NewShader("kernel", ShaderTypeFragment, testKernelSource)
	require.NoError(t, err)

	layouts := s.BindGroupLayoutDescriptors()
	require.Len(t, layouts, 1)
	entries := layouts[0].Entries
	require.Len(t, entries, 4)

	for i, e := range entries {
		assert.Equal(t, uint32(i), e.Binding)
		assert.Equal(t, wgpu.ShaderStageFragment, e.Visibility)
	}
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, entries[0].Texture.ViewDimension)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, entries[1].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimensionCube, entries[1].Texture.ViewDimension)
	assert.True(t, IsUniformEntry(entries[2]))
	assert.Equal(t, uint64(80), entries[2].Buffer.MinBindingSize)
	assert.True(t, IsSamplerEntry(entries[3]))
	assert.True(t, IsTextureEntry(entries[0]))

	assert.Equal(t, "params", s.BindGroupVarName(0, 2))
	assert.Equal(t, "", s.BindGroupVarName(1, 0))
}

func TestNewShaderMissingEntryPoint(t *testing.T) {
	_, err := NewShader("frag_only", ShaderTypeVertex, "@fragment fn fs() -> @location(0) vec4<f32> { return vec4<f32>(); }")
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestPreProcessorErrors(t *testing.T) {
	pp := NewPreProcessor()
	_, err := pp.Process("//@oxy:include nope")
	assert.Error(t, err)
	_, err = pp.Process("//@oxy:include")
	assert.Error(t, err)
	_, err = pp.Process("//@oxy:group 0 0")
	assert.Error(t, err)

	out, err := pp.Process("//@oxy:include hash\n//@oxy:include hash\nfn main() {}")
	require.NoError(t, err)
	assert.Equal(t, []AnnotationArg{AnnotationArgHash}, pp.Includes())
	assert.Contains(t, out, "fn main() {}")
}

func TestResolveTypeLayout(t *testing.T) {
	structs := computeStructSizes(parseStructBlocks(`
struct Outer { inner: Inner, tail: f32, }
struct Inner { a: vec3<f32>, b: f32, }
`))
	assert.Equal(t, wgslTypeLayout{16, 16}, structs["Inner"])
	assert.Equal(t, wgslTypeLayout{32, 16}, structs["Outer"])

	l, ok := resolveTypeLayout("array<vec4<f32>, 4>", structs)
	require.True(t, ok)
	assert.Equal(t, uint64(64), l.size)

	_, ok = resolveTypeLayout("array<f32>", structs)
	assert.False(t, ok)
}

func TestLoadShaderMissingFile(t *testing.T) {
	_, err := LoadShader("missing", ShaderTypeVertex, filepath.Join(t.TempDir(), "nope.wgsl"))
	assert.Error(t, err)
}

func TestShouldProcessEvent(t *testing.T) {
	assert.True(t, shouldProcessEvent(fsnotify.Event{Name: "a/sim.wgsl", Op: fsnotify.Write}))
	assert.True(t, shouldProcessEvent(fsnotify.Event{Name: "a/sim.WGSL", Op: fsnotify.Create}))
	assert.False(t, shouldProcessEvent(fsnotify.Event{Name: "a/sim.wgsl", Op: fsnotify.Chmod}))
	assert.False(t, shouldProcessEvent(fsnotify.Event{Name: "a/sim.go", Op: fsnotify.Write}))
}

func TestWatcherDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	changes := make(chan []string, 4)
	w, err := NewWatcher(zaptest.NewLogger(t), dir, 50*time.Millisecond, func(paths []string) {
		changes <- paths
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(dir, "sim.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	select {
	case got := <-changes:
		assert.Equal(t, []string{path}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change batch delivered")
	}
}

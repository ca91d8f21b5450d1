package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constKernel(c [4]float32) pipeline.CPUKernel {
	return func(pipeline.KernelContext, int, int) [4]float32 { return c }
}

// copyKernel copies input 0 texel for texel.
func copyKernel(ctx pipeline.KernelContext, x, y int) [4]float32 {
	return ctx.Load(0, x, y)
}

func newTestRenderer(t *testing.T, pipelines ...pipeline.Pipeline) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeSoftware, nil,
		WithSurfaceSize(8, 6),
		WithWorkers(2),
		WithPipelines(pipelines...),
	)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func TestNewRendererSoftware(t *testing.T) {
	r := newTestRenderer(t, pipeline.NewPipeline("a"))
	w, h := r.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 6, h)
	assert.Equal(t, BackendTypeSoftware, r.BackendType())
	assert.NotNil(t, r.Pipeline("a"))
	assert.Nil(t, r.Pipeline("missing"))
}

func TestNewRendererWGPURequiresSurface(t *testing.T) {
	_, err := NewRenderer(BackendTypeWGPU, nil)
	assert.Error(t, err)
}

func TestPassEndYieldsTexture(t *testing.T) {
	r := newTestRenderer(t, pipeline.NewPipeline("fill", pipeline.WithCPUKernel(constKernel([4]float32{1, 2, 3, 4}))))
	tgt, err := r.CreateTarget("state", 2, 2, pipeline.TargetFormatState)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tgt.Generation())

	pass, err := r.BeginPass(tgt, &common.ColorBlack)
	require.NoError(t, err)
	assert.True(t, tgt.Bound())
	assert.Equal(t, tgt, pass.Target())
	require.NoError(t, pass.Draw(DrawCommand{Pipeline: "fill", VertexCount: 3}))

	tex, err := pass.End()
	require.NoError(t, err)
	require.NotNil(t, tex)
	assert.False(t, tgt.Bound())
	assert.Equal(t, uint64(1), tgt.Generation())
	assert.Equal(t, uint64(1), tex.Generation())
	assert.Equal(t, tgt, tex.Source())

	data, err := r.ReadTexture(tex)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 1, 2, 3, 4, 1, 2, 3, 4, 1, 2, 3, 4}, data)

	_, err = pass.End()
	assert.ErrorIs(t, err, ErrPassEnded)
	assert.ErrorIs(t, pass.Draw(DrawCommand{Pipeline: "fill"}), ErrPassEnded)
}

func TestOnlyOnePassAtATime(t *testing.T) {
	r := newTestRenderer(t)
	a, err := r.CreateTarget("a", 1, 1, pipeline.TargetFormatState)
	require.NoError(t, err)
	b, err := r.CreateTarget("b", 1, 1, pipeline.TargetFormatState)
	require.NoError(t, err)

	pass, err := r.BeginPass(a, nil)
	require.NoError(t, err)

	_, err = r.BeginPass(b, nil)
	assert.ErrorIs(t, err, ErrPassActive)
	_, err = r.BeginFrame(nil)
	assert.ErrorIs(t, err, ErrPassActive)
	assert.ErrorIs(t, r.Present(), ErrPassActive)
	assert.ErrorIs(t, a.Release(), ErrTargetBound)

	_, err = pass.End()
	require.NoError(t, err)
	_, err = r.BeginPass(b, nil)
	assert.NoError(t, err)
}

func TestDrawRejectsFeedbackLoop(t *testing.T) {
	r := newTestRenderer(t, pipeline.NewPipeline("copy", pipeline.WithCPUKernel(copyKernel)))
	tgt, err := r.CreateTarget("self", 1, 1, pipeline.TargetFormatState)
	require.NoError(t, err)

	pass, err := r.BeginPass(tgt, nil)
	require.NoError(t, err)
	tex, err := pass.End()
	require.NoError(t, err)

	pass, err = r.BeginPass(tgt, nil)
	require.NoError(t, err)
	err = pass.Draw(DrawCommand{Pipeline: "copy", Inputs: []Texture{tex}})
	assert.ErrorIs(t, err, ErrFeedbackLoop)
	_, err = pass.End()
	assert.NoError(t, err)
}

func TestDrawRejectsStaleTexture(t *testing.T) {
	r := newTestRenderer(t, pipeline.NewPipeline("copy", pipeline.WithCPUKernel(copyKernel)))
	src, err := r.CreateTarget("src", 1, 1, pipeline.TargetFormatState)
	require.NoError(t, err)
	dst, err := r.CreateTarget("dst", 1, 1, pipeline.TargetFormatState)
	require.NoError(t, err)

	pass, _ := r.BeginPass(src, nil)
	old, err := pass.End()
	require.NoError(t, err)
	pass, _ = r.BeginPass(src, nil)
	fresh, err := pass.End()
	require.NoError(t, err)

	pass, err = r.BeginPass(dst, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, pass.Draw(DrawCommand{Pipeline: "copy", Inputs: []Texture{old}}), ErrStaleTexture)
	assert.NoError(t, pass.Draw(DrawCommand{Pipeline: "copy", Inputs: []Texture{fresh}}))
	_, err = pass.End()
	require.NoError(t, err)

	_, err = r.ReadTexture(old)
	assert.ErrorIs(t, err, ErrStaleTexture)
}

func TestDrawValidatesPipeline(t *testing.T) {
	r := newTestRenderer(t, pipeline.NewPipeline("color", pipeline.WithTargetFormat(pipeline.TargetFormatColor)))
	tgt, err := r.CreateTarget("state", 1, 1, pipeline.TargetFormatState)
	require.NoError(t, err)

	pass, err := r.BeginPass(tgt, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, pass.Draw(DrawCommand{Pipeline: "nope"}), ErrPipelineNotFound)
	assert.ErrorIs(t, pass.Draw(DrawCommand{Pipeline: "color"}), ErrFormatMismatch)
	assert.ErrorIs(t, pass.Draw(DrawCommand{Pipeline: "color", Inputs: []Texture{nil}}), ErrFormatMismatch)
	_, err = pass.End()
	require.NoError(t, err)
}

func TestCopyBetweenTargets(t *testing.T) {
	index := func(ctx pipeline.KernelContext, x, y int) [4]float32 {
		return [4]float32{float32(common.TexelToIndex(x, y, ctx.Width())), ctx.Uniform(0), 0, 1}
	}
	r := newTestRenderer(t,
		pipeline.NewPipeline("index", pipeline.WithCPUKernel(index)),
		pipeline.NewPipeline("copy", pipeline.WithCPUKernel(copyKernel)),
	)
	a, _ := r.CreateTarget("a", 2, 2, pipeline.TargetFormatState)
	b, _ := r.CreateTarget("b", 2, 2, pipeline.TargetFormatState)

	pass, err := r.BeginPass(a, &common.ColorTransparent)
	require.NoError(t, err)
	require.NoError(t, pass.Draw(DrawCommand{Pipeline: "index", Uniforms: common.SliceToBytes([]float32{7})}))
	texA, err := pass.End()
	require.NoError(t, err)

	pass, err = r.BeginPass(b, &common.ColorTransparent)
	require.NoError(t, err)
	require.NoError(t, pass.Draw(DrawCommand{Pipeline: "copy", Inputs: []Texture{texA}}))
	texB, err := pass.End()
	require.NoError(t, err)

	da, err := r.ReadTexture(texA)
	require.NoError(t, err)
	db, err := r.ReadTexture(texB)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Equal(t, float32(3), da[12])
	assert.Equal(t, float32(7), da[13])
}

func TestViewportAndBlend(t *testing.T) {
	half := constKernel([4]float32{1, 0, 0, 0.5})
	r := newTestRenderer(t, pipeline.NewPipeline("blend",
		pipeline.WithTargetFormat(pipeline.TargetFormatColor),
		pipeline.WithBlendEnabled(true),
		pipeline.WithCPUKernel(half),
	))
	tgt, err := r.CreateTarget("color", 4, 4, pipeline.TargetFormatColor)
	require.NoError(t, err)

	pass, err := r.BeginPass(tgt, &common.ColorBlack)
	require.NoError(t, err)
	require.NoError(t, pass.SetViewport(0, 2, 2, 2))
	assert.Error(t, pass.SetViewport(0, 0, 0, 1))
	require.NoError(t, pass.Draw(DrawCommand{Pipeline: "blend"}))
	tex, err := pass.End()
	require.NoError(t, err)

	data, err := r.ReadTexture(tex)
	require.NoError(t, err)
	at := func(x, y int) []float32 { off := (y*4 + x) * 4; return data[off : off+4] }
	assert.Equal(t, []float32{0, 0, 0, 1}, at(0, 0))
	assert.Equal(t, []float32{0, 0, 0, 1}, at(3, 3))
	assert.InDelta(t, 0.5, at(1, 3)[0], 1e-6)
	assert.InDelta(t, 1, at(1, 3)[3], 1e-6)
}

func TestFramePass(t *testing.T) {
	r := newTestRenderer(t, pipeline.NewPipeline("frame",
		pipeline.WithTargetFormat(pipeline.TargetFormatSurface),
		pipeline.WithCPUKernel(constKernel([4]float32{2, 0, 0, 1})),
	))
	pass, err := r.BeginFrame(&common.ColorBlack)
	require.NoError(t, err)
	assert.Nil(t, pass.Target())
	require.NoError(t, pass.Draw(DrawCommand{Pipeline: "frame", VertexCount: 3}))
	tex, err := pass.End()
	assert.NoError(t, err)
	assert.Nil(t, tex)
	assert.NoError(t, r.Present())

	sb := r.(*renderer).backend.(*softwareRendererBackend)
	assert.Equal(t, 1, sb.drawCount("frame"))
	assert.Equal(t, uint64(1), sb.presented)
	// Surface texels are clamped.
	assert.Equal(t, float32(1), sb.frame.pix[0])
}

func TestFrameMustBePresentedBeforeNext(t *testing.T) {
	r := newTestRenderer(t)
	pass, err := r.BeginFrame(nil)
	require.NoError(t, err)
	_, err = pass.End()
	require.NoError(t, err)

	_, err = r.BeginFrame(nil)
	assert.ErrorIs(t, err, ErrFrameNotPresented)

	require.NoError(t, r.Present())
	pass, err = r.BeginFrame(nil)
	require.NoError(t, err)
	_, err = pass.End()
	require.NoError(t, err)
	require.NoError(t, r.Present())
	// Presenting without a held frame is a no-op.
	require.NoError(t, r.Present())
	assert.Equal(t, uint64(2), r.(*renderer).backend.(*softwareRendererBackend).presented)
}

func TestCreateTargetRejectsOversizedSide(t *testing.T) {
	r := newTestRenderer(t)
	_, err := r.CreateTarget("huge", 1<<23, 1<<23, pipeline.TargetFormatState)
	assert.ErrorIs(t, err, ErrTargetTooLarge)
	_, err = r.CreateTarget("wide", common.MaxTextureSide+1, 1, pipeline.TargetFormatState)
	assert.ErrorIs(t, err, ErrTargetTooLarge)
}

func TestResizeDuringPassIsDeferredToNextFrame(t *testing.T) {
	r := newTestRenderer(t)
	tgt, err := r.CreateTarget("t", 1, 1, pipeline.TargetFormatState)
	require.NoError(t, err)
	pass, err := r.BeginPass(tgt, nil)
	require.NoError(t, err)

	r.Resize(4, 2)
	w, h := r.Size()
	assert.Equal(t, []int{8, 6}, []int{w, h})

	_, err = pass.End()
	require.NoError(t, err)
	frame, err := r.BeginFrame(nil)
	require.NoError(t, err)
	w, h = r.Size()
	assert.Equal(t, []int{4, 2}, []int{w, h})
	assert.Len(t, r.(*renderer).backend.(*softwareRendererBackend).frame.pix, 4*2*4)
	_, err = frame.End()
	require.NoError(t, err)
	require.NoError(t, r.Present())
}

func TestCubeTexture(t *testing.T) {
	var faces [6]common.TextureStagingData
	for i := range faces {
		faces[i] = common.TextureStagingData{Pixels: []byte{byte(i * 50), 0, 0, 255}, Width: 1, Height: 1}
	}
	sample := func(ctx pipeline.KernelContext, x, y int) [4]float32 {
		return ctx.SampleCube(0, [3]float32{0, -1, 0})
	}
	r := newTestRenderer(t, pipeline.NewPipeline("sky", pipeline.WithCPUKernel(sample)))
	cube, err := r.CreateCubeTexture("sky", faces)
	require.NoError(t, err)
	assert.Nil(t, cube.Source())

	tgt, _ := r.CreateTarget("out", 1, 1, pipeline.TargetFormatState)
	pass, _ := r.BeginPass(tgt, nil)
	require.NoError(t, pass.Draw(DrawCommand{Pipeline: "sky", Inputs: []Texture{cube}}))
	tex, err := pass.End()
	require.NoError(t, err)
	data, err := r.ReadTexture(tex)
	require.NoError(t, err)
	assert.InDelta(t, 150.0/255, data[0], 1e-6)

	_, err = r.ReadTexture(cube)
	assert.ErrorIs(t, err, ErrReadbackUnsupported)

	faces[2].Width = 2
	_, err = r.CreateCubeTexture("bad", faces)
	assert.Error(t, err)
}

func TestReloadPipeline(t *testing.T) {
	r := newTestRenderer(t, pipeline.NewPipeline("k", pipeline.WithCPUKernel(constKernel([4]float32{1}))))
	tgt, _ := r.CreateTarget("t", 1, 1, pipeline.TargetFormatState)

	require.NoError(t, r.ReloadPipeline(pipeline.NewPipeline("k", pipeline.WithCPUKernel(constKernel([4]float32{9})))))
	assert.Len(t, r.Pipelines(), 1)

	pass, _ := r.BeginPass(tgt, nil)
	require.NoError(t, pass.Draw(DrawCommand{Pipeline: "k"}))
	tex, err := pass.End()
	require.NoError(t, err)
	data, _ := r.ReadTexture(tex)
	assert.Equal(t, float32(9), data[0])
}

func TestTargetRelease(t *testing.T) {
	r := newTestRenderer(t)
	tgt, err := r.CreateTarget("t", 1, 1, pipeline.TargetFormatState)
	require.NoError(t, err)
	require.NoError(t, tgt.Release())
	require.NoError(t, tgt.Release())
	_, err = r.BeginPass(tgt, nil)
	assert.ErrorIs(t, err, ErrReleased)

	_, err = r.CreateTarget("bad", 0, 1, pipeline.TargetFormatState)
	assert.Error(t, err)
	_, err = r.CreateTarget("surface", 1, 1, pipeline.TargetFormatSurface)
	assert.ErrorIs(t, err, ErrFormatMismatch)
}

func TestCubeFace(t *testing.T) {
	tests := []struct {
		dir  [3]float32
		face int
	}{
		{[3]float32{1, 0, 0}, 0},
		{[3]float32{-1, 0, 0}, 1},
		{[3]float32{0, 1, 0}, 2},
		{[3]float32{0, -1, 0}, 3},
		{[3]float32{0, 0, 1}, 4},
		{[3]float32{0, 0, -1}, 5},
	}
	for _, tt := range tests {
		face, u, v := cubeFace(tt.dir)
		assert.Equal(t, tt.face, face, "dir %v", tt.dir)
		assert.Zero(t, u)
		assert.Zero(t, v)
	}
}

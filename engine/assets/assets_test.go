package assets

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func writeImage(t *testing.T, path string, c color.RGBA, size int, encode func(f *os.File, img image.Image) error) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, encode(f, img))
}

func encodePNG(f *os.File, img image.Image) error { return png.Encode(f, img) }
func encodeBMP(f *os.File, img image.Image) error { return bmp.Encode(f, img) }

func TestDirProviderDecodesAndCaches(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "rad_posx.png"), color.RGBA{R: 255, A: 255}, 4, encodePNG)
	writeImage(t, filepath.Join(dir, "rad_negx.bmp"), color.RGBA{G: 255, A: 255}, 2, encodeBMP)

	p := NewDirProvider(dir)
	data, err := p.Image(context.Background(), "rad_posx")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), data.Width)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, data.Texel(1, 1))

	data, err = p.Image(context.Background(), "rad_negx")
	require.NoError(t, err)
	assert.Equal(t, [4]float32{0, 1, 0, 1}, data.Texel(0, 0))

	require.NoError(t, os.Remove(filepath.Join(dir, "rad_posx.png")))
	_, err = p.Image(context.Background(), "rad_posx")
	assert.NoError(t, err, "second lookup is served from the cache")

	_, err = p.Image(context.Background(), "irr_posx")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirProviderRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "irr_posy.png"), []byte("not a png"), 0o644))
	_, err := NewDirProvider(dir).Image(context.Background(), "irr_posy")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestProceduralProviderFaces(t *testing.T) {
	p := NewProceduralProvider(8)
	up, err := p.Image(context.Background(), "rad_posy")
	require.NoError(t, err)
	down, err := p.Image(context.Background(), "rad_negy")
	require.NoError(t, err)
	assert.Equal(t, uint32(8), up.Width)
	assert.Greater(t, up.Texel(4, 4)[2], down.Texel(4, 4)[2], "sky is bluer than the ground")

	irr, err := p.Image(context.Background(), "irr_posy")
	require.NoError(t, err)
	assert.Less(t, irr.Texel(4, 4)[2], up.Texel(4, 4)[2])

	_, err = p.Image(context.Background(), "spec_posx")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChainProviderFallsThroughOnlyOnNotFound(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "irr_posz.png"), color.RGBA{B: 255, A: 255}, 2, encodePNG)
	chain := ChainProvider{NewDirProvider(dir), NewProceduralProvider(2)}

	data, err := chain.Image(context.Background(), "irr_posz")
	require.NoError(t, err)
	assert.Equal(t, [4]float32{0, 0, 1, 1}, data.Texel(0, 0))

	_, err = chain.Image(context.Background(), "irr_negz")
	assert.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "rad_negz.png"), []byte("junk"), 0o644))
	_, err = chain.Image(context.Background(), "rad_negz")
	assert.Error(t, err)
}

type countingProvider struct {
	Provider
	calls atomic.Int32
	fail  string
}

func (c *countingProvider) Image(ctx context.Context, id string) (common.TextureStagingData, error) {
	c.calls.Add(1)
	if id == c.fail {
		return common.TextureStagingData{}, errors.New("boom")
	}
	return c.Provider.Image(ctx, id)
}

func TestLoadEnvironmentLoadsAndScalesAllFaces(t *testing.T) {
	p := &countingProvider{Provider: NewProceduralProvider(16)}
	env, err := LoadEnvironment(context.Background(), p, 4)
	require.NoError(t, err)
	assert.Equal(t, int32(12), p.calls.Load())
	for face := range FaceNames {
		assert.Equal(t, uint32(4), env.Irradiance[face].Width)
		assert.Equal(t, uint32(4), env.Radiance[face].Height)
		assert.Len(t, env.Radiance[face].Pixels, 4*4*4)
	}
}

func TestLoadEnvironmentFailure(t *testing.T) {
	p := &countingProvider{Provider: NewProceduralProvider(4), fail: "rad_negy"}
	_, err := LoadEnvironment(context.Background(), p, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rad_negy")

	_, err = LoadEnvironment(context.Background(), p, 0)
	assert.Error(t, err)
}

func TestResizeKeepsSolidColor(t *testing.T) {
	src := common.TextureStagingData{Pixels: make([]byte, 2*2*4), Width: 2, Height: 2}
	for i := 0; i < len(src.Pixels); i += 4 {
		src.Pixels[i], src.Pixels[i+3] = 255, 255
	}
	dst := Resize(src, 5, 3)
	assert.Equal(t, uint32(5), dst.Width)
	assert.Equal(t, uint32(3), dst.Height)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, dst.Texel(4, 2))
	assert.Equal(t, src, Resize(src, 2, 2))
}

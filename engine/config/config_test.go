package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.SkipCount)
	assert.Equal(t, 256, cfg.Environment.CaptureSize)
	assert.Equal(t, 200, cfg.Environment.InsetSize)
	assert.False(t, cfg.Shadow.Enabled)
}

func TestValidateRejectsZeroSkipCount(t *testing.T) {
	cfg := Default()
	cfg.SkipCount = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "skip_count")
}

func TestValidateRejectsOutOfRangeParticles(t *testing.T) {
	for _, n := range []int{0, -3, common.MaxTextureSide + 1, 1 << 23} {
		cfg := Default()
		cfg.NumParticles = n
		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalid)
	}
}

func TestValidateAcceptsLargestParticleSide(t *testing.T) {
	cfg := Default()
	cfg.NumParticles = common.MaxTextureSide
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	cfg := Default()
	cfg.SkipCount = 0
	cfg.NumParticles = 0
	cfg.Backend = "vulkan"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte("num_particles: 128\nskip_count: 2\nbackend: software\n"))
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.NumParticles)
	assert.Equal(t, 2, cfg.SkipCount)
	assert.Equal(t, BackendSoftware, cfg.Backend)
	assert.Equal(t, Default().Window, cfg.Window)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("num_particles: [oops"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "particles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("skip_count: 0\n"), 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestHotReloadRequiresShadersDir(t *testing.T) {
	cfg := Default()
	cfg.HotReload = true
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
	cfg.ShadersDir = "shaders"
	assert.NoError(t, cfg.Validate())
}

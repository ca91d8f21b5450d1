// Package config loads and validates the runtime configuration for the particle engine.
// A YAML file is overlaid on Default() and then validated before any GPU resource is created.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Backend names accepted by the Backend field.
const (
	BackendWGPU     = "wgpu"
	BackendSoftware = "software"
)

// Config is the full engine configuration.
type Config struct {
	// NumParticles is the side length of every state texture; the simulation holds NumParticles² particles.
	NumParticles int `yaml:"num_particles"`
	// SkipCount is the number of displayed frames between simulation steps (K).
	SkipCount int `yaml:"skip_count"`
	// Seed feeds the procedural initialization kernel.
	Seed uint32 `yaml:"seed"`

	Backend     string `yaml:"backend"`
	PresentMode string `yaml:"present_mode"`
	MSAA        int    `yaml:"msaa"`

	Window      WindowConfig      `yaml:"window"`
	Camera      CameraConfig      `yaml:"camera"`
	Environment EnvironmentConfig `yaml:"environment"`
	Shadow      ShadowConfig      `yaml:"shadow"`

	AssetsDir       string `yaml:"assets_dir"`
	ShadersDir      string `yaml:"shaders_dir"`
	HotReload       bool   `yaml:"hot_reload"`
	ValidateShaders bool   `yaml:"validate_shaders"`

	LogLevel    string  `yaml:"log_level"`
	Development bool    `yaml:"development"`
	MetricsAddr string  `yaml:"metrics_addr"`
	Profiling   bool    `yaml:"profiling"`
	FrameLimit  float64 `yaml:"frame_limit"`
	TickRate    float64 `yaml:"tick_rate"`
}

// WindowConfig controls the host window.
type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// CameraConfig controls the primary orbit camera.
type CameraConfig struct {
	Fov       float32 `yaml:"fov"`
	Near      float32 `yaml:"near"`
	Far       float32 `yaml:"far"`
	Radius    float32 `yaml:"radius"`
	RotationX float32 `yaml:"rotation_x"`
	RotationY float32 `yaml:"rotation_y"`
}

// EnvironmentConfig controls the environment capture and its diagnostic inset.
type EnvironmentConfig struct {
	CaptureSize  int     `yaml:"capture_size"`
	InsetSize    int     `yaml:"inset_size"`
	SphereRadius float32 `yaml:"sphere_radius"`
	FaceSize     int     `yaml:"face_size"`
}

// ShadowConfig controls the shadow capture extension point.
type ShadowConfig struct {
	Enabled       bool       `yaml:"enabled"`
	MapSize       int        `yaml:"map_size"`
	LightPosition [3]float32 `yaml:"light_position"`
}

// Default returns the configuration used when no file is supplied.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		NumParticles: 64,
		SkipCount:    4,
		Seed:         1,
		Backend:      BackendWGPU,
		PresentMode:  "vsync",
		MSAA:         4,
		Window: WindowConfig{
			Title:  "oxy particles",
			Width:  1280,
			Height: 720,
		},
		Camera: CameraConfig{
			Fov:       1.5707964,
			Near:      0.1,
			Far:       100,
			Radius:    15,
			RotationX: 0.3,
			RotationY: 0.7853982,
		},
		Environment: EnvironmentConfig{
			CaptureSize:  256,
			InsetSize:    200,
			SphereRadius: 1.5,
			FaceSize:     64,
		},
		Shadow: ShadowConfig{
			Enabled:       false,
			MapSize:       1024,
			LightPosition: [3]float32{0.5, 10, 1},
		},
		LogLevel: "info",
		TickRate: 60,
	}
}

// Load reads a YAML file and overlays it on Default(). The result is validated.
//
// Parameters:
//   - path: the YAML file path; an empty path returns the validated defaults
//
// Returns:
//   - Config: the merged configuration
//   - error: a read, parse, or validation error
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of Default() and validates the result.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - Config: the merged configuration
//   - error: a parse or validation error
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every configuration violation at once. Each violation wraps ErrInvalid.
//
// Returns:
//   - error: nil when the configuration is usable
func (c Config) Validate() error {
	var err error
	if c.NumParticles <= 0 || c.NumParticles > common.MaxTextureSide {
		err = multierr.Append(err, fmt.Errorf("%w: num_particles must be in [1, %d], got %d",
			ErrInvalid, common.MaxTextureSide, c.NumParticles))
	}
	if c.SkipCount < 1 {
		err = multierr.Append(err, fmt.Errorf("%w: skip_count must be at least 1, got %d", ErrInvalid, c.SkipCount))
	}
	switch c.Backend {
	case BackendWGPU, BackendSoftware:
	default:
		err = multierr.Append(err, fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend))
	}
	switch c.PresentMode {
	case "vsync", "uncapped":
	default:
		err = multierr.Append(err, fmt.Errorf("%w: unknown present_mode %q", ErrInvalid, c.PresentMode))
	}
	switch c.MSAA {
	case 1, 4, 8, 16:
	default:
		err = multierr.Append(err, fmt.Errorf("%w: msaa must be 1, 4, 8 or 16, got %d", ErrInvalid, c.MSAA))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: window size must be positive, got %dx%d", ErrInvalid, c.Window.Width, c.Window.Height))
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		err = multierr.Append(err, fmt.Errorf("%w: camera planes must satisfy 0 < near < far", ErrInvalid))
	}
	if c.Environment.CaptureSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: environment.capture_size must be positive", ErrInvalid))
	}
	if c.Environment.InsetSize < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: environment.inset_size must not be negative", ErrInvalid))
	}
	if c.Environment.FaceSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: environment.face_size must be positive", ErrInvalid))
	}
	if c.Shadow.Enabled && c.Shadow.MapSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: shadow.map_size must be positive when shadows are enabled", ErrInvalid))
	}
	if c.HotReload && c.ShadersDir == "" {
		err = multierr.Append(err, fmt.Errorf("%w: hot_reload requires shaders_dir", ErrInvalid))
	}
	return err
}

package simulation

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-particles/engine/camera"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/shader"
	"go.uber.org/multierr"
)

// Pipeline keys of the built-in kernels.
const (
	KeyInit        = "particles/init"
	KeyCopy        = "particles/copy"
	KeyVelocity    = "particles/velocity"
	KeyIntegrate   = "particles/integrate"
	KeyEnvironment = "particles/environment"
	KeyShadow      = "particles/shadow"
	KeyParticles   = "particles/particles"
	KeyInset       = "particles/inset"
)

//go:embed shaders/*.wgsl
var shaderFiles embed.FS

// ErrUnknownKernel is returned when a pipeline is requested for a key or file with no kernel.
var ErrUnknownKernel = errors.New("simulation: unknown kernel")

type kernelSpec struct {
	key    string
	file   string
	format pipeline.TargetFormat
	blend  bool
	// camera prepends the CameraUniform struct to the source.
	camera bool
	cpu    pipeline.CPUKernel
}

var kernelSpecs = []kernelSpec{
	{key: KeyInit, file: "init.wgsl", format: pipeline.TargetFormatState, cpu: cpuInit},
	{key: KeyCopy, file: "copy.wgsl", format: pipeline.TargetFormatState, cpu: cpuCopy},
	{key: KeyVelocity, file: "velocity.wgsl", format: pipeline.TargetFormatState, cpu: cpuVelocity},
	{key: KeyIntegrate, file: "integrate.wgsl", format: pipeline.TargetFormatState, cpu: cpuIntegrate},
	{key: KeyEnvironment, file: "environment.wgsl", format: pipeline.TargetFormatColor, camera: true, cpu: cpuEnvironment},
	{key: KeyShadow, file: "shadow.wgsl", format: pipeline.TargetFormatState, cpu: cpuShadow},
	{key: KeyParticles, file: "particles.wgsl", format: pipeline.TargetFormatSurface, blend: true, camera: true, cpu: cpuParticles},
	{key: KeyInset, file: "inset.wgsl", format: pipeline.TargetFormatSurface, blend: true, cpu: cpuInset},
}

// ShaderSource resolves kernel sources. A file present in Dir overrides the embedded copy.
type ShaderSource struct {
	// Dir is an optional directory of WGSL overrides.
	Dir string
	// Validate compiles each expanded source with naga before it is handed to the renderer.
	Validate bool
}

// Pipelines builds every built-in kernel pipeline.
//
// Returns:
//   - []pipeline.Pipeline: one pipeline per kernel key
//   - error: the combined read, parse and validation errors
func (s ShaderSource) Pipelines() ([]pipeline.Pipeline, error) {
	out := make([]pipeline.Pipeline, 0, len(kernelSpecs))
	var errs error
	for _, ks := range kernelSpecs {
		p, err := s.build(ks)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, p)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// Pipeline builds the pipeline registered under key.
func (s ShaderSource) Pipeline(key string) (pipeline.Pipeline, error) {
	for _, ks := range kernelSpecs {
		if ks.key == key {
			return s.build(ks)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, key)
}

// KeysForPaths maps changed shader file paths onto the kernel keys built from them. Paths that
// match no kernel file are ignored.
func KeysForPaths(paths []string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, p := range paths {
		name := filepath.Base(p)
		for _, ks := range kernelSpecs {
			if ks.file == name && !seen[ks.key] {
				seen[ks.key] = true
				keys = append(keys, ks.key)
			}
		}
	}
	return keys
}

func (s ShaderSource) build(ks kernelSpec) (pipeline.Pipeline, error) {
	src, err := s.read(ks.file)
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", ks.key, err)
	}
	if ks.camera {
		src = camera.GPUCameraUniformSource + "\n" + src
	}

	vs, err := shader.NewShader(ks.key+"/vs", shader.ShaderTypeVertex, src)
	if err != nil {
		return nil, err
	}
	frag, err := shader.NewShader(ks.key+"/fs", shader.ShaderTypeFragment, src)
	if err != nil {
		return nil, err
	}
	if s.Validate {
		// Both stages share one expanded source.
		if err := shader.Validate(vs); err != nil {
			return nil, err
		}
	}

	opts := []pipeline.PipelineBuilderOption{
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(frag),
		pipeline.WithTargetFormat(ks.format),
		pipeline.WithBlendEnabled(ks.blend),
		pipeline.WithCPUKernel(ks.cpu),
	}
	if ks.key == KeyInset {
		// The inset is drawn over the particles and must not be hidden by their depth.
		opts = append(opts, pipeline.WithDepthTestEnabled(false), pipeline.WithDepthWriteEnabled(false))
	}
	return pipeline.NewPipeline(ks.key, opts...), nil
}

func (s ShaderSource) read(name string) (string, error) {
	if s.Dir != "" {
		data, err := os.ReadFile(filepath.Join(s.Dir, name))
		switch {
		case err == nil:
			return string(data), nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", err
		}
	}
	data, err := shaderFiles.ReadFile("shaders/" + name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)) + "\n", nil
}

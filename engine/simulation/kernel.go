package simulation

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
)

// Kernel is an externally supplied program run inside a bound pass. The orchestration only
// decides which inputs it sees, in which order, and which buffer it writes.
type Kernel interface {
	// Name identifies the kernel in errors, spans and metrics.
	Name() string

	// Run issues the kernel's draws into pass.
	//
	// Parameters:
	//   - pass: the open pass writing the output
	//   - inputs: the textures sampled by the kernel, in binding order
	//   - uniforms: the kernel's uniform block
	//
	// Returns:
	//   - error: a validation or encoding error
	Run(pass renderer.RenderPass, inputs []renderer.Texture, uniforms []byte) error
}

// PipelineKernel runs a registered render pipeline as a single draw.
type PipelineKernel struct {
	// Key is the pipeline key in the renderer's cache.
	Key string
	// VertexCount defaults to 3, a fullscreen triangle.
	VertexCount uint32
	// InstanceCount defaults to 1.
	InstanceCount uint32
}

var _ Kernel = PipelineKernel{}

func (k PipelineKernel) Name() string { return k.Key }

func (k PipelineKernel) Run(pass renderer.RenderPass, inputs []renderer.Texture, uniforms []byte) error {
	vc := k.VertexCount
	if vc == 0 {
		vc = 3
	}
	return pass.Draw(renderer.DrawCommand{
		Pipeline:      k.Key,
		Inputs:        inputs,
		Uniforms:      uniforms,
		VertexCount:   vc,
		InstanceCount: max(k.InstanceCount, 1),
	})
}

// KernelFunc adapts a function to the Kernel interface.
type KernelFunc struct {
	ID string
	Fn func(pass renderer.RenderPass, inputs []renderer.Texture, uniforms []byte) error
}

var _ Kernel = KernelFunc{}

func (k KernelFunc) Name() string { return k.ID }

func (k KernelFunc) Run(pass renderer.RenderPass, inputs []renderer.Texture, uniforms []byte) error {
	return k.Fn(pass, inputs, uniforms)
}

// Kernels is the set of programs the simulation runs, one per role.
type Kernels struct {
	// Init writes the initial position (mode 0) or auxiliary (mode 1) value of each particle.
	Init Kernel
	// Copy writes its single input verbatim.
	Copy Kernel
	// Velocity computes a new velocity from (velocity, position, auxiliary).
	Velocity Kernel
	// Integrate computes a new position from (position, new velocity).
	Integrate Kernel
	// Environment draws the environment sphere seen from the sphere camera.
	Environment Kernel
	// Shadow draws interpolated particle depth from the light camera.
	Shadow Kernel
	// Particles draws the shaded particle field into the frame.
	Particles Kernel
	// Inset copies the environment capture into the diagnostic viewport.
	Inset Kernel
}

// DefaultKernels returns pipeline kernels bound to the keys registered by Pipelines.
//
// Parameters:
//   - side: the particle side length; the particle and shadow draws instance one quad per particle
//
// Returns:
//   - Kernels: the default kernel set
//
// Panics when side is outside [0, common.MaxTextureSide], where the instance count would overflow.
func DefaultKernels(side int) Kernels {
	if side < 0 || side > common.MaxTextureSide {
		panic(fmt.Sprintf("simulation: particle side %d out of range", side))
	}
	count := uint32(common.ParticleCount(side))
	return Kernels{
		Init:        PipelineKernel{Key: KeyInit},
		Copy:        PipelineKernel{Key: KeyCopy},
		Velocity:    PipelineKernel{Key: KeyVelocity},
		Integrate:   PipelineKernel{Key: KeyIntegrate},
		Environment: PipelineKernel{Key: KeyEnvironment},
		Shadow:      PipelineKernel{Key: KeyShadow, VertexCount: 6, InstanceCount: count},
		Particles:   PipelineKernel{Key: KeyParticles, VertexCount: 6, InstanceCount: count},
		Inset:       PipelineKernel{Key: KeyInset},
	}
}

// merge fills the nil roles of k from d.
func (k Kernels) merge(d Kernels) Kernels {
	pick := func(a, b Kernel) Kernel {
		if a != nil {
			return a
		}
		return b
	}
	return Kernels{
		Init:        pick(k.Init, d.Init),
		Copy:        pick(k.Copy, d.Copy),
		Velocity:    pick(k.Velocity, d.Velocity),
		Integrate:   pick(k.Integrate, d.Integrate),
		Environment: pick(k.Environment, d.Environment),
		Shadow:      pick(k.Shadow, d.Shadow),
		Particles:   pick(k.Particles, d.Particles),
		Inset:       pick(k.Inset, d.Inset),
	}
}

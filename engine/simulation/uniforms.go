package simulation

import (
	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/camera"
)

// Seed modes of the init kernel.
const (
	SeedModePosition  float32 = 0
	SeedModeAuxiliary float32 = 1
)

// InitUniforms is the init kernel's uniform block.
type InitUniforms struct {
	Side   float32
	Mode   float32
	Seed   float32
	Radius float32
}

// Bytes packs the block in WGSL order.
func (u InitUniforms) Bytes() []byte {
	return common.SliceToBytes([]float32{u.Side, u.Mode, u.Seed, u.Radius})
}

// StepParams shapes the force rule of the velocity kernel.
type StepParams struct {
	// Dt is the simulated time per step.
	Dt float32
	// Damping scales the previous velocity each step.
	Damping float32
	// Attraction pulls particles toward the origin.
	Attraction float32
	// Swirl pushes particles around the Y axis.
	Swirl float32
	// MaxSpeed caps the velocity magnitude.
	MaxSpeed float32
	// SeedRadius bounds the initial particle cloud.
	SeedRadius float32
	// PointSize is the world-space particle radius.
	PointSize float32
}

// DefaultStepParams returns a stable orbiting cloud.
func DefaultStepParams() StepParams {
	return StepParams{
		Dt:         0.05,
		Damping:    0.98,
		Attraction: 0.6,
		Swirl:      1.2,
		MaxSpeed:   4,
		SeedRadius: 5,
		PointSize:  0.08,
	}
}

// StepUniforms is the uniform block shared by the velocity and integration kernels.
type StepUniforms struct {
	Side   float32
	Time   float32
	Params StepParams
}

// Bytes packs the block in WGSL order.
func (u StepUniforms) Bytes() []byte {
	p := u.Params
	return common.SliceToBytes([]float32{u.Side, p.Dt, u.Time, p.Damping, p.Attraction, p.Swirl, p.MaxSpeed, 0})
}

// EnvironmentUniforms is the environment kernel's uniform block.
type EnvironmentUniforms struct {
	Camera       camera.GPUCameraUniform
	SphereRadius float32
}

// Bytes packs the block in WGSL order.
func (u EnvironmentUniforms) Bytes() []byte {
	return append(u.Camera.Marshal(), common.SliceToBytes([]float32{u.SphereRadius, 0, 0, 0})...)
}

// ParticleUniforms is the main particle pass's uniform block.
type ParticleUniforms struct {
	Camera        camera.GPUCameraUniform
	ShadowMatrix  [16]float32
	P             float32
	Side          float32
	PointSize     float32
	ShadowEnabled bool
}

// Bytes packs the block in WGSL order.
func (u ParticleUniforms) Bytes() []byte {
	var shadow float32
	if u.ShadowEnabled {
		shadow = 1
	}
	b := u.Camera.Marshal()
	b = append(b, common.SliceToBytes(u.ShadowMatrix[:])...)
	return append(b, common.SliceToBytes([]float32{u.P, u.Side, u.PointSize, shadow})...)
}

// ShadowUniforms is the shadow kernel's uniform block.
type ShadowUniforms struct {
	LightMatrix [16]float32
	P           float32
	Side        float32
	PointSize   float32
}

// Bytes packs the block in WGSL order.
func (u ShadowUniforms) Bytes() []byte {
	b := common.SliceToBytes(u.LightMatrix[:])
	return append(b, common.SliceToBytes([]float32{u.P, u.Side, u.PointSize, 0})...)
}

// Float offsets into the packed blocks, shared with the CPU kernels.
const (
	offCameraViewProj    = 0
	offCameraInvViewProj = 16
	offCameraPosition    = 32
	offEnvSphereRadius   = 36
	offParticleShadow    = 36
	offParticleParams    = 52
	offShadowParams      = 16
)

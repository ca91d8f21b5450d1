package simulation

import "errors"

var (
	// ErrBufferBound is returned when a State Buffer is bound twice, or read while bound.
	ErrBufferBound = errors.New("simulation: buffer is bound")

	// ErrBufferUnwritten is returned when a State Buffer is read before its first pass has ended.
	ErrBufferUnwritten = errors.New("simulation: buffer has never been written")

	// ErrAlreadySeeded is returned when a channel is seeded a second time.
	ErrAlreadySeeded = errors.New("simulation: channel already seeded")

	// ErrNotSeeded is returned when a step runs before the state was seeded.
	ErrNotSeeded = errors.New("simulation: state not seeded")

	// ErrKernelFailed wraps every error raised while running a kernel during a step or frame.
	ErrKernelFailed = errors.New("simulation: kernel failed")

	// ErrInvalidSkipCount is returned for a skip count below 1.
	ErrInvalidSkipCount = errors.New("simulation: skip count must be at least 1")

	// ErrInvalidParticleCount is returned for a particle side length outside [1, common.MaxTextureSide].
	ErrInvalidParticleCount = errors.New("simulation: particle side out of range")

	// ErrResourceAllocation wraps render target allocation failures.
	ErrResourceAllocation = errors.New("simulation: resource allocation failed")

	// ErrReleased is returned when a released simulation is used.
	ErrReleased = errors.New("simulation: released")
)

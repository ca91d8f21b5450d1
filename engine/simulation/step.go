package simulation

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"go.uber.org/multierr"
)

// Step advances the state by one simulation step: velocity, then position from the new velocity,
// then a commit that swaps all three channels. When either pass fails nothing is committed, the
// targets are resynchronized from current, and the error wraps ErrKernelFailed.
//
// Parameters:
//   - s: the seeded state
//   - k: the kernel set; Velocity, Integrate and Copy are used
//   - uniforms: the step uniform block shared by both passes
//
// Returns:
//   - error: ErrNotSeeded, or ErrKernelFailed wrapping the failing pass
func Step(s *State, k Kernels, uniforms []byte) error {
	if !s.Seeded() {
		return ErrNotSeeded
	}
	if err := advance(s, k, uniforms); err != nil {
		for _, c := range s.Channels() {
			err = multierr.Append(err, c.Resync(k.Copy))
		}
		return err
	}
	s.commit()
	return nil
}

func advance(s *State, k Kernels, uniforms []byte) error {
	vel, err := s.Velocity.Current().Texture()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKernelFailed, err)
	}
	pos, err := s.Position.Current().Texture()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKernelFailed, err)
	}
	aux, err := s.Auxiliary.Current().Texture()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKernelFailed, err)
	}

	newVel, err := runPass(s.Velocity.Target(), &common.ColorBlack, k.Velocity,
		[]renderer.Texture{vel, pos, aux}, uniforms)
	if err != nil {
		return stepFailure("velocity", err)
	}
	if _, err := runPass(s.Position.Target(), &common.ColorBlack, k.Integrate,
		[]renderer.Texture{pos, newVel}, uniforms); err != nil {
		return stepFailure("position", err)
	}
	return nil
}

// stepFailure wraps a failed sub-pass in ErrKernelFailed unless the kernel already did.
func stepFailure(stage string, err error) error {
	if errors.Is(err, ErrKernelFailed) {
		return fmt.Errorf("step %s: %w", stage, err)
	}
	return fmt.Errorf("%w: step %s: %w", ErrKernelFailed, stage, err)
}

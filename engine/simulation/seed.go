package simulation

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-particles/common"
)

// Seed writes the initial state of every channel. Position and auxiliary run the init kernel in
// their own mode and velocity starts at rest. Each channel's target ends up identical to its
// current buffer.
//
// Parameters:
//   - s: the unseeded state
//   - k: the kernel set; Init and Copy are used
//   - params: supplies the seed radius
//   - seed: mixes into the per-particle hash
//
// Returns:
//   - error: ErrAlreadySeeded, or ErrKernelFailed wrapping the failing pass
func Seed(s *State, k Kernels, params StepParams, seed uint32) error {
	if s.Seeded() {
		return ErrAlreadySeeded
	}
	init := func(mode float32) []byte {
		return InitUniforms{
			Side:   float32(s.side),
			Mode:   mode,
			Seed:   float32(seed),
			Radius: params.SeedRadius,
		}.Bytes()
	}
	if err := s.Position.Seed(k.Init, k.Copy, common.ColorTransparent, init(SeedModePosition)); err != nil {
		return err
	}
	if err := s.Auxiliary.Seed(k.Init, k.Copy, common.ColorTransparent, init(SeedModeAuxiliary)); err != nil {
		return err
	}
	if err := s.Velocity.Seed(nil, k.Copy, common.ColorBlack, nil); err != nil {
		return err
	}
	if !s.Seeded() {
		return fmt.Errorf("seed: %w", ErrNotSeeded)
	}
	return nil
}

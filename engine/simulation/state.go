package simulation

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"go.uber.org/multierr"
)

// State owns the position, velocity and auxiliary channels of one particle system. It is passed
// explicitly to the step and to the render pipeline; commit is the only place the channels swap.
type State struct {
	side int

	Position  *Channel
	Velocity  *Channel
	Auxiliary *Channel

	generation uint64
}

// NewState allocates every State Buffer. Nothing is allocated after this call.
//
// Parameters:
//   - r: the renderer that owns the targets
//   - side: the particle side length
//
// Returns:
//   - *State: the unseeded state
//   - error: ErrInvalidParticleCount, or ErrResourceAllocation after releasing what was allocated
func NewState(r renderer.Renderer, side int) (*State, error) {
	if side <= 0 || side > common.MaxTextureSide {
		return nil, fmt.Errorf("%w: %d", ErrInvalidParticleCount, side)
	}
	s := &State{side: side}
	var err error
	if s.Position, err = NewChannel(r, "position", side); err != nil {
		return nil, err
	}
	if s.Velocity, err = NewChannel(r, "velocity", side); err != nil {
		return nil, multierr.Append(err, s.Release())
	}
	if s.Auxiliary, err = NewChannel(r, "auxiliary", side); err != nil {
		return nil, multierr.Append(err, s.Release())
	}
	return s, nil
}

// Side returns the particle side length.
func (s *State) Side() int { return s.side }

// Count returns the number of particles.
func (s *State) Count() int { return s.side * s.side }

// Generation returns the number of committed steps.
func (s *State) Generation() uint64 { return s.generation }

// Channels returns the three channels in position, velocity, auxiliary order.
func (s *State) Channels() []*Channel {
	return []*Channel{s.Position, s.Velocity, s.Auxiliary}
}

// Seeded reports whether every channel has been seeded.
func (s *State) Seeded() bool {
	for _, c := range s.Channels() {
		if c == nil || !c.Seeded() {
			return false
		}
	}
	return true
}

// commit swaps all three channels together.
func (s *State) commit() {
	for _, c := range s.Channels() {
		c.swap()
	}
	s.generation++
}

// Release frees every channel.
func (s *State) Release() error {
	var err error
	for _, c := range s.Channels() {
		if c != nil {
			err = multierr.Append(err, c.Release())
		}
	}
	return err
}

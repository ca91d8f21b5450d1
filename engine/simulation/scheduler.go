package simulation

import "fmt"

// SchedulerState names where the scheduler is in its cycle.
type SchedulerState int

const (
	// Accumulating means fewer than K frames have passed since the last step.
	Accumulating SchedulerState = iota
	// StepReady means the last Tick triggered a step.
	StepReady
)

func (s SchedulerState) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case StepReady:
		return "step_ready"
	default:
		return "unknown"
	}
}

// Scheduler triggers one simulation step every K displayed frames and exposes the interpolation
// factor between steps.
type Scheduler struct {
	k       int
	counter int
	steps   uint64
	ready   bool
}

// NewScheduler creates a scheduler that fires every k ticks.
//
// Parameters:
//   - k: the skip count, at least 1
//
// Returns:
//   - *Scheduler: the scheduler with its counter at 0
//   - error: ErrInvalidSkipCount when k < 1
func NewScheduler(k int) (*Scheduler, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSkipCount, k)
	}
	return &Scheduler{k: k}, nil
}

// Tick advances the counter by one frame. It returns true, and resets the counter, when the
// counter reaches K.
func (s *Scheduler) Tick() bool {
	s.counter++
	s.ready = s.counter >= s.k
	if s.ready {
		s.counter = 0
		s.steps++
	}
	return s.ready
}

// Progress returns counter / K, in [0, 1).
func (s *Scheduler) Progress() float32 {
	return float32(s.counter) / float32(s.k)
}

// Counter returns the frames since the last step.
func (s *Scheduler) Counter() int { return s.counter }

// SkipCount returns K.
func (s *Scheduler) SkipCount() int { return s.k }

// Steps returns how many times Tick has fired.
func (s *Scheduler) Steps() uint64 { return s.steps }

// State reports whether the last Tick fired.
func (s *Scheduler) State() SchedulerState {
	if s.ready {
		return StepReady
	}
	return Accumulating
}

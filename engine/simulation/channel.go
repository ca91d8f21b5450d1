package simulation

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"go.uber.org/multierr"
)

// Channel is a double-buffered quantity: two State Buffers labeled current and target by an index.
// current holds the last finalized state, target is overwritten by the next step. The two never alias.
type Channel struct {
	name    string
	buffers [2]*StateBuffer
	current int
	seeded  bool
}

// NewChannel allocates both halves of a channel.
//
// Parameters:
//   - r: the renderer that owns the targets
//   - name: the quantity name, used in target labels
//   - side: the particle side length
//
// Returns:
//   - *Channel: the channel, with buffers[0] labeled current
//   - error: ErrResourceAllocation if either target could not be created
func NewChannel(r renderer.Renderer, name string, side int) (*Channel, error) {
	c := &Channel{name: name}
	for i := range c.buffers {
		b, err := NewStateBuffer(r, fmt.Sprintf("%s[%d]", name, i), side)
		if err != nil {
			return nil, multierr.Append(err, c.Release())
		}
		c.buffers[i] = b
	}
	return c, nil
}

// Name returns the quantity name.
func (c *Channel) Name() string { return c.name }

// Current returns the buffer holding the last finalized state.
func (c *Channel) Current() *StateBuffer { return c.buffers[c.current] }

// Target returns the buffer the next step overwrites.
func (c *Channel) Target() *StateBuffer { return c.buffers[1-c.current] }

// CurrentIndex returns which of the two buffers is labeled current.
func (c *Channel) CurrentIndex() int { return c.current }

// Seeded reports whether Seed has completed.
func (c *Channel) Seeded() bool { return c.seeded }

// Seed writes the initial state into current and copies it verbatim into target. It runs once.
//
// Parameters:
//   - init: the initialization kernel; nil leaves current at the clear color
//   - cp: the copy kernel; nil clears target to the same color instead of copying
//   - clear: the color both halves are cleared to first
//   - uniforms: the init kernel's uniform block
//
// Returns:
//   - error: ErrAlreadySeeded, or ErrKernelFailed wrapping the failing pass
func (c *Channel) Seed(init, cp Kernel, clear common.Color, uniforms []byte) error {
	if c.seeded {
		return fmt.Errorf("%s: %w", c.name, ErrAlreadySeeded)
	}
	tex, err := runPass(c.Current(), &clear, init, nil, uniforms)
	if err != nil {
		return fmt.Errorf("seed %s: %w", c.name, err)
	}
	if cp == nil {
		_, err = runPass(c.Target(), &clear, nil, nil, nil)
	} else {
		_, err = runPass(c.Target(), &clear, cp, []renderer.Texture{tex}, nil)
	}
	if err != nil {
		return fmt.Errorf("seed %s: %w", c.name, err)
	}
	c.seeded = true
	return nil
}

// Resync overwrites target with a verbatim copy of current.
//
// Parameters:
//   - cp: the copy kernel
//
// Returns:
//   - error: ErrKernelFailed wrapping the failing pass
func (c *Channel) Resync(cp Kernel) error {
	tex, err := c.Current().Texture()
	if err != nil {
		return err
	}
	if _, err := runPass(c.Target(), &common.ColorTransparent, cp, []renderer.Texture{tex}, nil); err != nil {
		return fmt.Errorf("resync %s: %w", c.name, err)
	}
	return nil
}

// swap exchanges the current and target labels. Only SimulationState.commit calls it, so the
// three channels always swap together.
func (c *Channel) swap() {
	c.current = 1 - c.current
}

// Release frees both buffers.
func (c *Channel) Release() error {
	var err error
	for i, b := range c.buffers {
		if b != nil {
			err = multierr.Append(err, b.Release())
			c.buffers[i] = nil
		}
	}
	return err
}

// runPass binds b, runs k once when non-nil, and unbinds. The pass is ended even when the kernel
// fails so the buffer is never left bound.
func runPass(b *StateBuffer, clear *common.Color, k Kernel, inputs []renderer.Texture, uniforms []byte) (renderer.Texture, error) {
	bb, err := b.Bind(clear)
	if err != nil {
		return nil, err
	}
	var runErr error
	if k != nil {
		runErr = bb.Run(k, inputs, uniforms)
	}
	tex, endErr := bb.Unbind()
	if err := multierr.Combine(runErr, endErr); err != nil {
		return nil, err
	}
	return tex, nil
}

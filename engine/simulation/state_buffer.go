package simulation

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
)

// StateBuffer is one render target holding a per-particle quantity, one particle per texel.
// Its contents can only be sampled through the texture returned by Unbind.
type StateBuffer struct {
	r      renderer.Renderer
	target renderer.Target

	latest renderer.Texture
	bound  *BoundBuffer
}

// BoundBuffer is a State Buffer bound as the output of an open render pass. Unbind is the only way
// to make what was written readable.
type BoundBuffer struct {
	buf  *StateBuffer
	pass renderer.RenderPass
	done bool
}

// NewStateBuffer allocates a side × side state target.
//
// Parameters:
//   - r: the renderer that owns the target
//   - label: a debug label
//   - side: the particle side length
//
// Returns:
//   - *StateBuffer: the buffer
//   - error: ErrResourceAllocation wrapping the renderer error
func NewStateBuffer(r renderer.Renderer, label string, side int) (*StateBuffer, error) {
	return newBuffer(r, label, side, side, pipeline.TargetFormatState)
}

func newBuffer(r renderer.Renderer, label string, width, height int, format pipeline.TargetFormat) (*StateBuffer, error) {
	t, err := r.CreateTarget(label, width, height, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceAllocation, err)
	}
	return &StateBuffer{r: r, target: t}, nil
}

// Label returns the target's debug label.
func (b *StateBuffer) Label() string { return b.target.Label() }

// Width returns the buffer width in texels.
func (b *StateBuffer) Width() int { return b.target.Width() }

// Height returns the buffer height in texels.
func (b *StateBuffer) Height() int { return b.target.Height() }

// Generation returns how many times the buffer has been written.
func (b *StateBuffer) Generation() uint64 { return b.target.Generation() }

// Bind opens a pass writing to the buffer. A nil clear color keeps the previous contents.
//
// Parameters:
//   - clear: the clear color, or nil
//
// Returns:
//   - *BoundBuffer: the open binding
//   - error: ErrBufferBound, or the renderer's error if another pass is open
func (b *StateBuffer) Bind(clear *common.Color) (*BoundBuffer, error) {
	if b.bound != nil {
		return nil, fmt.Errorf("%s: %w", b.Label(), ErrBufferBound)
	}
	pass, err := b.r.BeginPass(b.target, clear)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", b.Label(), err)
	}
	b.bound = &BoundBuffer{buf: b, pass: pass}
	return b.bound, nil
}

// Bound reports whether a pass is writing to the buffer.
func (b *StateBuffer) Bound() bool { return b.bound != nil }

// Texture returns the latest finalized contents.
//
// Returns:
//   - renderer.Texture: the read handle from the most recent Unbind
//   - error: ErrBufferBound while bound, ErrBufferUnwritten before the first Unbind
func (b *StateBuffer) Texture() (renderer.Texture, error) {
	if b.bound != nil {
		return nil, fmt.Errorf("%s: %w", b.Label(), ErrBufferBound)
	}
	if b.latest == nil {
		return nil, fmt.Errorf("%s: %w", b.Label(), ErrBufferUnwritten)
	}
	return b.latest, nil
}

// Read copies the latest finalized contents back to the CPU as row-major RGBA floats.
func (b *StateBuffer) Read() ([]float32, error) {
	tex, err := b.Texture()
	if err != nil {
		return nil, err
	}
	return b.r.ReadTexture(tex)
}

// Release frees the underlying target.
func (b *StateBuffer) Release() error {
	b.latest = nil
	return b.target.Release()
}

// Run draws kernel into the bound buffer.
//
// Parameters:
//   - k: the kernel to run
//   - inputs: textures bound to the kernel's inputs in order
//   - uniforms: the kernel's uniform block
//
// Returns:
//   - error: ErrKernelFailed wrapping the draw error
func (bb *BoundBuffer) Run(k Kernel, inputs []renderer.Texture, uniforms []byte) error {
	if bb.done {
		return fmt.Errorf("%s: %w", bb.buf.Label(), renderer.ErrPassEnded)
	}
	if k == nil {
		return fmt.Errorf("%w: %s: no kernel", ErrKernelFailed, bb.buf.Label())
	}
	if err := k.Run(bb.pass, inputs, uniforms); err != nil {
		return fmt.Errorf("%w: %s into %s: %w", ErrKernelFailed, k.Name(), bb.buf.Label(), err)
	}
	return nil
}

// SetViewport restricts later runs to a rectangle of the buffer.
func (bb *BoundBuffer) SetViewport(x, y, width, height int) error {
	return bb.pass.SetViewport(x, y, width, height)
}

// Unbind ends the pass. The returned texture becomes the buffer's latest contents.
//
// Returns:
//   - renderer.Texture: the finalized contents
//   - error: an error if the pass could not be ended
func (bb *BoundBuffer) Unbind() (renderer.Texture, error) {
	if bb.done {
		return nil, fmt.Errorf("%s: %w", bb.buf.Label(), renderer.ErrPassEnded)
	}
	bb.done = true
	bb.buf.bound = nil
	tex, err := bb.pass.End()
	if err != nil {
		return nil, fmt.Errorf("unbind %s: %w", bb.buf.Label(), err)
	}
	bb.buf.latest = tex
	return tex, nil
}

package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// bindGroup and buffers are owned by the provider and freed by Release.
	bindGroup *wgpu.BindGroup
	buffers   map[int]*wgpu.Buffer

	// textureViews and samplers are borrowed from render targets and the backend; Release leaves them alone.
	textureViews map[int]*wgpu.TextureView
	samplers     map[int]*wgpu.Sampler
}

// BindGroupProvider collects the GPU resources bound for a single draw: the uniform buffers it owns
// and the texture views and samplers it borrows. The wgpu backend builds one per draw call and
// releases it when the pass that recorded the draw ends.
type BindGroupProvider interface {
	// Release frees the bind group and every owned buffer. Borrowed views and samplers are untouched.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the created bind group, or nil before SetBindGroup.
	BindGroup() *wgpu.BindGroup

	// Buffer returns the owned buffer at the given binding, or nil.
	Buffer(binding int) *wgpu.Buffer

	// TextureView returns the borrowed view at the given binding, or nil.
	TextureView(binding int) *wgpu.TextureView

	// Sampler returns the borrowed sampler at the given binding, or nil.
	Sampler(binding int) *wgpu.Sampler

	SetBindGroup(bg *wgpu.BindGroup)
	SetBuffer(binding int, buf *wgpu.Buffer)
	SetTextureView(binding int, tv *wgpu.TextureView)
	SetSampler(binding int, s *wgpu.Sampler)

	// Entries builds bind group entries for the given layout, in layout order.
	//
	// Parameters:
	//   - layout: the layout descriptor the bind group is created against
	//
	// Returns:
	//   - []wgpu.BindGroupEntry: the entries, or nil with false if a binding has no resource
	Entries(layout wgpu.BindGroupLayoutDescriptor) ([]wgpu.BindGroupEntry, bool)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates an empty provider.
//
// Parameters:
//   - label: the debug label
//   - options: functional options applied in order
//
// Returns:
//   - BindGroupProvider: the provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		buffers:      make(map[int]*wgpu.Buffer),
		textureViews: make(map[int]*wgpu.TextureView),
		samplers:     make(map[int]*wgpu.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) Sampler(binding int) *wgpu.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	p.bindGroup = bg
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	p.buffers[binding] = buf
}

func (p *bindGroupProvider) SetTextureView(binding int, tv *wgpu.TextureView) {
	p.textureViews[binding] = tv
}

func (p *bindGroupProvider) SetSampler(binding int, s *wgpu.Sampler) {
	p.samplers[binding] = s
}

func (p *bindGroupProvider) Entries(layout wgpu.BindGroupLayoutDescriptor) ([]wgpu.BindGroupEntry, bool) {
	entries := make([]wgpu.BindGroupEntry, 0, len(layout.Entries))
	for _, e := range layout.Entries {
		binding := int(e.Binding)
		switch {
		case e.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
			tv := p.textureViews[binding]
			if tv == nil {
				return nil, false
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, TextureView: tv})
		case e.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			s := p.samplers[binding]
			if s == nil {
				return nil, false
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, Sampler: s})
		default:
			buf := p.buffers[binding]
			if buf == nil {
				return nil, false
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, Buffer: buf, Size: wgpu.WholeSize})
		}
	}
	return entries, true
}

func (p *bindGroupProvider) Release() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	for binding, buf := range p.buffers {
		if buf != nil {
			buf.Release()
		}
		delete(p.buffers, binding)
	}
	clear(p.textureViews)
	clear(p.samplers)
}

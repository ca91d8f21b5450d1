package bind_group_provider

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestEntriesReportsMissingResources(t *testing.T) {
	layout := wgpu.BindGroupLayoutDescriptor{
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Texture: wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeUnfilterableFloat}},
			{Binding: 1, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}},
		},
	}
	p := NewBindGroupProvider("draw")
	assert.Equal(t, "draw", p.Label())
	entries, ok := p.Entries(layout)
	assert.False(t, ok)
	assert.Nil(t, entries)

	empty, ok := p.Entries(wgpu.BindGroupLayoutDescriptor{})
	assert.True(t, ok)
	assert.Empty(t, empty)
}

func TestReleaseEmptyProvider(t *testing.T) {
	p := NewBindGroupProvider("draw")
	assert.NotPanics(t, p.Release)
	assert.Nil(t, p.BindGroup())
	assert.Nil(t, p.Buffer(0))
	assert.Nil(t, p.TextureView(0))
	assert.Nil(t, p.Sampler(0))
}

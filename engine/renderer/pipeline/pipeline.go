package pipeline

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// TargetFormat identifies the kind of color target a pipeline renders into. A pipeline is compiled
// against exactly one format and may only be drawn in passes bound to a target of that format.
type TargetFormat int

const (
	// TargetFormatState is an offscreen RGBA32Float target holding one particle per texel.
	// No depth attachment, no multisampling, no blending.
	TargetFormatState TargetFormat = iota

	// TargetFormatColor is an offscreen RGBA8Unorm target, such as the environment capture.
	TargetFormatColor

	// TargetFormatSurface is the window surface with MSAA and a Depth24Plus attachment.
	TargetFormatSurface
)

func (f TargetFormat) String() string {
	switch f {
	case TargetFormatState:
		return "state"
	case TargetFormatColor:
		return "color"
	case TargetFormatSurface:
		return "surface"
	default:
		return "unknown"
	}
}

// pipeline is the implementation of the Pipeline interface.
// It holds the backend pipeline objects and the configuration used to create them.
type pipeline struct {
	mu *sync.Mutex

	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey  string
	targetFormat TargetFormat

	vertexShader, fragmentShader shader.Shader

	// cpuKernel evaluates the fragment stage per texel on the software backend
	cpuKernel CPUKernel

	renderPipeline    *wgpu.RenderPipeline
	bindGroupLayouts  []*wgpu.BindGroupLayout
	layoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor

	depthTestEnabled  bool
	depthWriteEnabled bool
	blendEnabled      bool
	cullMode          wgpu.CullMode
	topology          wgpu.PrimitiveTopology
	frontFace         wgpu.FrontFace
	writeMask         wgpu.ColorWriteMask
	blendState        *wgpu.BlendState
}

// Pipeline defines the interface for a render pipeline: a vertex and fragment shader pair plus the
// fixed-function state and target format it was compiled for. Pipelines with a CPUKernel can also be
// evaluated by the software backend.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// TargetFormat returns the color target format this pipeline renders into.
	TargetFormat() TargetFormat

	// Shader retrieves the shader for the given stage, or nil if not set.
	//
	// Parameters:
	//   - shaderType: the stage to retrieve
	//
	// Returns:
	//   - shader.Shader: the shader for that stage, or nil
	Shader(shaderType shader.ShaderType) shader.Shader

	// CPUKernel returns the per-texel CPU evaluation of the fragment stage, or nil.
	CPUKernel() CPUKernel

	// Pipeline returns the compiled *wgpu.RenderPipeline, or nil before registration with the wgpu backend.
	Pipeline() *wgpu.RenderPipeline

	// BindGroupLayouts returns the created layouts indexed by group.
	BindGroupLayouts() []*wgpu.BindGroupLayout

	// LayoutDescriptors returns the merged vertex and fragment layout descriptors the layouts were created from.
	LayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	DepthTestEnabled() bool
	DepthWriteEnabled() bool
	BlendEnabled() bool
	CullMode() wgpu.CullMode
	Topology() wgpu.PrimitiveTopology
	FrontFace() wgpu.FrontFace
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state used when BlendEnabled is true.
	BlendState() *wgpu.BlendState

	// SetRenderPipeline stores the compiled pipeline and the layouts it was created with.
	//
	// Parameters:
	//   - rp: the compiled render pipeline
	//   - layouts: the bind group layouts indexed by group
	//   - descriptors: the descriptors the layouts were built from
	SetRenderPipeline(rp *wgpu.RenderPipeline, layouts []*wgpu.BindGroupLayout, descriptors map[int]wgpu.BindGroupLayoutDescriptor)

	// Release frees the compiled GPU objects. The pipeline may be registered again afterwards.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline with the specified configuration
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		mu:                &sync.Mutex{},
		pipelineKey:       pipelineKey,
		targetFormat:      TargetFormatState,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		cullMode:          wgpu.CullModeNone,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		writeMask:         wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) TargetFormat() TargetFormat {
	return p.targetFormat
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	default:
		return nil
	}
}

func (p *pipeline) CPUKernel() CPUKernel {
	return p.cpuKernel
}

func (p *pipeline) Pipeline() *wgpu.RenderPipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderPipeline
}

func (p *pipeline) BindGroupLayouts() []*wgpu.BindGroupLayout {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindGroupLayouts
}

func (p *pipeline) LayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.layoutDescriptors
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline, layouts []*wgpu.BindGroupLayout, descriptors map[int]wgpu.BindGroupLayoutDescriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renderPipeline = rp
	p.bindGroupLayouts = layouts
	p.layoutDescriptors = descriptors
}

func (p *pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	for _, l := range p.bindGroupLayouts {
		if l != nil {
			l.Release()
		}
	}
	p.bindGroupLayouts = nil
	p.layoutDescriptors = nil
}

package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue
	logger *zap.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat        *wgpu.TextureFormat
	msaaTexture          *wgpu.Texture
	msaaTextureView      *wgpu.TextureView
	depthTexture         *wgpu.Texture
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	sampleCount MSAASampleCount  // MSAA sample count for the surface pass

	// sampler is shared by every draw that declares a sampler binding.
	sampler *wgpu.Sampler

	// Frame state between BeginFramePass and Present
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

// wgpuTarget is the handle of an offscreen target.
type wgpuTarget struct {
	label   string
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

// wgpuCube is the handle of a static cube texture.
type wgpuCube struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount, logger *zap.Logger) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		sampleCount: sampleCount,
		logger:      logger,
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	// State targets are read with textureLoad; the sampler only serves cube and color lookups.
	w.sampler, err = d.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Linear Clamp Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler: %w", err)
	}

	return w, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return errors.New("surface reports no formats")
	}
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	b.releaseAttachments()

	count := uint32(b.sampleCount)
	msaaEnabled := count > 1

	if msaaEnabled {
		// Create the MSAA texture that the render pass draws into; the resolved
		// result is written to the swapchain view as the ResolveTarget.
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        *b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("create msaa texture: %w", err)
		}
		b.msaaTexture = msaaTexture
		b.msaaTextureView, err = msaaTexture.CreateView(nil)
		if err != nil {
			return fmt.Errorf("create msaa view: %w", err)
		}
	}

	// Depth texture sample count must match the color attachment.
	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create depth texture: %w", err)
	}
	b.depthTexture = depthTexture
	b.depthTextureView, err = depthTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create depth view: %w", err)
	}

	// When MSAA is enabled, View is the MSAA texture and ResolveTarget is
	// set per-frame to the swapchain view. When disabled, View is set
	// per-frame to the swapchain view and ResolveTarget remains nil.
	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard // Don't store MSAA data, just resolve
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    b.msaaTextureView, // nil when MSAA is off; set in BeginFramePass
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: storeOp,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView, // Persistent until resize
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
	return nil
}

func (b *wgpuRendererBackendImpl) releaseAttachments() {
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.msaaTexture != nil {
		b.msaaTexture.Release()
		b.msaaTexture = nil
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
		b.depthTextureView = nil
	}
	if b.depthTexture != nil {
		b.depthTexture.Release()
		b.depthTexture = nil
	}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

// colorFormat maps a pipeline target format onto the texture format of its color attachment.
func (b *wgpuRendererBackendImpl) colorFormat(f pipeline.TargetFormat) wgpu.TextureFormat {
	switch f {
	case pipeline.TargetFormatState:
		return wgpu.TextureFormatRGBA32Float
	case pipeline.TargetFormatColor:
		return wgpu.TextureFormatRGBA8Unorm
	default:
		return *b.surfaceFormat
	}
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	if p.Shader(shader.ShaderTypeVertex) == nil || p.Shader(shader.ShaderTypeFragment) == nil {
		return errors.New("both vertex and fragment shaders must be set to create a render pipeline")
	}

	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)

	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.device.CreateShaderModule(vertexShader.Module())
	if err != nil {
		return fmt.Errorf("vertex module %q: %w", vertexShader.Key(), err)
	}
	defer vs.Release()
	fs, err := b.device.CreateShaderModule(fragmentShader.Module())
	if err != nil {
		return fmt.Errorf("fragment module %q: %w", fragmentShader.Key(), err)
	}
	defer fs.Release()

	merged := mergeBindGroupLayouts(vertexShader.BindGroupLayoutDescriptors(), fragmentShader.BindGroupLayoutDescriptors())
	maxGroup := -1
	for g := range merged {
		if g > maxGroup {
			maxGroup = g
		}
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		// Unused group indices still need an (empty) layout in the pipeline layout.
		desc := merged[g]
		layout, layoutErr := b.device.CreateBindGroupLayout(&desc)
		if layoutErr != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, layoutErr)
		}
		bindGroupLayouts[g] = layout
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	colorTarget := wgpu.ColorTargetState{
		Format:    b.colorFormat(p.TargetFormat()),
		WriteMask: p.WriteMask(),
	}
	// Float32 targets are not blendable.
	if p.BlendEnabled() && p.TargetFormat() != pipeline.TargetFormatState {
		colorTarget.Blend = p.BlendState()
	}

	sampleCount := uint32(1)
	var depthStencil *wgpu.DepthStencilState
	if p.TargetFormat() == pipeline.TargetFormatSurface {
		sampleCount = uint32(b.sampleCount)
		depthCompare := wgpu.CompareFunctionLess
		if !p.DepthTestEnabled() {
			depthCompare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{colorTarget},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: sampleCount,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		for _, l := range bindGroupLayouts {
			l.Release()
		}
		return err
	}

	p.SetRenderPipeline(created, bindGroupLayouts, merged)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateTarget(label string, width, height int, format pipeline.TargetFormat) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        b.colorFormat(format),
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuTarget{label: label, texture: tex, view: view}, nil
}

func (b *wgpuRendererBackendImpl) CreateCubeTexture(label string, faces [6]common.TextureStagingData) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := wgpu.Extent3D{Width: faces[0].Width, Height: faces[0].Height, DepthOrArrayLayers: 6}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          size,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}

	for i, f := range faces {
		b.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{Z: uint32(i)},
				Aspect:   wgpu.TextureAspectAll,
			},
			f.Pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  f.Width * 4,
				RowsPerImage: f.Height,
			},
			&wgpu.Extent3D{
				Width:              f.Width,
				Height:             f.Height,
				DepthOrArrayLayers: 1,
			},
		)
	}

	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           label + " Cube View",
		Format:          wgpu.TextureFormatRGBA8Unorm,
		Dimension:       wgpu.TextureViewDimensionCube,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 6,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuCube{texture: tex, view: view}, nil
}

func (b *wgpuRendererBackendImpl) BeginTargetPass(handle any, clear *common.Color) (backendPass, error) {
	t, ok := handle.(*wgpuTarget)
	if !ok {
		return nil, fmt.Errorf("wgpu backend: unknown target handle %T", handle)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: t.label})
	if err != nil {
		return nil, err
	}

	attachment := wgpu.RenderPassColorAttachment{
		View:    t.view,
		LoadOp:  wgpu.LoadOpLoad,
		StoreOp: wgpu.StoreOpStore,
	}
	if clear != nil {
		attachment.LoadOp = wgpu.LoadOpClear
		attachment.ClearValue = wgpu.Color{R: clear.R, G: clear.G, B: clear.B, A: clear.A}
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:            t.label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{attachment},
	})
	return &wgpuPass{b: b, encoder: encoder, pass: pass, label: t.label}, nil
}

func (b *wgpuRendererBackendImpl) BeginFramePass(clear *common.Color) (backendPass, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If a previous frame's surface texture is still held, do not acquire another one;
	// wgpu-native rejects a second acquire before Present.
	if b.frameSurface != nil {
		return nil, ErrFrameNotPresented
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, err
	}

	// When MSAA is enabled, the MSAA texture is the color attachment View and
	// the swapchain view is the ResolveTarget. When MSAA is off, the swapchain
	// view is the color attachment View directly and ResolveTarget is nil.
	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = view
	}
	b.renderPassDescriptor.ColorAttachments[0].LoadOp = wgpu.LoadOpClear
	if clear != nil {
		b.renderPassDescriptor.ColorAttachments[0].ClearValue = wgpu.Color{R: clear.R, G: clear.G, B: clear.B, A: clear.A}
	}
	pass := encoder.BeginRenderPass(b.renderPassDescriptor)

	b.frameSurface = surfaceTexture
	b.frameView = view

	return &wgpuPass{b: b, encoder: encoder, pass: pass, label: "frame"}, nil
}

func (b *wgpuRendererBackendImpl) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If no frame surface is held, nothing to present.
	if b.frameSurface == nil {
		return nil
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
	return nil
}

// ReadTarget is not implemented for the wgpu backend; buffer mapping is left to a future readback path.
func (b *wgpuRendererBackendImpl) ReadTarget(any) ([]float32, error) {
	return nil, ErrReadbackUnsupported
}

func (b *wgpuRendererBackendImpl) ReleaseHandle(handle any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch h := handle.(type) {
	case *wgpuTarget:
		h.view.Release()
		h.texture.Release()
	case *wgpuCube:
		h.view.Release()
		h.texture.Release()
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseAttachments()
	if b.sampler != nil {
		b.sampler.Release()
	}
	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
}

// wgpuPass records draws into one command encoder, submitted on End. Per-draw bind group
// providers live until the submission.
type wgpuPass struct {
	b         *wgpuRendererBackendImpl
	encoder   *wgpu.CommandEncoder
	pass      *wgpu.RenderPassEncoder
	label     string
	providers []bind_group_provider.BindGroupProvider
}

func (p *wgpuPass) SetViewport(x, y, width, height int) {
	p.pass.SetViewport(float32(x), float32(y), float32(width), float32(height), 0, 1)
}

func (p *wgpuPass) Draw(pl pipeline.Pipeline, inputs []any, uniforms []byte, vertexCount, instanceCount uint32) error {
	rp := pl.Pipeline()
	if rp == nil {
		return fmt.Errorf("pipeline %q is not compiled", pl.PipelineKey())
	}
	layouts := pl.BindGroupLayouts()
	descriptors := pl.LayoutDescriptors()

	p.b.mu.Lock()
	defer p.b.mu.Unlock()

	p.pass.SetPipeline(rp)

	groups := make([]int, 0, len(descriptors))
	for g := range descriptors {
		groups = append(groups, g)
	}
	sort.Ints(groups)

	next := 0
	for _, g := range groups {
		desc := descriptors[g]
		entries := append([]wgpu.BindGroupLayoutEntry(nil), desc.Entries...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Binding < entries[j].Binding })

		provider := bind_group_provider.NewBindGroupProvider(fmt.Sprintf("%s/%s/%d", p.label, pl.PipelineKey(), g))
		p.providers = append(p.providers, provider)

		for _, e := range entries {
			binding := int(e.Binding)
			switch {
			case shader.IsUniformEntry(e):
				buf, err := p.b.uniformBuffer(provider.Label(), uniforms, e.Buffer.MinBindingSize)
				if err != nil {
					return err
				}
				provider.SetBuffer(binding, buf)
			case shader.IsTextureEntry(e):
				if next >= len(inputs) {
					return fmt.Errorf("pipeline %q binds more textures than the %d inputs given", pl.PipelineKey(), len(inputs))
				}
				switch h := inputs[next].(type) {
				case *wgpuTarget:
					provider.SetTextureView(binding, h.view)
				case *wgpuCube:
					provider.SetTextureView(binding, h.view)
				default:
					return fmt.Errorf("input %d: unknown handle %T", next, h)
				}
				next++
			case shader.IsSamplerEntry(e):
				provider.SetSampler(binding, p.b.sampler)
			}
		}

		bgEntries, ok := provider.Entries(wgpu.BindGroupLayoutDescriptor{Entries: entries})
		if !ok {
			return fmt.Errorf("pipeline %q group %d has unbound resources", pl.PipelineKey(), g)
		}
		bindGroup, err := p.b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   provider.Label(),
			Layout:  layouts[g],
			Entries: bgEntries,
		})
		if err != nil {
			return err
		}
		provider.SetBindGroup(bindGroup)
		p.pass.SetBindGroup(uint32(g), bindGroup, nil)
	}

	p.pass.Draw(vertexCount, instanceCount, 0, 0)
	return nil
}

// uniformBuffer creates a uniform buffer holding data, padded to the binding's minimum size and 16 bytes.
func (b *wgpuRendererBackendImpl) uniformBuffer(label string, data []byte, minSize uint64) (*wgpu.Buffer, error) {
	size := max(uint64(len(data)), minSize, 16)
	size = (size + 15) &^ 15
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Uniforms",
		Size:  size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	padded := make([]byte, size)
	copy(padded, data)
	b.queue.WriteBuffer(buf, 0, padded)
	return buf, nil
}

func (p *wgpuPass) End() error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()

	defer func() {
		for _, provider := range p.providers {
			provider.Release()
		}
		p.providers = nil
	}()

	p.pass.End()
	p.pass.Release()

	commandBuffer, err := p.encoder.Finish(nil)
	if err != nil {
		p.encoder.Release()
		return err
	}
	p.b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	p.encoder.Release()
	return nil
}

// mergeBindGroupLayouts combines the bind group layout descriptors from a vertex shader and a
// fragment shader into a single set of descriptors. When both shaders declare the same group index,
// their entries are merged by binding number; if both declare the same binding, the visibility flags
// are ORed together so the entry is visible to both stages.
//
// Parameters:
//   - vertexLayouts: bind group layout descriptors from the vertex shader
//   - fragmentLayouts: bind group layout descriptors from the fragment shader
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(
	vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor,
) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)

	// collect all group indices from both maps
	groupIndices := make(map[int]bool)
	for g := range vertexLayouts {
		groupIndices[g] = true
	}
	for g := range fragmentLayouts {
		groupIndices[g] = true
	}

	for g := range groupIndices {
		vDesc, hasV := vertexLayouts[g]
		fDesc, hasF := fragmentLayouts[g]

		switch {
		case hasV && !hasF:
			merged[g] = vDesc
		case hasF && !hasV:
			merged[g] = fDesc
		default:
			// group in both: merge entries by binding number
			entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
			for _, e := range vDesc.Entries {
				entryMap[e.Binding] = e
			}
			for _, e := range fDesc.Entries {
				if existing, ok := entryMap[e.Binding]; ok {
					existing.Visibility |= e.Visibility
					entryMap[e.Binding] = existing
				} else {
					entryMap[e.Binding] = e
				}
			}

			entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
			for _, e := range entryMap {
				entries = append(entries, e)
			}
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Binding < entries[j].Binding
			})

			merged[g] = wgpu.BindGroupLayoutDescriptor{
				Label:   vDesc.Label,
				Entries: entries,
			}
		}
	}

	return merged
}

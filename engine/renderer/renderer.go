package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

var (
	// ErrPassActive is returned when a pass is begun while another pass is still open.
	ErrPassActive = errors.New("renderer: a render pass is already active")

	// ErrPassEnded is returned when a pass is used after End.
	ErrPassEnded = errors.New("renderer: render pass already ended")

	// ErrTargetBound is returned when a target is bound, read or released while a pass writes to it.
	ErrTargetBound = errors.New("renderer: target is bound to an active pass")

	// ErrFeedbackLoop is returned when a draw samples the target its own pass writes to.
	ErrFeedbackLoop = errors.New("renderer: texture input is the bound target")

	// ErrStaleTexture is returned when a texture is used after its target has been written again.
	ErrStaleTexture = errors.New("renderer: texture is older than its target's latest contents")

	// ErrPipelineNotFound is returned when a draw names a pipeline that was never registered.
	ErrPipelineNotFound = errors.New("renderer: pipeline not found")

	// ErrFormatMismatch is returned when a pipeline is drawn into a target of a different format.
	ErrFormatMismatch = errors.New("renderer: pipeline target format does not match the bound target")

	// ErrReadbackUnsupported is returned by backends that cannot read targets back to the CPU.
	ErrReadbackUnsupported = errors.New("renderer: target readback not supported by this backend")

	// ErrReleased is returned when a released target is used.
	ErrReleased = errors.New("renderer: target released")

	// ErrInvalidTexture is returned for textures that were not created by this renderer.
	ErrInvalidTexture = errors.New("renderer: invalid texture")

	// ErrTargetTooLarge is returned when a target side exceeds common.MaxTextureSide.
	ErrTargetTooLarge = errors.New("renderer: target exceeds the maximum texture side")

	// ErrFrameNotPresented is returned when a frame pass is begun before the previous frame was presented.
	ErrFrameNotPresented = errors.New("renderer: previous frame not yet presented")
)

// Surface is the presentation surface a wgpu Renderer draws its frames into. window.Window satisfies it.
type Surface interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// Target is an offscreen render target. Its contents can only be sampled through the Texture
// returned by ending a pass bound to it.
type Target interface {
	Label() string
	Width() int
	Height() int
	Format() pipeline.TargetFormat

	// Generation returns how many passes have been ended on this target.
	Generation() uint64

	// Bound reports whether a pass is currently writing to this target.
	Bound() bool

	// Release frees the backend target. A bound target cannot be released.
	Release() error
}

// Texture is a read handle onto finalized contents. A Texture of an offscreen target stays valid
// until the next pass on that target ends.
type Texture interface {
	// Source returns the target this texture was produced from, or nil for static textures.
	Source() Target

	// Generation returns the target generation this texture was produced at.
	Generation() uint64

	Width() int
	Height() int

	handle() any
}

// DrawCommand is a single draw within a RenderPass. Inputs are bound to the pipeline's texture
// bindings in order, the uniform block to its uniform binding.
type DrawCommand struct {
	Pipeline      string
	Inputs        []Texture
	Uniforms      []byte
	VertexCount   uint32
	InstanceCount uint32
}

// RenderPass is an open pass on a target or on the frame surface. End is the only way to obtain
// a readable Texture from it.
type RenderPass interface {
	// Target returns the bound target, or nil for the frame pass.
	Target() Target

	// SetViewport restricts subsequent draws to the given rectangle, in target texels from the top-left.
	SetViewport(x, y, width, height int) error

	// Draw validates and encodes cmd.
	Draw(cmd DrawCommand) error

	// End finishes the pass and unbinds its target. The returned Texture is nil for the frame pass.
	End() (Texture, error)
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend
	logger      *zap.Logger

	width, height int
	// pendingWidth and pendingHeight hold a resize requested while a pass was open.
	pendingWidth, pendingHeight int
	active                      *renderPass
	targets       map[*target]struct{}

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
	pendingPipelines     []pipeline.Pipeline
	surfaceWidth         int
	surfaceHeight        int
	workers              int
}

// Renderer defines the interface for the rendering system.
//
// The Renderer owns the pipeline cache and every offscreen target, and enforces the pass ordering
// rules: one open pass at a time, no sampling of the bound target, no sampling of superseded contents.
// The backend implementation is swappable so the same passes run on the GPU or on the CPU.
type Renderer interface {
	// Pipeline retrieves the cached Pipeline associated with the given key, or nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves a copy of the pipeline cache.
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines compiles one or more pipelines via the backend, then caches them by PipelineKey.
	// Pipelines whose keys are already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// ReloadPipeline compiles p and replaces the cached pipeline with the same key. On failure the
	// previously cached pipeline stays in use.
	//
	// Parameters:
	//   - p: the replacement pipeline
	//
	// Returns:
	//   - error: an error if compilation fails
	ReloadPipeline(p pipeline.Pipeline) error

	// CreateTarget allocates an offscreen target.
	//
	// Parameters:
	//   - label: a debug label
	//   - width, height: the target size in texels
	//   - format: the target format
	//
	// Returns:
	//   - Target: the new target
	//   - error: an error if allocation fails
	CreateTarget(label string, width, height int, format pipeline.TargetFormat) (Target, error)

	// CreateCubeTexture uploads six faces in +X, -X, +Y, -Y, +Z, -Z order as a static cube texture.
	CreateCubeTexture(label string, faces [6]common.TextureStagingData) (Texture, error)

	// BeginPass binds target for writing. A non-nil clear color clears it first.
	//
	// Returns:
	//   - RenderPass: the open pass
	//   - error: ErrPassActive, ErrTargetBound or ErrReleased
	BeginPass(t Target, clear *common.Color) (RenderPass, error)

	// BeginFrame opens a pass on the next surface image.
	BeginFrame(clear *common.Color) (RenderPass, error)

	// Present displays the last ended frame pass.
	Present() error

	// ReadTexture reads tex back as row-major RGBA floats.
	ReadTexture(tex Texture) ([]float32, error)

	// Resize configures the underlying backend to handle a new surface size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// Size returns the current surface size.
	Size() (width, height int)

	// SetPresentMode sets the surface present mode. A call to Resize is required for it to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// BackendType returns the backend this renderer was created with.
	BackendType() RendererBackendType

	// Release frees every pipeline, target and backend resource.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the specified backend. The surface is required for the
// wgpu backend and ignored by the software backend, which renders its frame at WithSurfaceSize.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - surface: the presentation surface, usually a window.Window
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
//   - error: an error if the backend could not be created or the initial pipelines failed to compile
func NewRenderer(backendType RendererBackendType, surface Surface, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		targets:       make(map[*target]struct{}),
		backendType:   backendType,
		logger:        zap.NewNop(),
		surfaceWidth:  1,
		surfaceHeight: 1,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	msaa := MSAA4x // default
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	switch backendType {
	case BackendTypeSoftware:
		r.backend = newSoftwareRendererBackend(r.workers)
	case BackendTypeWGPU:
		if surface == nil {
			return nil, fmt.Errorf("renderer: %s backend requires a surface", backendType)
		}
		b, err := newWGPURendererBackend(surface.SurfaceDescriptor(), r.forceFallbackAdapter, msaa, r.logger)
		if err != nil {
			return nil, err
		}
		r.backend = b
		r.surfaceWidth, r.surfaceHeight = surface.Width(), surface.Height()
	default:
		return nil, fmt.Errorf("renderer: unknown backend type %d", backendType)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	r.Resize(r.surfaceWidth, r.surfaceHeight)

	if len(r.pendingPipelines) > 0 {
		if err := r.RegisterPipelines(r.pendingPipelines...); err != nil {
			r.Release()
			return nil, err
		}
		r.pendingPipelines = nil
	}

	r.logger.Debug("renderer created",
		zap.Stringer("backend", backendType),
		zap.Int("width", r.width),
		zap.Int("height", r.height),
	)
	return r, nil
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		r.pendingWidth, r.pendingHeight = width, height
		return
	}
	r.configureSurface(width, height)
}

// configureSurface resizes the backend surface. The caller holds r.mu and no pass is open.
func (r *renderer) configureSurface(width, height int) {
	r.pendingWidth, r.pendingHeight = 0, 0
	if err := r.backend.ConfigureSurface(width, height); err != nil {
		r.logger.Warn("configure surface failed", zap.Error(err))
		return
	}
	r.width, r.height = width, height
}

func (r *renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]pipeline.Pipeline, len(r.pipelineCache))
	for k, v := range r.pipelineCache {
		out[k] = v
	}
	return out
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		if err := r.backend.RegisterRenderPipeline(p); err != nil {
			return fmt.Errorf("register pipeline %q: %w", key, err)
		}
		r.pipelineCache[key] = p
	}
	return nil
}

func (r *renderer) ReloadPipeline(p pipeline.Pipeline) error {
	if err := r.backend.RegisterRenderPipeline(p); err != nil {
		return fmt.Errorf("reload pipeline %q: %w", p.PipelineKey(), err)
	}
	r.mu.Lock()
	old := r.pipelineCache[p.PipelineKey()]
	r.pipelineCache[p.PipelineKey()] = p
	r.mu.Unlock()
	if old != nil && old != p {
		old.Release()
	}
	return nil
}

func (r *renderer) CreateTarget(label string, width, height int, format pipeline.TargetFormat) (Target, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("create target %q: invalid size %dx%d", label, width, height)
	}
	if width > common.MaxTextureSide || height > common.MaxTextureSide {
		return nil, fmt.Errorf("create target %q: %dx%d: %w", label, width, height, ErrTargetTooLarge)
	}
	if format == pipeline.TargetFormatSurface {
		return nil, fmt.Errorf("create target %q: %w", label, ErrFormatMismatch)
	}
	h, err := r.backend.CreateTarget(label, width, height, format)
	if err != nil {
		return nil, fmt.Errorf("create target %q: %w", label, err)
	}
	t := &target{r: r, label: label, width: width, height: height, format: format, handle: h}
	r.mu.Lock()
	r.targets[t] = struct{}{}
	r.mu.Unlock()
	return t, nil
}

func (r *renderer) CreateCubeTexture(label string, faces [6]common.TextureStagingData) (Texture, error) {
	for i, f := range faces {
		if f.Width == 0 || f.Height == 0 || f.Width != faces[0].Width || f.Height != faces[0].Height {
			return nil, fmt.Errorf("create cube texture %q: face %d has size %dx%d", label, i, f.Width, f.Height)
		}
	}
	h, err := r.backend.CreateCubeTexture(label, faces)
	if err != nil {
		return nil, fmt.Errorf("create cube texture %q: %w", label, err)
	}
	return &texture{h: h, width: int(faces[0].Width), height: int(faces[0].Height)}, nil
}

func (r *renderer) BeginPass(t Target, clear *common.Color) (RenderPass, error) {
	tgt, ok := t.(*target)
	if !ok || tgt.r != r {
		return nil, fmt.Errorf("begin pass: %w", ErrInvalidTexture)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nil, ErrPassActive
	}
	if tgt.released {
		return nil, fmt.Errorf("begin pass %q: %w", tgt.label, ErrReleased)
	}
	if tgt.bound {
		return nil, fmt.Errorf("begin pass %q: %w", tgt.label, ErrTargetBound)
	}

	bp, err := r.backend.BeginTargetPass(tgt.handle, clear)
	if err != nil {
		return nil, fmt.Errorf("begin pass %q: %w", tgt.label, err)
	}
	tgt.bound = true
	p := &renderPass{r: r, target: tgt, bp: bp, format: tgt.format, width: tgt.width, height: tgt.height}
	r.active = p
	return p, nil
}

func (r *renderer) BeginFrame(clear *common.Color) (RenderPass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nil, ErrPassActive
	}
	if r.pendingWidth > 0 {
		r.configureSurface(r.pendingWidth, r.pendingHeight)
	}
	bp, err := r.backend.BeginFramePass(clear)
	if err != nil {
		return nil, fmt.Errorf("begin frame: %w", err)
	}
	p := &renderPass{r: r, bp: bp, format: pipeline.TargetFormatSurface, width: r.width, height: r.height}
	r.active = p
	return p, nil
}

func (r *renderer) Present() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return ErrPassActive
	}
	return r.backend.Present()
}

func (r *renderer) ReadTexture(tex Texture) ([]float32, error) {
	if tex == nil {
		return nil, ErrInvalidTexture
	}
	src, ok := tex.Source().(*target)
	if !ok || src == nil {
		return nil, fmt.Errorf("read texture: %w", ErrReadbackUnsupported)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := src.checkReadable(tex); err != nil {
		return nil, err
	}
	return r.backend.ReadTarget(src.handle)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pipelineCache {
		p.Release()
	}
	r.pipelineCache = make(map[string]pipeline.Pipeline)
	for t := range r.targets {
		r.backend.ReleaseHandle(t.handle)
		t.released = true
	}
	r.targets = make(map[*target]struct{})
	r.active = nil
	r.backend.Release()
}

// target is the implementation of the Target interface. Its mutable fields are guarded by the renderer mutex.
type target struct {
	r      *renderer
	label  string
	width  int
	height int
	format pipeline.TargetFormat
	handle any

	generation uint64
	bound      bool
	released   bool
}

var _ Target = &target{}

func (t *target) Label() string                 { return t.label }
func (t *target) Width() int                    { return t.width }
func (t *target) Height() int                   { return t.height }
func (t *target) Format() pipeline.TargetFormat { return t.format }

func (t *target) Generation() uint64 {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	return t.generation
}

func (t *target) Bound() bool {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	return t.bound
}

func (t *target) Release() error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if t.released {
		return nil
	}
	if t.bound {
		return fmt.Errorf("release %q: %w", t.label, ErrTargetBound)
	}
	t.r.backend.ReleaseHandle(t.handle)
	delete(t.r.targets, t)
	t.released = true
	return nil
}

// checkReadable reports whether tex may be sampled right now. Callers hold the renderer mutex.
func (t *target) checkReadable(tex Texture) error {
	switch {
	case t.released:
		return fmt.Errorf("%q: %w", t.label, ErrReleased)
	case t.bound:
		return fmt.Errorf("%q: %w", t.label, ErrTargetBound)
	case tex.Generation() != t.generation:
		return fmt.Errorf("%q generation %d, latest %d: %w", t.label, tex.Generation(), t.generation, ErrStaleTexture)
	}
	return nil
}

// texture is the implementation of the Texture interface.
type texture struct {
	source     *target
	generation uint64
	h          any
	width      int
	height     int
}

var _ Texture = &texture{}

func (t *texture) Source() Target {
	if t.source == nil {
		return nil
	}
	return t.source
}

func (t *texture) Generation() uint64 { return t.generation }
func (t *texture) Width() int         { return t.width }
func (t *texture) Height() int        { return t.height }
func (t *texture) handle() any        { return t.h }

// renderPass is the implementation of the RenderPass interface.
type renderPass struct {
	r      *renderer
	target *target
	bp     backendPass
	format pipeline.TargetFormat
	width  int
	height int
	ended  bool
}

var _ RenderPass = &renderPass{}

func (p *renderPass) Target() Target {
	if p.target == nil {
		return nil
	}
	return p.target
}

func (p *renderPass) SetViewport(x, y, width, height int) error {
	if p.ended {
		return ErrPassEnded
	}
	if width <= 0 || height <= 0 || x < 0 || y < 0 {
		return fmt.Errorf("set viewport: invalid rectangle %d,%d %dx%d", x, y, width, height)
	}
	p.bp.SetViewport(x, y, width, height)
	return nil
}

func (p *renderPass) Draw(cmd DrawCommand) error {
	if p.ended {
		return ErrPassEnded
	}

	p.r.mu.Lock()
	pl, exists := p.r.pipelineCache[cmd.Pipeline]
	if !exists {
		p.r.mu.Unlock()
		return fmt.Errorf("draw %q: %w", cmd.Pipeline, ErrPipelineNotFound)
	}
	if pl.TargetFormat() != p.format {
		p.r.mu.Unlock()
		return fmt.Errorf("draw %q into %s target: %w", cmd.Pipeline, p.format, ErrFormatMismatch)
	}

	handles := make([]any, len(cmd.Inputs))
	for i, in := range cmd.Inputs {
		if in == nil {
			p.r.mu.Unlock()
			return fmt.Errorf("draw %q input %d: %w", cmd.Pipeline, i, ErrInvalidTexture)
		}
		if src, ok := in.Source().(*target); ok && src != nil {
			if src == p.target {
				p.r.mu.Unlock()
				return fmt.Errorf("draw %q input %d %q: %w", cmd.Pipeline, i, src.label, ErrFeedbackLoop)
			}
			if err := src.checkReadable(in); err != nil {
				p.r.mu.Unlock()
				return fmt.Errorf("draw %q input %d: %w", cmd.Pipeline, i, err)
			}
		}
		handles[i] = in.handle()
	}
	p.r.mu.Unlock()

	instances := max(cmd.InstanceCount, 1)
	if err := p.bp.Draw(pl, handles, cmd.Uniforms, cmd.VertexCount, instances); err != nil {
		return fmt.Errorf("draw %q: %w", cmd.Pipeline, err)
	}
	return nil
}

func (p *renderPass) End() (Texture, error) {
	if p.ended {
		return nil, ErrPassEnded
	}
	p.ended = true
	err := p.bp.End()

	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	if p.r.active == p {
		p.r.active = nil
	}
	if p.target == nil {
		return nil, err
	}
	p.target.bound = false
	if err != nil {
		return nil, fmt.Errorf("end pass %q: %w", p.target.label, err)
	}
	p.target.generation++
	return &texture{
		source:     p.target,
		generation: p.target.generation,
		h:          p.target.handle,
		width:      p.target.width,
		height:     p.target.height,
	}, nil
}

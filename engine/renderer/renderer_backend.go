package renderer

import (
	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
)

// RendererBackendType identifies the backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the CPU backend. Pipelines with a CPU kernel are evaluated per texel,
	// others are recorded without producing output. It needs no window or GPU.
	BackendTypeSoftware
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing of the surface.
// Offscreen targets are never multisampled.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8× multisample anti-aliasing. Adapter-dependent.
	MSAA8x MSAASampleCount = 8

	// MSAA16x enables 16× multisample anti-aliasing. Adapter-dependent.
	MSAA16x MSAASampleCount = 16
)

// RendererBackend is implemented once per backend. Handles returned by CreateTarget and
// CreateCubeTexture are opaque to the Renderer and only ever passed back to the same backend.
type RendererBackend interface {
	// ConfigureSurface resizes the presentation surface and its attachments.
	ConfigureSurface(width, height int) error

	// SetPresentMode takes effect on the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// RegisterRenderPipeline compiles p for its target format.
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// CreateTarget allocates an offscreen color target.
	CreateTarget(label string, width, height int, format pipeline.TargetFormat) (any, error)

	// CreateCubeTexture uploads six RGBA8 faces in +X, -X, +Y, -Y, +Z, -Z order.
	CreateCubeTexture(label string, faces [6]common.TextureStagingData) (any, error)

	// BeginTargetPass opens a pass on an offscreen target. A nil clear loads the previous contents.
	BeginTargetPass(handle any, clear *common.Color) (backendPass, error)

	// BeginFramePass acquires the next surface image and opens a pass on it. It fails with
	// ErrFrameNotPresented while the previous image is still held.
	BeginFramePass(clear *common.Color) (backendPass, error)

	// Present displays the last ended frame pass and releases its surface image.
	Present() error

	// ReadTarget returns the target's texels as row-major RGBA floats.
	ReadTarget(handle any) ([]float32, error)

	// ReleaseHandle frees a target or cube texture.
	ReleaseHandle(handle any)

	// Release frees every backend resource.
	Release()
}

// backendPass is the backend half of a RenderPass. Inputs are the handles of the textures bound
// in DrawCommand order.
type backendPass interface {
	SetViewport(x, y, width, height int)
	Draw(p pipeline.Pipeline, inputs []any, uniforms []byte, vertexCount, instanceCount uint32) error
	End() error
}

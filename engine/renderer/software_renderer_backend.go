package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
)

var errUnknownHandle = errors.New("software backend: unknown handle")

// softwareRendererBackend evaluates pipeline CPU kernels per texel. Rows of a draw are spread over
// a worker pool and joined before Draw returns, so a pass is complete once End returns.
type softwareRendererBackend struct {
	mu   *sync.Mutex
	pool worker.DynamicWorkerPool

	frame     *softImage
	frameHeld bool
	presented uint64

	// draws counts every Draw per pipeline key, including pipelines without a CPU kernel.
	draws map[string]int
}

// softImage is a target's storage: row-major RGBA floats.
type softImage struct {
	label  string
	width  int
	height int
	format pipeline.TargetFormat
	pix    []float32
}

// softCube holds the six faces of a static cube texture.
type softCube struct {
	label string
	faces [6]common.TextureStagingData
}

var _ RendererBackend = &softwareRendererBackend{}

func newSoftwareRendererBackend(workers int) *softwareRendererBackend {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &softwareRendererBackend{
		mu:    &sync.Mutex{},
		pool:  worker.NewDynamicWorkerPool(workers, 256, time.Second),
		draws: make(map[string]int),
	}
}

func newSoftImage(label string, width, height int, format pipeline.TargetFormat) *softImage {
	return &softImage{label: label, width: width, height: height, format: format, pix: make([]float32, width*height*4)}
}

func (b *softwareRendererBackend) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = newSoftImage("frame", width, height, pipeline.TargetFormatSurface)
	return nil
}

func (b *softwareRendererBackend) SetPresentMode(PresentMode) {}

// RegisterRenderPipeline accepts any pipeline. Pipelines without a CPU kernel draw nothing.
func (b *softwareRendererBackend) RegisterRenderPipeline(p pipeline.Pipeline) error {
	if p == nil {
		return errors.New("software backend: nil pipeline")
	}
	return nil
}

func (b *softwareRendererBackend) CreateTarget(label string, width, height int, format pipeline.TargetFormat) (any, error) {
	return newSoftImage(label, width, height, format), nil
}

func (b *softwareRendererBackend) CreateCubeTexture(label string, faces [6]common.TextureStagingData) (any, error) {
	return &softCube{label: label, faces: faces}, nil
}

func (b *softwareRendererBackend) BeginTargetPass(handle any, clear *common.Color) (backendPass, error) {
	img, ok := handle.(*softImage)
	if !ok {
		return nil, errUnknownHandle
	}
	return b.beginPass(img, clear), nil
}

func (b *softwareRendererBackend) BeginFramePass(clear *common.Color) (backendPass, error) {
	b.mu.Lock()
	img := b.frame
	if img == nil {
		b.mu.Unlock()
		return nil, errors.New("software backend: surface not configured")
	}
	if b.frameHeld {
		b.mu.Unlock()
		return nil, ErrFrameNotPresented
	}
	b.frameHeld = true
	b.mu.Unlock()
	return b.beginPass(img, clear), nil
}

func (b *softwareRendererBackend) beginPass(img *softImage, clear *common.Color) *softwarePass {
	if clear != nil {
		c := clear.Array()
		if img.format != pipeline.TargetFormatState {
			c = clamp01(c)
		}
		for i := 0; i < len(img.pix); i += 4 {
			copy(img.pix[i:i+4], c[:])
		}
	}
	return &softwarePass{b: b, img: img, viewport: [4]int{0, 0, img.width, img.height}}
}

func (b *softwareRendererBackend) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.frameHeld {
		return nil
	}
	b.frameHeld = false
	b.presented++
	return nil
}

func (b *softwareRendererBackend) ReadTarget(handle any) ([]float32, error) {
	img, ok := handle.(*softImage)
	if !ok {
		return nil, errUnknownHandle
	}
	out := make([]float32, len(img.pix))
	copy(out, img.pix)
	return out, nil
}

func (b *softwareRendererBackend) ReleaseHandle(handle any) {
	if img, ok := handle.(*softImage); ok {
		img.pix = nil
	}
}

func (b *softwareRendererBackend) Release() {
	b.pool.Stop()
}

// drawCount returns how many draws have used the pipeline key.
func (b *softwareRendererBackend) drawCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.draws[key]
}

// softwarePass is the backendPass of the software backend.
type softwarePass struct {
	b        *softwareRendererBackend
	img      *softImage
	viewport [4]int
}

func (p *softwarePass) SetViewport(x, y, width, height int) {
	p.viewport = [4]int{x, y, width, height}
}

func (p *softwarePass) Draw(pl pipeline.Pipeline, inputs []any, uniforms []byte, _, _ uint32) error {
	p.b.mu.Lock()
	p.b.draws[pl.PipelineKey()]++
	p.b.mu.Unlock()

	kernel := pl.CPUKernel()
	if kernel == nil {
		return nil
	}
	for i, in := range inputs {
		switch in.(type) {
		case *softImage, *softCube:
		default:
			return fmt.Errorf("input %d: %w", i, errUnknownHandle)
		}
	}

	x0, y0 := max(p.viewport[0], 0), max(p.viewport[1], 0)
	x1 := min(p.viewport[0]+p.viewport[2], p.img.width)
	y1 := min(p.viewport[1]+p.viewport[3], p.img.height)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	ctx := &softwareKernelContext{inputs: inputs, uniforms: uniforms, img: p.img, viewport: p.viewport}
	blend := pl.BlendEnabled()
	clamp := p.img.format != pipeline.TargetFormatState

	var wg sync.WaitGroup
	for y := y0; y < y1; y++ {
		wg.Add(1)
		row := y
		p.b.pool.SubmitTask(worker.Task{
			ID: row,
			Do: func() (any, error) {
				defer wg.Done()
				for x := x0; x < x1; x++ {
					// Kernels see coordinates relative to the viewport origin.
					c := kernel(ctx, x-p.viewport[0], row-p.viewport[1])
					off := (row*p.img.width + x) * 4
					dst := p.img.pix[off : off+4 : off+4]
					if blend {
						c = blendOver(c, [4]float32(dst))
					}
					if clamp {
						c = clamp01(c)
					}
					copy(dst, c[:])
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return nil
}

func (p *softwarePass) End() error {
	return nil
}

// softwareKernelContext is the KernelContext for one software draw.
type softwareKernelContext struct {
	inputs   []any
	uniforms []byte
	img      *softImage
	viewport [4]int
}

var _ pipeline.KernelContext = &softwareKernelContext{}

func (c *softwareKernelContext) Load(i, x, y int) [4]float32 {
	if i < 0 || i >= len(c.inputs) {
		return [4]float32{}
	}
	switch in := c.inputs[i].(type) {
	case *softImage:
		if len(in.pix) == 0 {
			return [4]float32{}
		}
		x = min(max(x, 0), in.width-1)
		y = min(max(y, 0), in.height-1)
		off := (y*in.width + x) * 4
		return [4]float32(in.pix[off : off+4])
	case *softCube:
		return in.faces[0].Texel(x, y)
	}
	return [4]float32{}
}

func (c *softwareKernelContext) SampleCube(i int, dir [3]float32) [4]float32 {
	if i < 0 || i >= len(c.inputs) {
		return [4]float32{}
	}
	cube, ok := c.inputs[i].(*softCube)
	if !ok {
		return [4]float32{}
	}
	face, u, v := cubeFace(dir)
	f := cube.faces[face]
	x := int((u + 1) / 2 * float32(f.Width))
	y := int((v + 1) / 2 * float32(f.Height))
	return f.Texel(x, y)
}

func (c *softwareKernelContext) InputSize(i int) (int, int) {
	if i < 0 || i >= len(c.inputs) {
		return 0, 0
	}
	switch in := c.inputs[i].(type) {
	case *softImage:
		return in.width, in.height
	case *softCube:
		return int(in.faces[0].Width), int(in.faces[0].Height)
	}
	return 0, 0
}

func (c *softwareKernelContext) Uniform(i int) float32 {
	return pipeline.UniformAt(c.uniforms, i)
}

func (c *softwareKernelContext) Width() int  { return c.img.width }
func (c *softwareKernelContext) Height() int { return c.img.height }

func (c *softwareKernelContext) Viewport() (int, int, int, int) {
	return c.viewport[0], c.viewport[1], c.viewport[2], c.viewport[3]
}

// cubeFace selects the cube face for dir and returns face-local coordinates in [-1, 1].
// Faces are ordered +X, -X, +Y, -Y, +Z, -Z.
func cubeFace(dir [3]float32) (face int, u, v float32) {
	ax, ay, az := abs32(dir[0]), abs32(dir[1]), abs32(dir[2])
	switch {
	case ax == 0 && ay == 0 && az == 0:
		return 0, 0, 0
	case ax >= ay && ax >= az:
		if dir[0] > 0 {
			return 0, -dir[2] / ax, -dir[1] / ax
		}
		return 1, dir[2] / ax, -dir[1] / ax
	case ay >= az:
		if dir[1] > 0 {
			return 2, dir[0] / ay, dir[2] / ay
		}
		return 3, dir[0] / ay, -dir[2] / ay
	default:
		if dir[2] > 0 {
			return 4, dir[0] / az, -dir[1] / az
		}
		return 5, -dir[0] / az, -dir[1] / az
	}
}

// blendOver applies src-alpha over blending, matching the pipeline's default blend state.
func blendOver(src, dst [4]float32) [4]float32 {
	a := src[3]
	return [4]float32{
		src[0]*a + dst[0]*(1-a),
		src[1]*a + dst[1]*(1-a),
		src[2]*a + dst[2]*(1-a),
		a + dst[3]*(1-a),
	}
}

func clamp01(c [4]float32) [4]float32 {
	for i := range c {
		c[i] = min(max(c[i], 0), 1)
	}
	return c
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-particles/common"
)

// ProceduralProvider synthesizes a sky gradient for every cube face id. It backs headless runs
// and fills in when no asset directory is configured.
type ProceduralProvider struct {
	Size    int
	Horizon [3]float32
	Zenith  [3]float32
	Ground  [3]float32
}

var _ Provider = ProceduralProvider{}

// NewProceduralProvider returns a provider producing size² faces with a blue sky over a grey ground.
func NewProceduralProvider(size int) ProceduralProvider {
	return ProceduralProvider{
		Size:    size,
		Horizon: [3]float32{0.85, 0.9, 1.0},
		Zenith:  [3]float32{0.2, 0.4, 0.9},
		Ground:  [3]float32{0.25, 0.22, 0.2},
	}
}

func (p ProceduralProvider) Image(ctx context.Context, id string) (common.TextureStagingData, error) {
	if err := ctx.Err(); err != nil {
		return common.TextureStagingData{}, err
	}
	prefix, faceName, ok := strings.Cut(id, "_")
	face := -1
	for i, name := range FaceNames {
		if name == faceName {
			face = i
		}
	}
	if !ok || face < 0 || (prefix != IrradiancePrefix && prefix != RadiancePrefix) {
		return common.TextureStagingData{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	size := max(p.Size, 1)
	// Irradiance is the blurred, dimmer lookup.
	gain := float32(1)
	if prefix == IrradiancePrefix {
		gain = 0.6
	}
	pix := make([]byte, size*size*4)
	for y := range size {
		for x := range size {
			u := (float32(x)+0.5)/float32(size)*2 - 1
			v := (float32(y)+0.5)/float32(size)*2 - 1
			dir := common.Normalize3(faceDirection(face, u, v))
			c := p.sky(dir[1])
			off := (y*size + x) * 4
			for i := range 3 {
				pix[off+i] = toByte(c[i] * gain)
			}
			pix[off+3] = 255
		}
	}
	return common.TextureStagingData{Pixels: pix, Width: uint32(size), Height: uint32(size)}, nil
}

func (p ProceduralProvider) sky(up float32) [3]float32 {
	if up < 0 {
		return p.Ground
	}
	var c [3]float32
	for i := range 3 {
		c[i] = p.Horizon[i] + (p.Zenith[i]-p.Horizon[i])*up
	}
	return c
}

// faceDirection maps face-local coordinates in [-1, 1] to a direction using the usual cube map
// orientation, with v pointing down the face.
func faceDirection(face int, u, v float32) [3]float32 {
	switch face {
	case 0:
		return [3]float32{1, -v, -u}
	case 1:
		return [3]float32{-1, -v, u}
	case 2:
		return [3]float32{u, 1, v}
	case 3:
		return [3]float32{u, -1, -v}
	case 4:
		return [3]float32{u, -v, 1}
	default:
		return [3]float32{-u, -v, -1}
	}
}

func toByte(f float32) byte {
	return byte(min(max(f, 0), 1)*255 + 0.5)
}

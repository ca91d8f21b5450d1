// Package assets resolves image ids to RGBA staging data and assembles the environment cube maps
// the particle shading samples.
package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	// Registered decoders for image.Decode.
	_ "image/jpeg"
	_ "image/png"

	"github.com/Carmen-Shannon/oxy-particles/common"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned by a Provider that has no image for an id.
var ErrNotFound = errors.New("asset not found")

// FaceNames lists cube faces in layer order: +X, -X, +Y, -Y, +Z, -Z.
var FaceNames = [6]string{"posx", "negx", "posy", "negy", "posz", "negz"}

// Cube map id prefixes.
const (
	IrradiancePrefix = "irr"
	RadiancePrefix   = "rad"
)

// Provider resolves an asset id to decoded RGBA pixels.
type Provider interface {
	// Image returns the RGBA pixels for id, or an error wrapping ErrNotFound.
	//
	// Parameters:
	//   - ctx: cancels a slow lookup
	//   - id: the asset id, e.g. "irr_posx"
	//
	// Returns:
	//   - common.TextureStagingData: RGBA8 pixels
	//   - error: ErrNotFound or a decode error
	Image(ctx context.Context, id string) (common.TextureStagingData, error)
}

// Environment holds the irradiance and radiance cube faces in FaceNames order.
type Environment struct {
	Irradiance [6]common.TextureStagingData
	Radiance   [6]common.TextureStagingData
}

// FaceID returns the asset id of one cube face, e.g. FaceID("rad", 2) is "rad_posy".
func FaceID(prefix string, face int) string {
	return prefix + "_" + FaceNames[face]
}

// LoadEnvironment fetches all twelve cube faces concurrently and scales each to faceSize².
// The first failure cancels the remaining lookups.
//
// Parameters:
//   - ctx: the parent context
//   - p: the provider to read faces from
//   - faceSize: the edge length every face is scaled to
//
// Returns:
//   - Environment: the loaded faces
//   - error: the first lookup or decode error
func LoadEnvironment(ctx context.Context, p Provider, faceSize int) (Environment, error) {
	if faceSize <= 0 {
		return Environment{}, fmt.Errorf("invalid face size %d", faceSize)
	}
	var env Environment
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(6)
	for face := range FaceNames {
		for _, prefix := range []string{IrradiancePrefix, RadiancePrefix} {
			dst := &env.Irradiance[face]
			if prefix == RadiancePrefix {
				dst = &env.Radiance[face]
			}
			id := FaceID(prefix, face)
			g.Go(func() error {
				data, err := p.Image(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to load %s: %w", id, err)
				}
				*dst = Resize(data, faceSize, faceSize)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return Environment{}, err
	}
	return env, nil
}

// Decode reads any registered image format (png, jpeg, bmp, tiff, webp) into RGBA8 pixels.
//
// Parameters:
//   - r: the encoded image
//
// Returns:
//   - common.TextureStagingData: the decoded pixels
//   - error: a decode error
func Decode(r io.Reader) (common.TextureStagingData, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// FromImage converts any image.Image to RGBA8 staging data.
func FromImage(img image.Image) common.TextureStagingData {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(rgba, rgba.Bounds(), img, b.Min, xdraw.Src)
	}
	return common.TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
	}
}

// Resize scales staging data with bilinear filtering. Data already at the requested size is
// returned unchanged.
//
// Parameters:
//   - data: the source pixels
//   - width, height: the target size
//
// Returns:
//   - common.TextureStagingData: the scaled pixels
func Resize(data common.TextureStagingData, width, height int) common.TextureStagingData {
	if int(data.Width) == width && int(data.Height) == height {
		return data
	}
	src := &image.RGBA{
		Pix:    data.Pixels,
		Stride: int(data.Width) * 4,
		Rect:   image.Rect(0, 0, int(data.Width), int(data.Height)),
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return common.TextureStagingData{
		Pixels: dst.Pix,
		Width:  uint32(width),
		Height: uint32(height),
	}
}

// Package converter turns extracted color rasters into display images staged for texture upload.
package converter

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrConversion is returned when a raster cannot be materialized as an addressable pixel buffer.
var ErrConversion = errors.New("display image conversion failed")

// converterImpl is the implementation of the Converter interface.
type converterImpl struct {
	format wgpu.TextureFormat
}

// Converter produces renderer-native display images from rasters.
type Converter interface {
	// ToDisplayImage copies the pixels of a color raster into a tightly packed RGBA8 buffer.
	// The result owns its pixels, so the raster may be released afterwards.
	//
	// Parameters:
	//   - r: the color raster
	//
	// Returns:
	//   - *common.DisplayImage: the display image covering r.Sector
	//   - error: ErrConversion if r is nil, released, not a color raster, or has an inconsistent buffer
	ToDisplayImage(r *raster.DataRaster) (*common.DisplayImage, error)
}

var _ Converter = &converterImpl{}

// NewConverter creates a Converter. Images are tagged RGBA8Unorm unless overridden.
func NewConverter(options ...ConverterBuilderOption) Converter {
	c := &converterImpl{format: wgpu.TextureFormatRGBA8Unorm}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *converterImpl) ToDisplayImage(r *raster.DataRaster) (*common.DisplayImage, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil raster", ErrConversion)
	}
	if r.Format != raster.PixelFormatColor {
		return nil, fmt.Errorf("%w: %s is a %s raster", ErrConversion, r.Name, r.Format)
	}
	img, err := r.Image()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConversion, r.Name, err)
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w != r.Width || h != r.Height {
		return nil, fmt.Errorf("%w: %s: image %dx%d disagrees with raster %dx%d", ErrConversion, r.Name, w, h, r.Width, r.Height)
	}
	rowBytes := w * 4
	if img.Stride < rowBytes || len(img.Pix) < (h-1)*img.Stride+rowBytes {
		return nil, fmt.Errorf("%w: %s: pixel buffer of %d bytes too short for %dx%d", ErrConversion, r.Name, len(img.Pix), w, h)
	}

	pixels := make([]byte, rowBytes*h)
	for y := 0; y < h; y++ {
		copy(pixels[y*rowBytes:(y+1)*rowBytes], img.Pix[y*img.Stride:y*img.Stride+rowBytes])
	}

	return &common.DisplayImage{
		Pixels: pixels,
		Width:  uint32(w),
		Height: uint32(h),
		Format: c.format,
		Sector: r.Sector,
	}, nil
}

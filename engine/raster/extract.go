package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/Carmen-Shannon/oxy-globe/engine/projection"
	"github.com/nfnt/resize"
	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/floats"
)

// ErrExtract is returned when a sub-raster cannot be produced.
var ErrExtract = errors.New("sub-raster extraction failed")

// rowsPerBand is the number of target rows resampled by one worker.
const rowsPerBand = 64

var sem = semaphore.NewWeighted(int64(runtime.NumCPU()))

// Extract produces a new geographic raster exactly covering sector at width x height pixels.
// Target pixel centers are mapped into the source CRS and sampled there; elevation uses bilinear
// interpolation (nearest when a neighbour is no-data) and color uses nearest neighbour. Pixels
// outside the source extent are filled with the no-data sentinel (transparent for color).
// The source raster is neither mutated nor released.
//
// Parameters:
//   - src: the source raster
//   - width, height: target resolution in pixels
//   - sector: target geographic sector
//   - options: extra options applied to the extracted raster
//
// Returns:
//   - *DataRaster: the extracted raster in geographic coordinates
//   - error: ErrExtract wrapping the cause
func Extract(src *DataRaster, width, height int, sector common.Sector, options ...Option) (*DataRaster, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrExtract)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid target size %dx%d", ErrExtract, width, height)
	}
	if err := sector.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtract, err)
	}
	if src.Extent.Width() <= 0 || src.Extent.Height() <= 0 {
		return nil, fmt.Errorf("%w: source %q has empty extent", ErrExtract, src.Name)
	}

	toSource, err := projection.Transform(projection.Geographic(), src.CRS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtract, err)
	}

	opts := append([]Option{WithName(src.Name), WithNoData(src.NoData)}, options...)

	switch src.Format {
	case PixelFormatElevation:
		samples, err := src.Elevations()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExtract, err)
		}
		out := make([]float64, width*height)
		resampleBands(height, func(row int) {
			for col := 0; col < width; col++ {
				out[row*width+col] = sampleElevation(src, samples, toSource, targetLonLat(sector, width, height, col, row))
			}
		})
		return NewElevationRaster(width, height, sector, out, opts...)

	case PixelFormatColor:
		img, err := src.Image()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExtract, err)
		}
		if src.CRS.IsGeographic() && ExtentFromSector(sector) == src.Extent {
			return NewColorRaster(resizeColor(img, width, height), sector, opts...)
		}
		out := image.NewRGBA(image.Rect(0, 0, width, height))
		resampleBands(height, func(row int) {
			for col := 0; col < width; col++ {
				out.SetRGBA(col, row, sampleColor(src, img, toSource, targetLonLat(sector, width, height, col, row)))
			}
		})
		return NewColorRaster(out, sector, opts...)

	default:
		return nil, fmt.Errorf("%w: unsupported pixel format %s", ErrExtract, src.Format)
	}
}

// resampleBands runs fn for every row, splitting rows into bands processed concurrently.
// Concurrency is bounded by the package semaphore.
func resampleBands(height int, fn func(row int)) {
	wg := sync.WaitGroup{}
	for start := 0; start < height; start += rowsPerBand {
		end := min(start+rowsPerBand, height)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			_ = sem.Acquire(context.Background(), 1)
			defer sem.Release(1)
			for row := start; row < end; row++ {
				fn(row)
			}
		}(start, end)
	}
	wg.Wait()
}

// targetLonLat returns the geographic center of target pixel (col, row).
func targetLonLat(s common.Sector, width, height, col, row int) [2]float64 {
	lon := s.MinLon + (float64(col)+0.5)*s.DeltaLon()/float64(width)
	lat := s.MaxLat - (float64(row)+0.5)*s.DeltaLat()/float64(height)
	return [2]float64{lon, lat}
}

// sourcePixel maps a geographic point into fractional source pixel coordinates.
// ok is false when the point falls outside the source extent or cannot be transformed.
func sourcePixel(src *DataRaster, toSource projection.Transformer, lonLat [2]float64) (px, py float64, ok bool) {
	x, y, err := toSource(lonLat[0], lonLat[1])
	if err != nil || math.IsNaN(x) || math.IsNaN(y) || !src.Extent.Contains(x, y) {
		return 0, 0, false
	}
	px = (x-src.Extent.MinX)/src.Extent.Width()*float64(src.Width) - 0.5
	py = (src.Extent.MaxY-y)/src.Extent.Height()*float64(src.Height) - 0.5
	px = common.Clamp(px, 0, float64(src.Width-1))
	py = common.Clamp(py, 0, float64(src.Height-1))
	return px, py, true
}

func sampleElevation(src *DataRaster, samples []float64, toSource projection.Transformer, lonLat [2]float64) float64 {
	px, py, ok := sourcePixel(src, toSource, lonLat)
	if !ok {
		return src.NoData
	}

	x0, y0 := int(math.Floor(px)), int(math.Floor(py))
	x1, y1 := min(x0+1, src.Width-1), min(y0+1, src.Height-1)
	fx, fy := px-float64(x0), py-float64(y0)

	at := func(x, y int) float64 { return samples[y*src.Width+x] }
	v00, v10, v01, v11 := at(x0, y0), at(x1, y0), at(x0, y1), at(x1, y1)
	for _, v := range []float64{v00, v10, v01, v11} {
		if v == src.NoData {
			return at(int(math.Round(px)), int(math.Round(py)))
		}
	}

	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy
}

func sampleColor(src *DataRaster, img *image.RGBA, toSource projection.Transformer, lonLat [2]float64) color.RGBA {
	px, py, ok := sourcePixel(src, toSource, lonLat)
	if !ok {
		return color.RGBA{}
	}
	return img.RGBAAt(int(math.Round(px)), int(math.Round(py)))
}

// resizeColor resamples a same-CRS color grid to the requested size.
// Matching sizes are copied verbatim.
func resizeColor(img *image.RGBA, width, height int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	if img.Bounds().Dx() == width && img.Bounds().Dy() == height {
		for y := 0; y < height; y++ {
			copy(out.Pix[y*out.Stride:(y+1)*out.Stride], img.Pix[y*img.Stride:])
		}
		return out
	}
	resized := resize.Resize(uint(width), uint(height), img, resize.Bilinear)
	draw.Draw(out, out.Bounds(), resized, resized.Bounds().Min, draw.Src)
	return out
}

// Stats returns the minimum and maximum elevation of the raster, ignoring no-data samples.
// ok is false for color rasters, released rasters, or rasters with no valid samples.
func Stats(r *DataRaster) (lo, hi float64, ok bool) {
	samples, err := r.Elevations()
	if err != nil {
		return 0, 0, false
	}
	return SampleRange(samples, r.NoData)
}

// SampleRange returns the minimum and maximum of samples, skipping noData and NaN.
// ok is false when no valid sample remains.
func SampleRange(samples []float64, noData float64) (lo, hi float64, ok bool) {
	valid := make([]float64, 0, len(samples))
	for _, v := range samples {
		if v != noData && !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return 0, 0, false
	}
	return floats.Min(valid), floats.Max(valid), true
}

// Package raster holds decoded raster grids and the extraction step that resamples them onto a
// geographic sector at a requested resolution.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/Carmen-Shannon/oxy-globe/engine/projection"
)

// DefaultNoData is the elevation sentinel used for samples outside a raster's actual extent.
const DefaultNoData = -32768.0

// ErrReleased is returned when the sample buffer of a released raster is accessed.
var ErrReleased = errors.New("raster already released")

// PixelFormat identifies what the samples of a raster represent.
type PixelFormat int

const (
	// PixelFormatElevation rasters carry one float64 height sample per pixel, in meters.
	PixelFormatElevation PixelFormat = iota
	// PixelFormatColor rasters carry RGBA color pixels.
	PixelFormatColor
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatElevation:
		return "elevation"
	case PixelFormatColor:
		return "color"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// Extent is the pixel-edge bounding box of a raster in the units of its CRS.
// Row 0 of the raster lies at MaxY.
type Extent struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// ExtentFromSector returns the geographic extent (X = longitude, Y = latitude) of a sector.
func ExtentFromSector(s common.Sector) Extent {
	return Extent{MinX: s.MinLon, MaxX: s.MaxLon, MinY: s.MinLat, MaxY: s.MaxLat}
}

// Width returns the extent width in CRS units.
func (e Extent) Width() float64 { return e.MaxX - e.MinX }

// Height returns the extent height in CRS units.
func (e Extent) Height() float64 { return e.MaxY - e.MinY }

// Contains reports whether (x, y) lies within the extent, edges included.
func (e Extent) Contains(x, y float64) bool {
	return x >= e.MinX && x <= e.MaxX && y >= e.MinY && y <= e.MaxY
}

// DataRaster is a decoded 2-D sample grid tagged with its extent, pixel format and CRS.
// Rasters are short-lived: the pipeline releases each one as soon as a derived artifact exists.
// Release is idempotent and safe for concurrent use.
type DataRaster struct {
	// Name identifies the raster in diagnostics, typically the source resource name.
	Name string
	// Width and Height are the grid dimensions in pixels.
	Width, Height int
	// Format is the sample kind.
	Format PixelFormat
	// Extent is the native bounding box in CRS units.
	Extent Extent
	// CRS is the source coordinate reference system; nil means geographic.
	CRS *projection.CRS
	// Sector is the geographic footprint of the raster.
	Sector common.Sector
	// NoData is the elevation sentinel for missing samples.
	NoData float64

	mu         sync.RWMutex
	released   bool
	elevations []float64
	img        *image.RGBA
	onRelease  func(*DataRaster)
}

// Option configures a DataRaster at construction.
type Option func(r *DataRaster)

// WithName sets the diagnostic name of the raster.
func WithName(name string) Option {
	return func(r *DataRaster) {
		r.Name = name
	}
}

// WithCRS sets the source CRS. Extent is interpreted in its units.
func WithCRS(crs *projection.CRS) Option {
	return func(r *DataRaster) {
		r.CRS = crs
	}
}

// WithExtent overrides the native extent. Defaults to the geographic extent of the sector.
func WithExtent(e Extent) Option {
	return func(r *DataRaster) {
		r.Extent = e
	}
}

// WithNoData sets the elevation no-data sentinel.
func WithNoData(v float64) Option {
	return func(r *DataRaster) {
		r.NoData = v
	}
}

// WithReleaseHook registers a function called exactly once when the raster is released.
func WithReleaseHook(fn func(*DataRaster)) Option {
	return func(r *DataRaster) {
		r.onRelease = fn
	}
}

// NewElevationRaster creates an elevation raster from row-major samples, row 0 at the north edge.
//
// Parameters:
//   - width, height: grid dimensions
//   - sector: geographic footprint
//   - samples: width*height height values in meters
//   - options: functional options
//
// Returns:
//   - *DataRaster: the raster
//   - error: error if dimensions and sample count disagree
func NewElevationRaster(width, height int, sector common.Sector, samples []float64, options ...Option) (*DataRaster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	if len(samples) != width*height {
		return nil, fmt.Errorf("raster %dx%d needs %d samples, got %d", width, height, width*height, len(samples))
	}
	r := &DataRaster{
		Width:      width,
		Height:     height,
		Format:     PixelFormatElevation,
		Extent:     ExtentFromSector(sector),
		Sector:     sector,
		NoData:     DefaultNoData,
		elevations: samples,
	}
	for _, option := range options {
		option(r)
	}
	return r, nil
}

// NewColorRaster creates a color raster from an RGBA image whose bounds start at the origin.
//
// Parameters:
//   - img: the pixel data, row 0 at the north edge
//   - sector: geographic footprint
//   - options: functional options
//
// Returns:
//   - *DataRaster: the raster
//   - error: error if the image is empty
func NewColorRaster(img *image.RGBA, sector common.Sector, options ...Option) (*DataRaster, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty color raster")
	}
	if img.Bounds().Min != (image.Point{}) {
		shifted := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
		draw.Draw(shifted, shifted.Bounds(), img, img.Bounds().Min, draw.Src)
		img = shifted
	}
	r := &DataRaster{
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		Format: PixelFormatColor,
		Extent: ExtentFromSector(sector),
		Sector: sector,
		NoData: DefaultNoData,
		img:    img,
	}
	for _, option := range options {
		option(r)
	}
	return r, nil
}

// Elevations returns the elevation samples.
func (r *DataRaster) Elevations() ([]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.released {
		return nil, ErrReleased
	}
	if r.Format != PixelFormatElevation {
		return nil, fmt.Errorf("raster %q is %s, not elevation", r.Name, r.Format)
	}
	return r.elevations, nil
}

// Image returns the RGBA pixel buffer.
func (r *DataRaster) Image() (*image.RGBA, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.released {
		return nil, ErrReleased
	}
	if r.Format != PixelFormatColor {
		return nil, fmt.Errorf("raster %q is %s, not color", r.Name, r.Format)
	}
	return r.img, nil
}

// Released reports whether Release has been called.
func (r *DataRaster) Released() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.released
}

// Release drops the sample buffers. Subsequent calls are no-ops.
func (r *DataRaster) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	r.elevations = nil
	r.img = nil
	hook := r.onRelease
	r.mu.Unlock()

	if hook != nil {
		hook(r)
	}
}

// ReleaseAll releases every raster in the slice, skipping nil entries.
func ReleaseAll(rasters []*DataRaster) {
	for _, r := range rasters {
		if r != nil {
			r.Release()
		}
	}
}

func (r *DataRaster) String() string {
	return fmt.Sprintf("%s %dx%d %s %s (%s)", r.Name, r.Width, r.Height, r.Format, r.Sector, r.CRS)
}

package loader

import (
	"github.com/Carmen-Shannon/oxy-globe/engine/projection"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithDefaultCRS sets the CRS assumed for files with no .prj sidecar or embedded definition.
//
// Parameters:
//   - crs: the default reference system; nil keeps geographic WGS84
//
// Returns:
//   - LoaderBuilderOption: a function that applies the CRS option to a loader
func WithDefaultCRS(crs *projection.CRS) LoaderBuilderOption {
	return func(l *loader) {
		if crs != nil {
			l.defaultCRS = crs
		}
	}
}

// WithRasterOptions appends options applied to every decoded raster, e.g. a release hook.
func WithRasterOptions(opts ...raster.Option) LoaderBuilderOption {
	return func(l *loader) {
		l.rasterOpts = append(l.rasterOpts, opts...)
	}
}

// WithoutFormat unregisters a backend so files of that format are reported as unsupported.
func WithoutFormat(f Format) LoaderBuilderOption {
	return func(l *loader) {
		delete(l.backends, f)
	}
}

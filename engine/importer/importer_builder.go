package importer

import (
	"github.com/Carmen-Shannon/oxy-globe/engine/camera"
	"github.com/Carmen-Shannon/oxy-globe/engine/converter"
	"github.com/Carmen-Shannon/oxy-globe/engine/fetcher"
	"github.com/Carmen-Shannon/oxy-globe/engine/loader"
	"github.com/Carmen-Shannon/oxy-globe/engine/profiler"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
)

// ImporterBuilderOption is a functional option for configuring an Importer.
type ImporterBuilderOption func(*importerImpl)

// WithFetcher sets the resource fetcher.
//
// Parameters:
//   - f: the fetcher
//
// Returns:
//   - ImporterBuilderOption: option function to apply
func WithFetcher(f fetcher.Fetcher) ImporterBuilderOption {
	return func(im *importerImpl) {
		im.fetcher = f
	}
}

// WithLoader sets the raster reader.
//
// Parameters:
//   - l: the loader
//
// Returns:
//   - ImporterBuilderOption: option function to apply
func WithLoader(l loader.Loader) ImporterBuilderOption {
	return func(im *importerImpl) {
		im.loader = l
	}
}

// WithConverter sets the display image converter.
//
// Parameters:
//   - c: the converter
//
// Returns:
//   - ImporterBuilderOption: option function to apply
func WithConverter(c converter.Converter) ImporterBuilderOption {
	return func(im *importerImpl) {
		im.converter = c
	}
}

// WithNavigator frames each imported sector in view after a successful import.
//
// Parameters:
//   - n: the navigator
//   - view: the camera it moves
//
// Returns:
//   - ImporterBuilderOption: option function to apply
func WithNavigator(n camera.Navigator, view camera.Camera) ImporterBuilderOption {
	return func(im *importerImpl) {
		im.navigator = n
		im.view = view
	}
}

// WithResource sets the resource Start imports for kind.
//
// Parameters:
//   - kind: the import kind
//   - name: a URL, bundled asset name or local path
//
// Returns:
//   - ImporterBuilderOption: option function to apply
func WithResource(kind Kind, name string) ImporterBuilderOption {
	return func(im *importerImpl) {
		im.resources[kind] = name
	}
}

// WithWorkers sets the maximum number of pool workers. Values < 1 are ignored.
func WithWorkers(n int) ImporterBuilderOption {
	return func(im *importerImpl) {
		if n > 0 {
			im.workers = n
		}
	}
}

// WithProfiler records stage timings into p.
func WithProfiler(p *profiler.Profiler) ImporterBuilderOption {
	return func(im *importerImpl) {
		im.profiler = p
	}
}

// WithBusyCallback registers fn, called with true when an import is accepted and false when it finishes.
// Calls never interleave: a Start racing a finishing import waits until fn(false) has returned, so fn
// must not call Start itself.
func WithBusyCallback(fn func(busy bool)) ImporterBuilderOption {
	return func(im *importerImpl) {
		im.busyCallback = fn
	}
}

// WithRasterOptions applies opts to every raster the importer extracts.
func WithRasterOptions(opts ...raster.Option) ImporterBuilderOption {
	return func(im *importerImpl) {
		im.rasterOpts = append(im.rasterOpts, opts...)
	}
}

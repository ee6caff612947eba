package loader

import (
	"github.com/Carmen-Shannon/oxy-globe/engine/projection"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
)

// loaderBackend defines the format-specific half of the Loader.
// Concrete implementations (asciiGridBackend, worldImageBackend) handle parsing details.
type loaderBackend interface {
	// Recognize reports whether the backend can read the file.
	//
	// Parameters:
	//   - path: the file path, used for extension hints only
	//   - header: the leading bytes of the (decompressed) file
	//
	// Returns:
	//   - bool: true if the backend handles the file
	Recognize(path string, header []byte) bool

	// ReadMetadata reads dimensions and georeference without decoding samples.
	//
	// Parameters:
	//   - path: the file path
	//   - defaultCRS: the CRS assumed when the file carries no projection definition
	//
	// Returns:
	//   - *Metadata: the metadata; Sector is nil when not georeferenced
	//   - error: error if the file is corrupt
	ReadMetadata(path string, defaultCRS *projection.CRS) (*Metadata, error)

	// Decode reads the sample grid.
	//
	// Parameters:
	//   - path: the file path
	//   - md: metadata previously returned by ReadMetadata, with a non-nil Sector
	//   - opts: raster options to apply
	//
	// Returns:
	//   - *raster.DataRaster: the decoded raster
	//   - error: error if the file is corrupt or truncated
	Decode(path string, md *Metadata, opts []raster.Option) (*raster.DataRaster, error)
}

package loader

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/Carmen-Shannon/oxy-globe/engine/projection"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
	"github.com/golang/glog"
)

var (
	// ErrUnsupportedFormat is returned when no backend recognizes a file.
	ErrUnsupportedFormat = errors.New("unsupported raster format")
	// ErrDecode is returned for corrupt or truncated input.
	ErrDecode = errors.New("raster decode failed")
)

// headerSize is the number of leading bytes inspected during identification.
const headerSize = 512

// Format identifies the raster file format backend.
type Format int

const (
	// FormatUnknown is returned alongside ErrUnsupportedFormat.
	FormatUnknown Format = iota
	// FormatASCIIGrid selects the ESRI ASCII grid backend (.asc, .asc.gz).
	FormatASCIIGrid
	// FormatWorldImage selects the TIFF/PNG/JPEG backend georeferenced by a world file.
	FormatWorldImage
	// FormatTerrainRGB selects the Terrain-RGB encoded PNG backend.
	FormatTerrainRGB
)

func (f Format) String() string {
	switch f {
	case FormatASCIIGrid:
		return "esri-ascii-grid"
	case FormatWorldImage:
		return "world-image"
	case FormatTerrainRGB:
		return "terrain-rgb"
	default:
		return "unknown"
	}
}

// Metadata describes a raster file without decoding its samples.
type Metadata struct {
	// Format is the backend that recognized the file.
	Format Format
	// PixelFormat is the kind of raster Decode will produce.
	PixelFormat raster.PixelFormat
	// Width and Height are the grid dimensions in pixels.
	Width, Height int
	// Extent is the native bounding box in CRS units; zero when the file is not georeferenced.
	Extent raster.Extent
	// Sector is the geographic footprint, nil when the file carries no georeference.
	Sector *common.Sector
	// CRS is the source reference system.
	CRS *projection.CRS
	// NoData is the elevation no-data sentinel.
	NoData float64
}

// clone returns a copy that shares nothing mutable with m. CRS values are immutable and stay shared.
func (m *Metadata) clone() *Metadata {
	c := *m
	if m.Sector != nil {
		s := *m.Sector
		c.Sector = &s
	}
	return &c
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	metadataCache map[string]*Metadata

	backends   map[Format]loaderBackend
	defaultCRS *projection.CRS
	rasterOpts []raster.Option
}

// Loader reads raster files through pluggable format backends. It identifies the format from the
// file contents, reads georeferencing metadata, and decodes sample grids into DataRasters.
type Loader interface {
	// IdentifyFormat inspects the leading bytes of the file and returns the matching backend format.
	// The file extension is used only to disambiguate formats sharing a container (Terrain-RGB PNG).
	//
	// Parameters:
	//   - path: the local file path
	//
	// Returns:
	//   - Format: the recognized format
	//   - error: ErrUnsupportedFormat if no backend recognizes the bytes
	IdentifyFormat(path string) (Format, error)

	// ReadMetadata reads dimensions, pixel format, CRS and geographic sector.
	// A file without georeference is a valid outcome: the returned Metadata has a nil Sector.
	// Results are cached per path, size and modification time.
	//
	// Parameters:
	//   - path: the local file path
	//
	// Returns:
	//   - *Metadata: the metadata
	//   - error: ErrUnsupportedFormat or ErrDecode
	ReadMetadata(path string) (*Metadata, error)

	// Decode reads the sample grid(s) of the file. The caller owns the returned rasters and must
	// release them.
	//
	// Parameters:
	//   - path: the local file path
	//
	// Returns:
	//   - []*raster.DataRaster: the decoded rasters, at least one on success
	//   - error: ErrUnsupportedFormat or ErrDecode
	Decode(path string) ([]*raster.DataRaster, error)
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with every built-in backend registered and options applied.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new Loader instance
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:            sync.RWMutex{},
		metadataCache: make(map[string]*Metadata),
		defaultCRS:    projection.Geographic(),
	}
	l.backends = map[Format]loaderBackend{
		FormatASCIIGrid:  newASCIIGridBackend(),
		FormatWorldImage: newWorldImageBackend(false),
		FormatTerrainRGB: newWorldImageBackend(true),
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) IdentifyFormat(path string) (Format, error) {
	header, err := readHeader(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	// Order matters: Terrain-RGB is a PNG and must win over the generic image backend.
	for _, f := range []Format{FormatTerrainRGB, FormatASCIIGrid, FormatWorldImage} {
		if b, ok := l.backends[f]; ok && b.Recognize(path, header) {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

func (l *loader) ReadMetadata(path string) (*Metadata, error) {
	key, err := cacheKey(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	l.mu.RLock()
	if cached, ok := l.metadataCache[key]; ok {
		l.mu.RUnlock()
		return cached.clone(), nil
	}
	l.mu.RUnlock()

	format, err := l.IdentifyFormat(path)
	if err != nil {
		return nil, err
	}

	md, err := l.backends[format].ReadMetadata(path, l.defaultCRS)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, filepath.Base(path), err)
	}
	md.Format = format

	l.mu.Lock()
	l.metadataCache[key] = md.clone()
	l.mu.Unlock()

	glog.V(2).Infof("metadata %s: %s %s %dx%d sector=%v crs=%s", filepath.Base(path), format, md.PixelFormat, md.Width, md.Height, md.Sector, md.CRS)
	return md, nil
}

func (l *loader) Decode(path string) ([]*raster.DataRaster, error) {
	md, err := l.ReadMetadata(path)
	if err != nil {
		return nil, err
	}
	if md.Sector == nil {
		return nil, fmt.Errorf("%w: %s has no georeference", ErrDecode, filepath.Base(path))
	}

	opts := append([]raster.Option{
		raster.WithName(filepath.Base(path)),
		raster.WithCRS(md.CRS),
		raster.WithExtent(md.Extent),
		raster.WithNoData(md.NoData),
	}, l.rasterOpts...)

	r, err := l.backends[md.Format].Decode(path, md, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, filepath.Base(path), err)
	}
	return []*raster.DataRaster{r}, nil
}

// readHeader returns up to headerSize leading bytes, transparently gunzipping compressed files.
func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(headerSize)
	if !isGzip(head) {
		return bytes.Clone(head), nil
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	buf := make([]byte, headerSize)
	n, err := io.ReadFull(gz, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

func isGzip(head []byte) bool {
	return len(head) >= 2 && head[0] == 0x1f && head[1] == 0x8b
}

func cacheKey(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano()), nil
}

// hasExt reports whether path ends with any of exts, case-insensitively.
func hasExt(path string, exts ...string) bool {
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

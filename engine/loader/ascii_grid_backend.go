package loader

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-globe/engine/projection"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
)

// maxGridSamples bounds ncols*nrows so a corrupt header cannot demand an arbitrary allocation.
const maxGridSamples = 1 << 28

// asciiGridBackendImpl is the implementation of asciiGridBackend.
type asciiGridBackendImpl struct{}

// asciiGridBackend is a loaderBackend for ESRI ASCII grids, optionally gzip-compressed.
// The header carries the georeference; a .prj sidecar, when present, carries the CRS.
type asciiGridBackend interface {
	loaderBackend
}

var _ asciiGridBackend = &asciiGridBackendImpl{}

func newASCIIGridBackend() asciiGridBackend {
	return &asciiGridBackendImpl{}
}

// asciiHeader holds the parsed ESRI ASCII grid header.
type asciiHeader struct {
	ncols, nrows int
	xll, yll     float64
	center       bool
	cellSize     float64
	noData       float64
	hasNoData    bool
	seen         map[string]bool
}

func (b *asciiGridBackendImpl) Recognize(path string, header []byte) bool {
	fields := bytes.Fields(header)
	return len(fields) > 0 && strings.EqualFold(string(fields[0]), "ncols")
}

func (b *asciiGridBackendImpl) ReadMetadata(path string, defaultCRS *projection.CRS) (*Metadata, error) {
	var h *asciiHeader
	err := withGridReader(path, func(s *bufio.Scanner) error {
		var err error
		h, _, err = parseASCIIHeader(s)
		return err
	})
	if err != nil {
		return nil, err
	}

	crs, err := readCRS(path, defaultCRS)
	if err != nil {
		return nil, err
	}

	md := &Metadata{
		PixelFormat: raster.PixelFormatElevation,
		Width:       h.ncols,
		Height:      h.nrows,
		Extent:      h.extent(),
		CRS:         crs,
		NoData:      raster.DefaultNoData,
	}
	if h.hasNoData {
		md.NoData = h.noData
	}
	sector, err := geographicSector(md.Extent, crs)
	if err != nil {
		return nil, err
	}
	md.Sector = &sector
	return md, nil
}

func (b *asciiGridBackendImpl) Decode(path string, md *Metadata, opts []raster.Option) (*raster.DataRaster, error) {
	var samples []float64
	err := withGridReader(path, func(s *bufio.Scanner) error {
		h, first, err := parseASCIIHeader(s)
		if err != nil {
			return err
		}
		samples = make([]float64, 0, h.ncols*h.nrows)
		line := first
		for {
			for _, field := range strings.Fields(line) {
				if len(samples) == cap(samples) {
					return fmt.Errorf("more than %d samples", cap(samples))
				}
				v, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return fmt.Errorf("sample %d: %w", len(samples), err)
				}
				samples = append(samples, v)
			}
			if !s.Scan() {
				break
			}
			line = s.Text()
		}
		if err := s.Err(); err != nil {
			return err
		}
		if len(samples) != h.ncols*h.nrows {
			return fmt.Errorf("truncated grid: %d of %d samples", len(samples), h.ncols*h.nrows)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raster.NewElevationRaster(md.Width, md.Height, *md.Sector, samples, opts...)
}

// withGridReader opens path, transparently gunzipping it, and hands a line scanner to fn.
func withGridReader(path string, fn func(*bufio.Scanner) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if head, _ := br.Peek(2); isGzip(head) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return fn(s)
}

// parseASCIIHeader consumes header lines and returns the header plus the first data line.
func parseASCIIHeader(s *bufio.Scanner) (*asciiHeader, string, error) {
	h := &asciiHeader{seen: make(map[string]bool)}
	for s.Scan() {
		line := s.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		key := strings.ToUpper(fields[0])
		if _, err := strconv.ParseFloat(fields[0], 64); err == nil {
			if err := h.validate(); err != nil {
				return nil, "", err
			}
			return h, line, nil
		}
		if len(fields) != 2 {
			return nil, "", fmt.Errorf("header line %q must have exactly two fields", line)
		}
		if err := h.set(key, fields[1]); err != nil {
			return nil, "", err
		}
	}
	if err := s.Err(); err != nil {
		return nil, "", err
	}
	if err := h.validate(); err != nil {
		return nil, "", err
	}
	return nil, "", fmt.Errorf("grid has no data rows")
}

func (h *asciiHeader) set(key, value string) error {
	if h.seen[key] {
		return fmt.Errorf("duplicate header %s", key)
	}
	h.seen[key] = true

	switch key {
	case "NCOLS", "NROWS":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
		if key == "NCOLS" {
			h.ncols = n
		} else {
			h.nrows = n
		}
		return nil
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	switch key {
	case "XLLCORNER":
		h.xll = v
	case "YLLCORNER":
		h.yll = v
	case "XLLCENTER":
		h.xll, h.center = v, true
	case "YLLCENTER":
		h.yll, h.center = v, true
	case "CELLSIZE":
		if v <= 0 {
			return fmt.Errorf("CELLSIZE must be greater than 0")
		}
		h.cellSize = v
	case "NODATA_VALUE":
		h.noData, h.hasNoData = v, true
	default:
		return fmt.Errorf("unknown header keyword %s", key)
	}
	return nil
}

func (h *asciiHeader) validate() error {
	for _, key := range []string{"NCOLS", "NROWS", "CELLSIZE"} {
		if !h.seen[key] {
			return fmt.Errorf("missing mandatory header %s", key)
		}
	}
	if (h.seen["XLLCORNER"] || h.seen["YLLCORNER"]) && (h.seen["XLLCENTER"] || h.seen["YLLCENTER"]) {
		return fmt.Errorf("corner and center origins are mutually exclusive")
	}
	if !(h.seen["XLLCORNER"] || h.seen["XLLCENTER"]) || !(h.seen["YLLCORNER"] || h.seen["YLLCENTER"]) {
		return fmt.Errorf("missing grid origin")
	}
	if h.ncols > maxGridSamples/h.nrows {
		return fmt.Errorf("grid of %dx%d exceeds %d samples", h.ncols, h.nrows, maxGridSamples)
	}
	return nil
}

// extent returns the pixel-edge extent described by the header.
func (h *asciiHeader) extent() raster.Extent {
	minX, minY := h.xll, h.yll
	if h.center {
		minX -= h.cellSize / 2
		minY -= h.cellSize / 2
	}
	return raster.Extent{
		MinX: minX,
		MaxX: minX + float64(h.ncols)*h.cellSize,
		MinY: minY,
		MaxY: minY + float64(h.nrows)*h.cellSize,
	}
}

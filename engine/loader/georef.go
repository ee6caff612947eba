package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/Carmen-Shannon/oxy-globe/engine/projection"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
)

// SidecarExtensions lists the companion files a raster with the given suffix may carry.
// World files come first in their conventional order, followed by the projection file.
//
// Parameters:
//   - suffix: the main file extension, e.g. ".tif" or ".asc.gz"
//
// Returns:
//   - []string: candidate sidecar extensions
func SidecarExtensions(suffix string) []string {
	return append(worldFileExtensions(suffix), ".prj")
}

func worldFileExtensions(suffix string) []string {
	switch strings.ToLower(suffix) {
	case ".tif", ".tiff":
		return []string{".tfw", ".tifw", ".wld"}
	case ".png", ".terrain.png":
		return []string{".pgw", ".pngw", ".wld"}
	case ".jpg", ".jpeg":
		return []string{".jgw", ".jpgw", ".wld"}
	default:
		return nil
	}
}

// Suffix returns the raster suffix of a resource name, including compound suffixes such as
// ".terrain.png" and ".asc.gz". URL query strings and fragments are ignored.
func Suffix(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return name[len(basePath(name)):]
}

// basePath strips the raster suffix from path so sidecar extensions can be appended.
func basePath(path string) string {
	lower := strings.ToLower(path)
	for _, suffix := range []string{".terrain.png", ".asc.gz"} {
		if strings.HasSuffix(lower, suffix) {
			return path[:len(path)-len(suffix)]
		}
	}
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexAny(path, `/\`) {
		return path[:i]
	}
	return path
}

// findSidecar returns the first existing sidecar of path among exts.
func findSidecar(path string, exts []string) (string, bool) {
	base := basePath(path)
	for _, ext := range exts {
		for _, candidate := range []string{base + ext, base + strings.ToUpper(ext)} {
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true
			}
		}
	}
	return "", false
}

// readCRS parses the .prj sidecar of path, falling back to def when none exists.
func readCRS(path string, def *projection.CRS) (*projection.CRS, error) {
	prj, ok := findSidecar(path, []string{".prj"})
	if !ok {
		return def, nil
	}
	b, err := os.ReadFile(prj)
	if err != nil {
		return nil, err
	}
	return projection.Parse(string(b))
}

// worldFile is the six-parameter affine transform of an image world file.
type worldFile struct {
	PixelX    float64 // A: x size of a pixel
	RotationY float64 // D
	RotationX float64 // B
	PixelY    float64 // E: y size of a pixel, negative for north-up images
	OriginX   float64 // C: x of the center of the upper-left pixel
	OriginY   float64 // F: y of the center of the upper-left pixel
}

// readWorldFile locates and parses the world file of path. ok is false when none exists.
func readWorldFile(path string) (wf worldFile, ok bool, err error) {
	name, found := findSidecar(path, worldFileExtensions(path[len(basePath(path)):]))
	if !found {
		return worldFile{}, false, nil
	}
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return worldFile{}, false, nil
		}
		return worldFile{}, false, err
	}
	defer f.Close()

	var values []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return worldFile{}, false, fmt.Errorf("world file %s: %w", name, err)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return worldFile{}, false, err
	}
	if len(values) != 6 {
		return worldFile{}, false, fmt.Errorf("world file %s: expected 6 values, got %d", name, len(values))
	}
	wf = worldFile{values[0], values[1], values[2], values[3], values[4], values[5]}
	if wf.RotationX != 0 || wf.RotationY != 0 {
		return worldFile{}, false, fmt.Errorf("world file %s: rotated grids are not supported", name)
	}
	if wf.PixelX <= 0 || wf.PixelY == 0 {
		return worldFile{}, false, fmt.Errorf("world file %s: invalid pixel size", name)
	}
	return wf, true, nil
}

// extent returns the pixel-edge extent of a width x height image.
func (wf worldFile) extent(width, height int) raster.Extent {
	minX := wf.OriginX - wf.PixelX/2
	maxY := wf.OriginY - wf.PixelY/2
	return raster.Extent{
		MinX: minX,
		MaxX: minX + wf.PixelX*float64(width),
		MinY: maxY + wf.PixelY*float64(height),
		MaxY: maxY,
	}
}

// geographicSector computes the lon/lat footprint of an extent in crs. Projected extents are
// sampled along their edges so curved boundaries are covered.
func geographicSector(e raster.Extent, crs *projection.CRS) (common.Sector, error) {
	if crs.IsGeographic() {
		return common.NewSector(e.MinY, e.MaxY, e.MinX, e.MaxX)
	}
	toGeo, err := projection.Transform(crs, projection.Geographic())
	if err != nil {
		return common.Sector{}, err
	}

	const steps = 8
	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	visit := func(x, y float64) error {
		lon, lat, err := toGeo(x, y)
		if err != nil {
			return err
		}
		minLon, maxLon = math.Min(minLon, lon), math.Max(maxLon, lon)
		minLat, maxLat = math.Min(minLat, lat), math.Max(maxLat, lat)
		return nil
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / steps
		x := e.MinX + t*e.Width()
		y := e.MinY + t*e.Height()
		for _, p := range [][2]float64{{x, e.MinY}, {x, e.MaxY}, {e.MinX, y}, {e.MaxX, y}} {
			if err := visit(p[0], p[1]); err != nil {
				return common.Sector{}, err
			}
		}
	}
	return common.NewSector(minLat, maxLat, minLon, maxLon)
}

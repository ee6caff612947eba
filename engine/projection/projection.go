// Package projection wraps coordinate reference system parsing and point transformation.
// Definitions may be PROJ4 strings or WKT (as found in .prj sidecar files).
package projection

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ctessum/geom/proj"
)

// GeographicDefinition is the PROJ4 definition of plain WGS84 longitude/latitude in degrees.
const GeographicDefinition = "+proj=longlat +datum=WGS84 +no_defs"

// ErrInvalidCRS is returned when a definition cannot be parsed.
var ErrInvalidCRS = errors.New("invalid coordinate reference system")

// CRS is a parsed coordinate reference system.
// A nil *CRS is treated as geographic WGS84.
type CRS struct {
	definition string
	sr         *proj.SR
}

// Transformer maps a point from one CRS to another. Geographic coordinates are (longitude, latitude) in degrees.
type Transformer func(x, y float64) (float64, float64, error)

var (
	geographicOnce sync.Once
	geographic     *CRS
)

// Geographic returns the shared geographic WGS84 CRS.
func Geographic() *CRS {
	geographicOnce.Do(func() {
		sr, err := proj.Parse(GeographicDefinition)
		if err != nil {
			panic(fmt.Sprintf("projection: failed to parse geographic definition: %v", err))
		}
		geographic = &CRS{definition: GeographicDefinition, sr: sr}
	})
	return geographic
}

// Parse parses a PROJ4 or WKT definition. Blank definitions resolve to Geographic.
//
// Parameters:
//   - definition: the PROJ4 or WKT text
//
// Returns:
//   - *CRS: the parsed reference system
//   - error: ErrInvalidCRS wrapping the parser error
func Parse(definition string) (*CRS, error) {
	definition = strings.TrimSpace(definition)
	if definition == "" {
		return Geographic(), nil
	}
	sr, err := proj.Parse(definition)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCRS, err)
	}
	return &CRS{definition: definition, sr: sr}, nil
}

// Definition returns the text the CRS was parsed from.
func (c *CRS) Definition() string {
	if c == nil {
		return GeographicDefinition
	}
	return c.definition
}

// IsGeographic reports whether coordinates in this CRS are longitude/latitude degrees.
func (c *CRS) IsGeographic() bool {
	return c == nil || c.sr == nil || c.sr.Name == "longlat"
}

func (c *CRS) String() string {
	if c.IsGeographic() {
		return "EPSG:4326"
	}
	return c.Definition()
}

// Identity is the Transformer used between two geographic systems.
func Identity(x, y float64) (float64, float64, error) {
	return x, y, nil
}

// Transform builds a Transformer from src to dst. Two geographic systems yield Identity.
//
// Parameters:
//   - src: the source CRS (nil = geographic)
//   - dst: the destination CRS (nil = geographic)
//
// Returns:
//   - Transformer: the point transformer
//   - error: error if the transform cannot be constructed
func Transform(src, dst *CRS) (Transformer, error) {
	if src.IsGeographic() && dst.IsGeographic() {
		return Identity, nil
	}
	if src == nil {
		src = Geographic()
	}
	if dst == nil {
		dst = Geographic()
	}
	t, err := src.sr.NewTransform(dst.sr)
	if err != nil {
		return nil, fmt.Errorf("failed to build transform %s -> %s: %w", src, dst, err)
	}
	return Transformer(t), nil
}

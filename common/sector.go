package common

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/shopspring/decimal"
)

// ErrInvalidSector is returned when sector bounds violate the latitude range or ordering constraints.
var ErrInvalidSector = errors.New("invalid sector")

// Sector is a geographic bounding rectangle in degrees.
// Latitudes are constrained to [-90, 90] with MinLat <= MaxLat; longitudes are not normalized
// but MinLon <= MaxLon. A Sector is a value type and is never mutated after construction.
type Sector struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// NewSector creates a Sector and validates its bounds.
//
// Parameters:
//   - minLat, maxLat: latitude bounds in degrees
//   - minLon, maxLon: longitude bounds in degrees
//
// Returns:
//   - Sector: the validated sector
//   - error: ErrInvalidSector if the bounds are out of range or unordered
func NewSector(minLat, maxLat, minLon, maxLon float64) (Sector, error) {
	s := Sector{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}
	if err := s.Validate(); err != nil {
		return Sector{}, err
	}
	return s, nil
}

// MustSector is like NewSector but panics on invalid bounds. Intended for constants and tests.
func MustSector(minLat, maxLat, minLon, maxLon float64) Sector {
	s, err := NewSector(minLat, maxLat, minLon, maxLon)
	if err != nil {
		panic(err)
	}
	return s
}

// SectorFromBound converts an orb bound (X = longitude, Y = latitude) into a validated Sector.
func SectorFromBound(b orb.Bound) (Sector, error) {
	return NewSector(b.Min[1], b.Max[1], b.Min[0], b.Max[0])
}

// Validate checks the sector invariants.
func (s Sector) Validate() error {
	for _, v := range []float64{s.MinLat, s.MaxLat, s.MinLon, s.MaxLon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite bound in %v", ErrInvalidSector, [4]float64{s.MinLat, s.MaxLat, s.MinLon, s.MaxLon})
		}
	}
	if s.MinLat > s.MaxLat {
		return fmt.Errorf("%w: min latitude %v above max latitude %v", ErrInvalidSector, s.MinLat, s.MaxLat)
	}
	if s.MinLat < -90 || s.MaxLat > 90 {
		return fmt.Errorf("%w: latitude outside [-90, 90] in %s", ErrInvalidSector, s)
	}
	if s.MinLon > s.MaxLon {
		return fmt.Errorf("%w: min longitude %v above max longitude %v", ErrInvalidSector, s.MinLon, s.MaxLon)
	}
	return nil
}

// Bound returns the sector as an orb bound with X = longitude and Y = latitude.
func (s Sector) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{s.MinLon, s.MinLat},
		Max: orb.Point{s.MaxLon, s.MaxLat},
	}
}

// DeltaLat returns the latitude span in degrees.
func (s Sector) DeltaLat() float64 { return s.MaxLat - s.MinLat }

// DeltaLon returns the longitude span in degrees.
func (s Sector) DeltaLon() float64 { return s.MaxLon - s.MinLon }

// Center returns the sector centroid at zero altitude.
func (s Sector) Center() GeoPoint {
	return GeoPoint{
		Latitude:  (s.MinLat + s.MaxLat) / 2,
		Longitude: (s.MinLon + s.MaxLon) / 2,
	}
}

// Contains reports whether the point lies inside the sector, edges included.
func (s Sector) Contains(lat, lon float64) bool {
	return s.Bound().Contains(orb.Point{lon, lat})
}

// ContainsSector reports whether other lies entirely within s.
func (s Sector) ContainsSector(other Sector) bool {
	return other.MinLat >= s.MinLat && other.MaxLat <= s.MaxLat &&
		other.MinLon >= s.MinLon && other.MaxLon <= s.MaxLon
}

// Intersects reports whether the two sectors overlap, edges included.
func (s Sector) Intersects(other Sector) bool {
	return s.Bound().Intersects(other.Bound())
}

// Intersection returns the overlapping region of the two sectors.
// The boolean is false when the sectors do not overlap.
func (s Sector) Intersection(other Sector) (Sector, bool) {
	if !s.Intersects(other) {
		return Sector{}, false
	}
	return Sector{
		MinLat: math.Max(s.MinLat, other.MinLat),
		MaxLat: math.Min(s.MaxLat, other.MaxLat),
		MinLon: math.Max(s.MinLon, other.MinLon),
		MaxLon: math.Min(s.MaxLon, other.MaxLon),
	}, true
}

// Union returns the smallest sector containing both sectors.
func (s Sector) Union(other Sector) Sector {
	u := s.Bound().Union(other.Bound())
	return Sector{MinLat: u.Min[1], MaxLat: u.Max[1], MinLon: u.Min[0], MaxLon: u.Max[0]}
}

// Corners returns the four corner points in SW, SE, NE, NW order.
func (s Sector) Corners() [4]GeoPoint {
	return [4]GeoPoint{
		{Latitude: s.MinLat, Longitude: s.MinLon},
		{Latitude: s.MinLat, Longitude: s.MaxLon},
		{Latitude: s.MaxLat, Longitude: s.MaxLon},
		{Latitude: s.MaxLat, Longitude: s.MinLon},
	}
}

// IsEmpty reports whether the sector has zero area.
func (s Sector) IsEmpty() bool {
	return s.DeltaLat() == 0 || s.DeltaLon() == 0
}

// String formats the sector as [minLat, maxLat] x [minLon, maxLon] with fixed precision.
func (s Sector) String() string {
	f := func(v float64) string { return decimal.NewFromFloat(v).StringFixed(4) }
	return fmt.Sprintf("[%s, %s] x [%s, %s]", f(s.MinLat), f(s.MaxLat), f(s.MinLon), f(s.MaxLon))
}

// Footprint returns the sector as a GeoJSON polygon feature carrying props.
//
// Parameters:
//   - props: feature properties, may be nil
//
// Returns:
//   - *geojson.Feature: the footprint feature
func (s Sector) Footprint(props map[string]any) *geojson.Feature {
	f := geojson.NewFeature(s.Bound().ToPolygon())
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

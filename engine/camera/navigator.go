package camera

import (
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/golang/glog"
)

// ErrFrame is returned when a sector cannot be brought into view.
var ErrFrame = errors.New("cannot frame sector")

// Navigator moves a Camera to show geographic regions.
type Navigator interface {
	// Frame centers the view on sector, looking straight down, and pulls the eye back until the
	// sector's corners, edge midpoints and center are all visible.
	//
	// Parameters:
	//   - view: the camera to move; it must have a controller attached
	//   - sector: the region to show
	//
	// Returns:
	//   - error: ErrFrame if the sector is invalid or does not fit within the maximum range
	Frame(view Camera, sector common.Sector) error

	// Contains reports whether the sector's corners, edge midpoints and center are visible in the
	// view's current state.
	//
	// Parameters:
	//   - view: the camera to test
	//   - sector: the region to test
	//
	// Returns:
	//   - bool: true if the whole sector is on screen
	Contains(view Camera, sector common.Sector) bool

	// GoTo looks straight down at p.Latitude, p.Longitude from p.Altitude meters.
	//
	// Parameters:
	//   - view: the camera to move
	//   - p: the location and eye altitude
	//
	// Returns:
	//   - error: ErrFrame if the view has no controller
	GoTo(view Camera, p common.GeoPoint) error
}

type navigatorImpl struct {
	growth        float64
	minRange      float64
	maxIterations int
}

var _ Navigator = &navigatorImpl{}

// NewNavigator creates a Navigator growing the range by 20% per framing step.
//
// Parameters:
//   - options: functional options to configure the navigator
//
// Returns:
//   - Navigator: the newly created navigator
func NewNavigator(options ...NavigatorBuilderOption) Navigator {
	n := &navigatorImpl{
		growth:        1.2,
		minRange:      500,
		maxIterations: 128,
	}
	for _, option := range options {
		option(n)
	}
	return n
}

func (n *navigatorImpl) Frame(view Camera, sector common.Sector) error {
	if view == nil || view.Controller() == nil {
		return fmt.Errorf("%w: view has no controller", ErrFrame)
	}
	if err := sector.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrFrame, err)
	}

	ctrl := view.Controller()
	center := sector.Center()
	ctrl.SetTarget(center.Latitude, center.Longitude, 0)
	ctrl.SetPitch(math.Pi / 2)

	r := math.Max(n.minRange, estimateRange(sector, view.Fov()))
	for i := 0; i < n.maxIterations; i++ {
		ctrl.SetRange(r)
		view.Update()
		if n.Contains(view, sector) {
			glog.V(1).Infof("framed %s at range %.0fm after %d steps", sector, ctrl.Range(), i+1)
			return nil
		}
		if ctrl.Range() < r {
			// Clamped by the controller's maximum range.
			break
		}
		r *= n.growth
	}
	return fmt.Errorf("%w: %s does not fit in view (range %.0fm)", ErrFrame, sector, ctrl.Range())
}

// estimateRange is the distance at which the sector's larger ground span fills half the field of view.
func estimateRange(s common.Sector, fov float64) float64 {
	lat := s.Center().Latitude * math.Pi / 180
	spanDeg := math.Max(s.DeltaLat(), s.DeltaLon()*math.Cos(lat))
	span := spanDeg * math.Pi / 180 * common.EarthRadius
	return span / (2 * math.Tan(fov/2))
}

func (n *navigatorImpl) Contains(view Camera, sector common.Sector) bool {
	if view == nil || view.Controller() == nil {
		return false
	}
	for _, p := range samplePoints(sector) {
		if !view.Visible(p.Latitude, p.Longitude, 0) {
			return false
		}
	}
	return true
}

// samplePoints returns the corners, edge midpoints and center of a sector.
func samplePoints(s common.Sector) []common.GeoPoint {
	c := s.Center()
	points := s.Corners()
	out := make([]common.GeoPoint, 0, 9)
	out = append(out, points[:]...)
	out = append(out,
		common.GeoPoint{Latitude: s.MinLat, Longitude: c.Longitude},
		common.GeoPoint{Latitude: s.MaxLat, Longitude: c.Longitude},
		common.GeoPoint{Latitude: c.Latitude, Longitude: s.MinLon},
		common.GeoPoint{Latitude: c.Latitude, Longitude: s.MaxLon},
		c,
	)
	return out
}

func (n *navigatorImpl) GoTo(view Camera, p common.GeoPoint) error {
	if view == nil || view.Controller() == nil {
		return fmt.Errorf("%w: view has no controller", ErrFrame)
	}
	view.Controller().GoTo(p)
	view.Update()
	return nil
}

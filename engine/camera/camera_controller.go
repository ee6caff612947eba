package camera

import "github.com/Carmen-Shannon/oxy-globe/common"

// CameraController defines the globe camera control surface.
// Controllers own positional state: a geographic target on the globe and an orbit around it
// (range, heading, pitch). Camera reads from the controller and computes view/projection matrices.
type CameraController interface {
	orbitCameraController

	// Target returns the geographic look-at point.
	//
	// Returns:
	//   - common.GeoPoint: the target, altitude in meters above the globe surface
	Target() common.GeoPoint

	// SetTarget moves the look-at point and recomputes the eye position.
	//
	// Parameters:
	//   - lat, lon: target location in degrees
	//   - alt: target altitude in meters
	SetTarget(lat, lon, alt float64)

	// GoTo looks straight down at p from p.Altitude meters above the surface, keeping the heading.
	//
	// Parameters:
	//   - p: the location and eye altitude
	GoTo(p common.GeoPoint)

	// Position returns the world-space eye position.
	//
	// Returns:
	//   - [3]float64: the eye position
	Position() [3]float64

	// TargetPosition returns the world-space look-at point.
	//
	// Returns:
	//   - [3]float64: the target position
	TargetPosition() [3]float64

	// Up returns the world-space up vector of the view, orthogonal to the view direction.
	//
	// Returns:
	//   - [3]float64: the unit up vector
	Up() [3]float64

	// Eye returns the geographic eye position.
	//
	// Returns:
	//   - common.GeoPoint: the eye location and altitude above the surface
	Eye() common.GeoPoint
}

// orbitCameraController defines orbit-specific control methods.
// The eye orbits the target at Range meters; Heading is the compass direction the view faces and
// Pitch is the angle of the view above the local horizon plane, pi/2 looking straight down.
type orbitCameraController interface {
	// OrbitLeft turns the heading left by one orbit speed step.
	OrbitLeft()

	// OrbitRight turns the heading right by one orbit speed step.
	OrbitRight()

	// OrbitUp raises the pitch toward straight down by one orbit speed step.
	OrbitUp()

	// OrbitDown lowers the pitch toward the horizon by one orbit speed step.
	OrbitDown()

	// Zoom scales the range. Positive delta moves closer.
	//
	// Parameters:
	//   - delta: zoom steps, each scaling the range by ZoomFactor
	Zoom(delta float64)

	// Range returns the eye distance from the target in meters.
	Range() float64

	// SetRange sets the eye distance, clamped to [MinRange, MaxRange].
	//
	// Parameters:
	//   - r: distance in meters
	SetRange(r float64)

	// MinRange returns the minimum allowed range.
	MinRange() float64

	// MaxRange returns the maximum allowed range.
	MaxRange() float64

	// Heading returns the view heading in radians, 0 facing north.
	Heading() float64

	// SetHeading sets the heading in radians.
	SetHeading(h float64)

	// Pitch returns the view pitch in radians.
	Pitch() float64

	// SetPitch sets the pitch, clamped to [MinPitch, pi/2].
	SetPitch(p float64)
}

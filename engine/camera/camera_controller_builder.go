package camera

import "github.com/Carmen-Shannon/oxy-globe/common"

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithTarget sets the initial geographic look-at point.
//
// Parameters:
//   - p: the target location and altitude
//
// Returns:
//   - CameraControllerOption: functional option to set the target
func WithTarget(p common.GeoPoint) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.target = p
	}
}

// WithRange sets the initial eye distance from the target in meters.
//
// Parameters:
//   - r: distance in meters
//
// Returns:
//   - CameraControllerOption: functional option to set the range
func WithRange(r float64) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.rangeM = r
	}
}

// WithRangeLimits sets the minimum and maximum range in meters.
//
// Parameters:
//   - minRange: closest allowed distance
//   - maxRange: farthest allowed distance
//
// Returns:
//   - CameraControllerOption: functional option to set the limits
func WithRangeLimits(minRange, maxRange float64) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.minRange = minRange
		cc.maxRange = maxRange
	}
}

// WithHeading sets the initial heading in radians (0 = north).
func WithHeading(h float64) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.heading = h
	}
}

// WithPitch sets the initial pitch in radians (pi/2 = straight down).
func WithPitch(p float64) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.pitch = p
	}
}

// WithOrbitSpeed sets the heading and pitch step of the Orbit* methods in radians.
func WithOrbitSpeed(speed float64) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.orbitSpeed = speed
	}
}

// WithZoomFactor sets the range multiplier applied per Zoom step.
func WithZoomFactor(f float64) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		if f > 1 {
			cc.zoomFactor = f
		}
	}
}

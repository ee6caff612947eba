package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-globe/common"
)

// cameraControllerImpl is the single implementation of CameraController.
// Orbit methods modify range, heading and pitch and recompute the eye position in the local
// east/north/up frame of the target.
type cameraControllerImpl struct {
	mu *sync.Mutex

	target common.GeoPoint

	position  [3]float64
	targetPos [3]float64
	up        [3]float64

	rangeM  float64
	heading float64
	pitch   float64

	minRange float64
	maxRange float64
	minPitch float64

	orbitSpeed float64
	zoomFactor float64
}

var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a controller looking straight down at 0N 0E from 10,000 km.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu:         &sync.Mutex{},
		rangeM:     1e7,
		pitch:      math.Pi / 2,
		minRange:   100,
		maxRange:   1e8,
		minPitch:   0.05,
		orbitSpeed: 0.03,
		zoomFactor: 1.1,
	}
	for _, option := range options {
		option(cc)
	}
	cc.updatePosition()
	return cc
}

// updatePosition recomputes the eye from target and orbit parameters. Caller must hold the mutex.
func (cc *cameraControllerImpl) updatePosition() {
	cc.rangeM = common.Clamp(cc.rangeM, cc.minRange, cc.maxRange)
	cc.pitch = common.Clamp(cc.pitch, cc.minPitch, math.Pi/2)

	east, north, normal := localFrame(cc.target.Latitude, cc.target.Longitude)
	cc.targetPos = common.GeodeticToCartesian(cc.target.Latitude, cc.target.Longitude, cc.target.Altitude)

	sinH, cosH := math.Sincos(cc.heading)
	sinP, cosP := math.Sincos(cc.pitch)
	facing := common.Normalize(add(common.Scale(east, sinH), common.Scale(north, cosH)))

	// The eye sits behind the facing direction and above the surface.
	offset := add(common.Scale(facing, -cosP*cc.rangeM), common.Scale(normal, sinP*cc.rangeM))
	cc.position = add(cc.targetPos, offset)
	cc.up = common.Normalize(add(common.Scale(facing, sinP), common.Scale(normal, cosP)))
}

// localFrame returns the east, north and up unit vectors at a location.
func localFrame(lat, lon float64) (east, north, up [3]float64) {
	phi := lat * math.Pi / 180
	lambda := lon * math.Pi / 180
	sinPhi, cosPhi := math.Sincos(phi)
	sinLambda, cosLambda := math.Sincos(lambda)

	up = [3]float64{cosPhi * sinLambda, sinPhi, cosPhi * cosLambda}
	east = [3]float64{cosLambda, 0, -sinLambda}
	north = [3]float64{-sinPhi * sinLambda, cosPhi, -sinPhi * cosLambda}
	return east, north, up
}

func add(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// cartesianToGeodetic inverts common.GeodeticToCartesian.
func cartesianToGeodetic(p [3]float64) common.GeoPoint {
	r := math.Sqrt(common.Dot(p, p))
	if r == 0 {
		return common.GeoPoint{Altitude: -common.EarthRadius}
	}
	return common.GeoPoint{
		Latitude:  math.Asin(p[1]/r) * 180 / math.Pi,
		Longitude: math.Atan2(p[0], p[2]) * 180 / math.Pi,
		Altitude:  r - common.EarthRadius,
	}
}

func (cc *cameraControllerImpl) Target() common.GeoPoint {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *cameraControllerImpl) SetTarget(lat, lon, alt float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = common.GeoPoint{Latitude: common.Clamp(lat, -90, 90), Longitude: lon, Altitude: alt}
	cc.updatePosition()
}

func (cc *cameraControllerImpl) GoTo(p common.GeoPoint) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = common.GeoPoint{Latitude: common.Clamp(p.Latitude, -90, 90), Longitude: p.Longitude}
	cc.pitch = math.Pi / 2
	cc.rangeM = p.Altitude
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Position() [3]float64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *cameraControllerImpl) TargetPosition() [3]float64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.targetPos
}

func (cc *cameraControllerImpl) Up() [3]float64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.up
}

func (cc *cameraControllerImpl) Eye() common.GeoPoint {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cartesianToGeodetic(cc.position)
}

// --- orbitCameraController implementation ---

func (cc *cameraControllerImpl) OrbitLeft() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.heading -= cc.orbitSpeed
	cc.updatePosition()
}

func (cc *cameraControllerImpl) OrbitRight() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.heading += cc.orbitSpeed
	cc.updatePosition()
}

func (cc *cameraControllerImpl) OrbitUp() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pitch += cc.orbitSpeed
	cc.updatePosition()
}

func (cc *cameraControllerImpl) OrbitDown() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pitch -= cc.orbitSpeed
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Zoom(delta float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.rangeM /= math.Pow(cc.zoomFactor, delta)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Range() float64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.rangeM
}

func (cc *cameraControllerImpl) SetRange(r float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.rangeM = r
	cc.updatePosition()
}

func (cc *cameraControllerImpl) MinRange() float64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.minRange
}

func (cc *cameraControllerImpl) MaxRange() float64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.maxRange
}

func (cc *cameraControllerImpl) Heading() float64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.heading
}

func (cc *cameraControllerImpl) SetHeading(h float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.heading = h
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Pitch() float64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.pitch
}

func (cc *cameraControllerImpl) SetPitch(p float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pitch = p
	cc.updatePosition()
}

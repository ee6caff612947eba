// Package camera holds the globe camera, its orbit controller and the navigator that frames
// geographic sectors.
package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-globe/common"
)

type cameraImpl struct {
	mu *sync.Mutex

	fov    float64
	aspect float64
	near   float64
	far    float64

	// fixedClip disables near/far derivation from the eye altitude.
	fixedClip bool

	viewMatrix           [16]float64
	projectionMatrix     [16]float64
	viewProjectionMatrix [16]float64
	frustum              common.Frustum

	controller CameraController
}

// Camera defines the interface for the globe camera.
// The camera holds perspective settings and computes view/projection matrices
// from an attached CameraController via Update().
type Camera interface {
	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float64: field of view in radians
	Fov() float64

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float64: the aspect ratio
	Aspect() float64

	// Near returns the near clipping plane distance in meters.
	//
	// Returns:
	//   - float64: near plane distance
	Near() float64

	// Far returns the far clipping plane distance in meters.
	//
	// Returns:
	//   - float64: far plane distance
	Far() float64

	// ViewMatrix returns the current 4x4 view matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float64: the view matrix
	ViewMatrix() [16]float64

	// ProjectionMatrix returns the current 4x4 projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float64: the projection matrix
	ProjectionMatrix() [16]float64

	// ViewProjectionMatrix returns the current combined view-projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float64: the combined view-projection matrix
	ViewProjectionMatrix() [16]float64

	// Frustum returns the view frustum extracted from the current view-projection matrix.
	//
	// Returns:
	//   - common.Frustum: the frustum planes
	Frustum() common.Frustum

	// Visible reports whether a geographic point is inside the view frustum and on the
	// near side of the globe's horizon.
	//
	// Parameters:
	//   - lat, lon: location in degrees
	//   - alt: altitude in meters
	//
	// Returns:
	//   - bool: true if the point can be seen
	Visible(lat, lon, alt float64) bool

	// Controller returns the attached CameraController.
	// Returns nil if no controller is attached.
	//
	// Returns:
	//   - CameraController: the attached controller or nil
	Controller() CameraController

	// Update reads the eye, target and up vector from the controller and recomputes matrices.
	// If no controller is attached, this method does nothing.
	Update()

	// SetFov sets the field of view in radians and recomputes matrices.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float64)

	// SetAspect sets the aspect ratio (width / height) and recomputes matrices.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float64)

	// SetClip fixes the near and far clipping distances, disabling automatic clipping.
	//
	// Parameters:
	//   - near: near plane distance
	//   - far: far plane distance
	SetClip(near, far float64)

	// SetController attaches a CameraController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with a 45 degree field of view and automatic clipping planes.
// A controller must be attached via SetController or WithController before matrices are valid.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		fov:    45.0 * (math.Pi / 180.0),
		aspect: 1.0,
		near:   1,
		far:    2 * common.EarthRadius,
	}
	common.Identity(c.viewMatrix[:])
	common.Identity(c.projectionMatrix[:])
	common.Identity(c.viewProjectionMatrix[:])
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Fov() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() [16]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustum
}

func (c *cameraImpl) Visible(lat, lon, alt float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return false
	}
	p := common.GeodeticToCartesian(lat, lon, alt)
	if !c.frustum.ContainsPoint(p) {
		return false
	}
	// Points whose outward normal faces away from the eye are behind the horizon.
	eye := c.controller.Position()
	return common.Dot(common.Sub(eye, p), p) >= 0
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetClip(near, far float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near, c.far = near, far
	c.fixedClip = true
	c.updateMatrices()
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateMatrices()
}

// updateMatrices recalculates the view, projection and view-projection matrices and the frustum.
// This is a no-op when the controller is nil. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	if c.controller == nil {
		return
	}

	eye := c.controller.Position()
	if !c.fixedClip {
		c.near, c.far = clipDistances(c.controller.Range(), c.controller.Eye().Altitude)
	}

	common.LookAt(c.viewMatrix[:], eye, c.controller.TargetPosition(), c.controller.Up())
	common.Perspective(c.projectionMatrix[:], c.fov, c.aspect, c.near, c.far)
	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])
	c.frustum = common.ExtractFrustumFromMatrix(c.viewProjectionMatrix[:])
}

// clipDistances derives clipping planes that keep the whole visible hemisphere between near and far.
func clipDistances(rangeM, altitude float64) (near, far float64) {
	near = math.Max(1, rangeM*0.1)
	far = common.EarthRadius + math.Max(altitude, 0) + common.EarthRadius
	return near, far
}

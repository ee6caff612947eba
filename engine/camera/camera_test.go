package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var craterLake = common.MustSector(42.8, 43.0, -122.2, -122.0)

func TestCameraController(t *testing.T) {
	t.Parallel()

	t.Run("go to looks straight down", func(t *testing.T) {
		t.Parallel()
		cc := NewCameraController()
		cc.GoTo(common.GeoPoint{Latitude: 42.92, Longitude: -122.10, Altitude: 25000})

		eye := cc.Eye()
		assert.InDelta(t, 42.92, eye.Latitude, 1e-6)
		assert.InDelta(t, -122.10, eye.Longitude, 1e-6)
		assert.InDelta(t, 25000, eye.Altitude, 1e-3)
		assert.InDelta(t, math.Pi/2, cc.Pitch(), 1e-12)
		assert.Equal(t, 0.0, cc.Target().Altitude)
	})

	t.Run("range and pitch are clamped", func(t *testing.T) {
		t.Parallel()
		cc := NewCameraController(WithRangeLimits(100, 1e6))

		cc.SetRange(1)
		assert.Equal(t, 100.0, cc.Range())
		cc.SetRange(1e9)
		assert.Equal(t, 1e6, cc.Range())

		cc.SetPitch(10)
		assert.Equal(t, math.Pi/2, cc.Pitch())
		cc.SetPitch(-1)
		assert.Equal(t, 0.05, cc.Pitch())
	})

	t.Run("zoom scales range", func(t *testing.T) {
		t.Parallel()
		cc := NewCameraController(WithRange(11000), WithZoomFactor(1.1))
		cc.Zoom(1)
		assert.InDelta(t, 10000, cc.Range(), 1e-6)
		cc.Zoom(-2)
		assert.InDelta(t, 12100, cc.Range(), 1e-6)
	})

	t.Run("orbit steps heading and pitch", func(t *testing.T) {
		t.Parallel()
		cc := NewCameraController(WithOrbitSpeed(0.1), WithPitch(1))
		cc.OrbitRight()
		cc.OrbitRight()
		cc.OrbitLeft()
		assert.InDelta(t, 0.1, cc.Heading(), 1e-12)
		cc.OrbitDown()
		assert.InDelta(t, 0.9, cc.Pitch(), 1e-12)
		cc.OrbitUp()
		assert.InDelta(t, 1.0, cc.Pitch(), 1e-12)
	})

	t.Run("up is orthogonal to view direction", func(t *testing.T) {
		t.Parallel()
		cc := NewCameraController(
			WithTarget(common.GeoPoint{Latitude: 30, Longitude: 60}),
			WithRange(50000),
			WithPitch(0.6),
			WithHeading(1.2),
		)
		dir := common.Normalize(common.Sub(cc.TargetPosition(), cc.Position()))
		up := cc.Up()
		assert.InDelta(t, 0, common.Dot(dir, up), 1e-9)
		assert.InDelta(t, 1, common.Dot(up, up), 1e-9)

		dist := common.Sub(cc.Position(), cc.TargetPosition())
		assert.InDelta(t, 50000, math.Sqrt(common.Dot(dist, dist)), 1e-6)
	})

	t.Run("eye is above target at low pitch", func(t *testing.T) {
		t.Parallel()
		cc := NewCameraController(WithTarget(common.GeoPoint{Latitude: 10, Longitude: 10}), WithRange(1000), WithPitch(0.3))
		assert.Greater(t, cc.Eye().Altitude, 0.0)
		// Facing north, so the eye sits south of the target.
		assert.Less(t, cc.Eye().Latitude, 10.0)
	})
}

func TestCamera(t *testing.T) {
	t.Parallel()

	t.Run("without controller", func(t *testing.T) {
		t.Parallel()
		c := NewCamera()
		assert.Nil(t, c.Controller())
		assert.False(t, c.Visible(0, 0, 0))
		var identity [16]float64
		common.Identity(identity[:])
		assert.Equal(t, identity, c.ViewMatrix())
	})

	t.Run("automatic clip follows range", func(t *testing.T) {
		t.Parallel()
		cc := NewCameraController(WithRange(20000))
		c := NewCamera(WithController(cc))
		assert.InDelta(t, 2000, c.Near(), 1e-9)
		assert.InDelta(t, 2*common.EarthRadius+20000, c.Far(), 1e-3)

		cc.SetRange(5)
		c.Update()
		assert.Equal(t, 100.0, cc.Range())
		assert.InDelta(t, 10, c.Near(), 1e-9)
	})

	t.Run("fixed clip", func(t *testing.T) {
		t.Parallel()
		c := NewCamera(WithController(NewCameraController()), WithClip(10, 1000))
		assert.Equal(t, 10.0, c.Near())
		assert.Equal(t, 1000.0, c.Far())

		c.SetClip(1, 2)
		c.Update()
		assert.Equal(t, 2.0, c.Far())
	})

	t.Run("visibility", func(t *testing.T) {
		t.Parallel()
		cc := NewCameraController()
		cc.GoTo(common.GeoPoint{Latitude: 0, Longitude: 0, Altitude: 10000})
		c := NewCamera(WithController(cc), WithAspect(16.0/9.0))

		assert.True(t, c.Visible(0, 0, 0))
		assert.True(t, c.Visible(0.01, 0.01, 0))
		assert.False(t, c.Visible(0, 90, 0), "beyond the limb")
		assert.False(t, c.Visible(0, 180, 0), "antipode")
		assert.False(t, c.Visible(5, 0, 0), "outside the frustum")
	})

	t.Run("fov and aspect recompute projection", func(t *testing.T) {
		t.Parallel()
		c := NewCamera(WithController(NewCameraController()))
		before := c.ProjectionMatrix()
		c.SetFov(math.Pi / 3)
		assert.NotEqual(t, before, c.ProjectionMatrix())
		assert.Equal(t, math.Pi/3, c.Fov())

		c.SetAspect(2)
		assert.Equal(t, 2.0, c.Aspect())
		vp := c.ViewProjectionMatrix()
		var want [16]float64
		p, v := c.ProjectionMatrix(), c.ViewMatrix()
		common.Mul4(want[:], p[:], v[:])
		assert.Equal(t, want, vp)
	})
}

func TestNavigator(t *testing.T) {
	t.Parallel()

	t.Run("frames sector", func(t *testing.T) {
		t.Parallel()
		cc := NewCameraController()
		cc.GoTo(common.GeoPoint{Latitude: -30, Longitude: 100, Altitude: 1000})
		c := NewCamera(WithController(cc))
		n := NewNavigator()

		require.False(t, n.Contains(c, craterLake))
		require.NoError(t, n.Frame(c, craterLake))

		assert.True(t, n.Contains(c, craterLake))
		target := cc.Target()
		assert.InDelta(t, 42.9, target.Latitude, 1e-9)
		assert.InDelta(t, -122.1, target.Longitude, 1e-9)
		assert.Less(t, cc.Range(), 200000.0)
		assert.True(t, c.Visible(42.9, -122.1, 0))
	})

	t.Run("frames large sector", func(t *testing.T) {
		t.Parallel()
		c := NewCamera(WithController(NewCameraController()))
		sector := common.MustSector(-30, 30, -40, 40)
		require.NoError(t, NewNavigator(WithFrameGrowth(1.5)).Frame(c, sector))
		assert.True(t, NewNavigator().Contains(c, sector))
	})

	t.Run("sector beyond maximum range", func(t *testing.T) {
		t.Parallel()
		c := NewCamera(WithController(NewCameraController(WithRangeLimits(100, 5000))))
		err := NewNavigator().Frame(c, craterLake)
		assert.ErrorIs(t, err, ErrFrame)
	})

	t.Run("step limit", func(t *testing.T) {
		t.Parallel()
		c := NewCamera(WithController(NewCameraController()))
		err := NewNavigator(WithMinFrameRange(100), WithMaxFrameSteps(1), WithFrameGrowth(1.01)).
			Frame(c, common.MustSector(-60, 60, -80, 80))
		assert.ErrorIs(t, err, ErrFrame)
	})

	t.Run("invalid sector", func(t *testing.T) {
		t.Parallel()
		c := NewCamera(WithController(NewCameraController()))
		err := NewNavigator().Frame(c, common.Sector{MinLat: 10, MaxLat: 5})
		assert.ErrorIs(t, err, ErrFrame)
	})

	t.Run("no controller", func(t *testing.T) {
		t.Parallel()
		n := NewNavigator()
		assert.ErrorIs(t, n.Frame(NewCamera(), craterLake), ErrFrame)
		assert.ErrorIs(t, n.GoTo(NewCamera(), common.GeoPoint{}), ErrFrame)
		assert.False(t, n.Contains(NewCamera(), craterLake))
	})

	t.Run("go to", func(t *testing.T) {
		t.Parallel()
		c := NewCamera(WithController(NewCameraController()))
		require.NoError(t, NewNavigator().GoTo(c, common.GeoPoint{Latitude: 42.92, Longitude: -122.10, Altitude: 25000}))
		assert.True(t, c.Visible(42.92, -122.10, 0))
		assert.InDelta(t, 2500, c.Near(), 1e-6)
	})
}

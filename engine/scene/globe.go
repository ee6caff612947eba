package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-globe/common"
)

// Globe is the spherical earth with exactly one root elevation model slot.
type Globe struct {
	mu        sync.RWMutex
	radius    float64
	elevation ElevationModel
}

// NewGlobe creates a Globe of radius common.EarthRadius with the given root elevation model.
func NewGlobe(model ElevationModel) *Globe {
	return &Globe{radius: common.EarthRadius, elevation: model}
}

// Radius returns the globe radius in meters.
func (g *Globe) Radius() float64 { return g.radius }

// ElevationModel returns the root elevation model.
func (g *Globe) ElevationModel() ElevationModel {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.elevation
}

// SetElevationModel replaces the root elevation model.
func (g *Globe) SetElevationModel(m ElevationModel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.elevation = m
}

// Elevation returns the surface height at a location, zero where no model answers.
func (g *Globe) Elevation(lat, lon float64) float64 {
	m := g.ElevationModel()
	if m == nil {
		return 0
	}
	if v, ok := m.Elevation(lat, lon); ok {
		return v
	}
	return 0
}

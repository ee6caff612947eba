package scene

import "github.com/Carmen-Shannon/oxy-globe/common"

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithGlobe replaces the default globe.
//
// Parameters:
//   - g: the globe
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithGlobe(g *Globe) SceneBuilderOption {
	return func(s *scene) {
		if g != nil {
			s.globe = g
		}
	}
}

// WithLayers appends initial layers in draw order.
//
// Parameters:
//   - layers: the layers to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLayers(layers ...*Layer) SceneBuilderOption {
	return func(s *scene) {
		for _, l := range layers {
			s.layers.Add(l)
		}
	}
}

// WithMarkerRoles sets which roles InsertLayer treats as markers. Defaults to common.RoleMarker.
//
// Parameters:
//   - roles: the marker roles
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithMarkerRoles(roles ...common.LayerRole) SceneBuilderOption {
	return func(s *scene) {
		if len(roles) > 0 {
			s.isMarker = IsAnyRole(roles...)
		}
	}
}

// WithOwnerCheck restricts mutations to goroutines for which isOwner returns true.
// Mutations attempted elsewhere fail with ErrCompose.
//
// Parameters:
//   - isOwner: reports whether the calling goroutine owns the scene
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithOwnerCheck(isOwner func() bool) SceneBuilderOption {
	return func(s *scene) {
		s.isOwner = isOwner
	}
}

// WithDefaultLayers appends the standard background and marker layers: stars, sky, world map and compass.
func WithDefaultLayers() SceneBuilderOption {
	return WithLayers(
		NewLayer("Stars", common.RoleBackground),
		NewLayer("Atmosphere", common.RoleBackground),
		NewLayer("World Map", common.RoleOverlay),
		NewLayer("Compass", common.RoleMarker),
	)
}

// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// EarthRadius is the radius in meters of the spherical globe used for camera and visibility math.
const EarthRadius = 6378137.0

// GeoPoint is a geographic position in degrees with an altitude in meters above the globe surface.
type GeoPoint struct {
	// Latitude in degrees, positive north.
	Latitude float64
	// Longitude in degrees, positive east.
	Longitude float64
	// Altitude in meters above the globe surface.
	Altitude float64
}

// String formats the point as "lat, lon @ alt".
func (p GeoPoint) String() string {
	return fmt.Sprintf("%.5f, %.5f @ %.0fm", p.Latitude, p.Longitude, p.Altitude)
}

// LayerRole tags a layer with its draw-order role. Roles replace type inspection when the scene
// needs to find a particular kind of layer (e.g. the compass marker).
type LayerRole int

const (
	// RoleOther is the zero role for layers with no special placement.
	RoleOther LayerRole = iota
	// RoleBackground is used by stars, sky gradient and similar full-screen backdrops.
	RoleBackground
	// RoleData is used by imagery and other georeferenced data layers.
	RoleData
	// RoleOverlay is used by screen-space overlays such as the world map or scale bar.
	RoleOverlay
	// RoleMarker is used by persistent overlay markers (compass, view controls) that must draw above imported data.
	RoleMarker
)

func (r LayerRole) String() string {
	switch r {
	case RoleBackground:
		return "background"
	case RoleData:
		return "data"
	case RoleOverlay:
		return "overlay"
	case RoleMarker:
		return "marker"
	default:
		return "other"
	}
}

// ParseLayerRole converts a role name as written by LayerRole.String back into a LayerRole.
//
// Parameters:
//   - s: the role name
//
// Returns:
//   - LayerRole: the parsed role
//   - error: error if the name is not a known role
func ParseLayerRole(s string) (LayerRole, error) {
	for _, r := range []LayerRole{RoleOther, RoleBackground, RoleData, RoleOverlay, RoleMarker} {
		if r.String() == s {
			return r, nil
		}
	}
	return RoleOther, fmt.Errorf("unknown layer role %q", s)
}

// DisplayImage holds RGBA pixel data ready for upload as a surface texture.
// It is the displayable form of a color raster, produced by the converter and owned by the layer it is attached to.
type DisplayImage struct {
	// Pixels is the RGBA pixel data, 4 bytes per pixel, row-major with row 0 at the north edge.
	Pixels []byte
	// Width is the width of the image in pixels.
	Width uint32
	// Height is the height of the image in pixels.
	Height uint32
	// Format is the GPU texture format describing Pixels. Always RGBA8Unorm for converted rasters.
	Format wgpu.TextureFormat
	// Sector is the geographic extent covered by the image.
	Sector Sector
}

// BytesPerRow returns the stride of one image row in bytes.
func (d *DisplayImage) BytesPerRow() uint32 {
	return d.Width * 4
}

// Extent returns the texture extent used when uploading the image.
func (d *DisplayImage) Extent() wgpu.Extent3D {
	return wgpu.Extent3D{
		Width:              d.Width,
		Height:             d.Height,
		DepthOrArrayLayers: 1,
	}
}

// Layout returns the buffer layout of Pixels for a queue texture write.
func (d *DisplayImage) Layout() wgpu.TextureDataLayout {
	return wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  d.BytesPerRow(),
		RowsPerImage: d.Height,
	}
}

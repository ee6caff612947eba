package common

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                           string
		minLat, maxLat, minLon, maxLon float64
		wantErr                        bool
	}{
		{name: "crater lake", minLat: 42.8, maxLat: 43.0, minLon: -122.2, maxLon: -122.0},
		{name: "whole globe", minLat: -90, maxLat: 90, minLon: -180, maxLon: 180},
		{name: "degenerate point", minLat: 10, maxLat: 10, minLon: 20, maxLon: 20},
		{name: "latitude unordered", minLat: 43, maxLat: 42, minLon: 0, maxLon: 1, wantErr: true},
		{name: "longitude unordered", minLat: 0, maxLat: 1, minLon: 5, maxLon: 4, wantErr: true},
		{name: "latitude past pole", minLat: 80, maxLat: 91, minLon: 0, maxLon: 1, wantErr: true},
		{name: "nan bound", minLat: math.NaN(), maxLat: 1, minLon: 0, maxLon: 1, wantErr: true},
		{name: "infinite bound", minLat: 0, maxLat: 1, minLon: math.Inf(-1), maxLon: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := NewSector(tt.minLat, tt.maxLat, tt.minLon, tt.maxLon)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSector)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.minLat, s.MinLat)
			assert.Equal(t, tt.maxLon, s.MaxLon)
		})
	}
}

func TestSectorGeometry(t *testing.T) {
	t.Parallel()

	a := MustSector(42.8, 43.0, -122.2, -122.0)
	b := MustSector(42.9, 43.1, -122.1, -121.9)
	far := MustSector(10, 11, 10, 11)

	t.Run("center", func(t *testing.T) {
		c := a.Center()
		assert.InDelta(t, 42.9, c.Latitude, 1e-12)
		assert.InDelta(t, -122.1, c.Longitude, 1e-12)
		assert.Zero(t, c.Altitude)
	})

	t.Run("contains includes edges", func(t *testing.T) {
		assert.True(t, a.Contains(42.8, -122.2))
		assert.True(t, a.Contains(42.9, -122.1))
		assert.False(t, a.Contains(43.01, -122.1))
	})

	t.Run("intersection", func(t *testing.T) {
		got, ok := a.Intersection(b)
		require.True(t, ok)
		assert.Equal(t, Sector{MinLat: 42.9, MaxLat: 43.0, MinLon: -122.1, MaxLon: -122.0}, got)

		_, ok = a.Intersection(far)
		assert.False(t, ok)
		assert.False(t, a.Intersects(far))
	})

	t.Run("union", func(t *testing.T) {
		u := a.Union(b)
		assert.Equal(t, Sector{MinLat: 42.8, MaxLat: 43.1, MinLon: -122.2, MaxLon: -121.9}, u)
		assert.True(t, u.ContainsSector(a))
		assert.True(t, u.ContainsSector(b))
		assert.False(t, a.ContainsSector(b))
	})

	t.Run("corners", func(t *testing.T) {
		c := a.Corners()
		assert.Equal(t, GeoPoint{Latitude: 42.8, Longitude: -122.2}, c[0])
		assert.Equal(t, GeoPoint{Latitude: 43.0, Longitude: -122.0}, c[2])
	})

	t.Run("orb round trip", func(t *testing.T) {
		got, err := SectorFromBound(a.Bound())
		require.NoError(t, err)
		assert.Equal(t, a, got)

		_, err = SectorFromBound(orb.Bound{Min: orb.Point{0, 95}, Max: orb.Point{1, 96}})
		assert.ErrorIs(t, err, ErrInvalidSector)
	})

	t.Run("string", func(t *testing.T) {
		assert.Equal(t, "[42.8000, 43.0000] x [-122.2000, -122.0000]", a.String())
	})

	t.Run("empty", func(t *testing.T) {
		assert.True(t, MustSector(1, 1, 0, 2).IsEmpty())
		assert.False(t, a.IsEmpty())
	})
}

func TestParseLayerRole(t *testing.T) {
	t.Parallel()

	for _, r := range []LayerRole{RoleOther, RoleBackground, RoleData, RoleOverlay, RoleMarker} {
		got, err := ParseLayerRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err := ParseLayerRole("compass")
	assert.Error(t, err)
}

func TestSectorFootprint(t *testing.T) {
	t.Parallel()

	s := MustSector(42.8, 43.0, -122.2, -122.0)
	f := s.Footprint(map[string]any{"name": "crater-dem"})

	poly, ok := f.Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 1)
	assert.Equal(t, s.Bound(), poly.Bound())
	assert.Equal(t, "crater-dem", f.Properties.MustString("name"))

	data, err := f.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"Polygon"`)
}

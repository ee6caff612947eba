package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	world      = common.MustSector(-90, 90, -180, 180)
	craterLake = common.MustSector(42.8, 43.0, -122.2, -122.0)
)

func names(ll *LayerList) []string { return ll.Names() }

func TestInsertLayerBeforeMarker(t *testing.T) {
	t.Parallel()

	isMarker := IsRole(common.RoleMarker)

	t.Run("before the compass", func(t *testing.T) {
		compass := NewLayer("Compass", common.RoleMarker)
		ll := NewLayerList(NewLayer("Stars", common.RoleBackground), NewLayer("Sky", common.RoleBackground), compass)

		idx, err := InsertLayerBeforeMarker(ll, NewLayer("Imagery", common.RoleData), isMarker)
		require.NoError(t, err)
		assert.Equal(t, 2, idx)
		assert.Equal(t, []string{"Stars", "Sky", "Imagery", "Compass"}, names(ll))
		assert.Less(t, idx, ll.Index(compass))
	})

	t.Run("no marker inserts first", func(t *testing.T) {
		ll := NewLayerList(NewLayer("Stars", common.RoleBackground), NewLayer("Sky", common.RoleBackground))

		idx, err := InsertLayerBeforeMarker(ll, NewLayer("Imagery", common.RoleData), isMarker)
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
		assert.Equal(t, []string{"Imagery", "Stars", "Sky"}, names(ll))
	})

	t.Run("empty list", func(t *testing.T) {
		ll := NewLayerList()
		idx, err := InsertLayerBeforeMarker(ll, NewLayer("Imagery", common.RoleData), isMarker)
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
		assert.Equal(t, 1, ll.Len())
	})

	t.Run("last marker wins", func(t *testing.T) {
		ll := NewLayerList(
			NewLayer("Controls", common.RoleMarker),
			NewLayer("Stars", common.RoleBackground),
			NewLayer("Compass", common.RoleMarker),
		)
		idx, err := InsertLayerBeforeMarker(ll, NewLayer("Imagery", common.RoleData), isMarker)
		require.NoError(t, err)
		assert.Equal(t, 2, idx)
		assert.Equal(t, []string{"Controls", "Stars", "Imagery", "Compass"}, names(ll))
	})

	t.Run("adjacent markers stay above", func(t *testing.T) {
		ll := NewLayerList(
			NewLayer("Stars", common.RoleBackground),
			NewLayer("Compass", common.RoleMarker),
			NewLayer("Controls", common.RoleMarker),
		)
		first, err := InsertLayerBeforeMarker(ll, NewLayer("A", common.RoleData), isMarker)
		require.NoError(t, err)
		second, err := InsertLayerBeforeMarker(ll, NewLayer("B", common.RoleData), isMarker)
		require.NoError(t, err)
		assert.Equal(t, 2, first)
		assert.Equal(t, 3, second)
		assert.Equal(t, []string{"Stars", "Compass", "A", "B", "Controls"}, names(ll))
	})

	t.Run("rejections leave the list unchanged", func(t *testing.T) {
		dup := NewLayer("Imagery", common.RoleData)
		ll := NewLayerList(NewLayer("Stars", common.RoleBackground), dup, NewLayer("Compass", common.RoleMarker))
		before := ll.Snapshot()

		_, err := InsertLayerBeforeMarker(ll, dup, isMarker)
		assert.ErrorIs(t, err, ErrCompose)
		_, err = InsertLayerBeforeMarker(ll, nil, isMarker)
		assert.ErrorIs(t, err, ErrCompose)
		_, err = InsertLayerBeforeMarker(ll, NewLayer("X", common.RoleData), nil)
		assert.ErrorIs(t, err, ErrCompose)

		assert.Empty(t, cmp.Diff(before, ll.Snapshot()))
	})
}

func TestMergeElevation(t *testing.T) {
	t.Parallel()

	t.Run("leaf root becomes composite of two", func(t *testing.T) {
		base := NewUniformLeaf("Earth", world, 0)
		g := NewGlobe(base)
		imported := NewUniformLeaf("crater lake", craterLake, 2000)

		require.NoError(t, MergeElevation(g, imported))

		c, ok := g.ElevationModel().(*Composite)
		require.True(t, ok)
		models := c.Models()
		require.Len(t, models, 2)
		assert.Same(t, base, models[0])
		assert.Equal(t, craterLake, models[1].Sector())
	})

	t.Run("repeated merges append without dedup", func(t *testing.T) {
		g := NewGlobe(NewComposite("root", NewUniformLeaf("Earth", world, 0)))
		imported := NewUniformLeaf("crater lake", craterLake, 2000)

		for i := 0; i < 3; i++ {
			before := g.ElevationModel().(*Composite).Len()
			require.NoError(t, MergeElevation(g, imported))
			assert.Equal(t, before+1, g.ElevationModel().(*Composite).Len())
		}
		assert.Equal(t, "root", g.ElevationModel().Name())
	})

	t.Run("empty slot", func(t *testing.T) {
		g := NewGlobe(nil)
		require.NoError(t, MergeElevation(g, NewUniformLeaf("a", craterLake, 1)))
		assert.Equal(t, 1, g.ElevationModel().(*Composite).Len())
	})

	t.Run("rejections leave the globe unchanged", func(t *testing.T) {
		g := NewGlobe(NewUniformLeaf("Earth", world, 0))
		before := Summarize(g.ElevationModel())

		assert.ErrorIs(t, MergeElevation(g, nil), ErrCompose)
		assert.ErrorIs(t, MergeElevation(nil, NewUniformLeaf("a", craterLake, 1)), ErrCompose)
		bad := NewUniformLeaf("bad", common.Sector{MinLat: 10, MaxLat: 5}, 1)
		assert.ErrorIs(t, MergeElevation(g, bad), ErrCompose)

		assert.Empty(t, cmp.Diff(before, Summarize(g.ElevationModel())))
	})
}

func TestElevationModels(t *testing.T) {
	t.Parallel()

	t.Run("later contributor wins on overlap", func(t *testing.T) {
		c := NewComposite("root", NewUniformLeaf("Earth", world, 0))
		c.Add(NewUniformLeaf("first", craterLake, 100))
		c.Add(NewUniformLeaf("second", craterLake, 200))

		v, ok := c.Elevation(42.9, -122.1)
		require.True(t, ok)
		assert.Equal(t, 200.0, v)

		v, ok = c.Elevation(0, 0)
		require.True(t, ok)
		assert.Equal(t, 0.0, v)

		lo, hi := c.MinMax()
		assert.Equal(t, 0.0, lo)
		assert.Equal(t, 200.0, hi)
		assert.Equal(t, world, c.Sector())
	})

	t.Run("leaf from rasters interpolates and skips no-data", func(t *testing.T) {
		r, err := raster.NewElevationRaster(2, 2, craterLake, []float64{100, 200, 300, raster.DefaultNoData})
		require.NoError(t, err)

		leaf, err := LeafFromRasters("crater lake", []*raster.DataRaster{r})
		require.NoError(t, err)
		r.Release()

		v, ok := leaf.Elevation(42.95, -122.15)
		require.True(t, ok, "samples are copied before release")
		assert.Equal(t, 100.0, v)

		_, ok = leaf.Elevation(42.85, -122.05)
		assert.False(t, ok)

		_, ok = leaf.Elevation(10, 10)
		assert.False(t, ok)

		lo, hi := leaf.MinMax()
		assert.Equal(t, 100.0, lo)
		assert.Equal(t, 300.0, hi)
	})

	t.Run("leaf needs elevation tiles", func(t *testing.T) {
		_, err := NewLeaf("empty")
		assert.Error(t, err)

		img, err := raster.NewElevationRaster(1, 1, craterLake, []float64{1})
		require.NoError(t, err)
		img.Format = raster.PixelFormatColor
		_, err = LeafFromRasters("color", []*raster.DataRaster{img})
		assert.Error(t, err)
	})
}

func TestScene(t *testing.T) {
	t.Parallel()

	t.Run("insert uses marker roles and notifies", func(t *testing.T) {
		s := NewScene("demo", WithDefaultLayers())
		var changes []Change
		s.OnChange(func(c Change) { changes = append(changes, c) })

		idx, err := s.InsertLayer(NewLayer("Imagery", common.RoleData))
		require.NoError(t, err)
		assert.Equal(t, 3, idx)
		assert.Equal(t, []string{"Stars", "Atmosphere", "World Map", "Imagery", "Compass"}, s.LayerList().Names())
		assert.Equal(t, uint64(1), s.Revision())
		require.Len(t, changes, 1)
		assert.Equal(t, Change{Revision: 1, Kind: ChangeLayerInserted, Name: "Imagery"}, changes[0])
	})

	t.Run("custom marker roles", func(t *testing.T) {
		s := NewScene("demo", WithDefaultLayers(), WithMarkerRoles(common.RoleOverlay, common.RoleMarker))
		idx, err := s.InsertLayer(NewLayer("Imagery", common.RoleData))
		require.NoError(t, err)
		assert.Equal(t, 3, idx)
	})

	t.Run("owner check rejects foreign goroutines", func(t *testing.T) {
		owner := false
		s := NewScene("demo", WithDefaultLayers(), WithOwnerCheck(func() bool { return owner }))
		layers := s.Layers()
		elevation := Summarize(s.Globe().ElevationModel())

		_, err := s.InsertLayer(NewLayer("Imagery", common.RoleData))
		assert.ErrorIs(t, err, ErrCompose)
		assert.ErrorIs(t, s.MergeElevation(NewUniformLeaf("a", craterLake, 1)), ErrCompose)

		assert.Empty(t, cmp.Diff(layers, s.Layers()))
		assert.Empty(t, cmp.Diff(elevation, Summarize(s.Globe().ElevationModel())))
		assert.Zero(t, s.Revision())

		owner = true
		require.NoError(t, s.MergeElevation(NewUniformLeaf("a", craterLake, 1)))
		assert.Equal(t, uint64(1), s.Revision())
	})

	t.Run("dirty flag", func(t *testing.T) {
		s := NewScene("demo")
		assert.False(t, s.Dirty())
		s.MarkDirty()
		assert.True(t, s.Dirty())
		s.ClearDirty()
		assert.False(t, s.Dirty())
	})

	t.Run("toggle", func(t *testing.T) {
		s := NewScene("demo", WithDefaultLayers())
		require.NoError(t, s.SetLayerEnabled("Stars", false))
		assert.False(t, s.LayerList().ByName("Stars").Enabled)
		assert.ErrorIs(t, s.SetLayerEnabled("Nope", true), ErrCompose)
	})

	t.Run("group layers", func(t *testing.T) {
		s := NewScene("demo",
			WithLayers(
				NewLayer("Stars", common.RoleBackground),
				NewLayer("NASA Blue Marble Image", common.RoleData),
				NewLayer("USGS Urban Area Ortho", common.RoleData),
				NewLayer("Compass", common.RoleMarker),
			),
		)
		groups := s.GroupLayers()
		require.Len(t, groups, 3)
		assert.Equal(t, []LayerEntry{{Label: "Blue Marble Image", LayerName: "NASA Blue Marble Image", Enabled: true, HasProperties: true}}, groups[0].Entries)
		assert.Equal(t, "Urban Area Ortho", groups[1].Entries[0].Label)
		assert.Equal(t, MiscGroup, groups[2].Name)
		assert.Equal(t, []LayerEntry{
			{Label: "Stars", LayerName: "Stars", Enabled: true},
			{Label: "Compass", LayerName: "Compass", Enabled: true},
		}, groups[2].Entries)
	})
}

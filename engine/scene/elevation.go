package scene

import (
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
)

// ElevationModel answers height queries over a geographic sector.
// A model is either a Leaf backed by sample grids or a Composite of other models.
type ElevationModel interface {
	// Name returns the model's identifier.
	Name() string

	// Sector returns the geographic coverage of the model.
	Sector() common.Sector

	// Elevation returns the height in meters at a location.
	//
	// Parameters:
	//   - lat, lon: the location in degrees
	//
	// Returns:
	//   - float64: height in meters
	//   - bool: false if the model has no valid sample at the location
	Elevation(lat, lon float64) (float64, bool)

	// MinMax returns the lowest and highest valid heights in the model.
	//
	// Returns:
	//   - float64: minimum height in meters
	//   - float64: maximum height in meters
	MinMax() (float64, float64)
}

// ElevationTile is one north-up sample grid of a Leaf.
type ElevationTile struct {
	Sector  common.Sector
	Width   int
	Height  int
	Samples []float64
	NoData  float64
}

// Leaf is an elevation source made of one or more tiles. Where tiles overlap, the later tile wins.
type Leaf struct {
	name   string
	sector common.Sector
	tiles  []ElevationTile
	lo, hi float64
}

var _ ElevationModel = &Leaf{}

// NewLeaf creates a Leaf from tiles. The Leaf sector is the union of the tile sectors.
//
// Parameters:
//   - name: the model identifier
//   - tiles: at least one tile with consistent dimensions
//
// Returns:
//   - *Leaf: the model
//   - error: error if no tiles are given or a tile is malformed
func NewLeaf(name string, tiles ...ElevationTile) (*Leaf, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("elevation model %q has no tiles", name)
	}
	l := &Leaf{name: name, tiles: tiles, lo: math.Inf(1), hi: math.Inf(-1)}
	for i, t := range tiles {
		if err := t.Sector.Validate(); err != nil {
			return nil, fmt.Errorf("elevation model %q tile %d: %w", name, i, err)
		}
		if t.Width <= 0 || t.Height <= 0 || len(t.Samples) != t.Width*t.Height {
			return nil, fmt.Errorf("elevation model %q tile %d: %dx%d grid with %d samples", name, i, t.Width, t.Height, len(t.Samples))
		}
		if i == 0 {
			l.sector = t.Sector
		} else {
			l.sector = l.sector.Union(t.Sector)
		}
		if lo, hi, ok := raster.SampleRange(t.Samples, t.NoData); ok {
			l.lo, l.hi = math.Min(l.lo, lo), math.Max(l.hi, hi)
		}
	}
	if math.IsInf(l.lo, 1) {
		l.lo, l.hi = 0, 0
	}
	return l, nil
}

// NewUniformLeaf creates a Leaf with a constant height over sector.
func NewUniformLeaf(name string, sector common.Sector, height float64) *Leaf {
	return &Leaf{
		name:   name,
		sector: sector,
		tiles:  []ElevationTile{{Sector: sector, Width: 1, Height: 1, Samples: []float64{height}, NoData: math.NaN()}},
		lo:     height,
		hi:     height,
	}
}

// LeafFromRasters copies the samples of elevation rasters into a new Leaf, one tile per raster.
// The rasters are not retained and may be released afterwards.
//
// Parameters:
//   - name: the model identifier
//   - rasters: geographic elevation rasters
//
// Returns:
//   - *Leaf: the model
//   - error: error if a raster is not an elevation raster or has been released
func LeafFromRasters(name string, rasters []*raster.DataRaster) (*Leaf, error) {
	tiles := make([]ElevationTile, 0, len(rasters))
	for _, r := range rasters {
		if r.Format != raster.PixelFormatElevation {
			return nil, fmt.Errorf("raster %s is a %s raster", r.Name, r.Format)
		}
		if !r.CRS.IsGeographic() {
			return nil, fmt.Errorf("raster %s is not in geographic coordinates", r.Name)
		}
		samples, err := r.Elevations()
		if err != nil {
			return nil, fmt.Errorf("raster %s: %w", r.Name, err)
		}
		tiles = append(tiles, ElevationTile{
			Sector:  r.Sector,
			Width:   r.Width,
			Height:  r.Height,
			Samples: append([]float64(nil), samples...),
			NoData:  r.NoData,
		})
	}
	return NewLeaf(name, tiles...)
}

func (l *Leaf) Name() string { return l.name }

func (l *Leaf) Sector() common.Sector { return l.sector }

func (l *Leaf) MinMax() (float64, float64) { return l.lo, l.hi }

// Tiles returns the number of tiles backing the Leaf.
func (l *Leaf) Tiles() int { return len(l.tiles) }

func (l *Leaf) Elevation(lat, lon float64) (float64, bool) {
	for i := len(l.tiles) - 1; i >= 0; i-- {
		if v, ok := l.tiles[i].sample(lat, lon); ok {
			return v, true
		}
	}
	return 0, false
}

// sample bilinearly interpolates the tile at a location. Cells touching a no-data sample fall back
// to the nearest sample.
func (t *ElevationTile) sample(lat, lon float64) (float64, bool) {
	if !t.Sector.Contains(lat, lon) {
		return 0, false
	}
	px := (lon-t.Sector.MinLon)/t.Sector.DeltaLon()*float64(t.Width) - 0.5
	py := (t.Sector.MaxLat-lat)/t.Sector.DeltaLat()*float64(t.Height) - 0.5
	if t.Sector.DeltaLon() == 0 {
		px = 0
	}
	if t.Sector.DeltaLat() == 0 {
		py = 0
	}
	px = common.Clamp(px, 0, float64(t.Width-1))
	py = common.Clamp(py, 0, float64(t.Height-1))

	at := func(x, y int) float64 { return t.Samples[y*t.Width+x] }
	valid := func(v float64) bool { return v != t.NoData && !math.IsNaN(v) }

	x0, y0 := int(px), int(py)
	x1, y1 := min(x0+1, t.Width-1), min(y0+1, t.Height-1)
	fx, fy := px-float64(x0), py-float64(y0)
	v00, v10, v01, v11 := at(x0, y0), at(x1, y0), at(x0, y1), at(x1, y1)
	if !valid(v00) || !valid(v10) || !valid(v01) || !valid(v11) {
		v := at(int(math.Round(px)), int(math.Round(py)))
		return v, valid(v)
	}
	return (v00*(1-fx)+v10*fx)*(1-fy) + (v01*(1-fx)+v11*fx)*fy, true
}

// Composite is an ordered aggregate of elevation models. Queries consult contributors from last to
// first, so later contributors take priority where they overlap earlier ones. Contributors are only
// ever appended.
type Composite struct {
	mu     sync.RWMutex
	name   string
	models []ElevationModel
}

var _ ElevationModel = &Composite{}

// NewComposite creates a Composite holding models in order.
func NewComposite(name string, models ...ElevationModel) *Composite {
	return &Composite{name: name, models: append([]ElevationModel(nil), models...)}
}

func (c *Composite) Name() string { return c.name }

// Add appends m as the last contributor. No deduplication is performed.
func (c *Composite) Add(m ElevationModel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = append(c.models, m)
}

// Models returns a snapshot of the contributors in order.
func (c *Composite) Models() []ElevationModel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ElevationModel(nil), c.models...)
}

// Len returns the number of contributors.
func (c *Composite) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

func (c *Composite) Sector() common.Sector {
	models := c.Models()
	if len(models) == 0 {
		return common.Sector{}
	}
	s := models[0].Sector()
	for _, m := range models[1:] {
		s = s.Union(m.Sector())
	}
	return s
}

func (c *Composite) Elevation(lat, lon float64) (float64, bool) {
	models := c.Models()
	for i := len(models) - 1; i >= 0; i-- {
		if v, ok := models[i].Elevation(lat, lon); ok {
			return v, true
		}
	}
	return 0, false
}

func (c *Composite) MinMax() (float64, float64) {
	models := c.Models()
	if len(models) == 0 {
		return 0, 0
	}
	lo, hi := models[0].MinMax()
	for _, m := range models[1:] {
		l, h := m.MinMax()
		lo, hi = math.Min(lo, l), math.Max(hi, h)
	}
	return lo, hi
}

// ElevationSummary is a by-value description of an elevation model tree, used to compare scene state.
type ElevationSummary struct {
	Name         string
	Sector       common.Sector
	Tiles        int
	Contributors []ElevationSummary
}

// Summarize describes m and, for composites, every contributor in order.
func Summarize(m ElevationModel) ElevationSummary {
	if m == nil {
		return ElevationSummary{}
	}
	s := ElevationSummary{Name: m.Name(), Sector: m.Sector()}
	switch v := m.(type) {
	case *Leaf:
		s.Tiles = v.Tiles()
	case *Composite:
		for _, c := range v.Models() {
			s.Contributors = append(s.Contributors, Summarize(c))
		}
	}
	return s
}

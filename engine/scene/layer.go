package scene

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-globe/common"
)

// Layer is one entry of the draw-ordered layer list.
type Layer struct {
	// Name identifies the layer and is shown by shells.
	Name string
	// Enabled layers are drawn.
	Enabled bool
	// Pickable layers take part in picking.
	Pickable bool
	// Role fixes the layer's draw-order placement relative to imported data.
	Role common.LayerRole
	// Sector is the geographic coverage, nil for layers covering the whole globe or the screen.
	Sector *common.Sector
	// Opacity in [0, 1].
	Opacity float64
	// Image is the surface image draped over Sector, nil for layers without one.
	Image *common.DisplayImage
}

// NewLayer creates an enabled, pickable, opaque layer.
func NewLayer(name string, role common.LayerRole) *Layer {
	return &Layer{Name: name, Enabled: true, Pickable: true, Role: role, Opacity: 1}
}

// NewSurfaceImageLayer creates a data-role layer draping img over its sector.
//
// Parameters:
//   - name: the layer name
//   - img: the display image; its sector becomes the layer sector
//
// Returns:
//   - *Layer: the layer
func NewSurfaceImageLayer(name string, img *common.DisplayImage) *Layer {
	l := NewLayer(name, common.RoleData)
	l.Image = img
	if img != nil {
		s := img.Sector
		l.Sector = &s
	}
	return l
}

// IsRole returns a predicate matching layers carrying role.
func IsRole(role common.LayerRole) func(*Layer) bool {
	return func(l *Layer) bool {
		return l != nil && l.Role == role
	}
}

// IsAnyRole returns a predicate matching layers carrying any of roles.
func IsAnyRole(roles ...common.LayerRole) func(*Layer) bool {
	return func(l *Layer) bool {
		if l == nil {
			return false
		}
		for _, r := range roles {
			if l.Role == r {
				return true
			}
		}
		return false
	}
}

// LayerList is the ordered sequence of layers, drawn first to last.
type LayerList struct {
	mu     sync.RWMutex
	layers []*Layer
}

// NewLayerList creates a list holding layers in order.
func NewLayerList(layers ...*Layer) *LayerList {
	return &LayerList{layers: append([]*Layer(nil), layers...)}
}

// Len returns the number of layers.
func (ll *LayerList) Len() int {
	ll.mu.RLock()
	defer ll.mu.RUnlock()
	return len(ll.layers)
}

// At returns the layer at index i.
func (ll *LayerList) At(i int) *Layer {
	ll.mu.RLock()
	defer ll.mu.RUnlock()
	return ll.layers[i]
}

// Insert places l at index i, shifting the layer at i and everything after it one position later.
//
// Parameters:
//   - i: the target index in [0, Len()]
//   - l: the layer
//
// Returns:
//   - error: error if i is out of range
func (ll *LayerList) Insert(i int, l *Layer) error {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	if i < 0 || i > len(ll.layers) {
		return fmt.Errorf("insert index %d out of range [0, %d]", i, len(ll.layers))
	}
	ll.layers = append(ll.layers, nil)
	copy(ll.layers[i+1:], ll.layers[i:])
	ll.layers[i] = l
	return nil
}

// Add appends l at the end of the list.
func (ll *LayerList) Add(l *Layer) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.layers = append(ll.layers, l)
}

// Index returns the position of l, or -1.
func (ll *LayerList) Index(l *Layer) int {
	ll.mu.RLock()
	defer ll.mu.RUnlock()
	for i, cur := range ll.layers {
		if cur == l {
			return i
		}
	}
	return -1
}

// ByName returns the first layer named name, or nil.
func (ll *LayerList) ByName(name string) *Layer {
	ll.mu.RLock()
	defer ll.mu.RUnlock()
	for _, l := range ll.layers {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// Layers returns the layer pointers in order.
func (ll *LayerList) Layers() []*Layer {
	ll.mu.RLock()
	defer ll.mu.RUnlock()
	return append([]*Layer(nil), ll.layers...)
}

// Snapshot returns copies of the layers in order.
func (ll *LayerList) Snapshot() []Layer {
	ll.mu.RLock()
	defer ll.mu.RUnlock()
	out := make([]Layer, len(ll.layers))
	for i, l := range ll.layers {
		out[i] = *l
	}
	return out
}

// Names returns the layer names in order.
func (ll *LayerList) Names() []string {
	ll.mu.RLock()
	defer ll.mu.RUnlock()
	out := make([]string, len(ll.layers))
	for i, l := range ll.layers {
		out[i] = l.Name
	}
	return out
}

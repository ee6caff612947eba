package scene

import (
	"errors"
	"fmt"
)

// ErrCompose is returned when a scene mutation is rejected. The scene is left unchanged.
var ErrCompose = errors.New("scene composition failed")

// CompositeName is the name given to the composite created when a leaf root is first merged into.
const CompositeName = "Composite Elevation"

// MergeElevation adds m to the globe's elevation. A composite root gets m appended as its last
// contributor; any other root is replaced by a new composite holding the old root followed by m.
// Repeated merges of the same model accumulate duplicate contributors.
//
// Parameters:
//   - g: the globe
//   - m: the model to merge
//
// Returns:
//   - error: ErrCompose if g or m is nil or m has an invalid sector
func MergeElevation(g *Globe, m ElevationModel) error {
	if g == nil {
		return fmt.Errorf("%w: nil globe", ErrCompose)
	}
	if m == nil {
		return fmt.Errorf("%w: nil elevation model", ErrCompose)
	}
	if err := m.Sector().Validate(); err != nil {
		return fmt.Errorf("%w: elevation model %q: %v", ErrCompose, m.Name(), err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	switch cur := g.elevation.(type) {
	case *Composite:
		cur.Add(m)
	case nil:
		g.elevation = NewComposite(CompositeName, m)
	default:
		g.elevation = NewComposite(CompositeName, cur, m)
	}
	return nil
}

// InsertLayerBeforeMarker inserts l at the index of the last layer matching isMarker, shifting that
// marker and everything after it one position later. With no match, l is inserted at index 0.
//
// Parameters:
//   - ll: the layer list
//   - l: the layer to insert
//   - isMarker: the marker predicate, typically IsRole(common.RoleMarker)
//
// Returns:
//   - int: the index l was inserted at
//   - error: ErrCompose if an argument is nil or l is already in the list
func InsertLayerBeforeMarker(ll *LayerList, l *Layer, isMarker func(*Layer) bool) (int, error) {
	if ll == nil || l == nil || isMarker == nil {
		return -1, fmt.Errorf("%w: nil layer list, layer or marker predicate", ErrCompose)
	}

	ll.mu.Lock()
	defer ll.mu.Unlock()

	idx := -1
	for i, cur := range ll.layers {
		if cur == l {
			return -1, fmt.Errorf("%w: layer %q already in list", ErrCompose, l.Name)
		}
		if isMarker(cur) {
			idx = i
		}
	}
	if idx < 0 {
		idx = 0
	}

	ll.layers = append(ll.layers, nil)
	copy(ll.layers[idx+1:], ll.layers[idx:])
	ll.layers[idx] = l
	return idx, nil
}

package scene

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/golang/glog"
)

// errNotOwner is wrapped into ErrCompose when a mutation is attempted off the owner goroutine.
var errNotOwner = errors.New("mutation attempted off the owner goroutine")

// ChangeKind identifies what a scene mutation did.
type ChangeKind int

const (
	// ChangeElevationMerged is emitted after MergeElevation.
	ChangeElevationMerged ChangeKind = iota
	// ChangeLayerInserted is emitted after InsertLayer.
	ChangeLayerInserted
	// ChangeLayerToggled is emitted after SetLayerEnabled.
	ChangeLayerToggled
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeElevationMerged:
		return "elevation-merged"
	case ChangeLayerInserted:
		return "layer-inserted"
	case ChangeLayerToggled:
		return "layer-toggled"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change describes one committed scene mutation.
type Change struct {
	Revision uint64
	Kind     ChangeKind
	Name     string
}

// Scene owns the globe and the layer list of one viewer. All mutations go through the Scene so that
// they can be restricted to the owner goroutine, counted, and announced to listeners.
// Read accessors are safe from any goroutine.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Globe returns the scene's globe.
	Globe() *Globe

	// LayerList returns the scene's layer list. Callers must not mutate it directly.
	LayerList() *LayerList

	// Layers returns a by-value snapshot of the layer list.
	//
	// Returns:
	//   - []Layer: copies of the layers in draw order
	Layers() []Layer

	// Revision returns the number of committed mutations.
	Revision() uint64

	// Dirty reports whether views depending on the scene must redraw.
	Dirty() bool

	// MarkDirty flags dependent views for redraw.
	MarkDirty()

	// ClearDirty resets the dirty flag, typically after a redraw.
	ClearDirty()

	// OnChange registers a listener called after every committed mutation, on the mutating goroutine.
	//
	// Parameters:
	//   - fn: the listener
	OnChange(fn func(Change))

	// MergeElevation merges m into the globe's root elevation model. See the package-level MergeElevation.
	//
	// Parameters:
	//   - m: the model to merge
	//
	// Returns:
	//   - error: ErrCompose if rejected; the scene is unchanged
	MergeElevation(m ElevationModel) error

	// InsertLayer inserts l before the last marker layer, as configured by WithMarkerRoles.
	//
	// Parameters:
	//   - l: the layer to insert
	//
	// Returns:
	//   - int: the index l was inserted at
	//   - error: ErrCompose if rejected; the scene is unchanged
	InsertLayer(l *Layer) (int, error)

	// SetLayerEnabled toggles the layer named name.
	//
	// Parameters:
	//   - name: the layer name
	//   - enabled: the new state
	//
	// Returns:
	//   - error: ErrCompose if no such layer exists
	SetLayerEnabled(name string, enabled bool) error

	// GroupLayers groups layer names by provider prefix for display in a layer tree.
	//
	// Returns:
	//   - []LayerGroup: the NASA, USGS and Misc groups in that order
	GroupLayers() []LayerGroup
}

type scene struct {
	mu sync.RWMutex

	name   string
	globe  *Globe
	layers *LayerList

	revision  uint64
	dirty     bool
	listeners []func(Change)

	isMarker func(*Layer) bool
	isOwner  func() bool
}

var _ Scene = &scene{}

// NewScene creates a Scene. Without options it holds a globe with a flat leaf elevation model, an
// empty layer list, and treats marker-role layers as markers.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		name:     name,
		globe:    NewGlobe(NewUniformLeaf("Earth", common.MustSector(-90, 90, -180, 180), 0)),
		layers:   NewLayerList(),
		isMarker: IsRole(common.RoleMarker),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *scene) Name() string { return s.name }

func (s *scene) Globe() *Globe { return s.globe }

func (s *scene) LayerList() *LayerList { return s.layers }

func (s *scene) Layers() []Layer { return s.layers.Snapshot() }

func (s *scene) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

func (s *scene) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

func (s *scene) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

func (s *scene) ClearDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

func (s *scene) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *scene) MergeElevation(m ElevationModel) error {
	if err := s.checkOwner(); err != nil {
		return err
	}
	if err := MergeElevation(s.globe, m); err != nil {
		return err
	}
	s.commit(ChangeElevationMerged, m.Name())
	return nil
}

func (s *scene) InsertLayer(l *Layer) (int, error) {
	if err := s.checkOwner(); err != nil {
		return -1, err
	}
	idx, err := InsertLayerBeforeMarker(s.layers, l, s.isMarker)
	if err != nil {
		return -1, err
	}
	s.commit(ChangeLayerInserted, l.Name)
	return idx, nil
}

func (s *scene) SetLayerEnabled(name string, enabled bool) error {
	if err := s.checkOwner(); err != nil {
		return err
	}
	l := s.layers.ByName(name)
	if l == nil {
		return fmt.Errorf("%w: no layer named %q", ErrCompose, name)
	}
	s.layers.mu.Lock()
	l.Enabled = enabled
	s.layers.mu.Unlock()
	s.commit(ChangeLayerToggled, name)
	return nil
}

func (s *scene) checkOwner() error {
	if s.isOwner != nil && !s.isOwner() {
		return fmt.Errorf("%w: %v", ErrCompose, errNotOwner)
	}
	return nil
}

// commit bumps the revision and notifies listeners outside the lock.
func (s *scene) commit(kind ChangeKind, name string) {
	s.mu.Lock()
	s.revision++
	change := Change{Revision: s.revision, Kind: kind, Name: name}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	glog.V(1).Infof("scene %s: %s %q (revision %d)", s.name, kind, name, change.Revision)
	for _, fn := range listeners {
		fn(change)
	}
}

// LayerGroup is one branch of the layer tree shown by shells.
type LayerGroup struct {
	Name    string
	Entries []LayerEntry
}

// LayerEntry is one leaf of the layer tree.
type LayerEntry struct {
	// Label is the layer name with the group prefix removed.
	Label string
	// LayerName is the full layer name.
	LayerName     string
	Enabled       bool
	HasProperties bool
}

var providerGroups = []string{"NASA", "USGS"}

// MiscGroup collects layers without a known provider prefix.
const MiscGroup = "Misc"

func (s *scene) GroupLayers() []LayerGroup {
	groups := make([]LayerGroup, 0, len(providerGroups)+1)
	for _, name := range providerGroups {
		groups = append(groups, LayerGroup{Name: name})
	}
	groups = append(groups, LayerGroup{Name: MiscGroup})
	misc := len(groups) - 1

	for _, l := range s.layers.Snapshot() {
		entry := LayerEntry{Label: l.Name, LayerName: l.Name, Enabled: l.Enabled, HasProperties: HasProperties(&l)}
		target := misc
		for i, prefix := range providerGroups {
			if strings.HasPrefix(l.Name, prefix+" ") {
				entry.Label = strings.TrimPrefix(l.Name, prefix+" ")
				target = i
				break
			}
		}
		groups[target].Entries = append(groups[target].Entries, entry)
	}
	return groups
}

// HasProperties reports whether a layer exposes an editable properties view. Backgrounds, screen
// overlays and markers do not.
func HasProperties(l *Layer) bool {
	return l != nil && !IsAnyRole(common.RoleBackground, common.RoleOverlay, common.RoleMarker)(l)
}

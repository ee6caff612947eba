// Package importer coordinates raster imports into the live scene: fetch, decode, transform on a
// worker, then compose on the owner goroutine. One import runs at a time per Importer.
package importer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/Carmen-Shannon/oxy-globe/engine/camera"
	"github.com/Carmen-Shannon/oxy-globe/engine/converter"
	"github.com/Carmen-Shannon/oxy-globe/engine/fetcher"
	"github.com/Carmen-Shannon/oxy-globe/engine/loader"
	"github.com/Carmen-Shannon/oxy-globe/engine/profiler"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
	"github.com/Carmen-Shannon/oxy-globe/engine/scene"
	"github.com/golang/glog"
)

// Owner runs functions on the goroutine that owns the scene. engine.Engine satisfies it.
type Owner interface {
	InvokeAndWait(ctx context.Context, fn func() error) error
}

// Importer is the import coordinator. Start accepts a new import only while Idle; the accepted import
// runs on a pool worker until it reaches a terminal state, and its scene mutation is applied on the
// owner goroutine. The scene is changed only when the import succeeds.
type Importer interface {
	// Start imports the resource configured for kind.
	//
	// Parameters:
	//   - kind: what to import
	//
	// Returns:
	//   - *Import: the handle of the accepted import
	//   - error: an *ImportError matching ErrBusy if an import is in flight
	Start(kind Kind) (*Import, error)

	// StartResource imports the named resource as kind.
	//
	// Parameters:
	//   - kind: what to import
	//   - resource: a URL, bundled asset name or local path
	//
	// Returns:
	//   - *Import: the handle of the accepted import
	//   - error: an *ImportError matching ErrBusy if an import is in flight, or an error for an
	//     unknown kind or empty resource name
	StartResource(kind Kind, resource string) (*Import, error)

	// ImportElevationData starts an elevation import and returns immediately. Rejections are logged.
	ImportElevationData()

	// ImportImageryData starts an imagery import and returns immediately. Rejections are logged.
	ImportImageryData()

	// State returns the current pipeline state.
	State() State

	// Busy reports whether an import is in flight.
	Busy() bool

	// LastResult returns the outcome of the most recently finished import.
	//
	// Returns:
	//   - Result: the outcome
	//   - bool: false if no import has finished yet
	LastResult() (Result, bool)
}

type importerImpl struct {
	// transition serializes Idle transitions with their busy callback, so callbacks never interleave.
	transition sync.Mutex

	mu    sync.Mutex
	state State
	last  *Result

	scene     scene.Scene
	owner     Owner
	fetcher   fetcher.Fetcher
	loader    loader.Loader
	converter converter.Converter
	navigator camera.Navigator
	view      camera.Camera
	profiler  *profiler.Profiler

	resources    map[Kind]string
	rasterOpts   []raster.Option
	busyCallback func(bool)

	workers int
	pool    worker.DynamicWorkerPool
	taskID  int
}

var _ Importer = &importerImpl{}

// NewImporter creates an Importer composing into s through owner.
// Without options it uses the default fetcher, loader and converter, does not move any camera, and
// has no resources configured for Start.
//
// Parameters:
//   - s: the scene imports are composed into
//   - owner: runs the composing step on the scene's owner goroutine
//   - options: functional options
//
// Returns:
//   - Importer: the importer
//   - error: error if s or owner is nil
func NewImporter(s scene.Scene, owner Owner, options ...ImporterBuilderOption) (Importer, error) {
	if s == nil {
		return nil, errors.New("importer needs a scene")
	}
	if owner == nil {
		return nil, errors.New("importer needs an owner")
	}

	im := &importerImpl{
		scene:     s,
		owner:     owner,
		fetcher:   fetcher.NewFetcher(fetcher.WithSidecars(loader.SidecarExtensions)),
		loader:    loader.NewLoader(),
		converter: converter.NewConverter(),
		resources: make(map[Kind]string),
		workers:   1,
	}
	for _, option := range options {
		option(im)
	}

	im.pool = worker.NewDynamicWorkerPool(im.workers, 16, 1*time.Second)
	return im, nil
}

func (im *importerImpl) Start(kind Kind) (*Import, error) {
	im.mu.Lock()
	resource := im.resources[kind]
	im.mu.Unlock()
	return im.StartResource(kind, resource)
}

func (im *importerImpl) StartResource(kind Kind, resource string) (*Import, error) {
	id, err := im.accept(kind, resource)
	if err != nil {
		return nil, err
	}

	imp := newImport(kind, resource)
	glog.Infof("import %s: %s %q accepted", imp.id, kind, resource)
	im.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			res := im.run(imp)
			return res, res.Err
		},
	})
	return imp, nil
}

// accept leaves Idle for Fetching and announces it, returning the task id of the new import.
func (im *importerImpl) accept(kind Kind, resource string) (int, error) {
	im.transition.Lock()
	defer im.transition.Unlock()

	im.mu.Lock()
	if im.state != StateIdle {
		state := im.state
		im.mu.Unlock()
		glog.Warningf("import of %q rejected: busy %s", resource, state)
		return 0, &ImportError{Kind: ErrorBusy, Stage: state, Resource: resource, Err: ErrBusy}
	}
	if kind != KindElevation && kind != KindImagery {
		im.mu.Unlock()
		return 0, fmt.Errorf("unknown import kind %s", kind)
	}
	if resource == "" {
		im.mu.Unlock()
		return 0, fmt.Errorf("no resource to import as %s", kind)
	}
	im.state = StateFetching
	im.taskID++
	id := im.taskID
	cb := im.busyCallback
	im.mu.Unlock()

	if cb != nil {
		cb(true)
	}
	return id, nil
}

func (im *importerImpl) ImportElevationData() {
	if _, err := im.Start(KindElevation); err != nil {
		glog.Warningf("elevation import not started: %v", err)
	}
}

func (im *importerImpl) ImportImageryData() {
	if _, err := im.Start(KindImagery); err != nil {
		glog.Warningf("imagery import not started: %v", err)
	}
}

func (im *importerImpl) State() State {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.state
}

func (im *importerImpl) Busy() bool {
	return im.State() != StateIdle
}

func (im *importerImpl) LastResult() (Result, bool) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.last == nil {
		return Result{}, false
	}
	return *im.last, true
}

// run executes the pipeline on a pool worker and always reaches a terminal state.
func (im *importerImpl) run(imp *Import) (res Result) {
	start := time.Now()
	res = Result{ID: imp.id, Kind: imp.kind, Resource: imp.resource}
	defer func() {
		if r := recover(); r != nil {
			res.Err = newImportError(im.State(), imp.resource, fmt.Errorf("panic: %v", r))
		}
		res.Duration = time.Since(start)
		im.finish(imp, res)
	}()

	res.Sector, res.Layer, res.Err = im.pipeline(imp)
	return res
}

// pipeline runs every stage. Each acquired file and raster is released before it returns.
func (im *importerImpl) pipeline(imp *Import) (common.Sector, string, error) {
	name := imp.resource
	label := layerName(name)

	im.setState(imp, StateFetching)
	var local *fetcher.LocalFile
	err := im.timed(StateFetching, func() (err error) {
		local, err = im.fetcher.Fetch(context.Background(), name, loader.Suffix(name))
		return err
	})
	if err != nil {
		return common.Sector{}, "", newImportError(StateFetching, name, err)
	}
	defer func() {
		if err := local.Remove(); err != nil {
			glog.Warningf("import %s: %v", imp.id, err)
		}
	}()

	im.setState(imp, StateDecoding)
	var rasters []*raster.DataRaster
	err = im.timed(StateDecoding, func() error {
		if _, err := im.loader.IdentifyFormat(local.Path); err != nil {
			return err
		}
		md, err := im.loader.ReadMetadata(local.Path)
		if err != nil {
			return err
		}
		if md.Sector == nil {
			return fmt.Errorf("%w: %s", ErrMissingGeoreference, name)
		}
		rasters, err = im.loader.Decode(local.Path)
		return err
	})
	defer raster.ReleaseAll(rasters)
	if err != nil {
		return common.Sector{}, "", newImportError(StateDecoding, name, err)
	}
	if len(rasters) == 0 {
		return common.Sector{}, "", newImportError(StateDecoding, name, fmt.Errorf("%w: no rasters in %s", ErrDecode, name))
	}

	im.setState(imp, StateTransforming)
	var compose func() error
	var sector common.Sector
	err = im.timed(StateTransforming, func() (err error) {
		compose, sector, err = im.transform(imp.kind, label, rasters)
		return err
	})
	if err != nil {
		return common.Sector{}, "", newImportError(StateTransforming, name, err)
	}

	im.setState(imp, StateComposing)
	err = im.timed(StateComposing, func() error {
		return im.owner.InvokeAndWait(context.Background(), func() error {
			if err := compose(); err != nil {
				return err
			}
			if im.navigator != nil && im.view != nil {
				if err := im.navigator.Frame(im.view, sector); err != nil {
					glog.Warningf("import %s: %v", imp.id, err)
				}
			}
			im.scene.MarkDirty()
			return nil
		})
	})
	if err != nil {
		return common.Sector{}, "", newImportError(StateComposing, name, err)
	}
	return sector, label, nil
}

// transform normalizes the decoded rasters into the artifact composed into the scene and returns the
// mutation that installs it. Intermediate rasters are released before it returns.
func (im *importerImpl) transform(kind Kind, label string, rasters []*raster.DataRaster) (func() error, common.Sector, error) {
	switch kind {
	case KindElevation:
		extracted := make([]*raster.DataRaster, 0, len(rasters))
		defer func() { raster.ReleaseAll(extracted) }()
		for _, r := range rasters {
			sub, err := raster.Extract(r, r.Width, r.Height, r.Sector, im.rasterOpts...)
			if err != nil {
				return nil, common.Sector{}, err
			}
			extracted = append(extracted, sub)
		}
		leaf, err := scene.LeafFromRasters(label, extracted)
		if err != nil {
			return nil, common.Sector{}, fmt.Errorf("%w: %v", ErrConversion, err)
		}
		lo, hi := leaf.MinMax()
		glog.V(1).Infof("elevation %s spans %.1fm to %.1fm", label, lo, hi)
		return func() error { return im.scene.MergeElevation(leaf) }, leaf.Sector(), nil

	case KindImagery:
		if len(rasters) > 1 {
			glog.Warningf("imagery %s: using the first of %d rasters", label, len(rasters))
		}
		r := rasters[0]
		sub, err := raster.Extract(r, r.Width, r.Height, r.Sector, im.rasterOpts...)
		if err != nil {
			return nil, common.Sector{}, err
		}
		defer sub.Release()
		img, err := im.converter.ToDisplayImage(sub)
		if err != nil {
			return nil, common.Sector{}, err
		}
		layer := scene.NewSurfaceImageLayer(label, img)
		return func() error {
			_, err := im.scene.InsertLayer(layer)
			return err
		}, img.Sector, nil

	default:
		return nil, common.Sector{}, fmt.Errorf("%w: unknown import kind %s", ErrConversion, kind)
	}
}

// finish moves the coordinator back to Idle, then publishes the result.
func (im *importerImpl) finish(imp *Import, res Result) {
	if res.Err != nil {
		glog.Errorf("import %s: %s %q failed after %s: %v", imp.id, imp.kind, imp.resource, res.Duration, res.Err)
	} else {
		glog.Infof("import %s: %s %q composed as %q over %s in %s", imp.id, imp.kind, imp.resource, res.Layer, res.Sector, res.Duration)
	}

	im.transition.Lock()
	im.mu.Lock()
	im.state = StateIdle
	im.last = &res
	cb := im.busyCallback
	im.mu.Unlock()

	if cb != nil {
		cb(false)
	}
	im.transition.Unlock()
	imp.complete(res)
}

func (im *importerImpl) setState(imp *Import, s State) {
	im.mu.Lock()
	im.state = s
	im.mu.Unlock()
	glog.V(1).Infof("import %s: %s", imp.id, s)
}

// timed runs fn and records its duration under the stage name.
func (im *importerImpl) timed(stage State, fn func() error) error {
	start := time.Now()
	err := fn()
	if im.profiler != nil {
		im.profiler.Record("import."+stage.String(), time.Since(start))
	}
	return err
}

// layerName derives a display name from a resource name: its base name without the raster suffix.
func layerName(resource string) string {
	suffix := loader.Suffix(resource)
	if i := strings.IndexAny(resource, "?#"); i >= 0 {
		resource = resource[:i]
	}
	base := path.Base(strings.ReplaceAll(resource, `\`, "/"))
	if trimmed := strings.TrimSuffix(base, suffix); trimmed != "" {
		return trimmed
	}
	return base
}

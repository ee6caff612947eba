package importer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/Carmen-Shannon/oxy-globe/engine"
	"github.com/Carmen-Shannon/oxy-globe/engine/camera"
	"github.com/Carmen-Shannon/oxy-globe/engine/fetcher"
	"github.com/Carmen-Shannon/oxy-globe/engine/loader"
	"github.com/Carmen-Shannon/oxy-globe/engine/profiler"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
	"github.com/Carmen-Shannon/oxy-globe/engine/scene"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// craterLakeGrid covers [42.8, 43.0] x [-122.2, -122.0] with 0.05 degree cells.
const craterLakeGrid = `ncols 4
nrows 4
xllcorner -122.2
yllcorner 42.8
cellsize 0.05
NODATA_value -9999
2100 2110 2120 2130
2000 1880 1885 2050
1990 1883 -9999 2010
1950 1960 1970 1980
`

// craterLakeWorld places a 4x4 image with 0.05 degree pixels over the same sector.
const craterLakeWorld = "0.05\n0\n0\n-0.05\n-122.175\n42.975\n"

const waitTimeout = 5 * time.Second

// recordingNavigator frames through a real navigator and records each call.
type recordingNavigator struct {
	camera.Navigator
	owner engine.Engine

	mu       sync.Mutex
	frames   []common.Sector
	offOwner int
}

func (n *recordingNavigator) Frame(view camera.Camera, s common.Sector) error {
	n.mu.Lock()
	n.frames = append(n.frames, s)
	if !n.owner.OnOwner() {
		n.offOwner++
	}
	n.mu.Unlock()
	return n.Navigator.Frame(view, s)
}

func (n *recordingNavigator) calls() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.frames), n.offOwner
}

type harness struct {
	engine   engine.Engine
	scene    scene.Scene
	camera   camera.Camera
	nav      *recordingNavigator
	profiler *profiler.Profiler
	src      string
	tmp      string

	created  atomic.Int32
	released atomic.Int32

	mu   sync.Mutex
	busy []bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{src: t.TempDir(), tmp: t.TempDir(), profiler: profiler.NewProfiler()}

	h.engine = engine.NewEngine(engine.WithTickRate(200))
	h.engine.Start()
	t.Cleanup(func() {
		h.engine.Quit()
		h.engine.Wait()
	})

	h.scene = scene.NewScene("test", scene.WithDefaultLayers(), scene.WithOwnerCheck(h.engine.OnOwner))
	h.camera = camera.NewCamera(camera.WithController(camera.NewCameraController()))
	h.nav = &recordingNavigator{Navigator: camera.NewNavigator(), owner: h.engine}
	return h
}

// rasterOptions counts every raster created and released.
func (h *harness) rasterOptions() []raster.Option {
	return []raster.Option{
		func(*raster.DataRaster) { h.created.Add(1) },
		raster.WithReleaseHook(func(*raster.DataRaster) { h.released.Add(1) }),
	}
}

func (h *harness) importer(t *testing.T, options ...ImporterBuilderOption) Importer {
	t.Helper()
	opts := []ImporterBuilderOption{
		WithFetcher(fetcher.NewFetcher(fetcher.WithSidecars(loader.SidecarExtensions), fetcher.WithTempDir(h.tmp))),
		WithLoader(loader.NewLoader(loader.WithRasterOptions(h.rasterOptions()...))),
		WithRasterOptions(h.rasterOptions()...),
		WithNavigator(h.nav, h.camera),
		WithProfiler(h.profiler),
		WithBusyCallback(func(busy bool) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.busy = append(h.busy, busy)
		}),
	}
	im, err := NewImporter(h.scene, h.engine, append(opts, options...)...)
	require.NoError(t, err)
	return im
}

func (h *harness) write(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(h.src, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func (h *harness) writeImagery(t *testing.T, name string, georeferenced bool) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(40 * x), G: uint8(40 * y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	p := h.write(t, name+".png", buf.Bytes())
	if georeferenced {
		h.write(t, name+".pgw", []byte(craterLakeWorld))
	}
	return p
}

// snapshot captures the scene by value.
type snapshot struct {
	Layers    []scene.Layer
	Elevation scene.ElevationSummary
	Revision  uint64
}

func (h *harness) snapshot() snapshot {
	return snapshot{
		Layers:    h.scene.Layers(),
		Elevation: scene.Summarize(h.scene.Globe().ElevationModel()),
		Revision:  h.scene.Revision(),
	}
}

// assertClean checks that every raster was released and no temporary file survived.
func (h *harness) assertClean(t *testing.T) {
	t.Helper()
	assert.Equal(t, h.created.Load(), h.released.Load(), "every raster released")
	entries, err := os.ReadDir(h.tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files removed")
}

func (h *harness) busyCalls() []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bool(nil), h.busy...)
}

func wait(t *testing.T, imp *Import) Result {
	t.Helper()
	res, ok := imp.Wait(waitTimeout)
	require.True(t, ok, "import did not finish")
	return res
}

func assertSectorNear(t *testing.T, want, got common.Sector) {
	t.Helper()
	assert.InDelta(t, want.MinLat, got.MinLat, 1e-9)
	assert.InDelta(t, want.MaxLat, got.MaxLat, 1e-9)
	assert.InDelta(t, want.MinLon, got.MinLon, 1e-9)
	assert.InDelta(t, want.MaxLon, got.MaxLon, 1e-9)
}

var craterLake = common.MustSector(42.8, 43.0, -122.2, -122.0)

func TestElevationImport(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := h.write(t, "crater-dem.asc", []byte(craterLakeGrid))
	im := h.importer(t, WithResource(KindElevation, path))

	imp, err := im.Start(KindElevation)
	require.NoError(t, err)
	res := wait(t, imp)
	require.NoError(t, res.Err)

	assert.True(t, res.OK())
	assert.Equal(t, imp.ID(), res.ID)
	assert.Equal(t, KindElevation, res.Kind)
	assert.Equal(t, "crater-dem", res.Layer)
	assertSectorNear(t, craterLake, res.Sector)

	composite, ok := h.scene.Globe().ElevationModel().(*scene.Composite)
	require.True(t, ok, "leaf root replaced by a composite")
	models := composite.Models()
	require.Len(t, models, 2)
	assert.Equal(t, "Earth", models[0].Name())
	assertSectorNear(t, craterLake, models[1].Sector())
	assert.InDelta(t, 2100, h.scene.Globe().Elevation(42.99, -122.19), 1e-6)

	frames, offOwner := h.nav.calls()
	assert.Equal(t, 1, frames)
	assert.Equal(t, 0, offOwner)
	assert.True(t, h.nav.Contains(h.camera, res.Sector))

	assert.Equal(t, StateIdle, im.State())
	assert.False(t, im.Busy())
	last, ok := im.LastResult()
	require.True(t, ok)
	assert.Equal(t, res.ID, last.ID)
	assert.Equal(t, []bool{true, false}, h.busyCalls())
	assert.Equal(t, uint64(1), h.scene.Revision())
	for _, stage := range []string{"import.fetching", "import.decoding", "import.transforming", "import.composing"} {
		assert.Equal(t, 1, h.profiler.Stage(stage).Count, stage)
	}
	assert.Positive(t, h.created.Load())
	h.assertClean(t)
}

func TestRepeatedElevationImportsAppend(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := h.write(t, "crater-dem.asc", []byte(craterLakeGrid))
	im := h.importer(t)

	for want := 2; want <= 4; want++ {
		imp, err := im.StartResource(KindElevation, path)
		require.NoError(t, err)
		require.NoError(t, wait(t, imp).Err)

		composite, ok := h.scene.Globe().ElevationModel().(*scene.Composite)
		require.True(t, ok)
		assert.Equal(t, want, composite.Len())
	}
	h.assertClean(t)
}

func TestImageryImport(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := h.writeImagery(t, "crater-ortho", true)
	im := h.importer(t)

	imp, err := im.StartResource(KindImagery, path)
	require.NoError(t, err)
	res := wait(t, imp)
	require.NoError(t, res.Err)

	assert.Equal(t, []string{"Stars", "Atmosphere", "World Map", "crater-ortho", "Compass"}, h.scene.LayerList().Names())
	layer := h.scene.LayerList().ByName("crater-ortho")
	require.NotNil(t, layer)
	assert.Equal(t, common.RoleData, layer.Role)
	require.NotNil(t, layer.Image)
	assert.Equal(t, uint32(4), layer.Image.Width)
	assert.Equal(t, []byte{40, 80, 200, 255}, layer.Image.Pixels[(2*4+1)*4:(2*4+1)*4+4])
	require.NotNil(t, layer.Sector)
	assertSectorNear(t, craterLake, *layer.Sector)

	frames, offOwner := h.nav.calls()
	assert.Equal(t, 1, frames)
	assert.Equal(t, 0, offOwner)
	h.assertClean(t)
}

func TestFailedImportsLeaveSceneUnchanged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		kind      Kind
		resource  func(t *testing.T, h *harness) string
		wantErr   error
		wantKind  ErrorKind
		wantStage State
	}{
		{
			name:      "missing resource",
			kind:      KindElevation,
			resource:  func(t *testing.T, h *harness) string { return filepath.Join(h.src, "absent.asc") },
			wantErr:   ErrFetch,
			wantKind:  ErrorFetch,
			wantStage: StateFetching,
		},
		{
			name: "unsupported format",
			kind: KindElevation,
			resource: func(t *testing.T, h *harness) string {
				return h.write(t, "notes.bin", []byte("these are not raster bytes"))
			},
			wantErr:   ErrUnsupportedFormat,
			wantKind:  ErrorUnsupportedFormat,
			wantStage: StateDecoding,
		},
		{
			name: "truncated grid",
			kind: KindElevation,
			resource: func(t *testing.T, h *harness) string {
				return h.write(t, "short.asc", []byte(craterLakeGrid[:strings.LastIndex(craterLakeGrid, "1950")]))
			},
			wantErr:   ErrDecode,
			wantKind:  ErrorDecode,
			wantStage: StateDecoding,
		},
		{
			name:      "missing georeference",
			kind:      KindImagery,
			resource:  func(t *testing.T, h *harness) string { return h.writeImagery(t, "floating", false) },
			wantErr:   ErrMissingGeoreference,
			wantKind:  ErrorMissingGeoreference,
			wantStage: StateDecoding,
		},
		{
			name: "elevation as imagery",
			kind: KindImagery,
			resource: func(t *testing.T, h *harness) string {
				return h.write(t, "crater-dem.asc", []byte(craterLakeGrid))
			},
			wantErr:   ErrConversion,
			wantKind:  ErrorConversion,
			wantStage: StateTransforming,
		},
		{
			name:      "imagery as elevation",
			kind:      KindElevation,
			resource:  func(t *testing.T, h *harness) string { return h.writeImagery(t, "crater-ortho", true) },
			wantErr:   ErrConversion,
			wantKind:  ErrorConversion,
			wantStage: StateTransforming,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			im := h.importer(t)
			before := h.snapshot()

			imp, err := im.StartResource(tt.kind, tt.resource(t, h))
			require.NoError(t, err)
			res := wait(t, imp)

			require.Error(t, res.Err)
			assert.ErrorIs(t, res.Err, tt.wantErr)
			var ie *ImportError
			require.ErrorAs(t, res.Err, &ie)
			assert.Equal(t, tt.wantKind, ie.Kind)
			assert.Equal(t, tt.wantStage, ie.Stage)

			if diff := cmp.Diff(before, h.snapshot()); diff != "" {
				t.Errorf("scene changed (-before +after):\n%s", diff)
			}
			frames, _ := h.nav.calls()
			assert.Zero(t, frames, "navigator never invoked")
			assert.Equal(t, StateIdle, im.State())
			assert.Equal(t, []bool{true, false}, h.busyCalls())
			h.assertClean(t)
		})
	}
}

// callerOwner runs composing on the calling goroutine instead of the scene's owner.
type callerOwner struct{}

func (callerOwner) InvokeAndWait(_ context.Context, fn func() error) error { return fn() }

func TestComposeOffOwnerIsRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := h.writeImagery(t, "crater-ortho", true)
	im, err := NewImporter(h.scene, callerOwner{},
		WithFetcher(fetcher.NewFetcher(fetcher.WithSidecars(loader.SidecarExtensions), fetcher.WithTempDir(h.tmp))),
		WithNavigator(h.nav, h.camera),
	)
	require.NoError(t, err)
	before := h.snapshot()

	imp, err := im.StartResource(KindImagery, path)
	require.NoError(t, err)
	res := wait(t, imp)

	assert.ErrorIs(t, res.Err, ErrCompose)
	var ie *ImportError
	require.ErrorAs(t, res.Err, &ie)
	assert.Equal(t, StateComposing, ie.Stage)
	assert.Empty(t, cmp.Diff(before, h.snapshot()))
	frames, _ := h.nav.calls()
	assert.Zero(t, frames)
}

func TestComposeAfterEngineStopped(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := h.write(t, "crater-dem.asc", []byte(craterLakeGrid))
	im := h.importer(t)
	before := h.snapshot()
	h.engine.Quit()
	h.engine.Wait()

	imp, err := im.StartResource(KindElevation, path)
	require.NoError(t, err)
	res := wait(t, imp)

	assert.ErrorIs(t, res.Err, ErrCompose)
	assert.ErrorIs(t, res.Err, engine.ErrStopped)
	assert.Empty(t, cmp.Diff(before, h.snapshot()))
	h.assertClean(t)
}

func TestBusyRejection(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	elevation := h.write(t, "crater-dem.asc", []byte(craterLakeGrid))
	imagery := h.writeImagery(t, "crater-ortho", true)

	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	hold := func(*raster.DataRaster) {
		once.Do(func() {
			close(entered)
			<-gate
		})
	}
	im := h.importer(t, WithRasterOptions(hold))

	first, err := im.StartResource(KindElevation, elevation)
	require.NoError(t, err)
	select {
	case <-entered:
	case <-time.After(waitTimeout):
		t.Fatal("import never reached extraction")
	}
	require.Equal(t, StateTransforming, im.State())
	require.True(t, im.Busy())

	second, err := im.StartResource(KindImagery, imagery)
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrBusy)
	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ErrorBusy, ie.Kind)
	assert.Equal(t, StateTransforming, ie.Stage)
	assert.Equal(t, StateTransforming, im.State(), "rejection does not disturb the running import")

	close(gate)
	res := wait(t, first)
	require.NoError(t, res.Err)
	assert.Equal(t, elevation, res.Resource)
	assert.Nil(t, h.scene.LayerList().ByName("crater-ortho"), "rejected import never composed")

	third, err := im.StartResource(KindImagery, imagery)
	require.NoError(t, err, "idle again after completion")
	require.NoError(t, wait(t, third).Err)
	h.assertClean(t)
}

func TestBusyCallbacksNeverInterleave(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := h.write(t, "crater-dem.asc", []byte(craterLakeGrid))

	var (
		mu       sync.Mutex
		calls    []bool
		idleOnce sync.Once
	)
	reporting := make(chan struct{})
	gate := make(chan struct{})
	im := h.importer(t, WithBusyCallback(func(busy bool) {
		if !busy {
			idleOnce.Do(func() {
				close(reporting)
				<-gate
			})
		}
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, busy)
	}))

	first, err := im.StartResource(KindElevation, path)
	require.NoError(t, err)
	select {
	case <-reporting:
	case <-time.After(waitTimeout):
		t.Fatal("first import never reported idle")
	}

	accepted := make(chan *Import, 1)
	go func() {
		next, err := im.StartResource(KindElevation, path)
		assert.NoError(t, err)
		accepted <- next
	}()
	assert.Never(t, func() bool { return len(accepted) > 0 }, 50*time.Millisecond, time.Millisecond,
		"start accepted while the idle callback was still running")

	close(gate)
	require.NoError(t, wait(t, first).Err)
	var second *Import
	select {
	case second = <-accepted:
	case <-time.After(waitTimeout):
		t.Fatal("second import never accepted")
	}
	require.NotNil(t, second)
	require.NoError(t, wait(t, second).Err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false, true, false}, calls)
}

func TestFireAndForget(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	im := h.importer(t,
		WithResource(KindElevation, h.write(t, "crater-dem.asc", []byte(craterLakeGrid))),
		WithResource(KindImagery, h.writeImagery(t, "crater-ortho", true)),
	)

	im.ImportElevationData()
	require.Eventually(t, func() bool {
		res, ok := im.LastResult()
		return ok && res.Kind == KindElevation && !im.Busy()
	}, waitTimeout, time.Millisecond)

	im.ImportImageryData()
	require.Eventually(t, func() bool {
		res, ok := im.LastResult()
		return ok && res.Kind == KindImagery && !im.Busy()
	}, waitTimeout, time.Millisecond)

	res, _ := im.LastResult()
	assert.NoError(t, res.Err)
	assert.NotNil(t, h.scene.LayerList().ByName("crater-ortho"))
	_, isComposite := h.scene.Globe().ElevationModel().(*scene.Composite)
	assert.True(t, isComposite)
}

func TestStartValidation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	im := h.importer(t)

	_, err := im.Start(KindElevation)
	assert.ErrorContains(t, err, "no resource")
	_, err = im.StartResource(Kind(7), "x.asc")
	assert.ErrorContains(t, err, "unknown import kind")
	assert.Equal(t, StateIdle, im.State())
	assert.Empty(t, h.busyCalls())
	_, ok := im.LastResult()
	assert.False(t, ok)

	_, err = NewImporter(nil, h.engine)
	assert.Error(t, err)
	_, err = NewImporter(h.scene, nil)
	assert.Error(t, err)
}

func TestImportError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stage State
		err   error
		want  ErrorKind
	}{
		{StateFetching, fetcher.ErrFetch, ErrorFetch},
		{StateFetching, os.ErrNotExist, ErrorFetch},
		{StateDecoding, loader.ErrUnsupportedFormat, ErrorUnsupportedFormat},
		{StateDecoding, os.ErrClosed, ErrorDecode},
		{StateDecoding, ErrMissingGeoreference, ErrorMissingGeoreference},
		{StateTransforming, raster.ErrExtract, ErrorConversion},
		{StateTransforming, os.ErrClosed, ErrorConversion},
		{StateComposing, scene.ErrCompose, ErrorCompose},
		{StateComposing, engine.ErrTaskPanic, ErrorCompose},
	}
	for _, tt := range tests {
		ie := newImportError(tt.stage, "r", tt.err)
		assert.Equal(t, tt.want, ie.Kind, "%s %v", tt.stage, tt.err)
		assert.ErrorIs(t, ie, tt.want.sentinel())
		assert.ErrorIs(t, ie, tt.err)
	}

	busy := &ImportError{Kind: ErrorBusy, Stage: StateDecoding, Resource: "dem.asc", Err: ErrBusy}
	assert.Equal(t, `import "dem.asc": Busy during decoding: import already in progress`, busy.Error())
	assert.NotErrorIs(t, busy, ErrFetch)
	assert.Same(t, busy, newImportError(StateComposing, "other", busy))
}

func TestLayerName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "craterlake-imagery-30m", layerName("data/craterlake-imagery-30m.tif"))
	assert.Equal(t, "dem", layerName("https://example.com/tiles/dem.asc.gz?token=abc"))
	assert.Equal(t, "12-654-1583", layerName(`C:\tiles\12-654-1583.terrain.png`))
	assert.Equal(t, "download", layerName("https://example.com/download"))
}

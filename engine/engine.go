// Package engine runs the owner goroutine: the single goroutine allowed to mutate the live scene.
// Other goroutines hand work to it through Invoke and InvokeAndWait.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-globe/engine/camera"
	"github.com/Carmen-Shannon/oxy-globe/engine/profiler"
	"github.com/Carmen-Shannon/oxy-globe/engine/scene"
	"github.com/golang/glog"
)

var (
	// ErrStopped is returned when work is handed to an engine that has quit.
	ErrStopped = errors.New("engine stopped")
	// ErrTaskPanic is returned by InvokeAndWait when the task panicked on the owner goroutine.
	ErrTaskPanic = errors.New("owner task panicked")
)

// task is one unit of work queued for the owner goroutine. done is nil for fire-and-forget tasks.
type task struct {
	fn   func() error
	done chan error
}

// engine implements the Engine interface.
type engine struct {
	mu sync.Mutex

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates
	tasks           chan task

	running atomic.Bool
	ownerID atomic.Uint64
	wg      sync.WaitGroup

	startOnce   sync.Once
	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	queueSize      int
	tickCallback   func(deltaTime float32)

	scene  scene.Scene
	camera camera.Camera
}

// Engine is the main entry point for the viewer runtime.
// It owns the scene, runs the owner loop and serializes every scene mutation onto it.
type Engine interface {
	// Start launches the owner goroutine and returns once it is accepting work.
	// Subsequent calls are no-ops.
	Start()

	// Run starts the owner goroutine and blocks until Quit is called and the loop has exited.
	Run()

	// Quit signals the owner goroutine to stop. Queued tasks that have not run yet fail with ErrStopped.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Wait blocks until the owner goroutine has exited.
	Wait()

	// Invoke queues fn for execution on the owner goroutine and returns immediately.
	//
	// Parameters:
	//   - fn: the work to run
	//
	// Returns:
	//   - error: ErrStopped if the engine has quit
	Invoke(fn func()) error

	// InvokeAndWait runs fn on the owner goroutine and returns its error.
	// When called from the owner goroutine fn runs inline. A task that was already queued still runs
	// when ctx is cancelled; only the wait is abandoned.
	//
	// Parameters:
	//   - ctx: bounds the wait for the result
	//   - fn: the work to run
	//
	// Returns:
	//   - error: fn's error, ErrTaskPanic if fn panicked, ErrStopped, or ctx.Err()
	InvokeAndWait(ctx context.Context, fn func() error) error

	// OnOwner reports whether the caller is running on the owner goroutine.
	//
	// Returns:
	//   - bool: true on the owner goroutine
	OnOwner() bool

	// Running reports whether the owner goroutine is active.
	Running() bool

	// EnableProfiler enables tick rate and memory statistics in the log.
	EnableProfiler()

	// DisableProfiler disables profiling output.
	DisableProfiler()

	// Profiler returns the engine's profiler. Import stages record their timings into it.
	Profiler() *profiler.Profiler

	// SetTickRate sets the owner loop tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each tick on the owner goroutine.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetScene attaches the scene redrawn by the owner loop when it is dirty.
	//
	// Parameters:
	//   - s: the scene
	SetScene(s scene.Scene)

	// Scene returns the attached scene, or nil.
	Scene() scene.Scene

	// SetCamera attaches the camera updated on redraw.
	//
	// Parameters:
	//   - c: the camera
	SetCamera(c camera.Camera)

	// Camera returns the attached camera, or nil.
	Camera() camera.Camera
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// The owner goroutine is not started until Start or Run.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
		queueSize:       64,
	}
	for _, opt := range options {
		opt(e)
	}
	e.tasks = make(chan task, e.queueSize)
	return e
}

func (e *engine) Start() {
	e.startOnce.Do(func() {
		started := make(chan struct{})
		e.wg.Add(1)
		go e.handleOwner(started)
		<-started
	})
}

func (e *engine) Run() {
	e.Start()
	e.Wait()
}

// Quit signals the owner goroutine to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Wait() {
	<-e.quitChannel
	e.wg.Wait()
}

func (e *engine) Invoke(fn func()) error {
	return e.enqueue(task{fn: func() error { fn(); return nil }})
}

func (e *engine) InvokeAndWait(ctx context.Context, fn func() error) error {
	if e.OnOwner() {
		return e.runTask(fn)
	}
	done := make(chan error, 1)
	if err := e.enqueue(task{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue hands t to the owner goroutine, blocking while the queue is full.
func (e *engine) enqueue(t task) error {
	select {
	case <-e.quitChannel:
		return ErrStopped
	default:
	}
	select {
	case e.tasks <- t:
		return nil
	case <-e.quitChannel:
		return ErrStopped
	}
}

func (e *engine) OnOwner() bool {
	id := e.ownerID.Load()
	return id != 0 && id == goroutineID()
}

func (e *engine) Running() bool {
	return e.running.Load()
}

// handleOwner runs the owner loop: queued tasks, fixed-rate ticks and redraws of a dirty scene.
// The goroutine is pinned to its OS thread for its whole life.
func (e *engine) handleOwner(started chan<- struct{}) {
	defer e.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.ownerID.Store(goroutineID())
	e.running.Store(true)
	defer func() {
		e.running.Store(false)
		e.ownerID.Store(0)
	}()
	close(started)

	e.mu.Lock()
	rate := e.engineTickRate
	e.mu.Unlock()
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			e.drain()
			return
		case t := <-e.tasks:
			err := e.runTask(t.fn)
			if t.done != nil {
				t.done <- err
			} else if err != nil {
				glog.Errorf("owner task failed: %v", err)
			}
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			e.tick(dt)
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.mu.Lock()
			e.engineTickRate = newRate
			e.mu.Unlock()
		}
	}
}

// drain fails every task still queued after quit.
func (e *engine) drain() {
	for {
		select {
		case t := <-e.tasks:
			if t.done != nil {
				t.done <- ErrStopped
			}
		default:
			return
		}
	}
}

// runTask runs fn, converting a panic into ErrTaskPanic so the owner loop survives.
func (e *engine) runTask(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("owner task recovered from panic: %v", r)
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return fn()
}

// tick fires the tick callback and redraws the scene when it is dirty.
func (e *engine) tick(dt float32) {
	e.mu.Lock()
	cb, s, c := e.tickCallback, e.scene, e.camera
	e.mu.Unlock()

	if cb != nil {
		if err := e.runTask(func() error { cb(dt); return nil }); err != nil {
			glog.Errorf("tick callback: %v", err)
		}
	}
	if s != nil && s.Dirty() {
		if c != nil {
			c.Update()
		}
		glog.V(1).Infof("scene %q redrawn at revision %d", s.Name(), s.Revision())
		s.ClearDirty()
	}
	if e.profilingEnabled.Load() {
		e.profiler.Tick()
	}
}

// goroutineID parses the current goroutine's id from its stack header ("goroutine 42 [running]:").
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(field, ' '); i > 0 {
		field = field[:i]
	}
	id, err := strconv.ParseUint(string(field), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

// SetTickRate sets the owner loop tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
		return
	}
	e.mu.Lock()
	e.engineTickRate = newRate
	e.mu.Unlock()
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

func (e *engine) SetScene(s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scene = s
}

func (e *engine) Scene() scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene
}

func (e *engine) SetCamera(c camera.Camera) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.camera = c
}

func (e *engine) Camera() camera.Camera {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera
}

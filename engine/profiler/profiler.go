// Package profiler collects owner loop tick rates, memory statistics and import stage timings.
package profiler

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"
)

// StageStats aggregates the timings recorded for one named stage.
type StageStats struct {
	Count int
	Total time.Duration
	Max   time.Duration
}

// Mean returns the average duration, or 0 when nothing was recorded.
func (s StageStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Profiler tracks tick rate, memory and stage statistics for performance monitoring.
// Tick outputs stats to the log at a configurable interval. Record is safe for concurrent use.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	mu     sync.Mutex
	stages map[string]StageStats
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		stages:         make(map[string]StageStats),
	}
}

// Tick should be called once per owner loop tick.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: ticks per second, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	tps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses.
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	glog.Infof("[Profiler] TPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		tps, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Record adds one timing sample for stage.
//
// Parameters:
//   - stage: the stage name
//   - d: how long the stage took
func (p *Profiler) Record(stage string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stages[stage]
	s.Count++
	s.Total += d
	if d > s.Max {
		s.Max = d
	}
	p.stages[stage] = s
	glog.V(2).Infof("[Profiler] %s took %s", stage, d)
}

// Stage returns the statistics recorded for stage.
func (p *Profiler) Stage(stage string) StageStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stages[stage]
}

// Stages returns the names of all recorded stages in sorted order.
func (p *Profiler) Stages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.stages))
	for name := range p.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LogStages writes one line per recorded stage to the log.
func (p *Profiler) LogStages() {
	for _, name := range p.Stages() {
		s := p.Stage(name)
		glog.Infof("[Profiler] stage %s: n=%d mean=%s max=%s", name, s.Count, s.Mean(), s.Max)
	}
}

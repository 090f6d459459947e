package profiler

import (
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

// Profiler tracks frame rate, dropped frames and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	logger         log.FieldLogger
	submitted      int
	dropped        int
	totalSubmitted uint64
	totalDropped   uint64
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	now func() time.Time
}

// NewProfiler creates a new Profiler logging to logger once per second.
//
// Parameters:
//   - logger: the logger stats are written to at info level
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(logger log.FieldLogger) *Profiler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	p := &Profiler{
		logger:         logger,
		updateInterval: time.Second,
		now:            time.Now,
	}
	p.lastTime = p.now()
	return p
}

// FrameSubmitted records a frame that reached the GPU.
//
// Returns:
//   - bool: true if stats were logged by this call
func (p *Profiler) FrameSubmitted() bool {
	p.submitted++
	p.totalSubmitted++
	return p.tick()
}

// FrameDropped records a frame that was skipped because no swap chain image was available.
//
// Returns:
//   - bool: true if stats were logged by this call
func (p *Profiler) FrameDropped() bool {
	p.dropped++
	p.totalDropped++
	return p.tick()
}

// Totals returns the number of submitted and dropped frames since the profiler was created.
func (p *Profiler) Totals() (submitted, dropped uint64) {
	return p.totalSubmitted, p.totalDropped
}

// tick logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, dropped frames, heap usage, allocation rate, GC count/pause times, total memory.
func (p *Profiler) tick() bool {
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.submitted) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	// Alloc: Bytes of allocated heap objects (live memory)
	// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
	// Sys: Total bytes of memory obtained from the OS (actual process footprint)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.WithFields(log.Fields{
		"fps":             fps,
		"submitted":       p.submitted,
		"dropped":         p.dropped,
		"heap_mb":         allocMB,
		"alloc_rate_mb_s": allocRateMB,
		"gc":              gcCount,
		"gc_last_us":      lastPauseUs,
		"gc_max_us":       maxPauseUs,
		"sys_mb":          sysMB,
	}).Info("frame stats")

	p.submitted = 0
	p.dropped = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

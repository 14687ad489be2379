package metrics

import (
	"sync"
	"time"

	"codeberg.org/mutker/animctl/internal/sample"
)

const (
	recentWindowSize       = 10
	throttleInferenceFloor = 60
	throttleRatio          = 0.7
)

// Aggregated is the derived view over the most recent window of samples.
// Recomputed on every read; never persisted across restarts.
type Aggregated struct {
	AverageFPS         float64
	MinFPS             float64
	MaxFPS             float64
	RecentFPS          float64 // average over the last few samples
	LifetimeAverageFPS float64
	AverageFrameTimeMS float64
	FrameTimeVariance  float64
	Consistency        float64 // 1 / (1 + variance/100)
	FrameDrops         int     // samples in the window below the drop threshold
	TotalFrameDrops    uint64
	MemoryPeakMB       float64
	SampleCount        int
	LifetimeSamples    uint64
	CPUThrottled       bool
	ComplianceScore    float64
	TrackedElements    int // from the most recent sample
	FirstSample        time.Time
	LastSample         time.Time
}

// Aggregator maintains a bounded FIFO window of samples for one monitored
// instance and computes summary statistics over it.
type Aggregator struct {
	mu       sync.RWMutex
	window   []sample.Sample
	capacity int
	dropFPS  float64

	lifetimeCount   uint64
	lifetimeFPSSum  float64
	totalFrameDrops uint64
	memoryPeak      float64
	firstSample     time.Time
}

func NewAggregator(capacity int, dropFPS float64) *Aggregator {
	if capacity <= 0 {
		capacity = 1
	}

	return &Aggregator{
		window:   make([]sample.Sample, 0, capacity),
		capacity: capacity,
		dropFPS:  dropFPS,
	}
}

// Add appends a sample, evicting the oldest when the window is full.
func (a *Aggregator) Add(s sample.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lifetimeCount == 0 {
		a.firstSample = s.Timestamp
	}

	a.window = append(a.window, s)
	if len(a.window) > a.capacity {
		a.window = a.window[1:]
	}

	a.lifetimeCount++
	a.lifetimeFPSSum += s.FPS

	if s.FPS < a.dropFPS {
		a.totalFrameDrops++
	}
	if s.MemoryMB > a.memoryPeak {
		a.memoryPeak = s.MemoryMB
	}
}

// Metrics recomputes summary statistics over the current window. ok is
// false when no samples have been recorded yet.
func (a *Aggregator) Metrics() (Aggregated, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.window) == 0 {
		return Aggregated{}, false
	}

	var (
		fpsSum    float64
		frameSum  float64
		minFPS    = a.window[0].FPS
		maxFPS    = a.window[0].FPS
		drops     int
		compliant float64
	)

	for i := range a.window {
		s := &a.window[i]
		fpsSum += s.FPS
		frameSum += s.FrameTimeMS
		if s.FPS < minFPS {
			minFPS = s.FPS
		}
		if s.FPS > maxFPS {
			maxFPS = s.FPS
		}
		if s.FPS < a.dropFPS {
			drops++
		}
		compliant += s.ComplianceScore
	}

	count := float64(len(a.window))
	meanFrame := frameSum / count

	var variance float64
	for i := range a.window {
		d := a.window[i].FrameTimeMS - meanFrame
		variance += d * d
	}
	variance /= count

	m := Aggregated{
		AverageFPS:         fpsSum / count,
		MinFPS:             minFPS,
		MaxFPS:             maxFPS,
		RecentFPS:          a.recentFPSLocked(),
		LifetimeAverageFPS: a.lifetimeFPSSum / float64(a.lifetimeCount),
		AverageFrameTimeMS: meanFrame,
		FrameTimeVariance:  variance,
		Consistency:        1.0 / (1.0 + variance/100.0),
		FrameDrops:         drops,
		TotalFrameDrops:    a.totalFrameDrops,
		MemoryPeakMB:       a.memoryPeak,
		SampleCount:        len(a.window),
		LifetimeSamples:    a.lifetimeCount,
		ComplianceScore:    compliant / count,
		TrackedElements:    a.window[len(a.window)-1].TrackedElements,
		FirstSample:        a.firstSample,
		LastSample:         a.window[len(a.window)-1].Timestamp,
	}

	// Sustained degradation relative to the lifetime average is taken as
	// a sign of CPU throttling when no direct thermal signal exists.
	if a.lifetimeCount >= throttleInferenceFloor &&
		m.RecentFPS < m.LifetimeAverageFPS*throttleRatio {
		m.CPUThrottled = true
	}

	return m, true
}

func (a *Aggregator) recentFPSLocked() float64 {
	n := len(a.window)
	if n == 0 {
		return 0
	}

	start := n - recentWindowSize
	if start < 0 {
		start = 0
	}

	var sum float64
	for _, s := range a.window[start:] {
		sum += s.FPS
	}

	return sum / float64(n-start)
}

// History returns up to count of the most recent samples, newest last.
// The read is non-destructive; the window is unchanged.
func (a *Aggregator) History(count int) []sample.Sample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if count <= 0 || len(a.window) == 0 {
		return nil
	}
	if count > len(a.window) {
		count = len(a.window)
	}

	out := make([]sample.Sample, count)
	copy(out, a.window[len(a.window)-count:])

	return out
}

// Len returns the number of samples currently in the window.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.window)
}

// Reset discards the window and all lifetime accumulators.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.window = a.window[:0]
	a.lifetimeCount = 0
	a.lifetimeFPSSum = 0
	a.totalFrameDrops = 0
	a.memoryPeak = 0
	a.firstSample = time.Time{}
}

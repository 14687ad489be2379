package sample

import (
	"math"
	"time"
)

const millisecondsPerSecond = 1000.0

// Sampler derives frame time and FPS from consecutive frame timestamps.
// Not safe for concurrent use; each monitor owns exactly one sampler.
type Sampler struct {
	last    time.Time
	primed  bool
	dropped uint64
}

func NewSampler() *Sampler {
	return &Sampler{}
}

// Tick records a frame timestamp and returns the derived sample. ok is
// false for the first tick after a reset and for non-positive or
// non-finite frame times, which are discarded rather than corrupting
// aggregates.
func (s *Sampler) Tick(ts time.Time) (Sample, bool) {
	if !s.primed {
		s.last = ts
		s.primed = true
		return Sample{}, false
	}

	frameTime := float64(ts.Sub(s.last)) / float64(time.Millisecond)
	s.last = ts

	if frameTime <= 0 || math.IsInf(frameTime, 0) || math.IsNaN(frameTime) {
		s.dropped++
		return Sample{}, false
	}

	return Sample{
		Timestamp:   ts,
		FrameTimeMS: frameTime,
		FPS:         millisecondsPerSecond / frameTime,
	}, true
}

// Reset clears the reference timestamp so the next tick only primes.
func (s *Sampler) Reset() {
	s.primed = false
}

// Discarded returns the number of anomalous frame times dropped so far.
func (s *Sampler) Discarded() uint64 {
	return s.dropped
}

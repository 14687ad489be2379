package sample_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/animctl/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickDerivesFPS(t *testing.T) {
	s := sample.NewSampler()
	base := time.Unix(0, 0)

	_, ok := s.Tick(base)
	assert.False(t, ok, "first tick only primes the sampler")

	sm, ok := s.Tick(base.Add(20 * time.Millisecond))
	require.True(t, ok)
	assert.InDelta(t, 20.0, sm.FrameTimeMS, 1e-9)
	assert.InDelta(t, 50.0, sm.FPS, 1e-9)
}

func TestTickDiscardsNonPositiveFrameTime(t *testing.T) {
	s := sample.NewSampler()
	base := time.Unix(10, 0)

	s.Tick(base)
	_, ok := s.Tick(base)
	assert.False(t, ok, "zero frame time must be discarded")

	_, ok = s.Tick(base.Add(-time.Millisecond))
	assert.False(t, ok, "negative frame time must be discarded")
	assert.Equal(t, uint64(2), s.Discarded())

	sm, ok := s.Tick(base.Add(15 * time.Millisecond))
	require.True(t, ok, "sampler recovers after anomalies")
	assert.InDelta(t, 16.0, sm.FrameTimeMS, 1e-9)
}

func TestReset(t *testing.T) {
	s := sample.NewSampler()
	base := time.Unix(0, 0)

	s.Tick(base)
	s.Reset()

	_, ok := s.Tick(base.Add(time.Second))
	assert.False(t, ok, "tick after reset only primes")

	sm, ok := s.Tick(base.Add(time.Second + 10*time.Millisecond))
	require.True(t, ok)
	assert.InDelta(t, 10.0, sm.FrameTimeMS, 1e-9)
}

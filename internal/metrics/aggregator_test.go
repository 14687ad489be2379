package metrics_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/animctl/internal/metrics"
	"codeberg.org/mutker/animctl/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(a *metrics.Aggregator, count int, frameTimeMS float64) {
	ts := time.Unix(0, 0)
	for i := 0; i < count; i++ {
		ts = ts.Add(time.Duration(frameTimeMS * float64(time.Millisecond)))
		a.Add(sample.Sample{
			Timestamp:   ts,
			FrameTimeMS: frameTimeMS,
			FPS:         1000.0 / frameTimeMS,
		})
	}
}

func TestConstantIntervalConverges(t *testing.T) {
	a := metrics.NewAggregator(120, 30)
	feed(a, 100, 20.0)

	m, ok := a.Metrics()
	require.True(t, ok)
	assert.InDelta(t, 50.0, m.AverageFPS, 1e-9, "averageFPS converges to 1000/D")
	assert.InDelta(t, 0.0, m.FrameTimeVariance, 1e-9, "variance converges to 0")
	assert.InDelta(t, 1.0, m.Consistency, 1e-9)
	assert.Equal(t, 0, m.FrameDrops)
	assert.Equal(t, 100, m.SampleCount)
}

func TestWindowEviction(t *testing.T) {
	const capacity = 50
	a := metrics.NewAggregator(capacity, 30)

	feed(a, capacity+17, 16.0)

	assert.Equal(t, capacity, a.Len(), "window never exceeds capacity")

	m, ok := a.Metrics()
	require.True(t, ok)
	assert.Equal(t, uint64(capacity+17), m.LifetimeSamples, "evicted samples still count toward lifetime")
}

func TestFrameDropCounting(t *testing.T) {
	a := metrics.NewAggregator(200, 50)
	feed(a, 60, 16.7) // ~60 FPS, above threshold
	feed(a, 40, 40.0) // 25 FPS, below threshold

	m, ok := a.Metrics()
	require.True(t, ok)
	assert.Equal(t, 40, m.FrameDrops)
	assert.Equal(t, uint64(40), m.TotalFrameDrops)
}

func TestHistoryNonDestructive(t *testing.T) {
	a := metrics.NewAggregator(100, 30)
	feed(a, 30, 10.0)

	h := a.History(10)
	assert.Len(t, h, 10)
	assert.Equal(t, 30, a.Len(), "history read must not mutate the window")

	h = a.History(500)
	assert.Len(t, h, 30, "asking for more than available returns what exists")

	assert.Nil(t, a.History(0))
}

func TestTrackedElementsFollowLatestSample(t *testing.T) {
	a := metrics.NewAggregator(10, 30)
	a.Add(sample.Sample{Timestamp: time.Unix(1, 0), FrameTimeMS: 16, FPS: 62.5, TrackedElements: 3})
	a.Add(sample.Sample{Timestamp: time.Unix(2, 0), FrameTimeMS: 16, FPS: 62.5, TrackedElements: 5})

	m, ok := a.Metrics()
	require.True(t, ok)
	assert.Equal(t, 5, m.TrackedElements, "the newest sample's element count is reported")
}

func TestMetricsEmpty(t *testing.T) {
	a := metrics.NewAggregator(10, 30)
	_, ok := a.Metrics()
	assert.False(t, ok)
}

func TestThrottleInference(t *testing.T) {
	a := metrics.NewAggregator(1000, 10)

	// Long healthy run, then a short collapse well below 70% of lifetime average.
	feed(a, 90, 16.7)
	feed(a, 10, 100.0)

	m, ok := a.Metrics()
	require.True(t, ok)
	assert.True(t, m.CPUThrottled, "sustained FPS collapse flags CPU throttling")
}

func TestReset(t *testing.T) {
	a := metrics.NewAggregator(100, 30)
	feed(a, 20, 16.0)

	a.Reset()
	assert.Equal(t, 0, a.Len())
	_, ok := a.Metrics()
	assert.False(t, ok, "reset discards all state")
}

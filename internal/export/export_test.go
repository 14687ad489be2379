package export

import (
	"testing"

	"codeberg.org/mutker/animctl/internal/governor"
	"codeberg.org/mutker/animctl/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveAndForget(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	m := governor.InstanceMetrics{
		Aggregated: metrics.Aggregated{
			RecentFPS:          48.5,
			AverageFrameTimeMS: 20.6,
			FrameDrops:         3,
			MemoryPeakMB:       120,
		},
		Mode: governor.ModeMedium,
	}
	c.Observe("bg-1", m, 2)

	assert.InDelta(t, 48.5, testutil.ToFloat64(c.instanceFPS.WithLabelValues("bg-1")), 1e-9)
	assert.InDelta(t, 20.6, testutil.ToFloat64(c.instanceFrameTime.WithLabelValues("bg-1")), 1e-9)
	assert.InDelta(t, float64(governor.ModeMedium.Rank()), testutil.ToFloat64(c.instanceMode.WithLabelValues("bg-1")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(c.instanceAlerts.WithLabelValues("bg-1")), 1e-9)

	c.Forget("bg-1")

	assert.Zero(t, testutil.CollectAndCount(c.instanceFPS), "destroyed instances leave no series behind")
	assert.Zero(t, testutil.CollectAndCount(c.instanceMode))
	assert.Zero(t, testutil.CollectAndCount(c.instanceAlerts))
}

func TestSetRollup(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.SetRollup(governor.Rollup{TotalAnimations: 4, ActiveMonitors: 3})

	assert.InDelta(t, 4, testutil.ToFloat64(c.animationsTotal), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(c.monitorsActive), 1e-9)
}

// Package export publishes per-instance governor metrics to Prometheus.
package export

import (
	"codeberg.org/mutker/animctl/internal/governor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	instanceFPS        *prometheus.GaugeVec
	instanceFrameTime  *prometheus.GaugeVec
	instanceMode       *prometheus.GaugeVec
	instanceDrops      *prometheus.GaugeVec
	instanceMemoryPeak *prometheus.GaugeVec
	instanceAlerts     *prometheus.GaugeVec

	animationsTotal prometheus.Gauge
	monitorsActive  prometheus.Gauge
}

// NewCollector registers the gauge set with the given registerer. Pass
// prometheus.DefaultRegisterer outside of tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		instanceFPS: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "animctl_instance_fps",
			Help: "Recent average frames per second for an animation instance",
		}, []string{"instance"}),

		instanceFrameTime: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "animctl_instance_frame_time_ms",
			Help: "Average frame time in milliseconds over the sample window",
		}, []string{"instance"}),

		instanceMode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "animctl_instance_mode",
			Help: "Performance mode rank (0=normal, 1=medium, 2=low, 3=critical)",
		}, []string{"instance"}),

		instanceDrops: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "animctl_instance_frame_drops",
			Help: "Dropped frames in the current sample window",
		}, []string{"instance"}),

		instanceMemoryPeak: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "animctl_instance_memory_peak_mb",
			Help: "Peak process memory in megabytes seen during monitoring",
		}, []string{"instance"}),

		instanceAlerts: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "animctl_instance_alerts",
			Help: "Alerts raised for an animation instance since monitoring started",
		}, []string{"instance"}),

		animationsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "animctl_animations_total",
			Help: "Registered animation instances",
		}),

		monitorsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "animctl_monitors_active",
			Help: "Animation instances with an active monitor",
		}),
	}
}

// Observe publishes the latest metrics for one instance.
func (c *Collector) Observe(id string, m governor.InstanceMetrics, alertCount int) {
	c.instanceFPS.WithLabelValues(id).Set(m.RecentFPS)
	c.instanceFrameTime.WithLabelValues(id).Set(m.AverageFrameTimeMS)
	c.instanceMode.WithLabelValues(id).Set(float64(m.Mode.Rank()))
	c.instanceDrops.WithLabelValues(id).Set(float64(m.FrameDrops))
	c.instanceMemoryPeak.WithLabelValues(id).Set(m.MemoryPeakMB)
	c.instanceAlerts.WithLabelValues(id).Set(float64(alertCount))
}

// Forget drops the series for a destroyed instance so stale values do
// not linger in scrapes.
func (c *Collector) Forget(id string) {
	c.instanceFPS.DeleteLabelValues(id)
	c.instanceFrameTime.DeleteLabelValues(id)
	c.instanceMode.DeleteLabelValues(id)
	c.instanceDrops.DeleteLabelValues(id)
	c.instanceMemoryPeak.DeleteLabelValues(id)
	c.instanceAlerts.DeleteLabelValues(id)
}

// SetRollup publishes registry-wide counts.
func (c *Collector) SetRollup(r governor.Rollup) {
	c.animationsTotal.Set(float64(r.TotalAnimations))
	c.monitorsActive.Set(float64(r.ActiveMonitors))
}

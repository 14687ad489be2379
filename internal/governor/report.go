package governor

import (
	"time"

	"codeberg.org/mutker/animctl/internal/capability"
	"codeberg.org/mutker/animctl/internal/errors"
)

// Summary is the headline section of an exported report.
type Summary struct {
	AverageFPS         float64 `json:"averageFPS"`
	MinFPS             float64 `json:"minFPS"`
	MaxFPS             float64 `json:"maxFPS"`
	AverageFrameTimeMS float64 `json:"averageFrameTime"`
	FrameTimeVariance  float64 `json:"frameTimeVariance"`
	TotalFrameDrops    uint64  `json:"totalFrameDrops"`
	MemoryPeakMB       float64 `json:"memoryPeak"`
	TestDurationMS     int64   `json:"testDurationMs"`
	PerformanceMode    Mode    `json:"performanceMode"`
	MotionPreference   string  `json:"motionPreference"`
	ReducedMotionScore float64 `json:"reducedMotionComplianceScore"`
	AccessibilityScore float64 `json:"accessibilityScore"`
}

// Report is the JSON-serializable session report for one monitored
// instance. Entirely in-memory; nothing is persisted unless telemetry
// recording is enabled separately.
type Report struct {
	Instance        string              `json:"instance"`
	Session         string              `json:"session"`
	Summary         Summary             `json:"summary"`
	Alerts          []Alert             `json:"alerts"`
	Recommendations []string            `json:"recommendations"`
	DeviceInfo      capability.Snapshot `json:"deviceInfo"`
	TimestampMS     int64               `json:"timestampMs"`
}

// Report builds the exported report for an instance.
func (g *Governor) Report(id string) (*Report, error) {
	errFactory := errors.New()

	monitor := g.GetMonitor(id)
	if monitor == nil {
		return nil, errFactory.WithData(errors.ErrUnknownInstance, id)
	}

	m, ok := monitor.Metrics()
	if !ok {
		return nil, errFactory.WithData(errors.ErrMonitorStopped, id)
	}

	now := time.Now()
	alerts := monitor.Alerts()

	report := &Report{
		Instance: id,
		Session:  monitor.Session(),
		Summary: Summary{
			AverageFPS:         m.AverageFPS,
			MinFPS:             m.MinFPS,
			MaxFPS:             m.MaxFPS,
			AverageFrameTimeMS: m.AverageFrameTimeMS,
			FrameTimeVariance:  m.FrameTimeVariance,
			TotalFrameDrops:    m.TotalFrameDrops,
			MemoryPeakMB:       m.MemoryPeakMB,
			TestDurationMS:     int64(m.LastSample.Sub(m.FirstSample) / time.Millisecond),
			PerformanceMode:    m.Mode,
			MotionPreference:   string(g.scorer.Preference()),
			ReducedMotionScore: g.scorer.Score(),
			AccessibilityScore: g.scorer.AccessibilityScore(),
		},
		Alerts:          alerts,
		Recommendations: recommend(m, alerts),
		DeviceInfo:      g.caps.Snapshot(),
		TimestampMS:     now.UnixMilli(),
	}

	return report, nil
}

// recommend derives remediation advice from the observed breaches.
func recommend(m InstanceMetrics, alerts []Alert) []string {
	var out []string

	seen := map[AlertType]Severity{}
	for _, a := range alerts {
		if cur, ok := seen[a.Type]; !ok || a.Severity == SeverityCritical && cur != SeverityCritical {
			seen[a.Type] = a.Severity
		}
	}

	if sev, ok := seen[AlertFPSDrop]; ok {
		if sev == SeverityCritical {
			out = append(out, "Frame rate is critically low; reduce particle count or disable decorative animations")
		} else {
			out = append(out, "Frame rate is below the configured minimum; consider lowering particle count")
		}
	}
	if _, ok := seen[AlertFrameTime]; ok {
		out = append(out, "Frame times exceed budget; reduce per-frame work or texture resolution")
	}
	if _, ok := seen[AlertHighMemory]; ok {
		out = append(out, "Memory usage is above the limit; lower texture resolution or cache size")
	}
	if _, ok := seen[AlertThermal]; ok || m.CPUThrottled {
		out = append(out, "Device is thermally stressed; lower the target frame rate")
	}
	if _, ok := seen[AlertBatteryLow]; ok {
		out = append(out, "Battery is low; enable battery-aware animation settings")
	}
	if _, ok := seen[AlertNetworkSlow]; ok {
		out = append(out, "Connection is slow; enable data-saving animation settings")
	}
	if m.Consistency < 0.5 {
		out = append(out, "Frame pacing is inconsistent; prefer fewer, steadier animations")
	}
	if m.ComplianceScore < 100 && m.TrackedElements > 0 {
		out = append(out, "Some animated elements ignore the reduced-motion preference")
	}
	if m.Mode == ModeNormal && len(out) == 0 {
		out = append(out, "Performance is healthy; no changes recommended")
	}

	return out
}

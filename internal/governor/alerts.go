package governor

import (
	"fmt"
	"time"

	"codeberg.org/mutker/animctl/internal/capability"
	"codeberg.org/mutker/animctl/internal/metrics"
	"github.com/google/uuid"
)

// Severity grades an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertType identifies the breached threshold category.
type AlertType string

const (
	AlertFPSDrop      AlertType = "fps_drop"
	AlertFrameTime    AlertType = "frame_time"
	AlertHighMemory   AlertType = "high_memory"
	AlertTouchLatency AlertType = "touch_latency"
	AlertThermal      AlertType = "thermal"
	AlertBatteryLow   AlertType = "battery_low"
	AlertNetworkSlow  AlertType = "network_slow"
	AlertFrameDrops   AlertType = "frame_drops"
)

// Alert is an immutable, timestamped record of a threshold breach.
// Resolved is the only mutable field, flipped explicitly by a caller;
// alerts are never deleted.
type Alert struct {
	ID        string             `json:"id"`
	Type      AlertType          `json:"type"`
	Severity  Severity           `json:"severity"`
	Message   string             `json:"message"`
	Metrics   metrics.Aggregated `json:"metrics"`
	Timestamp time.Time          `json:"timestamp"`
	Resolved  bool               `json:"resolved"`
}

func newAlert(alertType AlertType, severity Severity, msg string, m metrics.Aggregated, at time.Time) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Type:      alertType,
		Severity:  severity,
		Message:   msg,
		Metrics:   m,
		Timestamp: at,
	}
}

// signalState carries the low-frequency signals evaluated alongside the
// per-frame metrics.
type signalState struct {
	thermal        capability.ThermalState
	battery        *capability.BatteryInfo
	network        capability.NetworkInfo
	touchLatencyMS float64
}

// evaluateBreaches applies the breach table to the latest aggregated
// metrics and signal state, returning zero or more alerts.
func evaluateBreaches(m metrics.Aggregated, t Thresholds, sig signalState, at time.Time) []Alert {
	var alerts []Alert

	if m.RecentFPS < t.MinFPS {
		severity := SeverityWarning
		if m.RecentFPS < t.MinFPS*0.7 {
			severity = SeverityCritical
		}
		alerts = append(alerts, newAlert(AlertFPSDrop, severity,
			fmt.Sprintf("FPS %.1f below minimum %.1f", m.RecentFPS, t.MinFPS), m, at))
	}

	if ratio := m.AverageFrameTimeMS / t.MaxFrameTimeMS; ratio > 1.5 {
		severity := SeverityWarning
		if ratio > 2 {
			severity = SeverityCritical
		}
		alerts = append(alerts, newAlert(AlertFrameTime, severity,
			fmt.Sprintf("Frame time %.1fms exceeds budget %.1fms", m.AverageFrameTimeMS, t.MaxFrameTimeMS), m, at))
	}

	if m.MemoryPeakMB > t.MaxMemoryMB {
		severity := SeverityWarning
		if m.MemoryPeakMB > t.MaxMemoryMB*1.5 {
			severity = SeverityCritical
		}
		alerts = append(alerts, newAlert(AlertHighMemory, severity,
			fmt.Sprintf("Memory %.0fMB exceeds limit %.0fMB", m.MemoryPeakMB, t.MaxMemoryMB), m, at))
	}

	if m.FrameDrops > t.MaxFrameDrops {
		alerts = append(alerts, newAlert(AlertFrameDrops, SeverityWarning,
			fmt.Sprintf("%d dropped frames in window, limit %d", m.FrameDrops, t.MaxFrameDrops), m, at))
	}

	if sig.touchLatencyMS > t.MaxTouchLatencyMS {
		alerts = append(alerts, newAlert(AlertTouchLatency, SeverityCritical,
			fmt.Sprintf("Touch latency %.0fms exceeds %.0fms", sig.touchLatencyMS, t.MaxTouchLatencyMS), m, at))
	}

	switch sig.thermal {
	case capability.ThermalSerious:
		alerts = append(alerts, newAlert(AlertThermal, SeverityWarning,
			"Thermal state serious", m, at))
	case capability.ThermalCritical:
		alerts = append(alerts, newAlert(AlertThermal, SeverityCritical,
			"Thermal state critical", m, at))
	}

	if sig.battery != nil && !sig.battery.Charging && sig.battery.Level < t.MinBatteryLevel {
		alerts = append(alerts, newAlert(AlertBatteryLow, SeverityWarning,
			fmt.Sprintf("Battery level %.0f%% below minimum %.0f%%", sig.battery.Level*100, t.MinBatteryLevel*100), m, at))
	}

	if sig.network.Quality == capability.QualityPoor {
		alerts = append(alerts, newAlert(AlertNetworkSlow, SeverityWarning,
			fmt.Sprintf("Slow connection: %s", sig.network.ConnectionType), m, at))
	}

	return alerts
}

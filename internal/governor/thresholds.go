package governor

import "codeberg.org/mutker/animctl/internal/capability"

// Thresholds is the per-monitor performance configuration. Zero fields
// are filled from the device-class defaults at monitor start.
type Thresholds struct {
	TargetFPS         float64
	MinFPS            float64
	MaxFrameTimeMS    float64
	MaxMemoryMB       float64
	MaxFrameDrops     int
	MaxTouchLatencyMS float64
	MinBatteryLevel   float64 // 0..1

	// Staged mode cutoffs, descending: medium > low > critical.
	MediumFPS   float64
	LowFPS      float64
	CriticalFPS float64
}

// DefaultThresholds returns the baseline thresholds for a device class.
func DefaultThresholds(class capability.DeviceClass) Thresholds {
	switch class {
	case capability.DeviceMobile:
		return Thresholds{
			TargetFPS:         30,
			MinFPS:            20,
			MaxFrameTimeMS:    50,
			MaxMemoryMB:       256,
			MaxFrameDrops:     15,
			MaxTouchLatencyMS: 100,
			MinBatteryLevel:   0.15,
			MediumFPS:         25,
			LowFPS:            18,
			CriticalFPS:       12,
		}
	case capability.DeviceTablet:
		return Thresholds{
			TargetFPS:         60,
			MinFPS:            30,
			MaxFrameTimeMS:    33,
			MaxMemoryMB:       384,
			MaxFrameDrops:     12,
			MaxTouchLatencyMS: 100,
			MinBatteryLevel:   0.15,
			MediumFPS:         40,
			LowFPS:            26,
			CriticalFPS:       16,
		}
	default:
		return Thresholds{
			TargetFPS:         60,
			MinFPS:            30,
			MaxFrameTimeMS:    33,
			MaxMemoryMB:       512,
			MaxFrameDrops:     10,
			MaxTouchLatencyMS: 80,
			MinBatteryLevel:   0.1,
			MediumFPS:         45,
			LowFPS:            30,
			CriticalFPS:       20,
		}
	}
}

// normalized fills zero fields from the device-class defaults so callers
// can override only what they care about.
func (t Thresholds) normalized(class capability.DeviceClass) Thresholds {
	defaults := DefaultThresholds(class)

	if t.TargetFPS <= 0 {
		t.TargetFPS = defaults.TargetFPS
	}
	if t.MinFPS <= 0 {
		t.MinFPS = defaults.MinFPS
	}
	if t.MaxFrameTimeMS <= 0 {
		t.MaxFrameTimeMS = defaults.MaxFrameTimeMS
	}
	if t.MaxMemoryMB <= 0 {
		t.MaxMemoryMB = defaults.MaxMemoryMB
	}
	if t.MaxFrameDrops <= 0 {
		t.MaxFrameDrops = defaults.MaxFrameDrops
	}
	if t.MaxTouchLatencyMS <= 0 {
		t.MaxTouchLatencyMS = defaults.MaxTouchLatencyMS
	}
	if t.MinBatteryLevel <= 0 {
		t.MinBatteryLevel = defaults.MinBatteryLevel
	}
	if t.MediumFPS <= 0 {
		t.MediumFPS = defaults.MediumFPS
	}
	if t.LowFPS <= 0 {
		t.LowFPS = defaults.LowFPS
	}
	if t.CriticalFPS <= 0 {
		t.CriticalFPS = defaults.CriticalFPS
	}

	return t
}

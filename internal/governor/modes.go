package governor

// Mode classifies current rendering health for one monitored instance.
// Always derived from aggregated metrics, never set directly.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeMedium   Mode = "medium"
	ModeLow      Mode = "low"
	ModeCritical Mode = "critical"
)

// Rank orders modes from healthy (0) to critical (3).
func (m Mode) Rank() int {
	switch m {
	case ModeMedium:
		return 1
	case ModeLow:
		return 2
	case ModeCritical:
		return 3
	default:
		return 0
	}
}

func (m Mode) String() string {
	return string(m)
}

// classifyMode compares the short-window FPS against the staged cutoffs,
// descending through modes as FPS drops below each one. The same
// comparison applies symmetrically on improving FPS, so modes recover
// without hysteresis.
func classifyMode(fps float64, t Thresholds) Mode {
	switch {
	case fps < t.CriticalFPS:
		return ModeCritical
	case fps < t.LowFPS:
		return ModeLow
	case fps < t.MediumFPS:
		return ModeMedium
	default:
		return ModeNormal
	}
}

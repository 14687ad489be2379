package governor

import (
	"codeberg.org/mutker/animctl/internal/capability"
	"codeberg.org/mutker/animctl/internal/logger"
	"codeberg.org/mutker/animctl/internal/metrics"
)

// Callbacks is the subscription surface for one monitor or for the
// governor as a whole. Every field is optional. Callbacks run
// synchronously on the sampling goroutine and must not block; slow
// consumers are expected to defer their own work.
type Callbacks struct {
	OnPerformanceModeChange func(mode Mode, m metrics.Aggregated)
	OnPerformanceDrop       func(alert Alert)
	OnHighMemoryUsage       func(alert Alert)
	OnThermalThrottling     func(alert Alert)
	OnBatteryLow            func(alert Alert)
	OnNetworkSlow           func(alert Alert)
	OnFrameDrops            func(alert Alert)
	OnTouchLatencyHigh      func(alert Alert)
	OnOrientationChange     func(viewport capability.Viewport)
	OnAlert                 func(alert Alert)
}

// safeInvoke shields the sampling loop from panicking caller callbacks:
// one failing callback must not halt monitoring for this or any other
// instance.
func safeInvoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("callback", name).
				Interface("panic", r).
				Msg("Callback panicked")
		}
	}()

	fn()
}

func (c Callbacks) dispatchAlert(alert Alert) {
	if c.OnAlert != nil {
		safeInvoke("onAlert", func() { c.OnAlert(alert) })
	}

	var fn func(Alert)
	var name string

	switch alert.Type {
	case AlertFPSDrop:
		fn, name = c.OnPerformanceDrop, "onPerformanceDrop"
	case AlertHighMemory:
		fn, name = c.OnHighMemoryUsage, "onHighMemoryUsage"
	case AlertThermal:
		fn, name = c.OnThermalThrottling, "onThermalThrottling"
	case AlertBatteryLow:
		fn, name = c.OnBatteryLow, "onBatteryLow"
	case AlertNetworkSlow:
		fn, name = c.OnNetworkSlow, "onNetworkSlow"
	case AlertFrameDrops:
		fn, name = c.OnFrameDrops, "onFrameDrops"
	case AlertTouchLatency:
		fn, name = c.OnTouchLatencyHigh, "onTouchLatencyHigh"
	}

	if fn != nil {
		safeInvoke(name, func() { fn(alert) })
	}
}

func (c Callbacks) dispatchModeChange(mode Mode, m metrics.Aggregated) {
	if c.OnPerformanceModeChange != nil {
		safeInvoke("onPerformanceModeChange", func() { c.OnPerformanceModeChange(mode, m) })
	}
}

func (c Callbacks) dispatchOrientation(vp capability.Viewport) {
	if c.OnOrientationChange != nil {
		safeInvoke("onOrientationChange", func() { c.OnOrientationChange(vp) })
	}
}

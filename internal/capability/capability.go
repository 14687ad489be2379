package capability

import "time"

// DeviceClass buckets hosts into coarse hardware tiers.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceTablet  DeviceClass = "tablet"
	DeviceMobile  DeviceClass = "mobile"
	DeviceUnknown DeviceClass = "unknown"
)

// ThermalState mirrors the host thermal pressure signal.
type ThermalState string

const (
	ThermalNominal  ThermalState = "nominal"
	ThermalFair     ThermalState = "fair"
	ThermalSerious  ThermalState = "serious"
	ThermalCritical ThermalState = "critical"
	ThermalUnknown  ThermalState = "unknown"
)

// ConnectionQuality classifies the effective network link.
type ConnectionQuality string

const (
	QualityPoor   ConnectionQuality = "poor"
	QualityMedium ConnectionQuality = "medium"
	QualityGood   ConnectionQuality = "good"
)

// GPUInfo describes the rendering device as far as the host exposes it.
type GPUInfo struct {
	Vendor         string
	Renderer       string
	MaxTextureSize int
	MemoryMB       int
}

// MemoryInfo carries host and process memory figures in megabytes.
type MemoryInfo struct {
	TotalMB     float64
	AvailableMB float64
	ProcessMB   float64
}

// BatteryInfo is only present when the host exposes a battery signal.
type BatteryInfo struct {
	Level            float64 // 0..1
	Charging         bool
	DrainRatePerHour float64 // fraction of capacity per hour, 0 when unknown
}

// NetworkInfo describes the effective connection.
type NetworkInfo struct {
	ConnectionType string // e.g. "4g", "wifi", "slow-2g"
	Quality        ConnectionQuality
	SaveData       bool
}

// PlatformInfo is derived from the host platform identifier string.
type PlatformInfo struct {
	Class     DeviceClass
	OS        string
	OSVersion string
	Browser   string
}

// Viewport is the visible host surface in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// Snapshot is a point-in-time bundle of device signals. Never mutated,
// only replaced.
type Snapshot struct {
	GPU       GPUInfo
	Memory    MemoryInfo
	Battery   *BatteryInfo // nil when the signal is unavailable
	Network   NetworkInfo
	Thermal   ThermalState
	Platform  PlatformInfo
	Viewport  Viewport
	Touch     bool
	Timestamp time.Time
}

// Defaults substituted when an individual signal source is unavailable.
func defaultSnapshot(now time.Time) Snapshot {
	return Snapshot{
		GPU: GPUInfo{
			MaxTextureSize: 2048,
			MemoryMB:       estimateGPUMemoryMB(2048),
		},
		Network: NetworkInfo{
			ConnectionType: "unknown",
			Quality:        QualityMedium,
		},
		Thermal: ThermalUnknown,
		Platform: PlatformInfo{
			Class:   DeviceUnknown,
			OS:      "unknown",
			Browser: "unknown",
		},
		Timestamp: now,
	}
}

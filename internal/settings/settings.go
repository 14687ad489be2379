package settings

import "codeberg.org/mutker/animctl/internal/capability"

const smallViewportWidth = 414

// Settings are the recommended animation parameters for a device.
type Settings struct {
	MaxParticleCount       int
	PreferredFrameRate     int
	MaxTextureResolution   int
	EnableComplexEffects   bool
	EnableBatteryAwareness bool
	EnableDataSaving       bool
}

// Map renders the settings as the generic key/value form lifecycle
// config hooks accept.
func (s Settings) Map() map[string]any {
	return map[string]any{
		"maxParticleCount":       s.MaxParticleCount,
		"preferredFrameRate":     s.PreferredFrameRate,
		"maxTextureResolution":   s.MaxTextureResolution,
		"enableComplexEffects":   s.EnableComplexEffects,
		"enableBatteryAwareness": s.EnableBatteryAwareness,
		"enableDataSaving":       s.EnableDataSaving,
	}
}

// Generate maps a capability snapshot to recommended animation
// parameters. Rules apply in sequence and compound: each one narrows
// the previous values, never widens them.
func Generate(snap capability.Snapshot) Settings {
	s := baseline(snap.GPU.MemoryMB)

	if snap.Network.SaveData || snap.Network.Quality == capability.QualityPoor {
		s.EnableDataSaving = true
		s.MaxParticleCount /= 2
		s.PreferredFrameRate = minInt(s.PreferredFrameRate, 30)
	}

	if snap.Viewport.Width > 0 && snap.Viewport.Width < smallViewportWidth {
		s.MaxParticleCount = minInt(s.MaxParticleCount, 60)
		s.MaxTextureResolution = minInt(s.MaxTextureResolution, 1024)
	}

	if capability.IsLegacyOS(snap.Platform) {
		s.PreferredFrameRate = minInt(s.PreferredFrameRate, 30)
	}

	if snap.Battery != nil {
		s.EnableBatteryAwareness = true
		if !snap.Battery.Charging && snap.Battery.Level < 0.2 {
			s.MaxParticleCount /= 2
			s.PreferredFrameRate = minInt(s.PreferredFrameRate, 30)
		}
	}

	if s.MaxParticleCount < 1 {
		s.MaxParticleCount = 1
	}

	return s
}

// baseline sets the device-tier ceiling from estimated GPU memory.
func baseline(gpuMemoryMB int) Settings {
	switch {
	case gpuMemoryMB >= 4096:
		return Settings{
			MaxParticleCount:     300,
			PreferredFrameRate:   60,
			MaxTextureResolution: 4096,
			EnableComplexEffects: true,
		}
	case gpuMemoryMB >= 2048:
		return Settings{
			MaxParticleCount:     200,
			PreferredFrameRate:   60,
			MaxTextureResolution: 2048,
			EnableComplexEffects: true,
		}
	case gpuMemoryMB >= 1024:
		return Settings{
			MaxParticleCount:     120,
			PreferredFrameRate:   45,
			MaxTextureResolution: 2048,
		}
	case gpuMemoryMB >= 512:
		return Settings{
			MaxParticleCount:     80,
			PreferredFrameRate:   30,
			MaxTextureResolution: 1024,
		}
	default:
		return Settings{
			MaxParticleCount:     40,
			PreferredFrameRate:   30,
			MaxTextureResolution: 512,
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}

	return b
}

package capability

import (
	"sync"
	"time"

	"codeberg.org/mutker/animctl/internal/logger"
)

// Probes are the individually optional host signal sources. A nil probe
// or a probe error yields the documented default for that signal; a
// single failing source never fails the whole snapshot.
type (
	GPUProbe      interface{ GPU() (GPUInfo, error) }
	MemoryProbe   interface{ Memory() (MemoryInfo, error) }
	BatteryProbe  interface{ Battery() (BatteryInfo, error) }
	NetworkProbe  interface{ Network() (NetworkInfo, error) }
	ThermalProbe  interface{ Thermal() (ThermalState, error) }
	ViewportProbe interface{ Viewport() (Viewport, error) }
	InputProbe    interface{ TouchSupported() (bool, error) }
)

// Probes bundles the signal sources supplied by the host environment.
type Probes struct {
	GPU      GPUProbe
	Memory   MemoryProbe
	Battery  BatteryProbe
	Network  NetworkProbe
	Thermal  ThermalProbe
	Viewport ViewportProbe
	Input    InputProbe

	// Platform is the raw host platform identifier, classified with
	// string-pattern heuristics. Empty yields "unknown" everywhere.
	Platform string
}

// Provider queries host signals and exposes a cached point-in-time
// snapshot with explicit invalidation.
type Provider struct {
	probes Probes

	mu     sync.Mutex
	cached *Snapshot
	now    func() time.Time
}

func NewProvider(probes Probes) *Provider {
	return &Provider{
		probes: probes,
		now:    time.Now,
	}
}

// Snapshot returns the cached snapshot, probing all sources when no
// cached value exists.
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached == nil {
		snap := p.probe()
		p.cached = &snap
	}

	return *p.cached
}

// Invalidate discards the cached snapshot; the next Snapshot call
// re-probes every source.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cached = nil
}

// Refresh re-probes immediately and returns the new snapshot.
func (p *Provider) Refresh() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := p.probe()
	p.cached = &snap

	return snap
}

func (p *Provider) probe() Snapshot {
	snap := defaultSnapshot(p.now())

	if p.probes.GPU != nil {
		if gpu, err := p.probes.GPU.GPU(); err == nil {
			if gpu.MemoryMB == 0 {
				gpu.MemoryMB = estimateGPUMemoryMB(gpu.MaxTextureSize)
				if refined, ok := refineGPUMemoryMB(gpu.Vendor, gpu.Renderer); ok {
					gpu.MemoryMB = refined
				}
			}
			snap.GPU = gpu
		} else {
			logger.Debug().Err(err).Msg("GPU probe unavailable, using defaults")
		}
	}

	if p.probes.Memory != nil {
		if mem, err := p.probes.Memory.Memory(); err == nil {
			snap.Memory = mem
		} else {
			logger.Debug().Err(err).Msg("Memory probe unavailable")
		}
	}

	if p.probes.Battery != nil {
		if bat, err := p.probes.Battery.Battery(); err == nil {
			snap.Battery = &bat
		} else {
			logger.Debug().Err(err).Msg("Battery probe unavailable")
		}
	}

	if p.probes.Network != nil {
		if net, err := p.probes.Network.Network(); err == nil {
			if net.Quality == "" {
				net.Quality = classifyConnection(net.ConnectionType)
			}
			snap.Network = net
		} else {
			logger.Debug().Err(err).Msg("Network probe unavailable, assuming medium quality")
		}
	}

	if p.probes.Thermal != nil {
		if thermal, err := p.probes.Thermal.Thermal(); err == nil {
			snap.Thermal = thermal
		} else {
			logger.Debug().Err(err).Msg("Thermal probe unavailable")
		}
	}

	if p.probes.Viewport != nil {
		if vp, err := p.probes.Viewport.Viewport(); err == nil {
			snap.Viewport = vp
		}
	}

	if p.probes.Input != nil {
		if touch, err := p.probes.Input.TouchSupported(); err == nil {
			snap.Touch = touch
		}
	}

	snap.Platform = classifyPlatform(p.probes.Platform)

	return snap
}

// Per-signal refreshers for the low-frequency re-probe timers. Each
// queries exactly one source, folds the result into the cached snapshot
// and returns the documented default on failure.

func (p *Provider) MemoryNow() MemoryInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.probes.Memory == nil {
		return MemoryInfo{}
	}

	mem, err := p.probes.Memory.Memory()
	if err != nil {
		if p.cached != nil {
			return p.cached.Memory
		}
		return MemoryInfo{}
	}

	if p.cached != nil {
		p.cached.Memory = mem
	}

	return mem
}

func (p *Provider) BatteryNow() *BatteryInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.probes.Battery == nil {
		return nil
	}

	bat, err := p.probes.Battery.Battery()
	if err != nil {
		return nil
	}

	if p.cached != nil {
		p.cached.Battery = &bat
	}

	return &bat
}

func (p *Provider) ThermalNow() ThermalState {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.probes.Thermal == nil {
		return ThermalUnknown
	}

	thermal, err := p.probes.Thermal.Thermal()
	if err != nil {
		return ThermalUnknown
	}

	if p.cached != nil {
		p.cached.Thermal = thermal
	}

	return thermal
}

func (p *Provider) NetworkNow() NetworkInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	fallback := NetworkInfo{ConnectionType: "unknown", Quality: QualityMedium}
	if p.probes.Network == nil {
		return fallback
	}

	net, err := p.probes.Network.Network()
	if err != nil {
		return fallback
	}
	if net.Quality == "" {
		net.Quality = classifyConnection(net.ConnectionType)
	}

	if p.cached != nil {
		p.cached.Network = net
	}

	return net
}

func classifyConnection(connectionType string) ConnectionQuality {
	switch connectionType {
	case "slow-2g", "2g":
		return QualityPoor
	case "3g":
		return QualityMedium
	case "4g", "5g", "wifi", "ethernet":
		return QualityGood
	default:
		return QualityMedium
	}
}

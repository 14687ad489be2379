package governor

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/animctl/internal/capability"
	"codeberg.org/mutker/animctl/internal/logger"
	"codeberg.org/mutker/animctl/internal/metrics"
	"codeberg.org/mutker/animctl/internal/sample"
	"github.com/google/uuid"
)

const (
	memoryCadence  = 1 * time.Second
	batteryCadence = 5 * time.Second
	thermalCadence = 10 * time.Second
	networkCadence = 30 * time.Second

	// Minimum spacing between alerts of the same type, so a sustained
	// breach produces one alert per interval instead of one per frame.
	// An escalation from warning to critical bypasses the cooldown.
	alertCooldown = 5 * time.Second
)

// InstanceMetrics is the full aggregated view exposed for one monitored
// instance.
type InstanceMetrics struct {
	metrics.Aggregated

	Mode              Mode
	Thermal           capability.ThermalState
	BatteryLevel      *float64
	BatteryDrainRate  float64
	ConnectionQuality capability.ConnectionQuality
	TouchLatencyMS    float64
}

// Monitor samples one animation instance and drives threshold
// evaluation. All expensive signal probing happens on low-frequency
// timers, decoupled from the per-frame path.
type Monitor struct {
	id        string
	session   string
	threshold Thresholds
	callbacks Callbacks
	gov       *Governor

	sampler *sample.Sampler
	agg     *metrics.Aggregator
	source  sample.Source

	// paused is owned by the run goroutine; pause and resume requests
	// arrive through control so they serialize with frame processing.
	paused  bool
	control chan bool
	cancel  context.CancelFunc
	done    chan struct{}

	mu          sync.Mutex
	mode        Mode
	alerts      []Alert
	lastAlert   map[AlertType]alertStamp
	signals     signalState
	memory      capability.MemoryInfo
	prevBattery *capability.BatteryInfo
	prevBatTime time.Time
	started     time.Time
}

// alertStamp records when an alert type last fired and at what severity.
type alertStamp struct {
	at       time.Time
	severity Severity
}

func newMonitor(gov *Governor, id string, t Thresholds, cb Callbacks, src sample.Source, window int) *Monitor {
	return &Monitor{
		id:        id,
		session:   uuid.NewString(),
		threshold: t,
		callbacks: cb,
		gov:       gov,
		sampler:   sample.NewSampler(),
		agg:       metrics.NewAggregator(window, t.MinFPS),
		source:    src,
		control:   make(chan bool),
		mode:      ModeNormal,
		lastAlert: map[AlertType]alertStamp{},
		signals: signalState{
			thermal: capability.ThermalUnknown,
			network: capability.NetworkInfo{Quality: capability.QualityMedium},
		},
		started: time.Now(),
	}
}

func (m *Monitor) start(ctx context.Context, paused bool) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.paused = paused

	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	m.refreshSignals()

	frames := m.source.Frames(ctx)

	memTicker := time.NewTicker(memoryCadence)
	batteryTicker := time.NewTicker(batteryCadence)
	thermalTicker := time.NewTicker(thermalCadence)
	networkTicker := time.NewTicker(networkCadence)
	defer memTicker.Stop()
	defer batteryTicker.Stop()
	defer thermalTicker.Stop()
	defer networkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ts, ok := <-frames:
			if !ok {
				return
			}
			m.onFrame(ts)
		case paused := <-m.control:
			if paused == m.paused {
				continue
			}
			m.paused = paused
			if !paused {
				// Re-prime so the paused gap is not measured as one
				// giant frame.
				m.sampler.Reset()
			}
		case <-memTicker.C:
			m.updateMemory()
			m.gov.scorer.RecordSample()
		case <-batteryTicker.C:
			m.updateBattery()
		case <-thermalTicker.C:
			m.updateThermal()
		case <-networkTicker.C:
			m.updateNetwork()
		}
	}
}

// onFrame is the per-tick path: derive a sample, fold it into the
// window, re-evaluate mode and breaches. Everything here is bounded,
// non-blocking work.
func (m *Monitor) onFrame(ts time.Time) {
	if m.paused {
		return
	}

	s, ok := m.sampler.Tick(ts)
	if !ok {
		return
	}

	m.mu.Lock()
	s.MemoryMB = m.memory.ProcessMB
	m.mu.Unlock()

	if scorer := m.gov.Compliance(); scorer != nil {
		s.TrackedElements = scorer.TrackedCount()
		s.ComplianceScore = scorer.Score()
	}

	m.agg.Add(s)
	m.evaluate(ts)
}

func (m *Monitor) evaluate(now time.Time) {
	agg, ok := m.agg.Metrics()
	if !ok {
		return
	}

	m.mu.Lock()
	sig := m.signals
	previous := m.mode
	mode := classifyMode(agg.RecentFPS, m.threshold)
	m.mode = mode
	m.mu.Unlock()

	if mode != previous {
		logger.Info().
			Str("instance", m.id).
			Str("from", previous.String()).
			Str("to", mode.String()).
			Float64("recent_fps", agg.RecentFPS).
			Msg("Performance mode changed")

		m.callbacks.dispatchModeChange(mode, agg)
		m.gov.globalCallbacks().dispatchModeChange(mode, agg)
	}

	alerts := evaluateBreaches(agg, m.threshold, sig, now)

	// Indirect thermal signal: sustained FPS collapse without a direct
	// sensor reading is treated as CPU throttling.
	if agg.CPUThrottled && sig.thermal != capability.ThermalSerious && sig.thermal != capability.ThermalCritical {
		alerts = append(alerts, newAlert(AlertThermal, SeverityWarning,
			"CPU throttling inferred from sustained FPS degradation", agg, now))
	}

	for _, alert := range alerts {
		m.emit(alert, now)
	}
}

func (m *Monitor) emit(alert Alert, now time.Time) {
	m.mu.Lock()
	last, seen := m.lastAlert[alert.Type]
	escalated := alert.Severity == SeverityCritical && last.severity != SeverityCritical
	if seen && now.Sub(last.at) < alertCooldown && !escalated {
		m.mu.Unlock()
		return
	}
	m.lastAlert[alert.Type] = alertStamp{at: now, severity: alert.Severity}
	m.alerts = append(m.alerts, alert)
	m.mu.Unlock()

	logger.Debug().
		Str("instance", m.id).
		Str("type", string(alert.Type)).
		Str("severity", string(alert.Severity)).
		Msg(alert.Message)

	m.callbacks.dispatchAlert(alert)
	m.gov.globalCallbacks().dispatchAlert(alert)
}

func (m *Monitor) refreshSignals() {
	m.updateMemory()
	m.updateBattery()
	m.updateThermal()
	m.updateNetwork()
}

func (m *Monitor) updateMemory() {
	mem := m.gov.caps.MemoryNow()

	m.mu.Lock()
	m.memory = mem
	m.mu.Unlock()
}

func (m *Monitor) updateBattery() {
	bat := m.gov.caps.BatteryNow()
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if bat != nil && m.prevBattery != nil && !bat.Charging {
		hours := now.Sub(m.prevBatTime).Hours()
		if hours > 0 && m.prevBattery.Level > bat.Level {
			bat.DrainRatePerHour = (m.prevBattery.Level - bat.Level) / hours
		}
	}

	m.signals.battery = bat
	m.prevBattery = bat
	m.prevBatTime = now
}

func (m *Monitor) updateThermal() {
	thermal := m.gov.caps.ThermalNow()

	m.mu.Lock()
	m.signals.thermal = thermal
	m.mu.Unlock()
}

func (m *Monitor) updateNetwork() {
	net := m.gov.caps.NetworkNow()

	m.mu.Lock()
	m.signals.network = net
	m.mu.Unlock()
}

// SetTouchLatency feeds the host-measured input latency signal.
func (m *Monitor) SetTouchLatency(latencyMS float64) {
	m.mu.Lock()
	m.signals.touchLatencyMS = latencyMS
	m.mu.Unlock()
}

func (m *Monitor) pause() {
	m.setPaused(true)
}

func (m *Monitor) resume() {
	m.setPaused(false)
}

// setPaused hands the visibility state to the run loop. Routing it
// through the loop guarantees a frame already queued ahead of a resume
// can never prime the sampler with a pre-pause timestamp.
func (m *Monitor) setPaused(paused bool) {
	select {
	case m.control <- paused:
	case <-m.done:
	}
}

func (m *Monitor) stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

// ID returns the monitored instance id.
func (m *Monitor) ID() string {
	return m.id
}

// Session returns the unique id of this monitoring session.
func (m *Monitor) Session() string {
	return m.session
}

// Mode returns the current performance mode.
func (m *Monitor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mode
}

// Metrics returns the aggregated view; ok is false before the first
// sample.
func (m *Monitor) Metrics() (InstanceMetrics, bool) {
	agg, ok := m.agg.Metrics()
	if !ok {
		return InstanceMetrics{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	im := InstanceMetrics{
		Aggregated:        agg,
		Mode:              m.mode,
		Thermal:           m.signals.thermal,
		ConnectionQuality: m.signals.network.Quality,
		TouchLatencyMS:    m.signals.touchLatencyMS,
	}
	if m.signals.battery != nil {
		level := m.signals.battery.Level
		im.BatteryLevel = &level
		im.BatteryDrainRate = m.signals.battery.DrainRatePerHour
	}

	return im, true
}

// History returns up to count of the most recent samples without
// mutating the window.
func (m *Monitor) History(count int) []sample.Sample {
	return m.agg.History(count)
}

// Alerts returns a copy of the append-only alert list.
func (m *Monitor) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alert, len(m.alerts))
	copy(out, m.alerts)

	return out
}

// ResolveAlert marks the alert with the given id resolved. Alerts are
// never deleted.
func (m *Monitor) ResolveAlert(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts[i].Resolved = true
			return true
		}
	}

	return false
}

// Thresholds returns the normalized thresholds in effect.
func (m *Monitor) Thresholds() Thresholds {
	return m.threshold
}

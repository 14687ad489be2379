package governor

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/animctl/internal/capability"
	"codeberg.org/mutker/animctl/internal/compliance"
	"codeberg.org/mutker/animctl/internal/errors"
	"codeberg.org/mutker/animctl/internal/logger"
	"codeberg.org/mutker/animctl/internal/sample"
)

const defaultResizeDebounce = 250 * time.Millisecond

// Lifecycle is the contract every registered animation instance must
// implement. The governor never renders anything itself; it only drives
// these hooks.
type Lifecycle interface {
	Destroy() error
	Resize() error
	UpdateConfig(config map[string]any) error
}

// Instance is one registered decorative animation, owned exclusively by
// the governor.
type Instance struct {
	id      string
	handle  Lifecycle
	active  bool
	monitor *Monitor
}

func (i *Instance) ID() string {
	return i.id
}

func (i *Instance) IsActive() bool {
	return i.active
}

func (i *Instance) Monitor() *Monitor {
	return i.monitor
}

// Options configures a governor. Each governor owns its own registry,
// timers and callback table; independent governors do not share state.
type Options struct {
	WindowSize     int
	ResizeDebounce time.Duration
	DeviceClass    capability.DeviceClass // empty resolves from the capability snapshot
	Capabilities   *capability.Provider
	Compliance     *compliance.Scorer
	MonitorOnly    bool // observe only: never invoke lifecycle hooks
}

// MonitorOptions configures one monitoring session. Zero values fall
// back to governor- and device-class defaults.
type MonitorOptions struct {
	Thresholds Thresholds
	Callbacks  Callbacks
	Source     sample.Source
	WindowSize int
}

// Governor is the instance registry and lifecycle manager. Safe for
// concurrent use; the registry map has a single lock and no torn reads
// are exposed to callers.
type Governor struct {
	opts   Options
	caps   *capability.Provider
	scorer *compliance.Scorer
	class  capability.DeviceClass

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	instances    map[string]*Instance
	global       Callbacks
	resizeTimer  *time.Timer
	pendingView  capability.Viewport
	lastView     capability.Viewport
	haveViewport bool
	reduced      bool
	hidden       bool
	closed       bool
}

// Rollup is the cross-instance metrics summary.
type Rollup struct {
	TotalAnimations int     `json:"totalAnimations"`
	ActiveMonitors  int     `json:"activeMonitors"`
	AverageFPS      float64 `json:"averageFPS"`
	LowestFPS       float64 `json:"lowestFPS"`
	HighestFPS      float64 `json:"highestFPS"`
}

func New(opts Options) *Governor {
	if opts.WindowSize <= 0 {
		opts.WindowSize = 300
	}
	if opts.ResizeDebounce <= 0 {
		opts.ResizeDebounce = defaultResizeDebounce
	}
	if opts.Capabilities == nil {
		opts.Capabilities = capability.NewProvider(capability.Probes{})
	}
	if opts.Compliance == nil {
		opts.Compliance = compliance.NewScorer()
	}

	class := opts.DeviceClass
	if class == "" || class == "auto" {
		class = opts.Capabilities.Snapshot().Platform.Class
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Governor{
		opts:      opts,
		caps:      opts.Capabilities,
		scorer:    opts.Compliance,
		class:     class,
		ctx:       ctx,
		cancel:    cancel,
		instances: make(map[string]*Instance),
	}
}

// RegisterAnimation adds an instance to the registry. Registering an id
// already in use destroys the prior instance first (last-writer-wins).
func (g *Governor) RegisterAnimation(id string, handle Lifecycle) *Instance {
	g.mu.Lock()
	prior := g.instances[id]
	inst := &Instance{id: id, handle: handle, active: true}
	g.instances[id] = inst
	var priorMonitor *Monitor
	if prior != nil {
		priorMonitor = prior.monitor
		prior.monitor = nil
		prior.active = false
	}
	g.mu.Unlock()

	if prior != nil {
		g.teardown(prior, priorMonitor)
		logger.Debug().Str("instance", id).Msg("Replaced existing animation instance")
	}

	logger.Debug().Str("instance", id).Msg("Registered animation instance")

	return inst
}

// StartMonitoring begins a monitoring session for a registered instance,
// stopping any previous monitor for that id first.
func (g *Governor) StartMonitoring(id string, opts MonitorOptions) (*Monitor, error) {
	errFactory := errors.New()

	g.mu.Lock()
	inst, ok := g.instances[id]
	g.mu.Unlock()
	if !ok {
		return nil, errFactory.WithData(errors.ErrUnknownInstance, id)
	}

	thresholds := opts.Thresholds.normalized(g.class)

	window := opts.WindowSize
	if window <= 0 {
		window = g.opts.WindowSize
	}

	source := opts.Source
	if source == nil {
		// Synthetic clock at the target frame rate when the host does
		// not supply a scheduling primitive.
		source = sample.TickerSource{
			Interval: time.Duration(float64(time.Second) / thresholds.TargetFPS),
		}
	}

	monitor := newMonitor(g, id, thresholds, opts.Callbacks, source, window)

	// Assignment and startup happen in one critical section so that two
	// concurrent calls for the same id can never leave two monitors
	// sampling: the loser's monitor is displaced here and stopped below.
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, errFactory.New(errors.ErrShutdownFailed)
	}
	if g.instances[id] != inst {
		g.mu.Unlock()
		return nil, errFactory.WithData(errors.ErrUnknownInstance, id)
	}
	displaced := inst.monitor
	inst.monitor = monitor
	monitor.start(g.ctx, g.hidden)
	g.mu.Unlock()

	if displaced != nil {
		displaced.stop()
	}

	logger.Info().
		Str("instance", id).
		Str("session", monitor.Session()).
		Float64("target_fps", thresholds.TargetFPS).
		Float64("min_fps", thresholds.MinFPS).
		Msg("Monitoring started")

	return monitor, nil
}

// StopMonitoring cancels the instance's monitor. Returns false when no
// monitor is active for the id.
func (g *Governor) StopMonitoring(id string) bool {
	g.mu.Lock()
	inst, ok := g.instances[id]
	if !ok || inst.monitor == nil {
		g.mu.Unlock()
		return false
	}
	monitor := inst.monitor
	inst.monitor = nil
	g.mu.Unlock()

	monitor.stop()
	logger.Debug().Str("instance", id).Msg("Monitoring stopped")

	return true
}

// GetMonitor returns the active monitor for an instance, if any.
func (g *Governor) GetMonitor(id string) *Monitor {
	g.mu.Lock()
	defer g.mu.Unlock()

	if inst, ok := g.instances[id]; ok {
		return inst.monitor
	}

	return nil
}

// GetMetrics returns the aggregated metrics for an instance. ok is
// false for unknown ids, stopped monitors and empty windows.
func (g *Governor) GetMetrics(id string) (InstanceMetrics, bool) {
	monitor := g.GetMonitor(id)
	if monitor == nil {
		return InstanceMetrics{}, false
	}

	return monitor.Metrics()
}

// GetHistory returns up to count recent samples for an instance.
func (g *Governor) GetHistory(id string, count int) []sample.Sample {
	monitor := g.GetMonitor(id)
	if monitor == nil {
		return nil
	}

	return monitor.History(count)
}

// UpdateAnimationConfig pushes new animation parameters to a registered
// instance through its lifecycle hook. In monitor-only mode the call is
// logged and dropped.
func (g *Governor) UpdateAnimationConfig(id string, config map[string]any) error {
	errFactory := errors.New()

	g.mu.Lock()
	inst, ok := g.instances[id]
	var handle Lifecycle
	if ok {
		handle = inst.handle
	}
	g.mu.Unlock()

	if !ok {
		return errFactory.WithData(errors.ErrUnknownInstance, id)
	}

	if g.opts.MonitorOnly || handle == nil {
		logger.Debug().Str("instance", id).Msg("Skipping config update in monitor-only mode")
		return nil
	}

	if err := handle.UpdateConfig(config); err != nil {
		return errFactory.Wrap(errors.ErrLifecycleCallback, err)
	}

	logger.Debug().Str("instance", id).Msg("Animation config updated")

	return nil
}

// DestroyAnimation stops the instance's monitor, invokes the lifecycle
// destroy hook and removes the instance. Idempotent: a second call for
// the same id returns false.
func (g *Governor) DestroyAnimation(id string) bool {
	g.mu.Lock()
	inst, ok := g.instances[id]
	var monitor *Monitor
	if ok {
		delete(g.instances, id)
		monitor = inst.monitor
		inst.monitor = nil
		inst.active = false
	}
	g.mu.Unlock()

	if !ok {
		return false
	}

	g.teardown(inst, monitor)
	logger.Debug().Str("instance", id).Msg("Destroyed animation instance")

	return true
}

// DestroyAllAnimations destroys every registered instance.
func (g *Governor) DestroyAllAnimations() {
	type condemned struct {
		inst    *Instance
		monitor *Monitor
	}

	g.mu.Lock()
	doomed := make([]condemned, 0, len(g.instances))
	for _, inst := range g.instances {
		doomed = append(doomed, condemned{inst, inst.monitor})
		inst.monitor = nil
		inst.active = false
	}
	g.instances = make(map[string]*Instance)
	g.mu.Unlock()

	for _, d := range doomed {
		g.teardown(d.inst, d.monitor)
	}

	if len(doomed) > 0 {
		logger.Info().Int("count", len(doomed)).Msg("Destroyed all animation instances")
	}
}

// teardown finalizes an instance already removed from the registry. The
// monitor is passed in explicitly; it was captured under the registry
// lock by the caller.
func (g *Governor) teardown(inst *Instance, monitor *Monitor) {
	if monitor != nil {
		monitor.stop()
	}

	if g.opts.MonitorOnly || inst.handle == nil {
		return
	}

	if err := inst.handle.Destroy(); err != nil {
		logger.ErrorWithCode(errors.New().Wrap(errors.ErrDestroyInstance, err)).
			Str("instance", inst.id).
			Msg("Lifecycle destroy failed")
	}
}

// AggregatedMetrics computes the cross-instance rollup.
func (g *Governor) AggregatedMetrics() Rollup {
	g.mu.Lock()
	monitors := make([]*Monitor, 0, len(g.instances))
	total := len(g.instances)
	for _, inst := range g.instances {
		if inst.monitor != nil {
			monitors = append(monitors, inst.monitor)
		}
	}
	g.mu.Unlock()

	rollup := Rollup{TotalAnimations: total}

	var sum float64
	counted := 0
	for _, monitor := range monitors {
		m, ok := monitor.Metrics()
		if !ok {
			continue
		}

		sum += m.AverageFPS
		counted++

		if rollup.LowestFPS == 0 || m.MinFPS < rollup.LowestFPS {
			rollup.LowestFPS = m.MinFPS
		}
		if m.MaxFPS > rollup.HighestFPS {
			rollup.HighestFPS = m.MaxFPS
		}
	}

	rollup.ActiveMonitors = len(monitors)
	if counted > 0 {
		rollup.AverageFPS = sum / float64(counted)
	}

	return rollup
}

// SetCallbacks replaces the governor-wide callback table. Global
// callbacks fire for every monitored instance, after the per-monitor
// ones.
func (g *Governor) SetCallbacks(cb Callbacks) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.global = cb
}

func (g *Governor) globalCallbacks() Callbacks {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.global
}

// Compliance returns the reduced-motion compliance scorer.
func (g *Governor) Compliance() *compliance.Scorer {
	return g.scorer
}

// Capabilities returns the capability snapshot provider.
func (g *Governor) Capabilities() *capability.Provider {
	return g.caps
}

// DeviceClass returns the resolved device class.
func (g *Governor) DeviceClass() capability.DeviceClass {
	return g.class
}

// ReducedMotion reports whether the reduced-motion preference has been
// observed this session.
func (g *Governor) ReducedMotion() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.reduced
}

// Close stops all monitors and releases the governor. Registered
// instances are destroyed.
func (g *Governor) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	if g.resizeTimer != nil {
		g.resizeTimer.Stop()
	}
	g.mu.Unlock()

	g.DestroyAllAnimations()
	g.cancel()
}

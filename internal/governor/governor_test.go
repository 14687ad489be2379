package governor

import (
	"os"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/animctl/internal/capability"
	"codeberg.org/mutker/animctl/internal/compliance"
	"codeberg.org/mutker/animctl/internal/errors"
	"codeberg.org/mutker/animctl/internal/logger"
	"codeberg.org/mutker/animctl/internal/metrics"
	"codeberg.org/mutker/animctl/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	os.Exit(m.Run())
}

const (
	fastFrame = 16700 * time.Microsecond // ~60 FPS
	slowFrame = 50 * time.Millisecond    // 20 FPS
)

type fakeAnimation struct {
	mu       sync.Mutex
	destroys int
	resizes  int
	configs  []map[string]any
}

func (f *fakeAnimation) Destroy() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys++

	return nil
}

func (f *fakeAnimation) Resize() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes++

	return nil
}

func (f *fakeAnimation) UpdateConfig(config map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, config)

	return nil
}

func (f *fakeAnimation) destroyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.destroys
}

func (f *fakeAnimation) resizeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.resizes
}

func (f *fakeAnimation) configUpdates() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]map[string]any(nil), f.configs...)
}

func newTestGovernor(t *testing.T) *Governor {
	t.Helper()

	gov := New(Options{
		DeviceClass:    capability.DeviceDesktop,
		ResizeDebounce: 15 * time.Millisecond,
	})
	t.Cleanup(gov.Close)

	return gov
}

// feedFrames pushes count frame timestamps spaced step apart, starting
// one step after base. Returns the last timestamp sent.
func feedFrames(src sample.ChanSource, base time.Time, count int, step time.Duration) time.Time {
	ts := base
	for i := 0; i < count; i++ {
		ts = ts.Add(step)
		src <- ts
	}

	return ts
}

func waitForSamples(t *testing.T, monitor *Monitor, want int) {
	t.Helper()

	require.Eventually(t, func() bool {
		m, ok := monitor.Metrics()
		return ok && m.SampleCount >= want
	}, 2*time.Second, 5*time.Millisecond, "expected %d samples", want)
}

func TestRegisterAndDestroy(t *testing.T) {
	gov := newTestGovernor(t)
	handle := &fakeAnimation{}

	inst := gov.RegisterAnimation("bg-1", handle)
	require.NotNil(t, inst)
	assert.Equal(t, "bg-1", inst.ID())
	assert.True(t, inst.IsActive())

	assert.True(t, gov.DestroyAnimation("bg-1"))
	assert.Equal(t, 1, handle.destroyCount())
	assert.False(t, inst.IsActive())

	// Second destroy for the same id is a no-op
	assert.False(t, gov.DestroyAnimation("bg-1"))
	assert.Equal(t, 1, handle.destroyCount())
}

func TestRegisterReplacesExisting(t *testing.T) {
	gov := newTestGovernor(t)
	first := &fakeAnimation{}
	second := &fakeAnimation{}

	gov.RegisterAnimation("bg-1", first)
	gov.RegisterAnimation("bg-1", second)

	assert.Equal(t, 1, first.destroyCount(), "replaced instance is destroyed")
	assert.Equal(t, 0, second.destroyCount())

	assert.True(t, gov.DestroyAnimation("bg-1"))
	assert.Equal(t, 1, second.destroyCount())
}

func TestStartMonitoringUnknownInstance(t *testing.T) {
	gov := newTestGovernor(t)

	_, err := gov.StartMonitoring("missing", MonitorOptions{})
	require.Error(t, err)

	var appErr errors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errors.ErrUnknownInstance, appErr.Code())
}

func TestMonitoringEndToEnd(t *testing.T) {
	gov := newTestGovernor(t)
	gov.RegisterAnimation("bg-1", &fakeAnimation{})

	var (
		mu    sync.Mutex
		modes []Mode
	)

	src := make(sample.ChanSource)
	monitor, err := gov.StartMonitoring("bg-1", MonitorOptions{
		Thresholds: Thresholds{TargetFPS: 60, MinFPS: 50},
		Callbacks: Callbacks{
			OnPerformanceModeChange: func(mode Mode, _ metrics.Aggregated) {
				mu.Lock()
				modes = append(modes, mode)
				mu.Unlock()
			},
		},
		Source: src,
	})
	require.NoError(t, err)
	require.NotEmpty(t, monitor.Session())

	base := time.Now()
	src <- base // primes the sampler

	// Steady 60 FPS: normal mode, no alerts
	last := feedFrames(src, base, 120, fastFrame)
	waitForSamples(t, monitor, 120)

	m, ok := gov.GetMetrics("bg-1")
	require.True(t, ok)
	assert.InDelta(t, 59.9, m.RecentFPS, 1.0)
	assert.Equal(t, ModeNormal, m.Mode)
	assert.Empty(t, monitor.Alerts())

	// Collapse to 20 FPS: mode degrades and alerts fire
	feedFrames(src, last, 60, slowFrame)
	waitForSamples(t, monitor, 180)

	m, ok = gov.GetMetrics("bg-1")
	require.True(t, ok)
	assert.InDelta(t, 20, m.RecentFPS, 0.5)
	assert.Equal(t, ModeLow, m.Mode)

	got := alertTypes(monitor.Alerts())
	assert.Equal(t, SeverityCritical, got[AlertFPSDrop], "20 FPS is below 70%% of the 50 FPS minimum")
	assert.Contains(t, got, AlertFrameDrops)

	mu.Lock()
	degraded := len(modes) > 0 && modes[len(modes)-1] == ModeLow
	mu.Unlock()
	assert.True(t, degraded, "mode change callback observed the degradation")

	history := gov.GetHistory("bg-1", 10)
	require.Len(t, history, 10)
	assert.InDelta(t, 50, history[len(history)-1].FrameTimeMS, 0.5)

	// Destroy tears the monitor down with the instance
	require.True(t, gov.DestroyAnimation("bg-1"))
	_, ok = gov.GetMetrics("bg-1")
	assert.False(t, ok)
}

func TestStopMonitoring(t *testing.T) {
	gov := newTestGovernor(t)
	gov.RegisterAnimation("bg-1", &fakeAnimation{})

	src := make(sample.ChanSource)
	monitor, err := gov.StartMonitoring("bg-1", MonitorOptions{Source: src})
	require.NoError(t, err)

	base := time.Now()
	src <- base
	feedFrames(src, base, 5, fastFrame)
	waitForSamples(t, monitor, 5)

	assert.True(t, gov.StopMonitoring("bg-1"))
	_, ok := gov.GetMetrics("bg-1")
	assert.False(t, ok, "metrics are unavailable once monitoring stops")

	assert.False(t, gov.StopMonitoring("bg-1"))
	assert.Nil(t, gov.GetMonitor("bg-1"))
}

func TestRestartResetsWindow(t *testing.T) {
	gov := newTestGovernor(t)
	gov.RegisterAnimation("bg-1", &fakeAnimation{})

	src := make(sample.ChanSource)
	monitor, err := gov.StartMonitoring("bg-1", MonitorOptions{Source: src})
	require.NoError(t, err)

	base := time.Now()
	src <- base
	feedFrames(src, base, 20, fastFrame)
	waitForSamples(t, monitor, 20)
	firstSession := monitor.Session()

	src2 := make(sample.ChanSource)
	monitor2, err := gov.StartMonitoring("bg-1", MonitorOptions{Source: src2})
	require.NoError(t, err)
	assert.NotEqual(t, firstSession, monitor2.Session())

	_, ok := monitor2.Metrics()
	assert.False(t, ok, "a fresh session starts with an empty window")
}

func TestStartMonitoringConcurrentSameInstance(t *testing.T) {
	gov := newTestGovernor(t)
	gov.RegisterAnimation("bg-1", &fakeAnimation{})

	const starters = 8
	var wg sync.WaitGroup
	monitors := make([]*Monitor, starters)
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := gov.StartMonitoring("bg-1", MonitorOptions{Source: make(sample.ChanSource)})
			assert.NoError(t, err)
			monitors[i] = m
		}(i)
	}
	wg.Wait()

	current := gov.GetMonitor("bg-1")
	require.NotNil(t, current)

	// Every monitor but the registered one was displaced and stopped.
	survivors := 0
	for _, m := range monitors {
		if m == nil {
			continue
		}
		if m == current {
			survivors++
			continue
		}
		select {
		case <-m.done:
		default:
			t.Fatalf("displaced monitor %s is still running", m.Session())
		}
	}
	assert.Equal(t, 1, survivors)
}

func TestAlertSeverityEscalationBypassesCooldown(t *testing.T) {
	gov := newTestGovernor(t)
	m := newMonitor(gov, "bg-1", testThresholds(), Callbacks{}, nil, 10)

	base := time.Now()
	m.emit(newAlert(AlertFPSDrop, SeverityWarning, "fps low", metrics.Aggregated{}, base), base)

	// Escalating to critical fires immediately despite the cooldown.
	at := base.Add(time.Second)
	m.emit(newAlert(AlertFPSDrop, SeverityCritical, "fps collapsed", metrics.Aggregated{}, at), at)

	// Repeats at or below the recorded severity stay suppressed until the
	// cooldown lapses.
	at = base.Add(2 * time.Second)
	m.emit(newAlert(AlertFPSDrop, SeverityCritical, "fps collapsed", metrics.Aggregated{}, at), at)
	m.emit(newAlert(AlertFPSDrop, SeverityWarning, "fps low", metrics.Aggregated{}, at), at)

	alerts := m.Alerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, SeverityWarning, alerts[0].Severity)
	assert.Equal(t, SeverityCritical, alerts[1].Severity)
}

func TestUpdateAnimationConfig(t *testing.T) {
	gov := newTestGovernor(t)
	handle := &fakeAnimation{}
	gov.RegisterAnimation("bg-1", handle)

	cfg := map[string]any{"maxParticleCount": 40, "preferredFrameRate": 30}
	require.NoError(t, gov.UpdateAnimationConfig("bg-1", cfg))

	updates := handle.configUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, 40, updates[0]["maxParticleCount"])

	err := gov.UpdateAnimationConfig("missing", cfg)
	require.Error(t, err)

	var appErr errors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errors.ErrUnknownInstance, appErr.Code())
}

func TestUpdateAnimationConfigMonitorOnly(t *testing.T) {
	gov := New(Options{DeviceClass: capability.DeviceDesktop, MonitorOnly: true})
	t.Cleanup(gov.Close)

	handle := &fakeAnimation{}
	gov.RegisterAnimation("bg-1", handle)

	require.NoError(t, gov.UpdateAnimationConfig("bg-1", map[string]any{"preferredFrameRate": 30}))
	assert.Empty(t, handle.configUpdates(), "monitor mode observes without acting")
}

func TestVisibilityPauseResume(t *testing.T) {
	gov := newTestGovernor(t)
	gov.RegisterAnimation("bg-1", &fakeAnimation{})

	src := make(sample.ChanSource)
	monitor, err := gov.StartMonitoring("bg-1", MonitorOptions{Source: src})
	require.NoError(t, err)

	base := time.Now()
	src <- base
	last := feedFrames(src, base, 10, fastFrame)
	waitForSamples(t, monitor, 10)

	gov.HandleVisibility(false)

	// Frames arriving while hidden are discarded
	hiddenLast := feedFrames(src, last, 5, fastFrame)

	gov.HandleVisibility(true)

	// The hidden gap re-primes the sampler instead of being measured as
	// one giant frame.
	resumeBase := hiddenLast.Add(10 * time.Second)
	src <- resumeBase
	feedFrames(src, resumeBase, 3, fastFrame)
	waitForSamples(t, monitor, 13)

	m, ok := monitor.Metrics()
	require.True(t, ok)
	assert.Equal(t, 13, m.SampleCount, "history survives the pause, hidden frames do not count")
	assert.Greater(t, m.MinFPS, 30.0, "the pause gap is not measured as a frame")
}

func TestReducedMotionDestroysAll(t *testing.T) {
	gov := newTestGovernor(t)
	one := &fakeAnimation{}
	two := &fakeAnimation{}
	gov.RegisterAnimation("bg-1", one)
	gov.RegisterAnimation("bg-2", two)

	gov.HandleReducedMotion(true)

	assert.True(t, gov.ReducedMotion())
	assert.Equal(t, compliance.PreferenceReduce, gov.Compliance().Preference())
	assert.Equal(t, 1, one.destroyCount())
	assert.Equal(t, 1, two.destroyCount())
	assert.False(t, gov.DestroyAnimation("bg-1"))
	assert.False(t, gov.DestroyAnimation("bg-2"))
}

func TestResizeDebounce(t *testing.T) {
	gov := newTestGovernor(t)
	handle := &fakeAnimation{}
	gov.RegisterAnimation("bg-1", handle)

	var (
		mu           sync.Mutex
		orientations []capability.Viewport
	)
	gov.SetCallbacks(Callbacks{
		OnOrientationChange: func(vp capability.Viewport) {
			mu.Lock()
			orientations = append(orientations, vp)
			mu.Unlock()
		},
	})

	// Rapid successive resizes collapse into one lifecycle call
	gov.HandleResize(capability.Viewport{Width: 800, Height: 600})
	gov.HandleResize(capability.Viewport{Width: 1024, Height: 768})

	require.Eventually(t, func() bool {
		return handle.resizeCount() == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	flips := len(orientations)
	mu.Unlock()
	assert.Zero(t, flips, "same orientation, no orientation callback")

	// Landscape to portrait fires the orientation callback
	gov.HandleResize(capability.Viewport{Width: 600, Height: 1024})

	require.Eventually(t, func() bool {
		return handle.resizeCount() == 2
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(orientations) == 1 && orientations[0] == (capability.Viewport{Width: 600, Height: 1024})
	}, time.Second, 5*time.Millisecond)
}

func TestCallbackPanicDoesNotStopMonitoring(t *testing.T) {
	gov := newTestGovernor(t)
	gov.RegisterAnimation("bg-1", &fakeAnimation{})

	src := make(sample.ChanSource)
	monitor, err := gov.StartMonitoring("bg-1", MonitorOptions{
		Thresholds: Thresholds{TargetFPS: 60, MinFPS: 50},
		Callbacks: Callbacks{
			OnAlert: func(Alert) { panic("subscriber bug") },
		},
		Source: src,
	})
	require.NoError(t, err)

	base := time.Now()
	src <- base
	feedFrames(src, base, 30, slowFrame)
	waitForSamples(t, monitor, 30)

	assert.NotEmpty(t, monitor.Alerts(), "alert fired despite the panicking subscriber")
}

func TestResolveAlert(t *testing.T) {
	gov := newTestGovernor(t)
	gov.RegisterAnimation("bg-1", &fakeAnimation{})

	src := make(sample.ChanSource)
	monitor, err := gov.StartMonitoring("bg-1", MonitorOptions{
		Thresholds: Thresholds{TargetFPS: 60, MinFPS: 50},
		Source:     src,
	})
	require.NoError(t, err)

	base := time.Now()
	src <- base
	feedFrames(src, base, 30, slowFrame)
	waitForSamples(t, monitor, 30)

	alerts := monitor.Alerts()
	require.NotEmpty(t, alerts)
	require.False(t, alerts[0].Resolved)

	assert.True(t, monitor.ResolveAlert(alerts[0].ID))
	assert.True(t, monitor.Alerts()[0].Resolved)
	assert.False(t, monitor.ResolveAlert("no-such-alert"))
}

func TestAggregatedMetricsRollup(t *testing.T) {
	gov := newTestGovernor(t)
	gov.RegisterAnimation("bg-1", &fakeAnimation{})
	gov.RegisterAnimation("bg-2", &fakeAnimation{})

	srcFast := make(sample.ChanSource)
	fast, err := gov.StartMonitoring("bg-1", MonitorOptions{Source: srcFast})
	require.NoError(t, err)

	srcSlow := make(sample.ChanSource)
	slow, err := gov.StartMonitoring("bg-2", MonitorOptions{Source: srcSlow})
	require.NoError(t, err)

	base := time.Now()
	srcFast <- base
	feedFrames(srcFast, base, 10, fastFrame)
	srcSlow <- base
	feedFrames(srcSlow, base, 10, slowFrame)
	waitForSamples(t, fast, 10)
	waitForSamples(t, slow, 10)

	rollup := gov.AggregatedMetrics()
	assert.Equal(t, 2, rollup.TotalAnimations)
	assert.Equal(t, 2, rollup.ActiveMonitors)
	assert.InDelta(t, 40, rollup.AverageFPS, 1.0)
	assert.InDelta(t, 20, rollup.LowestFPS, 0.5)
	assert.InDelta(t, 59.9, rollup.HighestFPS, 1.0)
}

func TestReport(t *testing.T) {
	gov := newTestGovernor(t)
	gov.RegisterAnimation("bg-1", &fakeAnimation{})

	src := make(sample.ChanSource)
	monitor, err := gov.StartMonitoring("bg-1", MonitorOptions{
		Thresholds: Thresholds{TargetFPS: 60, MinFPS: 50},
		Source:     src,
	})
	require.NoError(t, err)

	base := time.Now()
	src <- base
	feedFrames(src, base, 40, slowFrame)
	waitForSamples(t, monitor, 40)

	rep, err := gov.Report("bg-1")
	require.NoError(t, err)

	assert.Equal(t, "bg-1", rep.Instance)
	assert.Equal(t, monitor.Session(), rep.Session)
	assert.InDelta(t, 20, rep.Summary.AverageFPS, 0.5)
	assert.InDelta(t, 50, rep.Summary.AverageFrameTimeMS, 0.5)
	assert.NotEqual(t, ModeNormal, rep.Summary.PerformanceMode)
	assert.NotEmpty(t, rep.Alerts)
	assert.NotEmpty(t, rep.Recommendations)
	assert.Positive(t, rep.TimestampMS)
	assert.InDelta(t, float64(39*50), float64(rep.Summary.TestDurationMS), 1)

	_, err = gov.Report("missing")
	assert.Error(t, err)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"codeberg.org/mutker/animctl/internal/capability"
	"codeberg.org/mutker/animctl/internal/config"
	"codeberg.org/mutker/animctl/internal/errors"
	"codeberg.org/mutker/animctl/internal/export"
	"codeberg.org/mutker/animctl/internal/governor"
	"codeberg.org/mutker/animctl/internal/logger"
	"codeberg.org/mutker/animctl/internal/pid"
	"codeberg.org/mutker/animctl/internal/sample"
	"codeberg.org/mutker/animctl/internal/settings"
	"codeberg.org/mutker/animctl/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const mainInstanceID = "main"

var cfg *config.Config

// syntheticAnimation stands in for a host animation handle when animctl
// runs standalone. The governor drives its lifecycle like any other
// instance; there is just nothing to tear down.
type syntheticAnimation struct{}

func (syntheticAnimation) Destroy() error                      { return nil }
func (syntheticAnimation) Resize() error                       { return nil }
func (syntheticAnimation) UpdateConfig(_ map[string]any) error { return nil }

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	errFactory := errors.New()

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	probes := capability.Probes{
		Memory:   capability.HostMemoryProbe{},
		Thermal:  capability.DefaultSensorThermalProbe(),
		Platform: hostPlatform(),
	}

	nvmlProbe, err := capability.NewNVMLProbe()
	if err != nil {
		logger.Debug().Err(err).Msg("NVML unavailable, using estimated GPU capabilities")
	} else {
		probes.GPU = nvmlProbe
		defer nvmlProbe.Close()
	}

	caps := capability.NewProvider(probes)
	snap := caps.Snapshot()

	recommended := settings.Generate(snap)
	logger.Info().
		Str("device_class", string(snap.Platform.Class)).
		Str("gpu", snap.GPU.Renderer).
		Int("gpu_memory_mb", snap.GPU.MemoryMB).
		Int("max_particles", recommended.MaxParticleCount).
		Int("preferred_fps", recommended.PreferredFrameRate).
		Msg("Device capabilities resolved")

	collector, err := telemetry.NewService(telemetry.Config{
		DBPath:       cfg.TelemetryDB,
		BatchSize:    32,
		BatchTimeout: 30,
		Enabled:      cfg.Telemetry,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close telemetry")
		}
	}()

	gov := governor.New(governor.Options{
		WindowSize:     cfg.WindowSize,
		ResizeDebounce: time.Duration(cfg.ResizeDelayMS) * time.Millisecond,
		DeviceClass:    capability.DeviceClass(cfg.DeviceClass),
		Capabilities:   caps,
		MonitorOnly:    cfg.Monitor,
	})
	defer gov.Close()

	exporter := export.NewCollector(prometheus.DefaultRegisterer)
	if cfg.MetricsListen != "" {
		go serveMetrics(cfg.MetricsListen)
	}

	gov.RegisterAnimation(mainInstanceID, syntheticAnimation{})
	if err := gov.UpdateAnimationConfig(mainInstanceID, recommended.Map()); err != nil {
		logger.Error().Err(err).Msg("failed to apply recommended settings")
	}
	if _, err := gov.StartMonitoring(mainInstanceID, governor.MonitorOptions{
		Thresholds: governor.Thresholds{
			TargetFPS: float64(cfg.TargetFPS),
			MinFPS:    float64(cfg.MinFPS),
		},
		Source: sample.TickerSource{
			Interval: time.Duration(cfg.Interval) * time.Millisecond,
		},
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to start monitoring")
	}

	if cfg.Monitor {
		logger.Info().Msg("Monitor mode activated. Logging animation status...")
	}

	if err := loop(ctx, gov, collector, exporter); err != nil {
		appErr := errFactory.Wrap(errors.ErrMainLoop, err)
		logger.ErrorWithCode(appErr).Msg("error in main loop")
	}

	logger.Info().Msg("Exiting...")
}

func loop(ctx context.Context, gov *governor.Governor, collector telemetry.Collector, exporter *export.Collector) error {
	if cfg.ReportEvery <= 0 {
		return errors.New().New(errors.ErrInvalidInterval)
	}

	ticker := time.NewTicker(time.Duration(cfg.ReportEvery) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := report(ctx, gov, collector, exporter); err != nil {
				return err
			}
		}
	}
}

func report(ctx context.Context, gov *governor.Governor, collector telemetry.Collector, exporter *export.Collector) error {
	rep, err := gov.Report(mainInstanceID)
	if err != nil {
		// The instance is gone; drop its series so stale values do not
		// linger in scrapes.
		exporter.Forget(mainInstanceID)
		return err
	}

	m, ok := gov.GetMetrics(mainInstanceID)
	if !ok {
		exporter.Forget(mainInstanceID)
		return errors.New().New(errors.ErrMonitorStopped)
	}

	logReport(rep)

	exporter.Observe(mainInstanceID, m, len(rep.Alerts))
	exporter.SetRollup(gov.AggregatedMetrics())

	return collector.Record(ctx, &telemetry.Snapshot{
		Timestamp:         time.Now(),
		InstanceID:        mainInstanceID,
		Mode:              string(m.Mode),
		AvgFPS:            m.AverageFPS,
		MinFPS:            m.MinFPS,
		MaxFPS:            m.MaxFPS,
		FrameTimeVariance: m.FrameTimeVariance,
		FrameDrops:        m.FrameDrops,
		MemoryMB:          m.MemoryPeakMB,
		ComplianceScore:   rep.Summary.ReducedMotionScore,
		AlertCount:        len(rep.Alerts),
	})
}

func logReport(rep *governor.Report) {
	if cfg.Debug {
		logger.Debug().
			Str("instance", rep.Instance).
			Str("session", rep.Session).
			Float64("avg_fps", rep.Summary.AverageFPS).
			Float64("min_fps", rep.Summary.MinFPS).
			Float64("max_fps", rep.Summary.MaxFPS).
			Float64("avg_frame_time_ms", rep.Summary.AverageFrameTimeMS).
			Float64("frame_time_variance", rep.Summary.FrameTimeVariance).
			Uint64("total_frame_drops", rep.Summary.TotalFrameDrops).
			Float64("memory_peak_mb", rep.Summary.MemoryPeakMB).
			Str("mode", string(rep.Summary.PerformanceMode)).
			Str("motion_preference", rep.Summary.MotionPreference).
			Float64("compliance_score", rep.Summary.ReducedMotionScore).
			Float64("accessibility_score", rep.Summary.AccessibilityScore).
			Int("alerts", len(rep.Alerts)).
			Strs("recommendations", rep.Recommendations).
			Msg("")
	} else if cfg.Verbose || cfg.Monitor {
		logger.Info().
			Float64("avg_fps", rep.Summary.AverageFPS).
			Float64("min_fps", rep.Summary.MinFPS).
			Str("mode", string(rep.Summary.PerformanceMode)).
			Uint64("frame_drops", rep.Summary.TotalFrameDrops).
			Float64("memory_peak_mb", rep.Summary.MemoryPeakMB).
			Int("alerts", len(rep.Alerts)).
			Msg("")
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func hostPlatform() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	return fmt.Sprintf("%s (%s)", runtime.GOOS, host)
}

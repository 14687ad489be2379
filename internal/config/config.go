package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/animctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultInterval    = 5
	defaultWindowSize  = 300
	defaultTargetFPS   = 60
	defaultMinFPS      = 30
	defaultResizeDelay = 250
	defaultDeviceClass = "auto"
	defaultTelemetryDB = "/var/lib/animctl/telemetry.db"
	defaultReportEvery = 5
	defaultMetricsAddr = ""
)

type Config struct {
	Interval      int    `mapstructure:"interval"`     // frame interval in milliseconds for the synthetic clock
	WindowSize    int    `mapstructure:"window_size"`  // rolling sample window capacity
	TargetFPS     int    `mapstructure:"target_fps"`   // desired frame rate
	MinFPS        int    `mapstructure:"min_fps"`      // lowest acceptable frame rate
	ReportEvery   int    `mapstructure:"report_every"` // seconds between exported reports
	ResizeDelayMS int    `mapstructure:"resize_delay"` // debounce for viewport resize signals
	DeviceClass   string `mapstructure:"device_class"` // desktop, tablet, mobile or auto
	Monitor       bool   `mapstructure:"monitor"`      // observe only, never pause or destroy instances
	LogLevel      string `mapstructure:"log_level"`
	Telemetry     bool   `mapstructure:"telemetry"`
	TelemetryDB   string `mapstructure:"database"`
	MetricsListen string `mapstructure:"metrics_listen"` // prometheus listen address, empty disables
	Debug         bool   `mapstructure:"debug"`
	Verbose       bool   `mapstructure:"verbose"`
}

func Load() (*Config, error) {
	errFactory := errors.New()

	flags := pflag.NewFlagSet("animctl", pflag.ContinueOnError)
	flags.Int("interval", defaultInterval, "Frame interval in milliseconds for the synthetic clock")
	flags.Int("window-size", defaultWindowSize, "Rolling sample window capacity")
	flags.Int("target-fps", defaultTargetFPS, "Desired frame rate")
	flags.Int("min-fps", defaultMinFPS, "Lowest acceptable frame rate")
	flags.Int("report-every", defaultReportEvery, "Seconds between exported reports")
	flags.Int("resize-delay", defaultResizeDelay, "Debounce in milliseconds for viewport resize signals")
	flags.String("device-class", defaultDeviceClass, "Device class: desktop, tablet, mobile or auto")
	flags.Bool("monitor", false, "Only monitor animation performance, never act on it")
	flags.String("log-level", DefaultLogLevel, "Log level: debug, info, warning or error")
	flags.Bool("telemetry", false, "Enable telemetry recording")
	flags.String("metrics-listen", defaultMetricsAddr, "Prometheus listen address (empty disables)")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("interval", defaultInterval)
	v.SetDefault("window_size", defaultWindowSize)
	v.SetDefault("target_fps", defaultTargetFPS)
	v.SetDefault("min_fps", defaultMinFPS)
	v.SetDefault("report_every", defaultReportEvery)
	v.SetDefault("resize_delay", defaultResizeDelay)
	v.SetDefault("device_class", defaultDeviceClass)
	v.SetDefault("monitor", false)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("telemetry", false)
	v.SetDefault("database", defaultTelemetryDB)
	v.SetDefault("metrics_listen", defaultMetricsAddr)

	v.SetEnvPrefix("ANIMCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("ANIMCTL_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").WithData(err.Error())
		}
	} else {
		v.SetConfigName("animctl")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").WithData(err.Error())
			}
		}
	}

	// Flags set on the command line override file and env values
	flags.Visit(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		v.Set(key, f.Value.String())
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.ReportEvery <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.ReportEvery)
	}
	if c.WindowSize <= 0 {
		return errFactory.WithData(errors.ErrInvalidWindow, c.WindowSize)
	}
	if c.Telemetry && c.TelemetryDB == "" {
		return errFactory.New(errors.ErrMissingConfig)
	}

	return nil
}

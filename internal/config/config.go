// Package config loads settings from defaults, an optional config file and
// ANALYZE_TLE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ramones1960/analyze-tle/internal/propagation"
	"github.com/ramones1960/analyze-tle/internal/sgp4"
	"github.com/ramones1960/analyze-tle/internal/tle"
	"github.com/ramones1960/analyze-tle/internal/transform"
)

// EnvPrefix prefixes every environment override, e.g.
// ANALYZE_TLE_PROPAGATION_WORKERS.
const EnvPrefix = "ANALYZE_TLE"

// Config is the full application configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Propagation PropagationConfig `mapstructure:"propagation"`
	TLE         TLEConfig         `mapstructure:"tle"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Output      OutputConfig      `mapstructure:"output"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PropagationConfig struct {
	Workers       int     `mapstructure:"workers"`
	Gravity       string  `mapstructure:"gravity"`
	FailurePolicy string  `mapstructure:"failure_policy"`
	DUT1Seconds   float64 `mapstructure:"dut1_seconds"`
}

type TLEConfig struct {
	SourceURL  string        `mapstructure:"source_url"`
	SatcatURL  string        `mapstructure:"satcat_url"`
	CacheDir   string        `mapstructure:"cache_dir"`
	MaxFiles   int           `mapstructure:"max_files"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	Attempts   int           `mapstructure:"attempts"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	MaxSamples  int      `mapstructure:"max_samples"`
	AuthEnabled bool     `mapstructure:"auth_enabled"`
	AuthToken   string   `mapstructure:"auth_token"`
	TrustProxy  bool     `mapstructure:"trust_proxy"`

	StreamMaxPerIP  int           `mapstructure:"stream_max_per_ip"`
	StreamKeepalive time.Duration `mapstructure:"stream_keepalive"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("propagation.workers", runtime.NumCPU())
	v.SetDefault("propagation.gravity", "wgs72")
	v.SetDefault("propagation.failure_policy", "abort")
	v.SetDefault("propagation.dut1_seconds", 0.0)

	v.SetDefault("tle.source_url", tle.DefaultSourceURL)
	v.SetDefault("tle.satcat_url", "https://celestrak.org/pub/satcat.csv")
	v.SetDefault("tle.cache_dir", "data")
	v.SetDefault("tle.max_files", 5)
	v.SetDefault("tle.max_age", 24*time.Hour)
	v.SetDefault("tle.attempts", 3)
	v.SetDefault("tle.retry_delay", 2*time.Second)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{})
	v.SetDefault("http.max_samples", 20000)
	v.SetDefault("http.auth_enabled", false)
	v.SetDefault("http.auth_token", "")
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("http.stream_max_per_ip", 10)
	v.SetDefault("http.stream_keepalive", 30*time.Second)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("output.dir", "output")
}

// Load reads configuration. path may be empty; otherwise its extension
// selects the format (toml, yaml, json).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown enum values and non-positive sizes.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	if c.Propagation.Workers < 1 {
		errs = append(errs, fmt.Errorf("propagation.workers must be >= 1, got %d", c.Propagation.Workers))
	}
	if _, err := c.Propagation.GravityModel(); err != nil {
		errs = append(errs, fmt.Errorf("propagation.gravity: %w", err))
	}
	if _, err := c.Propagation.Policy(); err != nil {
		errs = append(errs, fmt.Errorf("propagation.failure_policy: %w", err))
	}

	if c.TLE.MaxFiles < 1 {
		errs = append(errs, fmt.Errorf("tle.max_files must be >= 1, got %d", c.TLE.MaxFiles))
	}
	if c.TLE.Attempts < 1 {
		errs = append(errs, fmt.Errorf("tle.attempts must be >= 1, got %d", c.TLE.Attempts))
	}
	if c.TLE.MaxAge <= 0 {
		errs = append(errs, fmt.Errorf("tle.max_age must be positive, got %s", c.TLE.MaxAge))
	}
	if c.TLE.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("tle.retry_delay must not be negative, got %s", c.TLE.RetryDelay))
	}

	if c.HTTP.MaxSamples < 1 {
		errs = append(errs, fmt.Errorf("http.max_samples must be >= 1, got %d", c.HTTP.MaxSamples))
	}
	if c.HTTP.StreamMaxPerIP < 1 {
		errs = append(errs, fmt.Errorf("http.stream_max_per_ip must be >= 1, got %d", c.HTTP.StreamMaxPerIP))
	}
	if c.HTTP.StreamKeepalive <= 0 {
		errs = append(errs, fmt.Errorf("http.stream_keepalive must be positive, got %s", c.HTTP.StreamKeepalive))
	}
	if c.HTTP.AuthEnabled && c.HTTP.AuthToken == "" {
		errs = append(errs, errors.New("http.auth_token is required when auth is enabled"))
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %g", c.Tracing.SampleRatio))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel maps log.level to a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, got %q", l.Level)
}

// GravityModel resolves propagation.gravity.
func (p PropagationConfig) GravityModel() (sgp4.GravityModel, error) {
	return sgp4.GravityByName(p.Gravity)
}

// Policy resolves propagation.failure_policy.
func (p PropagationConfig) Policy() (propagation.FailurePolicy, error) {
	return propagation.ParseFailurePolicy(p.FailurePolicy)
}

// TimeScale returns a constant UT1-UTC offset from propagation.dut1_seconds.
func (p PropagationConfig) TimeScale() transform.TimeScale {
	return transform.FixedDUT1(time.Duration(p.DUT1Seconds * float64(time.Second)))
}

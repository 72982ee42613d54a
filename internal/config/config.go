// Package config loads service configuration from defaults, an optional TOML
// file and ISS_* environment variables. Command-line flags are applied by the
// caller on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/signalsfoundry/iss-tracker/core"
	"github.com/signalsfoundry/iss-tracker/internal/feed"
	"github.com/signalsfoundry/iss-tracker/internal/geocode"
	"github.com/signalsfoundry/iss-tracker/internal/logging"
	"github.com/signalsfoundry/iss-tracker/internal/observability"
)

// Duration is a time.Duration that reads and writes as "30s" style text.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText renders the duration with time.Duration.String.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig                `toml:"server"`
	Feed     FeedConfig                  `toml:"feed"`
	Geocoder GeocoderConfig              `toml:"geocoder"`
	Query    QueryConfig                 `toml:"query"`
	Log      LogConfig                   `toml:"log"`
	Tracing  observability.TracingConfig `toml:"tracing"`
}

// ServerConfig covers the HTTP listeners.
type ServerConfig struct {
	ListenAddr      string   `toml:"listen_addr"`
	MetricsAddr     string   `toml:"metrics_addr"` // empty serves /metrics on ListenAddr
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	LoadOnStart     bool     `toml:"load_on_start"`
}

// FeedConfig covers the ephemeris download.
type FeedConfig struct {
	URL       string   `toml:"url"`
	UserAgent string   `toml:"user_agent"`
	Timeout   Duration `toml:"timeout"`
	Retries   uint64   `toml:"retries"`
}

// GeocoderConfig covers the reverse geocoder.
type GeocoderConfig struct {
	URL       string   `toml:"url"`
	UserAgent string   `toml:"user_agent"`
	Language  string   `toml:"language"`
	Zoom      int      `toml:"zoom"`
	Rate      float64  `toml:"rate"` // requests per second
	CacheSize int      `toml:"cache_size"`
	CacheTTL  Duration `toml:"cache_ttl"`
	Timeout   Duration `toml:"timeout"`
}

// QueryConfig selects the default query semantics.
type QueryConfig struct {
	Nearest string `toml:"nearest"` // absolute | legacy
	Frame   string `toml:"frame"`   // empirical | sidereal
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Logging converts to a logging.Config.
func (l LogConfig) Logging() logging.Config {
	return logging.Config{Level: l.Level, Format: l.Format, AddSource: true}
}

// Default returns the built-in configuration.
func Default() Config {
	tracing := observability.DefaultTracingConfig()
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":5000",
			MetricsAddr:     "",
			ShutdownTimeout: Duration(10 * time.Second),
			LoadOnStart:     true,
		},
		Feed: FeedConfig{
			URL:       feed.DefaultURL,
			UserAgent: feed.DefaultUserAgent,
			Timeout:   Duration(feed.DefaultTimeout),
			Retries:   2,
		},
		Geocoder: GeocoderConfig{
			URL:       geocode.DefaultBaseURL,
			UserAgent: geocode.DefaultUserAgent,
			Language:  geocode.DefaultLanguage,
			Zoom:      geocode.DefaultZoom,
			Rate:      geocode.DefaultRate,
			CacheSize: geocode.DefaultCacheSize,
			CacheTTL:  Duration(geocode.DefaultCacheTTL),
			Timeout:   Duration(geocode.DefaultTimeout),
		},
		Query: QueryConfig{
			Nearest: core.NearestAbsolute.String(),
			Frame:   core.FrameEmpirical.String(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: tracing,
	}
}

// Load returns Default overlaid with the TOML file at path (if non-empty)
// and then with ISS_* environment variables. Unknown TOML keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// ApplyEnv overlays values found through lookup (os.LookupEnv in
// production). Malformed numbers, booleans and durations are errors.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *Duration) {
		if v, ok := lookup(key); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("ISS_LISTEN_ADDR", &c.Server.ListenAddr)
	str("ISS_METRICS_ADDR", &c.Server.MetricsAddr)
	dur("ISS_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	boolean("ISS_LOAD_ON_START", &c.Server.LoadOnStart)

	str("ISS_FEED_URL", &c.Feed.URL)
	str("ISS_FEED_USER_AGENT", &c.Feed.UserAgent)
	dur("ISS_FEED_TIMEOUT", &c.Feed.Timeout)
	if v, ok := lookup("ISS_FEED_RETRIES"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ISS_FEED_RETRIES: %w", err))
		} else {
			c.Feed.Retries = n
		}
	}

	str("ISS_GEOCODER_URL", &c.Geocoder.URL)
	str("ISS_GEOCODER_USER_AGENT", &c.Geocoder.UserAgent)
	str("ISS_GEOCODER_LANGUAGE", &c.Geocoder.Language)
	integer("ISS_GEOCODER_ZOOM", &c.Geocoder.Zoom)
	float("ISS_GEOCODER_RATE", &c.Geocoder.Rate)
	integer("ISS_GEOCODER_CACHE_SIZE", &c.Geocoder.CacheSize)
	dur("ISS_GEOCODER_CACHE_TTL", &c.Geocoder.CacheTTL)
	dur("ISS_GEOCODER_TIMEOUT", &c.Geocoder.Timeout)

	str("ISS_NEAREST_STRATEGY", &c.Query.Nearest)
	str("ISS_FRAME", &c.Query.Frame)

	str("ISS_LOG_LEVEL", &c.Log.Level)
	str("ISS_LOG_FORMAT", &c.Log.Format)

	boolean("ISS_TRACING_ENABLED", &c.Tracing.Enabled)
	str("ISS_TRACING_SERVICE_NAME", &c.Tracing.ServiceName)
	str("ISS_TRACING_EXPORTER", &c.Tracing.Exporter)
	str("ISS_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	float("ISS_TRACING_SAMPLE_RATIO", &c.Tracing.SampleRatio)

	return errors.Join(errs...)
}

// QuerySettings parses the query section.
func (c Config) QuerySettings() (core.NearestStrategy, core.Frame, error) {
	strategy, err := core.ParseNearestStrategy(c.Query.Nearest)
	if err != nil {
		return 0, 0, err
	}
	frame, err := core.ParseFrame(c.Query.Frame)
	if err != nil {
		return 0, 0, err
	}
	return strategy, frame, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if err := validURL(c.Feed.URL); err != nil {
		errs = append(errs, fmt.Errorf("feed.url: %w", err))
	}
	if c.Feed.Timeout <= 0 {
		errs = append(errs, errors.New("feed.timeout must be positive"))
	}
	if err := validURL(c.Geocoder.URL); err != nil {
		errs = append(errs, fmt.Errorf("geocoder.url: %w", err))
	}
	if c.Geocoder.Rate <= 0 {
		errs = append(errs, fmt.Errorf("geocoder.rate must be positive, got %v", c.Geocoder.Rate))
	}
	if c.Geocoder.CacheSize < 0 {
		errs = append(errs, errors.New("geocoder.cache_size must not be negative"))
	}
	if c.Geocoder.Zoom < 0 || c.Geocoder.Zoom > 18 {
		errs = append(errs, fmt.Errorf("geocoder.zoom must be in [0, 18], got %d", c.Geocoder.Zoom))
	}
	if c.Geocoder.Timeout <= 0 {
		errs = append(errs, errors.New("geocoder.timeout must be positive"))
	}
	if _, _, err := c.QuerySettings(); err != nil {
		errs = append(errs, fmt.Errorf("query: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Tracing.Enabled {
		switch strings.ToLower(c.Tracing.Exporter) {
		case "stdout", "otlp":
		default:
			errs = append(errs, fmt.Errorf("tracing.exporter must be stdout or otlp, got %q", c.Tracing.Exporter))
		}
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be in [0, 1], got %v", c.Tracing.SampleRatio))
	}
	return errors.Join(errs...)
}

func validURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

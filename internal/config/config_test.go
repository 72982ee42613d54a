package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/iss-tracker/core"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iss-tracker.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	strategy, frame, err := cfg.QuerySettings()
	if err != nil || strategy != core.NearestAbsolute || frame != core.FrameEmpirical {
		t.Fatalf("QuerySettings = (%v, %v, %v)", strategy, frame, err)
	}
	if cfg.Geocoder.Zoom != 18 || cfg.Geocoder.Language != "en" {
		t.Fatalf("geocoder defaults = %+v", cfg.Geocoder)
	}
}

func TestDecodeOverlaysDefaults(t *testing.T) {
	cfg := Default()
	err := decode([]byte(`
[server]
listen_addr = "127.0.0.1:8080"

[feed]
timeout = "5s"
retries = 4

[geocoder]
cache_ttl = "10m"
rate = 0.5

[query]
nearest = "legacy"
frame = "sidereal"

[tracing]
enabled = true
exporter = "otlp"
endpoint = "collector:4317"
`), &cfg)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if cfg.Server.ListenAddr != "127.0.0.1:8080" {
		t.Fatalf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.ShutdownTimeout.Std() != 10*time.Second {
		t.Fatalf("ShutdownTimeout = %v, want default kept", cfg.Server.ShutdownTimeout.Std())
	}
	if cfg.Feed.Timeout.Std() != 5*time.Second || cfg.Feed.Retries != 4 {
		t.Fatalf("Feed = %+v", cfg.Feed)
	}
	if cfg.Geocoder.CacheTTL.Std() != 10*time.Minute || cfg.Geocoder.Rate != 0.5 {
		t.Fatalf("Geocoder = %+v", cfg.Geocoder)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "otlp" || cfg.Tracing.ServiceName != "iss-tracker" {
		t.Fatalf("Tracing = %+v", cfg.Tracing)
	}
	strategy, frame, err := cfg.QuerySettings()
	if err != nil || strategy != core.NearestLegacy || frame != core.FrameSidereal {
		t.Fatalf("QuerySettings = (%v, %v, %v)", strategy, frame, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate = %v", err)
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	if err := decode([]byte("[server]\nlisten = \":1\"\n"), &cfg); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, "[log]\nlevel = \"debug\"\nformat = \"json\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("Log = %+v", cfg.Log)
	}
	if lc := cfg.Log.Logging(); lc.Level != "debug" || lc.Format != "json" {
		t.Fatalf("Logging() = %+v", lc)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(writeFile(t, "[server\n")); err == nil {
		t.Fatalf("expected error for invalid TOML")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ISS_LISTEN_ADDR", ":9999")
	t.Setenv("ISS_FRAME", "sidereal")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9999" || cfg.Query.Frame != "sidereal" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"ISS_METRICS_ADDR":         ":9090",
		"ISS_FEED_RETRIES":         "7",
		"ISS_FEED_TIMEOUT":         "1m",
		"ISS_GEOCODER_RATE":        "2.5",
		"ISS_GEOCODER_CACHE_SIZE":  "0",
		"ISS_NEAREST_STRATEGY":     "legacy",
		"ISS_TRACING_ENABLED":      "true",
		"ISS_TRACING_SAMPLE_RATIO": "0.25",
		"ISS_LOAD_ON_START":        "false",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv error: %v", err)
	}
	if cfg.Server.MetricsAddr != ":9090" || cfg.Server.LoadOnStart {
		t.Fatalf("Server = %+v", cfg.Server)
	}
	if cfg.Feed.Retries != 7 || cfg.Feed.Timeout.Std() != time.Minute {
		t.Fatalf("Feed = %+v", cfg.Feed)
	}
	if cfg.Geocoder.Rate != 2.5 || cfg.Geocoder.CacheSize != 0 {
		t.Fatalf("Geocoder = %+v", cfg.Geocoder)
	}
	if cfg.Query.Nearest != "legacy" || !cfg.Tracing.Enabled || cfg.Tracing.SampleRatio != 0.25 {
		t.Fatalf("cfg = %+v", cfg)
	}

	unchanged := Default()
	if err := unchanged.ApplyEnv(noEnv); err != nil {
		t.Fatalf("ApplyEnv(noEnv) error: %v", err)
	}
	if unchanged.Server != Default().Server {
		t.Fatalf("ApplyEnv with no variables changed config")
	}
}

func TestApplyEnvReportsEveryBadValue(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"ISS_FEED_RETRIES":    "-1",
		"ISS_FEED_TIMEOUT":    "soon",
		"ISS_TRACING_ENABLED": "maybe",
	}))
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, key := range []string{"ISS_FEED_RETRIES", "ISS_FEED_TIMEOUT", "ISS_TRACING_ENABLED"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error %q does not mention %s", err, key)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"empty listen":     func(c *Config) { c.Server.ListenAddr = "" },
		"zero rate":        func(c *Config) { c.Geocoder.Rate = 0 },
		"negative rate":    func(c *Config) { c.Geocoder.Rate = -1 },
		"unknown strategy": func(c *Config) { c.Query.Nearest = "closest" },
		"unknown frame":    func(c *Config) { c.Query.Frame = "ecef" },
		"bad feed url":     func(c *Config) { c.Feed.URL = "ftp://example.com/x" },
		"zoom too high":    func(c *Config) { c.Geocoder.Zoom = 25 },
		"bad log format":   func(c *Config) { c.Log.Format = "xml" },
		"bad exporter": func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		},
		"bad ratio": func(c *Config) { c.Tracing.SampleRatio = 2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() = nil, want error")
			}
		})
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte(" 90s ")); err != nil {
		t.Fatalf("UnmarshalText error: %v", err)
	}
	out, _ := d.MarshalText()
	if string(out) != "1m30s" {
		t.Fatalf("MarshalText = %q, want 1m30s", out)
	}
	if err := d.UnmarshalText([]byte("ninety")); err == nil {
		t.Fatalf("expected error")
	}
}

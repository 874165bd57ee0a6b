package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Harness HarnessConfig `yaml:"harness"`
	Chart   ChartConfig   `yaml:"chart"`
	Sampler SamplerConfig `yaml:"sampler"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HarnessConfig describes the external inference harness the engine
// subscribes to for token and telemetry events.
type HarnessConfig struct {
	URL           string        `yaml:"url"`
	ReconnectBase time.Duration `yaml:"reconnect_base"`
	ReconnectMax  time.Duration `yaml:"reconnect_max"`
	PingInterval  time.Duration `yaml:"ping_interval"`
}

// ChartConfig controls the read-side push cadence. Snapshot cadence is a
// caller policy, not an engine concern: interval mode re-broadcasts the
// full timeline periodically, render-once mode suppresses the periodic
// snapshot so consumers fetch the timeline once a session ends.
type ChartConfig struct {
	RefreshInterval   time.Duration `yaml:"refresh_interval"`
	RenderOnce        bool          `yaml:"render_once"`
	BroadcastThrottle time.Duration `yaml:"broadcast_throttle"`
}

// SamplerConfig controls the local host sampler used by demo mode.
type SamplerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

const (
	minRefreshInterval = 100 * time.Millisecond
	maxRefreshInterval = 3 * time.Second
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Harness: HarnessConfig{
			URL:           "ws://127.0.0.1:9736/events",
			ReconnectBase: time.Second,
			ReconnectMax:  30 * time.Second,
			PingInterval:  30 * time.Second,
		},
		Chart: ChartConfig{
			RefreshInterval:   time.Second,
			BroadcastThrottle: 100 * time.Millisecond,
		},
		Sampler: SamplerConfig{
			Interval: 250 * time.Millisecond,
		},
	}
}

// Load reads the YAML config at path, applying defaults for anything not
// set. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.clamp()
	return cfg, nil
}

// clamp bounds the chart refresh interval to the supported 100ms–3s range
// and backfills zero durations with their defaults.
func (c *Config) clamp() {
	if c.Chart.RefreshInterval < minRefreshInterval {
		c.Chart.RefreshInterval = minRefreshInterval
	}
	if c.Chart.RefreshInterval > maxRefreshInterval {
		c.Chart.RefreshInterval = maxRefreshInterval
	}
	if c.Chart.BroadcastThrottle <= 0 {
		c.Chart.BroadcastThrottle = 100 * time.Millisecond
	}
	if c.Harness.ReconnectBase <= 0 {
		c.Harness.ReconnectBase = time.Second
	}
	if c.Harness.ReconnectMax < c.Harness.ReconnectBase {
		c.Harness.ReconnectMax = 30 * time.Second
	}
	if c.Harness.PingInterval <= 0 {
		c.Harness.PingInterval = 30 * time.Second
	}
	if c.Sampler.Interval <= 0 {
		c.Sampler.Interval = 250 * time.Millisecond
	}
}

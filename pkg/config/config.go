package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// UpstreamConfig points at the live scoreboard/play feed.
type UpstreamConfig struct {
	BaseURL          string  // scoreboard API base
	PollSeconds      float64 // per-event poll interval
	CooldownSeconds  float64 // pause after delivering a new play
	DiscoverySeconds float64 // live-event discovery interval
	CacheTTLSeconds  float64 // upstream response cache TTL
	TimeoutSeconds   float64 // per-request timeout
}

// ReplayConfig drives the replay data source instead of live polling.
type ReplayConfig struct {
	EventID     string  // historical event to replay; empty = live mode
	PaceSeconds float64 // seconds between advancing one play
	DataURL     string  // historical play-by-play host
	CacheDir    string  // badger cache for fetched sequences
}

// ModelsConfig locates classifier artifacts and fixes the blend.
type ModelsConfig struct {
	Dir     string             // artifact directory, must exist
	Weights map[string]float64 // model name -> convex blend weight
}

// DetectorConfig carries the hysteresis thresholds. The defaults are the
// empirically tuned reference values; they are configuration, not truth.
type DetectorConfig struct {
	EntryGate       float64 // prior trailing must be below this to arm entry
	RiseStreak      int     // consecutive rises to enter
	ReboundLookMin  int     // rebound lookback window, inclusive
	ReboundLookMax  int
	ReboundLevel    float64 // trailing level that confirms a rebound entry
	JumpFrom        float64 // single-step jump: prior trailing at or below
	JumpDelta       float64 // ...and step gain at least
	FallStreak      int     // consecutive non-rises to exit
	DropDelta       float64 // single-step loss that exits
	ExitLevel       float64 // trailing at or below this exits
	FinalQuarter    int     // quarter gating state 2
	BandLow         float64 // state-2 tossup band
	BandHigh        float64
	BandGrace       int // samples allowed outside the band before exit
}

// PushConfig lists downstream push sinks.
type PushConfig struct {
	Endpoints      []string // base URLs, tried in order
	TimeoutSeconds float64  // per-attempt timeout
}

// ServerConfig controls the ingest/stream HTTP server.
type ServerConfig struct {
	Listen           string
	HeartbeatSeconds float64 // idle heartbeat interval for stream subscribers
}

// Config is the application configuration.
type Config struct {
	Upstream    UpstreamConfig
	Replay      ReplayConfig
	Models      ModelsConfig
	Detector    DetectorConfig
	Push        PushConfig
	Server      ServerConfig
	MetricsAddr string // expvar/pprof listen address, empty = disabled
	LogLevel    string
	LogFile     string
}

// configFile is the YAML/JSON on-disk layout.
type configFile struct {
	Upstream struct {
		BaseURL          string  `yaml:"base_url" json:"base_url"`
		PollSeconds      float64 `yaml:"poll_seconds" json:"poll_seconds"`
		CooldownSeconds  float64 `yaml:"cooldown_seconds" json:"cooldown_seconds"`
		DiscoverySeconds float64 `yaml:"discovery_seconds" json:"discovery_seconds"`
		CacheTTLSeconds  float64 `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`
		TimeoutSeconds   float64 `yaml:"timeout_seconds" json:"timeout_seconds"`
	} `yaml:"upstream" json:"upstream"`
	Replay struct {
		EventID     string  `yaml:"event_id" json:"event_id"`
		PaceSeconds float64 `yaml:"pace_seconds" json:"pace_seconds"`
		DataURL     string  `yaml:"data_url" json:"data_url"`
		CacheDir    string  `yaml:"cache_dir" json:"cache_dir"`
	} `yaml:"replay" json:"replay"`
	Models struct {
		Dir     string             `yaml:"dir" json:"dir"`
		Weights map[string]float64 `yaml:"weights" json:"weights"`
	} `yaml:"models" json:"models"`
	Detector struct {
		EntryGate      *float64 `yaml:"entry_gate" json:"entry_gate"`
		RiseStreak     *int     `yaml:"rise_streak" json:"rise_streak"`
		ReboundLookMin *int     `yaml:"rebound_look_min" json:"rebound_look_min"`
		ReboundLookMax *int     `yaml:"rebound_look_max" json:"rebound_look_max"`
		ReboundLevel   *float64 `yaml:"rebound_level" json:"rebound_level"`
		JumpFrom       *float64 `yaml:"jump_from" json:"jump_from"`
		JumpDelta      *float64 `yaml:"jump_delta" json:"jump_delta"`
		FallStreak     *int     `yaml:"fall_streak" json:"fall_streak"`
		DropDelta      *float64 `yaml:"drop_delta" json:"drop_delta"`
		ExitLevel      *float64 `yaml:"exit_level" json:"exit_level"`
		FinalQuarter   *int     `yaml:"final_quarter" json:"final_quarter"`
		BandLow        *float64 `yaml:"band_low" json:"band_low"`
		BandHigh       *float64 `yaml:"band_high" json:"band_high"`
		BandGrace      *int     `yaml:"band_grace" json:"band_grace"`
	} `yaml:"detector" json:"detector"`
	Push struct {
		Endpoints      []string `yaml:"endpoints" json:"endpoints"`
		TimeoutSeconds float64  `yaml:"timeout_seconds" json:"timeout_seconds"`
	} `yaml:"push" json:"push"`
	Server struct {
		Listen           string  `yaml:"listen" json:"listen"`
		HeartbeatSeconds float64 `yaml:"heartbeat_seconds" json:"heartbeat_seconds"`
	} `yaml:"server" json:"server"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
	LogFile     string `yaml:"log_file" json:"log_file"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:          "https://site.api.espn.com/apis/site/v2/sports/football/nfl",
			PollSeconds:      1.0,
			CooldownSeconds:  5.0,
			DiscoverySeconds: 20.0,
			CacheTTLSeconds:  3.0,
			TimeoutSeconds:   10.0,
		},
		Replay: ReplayConfig{
			PaceSeconds: 2.5,
			CacheDir:    "data/history",
		},
		Models: ModelsConfig{
			Dir: "models/pretrained",
			Weights: map[string]float64{
				"xgb": 0.35,
				"lgb": 0.35,
				"rf":  0.20,
				"lr":  0.10,
			},
		},
		Detector: DefaultDetector(),
		Push: PushConfig{
			Endpoints:      []string{"http://localhost:8000"},
			TimeoutSeconds: 10.0,
		},
		Server: ServerConfig{
			Listen:           ":8000",
			HeartbeatSeconds: 15.0,
		},
		LogLevel: "info",
		LogFile:  "logs/swingfeed.log",
	}
}

// DefaultDetector returns the reference hysteresis thresholds.
func DefaultDetector() DetectorConfig {
	return DetectorConfig{
		EntryGate:      0.35,
		RiseStreak:     5,
		ReboundLookMin: 3,
		ReboundLookMax: 5,
		ReboundLevel:   0.45,
		JumpFrom:       0.30,
		JumpDelta:      0.15,
		FallStreak:     3,
		DropDelta:      0.15,
		ExitLevel:      0.40,
		FinalQuarter:   4,
		BandLow:        0.40,
		BandHigh:       0.60,
		BandGrace:      4,
	}
}

// Load reads the config file (YAML or JSON by extension), applies defaults
// and environment overrides and validates the result. An empty path loads
// defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var cf configFile
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			if err := json.Unmarshal(data, &cf); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		default:
			if err := yaml.Unmarshal(data, &cf); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
		cf.apply(cfg)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cf *configFile) apply(cfg *Config) {
	if cf.Upstream.BaseURL != "" {
		cfg.Upstream.BaseURL = cf.Upstream.BaseURL
	}
	if cf.Upstream.PollSeconds > 0 {
		cfg.Upstream.PollSeconds = cf.Upstream.PollSeconds
	}
	if cf.Upstream.CooldownSeconds > 0 {
		cfg.Upstream.CooldownSeconds = cf.Upstream.CooldownSeconds
	}
	if cf.Upstream.DiscoverySeconds > 0 {
		cfg.Upstream.DiscoverySeconds = cf.Upstream.DiscoverySeconds
	}
	if cf.Upstream.CacheTTLSeconds > 0 {
		cfg.Upstream.CacheTTLSeconds = cf.Upstream.CacheTTLSeconds
	}
	if cf.Upstream.TimeoutSeconds > 0 {
		cfg.Upstream.TimeoutSeconds = cf.Upstream.TimeoutSeconds
	}
	if cf.Replay.EventID != "" {
		cfg.Replay.EventID = cf.Replay.EventID
	}
	if cf.Replay.PaceSeconds > 0 {
		cfg.Replay.PaceSeconds = cf.Replay.PaceSeconds
	}
	if cf.Replay.DataURL != "" {
		cfg.Replay.DataURL = cf.Replay.DataURL
	}
	if cf.Replay.CacheDir != "" {
		cfg.Replay.CacheDir = cf.Replay.CacheDir
	}
	if cf.Models.Dir != "" {
		cfg.Models.Dir = cf.Models.Dir
	}
	if len(cf.Models.Weights) > 0 {
		cfg.Models.Weights = cf.Models.Weights
	}
	cf.applyDetector(&cfg.Detector)
	if len(cf.Push.Endpoints) > 0 {
		cfg.Push.Endpoints = cf.Push.Endpoints
	}
	if cf.Push.TimeoutSeconds > 0 {
		cfg.Push.TimeoutSeconds = cf.Push.TimeoutSeconds
	}
	if cf.Server.Listen != "" {
		cfg.Server.Listen = cf.Server.Listen
	}
	if cf.Server.HeartbeatSeconds > 0 {
		cfg.Server.HeartbeatSeconds = cf.Server.HeartbeatSeconds
	}
	if cf.MetricsAddr != "" {
		cfg.MetricsAddr = cf.MetricsAddr
	}
	if cf.LogLevel != "" {
		cfg.LogLevel = cf.LogLevel
	}
	if cf.LogFile != "" {
		cfg.LogFile = cf.LogFile
	}
}

func (cf *configFile) applyDetector(d *DetectorConfig) {
	if cf.Detector.EntryGate != nil {
		d.EntryGate = *cf.Detector.EntryGate
	}
	if cf.Detector.RiseStreak != nil {
		d.RiseStreak = *cf.Detector.RiseStreak
	}
	if cf.Detector.ReboundLookMin != nil {
		d.ReboundLookMin = *cf.Detector.ReboundLookMin
	}
	if cf.Detector.ReboundLookMax != nil {
		d.ReboundLookMax = *cf.Detector.ReboundLookMax
	}
	if cf.Detector.ReboundLevel != nil {
		d.ReboundLevel = *cf.Detector.ReboundLevel
	}
	if cf.Detector.JumpFrom != nil {
		d.JumpFrom = *cf.Detector.JumpFrom
	}
	if cf.Detector.JumpDelta != nil {
		d.JumpDelta = *cf.Detector.JumpDelta
	}
	if cf.Detector.FallStreak != nil {
		d.FallStreak = *cf.Detector.FallStreak
	}
	if cf.Detector.DropDelta != nil {
		d.DropDelta = *cf.Detector.DropDelta
	}
	if cf.Detector.ExitLevel != nil {
		d.ExitLevel = *cf.Detector.ExitLevel
	}
	if cf.Detector.FinalQuarter != nil {
		d.FinalQuarter = *cf.Detector.FinalQuarter
	}
	if cf.Detector.BandLow != nil {
		d.BandLow = *cf.Detector.BandLow
	}
	if cf.Detector.BandHigh != nil {
		d.BandHigh = *cf.Detector.BandHigh
	}
	if cf.Detector.BandGrace != nil {
		d.BandGrace = *cf.Detector.BandGrace
	}
}

// applyEnv keeps the environment variable names the deployment scripts
// already use.
func applyEnv(cfg *Config) {
	if v := os.Getenv("API_BASE"); v != "" {
		cfg.Push.Endpoints = []string{v}
	}
	if v := os.Getenv("MODELS_DIR"); v != "" {
		cfg.Models.Dir = v
	}
	if v := os.Getenv("REPLAY_EVENT_ID"); v != "" {
		cfg.Replay.EventID = v
	}
	if v, ok := envFloat("REPLAY_PACE_SECONDS"); ok {
		cfg.Replay.PaceSeconds = v
	}
	if v, ok := envFloat("POLL_SECONDS"); ok {
		cfg.Upstream.PollSeconds = v
	}
	if v, ok := envFloat("COOLDOWN_SECONDS"); ok {
		cfg.Upstream.CooldownSeconds = v
	}
	if v, ok := envFloat("POLL_BURST_SECONDS"); ok {
		cfg.Upstream.DiscoverySeconds = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Models.Dir == "" {
		return fmt.Errorf("models dir is required")
	}
	if c.Upstream.PollSeconds <= 0 {
		return fmt.Errorf("upstream poll_seconds must be positive")
	}
	if c.Upstream.DiscoverySeconds <= 0 {
		return fmt.Errorf("upstream discovery_seconds must be positive")
	}
	var sum float64
	for name, w := range c.Models.Weights {
		if w < 0 {
			return fmt.Errorf("model weight %s is negative", name)
		}
		sum += w
	}
	if len(c.Models.Weights) > 0 && (sum < 0.999 || sum > 1.001) {
		return fmt.Errorf("model weights must sum to 1, got %.4f", sum)
	}
	d := c.Detector
	if d.BandLow >= d.BandHigh {
		return fmt.Errorf("detector band_low must be below band_high")
	}
	if d.RiseStreak <= 0 || d.FallStreak <= 0 || d.BandGrace <= 0 {
		return fmt.Errorf("detector streak thresholds must be positive")
	}
	if d.ReboundLookMin <= 0 || d.ReboundLookMax < d.ReboundLookMin {
		return fmt.Errorf("detector rebound lookback window is invalid")
	}
	return nil
}

// PollInterval returns the per-event poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Upstream.PollSeconds * float64(time.Second))
}

// Cooldown returns the post-delivery cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Upstream.CooldownSeconds * float64(time.Second))
}

// DiscoveryInterval returns the live-set discovery interval as a duration.
func (c *Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.Upstream.DiscoverySeconds * float64(time.Second))
}

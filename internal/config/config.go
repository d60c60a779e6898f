package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel   string           `json:"log_level" yaml:"log_level"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Thresholds ThresholdsConfig `json:"thresholds" yaml:"thresholds"`
	Logs       LogsConfig       `json:"logs" yaml:"logs"`
	Chart      ChartConfig      `json:"chart" yaml:"chart"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Stream     StreamConfig     `json:"stream" yaml:"stream"`
	API        APIConfig        `json:"api" yaml:"api"`
	Terminal   TerminalConfig   `json:"terminal" yaml:"terminal"`
}

type SimulationConfig struct {
	TickInterval      time.Duration `json:"tick_interval" yaml:"tick_interval"`
	OccupancyInterval time.Duration `json:"occupancy_interval" yaml:"occupancy_interval"`
	TickStep          float64       `json:"tick_step" yaml:"tick_step"`
	Seed              uint64        `json:"seed" yaml:"seed"`
	Bays              int           `json:"bays" yaml:"bays"`
}

// ThresholdsConfig holds the alert boundaries. Comparisons are strict.
type ThresholdsConfig struct {
	OxygenMin      float64 `json:"oxygen_min" yaml:"oxygen_min"`
	TemperatureMin float64 `json:"temperature_min" yaml:"temperature_min"`
	TemperatureMax float64 `json:"temperature_max" yaml:"temperature_max"`
	FoodMin        float64 `json:"food_min" yaml:"food_min"`
	PowerMax       float64 `json:"power_max" yaml:"power_max"`
	SleepMin       float64 `json:"sleep_min" yaml:"sleep_min"`
	WellnessMin    float64 `json:"wellness_min" yaml:"wellness_min"`
}

type LogsConfig struct {
	AlertLimit   int `json:"alert_limit" yaml:"alert_limit"`
	CommandLimit int `json:"command_limit" yaml:"command_limit"`
	ChatLimit    int `json:"chat_limit" yaml:"chat_limit"`
}

type ChartConfig struct {
	Window int `json:"window" yaml:"window"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type StreamConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Brokers        []string `json:"brokers" yaml:"brokers"`
	AlertTopic     string   `json:"alert_topic" yaml:"alert_topic"`
	TelemetryTopic string   `json:"telemetry_topic" yaml:"telemetry_topic"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type TerminalConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

const (
	defaultAlertLimit   = 10000
	defaultCommandLimit = 10000
	defaultChatLimit    = 1000
	defaultChartWindow  = 25
)

func DefaultThresholds() ThresholdsConfig {
	return ThresholdsConfig{
		OxygenMin:      19,
		TemperatureMin: 0,
		TemperatureMax: 25,
		FoodMin:        20,
		PowerMax:       90,
		SleepMin:       6,
		WellnessMin:    5,
	}
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Simulation: SimulationConfig{
			TickInterval:      1 * time.Second,
			OccupancyInterval: 30 * time.Second,
			TickStep:          0.1,
			Bays:              4,
		},
		Thresholds: DefaultThresholds(),
		Logs: LogsConfig{
			AlertLimit:   defaultAlertLimit,
			CommandLimit: defaultCommandLimit,
			ChatLimit:    defaultChatLimit,
		},
		Chart:    ChartConfig{Window: defaultChartWindow},
		Storage:  StorageConfig{Driver: "sqlite", DSN: "file:habitat.db?_pragma=busy_timeout(5000)"},
		Stream:   StreamConfig{Enabled: false, AlertTopic: "habitat.alerts", TelemetryTopic: "habitat.telemetry"},
		API:      APIConfig{Enabled: true, Addr: ":8080"},
		Terminal: TerminalConfig{Enabled: false, Addr: ":9000"},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Simulation.TickInterval <= 0 {
		cfg.Simulation.TickInterval = 1 * time.Second
	}
	if cfg.Simulation.OccupancyInterval <= 0 {
		cfg.Simulation.OccupancyInterval = 30 * time.Second
	}
	if cfg.Simulation.TickStep <= 0 {
		cfg.Simulation.TickStep = 0.1
	}
	if cfg.Simulation.Bays <= 0 {
		cfg.Simulation.Bays = 4
	}
	if cfg.Logs.AlertLimit <= 0 {
		cfg.Logs.AlertLimit = defaultAlertLimit
	}
	if cfg.Logs.CommandLimit <= 0 {
		cfg.Logs.CommandLimit = defaultCommandLimit
	}
	if cfg.Logs.ChatLimit <= 0 {
		cfg.Logs.ChatLimit = defaultChatLimit
	}
	if cfg.Chart.Window <= 0 {
		cfg.Chart.Window = defaultChartWindow
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Stream.AlertTopic == "" {
		cfg.Stream.AlertTopic = "habitat.alerts"
	}
	if cfg.Stream.TelemetryTopic == "" {
		cfg.Stream.TelemetryTopic = "habitat.telemetry"
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Terminal.Enabled && cfg.Terminal.Addr == "" {
		return errors.New("terminal.addr required when terminal.enabled is true")
	}
	if cfg.Stream.Enabled && len(cfg.Stream.Brokers) == 0 {
		return errors.New("stream requires brokers when enabled")
	}
	switch strings.ToLower(cfg.Storage.Driver) {
	case "memory", "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("storage.driver %q is not supported", cfg.Storage.Driver)
	}
	return ValidateThresholds(cfg.Thresholds)
}

// thresholdRanges are the generator clamp bounds for each channel.
var thresholdRanges = []struct {
	name   string
	lo, hi float64
	value  func(ThresholdsConfig) float64
}{
	{"oxygen_min", 18, 22, func(t ThresholdsConfig) float64 { return t.OxygenMin }},
	{"temperature_min", -10, 25, func(t ThresholdsConfig) float64 { return t.TemperatureMin }},
	{"temperature_max", -10, 25, func(t ThresholdsConfig) float64 { return t.TemperatureMax }},
	{"food_min", 0, 100, func(t ThresholdsConfig) float64 { return t.FoodMin }},
	{"power_max", 0, 100, func(t ThresholdsConfig) float64 { return t.PowerMax }},
	{"sleep_min", 6, 9, func(t ThresholdsConfig) float64 { return t.SleepMin }},
	{"wellness_min", 1, 10, func(t ThresholdsConfig) float64 { return t.WellnessMin }},
}

// ValidateThresholds checks every threshold against its channel range.
func ValidateThresholds(t ThresholdsConfig) error {
	for _, r := range thresholdRanges {
		v := r.value(t)
		if math.IsNaN(v) || v < r.lo || v > r.hi {
			return fmt.Errorf("thresholds.%s (%g) must be within [%g, %g]", r.name, v, r.lo, r.hi)
		}
	}
	if t.TemperatureMin >= t.TemperatureMax {
		return fmt.Errorf("thresholds.temperature_min (%g) must be below temperature_max (%g)", t.TemperatureMin, t.TemperatureMax)
	}
	return nil
}

type Manager struct {
	path string
	cfg  atomic.Value

	mu      sync.Mutex
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	m.stamp()
	return m, nil
}

// NewStaticManager wraps an in-memory config that is never reloaded.
func NewStaticManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	m.stamp()
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
	}
	m.cfg.Store(cfg)
	m.stamp()
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return info.ModTime().After(m.modTime), nil
}

// stamp records the file's current mtime so Watch skips our own writes.
func (m *Manager) stamp() {
	if m.path == "" {
		return
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.modTime = info.ModTime()
	m.mu.Unlock()
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}

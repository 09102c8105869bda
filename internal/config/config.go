package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config represents the complete configuration for the telemetry mock
type Config struct {
	Network NetworkConfig `yaml:"network"`
	Stream  StreamConfig  `yaml:"stream"`
	Track   TrackConfig   `yaml:"track"`
	Logging LoggingConfig `yaml:"logging"`
}

// NetworkConfig holds network-related settings
type NetworkConfig struct {
	UDP UDPConfig `yaml:"udp"`
}

// UDPConfig holds the UDP listener settings
type UDPConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadBufferBytes int    `yaml:"readBufferBytes"`
}

// StreamConfig holds emission timing settings
type StreamConfig struct {
	IntervalMs int     `yaml:"intervalMs"` // wall-clock period between frames
	StepSec    float64 `yaml:"stepSec"`    // simulated seconds added per frame
}

// TrackConfig describes the repeating lap pattern fed to the waveform generator
type TrackConfig struct {
	LapDurationSec float64      `yaml:"lapDurationSec"`
	BrakeZones     []Window     `yaml:"brakeZones"`
	LiftWindows    []LiftWindow `yaml:"liftWindows"`
}

// Window is an inclusive interval of lap progress in [0, 1]
type Window struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// LiftWindow is a window where throttle is held at a partial value
type LiftWindow struct {
	Start    float64 `yaml:"start"`
	End      float64 `yaml:"end"`
	Throttle float64 `yaml:"throttle"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// Interval returns the emission period as a duration
func (s StreamConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// Address returns host:port for the UDP listener
func (u UDPConfig) Address() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Load default configuration
	cfg := Default()

	// Load from default config file
	if err := loadFromFile(cfg, "config/default.yaml"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Could not load default config: %v", err)
	}

	// Load from config file if ACUDP_MOCK_CONFIG is set
	if path := os.Getenv("ACUDP_MOCK_CONFIG"); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	// .env never overrides variables already present in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Could not load .env: %v", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile loads defaults overlaid with a single YAML file, without
// consulting the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			UDP: UDPConfig{
				Host:            "127.0.0.1",
				Port:            9996,
				ReadBufferBytes: 2048,
			},
		},
		Stream: StreamConfig{
			IntervalMs: 50,   // nominal 20 Hz
			StepSec:    0.05, // matched 1:1 with IntervalMs
		},
		Track: DefaultTrack(),
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// DefaultTrack returns the circuit pattern the downstream visualizer was tuned against.
func DefaultTrack() TrackConfig {
	return TrackConfig{
		LapDurationSec: 90,
		BrakeZones: []Window{
			{Start: 0.02, End: 0.08},
			{Start: 0.22, End: 0.28},
			{Start: 0.45, End: 0.52},
			{Start: 0.68, End: 0.75},
			{Start: 0.88, End: 0.95},
		},
		LiftWindows: []LiftWindow{
			{Start: 0.48, End: 0.55, Throttle: 85},
			{Start: 0.92, End: 0.98, Throttle: 90},
		},
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("ACUDP_MOCK_HOST"); host != "" {
		cfg.Network.UDP.Host = host
	}

	if port := os.Getenv("ACUDP_MOCK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Network.UDP.Port = p
		}
	}

	if interval := os.Getenv("ACUDP_MOCK_INTERVAL_MS"); interval != "" {
		if ms, err := strconv.Atoi(interval); err == nil {
			cfg.Stream.IntervalMs = ms
		}
	}

	if step := os.Getenv("ACUDP_MOCK_STEP_SEC"); step != "" {
		if sec, err := strconv.ParseFloat(step, 64); err == nil {
			cfg.Stream.StepSec = sec
		}
	}

	if logFile := os.Getenv("ACUDP_MOCK_LOG_FILE"); logFile != "" {
		cfg.Logging.File = logFile
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Network.UDP.Host == "" {
		return fmt.Errorf("udp host must not be empty")
	}
	if c.Network.UDP.Port < 1 || c.Network.UDP.Port > 65535 {
		return fmt.Errorf("invalid udp port %d (must be 1-65535)", c.Network.UDP.Port)
	}
	if c.Network.UDP.ReadBufferBytes < 12 {
		return fmt.Errorf("read buffer of %d bytes cannot hold a packet header", c.Network.UDP.ReadBufferBytes)
	}

	if c.Stream.IntervalMs <= 0 {
		return fmt.Errorf("stream interval %dms must be positive", c.Stream.IntervalMs)
	}
	if c.Stream.StepSec <= 0 {
		return fmt.Errorf("stream step %gs must be positive", c.Stream.StepSec)
	}

	return c.Track.Validate()
}

// Validate checks lap duration and window bounds
func (t TrackConfig) Validate() error {
	if t.LapDurationSec <= 0 {
		return fmt.Errorf("lap duration %gs must be positive", t.LapDurationSec)
	}

	for i, z := range t.BrakeZones {
		if !validWindow(z.Start, z.End) {
			return fmt.Errorf("brake zone %d [%g, %g] is outside [0, 1] or empty", i, z.Start, z.End)
		}
	}

	for i, w := range t.LiftWindows {
		if !validWindow(w.Start, w.End) {
			return fmt.Errorf("lift window %d [%g, %g] is outside [0, 1] or empty", i, w.Start, w.End)
		}
		if w.Throttle < 0 || w.Throttle > 100 {
			return fmt.Errorf("lift window %d throttle %g must be 0-100", i, w.Throttle)
		}
	}

	return nil
}

func validWindow(start, end float64) bool {
	return start >= 0 && end <= 1 && start < end
}

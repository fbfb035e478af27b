// File: control/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// YAML configuration, validation and a thread-safe store with reload
// propagation.

package control

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/momentics/hioload-uv/uv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the file-level configuration of a uv process.
type Config struct {
	Loop    LoopConfig    `yaml:"loop"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoopConfig tunes a loop. Zero values keep the library defaults.
type LoopConfig struct {
	ThreadPoolSize int  `yaml:"thread_pool_size" validate:"gte=0,lte=1024"`
	MaxEvents      int  `yaml:"max_events" validate:"gte=0,lte=65536"`
	RecoverPanics  bool `yaml:"recover_panics"`
	// PinThreads locks each loop goroutine to an OS thread pinned to one CPU.
	PinThreads     bool `yaml:"pin_threads"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
	Output string `yaml:"output"` // stdout, stderr or a file path
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Listen    string        `yaml:"listen" validate:"omitempty,hostname_port"`
	Namespace string        `yaml:"namespace" validate:"omitempty,alphanum"`
	Interval  time.Duration `yaml:"interval" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Log:     LogConfig{Level: "info", Format: "console", Output: "stderr"},
		Metrics: MetricsConfig{Namespace: "uv", Interval: time.Second},
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("invalid config: metrics enabled without listen address")
	}
	return nil
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// LoopOptions converts the loop section into uv options.
func (c Config) LoopOptions(log zerolog.Logger) []uv.Option {
	opts := []uv.Option{uv.WithLogger(log)}
	if c.Loop.ThreadPoolSize > 0 {
		opts = append(opts, uv.WithThreadPoolSize(c.Loop.ThreadPoolSize))
	}
	if c.Loop.MaxEvents > 0 {
		opts = append(opts, uv.WithMaxEvents(c.Loop.MaxEvents))
	}
	if c.Loop.RecoverPanics {
		opts = append(opts, uv.WithPanicHandler(func(r any) {
			log.Error().Interface("panic", r).Msg("listener panic")
		}))
	}
	return opts
}

// ConfigStore holds the current configuration with atomic snapshot reads.
type ConfigStore struct {
	mu        sync.RWMutex
	config    Config
	listeners []func(Config)
}

// NewConfigStore initializes a store with cfg.
func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{config: cfg}
}

// Snapshot returns a copy of the current configuration.
func (cs *ConfigStore) Snapshot() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.config
}

// SetConfig validates and installs cfg, then notifies listeners on the
// calling goroutine.
func (cs *ConfigStore) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.config = cfg
	listeners := slices.Clone(cs.listeners)
	cs.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// OnReload registers a listener called after every successful SetConfig.
func (cs *ConfigStore) OnReload(fn func(Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

package model

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultThreads     = 3
	DefaultTimeout     = 10 * time.Second
	DefaultWatchEach   = 3 * time.Second
	DefaultMonitorEach = 3 * time.Second

	EnvPrefix = "POOLSVC_"
)

// Config holds the settings of a single service run. The zero value is not
// usable, start from DefaultConfig.
type Config struct {
	Threads     int           `yaml:"threads" env:"THREADS"`           // number of workers
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`           // failer delay
	WatchEach   time.Duration `yaml:"watch_each" env:"WATCH_EACH"`     // watcher push interval
	MonitorEach time.Duration `yaml:"monitor_each" env:"MONITOR_EACH"` // monitor report interval
	Verbose     bool          `yaml:"verbose" env:"VERBOSE"`
}

func DefaultConfig() Config {
	return Config{
		Threads:     DefaultThreads,
		Timeout:     DefaultTimeout,
		WatchEach:   DefaultWatchEach,
		MonitorEach: DefaultMonitorEach,
	}
}

// LoadConfig decodes YAML from r on top of the defaults. Keys missing in
// the document keep their default values.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// FromEnv overrides cfg with POOLSVC_* variables found in environ. A nil
// environ means the process environment.
func FromEnv(cfg Config, environ map[string]string) (Config, error) {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must not be negative, got %d", c.Threads))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.WatchEach <= 0 {
		errs = append(errs, fmt.Errorf("watch_each must be positive, got %s", c.WatchEach))
	}
	if c.MonitorEach <= 0 {
		errs = append(errs, fmt.Errorf("monitor_each must be positive, got %s", c.MonitorEach))
	}
	return errors.Join(errs...)
}

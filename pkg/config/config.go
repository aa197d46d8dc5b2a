// Package config handles meson configuration loading.
package config

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/edbennett/meson-analysis/pkg/correlator"
	merrors "github.com/edbennett/meson-analysis/pkg/errors"
	"github.com/edbennett/meson-analysis/pkg/reader"
)

// Config is the root configuration structure.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Cache   CacheConfig   `yaml:"cache"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Metrics MetricsConfig `yaml:"metrics"`
	Jobs    []JobConfig   `yaml:"jobs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "auto", "text" or "json"
}

// CacheConfig holds parse cache settings.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled"`
	Capacity int  `yaml:"capacity"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	Concurrency int    `yaml:"concurrency"`
	Ensemble    string `yaml:"ensemble"` // name of the combined ensemble
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Output receives the text exposition after a run; empty means stdout.
	Output string `yaml:"output"`
}

// JobConfig describes one input.
type JobConfig struct {
	Name   string `yaml:"name"`
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
	Stream string `yaml:"stream"`

	// ValenceMass is a pointer to distinguish "not set" from "explicitly 0".
	ValenceMass *float64 `yaml:"valence_mass"`

	Metadata MetadataConfig `yaml:"metadata"`
}

// MetadataConfig holds metadata known to the caller rather than the input.
type MetadataConfig struct {
	NT          *int              `yaml:"nt"`
	NX          *int              `yaml:"nx"`
	NY          *int              `yaml:"ny"`
	NZ          *int              `yaml:"nz"`
	Nc          *int              `yaml:"nc"`
	Nf          *int              `yaml:"nf"`
	Beta        *float64          `yaml:"beta"`
	FermionMass *float64          `yaml:"fermion_mass"`
	GroupFamily string            `yaml:"group_family"`
	Extra       map[string]string `yaml:"extra"`
}

// Correlator converts the settings to collection metadata.
func (m MetadataConfig) Correlator() correlator.Metadata {
	var meta correlator.Metadata
	setInt := func(dst *correlator.Value[int], v *int) {
		if v != nil {
			*dst = correlator.Of(*v)
		}
	}
	setFloat := func(dst *correlator.Value[float64], v *float64) {
		if v != nil {
			*dst = correlator.Of(*v)
		}
	}

	setInt(&meta.NT, m.NT)
	setInt(&meta.NX, m.NX)
	setInt(&meta.NY, m.NY)
	setInt(&meta.NZ, m.NZ)
	setInt(&meta.Nc, m.Nc)
	setInt(&meta.Nf, m.Nf)
	setFloat(&meta.Beta, m.Beta)
	setFloat(&meta.FermionMass, m.FermionMass)
	if m.GroupFamily != "" {
		meta.GroupFamily = correlator.Of(m.GroupFamily)
	}
	for k, v := range m.Extra {
		_ = meta.SetExtra(k, v) // keys are unique, so this never conflicts
	}
	return meta
}

// Options converts the job to reader options. Logger and metrics are left
// for the caller.
func (j JobConfig) Options() reader.Options {
	return reader.Options{
		StreamName:  j.Stream,
		ValenceMass: j.ValenceMass,
		Metadata:    j.Metadata.Correlator(),
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 8,
		},
		Ingest: IngestConfig{
			Concurrency: 4,
			Ensemble:    "combined",
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, merrors.ConfigWrap(err, merrors.ErrConfigNotFound, "config file not found").
				WithContext("path", path)
		}
		return nil, merrors.IO(err, path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, merrors.ConfigWrap(err, merrors.ErrConfigParseFailed, "failed to parse config").
			WithContext("path", path)
	}

	return cfg, nil
}

// LoadOrDefault loads config from path, or returns default if not found.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	return Load(path)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var result *multierror.Error
	invalid := func(format string, args ...interface{}) {
		result = multierror.Append(result, merrors.Configf(merrors.ErrConfigInvalid, format, args...))
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		invalid("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		invalid("unknown log format %q", c.Logging.Format)
	}
	if c.Cache.Enabled && c.Cache.Capacity <= 0 {
		invalid("cache capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Ingest.Concurrency < 0 {
		invalid("ingest concurrency can't be negative, got %d", c.Ingest.Concurrency)
	}

	formats := reader.Default()
	for i, job := range c.Jobs {
		if _, ok := formats.Get(job.Format); !ok {
			invalid("job %d: unknown format %q", i, job.Format)
		}
		if job.Path == "" {
			invalid("job %d: path is required", i)
		}
		if job.Format == reader.FormatFlexlatsim && job.ValenceMass == nil {
			invalid("job %d: flexlatsim jobs need valence_mass", i)
		}
	}

	return result.ErrorOrNil()
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return merrors.ConfigWrap(err, merrors.ErrConfigWriteFailed, "failed to create config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return merrors.ConfigWrap(err, merrors.ErrConfigWriteFailed, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return merrors.ConfigWrap(err, merrors.ErrConfigWriteFailed, "failed to write config file").
			WithContext("path", path)
	}
	return nil
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	// First check for config in current working directory
	if _, err := os.Stat("meson.yaml"); err == nil {
		return "meson.yaml"
	}
	// Then check for config/ subdirectory
	if _, err := os.Stat("config/meson.yaml"); err == nil {
		return "config/meson.yaml"
	}
	return "meson.yaml"
}

// InitConfig creates a default config file if it doesn't exist.
func InitConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // Already exists
	}

	cfg := Default()
	return cfg.Save(path)
}

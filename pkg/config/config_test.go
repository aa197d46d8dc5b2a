// Package config tests for configuration loading and structured error handling.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"

	merrors "github.com/edbennett/meson-analysis/pkg/errors"
	"github.com/edbennett/meson-analysis/pkg/reader"
)

// -----------------------------------------------------------------------------
// Load Tests with Structured Errors
// -----------------------------------------------------------------------------

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/to/meson.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}

	merr, ok := err.(*merrors.MesonError)
	if !ok {
		t.Fatalf("expected *merrors.MesonError, got %T", err)
	}
	if merr.Code != merrors.ErrConfigNotFound {
		t.Errorf("expected code %q, got %q", merrors.ErrConfigNotFound, merr.Code)
	}
	if merr.Category != merrors.CategoryConfig {
		t.Errorf("expected category %v, got %v", merrors.CategoryConfig, merr.Category)
	}

	foundInit := false
	for _, s := range merr.Suggestions {
		if strings.Contains(s, "-init") {
			foundInit = true
			break
		}
	}
	if !foundInit {
		t.Error("expected suggestion to mention '-init'")
	}
}

func TestLoad_YAMLParseError(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")

	invalidYAML := `logging: [unclosed
cache:
  enabled: true
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !merrors.IsCode(err, merrors.ErrConfigParseFailed) {
		t.Errorf("expected code %q, got %v", merrors.ErrConfigParseFailed, err)
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "meson.yaml")

	content := `logging:
  level: debug
jobs:
  - name: flex
    format: flexlatsim
    path: data/out.log
    stream: s1
    valence_mass: 0.0
    metadata:
      nt: 24
      beta: 2.25
      extra:
        ensemble: A1
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "auto" {
		t.Errorf("expected default format to survive, got %q", cfg.Logging.Format)
	}
	if cfg.Cache.Capacity != 8 {
		t.Errorf("expected default capacity 8, got %d", cfg.Cache.Capacity)
	}
	if len(cfg.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(cfg.Jobs))
	}

	job := cfg.Jobs[0]
	if job.ValenceMass == nil || *job.ValenceMass != 0 {
		t.Errorf("expected explicit valence mass 0, got %v", job.ValenceMass)
	}

	opts := job.Options()
	if opts.StreamName != "s1" {
		t.Errorf("expected stream s1, got %q", opts.StreamName)
	}
	if nt, ok := opts.Metadata.NT.Get(); !ok || nt != 24 {
		t.Errorf("expected NT 24, got %v", opts.Metadata.NT)
	}
	if beta, ok := opts.Metadata.Beta.Get(); !ok || beta != 2.25 {
		t.Errorf("expected beta 2.25, got %v", opts.Metadata.Beta)
	}
	if opts.Metadata.NX.IsSet() {
		t.Error("expected NX to stay unset")
	}
	if opts.Metadata.Extra["ensemble"] != "A1" {
		t.Errorf("expected extra ensemble A1, got %v", opts.Metadata.Extra)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

// -----------------------------------------------------------------------------
// LoadOrDefault / Save / InitConfig
// -----------------------------------------------------------------------------

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil || cfg == nil {
		t.Fatalf("expected default config, got %v, %v", cfg, err)
	}

	cfg, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Ingest.Ensemble != "combined" {
		t.Errorf("expected default ensemble name, got %q", cfg.Ingest.Ensemble)
	}
}

func TestSaveAndInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "meson.yaml")

	if err := InitConfig(path); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load after InitConfig failed: %v", err)
	}
	if cfg.Ingest.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Ingest.Concurrency)
	}

	cfg.Ingest.Concurrency = 2
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// InitConfig must not overwrite an existing file
	if err := InitConfig(path); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Ingest.Concurrency != 2 {
		t.Errorf("expected saved concurrency 2, got %d", cfg.Ingest.Concurrency)
	}
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	cfg := Default()
	cfg.Logging.Level = "chatty"
	cfg.Logging.Format = "xml"
	cfg.Cache.Capacity = 0
	cfg.Ingest.Concurrency = -1
	cfg.Jobs = []JobConfig{
		{Format: "milc", Path: "a"},
		{Format: reader.FormatHirep},
		{Format: reader.FormatFlexlatsim, Path: "b"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Fatalf("expected *multierror.Error, got %T", err)
	}
	if len(merr.Errors) != 7 {
		t.Errorf("expected 7 problems, got %d: %v", len(merr.Errors), err)
	}
	for _, e := range merr.Errors {
		if !merrors.IsCode(e, merrors.ErrConfigInvalid) {
			t.Errorf("expected %s, got %v", merrors.ErrConfigInvalid, e)
		}
	}
}

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidBackends lists the store backends [Validate] accepts.
var ValidBackends = []string{BackendFile, BackendPostgres}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [Read] and [Validate].
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// Read decodes the YAML configuration file at path without validating it,
// for callers that apply overrides before calling [Validate].
func Read(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown keys are rejected. An empty document yields the zero [Config].
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	backend := cfg.Store.BackendName()
	if !slices.Contains(ValidBackends, backend) {
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: file, postgres", backend))
	}
	switch backend {
	case BackendPostgres:
		if cfg.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required when store.backend is postgres"))
		}
	case BackendFile:
		if cfg.Store.PostgresDSN != "" {
			slog.Warn("store.postgres_dsn is set but store.backend is file; the DSN is ignored")
		}
	}

	if add := cfg.Catalog.Additions; add != "" && backend == BackendFile && add == cfg.Catalog.Target() {
		errs = append(errs, fmt.Errorf("catalog.additions %q must differ from the destination catalog", add))
	}

	return errors.Join(errs...)
}

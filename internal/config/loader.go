package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s is negative", cfg.Server.ShutdownTimeout))
	}

	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; running on in-memory stores, all state is lost on restart")
	}
	if cfg.Storage.BreakerThreshold < 0 {
		errs = append(errs, fmt.Errorf("storage.breaker_threshold %d is negative", cfg.Storage.BreakerThreshold))
	}
	if cfg.Storage.BreakerCooldown < 0 {
		errs = append(errs, fmt.Errorf("storage.breaker_cooldown %s is negative", cfg.Storage.BreakerCooldown))
	}

	if cfg.Biometric.RequiredSamples < 0 {
		errs = append(errs, fmt.Errorf("biometric.required_samples %d is negative", cfg.Biometric.RequiredSamples))
	}
	if cfg.Biometric.ConfidenceThreshold != 0 {
		if cfg.Biometric.ConfidenceThreshold < 0 || cfg.Biometric.ConfidenceThreshold > 1 {
			errs = append(errs, fmt.Errorf("biometric.confidence_threshold %.2f is out of range (0, 1]", cfg.Biometric.ConfidenceThreshold))
		}
	}

	if cfg.Transcriber.URL != "" {
		if !strings.HasPrefix(cfg.Transcriber.URL, "ws://") && !strings.HasPrefix(cfg.Transcriber.URL, "wss://") {
			errs = append(errs, fmt.Errorf("transcriber.url %q must use the ws:// or wss:// scheme", cfg.Transcriber.URL))
		}
	}
	if cfg.Transcriber.ReconnectBackoff < 0 {
		errs = append(errs, fmt.Errorf("transcriber.reconnect_backoff %s is negative", cfg.Transcriber.ReconnectBackoff))
	}

	return errors.Join(errs...)
}

// SlogLevel maps the configured log level to a [slog.Level], defaulting to
// info for the empty value.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

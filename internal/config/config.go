// Package config provides the configuration schema and loader for the
// voxdial resolution engine.
package config

import "time"

// LogLevel controls log verbosity for the voxdial server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxdial.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Biometric   BiometricConfig   `yaml:"biometric"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
}

// ServerConfig holds network and logging settings for the voxdial server.
type ServerConfig struct {
	// ListenAddr is the TCP address the health and metrics endpoints listen
	// on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown. Zero means 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// PostgresDSN is the connection string for the PostgreSQL backend.
	// When empty, the engine runs on in-memory stores and loses all state
	// on restart.
	PostgresDSN string `yaml:"postgres_dsn"`

	// BreakerThreshold is the number of consecutive storage failures that
	// opens the circuit breaker. Zero means 5.
	BreakerThreshold int `yaml:"breaker_threshold"`

	// BreakerCooldown is how long an open breaker waits before probing the
	// backend again. Zero means 30s.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// BiometricConfig tunes voice enrollment.
type BiometricConfig struct {
	// RequiredSamples is the enrollment sample count for new profiles.
	// Zero means 5.
	RequiredSamples int `yaml:"required_samples"`

	// ConfidenceThreshold is the default recognition confidence cutoff for
	// new profiles, in (0, 1]. Zero means 0.85.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// TranscriberConfig points at the external transcription front-end.
type TranscriberConfig struct {
	// URL is the websocket endpoint publishing finalized utterances
	// (e.g., "wss://stt.example.com/utterances"). When empty, the feed is
	// disabled and resolutions arrive only through the library API.
	URL string `yaml:"url"`

	// ReconnectBackoff is the initial delay between reconnect attempts;
	// it doubles up to a minute. Zero means 2s.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
}

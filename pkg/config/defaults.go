package config

import (
	"strings"

	"github.com/dcspark/chainvault/internal/bytesize"
)

const (
	defaultInitialMmapSize   = 64 * bytesize.MiB
	defaultMaxInactiveChunks = 2048
	defaultConfirmationDepth = 10
	defaultAgeGap            = 100
)

// GetDefaultConfig returns a Config populated entirely with defaults.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields of cfg with sensible defaults.
// Explicit values (from file, env, or flags) are preserved.
func ApplyDefaults(cfg *Config) {
	applyStorageDefaults(&cfg.Storage)
	applyMultiverseDefaults(&cfg.Multiverse)
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.DataDir == "" {
		cfg.DataDir = "./chainvault-data"
	}
	if cfg.InitialMmapSize == 0 {
		cfg.InitialMmapSize = defaultInitialMmapSize
	}
	if cfg.MaxInactiveChunks == 0 {
		cfg.MaxInactiveChunks = defaultMaxInactiveChunks
	}
}

func applyMultiverseDefaults(cfg *MultiverseConfig) {
	if cfg.ConfirmationDepth == 0 {
		cfg.ConfirmationDepth = defaultConfirmationDepth
	}
	if cfg.AgeGap == 0 {
		cfg.AgeGap = defaultAgeGap
	}
	// StoreFrom and PersistDir default to zero value / in-memory-only.
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Namespace == "" {
		cfg.Namespace = "chainvault"
	}
}

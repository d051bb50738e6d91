// Package config loads chainvault's configuration: where fraos keeps its
// data, how the multiverse selects a canonical tip, and how logging and
// metrics are wired up. It follows the same precedence and decoding stack
// the rest of the dcspark ingestion tooling uses: environment variables
// override a YAML file, which overrides built-in defaults (there is no
// command-line flag layer), all routed through viper/mapstructure so config files
// and env vars can use human-readable durations and byte sizes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/dcspark/chainvault/internal/bytesize"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level chainvault configuration.
type Config struct {
	// Storage configures the fraos append-only log store.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Multiverse configures the fork tracker's tip-selection rule.
	Multiverse MultiverseConfig `mapstructure:"multiverse" yaml:"multiverse"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls the Prometheus metrics registry.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// StorageConfig configures a fraos Database (and, when KeyIndex is true, the
// IndexedLogMap layered on top of it).
type StorageConfig struct {
	// DataDir is the directory holding the data and seqno files (and,
	// when KeyIndex is enabled, the key_index/ badger directory).
	DataDir string `mapstructure:"data_dir" validate:"required" yaml:"data_dir"`

	// InitialMmapSize is loaded, defaulted and validated here, but the fraos
	// GrowableMmap does not read it: its mapping size comes from its own
	// fixed minimum. Supports human-readable formats: "512Ki", "1Mi".
	InitialMmapSize bytesize.ByteSize `mapstructure:"initial_mmap_size" yaml:"initial_mmap_size"`

	// MaxInactiveChunks is loaded, defaulted and validated here, but the
	// fraos GrowableMmap does not read it: the number of inactive chunks it
	// lets accumulate before compacting is its own fixed constant.
	MaxInactiveChunks int `mapstructure:"max_inactive_chunks" validate:"omitempty,gt=0" yaml:"max_inactive_chunks"`

	// KeyIndex enables the IndexedLogMap secondary key->seqno index
	// (backed by an embedded badger tree under DataDir/key_index).
	KeyIndex bool `mapstructure:"key_index" yaml:"key_index"`
}

// MultiverseConfig configures the fork tracker's canonical-tip selection.
type MultiverseConfig struct {
	// ConfirmationDepth is the number of child blocks that must exist
	// above a tip before its ancestor at that depth is considered
	// confirmed (the LongestChain rule's Depth parameter).
	ConfirmationDepth int `mapstructure:"confirmation_depth" validate:"required,gt=0" yaml:"confirmation_depth"`

	// AgeGap is the block-number distance below the confirmed block
	// beyond which entries become eligible for pruning.
	AgeGap uint64 `mapstructure:"age_gap" yaml:"age_gap"`

	// StoreFrom is the block number below which inserts are not
	// persisted to the KV mirror (in-memory state still holds them).
	StoreFrom uint64 `mapstructure:"store_from" yaml:"store_from"`

	// PersistDir is the directory for the multiverse's persistent badger
	// mirror. Empty means in-memory only (no crash recovery).
	PersistDir string `mapstructure:"persist_dir" yaml:"persist_dir"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics registry.
type MetricsConfig struct {
	// Enabled controls whether StorageMetrics/MultiverseMetrics
	// constructors return live collectors instead of nil.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Namespace prefixes every registered metric name.
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// Load loads configuration from defaults, file, and environment, in that
// order of increasing precedence, then applies defaults and validates the
// result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := GetDefaultConfig()

	// Unmarshal unconditionally: even with no config file on disk, viper's
	// AutomaticEnv still needs to run so CHAINVAULT_-prefixed env vars
	// override the defaults just loaded.
	if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes cfg to path in YAML form. The write lands atomically: it
// is first written to a uniquely named sibling temp file, then renamed into
// place, so a crash mid-write never leaves a half-written config behind.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp", uuid.NewString()))
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("config: rename into place: %w", err)
	}
	return nil
}

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CHAINVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// bindDefaults registers every known config key with viper via SetDefault.
// This is what lets AutomaticEnv apply during Unmarshal even when no config
// file exists on disk: viper's Unmarshal only consults env vars for keys it
// already knows about (from a file, an explicit default, or a flag), so a
// key with no file entry and no registered default is invisible to
// AutomaticEnv regardless of whether its env var is set.
func bindDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.initial_mmap_size", uint64(d.Storage.InitialMmapSize))
	v.SetDefault("storage.max_inactive_chunks", d.Storage.MaxInactiveChunks)
	v.SetDefault("storage.key_index", d.Storage.KeyIndex)

	v.SetDefault("multiverse.confirmation_depth", d.Multiverse.ConfirmationDepth)
	v.SetDefault("multiverse.age_gap", d.Multiverse.AgeGap)
	v.SetDefault("multiverse.store_from", d.Multiverse.StoreFrom)
	v.SetDefault("multiverse.persist_dir", d.Multiverse.PersistDir)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "chainvault")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "chainvault")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

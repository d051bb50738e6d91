package config

import "github.com/dcspark/chainvault/internal/logger"

// InitLogging configures the package-level logger from cfg.
func InitLogging(cfg LoggingConfig) error {
	return logger.Init(logger.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		Output: cfg.Output,
	})
}

package app

import (
	"context"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"erizoagent/internal/domain"
	"erizoagent/internal/infra/config"
)

// LoadConfig reads and validates the agent configuration.
func LoadConfig(ctx context.Context, path string, flags *pflag.FlagSet, logger *zap.Logger) (domain.AgentConfig, error) {
	return config.NewLoader(logger).Load(ctx, path, flags)
}

// ValidateConfig loads the configuration without touching the cluster.
func ValidateConfig(ctx context.Context, path string, flags *pflag.FlagSet, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := LoadConfig(ctx, path, flags, logger)
	if err != nil {
		return err
	}
	logger.Info("configuration validated",
		zap.String("config", path),
		zap.String("purpose", string(cfg.Agent.Purpose)),
		zap.Bool("reuse", cfg.Reuse()),
		zap.Int("maxProcesses", cfg.Agent.MaxProcesses),
	)
	return nil
}

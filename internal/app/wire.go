//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"erizoagent/internal/domain"
)

func InitializeAgent(ctx context.Context, cfg domain.AgentConfig, logger *zap.Logger) (*Agent, func(), error) {
	wire.Build(AgentSet)
	return nil, nil, nil
}

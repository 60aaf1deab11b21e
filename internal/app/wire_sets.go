//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"erizoagent/internal/infra/cluster"
	"erizoagent/internal/infra/scheduler"
)

var CoreInfraSet = wire.NewSet(
	NewMetricsRegistry,
	NewMetrics,
	NewAddresses,
	NewJournal,
	NewWorkerLauncher,
)

var ClusterSet = wire.NewSet(
	NewCoordinatorConn,
	NewCoordinator,
	NewNodeInfo,
	NewMember,
	wire.Bind(new(ClusterMember), new(*cluster.Member)),
)

var AgentSet = wire.NewSet(
	CoreInfraSet,
	ClusterSet,
	NewPool,
	NewSampling,
	wire.Bind(new(WorkerPool), new(*scheduler.Pool)),
	wire.Struct(new(AgentOptions), "Config", "Addresses", "Pool", "Member", "Sampling", "Journal", "Registry", "Metrics", "Logger"),
	NewAgent,
)

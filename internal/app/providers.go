package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"erizoagent/internal/domain"
	"erizoagent/internal/infra/cluster"
	"erizoagent/internal/infra/netinfo"
	"erizoagent/internal/infra/process"
	"erizoagent/internal/infra/rpc"
	"erizoagent/internal/infra/sampler"
	"erizoagent/internal/infra/scheduler"
	"erizoagent/internal/infra/telemetry"
)

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

func NewMetrics(registry *prometheus.Registry) domain.Metrics {
	return telemetry.NewPrometheusMetrics(registry)
}

func NewAddresses(ctx context.Context, cfg domain.AgentConfig, logger *zap.Logger) (netinfo.Addresses, error) {
	return netinfo.Discover(ctx, netinfo.Options{
		ExternalInterface: cfg.Agent.ExternalNetworkInterface,
		InternalInterface: cfg.Agent.InternalNetworkInterface,
		PublicIP:          cfg.Agent.PublicIP,
		InternalIP:        cfg.Agent.InternalIP,
	}, logger)
}

// NewJournal opens the worker journal when a path is configured.
func NewJournal(cfg domain.AgentConfig, logger *zap.Logger) (*process.Journal, func(), error) {
	if cfg.Worker.JournalPath == "" {
		return nil, func() {}, nil
	}
	journal, err := process.OpenJournal(cfg.Worker.JournalPath, logger)
	if err != nil {
		return nil, nil, err
	}
	return journal, func() {
		if err := journal.Close(); err != nil {
			logger.Warn("close worker journal", zap.Error(err))
		}
	}, nil
}

func NewWorkerLauncher(cfg domain.AgentConfig, addresses netinfo.Addresses, journal *process.Journal, logger *zap.Logger) (domain.WorkerLauncher, error) {
	return process.NewCommandLauncher(process.CommandLauncherOptions{
		Command:   cfg.Worker.Command,
		Purpose:   cfg.Agent.Purpose,
		PrivateIP: addresses.PrivateIP,
		PublicIP:  addresses.PublicIP,
		LogDir:    cfg.Worker.LogDir,
		Journal:   journal,
		Logger:    logger,
	})
}

func NewPool(cfg domain.AgentConfig, launcher domain.WorkerLauncher, metrics domain.Metrics, logger *zap.Logger) (*scheduler.Pool, error) {
	return scheduler.NewPool(scheduler.PoolOptions{
		Launcher:        launcher,
		Reuse:           cfg.Reuse(),
		MaxProcesses:    cfg.Agent.MaxProcesses,
		PrerunProcesses: cfg.Agent.PrerunProcesses,
		RespawnHoldoff:  cfg.Agent.RespawnHoldoff,
		Logger:          logger,
		Metrics:         metrics,
	})
}

func NewSampling(cfg domain.AgentConfig, addresses netinfo.Addresses, pool *scheduler.Pool, logger *zap.Logger) Sampling {
	s, monitors := sampler.Select(sampler.Options{
		Purpose:             cfg.Agent.Purpose,
		HardwareAccelerated: cfg.Worker.HardwareAccelerated,
		Interface:           addresses.TrafficInterface,
		Config:              cfg.Sampler,
		Workers:             pool,
		Logger:              logger,
	})
	return Sampling{Sampler: s, Monitors: monitors}
}

func NewCoordinatorConn(cfg domain.AgentConfig, logger *zap.Logger) (*grpc.ClientConn, func(), error) {
	conn, err := rpc.Dial(cfg.RPC)
	if err != nil {
		return nil, nil, err
	}
	return conn, func() {
		if err := conn.Close(); err != nil {
			logger.Debug("close coordinator connection", zap.Error(err))
		}
	}, nil
}

func NewCoordinator(conn *grpc.ClientConn, cfg domain.AgentConfig) domain.Coordinator {
	return rpc.NewCoordinatorClient(conn, cfg.Cluster.CallTimeout)
}

// NewNodeInfo describes this agent to the coordinator.
func NewNodeInfo(cfg domain.AgentConfig, addresses netinfo.Addresses) domain.NodeInfo {
	return domain.NodeInfo{
		IP:         addresses.ClusterIP,
		RPCAddress: cfg.RPC.ListenAddress,
		Purpose:    cfg.Agent.Purpose,
		State:      domain.AgentStateAvailable,
		MaxLoad:    cfg.Cluster.MaxLoad,
	}
}

func NewMember(cfg domain.AgentConfig, coordinator domain.Coordinator, info domain.NodeInfo, metrics domain.Metrics, logger *zap.Logger) (*cluster.Member, error) {
	return cluster.NewMember(cluster.MemberOptions{
		Coordinator:     coordinator,
		ClusterName:     cfg.Cluster.Name,
		Purpose:         cfg.Agent.Purpose,
		Info:            info,
		JoinRetry:       cfg.Cluster.JoinRetry,
		JoinPeriod:      cfg.Cluster.JoinPeriod,
		RecoveryPeriod:  cfg.Cluster.RecoveryPeriod,
		KeepAlivePeriod: cfg.Cluster.KeepAlivePeriod,
		Logger:          logger,
		Metrics:         metrics,
	})
}

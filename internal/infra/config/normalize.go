package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"erizoagent/internal/domain"
)

func milliseconds(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func normalizeConfig(raw rawConfig) (domain.AgentConfig, []string) {
	var errs []string

	purpose, err := domain.ParsePurpose(raw.Agent.Purpose)
	if err != nil {
		errs = append(errs, fmt.Sprintf("agent.purpose must be one of %s", purposeList()))
	}
	if raw.Agent.MaxProcesses < 1 {
		errs = append(errs, "agent.maxProcesses must be >= 1")
	}
	if raw.Agent.PrerunProcesses < 0 {
		errs = append(errs, "agent.prerunProcesses must be >= 0")
	}
	if raw.Agent.RespawnHoldoffMs < 0 {
		errs = append(errs, "agent.respawnHoldoffMs must be >= 0")
	}

	clusterName := strings.TrimSpace(raw.Cluster.Name)
	if clusterName == "" {
		errs = append(errs, "cluster.name is required")
	}
	if raw.Cluster.JoinRetry < 1 {
		errs = append(errs, "cluster.joinRetry must be >= 1")
	}
	if raw.Cluster.JoinPeriodMs < 0 {
		errs = append(errs, "cluster.joinPeriodMs must be >= 0")
	}
	if raw.Cluster.RecoveryPeriodMs <= 0 {
		errs = append(errs, "cluster.recoveryPeriodMs must be > 0")
	}
	if raw.Cluster.KeepAlivePeriodMs <= 0 {
		errs = append(errs, "cluster.keepAlivePeriodMs must be > 0")
	}
	if raw.Cluster.ReportIntervalMs <= 0 {
		errs = append(errs, "cluster.reportIntervalMs must be > 0")
	}
	if raw.Cluster.CallTimeoutMs <= 0 {
		errs = append(errs, "cluster.callTimeoutMs must be > 0")
	}
	if raw.Cluster.MaxLoad <= 0 || raw.Cluster.MaxLoad > 1 {
		errs = append(errs, "cluster.maxLoad must be in (0, 1]")
	}

	command := make([]string, 0, len(raw.Worker.Command))
	for _, arg := range raw.Worker.Command {
		command = append(command, strings.TrimSpace(arg))
	}
	if len(command) == 0 || command[0] == "" {
		errs = append(errs, "worker.command is required")
	}
	logDir := strings.TrimSpace(raw.Worker.LogDir)
	if logDir == "" {
		logDir = domain.DefaultWorkerLogDir
	}

	coordinator := strings.TrimSpace(raw.RPC.CoordinatorAddress)
	if coordinator == "" {
		errs = append(errs, "rpc.coordinatorAddress is required")
	}
	listen := strings.TrimSpace(raw.RPC.ListenAddress)
	if listen == "" {
		errs = append(errs, "rpc.listenAddress is required")
	}
	if raw.RPC.KeepaliveTimeSeconds < 0 {
		errs = append(errs, "rpc.keepaliveTimeSeconds must be >= 0")
	}
	if raw.RPC.KeepaliveTimeoutSeconds < 0 {
		errs = append(errs, "rpc.keepaliveTimeoutSeconds must be >= 0")
	}
	if raw.RPC.MaxMessageSize <= 0 {
		errs = append(errs, "rpc.maxMessageSize must be > 0")
	}

	networkCommand := strings.TrimSpace(raw.Sampler.NetworkCommand)
	if networkCommand == "" {
		networkCommand = domain.DefaultNetworkCommand
	}
	if raw.Sampler.NetworkPeriodMs <= 0 {
		errs = append(errs, "sampler.networkPeriodMs must be > 0")
	}
	if raw.Sampler.MaxReceiveMbps <= 0 {
		errs = append(errs, "sampler.maxReceiveMbps must be > 0")
	}
	if raw.Sampler.MaxSendMbps <= 0 {
		errs = append(errs, "sampler.maxSendMbps must be > 0")
	}
	storagePath := strings.TrimSpace(raw.Sampler.StoragePath)
	if storagePath == "" {
		errs = append(errs, "sampler.storagePath is required")
	}
	if raw.Sampler.StoragePollMs <= 0 {
		errs = append(errs, "sampler.storagePollMs must be > 0")
	}

	level := strings.ToLower(strings.TrimSpace(raw.Log.Level))
	if _, err := zapcore.ParseLevel(level); err != nil {
		errs = append(errs, "log.level must be debug, info, warn or error")
	}

	return domain.AgentConfig{
		Agent: domain.AgentSection{
			Purpose:                  purpose,
			MaxProcesses:             raw.Agent.MaxProcesses,
			PrerunProcesses:          raw.Agent.PrerunProcesses,
			PublicIP:                 strings.TrimSpace(raw.Agent.PublicIP),
			InternalIP:               strings.TrimSpace(raw.Agent.InternalIP),
			ExternalNetworkInterface: strings.TrimSpace(raw.Agent.ExternalNetworkInterface),
			InternalNetworkInterface: strings.TrimSpace(raw.Agent.InternalNetworkInterface),
			RespawnHoldoff:           milliseconds(raw.Agent.RespawnHoldoffMs),
		},
		Cluster: domain.ClusterConfig{
			Name:            clusterName,
			JoinRetry:       raw.Cluster.JoinRetry,
			JoinPeriod:      milliseconds(raw.Cluster.JoinPeriodMs),
			RecoveryPeriod:  milliseconds(raw.Cluster.RecoveryPeriodMs),
			KeepAlivePeriod: milliseconds(raw.Cluster.KeepAlivePeriodMs),
			ReportInterval:  milliseconds(raw.Cluster.ReportIntervalMs),
			CallTimeout:     milliseconds(raw.Cluster.CallTimeoutMs),
			MaxLoad:         raw.Cluster.MaxLoad,
		},
		Worker: domain.WorkerConfig{
			Command:             command,
			LogDir:              logDir,
			HardwareAccelerated: raw.Worker.HardwareAccelerated,
			JournalPath:         strings.TrimSpace(raw.Worker.JournalPath),
		},
		RPC: domain.RPCConfig{
			CoordinatorAddress:      coordinator,
			ListenAddress:           listen,
			KeepaliveTimeSeconds:    raw.RPC.KeepaliveTimeSeconds,
			KeepaliveTimeoutSeconds: raw.RPC.KeepaliveTimeoutSeconds,
			MaxMessageSize:          raw.RPC.MaxMessageSize,
		},
		Sampler: domain.SamplerConfig{
			NetworkCommand: networkCommand,
			NetworkPeriod:  milliseconds(raw.Sampler.NetworkPeriodMs),
			MaxReceiveMbps: raw.Sampler.MaxReceiveMbps,
			MaxSendMbps:    raw.Sampler.MaxSendMbps,
			StoragePath:    storagePath,
			StoragePoll:    milliseconds(raw.Sampler.StoragePollMs),
		},
		Observability: domain.ObservabilityConfig{
			ListenAddress: strings.TrimSpace(raw.Observability.ListenAddress),
		},
		Log: domain.LogConfig{
			Level:       level,
			Development: raw.Log.Development,
		},
	}, errs
}

func purposeList() string {
	purposes := domain.Purposes()
	names := make([]string, 0, len(purposes))
	for _, p := range purposes {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// denormalizeConfig is the inverse of normalizeConfig, used for printing.
func denormalizeConfig(cfg domain.AgentConfig) rawConfig {
	return rawConfig{
		Agent: rawAgentConfig{
			Purpose:                  string(cfg.Agent.Purpose),
			MaxProcesses:             cfg.Agent.MaxProcesses,
			PrerunProcesses:          cfg.Agent.PrerunProcesses,
			PublicIP:                 cfg.Agent.PublicIP,
			InternalIP:               cfg.Agent.InternalIP,
			ExternalNetworkInterface: cfg.Agent.ExternalNetworkInterface,
			InternalNetworkInterface: cfg.Agent.InternalNetworkInterface,
			RespawnHoldoffMs:         int(cfg.Agent.RespawnHoldoff.Milliseconds()),
		},
		Cluster: rawClusterConfig{
			Name:              cfg.Cluster.Name,
			JoinRetry:         cfg.Cluster.JoinRetry,
			JoinPeriodMs:      int(cfg.Cluster.JoinPeriod.Milliseconds()),
			RecoveryPeriodMs:  int(cfg.Cluster.RecoveryPeriod.Milliseconds()),
			KeepAlivePeriodMs: int(cfg.Cluster.KeepAlivePeriod.Milliseconds()),
			ReportIntervalMs:  int(cfg.Cluster.ReportInterval.Milliseconds()),
			CallTimeoutMs:     int(cfg.Cluster.CallTimeout.Milliseconds()),
			MaxLoad:           cfg.Cluster.MaxLoad,
		},
		Worker: rawWorkerConfig{
			Command:             cfg.Worker.Command,
			LogDir:              cfg.Worker.LogDir,
			HardwareAccelerated: cfg.Worker.HardwareAccelerated,
			JournalPath:         cfg.Worker.JournalPath,
		},
		RPC: rawRPCConfig{
			CoordinatorAddress:      cfg.RPC.CoordinatorAddress,
			ListenAddress:           cfg.RPC.ListenAddress,
			KeepaliveTimeSeconds:    cfg.RPC.KeepaliveTimeSeconds,
			KeepaliveTimeoutSeconds: cfg.RPC.KeepaliveTimeoutSeconds,
			MaxMessageSize:          cfg.RPC.MaxMessageSize,
		},
		Sampler: rawSamplerConfig{
			NetworkCommand:  cfg.Sampler.NetworkCommand,
			NetworkPeriodMs: int(cfg.Sampler.NetworkPeriod.Milliseconds()),
			MaxReceiveMbps:  cfg.Sampler.MaxReceiveMbps,
			MaxSendMbps:     cfg.Sampler.MaxSendMbps,
			StoragePath:     cfg.Sampler.StoragePath,
			StoragePollMs:   int(cfg.Sampler.StoragePoll.Milliseconds()),
		},
		Observability: rawObservabilityConfig{
			ListenAddress: cfg.Observability.ListenAddress,
		},
		Log: rawLogConfig{
			Level:       cfg.Log.Level,
			Development: cfg.Log.Development,
		},
	}
}

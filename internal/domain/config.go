package domain

import "time"

// AgentConfig is the validated, normalized configuration of one agent process.
type AgentConfig struct {
	Agent         AgentSection
	Cluster       ClusterConfig
	Worker        WorkerConfig
	RPC           RPCConfig
	Sampler       SamplerConfig
	Observability ObservabilityConfig
	Log           LogConfig
}

type AgentSection struct {
	Purpose                  Purpose
	MaxProcesses             int
	PrerunProcesses          int
	PublicIP                 string
	InternalIP               string
	ExternalNetworkInterface string
	InternalNetworkInterface string
	RespawnHoldoff           time.Duration
}

type ClusterConfig struct {
	Name            string
	JoinRetry       int
	JoinPeriod      time.Duration
	RecoveryPeriod  time.Duration
	KeepAlivePeriod time.Duration
	ReportInterval  time.Duration
	CallTimeout     time.Duration
	MaxLoad         float64
}

type WorkerConfig struct {
	Command             []string
	LogDir              string
	HardwareAccelerated bool
	JournalPath         string
}

type RPCConfig struct {
	CoordinatorAddress      string
	ListenAddress           string
	KeepaliveTimeSeconds    int
	KeepaliveTimeoutSeconds int
	MaxMessageSize          int
}

type SamplerConfig struct {
	NetworkCommand string
	NetworkPeriod  time.Duration
	MaxReceiveMbps float64
	MaxSendMbps    float64
	StoragePath    string
	StoragePoll    time.Duration
}

type ObservabilityConfig struct {
	ListenAddress string
}

type LogConfig struct {
	Level       string
	Development bool
}

// Reuse reports the worker reuse policy derived from the configured purpose.
func (c AgentConfig) Reuse() bool {
	return c.Agent.Purpose.Reuse()
}

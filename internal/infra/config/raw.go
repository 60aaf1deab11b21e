package config

// rawConfig mirrors the file layout. Durations are kept in milliseconds so
// that a printed configuration can be read back unchanged.
type rawConfig struct {
	Agent         rawAgentConfig         `mapstructure:"agent" toml:"agent" yaml:"agent"`
	Cluster       rawClusterConfig       `mapstructure:"cluster" toml:"cluster" yaml:"cluster"`
	Worker        rawWorkerConfig        `mapstructure:"worker" toml:"worker" yaml:"worker"`
	RPC           rawRPCConfig           `mapstructure:"rpc" toml:"rpc" yaml:"rpc"`
	Sampler       rawSamplerConfig       `mapstructure:"sampler" toml:"sampler" yaml:"sampler"`
	Observability rawObservabilityConfig `mapstructure:"observability" toml:"observability" yaml:"observability"`
	Log           rawLogConfig           `mapstructure:"log" toml:"log" yaml:"log"`
}

type rawAgentConfig struct {
	Purpose                  string `mapstructure:"purpose" toml:"purpose" yaml:"purpose"`
	MaxProcesses             int    `mapstructure:"maxProcesses" toml:"maxProcesses" yaml:"maxProcesses"`
	PrerunProcesses          int    `mapstructure:"prerunProcesses" toml:"prerunProcesses" yaml:"prerunProcesses"`
	PublicIP                 string `mapstructure:"publicIP" toml:"publicIP" yaml:"publicIP"`
	InternalIP               string `mapstructure:"internalIP" toml:"internalIP" yaml:"internalIP"`
	ExternalNetworkInterface string `mapstructure:"externalNetworkInterface" toml:"externalNetworkInterface" yaml:"externalNetworkInterface"`
	InternalNetworkInterface string `mapstructure:"internalNetworkInterface" toml:"internalNetworkInterface" yaml:"internalNetworkInterface"`
	RespawnHoldoffMs         int    `mapstructure:"respawnHoldoffMs" toml:"respawnHoldoffMs" yaml:"respawnHoldoffMs"`
}

type rawClusterConfig struct {
	Name              string  `mapstructure:"name" toml:"name" yaml:"name"`
	JoinRetry         int     `mapstructure:"joinRetry" toml:"joinRetry" yaml:"joinRetry"`
	JoinPeriodMs      int     `mapstructure:"joinPeriodMs" toml:"joinPeriodMs" yaml:"joinPeriodMs"`
	RecoveryPeriodMs  int     `mapstructure:"recoveryPeriodMs" toml:"recoveryPeriodMs" yaml:"recoveryPeriodMs"`
	KeepAlivePeriodMs int     `mapstructure:"keepAlivePeriodMs" toml:"keepAlivePeriodMs" yaml:"keepAlivePeriodMs"`
	ReportIntervalMs  int     `mapstructure:"reportIntervalMs" toml:"reportIntervalMs" yaml:"reportIntervalMs"`
	CallTimeoutMs     int     `mapstructure:"callTimeoutMs" toml:"callTimeoutMs" yaml:"callTimeoutMs"`
	MaxLoad           float64 `mapstructure:"maxLoad" toml:"maxLoad" yaml:"maxLoad"`
}

type rawWorkerConfig struct {
	Command             []string `mapstructure:"command" toml:"command" yaml:"command"`
	LogDir              string   `mapstructure:"logDir" toml:"logDir" yaml:"logDir"`
	HardwareAccelerated bool     `mapstructure:"hardwareAccelerated" toml:"hardwareAccelerated" yaml:"hardwareAccelerated"`
	JournalPath         string   `mapstructure:"journalPath" toml:"journalPath" yaml:"journalPath"`
}

type rawRPCConfig struct {
	CoordinatorAddress      string `mapstructure:"coordinatorAddress" toml:"coordinatorAddress" yaml:"coordinatorAddress"`
	ListenAddress           string `mapstructure:"listenAddress" toml:"listenAddress" yaml:"listenAddress"`
	KeepaliveTimeSeconds    int    `mapstructure:"keepaliveTimeSeconds" toml:"keepaliveTimeSeconds" yaml:"keepaliveTimeSeconds"`
	KeepaliveTimeoutSeconds int    `mapstructure:"keepaliveTimeoutSeconds" toml:"keepaliveTimeoutSeconds" yaml:"keepaliveTimeoutSeconds"`
	MaxMessageSize          int    `mapstructure:"maxMessageSize" toml:"maxMessageSize" yaml:"maxMessageSize"`
}

type rawSamplerConfig struct {
	NetworkCommand  string  `mapstructure:"networkCommand" toml:"networkCommand" yaml:"networkCommand"`
	NetworkPeriodMs int     `mapstructure:"networkPeriodMs" toml:"networkPeriodMs" yaml:"networkPeriodMs"`
	MaxReceiveMbps  float64 `mapstructure:"maxReceiveMbps" toml:"maxReceiveMbps" yaml:"maxReceiveMbps"`
	MaxSendMbps     float64 `mapstructure:"maxSendMbps" toml:"maxSendMbps" yaml:"maxSendMbps"`
	StoragePath     string  `mapstructure:"storagePath" toml:"storagePath" yaml:"storagePath"`
	StoragePollMs   int     `mapstructure:"storagePollMs" toml:"storagePollMs" yaml:"storagePollMs"`
}

type rawObservabilityConfig struct {
	ListenAddress string `mapstructure:"listenAddress" toml:"listenAddress" yaml:"listenAddress"`
}

type rawLogConfig struct {
	Level       string `mapstructure:"level" toml:"level" yaml:"level"`
	Development bool   `mapstructure:"development" toml:"development" yaml:"development"`
}

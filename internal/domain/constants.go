package domain

const (
	DefaultPurpose                 = PurposeWebRTC
	DefaultMaxProcesses            = 1
	DefaultPrerunProcesses         = 1
	DefaultRespawnHoldoffMs        = 3000
	DefaultClusterName             = "woogeenCluster"
	DefaultJoinRetry               = 5
	DefaultJoinPeriodMs            = 3000
	DefaultRecoveryPeriodMs        = 1000
	DefaultKeepAlivePeriodMs       = 1000
	DefaultReportIntervalMs        = 1000
	DefaultCallTimeoutMs           = 3000
	DefaultMaxLoad                 = 0.85
	DefaultWorkerLogDir            = "../logs"
	DefaultCoordinatorAddress      = "127.0.0.1:7070"
	DefaultRPCListenAddress        = "0.0.0.0:7071"
	DefaultNetworkCommand          = "nload"
	DefaultNetworkPeriodMs         = 5000
	DefaultMaxReceiveMbps          = 100
	DefaultMaxSendMbps             = 100
	DefaultStoragePath             = "/tmp"
	DefaultStoragePollMs           = 10000
	DefaultObservabilityListenAddr = "127.0.0.1:9281"
	DefaultLogLevel                = "info"
	DefaultRPCKeepaliveTimeSeconds = 30
	DefaultRPCKeepaliveTimeoutSecs = 10
	DefaultRPCMaxMessageSize       = 4 * 1024 * 1024
	DefaultConfigPath              = "agent.toml"
	AcceleratorTasksPerHost        = 32
	AgentStateAvailable            = 2
)

// DefaultWorkerCommand is the command line used to start one worker; the
// worker id, purpose and addresses are appended as positional arguments.
func DefaultWorkerCommand() []string {
	return []string{"node", "./erizoJS.js"}
}

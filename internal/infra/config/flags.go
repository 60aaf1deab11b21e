package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"erizoagent/internal/domain"
)

type flagBinding struct {
	name string
	key  string
}

var flagBindings = []flagBinding{
	{name: "my-purpose", key: "agent.purpose"},
	{name: "max-processes", key: "agent.maxProcesses"},
	{name: "prerun-processes", key: "agent.prerunProcesses"},
	{name: "public-ip", key: "agent.publicIP"},
	{name: "internal-ip", key: "agent.internalIP"},
	{name: "cluster-name", key: "cluster.name"},
	{name: "hardware-accelerated", key: "worker.hardwareAccelerated"},
	{name: "coordinator", key: "rpc.coordinatorAddress"},
	{name: "rpc-listen", key: "rpc.listenAddress"},
	{name: "log-level", key: "log.level"},
}

// RegisterFlags declares the command line overrides for the agent configuration.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("my-purpose", "U", string(domain.DefaultPurpose), "worker purpose (webrtc, rtsp, file, audio, video)")
	flags.IntP("max-processes", "M", domain.DefaultMaxProcesses, "maximum number of worker processes")
	flags.IntP("prerun-processes", "P", domain.DefaultPrerunProcesses, "number of idle workers kept ready")
	flags.String("public-ip", "", "public address advertised to workers")
	flags.String("internal-ip", "", "internal address advertised to the cluster")
	flags.String("cluster-name", domain.DefaultClusterName, "cluster name to join")
	flags.Bool("hardware-accelerated", false, "report load from the accelerator heuristic")
	flags.StringP("coordinator", "c", domain.DefaultCoordinatorAddress, "cluster coordinator address")
	flags.String("rpc-listen", domain.DefaultRPCListenAddress, "agent RPC listen address")
	flags.String("log-level", domain.DefaultLogLevel, "log level (debug, info, warn, error)")
}

// bindFlags maps registered flags onto viper keys. Only flags the user set
// take precedence over the file.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, binding := range flagBindings {
		flag := flags.Lookup(binding.name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(binding.key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", binding.name, err)
		}
	}
	return nil
}

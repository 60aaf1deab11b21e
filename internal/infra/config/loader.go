package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"erizoagent/internal/domain"
)

// EnvPrefix namespaces environment overrides, e.g. ERIZO_AGENT_MAXPROCESSES.
const EnvPrefix = "ERIZO"

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("config")}
}

func newAgentViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setAgentDefaults(v)
	return v
}

func setAgentDefaults(v *viper.Viper) {
	v.SetDefault("agent.purpose", string(domain.DefaultPurpose))
	v.SetDefault("agent.maxProcesses", domain.DefaultMaxProcesses)
	v.SetDefault("agent.prerunProcesses", domain.DefaultPrerunProcesses)
	v.SetDefault("agent.publicIP", "")
	v.SetDefault("agent.internalIP", "")
	v.SetDefault("agent.externalNetworkInterface", "")
	v.SetDefault("agent.internalNetworkInterface", "")
	v.SetDefault("agent.respawnHoldoffMs", domain.DefaultRespawnHoldoffMs)
	v.SetDefault("cluster.name", domain.DefaultClusterName)
	v.SetDefault("cluster.joinRetry", domain.DefaultJoinRetry)
	v.SetDefault("cluster.joinPeriodMs", domain.DefaultJoinPeriodMs)
	v.SetDefault("cluster.recoveryPeriodMs", domain.DefaultRecoveryPeriodMs)
	v.SetDefault("cluster.keepAlivePeriodMs", domain.DefaultKeepAlivePeriodMs)
	v.SetDefault("cluster.reportIntervalMs", domain.DefaultReportIntervalMs)
	v.SetDefault("cluster.callTimeoutMs", domain.DefaultCallTimeoutMs)
	v.SetDefault("cluster.maxLoad", domain.DefaultMaxLoad)
	v.SetDefault("worker.command", domain.DefaultWorkerCommand())
	v.SetDefault("worker.logDir", domain.DefaultWorkerLogDir)
	v.SetDefault("worker.hardwareAccelerated", false)
	v.SetDefault("worker.journalPath", "")
	v.SetDefault("rpc.coordinatorAddress", domain.DefaultCoordinatorAddress)
	v.SetDefault("rpc.listenAddress", domain.DefaultRPCListenAddress)
	v.SetDefault("rpc.keepaliveTimeSeconds", domain.DefaultRPCKeepaliveTimeSeconds)
	v.SetDefault("rpc.keepaliveTimeoutSeconds", domain.DefaultRPCKeepaliveTimeoutSecs)
	v.SetDefault("rpc.maxMessageSize", domain.DefaultRPCMaxMessageSize)
	v.SetDefault("sampler.networkCommand", domain.DefaultNetworkCommand)
	v.SetDefault("sampler.networkPeriodMs", domain.DefaultNetworkPeriodMs)
	v.SetDefault("sampler.maxReceiveMbps", domain.DefaultMaxReceiveMbps)
	v.SetDefault("sampler.maxSendMbps", domain.DefaultMaxSendMbps)
	v.SetDefault("sampler.storagePath", domain.DefaultStoragePath)
	v.SetDefault("sampler.storagePollMs", domain.DefaultStoragePollMs)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddr)
	v.SetDefault("log.level", domain.DefaultLogLevel)
	v.SetDefault("log.development", false)
}

// Load reads the TOML file at path, applies environment and flag overrides and
// returns the validated configuration. A missing file is tolerated only for the
// default path.
func (l *Loader) Load(ctx context.Context, path string, flags *pflag.FlagSet) (domain.AgentConfig, error) {
	v := newAgentViper()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
				return domain.AgentConfig{}, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidConfig, path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && path == domain.DefaultConfigPath:
			l.logger.Info("config file not found, using defaults", zap.String("path", path))
		default:
			return domain.AgentConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return domain.AgentConfig{}, err
		}
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return domain.AgentConfig{}, fmt.Errorf("%w: decode: %v", domain.ErrInvalidConfig, err)
	}
	if err := ctx.Err(); err != nil {
		return domain.AgentConfig{}, err
	}

	cfg, errs := normalizeConfig(raw)
	if len(errs) > 0 {
		return domain.AgentConfig{}, fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}
	if cfg.Agent.PrerunProcesses > cfg.Agent.MaxProcesses {
		l.logger.Warn("prerunProcesses exceeds maxProcesses; the pool fills only up to maxProcesses",
			zap.Int("prerunProcesses", cfg.Agent.PrerunProcesses),
			zap.Int("maxProcesses", cfg.Agent.MaxProcesses),
		)
	}
	return cfg, nil
}

package sampler

import (
	"context"
	"math"

	"go.uber.org/zap"

	"erizoagent/internal/domain"
)

// Sampler produces one normalized host load estimate.
type Sampler interface {
	Sample(ctx context.Context) (float64, error)
}

// Monitor is a background data source feeding a Sampler.
type Monitor interface {
	Start(ctx context.Context) error
	// Stop is idempotent and safe to call without Start.
	Stop()
}

// ActiveCounter reports the number of busy workers.
type ActiveCounter interface {
	ActiveCount() int
}

// Round keeps two decimal places, the precision load is reported with.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Options selects and configures the sampling strategy of an agent.
type Options struct {
	Purpose             domain.Purpose
	HardwareAccelerated bool
	// Interface is the network device watched by the traffic monitor.
	Interface string
	Config    domain.SamplerConfig
	Workers   ActiveCounter
	Logger    *zap.Logger
}

// Select returns the strategy for a purpose together with the monitors it
// depends on. Purposes outside the known set get no sampler.
func Select(opts Options) (Sampler, []Monitor) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("sampler")

	switch opts.Purpose {
	case domain.PurposeWebRTC, domain.PurposeRTSP:
		monitor := NewTrafficMonitor(TrafficMonitorOptions{
			Command:        opts.Config.NetworkCommand,
			Interface:      opts.Interface,
			Period:         opts.Config.NetworkPeriod,
			MaxReceiveMbps: opts.Config.MaxReceiveMbps,
			MaxSendMbps:    opts.Config.MaxSendMbps,
			Logger:         logger,
		})
		return monitor, []Monitor{monitor}
	case domain.PurposeFile:
		poller := NewDiskPoller(DiskPollerOptions{
			Path:   opts.Config.StoragePath,
			Period: opts.Config.StoragePoll,
			Logger: logger,
		})
		return poller, []Monitor{poller}
	case domain.PurposeAudio:
		return NewComputeLoad(), nil
	case domain.PurposeVideo:
		if opts.HardwareAccelerated && opts.Workers != nil {
			return NewAcceleratorLoad(opts.Workers), nil
		}
		return NewComputeLoad(), nil
	default:
		logger.Warn("no load sampler for purpose", zap.String("purpose", string(opts.Purpose)))
		return nil, nil
	}
}

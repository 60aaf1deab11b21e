package sampler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/disk"
	"go.uber.org/zap"

	"erizoagent/internal/domain"
	"erizoagent/internal/infra/telemetry"
)

type DiskPollerOptions struct {
	Path   string
	Period time.Duration
	Logger *zap.Logger
}

// DiskPoller caches the used fraction of the filesystem holding Path,
// refreshed on its own ticker so sampling never touches the filesystem.
type DiskPoller struct {
	path   string
	period time.Duration
	usage  func(ctx context.Context, path string) (*disk.UsageStat, error)
	logger *zap.Logger

	mu     sync.Mutex
	value  float64
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDiskPoller(opts DiskPollerOptions) *DiskPoller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	path := opts.Path
	if path == "" {
		path = domain.DefaultStoragePath
	}
	period := opts.Period
	if period <= 0 {
		period = time.Duration(domain.DefaultStoragePollMs) * time.Millisecond
	}
	return &DiskPoller{
		path:   path,
		period: period,
		usage:  disk.UsageWithContext,
		logger: logger.With(zap.String("path", path)),
	}
}

func (d *DiskPoller) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.mu.Unlock()

	if err := d.Refresh(runCtx); err != nil {
		d.logger.Warn("initial disk poll failed", zap.Error(err))
	}
	go d.run(runCtx)
	return nil
}

func (d *DiskPoller) run(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil {
				d.logger.Warn("disk poll failed",
					telemetry.EventField(telemetry.EventSamplerFailure),
					zap.Error(err),
				)
			}
		}
	}
}

// Refresh polls the filesystem once. On error the previous value is kept.
func (d *DiskPoller) Refresh(ctx context.Context) error {
	stat, err := d.usage(ctx, d.path)
	if err != nil {
		return fmt.Errorf("%w: disk usage: %v", domain.ErrSamplingFailed, err)
	}
	if stat.Total == 0 {
		return fmt.Errorf("%w: %s reports zero capacity", domain.ErrSamplingFailed, d.path)
	}
	used := 1 - float64(stat.Free)/float64(stat.Total)

	d.mu.Lock()
	d.value = used
	d.mu.Unlock()

	d.logger.Debug("disk polled",
		zap.String("total", humanize.IBytes(stat.Total)),
		zap.String("free", humanize.IBytes(stat.Free)),
		zap.Float64("usage", used),
	)
	return nil
}

func (d *DiskPoller) Sample(_ context.Context) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, nil
}

func (d *DiskPoller) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	d.mu.Lock()
	d.value = 0
	d.mu.Unlock()
}

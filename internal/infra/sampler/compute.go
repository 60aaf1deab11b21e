package sampler

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/load"

	"erizoagent/internal/domain"
)

// ComputeLoad is the 1-minute load average divided by the logical core count.
type ComputeLoad struct {
	loadAvg  func(ctx context.Context) (*load.AvgStat, error)
	cpuCount func(ctx context.Context, logical bool) (int, error)
}

func NewComputeLoad() *ComputeLoad {
	return &ComputeLoad{
		loadAvg:  load.AvgWithContext,
		cpuCount: cpu.CountsWithContext,
	}
}

func (c *ComputeLoad) Sample(ctx context.Context) (float64, error) {
	avg, err := c.loadAvg(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: load average: %v", domain.ErrSamplingFailed, err)
	}
	cores, err := c.cpuCount(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("%w: cpu count: %v", domain.ErrSamplingFailed, err)
	}
	if cores <= 0 {
		return 0, fmt.Errorf("%w: no logical cpus reported", domain.ErrSamplingFailed)
	}
	return avg.Load1 / float64(cores), nil
}

// AcceleratorLoad approximates accelerator usage as busy workers over the
// number of media tasks one host is assumed to hold.
type AcceleratorLoad struct {
	workers ActiveCounter
}

func NewAcceleratorLoad(workers ActiveCounter) *AcceleratorLoad {
	return &AcceleratorLoad{workers: workers}
}

func (a *AcceleratorLoad) Sample(_ context.Context) (float64, error) {
	return float64(a.workers.ActiveCount()) / domain.AcceleratorTasksPerHost, nil
}

package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"erizoagent/internal/domain"
	"erizoagent/internal/infra/telemetry"
)

// PoolOptions configures a worker pool.
type PoolOptions struct {
	Launcher        domain.WorkerLauncher
	Reuse           bool
	MaxProcesses    int
	PrerunProcesses int
	// RespawnHoldoff throttles launches after an idle worker dies this soon
	// after being launched. Zero disables the throttle.
	RespawnHoldoff time.Duration
	Logger         *zap.Logger
	Metrics        domain.Metrics
	// NewID overrides worker id generation.
	NewID func() string
}

// Pool owns the erizo worker processes of one agent, split into an idle
// FIFO and an active FIFO, plus the worker -> rooms task table.
type Pool struct {
	launcher domain.WorkerLauncher
	logger   *zap.Logger
	metrics  domain.Metrics
	newID    func() string
	now      func() time.Time

	reuse        bool
	maxProcesses int
	prerun       int

	mu       sync.Mutex
	idle     []string
	active   []string
	workers  map[string]*worker
	tasks    map[string]map[string]struct{}
	closed   bool
	throttle respawnThrottle
}

type worker struct {
	id         string
	handle     domain.WorkerHandle
	state      domain.WorkerState
	launchedAt time.Time
}

// ReleaseResult reports what a release did to the pool.
type ReleaseResult struct {
	// Evicted is set when the worker lost its last room and was terminated.
	Evicted bool
	// Vacated is set when no worker holds the room any longer.
	Vacated bool
}

// NewPool builds an empty pool. Workers are only spawned by FillToPrerun,
// Launch and Assign.
func NewPool(opts PoolOptions) (*Pool, error) {
	if opts.Launcher == nil {
		return nil, errors.New("worker launcher is required")
	}
	if opts.MaxProcesses < 1 {
		return nil, fmt.Errorf("%w: maxProcesses must be >= 1", domain.ErrInvalidConfig)
	}
	if opts.PrerunProcesses < 0 {
		return nil, fmt.Errorf("%w: prerunProcesses must be >= 0", domain.ErrInvalidConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Pool{
		launcher:     opts.Launcher,
		logger:       logger.Named("pool"),
		metrics:      metrics,
		newID:        newID,
		now:          time.Now,
		reuse:        opts.Reuse,
		maxProcesses: opts.MaxProcesses,
		prerun:       opts.PrerunProcesses,
		workers:      make(map[string]*worker),
		tasks:        make(map[string]map[string]struct{}),
		throttle:     respawnThrottle{hold: opts.RespawnHoldoff},
	}, nil
}

// ActiveCount returns the number of workers currently serving rooms.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Snapshot returns a copy of the pool state in FIFO order.
func (p *Pool) Snapshot() domain.PoolSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return domain.PoolSnapshot{
		Idle:   p.describeLocked(p.idle),
		Active: p.describeLocked(p.active),
		Reuse:  p.reuse,
		Max:    p.maxProcesses,
		Prerun: p.prerun,
		Closed: p.closed,
	}
}

func (p *Pool) describeLocked(ids []string) []domain.WorkerInfo {
	out := make([]domain.WorkerInfo, 0, len(ids))
	for _, id := range ids {
		w := p.workers[id]
		rooms := make([]string, 0, len(p.tasks[id]))
		for room := range p.tasks[id] {
			rooms = append(rooms, room)
		}
		sort.Strings(rooms)
		info := domain.WorkerInfo{ID: id, State: w.state, Rooms: rooms}
		if w.handle != nil {
			info.PID = w.handle.PID()
		}
		out = append(out, info)
	}
	return out
}

func (p *Pool) holderLocked(roomID string) (string, bool) {
	for _, ids := range [][]string{p.active, p.idle} {
		for _, id := range ids {
			if _, ok := p.tasks[id][roomID]; ok {
				return id, true
			}
		}
	}
	return "", false
}

// removeLocked drops a worker from every table and returns it.
func (p *Pool) removeLocked(id string) *worker {
	w, ok := p.workers[id]
	if !ok {
		return nil
	}
	delete(p.workers, id)
	delete(p.tasks, id)
	p.idle = without(p.idle, id)
	p.active = without(p.active, id)
	return w
}

func (p *Pool) observeGaugesLocked() {
	p.metrics.SetPoolWorkers(len(p.idle), len(p.active))
}

func without(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

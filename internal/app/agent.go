package app

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"erizoagent/internal/domain"
	"erizoagent/internal/infra/netinfo"
	"erizoagent/internal/infra/process"
	"erizoagent/internal/infra/rpc"
	"erizoagent/internal/infra/sampler"
	"erizoagent/internal/infra/scheduler"
	"erizoagent/internal/infra/telemetry"
)

const shutdownTimeout = 5 * time.Second

// WorkerPool is the scheduler surface the agent drives.
type WorkerPool interface {
	Assign(roomID string) (string, error)
	Release(workerID, roomID string) scheduler.ReleaseResult
	FillToPrerun() error
	Snapshot() domain.PoolSnapshot
	Shutdown(ctx context.Context) error
}

// ClusterMember is the membership surface the agent drives.
type ClusterMember interface {
	Join(ctx context.Context) (string, error)
	Start(ctx context.Context) error
	AddTask(roomID string)
	RemoveTask(roomID string)
	ReportLoad(ctx context.Context, load float64) error
	Quit(ctx context.Context) error
	State() domain.MemberState
	ID() string
}

// Sampling bundles the load strategy with the monitors feeding it.
// Sampler is nil for purposes without a strategy.
type Sampling struct {
	Sampler  sampler.Sampler
	Monitors []sampler.Monitor
}

// AgentOptions captures dependencies and settings for Agent.
type AgentOptions struct {
	Config    domain.AgentConfig
	Addresses netinfo.Addresses
	Pool      WorkerPool
	Member    ClusterMember
	Sampling  Sampling
	Journal   *process.Journal
	Registry  *prometheus.Registry
	Metrics   domain.Metrics
	Logger    *zap.Logger

	// Notify reports service state to the service manager; defaults to sd_notify.
	Notify func(state string) (bool, error)
	// RPCListener and HTTPListener replace the configured listen addresses.
	RPCListener  net.Listener
	HTTPListener net.Listener
}

// Agent runs one erizo agent: it owns the worker pool, answers the
// getErizoJS and recycleErizoJS calls and keeps the cluster informed.
type Agent struct {
	cfg       domain.AgentConfig
	addresses netinfo.Addresses
	pool      WorkerPool
	member    ClusterMember
	sampling  Sampling
	journal   *process.Journal
	registry  *prometheus.Registry
	metrics   domain.Metrics
	logger    *zap.Logger
	notify    func(state string) (bool, error)

	rpcServer    *rpc.Server
	rpcListener  net.Listener
	httpListener net.Listener
}

func NewAgent(opts AgentOptions) (*Agent, error) {
	if opts.Pool == nil {
		return nil, errors.New("worker pool is required")
	}
	if opts.Member == nil {
		return nil, errors.New("cluster member is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		}
	}
	a := &Agent{
		cfg:          opts.Config,
		addresses:    opts.Addresses,
		pool:         opts.Pool,
		member:       opts.Member,
		sampling:     opts.Sampling,
		journal:      opts.Journal,
		registry:     opts.Registry,
		metrics:      metrics,
		logger:       logger.Named("agent").With(telemetry.PurposeField(string(opts.Config.Agent.Purpose))),
		notify:       notify,
		rpcListener:  opts.RPCListener,
		httpListener: opts.HTTPListener,
	}
	a.rpcServer = rpc.NewServer(a, opts.Config.RPC, logger)
	return a, nil
}

// Run starts the agent and blocks until ctx ends or a fatal error occurs.
// A failed cluster join is fatal.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent starting",
		zap.Bool("reuse", a.cfg.Reuse()),
		zap.Int("maxProcesses", a.cfg.Agent.MaxProcesses),
		zap.Int("prerunProcesses", a.cfg.Agent.PrerunProcesses),
		zap.String("privateIP", a.addresses.PrivateIP),
		zap.String("publicIP", a.addresses.PublicIP),
		zap.String("clusterIP", a.addresses.ClusterIP),
	)

	if reaped, err := a.journal.ReapOrphans(); err != nil {
		a.logger.Warn("orphan reaping failed", zap.Error(err))
	} else if reaped > 0 {
		a.logger.Info("reaped orphaned workers", zap.Int("count", reaped))
	}

	loopCtx, stopLoops := context.WithCancel(ctx)
	defer stopLoops()
	serveCtx, stopServers := context.WithCancel(context.Background())
	defer stopServers()

	for _, monitor := range a.sampling.Monitors {
		if err := monitor.Start(loopCtx); err != nil {
			a.logger.Warn("load monitor failed to start",
				telemetry.EventField(telemetry.EventSamplerFailure),
				zap.Error(err),
			)
		}
	}

	lis := a.rpcListener
	if lis == nil {
		if err := a.rpcServer.Listen(); err != nil {
			a.stopMonitors()
			return err
		}
	}
	var servers sync.WaitGroup
	rpcErr := make(chan error, 1)
	servers.Add(1)
	go func() {
		defer servers.Done()
		if err := a.rpcServer.Serve(serveCtx, lis); err != nil {
			rpcErr <- err
		}
	}()
	servers.Add(1)
	go func() {
		defer servers.Done()
		if err := a.startObservability(serveCtx); err != nil {
			a.logger.Warn("observability server error", zap.Error(err))
		}
	}()

	var loops sync.WaitGroup
	shutdown := func() {
		stopLoops()
		loops.Wait()
		a.terminate()
		stopServers()
		servers.Wait()
	}

	if _, err := a.member.Join(loopCtx); err != nil {
		shutdown()
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if err := a.member.Start(loopCtx); err != nil {
		a.logger.Warn("cluster keepalive failed to start", zap.Error(err))
	}
	if _, err := a.notify(daemon.SdNotifyReady); err != nil {
		a.logger.Warn("sd_notify ready failed", zap.Error(err))
	}

	loops.Add(1)
	go func() {
		defer loops.Done()
		a.reportLoop(loopCtx)
	}()

	if err := a.pool.FillToPrerun(); err != nil {
		a.logger.Warn("prerun fill incomplete", zap.Error(err))
	}
	a.logger.Info("agent ready", telemetry.ClusterIDField(a.member.ID()))

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("termination requested")
	case runErr = <-rpcErr:
		a.logger.Error("rpc server failed", zap.Error(runErr))
	}
	shutdown()
	return runErr
}

func (a *Agent) startObservability(ctx context.Context) error {
	return telemetry.StartHTTPServer(ctx, telemetry.HTTPServerOptions{
		Addr:     a.cfg.Observability.ListenAddress,
		Registry: a.registry,
		Health:   a.Health,
		Pool:     a.pool.Snapshot,
		Listener: a.httpListener,
	}, a.logger)
}

// terminate runs the shutdown sequence once the report loop has stopped.
// Every step runs regardless of how the previous one went.
func (a *Agent) terminate() {
	a.stopMonitors()
	if _, err := a.notify(daemon.SdNotifyStopping); err != nil {
		a.logger.Debug("sd_notify stopping failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.member.Quit(ctx); err != nil {
		a.logger.Warn("cluster quit failed", zap.Error(err))
	}
	if err := a.pool.Shutdown(ctx); err != nil {
		a.logger.Warn("worker shutdown incomplete", zap.Error(err))
	}
	a.logger.Info("agent stopped")
}

func (a *Agent) stopMonitors() {
	for _, monitor := range a.sampling.Monitors {
		monitor.Stop()
	}
}

func (a *Agent) reportLoop(ctx context.Context) {
	if a.sampling.Sampler == nil {
		a.logger.Warn("no load sampler for purpose; load reporting disabled")
		return
	}
	interval := a.cfg.Cluster.ReportInterval
	if interval <= 0 {
		interval = time.Duration(domain.DefaultReportIntervalMs) * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.reportLoad(ctx)
		}
	}
}

// reportLoad samples once and forwards the rounded value. A sampling
// failure reports 0.
func (a *Agent) reportLoad(ctx context.Context) {
	if a.sampling.Sampler == nil {
		return
	}
	load, err := a.sampling.Sampler.Sample(ctx)
	if err != nil {
		a.logger.Warn("load sampling failed",
			telemetry.EventField(telemetry.EventSamplerFailure),
			zap.Error(err),
		)
		load = 0
	}
	load = sampler.Round(load)
	if err := a.member.ReportLoad(ctx, load); err != nil {
		a.logger.Debug("load report skipped", zap.Float64("load", load), zap.Error(err))
		return
	}
	a.logger.Debug("load reported",
		telemetry.EventField(telemetry.EventReportLoad),
		zap.Float64("load", load),
	)
}

// GetErizoJS assigns a worker to roomID. Failures are logged and answered
// with an empty worker id.
func (a *Agent) GetErizoJS(ctx context.Context, roomID string) (workerID string) {
	logger := telemetry.LoggerWithRequest(ctx, a.logger).With(telemetry.RoomIDField(roomID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("getErizoJS panicked", zap.Any("panic", r))
			workerID = ""
		}
	}()

	id, err := a.pool.Assign(roomID)
	if err != nil {
		logger.Warn("getErizoJS failed", zap.Error(err))
		return ""
	}
	a.member.AddTask(roomID)
	return id
}

// RecycleErizoJS releases roomID from workerID and always answers "ok".
func (a *Agent) RecycleErizoJS(ctx context.Context, workerID, roomID string) (status string) {
	logger := telemetry.LoggerWithRequest(ctx, a.logger).With(
		telemetry.WorkerIDField(workerID),
		telemetry.RoomIDField(roomID),
	)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recycleErizoJS panicked", zap.Any("panic", r))
			status = "ok"
		}
	}()

	result := a.pool.Release(workerID, roomID)
	if result.Vacated {
		a.member.RemoveTask(roomID)
	}
	logger.Debug("recycleErizoJS done", zap.Bool("evicted", result.Evicted), zap.Bool("vacated", result.Vacated))
	return "ok"
}

// Health summarizes the agent for /healthz.
func (a *Agent) Health() telemetry.HealthReport {
	state := a.member.State()
	status := "ok"
	if state != domain.MemberStateInService {
		status = "degraded"
	}
	return telemetry.HealthReport{
		Status:    status,
		Purpose:   string(a.cfg.Agent.Purpose),
		ClusterID: a.member.ID(),
		Member:    state,
	}
}

// RPCAddr returns the bound RPC address once Run has started listening.
func (a *Agent) RPCAddr() net.Addr {
	return a.rpcServer.Addr()
}

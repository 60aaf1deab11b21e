package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"erizoagent/internal/domain"
	"erizoagent/internal/infra/telemetry"
)

// MemberOptions configures the agent side of cluster membership.
type MemberOptions struct {
	Coordinator     domain.Coordinator
	ClusterName     string
	Purpose         domain.Purpose
	Info            domain.NodeInfo
	JoinRetry       int
	JoinPeriod      time.Duration
	RecoveryPeriod  time.Duration
	KeepAlivePeriod time.Duration
	Logger          *zap.Logger
	Metrics         domain.Metrics
}

// Member joins the agent to the coordinator, keeps the membership alive,
// recovers it after loss and forwards room tracking changes in call order.
type Member struct {
	coordinator     domain.Coordinator
	clusterName     string
	purpose         domain.Purpose
	info            domain.NodeInfo
	joinRetry       int
	joinPeriod      time.Duration
	recoveryPeriod  time.Duration
	keepAlivePeriod time.Duration
	logger          *zap.Logger
	metrics         domain.Metrics

	mu      sync.Mutex
	id      string
	state   domain.MemberState
	tasks   map[string]struct{}
	pending []taskOp
	wake    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type taskOp struct {
	add  bool
	room string
}

func NewMember(opts MemberOptions) (*Member, error) {
	if opts.Coordinator == nil {
		return nil, errors.New("coordinator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	joinRetry := opts.JoinRetry
	if joinRetry < 1 {
		joinRetry = 1
	}
	clusterName := opts.ClusterName
	if clusterName == "" {
		clusterName = domain.DefaultClusterName
	}
	return &Member{
		coordinator:     opts.Coordinator,
		clusterName:     clusterName,
		purpose:         opts.Purpose,
		info:            opts.Info,
		joinRetry:       joinRetry,
		joinPeriod:      opts.JoinPeriod,
		recoveryPeriod:  opts.RecoveryPeriod,
		keepAlivePeriod: opts.KeepAlivePeriod,
		logger:          logger.Named("cluster").With(telemetry.PurposeField(string(opts.Purpose))),
		metrics:         metrics,
		state:           domain.MemberStateIdle,
		tasks:           make(map[string]struct{}),
		wake:            make(chan struct{}, 1),
	}, nil
}

func (m *Member) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

func (m *Member) State() domain.MemberState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Tasks returns the rooms this agent currently asks the coordinator to track.
func (m *Member) Tasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taskListLocked()
}

func (m *Member) taskListLocked() []string {
	out := make([]string, 0, len(m.tasks))
	for room := range m.tasks {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

func (m *Member) setStateLocked(state domain.MemberState) {
	m.state = state
	m.metrics.SetMemberState(state)
}

// Join registers with the coordinator, retrying up to JoinRetry attempts
// JoinPeriod apart. When every attempt fails the membership is quit.
func (m *Member) Join(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.state != domain.MemberStateIdle {
		state := m.state
		m.mu.Unlock()
		return "", fmt.Errorf("cluster join: membership is %s", state)
	}
	m.setStateLocked(domain.MemberStateJoining)
	m.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= m.joinRetry; attempt++ {
		m.logger.Info("joining cluster",
			telemetry.EventField(telemetry.EventJoinAttempt),
			zap.String("cluster", m.clusterName),
			zap.Int("attempt", attempt),
		)
		id, err := m.coordinator.Join(ctx, m.joinRequest("", nil))
		if err == nil {
			m.mu.Lock()
			m.id = id
			m.setStateLocked(domain.MemberStateInService)
			m.mu.Unlock()
			m.logger.Info("joined cluster",
				telemetry.EventField(telemetry.EventJoinSuccess),
				telemetry.ClusterIDField(id),
			)
			return id, nil
		}
		lastErr = err
		m.logger.Warn("cluster join attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < m.joinRetry && !sleep(ctx, m.joinPeriod) {
			lastErr = ctx.Err()
			break
		}
	}

	m.mu.Lock()
	m.setStateLocked(domain.MemberStateQuit)
	m.mu.Unlock()
	m.logger.Error("cluster join failed",
		telemetry.EventField(telemetry.EventJoinFailure),
		zap.String("cluster", m.clusterName),
		zap.Error(lastErr),
	)
	return "", domain.E(domain.CodeUnavailable, "cluster.join", lastErr.Error(), errors.Join(domain.ErrJoinFailed, lastErr))
}

func (m *Member) joinRequest(previousID string, tasks []string) domain.JoinRequest {
	return domain.JoinRequest{
		ClusterName: m.clusterName,
		Purpose:     m.purpose,
		PreviousID:  previousID,
		Info:        m.info,
		Tasks:       tasks,
	}
}

// Start runs the keepalive loop and the task outbox until Quit or ctx ends.
func (m *Member) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != domain.MemberStateInService {
		return domain.E(domain.CodeFailedPrecond, "cluster.start", "", domain.ErrNotJoined)
	}
	if m.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(2)
	go m.keepAliveLoop(runCtx)
	go m.outboxLoop(runCtx)
	return nil
}

func (m *Member) keepAliveLoop(ctx context.Context) {
	defer m.wg.Done()
	if m.keepAlivePeriod <= 0 {
		return
	}
	ticker := time.NewTicker(m.keepAlivePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		id := m.ID()
		known, err := m.coordinator.KeepAlive(ctx, id)
		if ctx.Err() != nil {
			return
		}
		if err == nil && known {
			continue
		}

		m.mu.Lock()
		m.setStateLocked(domain.MemberStateLost)
		m.mu.Unlock()
		m.logger.Warn("cluster membership lost",
			telemetry.EventField(telemetry.EventMemberLoss),
			telemetry.ClusterIDField(id),
			zap.Bool("known", known),
			zap.Error(err),
		)
		if !m.recover(ctx, id) {
			return
		}
	}
}

// recover rejoins with the previous id and the current task list every
// RecoveryPeriod until it succeeds or ctx ends.
func (m *Member) recover(ctx context.Context, previousID string) bool {
	for {
		if !sleep(ctx, m.recoveryPeriod) {
			return false
		}
		m.mu.Lock()
		tasks := m.taskListLocked()
		// The rejoin carries every change queued so far. Changes made while
		// it is in flight stay queued and are sent once it succeeds.
		m.pending = nil
		m.mu.Unlock()
		id, err := m.coordinator.Join(ctx, m.joinRequest(previousID, tasks))
		if ctx.Err() != nil {
			return false
		}
		if err != nil {
			m.logger.Debug("cluster recovery attempt failed", zap.Error(err))
			continue
		}

		m.mu.Lock()
		m.id = id
		m.setStateLocked(domain.MemberStateInService)
		m.mu.Unlock()
		m.signal()
		m.logger.Info("cluster membership recovered",
			telemetry.EventField(telemetry.EventMemberRecovery),
			telemetry.ClusterIDField(id),
			zap.String("previousID", previousID),
			zap.Int("tasks", len(tasks)),
		)
		return true
	}
}

// AddTask tells the coordinator this agent now serves room. It never blocks.
func (m *Member) AddTask(room string) {
	m.enqueue(taskOp{add: true, room: room})
}

// RemoveTask tells the coordinator this agent no longer serves room.
func (m *Member) RemoveTask(room string) {
	m.enqueue(taskOp{add: false, room: room})
}

func (m *Member) enqueue(op taskOp) {
	m.mu.Lock()
	_, tracked := m.tasks[op.room]
	switch {
	case op.add && tracked, !op.add && !tracked:
		m.mu.Unlock()
		return
	case op.add:
		m.tasks[op.room] = struct{}{}
	default:
		delete(m.tasks, op.room)
	}
	m.pending = append(m.pending, op)
	m.mu.Unlock()
	m.signal()
}

func (m *Member) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Member) outboxLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
		}
		m.flush(ctx)
	}
}

// flush sends queued task changes in order. Nothing is sent while the
// membership is lost; the queue waits for recovery.
func (m *Member) flush(ctx context.Context) {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 || m.state != domain.MemberStateInService {
			m.mu.Unlock()
			return
		}
		op := m.pending[0]
		m.pending = m.pending[1:]
		id := m.id
		m.mu.Unlock()

		var err error
		if op.add {
			err = m.coordinator.AddTask(ctx, id, op.room)
		} else {
			err = m.coordinator.RemoveTask(ctx, id, op.room)
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("task update failed",
				telemetry.RoomIDField(op.room),
				zap.Bool("add", op.add),
				zap.Error(err),
			)
		}
	}
}

// ReportLoad forwards a load sample while the membership is in service.
func (m *Member) ReportLoad(ctx context.Context, load float64) error {
	m.mu.Lock()
	id, state := m.id, m.state
	m.mu.Unlock()
	if state != domain.MemberStateInService {
		return domain.E(domain.CodeUnavailable, "cluster.reportLoad", string(state), domain.ErrNotJoined)
	}
	if err := m.coordinator.ReportLoad(ctx, id, load); err != nil {
		return domain.Wrap(domain.CodeUnavailable, "cluster.reportLoad", err)
	}
	m.metrics.SetReportedLoad(load)
	return nil
}

// Quit stops the background loops and leaves the cluster. It is idempotent.
func (m *Member) Quit(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	prev, id := m.state, m.id
	m.setStateLocked(domain.MemberStateQuit)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		m.wg.Wait()
	}
	if prev == domain.MemberStateQuit || id == "" {
		return nil
	}
	m.logger.Info("leaving cluster",
		telemetry.EventField(telemetry.EventMemberQuit),
		telemetry.ClusterIDField(id),
	)
	if err := m.coordinator.Quit(ctx, id); err != nil {
		return domain.Wrap(domain.CodeUnavailable, "cluster.quit", err)
	}
	return nil
}

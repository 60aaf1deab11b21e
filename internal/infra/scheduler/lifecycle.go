package scheduler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"erizoagent/internal/domain"
	"erizoagent/internal/infra/telemetry"
)

// Launch spawns one idle worker and returns its id.
func (p *Pool) Launch() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", wrapPoolError("pool.launch", domain.ErrPoolClosed)
	}
	if len(p.workers) >= p.maxProcesses {
		return "", wrapPoolError("pool.launch", ErrAtCapacity)
	}
	id, err := p.launchLocked()
	if err != nil {
		return "", wrapPoolError("pool.launch", err)
	}
	p.observeGaugesLocked()
	return id, nil
}

// FillToPrerun launches idle workers until prerunProcesses are waiting,
// without exceeding maxProcesses. It stops at the first launch error.
func (p *Pool) FillToPrerun() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return wrapPoolError("pool.fill", domain.ErrPoolClosed)
	}
	err := p.fillLocked()
	p.observeGaugesLocked()
	return wrapPoolError("pool.fill", err)
}

func (p *Pool) fillLocked() error {
	for len(p.idle) < p.prerun && len(p.workers) < p.maxProcesses {
		if _, err := p.launchLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) launchLocked() (string, error) {
	if p.throttle.holding(p.now()) {
		return "", ErrRespawnHeld
	}

	id := p.newID()
	handle, err := p.launcher.Launch(id)
	p.metrics.ObserveWorkerLaunch(err)
	if err != nil {
		p.logger.Error("worker launch failed",
			telemetry.EventField(telemetry.EventLaunchFailure),
			telemetry.WorkerIDField(id),
			zap.Error(err),
		)
		return "", err
	}

	w := &worker{
		id:         id,
		handle:     handle,
		state:      domain.WorkerStateIdle,
		launchedAt: p.now(),
	}
	p.workers[id] = w
	p.tasks[id] = make(map[string]struct{})
	p.idle = append(p.idle, id)
	p.logger.Info("worker launched",
		telemetry.EventField(telemetry.EventWorkerLaunch),
		telemetry.WorkerIDField(id),
		zap.Int("pid", handle.PID()),
	)

	go p.observe(w, handle)
	return id, nil
}

func (p *Pool) observe(w *worker, handle domain.WorkerHandle) {
	<-handle.Done()
	p.handleExit(w, handle.ExitCode())
}

func (p *Pool) handleExit(w *worker, code int) {

	p.mu.Lock()
	defer p.mu.Unlock()

	current, tracked := p.workers[w.id]
	if !tracked || current != w {
		p.logger.Info("worker exited",
			telemetry.EventField(telemetry.EventWorkerExit),
			telemetry.WorkerIDField(w.id),
			zap.Int("exitCode", code),
		)
		return
	}

	wasIdle := w.state == domain.WorkerStateIdle
	rooms := len(p.tasks[w.id])
	p.removeLocked(w.id)
	p.metrics.ObserveWorkerExit(domain.ExitKindCrash)
	p.logger.Warn("worker exited unexpectedly",
		telemetry.EventField(telemetry.EventWorkerCrash),
		telemetry.WorkerIDField(w.id),
		telemetry.StateField(string(w.state)),
		zap.Int("exitCode", code),
		zap.Int("rooms", rooms),
	)

	if wasIdle {
		now := p.now()
		if p.throttle.earlyExit(w.launchedAt, now) {
			p.throttle.trip(now, p.refill)
			p.logger.Warn("worker respawn held off",
				telemetry.WorkerIDField(w.id),
				telemetry.DurationField(p.throttle.hold),
			)
		} else if _, err := p.launchLocked(); err != nil {
			p.logger.Warn("idle worker replacement failed", zap.Error(err))
		}
	}
	if err := p.fillLocked(); err != nil && !errors.Is(err, ErrRespawnHeld) {
		p.logger.Warn("pool refill failed", zap.Error(err))
	}
	p.observeGaugesLocked()
}

// refill runs when a respawn hold expires.
func (p *Pool) refill() {
	if err := p.FillToPrerun(); err != nil && !errors.Is(err, domain.ErrPoolClosed) {
		p.logger.Warn("pool refill after holdoff failed", zap.Error(err))
	}
}

// Shutdown stops replenishment, terminates every worker and waits for the
// processes to exit or for ctx to end.
func (p *Pool) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.throttle.stop()
	victims := make([]*worker, 0, len(p.workers))
	for _, ids := range [][]string{p.active, p.idle} {
		for _, id := range ids {
			victims = append(victims, p.workers[id])
		}
	}
	p.idle = nil
	p.active = nil
	p.workers = make(map[string]*worker)
	p.tasks = make(map[string]map[string]struct{})
	p.observeGaugesLocked()
	p.mu.Unlock()

	for _, w := range victims {
		p.terminate(w, domain.ExitKindShutdown)
	}
	for _, w := range victims {
		select {
		case <-w.handle.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// terminate kills a worker that is no longer tracked. It never waits for the exit.
func (p *Pool) terminate(w *worker, kind domain.ExitKind) {
	event := telemetry.EventWorkerEvicted
	if kind == domain.ExitKindShutdown {
		event = telemetry.EventWorkerShutdown
	}
	p.metrics.ObserveWorkerExit(kind)
	p.logger.Info("terminating worker",
		telemetry.EventField(event),
		telemetry.WorkerIDField(w.id),
		zap.Int("pid", w.handle.PID()),
	)
	if err := w.handle.Kill(); err != nil {
		p.logger.Warn("worker kill failed", telemetry.WorkerIDField(w.id), zap.Error(err))
	}
}

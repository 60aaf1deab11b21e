package scheduler

import (
	"go.uber.org/zap"

	"erizoagent/internal/domain"
	"erizoagent/internal/infra/telemetry"
)

// Assign picks the worker that will serve roomID.
//
// With reuse on, a worker already holding the room is returned unchanged.
// Otherwise the oldest idle worker becomes active with the room. Afterwards,
// if reuse is on and the pool is full, the oldest active worker is parked at
// the tail of the idle queue with its rooms intact; if not, the idle queue is
// topped up to prerunProcesses.
func (p *Pool) Assign(roomID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", wrapPoolError("pool.assign", domain.ErrPoolClosed)
	}

	if p.reuse {
		if id, ok := p.holderLocked(roomID); ok {
			p.metrics.ObserveAssign(domain.AssignOutcomeSticky)
			p.logger.Debug("room already served",
				telemetry.EventField(telemetry.EventAssignSticky),
				telemetry.RoomIDField(roomID),
				telemetry.WorkerIDField(id),
			)
			return id, nil
		}
	}

	if len(p.idle) == 0 {
		p.metrics.ObserveAssign(domain.AssignOutcomeExhausted)
		p.logger.Error("no idle worker for room",
			telemetry.EventField(telemetry.EventPoolExhausted),
			telemetry.RoomIDField(roomID),
			zap.Int("active", len(p.active)),
		)
		return "", wrapPoolError("pool.assign", domain.ErrPoolExhausted)
	}

	id := p.idle[0]
	p.idle = p.idle[1:]
	p.workers[id].state = domain.WorkerStateActive
	p.active = append(p.active, id)
	p.tasks[id][roomID] = struct{}{}
	p.metrics.ObserveAssign(domain.AssignOutcomeFresh)
	p.logger.Info("room assigned",
		telemetry.EventField(telemetry.EventAssignFresh),
		telemetry.RoomIDField(roomID),
		telemetry.WorkerIDField(id),
	)

	if p.reuse && len(p.active)+len(p.idle) >= p.maxProcesses {
		p.parkOldestActiveLocked()
	} else if err := p.fillLocked(); err != nil {
		p.logger.Warn("pool refill failed", zap.Error(err))
	}
	p.observeGaugesLocked()
	return id, nil
}

func (p *Pool) parkOldestActiveLocked() {
	if len(p.active) == 0 {
		return
	}
	id := p.active[0]
	p.active = p.active[1:]
	p.workers[id].state = domain.WorkerStateIdle
	p.idle = append(p.idle, id)
	p.metrics.ObserveReuseEviction()
	p.logger.Info("parked active worker for reuse",
		telemetry.EventField(telemetry.EventReuseEviction),
		telemetry.WorkerIDField(id),
		zap.Int("rooms", len(p.tasks[id])),
	)
}

// Release drops roomID from the worker's task set. A worker left without
// rooms is terminated and the pool topped up. Unknown workers and rooms are
// ignored.
func (p *Pool) Release(workerID, roomID string) ReleaseResult {
	p.mu.Lock()

	rooms, ok := p.tasks[workerID]
	if !ok {
		p.mu.Unlock()
		p.logger.Debug("release for unknown worker",
			telemetry.WorkerIDField(workerID),
			telemetry.RoomIDField(roomID),
		)
		return ReleaseResult{}
	}
	if _, held := rooms[roomID]; !held {
		p.mu.Unlock()
		p.logger.Debug("release for room not held by worker",
			telemetry.WorkerIDField(workerID),
			telemetry.RoomIDField(roomID),
		)
		return ReleaseResult{}
	}
	delete(rooms, roomID)
	p.logger.Info("room released",
		telemetry.EventField(telemetry.EventRelease),
		telemetry.WorkerIDField(workerID),
		telemetry.RoomIDField(roomID),
	)

	var (
		result ReleaseResult
		victim *worker
	)
	if len(rooms) == 0 {
		victim = p.removeLocked(workerID)
		result.Evicted = true
	}
	if _, held := p.holderLocked(roomID); !held {
		result.Vacated = true
		p.logger.Info("room vacated",
			telemetry.EventField(telemetry.EventRoomVacated),
			telemetry.RoomIDField(roomID),
		)
	}
	if result.Evicted && !p.closed {
		if err := p.fillLocked(); err != nil {
			p.logger.Warn("pool refill failed", zap.Error(err))
		}
	}
	p.observeGaugesLocked()
	p.mu.Unlock()

	if victim != nil {
		p.terminate(victim, domain.ExitKindEvicted)
	}
	return result
}

package scheduler

import (
	"errors"

	"erizoagent/internal/domain"
)

var (
	// ErrAtCapacity indicates the pool already tracks maxProcesses workers.
	ErrAtCapacity = errors.New("pool at maxProcesses")
	// ErrRespawnHeld indicates launches are paused after a worker crashed right after start.
	ErrRespawnHeld = errors.New("worker respawn held off after early exit")
)

func wrapPoolError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAtCapacity) || errors.Is(err, ErrRespawnHeld) {
		return domain.Wrap(domain.CodeUnavailable, op, err)
	}
	return domain.Wrap(domain.CodeInternal, op, err)
}

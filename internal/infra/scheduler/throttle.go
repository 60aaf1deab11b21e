package scheduler

import "time"

// respawnThrottle pauses launches for a while after an idle worker died
// shortly after being spawned. It is guarded by the pool mutex.
type respawnThrottle struct {
	hold  time.Duration
	until time.Time
	timer *time.Timer
}

func (t *respawnThrottle) holding(now time.Time) bool {
	return now.Before(t.until)
}

// trip holds launches until now+hold and schedules notify once the hold ends.
func (t *respawnThrottle) trip(now time.Time, notify func()) {
	if t.hold <= 0 {
		return
	}
	t.until = now.Add(t.hold)
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.hold, notify)
}

func (t *respawnThrottle) earlyExit(launchedAt, now time.Time) bool {
	return t.hold > 0 && now.Sub(launchedAt) < t.hold
}

func (t *respawnThrottle) stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.until = time.Time{}
}

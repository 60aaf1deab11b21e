package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"erizoagent/internal/domain"
	"erizoagent/internal/infra/telemetry"
)

func newTestPool(t *testing.T, launcher *fakeLauncher, reuse bool, maxProcesses, prerun int) *Pool {
	t.Helper()
	pool, err := NewPool(PoolOptions{
		Launcher:        launcher,
		Reuse:           reuse,
		MaxProcesses:    maxProcesses,
		PrerunProcesses: prerun,
		NewID:           sequentialIDs(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pool.Shutdown(context.Background())
	})
	return pool
}

func ids(infos []domain.WorkerInfo) []string {
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.ID)
	}
	return out
}

// requireConsistent checks the partition and task table invariants.
func requireConsistent(t *testing.T, pool *Pool) {
	t.Helper()
	pool.mu.Lock()
	defer pool.mu.Unlock()

	seen := make(map[string]domain.WorkerState)
	for _, id := range pool.idle {
		_, dup := seen[id]
		require.False(t, dup, "worker %s listed twice", id)
		seen[id] = domain.WorkerStateIdle
		require.Equal(t, domain.WorkerStateIdle, pool.workers[id].state)
		if !pool.reuse {
			require.Empty(t, pool.tasks[id], "idle worker %s holds rooms", id)
		}
	}
	for _, id := range pool.active {
		_, dup := seen[id]
		require.False(t, dup, "worker %s is both idle and active", id)
		seen[id] = domain.WorkerStateActive
		require.Equal(t, domain.WorkerStateActive, pool.workers[id].state)
		require.NotEmpty(t, pool.tasks[id], "active worker %s holds no rooms", id)
	}
	require.Len(t, pool.workers, len(seen))
	require.Len(t, pool.tasks, len(seen))
	for id := range pool.tasks {
		_, ok := seen[id]
		require.True(t, ok, "task entry for unknown worker %s", id)
	}
	require.LessOrEqual(t, len(seen), pool.maxProcesses)
}

func TestNewPool_Validates(t *testing.T) {
	_, err := NewPool(PoolOptions{MaxProcesses: 1})
	require.Error(t, err)

	_, err = NewPool(PoolOptions{Launcher: newFakeLauncher(), MaxProcesses: 0})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = NewPool(PoolOptions{Launcher: newFakeLauncher(), MaxProcesses: 1, PrerunProcesses: -1})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestPool_FillToPrerunIsIdempotent(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, true, 3, 2)

	require.NoError(t, pool.FillToPrerun())
	require.Equal(t, 2, launcher.launched())

	require.NoError(t, pool.FillToPrerun())
	require.Equal(t, 2, launcher.launched())
	requireConsistent(t, pool)
}

func TestPool_FillToPrerunCappedByMaxProcesses(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, false, 2, 5)

	require.NoError(t, pool.FillToPrerun())
	require.Equal(t, 2, launcher.launched())
	require.Len(t, pool.Snapshot().Idle, 2)
}

func TestPool_ReuseEvictionScenario(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, true, 3, 2)
	require.NoError(t, pool.FillToPrerun())

	snap := pool.Snapshot()
	require.Len(t, snap.Idle, 2)
	require.Empty(t, snap.Active)

	a, err := pool.Assign("room1")
	require.NoError(t, err)
	require.Equal(t, "w1", a)

	snap = pool.Snapshot()
	require.Equal(t, []string{"w2", "w3"}, ids(snap.Idle))
	require.Equal(t, []string{"w1"}, ids(snap.Active))
	require.Equal(t, []string{"room1"}, snap.Active[0].Rooms)

	b, err := pool.Assign("room2")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Equal(t, "w2", b)

	snap = pool.Snapshot()
	want := domain.PoolSnapshot{
		Idle: []domain.WorkerInfo{
			{ID: "w3", PID: 1002, State: domain.WorkerStateIdle, Rooms: []string{}},
			{ID: "w1", PID: 1000, State: domain.WorkerStateIdle, Rooms: []string{"room1"}},
		},
		Active: []domain.WorkerInfo{
			{ID: "w2", PID: 1001, State: domain.WorkerStateActive, Rooms: []string{"room2"}},
		},
		Reuse:  true,
		Max:    3,
		Prerun: 2,
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 3, launcher.launched())
	requireConsistent(t, pool)

	// The parked worker still serves its room.
	again, err := pool.Assign("room1")
	require.NoError(t, err)
	require.Equal(t, a, again)
}

func TestPool_StickyReuse(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, true, 4, 1)
	require.NoError(t, pool.FillToPrerun())

	first, err := pool.Assign("room1")
	require.NoError(t, err)
	launches := launcher.launched()
	size := len(pool.Snapshot().Idle) + len(pool.Snapshot().Active)

	second, err := pool.Assign("room1")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, launches, launcher.launched())
	require.Equal(t, size, len(pool.Snapshot().Idle)+len(pool.Snapshot().Active))
}

func TestPool_NoReuseGivesEachRequestItsOwnWorker(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, false, 3, 1)
	require.NoError(t, pool.FillToPrerun())

	first, err := pool.Assign("room1")
	require.NoError(t, err)
	second, err := pool.Assign("room1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	requireConsistent(t, pool)
}

func TestPool_CapacityBound(t *testing.T) {
	for _, maxProcesses := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("max=%d", maxProcesses), func(t *testing.T) {
			launcher := newFakeLauncher()
			pool := newTestPool(t, launcher, true, maxProcesses, 2)
			require.NoError(t, pool.FillToPrerun())

			for i := 0; i < 40; i++ {
				room := fmt.Sprintf("room%d", i%7)
				_, err := pool.Assign(room)
				require.NoError(t, err)
				requireConsistent(t, pool)

				snap := pool.Snapshot()
				require.LessOrEqual(t, len(snap.Idle)+len(snap.Active), maxProcesses)
			}
		})
	}
}

func TestPool_ExhaustedWithoutIdleWorker(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, false, 1, 1)
	require.NoError(t, pool.FillToPrerun())

	_, err := pool.Assign("room1")
	require.NoError(t, err)

	id, err := pool.Assign("room2")
	require.Empty(t, id)
	require.ErrorIs(t, err, domain.ErrPoolExhausted)
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.CodeUnavailable, code)
	requireConsistent(t, pool)
}

func TestPool_ReleaseEvictsEmptyWorker(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, false, 3, 1)
	require.NoError(t, pool.FillToPrerun())

	id, err := pool.Assign("room1")
	require.NoError(t, err)

	result := pool.Release(id, "room1")
	require.Equal(t, ReleaseResult{Evicted: true, Vacated: true}, result)
	require.True(t, launcher.handle(id).killed.Load())

	snap := pool.Snapshot()
	require.NotContains(t, ids(snap.Idle), id)
	require.NotContains(t, ids(snap.Active), id)
	pool.mu.Lock()
	_, tracked := pool.tasks[id]
	pool.mu.Unlock()
	require.False(t, tracked)
	requireConsistent(t, pool)
}

func TestPool_ReleaseKeepsWorkerWithRemainingRooms(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, true, 1, 1)
	require.NoError(t, pool.FillToPrerun())

	first, err := pool.Assign("room1")
	require.NoError(t, err)
	second, err := pool.Assign("room2")
	require.NoError(t, err)
	require.Equal(t, first, second)

	result := pool.Release(first, "room1")
	require.Equal(t, ReleaseResult{Vacated: true}, result)
	require.False(t, launcher.handle(first).killed.Load())
	requireConsistent(t, pool)
}

func TestPool_VacateFiresAfterLastHolder(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, false, 3, 1)
	require.NoError(t, pool.FillToPrerun())

	w1, err := pool.Assign("room1")
	require.NoError(t, err)
	w2, err := pool.Assign("room1")
	require.NoError(t, err)
	require.NotEqual(t, w1, w2)

	first := pool.Release(w1, "room1")
	require.True(t, first.Evicted)
	require.False(t, first.Vacated)

	second := pool.Release(w2, "room1")
	require.True(t, second.Evicted)
	require.True(t, second.Vacated)

	third := pool.Release(w2, "room1")
	require.Equal(t, ReleaseResult{}, third)
}

func TestPool_ReleaseUnknownRoomIsNoop(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, true, 3, 1)
	require.NoError(t, pool.FillToPrerun())

	id, err := pool.Assign("room1")
	require.NoError(t, err)
	before := pool.Snapshot()

	require.Equal(t, ReleaseResult{}, pool.Release(id, "nope"))
	require.Equal(t, ReleaseResult{}, pool.Release("ghost", "room1"))
	if diff := cmp.Diff(before, pool.Snapshot()); diff != "" {
		t.Fatalf("pool changed (-before +after):\n%s", diff)
	}
	require.False(t, launcher.handle(id).killed.Load())
}

func TestPool_IdleCrashIsReplaced(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, true, 3, 2)
	require.NoError(t, pool.FillToPrerun())

	launcher.handle("w1").exit(1)

	require.Eventually(t, func() bool {
		snap := pool.Snapshot()
		return launcher.launched() == 3 && len(snap.Idle) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"w2", "w3"}, ids(pool.Snapshot().Idle))
	requireConsistent(t, pool)
}

func TestPool_ActiveCrashIsNotReplaced(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, false, 3, 1)
	require.NoError(t, pool.FillToPrerun())

	id, err := pool.Assign("room1")
	require.NoError(t, err)
	require.Equal(t, 2, launcher.launched())

	launcher.handle(id).exit(139)

	require.Eventually(t, func() bool {
		return pool.ActiveCount() == 0
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, launcher.launched())
	require.Len(t, pool.Snapshot().Idle, 1)
	requireConsistent(t, pool)
}

func TestPool_RespawnHoldoffAfterEarlyExit(t *testing.T) {
	launcher := newFakeLauncher()
	pool, err := NewPool(PoolOptions{
		Launcher:        launcher,
		Reuse:           true,
		MaxProcesses:    2,
		PrerunProcesses: 1,
		RespawnHoldoff:  100 * time.Millisecond,
		NewID:           sequentialIDs(),
	})
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())
	require.NoError(t, pool.FillToPrerun())

	launcher.handle("w1").exit(1)

	require.Eventually(t, func() bool {
		return len(pool.Snapshot().Idle) == 0
	}, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, pool.FillToPrerun(), ErrRespawnHeld)
	require.Equal(t, 1, launcher.launched())

	require.Eventually(t, func() bool {
		return len(pool.Snapshot().Idle) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 2, launcher.launched())
}

func TestPool_LaunchFailureStopsFill(t *testing.T) {
	launcher := newFakeLauncher()
	launcher.failWith(fmt.Errorf("start: %w", domain.ErrExecutableNotFound))
	pool := newTestPool(t, launcher, true, 3, 2)

	err := pool.FillToPrerun()
	require.ErrorIs(t, err, domain.ErrExecutableNotFound)
	require.Empty(t, pool.Snapshot().Idle)
}

func TestPool_LaunchRespectsCapacity(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, true, 1, 0)

	id, err := pool.Launch()
	require.NoError(t, err)
	require.Equal(t, "w1", id)

	_, err = pool.Launch()
	require.ErrorIs(t, err, ErrAtCapacity)
}

func TestPool_ShutdownTerminatesEveryWorker(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, true, 3, 2)
	require.NoError(t, pool.FillToPrerun())
	_, err := pool.Assign("room1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))

	for _, id := range []string{"w1", "w2", "w3"} {
		require.True(t, launcher.handle(id).killed.Load(), id)
	}
	snap := pool.Snapshot()
	require.True(t, snap.Closed)
	require.Empty(t, snap.Idle)
	require.Empty(t, snap.Active)

	_, err = pool.Assign("room2")
	require.ErrorIs(t, err, domain.ErrPoolClosed)
	require.ErrorIs(t, pool.FillToPrerun(), domain.ErrPoolClosed)
	require.NoError(t, pool.Shutdown(ctx))
	require.Equal(t, 3, launcher.launched())
}

func TestPool_ShutdownHonoursContext(t *testing.T) {
	launcher := newFakeLauncher()
	pool := newTestPool(t, launcher, true, 1, 1)
	require.NoError(t, pool.FillToPrerun())

	pool.mu.Lock()
	pool.workers["w1"].handle = &stubbornHandle{done: make(chan struct{})}
	pool.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Shutdown(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPool_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(registry)
	launcher := newFakeLauncher()
	pool, err := NewPool(PoolOptions{
		Launcher:        launcher,
		Reuse:           true,
		MaxProcesses:    3,
		PrerunProcesses: 2,
		Metrics:         metrics,
		NewID:           sequentialIDs(),
	})
	require.NoError(t, err)
	defer pool.Shutdown(context.Background())

	require.NoError(t, pool.FillToPrerun())
	_, err = pool.Assign("room1")
	require.NoError(t, err)
	_, err = pool.Assign("room2")
	require.NoError(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	require.Contains(t, names, "erizo_agent_reuse_evictions_total")
	require.Contains(t, names, "erizo_agent_assignments_total")
}

// stubbornHandle ignores Kill.
type stubbornHandle struct {
	done chan struct{}
}

func (h *stubbornHandle) PID() int              { return 1 }
func (h *stubbornHandle) Done() <-chan struct{} { return h.done }
func (h *stubbornHandle) ExitCode() int         { return 0 }
func (h *stubbornHandle) Kill() error           { return nil }

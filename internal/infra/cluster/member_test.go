package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"erizoagent/internal/domain"
)

type fakeCoordinator struct {
	mu        sync.Mutex
	joins     []domain.JoinRequest
	failJoins int
	nextID    int
	known     bool
	aliveErr  error
	loads     []float64
	calls     []string
	quits     []string

	// rejoined and releaseRejoin hold a recovery join in flight when set.
	rejoined      chan struct{}
	releaseRejoin chan struct{}
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{known: true}
}

func (f *fakeCoordinator) Join(ctx context.Context, req domain.JoinRequest) (string, error) {
	f.mu.Lock()
	rejoined, release := f.rejoined, f.releaseRejoin
	f.mu.Unlock()
	if release != nil && req.PreviousID != "" {
		select {
		case rejoined <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, req)
	if f.failJoins > 0 {
		f.failJoins--
		return "", errors.New("coordinator unreachable")
	}
	f.nextID++
	f.known = true
	f.aliveErr = nil
	return fmt.Sprintf("node-%d", f.nextID), nil
}

func (f *fakeCoordinator) KeepAlive(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.known, f.aliveErr
}

func (f *fakeCoordinator) ReportLoad(_ context.Context, _ string, load float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, load)
	return nil
}

func (f *fakeCoordinator) AddTask(_ context.Context, id, task string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "add "+id+" "+task)
	return nil
}

func (f *fakeCoordinator) RemoveTask(_ context.Context, id, task string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "remove "+id+" "+task)
	return nil
}

func (f *fakeCoordinator) Quit(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quits = append(f.quits, id)
	return nil
}

func (f *fakeCoordinator) forget() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.known = false
}

func (f *fakeCoordinator) snapshot() (joins []domain.JoinRequest, calls []string, quits []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.JoinRequest(nil), f.joins...),
		append([]string(nil), f.calls...),
		append([]string(nil), f.quits...)
}

func newTestMember(t *testing.T, coordinator *fakeCoordinator, opts MemberOptions) *Member {
	t.Helper()
	opts.Coordinator = coordinator
	if opts.JoinRetry == 0 {
		opts.JoinRetry = 3
	}
	if opts.Purpose == "" {
		opts.Purpose = domain.PurposeWebRTC
	}
	member, err := NewMember(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = member.Quit(context.Background())
	})
	return member
}

func TestNewMemberRequiresCoordinator(t *testing.T) {
	_, err := NewMember(MemberOptions{})
	require.Error(t, err)
}

func TestJoinSucceeds(t *testing.T) {
	coordinator := newFakeCoordinator()
	member := newTestMember(t, coordinator, MemberOptions{
		Info: domain.NodeInfo{IP: "10.0.0.5", Purpose: domain.PurposeWebRTC, State: domain.AgentStateAvailable, MaxLoad: 0.85},
	})

	id, err := member.Join(context.Background())
	require.NoError(t, err)
	require.Equal(t, "node-1", id)
	require.Equal(t, "node-1", member.ID())
	require.Equal(t, domain.MemberStateInService, member.State())

	joins, _, _ := coordinator.snapshot()
	require.Len(t, joins, 1)
	require.Equal(t, domain.DefaultClusterName, joins[0].ClusterName)
	require.Equal(t, "10.0.0.5", joins[0].Info.IP)
	require.Empty(t, joins[0].PreviousID)
}

func TestJoinRetriesThenSucceeds(t *testing.T) {
	coordinator := newFakeCoordinator()
	coordinator.failJoins = 2
	member := newTestMember(t, coordinator, MemberOptions{JoinRetry: 3, JoinPeriod: time.Millisecond})

	id, err := member.Join(context.Background())
	require.NoError(t, err)
	require.Equal(t, "node-1", id)

	joins, _, _ := coordinator.snapshot()
	require.Len(t, joins, 3)
}

func TestJoinFailsAfterRetries(t *testing.T) {
	coordinator := newFakeCoordinator()
	coordinator.failJoins = 10
	member := newTestMember(t, coordinator, MemberOptions{JoinRetry: 2, JoinPeriod: time.Millisecond})

	_, err := member.Join(context.Background())
	require.ErrorIs(t, err, domain.ErrJoinFailed)
	require.Equal(t, domain.MemberStateQuit, member.State())

	joins, _, _ := coordinator.snapshot()
	require.Len(t, joins, 2)

	_, err = member.Join(context.Background())
	require.Error(t, err)
}

func TestJoinHonoursContext(t *testing.T) {
	coordinator := newFakeCoordinator()
	coordinator.failJoins = 10
	member := newTestMember(t, coordinator, MemberOptions{JoinRetry: 5, JoinPeriod: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := member.Join(ctx)
	require.ErrorIs(t, err, domain.ErrJoinFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartRequiresJoin(t *testing.T) {
	member := newTestMember(t, newFakeCoordinator(), MemberOptions{})
	require.ErrorIs(t, member.Start(context.Background()), domain.ErrNotJoined)
}

func TestTaskUpdatesAreOrderedAndDeduplicated(t *testing.T) {
	coordinator := newFakeCoordinator()
	member := newTestMember(t, coordinator, MemberOptions{})
	_, err := member.Join(context.Background())
	require.NoError(t, err)
	require.NoError(t, member.Start(context.Background()))

	member.AddTask("room1")
	member.AddTask("room1")
	member.AddTask("room2")
	member.RemoveTask("room1")
	member.RemoveTask("room3")

	want := []string{"add node-1 room1", "add node-1 room2", "remove node-1 room1"}
	require.Eventually(t, func() bool {
		_, calls, _ := coordinator.snapshot()
		return len(calls) == len(want)
	}, time.Second, 5*time.Millisecond)
	_, calls, _ := coordinator.snapshot()
	require.Equal(t, want, calls)
	require.Equal(t, []string{"room2"}, member.Tasks())
}

func TestReportLoadRequiresService(t *testing.T) {
	coordinator := newFakeCoordinator()
	member := newTestMember(t, coordinator, MemberOptions{})

	require.ErrorIs(t, member.ReportLoad(context.Background(), 0.3), domain.ErrNotJoined)

	_, err := member.Join(context.Background())
	require.NoError(t, err)
	require.NoError(t, member.ReportLoad(context.Background(), 0.3))

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	require.Equal(t, []float64{0.3}, coordinator.loads)
}

func TestLossTriggersRecoveryWithTasks(t *testing.T) {
	coordinator := newFakeCoordinator()
	member := newTestMember(t, coordinator, MemberOptions{
		KeepAlivePeriod: 5 * time.Millisecond,
		RecoveryPeriod:  5 * time.Millisecond,
	})
	_, err := member.Join(context.Background())
	require.NoError(t, err)
	require.NoError(t, member.Start(context.Background()))

	member.AddTask("room1")
	require.Eventually(t, func() bool {
		_, calls, _ := coordinator.snapshot()
		return len(calls) == 1
	}, time.Second, 5*time.Millisecond)

	coordinator.forget()

	require.Eventually(t, func() bool {
		return member.ID() == "node-2"
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, domain.MemberStateInService, member.State())

	joins, _, _ := coordinator.snapshot()
	recovery := joins[len(joins)-1]
	require.Equal(t, "node-1", recovery.PreviousID)
	require.Equal(t, []string{"room1"}, recovery.Tasks)
}

func TestTaskChangesDuringRecoveryReachCoordinator(t *testing.T) {
	coordinator := newFakeCoordinator()
	member := newTestMember(t, coordinator, MemberOptions{
		KeepAlivePeriod: 5 * time.Millisecond,
		RecoveryPeriod:  5 * time.Millisecond,
	})
	_, err := member.Join(context.Background())
	require.NoError(t, err)
	require.NoError(t, member.Start(context.Background()))

	member.AddTask("room1")
	require.Eventually(t, func() bool {
		_, calls, _ := coordinator.snapshot()
		return len(calls) == 1
	}, time.Second, 5*time.Millisecond)

	rejoined := make(chan struct{}, 1)
	release := make(chan struct{})
	coordinator.mu.Lock()
	coordinator.rejoined = rejoined
	coordinator.releaseRejoin = release
	coordinator.known = false
	coordinator.mu.Unlock()

	select {
	case <-rejoined:
	case <-time.After(time.Second):
		t.Fatal("recovery join not attempted")
	}
	member.AddTask("room2")
	member.RemoveTask("room1")
	require.Equal(t, domain.MemberStateLost, member.State())
	close(release)

	want := []string{"add node-1 room1", "add node-2 room2", "remove node-2 room1"}
	require.Eventually(t, func() bool {
		_, calls, _ := coordinator.snapshot()
		return len(calls) == len(want)
	}, time.Second, 5*time.Millisecond)
	joins, calls, _ := coordinator.snapshot()
	require.Equal(t, want, calls)
	require.Equal(t, []string{"room1"}, joins[len(joins)-1].Tasks)
	require.Equal(t, []string{"room2"}, member.Tasks())
}

func TestKeepAliveErrorMarksLost(t *testing.T) {
	coordinator := newFakeCoordinator()
	member := newTestMember(t, coordinator, MemberOptions{
		KeepAlivePeriod: 5 * time.Millisecond,
		RecoveryPeriod:  time.Hour,
	})
	_, err := member.Join(context.Background())
	require.NoError(t, err)
	require.NoError(t, member.Start(context.Background()))

	coordinator.mu.Lock()
	coordinator.aliveErr = errors.New("timeout")
	coordinator.mu.Unlock()

	require.Eventually(t, func() bool {
		return member.State() == domain.MemberStateLost
	}, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, member.ReportLoad(context.Background(), 0.1), domain.ErrNotJoined)
}

func TestQuitLeavesClusterOnce(t *testing.T) {
	coordinator := newFakeCoordinator()
	member := newTestMember(t, coordinator, MemberOptions{KeepAlivePeriod: 5 * time.Millisecond})
	_, err := member.Join(context.Background())
	require.NoError(t, err)
	require.NoError(t, member.Start(context.Background()))

	require.NoError(t, member.Quit(context.Background()))
	require.NoError(t, member.Quit(context.Background()))
	require.Equal(t, domain.MemberStateQuit, member.State())

	_, _, quits := coordinator.snapshot()
	require.Equal(t, []string{"node-1"}, quits)
}

func TestQuitBeforeJoinIsNoop(t *testing.T) {
	coordinator := newFakeCoordinator()
	member := newTestMember(t, coordinator, MemberOptions{})
	require.NoError(t, member.Quit(context.Background()))

	_, _, quits := coordinator.snapshot()
	require.Empty(t, quits)
}

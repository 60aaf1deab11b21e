package telemetry

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erizoagent/internal/domain"
)

func TestNewPrometheusMetrics_UsesProvidedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewPrometheusMetrics(registry)
	m.ObserveWorkerLaunch(nil)
	m.ObserveWorkerExit(domain.ExitKindCrash)
	m.ObserveAssign(domain.AssignOutcomeFresh)
	m.ObserveReuseEviction()
	m.SetPoolWorkers(2, 1)
	m.SetReportedLoad(0.4)
	m.SetMemberState(domain.MemberStateInService)

	metrics, err := registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names = append(names, m.GetName())
	}

	assert.Contains(t, names, "erizo_agent_worker_launches_total")
	assert.Contains(t, names, "erizo_agent_worker_exits_total")
	assert.Contains(t, names, "erizo_agent_assignments_total")
	assert.Contains(t, names, "erizo_agent_reuse_evictions_total")
	assert.Contains(t, names, "erizo_agent_pool_workers")
	assert.Contains(t, names, "erizo_agent_reported_load")
	assert.Contains(t, names, "erizo_agent_member_state")
}

func TestPrometheusMetrics_LaunchStatus(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())

	m.ObserveWorkerLaunch(nil)
	m.ObserveWorkerLaunch(errors.New("boom"))
	m.ObserveWorkerLaunch(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.workerLaunches.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.workerLaunches.WithLabelValues("error")))
}

func TestPrometheusMetrics_MemberStateIsOneHot(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())

	m.SetMemberState(domain.MemberStateJoining)
	m.SetMemberState(domain.MemberStateLost)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.memberState.WithLabelValues("joining")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.memberState.WithLabelValues("lost")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.memberState.WithLabelValues("in_service")))
}

func TestPrometheusMetrics_PoolWorkers(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())

	m.SetPoolWorkers(3, 1)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.poolWorkers.WithLabelValues("idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.poolWorkers.WithLabelValues("active")))
}

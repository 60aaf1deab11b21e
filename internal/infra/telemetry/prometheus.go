package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"erizoagent/internal/domain"
)

type PrometheusMetrics struct {
	workerLaunches *prometheus.CounterVec
	workerExits    *prometheus.CounterVec
	assignments    *prometheus.CounterVec
	reuseEvictions prometheus.Counter
	poolWorkers    *prometheus.GaugeVec
	reportedLoad   prometheus.Gauge
	memberState    *prometheus.GaugeVec
}

var memberStates = []domain.MemberState{
	domain.MemberStateIdle,
	domain.MemberStateJoining,
	domain.MemberStateInService,
	domain.MemberStateLost,
	domain.MemberStateQuit,
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		workerLaunches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erizo_agent_worker_launches_total",
				Help: "Total number of worker launch attempts",
			},
			[]string{"status"},
		),
		workerExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erizo_agent_worker_exits_total",
				Help: "Total number of workers that left the pool",
			},
			[]string{"kind"},
		),
		assignments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erizo_agent_assignments_total",
				Help: "Total number of room assignment requests by outcome",
			},
			[]string{"outcome"},
		),
		reuseEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "erizo_agent_reuse_evictions_total",
				Help: "Total number of active workers parked back to idle for reuse",
			},
		),
		poolWorkers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "erizo_agent_pool_workers",
				Help: "Current number of pooled workers by state",
			},
			[]string{"state"},
		),
		reportedLoad: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "erizo_agent_reported_load",
				Help: "Last load value reported to the cluster",
			},
		),
		memberState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "erizo_agent_member_state",
				Help: "Cluster membership state, 1 for the current state",
			},
			[]string{"state"},
		),
	}
}

func (p *PrometheusMetrics) ObserveWorkerLaunch(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.workerLaunches.WithLabelValues(status).Inc()
}

func (p *PrometheusMetrics) ObserveWorkerExit(kind domain.ExitKind) {
	p.workerExits.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusMetrics) ObserveAssign(outcome domain.AssignOutcome) {
	p.assignments.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusMetrics) ObserveReuseEviction() {
	p.reuseEvictions.Inc()
}

func (p *PrometheusMetrics) SetPoolWorkers(idle, active int) {
	p.poolWorkers.WithLabelValues(string(domain.WorkerStateIdle)).Set(float64(idle))
	p.poolWorkers.WithLabelValues(string(domain.WorkerStateActive)).Set(float64(active))
}

func (p *PrometheusMetrics) SetReportedLoad(load float64) {
	p.reportedLoad.Set(load)
}

func (p *PrometheusMetrics) SetMemberState(state domain.MemberState) {
	for _, candidate := range memberStates {
		value := 0.0
		if candidate == state {
			value = 1
		}
		p.memberState.WithLabelValues(string(candidate)).Set(value)
	}
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)

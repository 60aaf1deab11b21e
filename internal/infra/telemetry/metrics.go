package telemetry

import "erizoagent/internal/domain"

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveWorkerLaunch(_ error) {}

func (n *NoopMetrics) ObserveWorkerExit(_ domain.ExitKind) {}

func (n *NoopMetrics) ObserveAssign(_ domain.AssignOutcome) {}

func (n *NoopMetrics) ObserveReuseEviction() {}

func (n *NoopMetrics) SetPoolWorkers(_, _ int) {}

func (n *NoopMetrics) SetReportedLoad(_ float64) {}

func (n *NoopMetrics) SetMemberState(_ domain.MemberState) {}

var _ domain.Metrics = (*NoopMetrics)(nil)

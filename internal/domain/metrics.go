package domain

// Metrics records operational metrics for the worker pool and cluster reporting.
type Metrics interface {
	ObserveWorkerLaunch(err error)
	ObserveWorkerExit(kind ExitKind)
	ObserveAssign(outcome AssignOutcome)
	ObserveReuseEviction()
	SetPoolWorkers(idle, active int)
	SetReportedLoad(load float64)
	SetMemberState(state MemberState)
}

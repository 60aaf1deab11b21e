package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldWorkerID   = "workerID"
	FieldRoomID     = "roomID"
	FieldPurpose    = "purpose"
	FieldState      = "state"
	FieldClusterID  = "clusterID"
	FieldDurationMs = "duration_ms"
	FieldLogSource  = "log_source"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
)

const (
	EventWorkerLaunch   = "worker_launch"
	EventLaunchFailure  = "launch_failure"
	EventWorkerExit     = "worker_exit"
	EventWorkerCrash    = "worker_crash"
	EventAssignSticky   = "assign_sticky"
	EventAssignFresh    = "assign_fresh"
	EventPoolExhausted  = "pool_exhausted"
	EventReuseEviction  = "reuse_eviction"
	EventRelease        = "release"
	EventWorkerEvicted  = "worker_evicted"
	EventRoomVacated    = "room_vacated"
	EventWorkerShutdown = "worker_shutdown"
	EventOrphanReaped   = "orphan_reaped"
	EventJoinAttempt    = "join_attempt"
	EventJoinSuccess    = "join_success"
	EventJoinFailure    = "join_failure"
	EventMemberLoss     = "member_loss"
	EventMemberRecovery = "member_recovery"
	EventMemberQuit     = "member_quit"
	EventReportLoad     = "report_load"
	EventSamplerFailure = "sampler_failure"
)

const (
	LogSourceCore   = "core"
	LogSourceWorker = "worker"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func WorkerIDField(workerID string) zap.Field {
	return zap.String(FieldWorkerID, workerID)
}

func RoomIDField(roomID string) zap.Field {
	return zap.String(FieldRoomID, roomID)
}

func PurposeField(purpose string) zap.Field {
	return zap.String(FieldPurpose, purpose)
}

func StateField(state string) zap.Field {
	return zap.String(FieldState, state)
}

func ClusterIDField(id string) zap.Field {
	return zap.String(FieldClusterID, id)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}

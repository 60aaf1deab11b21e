package domain

// WorkerState is the pool partition a worker belongs to.
type WorkerState string

const (
	WorkerStateIdle   WorkerState = "idle"
	WorkerStateActive WorkerState = "active"
)

// ExitKind classifies why a worker left the pool.
type ExitKind string

const (
	ExitKindCrash    ExitKind = "crash"
	ExitKindEvicted  ExitKind = "evicted"
	ExitKindShutdown ExitKind = "shutdown"
)

// AssignOutcome classifies the result of a room assignment.
type AssignOutcome string

const (
	AssignOutcomeSticky    AssignOutcome = "sticky"
	AssignOutcomeFresh     AssignOutcome = "fresh"
	AssignOutcomeExhausted AssignOutcome = "exhausted"
)

// WorkerInfo is a read-only view of one pooled worker.
type WorkerInfo struct {
	ID    string      `json:"id"`
	PID   int         `json:"pid"`
	State WorkerState `json:"state"`
	Rooms []string    `json:"rooms"`
}

// PoolSnapshot captures pool membership in FIFO order for each partition.
type PoolSnapshot struct {
	Idle   []WorkerInfo `json:"idle"`
	Active []WorkerInfo `json:"active"`
	Reuse  bool         `json:"reuse"`
	Max    int          `json:"maxProcesses"`
	Prerun int          `json:"prerunProcesses"`
	Closed bool         `json:"closed"`
}

// WorkerHandle is the agent's exclusive handle on one spawned worker process.
type WorkerHandle interface {
	PID() int
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// ExitCode is valid after Done is closed.
	ExitCode() int
	// Kill asks the worker's process group to terminate without waiting for it.
	Kill() error
}

// WorkerLauncher spawns worker processes.
type WorkerLauncher interface {
	Launch(workerID string) (WorkerHandle, error)
}

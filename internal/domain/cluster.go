package domain

import "context"

// MemberState is the agent's view of its own cluster membership.
type MemberState string

const (
	MemberStateIdle      MemberState = "idle"
	MemberStateJoining   MemberState = "joining"
	MemberStateInService MemberState = "in_service"
	MemberStateLost      MemberState = "lost"
	MemberStateQuit      MemberState = "quit"
)

// NodeInfo describes this agent to the coordinator when joining.
type NodeInfo struct {
	IP         string  `json:"ip"`
	RPCAddress string  `json:"rpcAddress"`
	Purpose    Purpose `json:"purpose"`
	State      int     `json:"state"`
	MaxLoad    float64 `json:"maxLoad"`
}

// JoinRequest registers an agent with the coordinator. PreviousID and Tasks
// are set when recovering from a lost membership.
type JoinRequest struct {
	ClusterName string   `json:"clusterName"`
	Purpose     Purpose  `json:"purpose"`
	PreviousID  string   `json:"previousId,omitempty"`
	Info        NodeInfo `json:"info"`
	Tasks       []string `json:"tasks,omitempty"`
}

// Coordinator is the cluster coordinator surface the agent consumes.
type Coordinator interface {
	Join(ctx context.Context, req JoinRequest) (string, error)
	// KeepAlive returns false when the coordinator no longer knows id.
	KeepAlive(ctx context.Context, id string) (bool, error)
	ReportLoad(ctx context.Context, id string, load float64) error
	AddTask(ctx context.Context, id, task string) error
	RemoveTask(ctx context.Context, id, task string) error
	Quit(ctx context.Context, id string) error
}

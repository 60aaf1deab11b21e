package rpc

type GetErizoJSRequest struct {
	RoomID string `json:"roomId"`
}

// GetErizoJSReply carries an empty WorkerID when no worker could be assigned.
type GetErizoJSReply struct {
	WorkerID string `json:"workerId"`
}

type RecycleErizoJSRequest struct {
	WorkerID string `json:"workerId"`
	RoomID   string `json:"roomId"`
}

type RecycleErizoJSReply struct {
	Status string `json:"status"`
}

type JoinReply struct {
	ID string `json:"id"`
}

type MemberRequest struct {
	ID string `json:"id"`
}

type KeepAliveReply struct {
	Known bool `json:"known"`
}

type ReportLoadRequest struct {
	ID   string  `json:"id"`
	Load float64 `json:"load"`
}

type TaskRequest struct {
	ID   string `json:"id"`
	Task string `json:"task"`
}

type Empty struct{}

package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const AgentServiceName = "erizo.agent.v1.ErizoAgent"

// AgentHandler serves the operations the coordinator invokes on an agent.
// Both always produce a reply; failures surface as an empty worker id.
type AgentHandler interface {
	GetErizoJS(ctx context.Context, roomID string) string
	RecycleErizoJS(ctx context.Context, workerID, roomID string) string
}

var agentServiceDesc = grpc.ServiceDesc{
	ServiceName: AgentServiceName,
	HandlerType: (*AgentHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetErizoJS", Handler: getErizoJSHandler},
		{MethodName: "RecycleErizoJS", Handler: recycleErizoJSHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "erizo/agent/v1/agent",
}

// RegisterAgentServer exposes handler on s.
func RegisterAgentServer(s grpc.ServiceRegistrar, handler AgentHandler) {
	s.RegisterService(&agentServiceDesc, handler)
}

func getErizoJSHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetErizoJSRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		r := req.(*GetErizoJSRequest)
		return &GetErizoJSReply{WorkerID: srv.(AgentHandler).GetErizoJS(ctx, r.RoomID)}, nil
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AgentServiceName + "/GetErizoJS"}
	return interceptor(ctx, in, info, handler)
}

func recycleErizoJSHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RecycleErizoJSRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		r := req.(*RecycleErizoJSRequest)
		return &RecycleErizoJSReply{Status: srv.(AgentHandler).RecycleErizoJS(ctx, r.WorkerID, r.RoomID)}, nil
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AgentServiceName + "/RecycleErizoJS"}
	return interceptor(ctx, in, info, handler)
}

// AgentClient calls an agent the way the coordinator does.
type AgentClient struct {
	cc grpc.ClientConnInterface
}

func NewAgentClient(cc grpc.ClientConnInterface) *AgentClient {
	return &AgentClient{cc: cc}
}

func (c *AgentClient) GetErizoJS(ctx context.Context, roomID string) (string, error) {
	out := new(GetErizoJSReply)
	err := c.cc.Invoke(ctx, "/"+AgentServiceName+"/GetErizoJS", &GetErizoJSRequest{RoomID: roomID}, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return "", errorFromStatus("rpc.getErizoJS", err)
	}
	return out.WorkerID, nil
}

func (c *AgentClient) RecycleErizoJS(ctx context.Context, workerID, roomID string) (string, error) {
	out := new(RecycleErizoJSReply)
	in := &RecycleErizoJSRequest{WorkerID: workerID, RoomID: roomID}
	err := c.cc.Invoke(ctx, "/"+AgentServiceName+"/RecycleErizoJS", in, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return "", errorFromStatus("rpc.recycleErizoJS", err)
	}
	return out.Status, nil
}

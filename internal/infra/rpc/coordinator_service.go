package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"erizoagent/internal/domain"
)

const CoordinatorServiceName = "erizo.cluster.v1.Coordinator"

type coordinatorMethod struct {
	name   string
	newReq func() any
	call   func(ctx context.Context, c domain.Coordinator, req any) (any, error)
}

var coordinatorMethods = []coordinatorMethod{
	{
		name:   "Join",
		newReq: func() any { return new(domain.JoinRequest) },
		call: func(ctx context.Context, c domain.Coordinator, req any) (any, error) {
			id, err := c.Join(ctx, *req.(*domain.JoinRequest))
			return &JoinReply{ID: id}, err
		},
	},
	{
		name:   "KeepAlive",
		newReq: func() any { return new(MemberRequest) },
		call: func(ctx context.Context, c domain.Coordinator, req any) (any, error) {
			known, err := c.KeepAlive(ctx, req.(*MemberRequest).ID)
			return &KeepAliveReply{Known: known}, err
		},
	},
	{
		name:   "ReportLoad",
		newReq: func() any { return new(ReportLoadRequest) },
		call: func(ctx context.Context, c domain.Coordinator, req any) (any, error) {
			r := req.(*ReportLoadRequest)
			return &Empty{}, c.ReportLoad(ctx, r.ID, r.Load)
		},
	},
	{
		name:   "AddTask",
		newReq: func() any { return new(TaskRequest) },
		call: func(ctx context.Context, c domain.Coordinator, req any) (any, error) {
			r := req.(*TaskRequest)
			return &Empty{}, c.AddTask(ctx, r.ID, r.Task)
		},
	},
	{
		name:   "RemoveTask",
		newReq: func() any { return new(TaskRequest) },
		call: func(ctx context.Context, c domain.Coordinator, req any) (any, error) {
			r := req.(*TaskRequest)
			return &Empty{}, c.RemoveTask(ctx, r.ID, r.Task)
		},
	},
	{
		name:   "Quit",
		newReq: func() any { return new(MemberRequest) },
		call: func(ctx context.Context, c domain.Coordinator, req any) (any, error) {
			return &Empty{}, c.Quit(ctx, req.(*MemberRequest).ID)
		},
	},
}

func coordinatorServiceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: CoordinatorServiceName,
		HandlerType: (*domain.Coordinator)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "erizo/cluster/v1/coordinator",
	}
	for _, method := range coordinatorMethods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: method.name,
			Handler:    coordinatorHandler(method),
		})
	}
	return desc
}

func coordinatorHandler(method coordinatorMethod) grpc.MethodHandler {
	fullMethod := "/" + CoordinatorServiceName + "/" + method.name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := method.newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			out, err := method.call(ctx, srv.(domain.Coordinator), req)
			if err != nil {
				return nil, statusFromError(fullMethod, err)
			}
			return out, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
	}
}

// RegisterCoordinatorServer exposes a coordinator implementation on s. The
// agent never serves this; it exists for coordinators and tests.
func RegisterCoordinatorServer(s grpc.ServiceRegistrar, coordinator domain.Coordinator) {
	s.RegisterService(coordinatorServiceDesc(), coordinator)
}

// CoordinatorClient is the agent-side stub of the cluster coordinator.
type CoordinatorClient struct {
	cc          grpc.ClientConnInterface
	callTimeout time.Duration
}

func NewCoordinatorClient(cc grpc.ClientConnInterface, callTimeout time.Duration) *CoordinatorClient {
	return &CoordinatorClient{cc: cc, callTimeout: callTimeout}
}

func (c *CoordinatorClient) invoke(ctx context.Context, method string, in, out any) error {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	err := c.cc.Invoke(ctx, "/"+CoordinatorServiceName+"/"+method, in, out, grpc.CallContentSubtype(codecName))
	return errorFromStatus("coordinator."+method, err)
}

func (c *CoordinatorClient) Join(ctx context.Context, req domain.JoinRequest) (string, error) {
	out := new(JoinReply)
	if err := c.invoke(ctx, "Join", &req, out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *CoordinatorClient) KeepAlive(ctx context.Context, id string) (bool, error) {
	out := new(KeepAliveReply)
	if err := c.invoke(ctx, "KeepAlive", &MemberRequest{ID: id}, out); err != nil {
		return false, err
	}
	return out.Known, nil
}

func (c *CoordinatorClient) ReportLoad(ctx context.Context, id string, load float64) error {
	return c.invoke(ctx, "ReportLoad", &ReportLoadRequest{ID: id, Load: load}, new(Empty))
}

func (c *CoordinatorClient) AddTask(ctx context.Context, id, task string) error {
	return c.invoke(ctx, "AddTask", &TaskRequest{ID: id, Task: task}, new(Empty))
}

func (c *CoordinatorClient) RemoveTask(ctx context.Context, id, task string) error {
	return c.invoke(ctx, "RemoveTask", &TaskRequest{ID: id, Task: task}, new(Empty))
}

func (c *CoordinatorClient) Quit(ctx context.Context, id string) error {
	return c.invoke(ctx, "Quit", &MemberRequest{ID: id}, new(Empty))
}

var _ domain.Coordinator = (*CoordinatorClient)(nil)

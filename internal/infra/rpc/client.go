package rpc

import (
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"erizoagent/internal/domain"
)

// Dial opens a lazy connection to the coordinator. Calls block until the
// transport is ready or their context ends.
func Dial(cfg domain.RPCConfig, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	target, err := dialTarget(cfg.CoordinatorAddress)
	if err != nil {
		return nil, err
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(requestIDUnaryClientInterceptor()),
		grpc.WithDefaultCallOptions(grpc.WaitForReady(true)),
	}
	if cfg.MaxMessageSize > 0 {
		opts = append(opts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
			grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
		))
	}
	if cfg.KeepaliveTimeSeconds > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                time.Duration(cfg.KeepaliveTimeSeconds) * time.Second,
			Timeout:             time.Duration(cfg.KeepaliveTimeoutSeconds) * time.Second,
			PermitWithoutStream: true,
		}))
	}
	opts = append(opts, extra...)

	return grpc.NewClient(target, opts...)
}

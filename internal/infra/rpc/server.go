package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"erizoagent/internal/domain"
)

// Server exposes the agent operations over grpc.
type Server struct {
	cfg     domain.RPCConfig
	handler AgentHandler
	logger  *zap.Logger

	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	network    string
	address    string
}

func NewServer(handler AgentHandler, cfg domain.RPCConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger.Named("rpc"),
		health:  health.NewServer(),
	}
	s.grpcServer = grpc.NewServer(s.serverOptions()...)
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	if handler != nil {
		RegisterAgentServer(s.grpcServer, handler)
	}
	return s
}

func (s *Server) serverOptions() []grpc.ServerOption {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			requestContextUnaryServerInterceptor(),
			loggingUnaryServerInterceptor(s.logger),
		),
	}
	if s.cfg.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(s.cfg.MaxMessageSize),
			grpc.MaxSendMsgSize(s.cfg.MaxMessageSize),
		)
	}
	if s.cfg.KeepaliveTimeSeconds > 0 {
		opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    time.Duration(s.cfg.KeepaliveTimeSeconds) * time.Second,
			Timeout: time.Duration(s.cfg.KeepaliveTimeoutSeconds) * time.Second,
		}))
	}
	return opts
}

// Listen binds the configured listen address.
func (s *Server) Listen() error {
	if s.handler == nil {
		return errors.New("agent handler is nil")
	}
	network, addr, err := splitAddress(s.cfg.ListenAddress)
	if err != nil {
		return err
	}
	if network == "unix" {
		if err := os.Remove(addr); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove rpc socket: %w", err)
		}
	}
	lis, err := net.Listen(network, addr)
	if err != nil {
		return fmt.Errorf("listen rpc: %w", err)
	}
	s.network = network
	s.address = addr
	s.listener = lis
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts calls on lis until ctx ends. A nil lis uses the listener
// bound by Listen.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	if lis == nil {
		lis = s.listener
	}
	if lis == nil {
		return errors.New("rpc server has no listener")
	}
	s.listener = lis
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(AgentServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpcServer.Serve(lis)
	}()
	s.logger.Info("rpc server started", zap.String("address", lis.Addr().String()))

	select {
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case err := <-errCh:
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(stopCtx)
		return err
	}
}

func (s *Server) Stop(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
		return ctx.Err()
	}

	if s.network == "unix" && s.address != "" {
		_ = os.Remove(s.address)
	}
	s.logger.Info("rpc server stopped")
	return nil
}

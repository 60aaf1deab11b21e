package rpc

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"erizoagent/internal/infra/telemetry"
)

// requestContextUnaryServerInterceptor attaches request id and trace ids to
// the handler context.
func requestContextUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, _ = telemetry.EnsureRequestMeta(ctx, requestIDFromMetadata(ctx))
		return handler(ctx, req)
	}
}

func loggingUnaryServerInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			telemetry.DurationField(time.Since(started)),
		}
		reqLogger := telemetry.LoggerWithRequest(ctx, logger)
		if err != nil {
			reqLogger.Warn("rpc failed", append(fields, zap.Error(err))...)
		} else {
			reqLogger.Debug("rpc served", fields...)
		}
		return resp, err
	}
}

// requestIDUnaryClientInterceptor forwards the caller's request id.
func requestIDUnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(injectRequestID(ctx), method, req, reply, cc, opts...)
	}
}

func requestIDFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get(telemetry.RequestIDHeader) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func injectRequestID(ctx context.Context) context.Context {
	meta, ok := telemetry.RequestMetaFromContext(ctx)
	if !ok || meta.RequestID == "" {
		return ctx
	}
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		if len(md.Get(telemetry.RequestIDHeader)) > 0 {
			return ctx
		}
		md = md.Copy()
	} else {
		md = metadata.New(nil)
	}
	md.Set(telemetry.RequestIDHeader, meta.RequestID)
	return metadata.NewOutgoingContext(ctx, md)
}

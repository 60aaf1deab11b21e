package rpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"erizoagent/internal/domain"
)

// statusFromError converts a handler error into a grpc status.
func statusFromError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: deadline exceeded", op)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: canceled", op)
	}
	code, ok := domain.CodeFrom(err)
	if !ok {
		code = domain.CodeInternal
	}
	return status.Error(grpcCodeFromDomain(code), fmt.Sprintf("%s: %v", op, err))
}

// errorFromStatus converts a client-side grpc error back into a domain error.
func errorFromStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return domain.Wrap(domain.CodeInternal, op, err)
	}
	return domain.E(domainCodeFromGRPC(st.Code()), op, st.Message(), err)
}

func grpcCodeFromDomain(code domain.ErrorCode) codes.Code {
	switch code {
	case domain.CodeInvalidArgument:
		return codes.InvalidArgument
	case domain.CodeNotFound:
		return codes.NotFound
	case domain.CodeUnavailable:
		return codes.Unavailable
	case domain.CodeFailedPrecond:
		return codes.FailedPrecondition
	case domain.CodeCanceled:
		return codes.Canceled
	default:
		return codes.Internal
	}
}

func domainCodeFromGRPC(code codes.Code) domain.ErrorCode {
	switch code {
	case codes.InvalidArgument:
		return domain.CodeInvalidArgument
	case codes.NotFound:
		return domain.CodeNotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		return domain.CodeUnavailable
	case codes.FailedPrecondition:
		return domain.CodeFailedPrecond
	case codes.Canceled:
		return domain.CodeCanceled
	default:
		return domain.CodeInternal
	}
}

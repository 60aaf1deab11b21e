package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeUnavailable     ErrorCode = "UNAVAILABLE"
	CodeFailedPrecond   ErrorCode = "FAILED_PRECONDITION"
	CodeInternal        ErrorCode = "INTERNAL"
	CodeCanceled        ErrorCode = "CANCELED"
)

var (
	// ErrInvalidConfig marks a malformed or inconsistent configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrPoolExhausted indicates no idle worker was available for a room.
	ErrPoolExhausted = errors.New("no idle worker available")
	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = errors.New("worker pool is shut down")
	// ErrUnknownWorker indicates a worker id that is not tracked by the pool.
	ErrUnknownWorker = errors.New("unknown worker")
	// ErrJoinFailed indicates cluster join retries were exhausted.
	ErrJoinFailed = errors.New("cluster join failed")
	// ErrNotJoined indicates a cluster call was made before a successful join.
	ErrNotJoined = errors.New("agent has not joined the cluster")
	// ErrSamplingFailed indicates a load sampler could not produce a value.
	ErrSamplingFailed = errors.New("load sampling failed")
	// ErrExecutableNotFound indicates the worker command could not be found.
	ErrExecutableNotFound = errors.New("executable not found")
	// ErrPermissionDenied indicates the worker command could not be executed.
	ErrPermissionDenied = errors.New("permission denied")
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

// Wrap attaches an operation and code to err. An existing *Error keeps its
// code; it only gains the operation if it had none.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:    existing.Code,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
		}
	}
	if inferred, ok := CodeFrom(err); ok {
		code = inferred
	}
	return E(code, op, "", err)
}

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrInvalidConfig):
		return CodeInvalidArgument, true
	case errors.Is(err, ErrUnknownWorker):
		return CodeNotFound, true
	case errors.Is(err, ErrPoolExhausted), errors.Is(err, ErrJoinFailed), errors.Is(err, ErrNotJoined):
		return CodeUnavailable, true
	case errors.Is(err, ErrPoolClosed), errors.Is(err, ErrExecutableNotFound), errors.Is(err, ErrPermissionDenied):
		return CodeFailedPrecond, true
	case errors.Is(err, ErrSamplingFailed):
		return CodeInternal, true
	default:
		return "", false
	}
}

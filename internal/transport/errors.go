package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ErrorType is the stable classification of a send failure, used as a
// metric and span attribute.
type ErrorType string

const (
	ErrorTypeCancelled          ErrorType = "cancelled"
	ErrorTypeTimeout            ErrorType = "timeout"
	ErrorTypeRefused            ErrorType = "connection_refused"
	ErrorTypeNetworkUnreachable ErrorType = "network_unreachable"
	ErrorTypeHostUnreachable    ErrorType = "host_unreachable"
	ErrorTypePermission         ErrorType = "permission_denied"
	ErrorTypeMessageSize        ErrorType = "message_too_large"
	ErrorTypeShortWrite         ErrorType = "short_write"
	ErrorTypeClosed             ErrorType = "closed"
	ErrorTypeUnknown            ErrorType = "unknown"
)

// ErrShortWrite is returned when a datagram was only partially written.
var ErrShortWrite = errors.New("short write")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("sender closed")

// SendError describes a failed datagram send.
type SendError struct {
	Type        ErrorType
	Destination string
	Message     string
	Cause       error
}

func (e *SendError) Error() string {
	if e.Destination == "" {
		return e.Message
	}
	return fmt.Sprintf("send to %s: %s", e.Destination, e.Message)
}

func (e *SendError) Unwrap() error {
	return e.Cause
}

// ErrorTypeOf returns the classification of err, or ErrorTypeUnknown when err
// is not a *SendError.
func ErrorTypeOf(err error) ErrorType {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Type
	}
	return ErrorTypeUnknown
}

// MapError classifies a socket write error.
func MapError(err error, destination string) *SendError {
	if err == nil {
		return nil
	}

	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr
	}

	mapped := &SendError{
		Type:        ErrorTypeUnknown,
		Destination: destination,
		Message:     err.Error(),
		Cause:       err,
	}

	switch {
	case errors.Is(err, context.Canceled):
		mapped.Type = ErrorTypeCancelled
		mapped.Message = "operation cancelled"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		mapped.Type = ErrorTypeTimeout
		mapped.Message = "write timeout exceeded"
	case errors.Is(err, ErrShortWrite):
		mapped.Type = ErrorTypeShortWrite
	case errors.Is(err, net.ErrClosed), errors.Is(err, ErrClosed):
		mapped.Type = ErrorTypeClosed
		mapped.Message = "socket closed"
	default:
		var errno syscall.Errno
		if errors.As(err, &errno) {
			mapSyscallError(errno, mapped)
		}
	}
	return mapped
}

func mapSyscallError(errno syscall.Errno, mapped *SendError) {
	switch errno {
	case syscall.ECONNREFUSED:
		mapped.Type = ErrorTypeRefused
		mapped.Message = "connection refused"
	case syscall.ENETUNREACH:
		mapped.Type = ErrorTypeNetworkUnreachable
		mapped.Message = "network is unreachable"
	case syscall.EHOSTUNREACH:
		mapped.Type = ErrorTypeHostUnreachable
		mapped.Message = "host is unreachable"
	case syscall.EACCES, syscall.EPERM:
		mapped.Type = ErrorTypePermission
		mapped.Message = "permission denied"
	case syscall.EMSGSIZE:
		mapped.Type = ErrorTypeMessageSize
		mapped.Message = "message too long"
	}
}

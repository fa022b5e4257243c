// Package apperr classifies the failures a payment session can run into.
package apperr

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/model"
)

var (
	ErrNotPresenting   = errors.New("session is not presenting")
	ErrBusy            = errors.New("a request is already in flight")
	ErrTerminated      = errors.New("session already terminated")
	ErrStopped         = errors.New("session stopped")
	ErrUnknownOption   = errors.New("unknown payment option")
	ErrNoRetryPending  = errors.New("no request to retry")
	ErrNoRedirect      = errors.New("no redirect pending")
	ErrInvalidRedirect = errors.New("invalid redirect result")
)

// ConnectionError is a network, timeout or TLS fault, or a response the
// client could not read. The same request may be retried as is.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connection error: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response carrying a decoded error body.
type ServerError struct {
	Op         string
	StatusCode int
	Info       *model.ErrorInfo
}

func (e *ServerError) Error() string {
	if e.Info != nil {
		return fmt.Sprintf("%s: server error %d: %s", e.Op, e.StatusCode, e.Info.ResultInfo)
	}
	return fmt.Sprintf("%s: server error %d", e.Op, e.StatusCode)
}

// FieldError is one failed input field.
type FieldError struct {
	Field   string
	Code    string
	Message string
}

// ValidationError blocks a submission locally. It never reaches the network.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation failed: %s %s", e.Fields[0].Field, e.Fields[0].Code)
	}
	return fmt.Sprintf("validation failed for %d fields", len(e.Fields))
}

// UnsupportedOperationError is raised for operation types the client does not implement.
type UnsupportedOperationError struct {
	OperationType string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("operation type %q is not supported", e.OperationType)
}

// IsConnection reports whether err is a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// AsServer returns the ServerError wrapped in err, if any.
func AsServer(err error) (*ServerError, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Kind returns a short, stable label for logs and metrics.
func Kind(err error) string {
	var (
		ce *ConnectionError
		se *ServerError
		ve *ValidationError
		ue *UnsupportedOperationError
	)
	switch {
	case err == nil:
		return ""

	case errors.As(err, &ve):
		return "validation"

	case errors.As(err, &ue):
		return "unsupported_operation"

	case errors.As(err, &se):
		return "server"

	case errors.As(err, &ce):
		return "connection"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport marks failures to reach the backend at all (dial, TLS, reset,
// timeout). It is distinct from a backend that answered with an error.
var ErrTransport = errors.New("transport error")

// ErrorKind classifies errors returned by the backend.
type ErrorKind int

const (
	// KindSubmission is a rejected run, report or other request.
	KindSubmission ErrorKind = iota
	// KindAuth is a failed login, register or an expired token.
	KindAuth
	// KindNotFound is an unknown task, pipeline, project or session.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not found"
	default:
		return "submission"
	}
}

// APIError is an error reported by the backend, either as a non-2xx response
// or as an explicit error field in a 2xx body.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindSubmission
	}
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindAuth
}

// IsNotFound reports whether err refers to a missing resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindNotFound
}

// IsTransport reports whether err is a connectivity failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

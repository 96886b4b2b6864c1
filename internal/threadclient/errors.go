package threadclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAuth       = errors.New("threadclient: unauthorized")
	ErrValidation = errors.New("threadclient: invalid request")
	ErrNotFound   = errors.New("threadclient: not found")
	ErrNetwork    = errors.New("threadclient: network failure")
	ErrStore      = errors.New("threadclient: store failure")
)

// APIError is a non-2xx response. errors.Is matches it against the sentinel
// for its status class.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("threadclient: status %d", e.Status)
	}
	return fmt.Sprintf("threadclient: status %d code %d: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrAuth
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusBadRequest:
		return ErrValidation
	default:
		return ErrStore
	}
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential = errors.New("missing API key")
	ErrEmptyInput        = errors.New("input is empty")
	ErrBusy              = errors.New("a request is already in flight")
	ErrInvalidTurn       = errors.New("invalid turn")
	ErrDuplicateTurn     = errors.New("duplicate turn id")
	ErrKeyNotFound       = errors.New("key not found")
	ErrSecretNotFound    = errors.New("secret not found")
	ErrMalformedResponse = errors.New("malformed completion response")
)

// RemoteError is returned when the completion endpoint answers outside the
// 2xx range.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// NetworkError covers failures below HTTP: DNS, refused or reset
// connections, truncated bodies.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	return e.Message
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

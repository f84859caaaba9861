// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is matched by errors.Is when the API responds with HTTP 401.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound is matched by errors.Is when the API responds with HTTP 404.
var ErrNotFound = errors.New("not found")

// NetworkError means the request never produced an HTTP response.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ClientError is a 4xx response: a malformed request or a missing resource.
type ClientError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("changes API error: %s (%s)", e.Status, e.URL)
}

func (e *ClientError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// ServerError is a 5xx response from the backend.
type ServerError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("changes API error: %s (%s)", e.Status, e.URL)
}

// ContractViolation is a programming error in fetch orchestration: a state
// resolved twice, a resolve for a key that was never dispatched, or a stage
// dispatched before its prerequisites loaded.
type ContractViolation struct {
	Stage  string
	Key    string
	Reason string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("contract violation in %s[%s]: %s", e.Stage, e.Key, e.Reason)
}

// Describe returns a display string for err, preferring the raw response
// body the backend sent over the wrapped message.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var ce *ClientError
	if errors.As(err, &ce) && ce.Body != "" {
		return fmt.Sprintf("%s: %s", ce.Status, ce.Body)
	}
	var se *ServerError
	if errors.As(err, &se) && se.Body != "" {
		return fmt.Sprintf("%s: %s", se.Status, se.Body)
	}
	return err.Error()
}

// ErrorKind names the taxonomy bucket of err, for logs and metrics labels.
func ErrorKind(err error) string {
	var (
		ne *NetworkError
		ce *ClientError
		se *ServerError
		cv *ContractViolation
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &cv):
		return "contract_violation"
	case errors.As(err, &ne):
		return "network"
	case errors.As(err, &ce):
		return "client"
	case errors.As(err, &se):
		return "server"
	default:
		return "other"
	}
}

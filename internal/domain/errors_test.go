// internal/domain/errors_test.go
package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/waabox/changesdeck/internal/domain"
)

func TestClientError_401CanBeDetectedWithErrorsIs(t *testing.T) {
	wrapped := fmt.Errorf("loading build: %w", &domain.ClientError{StatusCode: 401, Status: "401 Unauthorized"})
	if !errors.Is(wrapped, domain.ErrUnauthorized) {
		t.Error("expected errors.Is to detect ErrUnauthorized in wrapped error")
	}
	if errors.Is(wrapped, domain.ErrNotFound) {
		t.Error("401 must not match ErrNotFound")
	}
}

func TestClientError_404CanBeDetectedWithErrorsIs(t *testing.T) {
	err := &domain.ClientError{StatusCode: 404, Status: "404 Not Found"}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Error("expected errors.Is to detect ErrNotFound")
	}
}

func TestDescribe_PrefersResponseBody(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &domain.ServerError{Status: "500 Internal Server Error", Body: `{"error":"boom"}`})
	got := domain.Describe(err)
	if got != `500 Internal Server Error: {"error":"boom"}` {
		t.Errorf("unexpected description: %q", got)
	}
}

func TestErrorKind(t *testing.T) {
	cases := map[string]error{
		"none":               nil,
		"network":            &domain.NetworkError{URL: "http://x", Err: errors.New("refused")},
		"client":             &domain.ClientError{StatusCode: 400},
		"server":             &domain.ServerError{StatusCode: 502},
		"contract_violation": &domain.ContractViolation{Stage: "builds", Key: "1", Reason: "resolved twice"},
		"other":              errors.New("plain"),
	}
	for want, err := range cases {
		if got := domain.ErrorKind(err); got != want {
			t.Errorf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}

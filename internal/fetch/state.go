// Package fetch tracks the lifecycle of backend calls made while a page is
// open and guarantees each key is dispatched at most once per page.
package fetch

import "context"

// Phase is the lifecycle position of one fetch.
type Phase int

const (
	NotRequested Phase = iota
	Loading
	Loaded
	Errored
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Errored:
		return "errored"
	default:
		return "not_requested"
	}
}

// State is one fetch's lifecycle and result. It is created Loading and moves
// exactly once to Loaded or Errored; after that it never changes.
type State[T any] struct {
	Phase   Phase
	Payload T
	Err     error
}

// IsLoaded reports whether the fetch completed successfully.
func (s State[T]) IsLoaded() bool { return s.Phase == Loaded }

// IsErrored reports whether the fetch failed.
func (s State[T]) IsErrored() bool { return s.Phase == Errored }

// IsPending reports whether the fetch is in flight.
func (s State[T]) IsPending() bool { return s.Phase == Loading }

// IsRequested reports whether the fetch was ever dispatched.
func (s State[T]) IsRequested() bool { return s.Phase != NotRequested }

// Loader performs one backend call.
type Loader[T any] func(ctx context.Context) (T, error)

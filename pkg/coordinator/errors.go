package coordinator

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	// KindNetwork represents transport-level failures. Retryable by a
	// caller-initiated refetch; never retried by the coordinator.
	KindNetwork ErrorKind = "network"

	// KindServerRejected represents a non-success response from the data
	// source, surfaced verbatim to the caller.
	KindServerRejected ErrorKind = "server_rejected"

	// KindCancelled represents a waiter-initiated cancellation. Silent;
	// not a user-facing error.
	KindCancelled ErrorKind = "cancelled"
)

// FetchError is the error returned by Load for a failed or cancelled fetch.
type FetchError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s error: %s", e.Kind, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ServerRejected wraps a non-success response from the data source.
// Resource adapters return this so the UI can surface the rejection verbatim.
func ServerRejected(message string, err error) *FetchError {
	return &FetchError{Kind: KindServerRejected, Message: message, Err: err}
}

// classify wraps an arbitrary fetchFn error into a FetchError.
// Errors already classified pass through unchanged.
func classify(err error) *FetchError {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindCancelled, Message: "fetch cancelled", Err: err}
	}
	return &FetchError{Kind: KindNetwork, Message: "fetch failed", Err: err}
}

// IsCancelled reports whether err is a waiter- or context-initiated
// cancellation.
func IsCancelled(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr) && fetchErr.Kind == KindCancelled
}

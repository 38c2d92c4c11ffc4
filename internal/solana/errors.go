package solana

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure for the retry policy.
type Kind int

const (
	// KindTransient covers rate limits (429), other non-200 HTTP statuses,
	// connection resets, DNS and timeout failures. Retried with exponential
	// backoff; never terminates the service.
	KindTransient Kind = iota + 1
	// KindProtocol covers JSON-RPC error replies and subscription acks that
	// carry an error, an invalid subscription id, or do not arrive in time.
	KindProtocol
	// KindNotFound means the node has not caught up to the transaction yet.
	KindNotFound
	// KindMalformed covers unparseable response bodies. Not retried.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindProtocol:
		return "protocol"
	case KindNotFound:
		return "not_found"
	case KindMalformed:
		return "malformed"
	}
	return "unknown"
}

// ErrNotFound is reported when getTransaction returns a null result.
var ErrNotFound = errors.New("transaction not found")

// UpstreamError wraps a failed upstream call with its retry classification.
type UpstreamError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ClassifyKind returns the classification of err, or 0 when err carries none.
func ClassifyKind(err error) Kind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return 0
}

// IsRetryable reports whether the caller may retry the failed call.
func IsRetryable(err error) bool {
	switch ClassifyKind(err) {
	case KindTransient, KindProtocol, KindNotFound:
		return true
	}
	return false
}

package solana

import "context"

// LogStream defines the upstream log-subscription interface used by the
// pipeline.
type LogStream interface {
	// Run maintains the subscription until ctx is cancelled, reconnecting
	// with backoff on failure.
	Run(ctx context.Context) error

	// Notifications returns the stream of log notifications. The channel is
	// closed when Run returns.
	Notifications() <-chan LogNotification
}

// LogNotification is one logsNotification message from the upstream node.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}

// ConnState is the log-subscription connection state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateSubscribed
	StateDraining
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDraining:
		return "draining"
	}
	return "unknown"
}

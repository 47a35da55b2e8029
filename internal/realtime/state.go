package realtime

import "errors"

var (
	// ErrNotConnected is returned by Publish while the session is not connected
	ErrNotConnected = errors.New("not connected")
	// ErrReconnectExhausted marks the terminal state after the last reconnect attempt failed
	ErrReconnectExhausted = errors.New("max reconnect attempts exceeded")
)

// State is the connection state of a Client
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// StateChange describes one transition. Err is set when the transition was caused by a
// failure; ErrReconnectExhausted means no further attempts will be made until Connect.
type StateChange struct {
	From State
	To   State
	Err  error
}

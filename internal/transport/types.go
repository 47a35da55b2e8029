package transport

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionClosed is returned by writes on a session that has been torn down
	ErrSessionClosed = errors.New("session closed")
	// ErrHeartbeatTimeout signals that the broker stopped sending heart-beats
	ErrHeartbeatTimeout = errors.New("heart-beat timeout")
	// ErrBrokerError wraps the content of a STOMP ERROR frame
	ErrBrokerError = errors.New("broker error")
)

// Message is one inbound MESSAGE frame
type Message struct {
	Destination    string
	SubscriptionID string
	MessageID      string
	ContentType    string
	Body           []byte
}

// Events receives session-level notifications. OnOpen and OnClose are called from the
// session's reader goroutine, OnMessage from its dispatch worker in delivery order.
// OnClose is not called after an explicit Close.
type Events interface {
	OnOpen(s Session)
	OnMessage(msg Message)
	OnClose(err error)
}

// Session is one authenticated STOMP connection
type Session interface {
	Subscribe(destination, id string) error
	Unsubscribe(id string) error
	Send(destination, contentType string, body []byte) error
	Close() error
}

// Dialer opens sessions. Dial returns once the CONNECT frame has been written;
// the session is usable after Events.OnOpen.
type Dialer interface {
	Dial(ctx context.Context, token string, events Events) (Session, error)
}

// Options configures the WebSocket dialer
type Options struct {
	URL               string
	Host              string
	HeartbeatOutgoing time.Duration
	HeartbeatIncoming time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	QueueSize         int
}

// Default values
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultQueueSize        = 1024

	// incoming heart-beats may be late by this factor before the connection is considered lost
	heartbeatTolerance = 2
)

func (o *Options) applyDefaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
}

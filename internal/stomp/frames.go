package stomp

import (
	"fmt"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

// Version is the STOMP protocol version negotiated with the broker
const Version = "1.2"

// ContentTypeJSON is the content type attached to outbound SEND frames
const ContentTypeJSON = "application/json"

// AuthorizationHeader carries the bearer token on CONNECT
const AuthorizationHeader = "Authorization"

// Subprotocols offered during the WebSocket upgrade
var Subprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// NewConnect creates a CONNECT frame. An empty token produces an anonymous connect.
func NewConnect(host, token string, outgoing, incoming time.Duration) *frame.Frame {
	f := frame.New(frame.CONNECT,
		frame.AcceptVersion, Version,
		frame.Host, host,
		frame.HeartBeat, FormatHeartBeat(outgoing, incoming),
	)
	if token != "" {
		f.Header.Add(AuthorizationHeader, "Bearer "+token)
	}
	return f
}

// NewSubscribe creates a SUBSCRIBE frame with auto acknowledgement
func NewSubscribe(destination, id string) *frame.Frame {
	return frame.New(frame.SUBSCRIBE,
		frame.Id, id,
		frame.Destination, destination,
		frame.Ack, "auto",
	)
}

// NewUnsubscribe creates an UNSUBSCRIBE frame
func NewUnsubscribe(id string) *frame.Frame {
	return frame.New(frame.UNSUBSCRIBE, frame.Id, id)
}

// NewSend creates a SEND frame
func NewSend(destination, contentType string, body []byte) *frame.Frame {
	f := frame.New(frame.SEND,
		frame.Destination, destination,
		frame.ContentType, contentType,
	)
	f.Body = body
	return f
}

// NewDisconnect creates a DISCONNECT frame, optionally requesting a receipt
func NewDisconnect(receipt string) *frame.Frame {
	if receipt == "" {
		return frame.New(frame.DISCONNECT)
	}
	return frame.New(frame.DISCONNECT, frame.Receipt, receipt)
}

// ErrorText extracts a readable description from an ERROR frame
func ErrorText(f *frame.Frame) string {
	msg := f.Header.Get(frame.Message)
	body := string(f.Body)
	switch {
	case msg == "" && body == "":
		return "broker error"
	case body == "":
		return msg
	case msg == "":
		return body
	default:
		return fmt.Sprintf("%s: %s", msg, body)
	}
}

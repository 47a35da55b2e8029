package stomp

import (
	"fmt"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

// FormatHeartBeat renders a heart-beat header value in milliseconds
func FormatHeartBeat(outgoing, incoming time.Duration) string {
	return fmt.Sprintf("%d,%d", outgoing.Milliseconds(), incoming.Milliseconds())
}

// NegotiateHeartBeat computes the effective intervals from the client's offer and the
// heart-beat header of the broker's CONNECTED frame. A zero result disables that direction.
func NegotiateHeartBeat(clientOut, clientIn time.Duration, serverHeader string) (outgoing, incoming time.Duration, err error) {
	if serverHeader == "" {
		return 0, 0, nil
	}
	serverOut, serverIn, err := frame.ParseHeartBeat(serverHeader)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid heart-beat %q: %w", serverHeader, err)
	}
	if clientOut > 0 && serverIn > 0 {
		outgoing = max(clientOut, serverIn)
	}
	if clientIn > 0 && serverOut > 0 {
		incoming = max(clientIn, serverOut)
	}
	return outgoing, incoming, nil
}

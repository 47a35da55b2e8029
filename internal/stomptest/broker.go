// Package stomptest provides an in-process STOMP-over-WebSocket broker for tests.
package stomptest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stompgofer/internal/stomp"
)

// Sent is one SEND frame received by the broker
type Sent struct {
	Destination string
	ContentType string
	Body        []byte
}

// Broker is a minimal broker: it accepts CONNECT, tracks SUBSCRIBE/UNSUBSCRIBE,
// records SEND frames and fans out messages published through Publish.
type Broker struct {
	// HeartBeat is the heart-beat header returned in CONNECTED
	HeartBeat string
	// RejectToken makes CONNECT with this bearer token fail with an ERROR frame
	RejectToken string

	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[*brokerConn]struct{}
	connects []map[string]string
	sent     []Sent
}

// NewBroker starts a broker that is shut down when the test ends
func NewBroker(t testing.TB) *Broker {
	t.Helper()
	b := &Broker{
		HeartBeat: "0,0",
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    stomp.Subprotocols,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[*brokerConn]struct{}),
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.serveHTTP))
	t.Cleanup(b.Close)
	return b
}

// URL returns the ws:// endpoint of the broker
func (b *Broker) URL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http") + "/ws"
}

// Close drops every connection and stops the server
func (b *Broker) Close() {
	b.DropConnections()
	b.server.Close()
}

// DropConnections closes every client connection without a DISCONNECT exchange
func (b *Broker) DropConnections() {
	b.mu.Lock()
	conns := make([]*brokerConn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()
	for _, c := range conns {
		c.conn.Close()
	}
}

// Publish delivers body to every subscription on destination and returns how many received it
func (b *Broker) Publish(destination string, body []byte) int {
	b.mu.Lock()
	conns := make([]*brokerConn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	delivered := 0
	for _, c := range conns {
		for _, id := range c.subscriptionsFor(destination) {
			f := frame.New(frame.MESSAGE,
				frame.Destination, destination,
				frame.Subscription, id,
				frame.MessageId, uuid.NewString(),
				frame.ContentType, stomp.ContentTypeJSON,
			)
			f.Body = body
			if err := c.writeFrame(f); err == nil {
				delivered++
			}
		}
	}
	return delivered
}

// Subscriptions returns the number of live subscriptions on destination across all connections
func (b *Broker) Subscriptions(destination string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for c := range b.conns {
		n += len(c.subscriptionsFor(destination))
	}
	return n
}

// Connections returns the number of open client connections
func (b *Broker) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Connects returns the headers of every CONNECT frame seen so far
func (b *Broker) Connects() []map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]string, len(b.connects))
	copy(out, b.connects)
	return out
}

// Sent returns every SEND frame received so far
func (b *Broker) Sent() []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Sent, len(b.sent))
	copy(out, b.sent)
	return out
}

func (b *Broker) serveHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &brokerConn{broker: b, conn: conn, subs: make(map[string]string)}
	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.conns, c)
		b.mu.Unlock()
		conn.Close()
	}()
	c.readPump()
}

// brokerConn is one client connection on the broker side
type brokerConn struct {
	broker *Broker
	conn   *websocket.Conn

	writeMu sync.Mutex
	mu      sync.Mutex
	subs    map[string]string // subscription id -> destination
}

func (c *brokerConn) readPump() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		frames, err := stomp.Decode(data)
		if err != nil {
			return
		}
		for _, f := range frames {
			if !c.handle(f) {
				return
			}
		}
	}
}

func (c *brokerConn) handle(f *frame.Frame) bool {
	switch f.Command {
	case frame.CONNECT, frame.STOMP:
		headers := make(map[string]string)
		for i := 0; i < f.Header.Len(); i++ {
			k, v := f.Header.GetAt(i)
			headers[k] = v
		}
		c.broker.mu.Lock()
		c.broker.connects = append(c.broker.connects, headers)
		reject := c.broker.RejectToken
		heartBeat := c.broker.HeartBeat
		c.broker.mu.Unlock()

		if reject != "" && headers[stomp.AuthorizationHeader] == "Bearer "+reject {
			errFrame := frame.New(frame.ERROR, frame.Message, "unauthorized")
			errFrame.Body = []byte("invalid token")
			c.writeFrame(errFrame)
			return false
		}
		c.writeFrame(frame.New(frame.CONNECTED,
			frame.Version, stomp.Version,
			frame.HeartBeat, heartBeat,
		))
	case frame.SUBSCRIBE:
		c.mu.Lock()
		c.subs[f.Header.Get(frame.Id)] = f.Header.Get(frame.Destination)
		c.mu.Unlock()
	case frame.UNSUBSCRIBE:
		c.mu.Lock()
		delete(c.subs, f.Header.Get(frame.Id))
		c.mu.Unlock()
	case frame.SEND:
		c.broker.mu.Lock()
		c.broker.sent = append(c.broker.sent, Sent{
			Destination: f.Header.Get(frame.Destination),
			ContentType: f.Header.Get(frame.ContentType),
			Body:        f.Body,
		})
		c.broker.mu.Unlock()
	case frame.DISCONNECT:
		if receipt := f.Header.Get(frame.Receipt); receipt != "" {
			c.writeFrame(frame.New(frame.RECEIPT, frame.ReceiptId, receipt))
		}
		return false
	}
	return true
}

func (c *brokerConn) subscriptionsFor(destination string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id, dest := range c.subs {
		if dest == destination {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *brokerConn) writeFrame(f *frame.Frame) error {
	data, err := stomp.Encode(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

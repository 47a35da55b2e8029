package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"stompgofer/internal/transport"
)

type subCall struct {
	destination string
	id          string
}

type sendCall struct {
	destination string
	contentType string
	body        []byte
}

type fakeSession struct {
	mu           sync.Mutex
	subscribes   []subCall
	unsubscribes []string
	sends        []sendCall
	closed       bool
}

func (s *fakeSession) Subscribe(destination, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribes = append(s.subscribes, subCall{destination: destination, id: id})
	return nil
}

func (s *fakeSession) Unsubscribe(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribes = append(s.unsubscribes, id)
	return nil
}

func (s *fakeSession) Send(destination, contentType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, sendCall{destination: destination, contentType: contentType, body: body})
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) subscribed() []subCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]subCall{}, s.subscribes...)
}

func (s *fakeSession) unsubscribed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.unsubscribes...)
}

func (s *fakeSession) sent() []sendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sendCall{}, s.sends...)
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeDialer records every dial; tests drive the session events by hand
type fakeDialer struct {
	mu       sync.Mutex
	err      error
	tokens   []string
	events   []transport.Events
	sessions []*fakeSession
}

func (d *fakeDialer) Dial(ctx context.Context, token string, events transport.Events) (transport.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens = append(d.tokens, token)
	d.events = append(d.events, events)
	if d.err != nil {
		d.sessions = append(d.sessions, nil)
		return nil, d.err
	}
	s := &fakeSession{}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func (d *fakeDialer) session(i int) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[i]
}

func (d *fakeDialer) eventsAt(i int) transport.Events {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events[i]
}

func (d *fakeDialer) open(i int) {
	d.eventsAt(i).OnOpen(d.session(i))
}

func (d *fakeDialer) deliver(i int, msg transport.Message) {
	d.eventsAt(i).OnMessage(msg)
}

func (d *fakeDialer) drop(i int, err error) {
	d.eventsAt(i).OnClose(err)
}

// manualScheduler captures reconnect timers; fire runs one synchronously
type manualScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	fns     []func()
	stopped []bool
}

type manualTimer struct {
	s *manualScheduler
	i int
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := t.s.stopped[t.i]
	t.s.stopped[t.i] = true
	return !was
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.fns = append(s.fns, f)
	s.stopped = append(s.stopped, false)
	return &manualTimer{s: s, i: len(s.fns) - 1}
}

func (s *manualScheduler) scheduled() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration{}, s.delays...)
}

func (s *manualScheduler) fire(i int) {
	s.mu.Lock()
	f := s.fns[i]
	stopped := s.stopped[i]
	s.mu.Unlock()
	if !stopped {
		f()
	}
}

const testBaseDelay = time.Second

func newTestClient(t *testing.T) (*Client, *fakeDialer, *manualScheduler) {
	t.Helper()
	dialer := &fakeDialer{}
	sched := &manualScheduler{}
	c := New(Config{
		ManagerConfig: ManagerConfig{
			ReconnectBaseDelay:   testBaseDelay,
			MaxReconnectAttempts: 5,
			AfterFunc:            sched.AfterFunc,
		},
	}, dialer, zerolog.Nop())
	return c, dialer, sched
}

// connectAndOpen calls Connect and completes the n-th dial
func connectAndOpen(t *testing.T, c *Client, d *fakeDialer, n int) *fakeSession {
	t.Helper()
	c.Connect("tok")
	require.Eventually(t, func() bool { return d.dials() == n+1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.sessions[n] != nil
	}, time.Second, time.Millisecond)
	d.open(n)
	require.True(t, c.IsConnected())
	return d.session(n)
}

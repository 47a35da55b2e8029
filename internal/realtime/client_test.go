package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stompgofer/internal/message"
	"stompgofer/internal/transport"
)

func chatFrame(t *testing.T, sub subCall, m message.ChatMessage) transport.Message {
	t.Helper()
	body, err := json.Marshal(m)
	require.NoError(t, err)
	return transport.Message{Destination: sub.destination, SubscriptionID: sub.id, Body: body}
}

func TestClient_ConnectIdempotent(t *testing.T) {
	c, d, _ := newTestClient(t)

	c.Connect("tok")
	c.Connect("tok")
	assert.Equal(t, StateConnecting, c.State())
	require.Eventually(t, func() bool { return d.dials() == 1 }, time.Second, time.Millisecond)

	d.open(0)
	c.Connect("tok")
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, d.dials())
	assert.True(t, c.IsConnected())
	assert.Equal(t, []string{"tok"}, d.tokens)
}

func TestClient_SubscribeBeforeConnect(t *testing.T) {
	c, d, _ := newTestClient(t)

	received := make(chan message.ChatMessage, 1)
	c.Subscribe(message.ChatTopic(42), func(in Inbound) {
		received <- in.Payload.(message.ChatMessage)
	})
	assert.Equal(t, 1, c.Registry().PendingCount())

	s := connectAndOpen(t, c, d, 0)
	subs := s.subscribed()
	require.Len(t, subs, 1)
	assert.Equal(t, "/topic/room.42", subs[0].destination)
	assert.Equal(t, 0, c.Registry().PendingCount())

	d.deliver(0, chatFrame(t, subs[0], message.ChatMessage{
		MessageID: 1, ChatroomID: 42, SenderEmail: "bob@x.com", Content: "hi", MessageType: message.MessageTypeText,
	}))

	select {
	case m := <-received:
		assert.Equal(t, "hi", m.Content)
	default:
		t.Fatal("handler not invoked")
	}
}

func TestClient_FanOutInSubscriptionOrder(t *testing.T) {
	c, d, _ := newTestClient(t)
	s := connectAndOpen(t, c, d, 0)

	var order []int
	topic := message.NotificationTopic("alice@x.com")
	c.Subscribe(topic, func(Inbound) { order = append(order, 1) })
	c.Subscribe(topic, func(Inbound) { order = append(order, 2) })

	subs := s.subscribed()
	require.Len(t, subs, 1, "one transport subscription per topic")

	d.deliver(0, transport.Message{
		Destination:    topic,
		SubscriptionID: subs[0].id,
		Body:           []byte(`{"receiverEmail":"alice@x.com","message":"offer accepted"}`),
	})
	assert.Equal(t, []int{1, 2}, order)
}

func TestClient_PendingSequenceBeforeConnect(t *testing.T) {
	c, d, _ := newTestClient(t)

	var got []string
	room := message.ChatTopic(1)
	other := message.LocationTopic(1)
	first := c.Subscribe(room, func(Inbound) { got = append(got, "first") })
	c.Subscribe(room, func(Inbound) { got = append(got, "second") })
	third := c.Subscribe(other, func(Inbound) { got = append(got, "third") })
	c.Unsubscribe(first)
	c.Unsubscribe(third)
	assert.Equal(t, 1, c.Registry().PendingCount())

	s := connectAndOpen(t, c, d, 0)
	subs := s.subscribed()
	require.Len(t, subs, 1)
	assert.Equal(t, room, subs[0].destination)
	assert.Equal(t, 1, c.Registry().TopicCount())

	d.deliver(0, chatFrame(t, subs[0], message.ChatMessage{ChatroomID: 1, SenderEmail: "a@x.com", MessageType: message.MessageTypeEnter}))
	assert.Equal(t, []string{"second"}, got)
}

func TestRegistry_ReplayPendingTwice(t *testing.T) {
	c, d, _ := newTestClient(t)
	c.Subscribe(message.ChatTopic(7), func(Inbound) {})
	c.Subscribe(message.ChatTopic(7), func(Inbound) {})

	s := connectAndOpen(t, c, d, 0)
	c.Registry().ReplayPending()
	c.Registry().Attach(s)

	assert.Len(t, s.subscribed(), 1)
	assert.Len(t, c.Registry().Handlers(message.ChatTopic(7)), 2)
}

func TestRegistry_UnsubscribeLastReleasesTransport(t *testing.T) {
	c, d, _ := newTestClient(t)
	s := connectAndOpen(t, c, d, 0)

	topic := message.ChatTopic(3)
	a := c.Subscribe(topic, func(Inbound) {})
	b := c.Subscribe(topic, func(Inbound) {})
	transportID := s.subscribed()[0].id

	topicOf, ok := c.Registry().TopicFor(transportID)
	require.True(t, ok)
	assert.Equal(t, topic, topicOf)

	c.Unsubscribe(a)
	assert.Empty(t, s.unsubscribed())
	c.Unsubscribe(b)
	assert.Equal(t, []string{transportID}, s.unsubscribed())
	assert.Equal(t, 0, c.Registry().TopicCount())
	_, ok = c.Registry().TopicFor(transportID)
	assert.False(t, ok)

	c.Unsubscribe(b)
	assert.Len(t, s.unsubscribed(), 1)
}

func TestDispatcher_FaultIsolation(t *testing.T) {
	c, d, _ := newTestClient(t)
	s := connectAndOpen(t, c, d, 0)

	var calls []string
	c.Subscribe(message.ChatTopic(1), func(Inbound) {
		calls = append(calls, "panicking")
		panic("boom")
	})
	c.Subscribe(message.ChatTopic(1), func(Inbound) { calls = append(calls, "second") })
	c.Subscribe(message.ChatTopic(2), func(Inbound) { calls = append(calls, "other topic") })
	subs := s.subscribed()
	require.Len(t, subs, 2)

	msg := message.ChatMessage{ChatroomID: 1, SenderEmail: "a@x.com", MessageType: message.MessageTypeText}
	require.NotPanics(t, func() { d.deliver(0, chatFrame(t, subs[0], msg)) })
	msg.ChatroomID = 2
	require.NotPanics(t, func() { d.deliver(0, chatFrame(t, subs[1], msg)) })

	assert.Equal(t, []string{"panicking", "second", "other topic"}, calls)
}

func TestDispatcher_ParseFailureIsLocal(t *testing.T) {
	c, d, _ := newTestClient(t)
	s := connectAndOpen(t, c, d, 0)

	count := 0
	c.Subscribe(message.ChatTopic(1), func(Inbound) { count++ })
	sub := s.subscribed()[0]

	d.deliver(0, transport.Message{Destination: sub.destination, SubscriptionID: sub.id, Body: []byte(`{not json`)})
	d.deliver(0, transport.Message{Destination: sub.destination, SubscriptionID: sub.id, Body: []byte(`{"chatroomId":1}`)})
	assert.Equal(t, 0, count)
	assert.True(t, c.IsConnected())

	d.deliver(0, chatFrame(t, sub, message.ChatMessage{ChatroomID: 1, SenderEmail: "a@x.com", MessageType: message.MessageTypeText}))
	assert.Equal(t, 1, count)
}

func TestDispatcher_ResolvesByDestination(t *testing.T) {
	c, d, _ := newTestClient(t)
	connectAndOpen(t, c, d, 0)

	count := 0
	c.Subscribe(message.ChatTopic(5), func(Inbound) { count++ })
	d.deliver(0, transport.Message{
		Destination: message.ChatTopic(5),
		Body:        []byte(`{"chatroomId":5,"senderEmail":"a@x.com","messageType":"TEXT"}`),
	})
	assert.Equal(t, 1, count)
}

func TestPublisher_Disconnected(t *testing.T) {
	c, d, _ := newTestClient(t)

	err := c.Publish(message.ChatSendDestination, message.ChatMessageRequest{ChatroomID: 1, Content: "lost"})
	assert.ErrorIs(t, err, ErrNotConnected)

	s := connectAndOpen(t, c, d, 0)
	assert.Empty(t, s.sent(), "nothing is queued for later delivery")
}

func TestPublisher_Connected(t *testing.T) {
	c, d, _ := newTestClient(t)
	s := connectAndOpen(t, c, d, 0)

	require.NoError(t, c.Publish(message.LocationDestination(9), map[string]any{"lat": 1.5}))
	sent := s.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "/app/location/9", sent[0].destination)
	assert.Equal(t, "application/json", sent[0].contentType)
	assert.JSONEq(t, `{"lat":1.5}`, string(sent[0].body))

	err := c.Publish("/app/x", make(chan int))
	assert.Error(t, err)
	assert.Len(t, s.sent(), 1)
}

func TestManager_ReconnectBackoff(t *testing.T) {
	c, d, sched := newTestClient(t)
	d.setErr(errors.New("refused"))

	var mu sync.Mutex
	var changes []StateChange
	c.OnStateChange(func(ch StateChange) {
		mu.Lock()
		changes = append(changes, ch)
		mu.Unlock()
	})

	c.Connect("tok")
	require.Eventually(t, func() bool { return len(sched.scheduled()) == 1 }, time.Second, time.Millisecond)
	sched.fire(0)
	sched.fire(1)
	sched.fire(2)
	require.Len(t, sched.scheduled(), 4)

	// three failed reconnects so far; the next failure schedules base×2^3
	delays := sched.scheduled()
	assert.Equal(t, testBaseDelay*8, delays[3])
	assert.Equal(t, 4, c.manager.Attempts())

	sched.fire(3)
	sched.fire(4)
	delays = sched.scheduled()
	require.Len(t, delays, 5, "no reconnect after max attempts")
	for i := 1; i < len(delays); i++ {
		assert.GreaterOrEqual(t, delays[i], delays[i-1])
	}
	assert.Equal(t, 6, d.dials())
	assert.Equal(t, StateDisconnected, c.State())

	mu.Lock()
	last := changes[len(changes)-1]
	mu.Unlock()
	assert.ErrorIs(t, last.Err, ErrReconnectExhausted)

	// explicit connect starts over
	d.setErr(nil)
	connectAndOpen(t, c, d, 6)
	assert.Equal(t, 0, c.manager.Attempts())
}

func TestManager_InvoluntaryReconnectReplays(t *testing.T) {
	c, d, sched := newTestClient(t)
	received := 0
	c.Subscribe(message.ChatTopic(42), func(Inbound) { received++ })
	connectAndOpen(t, c, d, 0)

	d.drop(0, errors.New("connection reset"))
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 1, c.Registry().PendingCount())
	require.Equal(t, []time.Duration{testBaseDelay}, sched.scheduled())

	sched.fire(0)
	require.Equal(t, 2, d.dials())
	d.open(1)
	assert.True(t, c.IsConnected())
	assert.Equal(t, 0, c.manager.Attempts())

	subs := d.session(1).subscribed()
	require.Len(t, subs, 1)

	// frames from the dead session are ignored
	old := d.session(0).subscribed()[0]
	d.deliver(0, chatFrame(t, old, message.ChatMessage{ChatroomID: 42, SenderEmail: "a@x.com", MessageType: message.MessageTypeText}))
	assert.Equal(t, 0, received)

	d.deliver(1, chatFrame(t, subs[0], message.ChatMessage{ChatroomID: 42, SenderEmail: "a@x.com", MessageType: message.MessageTypeText}))
	assert.Equal(t, 1, received)
}

func TestManager_DisconnectClearsSubscriptions(t *testing.T) {
	c, d, sched := newTestClient(t)
	c.Subscribe(message.ChatTopic(1), func(Inbound) {})
	s := connectAndOpen(t, c, d, 0)
	c.Subscribe(message.LocationTopic(1), func(Inbound) {})

	c.Disconnect()
	assert.True(t, s.isClosed())
	assert.Len(t, s.unsubscribed(), 2)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 0, c.Registry().TopicCount())
	assert.Equal(t, 0, c.Registry().PendingCount())

	// a late close from the torn-down session does not schedule a retry
	d.drop(0, errors.New("closed"))
	assert.Empty(t, sched.scheduled())

	s2 := connectAndOpen(t, c, d, 1)
	assert.Empty(t, s2.subscribed())
}

func TestManager_DisconnectCancelsRetry(t *testing.T) {
	c, d, sched := newTestClient(t)
	connectAndOpen(t, c, d, 0)

	d.drop(0, errors.New("reset"))
	require.Len(t, sched.scheduled(), 1)
	c.Disconnect()
	sched.fire(0)
	assert.Equal(t, 1, d.dials())
}

func TestReconnectDelay(t *testing.T) {
	base := 3 * time.Second
	assert.Equal(t, base, ReconnectDelay(base, 0))
	assert.Equal(t, base, ReconnectDelay(base, 1))
	assert.Equal(t, 2*base, ReconnectDelay(base, 2))
	assert.Equal(t, 8*base, ReconnectDelay(base, 4))

	prev := time.Duration(0)
	for attempt := 1; attempt <= 64; attempt++ {
		d := ReconnectDelay(base, attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		prev = d
	}
}

func TestReconnectDelay_Saturates(t *testing.T) {
	for _, base := range []time.Duration{10 * time.Second, time.Hour, MaxReconnectDelay / 3} {
		prev := time.Duration(0)
		for attempt := 1; attempt <= 200; attempt++ {
			d := ReconnectDelay(base, attempt)
			require.Positive(t, d, "base %s attempt %d", base, attempt)
			require.GreaterOrEqual(t, d, prev, "base %s attempt %d", base, attempt)
			prev = d
		}
		assert.Equal(t, MaxReconnectDelay, prev)
	}

	assert.Equal(t, 10*time.Second<<29, ReconnectDelay(10*time.Second, 30))
	assert.Equal(t, MaxReconnectDelay, ReconnectDelay(10*time.Second, 31))
	assert.Equal(t, time.Duration(0), ReconnectDelay(0, 5))
}

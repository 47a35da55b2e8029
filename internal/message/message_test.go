package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, "/topic/room.42", ChatTopic(42))
	assert.Equal(t, "/topic/user/alice@x.com", NotificationTopic("alice@x.com"))
	assert.Equal(t, "/topic/location.7", LocationTopic(7))
	assert.Equal(t, "/app/location/7", LocationDestination(7))
	assert.Equal(t, "/app/chat/send", ChatSendDestination)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		topic string
		want  Kind
	}{
		{"/topic/room.42", KindChat},
		{"room.42", KindChat},
		{"/topic/user/alice@x.com", KindNotification},
		{"user.alice@x.com", KindNotification},
		{"/topic/location.3", KindLocation},
		{"location.3", KindLocation},
		{"/topic/market.prices", KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.topic), tt.topic)
	}
}

func TestParse_Chat(t *testing.T) {
	body := `{"messageId":9,"chatroomId":42,"senderEmail":"bob@x.com","content":"hi","messageType":"TEXT","sentAt":"2025-01-01T10:00:00","senderName":"Bob"}`

	p, err := Parse(ChatTopic(42), []byte(body))
	require.NoError(t, err)
	msg, ok := p.(ChatMessage)
	require.True(t, ok)
	assert.Equal(t, int64(9), msg.MessageID)
	assert.Equal(t, "Bob", msg.SenderName)
	assert.Equal(t, MessageTypeText, msg.MessageType)
}

func TestParse_Notification(t *testing.T) {
	p, err := Parse("user.alice@x.com", []byte(`{"receiverEmail":"alice@x.com","message":"new offer","type":"OFFER"}`))
	require.NoError(t, err)
	n, ok := p.(Notification)
	require.True(t, ok)
	assert.Equal(t, "new offer", n.Message)
	assert.Zero(t, n.ChatroomID)
}

func TestParse_NotificationLinksChatroom(t *testing.T) {
	body := `{"receiverEmail":"alice@x.com","message":"new offer","type":"CHAT","chatroomId":12,"productId":9000000001}`
	p, err := Parse(NotificationTopic("alice@x.com"), []byte(body))
	require.NoError(t, err)
	n, ok := p.(Notification)
	require.True(t, ok)
	assert.Equal(t, int64(12), n.ChatroomID)
	assert.Equal(t, int64(9000000001), n.ProductID)
}

func TestParse_RelayTopicIsRaw(t *testing.T) {
	p, err := Parse("/redis/messages/alerts", []byte(`{"event":"price-drop"}`))
	require.NoError(t, err)
	raw, ok := p.(Raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"event":"price-drop"}`, string(raw))
}

func TestParse_Location(t *testing.T) {
	p, err := Parse(LocationTopic(3), []byte(`{"chatroomId":3,"email":"bob@x.com","lat":37.5,"lng":127.0}`))
	require.NoError(t, err)
	u, ok := p.(LocationUpdate)
	require.True(t, ok)
	assert.InDelta(t, 37.5, u.Latitude, 1e-9)
	assert.InDelta(t, 127.0, u.Longitude, 1e-9)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		body  string
	}{
		{"not json", ChatTopic(1), `{"chatroomId":`},
		{"wrong shape", ChatTopic(1), `[1,2,3]`},
		{"missing sender", ChatTopic(1), `{"chatroomId":1,"content":"x","messageType":"TEXT"}`},
		{"bad message type", ChatTopic(1), `{"chatroomId":1,"senderEmail":"a@x.com","messageType":"SHOUT"}`},
		{"empty notification", NotificationTopic("a@x.com"), `{"receiverEmail":"a@x.com"}`},
		{"latitude out of range", LocationTopic(1), `{"chatroomId":1,"email":"a@x.com","lat":91,"lng":0}`},
		{"raw not json", "/topic/market.prices", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.topic, []byte(tt.body))
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, ErrInvalidPayload), "err = %v", err)
		})
	}
}

func TestParse_Raw(t *testing.T) {
	p, err := Parse("/topic/market.prices", []byte(`{"btc":1}`))
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, p.Kind())
	assert.Equal(t, Raw(`{"btc":1}`), p)
}

package channel

import (
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"stompgofer/internal/message"
)

// Chat sends and receives chat room messages
type Chat struct {
	ps     PubSub
	logger zerolog.Logger
}

// NewChat creates a chat adapter over ps
func NewChat(ps PubSub, logger zerolog.Logger) *Chat {
	return &Chat{
		ps:     ps,
		logger: logger.With().Str("component", "chat").Logger(),
	}
}

// Subscribe delivers messages of a chat room to fn and returns the subscription id
func (c *Chat) Subscribe(chatroomID int64, fn func(message.ChatMessage)) string {
	return subscribeTyped(c.ps, message.ChatTopic(chatroomID), fn)
}

// Unsubscribe removes a subscription made with Subscribe
func (c *Chat) Unsubscribe(id string) {
	c.ps.Unsubscribe(id)
}

// Send publishes a chat message to the room named in req
func (c *Chat) Send(req message.ChatMessageRequest) error {
	if err := req.Validate(); err != nil {
		c.logger.Warn().Err(err).Int64("chatroomId", req.ChatroomID).Msg("chat message rejected")
		return err
	}
	return c.ps.Publish(message.ChatSendDestination, req)
}

// ChatLog accumulates the messages of a room, dropping redelivered ones by messageId
type ChatLog struct {
	mu       sync.RWMutex
	messages []message.ChatMessage
	dedup    *Deduplicator
}

// NewChatLog creates a log remembering up to window message ids
func NewChatLog(window int) (*ChatLog, error) {
	dedup, err := NewDeduplicator(window)
	if err != nil {
		return nil, err
	}
	return &ChatLog{dedup: dedup}, nil
}

// Append adds m unless its messageId was already seen. Messages without an id are
// always appended. Returns whether m was added.
func (l *ChatLog) Append(m message.ChatMessage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	var key string
	if m.MessageID != 0 {
		key = strconv.FormatInt(m.MessageID, 10)
	}
	if l.dedup.IsDuplicate(key) {
		return false
	}
	l.messages = append(l.messages, m)
	return true
}

// Messages returns a copy of the log in arrival order
func (l *ChatLog) Messages() []message.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]message.ChatMessage(nil), l.messages...)
}

// Len returns the number of messages in the log
func (l *ChatLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

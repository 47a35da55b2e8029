package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload is returned when a frame body does not match its topic's shape
var ErrInvalidPayload = errors.New("invalid payload")

// MessageType is the chat message category
type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
	MessageTypeFile  MessageType = "FILE"
	MessageTypeEnter MessageType = "ENTER"
	MessageTypeLeave MessageType = "LEAVE"
	MessageTypeOffer MessageType = "OFFER"
)

// Valid reports whether t is a known message type
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeEnter, MessageTypeLeave, MessageTypeOffer:
		return true
	}
	return false
}

// Payload is a parsed inbound frame body. The set of implementations is closed:
// ChatMessage, Notification, LocationUpdate and Raw.
type Payload interface {
	Kind() Kind
	Validate() error
	payload()
}

// ChatMessage is broadcast on a chat room topic
type ChatMessage struct {
	MessageID        int64       `json:"messageId,omitempty"`
	ChatroomID       int64       `json:"chatroomId"`
	SenderEmail      string      `json:"senderEmail"`
	Content          string      `json:"content"`
	MessageType      MessageType `json:"messageType"`
	SentAt           string      `json:"sentAt,omitempty"`
	IsRead           bool        `json:"isRead,omitempty"`
	SenderName       string      `json:"senderName,omitempty"`
	SenderProfileURL string      `json:"senderProfileUrl,omitempty"`
	ProductID        int64       `json:"productId,omitempty"`
}

func (ChatMessage) Kind() Kind { return KindChat }

func (m ChatMessage) Validate() error {
	if m.ChatroomID <= 0 {
		return fmt.Errorf("%w: chat message without chatroomId", ErrInvalidPayload)
	}
	if m.SenderEmail == "" {
		return fmt.Errorf("%w: chat message without senderEmail", ErrInvalidPayload)
	}
	if !m.MessageType.Valid() {
		return fmt.Errorf("%w: unknown messageType %q", ErrInvalidPayload, m.MessageType)
	}
	return nil
}

func (ChatMessage) payload() {}

// ChatMessageRequest is the outbound body published to ChatSendDestination
type ChatMessageRequest struct {
	ChatroomID  int64       `json:"chatroomId"`
	SenderEmail string      `json:"senderEmail"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"messageType"`
}

// Validate checks the request before it is published
func (r ChatMessageRequest) Validate() error {
	if r.ChatroomID <= 0 {
		return fmt.Errorf("%w: chatroomId is required", ErrInvalidPayload)
	}
	if !r.MessageType.Valid() {
		return fmt.Errorf("%w: unknown messageType %q", ErrInvalidPayload, r.MessageType)
	}
	return nil
}

// Notification is pushed on a user's personal topic
type Notification struct {
	ID            string `json:"id,omitempty"`
	SenderEmail   string `json:"senderEmail,omitempty"`
	ReceiverEmail string `json:"receiverEmail"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp,omitempty"`
	Type          string `json:"type,omitempty"`
	ChatroomID    int64  `json:"chatroomId,omitempty"`
	ProductID     int64  `json:"productId,omitempty"`
}

func (Notification) Kind() Kind { return KindNotification }

func (n Notification) Validate() error {
	if n.ReceiverEmail == "" {
		return fmt.Errorf("%w: notification without receiverEmail", ErrInvalidPayload)
	}
	if n.Message == "" {
		return fmt.Errorf("%w: notification without message", ErrInvalidPayload)
	}
	return nil
}

func (Notification) payload() {}

// LocationUpdate is shared inside a chat room
type LocationUpdate struct {
	ChatroomID int64   `json:"chatroomId"`
	Email      string  `json:"email"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lng"`
	Address    string  `json:"address,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
}

func (LocationUpdate) Kind() Kind { return KindLocation }

func (u LocationUpdate) Validate() error {
	if u.ChatroomID <= 0 {
		return fmt.Errorf("%w: location without chatroomId", ErrInvalidPayload)
	}
	if u.Email == "" {
		return fmt.Errorf("%w: location without email", ErrInvalidPayload)
	}
	if u.Latitude < -90 || u.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidPayload, u.Latitude)
	}
	if u.Longitude < -180 || u.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidPayload, u.Longitude)
	}
	return nil
}

func (LocationUpdate) payload() {}

// Raw carries the body of a topic with no known shape. It is still required to be JSON.
type Raw json.RawMessage

func (Raw) Kind() Kind { return KindUnknown }

func (r Raw) Validate() error {
	if !json.Valid(r) {
		return fmt.Errorf("%w: body is not JSON", ErrInvalidPayload)
	}
	return nil
}

func (Raw) payload() {}

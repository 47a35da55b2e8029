package message

import (
	"strconv"
	"strings"
)

// Kind identifies the payload shape carried by a topic
type Kind int

const (
	KindUnknown Kind = iota
	KindChat
	KindNotification
	KindLocation
)

// String returns the kind name used in logs
func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindNotification:
		return "notification"
	case KindLocation:
		return "location"
	default:
		return "unknown"
	}
}

const (
	topicPrefix = "/topic/"

	chatTopicPrefix         = "room."
	notificationTopicPrefix = "user/"
	locationTopicPrefix     = "location."

	// ChatSendDestination is where chat messages are published. The broker routes
	// application destinations to handlers, so it differs from the room topic.
	ChatSendDestination = "/app/chat/send"

	locationSendPrefix = "/app/location/"
)

// ChatTopic returns the subscribe destination for a chat room
func ChatTopic(chatroomID int64) string {
	return topicPrefix + chatTopicPrefix + strconv.FormatInt(chatroomID, 10)
}

// NotificationTopic returns the subscribe destination for a user's notifications
func NotificationTopic(userEmail string) string {
	return topicPrefix + notificationTopicPrefix + userEmail
}

// LocationTopic returns the subscribe destination for location updates in a chat room
func LocationTopic(chatroomID int64) string {
	return topicPrefix + locationTopicPrefix + strconv.FormatInt(chatroomID, 10)
}

// LocationDestination returns the publish destination for location updates in a chat room
func LocationDestination(chatroomID int64) string {
	return locationSendPrefix + strconv.FormatInt(chatroomID, 10)
}

// KindOf resolves the payload kind of a topic. Both wire destinations
// ("/topic/room.42") and short names ("room.42", "user.alice@x.com") are accepted.
func KindOf(topic string) Kind {
	name := strings.TrimPrefix(topic, topicPrefix)
	switch {
	case strings.HasPrefix(name, chatTopicPrefix):
		return KindChat
	case strings.HasPrefix(name, notificationTopicPrefix), strings.HasPrefix(name, "user."):
		return KindNotification
	case strings.HasPrefix(name, locationTopicPrefix):
		return KindLocation
	default:
		return KindUnknown
	}
}

package chat

import (
	"encoding/json"
	"time"
)

// Event names carried in the envelope's "event" field.
const (
	EventJoin           = "join"
	EventPrivateMessage = "private message"
	EventOnlineStatus   = "onlineStatus"
	EventError          = "error"
)

// MessageNotFriends is sent to a sender whose recipient is not an accepted friend.
const MessageNotFriends = "You can only message friends"

// Envelope is the JSON frame exchanged on the live channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendRequest is the payload of an inbound private message.
type SendRequest struct {
	Content string `json:"content"`
	ToUser  string `json:"toUser"`
}

// PrivateMessage is the payload delivered to a recipient.
type PrivateMessage struct {
	Content   string    `json:"content"`
	FromUser  string    `json:"fromUser"`
	ToUser    string    `json:"toUser"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload is the payload of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: data})
}

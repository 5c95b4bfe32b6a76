package domain

import "encoding/json"

// Event websocket event name
type Event string

const (
	// EventGetOnlineUsers server -> client, presence snapshot
	EventGetOnlineUsers Event = "getOnlineUsers"
	// EventNewMessage server -> receiver, message persisted
	EventNewMessage Event = "newMessage"
	// EventMessageStatusUpdated server -> sender, status changed
	EventMessageStatusUpdated Event = "messageStatusUpdated"

	// EventMessageDelivered client -> server, message reached the receiver
	EventMessageDelivered Event = "messageDelivered"
	// EventMessageSeen client -> server, message viewed by the receiver
	EventMessageSeen Event = "messageSeen"
)

// WSRequest websocket inbound frame
type WSRequest struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSResponse websocket outbound frame
type WSResponse struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data"`
}

// StatusEvent payload of messageDelivered / messageSeen
type StatusEvent struct {
	MessageID  string `json:"messageId"`
	ReceiverID string `json:"receiverId,omitempty"`
}

// StatusUpdate payload of messageStatusUpdated
type StatusUpdate struct {
	MessageID string        `json:"messageId"`
	Status    MessageStatus `json:"status"`
}

// RelayEnvelope relay event travelling on the pub/sub bus
type RelayEnvelope struct {
	Event  Event           `json:"event"`
	Target string          `json:"target"`
	Data   json.RawMessage `json:"data"`
}

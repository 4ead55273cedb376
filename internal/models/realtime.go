package models

import (
	"encoding/json"
	"time"
)

// Frame types exchanged over the realtime socket.
const (
	FrameIdentify         = "identify"
	FrameSendMessage      = "send_message"
	FrameUsersOnline      = "users_online"
	FrameUserDisconnected = "user_disconnected"
	FrameReceiveMessage   = "receive_message"
	FrameMessageSent      = "message_sent"
	FrameError            = "error"
)

type OutboundFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type InboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type IdentifyPayload struct {
	UserID string `json:"userId"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// InventoryUpdate is streamed to subscribers of an event after every committed
// change to its ticketsAvailable counter.
type InventoryUpdate struct {
	EventID          string    `json:"eventId"`
	TicketsAvailable int       `json:"ticketsAvailable"`
	Capacity         int       `json:"capacity"`
	Reason           string    `json:"reason"`
	At               time.Time `json:"at"`
}

const (
	InventoryReasonBooked    = "booked"
	InventoryReasonCancelled = "cancelled"
	InventoryReasonEdited    = "edited"
	InventoryReasonDeleted   = "deleted"
)

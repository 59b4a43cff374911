package websocket

import (
	"encoding/json"
	"time"
)

// Inbound event names. Each maps to one handler in the hub's dispatch table.
const (
	EventRegisterUser  = "registerUser"
	EventJoinZoneRoom  = "joinZoneRoom"
	EventLeaveZoneRoom = "leaveZoneRoom"
	EventRequestRide   = "requestRide"
	EventAcceptRide    = "acceptRide"
	EventRideUpdate    = "rideUpdate"
	EventJoinChatRoom  = "joinChatRoom"
	EventLeaveChatRoom = "leaveChatRoom"
	EventSendMessage   = "sendMessage"
)

// Outbound event names.
const (
	EventNewRideRequest    = "newRideRequest"
	EventRideAccepted      = "rideAccepted"
	EventRideStatusChanged = "rideStatusChanged"
	EventReceiveMessage    = "receiveMessage"
)

// Envelope is the wire form of an inbound client event: a name and an
// event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Message is an outbound event.
type Message struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func NewMessage(event string, data interface{}) Message {
	return Message{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// Inbound payload schemas.

type ZonePayload struct {
	Zone string `json:"zone"`
}

type RidePayload struct {
	RideID string `json:"ride_id"`
}

type ChatPayload struct {
	RideID  string `json:"ride_id"`
	Content string `json:"content"`
}

// StatusPayload is the body of a rideStatusChanged event.
type StatusPayload struct {
	RideID string `json:"ride_id"`
	Status string `json:"status"`
}

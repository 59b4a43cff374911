package websocket

import (
	"context"
	"encoding/json"
	"time"

	"aarohyatrika/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// eventHandler handles one inbound event from one client.
type eventHandler func(h *Hub, client *Client, data json.RawMessage)

// handlers is the explicit event→handler contract of the realtime layer.
var handlers = map[string]eventHandler{
	EventRegisterUser:  (*Hub).handleRegisterUser,
	EventJoinZoneRoom:  (*Hub).handleJoinZone,
	EventLeaveZoneRoom: (*Hub).handleLeaveZone,
	EventRequestRide:   (*Hub).handleRequestRide,
	EventAcceptRide:    (*Hub).handleAcceptRide,
	EventRideUpdate:    (*Hub).handleRideUpdate,
	EventJoinChatRoom:  (*Hub).handleJoinChat,
	EventLeaveChatRoom: (*Hub).handleLeaveChat,
	EventSendMessage:   (*Hub).handleSendMessage,
}

// Dispatch routes a raw inbound frame to its handler. Unknown events and
// malformed payloads are logged and dropped; a misbehaving client cannot
// take the hub down.
func (h *Hub) Dispatch(client *Client, raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		h.logger.WithUserID(client.UserID).WithError(err).Warn("malformed realtime frame")
		return
	}

	handler, ok := handlers[envelope.Event]
	if !ok {
		h.logger.WithUserID(client.UserID).WithField("event", envelope.Event).Warn("unknown realtime event")
		return
	}

	handler(h, client, envelope.Data)
}

// handleRegisterUser re-registers presence for an already-connected client.
// The identity comes from the authenticated connection, never the payload,
// and re-registration is idempotent.
func (h *Hub) handleRegisterUser(client *Client, _ json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		h.presence[client.UserID] = client
	}
}

func (h *Hub) handleJoinZone(client *Client, data json.RawMessage) {
	var payload ZonePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Zone == "" {
		return
	}
	h.JoinZone(client, payload.Zone)
}

func (h *Hub) handleLeaveZone(client *Client, data json.RawMessage) {
	var payload ZonePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Zone == "" {
		return
	}
	h.LeaveZone(client, payload.Zone)
}

// handleRequestRide re-announces a ride to its origin zone. The ride is
// loaded from the store and only announced while still requested, so a stale
// or forged event cannot advertise a taken ride.
func (h *Hub) handleRequestRide(client *Client, data json.RawMessage) {
	ride := h.lookupRide(client, data)
	if ride == nil || ride.Status != models.RideStatusRequested {
		return
	}
	if ride.RiderID != client.UserID {
		return
	}
	h.PublishRideRequest(ride)
}

// handleAcceptRide relays a booked ride to its rider. The booking itself
// happens through the state machine's guarded transition; this event only
// re-delivers the outcome, and only for the driver who actually won.
func (h *Hub) handleAcceptRide(client *Client, data json.RawMessage) {
	ride := h.lookupRide(client, data)
	if ride == nil || ride.Status != models.RideStatusBooked {
		return
	}
	if !ride.IsAssignedDriver(client.UserID) {
		return
	}
	h.NotifyAccepted(ride)
}

// handleRideUpdate re-notifies both participants from store state. The
// payload's only contribution is the ride id; the status announced is
// whatever the store holds.
func (h *Hub) handleRideUpdate(client *Client, data json.RawMessage) {
	ride := h.lookupRide(client, data)
	if ride == nil || !ride.IsParticipant(client.UserID) {
		return
	}
	h.NotifyStatusChanged(ride)
}

func (h *Hub) handleJoinChat(client *Client, data json.RawMessage) {
	ride := h.lookupRide(client, data)
	if ride == nil || !ride.IsParticipant(client.UserID) {
		return
	}
	h.JoinChat(client, ride.ID)
}

func (h *Hub) handleLeaveChat(client *Client, data json.RawMessage) {
	var payload RidePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	rideID, err := primitive.ObjectIDFromHex(payload.RideID)
	if err != nil {
		return
	}
	h.LeaveChat(client, rideID)
}

func (h *Hub) handleSendMessage(client *Client, data json.RawMessage) {
	var payload ChatPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Content == "" {
		return
	}
	ride := h.lookupRide(client, data)
	if ride == nil || !ride.IsParticipant(client.UserID) {
		return
	}

	h.RelayChat(ride.ID, models.ChatMessage{
		RideID:     ride.ID,
		SenderID:   client.UserID,
		SenderName: client.Name,
		Content:    payload.Content,
		SentAt:     time.Now(),
	})
}

func (h *Hub) lookupRide(client *Client, data json.RawMessage) *models.Ride {
	var payload RidePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil
	}
	rideID, err := primitive.ObjectIDFromHex(payload.RideID)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), rideLookupTimeout)
	defer cancel()

	ride, err := h.rides.GetByID(ctx, rideID)
	if err != nil {
		h.logger.WithUserID(client.UserID).WithField("ride_id", payload.RideID).WithError(err).Debug("realtime ride lookup failed")
		return nil
	}
	return ride
}

package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"aarohyatrika/internal/models"
	"aarohyatrika/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	zoneRoomPrefix = "zone_"
	rideRoomPrefix = "ride_"

	rideLookupTimeout = 5 * time.Second
)

// RideSource is the authoritative view of ride state the hub consults when a
// socket event references a ride. The hub never trusts client-supplied ride
// state.
type RideSource interface {
	GetByID(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error)
}

// Hub owns all realtime bookkeeping: the presence registry (user → current
// channel), zone room membership and per-ride chat rooms. All three maps are
// guarded by one lock; contention is low and the critical sections are tiny.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]bool
	presence map[primitive.ObjectID]*Client
	rooms    map[string]map[*Client]bool

	rides  RideSource
	logger *logger.Logger
}

func NewHub(rides RideSource, log *logger.Logger) *Hub {
	return &Hub{
		clients:  make(map[*Client]bool),
		presence: make(map[primitive.ObjectID]*Client),
		rooms:    make(map[string]map[*Client]bool),
		rides:    rides,
		logger:   log,
	}
}

// Register adds a connected client and records it as the user's current
// channel. A reconnecting user overwrites their previous entry; the stale
// channel stays connected but no longer receives targeted messages.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	h.presence[client.UserID] = client

	h.logger.WithUserID(client.UserID).WithField("role", client.Role).Debug("channel registered")
}

// Unregister removes the client and every room membership it holds. The
// presence entry is removed only if it still points at this client, so a
// reconnect that already replaced it is untouched. Idempotent.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	if current, ok := h.presence[client.UserID]; ok && current == client {
		delete(h.presence, client.UserID)
	}

	for roomID, room := range h.rooms {
		if _, exists := room[client]; exists {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}

	h.logger.WithUserID(client.UserID).Debug("channel unregistered")
}

func (h *Hub) JoinZone(client *Client, zone string) {
	h.joinRoom(client, zoneRoomPrefix+zone)
}

func (h *Hub) LeaveZone(client *Client, zone string) {
	h.leaveRoom(client, zoneRoomPrefix+zone)
}

func (h *Hub) JoinChat(client *Client, rideID primitive.ObjectID) {
	h.joinRoom(client, rideRoomPrefix+rideID.Hex())
}

func (h *Hub) LeaveChat(client *Client, rideID primitive.ObjectID) {
	h.leaveRoom(client, rideRoomPrefix+rideID.Hex())
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
}

func (h *Hub) leaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// SendToUser delivers to the user's current channel, looked up at send time.
// An absent user is not an error: the persisted state is authoritative and
// the client resynchronizes on its next connect.
func (h *Hub) SendToUser(userID primitive.ObjectID, message Message) bool {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal realtime message")
		return false
	}

	// The send happens under the read lock: Unregister closes the channel
	// under the write lock, so a delivery can never race the close.
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.presence[userID]
	if !ok {
		h.logger.WithUserID(userID).WithField("event", message.Event).Debug("no live channel, delivery skipped")
		return false
	}

	select {
	case client.send <- data:
	default:
	}
	return true
}

// SendToRoom fans a message out to every current member of the room.
func (h *Hub) SendToRoom(roomID string, message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal realtime message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		select {
		case client.send <- data:
		default:
			// Slow consumer: drop the message, keep the connection. The
			// client recovers real state from the store on its next query.
		}
	}
}

// PublishRideRequest announces a new requested ride to every driver channel
// in the origin zone's room. Called once per ride, at creation.
func (h *Hub) PublishRideRequest(ride *models.Ride) {
	h.SendToRoom(zoneRoomPrefix+ride.FromZone, NewMessage(EventNewRideRequest, ride))
}

// NotifyAccepted tells the rider their ride was booked. Only the winning
// driver's acceptance ever reaches here; losers get a conflict from the
// state machine and no event.
func (h *Hub) NotifyAccepted(ride *models.Ride) {
	h.SendToUser(ride.RiderID, NewMessage(EventRideAccepted, ride))
}

// NotifyStatusChanged tells both participants about a persisted transition,
// best effort.
func (h *Hub) NotifyStatusChanged(ride *models.Ride) {
	message := NewMessage(EventRideStatusChanged, StatusPayload{
		RideID: ride.ID.Hex(),
		Status: string(ride.Status),
	})

	h.SendToUser(ride.RiderID, message)
	if ride.DriverID != nil {
		h.SendToUser(*ride.DriverID, message)
	}
}

// RelayChat delivers an ephemeral chat message to the ride room's current
// members. Nothing is persisted.
func (h *Hub) RelayChat(rideID primitive.ObjectID, message models.ChatMessage) {
	h.SendToRoom(rideRoomPrefix+rideID.Hex(), NewMessage(EventReceiveMessage, message))
}

package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"aarohyatrika/internal/apperrors"
	"aarohyatrika/internal/models"
	"aarohyatrika/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memRideSource struct {
	rides map[primitive.ObjectID]*models.Ride
}

func (m *memRideSource) GetByID(_ context.Context, id primitive.ObjectID) (*models.Ride, error) {
	ride, ok := m.rides[id]
	if !ok {
		return nil, apperrors.NotFound("ride")
	}
	return ride, nil
}

func (m *memRideSource) put(ride *models.Ride) {
	m.rides[ride.ID] = ride
}

func newTestHub() (*Hub, *memRideSource) {
	source := &memRideSource{rides: make(map[primitive.ObjectID]*models.Ride)}
	hub := NewHub(source, logger.New(&logger.Config{Level: "error"}))
	return hub, source
}

func connect(hub *Hub, role string) *Client {
	client := NewClient(hub, nil, primitive.NewObjectID(), role, role+" user")
	hub.Register(client)
	return client
}

// recv drains one frame from the client's send channel. Hub delivery is
// synchronous, so an empty channel means nothing was sent.
func recv(t *testing.T, client *Client) *Envelope {
	t.Helper()
	select {
	case raw, ok := <-client.send:
		if !ok {
			return nil
		}
		var frame Envelope
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("undecodable frame: %v", err)
		}
		return &frame
	default:
		return nil
	}
}

func dispatchEvent(t *testing.T, hub *Hub, client *Client, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	hub.Dispatch(client, raw)
}

func TestPresenceOverwriteOnReconnect(t *testing.T) {
	hub, _ := newTestHub()
	userID := primitive.NewObjectID()

	stale := NewClient(hub, nil, userID, "rider", "r")
	hub.Register(stale)
	fresh := NewClient(hub, nil, userID, "rider", "r")
	hub.Register(fresh)

	if !hub.SendToUser(userID, NewMessage(EventRideStatusChanged, nil)) {
		t.Fatal("SendToUser failed with a live channel")
	}
	if frame := recv(t, fresh); frame == nil || frame.Event != EventRideStatusChanged {
		t.Error("fresh channel did not receive the message")
	}
	if frame := recv(t, stale); frame != nil {
		t.Errorf("stale channel received %s", frame.Event)
	}
}

func TestUnregisterKeepsReplacementPresence(t *testing.T) {
	hub, _ := newTestHub()
	userID := primitive.NewObjectID()

	stale := NewClient(hub, nil, userID, "driver", "d")
	hub.Register(stale)
	fresh := NewClient(hub, nil, userID, "driver", "d")
	hub.Register(fresh)

	// The stale connection's teardown races the reconnect in production; it
	// must not evict the replacement.
	hub.Unregister(stale)

	if !hub.SendToUser(userID, NewMessage(EventRideAccepted, nil)) {
		t.Fatal("presence lost after stale channel teardown")
	}
	if frame := recv(t, fresh); frame == nil || frame.Event != EventRideAccepted {
		t.Error("replacement channel did not receive the message")
	}
}

// TestSendToUserDuringDisconnect hammers targeted delivery while the same
// user's channel is torn down and replaced. A delivery landing between the
// presence lookup and the channel close must be dropped, never panic on the
// closed channel.
func TestSendToUserDuringDisconnect(t *testing.T) {
	hub, _ := newTestHub()
	userID := primitive.NewObjectID()

	// A bulky payload widens the window between lookup and send.
	message := NewMessage(EventRideStatusChanged, strings.Repeat("zone update ", 1024))

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					hub.SendToUser(userID, message)
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		client := NewClient(hub, nil, userID, "rider", "r")
		hub.Register(client)
		hub.Unregister(client)
	}

	close(done)
	wg.Wait()
}

func TestUnregisterRemovesPresence(t *testing.T) {
	hub, _ := newTestHub()
	client := connect(hub, "rider")

	hub.Unregister(client)
	hub.Unregister(client) // idempotent

	if hub.SendToUser(client.UserID, NewMessage(EventRideStatusChanged, nil)) {
		t.Error("SendToUser delivered to an unregistered user")
	}
}

func TestZoneRoomBroadcast(t *testing.T) {
	hub, _ := newTestHub()
	driverA := connect(hub, "driver")
	driverB := connect(hub, "driver")
	elsewhere := connect(hub, "driver")

	hub.JoinZone(driverA, "CMRCET")
	hub.JoinZone(driverA, "CMRCET") // rejoin is idempotent
	hub.JoinZone(driverB, "CMRCET")
	hub.JoinZone(elsewhere, "Airport")

	hub.PublishRideRequest(&models.Ride{
		ID:       primitive.NewObjectID(),
		RiderID:  primitive.NewObjectID(),
		FromZone: "CMRCET",
		ToZone:   "Airport",
		Status:   models.RideStatusRequested,
	})

	for _, driver := range []*Client{driverA, driverB} {
		frame := recv(t, driver)
		if frame == nil || frame.Event != EventNewRideRequest {
			t.Fatal("zone member missed the ride request")
		}
		if extra := recv(t, driver); extra != nil {
			t.Errorf("duplicate delivery: %s", extra.Event)
		}
	}
	if frame := recv(t, elsewhere); frame != nil {
		t.Errorf("other zone received %s", frame.Event)
	}

	hub.LeaveZone(driverB, "CMRCET")
	hub.LeaveZone(driverB, "CMRCET") // leave twice is harmless
	hub.PublishRideRequest(&models.Ride{
		ID:       primitive.NewObjectID(),
		RiderID:  primitive.NewObjectID(),
		FromZone: "CMRCET",
		ToZone:   "Hitech City",
		Status:   models.RideStatusRequested,
	})

	if frame := recv(t, driverA); frame == nil {
		t.Error("remaining member missed the second request")
	}
	if frame := recv(t, driverB); frame != nil {
		t.Errorf("departed member received %s", frame.Event)
	}
}

func TestChatRelayThroughDispatch(t *testing.T) {
	hub, source := newTestHub()

	rider := connect(hub, "rider")
	driver := connect(hub, "driver")
	stranger := connect(hub, "rider")

	driverID := driver.UserID
	ride := &models.Ride{
		ID:       primitive.NewObjectID(),
		RiderID:  rider.UserID,
		DriverID: &driverID,
		FromZone: "CMRCET",
		ToZone:   "Airport",
		Status:   models.RideStatusInProgress,
	}
	source.put(ride)

	dispatchEvent(t, hub, rider, EventJoinChatRoom, RidePayload{RideID: ride.ID.Hex()})
	dispatchEvent(t, hub, driver, EventJoinChatRoom, RidePayload{RideID: ride.ID.Hex()})
	// Non-participants cannot join the ride's room.
	dispatchEvent(t, hub, stranger, EventJoinChatRoom, RidePayload{RideID: ride.ID.Hex()})

	// Nor can they inject messages into it.
	dispatchEvent(t, hub, stranger, EventSendMessage, ChatPayload{RideID: ride.ID.Hex(), Content: "free airport rides, call me"})
	for _, member := range []*Client{rider, driver} {
		if frame := recv(t, member); frame != nil {
			t.Fatalf("spoofed message delivered: %s", frame.Event)
		}
	}

	dispatchEvent(t, hub, rider, EventSendMessage, ChatPayload{RideID: ride.ID.Hex(), Content: "reached the gate"})

	for _, member := range []*Client{rider, driver} {
		frame := recv(t, member)
		if frame == nil || frame.Event != EventReceiveMessage {
			t.Fatal("room member missed the chat message")
		}
		var chat models.ChatMessage
		if err := json.Unmarshal(frame.Data, &chat); err != nil {
			t.Fatalf("decode chat: %v", err)
		}
		if chat.Content != "reached the gate" || chat.SenderID != rider.UserID {
			t.Errorf("chat = %+v", chat)
		}
	}
	if frame := recv(t, stranger); frame != nil {
		t.Errorf("stranger received %s", frame.Event)
	}

	// Leaving stops delivery.
	dispatchEvent(t, hub, driver, EventLeaveChatRoom, RidePayload{RideID: ride.ID.Hex()})
	dispatchEvent(t, hub, rider, EventSendMessage, ChatPayload{RideID: ride.ID.Hex(), Content: "still there?"})
	if frame := recv(t, rider); frame == nil {
		t.Error("sender missed own message")
	}
	if frame := recv(t, driver); frame != nil {
		t.Errorf("departed member received %s", frame.Event)
	}
}

func TestRideUpdateAnnouncesStoreState(t *testing.T) {
	hub, source := newTestHub()

	rider := connect(hub, "rider")
	driver := connect(hub, "driver")
	stranger := connect(hub, "driver")

	driverID := driver.UserID
	ride := &models.Ride{
		ID:       primitive.NewObjectID(),
		RiderID:  rider.UserID,
		DriverID: &driverID,
		Status:   models.RideStatusInProgress,
	}
	source.put(ride)

	// A non-participant's event is dropped.
	dispatchEvent(t, hub, stranger, EventRideUpdate, RidePayload{RideID: ride.ID.Hex()})
	if frame := recv(t, rider); frame != nil {
		t.Fatalf("forged update reached the rider: %s", frame.Event)
	}

	dispatchEvent(t, hub, driver, EventRideUpdate, RidePayload{RideID: ride.ID.Hex()})

	for _, participant := range []*Client{rider, driver} {
		frame := recv(t, participant)
		if frame == nil || frame.Event != EventRideStatusChanged {
			t.Fatal("participant missed the status event")
		}
		var status StatusPayload
		if err := json.Unmarshal(frame.Data, &status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		// The announced status comes from the store, not from the client.
		if status.Status != string(models.RideStatusInProgress) || status.RideID != ride.ID.Hex() {
			t.Errorf("status payload = %+v", status)
		}
	}
}

func TestAcceptRideEventOnlyForWinner(t *testing.T) {
	hub, source := newTestHub()

	rider := connect(hub, "rider")
	winner := connect(hub, "driver")
	loser := connect(hub, "driver")

	winnerID := winner.UserID
	ride := &models.Ride{
		ID:       primitive.NewObjectID(),
		RiderID:  rider.UserID,
		DriverID: &winnerID,
		Status:   models.RideStatusBooked,
		OTP:      "4821",
	}
	source.put(ride)

	dispatchEvent(t, hub, loser, EventAcceptRide, RidePayload{RideID: ride.ID.Hex()})
	if frame := recv(t, rider); frame != nil {
		t.Fatalf("loser's event reached the rider: %s", frame.Event)
	}

	dispatchEvent(t, hub, winner, EventAcceptRide, RidePayload{RideID: ride.ID.Hex()})
	if frame := recv(t, rider); frame == nil || frame.Event != EventRideAccepted {
		t.Error("rider missed rideAccepted from the assigned driver")
	}
}

func TestDispatchRejectsGarbage(t *testing.T) {
	hub, _ := newTestHub()
	client := connect(hub, "rider")

	hub.Dispatch(client, []byte("not json"))
	hub.Dispatch(client, []byte(`{"event":"noSuchEvent","data":{}}`))
	hub.Dispatch(client, []byte(`{"event":"joinChatRoom","data":{"ride_id":"bogus"}}`))

	if frame := recv(t, client); frame != nil {
		t.Errorf("garbage produced output: %s", frame.Event)
	}
}

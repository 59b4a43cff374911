package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessage is an ephemeral in-ride message. It is relayed to the chat
// room's current members and never persisted; a client that reconnects
// mid-ride starts from an empty transcript.
type ChatMessage struct {
	RideID     primitive.ObjectID `json:"ride_id"`
	SenderID   primitive.ObjectID `json:"sender_id"`
	SenderName string             `json:"sender_name,omitempty"`
	Content    string             `json:"content"`
	SentAt     time.Time          `json:"sent_at"`
}

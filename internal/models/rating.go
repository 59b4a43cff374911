package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Rating is immutable once created; at most one exists per (ride, rater).
type Rating struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RideID    primitive.ObjectID `json:"ride_id" bson:"ride_id" validate:"required"`
	RatedID   primitive.ObjectID `json:"rated_id" bson:"rated_id" validate:"required"`
	RaterID   primitive.ObjectID `json:"rater_id" bson:"rater_id" validate:"required"`
	Rating    float64            `json:"rating" bson:"rating" validate:"required,min=1,max=5"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string
type PaymentStatus string

const (
	RideStatusRequested  RideStatus = "requested"
	RideStatusScheduled  RideStatus = "scheduled"
	RideStatusBooked     RideStatus = "booked"
	RideStatusInProgress RideStatus = "in-progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"

	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type Ride struct {
	ID            primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	RiderID       primitive.ObjectID  `json:"rider_id" bson:"rider_id" validate:"required"`
	DriverID      *primitive.ObjectID `json:"driver_id" bson:"driver_id"`
	FromZone      string              `json:"from_zone" bson:"from_zone" validate:"required"`
	ToZone        string              `json:"to_zone" bson:"to_zone" validate:"required"`
	Status        RideStatus          `json:"status" bson:"status" default:"requested"`
	ScheduledTime *time.Time          `json:"scheduled_time" bson:"scheduled_time"`
	OTP           string              `json:"otp" bson:"otp"`
	Fare          float64             `json:"fare" bson:"fare" validate:"required"`
	PaymentStatus PaymentStatus       `json:"payment_status" bson:"payment_status" default:"pending"`
	CreatedAt     time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" bson:"updated_at"`
}

// ActiveStatuses are the states a current-ride lookup reports. A scheduled
// ride is not active until a driver accepts it; until then it surfaces
// through history only.
var ActiveStatuses = []RideStatus{
	RideStatusRequested,
	RideStatusBooked,
	RideStatusInProgress,
}

// AcceptableStatuses are the states from which a driver may accept a ride.
var AcceptableStatuses = []RideStatus{
	RideStatusRequested,
	RideStatusScheduled,
}

// CancellableStatuses are the states from which either participant may cancel.
var CancellableStatuses = []RideStatus{
	RideStatusRequested,
	RideStatusBooked,
}

func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// IsParticipant reports whether userID is the rider or the assigned driver.
func (r *Ride) IsParticipant(userID primitive.ObjectID) bool {
	if r.RiderID == userID {
		return true
	}
	return r.DriverID != nil && *r.DriverID == userID
}

func (r *Ride) IsAssignedDriver(userID primitive.ObjectID) bool {
	return r.DriverID != nil && *r.DriverID == userID
}

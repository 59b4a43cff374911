package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRole string

const (
	UserRoleRider  UserRole = "rider"
	UserRoleDriver UserRole = "driver"
)

type User struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name              string             `json:"name" bson:"name" validate:"required"`
	Email             string             `json:"email" bson:"email" validate:"required,email"`
	Password          string             `json:"-" bson:"password"`
	Role              UserRole           `json:"role" bson:"role" validate:"required"`
	VehicleNumber     string             `json:"vehicle_number,omitempty" bson:"vehicle_number"`
	IsVerified        bool               `json:"is_verified" bson:"is_verified" default:"false"`
	VerificationProof string             `json:"verification_proof,omitempty" bson:"verification_proof"`
	ProfilePhoto      string             `json:"profile_photo" bson:"profile_photo"`
	AverageRating     float64            `json:"average_rating" bson:"average_rating" default:"5"`
	TotalRides        int                `json:"total_rides" bson:"total_rides" default:"0"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// PublicProfile strips credential fields for API responses that embed a user.
type PublicProfile struct {
	ID            primitive.ObjectID `json:"id"`
	Name          string             `json:"name"`
	Role          UserRole           `json:"role"`
	VehicleNumber string             `json:"vehicle_number,omitempty"`
	IsVerified    bool               `json:"is_verified"`
	ProfilePhoto  string             `json:"profile_photo"`
	AverageRating float64            `json:"average_rating"`
	TotalRides    int                `json:"total_rides"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:            u.ID,
		Name:          u.Name,
		Role:          u.Role,
		VehicleNumber: u.VehicleNumber,
		IsVerified:    u.IsVerified,
		ProfilePhoto:  u.ProfilePhoto,
		AverageRating: u.AverageRating,
		TotalRides:    u.TotalRides,
	}
}

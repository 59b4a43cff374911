package interfaces

import (
	"context"

	"aarohyatrika/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// IncrementTotalRides adds one completed-and-paid ride to each listed
	// user's counter.
	IncrementTotalRides(ctx context.Context, ids ...primitive.ObjectID) error

	SetAverageRating(ctx context.Context, id primitive.ObjectID, average float64) error
}

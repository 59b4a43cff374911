package interfaces

import (
	"context"

	"aarohyatrika/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RatingRepository interface {
	// Create inserts a rating; fails with apperrors.ErrAlreadyRated when the
	// (ride, rater) pair already has one.
	Create(ctx context.Context, rating *models.Rating) error

	// ListForRated returns every rating ever received by the user.
	ListForRated(ctx context.Context, ratedID primitive.ObjectID) ([]*models.Rating, error)
}

package mongodb

import (
	"context"
	"fmt"
	"time"

	"aarohyatrika/internal/apperrors"
	"aarohyatrika/internal/models"
	"aarohyatrika/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ratingRepository struct {
	collection *mongo.Collection
}

func NewRatingRepository(db *mongo.Database) interfaces.RatingRepository {
	return &ratingRepository{
		collection: db.Collection("ratings"),
	}
}

func (r *ratingRepository) Create(ctx context.Context, rating *models.Rating) error {
	rating.ID = primitive.NewObjectID()
	rating.CreatedAt = time.Now()

	// The unique (ride_id, rater_id) index is the real duplicate guard; a
	// racing double-submit loses on insert rather than on a lookup.
	_, err := r.collection.InsertOne(ctx, rating)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrAlreadyRated
		}
		return fmt.Errorf("failed to create rating: %w", err)
	}
	return nil
}

func (r *ratingRepository) ListForRated(ctx context.Context, ratedID primitive.ObjectID) ([]*models.Rating, error) {
	opts := options.Find().SetSort(bson.M{"created_at": 1})

	cursor, err := r.collection.Find(ctx, bson.M{"rated_id": ratedID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer cursor.Close(ctx)

	var ratings []*models.Rating
	if err := cursor.All(ctx, &ratings); err != nil {
		return nil, fmt.Errorf("failed to decode ratings: %w", err)
	}
	return ratings, nil
}

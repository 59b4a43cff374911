package services

import (
	"context"
	"math"

	"aarohyatrika/internal/apperrors"
	"aarohyatrika/internal/models"
	"aarohyatrika/internal/repositories/interfaces"
	"aarohyatrika/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RatingService interface {
	SubmitRating(ctx context.Context, raterID primitive.ObjectID, request *RatingRequest) error
}

type RatingRequest struct {
	RideID  string  `json:"ride_id" validate:"required"`
	RatedID string  `json:"rated_id" validate:"required"`
	Rating  float64 `json:"rating" validate:"required,min=1,max=5"`
}

type ratingService struct {
	ratings interfaces.RatingRepository
	rides   interfaces.RideRepository
	users   interfaces.UserRepository
	logger  *logger.Logger
}

func NewRatingService(ratings interfaces.RatingRepository, rides interfaces.RideRepository, users interfaces.UserRepository, log *logger.Logger) RatingService {
	return &ratingService{
		ratings: ratings,
		rides:   rides,
		users:   users,
		logger:  log,
	}
}

// SubmitRating records one immutable rating per (ride, rater) and recomputes
// the rated user's running average: a plain arithmetic mean over every rating
// they have ever received, stored to one decimal place.
func (s *ratingService) SubmitRating(ctx context.Context, raterID primitive.ObjectID, request *RatingRequest) error {
	rideID, err := primitive.ObjectIDFromHex(request.RideID)
	if err != nil {
		return apperrors.Validation("Invalid ride id")
	}
	ratedID, err := primitive.ObjectIDFromHex(request.RatedID)
	if err != nil {
		return apperrors.Validation("Invalid rated user id")
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.Status != models.RideStatusCompleted {
		return apperrors.ErrNotCompleted
	}
	if !ride.IsParticipant(raterID) {
		return apperrors.Unauthorized("Not authorized to rate this ride")
	}
	if !ride.IsParticipant(ratedID) || ratedID == raterID {
		return apperrors.Validation("Rated user was not the other participant of this ride")
	}

	rating := &models.Rating{
		RideID:  rideID,
		RatedID: ratedID,
		RaterID: raterID,
		Rating:  request.Rating,
	}
	if err := s.ratings.Create(ctx, rating); err != nil {
		return err
	}

	all, err := s.ratings.ListForRated(ctx, ratedID)
	if err != nil {
		return err
	}
	var sum float64
	for _, r := range all {
		sum += r.Rating
	}
	average := math.Round(sum/float64(len(all))*10) / 10

	if err := s.users.SetAverageRating(ctx, ratedID, average); err != nil {
		return err
	}

	s.logger.WithRideID(rideID).WithFields(map[string]interface{}{
		"rated_id": ratedID.Hex(),
		"average":  average,
	}).Info("rating submitted")
	return nil
}

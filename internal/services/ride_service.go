package services

import (
	"context"
	"errors"
	"time"

	"aarohyatrika/internal/apperrors"
	"aarohyatrika/internal/fare"
	"aarohyatrika/internal/models"
	"aarohyatrika/internal/repositories/interfaces"
	"aarohyatrika/internal/utils"
	"aarohyatrika/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideBroadcaster fans ride events out over the realtime layer. Delivery is
// fire-and-forget: a send to a disconnected participant is a no-op, and a
// failed delivery never rolls back a persisted transition.
type RideBroadcaster interface {
	PublishRideRequest(ride *models.Ride)
	NotifyAccepted(ride *models.Ride)
	NotifyStatusChanged(ride *models.Ride)
}

type RideService interface {
	RequestRide(ctx context.Context, riderID primitive.ObjectID, request *RideRequest) (*models.Ride, error)
	AcceptRide(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error)
	StartRide(ctx context.Context, driverID, rideID primitive.ObjectID, otp string) (*models.Ride, error)
	EndRide(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error)
	PayRide(ctx context.Context, riderID, rideID primitive.ObjectID) (*models.Ride, error)
	CancelRide(ctx context.Context, userID, rideID primitive.ObjectID) (*models.Ride, error)

	GetRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error)
	CurrentRide(ctx context.Context, userID primitive.ObjectID) (*models.Ride, error)
	PendingRides(ctx context.Context, zone string) ([]*models.Ride, error)
	RideHistory(ctx context.Context, userID primitive.ObjectID) ([]*models.Ride, error)
}

type RideRequest struct {
	FromZone      string     `json:"from_zone" validate:"required"`
	ToZone        string     `json:"to_zone" validate:"required"`
	ScheduledTime *time.Time `json:"scheduled_time"`
}

type rideService struct {
	rides       interfaces.RideRepository
	users       interfaces.UserRepository
	broadcaster RideBroadcaster
	logger      *logger.Logger
}

func NewRideService(rides interfaces.RideRepository, users interfaces.UserRepository, broadcaster RideBroadcaster, log *logger.Logger) RideService {
	return &rideService{
		rides:       rides,
		users:       users,
		broadcaster: broadcaster,
		logger:      log,
	}
}

// RequestRide creates a ride in requested state, or scheduled when a future
// time was supplied. Fare is fixed at creation from the zone-pair table and
// never changes afterwards.
func (s *rideService) RequestRide(ctx context.Context, riderID primitive.ObjectID, request *RideRequest) (*models.Ride, error) {
	status := models.RideStatusRequested
	if request.ScheduledTime != nil {
		status = models.RideStatusScheduled
	}

	ride := &models.Ride{
		RiderID:       riderID,
		FromZone:      request.FromZone,
		ToZone:        request.ToZone,
		Status:        status,
		ScheduledTime: request.ScheduledTime,
		Fare:          fare.ForRoute(request.FromZone, request.ToZone),
		PaymentStatus: models.PaymentStatusPending,
	}

	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, err
	}

	s.logger.WithRideID(ride.ID).WithFields(map[string]interface{}{
		"from_zone": ride.FromZone,
		"to_zone":   ride.ToZone,
		"fare":      ride.Fare,
		"status":    ride.Status,
	}).Info("ride created")

	// Scheduled rides are not broadcast; drivers discover them through the
	// pending-rides query once they become relevant.
	if ride.Status == models.RideStatusRequested {
		s.broadcaster.PublishRideRequest(ride)
	}

	return ride, nil
}

// AcceptRide is the contended transition: any number of drivers may race on
// the same requested ride, and the store's conditional update lets exactly
// one through. The OTP is generated ahead of the write and persisted
// atomically with the booking, so only the winner's code ever exists.
func (s *rideService) AcceptRide(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error) {
	otp := utils.GenerateOTP()

	ride, err := s.rides.AssignDriver(ctx, rideID, driverID, otp)
	if err != nil {
		if errors.Is(err, apperrors.ErrRideTaken) {
			s.logger.WithRideID(rideID).WithUserID(driverID).Info("accept lost the race")
		}
		return nil, err
	}

	s.logger.WithRideID(ride.ID).WithUserID(driverID).Info("ride booked")

	s.broadcaster.NotifyAccepted(ride)
	s.broadcaster.NotifyStatusChanged(ride)
	return ride, nil
}

// StartRide verifies the rider's OTP and moves the ride to in-progress. Only
// the assigned driver may start, and only from booked.
func (s *rideService) StartRide(ctx context.Context, driverID, rideID primitive.ObjectID, otp string) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if !ride.IsAssignedDriver(driverID) {
		return nil, apperrors.Unauthorized("Not authorized to start this ride")
	}

	// OTP is immutable once set, so checking it outside the conditional
	// update cannot race with a rewrite; the status guard below still closes
	// the booked→in-progress transition atomically.
	if ride.OTP != otp {
		return nil, apperrors.ErrInvalidOTP
	}

	updated, err := s.rides.TransitionStatus(ctx, rideID, []models.RideStatus{models.RideStatusBooked}, models.RideStatusInProgress, nil)
	if err != nil {
		return nil, err
	}

	s.logger.WithRideID(rideID).Info("ride started")
	s.broadcaster.NotifyStatusChanged(updated)
	return updated, nil
}

// EndRide completes an in-progress ride. Payment is a separate step.
func (s *rideService) EndRide(ctx context.Context, driverID, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if !ride.IsAssignedDriver(driverID) {
		return nil, apperrors.Unauthorized("Not authorized to end this ride")
	}

	updated, err := s.rides.TransitionStatus(ctx, rideID, []models.RideStatus{models.RideStatusInProgress}, models.RideStatusCompleted, nil)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.ErrNotInProgress
		}
		return nil, err
	}

	s.logger.WithRideID(rideID).Info("ride completed")
	s.broadcaster.NotifyStatusChanged(updated)
	return updated, nil
}

// PayRide marks a completed ride paid and credits a completed ride to both
// participants. The paid guard lives in the store, so a double pay cannot
// double the counters.
func (s *rideService) PayRide(ctx context.Context, riderID, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if ride.RiderID != riderID {
		return nil, apperrors.Unauthorized("Not authorized to pay for this ride")
	}

	updated, err := s.rides.MarkPaid(ctx, rideID)
	if err != nil {
		return nil, err
	}

	participants := []primitive.ObjectID{updated.RiderID}
	if updated.DriverID != nil {
		participants = append(participants, *updated.DriverID)
	}
	if err := s.users.IncrementTotalRides(ctx, participants...); err != nil {
		// Payment is already durable; surface the counter failure rather
		// than pretending the books balance.
		s.logger.WithRideID(rideID).WithError(err).Error("failed to increment ride counters")
		return nil, err
	}

	s.logger.WithRideID(rideID).Info("ride paid")
	s.broadcaster.NotifyStatusChanged(updated)
	return updated, nil
}

// CancelRide is legal for either participant while the ride has not started.
func (s *rideService) CancelRide(ctx context.Context, userID, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if !ride.IsParticipant(userID) {
		return nil, apperrors.Unauthorized("Not authorized to cancel this ride")
	}

	updated, err := s.rides.TransitionStatus(ctx, rideID, models.CancellableStatuses, models.RideStatusCancelled, nil)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.ErrNotCancellable
		}
		return nil, err
	}

	s.logger.WithRideID(rideID).WithUserID(userID).Info("ride cancelled")
	s.broadcaster.NotifyStatusChanged(updated)
	return updated, nil
}

func (s *rideService) GetRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	return s.rides.GetByID(ctx, rideID)
}

func (s *rideService) CurrentRide(ctx context.Context, userID primitive.ObjectID) (*models.Ride, error) {
	return s.rides.FindActiveForUser(ctx, userID)
}

func (s *rideService) PendingRides(ctx context.Context, zone string) ([]*models.Ride, error) {
	if zone == "" {
		return nil, apperrors.Validation("Zone is required")
	}
	return s.rides.FindRequestedByZone(ctx, zone)
}

func (s *rideService) RideHistory(ctx context.Context, userID primitive.ObjectID) ([]*models.Ride, error) {
	return s.rides.ListHistoryForUser(ctx, userID)
}

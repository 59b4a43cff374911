package interfaces

import (
	"context"

	"aarohyatrika/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideRepository is the durable store of ride documents. Every status
// transition goes through a conditional update: the store matches the
// expected prior state and the write in one atomic operation, so two
// concurrent transitions can never both succeed.
type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	// AssignDriver moves a ride from requested/scheduled to booked, setting
	// the driver and OTP. It fails with apperrors.ErrRideTaken when the ride
	// is no longer acceptable or already has a driver.
	AssignDriver(ctx context.Context, id, driverID primitive.ObjectID, otp string) (*models.Ride, error)

	// TransitionStatus updates the ride to status `to` only if its current
	// status is one of `from`, applying extra field updates atomically with
	// the status write. Returns apperrors.ErrConflict when no document
	// matched the guard.
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from []models.RideStatus, to models.RideStatus, updates map[string]interface{}) (*models.Ride, error)

	// MarkPaid flips payment_status to paid, guarded on the ride being
	// completed and still pending. The guard makes double-pay (and the
	// double counter increment it would cause) impossible.
	MarkPaid(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	// FindActiveForUser returns the ride, if any, in which the user is
	// currently a participant and whose status is still active. Freshly
	// reconnected clients call this to resynchronize instead of trusting
	// in-memory state.
	FindActiveForUser(ctx context.Context, userID primitive.ObjectID) (*models.Ride, error)

	// FindRequestedByZone lists requested rides originating in the zone,
	// oldest first.
	FindRequestedByZone(ctx context.Context, zone string) ([]*models.Ride, error)

	// ListHistoryForUser lists every ride the user participated in, newest
	// first.
	ListHistoryForUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Ride, error)
}

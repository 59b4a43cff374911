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

const activeRideCacheTTL = 5 * time.Minute

// Cache is the slice of the redis client the ride repository needs. A nil
// Cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type rideRepository struct {
	collection *mongo.Collection
	cache      Cache
}

func NewRideRepository(db *mongo.Database, cache Cache) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection("rides"),
		cache:      cache,
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	ride.ID = primitive.NewObjectID()
	now := time.Now()
	ride.CreatedAt = now
	ride.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, ride)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	r.cacheRide(ctx, ride)
	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	if ride := r.rideFromCache(ctx, id.Hex()); ride != nil {
		return ride, nil
	}

	var ride models.Ride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("ride")
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	r.cacheRide(ctx, &ride)
	return &ride, nil
}

func (r *rideRepository) AssignDriver(ctx context.Context, id, driverID primitive.ObjectID, otp string) (*models.Ride, error) {
	// The filter carries the whole accept guard: status still acceptable and
	// no driver assigned. Mongo matches and writes atomically, so of N
	// concurrent accepts exactly one finds a matching document.
	filter := bson.M{
		"_id":       id,
		"status":    bson.M{"$in": models.AcceptableStatuses},
		"driver_id": nil,
	}
	update := bson.M{"$set": bson.M{
		"driver_id":  driverID,
		"status":     models.RideStatusBooked,
		"otp":        otp,
		"updated_at": time.Now(),
	}}

	ride, err := r.findOneAndUpdate(ctx, filter, update)
	if err == mongo.ErrNoDocuments {
		// Either the ride is gone or another driver got there first.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.ErrRideTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to assign driver: %w", err)
	}
	return ride, nil
}

func (r *rideRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, from []models.RideStatus, to models.RideStatus, updates map[string]interface{}) (*models.Ride, error) {
	set := bson.M{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		set[k] = v
	}

	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": from},
	}

	ride, err := r.findOneAndUpdate(ctx, filter, bson.M{"$set": set})
	if err == mongo.ErrNoDocuments {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to transition ride status: %w", err)
	}
	return ride, nil
}

func (r *rideRepository) MarkPaid(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	filter := bson.M{
		"_id":            id,
		"status":         models.RideStatusCompleted,
		"payment_status": models.PaymentStatusPending,
	}
	update := bson.M{"$set": bson.M{
		"payment_status": models.PaymentStatusPaid,
		"updated_at":     time.Now(),
	}}

	ride, err := r.findOneAndUpdate(ctx, filter, update)
	if err == mongo.ErrNoDocuments {
		existing, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.PaymentStatus == models.PaymentStatusPaid {
			return nil, apperrors.ErrAlreadyPaid
		}
		return nil, apperrors.ErrNotCompleted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark ride paid: %w", err)
	}
	return ride, nil
}

func (r *rideRepository) FindActiveForUser(ctx context.Context, userID primitive.ObjectID) (*models.Ride, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"rider_id": userID},
			{"driver_id": userID},
		},
		"status": bson.M{"$in": models.ActiveStatuses},
	}

	var ride models.Ride
	err := r.collection.FindOne(ctx, filter).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active ride: %w", err)
	}
	return &ride, nil
}

func (r *rideRepository) FindRequestedByZone(ctx context.Context, zone string) ([]*models.Ride, error) {
	filter := bson.M{
		"status":    models.RideStatusRequested,
		"from_zone": zone,
	}
	opts := options.Find().SetSort(bson.M{"created_at": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find requested rides: %w", err)
	}
	defer cursor.Close(ctx)

	var rides []*models.Ride
	if err := cursor.All(ctx, &rides); err != nil {
		return nil, fmt.Errorf("failed to decode requested rides: %w", err)
	}
	return rides, nil
}

func (r *rideRepository) ListHistoryForUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Ride, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"rider_id": userID},
			{"driver_id": userID},
		},
	}
	opts := options.Find().SetSort(bson.M{"created_at": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list ride history: %w", err)
	}
	defer cursor.Close(ctx)

	var rides []*models.Ride
	if err := cursor.All(ctx, &rides); err != nil {
		return nil, fmt.Errorf("failed to decode ride history: %w", err)
	}
	return rides, nil
}

// findOneAndUpdate runs the conditional update and returns the post-update
// document, invalidating the cache entry on success.
func (r *rideRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Ride, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ride models.Ride
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&ride); err != nil {
		return nil, err
	}

	r.invalidateRideCache(ctx, ride.ID.Hex())
	r.cacheRide(ctx, &ride)
	return &ride, nil
}

func (r *rideRepository) cacheRide(ctx context.Context, ride *models.Ride) {
	if r.cache == nil || ride.Status.Terminal() {
		return
	}
	// Cache failures are invisible to callers; mongo stays authoritative.
	_ = r.cache.Set(ctx, rideCacheKey(ride.ID.Hex()), ride, activeRideCacheTTL)
}

func (r *rideRepository) rideFromCache(ctx context.Context, id string) *models.Ride {
	if r.cache == nil {
		return nil
	}
	var ride models.Ride
	if err := r.cache.Get(ctx, rideCacheKey(id), &ride); err != nil {
		return nil
	}
	return &ride
}

func (r *rideRepository) invalidateRideCache(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx, rideCacheKey(id))
}

func rideCacheKey(id string) string {
	return "ride:" + id
}

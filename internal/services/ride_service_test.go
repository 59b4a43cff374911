package services

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"sync"
	"testing"
	"time"

	"aarohyatrika/internal/apperrors"
	"aarohyatrika/internal/models"
	"aarohyatrika/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memRideRepo implements the ride store with the same conditional-update
// semantics as the mongo repository: guard and write under one lock.
type memRideRepo struct {
	mu    sync.Mutex
	rides map[primitive.ObjectID]*models.Ride
}

func newMemRideRepo() *memRideRepo {
	return &memRideRepo{rides: make(map[primitive.ObjectID]*models.Ride)}
}

func (m *memRideRepo) Create(_ context.Context, ride *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride.ID = primitive.NewObjectID()
	now := time.Now()
	ride.CreatedAt = now
	ride.UpdatedAt = now
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

func (m *memRideRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, apperrors.NotFound("ride")
	}
	copy := *ride
	return &copy, nil
}

func (m *memRideRepo) AssignDriver(_ context.Context, id, driverID primitive.ObjectID, otp string) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, apperrors.NotFound("ride")
	}
	if ride.DriverID != nil || !statusIn(ride.Status, models.AcceptableStatuses) {
		return nil, apperrors.ErrRideTaken
	}
	d := driverID
	ride.DriverID = &d
	ride.Status = models.RideStatusBooked
	ride.OTP = otp
	ride.UpdatedAt = time.Now()
	copy := *ride
	return &copy, nil
}

func (m *memRideRepo) TransitionStatus(_ context.Context, id primitive.ObjectID, from []models.RideStatus, to models.RideStatus, updates map[string]interface{}) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, apperrors.NotFound("ride")
	}
	if !statusIn(ride.Status, from) {
		return nil, apperrors.ErrConflict
	}
	ride.Status = to
	ride.UpdatedAt = time.Now()
	copy := *ride
	return &copy, nil
}

func (m *memRideRepo) MarkPaid(_ context.Context, id primitive.ObjectID) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, apperrors.NotFound("ride")
	}
	if ride.Status != models.RideStatusCompleted {
		return nil, apperrors.ErrNotCompleted
	}
	if ride.PaymentStatus == models.PaymentStatusPaid {
		return nil, apperrors.ErrAlreadyPaid
	}
	ride.PaymentStatus = models.PaymentStatusPaid
	ride.UpdatedAt = time.Now()
	copy := *ride
	return &copy, nil
}

func (m *memRideRepo) FindActiveForUser(_ context.Context, userID primitive.ObjectID) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ride := range m.rides {
		if ride.IsParticipant(userID) && statusIn(ride.Status, models.ActiveStatuses) {
			copy := *ride
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *memRideRepo) FindRequestedByZone(_ context.Context, zone string) ([]*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Ride
	for _, ride := range m.rides {
		if ride.Status == models.RideStatusRequested && ride.FromZone == zone {
			copy := *ride
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *memRideRepo) ListHistoryForUser(_ context.Context, userID primitive.ObjectID) ([]*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Ride
	for _, ride := range m.rides {
		if ride.IsParticipant(userID) {
			copy := *ride
			out = append(out, &copy)
		}
	}
	return out, nil
}

func statusIn(s models.RideStatus, set []models.RideStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

type memUserRepo struct {
	mu         sync.Mutex
	totalRides map[primitive.ObjectID]int
	averages   map[primitive.ObjectID]float64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		totalRides: make(map[primitive.ObjectID]int),
		averages:   make(map[primitive.ObjectID]float64),
	}
}

func (m *memUserRepo) Create(context.Context, *models.User) error { return nil }
func (m *memUserRepo) GetByID(context.Context, primitive.ObjectID) (*models.User, error) {
	return nil, apperrors.NotFound("user")
}
func (m *memUserRepo) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, apperrors.NotFound("user")
}
func (m *memUserRepo) Update(context.Context, primitive.ObjectID, map[string]interface{}) error {
	return nil
}

func (m *memUserRepo) IncrementTotalRides(_ context.Context, ids ...primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.totalRides[id]++
	}
	return nil
}

func (m *memUserRepo) SetAverageRating(_ context.Context, id primitive.ObjectID, average float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.averages[id] = average
	return nil
}

// recordingBroadcaster counts dispatches so tests can assert the losing
// driver never triggers a rideAccepted.
type recordingBroadcaster struct {
	mu            sync.Mutex
	published     int
	accepted      int
	statusChanges int
}

func (b *recordingBroadcaster) PublishRideRequest(*models.Ride) {
	b.mu.Lock()
	b.published++
	b.mu.Unlock()
}

func (b *recordingBroadcaster) NotifyAccepted(*models.Ride) {
	b.mu.Lock()
	b.accepted++
	b.mu.Unlock()
}

func (b *recordingBroadcaster) NotifyStatusChanged(*models.Ride) {
	b.mu.Lock()
	b.statusChanges++
	b.mu.Unlock()
}

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error"})
}

func newTestRideService() (RideService, *memRideRepo, *memUserRepo, *recordingBroadcaster) {
	rides := newMemRideRepo()
	users := newMemUserRepo()
	broadcaster := &recordingBroadcaster{}
	return NewRideService(rides, users, broadcaster, testLogger()), rides, users, broadcaster
}

var otpPattern = regexp.MustCompile(`^\d{4}$`)

func TestRequestRideImmediate(t *testing.T) {
	svc, _, _, broadcaster := newTestRideService()
	rider := primitive.NewObjectID()

	ride, err := svc.RequestRide(context.Background(), rider, &RideRequest{FromZone: "CMRCET", ToZone: "Airport"})
	if err != nil {
		t.Fatalf("RequestRide: %v", err)
	}
	if ride.Status != models.RideStatusRequested {
		t.Errorf("status = %s, want requested", ride.Status)
	}
	if ride.Fare != 400 {
		t.Errorf("fare = %v, want 400", ride.Fare)
	}
	if ride.OTP != "" {
		t.Errorf("otp = %q, want empty before booking", ride.OTP)
	}
	if ride.DriverID != nil {
		t.Error("driver assigned at creation")
	}
	if broadcaster.published != 1 {
		t.Errorf("published = %d, want 1", broadcaster.published)
	}
}

func TestRequestRideScheduled(t *testing.T) {
	svc, _, _, broadcaster := newTestRideService()
	rider := primitive.NewObjectID()
	when := time.Now().Add(2 * time.Hour)

	ride, err := svc.RequestRide(context.Background(), rider, &RideRequest{FromZone: "CMRCET", ToZone: "Airport", ScheduledTime: &when})
	if err != nil {
		t.Fatalf("RequestRide: %v", err)
	}
	if ride.Status != models.RideStatusScheduled {
		t.Errorf("status = %s, want scheduled", ride.Status)
	}
	if broadcaster.published != 0 {
		t.Errorf("scheduled ride broadcast %d times, want 0", broadcaster.published)
	}
}

func TestConcurrentAcceptExactlyOneWins(t *testing.T) {
	svc, _, _, broadcaster := newTestRideService()
	rider := primitive.NewObjectID()

	ride, err := svc.RequestRide(context.Background(), rider, &RideRequest{FromZone: "CMRCET", ToZone: "Airport"})
	if err != nil {
		t.Fatalf("RequestRide: %v", err)
	}

	const drivers = 8
	var wg sync.WaitGroup
	results := make([]error, drivers)
	winners := make([]*models.Ride, drivers)

	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			winners[i], results[i] = svc.AcceptRide(context.Background(), primitive.NewObjectID(), ride.ID)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for i, err := range results {
		switch {
		case err == nil:
			wins++
			booked := winners[i]
			if booked.Status != models.RideStatusBooked {
				t.Errorf("winner status = %s, want booked", booked.Status)
			}
			if booked.DriverID == nil {
				t.Error("winner has no driver assigned")
			}
			if !otpPattern.MatchString(booked.OTP) {
				t.Errorf("otp = %q, want 4 digits", booked.OTP)
			}
		case errors.Is(err, apperrors.ErrRideTaken):
			conflicts++
		default:
			t.Errorf("driver %d: unexpected error %v", i, err)
		}
	}

	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if conflicts != drivers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, drivers-1)
	}
	if broadcaster.accepted != 1 {
		t.Errorf("rideAccepted dispatched %d times, want 1", broadcaster.accepted)
	}
}

// TestOTPInvariant drives random action sequences and checks after every
// step: the OTP is set iff the ride has reached booked or beyond, and once
// set it never changes.
func TestOTPInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for seq := 0; seq < 50; seq++ {
		svc, repo, _, _ := newTestRideService()
		ctx := context.Background()
		rider := primitive.NewObjectID()
		driver := primitive.NewObjectID()

		ride, err := svc.RequestRide(ctx, rider, &RideRequest{FromZone: "Hitech City", ToZone: "Airport"})
		if err != nil {
			t.Fatalf("RequestRide: %v", err)
		}

		firstOTP := ""
		for step := 0; step < 12; step++ {
			switch rng.Intn(5) {
			case 0:
				svc.AcceptRide(ctx, driver, ride.ID)
			case 1:
				current, _ := repo.GetByID(ctx, ride.ID)
				svc.StartRide(ctx, driver, ride.ID, current.OTP)
			case 2:
				svc.EndRide(ctx, driver, ride.ID)
			case 3:
				svc.PayRide(ctx, rider, ride.ID)
			case 4:
				svc.CancelRide(ctx, rider, ride.ID)
			}

			current, err := repo.GetByID(ctx, ride.ID)
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}

			reachedBooked := current.Status != models.RideStatusRequested && current.Status != models.RideStatusScheduled
			if current.Status == models.RideStatusCancelled {
				// Cancelled from requested never had an OTP; cancelled from
				// booked keeps the one it got.
				reachedBooked = current.OTP != ""
			}
			if reachedBooked && !otpPattern.MatchString(current.OTP) {
				t.Fatalf("seq %d step %d: status %s with otp %q", seq, step, current.Status, current.OTP)
			}
			if !reachedBooked && current.OTP != "" {
				t.Fatalf("seq %d step %d: otp set before booking (status %s)", seq, step, current.Status)
			}
			if firstOTP == "" {
				firstOTP = current.OTP
			} else if current.OTP != firstOTP {
				t.Fatalf("seq %d step %d: otp changed from %q to %q", seq, step, firstOTP, current.OTP)
			}
		}
	}
}

func TestStartRideGuards(t *testing.T) {
	svc, _, _, _ := newTestRideService()
	ctx := context.Background()
	rider := primitive.NewObjectID()
	driver := primitive.NewObjectID()

	ride, _ := svc.RequestRide(ctx, rider, &RideRequest{FromZone: "CMRCET", ToZone: "Airport"})

	// Not booked yet: any OTP must fail before the transition is reachable.
	if _, err := svc.StartRide(ctx, driver, ride.ID, "0000"); err == nil {
		t.Fatal("StartRide succeeded before booking")
	}

	booked, err := svc.AcceptRide(ctx, driver, ride.ID)
	if err != nil {
		t.Fatalf("AcceptRide: %v", err)
	}

	if _, err := svc.StartRide(ctx, primitive.NewObjectID(), ride.ID, booked.OTP); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("foreign driver start: err = %v, want unauthorized", err)
	}

	wrong := "0000"
	if wrong == booked.OTP {
		wrong = "0001"
	}
	if _, err := svc.StartRide(ctx, driver, ride.ID, wrong); !errors.Is(err, apperrors.ErrInvalidOTP) {
		t.Errorf("wrong otp: err = %v, want ErrInvalidOTP", err)
	}

	started, err := svc.StartRide(ctx, driver, ride.ID, booked.OTP)
	if err != nil {
		t.Fatalf("StartRide: %v", err)
	}
	if started.Status != models.RideStatusInProgress {
		t.Errorf("status = %s, want in-progress", started.Status)
	}
}

func TestCancelLegality(t *testing.T) {
	ctx := context.Background()

	// Cancel from requested: legal.
	svc, _, _, _ := newTestRideService()
	rider := primitive.NewObjectID()
	ride, _ := svc.RequestRide(ctx, rider, &RideRequest{FromZone: "CMRCET", ToZone: "Airport"})
	if _, err := svc.CancelRide(ctx, rider, ride.ID); err != nil {
		t.Errorf("cancel from requested: %v", err)
	}

	// Cancel from booked, by the driver: legal.
	svc, _, _, _ = newTestRideService()
	rider = primitive.NewObjectID()
	driver := primitive.NewObjectID()
	ride, _ = svc.RequestRide(ctx, rider, &RideRequest{FromZone: "CMRCET", ToZone: "Airport"})
	svc.AcceptRide(ctx, driver, ride.ID)
	if _, err := svc.CancelRide(ctx, driver, ride.ID); err != nil {
		t.Errorf("cancel from booked: %v", err)
	}

	// Cancel from in-progress or completed: conflict.
	svc, repo, _, _ := newTestRideService()
	rider = primitive.NewObjectID()
	driver = primitive.NewObjectID()
	ride, _ = svc.RequestRide(ctx, rider, &RideRequest{FromZone: "CMRCET", ToZone: "Airport"})
	booked, _ := svc.AcceptRide(ctx, driver, ride.ID)
	svc.StartRide(ctx, driver, ride.ID, booked.OTP)
	if _, err := svc.CancelRide(ctx, rider, ride.ID); !errors.Is(err, apperrors.ErrNotCancellable) {
		t.Errorf("cancel from in-progress: err = %v, want ErrNotCancellable", err)
	}
	svc.EndRide(ctx, driver, ride.ID)
	if _, err := svc.CancelRide(ctx, rider, ride.ID); !errors.Is(err, apperrors.ErrNotCancellable) {
		t.Errorf("cancel from completed: err = %v, want ErrNotCancellable", err)
	}

	// A stranger may not cancel at all, regardless of state.
	if _, err := svc.CancelRide(ctx, primitive.NewObjectID(), ride.ID); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("stranger cancel: err = %v, want unauthorized", err)
	}
	current, _ := repo.GetByID(ctx, ride.ID)
	if current.Status != models.RideStatusCompleted {
		t.Fatalf("final status = %s, want completed", current.Status)
	}
}

func TestPayRide(t *testing.T) {
	svc, _, users, _ := newTestRideService()
	ctx := context.Background()
	rider := primitive.NewObjectID()
	driver := primitive.NewObjectID()

	ride, _ := svc.RequestRide(ctx, rider, &RideRequest{FromZone: "Airport", ToZone: "CMRCET"})

	// Pay before completion: rejected.
	if _, err := svc.PayRide(ctx, rider, ride.ID); !errors.Is(err, apperrors.ErrNotCompleted) {
		t.Errorf("pay from requested: err = %v, want ErrNotCompleted", err)
	}

	booked, _ := svc.AcceptRide(ctx, driver, ride.ID)
	svc.StartRide(ctx, driver, ride.ID, booked.OTP)
	svc.EndRide(ctx, driver, ride.ID)

	// Only the rider can pay.
	if _, err := svc.PayRide(ctx, driver, ride.ID); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("driver pay: err = %v, want unauthorized", err)
	}

	paid, err := svc.PayRide(ctx, rider, ride.ID)
	if err != nil {
		t.Fatalf("PayRide: %v", err)
	}
	if paid.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("payment status = %s, want paid", paid.PaymentStatus)
	}
	if users.totalRides[rider] != 1 || users.totalRides[driver] != 1 {
		t.Errorf("totalRides = rider %d, driver %d; want 1 and 1", users.totalRides[rider], users.totalRides[driver])
	}

	// Double pay must not double the counters.
	if _, err := svc.PayRide(ctx, rider, ride.ID); !errors.Is(err, apperrors.ErrAlreadyPaid) {
		t.Errorf("second pay: err = %v, want ErrAlreadyPaid", err)
	}
	if users.totalRides[rider] != 1 || users.totalRides[driver] != 1 {
		t.Errorf("counters changed on rejected pay: rider %d, driver %d", users.totalRides[rider], users.totalRides[driver])
	}
}

// TestFullRideScenario walks the whole happy path with a two-driver race in
// the middle.
func TestFullRideScenario(t *testing.T) {
	svc, _, users, broadcaster := newTestRideService()
	ctx := context.Background()
	rider := primitive.NewObjectID()
	driverA := primitive.NewObjectID()
	driverB := primitive.NewObjectID()

	ride, err := svc.RequestRide(ctx, rider, &RideRequest{FromZone: "CMRCET", ToZone: "Airport"})
	if err != nil {
		t.Fatalf("RequestRide: %v", err)
	}
	if ride.Status != models.RideStatusRequested || ride.Fare != 400 || ride.OTP != "" {
		t.Fatalf("created ride = status %s fare %v otp %q", ride.Status, ride.Fare, ride.OTP)
	}

	type outcome struct {
		ride *models.Ride
		err  error
	}
	results := make(chan outcome, 2)
	for _, d := range []primitive.ObjectID{driverA, driverB} {
		go func(d primitive.ObjectID) {
			r, err := svc.AcceptRide(ctx, d, ride.ID)
			results <- outcome{r, err}
		}(d)
	}

	var booked *models.Ride
	var conflicts int
	for i := 0; i < 2; i++ {
		res := <-results
		if res.err == nil {
			booked = res.ride
		} else if errors.Is(res.err, apperrors.ErrRideTaken) {
			conflicts++
		} else {
			t.Fatalf("accept: %v", res.err)
		}
	}
	if booked == nil || conflicts != 1 {
		t.Fatalf("race outcome: booked=%v conflicts=%d", booked != nil, conflicts)
	}
	if !otpPattern.MatchString(booked.OTP) || booked.DriverID == nil {
		t.Fatalf("booked ride = otp %q driver %v", booked.OTP, booked.DriverID)
	}
	winner := *booked.DriverID

	started, err := svc.StartRide(ctx, winner, ride.ID, booked.OTP)
	if err != nil {
		t.Fatalf("StartRide: %v", err)
	}
	if started.Status != models.RideStatusInProgress {
		t.Fatalf("status = %s, want in-progress", started.Status)
	}

	ended, err := svc.EndRide(ctx, winner, ride.ID)
	if err != nil {
		t.Fatalf("EndRide: %v", err)
	}
	if ended.Status != models.RideStatusCompleted {
		t.Fatalf("status = %s, want completed", ended.Status)
	}

	paid, err := svc.PayRide(ctx, rider, ride.ID)
	if err != nil {
		t.Fatalf("PayRide: %v", err)
	}
	if paid.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", paid.PaymentStatus)
	}
	if users.totalRides[rider] != 1 || users.totalRides[winner] != 1 {
		t.Errorf("totalRides rider %d winner %d, want 1 and 1", users.totalRides[rider], users.totalRides[winner])
	}
	if broadcaster.accepted != 1 {
		t.Errorf("rideAccepted sent %d times, want 1", broadcaster.accepted)
	}
}

func TestCurrentRideResync(t *testing.T) {
	svc, _, _, _ := newTestRideService()
	ctx := context.Background()
	rider := primitive.NewObjectID()
	driver := primitive.NewObjectID()

	if ride, err := svc.CurrentRide(ctx, rider); err != nil || ride != nil {
		t.Fatalf("CurrentRide before any ride = %v, %v", ride, err)
	}

	created, _ := svc.RequestRide(ctx, rider, &RideRequest{FromZone: "CMRCET", ToZone: "Hitech City"})

	active, err := svc.CurrentRide(ctx, rider)
	if err != nil || active == nil || active.ID != created.ID {
		t.Fatalf("CurrentRide after request = %v, %v", active, err)
	}

	booked, _ := svc.AcceptRide(ctx, driver, created.ID)
	if active, _ := svc.CurrentRide(ctx, driver); active == nil || active.ID != created.ID {
		t.Fatal("driver has no current ride after accepting")
	}

	svc.StartRide(ctx, driver, created.ID, booked.OTP)
	svc.EndRide(ctx, driver, created.ID)

	// Completed rides are history, not active state.
	if active, _ := svc.CurrentRide(ctx, rider); active != nil {
		t.Errorf("CurrentRide after completion = %v, want nil", active)
	}
}

func TestScheduledRideNotCurrentUntilAccepted(t *testing.T) {
	svc, _, _, _ := newTestRideService()
	ctx := context.Background()
	rider := primitive.NewObjectID()
	driver := primitive.NewObjectID()
	when := time.Now().Add(3 * time.Hour)

	ride, err := svc.RequestRide(ctx, rider, &RideRequest{FromZone: "CMRCET", ToZone: "Airport", ScheduledTime: &when})
	if err != nil {
		t.Fatalf("RequestRide: %v", err)
	}

	// A future booking does not occupy the rider's current-ride slot.
	if active, err := svc.CurrentRide(ctx, rider); err != nil || active != nil {
		t.Fatalf("CurrentRide with scheduled ride = %v, %v; want nil", active, err)
	}
	history, err := svc.RideHistory(ctx, rider)
	if err != nil || len(history) != 1 {
		t.Fatalf("history = %d rides (%v), want 1", len(history), err)
	}

	// Acceptance makes it the current ride for both participants.
	if _, err := svc.AcceptRide(ctx, driver, ride.ID); err != nil {
		t.Fatalf("AcceptRide: %v", err)
	}
	if active, _ := svc.CurrentRide(ctx, rider); active == nil || active.ID != ride.ID {
		t.Error("rider has no current ride after acceptance")
	}
	if active, _ := svc.CurrentRide(ctx, driver); active == nil || active.ID != ride.ID {
		t.Error("driver has no current ride after acceptance")
	}
}

func TestPendingRidesRequiresZone(t *testing.T) {
	svc, _, _, _ := newTestRideService()
	if _, err := svc.PendingRides(context.Background(), ""); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("empty zone: err = %v, want validation error", err)
	}
}

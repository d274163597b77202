package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/notify"
	"github.com/pointride/dispatch/pkg/logger"
	"github.com/pointride/dispatch/pkg/uuid"
)

type fakeTxm struct{}

func (fakeTxm) Do(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type fakeRides struct {
	rides map[uuid.UUID]*models.Ride
}

func (f *fakeRides) Get(_ context.Context, id uuid.UUID) (*models.Ride, error) {
	r, ok := f.rides[id]
	if !ok {
		return nil, types.ErrRideNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRides) TransitionIfStatus(_ context.Context, id uuid.UUID, from, to types.RideStatus, at time.Time) error {
	r, ok := f.rides[id]
	if !ok || r.Status != from {
		return types.ErrInvalidRideStatus
	}
	r.Status = to
	return nil
}

func (f *fakeRides) MarkCancelled(_ context.Context, id uuid.UUID, reason string, by types.CancelInitiator, at time.Time, expected types.RideStatus) error {
	r, ok := f.rides[id]
	if !ok || !types.CanTransition(r.Status, types.StatusCancelled) {
		return types.ErrRideCannotBeCancelled
	}
	if expected != "" && r.Status != expected {
		return types.ErrRideCannotBeCancelled
	}
	r.Status = types.StatusCancelled
	r.CancelReason = &reason
	r.CancelledBy = by
	r.CancelledAt = &at
	return nil
}

func (f *fakeRides) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.rides[id]; !ok {
		return types.ErrRideNotFound
	}
	delete(f.rides, id)
	return nil
}

type fakeHistory struct {
	records []*models.HistoryRecord
}

func (f *fakeHistory) Insert(_ context.Context, rec *models.HistoryRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeHistory) ExistsForRide(_ context.Context, rideID uuid.UUID) (bool, error) {
	for _, rec := range f.records {
		if rec.RideID == rideID {
			return true, nil
		}
	}
	return false, nil
}

type fakeStats struct {
	riderApplied, driverApplied int
}

func (f *fakeStats) ApplyRider(_ context.Context, _ *models.HistoryRecord) error {
	f.riderApplied++
	return nil
}

func (f *fakeStats) ApplyDriver(_ context.Context, rec *models.HistoryRecord) error {
	if rec.DriverID != nil {
		f.driverApplied++
	}
	return nil
}

type fakeQueue struct {
	statuses map[uuid.UUID]types.QueueStatus
	removed  []uuid.UUID
}

func (f *fakeQueue) UpdateStatus(_ context.Context, rideID uuid.UUID, status types.QueueStatus) {
	if f.statuses == nil {
		f.statuses = make(map[uuid.UUID]types.QueueStatus)
	}
	f.statuses[rideID] = status
}

func (f *fakeQueue) Remove(_ context.Context, rideID uuid.UUID) {
	f.removed = append(f.removed, rideID)
}

type fakePresence struct {
	drivers map[uuid.UUID]*models.DriverPresence
	freed   []uuid.UUID
}

func (f *fakePresence) Get(_ context.Context, driverID uuid.UUID) (*models.DriverPresence, error) {
	p, ok := f.drivers[driverID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return p, nil
}

func (f *fakePresence) SetActiveRide(_ context.Context, driverID uuid.UUID, rideID *uuid.UUID) error {
	if rideID == nil {
		f.freed = append(f.freed, driverID)
	}
	return nil
}

type sentNotification struct {
	aud notify.Audience
	msg any
}

type fakeNotifier struct {
	sent        []sentNotification
	adminEvents []types.EventType
}

func (f *fakeNotifier) Notify(_ context.Context, aud notify.Audience, msg any) {
	f.sent = append(f.sent, sentNotification{aud: aud, msg: msg})
}

func (f *fakeNotifier) NotifyAdmins(_ context.Context, eventType types.EventType, _ uuid.UUID, _ any) {
	f.adminEvents = append(f.adminEvents, eventType)
}

type fixture struct {
	svc      *Service
	rides    *fakeRides
	history  *fakeHistory
	stats    *fakeStats
	queue    *fakeQueue
	presence *fakePresence
	notifier *fakeNotifier
}

func newFixture() *fixture {
	f := &fixture{
		rides:    &fakeRides{rides: make(map[uuid.UUID]*models.Ride)},
		history:  &fakeHistory{},
		stats:    &fakeStats{},
		queue:    &fakeQueue{},
		presence: &fakePresence{drivers: make(map[uuid.UUID]*models.DriverPresence)},
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(
		f.rides, f.history, f.stats, f.queue, f.presence, f.notifier,
		fakeTxm{}, logger.InitLogger("lifecycle-test", logger.LevelError),
	)
	return f
}

func endedRide(driverID uuid.UUID) *models.Ride {
	created := time.Now().Add(-40 * time.Minute)
	accepted := created.Add(2 * time.Minute)
	started := created.Add(10 * time.Minute)
	ended := created.Add(40 * time.Minute)
	settled := 180.0
	return &models.Ride{
		ID:          uuid.New(),
		RideCode:    "RIDE-20260830-001",
		RiderID:     uuid.New(),
		RiderName:   "Asel",
		PickupPoint: "Hauz Khas Gate 1",
		DriverID:    &driverID,
		DriverName:  "Marat",
		DistanceKm:  12,
		FareQuoted:  180,
		FareSettled: &settled,
		Status:      types.StatusRideEnded,
		CreatedAt:   created,
		AcceptedAt:  &accepted,
		StartedAt:   &started,
		EndedAt:     &ended,
	}
}

func TestComplete_ArchivesOnceAndDeletesLiveRecord(t *testing.T) {
	f := newFixture()
	driverID := uuid.New()
	ride := endedRide(driverID)
	f.rides.rides[ride.ID] = ride

	if err := f.svc.Complete(context.Background(), ride.ID, Options{FinalStatus: types.StatusCompleted}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if len(f.history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(f.history.records))
	}
	rec := f.history.records[0]
	if rec.FinalStatus != types.StatusCompleted {
		t.Fatalf("final status = %s, want completed", rec.FinalStatus)
	}
	if rec.FareSettled != 180 {
		t.Fatalf("fare settled = %v, want 180", rec.FareSettled)
	}
	if _, alive := f.rides.rides[ride.ID]; alive {
		t.Fatal("live record still present after completion")
	}
	if f.stats.riderApplied != 1 || f.stats.driverApplied != 1 {
		t.Fatalf("stats applied rider=%d driver=%d, want 1/1", f.stats.riderApplied, f.stats.driverApplied)
	}
	if len(f.presence.freed) != 1 || f.presence.freed[0] != driverID {
		t.Fatalf("driver not freed: %v", f.presence.freed)
	}
	if f.queue.statuses[ride.ID] != types.QueueStatusCompleted {
		t.Fatal("queue entry not marked completed")
	}
	if len(f.notifier.adminEvents) != 1 || f.notifier.adminEvents[0] != types.EventRideCompleted {
		t.Fatalf("admin events = %v", f.notifier.adminEvents)
	}
}

func TestComplete_SecondCallIsNoOp(t *testing.T) {
	f := newFixture()
	ride := endedRide(uuid.New())
	f.rides.rides[ride.ID] = ride

	if err := f.svc.Complete(context.Background(), ride.ID, Options{FinalStatus: types.StatusCompleted}); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	if err := f.svc.Complete(context.Background(), ride.ID, Options{FinalStatus: types.StatusCompleted}); err != nil {
		t.Fatalf("second Complete: %v", err)
	}

	if len(f.history.records) != 1 {
		t.Fatalf("history records = %d, want exactly 1", len(f.history.records))
	}
}

func TestComplete_JourneyStats(t *testing.T) {
	f := newFixture()
	ride := endedRide(uuid.New())
	f.rides.rides[ride.ID] = ride

	if err := f.svc.Complete(context.Background(), ride.ID, Options{FinalStatus: types.StatusCompleted}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	js := f.history.records[0].Journey
	if js.RideDurationMin != 30 {
		t.Fatalf("ride duration = %v, want 30", js.RideDurationMin)
	}
	if js.WaitTimeMin != 8 {
		t.Fatalf("wait time = %v, want 8", js.WaitTimeMin)
	}
	if js.AverageSpeedKmh != 24 {
		t.Fatalf("average speed = %v, want 24 (12km over 30min)", js.AverageSpeedKmh)
	}
}

func TestCancel_FromPending(t *testing.T) {
	f := newFixture()
	ride := &models.Ride{
		ID:        uuid.New(),
		RiderID:   uuid.New(),
		Status:    types.StatusPending,
		CreatedAt: time.Now().Add(-5 * time.Minute),
	}
	f.rides.rides[ride.ID] = ride

	if err := f.svc.Cancel(context.Background(), ride.ID, "changed my mind", types.CancelledByRider); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	rec := f.history.records[0]
	if rec.FinalStatus != types.StatusCancelled {
		t.Fatalf("final status = %s, want cancelled", rec.FinalStatus)
	}
	if rec.CancelReason == nil || *rec.CancelReason != "changed my mind" {
		t.Fatalf("cancel reason = %v", rec.CancelReason)
	}
	if rec.CancelledBy != types.CancelledByRider {
		t.Fatalf("cancelled by = %s, want rider", rec.CancelledBy)
	}
}

func TestComplete_ExpectedStatusGuardsStaleCancels(t *testing.T) {
	f := newFixture()
	driverID := uuid.New()
	ride := &models.Ride{
		ID:        uuid.New(),
		RiderID:   uuid.New(),
		DriverID:  &driverID,
		Status:    types.StatusDriverAssigned,
		CreatedAt: time.Now().Add(-45 * time.Minute),
	}
	f.rides.rides[ride.ID] = ride

	// The caller observed pending, but a driver accepted since then.
	err := f.svc.Complete(context.Background(), ride.ID, Options{
		FinalStatus:    types.StatusCancelled,
		Reason:         "no driver found",
		Initiator:      types.CancelledBySystem,
		ExpectedStatus: types.StatusPending,
	})
	if !errors.Is(err, types.ErrRideCannotBeCancelled) {
		t.Fatalf("err = %v, want ErrRideCannotBeCancelled", err)
	}
	if f.rides.rides[ride.ID].Status != types.StatusDriverAssigned {
		t.Fatalf("ride status = %s, want driver_assigned untouched", f.rides.rides[ride.ID].Status)
	}
	if len(f.history.records) != 0 {
		t.Fatalf("history records = %d, want 0", len(f.history.records))
	}
}

func TestCancel_EndedRideRejected(t *testing.T) {
	f := newFixture()
	ride := endedRide(uuid.New())
	f.rides.rides[ride.ID] = ride

	err := f.svc.Cancel(context.Background(), ride.ID, "too late", types.CancelledByRider)
	if err == nil {
		t.Fatal("expected cancellation of an ended ride to fail")
	}
	if len(f.history.records) != 0 {
		t.Fatalf("history records = %d, want 0", len(f.history.records))
	}
}

func TestComplete_BackfillsDriverInfoFromPresence(t *testing.T) {
	f := newFixture()
	driverID := uuid.New()
	ride := endedRide(driverID)
	ride.DriverName = "" // denormalized fields lost
	f.rides.rides[ride.ID] = ride
	f.presence.drivers[driverID] = &models.DriverPresence{
		DriverID: driverID,
		Name:     "Marat",
		Phone:    "+77001234567",
		Vehicle:  "KZ 123 ABC",
	}

	if err := f.svc.Complete(context.Background(), ride.ID, Options{FinalStatus: types.StatusCompleted}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	rec := f.history.records[0]
	if rec.DriverName != "Marat" || rec.MissingDriverInfo {
		t.Fatalf("backfill failed: name=%q missing=%v", rec.DriverName, rec.MissingDriverInfo)
	}
}

func TestComplete_FlagsMissingDriverInfo(t *testing.T) {
	f := newFixture()
	driverID := uuid.New()
	ride := endedRide(driverID)
	ride.DriverName = ""
	f.rides.rides[ride.ID] = ride // presence store has no such driver

	if err := f.svc.Complete(context.Background(), ride.ID, Options{FinalStatus: types.StatusCompleted}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if !f.history.records[0].MissingDriverInfo {
		t.Fatal("expected MissingDriverInfo to be set")
	}
}

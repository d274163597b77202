package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/lifecycle"
	"github.com/pointride/dispatch/internal/service/notify"
	"github.com/pointride/dispatch/internal/service/otp"
	"github.com/pointride/dispatch/pkg/logger"
	"github.com/pointride/dispatch/pkg/uuid"
)

type fakeRides struct {
	mu       sync.Mutex
	rides    map[uuid.UUID]*models.Ride
	counters map[string]int
}

func newFakeRides() *fakeRides {
	return &fakeRides{
		rides:    make(map[uuid.UUID]*models.Ride),
		counters: make(map[string]int),
	}
}

func (f *fakeRides) Create(_ context.Context, ride *models.Ride) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rides {
		if r.RideCode == ride.RideCode {
			return types.ErrRideCodeTaken
		}
	}
	cp := *ride
	f.rides[ride.ID] = &cp
	return nil
}

func (f *fakeRides) NextCodeNumber(_ context.Context, date string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[date]++
	return f.counters[date], nil
}

// delete emulates the lifecycle moving a completed ride to history.
func (f *fakeRides) delete(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rides, id)
}

func (f *fakeRides) Get(_ context.Context, id uuid.UUID) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rides[id]
	if !ok {
		return nil, types.ErrRideNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRides) GetByCode(_ context.Context, code string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rides {
		if r.RideCode == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, types.ErrRideNotFound
}

func (f *fakeRides) AssignDriverIfPending(_ context.Context, id uuid.UUID, driver models.DriverPresence, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rides[id]
	if !ok || r.Status != types.StatusPending {
		return types.ErrRideNoLongerAvailable
	}
	r.Status = types.StatusDriverAssigned
	r.DriverID = &driver.DriverID
	r.DriverName = driver.Name
	r.DriverPhone = driver.Phone
	r.DriverVehicle = driver.Vehicle
	r.AcceptedAt = &at
	return nil
}

func (f *fakeRides) TransitionIfStatus(_ context.Context, id uuid.UUID, from, to types.RideStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rides[id]
	if !ok || r.Status != from {
		return types.ErrInvalidRideStatus
	}
	r.Status = to
	if to == types.StatusRideStarted {
		r.StartedAt = &at
	}
	return nil
}

func (f *fakeRides) MarkEnded(_ context.Context, id uuid.UUID, fareSettled float64, paymentMethod string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rides[id]
	if !ok || r.Status != types.StatusRideStarted {
		return types.ErrInvalidRideStatus
	}
	r.Status = types.StatusRideEnded
	r.FareSettled = &fareSettled
	r.PaymentMethod = paymentMethod
	r.PaymentStatus = types.PaymentCollected
	r.EndedAt = &at
	return nil
}

func (f *fakeRides) SetQueueAssignment(_ context.Context, id uuid.UUID, qa models.QueueAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rides[id]
	if !ok {
		return types.ErrRideNotFound
	}
	r.QueueNumber = qa.QueueNumber
	r.QueuePosition = qa.QueuePosition
	r.QueueStatus = types.QueueStatusQueued
	return nil
}

func (f *fakeRides) IncrementOTPAttempts(_ context.Context, id uuid.UUID, kind string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rides[id]
	if !ok {
		return 0, types.ErrRideNotFound
	}
	if kind == otp.KindEnd {
		r.EndOTPAttempts++
		return r.EndOTPAttempts, nil
	}
	r.StartOTPAttempts++
	return r.StartOTPAttempts, nil
}

type fakePresence struct {
	mu      sync.Mutex
	drivers map[uuid.UUID]*models.DriverPresence
}

func newFakePresence() *fakePresence {
	return &fakePresence{drivers: make(map[uuid.UUID]*models.DriverPresence)}
}

func (f *fakePresence) SetOnline(_ context.Context, p models.DriverPresence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.drivers[p.DriverID] = &cp
	return nil
}

func (f *fakePresence) SetOffline(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drivers, id)
	return nil
}

func (f *fakePresence) Get(_ context.Context, id uuid.UUID) (*models.DriverPresence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.drivers[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePresence) ListOnline(_ context.Context) ([]models.DriverPresence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.DriverPresence, 0, len(f.drivers))
	for _, p := range f.drivers {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePresence) SetActiveRide(_ context.Context, id uuid.UUID, rideID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.drivers[id]; ok {
		p.ActiveRideID = rideID
	}
	return nil
}

func (f *fakePresence) UpdateLocation(_ context.Context, id uuid.UUID, loc models.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.drivers[id]; ok {
		p.Location = loc
	}
	return nil
}

type fakeQueueAssigner struct {
	mu       sync.Mutex
	assigned []uuid.UUID
	statuses map[uuid.UUID]types.QueueStatus
}

func (f *fakeQueueAssigner) Assign(_ context.Context, pickupPoint string, rideID uuid.UUID) models.QueueAssignment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, rideID)
	return models.QueueAssignment{
		QueueNumber:   "HKG1-20260830-Q001",
		QueuePosition: len(f.assigned),
		TotalQueued:   len(f.assigned),
	}
}

func (f *fakeQueueAssigner) UpdateStatus(_ context.Context, rideID uuid.UUID, status types.QueueStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = make(map[uuid.UUID]types.QueueStatus)
	}
	f.statuses[rideID] = status
}

type notified struct {
	aud notify.Audience
	msg any
}

type fakeNotifier struct {
	mu          sync.Mutex
	sent        []notified
	adminEvents []types.EventType
}

func (f *fakeNotifier) Notify(_ context.Context, aud notify.Audience, msg any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notified{aud: aud, msg: msg})
}

func (f *fakeNotifier) NotifyAdmins(_ context.Context, eventType types.EventType, _ uuid.UUID, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminEvents = append(f.adminEvents, eventType)
}

func (f *fakeNotifier) offers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if _, ok := s.msg.(models.RideOfferMessage); ok {
			n++
		}
	}
	return n
}

type fakeCompleter struct {
	mu        sync.Mutex
	completed []lifecycle.Options
}

func (f *fakeCompleter) Complete(_ context.Context, _ uuid.UUID, opts lifecycle.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, opts)
	return nil
}

func (f *fakeCompleter) Cancel(_ context.Context, rideID uuid.UUID, reason string, by types.CancelInitiator) error {
	return f.Complete(context.Background(), rideID, lifecycle.Options{
		FinalStatus: types.StatusCancelled,
		Reason:      reason,
		Initiator:   by,
	})
}

type fixture struct {
	svc       *Service
	rides     *fakeRides
	presence  *fakePresence
	queue     *fakeQueueAssigner
	notifier  *fakeNotifier
	completer *fakeCompleter
}

func newFixture() *fixture {
	f := &fixture{
		rides:     newFakeRides(),
		presence:  newFakePresence(),
		queue:     &fakeQueueAssigner{},
		notifier:  &fakeNotifier{},
		completer: &fakeCompleter{},
	}
	f.svc = NewService(
		f.rides, f.presence, f.queue, f.notifier, f.completer,
		DefaultConfig(), logger.InitLogger("dispatch-test", logger.LevelError),
	)
	return f
}

func validRequest() CreateRideRequest {
	return CreateRideRequest{
		RiderID:      uuid.New(),
		RiderName:    "Asel",
		RiderPhone:   "+77005556677",
		PickupPoint:  "Hauz Khas Gate 1",
		DropAddress:  "Saket Metro",
		VehicleClass: types.VehicleAuto,
		DistanceKm:   8.5,
		FareQuoted:   150,
	}
}

func onlineDriver(f *fixture, pickupPoint string, class types.VehicleClass) uuid.UUID {
	id := uuid.New()
	_ = f.presence.SetOnline(context.Background(), models.DriverPresence{
		DriverID:     id,
		Name:         "Marat",
		Phone:        "+77001112233",
		Vehicle:      "KZ 123 ABC",
		VehicleClass: class,
		PickupPoint:  pickupPoint,
	})
	return id
}

func TestCreateRide_Validation(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name   string
		mutate func(*CreateRideRequest)
	}{
		{"missing rider", func(r *CreateRideRequest) { r.RiderID = uuid.Nil }},
		{"missing pickup", func(r *CreateRideRequest) { r.PickupPoint = "" }},
		{"missing drop", func(r *CreateRideRequest) { r.DropAddress = "" }},
		{"bad class", func(r *CreateRideRequest) { r.VehicleClass = "helicopter" }},
		{"zero fare", func(r *CreateRideRequest) { r.FareQuoted = 0 }},
		{"zero distance", func(r *CreateRideRequest) { r.DistanceKm = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			_, err := f.svc.CreateRide(context.Background(), req)
			if !errors.Is(err, types.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateRide_PendingWithCodes(t *testing.T) {
	f := newFixture()
	onlineDriver(f, "Hauz Khas Gate 1", types.VehicleAuto)

	ride, err := f.svc.CreateRide(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("CreateRide: %v", err)
	}

	if ride.Status != types.StatusPending {
		t.Fatalf("status = %s, want pending", ride.Status)
	}
	if !strings.HasPrefix(ride.RideCode, "RIDE-") || !strings.HasSuffix(ride.RideCode, "-001") {
		t.Fatalf("ride code = %q", ride.RideCode)
	}
	if len(ride.StartOTP) != 4 || len(ride.EndOTP) != 4 {
		t.Fatalf("otp lengths = %d/%d, want 4/4", len(ride.StartOTP), len(ride.EndOTP))
	}
	if ride.DriverEarnings != 120 { // 150 minus 20% commission
		t.Fatalf("driver earnings = %v, want 120", ride.DriverEarnings)
	}
}

func TestCreateRide_CodesSurviveCompletion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.CreateRide(ctx, validRequest())
	if err != nil {
		t.Fatalf("CreateRide: %v", err)
	}
	second, err := f.svc.CreateRide(ctx, validRequest())
	if err != nil {
		t.Fatalf("CreateRide: %v", err)
	}

	// Completing the first ride removes its live record.
	f.rides.delete(first.ID)

	third, err := f.svc.CreateRide(ctx, validRequest())
	if err != nil {
		t.Fatalf("CreateRide after completion: %v", err)
	}

	if third.RideCode == first.RideCode || third.RideCode == second.RideCode {
		t.Fatalf("ride code reused: %q after %q, %q", third.RideCode, first.RideCode, second.RideCode)
	}
	if !strings.HasSuffix(third.RideCode, "-003") {
		t.Fatalf("sequence rewound: third code = %q", third.RideCode)
	}
}

func TestRideByCode(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.CreateRide(ctx, validRequest())
	if err != nil {
		t.Fatalf("CreateRide: %v", err)
	}

	found, err := f.svc.RideByCode(ctx, created.RideCode)
	if err != nil {
		t.Fatalf("RideByCode: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("looked up wrong ride: got %s, want %s", found.ID, created.ID)
	}

	if _, err := f.svc.RideByCode(ctx, "RIDE-19700101-001"); !errors.Is(err, types.ErrRideNotFound) {
		t.Fatalf("expected ErrRideNotFound for unknown code, got %v", err)
	}
}

func TestCreateRide_RetriesPastTakenCode(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// A live ride already holds the code the counter would issue first.
	day := time.Now().Format("20060102")
	squatter := &models.Ride{ID: uuid.New(), RideCode: "RIDE-" + day + "-001"}
	f.rides.rides[squatter.ID] = squatter

	ride, err := f.svc.CreateRide(ctx, validRequest())
	if err != nil {
		t.Fatalf("CreateRide must survive a code collision: %v", err)
	}
	if !strings.HasSuffix(ride.RideCode, "-002") {
		t.Fatalf("expected the next number after the collision, got %q", ride.RideCode)
	}
}

func TestCreateRide_NoDriversLeavesRidePending(t *testing.T) {
	f := newFixture()

	ride, err := f.svc.CreateRide(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("CreateRide must not fail on empty driver pool: %v", err)
	}

	stored, err := f.rides.Get(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("ride not persisted: %v", err)
	}
	if stored.Status != types.StatusPending {
		t.Fatalf("status = %s, want pending", stored.Status)
	}
}

func TestBroadcastOffer_PickupPointFirstThenWiden(t *testing.T) {
	f := newFixture()
	onlineDriver(f, "Hauz Khas Gate 1", types.VehicleAuto)
	onlineDriver(f, "Hauz Khas Gate 1", types.VehicleBike) // class not filtered
	onlineDriver(f, "Nehru Place", types.VehicleAuto)

	if _, err := f.svc.CreateRide(context.Background(), validRequest()); err != nil {
		t.Fatalf("CreateRide: %v", err)
	}
	if got := f.notifier.offers(); got != 2 {
		t.Fatalf("offers = %d, want 2 (both classes at the pickup point)", got)
	}

	// nobody at the requested point: widen to every free driver
	f2 := newFixture()
	onlineDriver(f2, "Nehru Place", types.VehicleAuto)
	onlineDriver(f2, "Saket", types.VehicleCar)

	if _, err := f2.svc.CreateRide(context.Background(), validRequest()); err != nil {
		t.Fatalf("CreateRide: %v", err)
	}
	if got := f2.notifier.offers(); got != 2 {
		t.Fatalf("widened offers = %d, want 2", got)
	}
}

func TestAcceptRide_AssignsAndQueues(t *testing.T) {
	f := newFixture()
	driverID := onlineDriver(f, "Hauz Khas Gate 1", types.VehicleAuto)
	ride, _ := f.svc.CreateRide(context.Background(), validRequest())

	assigned, qa, err := f.svc.AcceptRide(context.Background(), ride.ID, driverID)
	if err != nil {
		t.Fatalf("AcceptRide: %v", err)
	}

	if assigned.Status != types.StatusDriverAssigned {
		t.Fatalf("status = %s, want driver_assigned", assigned.Status)
	}
	if assigned.DriverName != "Marat" {
		t.Fatalf("driver name = %q", assigned.DriverName)
	}
	if qa.QueueNumber == "" || assigned.QueueNumber != qa.QueueNumber {
		t.Fatalf("queue number not propagated: %q vs %q", qa.QueueNumber, assigned.QueueNumber)
	}

	p, _ := f.presence.Get(context.Background(), driverID)
	if p.ActiveRideID == nil || *p.ActiveRideID != ride.ID {
		t.Fatal("driver presence not marked busy")
	}
}

func TestAcceptRide_RaceHasExactlyOneWinner(t *testing.T) {
	f := newFixture()
	ride, _ := f.svc.CreateRide(context.Background(), validRequest())

	const racers = 8
	drivers := make([]uuid.UUID, racers)
	for i := range drivers {
		drivers[i] = onlineDriver(f, "Hauz Khas Gate 1", types.VehicleAuto)
	}

	var wg sync.WaitGroup
	results := make(chan error, racers)
	for _, id := range drivers {
		wg.Add(1)
		go func(driverID uuid.UUID) {
			defer wg.Done()
			_, _, err := f.svc.AcceptRide(context.Background(), ride.ID, driverID)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, types.ErrRideNoLongerAvailable):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != racers-1 {
		t.Fatalf("wins = %d losses = %d, want 1/%d", wins, losses, racers-1)
	}
}

func TestAcceptRide_OfflineAndBusyDrivers(t *testing.T) {
	f := newFixture()
	ride, _ := f.svc.CreateRide(context.Background(), validRequest())

	if _, _, err := f.svc.AcceptRide(context.Background(), ride.ID, uuid.New()); !errors.Is(err, types.ErrDriverOffline) {
		t.Fatalf("err = %v, want ErrDriverOffline", err)
	}

	busyID := onlineDriver(f, "Hauz Khas Gate 1", types.VehicleAuto)
	other := uuid.New()
	_ = f.presence.SetActiveRide(context.Background(), busyID, &other)
	if _, _, err := f.svc.AcceptRide(context.Background(), ride.ID, busyID); !errors.Is(err, types.ErrDriverBusy) {
		t.Fatalf("err = %v, want ErrDriverBusy", err)
	}
}

func assignedRide(t *testing.T, f *fixture) (*models.Ride, uuid.UUID) {
	t.Helper()
	driverID := onlineDriver(f, "Hauz Khas Gate 1", types.VehicleAuto)
	ride, err := f.svc.CreateRide(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("CreateRide: %v", err)
	}
	if _, _, err := f.svc.AcceptRide(context.Background(), ride.ID, driverID); err != nil {
		t.Fatalf("AcceptRide: %v", err)
	}
	return ride, driverID
}

func TestVerifyStartOTP(t *testing.T) {
	f := newFixture()
	ride, _ := assignedRide(t, f)
	stored, _ := f.rides.Get(context.Background(), ride.ID)

	if err := f.svc.VerifyStartOTP(context.Background(), ride.ID, "wrong"); !errors.Is(err, types.ErrInvalidOTP) {
		t.Fatalf("err = %v, want ErrInvalidOTP", err)
	}

	if err := f.svc.VerifyStartOTP(context.Background(), ride.ID, stored.StartOTP); err != nil {
		t.Fatalf("VerifyStartOTP: %v", err)
	}

	after, _ := f.rides.Get(context.Background(), ride.ID)
	if after.Status != types.StatusRideStarted {
		t.Fatalf("status = %s, want ride_started", after.Status)
	}
	if f.queue.statuses[ride.ID] != types.QueueStatusInProgress {
		t.Fatal("queue entry not marked in_progress")
	}
}

func TestVerifyStartOTP_AttemptsExhausted(t *testing.T) {
	f := newFixture()
	ride, _ := assignedRide(t, f)

	for i := 0; i < otp.MaxAttempts; i++ {
		if err := f.svc.VerifyStartOTP(context.Background(), ride.ID, "0000x"); !errors.Is(err, types.ErrInvalidOTP) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidOTP", i+1, err)
		}
	}

	stored, _ := f.rides.Get(context.Background(), ride.ID)
	err := f.svc.VerifyStartOTP(context.Background(), ride.ID, stored.StartOTP)
	if !errors.Is(err, types.ErrOTPAttemptsExhausted) {
		t.Fatalf("err = %v, want ErrOTPAttemptsExhausted (correct code after limit)", err)
	}
}

func TestVerifyEndOTP_RequiresConsumedStartCode(t *testing.T) {
	f := newFixture()
	ride, _ := assignedRide(t, f)
	stored, _ := f.rides.Get(context.Background(), ride.ID)

	err := f.svc.VerifyEndOTP(context.Background(), ride.ID, stored.EndOTP, "")
	if !errors.Is(err, types.ErrStartOTPNotConsumed) {
		t.Fatalf("err = %v, want ErrStartOTPNotConsumed", err)
	}
}

func TestVerifyEndOTP_SettlesAndCompletes(t *testing.T) {
	f := newFixture()
	ride, _ := assignedRide(t, f)
	stored, _ := f.rides.Get(context.Background(), ride.ID)

	if err := f.svc.VerifyStartOTP(context.Background(), ride.ID, stored.StartOTP); err != nil {
		t.Fatalf("VerifyStartOTP: %v", err)
	}
	if err := f.svc.VerifyEndOTP(context.Background(), ride.ID, stored.EndOTP, ""); err != nil {
		t.Fatalf("VerifyEndOTP: %v", err)
	}

	after, _ := f.rides.Get(context.Background(), ride.ID)
	if after.Status != types.StatusRideEnded {
		t.Fatalf("status = %s, want ride_ended", after.Status)
	}
	if after.FareSettled == nil || *after.FareSettled != stored.FareQuoted {
		t.Fatalf("fare settled = %v, want quoted %v", after.FareSettled, stored.FareQuoted)
	}
	if after.PaymentMethod != "cash" {
		t.Fatalf("payment method = %q, want cash default", after.PaymentMethod)
	}

	if len(f.completer.completed) != 1 || f.completer.completed[0].FinalStatus != types.StatusCompleted {
		t.Fatalf("completer calls = %+v, want one completion", f.completer.completed)
	}
}

func TestCancelRide_RiderWindowClosesAtStart(t *testing.T) {
	f := newFixture()
	ride, _ := assignedRide(t, f)
	stored, _ := f.rides.Get(context.Background(), ride.ID)
	if err := f.svc.VerifyStartOTP(context.Background(), ride.ID, stored.StartOTP); err != nil {
		t.Fatalf("VerifyStartOTP: %v", err)
	}

	err := f.svc.CancelRide(context.Background(), ride.ID, "waited too long", types.CancelledByRider)
	if !errors.Is(err, types.ErrRideCannotBeCancelled) {
		t.Fatalf("err = %v, want ErrRideCannotBeCancelled for rider", err)
	}

	// the driver still can
	if err := f.svc.CancelRide(context.Background(), ride.ID, "rider absent", types.CancelledByDriver); err != nil {
		t.Fatalf("driver cancel: %v", err)
	}
	if len(f.completer.completed) != 1 {
		t.Fatalf("completer calls = %d, want 1", len(f.completer.completed))
	}
}

func TestCreateManualRide_EligibilityChecks(t *testing.T) {
	f := newFixture()

	// wrong vehicle class
	carID := onlineDriver(f, "Hauz Khas Gate 1", types.VehicleCar)
	_, err := f.svc.CreateManualRide(context.Background(), validRequest(), &carID)
	if !errors.Is(err, types.ErrDriverNotEligible) {
		t.Fatalf("err = %v, want ErrDriverNotEligible", err)
	}

	// wrong pickup point
	farID := onlineDriver(f, "Nehru Place", types.VehicleAuto)
	_, err = f.svc.CreateManualRide(context.Background(), validRequest(), &farID)
	if !errors.Is(err, types.ErrDriverNotEligible) {
		t.Fatalf("err = %v, want ErrDriverNotEligible", err)
	}

	// undeclared pickup point is tolerated
	looseID := onlineDriver(f, "", types.VehicleAuto)
	ride, err := f.svc.CreateManualRide(context.Background(), validRequest(), &looseID)
	if err != nil {
		t.Fatalf("CreateManualRide: %v", err)
	}
	if ride.Status != types.StatusDriverAssigned {
		t.Fatalf("status = %s, want driver_assigned", ride.Status)
	}
}

func TestDriverLocation_ForwardedToRiderWhileAssigned(t *testing.T) {
	f := newFixture()
	ride, driverID := assignedRide(t, f)

	before := len(f.notifier.sent)
	loc := models.Location{Latitude: 28.55, Longitude: 77.2}
	if err := f.svc.DriverLocation(context.Background(), driverID, loc); err != nil {
		t.Fatalf("DriverLocation: %v", err)
	}

	found := false
	for _, n := range f.notifier.sent[before:] {
		if m, ok := n.msg.(models.DriverLocationMessage); ok && m.RideID == ride.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("location not forwarded to the rider")
	}
}

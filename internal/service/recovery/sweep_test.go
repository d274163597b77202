package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/lifecycle"
	"github.com/pointride/dispatch/pkg/logger"
	"github.com/pointride/dispatch/pkg/uuid"
)

type fakeRides struct {
	rides map[uuid.UUID]*models.Ride

	// afterScan runs once after the next FindStuck, emulating a client
	// transition landing between the scan and the recovery action.
	afterScan func()
}

func (f *fakeRides) FindStuck(_ context.Context, status types.RideStatus, cutoff time.Time) ([]*models.Ride, error) {
	var out []*models.Ride
	for _, r := range f.rides {
		if r.Status != status {
			continue
		}
		var since time.Time
		switch status {
		case types.StatusPending:
			since = r.CreatedAt
		case types.StatusDriverAssigned:
			since = *r.AcceptedAt
		case types.StatusRideStarted:
			since = *r.StartedAt
		case types.StatusRideEnded:
			since = *r.EndedAt
		}
		if since.Before(cutoff) {
			cp := *r
			out = append(out, &cp)
		}
	}
	if f.afterScan != nil {
		hook := f.afterScan
		f.afterScan = nil
		hook()
	}
	return out, nil
}

func (f *fakeRides) MarkEnded(_ context.Context, id uuid.UUID, fareSettled float64, paymentMethod string, at time.Time) error {
	r, ok := f.rides[id]
	if !ok || r.Status != types.StatusRideStarted {
		return types.ErrInvalidRideStatus
	}
	r.Status = types.StatusRideEnded
	r.FareSettled = &fareSettled
	r.PaymentMethod = paymentMethod
	r.EndedAt = &at
	return nil
}

type finalized struct {
	rideID uuid.UUID
	opts   lifecycle.Options
}

type fakeCompleter struct {
	rides *fakeRides
	calls []finalized
}

func (f *fakeCompleter) Complete(_ context.Context, rideID uuid.UUID, opts lifecycle.Options) error {
	r, ok := f.rides.rides[rideID]
	if !ok {
		return nil
	}
	if opts.FinalStatus == types.StatusCancelled {
		if !types.CanTransition(r.Status, types.StatusCancelled) {
			return types.ErrRideCannotBeCancelled
		}
		if opts.ExpectedStatus != "" && r.Status != opts.ExpectedStatus {
			return types.ErrRideCannotBeCancelled
		}
	}
	delete(f.rides.rides, rideID)
	f.calls = append(f.calls, finalized{rideID: rideID, opts: opts})
	return nil
}

func newSweeper() (*Sweeper, *fakeRides, *fakeCompleter) {
	rides := &fakeRides{rides: make(map[uuid.UUID]*models.Ride)}
	completer := &fakeCompleter{rides: rides}
	sw := NewSweeper(rides, completer, DefaultConfig(), logger.InitLogger("recovery-test", logger.LevelError))
	return sw, rides, completer
}

func addRide(rides *fakeRides, status types.RideStatus, age time.Duration) uuid.UUID {
	at := time.Now().Add(-age)
	r := &models.Ride{
		ID:         uuid.New(),
		RideCode:   "RIDE-20260830-007",
		RiderID:    uuid.New(),
		Status:     status,
		FareQuoted: 120,
		CreatedAt:  at,
	}
	switch status {
	case types.StatusDriverAssigned:
		r.AcceptedAt = &at
	case types.StatusRideStarted:
		r.StartedAt = &at
	case types.StatusRideEnded:
		r.EndedAt = &at
	}
	rides.rides[r.ID] = r
	return r.ID
}

func reasonFor(t *testing.T, c *fakeCompleter, id uuid.UUID) lifecycle.Options {
	t.Helper()
	for _, call := range c.calls {
		if call.rideID == id {
			return call.opts
		}
	}
	t.Fatalf("ride %s was not finalized", id)
	return lifecycle.Options{}
}

func TestSweep_CancelsAbandonedPending(t *testing.T) {
	sw, rides, completer := newSweeper()
	stale := addRide(rides, types.StatusPending, 45*time.Minute)
	fresh := addRide(rides, types.StatusPending, 5*time.Minute)

	sw.Sweep(context.Background())

	opts := reasonFor(t, completer, stale)
	if opts.FinalStatus != types.StatusCancelled || opts.Reason != "no driver found" {
		t.Fatalf("opts = %+v", opts)
	}
	if opts.Initiator != types.CancelledBySystem {
		t.Fatalf("initiator = %s, want system", opts.Initiator)
	}
	if opts.ExpectedStatus != types.StatusPending {
		t.Fatalf("expected status = %s, want pending", opts.ExpectedStatus)
	}
	if _, alive := rides.rides[fresh]; !alive {
		t.Fatal("fresh pending ride was swept")
	}
}

func TestSweep_SparesRideAcceptedDuringScan(t *testing.T) {
	sw, rides, completer := newSweeper()
	stale := addRide(rides, types.StatusPending, 45*time.Minute)

	// A driver's accept lands right after the scan sees the ride as pending.
	rides.afterScan = func() {
		driverID := uuid.New()
		r := rides.rides[stale]
		r.Status = types.StatusDriverAssigned
		r.DriverID = &driverID
		now := time.Now()
		r.AcceptedAt = &now
	}

	sw.Sweep(context.Background())

	r, alive := rides.rides[stale]
	if !alive {
		t.Fatal("ride accepted during the sweep was cancelled anyway")
	}
	if r.Status != types.StatusDriverAssigned {
		t.Fatalf("status = %s, want driver_assigned", r.Status)
	}
	for _, call := range completer.calls {
		if call.rideID == stale {
			t.Fatalf("ride was finalized with %+v", call.opts)
		}
	}
}

func TestSweep_CancelsNeverStartedAssignments(t *testing.T) {
	sw, rides, completer := newSweeper()
	stale := addRide(rides, types.StatusDriverAssigned, 20*time.Minute)
	fresh := addRide(rides, types.StatusDriverAssigned, 10*time.Minute)

	sw.Sweep(context.Background())

	opts := reasonFor(t, completer, stale)
	if opts.Reason != "driver did not start" {
		t.Fatalf("reason = %q", opts.Reason)
	}
	if _, alive := rides.rides[fresh]; !alive {
		t.Fatal("fresh assignment was swept")
	}
}

func TestSweep_ForceEndsOverlongRides(t *testing.T) {
	sw, rides, completer := newSweeper()
	stale := addRide(rides, types.StatusRideStarted, 90*time.Minute)

	sw.Sweep(context.Background())

	opts := reasonFor(t, completer, stale)
	if opts.FinalStatus != types.StatusCompleted {
		t.Fatalf("final status = %s, want completed (not cancelled)", opts.FinalStatus)
	}
}

func TestSweep_CompletesAbandonedEndedRides(t *testing.T) {
	sw, rides, completer := newSweeper()
	stale := addRide(rides, types.StatusRideEnded, 90*time.Minute)

	sw.Sweep(context.Background())

	opts := reasonFor(t, completer, stale)
	if opts.FinalStatus != types.StatusCompleted || opts.Reason != "payment collection timeout" {
		t.Fatalf("opts = %+v", opts)
	}
}

func TestSweep_EmptyTableIsQuiet(t *testing.T) {
	sw, _, completer := newSweeper()
	sw.Sweep(context.Background())
	if len(completer.calls) != 0 {
		t.Fatalf("calls = %d, want 0", len(completer.calls))
	}
}

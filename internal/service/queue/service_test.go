package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/pkg/logger"
	"github.com/pointride/dispatch/pkg/uuid"
)

type fakeTxm struct{}

func (fakeTxm) Do(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type fakeLedger struct {
	counters map[string]int
	entries  map[uuid.UUID]models.QueueEntry
	fail     bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		counters: make(map[string]int),
		entries:  make(map[uuid.UUID]models.QueueEntry),
	}
}

func (f *fakeLedger) NextNumber(_ context.Context, _, pickupCode, date string) (int, error) {
	if f.fail {
		return 0, errors.New("ledger down")
	}
	key := pickupCode + "|" + date
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeLedger) AddEntry(_ context.Context, pickupCode, date string, entry models.QueueEntry) (int, error) {
	if f.fail {
		return 0, errors.New("ledger down")
	}
	f.entries[entry.RideID] = entry
	queued := 0
	for _, e := range f.entries {
		if e.Status == types.QueueStatusQueued {
			queued++
		}
	}
	return queued, nil
}

func (f *fakeLedger) UpdateEntryStatus(_ context.Context, rideID uuid.UUID, status types.QueueStatus) error {
	e, ok := f.entries[rideID]
	if !ok {
		return types.ErrQueueNotFound
	}
	e.Status = status
	f.entries[rideID] = e
	return nil
}

func (f *fakeLedger) RemoveEntry(_ context.Context, rideID uuid.UUID) error {
	delete(f.entries, rideID)
	return nil
}

func (f *fakeLedger) GetLedger(_ context.Context, pickupCode, date string) (*models.QueueLedger, error) {
	if f.fail {
		return nil, errors.New("ledger down")
	}
	key := pickupCode + "|" + date
	counter, ok := f.counters[key]
	if !ok {
		return nil, types.ErrQueueNotFound
	}
	return &models.QueueLedger{
		PickupCode: pickupCode,
		Date:       date,
		Counter:    counter,
	}, nil
}

func newTestService(repo LedgerRepo) *Service {
	svc := NewService(repo, fakeTxm{}, logger.InitLogger("queue-test", logger.LevelError), 5)
	svc.now = func() time.Time {
		return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestAssignSequencesPerDay(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	ctx := context.Background()

	first := svc.Assign(ctx, "Hauz Khas Gate 1", uuid.New())
	if first.QueueNumber != "HKG1-20250615-Q001" {
		t.Fatalf("unexpected first number %q", first.QueueNumber)
	}
	if first.QueuePosition != 1 || first.EstimatedWaitMin != 5 {
		t.Fatalf("unexpected first assignment %+v", first)
	}
	if first.Degraded {
		t.Fatal("healthy ledger must not degrade")
	}

	second := svc.Assign(ctx, "hauz khas gate-1", uuid.New())
	if second.QueueNumber != "HKG1-20250615-Q002" {
		t.Fatalf("unexpected second number %q", second.QueueNumber)
	}
	if second.QueuePosition != 2 || second.EstimatedWaitMin != 10 {
		t.Fatalf("unexpected second assignment %+v", second)
	}
}

func TestAssignSeparateLedgersPerPoint(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	ctx := context.Background()

	svc.Assign(ctx, "Hauz Khas Gate 1", uuid.New())
	other := svc.Assign(ctx, "Mehrauli Gate", uuid.New())

	if !strings.HasPrefix(other.QueueNumber, "MG-") {
		t.Fatalf("expected Mehrauli ledger code, got %q", other.QueueNumber)
	}
	if !strings.HasSuffix(other.QueueNumber, "-Q001") {
		t.Fatalf("counters must not be shared across points: %q", other.QueueNumber)
	}
}

func TestAssignDegradedFallback(t *testing.T) {
	ledger := newFakeLedger()
	ledger.fail = true
	svc := newTestService(ledger)

	qa := svc.Assign(context.Background(), "Hauz Khas Gate 1", uuid.New())
	if !qa.Degraded {
		t.Fatal("expected degraded assignment when the ledger is down")
	}
	if !strings.HasPrefix(qa.QueueNumber, "HKG1-") {
		t.Fatalf("degraded number keeps the point code: %q", qa.QueueNumber)
	}
	if qa.QueuePosition != 1 || qa.EstimatedWaitMin != 5 {
		t.Fatalf("unexpected degraded assignment %+v", qa)
	}
}

func TestUpdateStatusAndRemoveNeverPropagate(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	ctx := context.Background()

	rideID := uuid.New()
	svc.Assign(ctx, "Hauz Khas Gate 1", rideID)

	svc.UpdateStatus(ctx, rideID, types.QueueStatusInProgress)
	if got := ledger.entries[rideID].Status; got != types.QueueStatusInProgress {
		t.Fatalf("entry status = %s", got)
	}

	// Unknown ride: logged, not panicked, no error surface.
	svc.UpdateStatus(ctx, uuid.New(), types.QueueStatusCompleted)

	svc.Remove(ctx, rideID)
	if _, ok := ledger.entries[rideID]; ok {
		t.Fatal("entry still present after Remove")
	}
}

func TestLedgerReportsTodaysCounts(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	ctx := context.Background()

	svc.Assign(ctx, "Hauz Khas Gate 1", uuid.New())
	svc.Assign(ctx, "Hauz Khas Gate 1", uuid.New())

	got, err := svc.Ledger(ctx, "hauz khas gate-1")
	if err != nil {
		t.Fatalf("Ledger: %v", err)
	}
	if got.PickupCode != "HKG1" || got.Date != "20250615" {
		t.Fatalf("wrong ledger selected: %+v", got)
	}
	if got.Counter != 2 {
		t.Fatalf("counter = %d, want 2", got.Counter)
	}

	if _, err := svc.Ledger(ctx, "Mehrauli Gate"); !errors.Is(err, types.ErrQueueNotFound) {
		t.Fatalf("expected ErrQueueNotFound for an untouched point, got %v", err)
	}
}

func TestDateRollsTheLedger(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger)
	ctx := context.Background()

	svc.Assign(ctx, "Hauz Khas Gate 1", uuid.New())

	svc.now = func() time.Time {
		return time.Date(2025, 6, 16, 0, 1, 0, 0, time.UTC)
	}
	next := svc.Assign(ctx, "Hauz Khas Gate 1", uuid.New())
	if want := fmt.Sprintf("HKG1-%s-Q001", "20250616"); next.QueueNumber != want {
		t.Fatalf("new day must restart at Q001, got %q", next.QueueNumber)
	}
}

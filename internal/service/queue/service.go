// Package queue owns the per-pickup-point daily sequence: issuing queue
// numbers, tracking entry sub-status and degrading gracefully when the
// ledger store is unavailable.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/match"
	"github.com/pointride/dispatch/pkg/logger"
	wrap "github.com/pointride/dispatch/pkg/logger/wrapper"
	"github.com/pointride/dispatch/pkg/metrics"
	"github.com/pointride/dispatch/pkg/trm"
	"github.com/pointride/dispatch/pkg/uuid"
)

const dateLayout = "20060102"

type Service struct {
	repo           LedgerRepo
	trm            trm.TxManager
	log            logger.Logger
	minutesPerRide int
	now            func() time.Time
}

func NewService(repo LedgerRepo, txm trm.TxManager, log logger.Logger, minutesPerRide int) *Service {
	return &Service{
		repo:           repo,
		trm:            txm,
		log:            log,
		minutesPerRide: minutesPerRide,
		now:            time.Now,
	}
}

// Assign issues the next queue number for the pickup point's daily ledger.
// On any ledger write failure a locally synthesized, non-sequential number
// is returned instead so assignment is never blocked on the ledger.
func (s *Service) Assign(ctx context.Context, pickupPoint string, rideID uuid.UUID) models.QueueAssignment {
	ctx = wrap.WithAction(wrap.WithPickupPoint(ctx, pickupPoint), "queue_assign")

	code := match.PointCode(pickupPoint)
	date := s.now().Format(dateLayout)

	var qa models.QueueAssignment
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		counter, err := s.repo.NextNumber(ctx, pickupPoint, code, date)
		if err != nil {
			return err
		}

		number := fmt.Sprintf("%s-%s-Q%03d", code, date, counter)

		entry := models.QueueEntry{
			RideID:      rideID,
			QueueNumber: number,
			Status:      types.QueueStatusQueued,
		}
		queued, err := s.repo.AddEntry(ctx, code, date, entry)
		if err != nil {
			return err
		}

		qa = models.QueueAssignment{
			QueueNumber:      number,
			QueuePosition:    queued,
			TotalQueued:      queued,
			EstimatedWaitMin: queued * s.minutesPerRide,
		}
		return nil
	})
	if err != nil {
		s.log.Warn(ctx, "ledger write failed, issuing degraded queue number", "err", err.Error())
		metrics.QueueFallbacksTotal.Inc()
		return s.fallback(code)
	}

	return qa
}

// fallback synthesizes a degraded queue number from the wall clock.
func (s *Service) fallback(code string) models.QueueAssignment {
	suffix := s.now().UnixMilli() % 1_000_000
	return models.QueueAssignment{
		QueueNumber:      fmt.Sprintf("%s-%06d", code, suffix),
		QueuePosition:    1,
		TotalQueued:      1,
		EstimatedWaitMin: s.minutesPerRide,
		Degraded:         true,
	}
}

// UpdateStatus mutates an active entry's sub-status. Ledger failures are
// logged, never propagated: queue bookkeeping must not fail a transition.
func (s *Service) UpdateStatus(ctx context.Context, rideID uuid.UUID, status types.QueueStatus) {
	ctx = wrap.WithAction(wrap.WithRideID(ctx, rideID.String()), "queue_update_status")

	if err := s.repo.UpdateEntryStatus(ctx, rideID, status); err != nil {
		s.log.Warn(ctx, "failed to update queue entry", "status", status, "err", err.Error())
	}
}

// Ledger reports the pickup point's state for today: how many numbers were
// issued, how many rides were served and which number is being served now.
func (s *Service) Ledger(ctx context.Context, pickupPoint string) (*models.QueueLedger, error) {
	const op = "Queue.Ledger"
	ctx = wrap.WithAction(wrap.WithPickupPoint(ctx, pickupPoint), "queue_ledger")

	code := match.PointCode(pickupPoint)
	ledger, err := s.repo.GetLedger(ctx, code, s.now().Format(dateLayout))
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return ledger, nil
}

// Remove drops a ride from the active list (cancellations, completions).
func (s *Service) Remove(ctx context.Context, rideID uuid.UUID) {
	ctx = wrap.WithAction(wrap.WithRideID(ctx, rideID.String()), "queue_remove")

	if err := s.repo.RemoveEntry(ctx, rideID); err != nil {
		s.log.Warn(ctx, "failed to remove queue entry", "err", err.Error())
	}
}

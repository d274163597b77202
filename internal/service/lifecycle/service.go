// Package lifecycle is the single choke point through which every ride
// leaves the live table. One call archives the ride into history, updates
// the rolling stats, cleans the queue ledger and the driver's presence, and
// notifies everyone. Whatever initiated the terminal transition (OTP
// verification, a cancel request, the recovery sweep, an admin override)
// ends up here.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/notify"
	"github.com/pointride/dispatch/pkg/logger"
	wrap "github.com/pointride/dispatch/pkg/logger/wrapper"
	"github.com/pointride/dispatch/pkg/metrics"
	"github.com/pointride/dispatch/pkg/trm"
	"github.com/pointride/dispatch/pkg/uuid"
)

// Options describe the terminal transition being finalized.
type Options struct {
	FinalStatus types.RideStatus // completed or cancelled
	Reason      string
	Initiator   types.CancelInitiator

	// ExpectedStatus, when set, restricts a cancellation to rides still in
	// that status. The recovery sweep sets it to the status it observed, so
	// a ride a driver accepts between the scan and the cancel is left alone.
	ExpectedStatus types.RideStatus
}

type Service struct {
	rides    RideRepo
	history  HistoryRepo
	stats    StatsRepo
	queue    QueueUpdater
	presence Presence
	notifier Notifier
	trm      trm.TxManager
	log      logger.Logger

	now func() time.Time
}

func NewService(
	rides RideRepo,
	history HistoryRepo,
	stats StatsRepo,
	queue QueueUpdater,
	presence Presence,
	notifier Notifier,
	txm trm.TxManager,
	log logger.Logger,
) *Service {
	return &Service{
		rides:    rides,
		history:  history,
		stats:    stats,
		queue:    queue,
		presence: presence,
		notifier: notifier,
		trm:      txm,
		log:      log,
		now:      time.Now,
	}
}

// Complete finalizes a ride into the given terminal status. Idempotent: a
// ride that already has a history record (or no live record at all) is a
// no-op, so a sweep racing a client-driven completion cannot archive twice.
// The archive write, stats update and live-record delete commit atomically;
// notifications go out only after the commit.
func (s *Service) Complete(ctx context.Context, rideID uuid.UUID, opts Options) error {
	const op = "Lifecycle.Complete"
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "complete_ride"), rideID.String())

	if !opts.FinalStatus.IsTerminal() {
		return fmt.Errorf("%s: %s is not a terminal status", op, opts.FinalStatus)
	}

	var (
		rec      *models.HistoryRecord
		driverID *uuid.UUID
	)

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := s.rides.Get(ctx, rideID)
		if err != nil {
			if errors.Is(err, types.ErrRideNotFound) {
				return nil // already archived or never existed
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		archived, err := s.history.ExistsForRide(ctx, rideID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if archived {
			// history exists but the live record lingered; finish the cleanup
			if err := s.rides.Delete(ctx, rideID); err != nil && !errors.Is(err, types.ErrRideNotFound) {
				return fmt.Errorf("%s: %w", op, err)
			}
			return nil
		}

		now := s.now()

		if ride.Status != opts.FinalStatus {
			if opts.FinalStatus == types.StatusCancelled {
				if err := s.rides.MarkCancelled(ctx, rideID, opts.Reason, opts.Initiator, now, opts.ExpectedStatus); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
				ride.CancelledAt = &now
				ride.CancelReason = &opts.Reason
				ride.CancelledBy = opts.Initiator
			} else {
				if err := s.rides.TransitionIfStatus(ctx, rideID, ride.Status, types.StatusCompleted, now); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
				ride.CompletedAt = &now
			}
			ride.Status = opts.FinalStatus
		}

		rec = s.buildRecord(ctx, ride, now)

		if err := s.history.Insert(ctx, rec); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := s.stats.ApplyRider(ctx, rec); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := s.stats.ApplyDriver(ctx, rec); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := s.rides.Delete(ctx, rideID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		driverID = ride.DriverID
		return nil
	})
	if err != nil {
		return wrap.Error(ctx, err)
	}
	if rec == nil {
		return nil
	}

	s.afterCommit(ctx, rec, driverID, opts)
	return nil
}

// Cancel is Complete with the cancelled terminal status.
func (s *Service) Cancel(ctx context.Context, rideID uuid.UUID, reason string, by types.CancelInitiator) error {
	return s.Complete(ctx, rideID, Options{
		FinalStatus: types.StatusCancelled,
		Reason:      reason,
		Initiator:   by,
	})
}

// buildRecord snapshots the live ride into the archive shape, backfilling
// driver display fields from presence when the live record is missing them.
func (s *Service) buildRecord(ctx context.Context, ride *models.Ride, completedAt time.Time) *models.HistoryRecord {
	rec := &models.HistoryRecord{
		ID:       uuid.New(),
		RideID:   ride.ID,
		RideCode: ride.RideCode,

		RiderID:    ride.RiderID,
		RiderName:  ride.RiderName,
		RiderPhone: ride.RiderPhone,

		DriverID:      ride.DriverID,
		DriverName:    ride.DriverName,
		DriverPhone:   ride.DriverPhone,
		DriverVehicle: ride.DriverVehicle,

		PickupPoint:  ride.PickupPoint,
		DropAddress:  ride.DropAddress,
		VehicleClass: ride.VehicleClass,
		DistanceKm:   ride.DistanceKm,

		FareQuoted:     ride.FareQuoted,
		DriverEarnings: ride.DriverEarnings,

		FinalStatus:  ride.Status,
		CancelReason: ride.CancelReason,
		CancelledBy:  ride.CancelledBy,

		QueueNumber: ride.QueueNumber,

		CreatedAt:   ride.CreatedAt,
		AcceptedAt:  ride.AcceptedAt,
		StartedAt:   ride.StartedAt,
		EndedAt:     ride.EndedAt,
		CompletedAt: completedAt,

		PaymentStatus: ride.PaymentStatus,
		PaymentMethod: ride.PaymentMethod,
	}

	if ride.FareSettled != nil {
		rec.FareSettled = *ride.FareSettled
	}

	if ride.DriverID != nil && ride.DriverName == "" {
		p, err := s.presence.Get(ctx, *ride.DriverID)
		if err != nil {
			rec.MissingDriverInfo = true
			s.log.Warn(ctx, "could not backfill driver info for archive", "driver_id", ride.DriverID, "err", err.Error())
		} else {
			rec.DriverName = p.Name
			rec.DriverPhone = p.Phone
			rec.DriverVehicle = p.Vehicle
		}
	}

	rec.Journey = journeyStats(rec)
	return rec
}

func (s *Service) afterCommit(ctx context.Context, rec *models.HistoryRecord, driverID *uuid.UUID, opts Options) {
	if opts.FinalStatus == types.StatusCompleted {
		s.queue.UpdateStatus(ctx, rec.RideID, types.QueueStatusCompleted)
	}
	s.queue.Remove(ctx, rec.RideID)

	if driverID != nil {
		if err := s.presence.SetActiveRide(ctx, *driverID, nil); err != nil {
			s.log.Warn(ctx, "failed to free driver presence", "driver_id", driverID, "err", err.Error())
		}
	}

	eventType := types.EventRideCompleted
	message := "ride completed"
	if opts.FinalStatus == types.StatusCancelled {
		eventType = types.EventRideCancelled
		message = "ride cancelled"
		if opts.Reason != "" {
			message = "ride cancelled: " + opts.Reason
		}
	}

	event := models.RideEventMessage{
		Type:      eventType,
		RideID:    rec.RideID,
		Status:    opts.FinalStatus,
		Message:   message,
		Timestamp: rec.CompletedAt,
	}

	s.notifier.Notify(ctx, notify.Rider(rec.RiderID), event)
	if driverID != nil {
		s.notifier.Notify(ctx, notify.Driver(*driverID), event)
	}
	s.notifier.NotifyAdmins(ctx, eventType, rec.RideID, event)

	initiator := string(opts.Initiator)
	if initiator == "" {
		initiator = string(types.CancelledBySystem)
	}
	metrics.RidesTotal.WithLabelValues(string(opts.FinalStatus), initiator).Inc()
	metrics.ActiveRidesGauge.Dec()

	s.log.Info(ctx, "ride archived",
		"ride_code", rec.RideCode,
		"final_status", opts.FinalStatus,
		"queue_number", rec.QueueNumber,
		"missing_driver_info", rec.MissingDriverInfo,
	)
}

// journeyStats derives the timeline figures from the archived timestamps.
func journeyStats(rec *models.HistoryRecord) models.JourneyStats {
	var js models.JourneyStats

	js.TotalDurationMin = rec.CompletedAt.Sub(rec.CreatedAt).Minutes()

	if rec.StartedAt != nil {
		waitFrom := rec.CreatedAt
		if rec.AcceptedAt != nil {
			waitFrom = *rec.AcceptedAt
		}
		js.WaitTimeMin = rec.StartedAt.Sub(waitFrom).Minutes()
	}

	if rec.StartedAt != nil && rec.EndedAt != nil {
		dur := rec.EndedAt.Sub(*rec.StartedAt)
		js.RideDurationMin = dur.Minutes()
		if dur > 0 && rec.DistanceKm > 0 {
			js.AverageSpeedKmh = rec.DistanceKm / dur.Hours()
		}
	}

	return js
}

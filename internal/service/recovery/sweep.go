// Package recovery is the backstop for rides that stop progressing because
// a client disconnected, crashed or never followed up. A periodic sweep
// finds rides sitting too long in each non-terminal status and forces the
// appropriate terminal transition through the same conditional updates the
// live paths use, so a sweep racing a real client loses cleanly.
package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/lifecycle"
	"github.com/pointride/dispatch/pkg/logger"
	wrap "github.com/pointride/dispatch/pkg/logger/wrapper"
	"github.com/pointride/dispatch/pkg/metrics"
	"github.com/pointride/dispatch/pkg/uuid"
)

type RideRepo interface {
	FindStuck(ctx context.Context, status types.RideStatus, cutoff time.Time) ([]*models.Ride, error)
	MarkEnded(ctx context.Context, rideID uuid.UUID, fareSettled float64, paymentMethod string, endedAt time.Time) error
}

type Completer interface {
	Complete(ctx context.Context, rideID uuid.UUID, opts lifecycle.Options) error
}

type Config struct {
	Interval           time.Duration
	PendingTimeout     time.Duration // no driver accepted
	AssignedTimeout    time.Duration // driver accepted but never started
	StartedTimeout     time.Duration // ride running far too long
	EndedTimeout       time.Duration // ended but completion never followed
	ForcePaymentMethod string
}

func DefaultConfig() Config {
	return Config{
		Interval:           10 * time.Minute,
		PendingTimeout:     30 * time.Minute,
		AssignedTimeout:    15 * time.Minute,
		StartedTimeout:     60 * time.Minute,
		EndedTimeout:       60 * time.Minute,
		ForcePaymentMethod: "cash",
	}
}

type Sweeper struct {
	rides     RideRepo
	completer Completer
	cfg       Config
	log       logger.Logger

	now func() time.Time
}

func NewSweeper(rides RideRepo, completer Completer, cfg Config, log logger.Logger) *Sweeper {
	return &Sweeper{
		rides:     rides,
		completer: completer,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
// One sweep runs immediately on start to repair anything left over from a
// previous process.
func (s *Sweeper) Run(ctx context.Context) {
	ctx = wrap.WithAction(ctx, "recovery_sweep")
	s.log.Info(ctx, "recovery sweeper started", "interval", s.cfg.Interval.String())

	s.Sweep(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "recovery sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep applies every recovery rule once. Per-ride failures are logged and
// skipped; the next sweep retries them.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := s.now()

	recovered := 0
	recovered += s.cancelStuck(ctx, types.StatusPending, s.cfg.PendingTimeout, "no driver found")
	recovered += s.cancelStuck(ctx, types.StatusDriverAssigned, s.cfg.AssignedTimeout, "driver did not start")
	recovered += s.forceEndStarted(ctx)
	recovered += s.completeEnded(ctx)

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	if recovered > 0 {
		s.log.Info(ctx, "sweep recovered stuck rides", "count", recovered)
	}
}

func (s *Sweeper) cancelStuck(ctx context.Context, status types.RideStatus, timeout time.Duration, reason string) int {
	stuck, err := s.rides.FindStuck(ctx, status, s.now().Add(-timeout))
	if err != nil {
		s.log.Error(ctx, "failed to scan for stuck rides", err, "status", status)
		return 0
	}

	n := 0
	for _, ride := range stuck {
		rctx := wrap.WithRideID(ctx, ride.ID.String())
		// Conditioned on the status the scan observed. A ride a driver
		// accepted or started in the meantime is no longer stuck.
		err := s.completer.Complete(rctx, ride.ID, lifecycle.Options{
			FinalStatus:    types.StatusCancelled,
			Reason:         reason,
			Initiator:      types.CancelledBySystem,
			ExpectedStatus: status,
		})
		if err != nil {
			if errors.Is(err, types.ErrRideCannotBeCancelled) {
				continue // a real client beat us to a transition
			}
			s.log.Error(rctx, "failed to cancel stuck ride", err, "status", status)
			continue
		}
		metrics.SweepRecoveriesTotal.WithLabelValues(reason).Inc()
		s.log.Info(rctx, "cancelled stuck ride", "ride_code", ride.RideCode, "status", status, "reason", reason)
		n++
	}
	return n
}

// forceEndStarted ends and completes rides that have been running well past
// any plausible trip duration. Settlement falls back to the quoted fare.
func (s *Sweeper) forceEndStarted(ctx context.Context) int {
	stuck, err := s.rides.FindStuck(ctx, types.StatusRideStarted, s.now().Add(-s.cfg.StartedTimeout))
	if err != nil {
		s.log.Error(ctx, "failed to scan for stuck rides", err, "status", types.StatusRideStarted)
		return 0
	}

	n := 0
	for _, ride := range stuck {
		rctx := wrap.WithRideID(ctx, ride.ID.String())

		if err := s.rides.MarkEnded(rctx, ride.ID, ride.FareQuoted, s.cfg.ForcePaymentMethod, s.now()); err != nil {
			if !errors.Is(err, types.ErrInvalidRideStatus) {
				s.log.Error(rctx, "failed to force-end stuck ride", err)
			}
			continue
		}
		if err := s.completer.Complete(rctx, ride.ID, lifecycle.Options{
			FinalStatus: types.StatusCompleted,
			Reason:      "ride exceeded maximum duration",
			Initiator:   types.CancelledBySystem,
		}); err != nil {
			s.log.Error(rctx, "failed to complete force-ended ride", err)
			continue
		}
		metrics.SweepRecoveriesTotal.WithLabelValues("ride exceeded maximum duration").Inc()
		s.log.Info(rctx, "force-ended stuck ride", "ride_code", ride.RideCode)
		n++
	}
	return n
}

// completeEnded archives rides that ended but whose completion never ran,
// typically a crash between settlement and archiving.
func (s *Sweeper) completeEnded(ctx context.Context) int {
	stuck, err := s.rides.FindStuck(ctx, types.StatusRideEnded, s.now().Add(-s.cfg.EndedTimeout))
	if err != nil {
		s.log.Error(ctx, "failed to scan for stuck rides", err, "status", types.StatusRideEnded)
		return 0
	}

	n := 0
	for _, ride := range stuck {
		rctx := wrap.WithRideID(ctx, ride.ID.String())
		if err := s.completer.Complete(rctx, ride.ID, lifecycle.Options{
			FinalStatus: types.StatusCompleted,
			Reason:      "payment collection timeout",
			Initiator:   types.CancelledBySystem,
		}); err != nil {
			s.log.Error(rctx, "failed to complete ended ride", err)
			continue
		}
		metrics.SweepRecoveriesTotal.WithLabelValues("payment collection timeout").Inc()
		s.log.Info(rctx, "completed abandoned ended ride", "ride_code", ride.RideCode)
		n++
	}
	return n
}

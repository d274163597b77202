// Package dispatch is the matching and state-machine engine: ride creation,
// offer broadcast to the eligible driver pool, first-accept-wins race
// resolution, OTP-gated start/end transitions and queue number issuance.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/lifecycle"
	"github.com/pointride/dispatch/internal/service/match"
	"github.com/pointride/dispatch/internal/service/notify"
	"github.com/pointride/dispatch/internal/service/otp"
	"github.com/pointride/dispatch/pkg/logger"
	wrap "github.com/pointride/dispatch/pkg/logger/wrapper"
	"github.com/pointride/dispatch/pkg/metrics"
	"github.com/pointride/dispatch/pkg/uuid"
)

const rideCodePrefix = "RIDE"

type Config struct {
	CommissionRate       float64 // driver earnings = fare * (1 - rate) when not quoted
	DefaultPaymentMethod string
}

func DefaultConfig() Config {
	return Config{
		CommissionRate:       0.20,
		DefaultPaymentMethod: "cash",
	}
}

type Service struct {
	rides     RideRepo
	presence  Presence
	queue     QueueAssigner
	notifier  Notifier
	completer Completer
	cfg       Config
	log       logger.Logger

	now func() time.Time
}

func NewService(
	rides RideRepo,
	presence Presence,
	queue QueueAssigner,
	notifier Notifier,
	completer Completer,
	cfg Config,
	log logger.Logger,
) *Service {
	if cfg.DefaultPaymentMethod == "" {
		cfg.DefaultPaymentMethod = "cash"
	}
	return &Service{
		rides:     rides,
		presence:  presence,
		queue:     queue,
		notifier:  notifier,
		completer: completer,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// CreateRideRequest is what the booking layer must supply. Fare and
// distance come quoted from the caller; no fare math happens here beyond
// the commission split.
type CreateRideRequest struct {
	RiderID        uuid.UUID
	RiderName      string
	RiderPhone     string
	PickupPoint    string
	PickupLocation models.Location
	DropAddress    string
	DropLocation   models.Location
	VehicleClass   types.VehicleClass
	DistanceKm     float64
	FareQuoted     float64
	DriverEarnings float64 // optional; derived from FareQuoted when zero
}

func (r *CreateRideRequest) validate() error {
	switch {
	case r.RiderID.IsNil():
		return fmt.Errorf("%w: rider id is required", types.ErrValidation)
	case r.PickupPoint == "":
		return fmt.Errorf("%w: pickup point is required", types.ErrValidation)
	case r.DropAddress == "":
		return fmt.Errorf("%w: drop address is required", types.ErrValidation)
	case !types.ValidVehicleClass(r.VehicleClass):
		return fmt.Errorf("%w: unknown vehicle class %q", types.ErrValidation, r.VehicleClass)
	case r.FareQuoted <= 0:
		return fmt.Errorf("%w: quoted fare must be positive", types.ErrValidation)
	case r.DistanceKm <= 0:
		return fmt.Errorf("%w: distance must be positive", types.ErrValidation)
	}
	return nil
}

// CreateRide persists a pending ride with pre-generated start/end codes and
// broadcasts the offer to the driver pool. A broadcast that reaches nobody
// does not fail the call: the ride stays pending and the recovery sweep is
// the backstop.
func (s *Service) CreateRide(ctx context.Context, req CreateRideRequest) (*models.Ride, error) {
	const op = "Dispatch.CreateRide"
	ctx = wrap.WithAction(ctx, "create_ride")

	if err := req.validate(); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	ride, err := s.buildRide(ctx, req)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	if err := s.createRide(ctx, ride); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	metrics.ActiveRidesGauge.Inc()
	s.log.Info(wrap.WithRideID(ctx, ride.ID.String()), "ride created",
		"ride_code", ride.RideCode,
		"pickup_point", ride.PickupPoint,
		"vehicle_class", ride.VehicleClass,
	)

	if err := s.BroadcastOffer(ctx, ride); err != nil {
		s.log.Warn(wrap.WithRideID(ctx, ride.ID.String()), "offer broadcast reached no drivers", "err", err.Error())
	}

	return ride, nil
}

// CreateManualRide is the admin booking path. With a driver id the matching
// broadcast is bypassed and the driver is assigned directly; without one it
// behaves like CreateRide.
func (s *Service) CreateManualRide(ctx context.Context, req CreateRideRequest, driverID *uuid.UUID) (*models.Ride, error) {
	const op = "Dispatch.CreateManualRide"
	ctx = wrap.WithAction(ctx, "create_manual_ride")

	if err := req.validate(); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	ride, err := s.buildRide(ctx, req)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	if driverID != nil {
		// validate eligibility before persisting anything
		if _, err := s.eligibleForManualAssign(ctx, *driverID, ride); err != nil {
			return nil, wrap.Error(ctx, err)
		}
	}

	if err := s.createRide(ctx, ride); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	metrics.ActiveRidesGauge.Inc()

	if driverID == nil {
		if err := s.BroadcastOffer(ctx, ride); err != nil {
			s.log.Warn(wrap.WithRideID(ctx, ride.ID.String()), "offer broadcast reached no drivers", "err", err.Error())
		}
		return ride, nil
	}

	assigned, _, err := s.AcceptRide(ctx, ride.ID, *driverID)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return assigned, nil
}

func (s *Service) buildRide(ctx context.Context, req CreateRideRequest) (*models.Ride, error) {
	startOTP, err := otp.Generate()
	if err != nil {
		return nil, err
	}
	endOTP, err := otp.Generate()
	if err != nil {
		return nil, err
	}

	now := s.now()

	code, err := s.nextRideCode(ctx, now)
	if err != nil {
		return nil, err
	}

	earnings := req.DriverEarnings
	if earnings == 0 {
		earnings = req.FareQuoted * (1 - s.cfg.CommissionRate)
	}

	return &models.Ride{
		ID:             uuid.New(),
		RideCode:       code,
		RiderID:        req.RiderID,
		RiderName:      req.RiderName,
		RiderPhone:     req.RiderPhone,
		PickupPoint:    match.Canonical(req.PickupPoint),
		PickupLocation: req.PickupLocation,
		DropAddress:    req.DropAddress,
		DropLocation:   req.DropLocation,
		VehicleClass:   req.VehicleClass,
		DistanceKm:     req.DistanceKm,
		FareQuoted:     req.FareQuoted,
		DriverEarnings: earnings,
		Status:         types.StatusPending,
		StartOTP:       startOTP,
		EndOTP:         endOTP,
		CreatedAt:      now,
		PaymentStatus:  types.PaymentPending,
	}, nil
}

// nextRideCode takes the next value of the daily booking sequence. The
// sequence never rewinds, so a code is not reissued after the live record
// moves to history.
func (s *Service) nextRideCode(ctx context.Context, now time.Time) (string, error) {
	n, err := s.rides.NextCodeNumber(ctx, now.Format("20060102"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%03d", rideCodePrefix, now.Format("20060102"), n), nil
}

// createRide persists the ride, taking a fresh code when the current one is
// already held by a live ride. That can only happen when the counter and the
// live table disagree (manual restores, seeded data); the booking survives it.
func (s *Service) createRide(ctx context.Context, ride *models.Ride) error {
	const maxCodeRetries = 3
	for attempt := 0; ; attempt++ {
		err := s.rides.Create(ctx, ride)
		if err == nil {
			return nil
		}
		if !errors.Is(err, types.ErrRideCodeTaken) || attempt == maxCodeRetries-1 {
			return err
		}
		code, codeErr := s.nextRideCode(ctx, ride.CreatedAt)
		if codeErr != nil {
			return codeErr
		}
		ride.RideCode = code
	}
}

// BroadcastOffer pushes the offer to every free driver at the ride's pickup
// point; when nobody is declared there it widens to all free drivers.
// Vehicle class is intentionally not filtered at broadcast time, only the
// driver's accept or a manual assignment checks it.
func (s *Service) BroadcastOffer(ctx context.Context, ride *models.Ride) error {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "broadcast_offer"), ride.ID.String())

	online, err := s.presence.ListOnline(ctx)
	if err != nil {
		return fmt.Errorf("Dispatch.BroadcastOffer: %w", err)
	}

	targets := match.EligibleDrivers(online, ride.PickupPoint)
	audience := "pickup_point"
	if len(targets) == 0 {
		targets = match.FreeDrivers(online)
		audience = "all_drivers"
	}
	if len(targets) == 0 {
		return types.ErrNoDriversOnline
	}

	offer := models.RideOfferMessage{
		Type:    types.EventNewRideOffer,
		OfferID: uuid.New(),
		Ride:    ride.Summary(),
	}

	for _, d := range targets {
		s.notifier.Notify(ctx, notify.Driver(d.DriverID), offer)
	}
	metrics.OffersSentTotal.WithLabelValues(audience).Add(float64(len(targets)))

	s.log.Info(ctx, "ride offer broadcast",
		"pickup_point", ride.PickupPoint,
		"targets", len(targets),
		"audience", audience,
	)
	return nil
}

// AcceptRide resolves a driver's accept against the pending ride. The
// conditional store update is the race arbiter: of N concurrent accepts
// exactly one flips pending to driver_assigned, the rest get
// ErrRideNoLongerAvailable and no state is disturbed.
func (s *Service) AcceptRide(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, models.QueueAssignment, error) {
	const op = "Dispatch.AcceptRide"
	ctx = wrap.WithDriverID(wrap.WithRideID(wrap.WithAction(ctx, "accept_ride"), rideID.String()), driverID.String())

	var qa models.QueueAssignment

	driver, err := s.presence.Get(ctx, driverID)
	if err != nil {
		return nil, qa, wrap.Error(ctx, types.ErrDriverOffline)
	}
	if !driver.Free() {
		return nil, qa, wrap.Error(ctx, types.ErrDriverBusy)
	}

	now := s.now()
	if err := s.rides.AssignDriverIfPending(ctx, rideID, *driver, now); err != nil {
		if errors.Is(err, types.ErrRideNoLongerAvailable) {
			metrics.AcceptConflictsTotal.Inc()
			s.log.Info(ctx, "accept lost the race")
			return nil, qa, err
		}
		return nil, qa, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	if err := s.presence.SetActiveRide(ctx, driverID, &rideID); err != nil {
		s.log.Warn(ctx, "failed to mark driver busy", "err", err.Error())
	}

	ride, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, qa, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	qa = s.queue.Assign(ctx, ride.PickupPoint, rideID)
	if err := s.rides.SetQueueAssignment(ctx, rideID, qa); err != nil {
		s.log.Warn(ctx, "failed to persist queue assignment", "queue_number", qa.QueueNumber, "err", err.Error())
	}
	ride.QueueNumber = qa.QueueNumber
	ride.QueuePosition = qa.QueuePosition
	ride.QueueStatus = types.QueueStatusQueued

	s.announceAssignment(ctx, ride, driver, qa, now)
	return ride, qa, nil
}

func (s *Service) announceAssignment(ctx context.Context, ride *models.Ride, driver *models.DriverPresence, qa models.QueueAssignment, at time.Time) {
	closed := models.OfferClosedMessage{
		Type:     types.EventOfferClosed,
		RideID:   ride.ID,
		DriverID: driver.DriverID,
		Reason:   "accepted",
	}
	s.notifier.Notify(ctx, notify.AllDrivers(), closed)

	assigned := models.RideEventMessage{
		Type:      types.EventRideAssigned,
		RideID:    ride.ID,
		Status:    types.StatusDriverAssigned,
		Message:   fmt.Sprintf("driver %s assigned", driver.Name),
		Timestamp: at,
	}
	queueMsg := models.QueueAssignedMessage{
		Type:   types.EventQueueNumberAssigned,
		RideID: ride.ID,
		Queue:  qa,
	}

	s.notifier.Notify(ctx, notify.Rider(ride.RiderID), assigned)
	s.notifier.Notify(ctx, notify.Rider(ride.RiderID), queueMsg)
	s.notifier.Notify(ctx, notify.Driver(driver.DriverID), assigned)
	s.notifier.Notify(ctx, notify.Driver(driver.DriverID), queueMsg)
	s.notifier.NotifyAdmins(ctx, types.EventRideAssigned, ride.ID, assigned)

	s.log.Info(ctx, "ride assigned",
		"ride_code", ride.RideCode,
		"driver_name", driver.Name,
		"queue_number", qa.QueueNumber,
		"degraded_queue", qa.Degraded,
	)
}

// eligibleForManualAssign checks what the broadcast path deliberately skips:
// an admin naming a driver must name one who is online, free, of the right
// vehicle class and at the right pickup point. A driver who never declared
// a pickup point is tolerated.
func (s *Service) eligibleForManualAssign(ctx context.Context, driverID uuid.UUID, ride *models.Ride) (*models.DriverPresence, error) {
	driver, err := s.presence.Get(ctx, driverID)
	if err != nil {
		return nil, types.ErrDriverOffline
	}
	if !driver.Free() {
		return nil, types.ErrDriverBusy
	}
	if driver.VehicleClass != ride.VehicleClass {
		return nil, fmt.Errorf("%w: driver has %s, ride needs %s", types.ErrDriverNotEligible, driver.VehicleClass, ride.VehicleClass)
	}
	if driver.PickupPoint != "" && !match.SamePoint(driver.PickupPoint, ride.PickupPoint) {
		return nil, fmt.Errorf("%w: driver is at %q, ride is at %q", types.ErrDriverNotEligible, driver.PickupPoint, ride.PickupPoint)
	}
	return driver, nil
}

// CancelRide applies the initiator's cancellation window before delegating
// to the lifecycle choke point. Riders may cancel until the ride starts;
// drivers and admins until it ends.
func (s *Service) CancelRide(ctx context.Context, rideID uuid.UUID, reason string, by types.CancelInitiator) error {
	const op = "Dispatch.CancelRide"
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "cancel_ride"), rideID.String())

	ride, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	if by == types.CancelledByRider && ride.Status == types.StatusRideStarted {
		return wrap.Error(ctx, types.ErrRideCannotBeCancelled)
	}
	if !types.CanTransition(ride.Status, types.StatusCancelled) {
		return wrap.Error(ctx, types.ErrRideCannotBeCancelled)
	}

	return s.completer.Cancel(ctx, rideID, reason, by)
}

// RideByCode loads a live ride by its human-facing booking code, for the
// operator looking one up from a rider's phone screen.
func (s *Service) RideByCode(ctx context.Context, rideCode string) (*models.Ride, error) {
	const op = "Dispatch.RideByCode"
	ctx = wrap.WithAction(ctx, "ride_by_code")

	ride, err := s.rides.GetByCode(ctx, rideCode)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return ride, nil
}

// VerifyStartOTP checks the rider-held start code submitted by the driver
// and, on success, moves the ride into ride_started.
func (s *Service) VerifyStartOTP(ctx context.Context, rideID uuid.UUID, code string) error {
	const op = "Dispatch.VerifyStartOTP"
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "verify_start_otp"), rideID.String())

	ride, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	if ride.Status != types.StatusDriverAssigned {
		return wrap.Error(ctx, types.ErrInvalidRideStatus)
	}

	if err := s.checkOTP(ctx, ride, otp.KindStart, code, ride.StartOTP); err != nil {
		return wrap.Error(ctx, err)
	}

	now := s.now()
	if err := s.rides.TransitionIfStatus(ctx, rideID, types.StatusDriverAssigned, types.StatusRideStarted, now); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	s.queue.UpdateStatus(ctx, rideID, types.QueueStatusInProgress)

	event := models.RideEventMessage{
		Type:      types.EventRideStarted,
		RideID:    rideID,
		Status:    types.StatusRideStarted,
		Message:   "ride started",
		Timestamp: now,
	}
	s.notifier.Notify(ctx, notify.Rider(ride.RiderID), event)
	if ride.DriverID != nil {
		s.notifier.Notify(ctx, notify.Driver(*ride.DriverID), event)
	}
	s.notifier.NotifyAdmins(ctx, types.EventRideStarted, rideID, event)

	s.log.Info(ctx, "ride started", "ride_code", ride.RideCode)
	return nil
}

// VerifyEndOTP checks the end code, settles payment at the quoted fare and
// finalizes the ride. The end code is only accepted after the start code
// was consumed.
func (s *Service) VerifyEndOTP(ctx context.Context, rideID uuid.UUID, code, paymentMethod string) error {
	const op = "Dispatch.VerifyEndOTP"
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "verify_end_otp"), rideID.String())

	ride, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	if ride.Status != types.StatusRideStarted || !ride.StartOTPConsumed() {
		return wrap.Error(ctx, types.ErrStartOTPNotConsumed)
	}

	if err := s.checkOTP(ctx, ride, otp.KindEnd, code, ride.EndOTP); err != nil {
		return wrap.Error(ctx, err)
	}

	if paymentMethod == "" {
		paymentMethod = s.cfg.DefaultPaymentMethod
	}

	now := s.now()
	if err := s.rides.MarkEnded(ctx, rideID, ride.FareQuoted, paymentMethod, now); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	event := models.RideEventMessage{
		Type:      types.EventRideEnded,
		RideID:    rideID,
		Status:    types.StatusRideEnded,
		Message:   "ride ended, payment collected",
		Timestamp: now,
	}
	s.notifier.Notify(ctx, notify.Rider(ride.RiderID), event)
	if ride.DriverID != nil {
		s.notifier.Notify(ctx, notify.Driver(*ride.DriverID), event)
	}
	s.notifier.NotifyAdmins(ctx, types.EventRideEnded, rideID, event)

	// end verification completes the ride in the same motion
	if err := s.completer.Complete(ctx, rideID, lifecycle.Options{FinalStatus: types.StatusCompleted}); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	s.log.Info(ctx, "ride ended and completed", "ride_code", ride.RideCode, "fare_settled", ride.FareQuoted)
	return nil
}

// checkOTP enforces the attempt ceiling before comparing codes, so a brute
// force burns attempts whether or not the guess was right.
func (s *Service) checkOTP(ctx context.Context, ride *models.Ride, kind, provided, stored string) error {
	attempts, err := s.rides.IncrementOTPAttempts(ctx, ride.ID, kind)
	if err != nil {
		return err
	}
	if attempts > otp.MaxAttempts {
		s.log.Warn(ctx, "otp attempts exhausted", "kind", kind, "attempts", attempts)
		return types.ErrOTPAttemptsExhausted
	}
	if !otp.Verify(provided, stored) {
		s.log.Info(ctx, "otp rejected", "kind", kind, "attempt", attempts)
		return types.ErrInvalidOTP
	}
	return nil
}

// ForceStatus is the admin override: push the ride one step along the
// lifecycle regardless of who should have driven the transition. Terminal
// targets go through the completion choke point like everything else.
func (s *Service) ForceStatus(ctx context.Context, rideID uuid.UUID, to types.RideStatus) error {
	const op = "Dispatch.ForceStatus"
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "force_status"), rideID.String())

	ride, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	if !types.CanTransition(ride.Status, to) {
		return wrap.Error(ctx, types.ErrInvalidRideStatus)
	}

	switch to {
	case types.StatusCompleted:
		return s.completer.Complete(ctx, rideID, lifecycle.Options{
			FinalStatus: types.StatusCompleted,
			Reason:      "completed by operator",
			Initiator:   types.CancelledByAdmin,
		})
	case types.StatusCancelled:
		return s.completer.Cancel(ctx, rideID, "cancelled by operator", types.CancelledByAdmin)
	}

	now := s.now()
	if to == types.StatusRideEnded {
		if err := s.rides.MarkEnded(ctx, rideID, ride.FareQuoted, s.cfg.DefaultPaymentMethod, now); err != nil {
			return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
		}
	} else {
		if err := s.rides.TransitionIfStatus(ctx, rideID, ride.Status, to, now); err != nil {
			return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
		}
	}

	event := models.RideEventMessage{
		Type:      types.EventDispatchUpdate,
		RideID:    rideID,
		Status:    to,
		Message:   "status set by operator",
		Timestamp: now,
	}
	s.notifier.Notify(ctx, notify.Rider(ride.RiderID), event)
	if ride.DriverID != nil {
		s.notifier.Notify(ctx, notify.Driver(*ride.DriverID), event)
	}
	s.notifier.NotifyAdmins(ctx, types.EventDispatchUpdate, rideID, event)

	s.log.Info(ctx, "ride status forced", "ride_code", ride.RideCode, "from", ride.Status, "to", to)
	return nil
}

// DriverOnline registers the driver in the presence store.
func (s *Service) DriverOnline(ctx context.Context, p models.DriverPresence) error {
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, "driver_online"), p.DriverID.String())

	if !types.ValidVehicleClass(p.VehicleClass) {
		return wrap.Error(ctx, fmt.Errorf("%w: unknown vehicle class %q", types.ErrValidation, p.VehicleClass))
	}

	p.PickupPoint = match.Canonical(p.PickupPoint)
	p.OnlineSince = s.now()
	if err := s.presence.SetOnline(ctx, p); err != nil {
		return wrap.Error(ctx, fmt.Errorf("Dispatch.DriverOnline: %w", err))
	}

	metrics.DriversOnlineGauge.Inc()
	s.log.Info(ctx, "driver online", "pickup_point", p.PickupPoint, "vehicle_class", p.VehicleClass)
	return nil
}

// DriverOffline removes the driver from the presence store. An active ride
// is left alone; the recovery sweep handles a driver that never returns.
func (s *Service) DriverOffline(ctx context.Context, driverID uuid.UUID) error {
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, "driver_offline"), driverID.String())

	if err := s.presence.SetOffline(ctx, driverID); err != nil {
		return wrap.Error(ctx, fmt.Errorf("Dispatch.DriverOffline: %w", err))
	}

	metrics.DriversOnlineGauge.Dec()
	s.log.Info(ctx, "driver offline")
	return nil
}

// DriverLocation stores the driver's position and, while a ride is active,
// forwards it to the rider.
func (s *Service) DriverLocation(ctx context.Context, driverID uuid.UUID, loc models.Location) error {
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, "driver_location"), driverID.String())

	if err := s.presence.UpdateLocation(ctx, driverID, loc); err != nil {
		return wrap.Error(ctx, fmt.Errorf("Dispatch.DriverLocation: %w", err))
	}

	driver, err := s.presence.Get(ctx, driverID)
	if err != nil || driver.ActiveRideID == nil {
		return nil
	}

	ride, err := s.rides.Get(ctx, *driver.ActiveRideID)
	if err != nil {
		return nil // ride already finalized
	}

	s.notifier.Notify(ctx, notify.Rider(ride.RiderID), models.DriverLocationMessage{
		Type:     types.EventDriverLocation,
		RideID:   ride.ID,
		DriverID: driverID,
		Location: loc,
	})
	return nil
}

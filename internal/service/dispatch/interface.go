package dispatch

import (
	"context"
	"time"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/lifecycle"
	"github.com/pointride/dispatch/internal/service/notify"
	"github.com/pointride/dispatch/pkg/uuid"
)

type RideRepo interface {
	Create(ctx context.Context, ride *models.Ride) error
	Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	GetByCode(ctx context.Context, rideCode string) (*models.Ride, error)
	NextCodeNumber(ctx context.Context, date string) (int, error)
	AssignDriverIfPending(ctx context.Context, rideID uuid.UUID, driver models.DriverPresence, acceptedAt time.Time) error
	TransitionIfStatus(ctx context.Context, rideID uuid.UUID, from, to types.RideStatus, at time.Time) error
	MarkEnded(ctx context.Context, rideID uuid.UUID, fareSettled float64, paymentMethod string, endedAt time.Time) error
	SetQueueAssignment(ctx context.Context, rideID uuid.UUID, qa models.QueueAssignment) error
	IncrementOTPAttempts(ctx context.Context, rideID uuid.UUID, kind string) (int, error)
}

type Presence interface {
	SetOnline(ctx context.Context, p models.DriverPresence) error
	SetOffline(ctx context.Context, driverID uuid.UUID) error
	Get(ctx context.Context, driverID uuid.UUID) (*models.DriverPresence, error)
	ListOnline(ctx context.Context) ([]models.DriverPresence, error)
	SetActiveRide(ctx context.Context, driverID uuid.UUID, rideID *uuid.UUID) error
	UpdateLocation(ctx context.Context, driverID uuid.UUID, loc models.Location) error
}

// QueueAssigner issues the pickup-point queue number. Assign never fails;
// on ledger trouble it returns a degraded local assignment.
type QueueAssigner interface {
	Assign(ctx context.Context, pickupPoint string, rideID uuid.UUID) models.QueueAssignment
	UpdateStatus(ctx context.Context, rideID uuid.UUID, status types.QueueStatus)
}

type Notifier interface {
	Notify(ctx context.Context, aud notify.Audience, msg any)
	NotifyAdmins(ctx context.Context, eventType types.EventType, rideID uuid.UUID, data any)
}

// Completer finalizes rides; satisfied by the lifecycle service.
type Completer interface {
	Complete(ctx context.Context, rideID uuid.UUID, opts lifecycle.Options) error
	Cancel(ctx context.Context, rideID uuid.UUID, reason string, by types.CancelInitiator) error
}

package lifecycle

import (
	"context"
	"time"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/notify"
	"github.com/pointride/dispatch/pkg/uuid"
)

type RideRepo interface {
	Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	TransitionIfStatus(ctx context.Context, rideID uuid.UUID, from, to types.RideStatus, at time.Time) error
	MarkCancelled(ctx context.Context, rideID uuid.UUID, reason string, by types.CancelInitiator, at time.Time, expected types.RideStatus) error
	Delete(ctx context.Context, rideID uuid.UUID) error
}

type HistoryRepo interface {
	Insert(ctx context.Context, rec *models.HistoryRecord) error
	ExistsForRide(ctx context.Context, rideID uuid.UUID) (bool, error)
}

type StatsRepo interface {
	ApplyRider(ctx context.Context, rec *models.HistoryRecord) error
	ApplyDriver(ctx context.Context, rec *models.HistoryRecord) error
}

// QueueUpdater maintains the pickup-point ledger; both calls are best
// effort and never fail the completion.
type QueueUpdater interface {
	UpdateStatus(ctx context.Context, rideID uuid.UUID, status types.QueueStatus)
	Remove(ctx context.Context, rideID uuid.UUID)
}

type Presence interface {
	Get(ctx context.Context, driverID uuid.UUID) (*models.DriverPresence, error)
	SetActiveRide(ctx context.Context, driverID uuid.UUID, rideID *uuid.UUID) error
}

type Notifier interface {
	Notify(ctx context.Context, aud notify.Audience, msg any)
	NotifyAdmins(ctx context.Context, eventType types.EventType, rideID uuid.UUID, data any)
}

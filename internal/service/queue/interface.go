package queue

import (
	"context"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/pkg/uuid"
)

type LedgerRepo interface {
	NextNumber(ctx context.Context, pickupPoint, pickupCode, date string) (int, error)
	AddEntry(ctx context.Context, pickupCode, date string, entry models.QueueEntry) (int, error)
	UpdateEntryStatus(ctx context.Context, rideID uuid.UUID, status types.QueueStatus) error
	RemoveEntry(ctx context.Context, rideID uuid.UUID) error
	GetLedger(ctx context.Context, pickupCode, date string) (*models.QueueLedger, error)
}

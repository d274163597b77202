package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/pkg/uuid"
)

type QueueRepo struct {
	db *pgxpool.Pool
}

func NewQueueRepo(db *pgxpool.Pool) *QueueRepo {
	return &QueueRepo{db: db}
}

// NextNumber bumps the daily counter for (pickup code, date), creating the
// ledger row lazily on the first accepted ride of the day. The upsert makes
// the increment atomic; a counter value is never handed out twice.
func (r *QueueRepo) NextNumber(ctx context.Context, pickupPoint, pickupCode, date string) (int, error) {
	const op = "QueueRepo.NextNumber"
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO queue_ledgers (pickup_point, pickup_code, date, counter)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (pickup_code, date)
		DO UPDATE SET counter = queue_ledgers.counter + 1, updated_at = now()
		RETURNING counter;`

	var counter int
	if err := q.QueryRow(ctx, query, pickupPoint, pickupCode, date).Scan(&counter); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return counter, nil
}

// AddEntry appends an active entry to the ledger and returns the number of
// entries still queued (the new entry's position).
func (r *QueueRepo) AddEntry(ctx context.Context, pickupCode, date string, entry models.QueueEntry) (int, error) {
	const op = "QueueRepo.AddEntry"
	q := TxorDB(ctx, r.db)

	insert := `
		INSERT INTO queue_entries (pickup_code, date, ride_id, queue_number, status)
		VALUES ($1, $2, $3, $4, $5);`

	if _, err := q.Exec(ctx, insert, pickupCode, date, entry.RideID, entry.QueueNumber, entry.Status); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var queued int
	count := `
		SELECT COUNT(*) FROM queue_entries
		WHERE pickup_code = $1 AND date = $2 AND status = $3;`
	if err := q.QueryRow(ctx, count, pickupCode, date, types.QueueStatusQueued).Scan(&queued); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return queued, nil
}

// UpdateEntryStatus mutates an active entry's sub-status in place. Moving to
// in_progress marks the ledger's "currently serving"; completing bumps the
// served-today count.
func (r *QueueRepo) UpdateEntryStatus(ctx context.Context, rideID uuid.UUID, status types.QueueStatus) error {
	const op = "QueueRepo.UpdateEntryStatus"
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE queue_entries
		SET status = $2
		WHERE ride_id = $1
		RETURNING pickup_code, date, queue_number;`

	var pickupCode, date, queueNumber string
	if err := q.QueryRow(ctx, query, rideID, status).Scan(&pickupCode, &date, &queueNumber); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ErrQueueNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	switch status {
	case types.QueueStatusInProgress:
		serving := `
			UPDATE queue_ledgers
			SET currently_serving = $3, updated_at = now()
			WHERE pickup_code = $1 AND date = $2;`
		if _, err := q.Exec(ctx, serving, pickupCode, date, queueNumber); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	case types.QueueStatusCompleted:
		served := `
			UPDATE queue_ledgers
			SET served_today = served_today + 1,
			    currently_serving = CASE WHEN currently_serving = $3 THEN '' ELSE currently_serving END,
			    updated_at = now()
			WHERE pickup_code = $1 AND date = $2;`
		if _, err := q.Exec(ctx, served, pickupCode, date, queueNumber); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// RemoveEntry drops a ride from the active list (cancellations).
func (r *QueueRepo) RemoveEntry(ctx context.Context, rideID uuid.UUID) error {
	const op = "QueueRepo.RemoveEntry"
	q := TxorDB(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM queue_entries WHERE ride_id = $1;`, rideID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetLedger loads the ledger row for a pickup code and day.
func (r *QueueRepo) GetLedger(ctx context.Context, pickupCode, date string) (*models.QueueLedger, error) {
	const op = "QueueRepo.GetLedger"
	q := TxorDB(ctx, r.db)

	query := `
		SELECT pickup_point, pickup_code, date, counter, served_today, currently_serving
		FROM queue_ledgers
		WHERE pickup_code = $1 AND date = $2;`

	var ledger models.QueueLedger
	err := q.QueryRow(ctx, query, pickupCode, date).Scan(
		&ledger.PickupPoint, &ledger.PickupCode, &ledger.Date,
		&ledger.Counter, &ledger.ServedToday, &ledger.CurrentlyServing,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrQueueNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ledger, nil
}

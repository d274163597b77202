package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/pkg/uuid"
)

type HistoryRepo struct {
	db *pgxpool.Pool
}

func NewHistoryRepo(db *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Insert writes the immutable archive record. The unique index on ride_id
// guarantees at most one history record per ride.
func (r *HistoryRepo) Insert(ctx context.Context, rec *models.HistoryRecord) error {
	const op = "HistoryRepo.Insert"
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO ride_history (
			id, ride_id, ride_code,
			rider_id, rider_name, rider_phone,
			driver_id, driver_name, driver_phone, driver_vehicle,
			pickup_point, drop_address, vehicle_class, distance_km,
			fare_quoted, driver_earnings, fare_settled,
			final_status, cancel_reason, cancelled_by, queue_number,
			created_at, accepted_at, started_at, ended_at, completed_at,
			total_duration_min, wait_time_min, ride_duration_min, average_speed_kmh,
			payment_status, payment_method, missing_driver_info
		)
		VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,
			$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,
			$31,$32,$33
		);`

	_, err := q.Exec(ctx, query,
		rec.ID, rec.RideID, rec.RideCode,
		rec.RiderID, rec.RiderName, rec.RiderPhone,
		rec.DriverID, rec.DriverName, rec.DriverPhone, rec.DriverVehicle,
		rec.PickupPoint, rec.DropAddress, rec.VehicleClass, rec.DistanceKm,
		rec.FareQuoted, rec.DriverEarnings, rec.FareSettled,
		rec.FinalStatus, rec.CancelReason, rec.CancelledBy, rec.QueueNumber,
		rec.CreatedAt, rec.AcceptedAt, rec.StartedAt, rec.EndedAt, rec.CompletedAt,
		rec.Journey.TotalDurationMin, rec.Journey.WaitTimeMin, rec.Journey.RideDurationMin, rec.Journey.AverageSpeedKmh,
		rec.PaymentStatus, rec.PaymentMethod, rec.MissingDriverInfo,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ExistsForRide reports whether the ride already has a history record.
func (r *HistoryRepo) ExistsForRide(ctx context.Context, rideID uuid.UUID) (bool, error) {
	const op = "HistoryRepo.ExistsForRide"
	q := TxorDB(ctx, r.db)

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM ride_history WHERE ride_id = $1);`
	if err := q.QueryRow(ctx, query, rideID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
)

type StatsRepo struct {
	db *pgxpool.Pool
}

func NewStatsRepo(db *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{db: db}
}

// ApplyRider folds one terminal ride into the rider's rolling aggregates.
// The favorite vehicle class is recomputed from the per-class counters in
// the same statement.
func (r *StatsRepo) ApplyRider(ctx context.Context, rec *models.HistoryRecord) error {
	const op = "StatsRepo.ApplyRider"
	q := TxorDB(ctx, r.db)

	completed := 0
	cancelled := 0
	if rec.FinalStatus == types.StatusCompleted {
		completed = 1
	} else {
		cancelled = 1
	}

	bike, auto, car := classIncrements(rec.VehicleClass, completed)

	query := `
		INSERT INTO rider_stats (
			rider_id, total_rides, completed_rides, cancelled_rides,
			total_distance_km, total_fare_paid, longest_ride_km,
			bike_rides, auto_rides, car_rides, favorite_vehicle_class, updated_at
		)
		VALUES ($1, 1, $2, $3, $4, $5, $4, $6, $7, $8, $9, now())
		ON CONFLICT (rider_id) DO UPDATE SET
			total_rides = rider_stats.total_rides + 1,
			completed_rides = rider_stats.completed_rides + $2,
			cancelled_rides = rider_stats.cancelled_rides + $3,
			total_distance_km = rider_stats.total_distance_km + $4,
			total_fare_paid = rider_stats.total_fare_paid + $5,
			longest_ride_km = GREATEST(rider_stats.longest_ride_km, $4),
			bike_rides = rider_stats.bike_rides + $6,
			auto_rides = rider_stats.auto_rides + $7,
			car_rides = rider_stats.car_rides + $8,
			favorite_vehicle_class = CASE
				WHEN rider_stats.bike_rides + $6 >= rider_stats.auto_rides + $7
				 AND rider_stats.bike_rides + $6 >= rider_stats.car_rides + $8 THEN 'bike'
				WHEN rider_stats.auto_rides + $7 >= rider_stats.car_rides + $8 THEN 'auto'
				ELSE 'car'
			END,
			updated_at = now();`

	distance := 0.0
	fare := 0.0
	if completed == 1 {
		distance = rec.DistanceKm
		fare = rec.FareSettled
	}

	if _, err := q.Exec(ctx, query,
		rec.RiderID, completed, cancelled, distance, fare,
		bike, auto, car, rec.VehicleClass,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ApplyDriver folds one terminal ride into the driver's rolling aggregates.
// No-op when the ride never had an assigned driver.
func (r *StatsRepo) ApplyDriver(ctx context.Context, rec *models.HistoryRecord) error {
	const op = "StatsRepo.ApplyDriver"
	if rec.DriverID == nil {
		return nil
	}
	q := TxorDB(ctx, r.db)

	completed := 0
	cancelled := 0
	if rec.FinalStatus == types.StatusCompleted {
		completed = 1
	} else {
		cancelled = 1
	}

	distance := 0.0
	earnings := 0.0
	if completed == 1 {
		distance = rec.DistanceKm
		earnings = rec.DriverEarnings
	}

	query := `
		INSERT INTO driver_stats (
			driver_id, total_rides, completed_rides, cancelled_rides,
			total_distance_km, total_earnings, longest_ride_km, updated_at
		)
		VALUES ($1, 1, $2, $3, $4, $5, $4, now())
		ON CONFLICT (driver_id) DO UPDATE SET
			total_rides = driver_stats.total_rides + 1,
			completed_rides = driver_stats.completed_rides + $2,
			cancelled_rides = driver_stats.cancelled_rides + $3,
			total_distance_km = driver_stats.total_distance_km + $4,
			total_earnings = driver_stats.total_earnings + $5,
			longest_ride_km = GREATEST(driver_stats.longest_ride_km, $4),
			updated_at = now();`

	if _, err := q.Exec(ctx, query,
		rec.DriverID, completed, cancelled, distance, earnings,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func classIncrements(class types.VehicleClass, completed int) (bike, auto, car int) {
	if completed == 0 {
		return 0, 0, 0
	}
	switch class {
	case types.VehicleBike:
		return 1, 0, 0
	case types.VehicleAuto:
		return 0, 1, 0
	case types.VehicleCar:
		return 0, 0, 1
	}
	return 0, 0, 0
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	pgclient "github.com/pointride/dispatch/pkg/postgres"
	"github.com/pointride/dispatch/pkg/uuid"
)

type RideRepo struct {
	db *pgxpool.Pool
}

func NewRideRepo(db *pgxpool.Pool) *RideRepo {
	return &RideRepo{db: db}
}

const rideColumns = `
	id, ride_code, rider_id, rider_name, rider_phone,
	pickup_point, pickup_lat, pickup_lng,
	drop_address, drop_lat, drop_lng,
	vehicle_class, distance_km,
	fare_quoted, driver_earnings, fare_settled,
	status, driver_id, driver_name, driver_phone, driver_vehicle,
	start_otp, end_otp, start_otp_attempts, end_otp_attempts,
	queue_number, queue_position, queue_status,
	created_at, accepted_at, started_at, ended_at, completed_at, cancelled_at,
	cancel_reason, cancelled_by, payment_status, payment_method`

func (r *RideRepo) Create(ctx context.Context, ride *models.Ride) error {
	const op = "RideRepo.Create"
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO rides (
			id, ride_code, rider_id, rider_name, rider_phone,
			pickup_point, pickup_lat, pickup_lng,
			drop_address, drop_lat, drop_lng,
			vehicle_class, distance_km,
			fare_quoted, driver_earnings,
			status, start_otp, end_otp, payment_status, payment_method
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING created_at;`

	err := q.QueryRow(ctx, query,
		ride.ID, ride.RideCode, ride.RiderID, ride.RiderName, ride.RiderPhone,
		ride.PickupPoint, ride.PickupLocation.Latitude, ride.PickupLocation.Longitude,
		ride.DropAddress, ride.DropLocation.Latitude, ride.DropLocation.Longitude,
		ride.VehicleClass, ride.DistanceKm,
		ride.FareQuoted, ride.DriverEarnings,
		ride.Status, ride.StartOTP, ride.EndOTP, ride.PaymentStatus, ride.PaymentMethod,
	).Scan(&ride.CreatedAt)
	if err != nil {
		if pgclient.IsUniqueViolation(err) {
			return types.ErrRideCodeTaken
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RideRepo) Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	const op = "RideRepo.Get"
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1;`

	ride, err := scanRide(q.QueryRow(ctx, query, rideID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRideNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ride, nil
}

func (r *RideRepo) GetByCode(ctx context.Context, rideCode string) (*models.Ride, error) {
	const op = "RideRepo.GetByCode"
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + rideColumns + ` FROM rides WHERE ride_code = $1;`

	ride, err := scanRide(q.QueryRow(ctx, query, rideCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRideNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ride, nil
}

// NextCodeNumber hands out the next value of the day's booking sequence.
// The counter only ever grows, so numbers stay unique even though completed
// rides leave the live table; the upsert makes concurrent bookings safe.
func (r *RideRepo) NextCodeNumber(ctx context.Context, date string) (int, error) {
	const op = "RideRepo.NextCodeNumber"
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO ride_counters (date, counter)
		VALUES ($1, 1)
		ON CONFLICT (date)
		DO UPDATE SET counter = ride_counters.counter + 1
		RETURNING counter;`

	var counter int
	if err := q.QueryRow(ctx, query, date).Scan(&counter); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return counter, nil
}

// AssignDriverIfPending writes the driver assignment fields in a single
// conditional update. A zero-row result means another accept won the race
// and is surfaced as ErrRideNoLongerAvailable.
func (r *RideRepo) AssignDriverIfPending(ctx context.Context, rideID uuid.UUID, driver models.DriverPresence, acceptedAt time.Time) error {
	const op = "RideRepo.AssignDriverIfPending"
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET
			status = $2,
			driver_id = $3,
			driver_name = $4,
			driver_phone = $5,
			driver_vehicle = $6,
			accepted_at = $7,
			updated_at = now()
		WHERE id = $1 AND status = $8;`

	cmdTag, err := q.Exec(ctx, query,
		rideID,
		types.StatusDriverAssigned,
		driver.DriverID,
		driver.Name,
		driver.Phone,
		driver.Vehicle,
		acceptedAt,
		types.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return types.ErrRideNoLongerAvailable
	}

	return nil
}

// TransitionIfStatus moves the ride from -> to and stamps the matching
// timestamp column, conditionally on the current status. Zero rows affected
// means the ride was not in the expected state.
func (r *RideRepo) TransitionIfStatus(ctx context.Context, rideID uuid.UUID, from, to types.RideStatus, at time.Time) error {
	const op = "RideRepo.TransitionIfStatus"
	q := TxorDB(ctx, r.db)

	column, ok := timestampColumn(to)
	if !ok {
		return fmt.Errorf("%s: no timestamp column for status %s", op, to)
	}

	query := fmt.Sprintf(`
		UPDATE rides
		SET status = $2, %s = $3, updated_at = now()
		WHERE id = $1 AND status = $4;`, column)

	cmdTag, err := q.Exec(ctx, query, rideID, to, at, from)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return types.ErrInvalidRideStatus
	}

	return nil
}

// MarkCancelled cancels the ride with its audit fields, conditional on the
// current status still allowing cancellation. A non-empty expected status
// tightens the condition to exactly that status, so a caller acting on a
// stale read (the recovery sweep) cannot cancel a ride that moved on.
func (r *RideRepo) MarkCancelled(ctx context.Context, rideID uuid.UUID, reason string, by types.CancelInitiator, at time.Time, expected types.RideStatus) error {
	const op = "RideRepo.MarkCancelled"
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET
			status = $2,
			cancelled_at = $3,
			cancel_reason = $4,
			cancelled_by = $5,
			updated_at = now()
		WHERE id = $1 AND status = ANY($6);`

	from := []types.RideStatus{
		types.StatusPending,
		types.StatusDriverAssigned,
		types.StatusRideStarted,
	}
	if expected != "" {
		if !types.CanTransition(expected, types.StatusCancelled) {
			return types.ErrRideCannotBeCancelled
		}
		from = []types.RideStatus{expected}
	}

	cmdTag, err := q.Exec(ctx, query, rideID, types.StatusCancelled, at, reason, by, from)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return types.ErrRideCannotBeCancelled
	}

	return nil
}

// MarkEnded stamps the end of the ride together with settlement, conditional
// on the ride still being in ride_started.
func (r *RideRepo) MarkEnded(ctx context.Context, rideID uuid.UUID, fareSettled float64, paymentMethod string, endedAt time.Time) error {
	const op = "RideRepo.MarkEnded"
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET
			status = $2,
			ended_at = $3,
			fare_settled = $4,
			payment_status = $5,
			payment_method = $6,
			updated_at = now()
		WHERE id = $1 AND status = $7;`

	cmdTag, err := q.Exec(ctx, query,
		rideID,
		types.StatusRideEnded,
		endedAt,
		fareSettled,
		types.PaymentCollected,
		paymentMethod,
		types.StatusRideStarted,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return types.ErrInvalidRideStatus
	}

	return nil
}

// SetQueueAssignment writes the queue fields issued by the ledger.
func (r *RideRepo) SetQueueAssignment(ctx context.Context, rideID uuid.UUID, qa models.QueueAssignment) error {
	const op = "RideRepo.SetQueueAssignment"
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET queue_number = $2, queue_position = $3, queue_status = $4, updated_at = now()
		WHERE id = $1;`

	cmdTag, err := q.Exec(ctx, query, rideID, qa.QueueNumber, qa.QueuePosition, types.QueueStatusQueued)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrRideNotFound
	}

	return nil
}

// IncrementOTPAttempts bumps the attempt counter for the given code kind
// ("start" or "end") and returns the new value.
func (r *RideRepo) IncrementOTPAttempts(ctx context.Context, rideID uuid.UUID, kind string) (int, error) {
	const op = "RideRepo.IncrementOTPAttempts"
	q := TxorDB(ctx, r.db)

	column := "start_otp_attempts"
	if kind == "end" {
		column = "end_otp_attempts"
	}

	query := fmt.Sprintf(`
		UPDATE rides
		SET %s = %s + 1, updated_at = now()
		WHERE id = $1
		RETURNING %s;`, column, column, column)

	var attempts int
	if err := q.QueryRow(ctx, query, rideID).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, types.ErrRideNotFound
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return attempts, nil
}

// FindStuck returns live rides sitting in the given status since before the
// cutoff, judged by the timestamp column that put them there.
func (r *RideRepo) FindStuck(ctx context.Context, status types.RideStatus, cutoff time.Time) ([]*models.Ride, error) {
	const op = "RideRepo.FindStuck"
	q := TxorDB(ctx, r.db)

	column, ok := stuckColumn(status)
	if !ok {
		return nil, fmt.Errorf("%s: no stuck rule for status %s", op, status)
	}

	query := fmt.Sprintf(`SELECT `+rideColumns+` FROM rides WHERE status = $1 AND %s < $2;`, column)

	rows, err := q.Query(ctx, query, status, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var rides []*models.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rides, nil
}

// Delete removes the live record. Completion calls this after the history
// record is written, inside the same transaction.
func (r *RideRepo) Delete(ctx context.Context, rideID uuid.UUID) error {
	const op = "RideRepo.Delete"
	q := TxorDB(ctx, r.db)

	cmdTag, err := q.Exec(ctx, `DELETE FROM rides WHERE id = $1;`, rideID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrRideNotFound
	}

	return nil
}

func timestampColumn(to types.RideStatus) (string, bool) {
	switch to {
	case types.StatusDriverAssigned:
		return "accepted_at", true
	case types.StatusRideStarted:
		return "started_at", true
	case types.StatusRideEnded:
		return "ended_at", true
	case types.StatusCompleted:
		return "completed_at", true
	case types.StatusCancelled:
		return "cancelled_at", true
	default:
		return "", false
	}
}

func stuckColumn(status types.RideStatus) (string, bool) {
	switch status {
	case types.StatusPending:
		return "created_at", true
	case types.StatusDriverAssigned:
		return "accepted_at", true
	case types.StatusRideStarted:
		return "started_at", true
	case types.StatusRideEnded:
		return "ended_at", true
	default:
		return "", false
	}
}

func scanRide(row pgx.Row) (*models.Ride, error) {
	var ride models.Ride
	err := row.Scan(
		&ride.ID, &ride.RideCode, &ride.RiderID, &ride.RiderName, &ride.RiderPhone,
		&ride.PickupPoint, &ride.PickupLocation.Latitude, &ride.PickupLocation.Longitude,
		&ride.DropAddress, &ride.DropLocation.Latitude, &ride.DropLocation.Longitude,
		&ride.VehicleClass, &ride.DistanceKm,
		&ride.FareQuoted, &ride.DriverEarnings, &ride.FareSettled,
		&ride.Status, &ride.DriverID, &ride.DriverName, &ride.DriverPhone, &ride.DriverVehicle,
		&ride.StartOTP, &ride.EndOTP, &ride.StartOTPAttempts, &ride.EndOTPAttempts,
		&ride.QueueNumber, &ride.QueuePosition, &ride.QueueStatus,
		&ride.CreatedAt, &ride.AcceptedAt, &ride.StartedAt, &ride.EndedAt, &ride.CompletedAt, &ride.CancelledAt,
		&ride.CancelReason, &ride.CancelledBy, &ride.PaymentStatus, &ride.PaymentMethod,
	)
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

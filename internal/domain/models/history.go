package models

import (
	"time"

	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/pkg/uuid"
)

// HistoryRecord is the immutable archive entity written once when a ride
// reaches a terminal status. It is the system of record for analytics.
type HistoryRecord struct {
	ID       uuid.UUID
	RideID   uuid.UUID
	RideCode string

	RiderID    uuid.UUID
	RiderName  string
	RiderPhone string

	DriverID      *uuid.UUID
	DriverName    string
	DriverPhone   string
	DriverVehicle string

	PickupPoint  string
	DropAddress  string
	VehicleClass types.VehicleClass
	DistanceKm   float64

	FareQuoted     float64
	DriverEarnings float64
	FareSettled    float64

	FinalStatus  types.RideStatus
	CancelReason *string
	CancelledBy  types.CancelInitiator

	QueueNumber string

	CreatedAt   time.Time
	AcceptedAt  *time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time
	CompletedAt time.Time

	Journey JourneyStats

	PaymentStatus types.PaymentStatus
	PaymentMethod string

	// MissingDriverInfo is set when completion could not backfill the
	// denormalized driver fields from the driver record.
	MissingDriverInfo bool
}

// JourneyStats are computed once at completion from the timeline.
type JourneyStats struct {
	TotalDurationMin float64 `json:"total_duration_min"`
	WaitTimeMin      float64 `json:"wait_time_min"`
	RideDurationMin  float64 `json:"ride_duration_min"`
	AverageSpeedKmh  float64 `json:"average_speed_kmh"`
}

// RiderStats are rolling aggregates updated on every completion.
type RiderStats struct {
	RiderID              uuid.UUID
	TotalRides           int
	CompletedRides       int
	CancelledRides       int
	TotalDistanceKm      float64
	TotalFarePaid        float64
	FavoriteVehicleClass types.VehicleClass
	LongestRideKm        float64
	UpdatedAt            time.Time
}

// DriverStats are rolling aggregates updated on every completion.
type DriverStats struct {
	DriverID        uuid.UUID
	TotalRides      int
	CompletedRides  int
	CancelledRides  int
	TotalDistanceKm float64
	TotalEarnings   float64
	LongestRideKm   float64
	UpdatedAt       time.Time
}

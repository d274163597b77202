package models

import (
	"time"

	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/pkg/uuid"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Ride is the live, mutable record of one trip request. It exists from the
// booking call until completion or cancellation moves it into history.
type Ride struct {
	ID       uuid.UUID
	RideCode string

	// Rider identity, denormalized for display
	RiderID    uuid.UUID
	RiderName  string
	RiderPhone string

	PickupPoint    string
	PickupLocation Location
	DropAddress    string
	DropLocation   Location

	VehicleClass types.VehicleClass
	DistanceKm   float64

	// Fare figures are kept distinct: the rider's quote, the driver's cut
	// after commission/tax, and what was actually settled at the end.
	FareQuoted     float64
	DriverEarnings float64
	FareSettled    *float64

	Status types.RideStatus

	// Assigned driver, denormalized for display. DriverID nil until assigned.
	DriverID      *uuid.UUID
	DriverName    string
	DriverPhone   string
	DriverVehicle string

	// One-time codes gating start/end. Generated at creation, never rotated.
	StartOTP         string
	EndOTP           string
	StartOTPAttempts int
	EndOTPAttempts   int

	QueueNumber   string
	QueuePosition int
	QueueStatus   types.QueueStatus

	CreatedAt   time.Time
	AcceptedAt  *time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	CancelReason *string
	CancelledBy  types.CancelInitiator

	PaymentStatus types.PaymentStatus
	PaymentMethod string
}

// StartOTPConsumed reports whether the start code has been verified; the end
// code is only accepted once this is true.
func (r *Ride) StartOTPConsumed() bool {
	return r.StartedAt != nil
}

// RideSummary is the public shape of a ride used in offers and events.
type RideSummary struct {
	RideID         uuid.UUID          `json:"ride_id"`
	RideCode       string             `json:"ride_code"`
	RiderName      string             `json:"rider_name"`
	PickupPoint    string             `json:"pickup_point"`
	PickupLocation Location           `json:"pickup_location"`
	DropAddress    string             `json:"drop_address"`
	DropLocation   Location           `json:"drop_location"`
	VehicleClass   types.VehicleClass `json:"vehicle_class"`
	DistanceKm     float64            `json:"distance_km"`
	FareQuoted     float64            `json:"fare_quoted"`
	DriverEarnings float64            `json:"driver_earnings"`
	Status         types.RideStatus   `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Summary builds the public shape from the live record.
func (r *Ride) Summary() RideSummary {
	return RideSummary{
		RideID:         r.ID,
		RideCode:       r.RideCode,
		RiderName:      r.RiderName,
		PickupPoint:    r.PickupPoint,
		PickupLocation: r.PickupLocation,
		DropAddress:    r.DropAddress,
		DropLocation:   r.DropLocation,
		VehicleClass:   r.VehicleClass,
		DistanceKm:     r.DistanceKm,
		FareQuoted:     r.FareQuoted,
		DriverEarnings: r.DriverEarnings,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
	}
}

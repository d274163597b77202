package dto

import (
	"time"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/dispatch"
	"github.com/pointride/dispatch/pkg/uuid"
	"github.com/pointride/dispatch/pkg/validator"
)

type CreateRideRequest struct {
	RiderID        uuid.UUID       `json:"rider_id"`
	RiderName      string          `json:"rider_name"`
	RiderPhone     string          `json:"rider_phone"`
	PickupPoint    string          `json:"pickup_point"`
	PickupLocation models.Location `json:"pickup_location"`
	DropAddress    string          `json:"drop_address"`
	DropLocation   models.Location `json:"drop_location"`
	VehicleClass   string          `json:"vehicle_class"`
	DistanceKm     float64         `json:"distance_km"`
	FareQuoted     float64         `json:"fare_quoted"`
	DriverEarnings float64         `json:"driver_earnings,omitempty"`
}

func (r *CreateRideRequest) Validate(v *validator.Validator) {
	v.Check(!r.RiderID.IsNil(), "rider_id", "must be provided")
	v.Check(r.PickupPoint != "", "pickup_point", "must be provided")
	v.Check(len(r.PickupPoint) < 200, "pickup_point", "must be less than 200 characters")
	v.Check(r.DropAddress != "", "drop_address", "must be provided")
	v.Check(types.ValidVehicleClass(types.VehicleClass(r.VehicleClass)), "vehicle_class", "must be one of bike, auto, car")
	v.Check(r.DistanceKm > 0, "distance_km", "must be positive")
	v.Check(r.FareQuoted > 0, "fare_quoted", "must be positive")
	v.Check(r.DriverEarnings >= 0, "driver_earnings", "must not be negative")
}

func (r *CreateRideRequest) ToServiceRequest() dispatch.CreateRideRequest {
	return dispatch.CreateRideRequest{
		RiderID:        r.RiderID,
		RiderName:      r.RiderName,
		RiderPhone:     r.RiderPhone,
		PickupPoint:    r.PickupPoint,
		PickupLocation: r.PickupLocation,
		DropAddress:    r.DropAddress,
		DropLocation:   r.DropLocation,
		VehicleClass:   types.VehicleClass(r.VehicleClass),
		DistanceKm:     r.DistanceKm,
		FareQuoted:     r.FareQuoted,
		DriverEarnings: r.DriverEarnings,
	}
}

type CreateRideResponse struct {
	RideID     uuid.UUID `json:"ride_id"`
	RideCode   string    `json:"ride_code"`
	Status     string    `json:"status"`
	FareQuoted float64   `json:"fare_quoted"`
	StartOTP   string    `json:"start_otp"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewCreateRideResponse(ride *models.Ride) CreateRideResponse {
	return CreateRideResponse{
		RideID:     ride.ID,
		RideCode:   ride.RideCode,
		Status:     ride.Status.String(),
		FareQuoted: ride.FareQuoted,
		StartOTP:   ride.StartOTP,
		CreatedAt:  ride.CreatedAt,
	}
}

type CancelRideRequest struct {
	Reason string `json:"reason"`
}

func (r *CancelRideRequest) Validate(v *validator.Validator) {
	v.Check(r.Reason != "", "reason", "must be provided")
	v.Check(len(r.Reason) < 500, "reason", "must be less than 500 characters")
}

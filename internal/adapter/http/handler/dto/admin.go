package dto

import (
	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/pkg/uuid"
	"github.com/pointride/dispatch/pkg/validator"
)

// ManualBookingRequest is a booking made by an operator, optionally pinned
// to a specific driver.
type ManualBookingRequest struct {
	CreateRideRequest
	DriverID *uuid.UUID `json:"driver_id,omitempty"`
}

// RideLookupResponse is the operator's view of a live ride: the public
// summary plus the assignment and queue details the rider app does not get.
type RideLookupResponse struct {
	models.RideSummary
	DriverID    *uuid.UUID        `json:"driver_id,omitempty"`
	DriverName  string            `json:"driver_name,omitempty"`
	QueueNumber string            `json:"queue_number,omitempty"`
	QueueStatus types.QueueStatus `json:"queue_status,omitempty"`
}

func NewRideLookupResponse(ride *models.Ride) RideLookupResponse {
	return RideLookupResponse{
		RideSummary: ride.Summary(),
		DriverID:    ride.DriverID,
		DriverName:  ride.DriverName,
		QueueNumber: ride.QueueNumber,
		QueueStatus: ride.QueueStatus,
	}
}

// QueueStatusResponse is the day's ledger for one pickup point.
type QueueStatusResponse struct {
	PickupPoint      string `json:"pickup_point"`
	PickupCode       string `json:"pickup_code"`
	Date             string `json:"date"`
	NumbersIssued    int    `json:"numbers_issued"`
	ServedToday      int    `json:"served_today"`
	CurrentlyServing string `json:"currently_serving,omitempty"`
}

func NewQueueStatusResponse(ledger *models.QueueLedger) QueueStatusResponse {
	return QueueStatusResponse{
		PickupPoint:      ledger.PickupPoint,
		PickupCode:       ledger.PickupCode,
		Date:             ledger.Date,
		NumbersIssued:    ledger.Counter,
		ServedToday:      ledger.ServedToday,
		CurrentlyServing: ledger.CurrentlyServing,
	}
}

type ForceStatusRequest struct {
	Status string `json:"status"`
}

func (r *ForceStatusRequest) Validate(v *validator.Validator) {
	switch types.RideStatus(r.Status) {
	case types.StatusDriverAssigned, types.StatusRideStarted, types.StatusRideEnded,
		types.StatusCompleted, types.StatusCancelled:
	default:
		v.AddError("status", "must be a valid ride status")
	}
}

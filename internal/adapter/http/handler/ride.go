package handler

import (
	"context"
	"net/http"

	"github.com/pointride/dispatch/internal/adapter/http/handler/dto"
	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/dispatch"
	"github.com/pointride/dispatch/pkg/logger"
	wrap "github.com/pointride/dispatch/pkg/logger/wrapper"
	"github.com/pointride/dispatch/pkg/uuid"
	"github.com/pointride/dispatch/pkg/validator"
)

type RideService interface {
	CreateRide(ctx context.Context, req dispatch.CreateRideRequest) (*models.Ride, error)
	CancelRide(ctx context.Context, rideID uuid.UUID, reason string, by types.CancelInitiator) error
}

type Ride struct {
	service RideService
	l       logger.Logger
}

func NewRide(service RideService, l logger.Logger) *Ride {
	return &Ride{
		service: service,
		l:       l,
	}
}

// CreateRide books a new ride. The response carries the start code the
// rider hands to the driver at pickup.
func (h *Ride) CreateRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_ride")

	var req dto.CreateRideRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	ride, err := h.service.CreateRide(ctx, req.ToServiceRequest())
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to create ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{"ride": dto.NewCreateRideResponse(ride)}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "ride created", "ride_id", ride.ID, "ride_code", ride.RideCode)
}

// CancelRide cancels a ride on the rider's behalf.
func (h *Ride) CancelRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "cancel_ride")

	rideID, err := uuid.Parse(r.PathValue("ride_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid ride uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid ride uuid format")
		return
	}

	var req dto.CancelRideRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	if err := h.service.CancelRide(ctx, rideID, req.Reason, types.CancelledByRider); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to cancel ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"ride_id": rideID,
		"status":  types.StatusCancelled,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "ride cancelled", "ride_id", rideID)
}

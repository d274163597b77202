package handler

import (
	"context"
	"net/http"

	"github.com/pointride/dispatch/internal/adapter/http/handler/dto"
	"github.com/pointride/dispatch/internal/adapter/http/middleware"
	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/dispatch"
	"github.com/pointride/dispatch/internal/service/lifecycle"
	"github.com/pointride/dispatch/pkg/logger"
	wrap "github.com/pointride/dispatch/pkg/logger/wrapper"
	"github.com/pointride/dispatch/pkg/uuid"
	"github.com/pointride/dispatch/pkg/validator"
)

type AdminService interface {
	CreateManualRide(ctx context.Context, req dispatch.CreateRideRequest, driverID *uuid.UUID) (*models.Ride, error)
	ForceStatus(ctx context.Context, rideID uuid.UUID, to types.RideStatus) error
	CancelRide(ctx context.Context, rideID uuid.UUID, reason string, by types.CancelInitiator) error
	RideByCode(ctx context.Context, rideCode string) (*models.Ride, error)
}

type CompletionService interface {
	Complete(ctx context.Context, rideID uuid.UUID, opts lifecycle.Options) error
}

type QueueService interface {
	Ledger(ctx context.Context, pickupPoint string) (*models.QueueLedger, error)
}

type Admin struct {
	service    AdminService
	completion CompletionService
	queues     QueueService
	l          logger.Logger
}

func NewAdmin(service AdminService, completion CompletionService, queues QueueService, l logger.Logger) *Admin {
	return &Admin{
		service:    service,
		completion: completion,
		queues:     queues,
		l:          l,
	}
}

// ManualBooking books a ride on a rider's behalf, optionally bypassing the
// matching broadcast by naming a driver.
func (h *Admin) ManualBooking(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "admin_manual_booking")

	var req dto.ManualBookingRequest
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

	ride, err := h.service.CreateManualRide(ctx, req.ToServiceRequest(), req.DriverID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to create manual booking", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"ride":   dto.NewCreateRideResponse(ride),
		"status": ride.Status,
	}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.logOperator(ctx, r, "manual booking created", "ride_id", ride.ID)
}

// ForceStatus pushes a ride into the given status, operator override.
func (h *Admin) ForceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "admin_force_status")

	rideID, err := uuid.Parse(r.PathValue("ride_id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid ride uuid format")
		return
	}

	var req dto.ForceStatusRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	if err := h.service.ForceStatus(ctx, rideID, types.RideStatus(req.Status)); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to force status", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{"ride_id": rideID, "status": req.Status}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		internalErrorResponse(w, err.Error())
		return
	}

	h.logOperator(ctx, r, "ride status forced", "ride_id", rideID, "status", req.Status)
}

// CompleteRide finalizes a ride as completed, operator override.
func (h *Admin) CompleteRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "admin_complete_ride")

	rideID, err := uuid.Parse(r.PathValue("ride_id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid ride uuid format")
		return
	}

	opts := lifecycle.Options{
		FinalStatus: types.StatusCompleted,
		Reason:      "completed by operator",
		Initiator:   types.CancelledByAdmin,
	}
	if err := h.completion.Complete(ctx, rideID, opts); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to complete ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{"ride_id": rideID, "status": types.StatusCompleted}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		internalErrorResponse(w, err.Error())
		return
	}

	h.logOperator(ctx, r, "ride completed by operator", "ride_id", rideID)
}

// CancelRide cancels a ride on the operator's authority.
func (h *Admin) CancelRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "admin_cancel_ride")

	rideID, err := uuid.Parse(r.PathValue("ride_id"))
	if err != nil {
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
		failedValidationResponse(w, v.Errors)
		return
	}

	if err := h.service.CancelRide(ctx, rideID, req.Reason, types.CancelledByAdmin); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to cancel ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{"ride_id": rideID, "status": types.StatusCancelled}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		internalErrorResponse(w, err.Error())
		return
	}

	h.logOperator(ctx, r, "ride cancelled by operator", "ride_id", rideID, "reason", req.Reason)
}

// RideLookup finds a live ride by the booking code shown on the rider's
// screen, so an operator can pull it up from a phone call.
func (h *Admin) RideLookup(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "admin_ride_lookup")

	rideCode := r.PathValue("ride_code")
	if rideCode == "" {
		errorResponse(w, http.StatusBadRequest, "ride code must be provided")
		return
	}

	ride, err := h.service.RideByCode(ctx, rideCode)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to look up ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{"ride": dto.NewRideLookupResponse(ride)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		internalErrorResponse(w, err.Error())
		return
	}
}

// QueueStatus reports the day's ledger for a pickup point.
func (h *Admin) QueueStatus(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "admin_queue_status")

	pickupPoint := r.PathValue("pickup_point")
	if pickupPoint == "" {
		errorResponse(w, http.StatusBadRequest, "pickup point must be provided")
		return
	}

	ledger, err := h.queues.Ledger(ctx, pickupPoint)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to load queue ledger", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{"queue": dto.NewQueueStatusResponse(ledger)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		internalErrorResponse(w, err.Error())
		return
	}
}

// logOperator includes the acting operator's id in the audit log line.
func (h *Admin) logOperator(ctx context.Context, r *http.Request, msg string, args ...any) {
	if claims := middleware.OperatorFromContext(r.Context()); claims != nil {
		args = append(args, "operator_id", claims.OperatorID)
	}
	h.l.Info(ctx, msg, args...)
}

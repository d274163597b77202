package ws

import (
	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/pkg/uuid"
)

// Inbound message shapes. Every message carries "type"; the gateway decodes
// the rest into the matching struct.

type driverOnlineRequest struct {
	Type         string             `json:"type"`
	Name         string             `json:"name"`
	Phone        string             `json:"phone"`
	Vehicle      string             `json:"vehicle"`
	VehicleClass types.VehicleClass `json:"vehicle_class"`
	PickupPoint  string             `json:"pickup_point"`
	Location     models.Location    `json:"location"`
}

type acceptRideRequest struct {
	Type   string    `json:"type"`
	RideID uuid.UUID `json:"ride_id"`
}

type verifyOTPRequest struct {
	Type          string    `json:"type"`
	RideID        uuid.UUID `json:"ride_id"`
	Code          string    `json:"otp"`
	PaymentMethod string    `json:"payment_method,omitempty"`
}

type cancelRideRequest struct {
	Type   string    `json:"type"`
	RideID uuid.UUID `json:"ride_id"`
	Reason string    `json:"reason"`
}

type locationUpdateRequest struct {
	Type     string          `json:"type"`
	Location models.Location `json:"location"`
}

type adminAckRequest struct {
	Type    string    `json:"type"`
	EventID uuid.UUID `json:"event_id"`
}

// Outbound gateway-level replies. Domain events come from the notifier;
// these are only the synchronous acknowledgments of inbound messages.

type connectedAck struct {
	Type     types.EventType `json:"type"` // "connected"
	EntityID uuid.UUID       `json:"entity_id"`
	Role     string          `json:"role"`
}

type acceptResult struct {
	Type     string                  `json:"type"` // "accept_result"
	RideID   uuid.UUID               `json:"ride_id"`
	Accepted bool                    `json:"accepted"`
	Reason   string                  `json:"reason,omitempty"`
	Ride     *models.RideSummary     `json:"ride,omitempty"`
	Queue    *models.QueueAssignment `json:"queue,omitempty"`
}

type actionResult struct {
	Type    string    `json:"type"` // "result"
	Action  string    `json:"action"`
	RideID  uuid.UUID `json:"ride_id,omitempty"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}

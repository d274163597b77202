package models

import (
	"time"

	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/pkg/uuid"
)

/* ======================= Websocket ======================= */

// RideOfferMessage invites a driver to accept a pending ride.
type RideOfferMessage struct {
	Type    types.EventType `json:"type"` // "new_ride_offer"
	OfferID uuid.UUID       `json:"offer_id"`
	Ride    RideSummary     `json:"ride"`
}

// OfferClosedMessage tells the losing drivers to stop showing the offer.
type OfferClosedMessage struct {
	Type     types.EventType `json:"type"` // "offer_closed"
	RideID   uuid.UUID       `json:"ride_id"`
	DriverID uuid.UUID       `json:"driver_id"` // the accepting driver
	Reason   string          `json:"reason"`
}

// QueueAssignedMessage carries the queue number to the rider and the driver.
type QueueAssignedMessage struct {
	Type   types.EventType `json:"type"` // "queue_number_assigned"
	RideID uuid.UUID       `json:"ride_id"`
	Queue  QueueAssignment `json:"queue"`
}

// RideEventMessage is the generic party-facing lifecycle event.
type RideEventMessage struct {
	Type      types.EventType  `json:"type"`
	RideID    uuid.UUID        `json:"ride_id"`
	Status    types.RideStatus `json:"status"`
	Message   string           `json:"message,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// DriverLocationMessage forwards an assigned driver's position to the rider.
type DriverLocationMessage struct {
	Type     types.EventType `json:"type"` // "driver_location"
	RideID   uuid.UUID       `json:"ride_id"`
	DriverID uuid.UUID       `json:"driver_id"`
	Location Location        `json:"location"`
}

/* ======================= Admin cohort ======================= */

// AdminEvent is the envelope the admin cohort receives for every state
// change: {type, data, timestamp, id}. Retries reuse the same ID with an
// incremented Attempt so receivers can deduplicate.
type AdminEvent struct {
	ID        uuid.UUID       `json:"id"`
	Type      types.EventType `json:"type"`
	Data      any             `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Attempt   int             `json:"attempt"`
}

/* ======================= Event bus ======================= */

// BusEvent mirrors every admin event onto the RabbitMQ topic exchange for
// out-of-process ops tooling. At-least-once; consumers deduplicate by ID.
type BusEvent struct {
	ID        uuid.UUID       `json:"id"`
	Type      types.EventType `json:"type"`
	RideID    uuid.UUID       `json:"ride_id"`
	Data      any             `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

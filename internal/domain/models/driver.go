package models

import (
	"time"

	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/pkg/uuid"
)

// DriverPresence is the live state of a connected driver, owned by the
// presence store. A driver with a non-nil ActiveRideID gets no new offers.
type DriverPresence struct {
	DriverID     uuid.UUID          `json:"driver_id"`
	Name         string             `json:"name"`
	Phone        string             `json:"phone"`
	Vehicle      string             `json:"vehicle"`
	VehicleClass types.VehicleClass `json:"vehicle_class"`
	PickupPoint  string             `json:"pickup_point"`
	Location     Location           `json:"location"`
	ActiveRideID *uuid.UUID         `json:"active_ride_id,omitempty"`
	OnlineSince  time.Time          `json:"online_since"`
}

// Free reports whether the driver can receive offers.
func (p *DriverPresence) Free() bool {
	return p.ActiveRideID == nil
}

package types

// RideStatus is the lifecycle state of a live ride.
type RideStatus string

const (
	StatusPending        RideStatus = "pending"
	StatusDriverAssigned RideStatus = "driver_assigned"
	StatusRideStarted    RideStatus = "ride_started"
	StatusRideEnded      RideStatus = "ride_ended"
	StatusCompleted      RideStatus = "completed"
	StatusCancelled      RideStatus = "cancelled"
)

func (s RideStatus) String() string { return string(s) }

// IsTerminal reports whether the status ends the live record's life.
func (s RideStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// rank orders the forward-only path. Terminal cancelled is handled separately.
var statusRank = map[RideStatus]int{
	StatusPending:        0,
	StatusDriverAssigned: 1,
	StatusRideStarted:    2,
	StatusRideEnded:      3,
	StatusCompleted:      4,
}

// CanTransition reports whether moving from -> to is a legal lifecycle step.
// Status only ever moves forward along the ordered path; cancelled is
// reachable from pending, driver_assigned and ride_started.
func CanTransition(from, to RideStatus) bool {
	if to == StatusCancelled {
		switch from {
		case StatusPending, StatusDriverAssigned, StatusRideStarted:
			return true
		}
		return false
	}

	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	return toRank == fromRank+1
}

// VehicleClass is the declared class of a driver's vehicle.
type VehicleClass string

const (
	VehicleBike VehicleClass = "bike"
	VehicleAuto VehicleClass = "auto"
	VehicleCar  VehicleClass = "car"
)

func (v VehicleClass) String() string { return string(v) }

// ValidVehicleClass reports whether the value is a known class.
func ValidVehicleClass(v VehicleClass) bool {
	switch v {
	case VehicleBike, VehicleAuto, VehicleCar:
		return true
	default:
		return false
	}
}

// QueueStatus is the sub-status of a queue ledger entry.
type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusInProgress QueueStatus = "in_progress"
	QueueStatusCompleted  QueueStatus = "completed"
)

// PaymentStatus tracks fare settlement on the live ride.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCollected PaymentStatus = "collected"
)

// CancelInitiator identifies who cancelled a ride.
type CancelInitiator string

const (
	CancelledByRider  CancelInitiator = "rider"
	CancelledByDriver CancelInitiator = "driver"
	CancelledByAdmin  CancelInitiator = "admin"
	CancelledBySystem CancelInitiator = "system"
)

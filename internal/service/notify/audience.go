package notify

import "github.com/pointride/dispatch/pkg/uuid"

// Room names. Every connected party joins the rooms its role implies; the
// audience resolver below is the only place that maps a logical audience to
// the concrete rooms it spans.
const (
	RoomDrivers = "drivers"
	RoomAdmins  = "admins"
)

func RiderRoom(id uuid.UUID) string  { return "rider:" + id.String() }
func DriverRoom(id uuid.UUID) string { return "driver:" + id.String() }

type audienceKind int

const (
	audienceRider audienceKind = iota
	audienceDriver
	audienceAllDrivers
	audienceAdmins
)

// Audience is a logical delivery target: a specific rider, a specific
// driver, the whole driver pool, or the admin cohort.
type Audience struct {
	kind audienceKind
	id   uuid.UUID
}

func Rider(id uuid.UUID) Audience  { return Audience{kind: audienceRider, id: id} }
func Driver(id uuid.UUID) Audience { return Audience{kind: audienceDriver, id: id} }
func AllDrivers() Audience         { return Audience{kind: audienceAllDrivers} }
func Admins() Audience             { return Audience{kind: audienceAdmins} }

// Rooms resolves the audience to concrete rooms. A specific driver is
// addressed through their private room plus, redundantly, the shared
// drivers room, to tolerate a driver being in one but not the other.
func (a Audience) Rooms() []string {
	switch a.kind {
	case audienceRider:
		return []string{RiderRoom(a.id)}
	case audienceDriver:
		return []string{DriverRoom(a.id), RoomDrivers}
	case audienceAllDrivers:
		return []string{RoomDrivers}
	case audienceAdmins:
		return []string{RoomAdmins}
	default:
		return nil
	}
}

// Label names the audience for logs and metrics.
func (a Audience) Label() string {
	switch a.kind {
	case audienceRider:
		return "rider"
	case audienceDriver:
		return "driver"
	case audienceAllDrivers:
		return "all_drivers"
	case audienceAdmins:
		return "admins"
	default:
		return "unknown"
	}
}

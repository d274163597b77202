package models

import (
	"time"

	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/pkg/uuid"
)

// QueueLedger is the per-(pickup point, calendar day) sequence counter and
// active-ride tracker. Created lazily on the first accepted ride of the day.
type QueueLedger struct {
	PickupPoint      string
	PickupCode       string
	Date             string // YYYYMMDD
	Counter          int
	ServedToday      int
	CurrentlyServing string // queue number, empty when idle
}

// QueueEntry is one active ride inside a ledger.
type QueueEntry struct {
	RideID        uuid.UUID
	QueueNumber   string
	QueuePosition int
	Status        types.QueueStatus
	CreatedAt     time.Time
}

// QueueAssignment is what the ledger hands back on assign.
type QueueAssignment struct {
	QueueNumber      string `json:"queue_number"`
	QueuePosition    int    `json:"queue_position"`
	TotalQueued      int    `json:"total_queued"`
	EstimatedWaitMin int    `json:"estimated_wait_min"`

	// Degraded marks a locally synthesized number issued because the
	// ledger write failed; assignment is never blocked on the ledger.
	Degraded bool `json:"-"`
}

package types

// EventType names the outbound realtime events.
type EventType string

const (
	EventConnected           EventType = "connected"
	EventNewRideOffer        EventType = "new_ride_offer"
	EventOfferClosed         EventType = "offer_closed"
	EventRideAssigned        EventType = "ride_assigned"
	EventQueueNumberAssigned EventType = "queue_number_assigned"
	EventRideStarted         EventType = "ride_started"
	EventRideEnded           EventType = "ride_ended"
	EventRideCompleted       EventType = "ride_completed"
	EventRideCancelled       EventType = "ride_cancelled"
	EventDriverLocation      EventType = "driver_location"
	EventDispatchUpdate      EventType = "dispatch_update"
)

func (e EventType) String() string { return string(e) }

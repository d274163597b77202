package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes - setups http routes
func (a *API) setupRoutes() {
	// System health and metrics
	a.mux.HandleFunc("GET /health", a.routes.health.HealthCheck)
	a.mux.Handle("GET /metrics", promhttp.Handler())

	// Realtime gateway for riders, drivers and admins
	a.mux.HandleFunc("GET /ws", a.routes.ws)

	// Booking surface
	a.mux.HandleFunc("POST /rides", a.routes.ride.CreateRide)                  // Create a new ride request
	a.mux.HandleFunc("POST /rides/{ride_id}/cancel", a.routes.ride.CancelRide) // Cancel a ride

	// Operator surface, token-guarded
	a.mux.Handle("POST /admin/rides", a.m.RequireOperator(a.routes.admin.ManualBooking))                   // Manual booking, optional pinned driver
	a.mux.Handle("POST /admin/rides/{ride_id}/status", a.m.RequireOperator(a.routes.admin.ForceStatus))    // Force a status transition
	a.mux.Handle("POST /admin/rides/{ride_id}/complete", a.m.RequireOperator(a.routes.admin.CompleteRide)) // Force completion
	a.mux.Handle("POST /admin/rides/{ride_id}/cancel", a.m.RequireOperator(a.routes.admin.CancelRide))     // Operator cancellation
	a.mux.Handle("GET /admin/rides/{ride_code}", a.m.RequireOperator(a.routes.admin.RideLookup))           // Look up a ride by booking code
	a.mux.Handle("GET /admin/queues/{pickup_point}", a.m.RequireOperator(a.routes.admin.QueueStatus))      // Day's ledger for a pickup point
}

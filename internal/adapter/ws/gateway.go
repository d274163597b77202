// Package ws is the realtime gateway: one /ws endpoint upgrading riders,
// drivers and admins into the room hub and routing their inbound messages
// to the dispatch engine.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/internal/service/auth"
	"github.com/pointride/dispatch/internal/service/notify"
	"github.com/pointride/dispatch/pkg/logger"
	wrap "github.com/pointride/dispatch/pkg/logger/wrapper"
	"github.com/pointride/dispatch/pkg/metrics"
	"github.com/pointride/dispatch/pkg/uuid"
	"github.com/pointride/dispatch/pkg/wshub"
)

const (
	RoleRider  = "rider"
	RoleDriver = "driver"
	RoleAdmin  = "admin"
)

// Dispatcher is the slice of the dispatch engine the gateway drives.
type Dispatcher interface {
	AcceptRide(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, models.QueueAssignment, error)
	VerifyStartOTP(ctx context.Context, rideID uuid.UUID, code string) error
	VerifyEndOTP(ctx context.Context, rideID uuid.UUID, code, paymentMethod string) error
	CancelRide(ctx context.Context, rideID uuid.UUID, reason string, by types.CancelInitiator) error
	DriverOnline(ctx context.Context, p models.DriverPresence) error
	DriverOffline(ctx context.Context, driverID uuid.UUID) error
	DriverLocation(ctx context.Context, driverID uuid.UUID, loc models.Location) error
}

// AdminNotifier is the admin-side surface of the notification service.
type AdminNotifier interface {
	Ack(eventID, adminID uuid.UUID)
	ReplayOffline(ctx context.Context, adminID uuid.UUID)
}

type TokenValidator interface {
	Validate(token string) (*auth.OperatorClaims, error)
}

type Gateway struct {
	hub      *wshub.Hub
	dispatch Dispatcher
	admins   AdminNotifier
	tokens   TokenValidator
	log      logger.Logger

	upgrader websocket.Upgrader
}

func NewGateway(hub *wshub.Hub, dispatch Dispatcher, admins AdminNotifier, tokens TokenValidator, log logger.Logger) *Gateway {
	return &Gateway{
		hub:      hub,
		dispatch: dispatch,
		admins:   admins,
		tokens:   tokens,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// HandleWS upgrades the connection and runs its read loop until disconnect.
// Identity comes from query parameters: role, id and, for admins, token.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "ws_connect")

	role := r.URL.Query().Get("role")
	switch role {
	case RoleRider, RoleDriver, RoleAdmin:
	default:
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}

	entityID, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if role == RoleAdmin {
		if _, err := g.tokens.Validate(r.URL.Query().Get("token")); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	wsconn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn(ctx, "websocket upgrade failed", "err", err.Error())
		return
	}

	conn := wshub.NewConn(context.WithoutCancel(ctx), entityID, role, wsconn)
	if err := g.hub.Add(conn, roomsFor(role, entityID)...); err != nil {
		g.log.Warn(ctx, "failed to register connection", "err", err.Error())
		_ = conn.Close()
		return
	}

	metrics.WebSocketConnectionsGauge.WithLabelValues(role).Inc()
	g.log.Info(ctx, "websocket connected", "role", role, "entity_id", entityID)

	_ = conn.Send(connectedAck{Type: types.EventConnected, EntityID: entityID, Role: role})

	if role == RoleAdmin {
		g.admins.ReplayOffline(ctx, entityID)
	}

	g.serve(conn)
}

func roomsFor(role string, entityID uuid.UUID) []string {
	switch role {
	case RoleRider:
		return []string{notify.RiderRoom(entityID)}
	case RoleDriver:
		return []string{notify.DriverRoom(entityID), notify.RoomDrivers}
	default:
		return []string{notify.RoomAdmins}
	}
}

// serve runs the read loop and tears the connection down when it returns.
func (g *Gateway) serve(conn *wshub.Conn) {
	ctx := wrap.WithAction(context.Background(), "ws_serve")
	entityID, role := conn.EntityID(), conn.Role()

	err := conn.Listen(func(msg map[string]any) error {
		g.route(ctx, conn, msg)
		return nil
	})
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		g.log.Debug(ctx, "websocket read loop ended", "entity_id", entityID, "err", err.Error())
	}

	_ = g.hub.Delete(entityID)
	metrics.WebSocketConnectionsGauge.WithLabelValues(role).Dec()

	// a vanished driver stops receiving offers immediately
	if role == RoleDriver {
		if err := g.dispatch.DriverOffline(ctx, entityID); err != nil {
			g.log.Debug(ctx, "offline on disconnect failed", "driver_id", entityID, "err", err.Error())
		}
	}

	g.log.Info(ctx, "websocket disconnected", "role", role, "entity_id", entityID)
}

func (g *Gateway) route(ctx context.Context, conn *wshub.Conn, msg map[string]any) {
	msgType, _ := msg["type"].(string)
	entityID := conn.EntityID()

	switch conn.Role() {
	case RoleDriver:
		g.routeDriver(ctx, conn, entityID, msgType, msg)
	case RoleRider:
		g.routeRider(ctx, conn, entityID, msgType, msg)
	case RoleAdmin:
		g.routeAdmin(ctx, conn, entityID, msgType, msg)
	}
}

func (g *Gateway) routeDriver(ctx context.Context, conn *wshub.Conn, driverID uuid.UUID, msgType string, msg map[string]any) {
	switch msgType {
	case "driver_online":
		var req driverOnlineRequest
		if !decode(conn, msg, &req) {
			return
		}
		err := g.dispatch.DriverOnline(ctx, models.DriverPresence{
			DriverID:     driverID,
			Name:         req.Name,
			Phone:        req.Phone,
			Vehicle:      req.Vehicle,
			VehicleClass: req.VehicleClass,
			PickupPoint:  req.PickupPoint,
			Location:     req.Location,
		})
		reply(conn, "driver_online", uuid.Nil, err)

	case "driver_offline":
		err := g.dispatch.DriverOffline(ctx, driverID)
		reply(conn, "driver_offline", uuid.Nil, err)

	case "accept_ride":
		var req acceptRideRequest
		if !decode(conn, msg, &req) {
			return
		}
		g.handleAccept(ctx, conn, driverID, req.RideID)

	case "verify_start_otp":
		var req verifyOTPRequest
		if !decode(conn, msg, &req) {
			return
		}
		err := g.dispatch.VerifyStartOTP(ctx, req.RideID, req.Code)
		reply(conn, "verify_start_otp", req.RideID, err)

	case "verify_end_otp":
		var req verifyOTPRequest
		if !decode(conn, msg, &req) {
			return
		}
		err := g.dispatch.VerifyEndOTP(ctx, req.RideID, req.Code, req.PaymentMethod)
		reply(conn, "verify_end_otp", req.RideID, err)

	case "cancel_ride":
		var req cancelRideRequest
		if !decode(conn, msg, &req) {
			return
		}
		err := g.dispatch.CancelRide(ctx, req.RideID, req.Reason, types.CancelledByDriver)
		reply(conn, "cancel_ride", req.RideID, err)

	case "location_update":
		var req locationUpdateRequest
		if !decode(conn, msg, &req) {
			return
		}
		if err := g.dispatch.DriverLocation(ctx, driverID, req.Location); err != nil {
			g.log.Debug(ctx, "location update failed", "driver_id", driverID, "err", err.Error())
		}

	default:
		errorResponse(conn, fmt.Sprintf("unknown message type %q", msgType))
	}
}

func (g *Gateway) routeRider(ctx context.Context, conn *wshub.Conn, riderID uuid.UUID, msgType string, msg map[string]any) {
	switch msgType {
	case "cancel_ride":
		var req cancelRideRequest
		if !decode(conn, msg, &req) {
			return
		}
		err := g.dispatch.CancelRide(ctx, req.RideID, req.Reason, types.CancelledByRider)
		reply(conn, "cancel_ride", req.RideID, err)

	default:
		errorResponse(conn, fmt.Sprintf("unknown message type %q", msgType))
	}
}

func (g *Gateway) routeAdmin(ctx context.Context, conn *wshub.Conn, adminID uuid.UUID, msgType string, msg map[string]any) {
	switch msgType {
	case "admin_ack":
		var req adminAckRequest
		if !decode(conn, msg, &req) {
			return
		}
		g.admins.Ack(req.EventID, adminID)

	case "cancel_ride":
		var req cancelRideRequest
		if !decode(conn, msg, &req) {
			return
		}
		err := g.dispatch.CancelRide(ctx, req.RideID, req.Reason, types.CancelledByAdmin)
		reply(conn, "cancel_ride", req.RideID, err)

	default:
		errorResponse(conn, fmt.Sprintf("unknown message type %q", msgType))
	}
}

// handleAccept turns the race outcome into an explicit accept_result so the
// losing driver gets a clean answer instead of silence.
func (g *Gateway) handleAccept(ctx context.Context, conn *wshub.Conn, driverID, rideID uuid.UUID) {
	ride, qa, err := g.dispatch.AcceptRide(ctx, rideID, driverID)
	if err != nil {
		reason := "accept failed"
		switch {
		case errors.Is(err, types.ErrRideNoLongerAvailable):
			reason = "ride no longer available"
		case errors.Is(err, types.ErrDriverBusy):
			reason = "finish your current ride first"
		case errors.Is(err, types.ErrDriverOffline):
			reason = "go online before accepting rides"
		}
		_ = conn.Send(acceptResult{Type: "accept_result", RideID: rideID, Accepted: false, Reason: reason})
		return
	}

	summary := ride.Summary()
	_ = conn.Send(acceptResult{
		Type:     "accept_result",
		RideID:   rideID,
		Accepted: true,
		Ride:     &summary,
		Queue:    &qa,
	})
}

// decode round-trips the raw map into the typed request, reporting malformed
// payloads back to the client.
func decode(conn *wshub.Conn, msg map[string]any, dst any) bool {
	data, err := json.Marshal(msg)
	if err == nil {
		err = json.Unmarshal(data, dst)
	}
	if err != nil {
		errorResponse(conn, "malformed message: "+err.Error())
		return false
	}
	return true
}

func reply(conn *wshub.Conn, action string, rideID uuid.UUID, err error) {
	res := actionResult{Type: "result", Action: action, RideID: rideID, Success: err == nil}
	if err != nil {
		res.Error = err.Error()
	}
	_ = conn.Send(res)
}

func errorResponse(conn *wshub.Conn, message string) {
	_ = conn.Send(map[string]any{"type": "error", "error": message})
}

// Package notify is the delivery layer between the dispatch core and the
// connected parties. Rider/driver notifications are best-effort fan-out;
// admin notifications are tracked: acknowledgment counting, bounded retry
// and an in-memory offline queue replayed on the next admin connect.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/pkg/logger"
	wrap "github.com/pointride/dispatch/pkg/logger/wrapper"
	"github.com/pointride/dispatch/pkg/metrics"
	"github.com/pointride/dispatch/pkg/uuid"
)

// RoomSender is the transport surface the notifier needs; pkg/wshub.Hub
// satisfies it.
type RoomSender interface {
	Broadcast(room string, msg any) (int, error)
	SendTo(id uuid.UUID, msg any) error
	RoomSize(room string) int
}

// BusPublisher mirrors admin events onto the out-of-process event bus.
type BusPublisher interface {
	PublishEvent(ctx context.Context, event models.BusEvent) error
}

type Config struct {
	AckWait      time.Duration // how long to wait for admin acks
	RetryDelay   time.Duration // fixed delay between admin delivery attempts
	MaxAttempts  int           // admin delivery attempts before giving up
	OfflineLimit int           // offline admin queue capacity, oldest evicted
}

func DefaultConfig() Config {
	return Config{
		AckWait:      5 * time.Second,
		RetryDelay:   2 * time.Second,
		MaxAttempts:  3,
		OfflineLimit: 50,
	}
}

type Service struct {
	rooms RoomSender
	bus   BusPublisher
	cfg   Config
	log   logger.Logger

	mu      sync.Mutex
	acks    map[uuid.UUID]chan uuid.UUID
	offline []models.AdminEvent

	wg sync.WaitGroup
}

// NewService builds a notifier. bus may be nil when no event mirror is wired
// (tests).
func NewService(rooms RoomSender, bus BusPublisher, cfg Config, log logger.Logger) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Service{
		rooms: rooms,
		bus:   bus,
		cfg:   cfg,
		log:   log,
		acks:  make(map[uuid.UUID]chan uuid.UUID),
	}
}

// Notify fans a message out to every room of the audience. Best effort:
// delivery failures are logged and counted, never escalated.
func (s *Service) Notify(ctx context.Context, aud Audience, msg any) {
	ctx = wrap.WithAction(ctx, "notify")

	delivered := 0
	for _, room := range aud.Rooms() {
		n, err := s.rooms.Broadcast(room, msg)
		if err != nil {
			s.log.Debug(ctx, "no connections in room", "room", room, "audience", aud.Label())
			continue
		}
		delivered += n
	}

	outcome := "delivered"
	if delivered == 0 {
		outcome = "no_receiver"
	}
	metrics.NotificationAttemptsTotal.WithLabelValues(aud.Label(), outcome).Inc()
}

// NotifyAdmins delivers a tracked event to the admin cohort: the generic
// envelope plus the type-specific payload for backward compatibility. The
// envelope delivery (ack wait, retries, offline queuing) runs in the
// background; the caller's transition is already durable and never blocks
// on it. The event is also mirrored onto the bus.
func (s *Service) NotifyAdmins(ctx context.Context, eventType types.EventType, rideID uuid.UUID, data any) {
	now := time.Now()
	event := models.AdminEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Data:      data,
		Timestamp: now,
		Attempt:   1,
	}

	if s.bus != nil {
		busEvent := models.BusEvent{
			ID:        event.ID,
			Type:      eventType,
			RideID:    rideID,
			Data:      data,
			Timestamp: now,
		}
		if err := s.bus.PublishEvent(ctx, busEvent); err != nil {
			s.log.Warn(wrap.WithAction(ctx, "notify_admins"), "failed to mirror event to bus", "err", err.Error())
		}
	}

	// legacy type-specific event, fire and forget
	_, _ = s.rooms.Broadcast(RoomAdmins, data)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.DeliverAdminEvent(context.WithoutCancel(ctx), event)
	}()
}

// DeliverAdminEvent runs the tracked delivery loop for one envelope:
// broadcast, wait for acks, retry on zero acks, queue offline when no admin
// session is connected at all.
func (s *Service) DeliverAdminEvent(ctx context.Context, event models.AdminEvent) {
	ctx = wrap.WithAction(ctx, "deliver_admin_event")

	if s.rooms.RoomSize(RoomAdmins) == 0 {
		s.enqueueOffline(ctx, event)
		return
	}

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		event.Attempt = attempt

		ackCh := s.registerAck(event.ID)
		delivered, err := s.rooms.Broadcast(RoomAdmins, event)
		if err != nil || delivered == 0 {
			s.unregisterAck(event.ID)
			s.enqueueOffline(ctx, event)
			return
		}

		acked := s.waitForAcks(ctx, ackCh)
		s.unregisterAck(event.ID)

		if acked > 0 {
			metrics.NotificationAttemptsTotal.WithLabelValues("admins", "acked").Inc()
			s.log.Debug(ctx, "admin event acknowledged",
				"event_id", event.ID, "type", event.Type, "acks", acked, "attempt", attempt)
			return
		}

		metrics.NotificationAttemptsTotal.WithLabelValues("admins", "no_ack").Inc()
		s.log.Warn(ctx, "admin event not acknowledged",
			"event_id", event.ID, "type", event.Type, "attempt", attempt)

		if attempt < s.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.RetryDelay):
			}
		}
	}

	s.log.Warn(ctx, "admin event delivery exhausted",
		"event_id", event.ID, "type", event.Type, "attempts", s.cfg.MaxAttempts)
}

// Ack records an admin session's acknowledgment of an event.
func (s *Service) Ack(eventID, adminID uuid.UUID) {
	s.mu.Lock()
	ch, ok := s.acks[eventID]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- adminID:
	default:
	}
}

// ReplayOffline sends every queued admin event to the session that just
// connected and clears the queue.
func (s *Service) ReplayOffline(ctx context.Context, adminID uuid.UUID) {
	ctx = wrap.WithAction(ctx, "replay_offline_notifications")

	s.mu.Lock()
	pending := s.offline
	s.offline = nil
	s.mu.Unlock()

	metrics.OfflineQueueDepth.Set(0)

	if len(pending) == 0 {
		return
	}

	for _, event := range pending {
		if err := s.rooms.SendTo(adminID, event); err != nil {
			s.log.Warn(ctx, "failed to replay offline event", "event_id", event.ID, "err", err.Error())
		}
	}

	s.log.Info(ctx, "replayed offline admin events", "count", len(pending), "admin_id", adminID)
}

// OfflineCount returns the current offline queue depth.
func (s *Service) OfflineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.offline)
}

// Wait blocks until in-flight admin deliveries finish. Shutdown hook.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) enqueueOffline(ctx context.Context, event models.AdminEvent) {
	s.mu.Lock()
	s.offline = append(s.offline, event)
	if len(s.offline) > s.cfg.OfflineLimit {
		// evict oldest
		s.offline = s.offline[len(s.offline)-s.cfg.OfflineLimit:]
	}
	depth := len(s.offline)
	s.mu.Unlock()

	metrics.OfflineQueueDepth.Set(float64(depth))
	s.log.Info(ctx, "queued admin event for offline replay", "event_id", event.ID, "type", event.Type, "depth", depth)
}

func (s *Service) registerAck(eventID uuid.UUID) chan uuid.UUID {
	ch := make(chan uuid.UUID, 16)
	s.mu.Lock()
	s.acks[eventID] = ch
	s.mu.Unlock()
	return ch
}

func (s *Service) unregisterAck(eventID uuid.UUID) {
	s.mu.Lock()
	delete(s.acks, eventID)
	s.mu.Unlock()
}

// waitForAcks counts distinct acknowledging sessions within the ack window.
func (s *Service) waitForAcks(ctx context.Context, ackCh <-chan uuid.UUID) int {
	timer := time.NewTimer(s.cfg.AckWait)
	defer timer.Stop()

	seen := make(map[uuid.UUID]struct{})
	for {
		select {
		case <-ctx.Done():
			return len(seen)
		case <-timer.C:
			return len(seen)
		case adminID := <-ackCh:
			seen[adminID] = struct{}{}
		}
	}
}

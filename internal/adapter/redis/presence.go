package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/internal/domain/types"
	"github.com/pointride/dispatch/pkg/uuid"
)

const (
	onlineSetKey    = "dispatch:drivers:online"
	driverKeyPrefix = "dispatch:driver:"
)

var ErrDriverNotPresent = errors.New("driver not present")

// PresenceStore keeps the live state of connected drivers in Redis: who is
// online, where they declared themselves, and whether they hold an active
// ride. Durable driver records live elsewhere; this is coordination state.
type PresenceStore struct {
	rdb *redis.Client
}

func NewPresenceStore(rdb *redis.Client) *PresenceStore {
	return &PresenceStore{rdb: rdb}
}

func driverKey(id uuid.UUID) string {
	return driverKeyPrefix + id.String()
}

// SetOnline registers or refreshes a driver's presence.
func (s *PresenceStore) SetOnline(ctx context.Context, p models.DriverPresence) error {
	const op = "PresenceStore.SetOnline"

	fields := map[string]any{
		"name":          p.Name,
		"phone":         p.Phone,
		"vehicle":       p.Vehicle,
		"vehicle_class": string(p.VehicleClass),
		"pickup_point":  p.PickupPoint,
		"lat":           p.Location.Latitude,
		"lng":           p.Location.Longitude,
		"online_since":  p.OnlineSince.Format(time.RFC3339),
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, driverKey(p.DriverID), fields)
	pipe.SAdd(ctx, onlineSetKey, p.DriverID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SetOffline removes the driver from the online set and drops the hash.
func (s *PresenceStore) SetOffline(ctx context.Context, driverID uuid.UUID) error {
	const op = "PresenceStore.SetOffline"

	pipe := s.rdb.TxPipeline()
	pipe.SRem(ctx, onlineSetKey, driverID.String())
	pipe.Del(ctx, driverKey(driverID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Get loads one driver's presence.
func (s *PresenceStore) Get(ctx context.Context, driverID uuid.UUID) (*models.DriverPresence, error) {
	const op = "PresenceStore.Get"

	fields, err := s.rdb.HGetAll(ctx, driverKey(driverID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(fields) == 0 {
		return nil, ErrDriverNotPresent
	}

	return presenceFromFields(driverID, fields)
}

// ListOnline returns the presence of every driver in the online set.
// Drivers whose hash expired between the set read and the hash read are
// skipped.
func (s *PresenceStore) ListOnline(ctx context.Context) ([]models.DriverPresence, error) {
	const op = "PresenceStore.ListOnline"

	ids, err := s.rdb.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	drivers := make([]models.DriverPresence, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		p, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrDriverNotPresent) {
				continue
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		drivers = append(drivers, *p)
	}

	return drivers, nil
}

// SetActiveRide marks the driver busy with the given ride; nil frees them.
func (s *PresenceStore) SetActiveRide(ctx context.Context, driverID uuid.UUID, rideID *uuid.UUID) error {
	const op = "PresenceStore.SetActiveRide"

	var err error
	if rideID == nil {
		err = s.rdb.HDel(ctx, driverKey(driverID), "active_ride").Err()
	} else {
		err = s.rdb.HSet(ctx, driverKey(driverID), "active_ride", rideID.String()).Err()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UpdateLocation refreshes the driver's last known coordinates.
func (s *PresenceStore) UpdateLocation(ctx context.Context, driverID uuid.UUID, loc models.Location) error {
	const op = "PresenceStore.UpdateLocation"

	if err := s.rdb.HSet(ctx, driverKey(driverID), map[string]any{
		"lat": loc.Latitude,
		"lng": loc.Longitude,
	}).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CountOnline returns the size of the online set.
func (s *PresenceStore) CountOnline(ctx context.Context) (int, error) {
	n, err := s.rdb.SCard(ctx, onlineSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("PresenceStore.CountOnline: %w", err)
	}
	return int(n), nil
}

func presenceFromFields(driverID uuid.UUID, fields map[string]string) (*models.DriverPresence, error) {
	p := models.DriverPresence{
		DriverID:     driverID,
		Name:         fields["name"],
		Phone:        fields["phone"],
		Vehicle:      fields["vehicle"],
		VehicleClass: types.VehicleClass(fields["vehicle_class"]),
		PickupPoint:  fields["pickup_point"],
	}

	p.Location.Latitude, _ = strconv.ParseFloat(fields["lat"], 64)
	p.Location.Longitude, _ = strconv.ParseFloat(fields["lng"], 64)

	if raw := fields["online_since"]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			p.OnlineSince = t
		}
	}

	if raw := fields["active_ride"]; raw != "" {
		rideID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid active_ride for driver %s: %w", driverID, err)
		}
		p.ActiveRideID = &rideID
	}

	return &p, nil
}

package types

import "testing"

func TestCanTransitionForwardOnly(t *testing.T) {
	allowed := []struct{ from, to RideStatus }{
		{StatusPending, StatusDriverAssigned},
		{StatusDriverAssigned, StatusRideStarted},
		{StatusRideStarted, StatusRideEnded},
		{StatusRideEnded, StatusCompleted},
		{StatusPending, StatusCancelled},
		{StatusDriverAssigned, StatusCancelled},
		{StatusRideStarted, StatusCancelled},
	}
	for _, c := range allowed {
		if !CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s to be allowed", c.from, c.to)
		}
	}

	denied := []struct{ from, to RideStatus }{
		{StatusPending, StatusRideStarted},   // skips assignment
		{StatusDriverAssigned, StatusPending}, // backwards
		{StatusRideEnded, StatusCancelled},    // too late to cancel
		{StatusCompleted, StatusCancelled},
		{StatusCancelled, StatusPending},
		{StatusCompleted, StatusCompleted},
		{StatusPending, StatusCompleted},
	}
	for _, c := range denied {
		if CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s to be denied", c.from, c.to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !StatusCompleted.IsTerminal() || !StatusCancelled.IsTerminal() {
		t.Error("completed and cancelled must be terminal")
	}
	for _, s := range []RideStatus{StatusPending, StatusDriverAssigned, StatusRideStarted, StatusRideEnded} {
		if s.IsTerminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestValidVehicleClass(t *testing.T) {
	for _, v := range []VehicleClass{VehicleBike, VehicleAuto, VehicleCar} {
		if !ValidVehicleClass(v) {
			t.Errorf("%s should be valid", v)
		}
	}
	if ValidVehicleClass("helicopter") {
		t.Error("unknown class accepted")
	}
}

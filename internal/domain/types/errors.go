package types

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrRideNotFound  = errors.New("ride not found")
	ErrQueueNotFound = errors.New("queue ledger not found")

	// ErrRideNoLongerAvailable is the rejection signal of the conditional
	// assignment update: the ride left pending before this accept landed.
	ErrRideNoLongerAvailable = errors.New("ride no longer available")

	ErrInvalidRideStatus     = errors.New("ride is not in an acceptable status for this transition")
	ErrRideCannotBeCancelled = errors.New("ride cannot be cancelled in its current status")

	// ErrRideCodeTaken surfaces the unique constraint on ride_code, so the
	// booking path can take the next sequence number instead of failing.
	ErrRideCodeTaken = errors.New("ride code already in use")

	ErrInvalidOTP           = errors.New("invalid otp code")
	ErrOTPAttemptsExhausted = errors.New("otp verification attempts exhausted")
	ErrStartOTPNotConsumed  = errors.New("start code has not been verified yet")

	ErrNoDriversOnline   = errors.New("no drivers online")
	ErrDriverNotEligible = errors.New("driver is not eligible for this ride")
	ErrDriverBusy        = errors.New("driver already has an active ride")
	ErrDriverOffline     = errors.New("driver is not online")

	ErrValidation     = errors.New("validation failed")
	ErrDatabaseFailed = errors.New("database operation failed")
	ErrUnauthorized   = errors.New("unauthorized")
)

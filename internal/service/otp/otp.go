// Package otp issues and checks the 4-digit one-time codes gating the
// start and end transitions of a ride.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// MaxAttempts bounds verification attempts per code per ride.
const MaxAttempts = 5

// Code kinds, used as the attempt-counter discriminator.
const (
	KindStart = "start"
	KindEnd   = "end"
)

// Generate returns a random 4-digit numeric code ("0000".."9999").
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("otp: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// Verify reports whether the provided code matches the stored one.
// False for any mismatch, a missing stored code, or a missing provided code.
func Verify(provided, stored string) bool {
	if provided == "" || stored == "" {
		return false
	}
	return provided == stored
}

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/pointride/dispatch/pkg/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	operatorID := uuid.New()

	token, err := svc.Generate(operatorID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.OperatorID != operatorID {
		t.Fatalf("operator id = %s, want %s", claims.OperatorID, operatorID)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a", time.Hour).Generate(uuid.New())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	_, err = NewTokenService("secret-b", time.Hour).Validate(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestValidate_Expired(t *testing.T) {
	svc := NewTokenService("test-secret", -time.Minute)
	token, err := svc.Generate(uuid.New())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := svc.Validate(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidate_Garbage(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	if _, err := svc.Validate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

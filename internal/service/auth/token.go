// Package auth issues and validates the operator tokens guarding the admin
// surfaces. Riders and drivers authenticate upstream; only the admin HTTP
// routes and the admin websocket role pass through here.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pointride/dispatch/pkg/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrNotOperator  = errors.New("token does not carry the operator role")
)

const operatorRole = "operator"

// OperatorClaims is what a validated admin token resolves to.
type OperatorClaims struct {
	OperatorID uuid.UUID
	TokenID    uuid.UUID
	ExpiresAt  time.Time
}

type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Generate signs a fresh operator token. Used by provisioning tooling, not
// by any request path.
func (s *TokenService) Generate(operatorID uuid.UUID) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"jti":         uuid.New().String(),
		"operator_id": operatorID.String(),
		"role":        operatorRole,
		"iat":         now.Unix(),
		"exp":         now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate checks the signature, expiry and operator role.
func (s *TokenService) Validate(token string) (*OperatorClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	role, _ := mc["role"].(string)
	if role != operatorRole {
		return nil, ErrNotOperator
	}

	operatorIDStr, _ := mc["operator_id"].(string)
	operatorID, err := uuid.Parse(operatorIDStr)
	if err != nil {
		return nil, fmt.Errorf("%w: missing operator_id claim", ErrInvalidToken)
	}

	tokenIDStr, _ := mc["jti"].(string)
	tokenID, err := uuid.Parse(tokenIDStr)
	if err != nil {
		return nil, fmt.Errorf("%w: missing jti claim", ErrInvalidToken)
	}

	expFloat, ok := mc["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}
	expTime := time.Unix(int64(expFloat), 0)
	if time.Now().UTC().After(expTime) {
		return nil, ErrExpiredToken
	}

	return &OperatorClaims{
		OperatorID: operatorID,
		TokenID:    tokenID,
		ExpiresAt:  expTime,
	}, nil
}

package middleware

import (
	"context"
	"net/http"

	"github.com/pointride/dispatch/internal/service/auth"
	"github.com/pointride/dispatch/pkg/logger"
)

type (
	TokenValidator interface {
		Validate(token string) (*auth.OperatorClaims, error)
	}

	Middleware struct {
		tokens TokenValidator
		log    logger.Logger
	}
)

func NewMiddleware(tokens TokenValidator, log logger.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		log:    log,
	}
}

type operatorKey struct{}

// WithOperator stores the validated operator claims on the context.
func WithOperator(ctx context.Context, claims *auth.OperatorClaims) context.Context {
	return context.WithValue(ctx, operatorKey{}, claims)
}

// OperatorFromContext returns the operator claims set by RequireOperator,
// or nil outside a guarded route.
func OperatorFromContext(ctx context.Context) *auth.OperatorClaims {
	claims, _ := ctx.Value(operatorKey{}).(*auth.OperatorClaims)
	return claims
}

func (m *Middleware) Chain(next http.Handler) http.Handler {
	return m.Recover(m.RequestID(m.Metrics(m.Logging(next))))
}

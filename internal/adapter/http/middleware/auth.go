package middleware

import (
	"fmt"
	"net/http"
	"strings"
)

// RequireOperator validates the bearer token and injects the operator
// claims into the context. Guards every /admin route.
func (m *Middleware) RequireOperator(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			errorResponse(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := m.tokens.Validate(token)
		if err != nil {
			m.log.Warn(r.Context(), "operator token rejected", "err", err.Error())
			errorResponse(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), claims)))
	})
}

func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return parts[1], nil
}

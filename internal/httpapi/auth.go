package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// BearerAuth validates HS256 bearer tokens on API routes. When the secret
// is empty the middleware is a pass-through, so deployments without an
// auth boundary keep working.
type BearerAuth struct {
	secret []byte
	logger *zap.Logger
}

// NewBearerAuth creates the middleware. An empty secret disables auth.
func NewBearerAuth(secret string, logger *zap.Logger) *BearerAuth {
	return &BearerAuth{secret: []byte(secret), logger: logger}
}

// Enabled reports whether tokens are actually checked.
func (a *BearerAuth) Enabled() bool { return len(a.secret) > 0 }

// Middleware wraps a handler with bearer token validation.
func (a *BearerAuth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}

		if err := a.validate(token); err != nil {
			a.logger.Warn("Rejected API token", zap.Error(err))
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *BearerAuth) validate(token string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return fmt.Errorf("token invalid")
	}
	return nil
}

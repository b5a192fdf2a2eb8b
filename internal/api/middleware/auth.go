package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"customer-service/internal/config"
	"customer-service/internal/domain/customer"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ClaimSecurityContext = "securitycontext"

	HeaderCustomerID      = "X-Customer-Id"
	HeaderSecurityContext = "securitycontext"
)

type identityKey struct{}

// IdentityFromContext returns the caller attached by IdentityMiddleware, or
// nil when the request carried none.
func IdentityFromContext(ctx context.Context) *customer.Identity {
	id, _ := ctx.Value(identityKey{}).(*customer.Identity)
	return id
}

func WithIdentity(ctx context.Context, id *customer.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityMiddleware attaches the caller identity to the request context. It
// never rejects a request: routes that need an identity decide what a missing
// or partial one means. With auth enabled the identity comes from a Bearer
// JWT; otherwise from plain headers, for local development.
func IdentityMiddleware(cfg config.AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "IdentityMiddleware")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id *customer.Identity
			if cfg.Enabled {
				claims, err := validateJWT(r, cfg.JWTSecret)
				if err != nil {
					logger.DebugContext(r.Context(), "No usable bearer token", "error", err)
				} else {
					id = identityFromClaims(claims)
				}
			} else {
				id = identityFromHeaders(r)
			}

			if id != nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

var errNoAuthHeader = errors.New("missing Authorization header")

func validateJWT(r *http.Request, secret string) (jwt.MapClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errNoAuthHeader
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, fmt.Errorf("invalid Authorization header format")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func identityFromClaims(claims jwt.MapClaims) *customer.Identity {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil
	}
	id := &customer.Identity{CustomerID: sub}
	switch v := claims[ClaimSecurityContext].(type) {
	case bool:
		id.SecurityContext = v
	case string:
		id.SecurityContext, _ = strconv.ParseBool(v)
	}
	return id
}

func identityFromHeaders(r *http.Request) *customer.Identity {
	sub := strings.TrimSpace(r.Header.Get(HeaderCustomerID))
	if sub == "" {
		return nil
	}
	sc, _ := strconv.ParseBool(r.Header.Get(HeaderSecurityContext))
	return &customer.Identity{CustomerID: sub, SecurityContext: sc}
}

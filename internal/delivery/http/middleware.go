package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"notifyhub/internal/entity"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type contextKey string

const UserContextKey contextKey = "user"

type TokenVerifier interface {
	VerifyToken(token string) (*entity.TokenClaims, error)
}

type RoleResolver interface {
	GetRole(ctx context.Context, userId string) entity.Role
}

type AuthMiddleware struct {
	auth  TokenVerifier
	users RoleResolver
}

func NewAuthMiddleware(auth TokenVerifier, users RoleResolver) *AuthMiddleware {
	return &AuthMiddleware{
		auth:  auth,
		users: users,
	}
}

// ClaimsFromContext returns the identity stored by Authenticate.
func ClaimsFromContext(ctx context.Context) *entity.TokenClaims {
	claims, _ := ctx.Value(UserContextKey).(*entity.TokenClaims)
	if claims == nil {
		return &entity.TokenClaims{}
	}
	return claims
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSON(w, http.StatusUnauthorized, Response{Message: "authorization header required"})
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeJSON(w, http.StatusUnauthorized, Response{Message: "invalid authorization header format"})
			return
		}

		claims, err := m.auth.VerifyToken(parts[1])
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, Response{Message: "invalid or expired token"})
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits requests whose user currently holds one of roles. The
// role is resolved from the user store, not from the token.
func (m *AuthMiddleware) RequireRole(roles ...entity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims.UserId == "" {
				writeJSON(w, http.StatusUnauthorized, Response{Message: "authentication required"})
				return
			}

			role := m.users.GetRole(r.Context(), claims.UserId)
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeJSON(w, http.StatusForbidden, Response{Message: "insufficient permissions"})
		})
	}
}

// CORS allows browser clients served from allowedOrigin.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request once the response is written.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info().
				Str("requestId", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}

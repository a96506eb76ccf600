package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clinicore/appointment-queue/internal/appointment"
	"github.com/clinicore/appointment-queue/pkg/logging"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
)

// RequestIDMiddleware adds a unique request ID to each request context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// LoggingMiddleware logs each request with method, path, status, duration
// and request ID.
func LoggingMiddleware(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start).String(),
				"request_id", GetRequestID(r.Context()),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

type actorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves the acting user from a Bearer token signed with
// the shared HS256 secret. With an empty secret (dev only) the actor may
// instead be supplied via X-User-ID / X-User-Role headers.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := resolveActor(r, secret)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid credentials")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveActor(r *http.Request, secret string) (appointment.Actor, bool) {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") && secret != "" {
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &actorClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return appointment.Actor{}, false
		}
		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			return appointment.Actor{}, false
		}
		role := appointment.Role(claims.Role)
		if !validRole(role) {
			return appointment.Actor{}, false
		}
		return appointment.Actor{UserID: userID, Role: role}, true
	}

	if secret == "" {
		userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
		if err != nil {
			return appointment.Actor{}, false
		}
		role := appointment.Role(r.Header.Get("X-User-Role"))
		if !validRole(role) {
			return appointment.Actor{}, false
		}
		return appointment.Actor{UserID: userID, Role: role}, true
	}

	return appointment.Actor{}, false
}

func validRole(role appointment.Role) bool {
	switch role {
	case appointment.RolePatient, appointment.RoleDoctor, appointment.RoleOperator:
		return true
	}
	return false
}

// GetActor retrieves the authenticated actor from context.
func GetActor(ctx context.Context) (appointment.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(appointment.Actor)
	return actor, ok
}

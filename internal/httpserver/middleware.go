package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/quailyquaily/taskmorph/auth"
	"github.com/quailyquaily/taskmorph/db/models"
)

type contextKey string

const identityKey contextKey = "identity"

// statusRecorder captures the response code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger().Info("http_request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// authed resolves the bearer token into an identity, honoring the anonymous
// fallback when enabled.
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.IdentityFromAuthorization(r.Header.Get("Authorization"), s.Issuer, s.AllowAnonymous)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

func identityFrom(r *http.Request) auth.Identity {
	if id, ok := r.Context().Value(identityKey).(auth.Identity); ok {
		return id
	}
	return auth.Identity{Anonymous: true}
}

// ownerScope is the row-visibility filter. Anonymous callers get nil, which
// the store treats as unscoped.
func ownerScope(r *http.Request) *int64 {
	return identityFrom(r).ID
}

// ownerOrGlobal maps anonymous callers onto the shared settings row.
func ownerOrGlobal(r *http.Request) int64 {
	if id := identityFrom(r).ID; id != nil {
		return *id
	}
	return models.GlobalOwnerID
}

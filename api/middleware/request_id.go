package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/pdalogistics-backend/api/responses"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
)

const (
	RequestIDHeader    = "X-Request-Id"
	maxRequestIDLength = 128
)

// RequestID echoes a well-formed caller id and mints a UUID otherwise. The id
// lands on the response header, the log context, and error bodies.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(RequestIDHeader)
			if !validRequestID(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)

			ctx := responses.WithRequestID(r.Context(), reqID)
			next.ServeHTTP(w, r.WithContext(logg.WithRequestID(ctx, reqID)))
		})
	}
}

// validRequestID accepts printable ASCII without spaces so ids stay safe to
// log and echo.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

package testutil

import (
	"net/http"
	"time"

	id "rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
)

// WithStaffID adds a staff ID to the request context. This simulates what
// the auth middleware would do for authenticated requests. An invalid UUID
// is silently ignored so tests can exercise the unauthenticated path.
func WithStaffID(req *http.Request, staffID string) *http.Request {
	parsed, err := id.ParseStaffID(staffID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithStaffID(req.Context(), parsed))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// Package request provides request ID middleware for correlation across
// logs, audit entries, and responses.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"rollcall/pkg/requestcontext"
)

// HeaderRequestID is the header used to propagate request IDs.
const HeaderRequestID = "X-Request-ID"

// RequestID assigns each request a correlation ID. An inbound X-Request-ID
// is trusted as-is so IDs survive proxy hops; otherwise a fresh UUID is
// generated. The ID is echoed on the response and stored in context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(HeaderRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from a context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

// Package handler exposes the mailing-list export endpoint.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/confidence"
	exportservice "rollcall/internal/export/service"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Service defines the export operations this handler depends on.
type Service interface {
	Export(ctx context.Context, filter exportservice.Filter) (*exportservice.Result, error)
}

// Handler wires the export endpoint to the export service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an export handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts export endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/export/mailing-list", h.HandleExport)
}

// HandleExport handles GET /export/mailing-list requests.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if requestcontext.StaffID(ctx).IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Export(ctx, filter)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "mailing list export failed",
				"request_id", requestID,
				"min_confidence", string(filter.MinConfidence),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("X-Record-Count", strconv.Itoa(result.Count))
	w.Header().Set("X-Processing-Time-Ms", strconv.FormatInt(result.Duration.Milliseconds(), 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(result.CSV))
}

// parseFilter validates query parameters before any data access.
func parseFilter(r *http.Request) (exportservice.Filter, error) {
	filter := exportservice.Filter{
		MinConfidence:   confidence.High,
		IncludeMetadata: true,
	}
	query := r.URL.Query()

	if raw := query.Get("minConfidence"); raw != "" {
		level, err := confidence.ParseLevel(raw)
		if err != nil {
			return filter, err
		}
		filter.MinConfidence = level
	}

	if raw := query.Get("recentDays"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return filter, dErrors.New(dErrors.CodeValidation, "recentDays must be a positive integer")
		}
		filter.RecentDays = days
	}

	if raw := query.Get("includeMetadata"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "includeMetadata must be a boolean")
		}
		filter.IncludeMetadata = include
	}

	return filter, nil
}

// Package handler exposes the duplicate listing and merge endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/contact/models"
	dedupeservice "rollcall/internal/dedupe/service"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Service defines the dedupe operations this handler depends on.
type Service interface {
	ListDuplicates(ctx context.Context) ([]*models.DuplicateSet, error)
	Merge(ctx context.Context, req dedupeservice.MergeRequest) (*dedupeservice.MergeResult, error)
}

// Handler wires the dedupe endpoints to the dedupe service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a dedupe handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts dedupe endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/contacts/duplicates", h.HandleListDuplicates)
	r.Post("/contacts/merge", h.HandleMerge)
}

// HandleListDuplicates handles GET /contacts/duplicates requests.
func (h *Handler) HandleListDuplicates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if requestcontext.StaffID(ctx).IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	sets, err := h.service.ListDuplicates(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "duplicate listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if sets == nil {
		sets = []*models.DuplicateSet{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"duplicates": sets,
		"count":      len(sets),
	})
}

// HandleMerge handles POST /contacts/merge requests.
func (h *Handler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if requestcontext.StaffID(ctx).IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[dedupeservice.MergeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result, err := h.service.Merge(ctx, req)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "merge failed",
				"request_id", requestcontext.RequestID(ctx),
				"survivor_id", req.SurvivorID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Package service implements duplicate detection and the merge
// orchestrator: snapshot listing through the view cache, validated
// atomic merges, cache invalidation and the merge audit entry.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rollcall/internal/contact/models"
	contactstore "rollcall/internal/contact/store/contacts"
	dedupemetrics "rollcall/internal/dedupe/metrics"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

// MergeRequest names the survivor and the duplicates folding into it.
type MergeRequest struct {
	SurvivorID   id.ContactID   `json:"survivor_id"`
	DuplicateIDs []id.ContactID `json:"duplicate_ids"`
}

// MergeResult reports a committed merge plus the refreshed duplicate view.
// The view is re-fetched inside Merge because the snapshot the caller held
// is stale the moment the merge commits.
type MergeResult struct {
	SurvivorID  id.ContactID           `json:"survivor_id"`
	MergedCount int                    `json:"merged_count"`
	Duplicates  []*models.DuplicateSet `json:"duplicates"`
}

// Cache is the duplicate-set view cache. Misses and errors both fall
// through to the store; the cache is an optimization, never a correctness
// dependency.
type Cache interface {
	Get(ctx context.Context) ([]*models.DuplicateSet, bool, error)
	Set(ctx context.Context, sets []*models.DuplicateSet) error
	Invalidate(ctx context.Context) error
}

// TxRunner wraps fn in a database transaction. The store picks the
// transaction up from the context.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditPublisher emits audit events without ever blocking or failing the
// merge path.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Cache,TxRunner,AuditPublisher

// Service orchestrates duplicate listing and merges.
type Service struct {
	contacts contactstore.Store
	cache    Cache
	runner   TxRunner
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *dedupemetrics.Metrics
	tracer   trace.Tracer
}

// New constructs a dedupe service. The contact store is required; cache,
// runner, auditor, logger, and metrics may be nil (a nil runner executes
// merges without an explicit transaction, which only the in-memory store
// supports safely).
func New(contacts contactstore.Store, cache Cache, runner TxRunner, auditor AuditPublisher, logger *slog.Logger, metrics *dedupemetrics.Metrics) (*Service, error) {
	if contacts == nil {
		return nil, fmt.Errorf("contact store is required")
	}
	return &Service{
		contacts: contacts,
		cache:    cache,
		runner:   runner,
		auditor:  auditor,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("rollcall/dedupe"),
	}, nil
}

// ListDuplicates returns the current duplicate-set snapshot, reading
// through the cache when one is configured.
func (s *Service) ListDuplicates(ctx context.Context) ([]*models.DuplicateSet, error) {
	ctx, span := s.tracer.Start(ctx, "dedupe.list_duplicates")
	defer span.End()

	if s.cache != nil {
		sets, hit, err := s.cache.Get(ctx)
		if err != nil {
			// Degrade to a direct store read.
			if s.logger != nil {
				s.logger.WarnContext(ctx, "duplicate-set cache read failed", "error", err)
			}
		} else if hit {
			span.SetAttributes(attribute.Bool("dedupe.cache_hit", true))
			s.metrics.ObserveDuplicateSets(len(sets))
			return sets, nil
		}
	}

	sets, err := s.contacts.ListDuplicateSets(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "duplicate set query failed")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, sets); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "duplicate-set cache write failed", "error", err)
		}
	}

	span.SetAttributes(attribute.Int("dedupe.sets", len(sets)))
	s.metrics.ObserveDuplicateSets(len(sets))
	return sets, nil
}

// Merge consolidates the duplicates into the survivor atomically, then
// invalidates the view cache and returns the refreshed snapshot.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	ctx, span := s.tracer.Start(ctx, "dedupe.merge")
	defer span.End()

	if err := validateMerge(req); err != nil {
		s.metrics.ObserveMerge("rejected", 0)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("merge.survivor_id", req.SurvivorID.String()),
		attribute.Int("merge.duplicates", len(req.DuplicateIDs)),
	)

	merge := func(txCtx context.Context) error {
		return s.contacts.Merge(txCtx, req.SurvivorID, req.DuplicateIDs)
	}

	var err error
	if s.runner != nil {
		err = s.runner.RunInTx(ctx, merge)
	} else {
		err = merge(ctx)
	}
	if err != nil {
		s.metrics.ObserveMerge("failed", 0)
		return nil, translateMergeError(err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "duplicate-set cache invalidation failed", "error", err)
		}
	}

	s.logMerge(ctx, req)
	s.metrics.ObserveMerge("merged", len(req.DuplicateIDs))

	sets, err := s.ListDuplicates(ctx)
	if err != nil {
		// The merge committed; a failed refresh must not mask that.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "duplicate view refresh failed after merge", "error", err)
		}
		sets = nil
	}

	return &MergeResult{
		SurvivorID:  req.SurvivorID,
		MergedCount: len(req.DuplicateIDs),
		Duplicates:  sets,
	}, nil
}

// validateMerge rejects malformed requests before any data access.
func validateMerge(req MergeRequest) error {
	if req.SurvivorID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "survivor_id is required")
	}
	if len(req.DuplicateIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "duplicate_ids must not be empty")
	}
	seen := make(map[id.ContactID]struct{}, len(req.DuplicateIDs))
	for _, dup := range req.DuplicateIDs {
		if dup.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "duplicate_ids must not contain the nil UUID")
		}
		if dup == req.SurvivorID {
			return dErrors.New(dErrors.CodeValidation, "survivor must not appear among duplicates")
		}
		if _, ok := seen[dup]; ok {
			return dErrors.New(dErrors.CodeValidation, "duplicate_ids must be distinct")
		}
		seen[dup] = struct{}{}
	}
	return nil
}

func translateMergeError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "contact not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "merge conflicts with existing relationships")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeInternal, "contact store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "merge failed")
	}
}

// logMerge records the audit entry and the structured log line. Both are
// best-effort.
func (s *Service) logMerge(ctx context.Context, req MergeRequest) {
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:      audit.EventContactsMerged,
			StaffID:     requestcontext.StaffID(ctx),
			RequestID:   requestcontext.RequestID(ctx),
			ClientIP:    requestcontext.ClientIP(ctx),
			UserAgent:   requestcontext.UserAgent(ctx),
			Timestamp:   requestcontext.Now(ctx),
			SurvivorID:  req.SurvivorID.String(),
			MergedCount: len(req.DuplicateIDs),
		})
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "contacts merged",
			"request_id", requestcontext.RequestID(ctx),
			"staff_id", requestcontext.StaffID(ctx),
			"client_ip", requestcontext.ClientIP(ctx),
			"survivor_id", req.SurvivorID,
			"merged_count", len(req.DuplicateIDs),
		)
	}
}

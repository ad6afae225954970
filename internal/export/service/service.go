// Package service implements the mailing-list export pipeline: filter
// validation, the eligibility query, CSV serialization, statistics, and
// the best-effort audit entry.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rollcall/internal/confidence"
	contactstore "rollcall/internal/contact/store/contacts"
	"rollcall/internal/export/csvx"
	exportmetrics "rollcall/internal/export/metrics"
	"rollcall/internal/export/stats"
	dErrors "rollcall/pkg/domain-errors"
	audit "rollcall/pkg/platform/audit"
	"rollcall/pkg/requestcontext"
)

// Filter narrows the export. Zero values mean "apply the default":
// MinConfidence defaults to high, IncludeMetadata defaults to true at the
// transport layer.
type Filter struct {
	MinConfidence   confidence.Level
	RecentDays      int
	IncludeMetadata bool
}

// Result is a completed export.
type Result struct {
	CSV        string
	Filename   string
	Count      int
	Statistics stats.Statistics
	Duration   time.Duration
}

// AuditPublisher emits audit events without ever blocking or failing the
// export path.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks AuditPublisher

// Service orchestrates mailing-list exports.
type Service struct {
	contacts contactstore.Store
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *exportmetrics.Metrics
	tracer   trace.Tracer
}

// New constructs an export service. The contact store is required; the
// audit publisher, logger, and metrics may be nil in tests.
func New(contacts contactstore.Store, auditor AuditPublisher, logger *slog.Logger, metrics *exportmetrics.Metrics) (*Service, error) {
	if contacts == nil {
		return nil, fmt.Errorf("contact store is required")
	}
	return &Service{
		contacts: contacts,
		auditor:  auditor,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("rollcall/export"),
	}, nil
}

// Export runs the full pipeline. Identical filters over unchanged data
// produce byte-identical CSV bodies; only the filename varies with the
// request date.
func (s *Service) Export(ctx context.Context, filter Filter) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "export.mailing_list")
	defer span.End()

	start := time.Now()

	filter, err := s.prepare(filter)
	if err != nil {
		s.metrics.IncrementFailure(string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("export.min_confidence", string(filter.MinConfidence)),
		attribute.Int("export.recent_days", filter.RecentDays),
	)

	now := requestcontext.Now(ctx)

	storeFilter := contactstore.MailingListFilter{MinConfidence: filter.MinConfidence}
	if filter.RecentDays > 0 {
		since := now.AddDate(0, 0, -filter.RecentDays)
		storeFilter.Since = &since
	}

	contacts, err := s.contacts.MailingList(ctx, storeFilter)
	if err != nil {
		s.metrics.IncrementFailure(string(dErrors.CodeInternal))
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "mailing list query failed")
	}
	if len(contacts) == 0 {
		// Empty is not a store error, but it is a client-visible no-data
		// condition at this boundary.
		s.metrics.IncrementFailure(string(dErrors.CodeNotFound))
		return nil, dErrors.New(dErrors.CodeNotFound, "no contacts matched the export filters")
	}

	rows := make([]csvx.Row, len(contacts))
	for i, contact := range contacts {
		rows[i] = csvx.TransformRow(contact, filter.IncludeMetadata)
	}
	body, err := csvx.Encode(rows)
	if err != nil {
		s.metrics.IncrementFailure(string(dErrors.CodeInternal))
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "csv serialization failed")
	}

	statistics := stats.Calculate(contacts)
	duration := time.Since(start)

	s.logExport(ctx, filter, statistics)
	s.metrics.ObserveExport(string(filter.MinConfidence), statistics.Total, duration)
	span.SetAttributes(attribute.Int("export.records", statistics.Total))

	return &Result{
		CSV:        body,
		Filename:   fmt.Sprintf("mailing_list_%s_%s.csv", filter.MinConfidence, now.Format("2006-01-02")),
		Count:      statistics.Total,
		Statistics: statistics,
		Duration:   duration,
	}, nil
}

// prepare validates the filter and applies the default minimum confidence.
// Validation rejects before any data access.
func (s *Service) prepare(filter Filter) (Filter, error) {
	if filter.MinConfidence == "" {
		filter.MinConfidence = confidence.High
	}
	if !filter.MinConfidence.Valid() {
		return filter, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("unknown confidence level %q", filter.MinConfidence))
	}
	if filter.RecentDays < 0 {
		return filter, dErrors.New(dErrors.CodeValidation, "recentDays must be a positive integer")
	}
	return filter, nil
}

// logExport records the audit entry and the structured log line. Both are
// best-effort: neither failure reaches the caller.
func (s *Service) logExport(ctx context.Context, filter Filter, statistics stats.Statistics) {
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:          audit.EventMailingListExported,
			StaffID:         requestcontext.StaffID(ctx),
			RequestID:       requestcontext.RequestID(ctx),
			ClientIP:        requestcontext.ClientIP(ctx),
			UserAgent:       requestcontext.UserAgent(ctx),
			Timestamp:       requestcontext.Now(ctx),
			TotalRecords:    statistics.Total,
			MinConfidence:   string(filter.MinConfidence),
			RecentDays:      filter.RecentDays,
			IncludeMetadata: filter.IncludeMetadata,
		})
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "mailing list exported",
			"request_id", requestcontext.RequestID(ctx),
			"staff_id", requestcontext.StaffID(ctx),
			"client_ip", requestcontext.ClientIP(ctx),
			"min_confidence", string(filter.MinConfidence),
			"recent_days", filter.RecentDays,
			"records", statistics.Total,
		)
	}
}

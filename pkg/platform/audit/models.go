// Package audit defines the append-only audit trail for operator actions.
//
// Audit delivery is best-effort by design: a lost entry must never fail or
// delay the operation it describes. Callers emit through the publisher,
// which hands events to a background worker; every persistence failure is
// logged and swallowed.
package audit

import (
	"context"
	"time"

	id "rollcall/pkg/domain"
)

// AuditEvent names an auditable operator action.
type AuditEvent string

const (
	EventMailingListExported AuditEvent = "mailing_list_exported"
	EventContactsMerged      AuditEvent = "contacts_merged"
)

// Event is one append-only audit entry. Fields beyond the core identity
// set are populated per action; zero values are omitted from storage.
type Event struct {
	Action    AuditEvent
	StaffID   id.StaffID
	RequestID string
	ClientIP  string
	UserAgent string
	Timestamp time.Time

	// Export entries.
	TotalRecords    int
	MinConfidence   string
	RecentDays      int
	IncludeMetadata bool

	// Merge entries.
	SurvivorID  string
	MergedCount int
}

// Store persists audit events. Entries are never mutated or deleted by
// this service; retention is an external concern.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Package contacts provides the contact store: mailing-list queries, the
// derived duplicate-set projection, and the atomic merge primitive.
package contacts

import (
	"context"
	"time"

	"rollcall/internal/confidence"
	"rollcall/internal/contact/models"
	id "rollcall/pkg/domain"
)

// MailingListFilter narrows the export query.
type MailingListFilter struct {
	// MinConfidence accepts every stored level as good as or better.
	MinConfidence confidence.Level
	// Since, when set, keeps only contacts whose last transaction date is
	// on or after it.
	Since *time.Time
}

// Store is the contact persistence contract shared by the export and
// dedupe services. Implementations return sentinel errors (wrapped) for
// infrastructure facts; services translate them into domain errors.
type Store interface {
	// MailingList returns eligible contacts sorted ascending by confidence
	// rank, then descending by max(billing, shipping) score. No matches is
	// an empty slice, not an error.
	MailingList(ctx context.Context, filter MailingListFilter) ([]*models.Contact, error)

	// ListDuplicateSets computes the duplicate grouping from current
	// contact state, ordered by contact count descending. The result is a
	// snapshot; it is stale as soon as any merge commits.
	ListDuplicateSets(ctx context.Context) ([]*models.DuplicateSet, error)

	// Merge repoints every relationship (tags, subscriptions, transactions,
	// products) from the duplicates to the survivor, deduplicating unique
	// relationships the survivor already owns, then deletes the duplicate
	// contacts. All-or-nothing: the caller supplies the transactional
	// boundary, and any error leaves no partial state.
	Merge(ctx context.Context, survivor id.ContactID, duplicates []id.ContactID) error
}

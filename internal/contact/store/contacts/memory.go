package contacts

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"rollcall/internal/confidence"
	"rollcall/internal/contact/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
	stringsx "rollcall/pkg/platform/strings"
)

// InMemory is a mutex-guarded store for unit tests and local development.
// It mirrors the Postgres semantics, including tag deduplication on merge.
type InMemory struct {
	mu       sync.RWMutex
	contacts map[id.ContactID]*models.Contact

	// Relationship tables. Tags are unique per contact; the rest are
	// row-like references identified by opaque IDs.
	tags          map[id.ContactID]map[string]struct{}
	subscriptions map[id.ContactID][]string
	transactions  map[id.ContactID][]string
	products      map[id.ContactID][]string
}

// NewInMemory constructs an empty in-memory contact store.
func NewInMemory() *InMemory {
	return &InMemory{
		contacts:      make(map[id.ContactID]*models.Contact),
		tags:          make(map[id.ContactID]map[string]struct{}),
		subscriptions: make(map[id.ContactID][]string),
		transactions:  make(map[id.ContactID][]string),
		products:      make(map[id.ContactID][]string),
	}
}

// Add seeds a contact. Test helper; import jobs own this path in production.
func (s *InMemory) Add(contact *models.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *contact
	s.contacts[contact.ID] = &copied
}

// AddTag attaches a unique tag to a contact.
func (s *InMemory) AddTag(contactID id.ContactID, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tags[contactID] == nil {
		s.tags[contactID] = make(map[string]struct{})
	}
	s.tags[contactID][tag] = struct{}{}
}

// AddSubscription attaches a subscription reference to a contact.
func (s *InMemory) AddSubscription(contactID id.ContactID, subscriptionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[contactID] = append(s.subscriptions[contactID], subscriptionID)
}

// AddTransaction attaches a transaction reference to a contact.
func (s *InMemory) AddTransaction(contactID id.ContactID, transactionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[contactID] = append(s.transactions[contactID], transactionID)
}

// AddProduct attaches a product reference to a contact.
func (s *InMemory) AddProduct(contactID id.ContactID, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[contactID] = append(s.products[contactID], productID)
}

// TagsOf returns a contact's tags in sorted order. Test helper.
func (s *InMemory) TagsOf(contactID id.ContactID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tags := make([]string, 0, len(s.tags[contactID]))
	for tag := range s.tags[contactID] {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// RelationsOf returns a contact's non-unique relationship references by
// table name. Test helper for merge post-condition checks.
func (s *InMemory) RelationsOf(contactID id.ContactID) map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string][]string{
		"subscriptions": slices.Clone(s.subscriptions[contactID]),
		"transactions":  slices.Clone(s.transactions[contactID]),
		"products":      slices.Clone(s.products[contactID]),
	}
}

// Get returns a copy of the contact, or sentinel.ErrNotFound.
func (s *InMemory) Get(_ context.Context, contactID id.ContactID) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contact, ok := s.contacts[contactID]
	if !ok {
		return nil, fmt.Errorf("contact %s: %w", contactID, sentinel.ErrNotFound)
	}
	copied := *contact
	return &copied, nil
}

func (s *InMemory) MailingList(_ context.Context, filter MailingListFilter) ([]*models.Contact, error) {
	accepted := make(map[confidence.Level]struct{})
	for _, level := range confidence.AcceptedLevels(filter.MinConfidence) {
		accepted[level] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Contact, 0)
	for _, contact := range s.contacts {
		if _, ok := accepted[contact.Confidence]; !ok {
			continue
		}
		if filter.Since != nil {
			if contact.LastTransactionDate == nil || contact.LastTransactionDate.Before(*filter.Since) {
				continue
			}
		}
		copied := *contact
		matched = append(matched, &copied)
	}

	// Same order as the Postgres query, including the ID tie-break, so
	// exports are byte-identical across store implementations.
	sort.Slice(matched, func(i, j int) bool {
		ri, rj := matched[i].Confidence.Rank(), matched[j].Confidence.Rank()
		if ri != rj {
			return ri < rj
		}
		if matched[i].MaxScore() != matched[j].MaxScore() {
			return matched[i].MaxScore() > matched[j].MaxScore()
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	return matched, nil
}

func (s *InMemory) ListDuplicateSets(_ context.Context) ([]*models.DuplicateSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make(map[string][]*models.Contact)
	for _, contact := range s.contacts {
		key := models.NormalizeName(contact.Name)
		groups[key] = append(groups[key], contact)
	}

	sets := make([]*models.DuplicateSet, 0)
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].CreatedAt.Before(members[j].CreatedAt)
		})

		set := &models.DuplicateSet{
			NormalizedName:    key,
			ContactCount:      len(members),
			EarliestCreatedAt: members[0].CreatedAt,
		}
		var emails []string
		for _, member := range members {
			set.ContactIDs = append(set.ContactIDs, member.ID)
			emails = append(emails, member.Emails...)
		}
		set.Emails = stringsx.DedupeAndTrimLower(emails)
		sets = append(sets, set)
	}

	sort.Slice(sets, func(i, j int) bool {
		if sets[i].ContactCount != sets[j].ContactCount {
			return sets[i].ContactCount > sets[j].ContactCount
		}
		return sets[i].NormalizedName < sets[j].NormalizedName
	})
	return sets, nil
}

func (s *InMemory) Merge(_ context.Context, survivor id.ContactID, duplicates []id.ContactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[survivor]; !ok {
		return fmt.Errorf("survivor %s: %w", survivor, sentinel.ErrNotFound)
	}
	for _, dup := range duplicates {
		if _, ok := s.contacts[dup]; !ok {
			return fmt.Errorf("duplicate %s: %w", dup, sentinel.ErrNotFound)
		}
	}

	// The map mutations below cannot fail, so the all-or-nothing contract
	// holds without an explicit rollback path.
	for _, dup := range duplicates {
		for tag := range s.tags[dup] {
			if s.tags[survivor] == nil {
				s.tags[survivor] = make(map[string]struct{})
			}
			s.tags[survivor][tag] = struct{}{}
		}
		delete(s.tags, dup)

		s.subscriptions[survivor] = append(s.subscriptions[survivor], s.subscriptions[dup]...)
		delete(s.subscriptions, dup)
		s.transactions[survivor] = append(s.transactions[survivor], s.transactions[dup]...)
		delete(s.transactions, dup)
		s.products[survivor] = append(s.products[survivor], s.products[dup]...)
		delete(s.products, dup)

		delete(s.contacts, dup)
	}
	return nil
}

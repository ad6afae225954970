// Package models holds the contact aggregate and the derived duplicate-set
// projection shared by the export and dedupe modules.
package models

import (
	"strings"
	"time"

	"rollcall/internal/confidence"
	id "rollcall/pkg/domain"
	"rollcall/pkg/email"
)

// AddressSource tags which address slot the import pipeline trusted most
// for a contact.
type AddressSource string

const (
	SourceBilling  AddressSource = "billing"
	SourceShipping AddressSource = "shipping"
)

// Address is a physical mailing address. Optional fields are empty strings,
// never a rendered "null".
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
}

// Contact is a person or organization record.
//
// Invariants:
//   - Confidence is derivable from max(BillingScore, ShippingScore) via the
//     confidence threshold table; import jobs keep the stored column in sync
//     when they recompute scores.
//   - Emails, when present, list the primary email first.
//   - CreatedAt is immutable after import.
//
// Contacts are mutated by import jobs (externally) and by the merge
// orchestrator, which deletes duplicates after repointing their relations.
type Contact struct {
	ID           id.ContactID `json:"id"`
	Name         string       `json:"name"`
	Emails       []string     `json:"emails"`
	SourceSystem string       `json:"source_system"`

	BillingAddress  Address       `json:"billing_address"`
	ShippingAddress Address       `json:"shipping_address"`
	AddressSource   AddressSource `json:"address_source"`

	Confidence       confidence.Level `json:"confidence"`
	BillingScore     float64          `json:"billing_score"`
	ShippingScore    float64          `json:"shipping_score"`
	IsManualOverride bool             `json:"is_manual_override"`

	LastTransactionDate *time.Time `json:"last_transaction_date,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// DisplayName returns the contact's name, deriving one from the primary
// email when the import pipeline left the name blank.
func (c *Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	primary := c.PrimaryEmail()
	if primary == "" {
		return ""
	}
	first, last := email.DeriveNameFromEmail(primary)
	return first + " " + last
}

// PrimaryEmail returns the contact's primary email, or "" when none exists.
func (c *Contact) PrimaryEmail() string {
	if len(c.Emails) == 0 {
		return ""
	}
	return c.Emails[0]
}

// MaxScore is the better of the two address scores; it drives sorting and
// the derived confidence level.
func (c *Contact) MaxScore() float64 {
	if c.BillingScore > c.ShippingScore {
		return c.BillingScore
	}
	return c.ShippingScore
}

// DerivedConfidence recomputes the level from the max score. Stored and
// derived levels agree for any contact the importers have touched.
func (c *Contact) DerivedConfidence() confidence.Level {
	return confidence.Classify(c.MaxScore()).Level
}

// MailingAddress returns the address the AddressSource tag points at.
// Anything other than billing falls back to shipping, mirroring the binary
// source classification in export statistics.
func (c *Contact) MailingAddress() Address {
	if c.AddressSource == SourceBilling {
		return c.BillingAddress
	}
	return c.ShippingAddress
}

// DuplicateSet is the derived, ephemeral grouping of contacts sharing a
// normalized name. It is computed on read and goes stale the moment any
// merge completes; consumers must re-fetch after every merge.
type DuplicateSet struct {
	NormalizedName    string         `json:"normalized_name"`
	ContactIDs        []id.ContactID `json:"contact_ids"`
	Emails            []string       `json:"emails"`
	ContactCount      int            `json:"contact_count"`
	EarliestCreatedAt time.Time      `json:"earliest_created_at"`
}

// NormalizeName lowercases a contact name and collapses interior
// whitespace. The Postgres duplicate view applies the same normalization
// in SQL; the two must not drift.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

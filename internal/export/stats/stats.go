// Package stats aggregates export statistics for audit entries and
// response headers.
package stats

import (
	"rollcall/internal/confidence"
	"rollcall/internal/contact/models"
)

// Statistics summarizes one export result set.
type Statistics struct {
	Total int `json:"total"`
	// ByConfidence carries all five levels, zero-filled when absent.
	ByConfidence map[confidence.Level]int `json:"by_confidence"`
	// BySource is a binary billing/shipping split: any source value other
	// than the literal "billing" counts as shipping. Unexpected future
	// sources are silently folded in; revisit if a third source appears.
	BySource map[models.AddressSource]int `json:"by_source"`
}

// Calculate aggregates counts over the export rows.
func Calculate(contacts []*models.Contact) Statistics {
	s := Statistics{
		Total:        len(contacts),
		ByConfidence: make(map[confidence.Level]int, 5),
		BySource:     make(map[models.AddressSource]int, 2),
	}
	for _, level := range confidence.Levels() {
		s.ByConfidence[level] = 0
	}
	s.BySource[models.SourceBilling] = 0
	s.BySource[models.SourceShipping] = 0

	for _, contact := range contacts {
		s.ByConfidence[contact.Confidence]++
		if contact.AddressSource == models.SourceBilling {
			s.BySource[models.SourceBilling]++
		} else {
			s.BySource[models.SourceShipping]++
		}
	}
	return s
}

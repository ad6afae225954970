package confidence

// Scoring weights for address confidence. Import jobs recompute scores with
// these same constants whenever upstream data changes, so the classifier
// and the importers must agree on one table.
const (
	// PrimaryEmailBonus rewards addresses tied to the contact's primary email.
	PrimaryEmailBonus = 20.0

	// ActiveSubscriptionBonus rewards contacts with a live subscription,
	// since their address was validated by a recent fulfilment.
	ActiveSubscriptionBonus = 25.0

	// VerifiedBonus rewards addresses a human or postal service confirmed.
	VerifiedBonus = 15.0

	// SourcePriorityWeight is divided by the source's priority rank, so a
	// rank-1 source contributes the full weight and lower-trust sources
	// contribute proportionally less.
	SourcePriorityWeight = 40.0
)

// AddressSignals is the input snapshot for scoring one address instance.
// Scores are immutable once computed for a given snapshot.
type AddressSignals struct {
	HasPrimaryEmail    bool
	SubscriptionActive bool
	Verified           bool
	// SourcePriority ranks the provenance system, 1 = most trusted.
	// Zero or negative values contribute nothing.
	SourcePriority int
}

// ScoreAddress computes the 0-100 weighted score for an address snapshot.
func ScoreAddress(sig AddressSignals) float64 {
	var score float64
	if sig.HasPrimaryEmail {
		score += PrimaryEmailBonus
	}
	if sig.SubscriptionActive {
		score += ActiveSubscriptionBonus
	}
	if sig.Verified {
		score += VerifiedBonus
	}
	if sig.SourcePriority > 0 {
		score += SourcePriorityWeight / float64(sig.SourcePriority)
	}
	return score
}

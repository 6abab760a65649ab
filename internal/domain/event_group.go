package domain

import "time"

// EventLeg is one venue's outcome inside a canonical event group, together
// with the venue's fee schedule and the curated resolution metadata.
type EventLeg struct {
	Venue          string
	OutcomeID      string
	FeeBps         float64
	ResolveAt      *time.Time
	TruthAmbiguity float64 // [0,1]; higher means more contestable resolution criteria
}

// CanonicalEventGroup maps one real-world question onto equivalent outcomes
// across two or more venues. Groups are curated externally; the engine only
// reads them.
type CanonicalEventGroup struct {
	ID        string
	Title     string
	Status    string // open, closed, settled
	Legs      []EventLeg
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DistinctVenues returns the number of distinct venues among the group's legs.
func (g CanonicalEventGroup) DistinctVenues() int {
	seen := make(map[string]bool, len(g.Legs))
	for _, leg := range g.Legs {
		seen[leg.Venue] = true
	}
	return len(seen)
}

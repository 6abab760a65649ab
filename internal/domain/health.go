package domain

import "time"

// HealthStatus is the coarse per-venue data-feed health classification
// reported by the ingestion boundary.
type HealthStatus string

const (
	HealthGreen  HealthStatus = "green"
	HealthYellow HealthStatus = "yellow"
	HealthRed    HealthStatus = "red"
)

// VenueHealth is the latest reported health state for one venue.
type VenueHealth struct {
	Venue     string       `json:"venue"`
	Status    HealthStatus `json:"status"`
	Detail    string       `json:"detail,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
}

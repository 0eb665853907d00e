package analytics

import "time"

// SightingTimestamp selects the proper timestamp for a sighting row.
// The time embedded in the event wins over the envelope fallback.
func SightingTimestamp(eventAt *time.Time, fallback time.Time) time.Time {
	if eventAt != nil && !eventAt.IsZero() {
		return eventAt.UTC()
	}
	return fallback.UTC()
}

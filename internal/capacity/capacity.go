// Package capacity derives the maximum confirmed registrations per ride
// level of an event.
package capacity

import "github.com/kiezrad/backend/internal/models"

// PlacesPerGuide is the fixed number of riders one guide supervises.
const PlacesPerGuide = 7

// For returns the confirmed-seat capacity for a level, or nil when the level
// is uncapped (no waitlisting applies). The reserved workshop level uses the
// event's fixed workshop capacity. Other levels scale with assigned guides;
// a level without guides has capacity 0, which is sold out, not uncapped.
func For(level string, ea *models.EventAccess) *int {
	if level == models.WorkshopLevel {
		return ea.WorkshopCapacity
	}
	n := ea.GuideCounts[level] * PlacesPerGuide
	return &n
}

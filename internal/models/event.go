package models

import "time"

// EventAccess is the registration-relevant slice of event data served by the
// CMS. It is fetched per request and never persisted here.
type EventAccess struct {
	EventID           int64          `json:"event_id"`
	Title             string         `json:"title"`
	PublicReleaseDate *time.Time     `json:"public_release_date,omitempty"`
	IsFlintaOnly      bool           `json:"is_flinta_only"`
	WorkshopCapacity  *int           `json:"workshop_capacity,omitempty"`
	GuideCounts       map[string]int `json:"guide_counts"`
}

package models

import (
	"strings"
	"time"
)

// EventSource identifies which adapter produced an event.
type EventSource string

const (
	SourceTicketed       EventSource = "ticketed"
	SourcePlaces         EventSource = "places"
	SourceCommunityGroup EventSource = "community-group"
)

// MaxDescriptionLen bounds the stored description length.
const MaxDescriptionLen = 500

// DiscoveredEvent is a cached local event scoped to a single family.
// Rows are created only during an aggregation refresh and are never
// updated in place; a refresh replaces the family's window wholesale.
type DiscoveredEvent struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	FamilyID uint `gorm:"index;not null" json:"family_id"`

	// ExternalID is unique only within a Source. Cross-source collisions
	// are expected; dedup uses the normalized (name, location) key.
	ExternalID string      `gorm:"index" json:"external_id"`
	Source     EventSource `gorm:"index;not null" json:"source"`
	GroupID    string      `json:"group_id,omitempty"`
	GroupName  string      `json:"group_name,omitempty"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	CostDisplay string `json:"cost_display"`

	EventDate time.Time  `gorm:"index;not null" json:"event_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Location  string     `json:"location"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`

	// Derived fields, filled in by the aggregator, never by adapters.
	DriveMinutes *int   `json:"drive_minutes,omitempty"`
	WhyItFits    string `json:"why_it_fits,omitempty"`

	TicketURL string    `json:"ticket_url,omitempty"`
	CachedAt  time.Time `gorm:"index;not null" json:"cached_at"`
}

// DedupKey returns the normalized composite key used to collapse the
// same real-world event arriving from different providers.
func (e *DiscoveredEvent) DedupKey() string {
	return DedupKey(e.Name, e.Location)
}

// DedupKey builds the normalized (name, location) dedup key.
func DedupKey(name, location string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(location))
}

// PartialEvent is an event as reported by a single source adapter,
// before family scoping, dedup and annotation.
type PartialEvent struct {
	ExternalID  string
	Source      EventSource
	GroupID     string
	GroupName   string
	Name        string
	Description string
	Category    string
	CostDisplay string
	EventDate   time.Time
	EndDate     *time.Time
	Location    string
	Latitude    *float64
	Longitude   *float64
	TicketURL   string

	// WhyItFits may be pre-filled by a caller; the aggregator only
	// annotates events that arrive without one.
	WhyItFits string
}

// GroupSubscription is the read-only collaborator record describing a
// community group a family has opted into scraping.
type GroupSubscription struct {
	GroupID   string `json:"group_id" mapstructure:"group_id"`
	GroupName string `json:"group_name" mapstructure:"group_name"`
	GroupURL  string `json:"group_url" mapstructure:"group_url"`
}

// TruncateDescription bounds free-form provider text to the stored limit.
func TruncateDescription(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= MaxDescriptionLen {
		return s
	}
	return s[:MaxDescriptionLen]
}

package storage

import (
	"context"
	"time"

	"github.com/fieldtrip-agent/internal/models"
)

// Repository defines the interface for event persistence
type Repository interface {
	// Event operations
	CreateEvent(ctx context.Context, event *models.DiscoveredEvent) error
	ListEventWindow(ctx context.Context, familyID uint, start, end time.Time) ([]*models.DiscoveredEvent, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]*models.DiscoveredEvent, error)
	DeleteEventWindow(ctx context.Context, familyID uint, start, end time.Time) error
	DeletePastEvents(ctx context.Context, before time.Time) (int64, error)

	// Maintenance
	Close() error
	Migrate() error
}

// EventFilter defines filtering options for cached events
type EventFilter struct {
	FamilyID  *uint
	Source    *models.EventSource
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
	OrderBy   string // "event_date", "cached_at"
	OrderDesc bool
}

// DefaultEventFilter returns a filter with sensible defaults
func DefaultEventFilter() EventFilter {
	return EventFilter{
		Limit:   50,
		OrderBy: "event_date",
	}
}

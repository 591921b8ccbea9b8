package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldtrip-agent/internal/aggregator"
	"github.com/fieldtrip-agent/internal/models"
	"github.com/fieldtrip-agent/internal/storage"
	"github.com/fieldtrip-agent/pkg/logger"
)

// Household is the family record the controller needs: coordinates and
// how far the family is willing to drive.
type Household struct {
	ID        uint
	Name      string
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// FamilyDirectory resolves household records. Family storage itself
// belongs to the surrounding product, not this pipeline.
type FamilyDirectory interface {
	Household(ctx context.Context, familyID uint) (*Household, error)
}

// CurriculumSource resolves the family's active weekly theme.
type CurriculumSource interface {
	ActiveTheme(ctx context.Context, familyID uint) (string, error)
}

// GroupDirectory resolves the community groups a family has opted into.
type GroupDirectory interface {
	SubscribedGroups(ctx context.Context, familyID uint) ([]models.GroupSubscription, error)
}

// EventDiscoverer is the aggregator's entry point as the controller
// consumes it.
type EventDiscoverer interface {
	DiscoverWeeklyEvents(ctx context.Context, req aggregator.Request) []*models.DiscoveredEvent
}

// Config holds cache controller settings
type Config struct {
	TTL             time.Duration
	WindowDays      int
	DefaultRadiusKm float64
}

// Controller is the request-facing entry point of the pipeline: per
// household and rolling window it serves cached rows when fresh and
// triggers a refresh otherwise. There is no background refresh; the
// state machine advances only when a request arrives.
type Controller struct {
	repo       storage.Repository
	discoverer EventDiscoverer
	families   FamilyDirectory
	curriculum CurriculumSource
	groups     GroupDirectory
	cfg        Config
	log        *logger.Logger
	now        func() time.Time
}

// NewController creates a new cache controller
func NewController(
	repo storage.Repository,
	discoverer EventDiscoverer,
	families FamilyDirectory,
	curriculum CurriculumSource,
	groups GroupDirectory,
	cfg Config,
	log *logger.Logger,
) *Controller {
	if cfg.TTL <= 0 {
		cfg.TTL = 6 * time.Hour
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 14
	}
	return &Controller{
		repo:       repo,
		discoverer: discoverer,
		families:   families,
		curriculum: curriculum,
		groups:     groups,
		cfg:        cfg,
		log:        log.WithComponent("cache"),
	}
}

// WeeklyEvents returns the household's events for the rolling window,
// refreshing from the source adapters when the cache is empty or stale.
// An empty result is a valid business outcome, not an error; the only
// errors surfaced here are store and collaborator failures.
func (c *Controller) WeeklyEvents(ctx context.Context, familyID uint) ([]*models.DiscoveredEvent, error) {
	now := c.clock()
	windowEnd := now.AddDate(0, 0, c.cfg.WindowDays)
	log := c.log.WithFamilyID(familyID)

	rows, err := c.repo.ListEventWindow(ctx, familyID, time.Time{}, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to read event window: %w", err)
	}

	if len(rows) > 0 {
		if c.isFresh(rows, now) {
			future := filterFuture(rows, now)
			log.Debug().Int("cached", len(rows)).Int("served", len(future)).Msg("Serving fresh cached events")
			return future, nil
		}

		// Stale: clear the window wholesale, then refetch. Two racing
		// requests may both reach this point; that costs redundant
		// provider calls, never corruption.
		log.Info().Int("cached", len(rows)).Msg("Cached events stale, refreshing")
		if err := c.repo.DeleteEventWindow(ctx, familyID, time.Time{}, windowEnd); err != nil {
			return nil, fmt.Errorf("failed to clear stale window: %w", err)
		}
	}

	return c.refresh(ctx, familyID, now, windowEnd, log)
}

func (c *Controller) refresh(ctx context.Context, familyID uint, now, windowEnd time.Time, log *logger.Logger) ([]*models.DiscoveredEvent, error) {
	hh, err := c.families.Household(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve household: %w", err)
	}

	theme, err := c.curriculum.ActiveTheme(ctx, familyID)
	if err != nil {
		// Discovery still works without a theme; relevance degrades to
		// the generic annotation.
		log.Warn().Err(err).Msg("No active theme available")
	}

	groups, err := c.groups.SubscribedGroups(ctx, familyID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to resolve group subscriptions")
	}

	radius := hh.RadiusKm
	if radius <= 0 {
		radius = c.cfg.DefaultRadiusKm
	}

	events := c.discoverer.DiscoverWeeklyEvents(ctx, aggregator.Request{
		FamilyID:    familyID,
		Latitude:    hh.Latitude,
		Longitude:   hh.Longitude,
		RadiusKm:    radius,
		Theme:       theme,
		WindowStart: now,
		Groups:      groups,
	})

	saved := 0
	for _, ev := range events {
		if err := c.repo.CreateEvent(ctx, ev); err != nil {
			log.Warn().Err(err).Str("event", ev.Name).Msg("Failed to persist event")
			continue
		}
		saved++
	}

	log.Info().Int("discovered", len(events)).Int("saved", saved).Msg("Refreshed event cache")

	// Re-read from the store so the response reflects durable state,
	// not the in-memory aggregation result.
	rows, err := c.repo.ListEventWindow(ctx, familyID, time.Time{}, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read event window: %w", err)
	}
	return filterFuture(rows, now), nil
}

// isFresh reports whether any cached row is still within the TTL. A
// refresh replaces the window wholesale, so mixed ages only arise from
// tolerated duplicate refreshes; serving is the safe read.
func (c *Controller) isFresh(rows []*models.DiscoveredEvent, now time.Time) bool {
	cutoff := now.Add(-c.cfg.TTL)
	for _, row := range rows {
		if row.CachedAt.After(cutoff) {
			return true
		}
	}
	return false
}

// CleanupPastEvents bulk-deletes rows whose event date has passed,
// across all families. Housekeeping only; never triggers aggregation.
func (c *Controller) CleanupPastEvents(ctx context.Context) (int64, error) {
	deleted, err := c.repo.DeletePastEvents(ctx, c.clock())
	if err != nil {
		return 0, fmt.Errorf("failed to delete past events: %w", err)
	}
	if deleted > 0 {
		c.log.Info().Int64("deleted", deleted).Msg("Cleaned up past events")
	}
	return deleted, nil
}

// Status summarizes the window state for a household (CLI inspection).
func (c *Controller) Status(ctx context.Context, familyID uint) (state string, cached int, err error) {
	now := c.clock()
	rows, err := c.repo.ListEventWindow(ctx, familyID, time.Time{}, now.AddDate(0, 0, c.cfg.WindowDays))
	if err != nil {
		return "", 0, err
	}
	switch {
	case len(rows) == 0:
		return "empty", 0, nil
	case c.isFresh(rows, now):
		return "fresh", len(rows), nil
	default:
		return "stale", len(rows), nil
	}
}

func (c *Controller) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// filterFuture excludes rows whose event date has already passed. Past
// rows stay in storage until the cleanup pass removes them.
func filterFuture(rows []*models.DiscoveredEvent, now time.Time) []*models.DiscoveredEvent {
	out := make([]*models.DiscoveredEvent, 0, len(rows))
	for _, row := range rows {
		if !row.EventDate.Before(now) {
			out = append(out, row)
		}
	}
	return out
}

package aggregator

import (
	"context"
	"time"

	"github.com/fieldtrip-agent/internal/keywords"
	"github.com/fieldtrip-agent/internal/models"
	"github.com/fieldtrip-agent/internal/source"
	"github.com/fieldtrip-agent/pkg/geo"
	"github.com/fieldtrip-agent/pkg/logger"
)

// Request carries one household's discovery parameters.
type Request struct {
	FamilyID    uint
	Latitude    float64
	Longitude   float64
	RadiusKm    float64
	Theme       string
	WindowStart time.Time
	Groups      []models.GroupSubscription
}

// Aggregator fans out to the registered source adapters, merges their
// results and annotates the survivors.
type Aggregator struct {
	sources    *source.Manager
	maxEvents  int
	windowDays int
	log        *logger.Logger
}

// New creates a new aggregator.
//
// Source registration order on the manager is the dedup precedence:
// register ticketed, then places, then community-group. Changing the
// order silently changes which duplicate wins.
func New(sources *source.Manager, maxEvents, windowDays int, log *logger.Logger) *Aggregator {
	return &Aggregator{
		sources:    sources,
		maxEvents:  maxEvents,
		windowDays: windowDays,
		log:        log.WithComponent("aggregator"),
	}
}

// DiscoverWeeklyEvents runs one full discovery pass: keyword
// extraction, concurrent adapter fan-out, dedup, annotation and
// truncation. It never fails; when every adapter comes back empty the
// result is an empty list, which callers must treat as a valid outcome.
func (a *Aggregator) DiscoverWeeklyEvents(ctx context.Context, req Request) []*models.DiscoveredEvent {
	startTime := time.Now()

	terms := keywords.Extract(req.Theme)

	q := source.Query{
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		RadiusKm:    req.RadiusKm,
		Theme:       req.Theme,
		Keywords:    terms,
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowStart.AddDate(0, 0, a.windowDays),
		Groups:      req.Groups,
	}

	partials := a.sources.FetchAll(ctx, q)
	events := a.merge(req, partials)

	a.log.Info().
		Uint("family_id", req.FamilyID).
		Str("theme", req.Theme).
		Strs("keywords", terms).
		Int("fetched", len(partials)).
		Int("kept", len(events)).
		Dur("duration", time.Since(startTime)).
		Msg("Discovery pass completed")

	return events
}

// merge flattens adapter output into family-scoped rows: first-wins
// dedup on the normalized (name, location) key, drive-time and
// relevance annotation, then the presentation cap. Input order is the
// precedence order, so the merge is stable and idempotent.
func (a *Aggregator) merge(req Request, partials []*models.PartialEvent) []*models.DiscoveredEvent {
	cachedAt := time.Now()
	seen := make(map[string]bool, len(partials))
	events := make([]*models.DiscoveredEvent, 0, a.maxEvents)

	for _, p := range partials {
		if p == nil || p.Name == "" {
			continue
		}

		key := models.DedupKey(p.Name, p.Location)
		if seen[key] {
			continue
		}
		seen[key] = true

		ev := &models.DiscoveredEvent{
			FamilyID:    req.FamilyID,
			ExternalID:  p.ExternalID,
			Source:      p.Source,
			GroupID:     p.GroupID,
			GroupName:   p.GroupName,
			Name:        p.Name,
			Description: models.TruncateDescription(p.Description),
			Category:    p.Category,
			CostDisplay: p.CostDisplay,
			EventDate:   p.EventDate,
			EndDate:     p.EndDate,
			Location:    p.Location,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			TicketURL:   p.TicketURL,
			CachedAt:    cachedAt,
		}

		// Drive time only when both coordinate pairs are known.
		if p.Latitude != nil && p.Longitude != nil && householdHasCoords(req) {
			minutes := geo.DriveMinutes(req.Latitude, req.Longitude, *p.Latitude, *p.Longitude)
			ev.DriveMinutes = &minutes
		}

		if p.WhyItFits != "" {
			ev.WhyItFits = p.WhyItFits
		} else {
			ev.WhyItFits = keywords.WhyItFits(req.Theme, p.Name)
		}

		events = append(events, ev)
		if len(events) == a.maxEvents {
			break
		}
	}

	return events
}

func householdHasCoords(req Request) bool {
	return req.Latitude != 0 || req.Longitude != 0
}

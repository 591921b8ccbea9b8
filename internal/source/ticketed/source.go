package ticketed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fieldtrip-agent/internal/config"
	"github.com/fieldtrip-agent/internal/models"
	"github.com/fieldtrip-agent/internal/source"
	"github.com/fieldtrip-agent/pkg/logger"
	"github.com/fieldtrip-agent/pkg/ratelimit"
)

const requestTimeout = 8 * time.Second

// maxSearchKeywords bounds how many theme keywords go into the provider query.
const maxSearchKeywords = 3

// categoryWhitelist restricts searches to provider categories relevant
// to homeschool outings: science & tech, arts, community, family & education.
var categoryWhitelist = []string{"102", "105", "113", "115"}

// categoryLabels maps provider category ids to our topical labels.
var categoryLabels = map[string]string{
	"102": "Science & Technology",
	"105": "Arts & Culture",
	"113": "Community",
	"115": "Family & Education",
}

// searchResponse is the provider's event search envelope. Provider
// fields stay inside this package; nothing past the adapter boundary
// sees these shapes.
type searchResponse struct {
	Events []providerEvent `json:"events"`
}

type providerEvent struct {
	ID   string `json:"id"`
	Name struct {
		Text string `json:"text"`
	} `json:"name"`
	Description struct {
		Text string `json:"text"`
	} `json:"description"`
	URL   string `json:"url"`
	Start struct {
		UTC string `json:"utc"`
	} `json:"start"`
	End struct {
		UTC string `json:"utc"`
	} `json:"end"`
	IsFree             bool           `json:"is_free"`
	CategoryID         string         `json:"category_id"`
	Venue              *providerVenue `json:"venue"`
	TicketAvailability *struct {
		MinimumTicketPrice *struct {
			Display string `json:"display"`
		} `json:"minimum_ticket_price"`
	} `json:"ticket_availability"`
}

type providerVenue struct {
	// The provider serializes coordinates as strings.
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Address   struct {
		LocalizedAddressDisplay string `json:"localized_address_display"`
	} `json:"address"`
}

// Source implements source.EventSource for the ticketed-events search API
type Source struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter
	log        *logger.Logger
}

// New creates a new ticketed-events source
func New(cfg config.TicketedConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Source {
	return &Source{
		token:   cfg.APIToken,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		limiter: limiter,
		log:     log.WithSource("ticketed", "events-search"),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "ticketed-events"
}

// Type returns "ticketed"
func (s *Source) Type() models.EventSource {
	return models.SourceTicketed
}

// Fetch queries the events-search API for the household's window. All
// failures degrade to an empty list; a missing credential is a soft
// skip because the provider integration is optional infrastructure.
func (s *Source) Fetch(ctx context.Context, q source.Query) []*models.PartialEvent {
	if s.token == "" {
		s.log.Info().Msg("No API token configured, skipping ticketed-events search")
		return nil
	}

	if err := s.limiter.Wait(ctx, ratelimit.LimiterTicketed); err != nil {
		s.log.Warn().Err(err).Msg("Rate limiter wait aborted")
		return nil
	}

	resp, err := s.search(ctx, q)
	if err != nil {
		s.log.Error().Err(err).Msg("Ticketed-events search failed")
		return nil
	}

	events := make([]*models.PartialEvent, 0, len(resp.Events))
	for _, pe := range resp.Events {
		ev := s.convert(pe)
		if ev == nil {
			continue
		}
		events = append(events, ev)
	}

	s.log.Info().Int("count", len(events)).Msg("Fetched ticketed events")
	return events
}

func (s *Source) search(ctx context.Context, q source.Query) (*searchResponse, error) {
	keywords := q.Keywords
	if len(keywords) > maxSearchKeywords {
		keywords = keywords[:maxSearchKeywords]
	}

	params := url.Values{}
	params.Set("q", strings.Join(keywords, " "))
	params.Set("location.latitude", fmt.Sprintf("%f", q.Latitude))
	params.Set("location.longitude", fmt.Sprintf("%f", q.Longitude))
	params.Set("location.within", fmt.Sprintf("%dkm", int(q.RadiusKm)))
	params.Set("start_date.range_start", q.WindowStart.UTC().Format("2006-01-02T15:04:05Z"))
	params.Set("start_date.range_end", q.WindowEnd.UTC().Format("2006-01-02T15:04:05Z"))
	params.Set("categories", strings.Join(categoryWhitelist, ","))
	params.Set("expand", "venue,ticket_availability")

	endpoint := fmt.Sprintf("%s/events/search/?%s", s.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// convert maps one provider event into the shared partial-event shape.
func (s *Source) convert(pe providerEvent) *models.PartialEvent {
	if pe.Name.Text == "" {
		return nil
	}

	start, err := time.Parse(time.RFC3339, pe.Start.UTC)
	if err != nil {
		s.log.Debug().Str("event_id", pe.ID).Str("start", pe.Start.UTC).Msg("Unparseable start date, skipping event")
		return nil
	}

	ev := &models.PartialEvent{
		ExternalID:  pe.ID,
		Source:      models.SourceTicketed,
		Name:        pe.Name.Text,
		Description: models.TruncateDescription(pe.Description.Text),
		Category:    categoryLabels[pe.CategoryID],
		CostDisplay: costDisplay(pe),
		EventDate:   start,
		TicketURL:   pe.URL,
	}

	if end, err := time.Parse(time.RFC3339, pe.End.UTC); err == nil {
		ev.EndDate = &end
	}

	if pe.Venue != nil {
		ev.Location = pe.Venue.Address.LocalizedAddressDisplay
		if lat, err := strconv.ParseFloat(pe.Venue.Latitude, 64); err == nil {
			if lng, err := strconv.ParseFloat(pe.Venue.Longitude, 64); err == nil {
				ev.Latitude = &lat
				ev.Longitude = &lng
			}
		}
	}

	return ev
}

// costDisplay maps the provider free/paid flag and minimum price to a
// display string.
func costDisplay(pe providerEvent) string {
	if pe.IsFree {
		return "FREE"
	}
	if pe.TicketAvailability != nil && pe.TicketAvailability.MinimumTicketPrice != nil &&
		pe.TicketAvailability.MinimumTicketPrice.Display != "" {
		return pe.TicketAvailability.MinimumTicketPrice.Display
	}
	return "$"
}

// Ensure Source implements source.EventSource
var _ source.EventSource = (*Source)(nil)

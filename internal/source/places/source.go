package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fieldtrip-agent/internal/config"
	"github.com/fieldtrip-agent/internal/models"
	"github.com/fieldtrip-agent/internal/source"
	"github.com/fieldtrip-agent/pkg/logger"
	"github.com/fieldtrip-agent/pkg/ratelimit"
)

const requestTimeout = 8 * time.Second

// visitOffset is how far out a synthesized venue visit is dated.
// Venues, unlike ticketed events, have no inherent event date.
const visitOffset = 7 * 24 * time.Hour

// searchQualifier is appended to the keyword on every nearby-search.
const searchQualifier = "homeschool education family"

// venueTypes is the fixed list of venue types searched per pass.
var venueTypes = []string{"museum", "library", "park", "aquarium", "zoo", "tourist_attraction"}

// typeCategories maps a venue type to a topical category label.
var typeCategories = map[string]string{
	"museum":             "History & Culture",
	"library":            "Literacy & Research",
	"park":               "Nature & Outdoors",
	"aquarium":           "Marine Science",
	"zoo":                "Zoology",
	"tourist_attraction": "Local Discovery",
}

// nearbyResponse is the provider's nearby-search envelope.
type nearbyResponse struct {
	Status  string          `json:"status"`
	Results []providerPlace `json:"results"`
}

type providerPlace struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Vicinity string `json:"vicinity"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// Source implements source.EventSource for the places nearby-search API
type Source struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter
	log        *logger.Logger
}

// New creates a new places/venue source
func New(cfg config.PlacesConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Source {
	return &Source{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		limiter: limiter,
		log:     log.WithSource("places", "nearby-search"),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "places-venues"
}

// Type returns "places"
func (s *Source) Type() models.EventSource {
	return models.SourcePlaces
}

// Fetch issues one nearby-search per venue type and synthesizes
// "Visit: <place>" events dated one week out. A missing API key is a
// soft skip; per-type failures drop only that type's results.
func (s *Source) Fetch(ctx context.Context, q source.Query) []*models.PartialEvent {
	if s.apiKey == "" {
		s.log.Info().Msg("No API key configured, skipping places search")
		return nil
	}

	keyword := searchQualifier
	if len(q.Keywords) > 0 {
		keyword = q.Keywords[0] + " " + searchQualifier
	}

	visitDate := time.Now().Add(visitOffset)

	var events []*models.PartialEvent
	seen := make(map[string]bool) // the same place can match several types

	for _, venueType := range venueTypes {
		if err := s.limiter.Wait(ctx, ratelimit.LimiterPlaces); err != nil {
			s.log.Warn().Err(err).Msg("Rate limiter wait aborted")
			return events
		}

		places, err := s.nearbySearch(ctx, q, venueType, keyword)
		if err != nil {
			s.log.Error().Err(err).Str("venue_type", venueType).Msg("Places search failed")
			continue
		}

		for _, p := range places {
			if p.Name == "" || seen[p.PlaceID] {
				continue
			}
			seen[p.PlaceID] = true

			lat := p.Geometry.Location.Lat
			lng := p.Geometry.Location.Lng
			events = append(events, &models.PartialEvent{
				ExternalID:  p.PlaceID,
				Source:      models.SourcePlaces,
				Name:        "Visit: " + p.Name,
				Description: models.TruncateDescription(fmt.Sprintf("A local %s worth a field trip: %s.", strings.ReplaceAll(venueType, "_", " "), p.Name)),
				Category:    typeCategories[venueType],
				CostDisplay: "Varies",
				EventDate:   visitDate,
				Location:    p.Vicinity,
				Latitude:    &lat,
				Longitude:   &lng,
			})
		}
	}

	s.log.Info().Int("count", len(events)).Msg("Synthesized venue visit events")
	return events
}

func (s *Source) nearbySearch(ctx context.Context, q source.Query, venueType, keyword string) ([]providerPlace, error) {
	params := url.Values{}
	params.Set("key", s.apiKey)
	params.Set("location", fmt.Sprintf("%f,%f", q.Latitude, q.Longitude))
	params.Set("radius", fmt.Sprintf("%d", int(q.RadiusKm*1000)))
	params.Set("type", venueType)
	params.Set("keyword", keyword)

	endpoint := fmt.Sprintf("%s/nearbysearch/json?%s", s.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Status != "OK" && result.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("provider status %s", result.Status)
	}

	return result.Results, nil
}

// Ensure Source implements source.EventSource
var _ source.EventSource = (*Source)(nil)

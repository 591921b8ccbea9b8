package community

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/fieldtrip-agent/internal/config"
	"github.com/fieldtrip-agent/internal/models"
	"github.com/fieldtrip-agent/internal/source"
	"github.com/fieldtrip-agent/pkg/logger"
	"github.com/fieldtrip-agent/pkg/ratelimit"
)

const (
	// groupTimeout bounds one group page fetch; the adapter fans out one
	// fetch per subscribed group concurrently.
	groupTimeout = 10 * time.Second

	// maxEventsPerGroup caps extraction per group page.
	maxEventsPerGroup = 10
)

// privateMarkers identify membership-gated group pages. Gated pages are
// skipped outright instead of parsed: their markup describes the join
// wall, not events.
var privateMarkers = []string{
	"request to join",
	"private group",
	"join group to see",
	"you must be a member",
	"log in to continue",
}

// eventPathRe matches anchors pointing at event-detail paths and
// captures the numeric event id.
var eventPathRe = regexp.MustCompile(`/events/(\d+)`)

// Source implements source.EventSource for community-group event pages.
//
// This is the most fragile adapter in the pipeline: it depends on
// third-party markup staying roughly stable, and its date inference is
// best-effort. Everything here degrades to an empty list.
type Source struct {
	userAgent  string
	httpClient *http.Client
	feedParser *gofeed.Parser
	limiter    *ratelimit.MultiLimiter
	log        *logger.Logger
	now        func() time.Time
}

// New creates a new community-group source
func New(cfg config.CommunityConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Source {
	return &Source{
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: groupTimeout,
		},
		feedParser: gofeed.NewParser(),
		limiter:    limiter,
		log:        log.WithSource("community-group", "scraper"),
		now:        time.Now,
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return "community-groups"
}

// Type returns "community-group"
func (s *Source) Type() models.EventSource {
	return models.SourceCommunityGroup
}

// Fetch scrapes each subscribed group's public events listing
// concurrently. Group order is preserved in the flattened result.
func (s *Source) Fetch(ctx context.Context, q source.Query) []*models.PartialEvent {
	if len(q.Groups) == 0 {
		return nil
	}

	results := make([][]*models.PartialEvent, len(q.Groups))

	var wg sync.WaitGroup
	for i, g := range q.Groups {
		wg.Add(1)
		go func(i int, g models.GroupSubscription) {
			defer wg.Done()
			results[i] = s.fetchGroup(ctx, g)
		}(i, g)
	}
	wg.Wait()

	var events []*models.PartialEvent
	for _, r := range results {
		events = append(events, r...)
	}

	s.log.Info().
		Int("groups", len(q.Groups)).
		Int("count", len(events)).
		Msg("Fetched community group events")
	return events
}

// fetchGroup pulls one group's events. Groups that publish an event
// feed are parsed with the feed parser; everything else goes through
// the HTML scrape path.
func (s *Source) fetchGroup(ctx context.Context, g models.GroupSubscription) []*models.PartialEvent {
	log := s.log.WithGroup(g.GroupID, g.GroupName)

	if g.GroupURL == "" {
		log.Debug().Msg("Group has no URL, skipping")
		return nil
	}

	if err := s.limiter.Wait(ctx, ratelimit.LimiterCommunity); err != nil {
		log.Warn().Err(err).Msg("Rate limiter wait aborted")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, groupTimeout)
	defer cancel()

	if isFeedURL(g.GroupURL) {
		return s.fetchGroupFeed(ctx, g, log)
	}
	return s.scrapeGroupPage(ctx, g, log)
}

func (s *Source) scrapeGroupPage(ctx context.Context, g models.GroupSubscription, log *logger.Logger) []*models.PartialEvent {
	doc, err := s.fetchDocument(ctx, eventsPageURL(g.GroupURL))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch group events page")
		return nil
	}

	// Gated pages render a join wall instead of the listing. Detect and
	// bail before any anchor extraction.
	body := strings.ToLower(doc.Text())
	for _, marker := range privateMarkers {
		if strings.Contains(body, marker) {
			log.Info().Str("marker", marker).Msg("Group page is membership-gated, skipping")
			return nil
		}
	}

	now := s.now()
	var events []*models.PartialEvent
	seen := make(map[string]bool)

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		m := eventPathRe.FindStringSubmatch(href)
		if m == nil {
			return true
		}

		eventID := m[1]
		name := strings.Join(strings.Fields(sel.Text()), " ")
		if seen[eventID] || name == "" {
			return true
		}
		seen[eventID] = true

		// Date hints usually sit next to the anchor, not inside it.
		adjacent := sel.Text()
		if parent := sel.Parent(); parent.Length() > 0 {
			adjacent = parent.Text()
		}

		events = append(events, &models.PartialEvent{
			ExternalID:  eventID,
			Source:      models.SourceCommunityGroup,
			GroupID:     g.GroupID,
			GroupName:   g.GroupName,
			Name:        name,
			Description: models.TruncateDescription(fmt.Sprintf("Shared by the %s group.", g.GroupName)),
			Category:    "Community",
			CostDisplay: "See group",
			EventDate:   inferEventDate(adjacent, now),
			TicketURL:   absoluteEventURL(g.GroupURL, href),
		})

		return len(events) < maxEventsPerGroup
	})

	log.Debug().Int("count", len(events)).Msg("Extracted events from group page")
	return events
}

func (s *Source) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

// eventsPageURL derives the group's events listing URL.
func eventsPageURL(groupURL string) string {
	trimmed := strings.TrimRight(groupURL, "/")
	if strings.HasSuffix(trimmed, "/events") {
		return trimmed
	}
	return trimmed + "/events"
}

// absoluteEventURL resolves an extracted href against the group URL.
func absoluteEventURL(groupURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if i := strings.Index(groupURL, "://"); i >= 0 {
		if j := strings.Index(groupURL[i+3:], "/"); j >= 0 {
			return groupURL[:i+3+j] + href
		}
	}
	return strings.TrimRight(groupURL, "/") + href
}

func isFeedURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasSuffix(lower, ".xml") ||
		strings.HasSuffix(lower, ".rss") ||
		strings.HasSuffix(lower, ".atom") ||
		strings.Contains(lower, "/feed")
}

// Ensure Source implements source.EventSource
var _ source.EventSource = (*Source)(nil)

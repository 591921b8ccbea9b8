package community

import (
	"context"
	"strings"
	"time"

	"github.com/fieldtrip-agent/internal/models"
	"github.com/fieldtrip-agent/internal/source"
	"github.com/fieldtrip-agent/pkg/logger"
)

// fetchGroupFeed handles co-ops that publish their calendar as an
// RSS/Atom feed instead of an HTML listing. Same output shape, far less
// fragile than the scrape path.
func (s *Source) fetchGroupFeed(ctx context.Context, g models.GroupSubscription, log *logger.Logger) []*models.PartialEvent {
	feed, err := s.feedParser.ParseURLWithContext(g.GroupURL, ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to parse group event feed")
		return nil
	}

	now := s.now()
	events := make([]*models.PartialEvent, 0, maxEventsPerGroup)

	for _, item := range feed.Items {
		if len(events) == maxEventsPerGroup {
			break
		}
		if item.Title == "" {
			continue
		}

		events = append(events, &models.PartialEvent{
			ExternalID:  source.GenerateExternalID(models.SourceCommunityGroup, item.Link),
			Source:      models.SourceCommunityGroup,
			GroupID:     g.GroupID,
			GroupName:   g.GroupName,
			Name:        cleanText(item.Title),
			Description: models.TruncateDescription(cleanText(item.Description)),
			Category:    "Community",
			CostDisplay: "See group",
			EventDate:   feedEventDate(item.Title, item.Description, item.PublishedParsed, now),
			TicketURL:   item.Link,
		})
	}

	log.Debug().Int("count", len(events)).Msg("Extracted events from group feed")
	return events
}

// feedEventDate prefers a date inferred from the entry text; the feed's
// publication instant is when the entry was posted, not when the event
// happens, so it only wins when it lies in the future.
func feedEventDate(title, description string, published *time.Time, now time.Time) time.Time {
	text := title + " " + description
	if monthDayRe.MatchString(text) || timeOfDayRe.MatchString(text) {
		return inferEventDate(text, now)
	}
	if published != nil && published.After(now) {
		return *published
	}
	return now.Add(defaultOffset)
}

// cleanText removes HTML tags and extra whitespace from feed fields
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "<br>", " ")
	text = strings.ReplaceAll(text, "<br/>", " ")
	text = strings.ReplaceAll(text, "<br />", " ")
	text = strings.ReplaceAll(text, "</p>", " ")
	text = strings.ReplaceAll(text, "<p>", "")

	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
		} else if r == '>' {
			inTag = false
		} else if !inTag {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(strings.Join(strings.Fields(result.String()), " "))
}

package community

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fieldtrip-agent/internal/config"
	"github.com/fieldtrip-agent/internal/models"
	"github.com/fieldtrip-agent/internal/source"
	"github.com/fieldtrip-agent/pkg/logger"
	"github.com/fieldtrip-agent/pkg/ratelimit"
)

func newTestSource() *Source {
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	return New(config.CommunityConfig{UserAgent: "test-agent"}, ratelimit.NewDefaultLimiter(), log)
}

func groupQuery(url string) source.Query {
	return source.Query{
		Groups: []models.GroupSubscription{
			{GroupID: "g1", GroupName: "PDX Homeschoolers", GroupURL: url},
		},
	}
}

func TestScrapeGroupPage(t *testing.T) {
	t.Run("private page is skipped without extraction", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><body>
				<h1>PDX Homeschoolers</h1>
				<p>This group is private. Request to Join to see upcoming events.</p>
				<a href="/groups/g1/events/111">Hidden Event</a>
			</body></html>`)
		}))
		defer ts.Close()

		events := newTestSource().Fetch(context.Background(), groupQuery(ts.URL+"/groups/g1"))
		if len(events) != 0 {
			t.Errorf("expected no events from gated page, got %d", len(events))
		}
	})

	t.Run("extracts events with ids and inferred dates", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/groups/g1/events" {
				http.NotFound(w, r)
				return
			}
			fmt.Fprint(w, `<html><body>
				<div><a href="/groups/g1/events/123456">Spring Nature Walk</a> Sat, Apr 12 at 10:00 AM</div>
				<div><a href="/groups/g1/events/789012">Co-op Science Fair</a> details soon</div>
				<a href="/groups/g1/about">About</a>
			</body></html>`)
		}))
		defer ts.Close()

		s := newTestSource()
		now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return now }

		events := s.Fetch(context.Background(), groupQuery(ts.URL+"/groups/g1"))
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}

		walk := events[0]
		if walk.ExternalID != "123456" {
			t.Errorf("expected numeric id from path, got %q", walk.ExternalID)
		}
		if walk.Name != "Spring Nature Walk" {
			t.Errorf("unexpected name %q", walk.Name)
		}
		if walk.EventDate.Month() != time.April || walk.EventDate.Day() != 12 {
			t.Errorf("expected inferred Apr 12, got %v", walk.EventDate)
		}
		if walk.Source != models.SourceCommunityGroup || walk.GroupID != "g1" {
			t.Errorf("missing group provenance: %+v", walk)
		}
		if !strings.HasPrefix(walk.TicketURL, ts.URL) {
			t.Errorf("expected absolute event URL, got %q", walk.TicketURL)
		}

		// No date hint defaults to one week out rather than dropping.
		fair := events[1]
		want := now.Add(defaultOffset)
		if !fair.EventDate.Equal(want) {
			t.Errorf("expected default date %v, got %v", want, fair.EventDate)
		}
	})

	t.Run("caps events per group", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html><body>")
			for i := 0; i < 15; i++ {
				fmt.Fprintf(w, `<a href="/groups/g1/events/%d">Event %d</a>`, 1000+i, i)
			}
			fmt.Fprint(w, "</body></html>")
		}))
		defer ts.Close()

		events := newTestSource().Fetch(context.Background(), groupQuery(ts.URL+"/groups/g1"))
		if len(events) != maxEventsPerGroup {
			t.Errorf("expected %d events, got %d", maxEventsPerGroup, len(events))
		}
	})

	t.Run("unreachable group degrades to empty", func(t *testing.T) {
		events := newTestSource().Fetch(context.Background(), groupQuery("http://127.0.0.1:1/groups/g1"))
		if len(events) != 0 {
			t.Errorf("expected empty result, got %d", len(events))
		}
	})

	t.Run("no groups no work", func(t *testing.T) {
		if events := newTestSource().Fetch(context.Background(), source.Query{}); events != nil {
			t.Errorf("expected nil, got %v", events)
		}
	})
}

func TestFetchGroupFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
	<title>Co-op Calendar</title>
	<item>
		<title>Park Day on Apr 20</title>
		<link>https://example.org/events/park-day</link>
		<description>Meet at the &lt;b&gt;north entrance&lt;/b&gt; at 1:00 PM</description>
	</item>
</channel></rss>`)
	}))
	defer ts.Close()

	s := newTestSource()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	events := s.Fetch(context.Background(), groupQuery(ts.URL+"/calendar.xml"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.Name != "Park Day on Apr 20" {
		t.Errorf("unexpected name %q", ev.Name)
	}
	if ev.EventDate.Month() != time.April || ev.EventDate.Day() != 20 {
		t.Errorf("expected inferred Apr 20, got %v", ev.EventDate)
	}
	if strings.Contains(ev.Description, "<b>") {
		t.Errorf("expected HTML stripped from description, got %q", ev.Description)
	}
	if ev.ExternalID == "" {
		t.Error("expected generated external id for feed entry")
	}
}

func TestInferEventDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("month day with time", func(t *testing.T) {
		d := inferEventDate("Sat, Apr 12 at 10:00 AM", now)
		want := time.Date(2026, 4, 12, 10, 0, 0, 0, time.UTC)
		if !d.Equal(want) {
			t.Errorf("got %v, want %v", d, want)
		}
	})

	t.Run("month day without time defaults to mid-morning", func(t *testing.T) {
		d := inferEventDate("June 1 field trip", now)
		want := time.Date(2026, 6, 1, defaultHour, 0, 0, 0, time.UTC)
		if !d.Equal(want) {
			t.Errorf("got %v, want %v", d, want)
		}
	})

	t.Run("past month day rolls to next year", func(t *testing.T) {
		d := inferEventDate("Jan 5 potluck", now)
		if d.Year() != 2027 || d.Month() != time.January || d.Day() != 5 {
			t.Errorf("expected Jan 5 2027, got %v", d)
		}
	})

	t.Run("bare time of day means tomorrow", func(t *testing.T) {
		d := inferEventDate("Doors open 6:30 PM", now)
		want := time.Date(2026, 3, 11, 18, 30, 0, 0, time.UTC)
		if !d.Equal(want) {
			t.Errorf("got %v, want %v", d, want)
		}
	})

	t.Run("noon and midnight conversion", func(t *testing.T) {
		if d := inferEventDate("12 PM sharp", now); d.Hour() != 12 {
			t.Errorf("12 PM should be hour 12, got %d", d.Hour())
		}
		if d := inferEventDate("12 AM launch", now); d.Hour() != 0 {
			t.Errorf("12 AM should be hour 0, got %d", d.Hour())
		}
	})

	t.Run("no pattern defaults a week out", func(t *testing.T) {
		d := inferEventDate("details to follow", now)
		if !d.Equal(now.Add(defaultOffset)) {
			t.Errorf("got %v, want %v", d, now.Add(defaultOffset))
		}
	})
}

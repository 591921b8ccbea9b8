package places

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fieldtrip-agent/internal/config"
	"github.com/fieldtrip-agent/internal/source"
	"github.com/fieldtrip-agent/pkg/logger"
	"github.com/fieldtrip-agent/pkg/ratelimit"
)

func newTestSource(key, baseURL string) *Source {
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	return New(config.PlacesConfig{APIKey: key, BaseURL: baseURL}, ratelimit.NewDefaultLimiter(), log)
}

func testQuery() source.Query {
	return source.Query{
		Latitude:  45.5,
		Longitude: -122.6,
		RadiusKm:  40,
		Keywords:  []string{"ecosystem"},
	}
}

func TestFetch(t *testing.T) {
	t.Run("missing credential soft-skips", func(t *testing.T) {
		called := false
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer ts.Close()

		if events := newTestSource("", ts.URL).Fetch(context.Background(), testQuery()); events != nil {
			t.Errorf("expected nil without credential, got %v", events)
		}
		if called {
			t.Error("no request should be made without a credential")
		}
	})

	t.Run("synthesizes visit events", func(t *testing.T) {
		var keywords []string
		var types []string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keywords = append(keywords, r.URL.Query().Get("keyword"))
			venueType := r.URL.Query().Get("type")
			types = append(types, venueType)

			if venueType != "museum" {
				fmt.Fprint(w, `{"status": "ZERO_RESULTS", "results": []}`)
				return
			}
			fmt.Fprint(w, `{
				"status": "OK",
				"results": [
					{
						"place_id": "pl-1",
						"name": "Natural History Museum",
						"vicinity": "200 Main St",
						"geometry": {"location": {"lat": 45.51, "lng": -122.66}}
					},
					{
						"place_id": "pl-1",
						"name": "Natural History Museum",
						"vicinity": "200 Main St",
						"geometry": {"location": {"lat": 45.51, "lng": -122.66}}
					}
				]
			}`)
		}))
		defer ts.Close()

		events := newTestSource("test-key", ts.URL).Fetch(context.Background(), testQuery())
		if len(events) != 1 {
			t.Fatalf("expected 1 event after place-id dedup, got %d", len(events))
		}

		if len(types) != len(venueTypes) {
			t.Errorf("expected one search per venue type, got %d", len(types))
		}
		for _, kw := range keywords {
			if !strings.Contains(kw, "ecosystem") || !strings.Contains(kw, searchQualifier) {
				t.Errorf("keyword missing theme term or qualifier: %q", kw)
			}
		}

		ev := events[0]
		if ev.Name != "Visit: Natural History Museum" {
			t.Errorf("unexpected name %q", ev.Name)
		}
		if ev.Category != "History & Culture" {
			t.Errorf("unexpected category %q", ev.Category)
		}
		if ev.Location != "200 Main St" {
			t.Errorf("unexpected location %q", ev.Location)
		}
		if ev.Latitude == nil || *ev.Latitude != 45.51 {
			t.Errorf("expected coordinates, got %v", ev.Latitude)
		}

		// Venues have no inherent date: synthesized a week out.
		until := time.Until(ev.EventDate)
		if until < 6*24*time.Hour || until > 8*24*time.Hour {
			t.Errorf("expected event roughly a week out, got %v", ev.EventDate)
		}
	})

	t.Run("provider error status degrades to empty", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status": "REQUEST_DENIED", "results": []}`)
		}))
		defer ts.Close()

		if events := newTestSource("test-key", ts.URL).Fetch(context.Background(), testQuery()); len(events) != 0 {
			t.Errorf("expected empty on denied request, got %d", len(events))
		}
	})
}

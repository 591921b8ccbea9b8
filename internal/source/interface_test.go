package source

import (
	"context"
	"testing"
	"time"

	"github.com/fieldtrip-agent/internal/models"
)

type slowSource struct {
	name   string
	typ    models.EventSource
	delay  time.Duration
	events []*models.PartialEvent
}

func (s *slowSource) Name() string             { return s.name }
func (s *slowSource) Type() models.EventSource { return s.typ }
func (s *slowSource) Fetch(ctx context.Context, q Query) []*models.PartialEvent {
	time.Sleep(s.delay)
	return s.events
}

func TestFetchAll(t *testing.T) {
	ev := func(name string) []*models.PartialEvent {
		return []*models.PartialEvent{{Name: name}}
	}

	t.Run("flattens in registration order regardless of completion order", func(t *testing.T) {
		m := NewManager()
		m.Register(&slowSource{name: "first", typ: models.SourceTicketed, delay: 30 * time.Millisecond, events: ev("from-first")})
		m.Register(&slowSource{name: "second", typ: models.SourcePlaces, events: ev("from-second")})
		m.Register(&slowSource{name: "third", typ: models.SourceCommunityGroup, delay: 10 * time.Millisecond, events: ev("from-third")})

		all := m.FetchAll(context.Background(), Query{})
		if len(all) != 3 {
			t.Fatalf("expected 3 events, got %d", len(all))
		}
		want := []string{"from-first", "from-second", "from-third"}
		for i, w := range want {
			if all[i].Name != w {
				t.Errorf("position %d: got %q, want %q", i, all[i].Name, w)
			}
		}
	})

	t.Run("runs sources concurrently", func(t *testing.T) {
		m := NewManager()
		for i := 0; i < 3; i++ {
			m.Register(&slowSource{name: string(rune('a' + i)), typ: models.SourceTicketed, delay: 50 * time.Millisecond})
		}

		start := time.Now()
		m.FetchAll(context.Background(), Query{})
		elapsed := time.Since(start)

		// A join over concurrent fetches should cost about one delay,
		// not three.
		if elapsed > 120*time.Millisecond {
			t.Errorf("fan-out appears sequential: took %v", elapsed)
		}
	})

	t.Run("empty manager yields empty result", func(t *testing.T) {
		if all := NewManager().FetchAll(context.Background(), Query{}); len(all) != 0 {
			t.Errorf("expected empty, got %d", len(all))
		}
	})
}

func TestGenerateExternalID(t *testing.T) {
	a := GenerateExternalID(models.SourceCommunityGroup, "https://example.org/events/1")
	b := GenerateExternalID(models.SourceCommunityGroup, "https://example.org/events/1")
	c := GenerateExternalID(models.SourceTicketed, "https://example.org/events/1")

	if a != b {
		t.Error("expected stable ids for identical input")
	}
	if a == c {
		t.Error("expected ids to differ across source types")
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
}

package source

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/fieldtrip-agent/internal/models"
)

// Query carries everything an adapter needs for one discovery pass.
type Query struct {
	Latitude    float64
	Longitude   float64
	RadiusKm    float64
	Theme       string
	Keywords    []string
	WindowStart time.Time
	WindowEnd   time.Time
	Groups      []models.GroupSubscription
}

// EventSource defines the interface for event source adapters.
//
// Fetch never returns an error: adapters own their failure handling and
// degrade to an empty list (missing credential, provider error, timeout,
// unparseable page), logging locally. A slow provider is bounded by the
// adapter's own request timeout so it cannot stall its siblings.
type EventSource interface {
	// Name returns the unique name of this source
	Name() string

	// Type returns the source type (ticketed, places, community-group)
	Type() models.EventSource

	// Fetch retrieves events from the source
	Fetch(ctx context.Context, q Query) []*models.PartialEvent
}

// GenerateExternalID creates a stable ID for events whose provider
// exposes none, based on source type and a provider URL or name.
func GenerateExternalID(sourceType models.EventSource, key string) string {
	data := fmt.Sprintf("%s:%s", sourceType, key)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:16]) // Use first 16 bytes (32 hex chars)
}

// Manager manages the registered event sources.
//
// Registration order is load-bearing: it decides which copy of a
// duplicated event survives dedup downstream (ticketed before places
// before community-group).
type Manager struct {
	sources []EventSource
}

// NewManager creates a new source manager
func NewManager() *Manager {
	return &Manager{
		sources: make([]EventSource, 0),
	}
}

// Register adds a source to the manager
func (m *Manager) Register(source EventSource) {
	m.sources = append(m.sources, source)
}

// GetSources returns all registered sources
func (m *Manager) GetSources() []EventSource {
	return m.sources
}

// GetSourceByName returns a source by name
func (m *Manager) GetSourceByName(name string) EventSource {
	for _, s := range m.sources {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// FetchAll fans out to every source concurrently and joins on all of
// them, then flattens results in registration order. Total latency
// approximates the slowest adapter, not the sum; no adapter failure
// cancels a sibling.
func (m *Manager) FetchAll(ctx context.Context, q Query) []*models.PartialEvent {
	results := make([][]*models.PartialEvent, len(m.sources))

	var wg sync.WaitGroup
	for i, s := range m.sources {
		wg.Add(1)
		go func(i int, s EventSource) {
			defer wg.Done()
			results[i] = s.Fetch(ctx, q)
		}(i, s)
	}
	wg.Wait()

	var all []*models.PartialEvent
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

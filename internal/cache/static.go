package cache

import (
	"context"
	"fmt"

	"github.com/fieldtrip-agent/internal/config"
	"github.com/fieldtrip-agent/internal/models"
)

// StaticCollaborators serves household, theme and group lookups from
// the config file. The production collaborators live in the product's
// own storage; the CLI and the standalone server use this instead.
type StaticCollaborators struct {
	families map[uint]config.FamilyConfig
}

// NewStaticCollaborators builds the config-backed collaborator set.
func NewStaticCollaborators(families []config.FamilyConfig) *StaticCollaborators {
	m := make(map[uint]config.FamilyConfig, len(families))
	for _, f := range families {
		m[f.ID] = f
	}
	return &StaticCollaborators{families: m}
}

// Household implements FamilyDirectory
func (s *StaticCollaborators) Household(ctx context.Context, familyID uint) (*Household, error) {
	f, ok := s.families[familyID]
	if !ok {
		return nil, fmt.Errorf("family %d not configured", familyID)
	}
	return &Household{
		ID:        f.ID,
		Name:      f.Name,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		RadiusKm:  f.RadiusKm,
	}, nil
}

// ActiveTheme implements CurriculumSource
func (s *StaticCollaborators) ActiveTheme(ctx context.Context, familyID uint) (string, error) {
	f, ok := s.families[familyID]
	if !ok {
		return "", fmt.Errorf("family %d not configured", familyID)
	}
	return f.Theme, nil
}

// SubscribedGroups implements GroupDirectory
func (s *StaticCollaborators) SubscribedGroups(ctx context.Context, familyID uint) ([]models.GroupSubscription, error) {
	f, ok := s.families[familyID]
	if !ok {
		return nil, fmt.Errorf("family %d not configured", familyID)
	}
	return f.Groups, nil
}

var (
	_ FamilyDirectory  = (*StaticCollaborators)(nil)
	_ CurriculumSource = (*StaticCollaborators)(nil)
	_ GroupDirectory   = (*StaticCollaborators)(nil)
)

package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fieldtrip-agent/internal/models"
	"github.com/fieldtrip-agent/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.DiscoveredEvent{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Event operations

func (r *Repository) CreateEvent(ctx context.Context, event *models.DiscoveredEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListEventWindow returns a family's cached rows inside the window,
// ordered by event date. A zero start means no lower bound, which lets
// the cache controller see already-past rows when judging freshness.
func (r *Repository) ListEventWindow(ctx context.Context, familyID uint, start, end time.Time) ([]*models.DiscoveredEvent, error) {
	var events []*models.DiscoveredEvent
	query := r.db.WithContext(ctx).
		Where("family_id = ?", familyID).
		Where("event_date <= ?", end)

	if !start.IsZero() {
		query = query.Where("event_date >= ?", start)
	}

	if err := query.Order("event_date ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *Repository) ListEvents(ctx context.Context, filter storage.EventFilter) ([]*models.DiscoveredEvent, error) {
	var events []*models.DiscoveredEvent
	query := r.db.WithContext(ctx).Model(&models.DiscoveredEvent{})

	if filter.FamilyID != nil {
		query = query.Where("family_id = ?", *filter.FamilyID)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.From != nil {
		query = query.Where("event_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("event_date <= ?", *filter.To)
	}

	// Ordering
	orderCol := "event_date"
	if filter.OrderBy != "" {
		orderCol = filter.OrderBy
	}
	if filter.OrderDesc {
		query = query.Order(orderCol + " DESC")
	} else {
		query = query.Order(orderCol + " ASC")
	}

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteEventWindow clears a family's cached rows inside the window.
// Used on the stale path before a refresh and by `cache clear`.
func (r *Repository) DeleteEventWindow(ctx context.Context, familyID uint, start, end time.Time) error {
	query := r.db.WithContext(ctx).
		Where("family_id = ?", familyID).
		Where("event_date <= ?", end)

	if !start.IsZero() {
		query = query.Where("event_date >= ?", start)
	}

	return query.Delete(&models.DiscoveredEvent{}).Error
}

// DeletePastEvents drops rows across all families whose event date has
// passed. Invoked by the nightly cleanup, never by the request path.
func (r *Repository) DeletePastEvents(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("event_date < ?", before).
		Delete(&models.DiscoveredEvent{})
	return result.RowsAffected, result.Error
}

// Ensure Repository implements storage.Repository
var _ storage.Repository = (*Repository)(nil)

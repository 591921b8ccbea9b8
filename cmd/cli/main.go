package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldtrip-agent/internal/aggregator"
	"github.com/fieldtrip-agent/internal/cache"
	"github.com/fieldtrip-agent/internal/config"
	"github.com/fieldtrip-agent/internal/export"
	"github.com/fieldtrip-agent/internal/models"
	"github.com/fieldtrip-agent/internal/source"
	"github.com/fieldtrip-agent/internal/source/community"
	"github.com/fieldtrip-agent/internal/source/places"
	"github.com/fieldtrip-agent/internal/source/ticketed"
	"github.com/fieldtrip-agent/internal/storage"
	"github.com/fieldtrip-agent/internal/storage/sqlite"
	"github.com/fieldtrip-agent/pkg/logger"
	"github.com/fieldtrip-agent/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fieldtrip-agent",
		Short: "Local event discovery for weekly homeschool themes",
		Long: `Discovers ticketed events, nearby venues and community group
outings matching a family's weekly curriculum theme, and caches the
results per household.`,
		PersistentPreRunE: initializeApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(discoverCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	// Initialize storage
	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// buildController wires sources, aggregator and cache controller the
// same way the server does.
func buildController() *cache.Controller {
	limiter := ratelimit.NewDefaultLimiter()

	// Registration order is dedup precedence: ticketed, places, community.
	sourceManager := source.NewManager()
	if cfg.Sources.Ticketed.Enabled {
		sourceManager.Register(ticketed.New(cfg.Sources.Ticketed, limiter, log))
	}
	if cfg.Sources.Places.Enabled {
		sourceManager.Register(places.New(cfg.Sources.Places, limiter, log))
	}
	if cfg.Sources.Community.Enabled {
		sourceManager.Register(community.New(cfg.Sources.Community, limiter, log))
	}

	agg := aggregator.New(sourceManager, cfg.Discovery.MaxEvents, cfg.Discovery.WindowDays, log)
	collab := cache.NewStaticCollaborators(cfg.Families)

	return cache.NewController(repo, agg, collab, collab, collab, cache.Config{
		TTL:             cfg.Cache.ParsedTTL(),
		WindowDays:      cfg.Discovery.WindowDays,
		DefaultRadiusKm: cfg.Discovery.RadiusKm,
	}, log)
}

// ============ DISCOVER COMMANDS ============

func discoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Event discovery commands",
	}

	cmd.AddCommand(discoverRunCmd())
	return cmd
}

func discoverRunCmd() *cobra.Command {
	var familyID uint

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run event discovery for a family (serves cache when fresh)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			controller := buildController()
			events, err := controller.WeeklyEvents(ctx, familyID)
			if err != nil {
				return err
			}

			if len(events) == 0 {
				fmt.Println("No events found for the coming window.")
				return nil
			}

			fmt.Printf("Found %d events:\n\n", len(events))
			for _, ev := range events {
				printEvent(ev)
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&familyID, "family", 0, "family ID (required)")
	cmd.MarkFlagRequired("family")
	return cmd
}

// ============ EVENTS COMMANDS ============

func eventsCmd() *cobra.Command {
	var familyID uint
	var sourceType string
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List cached events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			filter := storage.DefaultEventFilter()
			filter.Limit = limit
			if familyID != 0 {
				filter.FamilyID = &familyID
			}
			if sourceType != "" {
				st := models.EventSource(sourceType)
				filter.Source = &st
			}

			events, err := repo.ListEvents(ctx, filter)
			if err != nil {
				return err
			}

			if len(events) == 0 {
				fmt.Println("No cached events.")
				return nil
			}
			for _, ev := range events {
				printEvent(ev)
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&familyID, "family", 0, "filter by family ID")
	cmd.Flags().StringVar(&sourceType, "source", "", "filter by source (ticketed, places, community-group)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

// ============ CACHE COMMANDS ============

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache inspection and maintenance",
	}

	cmd.AddCommand(cacheStatusCmd())
	cmd.AddCommand(cacheClearCmd())
	return cmd
}

func cacheStatusCmd() *cobra.Command {
	var familyID uint

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cache state for a family's event window",
		RunE: func(cmd *cobra.Command, args []string) error {
			controller := buildController()
			state, cached, err := controller.Status(context.Background(), familyID)
			if err != nil {
				return err
			}
			fmt.Printf("Family %d window: %s (%d cached rows)\n", familyID, state, cached)
			return nil
		},
	}

	cmd.Flags().UintVar(&familyID, "family", 0, "family ID (required)")
	cmd.MarkFlagRequired("family")
	return cmd
}

func cacheClearCmd() *cobra.Command {
	var familyID uint

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop a family's cached event window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			end := time.Now().AddDate(0, 0, cfg.Discovery.WindowDays)
			if err := repo.DeleteEventWindow(ctx, familyID, time.Time{}, end); err != nil {
				return err
			}
			fmt.Printf("Cleared cached events for family %d\n", familyID)
			return nil
		},
	}

	cmd.Flags().UintVar(&familyID, "family", 0, "family ID (required)")
	cmd.MarkFlagRequired("family")
	return cmd
}

// ============ EXPORT COMMANDS ============

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export cached events",
	}

	cmd.AddCommand(exportSheetsCmd())
	return cmd
}

func exportSheetsCmd() *cobra.Command {
	var familyID uint

	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Export a family's cached event window to Google Sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			exporter, err := export.NewSheetsExporter(cfg.Export, log)
			if err != nil {
				return err
			}
			if exporter == nil {
				return fmt.Errorf("export is disabled: set export.enabled and credentials")
			}

			family := cfg.FamilyByID(familyID)
			if family == nil {
				return fmt.Errorf("family %d not configured", familyID)
			}

			end := time.Now().AddDate(0, 0, cfg.Discovery.WindowDays)
			events, err := repo.ListEventWindow(ctx, familyID, time.Now(), end)
			if err != nil {
				return err
			}

			return exporter.SyncEvents(ctx, family.Name, events)
		},
	}

	cmd.Flags().UintVar(&familyID, "family", 0, "family ID (required)")
	cmd.MarkFlagRequired("family")
	return cmd
}

func printEvent(ev *models.DiscoveredEvent) {
	fmt.Printf("• %s [%s]\n", ev.Name, ev.Source)
	fmt.Printf("  %s", ev.EventDate.Format("Mon Jan 2 3:04 PM"))
	if ev.Location != "" {
		fmt.Printf(" @ %s", ev.Location)
	}
	fmt.Println()
	if ev.DriveMinutes != nil {
		fmt.Printf("  ~%d min drive", *ev.DriveMinutes)
	}
	if ev.CostDisplay != "" {
		fmt.Printf("  cost: %s", ev.CostDisplay)
	}
	fmt.Println()
	if ev.WhyItFits != "" {
		fmt.Printf("  %s\n", ev.WhyItFits)
	}
	fmt.Println()
}

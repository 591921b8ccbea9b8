package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/fieldtrip-agent/internal/aggregator"
	"github.com/fieldtrip-agent/internal/cache"
	"github.com/fieldtrip-agent/internal/config"
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
		Use:   "fieldtrip-server",
		Short: "HTTP API for household event discovery",
		Long: `Serves the per-family weekly events endpoint. Discovery is pull
triggered: a request for a family's window serves the cache when fresh
and refreshes it otherwise. A nightly cron drops past events.`,
		RunE: runServer,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
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

	log.Info().Msg("Starting fieldtrip event server")

	// Initialize storage
	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	controller := buildController()

	// Nightly housekeeping: drop rows whose event date has passed.
	// Never triggers a refresh; the request path stays the only trigger.
	c := cron.New()
	_, err = c.AddFunc(cfg.Server.CleanupCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := controller.CleanupPastEvents(ctx); err != nil {
			log.Error().Err(err).Msg("Past-event cleanup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup cron expression: %w", err)
	}
	c.Start()
	defer c.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newRouter(controller),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // a cache miss pays the full aggregation latency
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// buildController wires sources, aggregator and cache controller.
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

func newRouter(controller *cache.Controller) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/families/{familyID}/events", func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(req, "familyID"), 10, 32)
		if err != nil {
			http.Error(w, "invalid family id", http.StatusBadRequest)
			return
		}

		if cfg.FamilyByID(uint(id)) == nil {
			http.Error(w, "family not found", http.StatusNotFound)
			return
		}

		events, err := controller.WeeklyEvents(req.Context(), uint(id))
		if err != nil {
			log.Error().Err(err).Uint64("family_id", id).Msg("Event window request failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		// An empty list is a valid outcome, never an error page.
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"family_id": id,
			"count":     len(events),
			"events":    events,
		})
	})

	return r
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/fieldtrip-agent/internal/models"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Export    ExportConfig    `mapstructure:"export"`
	Families  []FamilyConfig  `mapstructure:"families"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	CleanupCron string `mapstructure:"cleanup_cron"` // past-event cleanup schedule
}

// SourcesConfig holds all event source configurations
type SourcesConfig struct {
	Ticketed  TicketedConfig  `mapstructure:"ticketed"`
	Places    PlacesConfig    `mapstructure:"places"`
	Community CommunityConfig `mapstructure:"community"`
}

// TicketedConfig holds ticketed-events search API settings
type TicketedConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIToken string `mapstructure:"api_token"`
	BaseURL  string `mapstructure:"base_url"`
}

// PlacesConfig holds places nearby-search API settings
type PlacesConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// CommunityConfig holds community-group scraper settings
type CommunityConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	UserAgent string `mapstructure:"user_agent"`
}

// DiscoveryConfig holds aggregation settings
type DiscoveryConfig struct {
	RadiusKm   float64 `mapstructure:"radius_km"`   // default search radius when the family has none
	WindowDays int     `mapstructure:"window_days"` // rolling event window length
	MaxEvents  int     `mapstructure:"max_events"`  // presentation cap per refresh
}

// CacheConfig holds freshness settings
type CacheConfig struct {
	TTL string `mapstructure:"ttl"` // staleness bound, e.g. "6h"
}

// ParsedTTL returns the cache TTL as a duration, falling back to 6h.
func (c CacheConfig) ParsedTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	TicketedRequestsPerHour    int `mapstructure:"ticketed_requests_per_hour"`
	PlacesRequestsPerSecond    int `mapstructure:"places_requests_per_second"`
	CommunityRequestsPerSecond int `mapstructure:"community_requests_per_second"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// ExportConfig holds Google Sheets planner export settings
type ExportConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SheetName          string `mapstructure:"sheet_name"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
}

// FamilyConfig is the config-backed stand-in for the family, curriculum
// and group storage collaborators. Real deployments resolve these from
// the product database; the CLI and server read them from config.
type FamilyConfig struct {
	ID        uint                       `mapstructure:"id"`
	Name      string                     `mapstructure:"name"`
	Latitude  float64                    `mapstructure:"latitude"`
	Longitude float64                    `mapstructure:"longitude"`
	RadiusKm  float64                    `mapstructure:"radius_km"`
	Theme     string                     `mapstructure:"theme"` // active weekly theme
	Groups    []models.GroupSubscription `mapstructure:"groups"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".fieldtrip-agent"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("FIELDTRIP")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("sources.ticketed.api_token", "FIELDTRIP_TICKETED_API_TOKEN")
	v.BindEnv("sources.places.api_key", "FIELDTRIP_PLACES_API_KEY")
	v.BindEnv("database.driver", "FIELDTRIP_DATABASE_DRIVER")
	v.BindEnv("database.dsn", "FIELDTRIP_DATABASE_DSN")
	v.BindEnv("export.enabled", "FIELDTRIP_EXPORT_ENABLED")
	v.BindEnv("export.spreadsheet_id", "FIELDTRIP_EXPORT_SPREADSHEET_ID")
	v.BindEnv("export.credentials_file", "FIELDTRIP_EXPORT_CREDENTIALS_FILE")
	v.BindEnv("export.service_account_json", "FIELDTRIP_EXPORT_SERVICE_ACCOUNT_JSON")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/fieldtrip.db")

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cleanup_cron", "30 3 * * *") // 3:30am daily - drop past events

	// Source defaults. Credentials stay empty on purpose: a missing
	// token soft-skips the adapter rather than failing startup.
	v.SetDefault("sources.ticketed.enabled", true)
	v.SetDefault("sources.ticketed.base_url", "https://www.eventbriteapi.com/v3")
	v.SetDefault("sources.places.enabled", true)
	v.SetDefault("sources.places.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("sources.community.enabled", true)
	v.SetDefault("sources.community.user_agent", "Mozilla/5.0 (compatible; FieldtripAgent/1.0)")

	// Discovery defaults
	v.SetDefault("discovery.radius_km", 40.0)
	v.SetDefault("discovery.window_days", 14)
	v.SetDefault("discovery.max_events", 12)

	// Cache defaults
	v.SetDefault("cache.ttl", "6h")

	// Rate limit defaults
	v.SetDefault("rate_limit.ticketed_requests_per_hour", 1000)
	v.SetDefault("rate_limit.places_requests_per_second", 10)
	v.SetDefault("rate_limit.community_requests_per_second", 1)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")

	// Export defaults
	v.SetDefault("export.enabled", false)
	v.SetDefault("export.sheet_name", "Events")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Discovery.WindowDays <= 0 {
		return fmt.Errorf("discovery.window_days must be positive")
	}
	if c.Discovery.MaxEvents <= 0 {
		return fmt.Errorf("discovery.max_events must be positive")
	}
	return nil
}

// FamilyByID returns the configured family record, if any.
func (c *Config) FamilyByID(id uint) *FamilyConfig {
	for i := range c.Families {
		if c.Families[i].ID == id {
			return &c.Families[i]
		}
	}
	return nil
}

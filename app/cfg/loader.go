package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBDriver string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"postgres" description:"Database driver"`
	DBDSN    string `long:"db-dsn" env:"DB_DSN" default:"./data/lawnmap.db" description:"Database DSN (file path for sqlite, connection URL for postgres)"`

	// Catalog configuration
	CatalogFile      string `long:"catalog-file" env:"CATALOG_FILE" default:"./data/lawnmover.geojson" description:"Local GeoJSON catalog used when the database is empty"`
	RemoteCatalogURL string `long:"remote-catalog-url" env:"REMOTE_CATALOG_URL" default:"https://raw.githubusercontent.com/perwinroth/lawnmover/main/data/lawnmover.geojson" description:"Remote GeoJSON catalog used as last fallback and as seed source"`
	CategoriesFile   string `long:"categories-file" env:"CATEGORIES_FILE" description:"YAML category table (embedded default when empty)"`
	EventsFile       string `long:"events-file" env:"EVENTS_FILE" default:"./data/events.json" description:"Events JSON served when the database has no events"`
	PlacesFile       string `long:"places-file" env:"PLACES_FILE" default:"./data/places.json" description:"Places JSON served by the data endpoint"`
	WebDir           string `long:"web-dir" env:"WEB_DIR" default:"./web" description:"Directory with the static front-end"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"3000" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://lawnmap.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"4" description:"Number of background workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`
	SeedSecret        string `long:"seed-secret" env:"SEED_SECRET" description:"Secret required by the seed endpoint (seeding disabled when empty)"`

	// Background jobs
	CatalogRefreshInterval int      `long:"catalog-refresh-interval" env:"CATALOG_REFRESH_INTERVAL" default:"3600" description:"Catalog reload interval in seconds"`
	LinkCheckMax           int      `long:"linkcheck-max" env:"LINKCHECK_MAX" default:"200" description:"Maximum links checked per run"`
	LinkCheckConcurrency   int      `long:"linkcheck-concurrency" env:"LINKCHECK_CONCURRENCY" default:"10" description:"Concurrent link checks"`
	LinkCheckInterval      int      `long:"linkcheck-interval" env:"LINKCHECK_INTERVAL" default:"86400" description:"Seconds between link checks of the same place"`
	EnrichMax              int      `long:"enrich-max" env:"ENRICH_MAX" default:"200" description:"Maximum places enriched per run"`
	EventFeeds             []string `long:"event-feed" env:"EVENT_FEED_URLS" env-delim:"," description:"RSS/Atom feed URL with events (repeatable)"`
	SessionIdleTimeout     int      `long:"session-idle-timeout" env:"SESSION_IDLE_TIMEOUT" default:"1800" description:"Seconds before an idle UI session is dropped"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Lawnmap/1.0 (+https://github.com/lysyi3m/lawnmap)" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"Europe/Stockholm" description:"Timezone for opening hours and timestamps"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBDriver:               raw.DBDriver,
		DBDSN:                  raw.DBDSN,
		CatalogFile:            raw.CatalogFile,
		RemoteCatalogURL:       raw.RemoteCatalogURL,
		CategoriesFile:         raw.CategoriesFile,
		EventsFile:             raw.EventsFile,
		PlacesFile:             raw.PlacesFile,
		WebDir:                 raw.WebDir,
		Port:                   raw.Port,
		BaseUrl:                raw.BaseUrl,
		WorkerCount:            raw.WorkerCount,
		SchedulerInterval:      raw.SchedulerInterval,
		APIAccessKey:           raw.APIAccessKey,
		SeedSecret:             raw.SeedSecret,
		CatalogRefreshInterval: raw.CatalogRefreshInterval,
		LinkCheckMax:           raw.LinkCheckMax,
		LinkCheckConcurrency:   raw.LinkCheckConcurrency,
		LinkCheckInterval:      raw.LinkCheckInterval,
		EnrichMax:              raw.EnrichMax,
		EventFeeds:             raw.EventFeeds,
		SessionIdleTimeout:     raw.SessionIdleTimeout,
		UserAgent:              raw.UserAgent,
		Timezone:               raw.Timezone,
		Debug:                  raw.Debug,
		Version:                GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}

package cfg

import "time"

type Cfg struct {
	// Database configuration
	DBDriver string
	DBDSN    string

	// Catalog configuration
	CatalogFile      string
	RemoteCatalogURL string
	CategoriesFile   string
	EventsFile       string
	PlacesFile       string
	WebDir           string

	// Application configuration
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	SeedSecret        string

	// Background jobs
	CatalogRefreshInterval int
	LinkCheckMax           int
	LinkCheckConcurrency   int
	LinkCheckInterval      int
	EnrichMax              int
	EventFeeds             []string
	SessionIdleTimeout     int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) GetSessionIdleTimeout() time.Duration {
	if c.SessionIdleTimeout <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.SessionIdleTimeout) * time.Second
}

func (c *Cfg) GetCatalogRefreshInterval() time.Duration {
	if c.CatalogRefreshInterval <= 0 {
		return time.Hour
	}
	return time.Duration(c.CatalogRefreshInterval) * time.Second
}

func (c *Cfg) GetLinkCheckInterval() time.Duration {
	if c.LinkCheckInterval <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.LinkCheckInterval) * time.Second
}

// Package config loads the service configuration from environment variables
// with defaults, and validates it on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Airtable    AirtableConfig
	OpenLibrary OpenLibraryConfig
	Database    DatabaseConfig
	Catalog     CatalogConfig
	Security    SecurityConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// RateLimit is requests per minute per client IP (default: 100, 0 disables)
	RateLimit int `env:"SERVER_RATE_LIMIT" default:"100"`
}

// AirtableConfig holds the remote base settings.
type AirtableConfig struct {
	// BaseID identifies the Airtable base, "app..." (required)
	BaseID string `env:"AIRTABLE_BASE_ID" required:"true"`

	// APIKey is the personal access token (required)
	APIKey string `env:"AIRTABLE_API_KEY" envAlt:"AIRTABLE_TOKEN" required:"true"`

	// BaseURL overrides the API endpoint, mostly for tests
	BaseURL string `env:"AIRTABLE_BASE_URL" default:"https://api.airtable.com"`

	Timeout  time.Duration `env:"AIRTABLE_TIMEOUT" default:"30s"`
	PageSize int           `env:"AIRTABLE_PAGE_SIZE" default:"100"`
}

// OpenLibraryConfig holds the book lookup settings.
type OpenLibraryConfig struct {
	BaseURL   string        `env:"OPENLIBRARY_BASE_URL" default:"https://openlibrary.org"`
	CoversURL string        `env:"OPENLIBRARY_COVERS_URL" default:"https://covers.openlibrary.org"`
	Timeout   time.Duration `env:"OPENLIBRARY_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds the snapshot archive settings.
// Leaving URL empty disables the archive.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a snapshot database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// CatalogConfig controls which records are served and how.
type CatalogConfig struct {
	// Schema is the registered schema to serve (default: bookshelf)
	Schema string `env:"CATALOG_SCHEMA" default:"bookshelf"`

	// DefaultLocale is the last locale fallback (default: en)
	DefaultLocale string `env:"CATALOG_DEFAULT_LOCALE" default:"en"`

	// Locales lists the locales accepted in URLs
	Locales []string `env:"CATALOG_LOCALES" default:"en,fr"`

	// Workers caps parallel sanitizing per request (default: 0 = GOMAXPROCS)
	Workers int `env:"CATALOG_WORKERS" default:"0"`

	// RefreshSchedule is a cron expression for refetching the dataset
	// (default: @every 5m, "off" disables)
	RefreshSchedule string `env:"CATALOG_REFRESH_SCHEDULE" default:"@every 5m"`

	// KeepSnapshots is how many archived datasets are kept (default: 5)
	KeepSnapshots int `env:"CATALOG_KEEP_SNAPSHOTS" default:"5"`

	// MaxImports caps concurrent ISBN imports (default: 2)
	MaxImports int `env:"CATALOG_MAX_IMPORTS" default:"2"`

	// CustomerID is the Customer record books added by ISBN belong to
	CustomerID string `env:"CATALOG_CUSTOMER_ID" envAlt:"NEXT_PUBLIC_CUSTOMER_AIRTABLE_ID"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey protects mutating routes with X-API-Key (default: true)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"true"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// RefreshEnabled reports whether scheduled refreshes are on.
func (c *CatalogConfig) RefreshEnabled() bool {
	return c.RefreshSchedule != "" && c.RefreshSchedule != "off"
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

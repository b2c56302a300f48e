package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig    `envconfig:"SERVER"`
	Database  DatabaseConfig  `envconfig:"DB"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	Mail      MailConfig      `envconfig:"MAIL"`
	Recurring RecurringConfig `envconfig:"RECURRING"`
	PDF       PDFConfig       `envconfig:"PDF"`
	Archive   ArchiveConfig   `envconfig:"ARCHIVE"`
	Links     LinksConfig     `envconfig:"LINKS"`
	Log       LogConfig       `envconfig:"LOG"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
	Timeouts  TimeoutsConfig  `envconfig:"TIMEOUT"`
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8082"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
	Mode         string        `envconfig:"MODE" default:"development"` // "development", "production"
}

type DatabaseConfig struct {
	Driver string `envconfig:"DRIVER" default:"sqlite"` // sqlite, postgres, mysql
	DSN    string `envconfig:"DSN" default:"./data/billflow.db"`
	// Connection pool settings
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"CONN_MAX_IDLE_TIME" default:"1m"`
	QueryTimeout    time.Duration `envconfig:"QUERY_TIMEOUT" default:"10s"`
	LogLevel        string        `envconfig:"GORM_LOG_LEVEL" default:"warn"` // silent, error, warn, info
}

// RedisConfig configures the distributed pass lock. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `envconfig:"ADDR"`
	Password string        `envconfig:"PASSWORD"`
	DB       int           `envconfig:"DB" default:"0"`
	LockKey  string        `envconfig:"LOCK_KEY" default:"billflow:recurring:lock"`
	LockTTL  time.Duration `envconfig:"LOCK_TTL" default:"2h"`
}

type MailConfig struct {
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     string `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	FromEmail    string `envconfig:"FROM_EMAIL" default:"noreply@billflow.app"`
	FromName     string `envconfig:"FROM_NAME" default:"Billflow"`
}

type RecurringConfig struct {
	Enabled          bool   `envconfig:"ENABLED" default:"true"`
	Schedule         string `envconfig:"SCHEDULE" default:"0 2 * * *"` // daily at 02:00
	TimeZone         string `envconfig:"TIMEZONE" default:"UTC"`
	MaxNumberRetries int    `envconfig:"MAX_NUMBER_RETRIES" default:"5"`
}

type PDFConfig struct {
	Engine    string        `envconfig:"ENGINE" default:"chromedp"` // chromedp, html
	RemoteURL string        `envconfig:"REMOTE_URL"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"30s"`
	NoSandbox bool          `envconfig:"NO_SANDBOX" default:"false"`
}

// ArchiveConfig configures S3 storage for rendered invoices. An empty Bucket disables it.
type ArchiveConfig struct {
	Bucket          string `envconfig:"BUCKET"`
	Region          string `envconfig:"REGION" default:"us-east-1"`
	Endpoint        string `envconfig:"ENDPOINT"`
	Prefix          string `envconfig:"PREFIX" default:"invoices"`
	AccessKeyID     string `envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"SECRET_ACCESS_KEY"`
}

// defaultLinksSecret signs view links in development only
const defaultLinksSecret = "change-me-in-production"

type LinksConfig struct {
	BaseURL  string        `envconfig:"BASE_URL" default:"http://localhost:8082"`
	Secret   string        `envconfig:"SECRET" default:"change-me-in-production"`
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"2160h"` // 90 days
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"console"` // console, json
}

type RateLimitConfig struct {
	Enabled         bool          `envconfig:"ENABLED" default:"true"`
	RequestsPer     int           `envconfig:"REQUESTS_PER" default:"60"`
	Window          time.Duration `envconfig:"WINDOW" default:"1m"`
	Burst           int           `envconfig:"BURST" default:"10"`
	CleanupInterval time.Duration `envconfig:"CLEANUP" default:"5m"`
}

type TimeoutsConfig struct {
	ExternalAPI time.Duration `envconfig:"EXTERNAL_API" default:"30s"`
	Shutdown    time.Duration `envconfig:"SHUTDOWN" default:"30s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot check on its own.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.PDF.Engine {
	case "html", "chromedp":
	default:
		return fmt.Errorf("unsupported pdf engine %q", c.PDF.Engine)
	}
	if _, err := c.Recurring.Location(); err != nil {
		return err
	}
	if c.Recurring.MaxNumberRetries < 1 {
		return fmt.Errorf("recurring max number retries must be at least 1")
	}
	if c.IsProduction() && (c.Links.Secret == "" || c.Links.Secret == defaultLinksSecret) {
		return fmt.Errorf("LINKS_SECRET must be set to a non-default value in production")
	}
	return nil
}

// Location resolves the time zone the schedule and calendar dates are evaluated in.
func (c RecurringConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid recurring timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "production"
}

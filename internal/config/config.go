// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CRAWLER"

// Archive backends.
const (
	ArchiveLocal = "local"
	ArchiveGCS   = "gcs"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Defaults for the Levi's store locator, the site the link selectors and field rules were written for.
const (
	DefaultStartURL = "https://locations.levi.com/en-us/"
	DefaultProvider = "Levi Strauss"
	DefaultCategory = "Apparel And Accessory Stores"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Site    SiteConfig    `mapstructure:"site"`
	Archive ArchiveConfig `mapstructure:"archive"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlConfig governs the walk itself.
type CrawlConfig struct {
	StartURL              string `mapstructure:"start_url"`
	StartID               int    `mapstructure:"start_id"`
	EndID                 int    `mapstructure:"end_id"`
	Concurrency           int    `mapstructure:"concurrency"`
	UserAgent             string `mapstructure:"user_agent"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	DelayMs               int    `mapstructure:"delay_ms"`
	RespectRobots         bool   `mapstructure:"respect_robots"`
}

// SiteConfig holds the per-site constants and link selectors.
type SiteConfig struct {
	Provider       string `mapstructure:"provider"`
	Category       string `mapstructure:"category"`
	Country        string `mapstructure:"country"`
	Status         string `mapstructure:"status"`
	RegionSelector string `mapstructure:"region_selector"`
	CitySelector   string `mapstructure:"city_selector"`
}

// ArchiveConfig selects where raw pages are saved.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for per-record notifications. An empty topic disables them.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig sets the Prometheus listener. An empty address disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment, reading ./.env when present.
func Load(path string) (Config, error) {
	return LoadWithDotEnv(path, ".env")
}

// LoadWithDotEnv is Load with an explicit dotenv file. Precedence, highest first:
// process environment, dotenv file, config file, defaults.
func LoadWithDotEnv(path, dotenv string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	if dotenv != "" {
		if err := applyDotEnv(v, dotenv); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyDotEnv overrides known keys with CRAWLER_* entries from a dotenv file without touching
// the process environment. A missing file is not an error.
func applyDotEnv(v *viper.Viper, file string) error {
	vals, err := godotenv.Read(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", file, err)
	}
	for _, key := range v.AllKeys() {
		name := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if val, ok := vals[name]; ok {
			v.Set(key, val)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.start_url", DefaultStartURL)
	v.SetDefault("crawl.start_id", 0)
	v.SetDefault("crawl.end_id", 0)
	v.SetDefault("crawl.concurrency", 6)
	v.SetDefault("crawl.user_agent", "Mozilla/5.0 (compatible; storecrawler/1.0)")
	v.SetDefault("crawl.request_timeout_seconds", 30)
	v.SetDefault("crawl.delay_ms", 0)
	v.SetDefault("crawl.respect_robots", false)
	v.SetDefault("site.provider", DefaultProvider)
	v.SetDefault("site.category", DefaultCategory)
	v.SetDefault("site.country", "USA")
	v.SetDefault("site.status", "Open")
	v.SetDefault("site.region_selector", "a.region-list")
	v.SetDefault("site.city_selector", "a.city-list")
	v.SetDefault("archive.backend", ArchiveLocal)
	v.SetDefault("archive.base_dir", "pagesave")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("db.driver", DriverPostgres)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 6)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawl.StartURL) == "" {
		return fmt.Errorf("crawl.start_url is required")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.Crawl.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("crawl.request_timeout_seconds must be > 0")
	}
	if c.Crawl.DelayMs < 0 {
		return fmt.Errorf("crawl.delay_ms must be >= 0")
	}
	if c.Site.RegionSelector == "" || c.Site.CitySelector == "" {
		return fmt.Errorf("site.region_selector and site.city_selector must be set")
	}
	switch c.Archive.Backend {
	case ArchiveLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set for the local backend")
		}
	case ArchiveGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend %q is not one of %s, %s", c.Archive.Backend, ArchiveLocal, ArchiveGCS)
	}
	switch c.DB.Driver {
	case DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("db.driver %q is not one of %s, %s", c.DB.Driver, DriverPostgres, DriverMySQL)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.DB.MaxConns <= 0 {
		return fmt.Errorf("db.max_conns must be > 0")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// RequestTimeout converts the per-request timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawl.RequestTimeoutSeconds) * time.Second
}

// Delay converts the politeness delay into a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Crawl.DelayMs) * time.Millisecond
}

// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// validSports is the whitelist of sports the target site exposes.
var validSports = map[string]bool{
	"football":   true,
	"tennis":     true,
	"basketball": true,
	"hockey":     true,
	"volleyball": true,
	"baseball":   true,
	"handball":   true,
}

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Weather  WeatherConfig  `mapstructure:"weather"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScrapeConfig governs run scope and pacing.
type ScrapeConfig struct {
	Sports              []string `mapstructure:"sports"`
	Competitions        []string `mapstructure:"competitions"`
	Countries           []string `mapstructure:"countries"`
	DateFrom            string   `mapstructure:"date_from"`
	DateTo              string   `mapstructure:"date_to"`
	MaxMatchesPerSport  int      `mapstructure:"max_matches_per_sport"`
	ParallelRequests    int      `mapstructure:"parallel_requests"`
	RequestDelaySeconds float64  `mapstructure:"request_delay_seconds"`
	MaxRetries          int      `mapstructure:"max_retries"`
	ErrorRateThreshold  float64  `mapstructure:"error_rate_threshold"`
	ListingURLTemplate  string   `mapstructure:"listing_url_template"`
	Source              string   `mapstructure:"source"`

	IncludePreMatch  bool `mapstructure:"include_pre_match"`
	IncludePostMatch bool `mapstructure:"include_post_match"`
	IncludeOdds      bool `mapstructure:"include_odds"`
	IncludeLineups   bool `mapstructure:"include_lineups"`
	IncludeEvents    bool `mapstructure:"include_events"`
	IncludeStats     bool `mapstructure:"include_stats"`
	IncludeWeather   bool `mapstructure:"include_weather"`

	RespectRobots bool   `mapstructure:"respect_robots"`
	DebugMode     bool   `mapstructure:"debug_mode"`
	UserAgent     string `mapstructure:"user_agent"`
}

// HTTPConfig configures plain HTTP fetch behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	BodyThreshold int  `mapstructure:"body_threshold"`
}

// StorageConfig sets the output dataset and the snapshot archive.
type StorageConfig struct {
	OutputPath  string `mapstructure:"output_path"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for record notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// WeatherConfig points at the external weather collaborator.
type WeatherConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SPORTSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scrape.sports", []string{"football"})
	v.SetDefault("scrape.max_matches_per_sport", 100)
	v.SetDefault("scrape.parallel_requests", 3)
	v.SetDefault("scrape.request_delay_seconds", 2.0)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.error_rate_threshold", 0.2)
	v.SetDefault("scrape.include_pre_match", true)
	v.SetDefault("scrape.include_post_match", false)
	v.SetDefault("scrape.include_odds", true)
	v.SetDefault("scrape.include_lineups", true)
	v.SetDefault("scrape.include_events", true)
	v.SetDefault("scrape.include_stats", true)
	v.SetDefault("scrape.include_weather", false)
	v.SetDefault("scrape.respect_robots", false)
	v.SetDefault("scrape.user_agent", "sportscrape/0.1")
	v.SetDefault("scrape.source", "sportscrape")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.body_threshold", 2048)
	v.SetDefault("storage.output_path", "out/records.jsonl")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Scrape.Sports) == 0 {
		return fmt.Errorf("scrape.sports must name at least one sport")
	}
	for _, sport := range c.Scrape.Sports {
		if !validSports[strings.ToLower(sport)] {
			return fmt.Errorf("scrape.sports: unknown sport %q", sport)
		}
	}
	if !c.Scrape.IncludePreMatch && !c.Scrape.IncludePostMatch {
		return fmt.Errorf("at least one of scrape.include_pre_match and scrape.include_post_match must be enabled")
	}
	if c.Scrape.MaxMatchesPerSport < 1 || c.Scrape.MaxMatchesPerSport > 1000 {
		return fmt.Errorf("scrape.max_matches_per_sport must be between 1 and 1000")
	}
	if c.Scrape.ParallelRequests <= 0 {
		return fmt.Errorf("scrape.parallel_requests must be > 0")
	}
	if c.Scrape.RequestDelaySeconds < 0.5 || c.Scrape.RequestDelaySeconds > 10 {
		return fmt.Errorf("scrape.request_delay_seconds must be between 0.5 and 10")
	}
	if c.Scrape.ErrorRateThreshold <= 0 || c.Scrape.ErrorRateThreshold > 1 {
		return fmt.Errorf("scrape.error_rate_threshold must be in (0, 1]")
	}
	if c.Scrape.ListingURLTemplate == "" {
		return fmt.Errorf("scrape.listing_url_template is required")
	}
	from, to, err := c.DateWindow()
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() {
		if to.Before(from) {
			return fmt.Errorf("scrape.date_to must not precede scrape.date_from")
		}
		if to.Sub(from) > 365*24*time.Hour {
			return fmt.Errorf("scrape date window must not exceed 365 days")
		}
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Scrape.IncludeWeather && c.Weather.BaseURL == "" {
		return fmt.Errorf("weather.base_url must be set when scrape.include_weather is enabled")
	}
	return nil
}

// DateWindow parses the configured date range. Dates are ISO days; the upper
// bound is inclusive through end of day.
func (c Config) DateWindow() (from, to time.Time, err error) {
	if c.Scrape.DateFrom != "" {
		from, err = time.Parse("2006-01-02", c.Scrape.DateFrom)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("scrape.date_from: %w", err)
		}
	}
	if c.Scrape.DateTo != "" {
		to, err = time.Parse("2006-01-02", c.Scrape.DateTo)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("scrape.date_to: %w", err)
		}
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}

// RequestDelay converts the configured delay into the detail-class token
// interval.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Scrape.RequestDelaySeconds * float64(time.Second))
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Package config loads and validates monitor configuration via Viper.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server         ServerConfig            `mapstructure:"server"`
	Logging        LoggingConfig           `mapstructure:"logging"`
	Database       DatabaseConfig          `mapstructure:"database"`
	Scraping       ScrapingConfig          `mapstructure:"scraping"`
	Sources        map[string]SourceConfig `mapstructure:"sources"`
	Monitoring     MonitoringConfig        `mapstructure:"monitoring"`
	Keywords       map[string][]string     `mapstructure:"keywords"`
	Alerts         AlertsConfig            `mapstructure:"alerts"`
	Classification ClassificationConfig    `mapstructure:"classification"`
	Notifications  NotificationsConfig     `mapstructure:"notifications"`
	Publisher      PublisherConfig         `mapstructure:"publisher"`
	Archive        ArchiveConfig           `mapstructure:"archive"`
}

// ServerConfig controls the read-side HTTP server.
type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Auth AuthConfig `mapstructure:"auth"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DatabaseConfig selects and configures the document store backend.
type DatabaseConfig struct {
	Provider string `mapstructure:"provider"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ScrapingConfig governs fetch behavior.
type ScrapingConfig struct {
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	RetryAttempts     int    `mapstructure:"retry_attempts"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds"`
	UserAgent         string `mapstructure:"user_agent"`
	IgnoreRobots      bool   `mapstructure:"ignore_robots"`
}

// SourceConfig describes one monitored page.
type SourceConfig struct {
	URL     string `mapstructure:"url"`
	Kind    string `mapstructure:"kind"`
	Chamber string `mapstructure:"chamber"`
}

// MonitoringConfig holds per-source-kind check intervals in minutes.
type MonitoringConfig struct {
	Frequencies      map[string]int `mapstructure:"frequencies"`
	FullCycleMinutes int            `mapstructure:"full_cycle_minutes"`
}

// AlertsConfig tunes tier assignment.
type AlertsConfig struct {
	CriticalKeywords    []string `mapstructure:"critical_keywords"`
	HighPrioritySources []string `mapstructure:"high_priority_sources"`
}

// ClassificationConfig controls body-text backfill.
type ClassificationConfig struct {
	FetchHTMLBody bool `mapstructure:"fetch_html_body"`
}

// NotificationsConfig selects the digest transport.
type NotificationsConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	Transport string         `mapstructure:"transport"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds bot credentials for the telegram transport.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// PublisherConfig configures the alert event stream.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ArchiveConfig configures the raw page snapshot store.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	Dir      string `mapstructure:"dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PARLMON")
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
	v.SetDefault("logging.development", true)

	v.SetDefault("database.provider", "sqlite")
	v.SetDefault("database.path", "parliament.db")

	v.SetDefault("scraping.timeout_seconds", 30)
	v.SetDefault("scraping.retry_attempts", 3)
	v.SetDefault("scraping.retry_delay_seconds", 5)
	v.SetDefault("scraping.user_agent", "parliament-monitor-bot/1.0")
	v.SetDefault("scraping.ignore_robots", false)

	v.SetDefault("sources.house_tabled.url", "https://www.parliament.tas.gov.au/house-of-assembly/tabled-papers-2025")
	v.SetDefault("sources.house_tabled.chamber", "House of Assembly")
	v.SetDefault("sources.lc_tabled.url", "https://www.parliament.tas.gov.au/legislative-council/tpp")
	v.SetDefault("sources.lc_tabled.chamber", "Legislative Council")
	v.SetDefault("sources.bills.url", "https://www.parliament.tas.gov.au/bills/bills-by-year")
	v.SetDefault("sources.committees_ha.url", "https://www.parliament.tas.gov.au/house-of-assembly/committees")
	v.SetDefault("sources.committees_lc.url", "https://www.parliament.tas.gov.au/legislative-council/committees")
	v.SetDefault("sources.committees_joint.url", "https://www.parliament.tas.gov.au/parliamentary-committees/current-committees")

	v.SetDefault("monitoring.frequencies", map[string]int{
		"tabled_papers": 15,
		"bills":         30,
		"committees":    30,
	})
	v.SetDefault("monitoring.full_cycle_minutes", 60)

	v.SetDefault("keywords", map[string][]string{
		"gaming_gambling": {"gaming", "casino", "wagering", "betting", "gambling", "lottery", "pokies"},
		"infrastructure":  {"infrastructure", "construction", "roads", "bridges", "public works", "development"},
		"environment":     {"environment", "climate", "emissions", "pollution", "conservation", "renewable"},
		"health":          {"health", "hospital", "medical", "healthcare", "mental health", "aged care"},
		"business":        {"business", "economy", "tax", "budget", "fiscal", "investment", "employment"},
		"planning":        {"planning", "zoning", "land use", "heritage", "building", "subdivision"},
	})
	v.SetDefault("alerts.critical_keywords", []string{
		"urgent", "immediate", "emergency", "crisis", "mandatory", "compliance", "penalty", "enforcement",
	})
	v.SetDefault("alerts.high_priority_sources", []string{
		"Premier", "Treasurer", "Attorney-General", "Minister for Health", "Minister for Infrastructure",
	})

	v.SetDefault("classification.fetch_html_body", false)

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.transport", "telegram")

	v.SetDefault("publisher.provider", "memory")
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "pages")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraping.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraping.timeout_seconds must be > 0")
	}
	if c.Scraping.RetryAttempts < 0 {
		return fmt.Errorf("scraping.retry_attempts must be >= 0")
	}
	switch c.Database.Provider {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path must be set for the sqlite provider")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set for the postgres provider")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database provider %q", c.Database.Provider)
	}
	if c.Notifications.Enabled && c.Notifications.Transport == "telegram" {
		if c.Notifications.Telegram.Token == "" || c.Notifications.Telegram.ChatID == 0 {
			return fmt.Errorf("notifications.telegram.token and chat_id must be set when notifications are enabled")
		}
	}
	if c.Publisher.Provider == "pubsub" && (c.Publisher.ProjectID == "" || c.Publisher.Topic == "") {
		return fmt.Errorf("publisher.project_id and topic must be set for the pubsub provider")
	}
	switch c.Archive.Provider {
	case "local":
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir must be set for the local provider")
		}
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set for the gcs provider")
		}
	case "noop", "":
	default:
		return fmt.Errorf("unknown archive provider %q", c.Archive.Provider)
	}
	if c.Server.Auth.Enabled && c.Server.Auth.APIKey == "" {
		return fmt.Errorf("server.auth.api_key must be set when auth is enabled")
	}
	return nil
}

// Timeout converts the scraping timeout into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Scraping.TimeoutSeconds) * time.Second
}

// RetryDelay converts the retry delay into a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Scraping.RetryDelaySeconds) * time.Second
}

// Frequency returns the check interval for a source kind name, or zero when
// no interval is configured.
func (c Config) Frequency(name string) time.Duration {
	minutes, ok := c.Monitoring.Frequencies[name]
	if !ok || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}

// FullCycleInterval returns the full-cycle interval.
func (c Config) FullCycleInterval() time.Duration {
	minutes := c.Monitoring.FullCycleMinutes
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// SourceRegistry resolves configured sources into an ordered registry.
// Sources whose kind is neither declared nor inferable are returned in
// skipped for the caller to log.
func (c Config) SourceRegistry() (sources []monitor.Source, skipped []string) {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := c.Sources[name]
		if sc.URL == "" {
			skipped = append(skipped, name)
			continue
		}
		kind := monitor.SourceKind(sc.Kind)
		if sc.Kind == "" {
			inferred, ok := monitor.InferKind(name)
			if !ok {
				skipped = append(skipped, name)
				continue
			}
			kind = inferred
		}
		switch kind {
		case monitor.KindTabledPapers, monitor.KindBills, monitor.KindCommittees:
		default:
			skipped = append(skipped, name)
			continue
		}
		sources = append(sources, monitor.Source{
			Name:    name,
			URL:     sc.URL,
			Kind:    kind,
			Chamber: sc.Chamber,
		})
	}
	return sources, skipped
}

package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "ADU_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	openAIKeyEnv     = "OPENAI_API_KEY"
	openAIModelEnv   = "OPENAI_MODEL"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
	testModeEnv      = "ADU_TEST_MODE"

	defaultMaxNewPerRun = 10
	defaultMaxAgeDays   = 2
	defaultTimeout      = 20 * time.Second
)

// Strategy names accepted in source configuration.
const (
	StrategyFeed    = "feed"
	StrategyPattern = "pattern"
	StrategyVision  = "vision"
)

// Config holds all settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	OpenAI        OpenAIConfig       `yaml:"openai"`
	Notifications NotificationConfig `yaml:"notifications"`
	Enrichment    EnrichmentConfig   `yaml:"enrichment"`
	Logging       LoggingConfig      `yaml:"logging"`
	Tracker       TrackerConfig      `yaml:"tracker"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// DatabaseConfig describes the tracker's Postgres connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines how often the discovery pipeline runs. A zero
// interval means a single run.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// OpenAIConfig defines how to contact the chat/vision model API.
type OpenAIConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// NotificationConfig encapsulates operator-facing channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires the data required to send operator messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// EnrichmentConfig points at the downstream pipeline that scrapes,
// summarizes, and publishes surviving candidates.
type EnrichmentConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// TrackerConfig carries tracker behavior switches. TestMode makes FilterNew
// return its full input, bypassing persisted state, so extraction logic can
// be validated independently of accumulated history. Never enable this in
// production: every run re-publishes everything.
type TrackerConfig struct {
	TestMode bool `yaml:"testMode"`
}

// SourceConfig describes one monitored publisher site: its identity for URL
// resolution plus the extraction strategy settings.
type SourceConfig struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Domains []string `yaml:"domains"`

	// Strategy is one of feed, pattern, vision. Empty means the source is
	// registered for URL resolution only and is never scraped.
	Strategy   string `yaml:"strategy"`
	FeedURL    string `yaml:"feedUrl"`
	ListingURL string `yaml:"listingUrl"`

	// AllowPatterns/DenyPatterns are regexp sources applied to candidate
	// hrefs by the pattern strategy.
	AllowPatterns []string `yaml:"allowPatterns"`
	DenyPatterns  []string `yaml:"denyPatterns"`

	MaxAgeDays    int           `yaml:"maxAgeDays"`
	MaxNewPerRun  int           `yaml:"maxNewPerRun"`
	ScrapeTimeout time.Duration `yaml:"scrapeTimeout"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides on top of the built-in defaults.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalizeSources()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(testModeEnv); v == "1" || v == "true" {
		c.Tracker.TestMode = true
	}
}

// normalizeSources fills per-source defaults so the rest of the code never
// has to special-case zero values.
func (c *Config) normalizeSources() {
	for i := range c.Sources {
		src := &c.Sources[i]
		if src.MaxAgeDays == 0 {
			src.MaxAgeDays = defaultMaxAgeDays
		}
		if src.MaxNewPerRun == 0 {
			src.MaxNewPerRun = defaultMaxNewPerRun
		}
		if src.ScrapeTimeout == 0 {
			src.ScrapeTimeout = defaultTimeout
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.Interval != 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}

	if override.OpenAI.Endpoint != "" {
		base.OpenAI.Endpoint = override.OpenAI.Endpoint
	}
	if override.OpenAI.Model != "" {
		base.OpenAI.Model = override.OpenAI.Model
	}
	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Enrichment.Endpoint != "" {
		base.Enrichment.Endpoint = override.Enrichment.Endpoint
	}
	if override.Enrichment.APIKey != "" {
		base.Enrichment.APIKey = override.Enrichment.APIKey
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Tracker.TestMode {
		base.Tracker.TestMode = true
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{
			Interval: 0,
		},
		OpenAI: OpenAIConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
		},
		Logging: LoggingConfig{Level: "info"},
		Sources: defaultSources(),
	}
}

// defaultSources reproduces the full monitored-site registry: feed-backed
// publishers, pattern-scraped sites, and vision-scraped sites. Architizer has
// neither a feed nor a scraper and is registered for URL resolution only.
func defaultSources() []SourceConfig {
	return []SourceConfig{
		{
			ID: "archdaily", Name: "ArchDaily",
			Domains:       []string{"archdaily.com", "www.archdaily.com"},
			Strategy:      StrategyFeed,
			FeedURL:       "https://feeds.feedburner.com/Archdaily",
			ScrapeTimeout: 25 * time.Second,
		},
		{
			ID: "dezeen", Name: "Dezeen",
			Domains:       []string{"dezeen.com", "www.dezeen.com"},
			Strategy:      StrategyFeed,
			FeedURL:       "https://www.dezeen.com/feed/",
			ScrapeTimeout: 25 * time.Second,
		},
		{
			ID: "designboom", Name: "Designboom",
			Domains:  []string{"designboom.com", "www.designboom.com"},
			Strategy: StrategyFeed,
			FeedURL:  "https://www.designboom.com/feed/",
		},
		{
			ID: "domus", Name: "Domus",
			Domains:  []string{"domusweb.it", "www.domusweb.it"},
			Strategy: StrategyFeed,
			FeedURL:  "https://www.domusweb.it/en.rss.xml",
		},
		{
			ID: "architizer", Name: "Architizer",
			Domains: []string{"architizer.com", "www.architizer.com"},
		},
		{
			ID: "archpaper", Name: "The Architect's Newspaper",
			Domains:       []string{"archpaper.com", "www.archpaper.com"},
			Strategy:      StrategyFeed,
			FeedURL:       "https://www.archpaper.com/feed/",
			ScrapeTimeout: 18 * time.Second,
		},
		{
			ID: "architectural_digest", Name: "Architectural Digest",
			Domains:  []string{"architecturaldigest.com", "www.architecturaldigest.com"},
			Strategy: StrategyFeed,
			FeedURL:  "https://www.architecturaldigest.com/feed/rss",
		},
		{
			ID: "architect_magazine", Name: "Architect Magazine",
			Domains:  []string{"architectmagazine.com", "www.architectmagazine.com"},
			Strategy: StrategyFeed,
			FeedURL:  "https://www.architectmagazine.com/rss",
		},
		{
			ID: "wallpaper", Name: "Wallpaper",
			Domains:  []string{"wallpaper.com", "www.wallpaper.com"},
			Strategy: StrategyFeed,
			FeedURL:  "https://www.wallpaper.com/rss",
		},
		{
			ID: "afasia", Name: "Afasia",
			Domains:       []string{"afasiaarchzine.com", "www.afasiaarchzine.com"},
			Strategy:      StrategyFeed,
			FeedURL:       "https://afasiaarchzine.com/feed/",
			ScrapeTimeout: 15 * time.Second,
		},
		{
			ID: "divisare", Name: "Divisare",
			Domains:  []string{"divisare.com", "www.divisare.com"},
			Strategy: StrategyFeed,
			FeedURL:  "https://divisare.com/feed",
		},
		{
			ID: "curbed", Name: "Curbed",
			Domains:  []string{"curbed.com", "www.curbed.com"},
			Strategy: StrategyFeed,
			FeedURL:  "https://www.curbed.com/rss/index.xml",
		},
		{
			ID: "dwell", Name: "Dwell",
			Domains:  []string{"dwell.com", "www.dwell.com"},
			Strategy: StrategyFeed,
			FeedURL:  "https://www.dwell.com/rss",
		},
		{
			ID: "bauwelt", Name: "Bauwelt",
			Domains:       []string{"bauwelt.de", "www.bauwelt.de"},
			Strategy:      StrategyPattern,
			ListingURL:    "https://www.bauwelt.de/rubriken/bauten/standard_index_2073531.html",
			AllowPatterns: []string{`/rubriken/bauten/[^"'>\s]+\.html`},
			DenyPatterns:  []string{`standard_index`},
			MaxAgeDays:    14,
		},
		{
			ID: "world_landscape_architect", Name: "World Landscape Architect",
			Domains:       []string{"worldlandscapearchitect.com", "www.worldlandscapearchitect.com"},
			Strategy:      StrategyPattern,
			ListingURL:    "https://worldlandscapearchitect.com/",
			AllowPatterns: []string{`worldlandscapearchitect\.com/[a-z0-9-]+(?:-[a-z0-9]+){4,}/?$`},
			DenyPatterns:  []string{`/category/`, `/job/`, `/landscape-architect/`},
			MaxAgeDays:    14,
		},
		{
			ID: "landscape_architecture_magazine", Name: "Landscape Architecture Magazine",
			Domains:       []string{"landscapearchitecturemagazine.org", "www.landscapearchitecturemagazine.org"},
			Strategy:      StrategyPattern,
			ListingURL:    "https://landscapearchitecturemagazine.org/",
			AllowPatterns: []string{`/20\d{2}/(?:\d{2}/)?[a-z0-9-]+/?$`},
			DenyPatterns:  []string{`/all-articles`, `/project-categories`, `/search`},
			MaxAgeDays:    14,
		},
		{
			ID: "metalocus", Name: "Metalocus",
			Domains:       []string{"metalocus.es", "www.metalocus.es"},
			Strategy:      StrategyVision,
			ListingURL:    "https://www.metalocus.es/en",
			ScrapeTimeout: 25 * time.Second,
		},
		{
			ID: "identity", Name: "Identity",
			Domains:    []string{"identity.ae", "www.identity.ae"},
			Strategy:   StrategyVision,
			ListingURL: "https://identity.ae/category/architecture/",
		},
	}
}

package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds pipeline, registry, cache and server configuration.
type Config struct {
	Fetcher          string        `yaml:"fetcher"` // http or browser
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	UserAgent        string        `yaml:"user_agent"`
	AcceptLanguage   string        `yaml:"accept_language"`
	RespectRobotsTxt bool          `yaml:"respect_robots_txt"`
	BrowserWait      time.Duration `yaml:"browser_wait"`

	// Collection thresholds. The three overlapping sample thresholds are kept
	// independent so they can be tuned per deployment.
	MaxSamplesPerSource int     `yaml:"max_samples_per_source"`
	GoodEnoughSamples   int     `yaml:"good_enough_samples"`
	FallbackThreshold   int     `yaml:"fallback_threshold"`
	SearchSampleBudget  int     `yaml:"search_sample_budget"`
	MaxSearchQueries    int     `yaml:"max_search_queries"`
	MinNewPerStrategy   int     `yaml:"min_new_per_strategy"`
	MinPrice            float64 `yaml:"min_price"`
	MaxPrice            float64 `yaml:"max_price"`

	Sources []SourceConfig `yaml:"sources"`

	RegistryBaseURL string        `yaml:"registry_base_url"`
	RegistryToken   string        `yaml:"registry_token"`
	RegistryTimeout time.Duration `yaml:"registry_timeout"`
	RegistryRPS     float64       `yaml:"registry_rps"`

	CacheBackend  string        `yaml:"cache_backend"` // memory, redis or none
	CacheSize     int           `yaml:"cache_size"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`

	// Batch valuation of plate lists.
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`

	ListenAddr   string `yaml:"listen_addr"`
	OutputFile   string `yaml:"output_file"`   // empty writes to stdout
	OutputFormat string `yaml:"output_format"` // json, csv or dual
	Verbose      bool   `yaml:"verbose"`
}

// SourceConfig describes one classified-ad site.
type SourceConfig struct {
	Name       string `yaml:"name"`
	Label      string `yaml:"label"`
	ListingURL string `yaml:"listing_url"`
	// YearParam selects how the year is attached to the most specific direct
	// URL: empty appends a path segment, otherwise a query parameter.
	YearParam    string   `yaml:"year_param"`
	SearchURL    string   `yaml:"search_url"`
	Selectors    []string `yaml:"selectors"`
	LinkSelector string   `yaml:"link_selector"`
}

// DefaultConfig returns the thresholds the pipeline was tuned with.
func DefaultConfig() *Config {
	return &Config{
		Fetcher:          "http",
		FetchTimeout:     12 * time.Second,
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		AcceptLanguage:   "pt-BR,pt;q=0.9",
		RespectRobotsTxt: false,
		BrowserWait:      2 * time.Second,

		MaxSamplesPerSource: 20,
		GoodEnoughSamples:   5,
		FallbackThreshold:   5,
		SearchSampleBudget:  15,
		MaxSearchQueries:    5,
		MinNewPerStrategy:   3,
		MinPrice:            1000,
		MaxPrice:            1000000,

		Sources: DefaultSources(),

		RegistryBaseURL: "https://wdapi2.com.br",
		RegistryTimeout: 15 * time.Second,
		RegistryRPS:     2,

		CacheBackend: "memory",
		CacheSize:    10000,
		CacheTTL:     30 * 24 * time.Hour,

		Workers:   2,
		BatchSize: 16,

		ListenAddr:   ":3923",
		OutputFormat: "json",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Fetcher != "http" && c.Fetcher != "browser" {
		return fmt.Errorf("fetcher must be http or browser")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.MaxSamplesPerSource <= 0 {
		return fmt.Errorf("max samples per source must be positive")
	}
	if c.GoodEnoughSamples <= 0 {
		return fmt.Errorf("good enough samples must be positive")
	}
	if c.FallbackThreshold < 0 {
		return fmt.Errorf("fallback threshold cannot be negative")
	}
	if c.SearchSampleBudget <= 0 {
		return fmt.Errorf("search sample budget must be positive")
	}
	if c.MaxSearchQueries < 0 {
		return fmt.Errorf("max search queries cannot be negative")
	}
	if c.MinNewPerStrategy < 0 {
		return fmt.Errorf("min new per strategy cannot be negative")
	}
	if c.MinPrice <= 0 {
		return fmt.Errorf("min price must be positive")
	}
	if c.MaxPrice <= c.MinPrice {
		return fmt.Errorf("max price (%.2f) must exceed min price (%.2f)", c.MaxPrice, c.MinPrice)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if err := src.validate(); err != nil {
			return fmt.Errorf("source %d: %w", i, err)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("source %q configured twice", src.Name)
		}
		seen[src.Name] = struct{}{}
	}
	if err := validateURL("registry base URL", c.RegistryBaseURL); err != nil {
		return err
	}
	if c.RegistryTimeout <= 0 {
		return fmt.Errorf("registry timeout must be positive")
	}
	if c.RegistryRPS <= 0 {
		return fmt.Errorf("registry rps must be positive")
	}
	switch c.CacheBackend {
	case "memory":
		if c.CacheSize <= 0 {
			return fmt.Errorf("cache size must be positive")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty with the redis cache backend")
		}
	case "none":
	default:
		return fmt.Errorf("cache backend must be memory, redis, or none")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	switch c.OutputFormat {
	case "json", "csv":
	case "dual":
		if c.OutputFile == "" {
			return fmt.Errorf("dual output requires an output file")
		}
	default:
		return fmt.Errorf("output format must be json, csv, or dual")
	}
	return nil
}

func (s SourceConfig) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if err := validateURL("listing URL", s.ListingURL); err != nil {
		return err
	}
	if s.SearchURL != "" {
		if err := validateURL("search URL", s.SearchURL); err != nil {
			return err
		}
	}
	if len(s.Selectors) == 0 {
		return fmt.Errorf("selectors cannot be empty for %s", s.Name)
	}
	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}

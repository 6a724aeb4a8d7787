package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources    []Source   `yaml:"sources"`
	Discovery  Discovery  `yaml:"discovery"`
	Summaries  Summaries  `yaml:"summaries"`
	Delivery   Delivery   `yaml:"delivery"`
	Telegram   Telegram   `yaml:"telegram"`
	Summarizer Summarizer `yaml:"summarizer"`
	Translator Translator `yaml:"translator"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

// Source is one remote link index to poll for article URLs.
type Source struct {
	URL      string `yaml:"url"`
	Language string `yaml:"language"`
	// Kind is "sitemap" (default) or "feed" (RSS/Atom).
	Kind string `yaml:"kind"`
	// TrustDates: when false, per-entry dates in the index are ignored and
	// the publish date is extracted from the page body instead.
	TrustDates bool `yaml:"trust_dates"`
	// RecordContent keeps the extracted page text on the article row.
	RecordContent bool `yaml:"record_content"`
	// DateSelector is the CSS selector for the publish date in the page body.
	DateSelector string `yaml:"date_selector"`
	// DateLayout is an optional Go time layout for the selected text.
	// When empty the date is parsed leniently.
	DateLayout string `yaml:"date_layout"`
}

type Discovery struct {
	// Cron is a robfig/cron expression; the default runs at minute 57 to
	// stay off the whole-hour traffic spikes that get crawlers blocked.
	Cron string `yaml:"cron"`
	// SourceDelaySeconds is the pause between sources within one pass.
	SourceDelaySeconds int `yaml:"source_delay_seconds"`
	// FetchTimeoutSeconds bounds each page-body fetch.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`
	// MaxArticleAgeHours: older articles are recorded but never summarized.
	MaxArticleAgeHours int `yaml:"max_article_age_hours"`
}

type Summaries struct {
	// ScanIntervalSeconds is the pause between scans for unsummarized articles.
	ScanIntervalSeconds int `yaml:"scan_interval_seconds"`
	// TranslateDelaySeconds is the fixed pause between translation calls.
	TranslateDelaySeconds int `yaml:"translate_delay_seconds"`
}

type Delivery struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	// BatchSize bounds how many pending deliveries one cycle may select.
	BatchSize int `yaml:"batch_size"`
	// ThrottleEvery pauses briefly after this many sends within a cycle.
	ThrottleEvery int `yaml:"throttle_every"`
	// ThrottlePauseSeconds is the length of that pause.
	ThrottlePauseSeconds int `yaml:"throttle_pause_seconds"`
	// MaxSummaryAgeHours: summaries older than this are not sent.
	MaxSummaryAgeHours int `yaml:"max_summary_age_hours"`
}

type Telegram struct {
	TokenEnv    string `yaml:"token_env"`
	AdminChatID int64  `yaml:"admin_chat_id"`
}

type Summarizer struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
}

type Translator struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for digestbot.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "digestbot")
}

// DataDir returns the XDG data directory for digestbot.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "digestbot")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/digestbot/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'digestbot init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Discovery: Discovery{
			Cron:                "57 * * * *",
			SourceDelaySeconds:  1,
			FetchTimeoutSeconds: 10,
			MaxArticleAgeHours:  36,
		},
		Summaries: Summaries{
			ScanIntervalSeconds:   300,
			TranslateDelaySeconds: 5,
		},
		Delivery: Delivery{
			IntervalSeconds:      150,
			BatchSize:            1000,
			ThrottleEvery:        30,
			ThrottlePauseSeconds: 60,
			MaxSummaryAgeHours:   24,
		},
		Telegram: Telegram{
			TokenEnv: "BOT_TOKEN",
		},
		Summarizer: Summarizer{
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Translator: Translator{
			BaseURL:   "https://api-free.deepl.com/v2",
			APIKeyEnv: "DEEPL_TOKEN",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for i := range cfg.Sources {
		if cfg.Sources[i].Kind == "" {
			cfg.Sources[i].Kind = "sitemap"
		}
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// MaxArticleAge returns the admission window as a duration.
func (c *Config) MaxArticleAge() time.Duration {
	return time.Duration(c.Discovery.MaxArticleAgeHours) * time.Hour
}

// MaxSummaryAge returns the delivery window as a duration.
func (c *Config) MaxSummaryAge() time.Duration {
	return time.Duration(c.Delivery.MaxSummaryAgeHours) * time.Hour
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

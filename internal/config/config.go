package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CalendarConfig is an ICS feed whose busy times become a participant.
type CalendarConfig struct {
	// Name is the participant's display name.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the default IANA zone for grids when a request names none.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Locale is the default display locale (BCP 47, e.g. "en-US").
	Locale string `yaml:"locale" json:"locale"`

	// TimeFormat is "12h" or "24h".
	TimeFormat string `yaml:"time_format" json:"time_format"`

	// WindowWeeks is how many weekly repeats follow the first occurrence
	// of a weekday slot.
	WindowWeeks int `yaml:"window_weeks" json:"window_weeks"`

	// StrictTokens aborts on malformed tokens instead of skipping them.
	StrictTokens bool `yaml:"strict_tokens" json:"strict_tokens"`

	// SlotMinutes is the length of one slot when checking calendar overlap
	// and exporting ICS events.
	SlotMinutes int `yaml:"slot_minutes" json:"slot_minutes"`

	// CacheSize / CacheTTL bound the heatmap response cache.
	CacheSize int           `yaml:"cache_size" json:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// RateLimit is requests per second across the API; 0 disables it.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`

	// RefreshCron is the cron schedule for re-fetching Calendars.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Calendars are participants backed by ICS feeds.
	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`

	// LogLevel is debug, info or error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "UTC",
		Locale:       "en-US",
		TimeFormat:   "12h",
		WindowWeeks:  2,
		StrictTokens: true,
		SlotMinutes:  15,
		CacheSize:    256,
		CacheTTL:     time.Minute,
		RateLimit:    50,
		RefreshCron:  "*/15 * * * *",
		Calendars:    []CalendarConfig{},
		LogLevel:     "info",
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.Locale == "" {
		c.Locale = d.Locale
	}
	switch c.TimeFormat {
	case "12h", "24h":
	default:
		c.TimeFormat = d.TimeFormat
	}
	if c.WindowWeeks < 0 {
		c.WindowWeeks = 0
	}
	switch c.SlotMinutes {
	case 15, 30, 60:
	default:
		c.SlotMinutes = d.SlotMinutes
	}
	if c.CacheSize <= 0 {
		c.CacheSize = d.CacheSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// SlotLength is SlotMinutes as a duration.
func (c *Config) SlotLength() time.Duration {
	return time.Duration(c.SlotMinutes) * time.Minute
}

// Load loads configuration from the given YAML path.
//
// A missing file is created with defaults (0600, parent 0700) and the
// defaults are returned. window_weeks and strict_tokens are only taken from
// the file when present, so an explicit 0 / false survives.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".meetgrid-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

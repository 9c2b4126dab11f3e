package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"edtcal/internal/timetable"
)

// FeedConfig describes the timetable subscription.
type FeedConfig struct {
	// URL is the iCalendar export endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is used in logs and as the on-disk cache key prefix.
	ID string `yaml:"id" json:"id"`
	// Shift is added to every event time. Some exports publish local times
	// as UTC; "2h" corrects them.
	Shift Duration `yaml:"shift" json:"shift"`
	// PastDays / FutureDays bound recurrence expansion around today.
	PastDays   int `yaml:"past_days" json:"past_days"`
	FutureDays int `yaml:"future_days" json:"future_days"`
}

// WindowConfig is the displayed part of the day in fractional hours.
type WindowConfig struct {
	Start float64 `yaml:"start" json:"start"`
	End   float64 `yaml:"end" json:"end"`
	Step  float64 `yaml:"step" json:"step"`
}

// CacheConfig locates the local store and sets the freshness limit.
type CacheConfig struct {
	// Path is the SQLite file holding the schedule snapshot and day cursor.
	Path string `yaml:"path" json:"path"`
	// ICSDir keeps the raw feed body and HTTP validators.
	ICSDir string `yaml:"ics_dir" json:"ics_dir"`
	// MaxAge is how long a snapshot is used without refetching.
	MaxAge Duration `yaml:"max_age" json:"max_age"`
}

// ColorConfig fixes saturation/brightness of the per-title colors.
type ColorConfig struct {
	Saturation float64 `yaml:"saturation" json:"saturation"`
	Brightness float64 `yaml:"brightness" json:"brightness"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web widget.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the widget page and API.
	Listen string `yaml:"listen" json:"listen"`
	// Timezone is the IANA zone classes are displayed in.
	Timezone string `yaml:"timezone" json:"timezone"`
	// Locale selects header and message strings ("fr", "en").
	Locale   string `yaml:"locale" json:"locale"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	Feed   FeedConfig   `yaml:"feed" json:"feed"`
	Window WindowConfig `yaml:"window" json:"window"`

	// WeekdaysOnly drops Saturday/Sunday classes.
	WeekdaysOnly bool `yaml:"weekdays_only" json:"weekdays_only"`
	// Mode is "offset" (today + cursor) or "next" (next day with classes).
	Mode string `yaml:"mode" json:"mode"`

	Cache CacheConfig `yaml:"cache" json:"cache"`

	// RefreshCron is a cron schedule for background refreshes in serve mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Color ColorConfig `yaml:"color" json:"color"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen = "127.0.0.1:8080"
	defaultTZ     = "Europe/Paris"
	defaultMaxAge = 6 * time.Hour
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{WeekdaysOnly: true}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTZ
	}
	if c.Locale == "" {
		c.Locale = "fr"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Feed.ID == "" {
		c.Feed.ID = "edt"
	}
	if c.Feed.PastDays <= 0 {
		c.Feed.PastDays = 7
	}
	if c.Feed.FutureDays <= 0 {
		c.Feed.FutureDays = 120
	}

	w := timetable.Window{Start: c.Window.Start, End: c.Window.End}
	if !w.Valid() {
		c.Window.Start = timetable.DefaultWindow.Start
		c.Window.End = timetable.DefaultWindow.End
	}
	if c.Window.Step <= 0 {
		c.Window.Step = timetable.DefaultStep
	}

	if _, err := timetable.ParseMode(c.Mode); err != nil || c.Mode == "" {
		c.Mode = string(timetable.ModeOffset)
	}

	if c.Cache.Path == "" {
		c.Cache.Path = "./var/edtcal.db"
	}
	if c.Cache.ICSDir == "" {
		c.Cache.ICSDir = filepath.Join(filepath.Dir(c.Cache.Path), "ics-cache")
	}
	if c.Cache.MaxAge <= 0 {
		c.Cache.MaxAge = Duration(defaultMaxAge)
	}

	if c.RefreshCron == "" {
		c.RefreshCron = "0 */6 * * *"
	}

	if c.Color.Saturation <= 0 || c.Color.Saturation > 1 {
		c.Color.Saturation = timetable.DefaultPalette.Saturation
	}
	if c.Color.Brightness <= 0 || c.Color.Brightness > 1 {
		c.Color.Brightness = timetable.DefaultPalette.Brightness
	}
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DisplayWindow returns the configured grid window.
func (c *Config) DisplayWindow() timetable.Window {
	return timetable.Window{Start: c.Window.Start, End: c.Window.End}
}

// DisplayMode returns the parsed day selection mode.
func (c *Config) DisplayMode() timetable.Mode {
	m, err := timetable.ParseMode(c.Mode)
	if err != nil {
		return timetable.ModeOffset
	}
	return m
}

// Palette returns the title color palette.
func (c *Config) Palette() timetable.Palette {
	return timetable.Palette{Saturation: c.Color.Saturation, Brightness: c.Color.Brightness}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and normalized.
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

	cfg := Config{WeekdaysOnly: true}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename), 0600.
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

	tmp, err := os.CreateTemp(dir, ".edtcal-config-*.tmp")
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}

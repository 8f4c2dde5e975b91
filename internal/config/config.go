package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"epdday/internal/model"
)

// NTPConfig controls the authoritative time source used by the sync policy.
type NTPConfig struct {
	// Server is the NTP host queried for a time fix.
	Server string `yaml:"server" json:"server"`
	// TimeoutSec bounds a single query.
	TimeoutSec int `yaml:"timeout_sec" json:"timeout_sec"`
	// Attempts is the bounded per-cycle attempt budget for connect + fetch.
	Attempts int `yaml:"attempts" json:"attempts"`
}

// ImportSource describes a single ICS feed whose yearly/dated events can be
// merged into the event list.
type ImportSource struct {
	URL  string `yaml:"url" json:"url"`
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the setup UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the setup UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for day boundaries (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// LookaheadDays is how far in the future an event may be and still be
	// considered for display.
	LookaheadDays int `yaml:"lookahead_days" json:"lookahead_days"`

	// RefreshCron is the daemon-mode cycle schedule. In one-shot (deep sleep)
	// operation it is unused; the sleep scheduler owns the wake time.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// StateDir is where the sync timestamp, ICS cache and preview PNG live.
	StateDir string `yaml:"state_dir" json:"state_dir"`

	// NTP configures the authoritative time source.
	NTP NTPConfig `yaml:"ntp" json:"ntp"`

	// Events is the user's event list. Order is irrelevant; ranking fully
	// reorders per cycle.
	Events []model.EventDefinition `yaml:"events" json:"events"`

	// ICSImport lists optional ICS feeds to merge into Events.
	ICSImport []ImportSource `yaml:"ics_import,omitempty" json:"ics_import,omitempty"`

	// ShowBattery toggles the battery line on the rendered display.
	ShowBattery bool `yaml:"show_battery" json:"show_battery"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration, including the
// first-run event set shown before the user has configured anything.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8080",
		Timezone:      "Europe/Berlin",
		LookaheadDays: 90,
		RefreshCron:   "0 0 * * *",
		StateDir:      "/var/lib/epdday",
		NTP: NTPConfig{
			Server:     "pool.ntp.org",
			TimeoutSec: 10,
			Attempts:   3,
		},
		Events: []model.EventDefinition{
			{Name: "New Year", Month: 1, Day: 1, Recurrence: model.RecurrenceAnnual},
			{Name: "Christmas", Month: 12, Day: 25, Recurrence: model.RecurrenceAnnual, Pinned: true},
		},
		ShowBattery: true,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Berlin"
	}
	if c.LookaheadDays < 0 {
		c.LookaheadDays = 0
	}
	if c.LookaheadDays == 0 {
		c.LookaheadDays = 90
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "0 0 * * *"
	}
	if c.StateDir == "" {
		c.StateDir = "/var/lib/epdday"
	}
	if c.NTP.Server == "" {
		c.NTP.Server = "pool.ntp.org"
	}
	if c.NTP.TimeoutSec <= 0 {
		c.NTP.TimeoutSec = 10
	}
	if c.NTP.Attempts <= 0 {
		c.NTP.Attempts = 3
	}
	if c.Events == nil {
		c.Events = []model.EventDefinition{}
	}
	for i := range c.Events {
		if !c.Events[i].Recurrence.Valid() {
			// Unknown kind; treat as annual rather than dropping the event.
			c.Events[i].Recurrence = model.RecurrenceAnnual
		}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".epdday-config-*.tmp")
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
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"epdday/internal/model"
)

func TestLoad_FirstRunCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LookaheadDays != 90 {
		t.Errorf("lookahead = %d, want 90", cfg.LookaheadDays)
	}
	if len(cfg.Events) == 0 {
		t.Error("default event set is empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config perms = %o, want 600", perm)
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.LookaheadDays = 14
	cfg.Events = []model.EventDefinition{
		{Name: "Launch", Month: 9, Day: 1, Recurrence: model.RecurrenceOneTime, Year: 2026, Pinned: true},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.LookaheadDays != 14 {
		t.Errorf("lookahead = %d, want 14", loaded.LookaheadDays)
	}
	if len(loaded.Events) != 1 || loaded.Events[0] != cfg.Events[0] {
		t.Errorf("events = %+v, want %+v", loaded.Events, cfg.Events)
	}
}

func TestNormalize_BackfillsAndRepairs(t *testing.T) {
	cfg := &Config{
		Events: []model.EventDefinition{
			{Name: "odd", Month: 3, Day: 3, Recurrence: "weekly"},
		},
	}
	cfg.Normalize()

	if cfg.Listen == "" || cfg.Timezone == "" || cfg.NTP.Server == "" {
		t.Errorf("defaults not backfilled: %+v", cfg)
	}
	if cfg.LookaheadDays != 90 {
		t.Errorf("lookahead = %d, want 90", cfg.LookaheadDays)
	}
	if cfg.NTP.Attempts != 3 {
		t.Errorf("ntp attempts = %d, want 3", cfg.NTP.Attempts)
	}
	if cfg.Events[0].Recurrence != model.RecurrenceAnnual {
		t.Errorf("unknown recurrence not repaired: %q", cfg.Events[0].Recurrence)
	}
}

func TestLoad_RejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

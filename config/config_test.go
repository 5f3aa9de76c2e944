package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port=%q", cfg.Port)
	}
	if cfg.History.Capacity != 50 {
		t.Errorf("history.capacity=%d", cfg.History.Capacity)
	}
	if cfg.Live.PullInterval != 30*time.Second || cfg.Live.QuietWindow != 2*time.Minute {
		t.Errorf("live=%+v", cfg.Live)
	}
	if cfg.Live.FreshPush != 2*time.Minute || cfg.Live.FreshPull != 5*time.Minute {
		t.Errorf("freshness=%+v", cfg.Live)
	}
	if cfg.Alerts.Cooldown != 5*time.Minute {
		t.Errorf("cooldown=%v", cfg.Alerts.Cooldown)
	}
	if cfg.Schedule.RelayCount != 4 {
		t.Errorf("relay_count=%d", cfg.Schedule.RelayCount)
	}
	if cfg.Events.Retention != 720*time.Hour || cfg.Events.PruneSchedule != "@hourly" {
		t.Errorf("events=%+v", cfg.Events)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("log.format=%q", cfg.LogFormat)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yml := []byte("port: \"9090\"\nhistory:\n  capacity: 10\nalerts:\n  cooldown: 1m\nmqtt:\n  data_topic: farm/data\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), yml, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.History.Capacity != 10 || cfg.Alerts.Cooldown != time.Minute {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.MQTT.DataTopic != "farm/data" {
		t.Fatalf("data topic=%q", cfg.MQTT.DataTopic)
	}
}

func TestLoad_RejectsNonPositiveCapacity(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte("history:\n  capacity: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}

func TestLocation(t *testing.T) {
	c := &Config{Schedule: ScheduleConfig{Timezone: "Local"}}
	if loc, err := c.Location(); err != nil || loc != time.Local {
		t.Fatalf("Local: %v %v", loc, err)
	}
	c.Schedule.Timezone = "UTC"
	if loc, err := c.Location(); err != nil || loc.String() != "UTC" {
		t.Fatalf("UTC: %v %v", loc, err)
	}
	c.Schedule.Timezone = "Nowhere/Atlantis"
	if _, err := c.Location(); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

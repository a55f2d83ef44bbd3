package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFallsBackToDefaultsWhenMissing(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	want := DefaultConfig()
	if cfg.I2C != want.I2C || cfg.PWM != want.PWM || cfg.Motors != want.Motors {
		t.Fatalf("cfg = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadConfigParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flightcore.yaml")
	if err := os.WriteFile(path, []byte("pwm:\n  frequency_hz: 490\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cfg := LoadConfig(path)
	if cfg.PWM.FrequencyHz != 490 {
		t.Fatalf("FrequencyHz = %v, want 490", cfg.PWM.FrequencyHz)
	}
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv("RADIO_BAUD", "115200")
	t.Setenv("DASHBOARD_ENABLED", "true")
	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.Radio.BaudRate != 115200 {
		t.Fatalf("BaudRate = %d, want 115200", cfg.Radio.BaudRate)
	}
	if !cfg.Dash.Enabled {
		t.Fatal("Dash.Enabled = false, want true from env override")
	}
}

func TestSaveWritesYAML(t *testing.T) {
	cfg := DefaultConfig()
	cfg.path = filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(cfg.path); err != nil {
		t.Fatalf("Save did not create file: %v", err)
	}
}

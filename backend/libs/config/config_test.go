package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	HTTP struct {
		Port string `yaml:"port" env:"SAMPLE_HTTP_PORT" default:"8085"`
	} `yaml:"http"`
	Hub struct {
		Capacity int `yaml:"capacity" default:"100"`
	} `yaml:"hub"`
	Sampling struct {
		Interval time.Duration `yaml:"interval" env:"SAMPLE_INTERVAL" default:"5m"`
	} `yaml:"sampling"`
	Ratio float64 `yaml:"ratio" env:"SAMPLE_RATIO"`
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Setenv(defaultConfigPathEnv, "")

	var cfg sampleConfig
	if err := LoadConfig(&cfg); err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTP.Port != "8085" {
		t.Fatalf("expected default port 8085, got %q", cfg.HTTP.Port)
	}
	if cfg.Hub.Capacity != 100 {
		t.Fatalf("expected default capacity 100, got %d", cfg.Hub.Capacity)
	}
	if cfg.Sampling.Interval != 5*time.Minute {
		t.Fatalf("expected default interval 5m, got %s", cfg.Sampling.Interval)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("http:\n  port: \"9000\"\nhub:\n  capacity: 50\nsampling:\n  interval: 30s\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(defaultConfigPathEnv, path)
	t.Setenv("SAMPLE_HTTP_PORT", "9100")
	t.Setenv("SAMPLE_INTERVAL", "120")
	t.Setenv("SAMPLE_RATIO", "0.5")

	var cfg sampleConfig
	if err := LoadConfig(&cfg); err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTP.Port != "9100" {
		t.Fatalf("expected env port 9100, got %q", cfg.HTTP.Port)
	}
	if cfg.Hub.Capacity != 50 {
		t.Fatalf("expected file capacity 50, got %d", cfg.Hub.Capacity)
	}
	if cfg.Sampling.Interval != 2*time.Minute {
		t.Fatalf("expected env interval 2m, got %s", cfg.Sampling.Interval)
	}
	if cfg.Ratio != 0.5 {
		t.Fatalf("expected ratio 0.5, got %v", cfg.Ratio)
	}
}

func TestLoadConfigAutomaticEnvKey(t *testing.T) {
	t.Setenv(defaultConfigPathEnv, "")
	t.Setenv("HUB_CAPACITY", "7")

	var cfg sampleConfig
	if err := LoadConfig(&cfg); err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Hub.Capacity != 7 {
		t.Fatalf("expected capacity 7 from HUB_CAPACITY, got %d", cfg.Hub.Capacity)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv(defaultConfigPathEnv, "")
	t.Setenv("SAMPLE_INTERVAL", "soon")

	var cfg sampleConfig
	if err := LoadConfig(&cfg); err == nil {
		t.Fatalf("expected error for invalid duration")
	}

	if err := LoadConfig(cfg); err == nil {
		t.Fatalf("expected error for non-pointer target")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsAndRequiredFields(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("GENERATION_POSTGRES_DSN", "postgres://localhost/generation")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress() != ":8090" {
		t.Fatalf("unexpected address %s", cfg.HTTPAddress())
	}
	if cfg.Sampling.Interval != 5*time.Minute {
		t.Fatalf("expected 5m sampling interval, got %s", cfg.Sampling.Interval)
	}
	if cfg.Hub.Capacity != 100 {
		t.Fatalf("expected hub capacity 100, got %d", cfg.Hub.Capacity)
	}
	if cfg.Session.HeartbeatInterval != 5*time.Second || cfg.Session.ClientTimeout != 10*time.Second {
		t.Fatalf("unexpected session timings %+v", cfg.Session)
	}
	if !cfg.Database.ApplySchema {
		t.Fatalf("expected schema bootstrap enabled by default")
	}
	if cfg.RedisEnabled() {
		t.Fatalf("redis should be disabled without an address")
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("GENERATION_POSTGRES_DSN", "postgres://localhost/generation")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing jwt secret to fail")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
http:
  port: "9000"
database:
  dsn: postgres://file/generation
auth:
  jwtSecret: from-file
sampling:
  interval: 1m
session:
  heartbeatInterval: 2s
  clientTimeout: 6s
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("GENERATION_SAMPLING_INTERVAL", "90")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress() != ":9000" {
		t.Fatalf("expected port from file, got %s", cfg.HTTPAddress())
	}
	if cfg.Sampling.Interval != 90*time.Second {
		t.Fatalf("env should override file, got %s", cfg.Sampling.Interval)
	}
	if cfg.Session.ClientTimeout != 6*time.Second {
		t.Fatalf("expected client timeout from file, got %s", cfg.Session.ClientTimeout)
	}
}

func TestValidateRejectsTimeoutBelowHeartbeat(t *testing.T) {
	cfg := &Config{}
	cfg.Database.DSN = "dsn"
	cfg.Auth.JWTSecret = "secret"
	cfg.Sampling.Interval = time.Minute
	cfg.Sampling.MaxFactor = 1
	cfg.Session.HeartbeatInterval = 10 * time.Second
	cfg.Session.ClientTimeout = 5 * time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidateRejectsFactorsAboveCapacity(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Database.DSN = "dsn"
		cfg.Auth.JWTSecret = "secret"
		cfg.Sampling.Interval = time.Minute
		cfg.Session.HeartbeatInterval = 5 * time.Second
		cfg.Session.ClientTimeout = 10 * time.Second
		return cfg
	}

	cases := []struct {
		name     string
		min, max float64
		wantErr  bool
	}{
		{"default range", 0.8, 1.0, false},
		{"full capacity", 1.0, 1.0, false},
		{"above capacity", 1.2, 1.5, true},
		{"max just above one", 0.5, 1.01, true},
		{"negative min", -0.1, 0.5, true},
		{"inverted", 0.9, 0.5, true},
	}
	for _, tc := range cases {
		cfg := valid()
		cfg.Sampling.MinFactor, cfg.Sampling.MaxFactor = tc.min, tc.max
		err := cfg.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: expected error=%v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "gridpulse/backend/libs/config"
)

// Config defines generation service configuration.
type Config struct {
	HTTP struct {
		Port            string        `yaml:"port" env:"GENERATION_HTTP_PORT" default:"8090"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"GENERATION_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	} `yaml:"http"`
	Database struct {
		DSN          string        `yaml:"dsn" env:"GENERATION_POSTGRES_DSN"`
		MaxOpenConns int           `yaml:"maxOpenConns" env:"GENERATION_POSTGRES_MAX_OPEN" default:"10"`
		MaxIdleConns int           `yaml:"maxIdleConns" env:"GENERATION_POSTGRES_MAX_IDLE" default:"5"`
		ConnLifetime time.Duration `yaml:"connLifetime" env:"GENERATION_POSTGRES_CONN_LIFETIME" default:"30m"`
		ApplySchema  bool          `yaml:"applySchema" env:"GENERATION_POSTGRES_APPLY_SCHEMA" default:"true"`
	} `yaml:"database"`
	Redis struct {
		Addr      string        `yaml:"addr" env:"GENERATION_REDIS_ADDR"`
		Password  string        `yaml:"password" env:"GENERATION_REDIS_PASSWORD"`
		DB        int           `yaml:"db" env:"GENERATION_REDIS_DB"`
		PoolSize  int           `yaml:"poolSize" env:"GENERATION_REDIS_POOL_SIZE" default:"10"`
		LatestTTL time.Duration `yaml:"latestTTL" env:"GENERATION_REDIS_LATEST_TTL" default:"15m"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret string        `yaml:"jwtSecret" env:"JWT_SECRET"`
		TokenTTL  time.Duration `yaml:"tokenTTL" env:"JWT_TTL" default:"24h"`
	} `yaml:"auth"`
	Sampling struct {
		Interval  time.Duration `yaml:"interval" env:"GENERATION_SAMPLING_INTERVAL" default:"5m"`
		Workers   int           `yaml:"workers" env:"GENERATION_SAMPLING_WORKERS" default:"4"`
		MinFactor float64       `yaml:"minFactor" env:"GENERATION_SAMPLING_MIN_FACTOR" default:"0.8"`
		MaxFactor float64       `yaml:"maxFactor" env:"GENERATION_SAMPLING_MAX_FACTOR" default:"1.0"`
	} `yaml:"sampling"`
	Hub struct {
		Capacity int `yaml:"capacity" env:"HUB_CAPACITY" default:"100"`
	} `yaml:"hub"`
	Session struct {
		HeartbeatInterval time.Duration `yaml:"heartbeatInterval" env:"WS_HEARTBEAT_INTERVAL" default:"5s"`
		ClientTimeout     time.Duration `yaml:"clientTimeout" env:"WS_CLIENT_TIMEOUT" default:"10s"`
		SnapshotInterval  time.Duration `yaml:"snapshotInterval" env:"WS_SNAPSHOT_INTERVAL" default:"5s"`
		WriteTimeout      time.Duration `yaml:"writeTimeout" env:"WS_WRITE_TIMEOUT" default:"10s"`
		SendBuffer        int           `yaml:"sendBuffer" env:"WS_SEND_BUFFER" default:"32"`
	} `yaml:"session"`
	RateLimit struct {
		RPS   float64 `yaml:"rps" env:"API_RATE_LIMIT_RPS" default:"10"`
		Burst int     `yaml:"burst" env:"API_RATE_LIMIT_BURST" default:"20"`
	} `yaml:"rateLimit"`
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: jwt secret required")
	}
	if c.Sampling.Interval <= 0 {
		return errors.New("config: sampling interval must be positive")
	}
	if c.Sampling.MinFactor < 0 || c.Sampling.MaxFactor > 1 || c.Sampling.MaxFactor < c.Sampling.MinFactor {
		return fmt.Errorf("config: invalid sampling factors [%v, %v]", c.Sampling.MinFactor, c.Sampling.MaxFactor)
	}
	if c.Session.ClientTimeout <= c.Session.HeartbeatInterval {
		return errors.New("config: ws client timeout must exceed heartbeat interval")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8090"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// RedisEnabled reports whether the latest-reading cache is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

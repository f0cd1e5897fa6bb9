package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Client struct {
		ServerURL    string `yaml:"server_url" validate:"required,url"`
		Timeout      string `yaml:"timeout"`
		SyncInterval string `yaml:"sync_interval"`
		LiveFeed     bool   `yaml:"live_feed"`
	} `yaml:"client"`
	Session struct {
		Backend string `yaml:"backend" validate:"oneof=file redis memory"`
		Path    string `yaml:"path"`
		Profile string `yaml:"profile"`
		TTL     string `yaml:"ttl"`
	} `yaml:"session"`
	Server struct {
		Port             string   `yaml:"port" validate:"omitempty,numeric"`
		JWTSecret        string   `yaml:"jwt_secret"`
		TokenTTL         string   `yaml:"token_ttl"`
		PointsPerCorrect int      `yaml:"points_per_correct" validate:"gte=0"`
		ExposeAnswers    bool     `yaml:"expose_answers"`
		AllowedOrigins   []string `yaml:"allowed_origins"`
		AdminEmail       string   `yaml:"admin_email" validate:"omitempty,email"`
		AdminPassword    string   `yaml:"admin_password" validate:"required_with=AdminEmail"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Catalog struct {
		TTL string `yaml:"ttl"`
	} `yaml:"catalog"`
	Log struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Client.ServerURL = "http://localhost:8080"
	cfg.Client.Timeout = "10s"
	cfg.Session.Backend = "file"
	cfg.Session.Profile = "default"
	cfg.Server.Port = "8080"
	cfg.Server.TokenTTL = "24h"
	cfg.Server.PointsPerCorrect = 10
	cfg.Catalog.TTL = "10m"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, Validate(cfg)
}

// Validate checks field constraints and duration syntax.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, raw := range map[string]string{
		"client.timeout":       cfg.Client.Timeout,
		"client.sync_interval": cfg.Client.SyncInterval,
		"session.ttl":          cfg.Session.TTL,
		"server.token_ttl":     cfg.Server.TokenTTL,
		"catalog.ttl":          cfg.Catalog.TTL,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid config: %s: %w", name, err)
		}
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

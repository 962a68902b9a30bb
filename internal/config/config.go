// Package config resolves the full runtime configuration once at startup:
// built-in defaults, then the optional yaml file, then environment
// overrides. Nothing else in the program falls back to defaults ad hoc.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	DBPath        string `yaml:"db_path"`
	JWTSecret     string `yaml:"jwt_secret"`
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`

	Refresh RefreshConfig `yaml:"refresh"`
	Kiro    KiroConfig    `yaml:"kiro"`
}

// RefreshConfig configures the token refresh scheduler.
type RefreshConfig struct {
	Interval  time.Duration `yaml:"-"`
	Threshold time.Duration `yaml:"-"`
}

// UnmarshalYAML parses the durations from their string form ("50m", "5m").
func (r *RefreshConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Interval  string `yaml:"interval"`
		Threshold string `yaml:"threshold"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("refresh.interval: %w", err)
		}
		r.Interval = d
	}
	if raw.Threshold != "" {
		d, err := time.ParseDuration(raw.Threshold)
		if err != nil {
			return fmt.Errorf("refresh.threshold: %w", err)
		}
		r.Threshold = d
	}
	return nil
}

// KiroConfig configures the Kiro auth service client.
type KiroConfig struct {
	Endpoint string `yaml:"endpoint"`
}

const defaultJWTSecret = "change-me-in-production"

// Load reads the optional yaml config at path and applies environment
// overrides. A missing file is fine; defaults cover everything.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Host:          "127.0.0.1",
		Port:          "3001",
		DBPath:        "pool.db",
		JWTSecret:     defaultJWTSecret,
		AdminUsername: "admin",
		AdminPassword: "admin123",
		Refresh: RefreshConfig{
			Interval:  50 * time.Minute,
			Threshold: 5 * time.Minute,
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.Refresh.Interval <= 0 {
		cfg.Refresh.Interval = 50 * time.Minute
	}
	if cfg.Refresh.Threshold <= 0 {
		cfg.Refresh.Threshold = 5 * time.Minute
	}

	if cfg.JWTSecret == defaultJWTSecret {
		log.Printf("⚠️ JWT_SECRET is unset or default, do not run like this in production")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("POOL_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		cfg.AdminUsername = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.AdminPassword = v
	}
	if v := os.Getenv("KIRO_AUTH_ENDPOINT"); v != "" {
		cfg.Kiro.Endpoint = v
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Refresh.Interval = d
		}
	}
	if v := os.Getenv("REFRESH_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Refresh.Threshold = d
		}
	}
}

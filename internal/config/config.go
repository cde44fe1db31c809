package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Service struct {
		ID string `yaml:"id"`
	} `yaml:"service"`
	Nats struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Catalog struct {
		BaseURL string `yaml:"baseUrl"`
		Timeout string `yaml:"timeout"`
		TTL     string `yaml:"ttl"`
	} `yaml:"catalog"`
	Leaderboard struct {
		TopN int `yaml:"topN"`
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path and applies environment overrides.
// A .env file next to the binary is honored when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("SERVICE_ID"); v != "" {
		c.Service.ID = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Nats.URL = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CATALOG_URL"); v != "" {
		c.Catalog.BaseURL = v
	}
}

// DurationOr parses a duration string or returns the fallback if empty or invalid.
func DurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

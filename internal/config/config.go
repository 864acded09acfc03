package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		PublicURL   string   `yaml:"publicURL"`
		CorsOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Firebase struct {
		CredentialsFile string `yaml:"credentialsFile"`
		DatabaseURL     string `yaml:"databaseURL"`
	} `yaml:"firebase"`
	Store struct {
		CacheTTL string `yaml:"cacheTTL"`
	} `yaml:"store"`
	Flow struct {
		StageDelay   string `yaml:"stageDelay"`
		ShareTimeout string `yaml:"shareTimeout"`
	} `yaml:"flow"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file yields defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.PublicURL = strings.TrimRight(envOr("PUBLIC_URL", c.Server.PublicURL), "/")
	c.Firebase.CredentialsFile = envOr("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", c.Firebase.CredentialsFile)
	c.Firebase.DatabaseURL = envOr("FIREBASE_DATABASE_URL", c.Firebase.DatabaseURL)
	c.Log.Level = envOr("LOG_LEVEL", c.Log.Level)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
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
